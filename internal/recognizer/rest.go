package recognizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 10 * time.Second

// newRESTClient builds a resty client that retries transport failures,
// throttling and server errors. Client errors are returned immediately.
func newRESTClient(cfg Config) *resty.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(max(cfg.RetryCount, 0)).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(max(cfg.RetryWait*4, time.Second)).
		SetHeader("Accept", "application/json")

	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		code := r.StatusCode()
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	})
	return client
}

// postJSON sends body and decodes a 2xx JSON answer into out.
func postJSON(ctx context.Context, backend string, req *resty.Request, url string, out any) error {
	resp, err := req.SetContext(ctx).Post(url)
	if err != nil {
		return fmt.Errorf("%s request: %w", backend, err)
	}
	if resp.IsError() {
		return &StatusError{Backend: backend, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s response: %w", backend, err)
	}
	return nil
}
