// Package config loads service settings from YAML with DIGITPREP_ environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"digitprep/internal/normalize"
	"digitprep/internal/opencv"
	"digitprep/internal/recognizer"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. DIGITPREP_SERVER_PORT.
const EnvPrefix = "DIGITPREP"

type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Redis      RedisConfig       `mapstructure:"redis"`
	Upload     UploadConfig      `mapstructure:"upload"`
	Normalize  NormalizeConfig   `mapstructure:"normalize"`
	Recognizer recognizer.Config `mapstructure:"recognizer"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
	// MaxSide downsamples larger photos before normalization; 0 disables.
	MaxSide int `mapstructure:"max_side"`
}

// NormalizeConfig mirrors normalize.Params in config-file form.
type NormalizeConfig struct {
	Background       string  `mapstructure:"background"`
	Foreground       string  `mapstructure:"foreground"`
	Threshold        float64 `mapstructure:"threshold"`
	VignetteStart    float64 `mapstructure:"vignette_start"`
	VignetteStrength float64 `mapstructure:"vignette_strength"`
	BoxPolicy        string  `mapstructure:"box_policy"`
	DigitSize        int     `mapstructure:"digit_size"`
	CanvasSize       int     `mapstructure:"canvas_size"`
	Resampler        string  `mapstructure:"resampler"`
}

// Params converts the section into validated normalizer parameters.
func (c NormalizeConfig) Params() (normalize.Params, error) {
	bg, err := normalize.ParseHexColor(c.Background)
	if err != nil {
		return normalize.Params{}, fmt.Errorf("normalize.background: %w", err)
	}
	fg, err := normalize.ParseHexColor(c.Foreground)
	if err != nil {
		return normalize.Params{}, fmt.Errorf("normalize.foreground: %w", err)
	}
	policy, err := normalize.ParseBoxPolicy(c.BoxPolicy)
	if err != nil {
		return normalize.Params{}, fmt.Errorf("normalize.box_policy: %w", err)
	}
	resampler, err := Resampler(c.Resampler)
	if err != nil {
		return normalize.Params{}, fmt.Errorf("normalize.resampler: %w", err)
	}

	p := normalize.DefaultParams().
		WithColors(bg, fg).
		WithThreshold(c.Threshold).
		WithVignette(c.VignetteStart, c.VignetteStrength).
		WithBoxPolicy(policy).
		WithGeometry(c.DigitSize, c.CanvasSize).
		WithResampler(resampler)
	if err := p.Validate(); err != nil {
		return normalize.Params{}, err
	}
	return p, nil
}

// Resampler resolves a resampler name, including the OpenCV area filter.
func Resampler(name string) (normalize.Resampler, error) {
	area := opencv.AreaResampler{}
	if strings.EqualFold(name, area.Name()) {
		return area, nil
	}
	return normalize.ResamplerByName(name)
}

// Load reads configPath, failing if it cannot be read.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return unmarshal(v)
}

// New loads configPath when it exists and otherwise falls back to defaults.
// Environment overrides apply either way.
func New(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}
	return unmarshal(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/jpg"})
	v.SetDefault("upload.max_side", 1024)

	def := normalize.DefaultParams()
	v.SetDefault("normalize.background", "#ffffff")
	v.SetDefault("normalize.foreground", "#000000")
	v.SetDefault("normalize.threshold", def.Threshold)
	v.SetDefault("normalize.vignette_start", def.VignetteStart)
	v.SetDefault("normalize.vignette_strength", def.VignetteStrength)
	v.SetDefault("normalize.box_policy", def.BoxPolicy.String())
	v.SetDefault("normalize.digit_size", def.DigitSize)
	v.SetDefault("normalize.canvas_size", def.CanvasSize)
	v.SetDefault("normalize.resampler", def.Resampler.Name())

	rec := recognizer.DefaultConfig()
	v.SetDefault("recognizer.kind", rec.Kind)
	v.SetDefault("recognizer.endpoint", "")
	v.SetDefault("recognizer.key", "")
	v.SetDefault("recognizer.timeout", rec.Timeout)
	v.SetDefault("recognizer.retry_count", rec.RetryCount)
	v.SetDefault("recognizer.retry_wait", rec.RetryWait)
	v.SetDefault("recognizer.input_scale", rec.InputScale)
	v.SetDefault("recognizer.send_raw", false)
	v.SetDefault("recognizer.language", rec.Language)
}
