// Command boxtest runs the normalizer stage by stage on one photo, prints the
// bounding box and writes every intermediate image as PNG.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"digitprep/internal/codec"
	"digitprep/internal/config"
	"digitprep/internal/normalize"
	"digitprep/pkg/geometry"
)

type stage struct {
	name string
	buf  normalize.PixelBuffer
}

func main() {
	imagePath := flag.String("image", "", "Path to digit photo (PNG or JPEG)")
	outDir := flag.String("out", "", "Directory for stage PNGs (skipped when empty)")
	policy := flag.String("policy", "tight", "Bounding box policy: tight or reference-margin")
	threshold := flag.Float64("threshold", normalize.Threshold, "Binarization threshold (0-1)")
	resampler := flag.String("resampler", "box", "Resampler: box, nearest, bilinear, catmullrom, opencv-area")
	maxSide := flag.Int("max-side", 1024, "Downsample photos whose longer side exceeds this")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: boxtest -image <path> [-out dir] [-policy tight|reference-margin] [-threshold 0.6] [-resampler box]")
		fmt.Printf("Supported image files: %s\n", strings.Join(codec.SupportedFormats(), ", "))
		os.Exit(1)
	}

	boxPolicy, err := normalize.ParseBoxPolicy(*policy)
	if err != nil {
		fail("Invalid policy", err)
	}
	r, err := config.Resampler(*resampler)
	if err != nil {
		fail("Invalid resampler", err)
	}
	params := normalize.DefaultParams().
		WithThreshold(*threshold).
		WithBoxPolicy(boxPolicy).
		WithResampler(r)
	if err := params.Validate(); err != nil {
		fail("Invalid parameters", err)
	}

	src, err := codec.Load(*imagePath, params.Colors.Background)
	if err != nil {
		fail("Failed to load image", err)
	}
	fmt.Printf("Loaded image: %dx%d pixels\n", src.Width(), src.Height())
	src = codec.Downsample(src, *maxSide)
	fmt.Printf("Working size: %dx%d pixels\n", src.Width(), src.Height())

	fmt.Printf("\nParameters:\n")
	fmt.Printf("  Threshold: %.3f\n", params.Threshold)
	fmt.Printf("  Vignette: start %.2f strength %.2f\n", params.VignetteStart, params.VignetteStrength)
	fmt.Printf("  Box policy: %s\n", params.BoxPolicy)
	fmt.Printf("  Geometry: %d px digit on %d px canvas\n", params.DigitSize, params.CanvasSize)
	fmt.Printf("  Resampler: %s\n", params.Resampler.Name())
	fmt.Printf("  Fingerprint: %s\n", params.Fingerprint())

	stages := []stage{{"0-source", src}}
	dump := func(name string, buf normalize.PixelBuffer) {
		stages = append(stages, stage{name, buf})
	}

	gray := normalize.Grayscale(src)
	dump("1-gray", gray)
	vignetted := normalize.Vignette(gray, params.Colors.Background, params.VignetteStart, params.VignetteStrength)
	dump("2-vignette", vignetted)
	binary := normalize.Binarize(vignetted, params.Colors, params.Threshold)
	dump("3-binary", binary)

	box, err := normalize.Locate(binary, params.Colors.Background, params.BoxPolicy)
	if err != nil {
		writeStages(*outDir, stages)
		fail("Locate failed", err)
	}
	fmt.Printf("\nBounding box: %s (%dx%d)\n", box, box.Width(), box.Height())

	cropped, err := normalize.Crop(binary, box)
	if err != nil {
		fail("Crop failed", err)
	}
	dump("4-crop", cropped)
	square, err := normalize.SquarePad(cropped, params.Colors.Background)
	if err != nil {
		fail("Square pad failed", err)
	}
	dump("5-square", square)
	resized, err := normalize.Resize(square, params.DigitSize, params.Resampler)
	if err != nil {
		fail("Resize failed", err)
	}
	dump("6-resized", resized)
	canonical, err := normalize.PadBorder(resized, params.Margin(), params.Colors.Background)
	if err != nil {
		fail("Border failed", err)
	}
	dump("7-canonical", canonical)

	grid := normalize.Linearize(canonical)
	stats := grid.Stats()
	fmt.Printf("\nGrid: %d values, mean %.1f, std %.1f, ink %.1f%%, centroid (%.1f, %.1f)\n",
		grid.Len(), stats.Mean, stats.StdDev, stats.InkFraction*100, stats.Centroid.X, stats.Centroid.Y)
	center := geometry.NewPoint2D(float64(grid.Width-1)/2, float64(grid.Height-1)/2)
	fmt.Printf("Centroid offset from canvas center: %.2f px\n\n", stats.Centroid.Distance(center))
	for y := 0; y < grid.Height; y++ {
		var sb strings.Builder
		for x := 0; x < grid.Width; x++ {
			sb.WriteByte(shade(grid.At(x, y)))
		}
		fmt.Println(sb.String())
	}

	writeStages(*outDir, stages)
}

func shade(v int) byte {
	const ramp = " .:-=+*#%@"
	return ramp[v*(len(ramp)-1)/255]
}

func writeStages(dir string, stages []stage) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fail("Failed to create output directory", err)
	}
	for _, s := range stages {
		data, err := codec.Encode(s.buf, codec.FormatPNG)
		if err != nil {
			fail("Failed to encode "+s.name, err)
		}
		path := filepath.Join(dir, s.name+".png")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fail("Failed to write "+path, err)
		}
		fmt.Printf("Wrote %s\n", path)
	}
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
