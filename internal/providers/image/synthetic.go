package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
)

// SyntheticGenerator renders deterministic placeholder images. The worker uses
// it when no provider credentials are configured so the pipeline stays
// exercisable end-to-end.
type SyntheticGenerator struct {
	model string
}

// NewSyntheticGenerator returns a generator reporting the given model name.
func NewSyntheticGenerator(model string) *SyntheticGenerator {
	if model == "" {
		model = "synthetic"
	}
	return &SyntheticGenerator{model: model}
}

// Generate returns one PNG whose colours derive from the request.
func (g *SyntheticGenerator) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width, height := dimensionsForAspect(req.AspectRatio)
	seed := deterministicSeed(req.RequestID, req.Prompt, req.Quality, len(req.References))
	data, err := renderStripes(width/4, height/4, seed)
	if err != nil {
		return nil, &Error{StatusCode: 500, Message: err.Error()}
	}
	return &Result{
		Images:            []Asset{{Format: "image/png", Width: width / 4, Height: height / 4, Data: data}},
		ProviderRequestID: g.model + "-" + seed,
	}, nil
}

func renderStripes(width, height int, seed string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{colorFromSeed(seed, 0)}, image.Point{}, draw.Src)
	stripe := height / 12
	if stripe < 8 {
		stripe = 8
	}
	accent := &image.Uniform{colorFromSeed(seed, 1)}
	for y := 0; y < height; y += stripe * 2 {
		bottom := y + stripe
		if bottom > height {
			bottom = height
		}
		draw.Draw(img, image.Rect(0, y, width, bottom), accent, image.Point{}, draw.Over)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func colorFromSeed(seed string, offset int) color.RGBA {
	raw, _ := hex.DecodeString(seed)
	if len(raw) < 3 {
		return color.RGBA{R: 200, G: 200, B: 200, A: 255}
	}
	i := (offset * 3) % (len(raw) - 2)
	return color.RGBA{R: raw[i], G: raw[i+1], B: raw[i+2], A: 255}
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v|", part)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

func dimensionsForAspect(aspect string) (int, int) {
	switch strings.TrimSpace(strings.ToLower(aspect)) {
	case "16:9":
		return 1920, 1080
	case "9:16":
		return 1080, 1920
	case "4:5":
		return 1024, 1280
	case "3:2":
		return 1536, 1024
	case "1:1", "square", "":
		return 1024, 1024
	}
	parts := strings.Split(aspect, ":")
	if len(parts) == 2 {
		a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
		b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errA == nil && errB == nil && a > 0 && b > 0 {
			return 1024, int(float64(1024) * float64(b) / float64(a))
		}
	}
	return 1024, 1024
}

var _ Generator = (*SyntheticGenerator)(nil)
