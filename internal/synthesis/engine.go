// Package synthesis produces the composite image for a generation job. The
// compositing itself is an honest placeholder: a deterministic side-by-side
// layout of the two source photos, not a learned face composite. The Gemini
// call rides along for validation and descriptive logging only.
package synthesis

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"

	"fanai-server/internal/domain"
	"fanai-server/internal/infra"
)

const (
	// targetHeight is the fixed height both sources are scaled to.
	targetHeight = 800
	// gapWidth separates the two photos on the canvas.
	gapWidth = 40
)

var canvasBackground = color.NRGBA{R: 245, G: 245, B: 250, A: 255}

// Engine synthesizes composite images.
type Engine struct {
	gemini *GeminiClient
	logger infra.Logger
}

// NewEngine builds an Engine. The Gemini client may be nil; everything it
// contributes is advisory.
func NewEngine(gemini *GeminiClient, logger infra.Logger) *Engine {
	return &Engine{gemini: gemini, logger: logger}
}

// AnalyzeImage gates uploads before any credit is spent. See
// GeminiClient.AnalyzeImage for the fail-open contract.
func (e *Engine) AnalyzeImage(ctx context.Context, image []byte) Analysis {
	if e.gemini == nil {
		return Analysis{IsValid: true, Reason: analysisUnavailableReason}
	}
	return e.gemini.AnalyzeImage(ctx, image)
}

// Synthesize renders the composite: both photos scaled proportionally to a
// fixed height and placed side by side on a neutral canvas. The output width
// is the sum of the scaled widths plus the gap. Failures wrap into
// domain.SynthesisError, the one error family that is terminal for a job.
func (e *Engine) Synthesize(ctx context.Context, userImage, celebImage []byte, prompt string) ([]byte, error) {
	if e.gemini != nil {
		if description, err := e.gemini.DescribeComposite(ctx, userImage, celebImage, prompt); err != nil {
			e.logger.Debug().Err(err).Msg("synthesis: composite description skipped")
		} else {
			e.logger.Info().Str("description", truncate(description, 240)).Msg("synthesis: composite description")
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, domain.NewSynthesisError("composite", err)
	}

	user, _, err := image.Decode(bytes.NewReader(userImage))
	if err != nil {
		return nil, domain.NewSynthesisError("decode user image", err)
	}
	celeb, _, err := image.Decode(bytes.NewReader(celebImage))
	if err != nil {
		return nil, domain.NewSynthesisError("decode celebrity image", err)
	}

	userWidth := scaledWidth(user.Bounds())
	celebWidth := scaledWidth(celeb.Bounds())
	totalWidth := userWidth + celebWidth + gapWidth

	canvas := image.NewRGBA(image.Rect(0, 0, totalWidth, targetHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(canvasBackground), image.Point{}, draw.Src)

	xdraw.CatmullRom.Scale(canvas, image.Rect(0, 0, userWidth, targetHeight), user, user.Bounds(), xdraw.Over, nil)
	xdraw.CatmullRom.Scale(canvas, image.Rect(userWidth+gapWidth, 0, userWidth+gapWidth+celebWidth, targetHeight), celeb, celeb.Bounds(), xdraw.Over, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, canvas); err != nil {
		return nil, domain.NewSynthesisError("encode composite", err)
	}
	return out.Bytes(), nil
}

// scaledWidth preserves aspect ratio at the target height, truncating like
// the layout math the proxy clients expect.
func scaledWidth(bounds image.Rectangle) int {
	w := bounds.Dx()
	h := bounds.Dy()
	if h == 0 {
		return 0
	}
	return w * targetHeight / h
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
