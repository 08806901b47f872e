package postprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	watermarkPadding = 20
	watermarkMinFont = 32
	watermarkDivisor = 20
	shadowOffsetY    = 2
)

var (
	watermarkFontOnce sync.Once
	watermarkFont     *opentype.Font
	watermarkFontErr  error
)

// Watermark overlays text anchored to the bottom-right corner, sized
// proportionally to the image width with a fixed floor, white over a drop
// shadow for legibility against varied backgrounds. Dimensions are always
// preserved; applying the mark twice stacks the text.
func Watermark(data []byte, text string) ([]byte, error) {
	if text == "" {
		return data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("postprocess: decode image: %w", err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, bounds.Min, draw.Src)

	fontSize := bounds.Dx() / watermarkDivisor
	if fontSize < watermarkMinFont {
		fontSize = watermarkMinFont
	}

	face, err := watermarkFace(float64(fontSize))
	if err != nil {
		return nil, err
	}
	defer face.Close()

	advance := font.MeasureString(face, text)
	x := bounds.Dx() - watermarkPadding - advance.Ceil()
	y := bounds.Dy() - watermarkPadding

	drawText := func(dx, dy int, c color.Color) {
		d := &font.Drawer{
			Dst:  canvas,
			Src:  image.NewUniform(c),
			Face: face,
			Dot:  fixed.P(x+dx, y+dy),
		}
		d.DrawString(text)
	}

	drawText(0, shadowOffsetY, color.NRGBA{A: 76})
	drawText(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 153})

	var out bytes.Buffer
	if err := png.Encode(&out, canvas); err != nil {
		return nil, fmt.Errorf("postprocess: encode image: %w", err)
	}
	return out.Bytes(), nil
}

// Process runs the full finishing chain: trim, then watermark.
func Process(data []byte, watermarkText string) ([]byte, error) {
	return Watermark(Trim(data), watermarkText)
}

func watermarkFace(size float64) (font.Face, error) {
	watermarkFontOnce.Do(func() {
		watermarkFont, watermarkFontErr = opentype.Parse(goregular.TTF)
	})
	if watermarkFontErr != nil {
		return nil, fmt.Errorf("postprocess: parse watermark font: %w", watermarkFontErr)
	}
	face, err := opentype.NewFace(watermarkFont, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("postprocess: build watermark face: %w", err)
	}
	return face, nil
}
