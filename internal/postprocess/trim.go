// Package postprocess applies the deterministic finishing chain to a
// synthesized image: border trim, then watermark. Both steps are pure
// functions over image bytes with no shared state.
package postprocess

import (
	"bytes"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"
)

// trimTolerance is how far below full white a channel may sit and still
// count as background. Generation artifacts leave slightly off-white
// padding, not pure white.
const trimTolerance = 10

// Trim removes uniform near-white borders around the image content. When no
// such border exists, or when the input cannot be decoded at all, the input
// bytes pass through unmodified; a trim failure must never abort a job.
func Trim(data []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	content := contentBounds(img)
	if content.Empty() || content == img.Bounds() {
		return data
	}

	cropped := image.NewRGBA(image.Rect(0, 0, content.Dx(), content.Dy()))
	for y := 0; y < content.Dy(); y++ {
		for x := 0; x < content.Dx(); x++ {
			cropped.Set(x, y, img.At(content.Min.X+x, content.Min.Y+y))
		}
	}

	var out bytes.Buffer
	if err := png.Encode(&out, cropped); err != nil {
		return data
	}
	return out.Bytes()
}

// contentBounds is the bounding box of all non-background pixels.
func contentBounds(img image.Image) image.Rectangle {
	bounds := img.Bounds()
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X-1, bounds.Min.Y-1

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if isBackground(img, x, y) {
				continue
			}
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < minX || maxY < minY {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

func isBackground(img image.Image, x, y int) bool {
	r, g, b, _ := img.At(x, y).RGBA()
	limit := uint32(255-trimTolerance) * 257
	return r >= limit && g >= limit && b >= limit
}
