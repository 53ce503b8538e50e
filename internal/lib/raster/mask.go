package raster

import (
	"errors"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// ApplyMask multiplies the alpha channel of img by a roof mask raster. The
// mask is rendered to a grayscale coverage image, resized to the overlay's
// dimensions with bilinear filtering, and any pixel the mask does not cover
// becomes fully transparent. Band 0 of the mask is used; positive samples
// mean roof.
func ApplyMask(img *image.RGBA, mask Raster) error {
	if img == nil {
		return errors.New("nil overlay image")
	}
	if mask == nil || mask.Width() <= 0 || mask.Height() <= 0 {
		return errors.New("invalid mask raster")
	}

	coverage := image.NewGray(image.Rect(0, 0, mask.Width(), mask.Height()))
	for y := 0; y < mask.Height(); y++ {
		for x := 0; x < mask.Width(); x++ {
			if v := mask.Sample(0, x, y); v > 0 && v != mask.NoData() {
				coverage.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	bounds := img.Bounds()
	resized := coverage
	if coverage.Bounds() != bounds {
		resized = image.NewGray(bounds)
		xdraw.BiLinear.Scale(resized, bounds, coverage, coverage.Bounds(), xdraw.Src, nil)
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := resized.GrayAt(x, y).Y
			if c == 0 {
				img.SetRGBA(x, y, color.RGBA{})
				continue
			}
			// Scale existing alpha by mask coverage so resampled mask
			// edges fade instead of aliasing
			p := img.RGBAAt(x, y)
			p.A = uint8(uint32(p.A) * uint32(c) / 255)
			img.SetRGBA(x, y, p)
		}
	}

	return nil
}
