package perception

import (
	"image"
	"image/color"
	"image/draw"
)

// orient flips the frame horizontally when flip is set, matching a
// camera mounted mirrored relative to the turret's aim axes.
func orient(src image.Image, flip bool) image.Image {
	if !flip {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-(x-b.Min.X), y, src.At(x, y))
		}
	}
	return dst
}

// padToSquare letterboxes src into a W x W canvas (W = the longer side),
// centering the original image and filling the margins black.
func padToSquare(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	side := w
	if h > side {
		side = h
	}
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	ox, oy := (side-w)/2, (side-h)/2
	draw.Draw(dst, image.Rect(ox, oy, ox+w, oy+h), src, b.Min, draw.Src)
	return dst
}

// resizeSquare nearest-neighbour resizes a square image to size x size,
// the model's expected input resolution.
func resizeSquare(src image.Image, size int) *image.RGBA {
	b := src.Bounds()
	srcSide := b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		sy := b.Min.Y + y*srcSide/size
		for x := 0; x < size; x++ {
			sx := b.Min.X + x*srcSide/size
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

// preprocess runs the full pipeline: orient, pad to square, resize to
// the model's input size. Tensor normalization (pixel scaling,
// channel ordering) is the concrete detector backend's responsibility,
// since it depends on that backend's expected input layout.
func preprocess(src image.Image, flip bool, modelSize int) *image.RGBA {
	oriented := orient(src, flip)
	squared := padToSquare(oriented)
	return resizeSquare(squared, modelSize)
}
