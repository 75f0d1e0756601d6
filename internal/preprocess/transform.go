package preprocess

import (
	"image"
	"image/color"
	"math"
	"slices"

	"golang.org/x/image/draw"
)

// flatten composites images with transparency onto white paper so that
// transparent regions do not encode as black.
func flatten(src image.Image) image.Image {
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

// toGray returns a zero-origin grayscale copy of src.
func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// scaleToFit downsizes src so its longest side is at most maxDim. Images
// already within bounds are returned unchanged; nothing is upscaled.
func scaleToFit(src image.Image, maxDim int, gray bool) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if maxDim <= 0 || longest <= maxDim {
		return src
	}
	scale := float64(maxDim) / float64(longest)
	rect := image.Rect(0, 0,
		max(1, int(math.Round(float64(w)*scale))),
		max(1, int(math.Round(float64(h)*scale))),
	)
	var dst draw.Image
	if gray {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewRGBA(rect)
	}
	draw.CatmullRom.Scale(dst, rect, src, b, draw.Src, nil)
	return dst
}

// medianBlur3 applies a 3x3 median filter, replicating edge pixels.
func medianBlur3(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(src.Rect)
	window := make([]uint8, 0, 9)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			window = window[:0]
			for dy := -1; dy <= 1; dy++ {
				yy := min(max(y+dy, 0), h-1)
				for dx := -1; dx <= 1; dx++ {
					xx := min(max(x+dx, 0), w-1)
					window = append(window, src.Pix[yy*src.Stride+xx])
				}
			}
			slices.Sort(window)
			dst.Pix[y*dst.Stride+x] = window[4]
		}
	}
	return dst
}

// adaptiveThreshold binarizes src: a pixel becomes white when it is brighter
// than the mean of its block x block neighbourhood minus offset, black
// otherwise. Block is forced odd and at least 3.
func adaptiveThreshold(src *image.Gray, block, offset int) *image.Gray {
	if block < 3 {
		block = 3
	}
	if block%2 == 0 {
		block++
	}
	radius := block / 2
	w, h := src.Rect.Dx(), src.Rect.Dy()

	// Summed-area table with a zero row and column.
	stride := w + 1
	integral := make([]int64, stride*(h+1))
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(src.Pix[y*src.Stride+x])
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + row
		}
	}

	dst := image.NewGray(src.Rect)
	for y := 0; y < h; y++ {
		y0, y1 := max(y-radius, 0), min(y+radius, h-1)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-radius, 0), min(x+radius, w-1)
			sum := integral[(y1+1)*stride+x1+1] - integral[y0*stride+x1+1] -
				integral[(y1+1)*stride+x0] + integral[y0*stride+x0]
			count := int64((x1 - x0 + 1) * (y1 - y0 + 1))
			mean := float64(sum) / float64(count)
			if float64(src.Pix[y*src.Stride+x]) > mean-float64(offset) {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}
