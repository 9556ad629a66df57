package imaging

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// FitWithin returns the largest size with the aspect ratio of width x height
// that fits inside the box. Images already inside the box keep their size.
func FitWithin(width, height, boxWidth, boxHeight int) (int, int) {
	if width <= boxWidth && height <= boxHeight {
		return width, height
	}
	scale := math.Min(float64(boxWidth)/float64(width), float64(boxHeight)/float64(height))
	w := min(boxWidth, max(1, int(math.Round(float64(width)*scale))))
	h := min(boxHeight, max(1, int(math.Round(float64(height)*scale))))
	return w, h
}

// resize scales src to exactly width x height. When src is more than
// preshrink times the target on either axis it is first reduced with
// nearest-neighbour sampling to twice the target, then finished with
// Catmull-Rom. preshrink < 2 disables the first pass.
func resize(src *image.NRGBA, width, height, preshrink int) *image.NRGBA {
	var cur image.Image = src
	sb := src.Bounds()
	if preshrink >= 2 && (sb.Dx() > preshrink*width || sb.Dy() > preshrink*height) {
		mid := image.NewNRGBA(image.Rect(0, 0, min(sb.Dx(), 2*width), min(sb.Dy(), 2*height)))
		draw.NearestNeighbor.Scale(mid, mid.Bounds(), src, sb, draw.Src, nil)
		cur = mid
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), cur, cur.Bounds(), draw.Src, nil)
	return dst
}
