package imaging

import (
	"image"

	"gocv.io/x/gocv"
)

var sharpenKernel = [3][3]float32{
	{0, -1, 0},
	{-1, 5, -1},
	{0, -1, 0},
}

// Sharpen applies the fixed 3x3 sharpening kernel to every channel of img
// and returns a new Mat of the same size and depth. Borders follow
// OpenCV's default (reflect 101).
func Sharpen(img gocv.Mat) gocv.Mat {
	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	for y, row := range sharpenKernel {
		for x, v := range row {
			kernel.SetFloatAt(y, x, v)
		}
	}

	out := gocv.NewMat()
	gocv.Filter2D(img, &out, -1, kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)
	return out
}
