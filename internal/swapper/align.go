package swapper

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/dudu/faceswapd/internal/detector"
)

// ArcFace reference landmarks for a 112x112 aligned face
var arcfaceDst = []detector.Point{
	{X: 38.2946, Y: 51.6963}, // left eye
	{X: 73.5318, Y: 51.5014}, // right eye
	{X: 56.0252, Y: 71.7366}, // nose
	{X: 41.5493, Y: 92.3655}, // left mouth
	{X: 70.7299, Y: 92.2041}, // right mouth
}

// Affine is a 2x3 row-major transform [a b tx; c d ty].
type Affine [6]float64

// Apply maps p through the transform.
func (m Affine) Apply(p detector.Point) detector.Point {
	x, y := float64(p.X), float64(p.Y)
	return detector.Point{
		X: float32(m[0]*x + m[1]*y + m[2]),
		Y: float32(m[3]*x + m[4]*y + m[5]),
	}
}

// Invert returns the inverse transform. A degenerate transform inverts to
// the zero transform.
func (m Affine) Invert() Affine {
	det := m[0]*m[4] - m[1]*m[3]
	if det == 0 {
		return Affine{}
	}
	a, b, c, d := m[4]/det, -m[1]/det, -m[3]/det, m[0]/det
	return Affine{
		a, b, -(a*m[2] + b*m[5]),
		c, d, -(c*m[2] + d*m[5]),
	}
}

// Mat converts the transform to a 2x3 CV_64F matrix for gocv warps.
func (m Affine) Mat() gocv.Mat {
	mat := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	for i, v := range m {
		mat.SetDoubleAt(i/3, i%3, v)
	}
	return mat
}

// referencePoints returns the template landmarks for a square crop of the
// given size, following insightface's estimate_norm.
func referencePoints(size int) []detector.Point {
	var ratio, diffX float32
	if size%112 == 0 {
		ratio = float32(size) / 112
	} else {
		ratio = float32(size) / 128
		diffX = 8 * ratio
	}
	pts := make([]detector.Point, len(arcfaceDst))
	for i, p := range arcfaceDst {
		pts[i] = detector.Point{X: p.X*ratio + diffX, Y: p.Y * ratio}
	}
	return pts
}

// EstimateNorm returns the transform taking a face's landmarks onto the
// crop template of the given size.
func EstimateNorm(lm detector.Landmarks, size int) Affine {
	return estimateSimilarity(lm.Points(), referencePoints(size))
}

// estimateSimilarity solves the least squares similarity (rotation,
// uniform scale, translation) mapping src onto dst.
func estimateSimilarity(src, dst []detector.Point) Affine {
	n := float64(len(src))
	if n == 0 || len(dst) != len(src) {
		return Affine{1, 0, 0, 0, 1, 0}
	}

	var sx, sy, dx, dy float64
	for i := range src {
		sx += float64(src[i].X)
		sy += float64(src[i].Y)
		dx += float64(dst[i].X)
		dy += float64(dst[i].Y)
	}
	sx, sy, dx, dy = sx/n, sy/n, dx/n, dy/n

	var num1, num2, den float64
	for i := range src {
		px, py := float64(src[i].X)-sx, float64(src[i].Y)-sy
		qx, qy := float64(dst[i].X)-dx, float64(dst[i].Y)-dy
		num1 += px*qx + py*qy
		num2 += px*qy - py*qx
		den += px*px + py*py
	}
	if den < 1e-12 {
		return Affine{1, 0, dx - sx, 0, 1, dy - sy}
	}

	a, b := num1/den, num2/den
	return Affine{
		a, -b, dx - (a*sx - b*sy),
		b, a, dy - (b*sx + a*sy),
	}
}

// warpCrop cuts the aligned size x size face out of img.
func warpCrop(img gocv.Mat, m Affine, size int) gocv.Mat {
	mat := m.Mat()
	defer mat.Close()

	crop := gocv.NewMat()
	gocv.WarpAffine(img, &crop, mat, image.Pt(size, size))
	return crop
}
