package swapper

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/dudu/faceswapd/internal/detector"
)

// pasteBack warps the swapped crop back into img's geometry and feathers
// it in through an eroded, blurred mask of the crop footprint. The result
// is a new image; img is left untouched.
func pasteBack(img, fake gocv.Mat, m Affine) gocv.Mat {
	size := fake.Cols()
	frame := image.Pt(img.Cols(), img.Rows())

	inv := m.Invert()
	invMat := inv.Mat()
	defer invMat.Close()

	warpedFake := gocv.NewMat()
	defer warpedFake.Close()
	gocv.WarpAffine(fake, &warpedFake, invMat, frame)

	white := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), size, size, gocv.MatTypeCV8U)
	defer white.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.WarpAffine(white, &mask, invMat, frame)
	gocv.Threshold(mask, &mask, 20, 255, gocv.ThresholdBinary)

	erode, blur := maskKernels(footprint(inv, size, frame))

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(erode, erode))
	defer kernel.Close()
	gocv.Erode(mask, &mask, kernel)
	gocv.GaussianBlur(mask, &mask, image.Pt(blur, blur), 0, 0, gocv.BorderDefault)

	return alphaBlend(img, warpedFake, mask)
}

// footprint is the clipped bounding box of the crop square mapped into the
// frame through inv.
func footprint(inv Affine, size int, frame image.Point) image.Rectangle {
	s := float32(size)
	corners := []detector.Point{{X: 0, Y: 0}, {X: s, Y: 0}, {X: 0, Y: s}, {X: s, Y: s}}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		p := inv.Apply(c)
		minX, maxX = math.Min(minX, float64(p.X)), math.Max(maxX, float64(p.X))
		minY, maxY = math.Min(minY, float64(p.Y)), math.Max(maxY, float64(p.Y))
	}

	r := image.Rect(int(minX), int(minY), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
	return r.Intersect(image.Rect(0, 0, frame.X, frame.Y))
}

// maskKernels returns the erosion kernel size and the odd Gaussian blur
// size for a mask footprint, scaled the way insightface's paste_back does.
func maskKernels(r image.Rectangle) (erode, blur int) {
	maskSize := int(math.Sqrt(float64(r.Dx() * r.Dy())))
	erode = max(maskSize/10, 10)
	blur = 2*max(maskSize/20, 5) + 1
	return erode, blur
}

// alphaBlend computes mask*fake + (1-mask)*img with an 8-bit mask.
func alphaBlend(img, fake, mask gocv.Mat) gocv.Mat {
	alpha := gocv.NewMat()
	defer alpha.Close()
	mask.ConvertToWithParams(&alpha, gocv.MatTypeCV32F, 1.0/255.0, 0)

	alpha3 := gocv.NewMat()
	defer alpha3.Close()
	gocv.Merge([]gocv.Mat{alpha, alpha, alpha}, &alpha3)

	base := gocv.NewMat()
	defer base.Close()
	img.ConvertTo(&base, gocv.MatTypeCV32FC3)

	over := gocv.NewMat()
	defer over.Close()
	fake.ConvertTo(&over, gocv.MatTypeCV32FC3)

	// base + alpha*(over - base)
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Subtract(over, base, &diff)
	gocv.Multiply(diff, alpha3, &diff)
	gocv.Add(base, diff, &base)

	out := gocv.NewMat()
	base.ConvertTo(&out, gocv.MatTypeCV8UC3)
	return out
}
