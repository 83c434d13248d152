package swapper

import (
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/dudu/faceswapd/internal/detector"
)

func TestMaskKernels(t *testing.T) {
	tests := []struct {
		name        string
		rect        image.Rectangle
		erode, blur int
	}{
		{name: "large face", rect: image.Rect(0, 0, 256, 256), erode: 25, blur: 25},
		{name: "small face", rect: image.Rect(0, 0, 40, 40), erode: 10, blur: 11},
		{name: "empty", rect: image.Rectangle{}, erode: 10, blur: 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			erode, blur := maskKernels(tt.rect)
			if erode != tt.erode || blur != tt.blur {
				t.Errorf("maskKernels() = (%d, %d), want (%d, %d)", erode, blur, tt.erode, tt.blur)
			}
		})
	}
}

func TestFootprintIsClipped(t *testing.T) {
	// crop pixel (x, y) comes from frame pixel (2x - 50, 2y - 50)
	inv := Affine{2, 0, -50, 0, 2, -50}
	got := footprint(inv, 128, image.Pt(300, 300))
	want := image.Rect(0, 0, 206, 206)
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestPasteBack(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 100, 100, 0), 400, 400, gocv.MatTypeCV8UC3)
	defer img.Close()
	fake := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 200, 200, 0), inswapperSize, inswapperSize, gocv.MatTypeCV8UC3)
	defer fake.Close()

	// Landmarks at twice the template scale, shifted by 100: the crop
	// footprint covers [100, 356) in both axes.
	ref := referencePoints(inswapperSize)
	pts := make([]detector.Point, len(ref))
	for i, p := range ref {
		pts[i] = detector.Point{X: p.X*2 + 100, Y: p.Y*2 + 100}
	}
	lm := detector.Landmarks{LeftEye: pts[0], RightEye: pts[1], Nose: pts[2], LeftMouth: pts[3], RightMouth: pts[4]}

	out := pasteBack(img, fake, EstimateNorm(lm, inswapperSize))
	defer out.Close()

	if out.Rows() != img.Rows() || out.Cols() != img.Cols() {
		t.Fatalf("Expected %dx%d output, got %dx%d", img.Cols(), img.Rows(), out.Cols(), out.Rows())
	}
	if v := out.GetVecbAt(228, 228)[0]; v < 195 {
		t.Errorf("Expected face center to take the swapped pixels, got %d", v)
	}
	if v := out.GetVecbAt(5, 5)[0]; v != 100 {
		t.Errorf("Expected background to be untouched, got %d", v)
	}
	if v := img.GetVecbAt(228, 228)[0]; v != 100 {
		t.Errorf("Expected input image to be unmodified, got %d", v)
	}
}

func TestPlanarRGBToBGR(t *testing.T) {
	const size = 2
	data := make([]float32, size*size*3)
	for i := 0; i < size*size; i++ {
		data[i] = 1            // R
		data[size*size+i] = 0.5 // G
		data[2*size*size+i] = 0 // B
	}

	mat, err := planarRGBToBGR(data, size)
	if err != nil {
		t.Fatalf("planarRGBToBGR failed: %v", err)
	}
	defer mat.Close()

	px := mat.GetVecbAt(1, 1)
	if px[0] != 0 || px[1] != 127 || px[2] != 255 {
		t.Errorf("Expected BGR (0,127,255), got (%d,%d,%d)", px[0], px[1], px[2])
	}

	if _, err := planarRGBToBGR(data[:3], size); err == nil {
		t.Error("Expected short buffer error, got nil")
	}
}
