package swapper

import (
	"math"
	"testing"

	"github.com/dudu/faceswapd/internal/detector"
)

func near(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestEstimateSimilarityRecoversTransform(t *testing.T) {
	// 30 degree rotation, scale 1.5, shift (12, -7)
	theta := math.Pi / 6
	s := 1.5
	want := Affine{
		s * math.Cos(theta), -s * math.Sin(theta), 12,
		s * math.Sin(theta), s * math.Cos(theta), -7,
	}

	dst := make([]detector.Point, len(arcfaceDst))
	for i, p := range arcfaceDst {
		dst[i] = want.Apply(p)
	}

	got := estimateSimilarity(arcfaceDst, dst)
	for i := range want {
		if !near(got[i], want[i], 1e-3) {
			t.Errorf("coefficient %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestAffineInvert(t *testing.T) {
	m := Affine{0.5, -0.2, 10, 0.2, 0.5, -4}
	inv := m.Invert()

	p := detector.Point{X: 33, Y: 71}
	back := inv.Apply(m.Apply(p))
	if !near(float64(back.X), float64(p.X), 1e-3) || !near(float64(back.Y), float64(p.Y), 1e-3) {
		t.Errorf("Expected round trip to %v, got %v", p, back)
	}

	if (Affine{}).Invert() != (Affine{}) {
		t.Error("Expected degenerate transform to invert to zero")
	}
}

func TestReferencePoints(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		first detector.Point
	}{
		{name: "arcface 112", size: 112, first: arcfaceDst[0]},
		{name: "arcface 224", size: 224, first: detector.Point{X: arcfaceDst[0].X * 2, Y: arcfaceDst[0].Y * 2}},
		{name: "inswapper 128", size: 128, first: detector.Point{X: arcfaceDst[0].X + 8, Y: arcfaceDst[0].Y}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := referencePoints(tt.size)[0]
			if !near(float64(got.X), float64(tt.first.X), 1e-4) || !near(float64(got.Y), float64(tt.first.Y), 1e-4) {
				t.Errorf("Expected %v, got %v", tt.first, got)
			}
		})
	}
}

func TestEstimateNormIdentity(t *testing.T) {
	ref := referencePoints(128)
	lm := detector.Landmarks{
		LeftEye: ref[0], RightEye: ref[1], Nose: ref[2], LeftMouth: ref[3], RightMouth: ref[4],
	}
	m := EstimateNorm(lm, 128)
	want := Affine{1, 0, 0, 0, 1, 0}
	for i := range want {
		if !near(m[i], want[i], 1e-4) {
			t.Errorf("coefficient %d: got %f, want %f", i, m[i], want[i])
		}
	}
}
