package detector

import (
	"math"
	"testing"
)

func TestIOU(t *testing.T) {
	tests := []struct {
		name string
		a, b BoundingBox
		want float32
	}{
		{
			name: "identical",
			a:    BoundingBox{0, 0, 10, 10},
			b:    BoundingBox{0, 0, 10, 10},
			want: 1,
		},
		{
			name: "disjoint",
			a:    BoundingBox{0, 0, 10, 10},
			b:    BoundingBox{20, 20, 30, 30},
			want: 0,
		},
		{
			name: "touching edges",
			a:    BoundingBox{0, 0, 10, 10},
			b:    BoundingBox{10, 0, 20, 10},
			want: 0,
		},
		{
			name: "half overlap",
			a:    BoundingBox{0, 0, 10, 10},
			b:    BoundingBox{5, 0, 15, 10},
			want: 50.0 / 150.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := iou(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("iou() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNMS(t *testing.T) {
	faces := []Face{
		{BoundingBox: BoundingBox{0, 0, 10, 10}, Score: 0.6},
		{BoundingBox: BoundingBox{1, 1, 11, 11}, Score: 0.9},
		{BoundingBox: BoundingBox{50, 50, 60, 60}, Score: 0.7},
	}

	got := nms(faces, 0.4)
	if len(got) != 2 {
		t.Fatalf("Expected 2 faces after NMS, got %d", len(got))
	}
	if got[0].Score != 0.9 {
		t.Errorf("Expected highest score first, got %v", got[0].Score)
	}
	if got[1].Score != 0.7 {
		t.Errorf("Expected the disjoint face second, got %v", got[1].Score)
	}
}

func TestNMSEmpty(t *testing.T) {
	if got := nms(nil, 0.4); len(got) != 0 {
		t.Errorf("Expected no faces, got %d", len(got))
	}
}

func TestDecodeLevel(t *testing.T) {
	// 32px input at stride 16 gives a 2x2 grid with 2 anchors per cell.
	const stride, inputSize, anchors = 16, 32, 2
	n := (inputSize / stride) * (inputSize / stride) * anchors

	scores := make([]float32, n)
	boxes := make([]float32, n*4)
	kps := make([]float32, n*10)

	// Anchor 3 is cell (x=1, y=0), second anchor: center (16, 0).
	scores[3] = 0.8
	copy(boxes[12:16], []float32{0.5, 0, 0.5, 1})
	for i := 0; i < 10; i += 2 {
		kps[30+i] = 0.25
		kps[30+i+1] = 0.5
	}
	scores[5] = 0.2 // below threshold

	faces := decodeLevel(scores, boxes, kps, stride, inputSize, anchors, 0.5, 2)
	if len(faces) != 1 {
		t.Fatalf("Expected 1 face, got %d", len(faces))
	}

	f := faces[0]
	want := BoundingBox{X1: 4, Y1: 0, X2: 12, Y2: 8}
	if f.BoundingBox != want {
		t.Errorf("Expected box %+v, got %+v", want, f.BoundingBox)
	}
	if f.Landmarks.Nose != (Point{X: 10, Y: 4}) {
		t.Errorf("Expected nose at (10,4), got %+v", f.Landmarks.Nose)
	}
	if f.Score != 0.8 {
		t.Errorf("Expected score 0.8, got %v", f.Score)
	}
}

func TestEmbeddingNormalize(t *testing.T) {
	var e Embedding
	e[0], e[1] = 3, 4
	e.Normalize()
	if math.Abs(float64(e[0])-0.6) > 1e-6 || math.Abs(float64(e[1])-0.8) > 1e-6 {
		t.Errorf("Expected (0.6, 0.8), got (%v, %v)", e[0], e[1])
	}

	var zero Embedding
	zero.Normalize()
	if zero[0] != 0 {
		t.Error("Expected zero embedding to stay zero")
	}
}
