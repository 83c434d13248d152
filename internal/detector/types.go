package detector

import "math"

// EmbeddingSize is the length of an ArcFace identity vector.
const EmbeddingSize = 512

// Embedding is an L2-normalized identity vector.
type Embedding [EmbeddingSize]float32

// Normalize scales e to unit length in place. A zero vector is left as is.
func (e *Embedding) Normalize() {
	var norm float64
	for _, v := range e {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm < 1e-10 {
		return
	}
	for i := range e {
		e[i] = float32(float64(e[i]) / norm)
	}
}

// Point represents a 2D point
type Point struct {
	X, Y float32
}

// BoundingBox represents a face bounding box
type BoundingBox struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// Width returns box width
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Area returns box area
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// Landmarks holds the five SCRFD keypoints in insightface order.
type Landmarks struct {
	LeftEye    Point // index 0
	RightEye   Point // index 1
	Nose       Point // index 2
	LeftMouth  Point // index 3
	RightMouth Point // index 4
}

// Points returns the landmarks as a slice in keypoint order.
func (l Landmarks) Points() []Point {
	return []Point{l.LeftEye, l.RightEye, l.Nose, l.LeftMouth, l.RightMouth}
}

// Face is one detected face. Geometry is in the pixel space of the image
// it was detected on; the embedding is image independent.
type Face struct {
	BoundingBox BoundingBox
	Landmarks   Landmarks
	Score       float32
	Embedding   *Embedding
}
