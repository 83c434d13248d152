// Package analyzer combines detection and recognition into the face
// analysis step the swap pipeline consumes: every detected face comes back
// with its geometry and its identity embedding.
package analyzer

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/dudu/faceswapd/internal/detector"
)

// FaceDetector finds faces in an image.
type FaceDetector interface {
	Detect(img gocv.Mat) ([]detector.Face, error)
	Close() error
}

// FaceEncoder computes identity embeddings for a detected face.
type FaceEncoder interface {
	Embed(img gocv.Mat, face detector.Face) (*detector.Embedding, error)
	Close() error
}

// Analyzer runs detection followed by recognition.
type Analyzer struct {
	detector FaceDetector
	encoder  FaceEncoder
}

// New creates an analyzer owning det and enc.
func New(det FaceDetector, enc FaceEncoder) *Analyzer {
	return &Analyzer{detector: det, encoder: enc}
}

// Analyze returns every face in img, in detector order, with embeddings.
func (a *Analyzer) Analyze(img gocv.Mat) ([]detector.Face, error) {
	faces, err := a.detector.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}

	for i := range faces {
		emb, err := a.encoder.Embed(img, faces[i])
		if err != nil {
			return nil, fmt.Errorf("embedding face %d failed: %w", i, err)
		}
		faces[i].Embedding = emb
	}
	return faces, nil
}

// Close releases the detector and encoder.
func (a *Analyzer) Close() error {
	var errs []error
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.encoder != nil {
		if err := a.encoder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
