package pipeline

import (
	"gocv.io/x/gocv"

	"github.com/dudu/faceswapd/internal/detector"
)

// Codec decodes uploads and encodes results. The Mat returned by Decode
// belongs to the caller, also when an error is returned.
type Codec interface {
	Decode(b []byte) (gocv.Mat, error)
	Encode(img gocv.Mat, quality int) ([]byte, error)
}

// Analyzer returns every face in an image, with embeddings, in a stable
// order
type Analyzer interface {
	Analyze(img gocv.Mat) ([]detector.Face, error)
}

// Swapper replaces one target face with the source identity and pastes the
// result back. It returns a new image and must not modify img.
type Swapper interface {
	Swap(img gocv.Mat, target, source detector.Face) (gocv.Mat, error)
}

// Handles are the shared, read-only model handles.
type Handles struct {
	Analyzer Analyzer
	Swapper  Swapper
}

// Models hands out the model handles once they are ready, and
// models.ErrNotReady before that.
type Models interface {
	Get() (Handles, error)
}
