package swapper

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/faceswapd/internal/detector"
	"github.com/dudu/faceswapd/internal/inference"
)

const arcfaceSize = 112

// ArcFaceEncoder extracts identity embeddings using ArcFace
type ArcFaceEncoder struct {
	session *inference.Session
}

// NewArcFaceEncoder creates a new ArcFace encoder. The default node names
// match insightface's w600k_r50 export.
func NewArcFaceEncoder(modelPath, inputName, outputName string) (*ArcFaceEncoder, error) {
	if inputName == "" {
		inputName = "input.1"
	}
	if outputName == "" {
		outputName = "683"
	}

	session, err := inference.NewSession(modelPath, []string{inputName}, []string{outputName})
	if err != nil {
		return nil, fmt.Errorf("failed to create ArcFace session: %w", err)
	}

	return &ArcFaceEncoder{session: session}, nil
}

// Embed aligns the face in img and returns its normalized embedding.
func (e *ArcFaceEncoder) Embed(img gocv.Mat, face detector.Face) (*detector.Embedding, error) {
	aligned := warpCrop(img, EstimateNorm(face.Landmarks, arcfaceSize), arcfaceSize)
	defer aligned.Close()
	return e.Extract(aligned)
}

// Extract computes the embedding of an already aligned 112x112 face
func (e *ArcFaceEncoder) Extract(alignedFace gocv.Mat) (*detector.Embedding, error) {
	if alignedFace.Rows() != arcfaceSize || alignedFace.Cols() != arcfaceSize {
		return nil, fmt.Errorf("expected %dx%d input, got %dx%d",
			arcfaceSize, arcfaceSize, alignedFace.Cols(), alignedFace.Rows())
	}

	// (x - 127.5) / 127.5, BGR -> RGB
	blob := gocv.BlobFromImage(alignedFace, 1.0/127.5, image.Pt(arcfaceSize, arcfaceSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read input blob: %w", err)
	}

	inputTensor, err := inference.CreateTensor([]int64{1, 3, arcfaceSize, arcfaceSize}, append([]float32(nil), data...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, detector.EmbeddingSize})
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := e.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	var embedding detector.Embedding
	copy(embedding[:], outputTensor.GetData())
	embedding.Normalize()
	return &embedding, nil
}

// Close releases encoder resources
func (e *ArcFaceEncoder) Close() error {
	return e.session.Destroy()
}
