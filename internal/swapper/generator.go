package swapper

import (
	"errors"
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/faceswapd/internal/detector"
	"github.com/dudu/faceswapd/internal/inference"
)

const inswapperSize = 128

// ErrNoEmbedding is returned when the source face was never embedded.
var ErrNoEmbedding = errors.New("source face has no embedding")

// Inswapper performs face swapping using the inswapper_128 model
type Inswapper struct {
	session *inference.Session
	emap    *Emap
}

// NewInswapper creates a new face swapper
func NewInswapper(modelPath string, emap *Emap) (*Inswapper, error) {
	if emap == nil {
		return nil, errors.New("inswapper needs an emap")
	}

	session, err := inference.NewSession(modelPath, []string{"target", "source"}, []string{"output"})
	if err != nil {
		return nil, fmt.Errorf("failed to create Inswapper session: %w", err)
	}

	return &Inswapper{
		session: session,
		emap:    emap,
	}, nil
}

// Swap replaces target's face in img with source's identity and pastes the
// result back into a copy of img. img itself is not modified. On error
// the returned Mat is zero and must not be used.
func (s *Inswapper) Swap(img gocv.Mat, target, source detector.Face) (gocv.Mat, error) {
	if source.Embedding == nil {
		return gocv.Mat{}, ErrNoEmbedding
	}

	m := EstimateNorm(target.Landmarks, inswapperSize)
	aligned := warpCrop(img, m, inswapperSize)
	defer aligned.Close()

	fake, err := s.generate(aligned, s.emap.Latent(source.Embedding))
	if err != nil {
		return gocv.Mat{}, err
	}
	defer fake.Close()

	return pasteBack(img, fake, m), nil
}

// generate runs the model on an aligned 128x128 face and returns the
// swapped crop as a BGR image.
func (s *Inswapper) generate(aligned gocv.Mat, latent *detector.Embedding) (gocv.Mat, error) {
	// x / 255, BGR -> RGB
	blob := gocv.BlobFromImage(aligned, 1.0/255.0, image.Pt(inswapperSize, inswapperSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("read target blob: %w", err)
	}

	targetTensor, err := inference.CreateTensor([]int64{1, 3, inswapperSize, inswapperSize}, append([]float32(nil), data...))
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to create target tensor: %w", err)
	}
	defer targetTensor.Destroy()

	sourceTensor, err := inference.CreateTensor([]int64{1, detector.EmbeddingSize}, append([]float32(nil), latent[:]...))
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to create source tensor: %w", err)
	}
	defer sourceTensor.Destroy()

	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 3, inswapperSize, inswapperSize})
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	err = s.session.Run(
		[]ort.Value{targetTensor, sourceTensor},
		[]ort.Value{outputTensor},
	)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("inference failed: %w", err)
	}

	return planarRGBToBGR(outputTensor.GetData(), inswapperSize)
}

// planarRGBToBGR converts NCHW RGB floats in [0, 1] into an interleaved
// BGR image.
func planarRGBToBGR(data []float32, size int) (gocv.Mat, error) {
	plane := size * size
	if len(data) < plane*3 {
		return gocv.Mat{}, fmt.Errorf("output has %d values, want %d", len(data), plane*3)
	}

	pixels := make([]byte, plane*3)
	for i := 0; i < plane; i++ {
		pixels[i*3+0] = clampByte(data[2*plane+i] * 255)
		pixels[i*3+1] = clampByte(data[plane+i] * 255)
		pixels[i*3+2] = clampByte(data[i] * 255)
	}
	return gocv.NewMatFromBytes(size, size, gocv.MatTypeCV8UC3, pixels)
}

// Close releases swapper resources
func (s *Inswapper) Close() error {
	return s.session.Destroy()
}

func clampByte(v float32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
