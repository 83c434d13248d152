package detector

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/faceswapd/internal/inference"
)

// DefaultOutputNames are the output nodes of insightface's det_10g export,
// grouped as scores, boxes and keypoints for strides 8, 16 and 32.
var DefaultOutputNames = []string{
	"448", "471", "494",
	"451", "474", "497",
	"454", "477", "500",
}

// Options configures an SCRFD detector.
type Options struct {
	InputName     string
	OutputNames   []string
	InputSize     int
	ConfThreshold float32
	NMSThreshold  float32
}

func (o *Options) withDefaults() {
	if o.InputName == "" {
		o.InputName = "input.1"
	}
	if len(o.OutputNames) == 0 {
		o.OutputNames = DefaultOutputNames
	}
	if o.InputSize == 0 {
		o.InputSize = 640
	}
	if o.ConfThreshold == 0 {
		o.ConfThreshold = 0.5
	}
	if o.NMSThreshold == 0 {
		o.NMSThreshold = 0.4
	}
}

// SCRFD implements the SCRFD face detector
type SCRFD struct {
	session        *inference.Session
	opts           Options
	featureStrides []int
	numAnchors     int
}

// NewSCRFD creates a new SCRFD detector
func NewSCRFD(modelPath string, opts Options) (*SCRFD, error) {
	opts.withDefaults()
	if len(opts.OutputNames) != 9 {
		return nil, fmt.Errorf("scrfd needs 9 outputs, got %d", len(opts.OutputNames))
	}
	if opts.InputSize%32 != 0 {
		return nil, fmt.Errorf("scrfd input size %d is not a multiple of 32", opts.InputSize)
	}

	session, err := inference.NewSession(modelPath, []string{opts.InputName}, opts.OutputNames)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCRFD session: %w", err)
	}

	return &SCRFD{
		session:        session,
		opts:           opts,
		featureStrides: []int{8, 16, 32},
		numAnchors:     2,
	}, nil
}

// Detect finds faces in a BGR image. Faces come back ordered by
// descending score.
func (s *SCRFD) Detect(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	input, scale, err := s.preprocess(img)
	if err != nil {
		return nil, err
	}

	size := int64(s.opts.InputSize)
	inputTensor, err := inference.CreateTensor([]int64{1, 3, size, size}, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// nil outputs are allocated by the runtime, which keeps us independent
	// of whether the export carries a batch dimension.
	outputs := make([]ort.Value, len(s.opts.OutputNames))
	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	data := make([][]float32, len(outputs))
	for i, o := range outputs {
		t, ok := o.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("output %s is not a float32 tensor", s.opts.OutputNames[i])
		}
		data[i] = t.GetData()
	}

	var faces []Face
	for level, stride := range s.featureStrides {
		faces = append(faces, decodeLevel(
			data[level], data[level+3], data[level+6],
			stride, s.opts.InputSize, s.numAnchors,
			s.opts.ConfThreshold, scale,
		)...)
	}

	return nms(faces, s.opts.NMSThreshold), nil
}

// preprocess letterboxes img into the top-left corner of a square canvas
// and returns the NCHW blob plus the applied scale.
func (s *SCRFD) preprocess(img gocv.Mat) ([]float32, float32, error) {
	size := s.opts.InputSize
	height, width := img.Rows(), img.Cols()

	scale := float32(size) / float32(max(height, width))
	newWidth := max(1, int(float32(width)*scale))
	newHeight := max(1, int(float32(height)*scale))

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)

	canvas := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size, size, gocv.MatTypeCV8UC3)
	defer canvas.Close()
	roi := canvas.Region(image.Rect(0, 0, newWidth, newHeight))
	resized.CopyTo(&roi)
	roi.Close()

	// (x - 127.5) / 128, BGR -> RGB
	blob := gocv.BlobFromImage(canvas, 1.0/128.0, image.Pt(size, size),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, 0, fmt.Errorf("read input blob: %w", err)
	}
	return append([]float32(nil), data...), scale, nil
}

// decodeLevel turns one stride's raw outputs into faces in original image
// coordinates. Anchors are laid out row-major with numAnchors per cell.
func decodeLevel(scores, boxes, kps []float32, stride, inputSize, numAnchors int, threshold, scale float32) []Face {
	cells := inputSize / stride
	fs := float32(stride)

	var faces []Face
	idx := 0
	for y := 0; y < cells; y++ {
		for x := 0; x < cells; x++ {
			cx := float32(x * stride)
			cy := float32(y * stride)
			for a := 0; a < numAnchors; a, idx = a+1, idx+1 {
				if idx >= len(scores) || scores[idx] < threshold {
					continue
				}
				b := boxes[idx*4 : idx*4+4]
				k := kps[idx*10 : idx*10+10]

				pt := func(i int) Point {
					return Point{
						X: (cx + k[i*2]*fs) / scale,
						Y: (cy + k[i*2+1]*fs) / scale,
					}
				}

				faces = append(faces, Face{
					BoundingBox: BoundingBox{
						X1: (cx - b[0]*fs) / scale,
						Y1: (cy - b[1]*fs) / scale,
						X2: (cx + b[2]*fs) / scale,
						Y2: (cy + b[3]*fs) / scale,
					},
					Landmarks: Landmarks{
						LeftEye:    pt(0),
						RightEye:   pt(1),
						Nose:       pt(2),
						LeftMouth:  pt(3),
						RightMouth: pt(4),
					},
					Score: scores[idx],
				})
			}
		}
	}
	return faces
}

// Close releases detector resources
func (s *SCRFD) Close() error {
	return s.session.Destroy()
}
