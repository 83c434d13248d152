// Package imaging decodes uploads into BGR rasters, encodes results as
// JPEG and holds the optional sharpening post-process.
package imaging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"gocv.io/x/gocv"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 95

var (
	// ErrEmpty is returned for a zero length upload.
	ErrEmpty = errors.New("empty image data")
	// ErrNotImage is returned when the upload is recognizably something
	// other than an image.
	ErrNotImage = errors.New("not an image")
	// ErrUndecodable is returned when OpenCV cannot decode the data.
	ErrUndecodable = errors.New("unsupported or corrupt image")
)

// unknownBinary is what mimetype reports for binary data it has no
// signature for. OpenCV gets a chance to decode it.
const unknownBinary = "application/octet-stream"

// Sniff returns the detected MIME type of b. It fails for empty data and
// for any recognized type that is not an image.
func Sniff(b []byte) (string, error) {
	if len(b) == 0 {
		return "", ErrEmpty
	}
	mt := mimetype.Detect(b)
	if !strings.HasPrefix(mt.String(), "image/") && !mt.Is(unknownBinary) {
		return mt.String(), fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}
	return mt.String(), nil
}

// Decode turns an encoded image into a 3-channel BGR Mat. The caller owns
// the returned Mat.
func Decode(b []byte) (gocv.Mat, error) {
	if _, err := Sniff(b); err != nil {
		return gocv.NewMat(), err
	}

	img, err := gocv.IMDecode(b, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("decode: %w", err)
	}
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("decode: %w", ErrUndecodable)
	}
	return img, nil
}

// Encode compresses img as JPEG at the given quality (0-100).
func Encode(img gocv.Mat, quality int) ([]byte, error) {
	if img.Empty() {
		return nil, errors.New("encode: empty image")
	}
	if quality < 0 || quality > 100 {
		return nil, fmt.Errorf("encode: quality %d out of range 0-100", quality)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	defer buf.Close()

	out := buf.GetBytes()
	if len(out) == 0 {
		return nil, errors.New("encode: encoder produced no data")
	}
	return append([]byte(nil), out...), nil
}

// Codec is the gocv backed image codec.
type Codec struct{}

// Decode implements the pipeline codec.
func (Codec) Decode(b []byte) (gocv.Mat, error) { return Decode(b) }

// Encode implements the pipeline codec.
func (Codec) Encode(img gocv.Mat, quality int) ([]byte, error) { return Encode(img, quality) }
