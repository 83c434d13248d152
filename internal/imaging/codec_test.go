package imaging

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func solid(rows, cols int, v float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func TestEncodeDecodeKeepsDimensions(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
		quality    int
	}{
		{name: "landscape q95", rows: 48, cols: 64, quality: 95},
		{name: "portrait q100", rows: 101, cols: 37, quality: 100},
		{name: "tiny q0", rows: 1, cols: 1, quality: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := solid(tt.rows, tt.cols, 128)
			defer img.Close()

			b, err := Encode(img, tt.quality)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			mt, err := Sniff(b)
			if err != nil || mt != "image/jpeg" {
				t.Errorf("Expected image/jpeg, got %q (%v)", mt, err)
			}

			back, err := Decode(b)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			defer back.Close()

			if back.Rows() != tt.rows || back.Cols() != tt.cols {
				t.Errorf("Expected %dx%d, got %dx%d", tt.cols, tt.rows, back.Cols(), back.Rows())
			}
			if back.Channels() != 3 {
				t.Errorf("Expected 3 channels, got %d", back.Channels())
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrEmpty},
		{name: "text", data: []byte("definitely not a picture"), want: ErrNotImage},
		{name: "pdf", data: []byte("%PDF-1.7\n1 0 obj\n"), want: ErrNotImage},
		// Unknown binary is handed to OpenCV, which rejects it.
		{name: "unknown binary", data: []byte{0x00, 0x9c, 0x13, 0x37, 0xfe, 0x01, 0x80, 0x7f, 0x00, 0x42}, want: ErrUndecodable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.data)
			defer img.Close()
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecodeTruncatedJPEG(t *testing.T) {
	img := solid(32, 32, 10)
	defer img.Close()
	b, err := Encode(img, 90)
	if err != nil {
		t.Fatal(err)
	}

	// Keep the JPEG magic so sniffing passes but the codec cannot decode.
	broken, err := Decode(b[:4])
	defer broken.Close()
	if err == nil {
		t.Error("Expected error for truncated jpeg, got nil")
	}
}

func TestEncodeErrors(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	if _, err := Encode(empty, 95); err == nil {
		t.Error("Expected error for empty image")
	}

	img := solid(4, 4, 0)
	defer img.Close()
	if _, err := Encode(img, 101); err == nil {
		t.Error("Expected error for quality 101")
	}
}

func TestSniffLetsUnknownBinaryThrough(t *testing.T) {
	mt, err := Sniff([]byte{0x00, 0x9c, 0x13, 0x37, 0xfe, 0x01, 0x80, 0x7f, 0x00, 0x42})
	if err != nil {
		t.Fatalf("Expected unknown binary to pass sniffing, got %v", err)
	}
	if mt != "application/octet-stream" {
		t.Errorf("Expected application/octet-stream, got %s", mt)
	}
}
