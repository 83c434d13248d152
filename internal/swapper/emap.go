package swapper

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/dudu/faceswapd/internal/detector"
)

const emapSize = detector.EmbeddingSize * detector.EmbeddingSize * 4

// Emap is the 512x512 projection from ArcFace space into the latent space
// inswapper was trained on.
type Emap [detector.EmbeddingSize][detector.EmbeddingSize]float32

// LoadEmap reads a little-endian float32 row-major emap file.
func LoadEmap(path string) (*Emap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open emap file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat emap file: %w", err)
	}
	if info.Size() != emapSize {
		return nil, fmt.Errorf("emap file size mismatch: expected %d, got %d", emapSize, info.Size())
	}

	return ReadEmap(bufio.NewReader(f))
}

// ReadEmap decodes an emap from r.
func ReadEmap(r io.Reader) (*Emap, error) {
	var emap Emap
	if err := binary.Read(r, binary.LittleEndian, &emap); err != nil {
		return nil, fmt.Errorf("read emap: %w", err)
	}
	return &emap, nil
}

// Latent computes normalize(embedding · emap).
func (e *Emap) Latent(embedding *detector.Embedding) *detector.Embedding {
	var latent detector.Embedding
	for i, v := range embedding {
		if v == 0 {
			continue
		}
		row := &e[i]
		for j := range latent {
			latent[j] += v * row[j]
		}
	}
	latent.Normalize()
	return &latent
}
