package swapper

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dudu/faceswapd/internal/detector"
)

// Field numbers from onnx.proto.
const (
	modelGraphField       = 7
	graphInitializerField = 5
	tensorDimsField       = 1
	tensorDataTypeField   = 2
	tensorFloatDataField  = 4
	tensorRawDataField    = 9

	tensorFloat = 1
)

// LoadEmapFromModel reads the emap out of an inswapper ONNX file, where it
// is stored as the last graph initializer. The file is streamed so only
// one initializer is held in memory at a time.
func LoadEmapFromModel(path string) (*Emap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()

	emap, err := ReadEmapFromModel(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return emap, nil
}

// ReadEmapFromModel decodes a serialized ONNX ModelProto from r and
// returns its last initializer as an emap.
func ReadEmapFromModel(r *bufio.Reader) (*Emap, error) {
	var (
		emap    Emap
		seen    bool
		matched bool
		buf     []byte
	)
	top := &fieldReader{r: r, n: math.MaxInt64}
	for {
		num, typ, err := top.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if num != modelGraphField || typ != protowire.BytesType {
			if err := top.skip(typ); err != nil {
				return nil, err
			}
			continue
		}

		size, err := top.varint()
		if err != nil {
			return nil, err
		}
		graph := &fieldReader{r: r, n: int64(size)}
		top.n -= int64(size)
		for graph.n > 0 {
			num, typ, err := graph.next()
			if err != nil {
				return nil, fmt.Errorf("graph: %w", err)
			}
			if num != graphInitializerField || typ != protowire.BytesType {
				if err := graph.skip(typ); err != nil {
					return nil, fmt.Errorf("graph: %w", err)
				}
				continue
			}
			buf, err = graph.bytes(buf)
			if err != nil {
				return nil, fmt.Errorf("initializer: %w", err)
			}
			seen = true
			matched, err = decodeEmapTensor(buf, &emap)
			if err != nil {
				return nil, fmt.Errorf("initializer: %w", err)
			}
		}
	}

	if !seen {
		return nil, errors.New("model has no initializers")
	}
	if !matched {
		return nil, errors.New("last initializer is not a 512x512 float tensor")
	}
	return &emap, nil
}

// decodeEmapTensor fills emap from a TensorProto when it holds a
// 512x512 float32 matrix and reports whether it did.
func decodeEmapTensor(b []byte, emap *Emap) (bool, error) {
	var (
		dims     []int64
		dataType uint64
		raw      []byte
		floats   []byte
		unpacked []float32
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return false, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == tensorDimsField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return false, protowire.ParseError(n)
			}
			dims = append(dims, int64(v))
			b = b[n:]
		case num == tensorDimsField && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return false, protowire.ParseError(n)
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return false, protowire.ParseError(m)
				}
				dims = append(dims, int64(v))
				packed = packed[m:]
			}
			b = b[n:]
		case num == tensorDataTypeField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return false, protowire.ParseError(n)
			}
			dataType = v
			b = b[n:]
		case num == tensorRawDataField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return false, protowire.ParseError(n)
			}
			raw = v
			b = b[n:]
		case num == tensorFloatDataField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return false, protowire.ParseError(n)
			}
			floats = append(floats, v...)
			b = b[n:]
		case num == tensorFloatDataField && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return false, protowire.ParseError(n)
			}
			unpacked = append(unpacked, math.Float32frombits(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return false, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}

	if dataType != tensorFloat || !slices.Equal(dims, []int64{detector.EmbeddingSize, detector.EmbeddingSize}) {
		return false, nil
	}
	switch {
	case len(raw) == emapSize:
		fillEmap(emap, raw)
	case len(floats) == emapSize:
		fillEmap(emap, floats)
	case len(unpacked) == detector.EmbeddingSize*detector.EmbeddingSize:
		for i, v := range unpacked {
			emap[i/detector.EmbeddingSize][i%detector.EmbeddingSize] = v
		}
	default:
		return false, nil
	}
	return true, nil
}

func fillEmap(emap *Emap, le []byte) {
	for i := range emap {
		for j := range emap[i] {
			off := (i*detector.EmbeddingSize + j) * 4
			emap[i][j] = math.Float32frombits(binary.LittleEndian.Uint32(le[off:]))
		}
	}
}

// fieldReader walks protobuf fields on a stream, with n bytes left in
// the current message.
type fieldReader struct {
	r *bufio.Reader
	n int64
}

func (f *fieldReader) next() (protowire.Number, protowire.Type, error) {
	tag, err := f.varint()
	if err != nil {
		return 0, 0, err
	}
	num, typ := protowire.DecodeTag(tag)
	if num < protowire.MinValidNumber {
		return 0, 0, fmt.Errorf("invalid field number %d", num)
	}
	return num, typ, nil
}

func (f *fieldReader) varint() (uint64, error) {
	var v uint64
	for shift := uint(0); shift < 64; shift += 7 {
		if f.n <= 0 {
			return 0, io.ErrUnexpectedEOF
		}
		c, err := f.r.ReadByte()
		if err != nil {
			if shift > 0 && errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		f.n--
		v |= uint64(c&0x7f) << shift
		if c < 0x80 {
			return v, nil
		}
	}
	return 0, errors.New("varint overflow")
}

func (f *fieldReader) discard(n int64) error {
	if n > f.n {
		return io.ErrUnexpectedEOF
	}
	for n > 0 {
		step := int(min(n, 1<<30))
		d, err := f.r.Discard(step)
		f.n -= int64(d)
		n -= int64(d)
		if err != nil {
			return noEOF(err)
		}
	}
	return nil
}

func (f *fieldReader) skip(typ protowire.Type) error {
	switch typ {
	case protowire.VarintType:
		_, err := f.varint()
		return noEOF(err)
	case protowire.Fixed32Type:
		return f.discard(4)
	case protowire.Fixed64Type:
		return f.discard(8)
	case protowire.BytesType:
		size, err := f.varint()
		if err != nil {
			return noEOF(err)
		}
		return f.discard(int64(size))
	default:
		return fmt.Errorf("unsupported wire type %d", typ)
	}
}

// bytes reads a length-delimited value into buf, reusing its storage.
func (f *fieldReader) bytes(buf []byte) ([]byte, error) {
	size, err := f.varint()
	if err != nil {
		return nil, noEOF(err)
	}
	if int64(size) > f.n {
		return nil, io.ErrUnexpectedEOF
	}
	if uint64(cap(buf)) < size {
		buf = make([]byte, size)
	}
	buf = buf[:size]
	if _, err := io.ReadFull(f.r, buf); err != nil {
		return nil, noEOF(err)
	}
	f.n -= int64(size)
	return buf, nil
}

func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
