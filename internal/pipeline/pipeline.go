package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/dudu/faceswapd/internal/detector"
	"github.com/dudu/faceswapd/internal/imaging"
)

// Config holds pipeline configuration
type Config struct {
	// Quality is the JPEG quality of the result, 0..100.
	Quality int
	// Sharpen applies the sharpen kernel once after all faces are swapped.
	Sharpen bool
}

// Timing holds performance timing information
type Timing struct {
	Decode    time.Duration
	Detection time.Duration
	Swap      time.Duration
	Post      time.Duration
	Encode    time.Duration
	Faces     int
	Total     time.Duration
}

// Pipeline orchestrates the face swap process
type Pipeline struct {
	config Config
	codec  Codec
	models Models

	mu         sync.Mutex
	lastTiming Timing
}

// New creates a new face swap pipeline. A zero Quality means
// imaging.DefaultQuality.
func New(config Config, codec Codec, models Models) *Pipeline {
	if config.Quality == 0 {
		config.Quality = imaging.DefaultQuality
	}
	return &Pipeline{
		config: config,
		codec:  codec,
		models: models,
	}
}

// Ready reports whether the model handles are loaded.
func (p *Pipeline) Ready() bool {
	_, err := p.models.Get()
	return err == nil
}

// Swap decodes both uploads, transplants the first source face onto every
// target face and returns the composite as JPEG. Every error it returns is
// an *Error.
func (p *Pipeline) Swap(ctx context.Context, source, target []byte) ([]byte, error) {
	totalStart := time.Now()
	var timing Timing

	handles, err := p.models.Get()
	if err != nil {
		return nil, newError(KindModelUnavailable, MsgNotReady, err)
	}

	decodeStart := time.Now()
	src, err := p.codec.Decode(source)
	if err != nil {
		src.Close()
		return nil, newError(KindInvalidImage, "invalid source image", err)
	}
	defer src.Close()

	tgt, err := p.codec.Decode(target)
	if err != nil {
		tgt.Close()
		return nil, newError(KindInvalidImage, "invalid target image", err)
	}
	defer tgt.Close()
	timing.Decode = time.Since(decodeStart)

	composite, err := p.swapImages(ctx, handles, src, tgt, &timing)
	if err != nil {
		return nil, err
	}
	defer composite.Close()

	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	encodeStart := time.Now()
	out, err := p.codec.Encode(composite, p.config.Quality)
	if err != nil {
		return nil, newError(KindEncodingFailure, "failed to encode result", err)
	}
	timing.Encode = time.Since(encodeStart)

	timing.Total = time.Since(totalStart)
	p.setTiming(timing)

	log.Ctx(ctx).Debug().
		Int("faces", timing.Faces).
		Dur("decode", timing.Decode).
		Dur("detection", timing.Detection).
		Dur("swap", timing.Swap).
		Dur("post", timing.Post).
		Dur("encode", timing.Encode).
		Dur("total", timing.Total).
		Int("bytes", len(out)).
		Msg("swap finished")

	return out, nil
}

// SwapImages runs the swap on decoded images. The inputs are left
// untouched. On success the caller owns and must close the returned Mat.
func (p *Pipeline) SwapImages(ctx context.Context, source, target gocv.Mat) (gocv.Mat, error) {
	totalStart := time.Now()
	var timing Timing

	handles, err := p.models.Get()
	if err != nil {
		return gocv.Mat{}, newError(KindModelUnavailable, MsgNotReady, err)
	}

	out, err := p.swapImages(ctx, handles, source, target, &timing)
	if err != nil {
		return gocv.Mat{}, err
	}

	timing.Total = time.Since(totalStart)
	p.setTiming(timing)
	return out, nil
}

func (p *Pipeline) swapImages(ctx context.Context, h Handles, source, target gocv.Mat, timing *Timing) (gocv.Mat, error) {
	if err := checkContext(ctx); err != nil {
		return gocv.Mat{}, err
	}

	detectStart := time.Now()
	sourceFaces, err := h.Analyzer.Analyze(source)
	if err != nil {
		return gocv.Mat{}, newError(KindInferenceFailure, "source analysis failed", err)
	}
	targetFaces, err := h.Analyzer.Analyze(target)
	if err != nil {
		return gocv.Mat{}, newError(KindInferenceFailure, "target analysis failed", err)
	}
	timing.Detection = time.Since(detectStart)

	log.Ctx(ctx).Debug().
		Int("source_faces", len(sourceFaces)).
		Int("target_faces", len(targetFaces)).
		Dur("elapsed", timing.Detection).
		Msg("faces analyzed")

	if len(sourceFaces) == 0 || len(targetFaces) == 0 {
		return gocv.Mat{}, newError(KindNoFaceDetected, MsgNoFace, nil)
	}

	if err := checkContext(ctx); err != nil {
		return gocv.Mat{}, err
	}

	swapStart := time.Now()
	composite, err := swapAll(h.Swapper, target, targetFaces, sourceFaces[0])
	if err != nil {
		return gocv.Mat{}, err
	}
	timing.Swap = time.Since(swapStart)
	timing.Faces = len(targetFaces)

	if p.config.Sharpen {
		postStart := time.Now()
		sharpened := imaging.Sharpen(composite)
		composite.Close()
		composite = sharpened
		timing.Post = time.Since(postStart)
	}

	return composite, nil
}

// swapAll swaps source onto every target face in order. Each swap runs on
// the previous swap's output.
func swapAll(s Swapper, target gocv.Mat, faces []detector.Face, source detector.Face) (gocv.Mat, error) {
	composite := target.Clone()
	for i, face := range faces {
		next, err := s.Swap(composite, face, source)
		composite.Close()
		if err != nil {
			return gocv.Mat{}, newError(KindInferenceFailure, fmt.Sprintf("swap of face %d failed", i), err)
		}
		composite = next
	}
	return composite, nil
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return newError(KindInferenceFailure, "swap cancelled", err)
	}
	return nil
}

func (p *Pipeline) setTiming(t Timing) {
	p.mu.Lock()
	p.lastTiming = t
	p.mu.Unlock()
}

// LastTiming returns timing from the last successful swap
func (p *Pipeline) LastTiming() Timing {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTiming
}
