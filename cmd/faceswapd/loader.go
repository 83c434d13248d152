package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/dudu/faceswapd/internal/analyzer"
	"github.com/dudu/faceswapd/internal/config"
	"github.com/dudu/faceswapd/internal/detector"
	"github.com/dudu/faceswapd/internal/inference"
	"github.com/dudu/faceswapd/internal/models"
	"github.com/dudu/faceswapd/internal/pipeline"
	"github.com/dudu/faceswapd/internal/swapper"
)

// loader provisions the model files and builds the handles from them.
type loader struct {
	cfg     config.Config
	fetcher *models.Fetcher
}

func newLoader(c config.Config, progress io.Writer) *loader {
	return &loader{cfg: c, fetcher: models.NewFetcher(progress)}
}

func (l *loader) Load(ctx context.Context) (pipeline.Handles, error) {
	paths := make(map[string]string)
	for _, spec := range l.cfg.Models() {
		path, err := l.fetcher.Ensure(ctx, spec)
		if err != nil {
			return pipeline.Handles{}, err
		}
		paths[spec.Name] = path
	}

	inference.SetSerialized(l.cfg.SerializeInference)
	if err := inference.Initialize(l.cfg.OnnxRuntimeLib); err != nil {
		return pipeline.Handles{}, err
	}

	det, err := detector.NewSCRFD(paths[config.ModelDetector], detector.Options{
		InputSize:     l.cfg.DetectionSize,
		ConfThreshold: float32(l.cfg.ConfThreshold),
		NMSThreshold:  float32(l.cfg.NMSThreshold),
	})
	if err != nil {
		return pipeline.Handles{}, fmt.Errorf("failed to create detector: %w", err)
	}

	enc, err := swapper.NewArcFaceEncoder(paths[config.ModelRecognizer], "", "")
	if err != nil {
		det.Close()
		return pipeline.Handles{}, fmt.Errorf("failed to create encoder: %w", err)
	}
	an := analyzer.New(det, enc)

	emap, err := l.loadEmap(ctx, paths[config.ModelSwapper])
	if err != nil {
		an.Close()
		return pipeline.Handles{}, fmt.Errorf("failed to load emap: %w", err)
	}

	gen, err := swapper.NewInswapper(paths[config.ModelSwapper], emap)
	if err != nil {
		an.Close()
		return pipeline.Handles{}, fmt.Errorf("failed to create generator: %w", err)
	}

	log.Info().Bool("serialized", inference.Serialized()).Msg("Swapper initialized and ready!")
	return pipeline.Handles{Analyzer: an, Swapper: gen}, nil
}

// loadEmap prefers a standalone emap file, downloaded when a URL is set,
// and otherwise reads it out of the inswapper model.
func (l *loader) loadEmap(ctx context.Context, swapperPath string) (*swapper.Emap, error) {
	spec := l.cfg.Emap()
	if spec.URL != "" {
		path, err := l.fetcher.Ensure(ctx, spec)
		if err != nil {
			return nil, err
		}
		return swapper.LoadEmap(path)
	}
	if _, err := os.Stat(spec.Path); err == nil {
		return swapper.LoadEmap(spec.Path)
	}
	log.Debug().Str("model", swapperPath).Msg("reading emap from inswapper initializers")
	return swapper.LoadEmapFromModel(swapperPath)
}

// releaseHandles closes whatever the handles own.
func releaseHandles(h pipeline.Handles) error {
	var errs []error
	if c, ok := h.Analyzer.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := h.Swapper.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
