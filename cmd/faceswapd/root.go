package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dudu/faceswapd/internal/config"
)

// Version is the application version.
const Version = "0.1.0"

// cfg starts from the defaults overridden by the environment; flags bound
// below override both.
var cfg, envErr = config.Load()

var rootCmd = &cobra.Command{
	Use:           "faceswapd",
	Short:         "Face swap HTTP service",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(cfg.LogLevel, cfg.LogPretty); err != nil {
			return err
		}
		if envErr != nil {
			return fmt.Errorf("invalid environment: %w", envErr)
		}
		return cfg.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command until it returns or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("faceswapd failed")
		stop()
		os.Exit(1)
	}
}

func setupLogging(level string, pretty bool) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	zerolog.DefaultContextLogger = &log.Logger
	return nil
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (trace, debug, info, warn, error)")
	f.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "Human readable console logs")

	f.StringVar(&cfg.ModelDir, "model-dir", cfg.ModelDir, "Directory holding det_10g.onnx, w600k_r50.onnx and emap.bin")
	f.StringVar(&cfg.InswapperPath, "inswapper", cfg.InswapperPath, "Path of inswapper_128.onnx, downloaded when absent")
	f.StringVar(&cfg.InswapperURL, "inswapper-url", cfg.InswapperURL, "Download URL of inswapper_128.onnx")
	f.StringVar(&cfg.DetectorURL, "detector-url", cfg.DetectorURL, "Download URL of det_10g.onnx")
	f.StringVar(&cfg.RecognizerURL, "recognizer-url", cfg.RecognizerURL, "Download URL of w600k_r50.onnx")
	f.StringVar(&cfg.EmapURL, "emap-url", cfg.EmapURL, "Download URL of emap.bin")
	f.StringVar(&cfg.OnnxRuntimeLib, "ort-lib", cfg.OnnxRuntimeLib, "Path of the onnxruntime shared library")

	f.IntVar(&cfg.DetectionSize, "det-size", cfg.DetectionSize, "Detector input size (multiple of 32)")
	f.Float64Var(&cfg.ConfThreshold, "conf-threshold", cfg.ConfThreshold, "Face detection confidence threshold")
	f.Float64Var(&cfg.NMSThreshold, "nms-threshold", cfg.NMSThreshold, "Face detection NMS threshold")
	f.IntVar(&cfg.Quality, "quality", cfg.Quality, "JPEG quality of the result (1-100)")
	f.BoolVar(&cfg.Sharpen, "sharpen", cfg.Sharpen, "Sharpen the result after swapping")
	f.BoolVar(&cfg.SerializeInference, "serialize-inference", cfg.SerializeInference, "Allow only one inference call at a time")
}
