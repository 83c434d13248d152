package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dudu/faceswapd/internal/models"
)

const (
	// InswapperURL is where the swapper weights are fetched from when absent.
	InswapperURL = "https://drive.google.com/uc?export=download&id=1ow4J2gNhbIG3Scrqfm_I2O31OR_kQ1M0"
	// BuffaloURL is the insightface model pack holding the detector and
	// recognizer.
	BuffaloURL = "https://github.com/deepinsight/insightface/releases/download/v0.7/buffalo_l.zip"

	defaultMaxUpload = 32 << 20
	defaultQuality   = 95
)

// Config holds service configuration
type Config struct {
	Addr        string
	MaxUpload   int64
	AllowOrigin string

	ModelDir       string
	InswapperPath  string
	InswapperURL   string
	DetectorURL    string
	RecognizerURL  string
	EmapURL        string
	OnnxRuntimeLib string

	DetectionSize      int
	ConfThreshold      float64
	NMSThreshold       float64
	Quality            int
	Sharpen            bool
	SerializeInference bool

	LogLevel  string
	LogPretty bool
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:          ":5000",
		MaxUpload:     defaultMaxUpload,
		AllowOrigin:   "*",
		ModelDir:      defaultModelDir(),
		InswapperPath: filepath.Join(os.TempDir(), "inswapper_128.onnx"),
		InswapperURL:  InswapperURL,
		DetectorURL:   BuffaloURL,
		RecognizerURL: BuffaloURL,
		DetectionSize: 640,
		ConfThreshold: 0.5,
		NMSThreshold:  0.4,
		Quality:       defaultQuality,
		LogLevel:      "info",
	}
}

// defaultModelDir is where insightface itself keeps buffalo_l.
func defaultModelDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "faceswapd", "buffalo_l")
	}
	return filepath.Join(home, ".insightface", "models", "buffalo_l")
}

// Load returns the defaults overridden by environment variables.
func Load() (Config, error) {
	c := Default()
	err := c.applyEnv()
	return c, err
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}
	c.Addr = getEnv("FACESWAP_ADDR", c.Addr)
	c.AllowOrigin = getEnv("FACESWAP_ALLOW_ORIGIN", c.AllowOrigin)
	c.ModelDir = getEnv("FACESWAP_MODEL_DIR", c.ModelDir)
	c.InswapperPath = getEnv("FACESWAP_INSWAPPER", c.InswapperPath)
	c.InswapperURL = getEnv("FACESWAP_INSWAPPER_URL", c.InswapperURL)
	c.DetectorURL = getEnv("FACESWAP_DETECTOR_URL", c.DetectorURL)
	c.RecognizerURL = getEnv("FACESWAP_RECOGNIZER_URL", c.RecognizerURL)
	c.EmapURL = getEnv("FACESWAP_EMAP_URL", c.EmapURL)
	c.OnnxRuntimeLib = getEnv("ONNXRUNTIME_LIB", c.OnnxRuntimeLib)
	c.LogLevel = getEnv("FACESWAP_LOG_LEVEL", c.LogLevel)

	var errs []error
	errs = append(errs,
		envInt64("FACESWAP_MAX_UPLOAD", &c.MaxUpload),
		envInt("FACESWAP_DET_SIZE", &c.DetectionSize),
		envFloat("FACESWAP_CONF_THRESHOLD", &c.ConfThreshold),
		envFloat("FACESWAP_NMS_THRESHOLD", &c.NMSThreshold),
		envInt("FACESWAP_QUALITY", &c.Quality),
		envBool("FACESWAP_SHARPEN", &c.Sharpen),
		envBool("FACESWAP_SERIALIZE_INFERENCE", &c.SerializeInference),
		envBool("FACESWAP_LOG_PRETTY", &c.LogPretty),
	)
	return errors.Join(errs...)
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, fmt.Errorf("quality must be in 1..100, got %d", c.Quality))
	}
	if c.DetectionSize <= 0 || c.DetectionSize%32 != 0 {
		errs = append(errs, fmt.Errorf("detection size must be a positive multiple of 32, got %d", c.DetectionSize))
	}
	if c.ConfThreshold <= 0 || c.ConfThreshold >= 1 {
		errs = append(errs, fmt.Errorf("confidence threshold must be in (0,1), got %g", c.ConfThreshold))
	}
	if c.NMSThreshold <= 0 || c.NMSThreshold >= 1 {
		errs = append(errs, fmt.Errorf("nms threshold must be in (0,1), got %g", c.NMSThreshold))
	}
	if c.MaxUpload <= 0 {
		errs = append(errs, fmt.Errorf("max upload must be positive, got %d", c.MaxUpload))
	}
	if c.InswapperPath == "" {
		errs = append(errs, errors.New("inswapper path is required"))
	}
	return errors.Join(errs...)
}

// Model names used by the loader.
const (
	ModelDetector   = "detector"
	ModelRecognizer = "recognizer"
	ModelSwapper    = "inswapper"
	ModelEmap       = "emap"
)

// Models lists the artifacts the service needs, in load order. A URL
// ending in .zip is treated as an archive holding the file.
func (c Config) Models() []models.Spec {
	return []models.Spec{
		fileSpec(ModelDetector, filepath.Join(c.ModelDir, "det_10g.onnx"), c.DetectorURL),
		fileSpec(ModelRecognizer, filepath.Join(c.ModelDir, "w600k_r50.onnx"), c.RecognizerURL),
		{Name: ModelSwapper, Path: c.InswapperPath, URL: c.InswapperURL},
	}
}

// Emap describes a standalone emap file. It is optional: without a URL or
// a cached file the loader reads the emap from the inswapper model.
func (c Config) Emap() models.Spec {
	return models.Spec{Name: ModelEmap, Path: filepath.Join(c.ModelDir, "emap.bin"), URL: c.EmapURL}
}

func fileSpec(name, path, url string) models.Spec {
	s := models.Spec{Name: name, Path: path, URL: url}
	if strings.HasSuffix(strings.ToLower(url), ".zip") {
		s.Member = filepath.Base(path)
	}
	return s
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envInt(key string, dst *int) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
