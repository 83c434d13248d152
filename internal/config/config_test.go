package config

import (
	"go/build"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}
	if c.Addr != ":5000" {
		t.Errorf("Expected :5000, got %s", c.Addr)
	}
	if c.Quality != 95 {
		t.Errorf("Expected quality 95, got %d", c.Quality)
	}
	if c.Sharpen {
		t.Error("Expected sharpen off by default")
	}
	if c.MaxUpload != 32<<20 {
		t.Errorf("Expected 32MiB upload limit, got %d", c.MaxUpload)
	}
}

func TestDefaultModelsAreFetchable(t *testing.T) {
	for _, spec := range Default().Models() {
		if spec.URL == "" {
			t.Errorf("Expected %s to have a default download url", spec.Name)
		}
		if !filepath.IsAbs(spec.Path) {
			t.Errorf("Expected %s to live at an absolute path, got %s", spec.Name, spec.Path)
		}
	}

	specs := Default().Models()
	for i, member := range []string{"det_10g.onnx", "w600k_r50.onnx"} {
		if specs[i].URL != BuffaloURL || specs[i].Member != member {
			t.Errorf("Expected %s from the buffalo_l archive, got %+v", member, specs[i])
		}
	}
	if specs[2].Member != "" {
		t.Errorf("Expected inswapper to be a plain download, got member %q", specs[2].Member)
	}

	if emap := Default().Emap(); emap.URL != "" {
		t.Errorf("Expected no default emap url, got %s", emap.URL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("FACESWAP_QUALITY", "80")
	t.Setenv("FACESWAP_SHARPEN", "true")
	t.Setenv("FACESWAP_MODEL_DIR", "/opt/models")
	t.Setenv("FACESWAP_NMS_THRESHOLD", "0.3")
	t.Setenv("FACESWAP_RECOGNIZER_URL", "https://mirror.example/w600k_r50.onnx")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Addr != ":8081" {
		t.Errorf("Expected :8081, got %s", c.Addr)
	}
	if c.Quality != 80 || !c.Sharpen || c.NMSThreshold != 0.3 {
		t.Errorf("Expected env overrides, got %+v", c)
	}

	specs := c.Models()
	if len(specs) != 3 {
		t.Fatalf("Expected 3 model specs, got %d", len(specs))
	}
	if want := filepath.Join("/opt/models", "det_10g.onnx"); specs[0].Path != want {
		t.Errorf("Expected %s, got %s", want, specs[0].Path)
	}
	if specs[1].Member != "" || specs[1].URL != "https://mirror.example/w600k_r50.onnx" {
		t.Errorf("Expected plain recognizer download, got %+v", specs[1])
	}
	if specs[2].Name != ModelSwapper || specs[2].URL != InswapperURL {
		t.Errorf("Expected inswapper with default url, got %+v", specs[2])
	}
}

func TestAddrBeatsPort(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("FACESWAP_ADDR", "127.0.0.1:9000")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Addr != "127.0.0.1:9000" {
		t.Errorf("Expected 127.0.0.1:9000, got %s", c.Addr)
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("FACESWAP_QUALITY", "high")
	if _, err := Load(); err == nil {
		t.Error("Expected error for non-numeric quality, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"quality too high", func(c *Config) { c.Quality = 101 }},
		{"quality zero", func(c *Config) { c.Quality = 0 }},
		{"detection size not multiple of 32", func(c *Config) { c.DetectionSize = 600 }},
		{"confidence out of range", func(c *Config) { c.ConfThreshold = 1.5 }},
		{"nms zero", func(c *Config) { c.NMSThreshold = 0 }},
		{"no upload", func(c *Config) { c.MaxUpload = 0 }},
		{"no inswapper", func(c *Config) { c.InswapperPath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestImportsStayLight(t *testing.T) {
	pkg, err := build.ImportDir(".", 0)
	if err != nil {
		t.Fatalf("ImportDir failed: %v", err)
	}
	for _, imp := range pkg.Imports {
		for _, heavy := range []string{"gocv.io/", "github.com/gin-gonic/", "/internal/server", "/internal/imaging"} {
			if strings.Contains(imp, heavy) {
				t.Errorf("config must not import %s", imp)
			}
		}
	}
}
