package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dudu/faceswapd/internal/pipeline"
)

// SwapService is the part of the pipeline the handler needs.
type SwapService interface {
	Ready() bool
	Swap(ctx context.Context, source, target []byte) ([]byte, error)
}

type SwapHandler struct {
	svc       SwapService
	maxUpload int64
}

func NewSwapHandler(svc SwapService, maxUpload int64) *SwapHandler {
	return &SwapHandler{svc: svc, maxUpload: maxUpload}
}

func (h *SwapHandler) Home(c *gin.Context) {
	c.String(http.StatusOK, "Face Swap API running")
}

func (h *SwapHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ready": h.svc.Ready()})
}

func (h *SwapHandler) Swap(c *gin.Context) {
	ctx := c.Request.Context()

	if !h.svc.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": pipeline.MsgNotReady})
		return
	}

	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	source, err := readField(c, "source")
	if err != nil {
		uploadError(c, err)
		return
	}
	target, err := readField(c, "target")
	if err != nil {
		uploadError(c, err)
		return
	}

	out, err := h.svc.Swap(ctx, source, target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", out)
}

func uploadError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		log.Ctx(c.Request.Context()).Warn().Int64("limit", tooLarge.Limit).Msg("upload too large")
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
		return
	}
	writeError(c, err)
}

// readField returns the bytes of an uploaded file. An absent field is a
// MissingInput error.
func readField(c *gin.Context, name string) ([]byte, error) {
	fh, err := c.FormFile(name)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, pipeline.MissingInput(name)
	}
	return readFile(fh)
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Ctx(c.Request.Context()).Err(err).Str("kind", pipeline.KindOf(err).String()).Msg("swap failed")
	}
	c.JSON(status, gin.H{"error": msg})
}

// statusFor maps a pipeline error to its HTTP status and client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrMissingInput):
		return http.StatusBadRequest, pipeline.MsgMissingInput
	case errors.Is(err, pipeline.ErrInvalidImage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, pipeline.ErrNoFace):
		return http.StatusBadRequest, pipeline.MsgNoFace
	case errors.Is(err, pipeline.ErrModelUnavailable):
		return http.StatusServiceUnavailable, pipeline.MsgNotReady
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
