package inference

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrNotInitialized is returned when a session is requested before Initialize.
var ErrNotInitialized = errors.New("onnx runtime not initialized")

var (
	initialized bool
	initMu      sync.Mutex
)

// Initialize sets up the ONNX Runtime environment. It is safe to call more
// than once; only the first call loads the shared library.
func Initialize(libPath string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized {
		return nil
	}

	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	initialized = true
	log.Debug().Str("lib", libPath).Str("version", ort.GetVersion()).Msg("onnx runtime initialized")
	return nil
}

// Shutdown cleans up the ONNX Runtime environment
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return nil
	}

	if err := ort.DestroyEnvironment(); err != nil {
		return err
	}

	initialized = false
	return nil
}

// Initialized reports whether Initialize has completed.
func Initialized() bool {
	initMu.Lock()
	defer initMu.Unlock()
	return initialized
}

// Session wraps an ONNX Runtime inference session
type Session struct {
	session *ort.DynamicAdvancedSession
	lock    sync.Locker
}

// NewSession creates an inference session for modelPath. CoreML is tried
// first and the session falls back to the CPU provider when it is missing.
func NewSession(modelPath string, inputNames, outputNames []string) (*Session, error) {
	if !Initialized() {
		return nil, ErrNotInitialized
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if err := options.AppendExecutionProviderCoreML(0); err != nil {
		log.Debug().Str("model", modelPath).Err(err).Msg("coreml unavailable, using cpu")
	} else {
		log.Debug().Str("model", modelPath).Msg("coreml provider enabled")
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		inputNames,
		outputNames,
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", modelPath, err)
	}

	return &Session{
		session: session,
		lock:    sharedLock(),
	}, nil
}

// Run executes inference with the given inputs. When serialization is
// enabled only one Run is in flight across all sessions.
func (s *Session) Run(inputs []ort.Value, outputs []ort.Value) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.session.Run(inputs, outputs)
}

// Destroy releases session resources
func (s *Session) Destroy() error {
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}

// CreateTensor creates a tensor with the given shape and data
func CreateTensor[T ort.TensorData](shape []int64, data []T) (*ort.Tensor[T], error) {
	return ort.NewTensor(ort.NewShape(shape...), data)
}

// CreateEmptyTensor creates a zeroed tensor for output
func CreateEmptyTensor[T ort.TensorData](shape []int64) (*ort.Tensor[T], error) {
	return ort.NewEmptyTensor[T](ort.NewShape(shape...))
}
