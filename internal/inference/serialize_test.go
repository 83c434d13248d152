package inference

import (
	"sync"
	"testing"
)

func TestSharedLock(t *testing.T) {
	defer SetSerialized(false)

	SetSerialized(false)
	if _, ok := sharedLock().(noopLock); !ok {
		t.Errorf("Expected noop lock when serialization is off, got %T", sharedLock())
	}

	SetSerialized(true)
	a, b := sharedLock(), sharedLock()
	if a != b {
		t.Error("Expected every session to share the same mutex")
	}
	if _, ok := a.(*sync.Mutex); !ok {
		t.Errorf("Expected *sync.Mutex, got %T", a)
	}
}

func TestNewSessionRequiresInitialize(t *testing.T) {
	if Initialized() {
		t.Skip("runtime already initialized by another test")
	}
	_, err := NewSession("missing.onnx", []string{"in"}, []string{"out"})
	if err != ErrNotInitialized {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
}
