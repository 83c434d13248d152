package inference

import "sync"

type noopLock struct{}

func (noopLock) Lock()   {}
func (noopLock) Unlock() {}

var (
	serialMu  sync.Mutex
	serialize bool
	runMu     sync.Mutex
)

// SetSerialized controls whether Session.Run calls are serialized behind one
// process-wide mutex. Sessions pick the setting up when they are created,
// so it must be called before models are loaded.
func SetSerialized(on bool) {
	serialMu.Lock()
	defer serialMu.Unlock()
	serialize = on
}

// Serialized reports the current setting.
func Serialized() bool {
	serialMu.Lock()
	defer serialMu.Unlock()
	return serialize
}

func sharedLock() sync.Locker {
	if Serialized() {
		return &runMu
	}
	return noopLock{}
}
