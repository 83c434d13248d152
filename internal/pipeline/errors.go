package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidImage
	KindNoFaceDetected
	KindModelUnavailable
	KindInferenceFailure
	KindEncodingFailure
	KindMissingInput
)

var kindNames = map[Kind]string{
	KindUnknown:          "Unknown",
	KindInvalidImage:     "InvalidImage",
	KindNoFaceDetected:   "NoFaceDetected",
	KindModelUnavailable: "ModelUnavailable",
	KindInferenceFailure: "InferenceFailure",
	KindEncodingFailure:  "EncodingFailure",
	KindMissingInput:     "MissingInput",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the only error type Swap returns.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidImage     = &Error{Kind: KindInvalidImage}
	ErrNoFace           = &Error{Kind: KindNoFaceDetected}
	ErrModelUnavailable = &Error{Kind: KindModelUnavailable}
	ErrInference        = &Error{Kind: KindInferenceFailure}
	ErrEncoding         = &Error{Kind: KindEncodingFailure}
	ErrMissingInput     = &Error{Kind: KindMissingInput}
)

// Messages reported to clients for kinds with a fixed wording.
const (
	MsgNoFace       = "no face detected in one or both images"
	MsgNotReady     = "Swapper model not initialized yet."
	MsgMissingInput = "source and target images required"
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// MissingInput builds the error for an absent upload field.
func MissingInput(field string) *Error {
	return newError(KindMissingInput, MsgMissingInput, fmt.Errorf("field %q is missing", field))
}

// KindOf returns the kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
