package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrorKind classifies a failure so the warnings counter and embedders can
// react by category instead of matching error strings.
type ErrorKind string

const (
	ErrKindNoPhysicalMic    ErrorKind = "NO_PHYSICAL_MIC"
	ErrKindNoVirtualDevice  ErrorKind = "NO_VIRTUAL_DEVICE"
	ErrKindDeviceOpenFailure ErrorKind = "DEVICE_OPEN_FAILURE"
	ErrKindSTTTransient     ErrorKind = "STT_TRANSIENT"
	ErrKindLLMConnection    ErrorKind = "LLM_CONNECTION"
	ErrKindLLMTimeout       ErrorKind = "LLM_TIMEOUT"
	ErrKindLLMOther         ErrorKind = "LLM_OTHER"
	ErrKindTTSFailure       ErrorKind = "TTS_FAILURE"
	ErrKindMixerFatal       ErrorKind = "MIXER_FATAL"
	ErrKindParseError       ErrorKind = "PARSE_ERROR"
)

// EngineError wraps an underlying error with a classification. Workers never
// let a bare error or panic escape to an embedder; they wrap it in one of
// these and hand it to the warnings counter.
type EngineError struct {
	Kind ErrorKind
	Err  error
}

func (e *EngineError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func newEngineError(kind ErrorKind, err error) *EngineError {
	return &EngineError{Kind: kind, Err: err}
}

var (
	ErrEmptyTranscript   = errors.New("engine: empty transcription")
	ErrNilProvider       = errors.New("engine: provider is nil")
	ErrContextCancelled  = errors.New("engine: context cancelled")
	ErrNoActiveSession   = errors.New("engine: no active session")
)

// classifyLLMError turns an arbitrary error from an LLMProvider call into
// an EngineError of kind LLMConnection, LLMTimeout or LLMOther. It is shared
// by the translation worker, the insight engine and the chat service so the
// three keep identical failure semantics.
func classifyLLMError(err error) *EngineError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newEngineError(ErrKindLLMTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return newEngineError(ErrKindLLMTimeout, err)
		}
		return newEngineError(ErrKindLLMConnection, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return newEngineError(ErrKindLLMTimeout, err)
		}
		return newEngineError(ErrKindLLMConnection, err)
	}
	return newEngineError(ErrKindLLMOther, err)
}
