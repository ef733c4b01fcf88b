package engine

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"
)

func TestClassifyLLMErrorDeadlineExceededIsTimeout(t *testing.T) {
	ee := classifyLLMError(context.DeadlineExceeded)
	if ee.Kind != ErrKindLLMTimeout {
		t.Fatalf("expected LLM_TIMEOUT, got %s", ee.Kind)
	}
}

type fakeNetError struct {
	timeout bool
}

func (e *fakeNetError) Error() string   { return "net error" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }

func TestClassifyLLMErrorNetTimeoutIsTimeout(t *testing.T) {
	var netErr net.Error = &fakeNetError{timeout: true}
	ee := classifyLLMError(netErr)
	if ee.Kind != ErrKindLLMTimeout {
		t.Fatalf("expected LLM_TIMEOUT, got %s", ee.Kind)
	}
}

func TestClassifyLLMErrorNetNonTimeoutIsConnection(t *testing.T) {
	var netErr net.Error = &fakeNetError{timeout: false}
	ee := classifyLLMError(netErr)
	if ee.Kind != ErrKindLLMConnection {
		t.Fatalf("expected LLM_CONNECTION, got %s", ee.Kind)
	}
}

func TestClassifyLLMErrorURLTimeoutIsTimeout(t *testing.T) {
	urlErr := &url.Error{Op: "Get", URL: "http://example.com", Err: &fakeNetError{timeout: true}}
	ee := classifyLLMError(urlErr)
	if ee.Kind != ErrKindLLMTimeout {
		t.Fatalf("expected LLM_TIMEOUT, got %s", ee.Kind)
	}
}

func TestClassifyLLMErrorUnrecognizedIsOther(t *testing.T) {
	ee := classifyLLMError(errors.New("boom"))
	if ee.Kind != ErrKindLLMOther {
		t.Fatalf("expected LLM_OTHER, got %s", ee.Kind)
	}
}

func TestClassifyLLMErrorNilReturnsNil(t *testing.T) {
	if classifyLLMError(nil) != nil {
		t.Fatal("expected nil classification for nil error")
	}
}

func TestEngineErrorUnwrapExposesUnderlyingError(t *testing.T) {
	underlying := errors.New("root cause")
	ee := newEngineError(ErrKindTTSFailure, underlying)
	if !errors.Is(ee, underlying) {
		t.Fatal("expected errors.Is to see through to the underlying error")
	}
}
