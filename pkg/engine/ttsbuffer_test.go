package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeTTSSynth is a TTSProvider test double with a configurable delay so
// tests can observe IsBusy() while a synthesis is in flight.
type fakeTTSSynth struct {
	mu      sync.Mutex
	delay   time.Duration
	calls   int
	fail    bool
	payload []byte
}

func (f *fakeTTSSynth) Synthesize(ctx context.Context, text string, voice VoiceID, lang Language) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	delay := f.delay
	fail := f.fail
	payload := f.payload
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return nil, errors.New("synthesis failed")
	}
	if payload == nil {
		payload = []byte{1, 2, 3, 4}
	}
	return payload, nil
}

func (f *fakeTTSSynth) StreamSynthesize(ctx context.Context, text string, voice VoiceID, lang Language, onChunk func([]byte) error) error {
	audio, err := f.Synthesize(ctx, text, voice, lang)
	if err != nil {
		return err
	}
	return onChunk(audio)
}

func (f *fakeTTSSynth) Name() string { return "fake-tts" }

func TestTTSBufferGenerateAsyncAppendsToBuffer(t *testing.T) {
	provider := &fakeTTSSynth{payload: []byte{1, 2, 3, 4}}
	buf := NewTTSBuffer(provider, nil, &NoOpLogger{})

	done := make(chan struct{})
	var ok bool
	buf.GenerateAsync(context.Background(), "hello", func(success bool, message string) {
		ok = success
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("GenerateAsync callback never fired")
	}

	if !ok {
		t.Fatal("expected successful generation")
	}
	if buf.GetBufferSize() != 4 {
		t.Fatalf("expected 4 buffered bytes, got %d", buf.GetBufferSize())
	}
	if !buf.HasAudio() {
		t.Fatal("expected HasAudio to be true")
	}
}

func TestTTSBufferGenerateAsyncEmptyTextIsNoop(t *testing.T) {
	provider := &fakeTTSSynth{}
	buf := NewTTSBuffer(provider, nil, &NoOpLogger{})

	var got bool
	var msg string
	buf.GenerateAsync(context.Background(), "   ", func(success bool, message string) {
		got = success
		msg = message
	})

	if got {
		t.Fatal("expected empty text to fail without calling the provider")
	}
	if msg == "" {
		t.Fatal("expected a rejection message")
	}
	if provider.calls != 0 {
		t.Fatalf("provider should not have been called, calls = %d", provider.calls)
	}
}

func TestTTSBufferIsBusyDuringGeneration(t *testing.T) {
	provider := &fakeTTSSynth{delay: 50 * time.Millisecond}
	buf := NewTTSBuffer(provider, nil, &NoOpLogger{})

	done := make(chan struct{})
	buf.GenerateAsync(context.Background(), "hello", func(success bool, message string) { close(done) })

	time.Sleep(10 * time.Millisecond)
	if !buf.IsBusy() {
		t.Fatal("expected IsBusy to be true while synthesis is in flight")
	}

	<-done
	if buf.IsBusy() {
		t.Fatal("expected IsBusy to be false once synthesis completes")
	}
}

func TestTTSBufferGenerationFailureReportsFalse(t *testing.T) {
	provider := &fakeTTSSynth{fail: true}
	buf := NewTTSBuffer(provider, nil, &NoOpLogger{})

	done := make(chan struct{})
	var ok bool
	buf.GenerateAsync(context.Background(), "hello", func(success bool, message string) {
		ok = success
		close(done)
	})
	<-done

	if ok {
		t.Fatal("expected a failed synthesis to report success=false")
	}
	if buf.HasAudio() {
		t.Fatal("expected the buffer to remain empty after a failed synthesis")
	}
}

func TestTTSBufferClearBufferEmptiesIt(t *testing.T) {
	provider := &fakeTTSSynth{payload: []byte{9, 9}}
	buf := NewTTSBuffer(provider, nil, &NoOpLogger{})

	done := make(chan struct{})
	buf.GenerateAsync(context.Background(), "hi", func(success bool, message string) { close(done) })
	<-done

	buf.ClearBuffer()
	if buf.HasAudio() {
		t.Fatal("expected ClearBuffer to empty the buffer")
	}
}
