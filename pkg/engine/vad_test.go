package engine

import (
	"testing"
	"time"
)

func loudChunk() []byte {
	out := make([]byte, 320) // 160 samples
	for i := 0; i+1 < len(out); i += 2 {
		out[i], out[i+1] = 0x00, 0x7f // near full-scale positive
	}
	return out
}

func silentChunk() []byte {
	return make([]byte, 320)
}

func TestRMSVADRequiresConsecutiveFramesBeforeSpeechStart(t *testing.T) {
	v := NewRMSVAD(0.1, 200*time.Millisecond)
	v.SetMinConfirmed(3)

	for i := 0; i < 2; i++ {
		ev, err := v.Process(loudChunk())
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if ev != nil {
			t.Fatalf("expected no event before minConfirmed frames, got %+v at frame %d", ev, i)
		}
	}

	ev, err := v.Process(loudChunk())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ev == nil || ev.Type != VADSpeechStart {
		t.Fatalf("expected VADSpeechStart on the confirming frame, got %+v", ev)
	}
	if !v.IsSpeaking() {
		t.Fatal("expected IsSpeaking true after VADSpeechStart")
	}
}

func TestRMSVADEmitsSpeechEndAfterSilenceLimit(t *testing.T) {
	v := NewRMSVAD(0.1, 0) // zero silence limit: first silent frame ends speech
	v.SetMinConfirmed(1)

	ev, err := v.Process(loudChunk())
	if err != nil || ev == nil || ev.Type != VADSpeechStart {
		t.Fatalf("expected VADSpeechStart, got ev=%+v err=%v", ev, err)
	}

	ev, err = v.Process(silentChunk())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ev == nil || ev.Type != VADSpeechEnd {
		t.Fatalf("expected VADSpeechEnd once silence limit elapses, got %+v", ev)
	}
	if v.IsSpeaking() {
		t.Fatal("expected IsSpeaking false after VADSpeechEnd")
	}
}

func TestRMSVADReportsSilenceWhenNeverSpeaking(t *testing.T) {
	v := NewRMSVAD(0.5, time.Second)
	ev, err := v.Process(silentChunk())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ev == nil || ev.Type != VADSilence {
		t.Fatalf("expected VADSilence, got %+v", ev)
	}
}

func TestRMSVADResetClearsState(t *testing.T) {
	v := NewRMSVAD(0.1, time.Second)
	v.SetMinConfirmed(1)
	if _, err := v.Process(loudChunk()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !v.IsSpeaking() {
		t.Fatal("expected speaking state before Reset")
	}
	v.Reset()
	if v.IsSpeaking() {
		t.Fatal("expected Reset to clear speaking state")
	}
}
