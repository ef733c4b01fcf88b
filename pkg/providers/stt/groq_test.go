package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kata-ai/meeting-assistant/pkg/engine"
)

func TestGroqSTT(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		resp := struct {
			Text string `json:"text"`
		}{
			Text: "groq transcription",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := &GroqSTT{
		apiKey:     "test-key",
		url:        server.URL,
		model:      "whisper-large-v3",
		sampleRate: 44100,
	}

	result, _, err := s.Transcribe(context.Background(), []byte{0}, engine.Language("en-US"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != "groq transcription" {
		t.Errorf("expected 'groq transcription', got '%s'", result)
	}

	s.SetSampleRate(16000)
	if s.sampleRate != 16000 {
		t.Errorf("expected 16000, got %d", s.sampleRate)
	}

	if s.Name() != "groq-stt" {
		t.Errorf("expected groq-stt, got %s", s.Name())
	}
}

// In LanguageAuto mode, the literal string "auto" must never reach Groq's
// Whisper-compatible "language" field, and the candidate-languages hint
// (unsupported by this API) must not break the request.
func TestGroqSTTOmitsLanguageFieldInAutoMode(t *testing.T) {
	var sawLanguageField bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if _, ok := r.MultipartForm.Value["language"]; ok {
			sawLanguageField = true
		}

		resp := struct {
			Text     string `json:"text"`
			Language string `json:"language"`
		}{
			Text:     "merhaba",
			Language: "turkish",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := &GroqSTT{apiKey: "test-key", url: server.URL, model: "whisper-large-v3", sampleRate: 44100}

	text, detectedLang, err := s.Transcribe(context.Background(), []byte{0}, engine.LanguageAuto, []string{"tr-TR", "en-US"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawLanguageField {
		t.Fatal("expected no language field to be sent in auto mode")
	}
	if text != "merhaba" {
		t.Errorf("expected 'merhaba', got %q", text)
	}
	if detectedLang != "turkish" {
		t.Errorf("expected detected language 'turkish', got %q", detectedLang)
	}
}
