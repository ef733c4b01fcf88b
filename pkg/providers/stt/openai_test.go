package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kata-ai/meeting-assistant/pkg/engine"
)

func TestOpenAISTT(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		resp := struct {
			Text string `json:"text"`
		}{
			Text: "transcribed text",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := &OpenAISTT{
		apiKey:     "test-key",
		url:        server.URL,
		model:      "whisper-1",
		sampleRate: 44100,
	}

	result, _, err := s.Transcribe(context.Background(), []byte{0, 0, 0, 0}, engine.Language("en-US"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != "transcribed text" {
		t.Errorf("expected 'transcribed text', got '%s'", result)
	}

	if s.Name() != "openai_stt" {
		t.Errorf("expected openai_stt, got %s", s.Name())
	}
}

// In LanguageAuto mode, the literal string "auto" must never reach Whisper's
// "language" field, and the provider-reported language comes back as the
// detected language.
func TestOpenAISTTOmitsLanguageFieldInAutoMode(t *testing.T) {
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
			Text:     "bonjour",
			Language: "french",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := &OpenAISTT{apiKey: "test-key", url: server.URL, model: "whisper-1", sampleRate: 44100}

	text, detectedLang, err := s.Transcribe(context.Background(), []byte{0, 0, 0, 0}, engine.LanguageAuto, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawLanguageField {
		t.Fatal("expected no language field to be sent in auto mode")
	}
	if text != "bonjour" {
		t.Errorf("expected 'bonjour', got %q", text)
	}
	if detectedLang != "french" {
		t.Errorf("expected detected language 'french', got %q", detectedLang)
	}
}
