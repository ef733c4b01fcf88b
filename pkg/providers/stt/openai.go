package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/kata-ai/meeting-assistant/pkg/engine"
)

type OpenAISTT struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
}

func NewOpenAISTT(apiKey string, model string) *OpenAISTT {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAISTT{
		apiKey:     apiKey,
		url:        "https://api.openai.com/v1/audio/transcriptions",
		model:      model,
		sampleRate: 44100,
	}
}

func (s *OpenAISTT) SetSampleRate(rate int) {
	s.sampleRate = rate
}

func (s *OpenAISTT) Name() string {
	return "openai_stt"
}

// Transcribe sends the clip to Whisper. When lang is engine.LanguageAuto the
// "language" field is omitted entirely so Whisper runs its own detection
// instead of receiving the literal string "auto" (not a valid language
// code); candidateLangs has no Whisper equivalent of a biased candidate
// list, so it is accepted but unused here. response_format is fixed to
// verbose_json so the reply carries the detected language either way.
func (s *OpenAISTT) Transcribe(ctx context.Context, audioPCM []byte, lang engine.Language, candidateLangs []string) (string, string, error) {
	wavData := newWavBuffer(audioPCM, s.sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", s.model); err != nil {
		return "", "", err
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return "", "", err
	}

	if lang != "" && lang != engine.LanguageAuto {
		if err := writer.WriteField("language", string(lang)); err != nil {
			return "", "", err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", "", err
	}
	if _, err := part.Write(wavData); err != nil {
		return "", "", err
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", s.url, body)
	if err != nil {
		return "", "", err
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("openai error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", err
	}

	return result.Text, strings.ToLower(result.Language), nil
}
