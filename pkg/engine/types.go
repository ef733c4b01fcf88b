// Package engine implements the real-time audio and transcript orchestration
// core: the continuous mixer, the dual-source STT fan-in, the transcript
// arbiter, the translation and TTS pipeline, the insight extractor, and the
// session/chat/logging surfaces built on top of them.
package engine

import (
	"context"
)

// Logger is the embedder-supplied sink for structured diagnostics. Every
// worker in this package logs through it instead of fmt.Println so an
// embedder can route output anywhere (file, stderr, a telemetry backend).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything; useful in tests.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// LanguageAuto is the SpeechLanguage/Session sentinel requesting provider
// auto-detection from among CandidateLanguages rather than a fixed code.
const LanguageAuto Language = "auto"

// STTProvider performs one-shot transcription of a finished audio clip.
// When lang is LanguageAuto, candidateLangs may be passed to providers that
// support biasing auto-detection toward a known set of languages; providers
// that don't support a hint simply ignore it. detectedLang is the
// provider's reported language code for the clip, or "" if the provider
// doesn't report one (e.g. a fixed lang was given and the provider only
// echoes back what it was told).
type STTProvider interface {
	Transcribe(ctx context.Context, audio []byte, lang Language, candidateLangs []string) (text string, detectedLang string, err error)
	Name() string
}

// StreamingSTTProvider additionally supports push-streaming recognition:
// callers get a channel to feed PCM chunks into and a callback invoked with
// interim and final transcripts as the provider produces them. detectedLang
// mirrors STTProvider.Transcribe's and is "" when the provider has nothing
// to report for that result.
type StreamingSTTProvider interface {
	STTProvider
	StreamTranscribe(ctx context.Context, lang Language, candidateLangs []string, onTranscript func(transcript string, isFinal bool, speakerID string, detectedLang string) error) (chan<- []byte, error)
}

// LLMProvider performs a single chat-completion call.
type LLMProvider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Name() string
}

// TTSProvider synthesizes speech, either all at once or as a stream of
// chunks (used when the provider is itself streaming, e.g. a websocket
// service).
type TTSProvider interface {
	Synthesize(ctx context.Context, text string, voice VoiceID, lang Language) ([]byte, error)
	StreamSynthesize(ctx context.Context, text string, voice VoiceID, lang Language, onChunk func([]byte) error) error
	Name() string
}

// VADProvider is an optional speech/silence classifier. VADSegmentingSTT
// uses it to cut utterances for a one-shot STTProvider; with a streaming
// provider segmentation is the provider's job, and
// Session.EnableVADPrefilter runs chunks through it without withholding any.
type VADProvider interface {
	Process(chunk []byte) (*VADEvent, error)
	Reset()
	Clone() VADProvider
	Name() string
}

type VADEventType string

const (
	VADSpeechStart VADEventType = "SPEECH_START"
	VADSpeechEnd   VADEventType = "SPEECH_END"
	VADSilence     VADEventType = "SILENCE"
)

type VADEvent struct {
	Type      VADEventType
	Timestamp int64
}

// Source identifies which capture pipeline an utterance originated from, or
// whether it was reclassified as the local TTS voice being heard back.
type Source string

const (
	SourceMic    Source = "MIC"
	SourceSystem Source = "SYSTEM"
	SourceTTS    Source = "TTS"
)

// EventType enumerates everything the Engine reports to an embedder over
// its event channel.
type EventType string

const (
	EventTranscriptInterim  EventType = "TRANSCRIPT_INTERIM"
	EventTranscriptFinal    EventType = "TRANSCRIPT_FINAL"
	EventLanguageChanged    EventType = "LANGUAGE_CHANGED"
	EventTranslationReady   EventType = "TRANSLATION_READY"
	EventInsightAdded       EventType = "INSIGHT_ADDED"
	EventControllerState    EventType = "CONTROLLER_STATE"
	EventSessionAutoPaused  EventType = "SESSION_AUTO_PAUSED"
	EventSessionStarted     EventType = "SESSION_STARTED"
	EventSessionEnded       EventType = "SESSION_ENDED"
	EventWarning            EventType = "WARNING"
)

// Event is the single envelope type delivered on Engine.Events().
type Event struct {
	Type      EventType
	SessionID string
	Data      interface{}
}

// TranscriptEvent is the Data payload for EventTranscriptInterim/Final.
type TranscriptEvent struct {
	Text      string
	Source    Source
	SpeakerID string
	IsFinal   bool
}

// LanguageChangeEvent is the Data payload for EventLanguageChanged, fired
// the first time a Session running in LanguageAuto mode observes a
// provider-detected language different from the one it last reported.
type LanguageChangeEvent struct {
	Source   Source
	Language string
}

// VoiceID is an opaque provider voice identifier resolved by the Voice
// Manager (e.g. "F1", "en-US-Standard-C" — whatever the configured TTS
// provider expects).
type VoiceID string

// Language is a BCP-47-ish language/region code, e.g. "en-US".
type Language string

// Message is one chat-completion turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config bundles every tunable named in the external-interfaces section,
// including the environment keys the embedder supplies.
type Config struct {
	STTKey    string
	STTRegion string

	LLMEndpoint   string
	LLMKey        string
	LLMAPIVersion string
	LLMModel      string

	TTSKey string

	SpeechLanguage      string // BCP-47 code, or "auto"
	CandidateLanguages  []string
	EnableDiarization   bool
	MinSpeakers         int
	MaxSpeakers         int

	LogFile                 string
	AutoPauseSilenceSeconds int
	EnableAutoPause         bool

	MinConversationExchanges int
	MinAnalysisInterval      int // seconds
	MinTextLength            int
	SimilarityThreshold      float64
}

// DefaultConfig returns the engine's hard-coded defaults, overridable per
// field once loaded from the environment.
func DefaultConfig() Config {
	return Config{
		SpeechLanguage:           "auto",
		CandidateLanguages:       []string{"en-US", "ru-RU", "tr-TR"},
		EnableDiarization:        true,
		MinSpeakers:              2,
		MaxSpeakers:              10,
		LogFile:                  "transcriptions.log",
		AutoPauseSilenceSeconds:  60,
		EnableAutoPause:          true,
		MinConversationExchanges: 3,
		MinAnalysisInterval:      45,
		MinTextLength:            50,
		SimilarityThreshold:      0.75,
	}
}
