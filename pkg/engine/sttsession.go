package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FinalHandler is invoked once per final transcript produced by a session.
type FinalHandler func(ev TranscriptEvent)

// InterimHandler is invoked for interim (non-final) transcript updates.
type InterimHandler func(ev TranscriptEvent)

// Session wraps one StreamingSTTProvider connection bound to a single
// capture source (mic or system loopback). It relabels diarization speaker
// ids (when diarization is enabled), suppresses immediate consecutive
// duplicate finals from the same speaker, reports provider-detected language
// changes while running in LanguageAuto mode, and optionally runs each chunk
// through a VAD pre-filter that still forwards every chunk — the provider
// remains the authority on utterance boundaries.
type Session struct {
	source             Source
	provider           StreamingSTTProvider
	lang               Language
	candidateLangs     []string
	diarizationEnabled bool
	logger             Logger

	vad     VADProvider // optional; nil disables the pre-filter
	vadGate bool

	onLanguageChange func(detectedLang string)

	mu             sync.Mutex
	generation     int
	cancel         context.CancelFunc
	pushCh         chan<- []byte
	lastFinal      string
	lastDetected   string
	warnings       *warningsCounter
}

func NewSession(source Source, provider StreamingSTTProvider, lang Language, candidateLangs []string, diarizationEnabled bool, logger Logger, warnings *warningsCounter) *Session {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Session{
		source:             source,
		provider:           provider,
		lang:               lang,
		candidateLangs:     candidateLangs,
		diarizationEnabled: diarizationEnabled,
		logger:             logger,
		warnings:           warnings,
	}
}

// SetOnLanguageChange registers the callback fired the first time this
// session observes a provider-detected language different from the one it
// last reported. Only meaningful while lang == LanguageAuto; sessions
// pinned to a fixed language never receive a detected language to compare
// against their own configuration.
func (s *Session) SetOnLanguageChange(fn func(detectedLang string)) {
	s.onLanguageChange = fn
}

// EnableVADPrefilter turns on the optional pre-filter: every chunk is run
// through vad and then forwarded whatever the result (so the provider's own
// VAD can track context); the result drives no local decision and only a
// VAD error is logged.
func (s *Session) EnableVADPrefilter(vad VADProvider) {
	s.vad = vad
	s.vadGate = true
}

// Start begins a streaming STT connection, returning a handle used to push
// audio and stop the session.
func (s *Session) Start(ctx context.Context, onFinal FinalHandler, onInterim InterimHandler) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	sessionCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	pushCh, err := s.provider.StreamTranscribe(sessionCtx, s.lang, s.candidateLangs, func(transcript string, isFinal bool, speakerID string, detectedLang string) error {
		s.mu.Lock()
		stale := gen != s.generation
		s.mu.Unlock()
		if stale {
			return nil
		}

		s.noteDetectedLanguage(detectedLang)

		if s.diarizationEnabled {
			speakerID = relabelDiarization(speakerID)
		}
		ev := TranscriptEvent{Text: transcript, Source: s.source, SpeakerID: speakerID, IsFinal: isFinal}

		if !isFinal {
			if onInterim != nil {
				onInterim(ev)
			}
			return nil
		}

		normalized := normalizeText(transcript)
		key := speakerID + "|" + normalized
		s.mu.Lock()
		duplicate := normalized != "" && key == s.lastFinal
		s.lastFinal = key
		s.mu.Unlock()
		if duplicate {
			s.logger.Debug("sttsession: suppressed consecutive duplicate", "source", s.source)
			return nil
		}

		if onFinal != nil {
			onFinal(ev)
		}
		return nil
	})
	if err != nil {
		cancel()
		if s.warnings != nil {
			s.warnings.record(newEngineError(ErrKindSTTTransient, fmt.Errorf("%s: start streaming stt: %w", s.source, err)))
		}
		return err
	}

	s.mu.Lock()
	s.pushCh = pushCh
	s.mu.Unlock()
	return nil
}

// PushPCM feeds one chunk of raw PCM audio into the active session. If a
// VAD pre-filter is enabled and classifies the chunk as silence, it is
// still forwarded — this is a bandwidth optimization hook for callers that
// want to skip the push entirely, not an utterance-boundary decision.
func (s *Session) PushPCM(chunk []byte) {
	s.mu.Lock()
	ch := s.pushCh
	s.mu.Unlock()
	if ch == nil {
		return
	}

	if s.vadGate && s.vad != nil {
		if _, err := s.vad.Process(chunk); err != nil {
			s.logger.Warn("sttsession: vad prefilter error", "err", err)
		}
	}

	select {
	case ch <- chunk:
	default:
		s.logger.Debug("sttsession: push channel full, dropping chunk", "source", s.source)
	}
}

// Stop cancels the streaming connection. Safe to call multiple times.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.pushCh = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// noteDetectedLanguage fires the language-change callback the first time a
// LanguageAuto session sees a detected language differ from the last one it
// reported. Fixed-language sessions and providers that report no detected
// language (detectedLang == "") are no-ops.
func (s *Session) noteDetectedLanguage(detectedLang string) {
	if detectedLang == "" || s.lang != LanguageAuto {
		return
	}
	s.mu.Lock()
	changed := detectedLang != s.lastDetected
	s.lastDetected = detectedLang
	s.mu.Unlock()
	if changed && s.onLanguageChange != nil {
		s.onLanguageChange(detectedLang)
	}
}

// relabelDiarization converts Azure-style "Guest-N" speaker ids (and
// similar provider-specific placeholders) into "Speaker N".
func relabelDiarization(speakerID string) string {
	if speakerID == "" {
		return ""
	}
	if strings.HasPrefix(speakerID, "Guest-") {
		return "Speaker " + strings.TrimPrefix(speakerID, "Guest-")
	}
	return speakerID
}
