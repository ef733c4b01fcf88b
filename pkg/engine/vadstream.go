package engine

import (
	"bytes"
	"context"
	"strings"
	"sync"
)

// VADSegmentingSTT adapts a one-shot STTProvider (REST transcription APIs
// that take a complete clip and return text) into a StreamingSTTProvider by
// using a VADProvider to decide where one utterance ends and the next
// begins, then transcribing each segment as it closes. This mirrors the
// teacher's ManagedStream buffer-then-transcribe technique; unlike the
// general streaming-provider case, there is no other source of utterance
// boundaries for a REST-only recognizer, so the VAD necessarily plays that
// role here instead of its usual bandwidth-prefilter-only part.
type VADSegmentingSTT struct {
	inner  STTProvider
	vad    VADProvider
	logger Logger

	minSegmentBytes int
}

func NewVADSegmentingSTT(inner STTProvider, vad VADProvider, logger Logger) *VADSegmentingSTT {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &VADSegmentingSTT{inner: inner, vad: vad, logger: logger, minSegmentBytes: 3200}
}

func (v *VADSegmentingSTT) Name() string {
	return v.inner.Name()
}

func (v *VADSegmentingSTT) Transcribe(ctx context.Context, audio []byte, lang Language, candidateLangs []string) (string, string, error) {
	return v.inner.Transcribe(ctx, audio, lang, candidateLangs)
}

// StreamTranscribe returns a channel the caller pushes raw PCM into. Each
// VADSpeechStart/VADSpeechEnd pair delimits one segment, which is
// transcribed via the wrapped one-shot provider and reported as a final
// transcript. No interim transcripts are ever produced since the underlying
// provider has no partial-result concept.
func (v *VADSegmentingSTT) StreamTranscribe(ctx context.Context, lang Language, candidateLangs []string, onTranscript func(transcript string, isFinal bool, speakerID string, detectedLang string) error) (chan<- []byte, error) {
	pushCh := make(chan []byte, 64)
	vad := v.vad
	if vad != nil {
		vad = vad.Clone()
	}

	go v.run(ctx, pushCh, vad, lang, candidateLangs, onTranscript)
	return pushCh, nil
}

func (v *VADSegmentingSTT) run(ctx context.Context, pushCh <-chan []byte, vad VADProvider, lang Language, candidateLangs []string, onTranscript func(string, bool, string, string) error) {
	var buf bytes.Buffer
	speaking := false
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-pushCh:
			if !ok {
				return
			}
			if vad == nil {
				buf.Write(chunk)
				continue
			}

			ev, err := vad.Process(chunk)
			if err != nil {
				v.logger.Warn("vadstream: vad error", "err", err)
				continue
			}
			if ev != nil {
				switch ev.Type {
				case VADSpeechStart:
					speaking = true
					buf.Reset()
				case VADSpeechEnd:
					if speaking {
						speaking = false
						segment := append([]byte(nil), buf.Bytes()...)
						buf.Reset()
						if len(segment) >= v.minSegmentBytes {
							wg.Add(1)
							go func() {
								defer wg.Done()
								v.transcribeSegment(ctx, segment, lang, candidateLangs, onTranscript)
							}()
						}
					}
				}
			}
			if speaking {
				buf.Write(chunk)
			}
		}
	}
}

func (v *VADSegmentingSTT) transcribeSegment(ctx context.Context, audio []byte, lang Language, candidateLangs []string, onTranscript func(string, bool, string, string) error) {
	text, detectedLang, err := v.inner.Transcribe(ctx, audio, lang, candidateLangs)
	if err != nil {
		v.logger.Error("vadstream: transcribe segment failed", "provider", v.inner.Name(), "err", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if err := onTranscript(text, true, "", detectedLang); err != nil {
		v.logger.Warn("vadstream: onTranscript callback error", "err", err)
	}
}
