package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// TTSBuffer generates TTS audio asynchronously through a TTSProvider and
// buffers the PCM in memory until the controller is ready to speak it. Only
// one generation runs at a time.
type TTSBuffer struct {
	provider TTSProvider
	voices   *VoiceManager
	logger   Logger

	genMu        sync.Mutex
	isGenerating atomic.Bool

	bufMu  sync.Mutex
	buffer []byte

	voice VoiceID
	lang  Language
}

func NewTTSBuffer(provider TTSProvider, voices *VoiceManager, logger Logger) *TTSBuffer {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &TTSBuffer{provider: provider, voices: voices, logger: logger}
}

// SetVoiceByLanguage resolves a friendly language name ("English",
// "Russian", "Turkish") to a voice and locks it in for subsequent
// GenerateAsync calls.
func (b *TTSBuffer) SetVoiceByLanguage(languageName string, sex string) {
	code, ok := GetLanguageCode(languageName)
	if !ok {
		b.logger.Warn("ttsbuffer: language not found", "language", languageName)
		return
	}
	voice, ok := b.voices.GetVoice(code, sex)
	if !ok {
		b.logger.Warn("ttsbuffer: no voice found", "language", languageName)
		return
	}
	b.voice = VoiceID(voice.Name)
	b.lang = code
}

// GenerateAsync synthesizes text in the background and appends the result
// to the buffer, reporting (success, message) to callback.
func (b *TTSBuffer) GenerateAsync(ctx context.Context, text string, callback func(success bool, message string)) {
	if strings.TrimSpace(text) == "" {
		if callback != nil {
			callback(false, "empty text, skipping")
		}
		return
	}

	go func() {
		b.genMu.Lock()
		b.isGenerating.Store(true)
		audio, err := b.provider.Synthesize(ctx, text, b.voice, b.lang)
		size := 0
		if err == nil {
			b.bufMu.Lock()
			b.buffer = append(b.buffer, audio...)
			size = len(b.buffer)
			b.bufMu.Unlock()
		}
		b.isGenerating.Store(false)
		b.genMu.Unlock()

		if err != nil {
			b.logger.Error("ttsbuffer: generation failed", "err", err)
			if callback != nil {
				callback(false, "TTS generation error: "+err.Error())
			}
			return
		}

		b.logger.Info("ttsbuffer: generated", "bytes", len(audio), "buffer", size, "job", uuid.NewString())
		if callback != nil {
			callback(true, "TTS generation successful")
		}
	}()
}

func (b *TTSBuffer) GetBuffer() []byte {
	b.bufMu.Lock()
	defer b.bufMu.Unlock()
	out := make([]byte, len(b.buffer))
	copy(out, b.buffer)
	return out
}

func (b *TTSBuffer) GetBufferSize() int {
	b.bufMu.Lock()
	defer b.bufMu.Unlock()
	return len(b.buffer)
}

func (b *TTSBuffer) HasAudio() bool {
	return b.GetBufferSize() > 0
}

func (b *TTSBuffer) ClearBuffer() {
	b.bufMu.Lock()
	defer b.bufMu.Unlock()
	b.buffer = nil
}

func (b *TTSBuffer) IsBusy() bool {
	return b.isGenerating.Load()
}
