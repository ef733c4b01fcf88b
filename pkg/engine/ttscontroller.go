package engine

import (
	"context"
	"sync"
)

// ControllerState is one of the four states the translation-TTS pipeline
// can be in.
type ControllerState string

const (
	StateIdle      ControllerState = "idle"
	StateBuffering ControllerState = "buffering"
	StateReady     ControllerState = "ready"
	StateSpeaking  ControllerState = "speaking"
)

// TTSController coordinates the translation -> TTS -> playback pipeline: it
// owns a TTSBuffer and a TTSRouter and exposes the state machine an
// embedder (or Engine) drives translated text through.
type TTSController struct {
	buffer *TTSBuffer
	router *TTSRouter
	logger Logger

	mu    sync.Mutex
	state ControllerState

	onStateChange func(ControllerState)
}

func NewTTSController(buffer *TTSBuffer, router *TTSRouter, logger Logger) *TTSController {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &TTSController{buffer: buffer, router: router, logger: logger, state: StateIdle}
}

// SetOnStateChange registers a callback fired on every state transition.
func (c *TTSController) SetOnStateChange(fn func(ControllerState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// SetLanguage resolves and locks in a TTS voice by friendly language name.
func (c *TTSController) SetLanguage(languageName string, sex string) {
	c.buffer.SetVoiceByLanguage(languageName, sex)
}

// AddTranslation buffers translated text for synthesis. Transitions to
// Buffering immediately, then Ready or back to Idle depending on whether
// generation succeeded.
func (c *TTSController) AddTranslation(ctx context.Context, text string) {
	if text == "" {
		c.logger.Warn("ttscontroller: empty translation text, skipping")
		return
	}

	c.setState(StateBuffering)

	c.buffer.GenerateAsync(ctx, text, func(success bool, message string) {
		if success {
			c.setState(StateReady)
		} else {
			c.logger.Warn("ttscontroller: generation failed", "message", message)
			c.setState(StateIdle)
		}
	})
}

// Speak starts playback of the buffered audio. Returns false if there is
// nothing to play or playback is already in progress.
func (c *TTSController) Speak() bool {
	c.mu.Lock()
	if !c.buffer.HasAudio() {
		c.mu.Unlock()
		c.logger.Warn("ttscontroller: no audio in buffer to speak")
		return false
	}
	if c.state == StateSpeaking {
		c.mu.Unlock()
		c.logger.Warn("ttscontroller: already speaking")
		return false
	}
	audio := c.buffer.GetBuffer()
	c.mu.Unlock()

	c.setState(StateSpeaking)

	onDone := func() {
		c.buffer.ClearBuffer()
		c.setState(StateIdle)
	}
	c.router.PlayAudio(audio, onDone, onDone)
	return true
}

// Stop halts any in-flight playback and clears the buffer.
func (c *TTSController) Stop() {
	c.router.StopPlayback()
	c.buffer.ClearBuffer()
	c.setState(StateIdle)
}

// ClearBuffer drops buffered audio without touching in-flight playback,
// e.g. when a caller disables the translation-TTS feature mid-session.
func (c *TTSController) ClearBuffer() {
	c.buffer.ClearBuffer()
	if c.GetState() != StateSpeaking {
		c.setState(StateIdle)
	}
}

func (c *TTSController) GetState() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *TTSController) IsReady() bool    { return c.GetState() == StateReady }
func (c *TTSController) IsSpeaking() bool { return c.GetState() == StateSpeaking }
func (c *TTSController) IsBusy() bool {
	s := c.GetState()
	return s == StateBuffering || s == StateSpeaking
}

func (c *TTSController) setState(newState ControllerState) {
	c.mu.Lock()
	if c.state == newState {
		c.mu.Unlock()
		return
	}
	c.state = newState
	cb := c.onStateChange
	c.mu.Unlock()

	if cb != nil {
		cb(newState)
	}
}
