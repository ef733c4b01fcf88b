package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

const (
	mixerSampleRate = 48000
	mixerChannels   = 2
	mixerChunkSize  = 1024
	mixerBytesPerSample = 2
)

// Mixer continuously routes a physical microphone to a virtual loopback
// output device, mixing in queued TTS audio on top of the passthrough mic
// signal. It is an explicitly constructed, embedder-owned instance: nothing
// here is package state, so an embedder is free to run more than one (e.g.
// in tests).
type Mixer struct {
	logger Logger

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	micDeviceID     *malgo.DeviceID
	virtualDeviceID *malgo.DeviceID

	mu            sync.Mutex
	ttsBuffer     []byte
	ttsActive     bool
	running       bool
}

// NewMixer constructs a Mixer bound to the given malgo context and selected
// device indices. The context's lifetime is owned by the caller.
func NewMixer(ctx *malgo.AllocatedContext, micID, virtualID *malgo.DeviceID, logger Logger) *Mixer {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Mixer{logger: logger, ctx: ctx, micDeviceID: micID, virtualDeviceID: virtualID}
}

// Start opens the duplex device and begins the continuous mic-to-virtual
// passthrough loop. Mixing of queued TTS audio happens inline in the audio
// callback so it stays correctly synchronized with the mic stream.
func (m *Mixer) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.Capture.DeviceID = m.micDeviceID
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = mixerChannels
	deviceConfig.Playback.DeviceID = m.virtualDeviceID
	deviceConfig.SampleRate = mixerSampleRate
	deviceConfig.PeriodSizeInFrames = mixerChunkSize

	device, err := malgo.InitDevice(m.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: m.onSamples,
	})
	if err != nil {
		return newEngineError(ErrKindMixerFatal, fmt.Errorf("mixer: init device: %w", err))
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return newEngineError(ErrKindMixerFatal, fmt.Errorf("mixer: start device: %w", err))
	}

	m.mu.Lock()
	m.device = device
	m.running = true
	m.mu.Unlock()

	m.logger.Info("mixer: started, mic -> virtual device")
	return nil
}

// Stop tears down the duplex device. It blocks at most 2s waiting for the
// capture callback to settle, though malgo's Uninit is itself synchronous
// and typically returns well under that.
func (m *Mixer) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	device := m.device
	m.device = nil
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if device != nil {
			device.Uninit()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		m.logger.Warn("mixer: stop timed out after 2s")
	}
	m.logger.Info("mixer: stopped")
}

// QueueTTS appends PCM audio (already resampled/channel-matched to the
// mixer's format) to be mixed into the next outgoing chunks.
func (m *Mixer) QueueTTS(pcm []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttsBuffer = append(m.ttsBuffer, pcm...)
	m.ttsActive = true
}

// IsTTSActive reports whether TTS audio is still being mixed in.
func (m *Mixer) IsTTSActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttsActive
}

func (m *Mixer) onSamples(pOutput, pInput []byte, frameCount uint32) {
	if pInput == nil || pOutput == nil {
		return
	}

	stereo := monoToStereo(pInput)
	chunkBytes := len(stereo)

	m.mu.Lock()
	var out []byte
	switch {
	case m.ttsActive && len(m.ttsBuffer) >= chunkBytes:
		ttsChunk := m.ttsBuffer[:chunkBytes]
		m.ttsBuffer = m.ttsBuffer[chunkBytes:]
		out = mixPCM(stereo, ttsChunk)

	case m.ttsActive && len(m.ttsBuffer) > 0:
		ttsChunk := make([]byte, chunkBytes)
		copy(ttsChunk, m.ttsBuffer)
		m.ttsBuffer = nil
		out = mixPCM(stereo, ttsChunk)

	case m.ttsActive:
		m.ttsActive = false
		out = stereo

	default:
		out = stereo
	}
	m.mu.Unlock()

	n := copy(pOutput, out)
	for i := n; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
}

// monoToStereo duplicates each mono sample into L/R channels.
func monoToStereo(mono []byte) []byte {
	out := make([]byte, len(mono)*2)
	for i := 0; i+1 < len(mono); i += 2 {
		out[i*2] = mono[i]
		out[i*2+1] = mono[i+1]
		out[i*2+2] = mono[i]
		out[i*2+3] = mono[i+1]
	}
	return out
}

// mixPCM averages two equal-length int16 PCM buffers sample-wise and clips
// the result to the int16 range.
func mixPCM(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i+1 < n; i += 2 {
		sa := int32(int16(uint16(a[i]) | uint16(a[i+1])<<8))
		sb := int32(int16(uint16(b[i]) | uint16(b[i+1])<<8))
		mixed := (sa + sb) / 2
		if mixed > 32767 {
			mixed = 32767
		} else if mixed < -32768 {
			mixed = -32768
		}
		out[i] = byte(uint16(mixed))
		out[i+1] = byte(uint16(mixed) >> 8)
	}
	return out
}
