package engine

import (
	"sync"
	"time"
)

// LocalPlaybackSink is an optional destination for TTS audio so a user can
// hear their own translated speech locally while it's also being routed
// into the meeting via the Mixer. An embedder supplies one backed by
// whatever local output device it wants; nil disables local playback. It
// receives the same 48kHz stereo PCM16 that is queued into the Mixer.
type LocalPlaybackSink interface {
	Write(chunk []byte) error
}

const (
	ttsSourceSampleRate = 16000
	ttsLocalChunkBytes  = 4096
)

// TTSRouter takes buffered TTS PCM (mono, 16kHz, as produced by the TTS
// provider), resamples and duplicates it to the mixer's format, queues it
// into the Mixer, and optionally streams the same audio to a local
// playback sink in small chunks so playback can be stopped cooperatively
// mid-utterance.
type TTSRouter struct {
	mixer *Mixer
	local LocalPlaybackSink
	logger Logger

	mu      sync.Mutex
	playing bool
	stopCh  chan struct{}
}

func NewTTSRouter(mixer *Mixer, local LocalPlaybackSink, logger Logger) *TTSRouter {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &TTSRouter{mixer: mixer, local: local, logger: logger}
}

// PlayAudio queues resampled audio into the mixer and, if a local sink is
// configured, streams it there in 4KiB chunks honoring StopPlayback. It
// waits for the mixer to finish draining the queued audio (polled every
// 100ms via Mixer.IsTTSActive) before invoking onComplete.
func (r *TTSRouter) PlayAudio(pcm []byte, onComplete func(), onStopped func()) {
	r.mu.Lock()
	if r.playing {
		r.mu.Unlock()
		r.logger.Warn("ttsrouter: already playing, ignoring request")
		return
	}
	r.playing = true
	stopCh := make(chan struct{})
	r.stopCh = stopCh
	r.mu.Unlock()

	mixed := resampleAndDuplicate(pcm)
	r.mixer.QueueTTS(mixed)

	go func() {
		defer func() {
			r.mu.Lock()
			r.playing = false
			r.mu.Unlock()
		}()

		if r.local != nil {
			if stopped := r.streamLocal(mixed, stopCh); stopped {
				if onStopped != nil {
					onStopped()
				}
				return
			}
		}

		for r.mixer.IsTTSActive() {
			select {
			case <-stopCh:
				if onStopped != nil {
					onStopped()
				}
				return
			case <-time.After(100 * time.Millisecond):
			}
		}

		if onComplete != nil {
			onComplete()
		}
	}()
}

func (r *TTSRouter) streamLocal(pcm []byte, stopCh <-chan struct{}) (stopped bool) {
	offset := 0
	for offset < len(pcm) {
		select {
		case <-stopCh:
			return true
		default:
		}

		end := offset + ttsLocalChunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := r.local.Write(pcm[offset:end]); err != nil {
			r.logger.Error("ttsrouter: local playback write failed", "err", err)
			return false
		}
		offset = end
	}
	return false
}

// StopPlayback signals any in-flight PlayAudio to stop early.
func (r *TTSRouter) StopPlayback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.playing && r.stopCh != nil {
		close(r.stopCh)
	}
}

func (r *TTSRouter) IsBusy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}

// resampleAndDuplicate upsamples 16kHz mono PCM16 to 48kHz by 3x linear
// sample replication (not true interpolation) and duplicates each sample
// into L/R to match the mixer's stereo format.
func resampleAndDuplicate(pcm []byte) []byte {
	const factor = mixerSampleRate / ttsSourceSampleRate // 3
	out := make([]byte, 0, len(pcm)*factor*2)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		for r := 0; r < factor; r++ {
			out = append(out, lo, hi, lo, hi)
		}
	}
	return out
}
