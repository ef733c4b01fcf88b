package engine

import (
	"math"
	"time"
)

// RMSVAD is a lightweight root-mean-square voice activity detector. It
// decides utterance boundaries only inside VADSegmentingSTT, which wraps a
// one-shot STTProvider that has no segmentation of its own; a streaming
// provider segments its own audio. An STT session may also run each chunk
// through it (Session.EnableVADPrefilter), but still pushes every chunk
// upstream whatever it reports.
type RMSVAD struct {
	threshold    float64
	silenceLimit time.Duration
	isSpeaking   bool
	silenceStart time.Time

	consecutiveFrames int
	minConfirmed      int
	lastRMS           float64

	now clockFunc
}

func NewRMSVAD(threshold float64, silenceLimit time.Duration) *RMSVAD {
	return &RMSVAD{
		threshold:    threshold,
		silenceLimit: silenceLimit,
		minConfirmed: 7,
		now:          realClock,
	}
}

func (v *RMSVAD) SetMinConfirmed(count int)      { v.minConfirmed = count }
func (v *RMSVAD) SetThreshold(threshold float64) { v.threshold = threshold }
func (v *RMSVAD) Threshold() float64             { return v.threshold }
func (v *RMSVAD) LastRMS() float64               { return v.lastRMS }
func (v *RMSVAD) IsSpeaking() bool               { return v.isSpeaking }

func (v *RMSVAD) Process(chunk []byte) (*VADEvent, error) {
	rms := calculateRMS(chunk)
	v.lastRMS = rms
	now := v.now()

	if rms > v.threshold {
		v.consecutiveFrames++
		if !v.isSpeaking {
			if v.consecutiveFrames >= v.minConfirmed {
				v.isSpeaking = true
				return &VADEvent{Type: VADSpeechStart, Timestamp: now.UnixMilli()}, nil
			}
			return nil, nil
		}
		v.silenceStart = time.Time{}
		return nil, nil
	}

	v.consecutiveFrames = 0

	if v.isSpeaking {
		if v.silenceStart.IsZero() {
			v.silenceStart = now
		}
		if now.Sub(v.silenceStart) >= v.silenceLimit {
			v.isSpeaking = false
			v.silenceStart = time.Time{}
			return &VADEvent{Type: VADSpeechEnd, Timestamp: now.UnixMilli()}, nil
		}
	}

	return &VADEvent{Type: VADSilence, Timestamp: now.UnixMilli()}, nil
}

func (v *RMSVAD) Name() string { return "rms_vad" }

func (v *RMSVAD) Reset() {
	v.isSpeaking = false
	v.silenceStart = time.Time{}
	v.consecutiveFrames = 0
}

func (v *RMSVAD) Clone() VADProvider {
	return &RMSVAD{
		threshold:    v.threshold,
		silenceLimit: v.silenceLimit,
		minConfirmed: v.minConfirmed,
		now:          v.now,
	}
}

func calculateRMS(chunk []byte) float64 {
	if len(chunk) == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < len(chunk)-1; i += 2 {
		sample := int16(chunk[i]) | (int16(chunk[i+1]) << 8)
		f := float64(sample) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(chunk)/2))
}
