package engine

import (
	"bytes"
	"math"
	"testing"
)

func int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(uint16(s))
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[i*2]) | uint16(b[i*2+1])<<8)
	}
	return out
}

// S1/property 2: with no TTS, monoToStereo must duplicate every mono sample
// into L/R, preserving order, byte-for-byte.
func TestMonoToStereoDuplicatesChannels(t *testing.T) {
	mono := int16ToBytes([]int16{100, -200, 32767, -32768, 0})
	stereo := bytesToInt16(monoToStereo(mono))

	want := []int16{100, 100, -200, -200, 32767, 32767, -32768, -32768, 0, 0}
	if len(stereo) != len(want) {
		t.Fatalf("len = %d, want %d", len(stereo), len(want))
	}
	for i := range want {
		if stereo[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, stereo[i], want[i])
		}
	}
}

// With no TTS audio queued, mixing is a passthrough of the mic samples.
func TestMixPCMWithZeroTTSIsPassthrough(t *testing.T) {
	mic := int16ToBytes([]int16{1234, -5678, 32767, -32768})
	zero := make([]byte, len(mic))

	out := mixPCM(mic, zero)
	if !bytes.Equal(out, mic) {
		t.Fatalf("mixPCM with zero tts = %v, want passthrough %v", bytesToInt16(out), bytesToInt16(mic))
	}
}

// For arbitrary in-range samples, output equals the clipped average of mic and TTS.
func TestMixPCMMatchesClippedAverage(t *testing.T) {
	cases := []struct{ mic, tts int16 }{
		{0, 0},
		{100, 200},
		{-100, -200},
		{32767, 32767},  // would overflow without clipping
		{-32768, -32768}, // would underflow without clipping
		{32767, -32768},
		{1, -1},
		{32000, 32000},
	}

	mic := make([]int16, len(cases))
	tts := make([]int16, len(cases))
	for i, c := range cases {
		mic[i] = c.mic
		tts[i] = c.tts
	}

	out := bytesToInt16(mixPCM(int16ToBytes(mic), int16ToBytes(tts)))
	for i, c := range cases {
		want := clipInt32((int32(c.mic) + int32(c.tts)) / 2)
		if int32(out[i]) != want {
			t.Fatalf("case %d: mixPCM(%d,%d) = %d, want %d", i, c.mic, c.tts, out[i], want)
		}
	}
}

func clipInt32(v int32) int32 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}

// Partial TTS drain: fewer bytes than a full chunk are
// zero-padded and the buffer empties; the following chunk mixes with tts=0.
func TestMixerPartialTTSDrainZeroPadsAndEmpties(t *testing.T) {
	m := &Mixer{logger: &NoOpLogger{}}

	stereoChunkBytes := mixerChunkSize * mixerChannels * mixerBytesPerSample
	monoChunkBytes := mixerChunkSize * mixerBytesPerSample

	// Queue less than one full stereo chunk of TTS audio.
	partial := int16ToBytes([]int16{1000, 2000, 3000})
	m.QueueTTS(partial)
	if !m.IsTTSActive() {
		t.Fatal("expected TTS active after queueing partial chunk")
	}

	mic := make([]byte, monoChunkBytes) // silence
	out := make([]byte, stereoChunkBytes)
	m.onSamples(out, mic, mixerChunkSize)

	// First chunk: TTS prefix present (zero-padded), non-zero output for the
	// first few samples. The buffer itself is now empty, but the "was
	// playing" flag only clears on the chunk after it observes an empty
	// buffer (spec: "signal is_tts_playing=false exactly once").
	outSamples := bytesToInt16(out)
	if outSamples[0] == 0 {
		t.Fatal("expected first mixed sample to reflect queued tts audio")
	}
	if !m.IsTTSActive() {
		t.Fatal("expected tts still flagged active on the chunk that drains the partial buffer")
	}

	// Next chunk: tts buffer is empty -> pure mic passthrough, and the active
	// flag clears exactly on this chunk.
	out2 := make([]byte, stereoChunkBytes)
	m.onSamples(out2, mic, mixerChunkSize)
	if m.IsTTSActive() {
		t.Fatal("expected tts inactive after the buffer-empty chunk")
	}
	for _, b := range out2 {
		if b != 0 {
			t.Fatal("expected pure silence passthrough once tts buffer is empty")
		}
	}
}

// Queuing a full stereo chunk worth of TTS mixes it directly without
// zero padding and the buffer activity flag stays true until fully drained.
func TestMixerFullChunkTTSDrain(t *testing.T) {
	m := &Mixer{logger: &NoOpLogger{}}

	stereoChunkBytes := mixerChunkSize * mixerChannels * mixerBytesPerSample
	monoChunkBytes := mixerChunkSize * mixerBytesPerSample

	sample := int16ToBytes([]int16{5000})
	tts := make([]byte, stereoChunkBytes*2) // two chunks worth
	for i := 0; i < len(tts); i += 2 {
		tts[i], tts[i+1] = sample[0], sample[1]
	}
	m.QueueTTS(tts)

	mic := make([]byte, monoChunkBytes)
	out := make([]byte, stereoChunkBytes)
	m.onSamples(out, mic, mixerChunkSize)
	if !m.IsTTSActive() {
		t.Fatal("expected tts still active with a second full chunk queued")
	}

	out2 := make([]byte, stereoChunkBytes)
	m.onSamples(out2, mic, mixerChunkSize)
	if !m.IsTTSActive() {
		t.Fatal("expected tts still active immediately after draining exactly two full chunks (flag clears next chunk)")
	}

	out3 := make([]byte, stereoChunkBytes)
	m.onSamples(out3, mic, mixerChunkSize)
	if m.IsTTSActive() {
		t.Fatal("expected tts inactive once buffer is fully drained")
	}
	for _, b := range out3 {
		if b != 0 {
			t.Fatal("expected silence once tts drained and mic silent")
		}
	}
}

func TestCalculateRMSOfSilenceIsZero(t *testing.T) {
	silence := make([]byte, 3200)
	if rms := calculateRMS(silence); rms != 0 {
		t.Fatalf("rms of silence = %v, want 0", rms)
	}
}

func TestCalculateRMSOfFullScaleIsOne(t *testing.T) {
	samples := make([]int16, 100)
	for i := range samples {
		samples[i] = 32767
	}
	rms := calculateRMS(int16ToBytes(samples))
	if math.Abs(rms-1.0) > 0.01 {
		t.Fatalf("rms of full-scale tone = %v, want ~1.0", rms)
	}
}
