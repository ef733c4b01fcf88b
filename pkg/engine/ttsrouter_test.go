package engine

import (
	"sync"
	"testing"
	"time"
)

// collectingSink records every chunk it's asked to play, honoring no
// artificial delay unless configured, so streamLocal tests run fast.
type collectingSink struct {
	mu     sync.Mutex
	chunks [][]byte
	delay  time.Duration
}

func (s *collectingSink) Write(chunk []byte) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.mu.Lock()
	s.chunks = append(s.chunks, cp)
	s.mu.Unlock()
	return nil
}

func (s *collectingSink) totalBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.chunks {
		n += len(c)
	}
	return n
}

func drainMixer(mixer *Mixer, stop <-chan struct{}) {
	mic := make([]byte, mixerChunkSize*mixerBytesPerSample)
	out := make([]byte, mixerChunkSize*mixerChannels*mixerBytesPerSample)
	for {
		select {
		case <-stop:
			return
		default:
			mixer.onSamples(out, mic, mixerChunkSize)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestTTSRouterPlayAudioQueuesResampledMixAndCompletes(t *testing.T) {
	mixer := NewMixer(nil, nil, nil, &NoOpLogger{})
	router := NewTTSRouter(mixer, nil, &NoOpLogger{})

	stop := make(chan struct{})
	defer close(stop)
	go drainMixer(mixer, stop)

	pcm := make([]byte, 200) // 100 mono samples at 16kHz
	for i := range pcm {
		pcm[i] = byte(i)
	}

	done := make(chan struct{})
	router.PlayAudio(pcm, func() { close(done) }, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onComplete was never called")
	}
}

func TestTTSRouterRejectsConcurrentPlayback(t *testing.T) {
	mixer := NewMixer(nil, nil, nil, &NoOpLogger{})
	router := NewTTSRouter(mixer, nil, &NoOpLogger{})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() { drainMixer(mixer, stop); close(done) }()

	pcm := make([]byte, 2000)
	firstDone := make(chan struct{})
	router.PlayAudio(pcm, func() { close(firstDone) }, nil)

	if !router.IsBusy() {
		t.Fatal("expected router to report busy immediately after PlayAudio")
	}

	secondStarted := false
	router.PlayAudio([]byte{1, 2}, func() { secondStarted = true }, nil)
	time.Sleep(10 * time.Millisecond)
	if secondStarted {
		t.Fatal("expected the second concurrent PlayAudio to be rejected")
	}

	select {
	case <-firstDone:
	case <-time.After(time.Second):
		t.Fatal("first playback never completed")
	}
	close(stop)
	<-done
}

func TestTTSRouterStopPlaybackStopsLocalStreamingEarly(t *testing.T) {
	sink := &collectingSink{delay: 5 * time.Millisecond}
	mixer := NewMixer(nil, nil, nil, &NoOpLogger{})
	router := NewTTSRouter(mixer, sink, &NoOpLogger{})

	stop := make(chan struct{})
	defer close(stop)
	go drainMixer(mixer, stop)

	// Several chunks worth of audio so StopPlayback has time to land
	// mid-stream.
	pcm := make([]byte, ttsLocalChunkBytes*10)

	stoppedCh := make(chan struct{})
	router.PlayAudio(pcm, nil, func() { close(stoppedCh) })

	time.Sleep(12 * time.Millisecond)
	router.StopPlayback()

	select {
	case <-stoppedCh:
	case <-time.After(time.Second):
		t.Fatal("onStopped was never called")
	}

	if sink.totalBytes() >= len(pcm) {
		t.Fatalf("expected StopPlayback to cut off local streaming before all %d bytes were written, wrote %d", len(pcm), sink.totalBytes())
	}
}

func TestResampleAndDuplicateTriplesAndStereoizes(t *testing.T) {
	mono := []byte{10, 0, 20, 0} // two 16kHz mono samples
	out := resampleAndDuplicate(mono)

	wantLen := len(mono) * 3 * 2
	if len(out) != wantLen {
		t.Fatalf("expected %d output bytes, got %d", wantLen, len(out))
	}

	samples := bytesToInt16(out)
	for i := 0; i < 3; i++ {
		if samples[i*2] != 10 || samples[i*2+1] != 10 {
			t.Fatalf("expected first source sample replicated and duplicated to L/R, got %v", samples[:8])
		}
	}
	for i := 3; i < 6; i++ {
		if samples[i*2] != 20 || samples[i*2+1] != 20 {
			t.Fatalf("expected second source sample replicated and duplicated to L/R, got %v", samples[6:])
		}
	}
}
