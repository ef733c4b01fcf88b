package engine

import (
	"sync"
	"time"
)

// autoPauseTimer fires a non-fatal callback after a configurable period of
// silence (no transcript activity), without stopping audio capture.
type autoPauseTimer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
	enabled  bool
	onFire   func()
}

func newAutoPauseTimer(duration time.Duration, enabled bool, onFire func()) *autoPauseTimer {
	return &autoPauseTimer{duration: duration, enabled: enabled, onFire: onFire}
}

// Reset restarts the silence countdown; call on every piece of transcript
// activity (interim or final, either source).
func (a *autoPauseTimer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.duration, func() {
		if a.onFire != nil {
			a.onFire()
		}
	})
}

// Stop cancels any pending fire, e.g. when the session ends.
func (a *autoPauseTimer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
