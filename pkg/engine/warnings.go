package engine

import (
	"sync"
	"time"
)

// WarningCount is one entry of the per-kind warnings counter exposed by
// Engine.GetWarnings(). Workers never propagate errors to a caller; they
// record them here and keep going.
type WarningCount struct {
	Kind        ErrorKind
	Count       int
	LastMessage string
	LastAt      time.Time
}

type warningsCounter struct {
	mu     sync.Mutex
	byKind map[ErrorKind]*WarningCount
	now    clockFunc
	onWarn func(*EngineError)
}

func newWarningsCounter(now clockFunc) *warningsCounter {
	if now == nil {
		now = realClock
	}
	return &warningsCounter{byKind: make(map[ErrorKind]*WarningCount), now: now}
}

// setOnWarn registers a callback fired with every recorded error, in
// addition to the counter update. The Engine uses this to forward
// EventWarning notifications without polling.
func (w *warningsCounter) setOnWarn(fn func(*EngineError)) {
	w.mu.Lock()
	w.onWarn = fn
	w.mu.Unlock()
}

func (w *warningsCounter) record(err *EngineError) {
	if err == nil {
		return
	}
	w.mu.Lock()
	entry, ok := w.byKind[err.Kind]
	if !ok {
		entry = &WarningCount{Kind: err.Kind}
		w.byKind[err.Kind] = entry
	}
	entry.Count++
	entry.LastMessage = err.Error()
	entry.LastAt = w.now()
	onWarn := w.onWarn
	w.mu.Unlock()

	if onWarn != nil {
		onWarn(err)
	}
}

func (w *warningsCounter) snapshot() []WarningCount {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WarningCount, 0, len(w.byKind))
	for _, v := range w.byKind {
		out = append(out, *v)
	}
	return out
}

func (w *warningsCounter) clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.byKind = make(map[ErrorKind]*WarningCount)
}
