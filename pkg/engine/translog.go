package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	transcriptLogFilename   = "transcriptions.log"
	systemEventsLogFilename = "system_events.log"
)

// TranscriptLogger writes the two plain-text audit logs described in the
// persisted state layout: a conversation log of final transcripts and a
// system-events log of capture starts/stops, feature toggles, language
// changes and auto-pause notices. Interim results are never written; when a final arrives for a
// (source, speaker) pair, its pending interim is simply dropped.
type TranscriptLogger struct {
	sessions *SessionManager
	logger   Logger
	now      clockFunc

	mu             sync.Mutex
	pendingInterim map[string]string
}

func NewTranscriptLogger(sessions *SessionManager, logger Logger) *TranscriptLogger {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &TranscriptLogger{
		sessions:       sessions,
		logger:         logger,
		now:            realClock,
		pendingInterim: make(map[string]string),
	}
}

// LogTranscript records one transcript event. Interim events are tracked in
// memory only (for on-screen rendering by the embedder); only finals are
// appended to the conversation log.
func (t *TranscriptLogger) LogTranscript(ev TranscriptEvent) {
	key := string(ev.Source) + "|" + ev.SpeakerID

	if !ev.IsFinal {
		t.mu.Lock()
		t.pendingInterim[key] = ev.Text
		t.mu.Unlock()
		return
	}

	t.mu.Lock()
	delete(t.pendingInterim, key)
	t.mu.Unlock()

	speakerSuffix := ""
	if ev.SpeakerID != "" {
		speakerSuffix = "[" + ev.SpeakerID + "]"
	}
	line := fmt.Sprintf("[%s] [%s]%s %s\n", t.now().Format(sessionTimestampLayout), ev.Source, speakerSuffix, ev.Text)
	t.append(transcriptLogFilename, line)
}

// LogSystemEvent appends one free-form line to the system-events log, e.g.
// "capture started" or "tts_to_mic enabled".
func (t *TranscriptLogger) LogSystemEvent(event string) {
	line := fmt.Sprintf("[%s] [SYSTEM] %s\n", t.now().Format(sessionTimestampLayout), event)
	t.append(systemEventsLogFilename, line)
}

func (t *TranscriptLogger) append(filename, line string) {
	dir := t.sessions.LogsDir()
	f, err := os.OpenFile(filepath.Join(dir, filename), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.logger.Error("translog: open failed", "file", filename, "err", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		t.logger.Error("translog: write failed", "file", filename, "err", err)
	}
}
