package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTranscriptLoggerWritesOnlyFinals(t *testing.T) {
	dir := t.TempDir()
	sessions := NewSessionManager(dir, &NoOpLogger{})
	if _, err := sessions.StartNewSession(""); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	tl := NewTranscriptLogger(sessions, &NoOpLogger{})
	tl.now = fakeClockAt(time.Unix(1000, 0))

	tl.LogTranscript(TranscriptEvent{Source: SourceMic, SpeakerID: "Speaker 1", Text: "hello wor", IsFinal: false})
	tl.LogTranscript(TranscriptEvent{Source: SourceMic, SpeakerID: "Speaker 1", Text: "hello world", IsFinal: true})

	data, err := os.ReadFile(filepath.Join(sessions.LogsDir(), transcriptLogFilename))
	if err != nil {
		t.Fatalf("reading transcript log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one logged line (the final), got %v", lines)
	}
	if !strings.Contains(lines[0], "hello world") || !strings.Contains(lines[0], "[Speaker 1]") {
		t.Fatalf("expected final text and speaker tag in log line, got %q", lines[0])
	}
}

func TestTranscriptLoggerDropsPendingInterimOnFinal(t *testing.T) {
	dir := t.TempDir()
	sessions := NewSessionManager(dir, &NoOpLogger{})
	if _, err := sessions.StartNewSession(""); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	tl := NewTranscriptLogger(sessions, &NoOpLogger{})

	tl.LogTranscript(TranscriptEvent{Source: SourceMic, SpeakerID: "Speaker 1", Text: "partial", IsFinal: false})
	key := string(SourceMic) + "|Speaker 1"
	if tl.pendingInterim[key] != "partial" {
		t.Fatalf("expected interim tracked in memory, got %v", tl.pendingInterim)
	}

	tl.LogTranscript(TranscriptEvent{Source: SourceMic, SpeakerID: "Speaker 1", Text: "partial done", IsFinal: true})
	if _, ok := tl.pendingInterim[key]; ok {
		t.Fatal("expected pending interim cleared once the final arrives")
	}
}

func TestTranscriptLoggerSystemEventsGoToSeparateFile(t *testing.T) {
	dir := t.TempDir()
	sessions := NewSessionManager(dir, &NoOpLogger{})
	if _, err := sessions.StartNewSession(""); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	tl := NewTranscriptLogger(sessions, &NoOpLogger{})

	tl.LogSystemEvent("capture started")
	tl.LogSystemEvent("tts_to_mic enabled")

	data, err := os.ReadFile(filepath.Join(sessions.LogsDir(), systemEventsLogFilename))
	if err != nil {
		t.Fatalf("reading system events log: %v", err)
	}
	if !strings.Contains(string(data), "[SYSTEM] capture started") {
		t.Fatalf("expected system event line, got:\n%s", data)
	}
	if !strings.Contains(string(data), "[SYSTEM] tts_to_mic enabled") {
		t.Fatalf("expected second system event line, got:\n%s", data)
	}

	if _, err := os.ReadFile(filepath.Join(sessions.LogsDir(), transcriptLogFilename)); err == nil {
		t.Fatal("expected no transcript log file since LogTranscript was never called")
	}
}
