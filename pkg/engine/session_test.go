package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSessionManagerStartAndEndWritesSummaryFiles(t *testing.T) {
	dir := t.TempDir()
	m := NewSessionManager(dir, &NoOpLogger{})

	sessionID, err := m.StartNewSession("Planning Sync")
	if err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}
	if sessionID == "" {
		t.Fatal("expected non-empty session id")
	}

	m.AddTranscriptCount(3)
	m.AddInsight(InsightKeyPoint, "We will ship Friday", "insight_engine", 1.0)
	m.AppendInsightFile(InsightKeyPoint, []string{"We will ship Friday"})

	jsonPath, err := m.EndCurrentSession()
	if err != nil {
		t.Fatalf("EndCurrentSession: %v", err)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("reading summary json: %v", err)
	}
	var summary sessionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.SessionInfo.Title != "Planning Sync" {
		t.Fatalf("expected title preserved, got %q", summary.SessionInfo.Title)
	}
	if summary.Statistics.TotalTranscripts != 3 {
		t.Fatalf("expected transcript count 3, got %d", summary.Statistics.TotalTranscripts)
	}
	if summary.Statistics.KeyPointsIdentified != 1 {
		t.Fatalf("expected 1 key point, got %d", summary.Statistics.KeyPointsIdentified)
	}

	mdPath := strings.TrimSuffix(jsonPath, ".json") + ".md"
	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("reading markdown summary: %v", err)
	}
	if !strings.Contains(string(md), "# Planning Sync") {
		t.Fatal("expected markdown summary to start with the session title heading")
	}
	if !strings.Contains(string(md), "## Key Points") {
		t.Fatal("expected a Key Points section")
	}

	kpFile := filepath.Join(filepath.Dir(jsonPath), "key-points.txt")
	kp, err := os.ReadFile(kpFile)
	if err != nil {
		t.Fatalf("reading key-points.txt: %v", err)
	}
	if !strings.Contains(string(kp), "We will ship Friday") {
		t.Fatal("expected key point text appended to key-points.txt")
	}
	if !strings.HasPrefix(string(kp), "=== ") {
		t.Fatal("expected a dated header at the start of the category file")
	}
}

func TestSessionManagerEndWithoutActiveSessionErrors(t *testing.T) {
	m := NewSessionManager(t.TempDir(), &NoOpLogger{})
	if _, err := m.EndCurrentSession(); err == nil {
		t.Fatal("expected error ending a session when none is active")
	}
}

func TestSessionManagerQuestionsAreNumberedOthersAreBulleted(t *testing.T) {
	dir := t.TempDir()
	m := NewSessionManager(dir, &NoOpLogger{})
	if _, err := m.StartNewSession(""); err != nil {
		t.Fatalf("StartNewSession: %v", err)
	}

	m.AppendInsightFile(InsightQuestion, []string{"What's the timeline?", "Who owns this?"})

	data, err := os.ReadFile(filepath.Join(m.SessionDir(), "follow-up-questions.txt"))
	if err != nil {
		t.Fatalf("reading follow-up-questions.txt: %v", err)
	}
	if !strings.Contains(string(data), "1. What's the timeline?") || !strings.Contains(string(data), "2. Who owns this?") {
		t.Fatalf("expected numbered questions, got:\n%s", data)
	}
}
