package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// InsightType categorizes a MeetingInsight.
type InsightType string

const (
	InsightQuestion   InsightType = "question"
	InsightKeyPoint   InsightType = "key_point"
	InsightActionItem InsightType = "action_item"
	InsightDecision   InsightType = "decision"
)

// MeetingInsight is one piece of extracted meeting intelligence.
type MeetingInsight struct {
	Timestamp  string      `json:"timestamp"`
	Type       InsightType `json:"type"`
	Content    string      `json:"content"`
	Source     string      `json:"source"`
	Confidence float64     `json:"confidence"`
}

// MeetingSessionInfo is the persisted session header.
type MeetingSessionInfo struct {
	SessionID       string   `json:"session_id"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time,omitempty"`
	Title           string   `json:"title"`
	Participants    []string `json:"participants"`
	TranscriptCount int      `json:"transcript_count"`
}

type sessionStatistics struct {
	TotalTranscripts   int `json:"total_transcripts"`
	TotalInsights      int `json:"total_insights"`
	QuestionsGenerated int `json:"questions_generated"`
	KeyPointsIdentified int `json:"key_points_identified"`
	ActionItemsCaptured int `json:"action_items_captured"`
	DecisionsRecorded  int `json:"decisions_recorded"`
}

type insightExport struct {
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

type sessionSummary struct {
	SessionInfo      MeetingSessionInfo `json:"session_info"`
	DurationMinutes  int                `json:"duration_minutes"`
	Statistics       sessionStatistics  `json:"statistics"`
	Insights         map[string][]insightExport `json:"insights"`
	SummaryGenerated string             `json:"summary_generated"`
}

const (
	sessionTimestampLayout = "2006-01-02 15:04:05"
	sessionIDLayout        = "20060102_150405"
)

// SessionManager mints session directories, accumulates insights and
// transcript counts, and emits the final JSON + Markdown summary on
// EndCurrentSession. It also owns the auto-pause silence timer.
type SessionManager struct {
	baseDir string
	now     clockFunc
	logger  Logger

	mu               sync.Mutex
	current          *MeetingSessionInfo
	sessionDir       string
	insights         []MeetingInsight
	totalTranscripts int
	totalInsights    int

	autoPause *autoPauseTimer
}

func NewSessionManager(baseDir string, logger Logger) *SessionManager {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	_ = os.MkdirAll(baseDir, 0o755)
	return &SessionManager{baseDir: baseDir, now: realClock, logger: logger}
}

// EnableAutoPause wires a silence-triggered SessionAutoPaused notification.
// onFire is called (without stopping capture) once `duration` elapses with
// no NotifyActivity call.
func (m *SessionManager) EnableAutoPause(duration time.Duration, enabled bool, onFire func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoPause = newAutoPauseTimer(duration, enabled, onFire)
}

// NotifyActivity resets the auto-pause silence timer; call on every
// interim or final transcript event.
func (m *SessionManager) NotifyActivity() {
	m.mu.Lock()
	ap := m.autoPause
	m.mu.Unlock()
	if ap != nil {
		ap.Reset()
	}
}

// StartNewSession mints a new session id (local-YYYYMMDD_HHMMSS) and its
// output directory.
func (m *SessionManager) StartNewSession(title string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	sessionID := now.Format(sessionIDLayout)
	if title == "" {
		title = fmt.Sprintf("Meeting Session %s", sessionID)
	}

	sessionDir := filepath.Join(m.baseDir, "session_"+sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return "", fmt.Errorf("session: create dir: %w", err)
	}

	m.current = &MeetingSessionInfo{
		SessionID: sessionID,
		StartTime: now.Format(sessionTimestampLayout),
		Title:     title,
	}
	m.sessionDir = sessionDir
	m.insights = nil

	m.logger.Info("session: started", "id", sessionID, "dir", sessionDir)
	return sessionID, nil
}

// SessionDir returns the active session's output directory, or "" if none.
func (m *SessionManager) SessionDir() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionDir
}

// LogsDir returns the directory transcript/system-event logs should be
// written to: the active session directory if one exists, otherwise a
// shared "logs/" directory under the base dir (so logging can start before
// a session is created).
func (m *SessionManager) LogsDir() string {
	m.mu.Lock()
	dir := m.sessionDir
	base := m.baseDir
	m.mu.Unlock()
	if dir != "" {
		return dir
	}
	fallback := filepath.Join(base, "logs")
	_ = os.MkdirAll(fallback, 0o755)
	return fallback
}

// AddInsight appends one extracted insight to the active session, starting
// one automatically if none is active.
func (m *SessionManager) AddInsight(insightType InsightType, content, source string, confidence float64) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		if _, err := m.StartNewSession(""); err != nil {
			m.logger.Error("session: failed to auto-start session for insight", "err", err)
			return
		}
		m.mu.Lock()
	}
	defer m.mu.Unlock()

	m.insights = append(m.insights, MeetingInsight{
		Timestamp:  m.now().Format(sessionTimestampLayout),
		Type:       insightType,
		Content:    content,
		Source:     source,
		Confidence: confidence,
	})
	m.totalInsights++
}

var insightCategoryFiles = map[InsightType]string{
	InsightQuestion:   "follow-up-questions.txt",
	InsightKeyPoint:   "key-points.txt",
	InsightActionItem: "action-items.txt",
	InsightDecision:   "decisions.txt",
}

// AppendInsightFile appends one dated batch of newly-recorded insights of a
// single category to its append-only session file. Questions are numbered;
// every other category is bulleted. No-op if items is empty or no session
// is active.
func (m *SessionManager) AppendInsightFile(kind InsightType, items []string) {
	if len(items) == 0 {
		return
	}
	m.mu.Lock()
	sessionDir := m.sessionDir
	ts := m.now().Format(sessionTimestampLayout)
	m.mu.Unlock()
	if sessionDir == "" {
		return
	}

	name, ok := insightCategoryFiles[kind]
	if !ok {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n", ts)
	for i, item := range items {
		if kind == InsightQuestion {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item)
		} else {
			fmt.Fprintf(&b, "• %s\n", item)
		}
	}
	b.WriteString("\n")

	f, err := os.OpenFile(filepath.Join(sessionDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		m.logger.Error("session: open insight category file failed", "file", name, "err", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		m.logger.Error("session: write insight category file failed", "file", name, "err", err)
	}
}

// AddTranscriptCount increments the transcript counter for the active
// session.
func (m *SessionManager) AddTranscriptCount(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.TranscriptCount += count
	}
	m.totalTranscripts += count
}

// EndCurrentSession finalizes the session, writing a JSON and a Markdown
// summary, and returns the JSON file path.
func (m *SessionManager) EndCurrentSession() (string, error) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return "", ErrNoActiveSession
	}
	m.current.EndTime = m.now().Format(sessionTimestampLayout)
	summary := m.buildSummaryLocked()
	sessionDir := m.sessionDir
	sessionID := m.current.SessionID
	m.mu.Unlock()

	jsonPath := filepath.Join(sessionDir, fmt.Sprintf("meeting_summary_%s.json", sessionID))
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", fmt.Errorf("session: write summary json: %w", err)
	}

	mdPath := filepath.Join(sessionDir, fmt.Sprintf("meeting_summary_%s.md", sessionID))
	if err := os.WriteFile(mdPath, []byte(renderMarkdownSummary(summary)), 0o644); err != nil {
		m.logger.Error("session: write summary markdown failed", "err", err)
	}

	m.mu.Lock()
	m.current = nil
	m.insights = nil
	m.sessionDir = ""
	ap := m.autoPause
	m.mu.Unlock()
	if ap != nil {
		ap.Stop()
	}

	return jsonPath, nil
}

func (m *SessionManager) buildSummaryLocked() sessionSummary {
	byType := map[InsightType][]insightExport{}
	for _, ins := range m.insights {
		byType[ins.Type] = append(byType[ins.Type], insightExport{Content: ins.Content, Timestamp: ins.Timestamp, Source: ins.Source})
	}

	start, _ := time.Parse(sessionTimestampLayout, m.current.StartTime)
	end := m.now()
	if m.current.EndTime != "" {
		if t, err := time.Parse(sessionTimestampLayout, m.current.EndTime); err == nil {
			end = t
		}
	}

	return sessionSummary{
		SessionInfo:     *m.current,
		DurationMinutes: int(end.Sub(start).Minutes()),
		Statistics: sessionStatistics{
			TotalTranscripts:    m.current.TranscriptCount,
			TotalInsights:       len(m.insights),
			QuestionsGenerated:  len(byType[InsightQuestion]),
			KeyPointsIdentified: len(byType[InsightKeyPoint]),
			ActionItemsCaptured: len(byType[InsightActionItem]),
			DecisionsRecorded:   len(byType[InsightDecision]),
		},
		Insights: map[string][]insightExport{
			"questions":    byType[InsightQuestion],
			"key_points":   byType[InsightKeyPoint],
			"action_items": byType[InsightActionItem],
			"decisions":    byType[InsightDecision],
		},
		SummaryGenerated: m.now().Format(sessionTimestampLayout),
	}
}

func renderMarkdownSummary(s sessionSummary) string {
	out := fmt.Sprintf("# %s\n\n", s.SessionInfo.Title)
	out += fmt.Sprintf("**Session ID:** %s\n", s.SessionInfo.SessionID)
	out += fmt.Sprintf("**Start Time:** %s\n", s.SessionInfo.StartTime)
	if s.SessionInfo.EndTime != "" {
		out += fmt.Sprintf("**End Time:** %s\n", s.SessionInfo.EndTime)
	}
	out += fmt.Sprintf("**Duration:** %d minutes\n\n", s.DurationMinutes)

	out += "## Statistics\n\n"
	out += fmt.Sprintf("- Total Transcripts: %d\n", s.Statistics.TotalTranscripts)
	out += fmt.Sprintf("- Total Insights: %d\n", s.Statistics.TotalInsights)
	out += fmt.Sprintf("- Questions Generated: %d\n", s.Statistics.QuestionsGenerated)
	out += fmt.Sprintf("- Key Points Identified: %d\n", s.Statistics.KeyPointsIdentified)
	out += fmt.Sprintf("- Action Items Captured: %d\n", s.Statistics.ActionItemsCaptured)
	out += fmt.Sprintf("- Decisions Recorded: %d\n\n", s.Statistics.DecisionsRecorded)

	if kps := s.Insights["key_points"]; len(kps) > 0 {
		out += "## Key Points\n\n"
		for i, kp := range kps {
			out += fmt.Sprintf("%d. %s\n", i+1, kp.Content)
		}
		out += "\n"
	}
	if decisions := s.Insights["decisions"]; len(decisions) > 0 {
		out += "## Decisions\n\n"
		for i, d := range decisions {
			out += fmt.Sprintf("%d. %s\n", i+1, d.Content)
		}
		out += "\n"
	}
	if items := s.Insights["action_items"]; len(items) > 0 {
		out += "## Action Items\n\n"
		for _, it := range items {
			out += fmt.Sprintf("- [ ] %s\n", it.Content)
		}
		out += "\n"
	}
	if questions := s.Insights["questions"]; len(questions) > 0 {
		out += "## Suggested Follow-up Questions\n\n"
		for i, q := range questions {
			out += fmt.Sprintf("%d. %s\n", i+1, q.Content)
		}
		out += "\n"
	}
	return out
}
