package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	insightAnalysisCharCap = 4000
	insightSummaryCharCap  = 3000
	similarityThreshold    = 0.75
	recentPerCategoryCap   = 5
)

type insightLLMResult struct {
	Questions   []string `json:"questions"`
	KeyPoints   []string `json:"key_points"`
	ActionItems []string `json:"action_items"`
	Decisions   []string `json:"decisions"`
}

// InsightEngine batches recent transcript context and periodically asks an
// LLMProvider for a consolidated extraction of questions, key points,
// action items and decisions, deduplicating against everything already
// recorded (cross-batch) and within the same response (intra-batch).
type InsightEngine struct {
	llm     LLMProvider
	limiter *rate.Limiter
	logger  Logger
	warnings *warningsCounter
	sessions *SessionManager

	minExchanges   int
	minTextLength  int

	mu              sync.Mutex
	utterances      []string
	lastAnalyzedLen int
	seen            []string // trimmed content of every insight ever emitted, all categories
	recentByKind    map[InsightType][]string // last few captured per category, for prompt context

	onInsight func(kind InsightType, content string)
}

// SetOnInsight registers a callback fired once per newly-recorded (deduped)
// insight. The Engine uses this to forward EventInsightAdded notifications.
func (e *InsightEngine) SetOnInsight(fn func(kind InsightType, content string)) {
	e.onInsight = fn
}

// NewInsightEngine constructs an engine rate-limited to one analysis every
// minIntervalSeconds.
func NewInsightEngine(llm LLMProvider, sessions *SessionManager, minIntervalSeconds, minExchanges, minTextLength int, logger Logger, warnings *warningsCounter) *InsightEngine {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &InsightEngine{
		llm:           llm,
		sessions:      sessions,
		limiter:       rate.NewLimiter(rate.Every(time.Duration(minIntervalSeconds)*time.Second), 1),
		logger:        logger,
		warnings:      warnings,
		minExchanges:  minExchanges,
		minTextLength: minTextLength,
		recentByKind:  make(map[InsightType][]string),
	}
}

// AddUtterance feeds a new final transcript into the rolling context and
// triggers analysis once the trigger policy (enough new utterances, rate
// limit allows, last utterance long enough) is satisfied.
func (e *InsightEngine) AddUtterance(ctx context.Context, text string) {
	e.mu.Lock()
	e.utterances = append(e.utterances, text)
	newCount := len(e.utterances) - e.lastAnalyzedLen
	e.mu.Unlock()

	if newCount < e.minExchanges {
		return
	}
	if len(strings.TrimSpace(text)) < e.minTextLength {
		return
	}
	if !e.limiter.Allow() {
		return
	}

	go e.analyze(ctx)
}

func (e *InsightEngine) analyze(ctx context.Context) {
	e.mu.Lock()
	transcriptContext := buildContext(e.utterances, insightAnalysisCharCap)
	e.lastAnalyzedLen = len(e.utterances)
	alreadyCaptured := map[InsightType][]string{
		InsightQuestion:   append([]string(nil), e.recentByKind[InsightQuestion]...),
		InsightKeyPoint:   append([]string(nil), e.recentByKind[InsightKeyPoint]...),
		InsightActionItem: append([]string(nil), e.recentByKind[InsightActionItem]...),
		InsightDecision:   append([]string(nil), e.recentByKind[InsightDecision]...),
	}
	e.mu.Unlock()

	prompt := buildAnalysisPrompt(transcriptContext, alreadyCaptured)
	raw, err := e.llm.Complete(ctx, []Message{{Role: "user", Content: prompt}})
	if err != nil {
		ee := classifyLLMError(err)
		e.logger.Error("insight: llm call failed", "err", ee)
		if e.warnings != nil {
			e.warnings.record(ee)
		}
		return
	}

	result, err := parseInsightJSON(raw)
	if err != nil {
		e.logger.Warn("insight: failed to parse LLM response", "err", err)
		if e.warnings != nil {
			e.warnings.record(newEngineError(ErrKindParseError, err))
		}
		return
	}

	e.recordDeduped(InsightQuestion, result.Questions)
	e.recordDeduped(InsightKeyPoint, result.KeyPoints)
	e.recordDeduped(InsightActionItem, result.ActionItems)
	e.recordDeduped(InsightDecision, result.Decisions)
}

// recordDeduped filters candidates against everything already seen
// (cross-batch) and against each other within this same call
// (intra-batch), using an LCS-ratio similarity threshold, then records the
// survivors through the Session Manager.
func (e *InsightEngine) recordDeduped(kind InsightType, candidates []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var kept []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if e.isDuplicateLocked(c, kept) {
			continue
		}
		kept = append(kept, c)
		e.seen = append(e.seen, c)
	}

	if len(kept) > 0 {
		recent := append(e.recentByKind[kind], kept...)
		if len(recent) > recentPerCategoryCap {
			recent = recent[len(recent)-recentPerCategoryCap:]
		}
		e.recentByKind[kind] = recent
	}

	for _, c := range kept {
		e.sessions.AddInsight(kind, c, "insight_engine", 1.0)
		if e.onInsight != nil {
			e.onInsight(kind, c)
		}
	}
	e.sessions.AppendInsightFile(kind, kept)
}

func (e *InsightEngine) isDuplicateLocked(candidate string, intraBatch []string) bool {
	for _, s := range e.seen {
		if similarityRatio(candidate, s) >= similarityThreshold {
			return true
		}
	}
	for _, s := range intraBatch {
		if similarityRatio(candidate, s) >= similarityThreshold {
			return true
		}
	}
	return false
}

func buildContext(utterances []string, capChars int) string {
	var b strings.Builder
	total := 0
	start := len(utterances)
	for start > 0 {
		line := utterances[start-1]
		if total+len(line) > capChars {
			break
		}
		total += len(line)
		start--
	}
	for _, u := range utterances[start:] {
		b.WriteString(u)
		b.WriteString("\n")
	}
	return b.String()
}

func buildAnalysisPrompt(context string, alreadyCaptured map[InsightType][]string) string {
	return fmt.Sprintf(`Analyze the following meeting transcript excerpt. Extract, as JSON with keys
"questions", "key_points", "action_items" and "decisions" (each an array of
short strings), anything new worth recording. Return ONLY the JSON object.

Already captured, do not repeat these or close variants of them:
- questions: %s
- key_points: %s
- action_items: %s
- decisions: %s

If a category has nothing new beyond what's already captured, return an
empty array [] for it.

Transcript:
%s`,
		formatAlreadyCaptured(alreadyCaptured[InsightQuestion]),
		formatAlreadyCaptured(alreadyCaptured[InsightKeyPoint]),
		formatAlreadyCaptured(alreadyCaptured[InsightActionItem]),
		formatAlreadyCaptured(alreadyCaptured[InsightDecision]),
		context)
}

func formatAlreadyCaptured(items []string) string {
	if len(items) == 0 {
		return "(none yet)"
	}
	return strings.Join(items, "; ")
}

func parseInsightJSON(raw string) (insightLLMResult, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var result insightLLMResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return insightLLMResult{}, fmt.Errorf("insight: parse json: %w", err)
	}
	return result, nil
}

// similarityRatio computes an LCS-length-based similarity ratio in
// [0.0, 1.0], matching difflib.SequenceMatcher.ratio()'s common definition:
// 2*M / T where M is the longest common subsequence length and T is the
// combined length of both strings.
func similarityRatio(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	lcs := longestCommonSubsequence(a, b)
	return float64(2*lcs) / float64(len(a)+len(b))
}

func longestCommonSubsequence(a, b string) int {
	n, m := len(a), len(b)
	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[m]
}
