package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	chatSystemContext = `You are an expert AI assistant with deep understanding of business conversations and general knowledge. You excel at extracting actionable insights, tracking decisions, and identifying key information from meeting transcripts, as well as answering general questions on a wide range of topics while maintaining context from earlier parts of the conversation.

When asked about meeting content, provide clear, structured, and actionable responses. When asked general questions, answer directly without unnecessary references to meeting context. Always be concise and relevant to the specific question asked.`

	chatHistoryFilename = "private-chat-history.txt"
	chatContextCharCap  = 3000
	chatMaxMemoryTurns  = 10
	chatMaxMemoryAge    = 24 * time.Hour
)

// QuestionType selects one of the chat service's pre-defined question
// templates, or Custom to forward a caller-supplied question verbatim.
type QuestionType string

const (
	QuestionLastSaid      QuestionType = "last_said"
	QuestionWhoSpoke      QuestionType = "who_spoke"
	QuestionSummarize     QuestionType = "summarize"
	QuestionKeyPoints     QuestionType = "key_points"
	QuestionDecisions     QuestionType = "decisions"
	QuestionActionItems   QuestionType = "action_items"
	QuestionOpenQuestions QuestionType = "open_questions"
	QuestionCustom        QuestionType = "custom"
)

var commonChatQuestions = map[QuestionType]string{
	QuestionLastSaid:      "What was the last thing said in the meeting?",
	QuestionWhoSpoke:      "Who has spoken in this meeting so far?",
	QuestionSummarize:     "Summarize the meeting so far.",
	QuestionKeyPoints:     "What are the key points discussed so far?",
	QuestionDecisions:     "What decisions have been made so far?",
	QuestionActionItems:   "What action items have come up so far?",
	QuestionOpenQuestions: "What open questions still need answers?",
}

// chatMemoryMessage is one turn kept in a ChatMemory, with its own
// timestamp so it can be pruned by age independently of turn count.
type chatMemoryMessage struct {
	message Message
	at      time.Time
}

// chatMemory bounds a conversation's history by both turn count and age.
type chatMemory struct {
	mu       sync.Mutex
	messages []chatMemoryMessage
	now      clockFunc
}

func newChatMemory(now clockFunc) *chatMemory {
	if now == nil {
		now = realClock
	}
	return &chatMemory{now: now}
}

func (m *chatMemory) add(role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, chatMemoryMessage{message: Message{Role: role, Content: content}, at: m.now()})
	m.pruneLocked()
}

func (m *chatMemory) pruneLocked() {
	cutoff := m.now().Add(-chatMaxMemoryAge)
	kept := m.messages[:0:0]
	for _, msg := range m.messages {
		if msg.at.After(cutoff) {
			kept = append(kept, msg)
		}
	}
	if len(kept) > chatMaxMemoryTurns {
		kept = kept[len(kept)-chatMaxMemoryTurns:]
	}
	m.messages = kept
}

func (m *chatMemory) snapshot() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	out := make([]Message, len(m.messages))
	for i, msg := range m.messages {
		out[i] = msg.message
	}
	return out
}

func (m *chatMemory) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

// TranscriptTailProvider supplies the recent transcript the Chat Service
// quotes as context; the Engine implements this over the live transcript
// history it already keeps for other purposes.
type TranscriptTailProvider interface {
	TranscriptTail(maxChars int) string
}

// ChatService answers ad hoc questions about the running meeting (or
// anything else) by combining a templated or custom question with recent
// transcript context and bounded conversation memory, in a single LLM call.
// Persists every Q/A pair to the active session's chat history file.
type ChatService struct {
	llm        LLMProvider
	transcript TranscriptTailProvider
	sessions   *SessionManager
	logger     Logger
	warnings   *warningsCounter
	now        clockFunc

	mu     sync.Mutex
	memory *chatMemory
}

func NewChatService(llm LLMProvider, transcript TranscriptTailProvider, sessions *SessionManager, logger Logger, warnings *warningsCounter) *ChatService {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &ChatService{
		llm:        llm,
		transcript: transcript,
		sessions:   sessions,
		logger:     logger,
		warnings:   warnings,
		now:        realClock,
		memory:     newChatMemory(realClock),
	}
}

// Ask resolves the question template (or uses customQuestion verbatim for
// QuestionCustom), makes a single bounded-memory LLM call, persists the Q/A
// pair, and returns the answer.
func (c *ChatService) Ask(ctx context.Context, questionType QuestionType, customQuestion string) (string, error) {
	question := customQuestion
	if questionType != QuestionCustom {
		question = commonChatQuestions[questionType]
		if question == "" {
			question = "What is happening in the meeting?"
		}
	}
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("chat: empty question")
	}

	meetingContext := "No conversation yet. The meeting is just starting or no speech has been detected."
	if c.transcript != nil {
		if tail := c.transcript.TranscriptTail(chatContextCharCap); tail != "" {
			meetingContext = tail
		}
	}

	systemContext := fmt.Sprintf("%s\n\nCURRENT MEETING TRANSCRIPT:\n%s\n\nYou have access to the above meeting transcript and conversation history. Answer questions based on this context when relevant, or provide general assistance when asked about topics outside the meeting.", chatSystemContext, meetingContext)

	c.mu.Lock()
	memory := c.memory
	c.mu.Unlock()

	messages := []Message{{Role: "system", Content: systemContext}}
	messages = append(messages, memory.snapshot()...)
	messages = append(messages, Message{Role: "user", Content: question})

	answer, err := c.llm.Complete(ctx, messages)
	if err != nil {
		ee := classifyLLMError(err)
		c.logger.Error("chat: llm call failed", "err", ee)
		if c.warnings != nil {
			c.warnings.record(ee)
		}
		return "", ee
	}

	memory.add("user", question)
	memory.add("assistant", answer)

	c.persist(questionType, question, answer)
	return answer, nil
}

// ClearMemory drops the service's conversation memory for a fresh start.
func (c *ChatService) ClearMemory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory.clear()
}

func (c *ChatService) persist(questionType QuestionType, question, answer string) {
	sessionDir := c.sessions.SessionDir()
	if sessionDir == "" {
		return
	}

	ts := c.now().Format(sessionTimestampLayout)
	entry := fmt.Sprintf("\n%s\n[%s] [%s]\n%s\nQ: %s\n\nA: %s\n", separatorLine, ts, questionType, separatorLine, question, answer)

	f, err := os.OpenFile(filepath.Join(sessionDir, chatHistoryFilename), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		c.logger.Error("chat: open history file failed", "err", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(entry); err != nil {
		c.logger.Error("chat: write history file failed", "err", err)
	}
}

const separatorLine = "============================================================"
