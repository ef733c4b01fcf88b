package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const translationQueueCap = 5

// TranslationJob is one utterance queued for translation.
type TranslationJob struct {
	ID       string
	Text     string
	FromLang Language
	ToLang   Language
}

// TranslationWorker drains a bounded queue of utterances, translates each
// through an LLMProvider, and forwards the result to whatever sink the
// Engine wires up (transcript sink and/or the TTS controller). The queue
// drops the newest item when full rather than blocking the arbiter.
type TranslationWorker struct {
	llm    LLMProvider
	logger Logger
	warnings *warningsCounter

	queue chan TranslationJob

	onTranslated func(job TranslationJob, translated string)
	onQueued     func(text string)
}

func NewTranslationWorker(llm LLMProvider, logger Logger, warnings *warningsCounter) *TranslationWorker {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &TranslationWorker{
		llm:      llm,
		logger:   logger,
		warnings: warnings,
		queue:    make(chan TranslationJob, translationQueueCap),
	}
}

func (w *TranslationWorker) SetOnTranslated(fn func(job TranslationJob, translated string)) {
	w.onTranslated = fn
}

// SetOnQueued registers a callback fired with the original (pre-translation)
// text every time a job is accepted onto the queue. The Engine wires this to
// Arbiter.NoteQueuedForTranslation so later TTS echo can be recognized.
func (w *TranslationWorker) SetOnQueued(fn func(text string)) {
	w.onQueued = fn
}

// Enqueue queues an utterance for translation, dropping it if the queue is
// full rather than blocking the caller (typically the arbiter's emit path).
func (w *TranslationWorker) Enqueue(text string, from, to Language) {
	job := TranslationJob{ID: uuid.NewString(), Text: text, FromLang: from, ToLang: to}
	select {
	case w.queue <- job:
		if w.onQueued != nil {
			w.onQueued(text)
		}
	default:
		w.logger.Warn("translation: queue full, dropping job", "id", job.ID)
	}
}

// Run drives the dequeue loop until ctx is cancelled. It is meant to be
// started once in its own goroutine by the Engine.
func (w *TranslationWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.queue:
			w.process(ctx, job)
		case <-time.After(1 * time.Second):
		}
	}
}

func (w *TranslationWorker) process(ctx context.Context, job TranslationJob) {
	prompt := fmt.Sprintf(
		"Translate the following text from %s to %s. Return only the translation, with no quotes or commentary.\n\n%s",
		job.FromLang, job.ToLang, job.Text,
	)
	messages := []Message{{Role: "user", Content: prompt}}

	translated, err := w.llm.Complete(ctx, messages)
	if err != nil {
		ee := classifyLLMError(err)
		w.logger.Error("translation: llm call failed", "id", job.ID, "err", ee)
		if w.warnings != nil {
			w.warnings.record(ee)
		}
		return
	}

	if w.onTranslated != nil {
		w.onTranslated(job, translated)
	}
}
