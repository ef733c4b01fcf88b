package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

const sttFeedSampleRate = 16000

// transcriptEntry is one final utterance kept in the Engine's rolling
// transcript history, used both for the Chat Service's context window and
// for freezing Arbiter.FreezeSeenBeforeTTS when a translation feature turns
// on mid-session.
type transcriptEntry struct {
	at     time.Time
	source Source
	text   string
}

// Engine wires every package in this tree into the single object an
// embedder drives: a duplex Mixer carrying the meeting's physical
// microphone to the virtual loopback device, two independent STT Sessions
// (mic and, optionally, the loopback capture) feeding a shared Arbiter, and
// the translation/TTS/insight/session/chat workers hanging off its emit
// sink. Devices are selected automatically at construction time using the
// same physical/virtual/loopback heuristics as the Device Directory.
type Engine struct {
	logger Logger
	cfg    Config

	mctx *malgo.AllocatedContext

	mixer                 *Mixer
	micDeviceID           *malgo.DeviceID
	loopbackDeviceID      *malgo.DeviceID
	micCaptureDevice      *malgo.Device
	loopbackCaptureDevice *malgo.Device

	voices        *VoiceManager
	ttsBuffer     *TTSBuffer
	ttsRouter     *TTSRouter
	ttsController *TTSController

	micSession    *Session
	systemSession *Session

	arbiter           *Arbiter
	translationWorker *TranslationWorker
	insightEngine     *InsightEngine
	sessions          *SessionManager
	chat              *ChatService
	translog          *TranscriptLogger
	warnings          *warningsCounter

	events chan Event

	speechLang Language

	mu                sync.Mutex
	running           bool
	runCancel         context.CancelFunc
	textTranslationOn bool
	ttsToMicOn        bool
	translateTarget   Language

	histMu  sync.Mutex
	history []transcriptEntry
}

// NewEngine selects audio devices, constructs every worker, and wires them
// together. systemSTT and localPlayback may be nil (no loopback capture /
// no local monitor output, respectively); everything else is required.
func NewEngine(cfg Config, baseDir string, micSTT, systemSTT StreamingSTTProvider, llm LLMProvider, tts TTSProvider, vad VADProvider, localPlayback LocalPlaybackSink, logger Logger) (*Engine, error) {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if micSTT == nil || llm == nil || tts == nil {
		return nil, ErrNilProvider
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, newEngineError(ErrKindDeviceOpenFailure, fmt.Errorf("engine: init audio context: %w", err))
	}

	captureInfos, captureIDs, err := enumerateDeviceInfos(mctx, malgo.Capture)
	if err != nil {
		mctx.Uninit()
		return nil, newEngineError(ErrKindDeviceOpenFailure, fmt.Errorf("engine: enumerate capture devices: %w", err))
	}
	playbackInfos, playbackIDs, err := enumerateDeviceInfos(mctx, malgo.Playback)
	if err != nil {
		mctx.Uninit()
		return nil, newEngineError(ErrKindDeviceOpenFailure, fmt.Errorf("engine: enumerate playback devices: %w", err))
	}

	micIdx := SelectPhysicalMic(captureInfos)
	if micIdx < 0 {
		mctx.Uninit()
		return nil, newEngineError(ErrKindNoPhysicalMic, fmt.Errorf("engine: no physical microphone found"))
	}
	virtualIdx := SelectVirtualOutput(playbackInfos)
	if virtualIdx < 0 {
		mctx.Uninit()
		return nil, newEngineError(ErrKindNoVirtualDevice, fmt.Errorf("engine: no virtual loopback output device found"))
	}

	micID := captureIDs[micIdx]
	virtualID := playbackIDs[virtualIdx]

	var loopbackID *malgo.DeviceID
	loopbackIdx := SelectLoopback(captureInfos)
	if loopbackIdx >= 0 {
		loopbackID = &captureIDs[loopbackIdx]
	} else {
		logger.Warn("engine: no loopback capture device found, system-source transcription disabled")
		systemSTT = nil
	}

	voices, err := NewVoiceManager()
	if err != nil {
		mctx.Uninit()
		return nil, err
	}

	warnings := newWarningsCounter(nil)
	sessions := NewSessionManager(baseDir, logger)
	arbiter := NewArbiter(logger)
	translationWorker := NewTranslationWorker(llm, logger, warnings)
	insightEngine := NewInsightEngine(llm, sessions, cfg.MinAnalysisInterval, cfg.MinConversationExchanges, cfg.MinTextLength, logger, warnings)
	translog := NewTranscriptLogger(sessions, logger)

	mixer := NewMixer(mctx, &micID, &virtualID, logger)
	ttsBuffer := NewTTSBuffer(tts, voices, logger)
	ttsRouter := NewTTSRouter(mixer, localPlayback, logger)
	ttsController := NewTTSController(ttsBuffer, ttsRouter, logger)

	speechLang := Language(cfg.SpeechLanguage)

	micSession := NewSession(SourceMic, micSTT, speechLang, cfg.CandidateLanguages, cfg.EnableDiarization, logger, warnings)
	if vad != nil {
		micSession.EnableVADPrefilter(vad.Clone())
	}
	var systemSession *Session
	if systemSTT != nil {
		systemSession = NewSession(SourceSystem, systemSTT, speechLang, cfg.CandidateLanguages, cfg.EnableDiarization, logger, warnings)
		if vad != nil {
			systemSession.EnableVADPrefilter(vad.Clone())
		}
	}

	e := &Engine{
		logger:                logger,
		cfg:                   cfg,
		mctx:                  mctx,
		mixer:                 mixer,
		voices:                voices,
		ttsBuffer:             ttsBuffer,
		ttsRouter:             ttsRouter,
		ttsController:         ttsController,
		micSession:            micSession,
		systemSession:         systemSession,
		arbiter:               arbiter,
		translationWorker:     translationWorker,
		insightEngine:         insightEngine,
		sessions:              sessions,
		translog:              translog,
		warnings:              warnings,
		events:                make(chan Event, 256),
		speechLang:            speechLang,
	}
	e.chat = NewChatService(llm, e, sessions, logger, warnings)
	e.micDeviceID = &micID
	e.loopbackDeviceID = loopbackID

	arbiter.SetOnEmit(e.handleArbiterEmit)
	translationWorker.SetOnQueued(arbiter.NoteQueuedForTranslation)
	translationWorker.SetOnTranslated(e.handleTranslated)
	ttsController.SetOnStateChange(e.handleControllerState)
	insightEngine.SetOnInsight(e.handleInsight)
	warnings.setOnWarn(e.handleWarning)
	micSession.SetOnLanguageChange(func(lang string) { e.handleLanguageChanged(SourceMic, lang) })
	if systemSession != nil {
		systemSession.SetOnLanguageChange(func(lang string) { e.handleLanguageChanged(SourceSystem, lang) })
	}

	return e, nil
}

// enumerateDeviceInfos converts malgo's device enumeration into the
// selection package's backend-independent DeviceInfo, pulling channel
// counts from the full per-device query so SelectPhysicalMic/
// SelectVirtualOutput/SelectLoopback can apply their heuristics.
func enumerateDeviceInfos(mctx *malgo.AllocatedContext, deviceType malgo.DeviceType) ([]DeviceInfo, []malgo.DeviceID, error) {
	raw, err := mctx.Devices(deviceType)
	if err != nil {
		return nil, nil, err
	}

	infos := make([]DeviceInfo, len(raw))
	ids := make([]malgo.DeviceID, len(raw))
	for i, d := range raw {
		channels := 2
		if full, err := mctx.DeviceInfo(deviceType, d.ID, malgo.Shared); err == nil {
			channels = int(full.MaxChannels)
		}

		info := DeviceInfo{Name: d.Name()}
		switch deviceType {
		case malgo.Capture:
			info.MaxInput = channels
			info.IsDefaultIn = d.IsDefault > 0
		case malgo.Playback:
			info.MaxOutput = channels
			info.IsDefaultOut = d.IsDefault > 0
		}
		infos[i] = info
		ids[i] = d.ID
	}
	return infos, ids, nil
}

// startCaptureFeed opens a capture-only device at the STT feed sample rate
// (16kHz mono), separate from the Mixer's own 48kHz duplex device, since
// push-streaming STT needs a different rate/format than the mixer's
// internal passthrough representation.
func startCaptureFeed(mctx *malgo.AllocatedContext, deviceID *malgo.DeviceID, onChunk func([]byte)) (*malgo.Device, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.Capture.DeviceID = deviceID
	cfg.SampleRate = sttFeedSampleRate

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			if len(pInput) == 0 {
				return
			}
			chunk := make([]byte, len(pInput))
			copy(chunk, pInput)
			onChunk(chunk)
		},
	})
	if err != nil {
		return nil, err
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, err
	}
	return device, nil
}

// StartTranscription opens the mixer and both STT capture feeds, starts the
// mic (and, if available, loopback) Sessions, begins draining the
// translation queue, and mints a new persisted session. The run context it
// derives from ctx is cancelled by StopTranscription.
func (e *Engine) StartTranscription(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.runCancel = cancel
	e.running = true
	e.mu.Unlock()

	if err := e.mixer.Start(); err != nil {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		cancel()
		return err
	}

	micDevice, err := startCaptureFeed(e.mctx, e.micDeviceID, e.micSession.PushPCM)
	if err != nil {
		e.mixer.Stop()
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		cancel()
		return newEngineError(ErrKindDeviceOpenFailure, fmt.Errorf("engine: open mic capture feed: %w", err))
	}
	e.micCaptureDevice = micDevice

	if err := e.micSession.Start(runCtx, e.arbiter.Ingest, e.arbiter.Ingest); err != nil {
		e.logger.Error("engine: mic session failed to start", "err", err)
	}

	if e.systemSession != nil && e.loopbackDeviceID != nil {
		loopbackDevice, err := startCaptureFeed(e.mctx, e.loopbackDeviceID, e.systemSession.PushPCM)
		if err != nil {
			e.logger.Warn("engine: open loopback capture feed failed, continuing mic-only", "err", err)
		} else {
			e.loopbackCaptureDevice = loopbackDevice
			if err := e.systemSession.Start(runCtx, e.arbiter.Ingest, e.arbiter.Ingest); err != nil {
				e.logger.Error("engine: system session failed to start", "err", err)
			}
		}
	}

	go e.translationWorker.Run(runCtx)

	e.sessions.EnableAutoPause(time.Duration(e.cfg.AutoPauseSilenceSeconds)*time.Second, e.cfg.EnableAutoPause, e.handleAutoPause)
	sessionID, err := e.sessions.StartNewSession("")
	if err != nil {
		e.logger.Error("engine: failed to start persisted session", "err", err)
	}
	e.translog.LogSystemEvent("capture started")
	e.emit(Event{Type: EventSessionStarted, SessionID: sessionID})

	return nil
}

// StopTranscription tears down both capture feeds and the mixer, stops the
// STT sessions, and finalizes the persisted session summary.
func (e *Engine) StopTranscription() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.runCancel
	e.runCancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	e.micSession.Stop()
	if e.systemSession != nil {
		e.systemSession.Stop()
	}

	if e.micCaptureDevice != nil {
		e.micCaptureDevice.Uninit()
		e.micCaptureDevice = nil
	}
	if e.loopbackCaptureDevice != nil {
		e.loopbackCaptureDevice.Uninit()
		e.loopbackCaptureDevice = nil
	}
	e.mixer.Stop()
	e.ttsController.Stop()

	e.translog.LogSystemEvent("capture stopped")
	sessionID, err := e.sessions.EndCurrentSession()
	if err != nil {
		e.logger.Warn("engine: no active session to end", "err", err)
	}
	e.emit(Event{Type: EventSessionEnded, SessionID: sessionID})
}

// Close stops transcription if it is running, releases the underlying audio
// context and closes the event channel. Call once, when the Engine itself is
// being torn down.
func (e *Engine) Close() {
	e.StopTranscription()
	e.mctx.Uninit()
	close(e.events)
}

// handleLanguageChanged is the side-channel notification a Session fires on
// first detecting a new language while running in LanguageAuto mode. It is
// recorded to the system-events log and forwarded to the embedder.
func (e *Engine) handleLanguageChanged(source Source, lang string) {
	e.translog.LogSystemEvent(fmt.Sprintf("language changed to %s (%s)", lang, source))
	e.emit(Event{Type: EventLanguageChanged, Data: LanguageChangeEvent{Source: source, Language: lang}})
}

func (e *Engine) handleAutoPause() {
	e.translog.LogSystemEvent("auto-paused: no transcript activity")
	e.emit(Event{Type: EventSessionAutoPaused})
}

// handleArbiterEmit is the Arbiter's single forwarding sink: every
// non-duplicate utterance flows through here to the transcript log, the
// persisted transcript count, the insight engine, the translation queue (if
// a translation feature is enabled), and the embedder's event channel.
func (e *Engine) handleArbiterEmit(ev TranscriptEvent) {
	e.translog.LogTranscript(ev)
	e.sessions.NotifyActivity()

	evType := EventTranscriptInterim
	if ev.IsFinal {
		evType = EventTranscriptFinal
	}
	e.emit(Event{Type: evType, Data: ev})

	if !ev.IsFinal {
		return
	}

	e.sessions.AddTranscriptCount(1)

	if ev.Source != SourceTTS {
		e.recordHistory(ev)
		e.insightEngine.AddUtterance(context.Background(), ev.Text)
	}

	e.mu.Lock()
	ttsOn := e.ttsToMicOn
	shouldTranslate := ev.Source == SourceMic && (e.textTranslationOn || ttsOn)
	target := e.translateTarget
	e.mu.Unlock()

	// Speech already in the transcript when TTS-to-mic was enabled is never
	// queued again while that feature is on.
	if shouldTranslate && ttsOn && e.arbiter.seenBeforeTTS.contains(ev.Text) {
		shouldTranslate = false
	}

	if shouldTranslate {
		e.translationWorker.Enqueue(ev.Text, e.speechLang, target)
	}
}

func (e *Engine) handleTranslated(job TranslationJob, translated string) {
	e.mu.Lock()
	textOn := e.textTranslationOn
	ttsOn := e.ttsToMicOn
	e.mu.Unlock()

	if textOn {
		e.emit(Event{Type: EventTranslationReady, Data: translated})
	}
	if ttsOn {
		e.ttsController.AddTranslation(context.Background(), translated)
	}
}

// handleControllerState auto-speaks a buffered translation as soon as it's
// ready, but only while TTS-to-mic is the active feature; a text-only
// translation never drives audio playback.
func (e *Engine) handleControllerState(state ControllerState) {
	e.emit(Event{Type: EventControllerState, Data: state})

	e.mu.Lock()
	ttsOn := e.ttsToMicOn
	e.mu.Unlock()

	if state == StateReady && ttsOn {
		e.ttsController.Speak()
	}
}

// InsightEvent is the Data payload for EventInsightAdded.
type InsightEvent struct {
	Type    InsightType
	Content string
}

func (e *Engine) handleInsight(kind InsightType, content string) {
	e.emit(Event{Type: EventInsightAdded, Data: InsightEvent{Type: kind, Content: content}})
}

func (e *Engine) handleWarning(err *EngineError) {
	e.emit(Event{Type: EventWarning, Data: err})
}

func (e *Engine) recordHistory(ev TranscriptEvent) {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	e.history = append(e.history, transcriptEntry{at: time.Now(), source: ev.Source, text: ev.Text})
	if len(e.history) > 2000 {
		e.history = e.history[len(e.history)-2000:]
	}
}

// TranscriptTail implements TranscriptTailProvider for the Chat Service,
// returning up to maxChars of the most recent transcript, oldest first.
func (e *Engine) TranscriptTail(maxChars int) string {
	e.histMu.Lock()
	defer e.histMu.Unlock()

	var b strings.Builder
	total := 0
	start := len(e.history)
	for start > 0 {
		line := e.history[start-1]
		lineLen := len(line.text) + len(line.source) + 15
		if total+lineLen > maxChars {
			break
		}
		total += lineLen
		start--
	}
	for _, entry := range e.history[start:] {
		fmt.Fprintf(&b, "[%s] [%s] %s\n", entry.at.Format("15:04:05"), entry.source, entry.text)
	}
	return b.String()
}

func (e *Engine) historySnapshot() []string {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	out := make([]string, len(e.history))
	for i, entry := range e.history {
		out[i] = entry.text
	}
	return out
}

// EnableTextTranslation turns on translated-text events (EventTranslationReady)
// for every mic-source final, without affecting TTS playback.
func (e *Engine) EnableTextTranslation(languageName string) error {
	code, ok := GetLanguageCode(languageName)
	if !ok {
		return fmt.Errorf("engine: unknown language %q", languageName)
	}
	e.mu.Lock()
	e.textTranslationOn = true
	e.translateTarget = code
	e.mu.Unlock()
	e.translog.LogSystemEvent("text translation enabled: " + languageName)
	return nil
}

// DisableTextTranslation turns EventTranslationReady back off.
func (e *Engine) DisableTextTranslation() {
	e.mu.Lock()
	e.textTranslationOn = false
	e.mu.Unlock()
	e.translog.LogSystemEvent("text translation disabled")
}

// EnableTTSToMic turns on spoken translation of mic-source speech, routed
// back into the meeting through the Mixer. Returns an error if the Mixer is
// not running. Freezes the Arbiter's seen-before-TTS set first so prior
// speech is never retroactively reclassified as TTS echo, and drops any
// translation jobs still waiting in the queue.
func (e *Engine) EnableTTSToMic(languageName string) error {
	code, ok := GetLanguageCode(languageName)
	if !ok {
		return fmt.Errorf("engine: unknown language %q", languageName)
	}
	e.mixer.mu.Lock()
	mixerRunning := e.mixer.running
	e.mixer.mu.Unlock()
	if !mixerRunning {
		return fmt.Errorf("engine: tts-to-mic needs the mixer running; start transcription first")
	}

	e.arbiter.FreezeSeenBeforeTTS(e.historySnapshot())
	for drained := false; !drained; {
		select {
		case <-e.translationWorker.queue:
		default:
			drained = true
		}
	}
	e.ttsController.SetLanguage(languageName, "")

	e.mu.Lock()
	e.ttsToMicOn = true
	e.translateTarget = code
	e.mu.Unlock()

	e.arbiter.SetTTSToMicEnabled(true)
	e.translog.LogSystemEvent("tts-to-mic enabled: " + languageName)
	return nil
}

// DisableTTSToMic stops spoken translation: it halts in-flight playback and
// clears the buffered audio, the pending translation queue and the
// seen-before-TTS set.
func (e *Engine) DisableTTSToMic() {
	e.mu.Lock()
	e.ttsToMicOn = false
	e.mu.Unlock()

	e.arbiter.SetTTSToMicEnabled(false)
	e.ttsController.Stop()
	for drained := false; !drained; {
		select {
		case <-e.translationWorker.queue:
		default:
			drained = true
		}
	}
	e.arbiter.FreezeSeenBeforeTTS(nil)
	e.translog.LogSystemEvent("tts-to-mic disabled")
}

// Speak plays the currently buffered TTS audio, if any.
func (e *Engine) Speak() bool {
	return e.ttsController.Speak()
}

// StopSpeaking halts in-flight playback.
func (e *Engine) StopSpeaking() {
	e.ttsController.Stop()
}

// SetTTSLanguage resolves and locks in a voice by friendly language name,
// independent of whether TTS-to-mic is currently enabled.
func (e *Engine) SetTTSLanguage(languageName string) {
	e.ttsController.SetLanguage(languageName, "")
}

// Ask forwards a question to the Chat Service.
func (e *Engine) Ask(ctx context.Context, questionType QuestionType, customQuestion string) (string, error) {
	return e.chat.Ask(ctx, questionType, customQuestion)
}

// GetWarnings returns a snapshot of every distinct error kind recorded by
// any worker since the last ClearWarnings.
func (e *Engine) GetWarnings() []WarningCount {
	return e.warnings.snapshot()
}

// ClearWarnings resets the warnings counter.
func (e *Engine) ClearWarnings() {
	e.warnings.clear()
}

// Events returns the channel an embedder should range over for every
// transcript, translation, insight, state-change and warning notification
// the Engine produces.
func (e *Engine) Events() <-chan Event {
	return e.events
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("engine: event channel full, dropping event", "type", ev.Type)
	}
}
