package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kata-ai/meeting-assistant/internal/config"
	"github.com/kata-ai/meeting-assistant/internal/logging"
	"github.com/kata-ai/meeting-assistant/pkg/engine"
	llmProvider "github.com/kata-ai/meeting-assistant/pkg/providers/llm"
	sttProvider "github.com/kata-ai/meeting-assistant/pkg/providers/stt"
	ttsProvider "github.com/kata-ai/meeting-assistant/pkg/providers/tts"
)

func main() {
	cfg, envFileFound, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if !envFileFound {
		log.Println("Note: No .env file found, using system environment variables")
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}

	if cfg.LokutorAPIKey == "" {
		log.Fatal("Error: LOKUTOR_API_KEY must be set.")
	}
	tts := ttsProvider.NewLokutorTTS(cfg.LokutorAPIKey)

	stt, err := buildSTTProvider(cfg)
	if err != nil {
		log.Fatal(err)
	}

	llm, err := buildLLMProvider(cfg)
	if err != nil {
		log.Fatal(err)
	}

	vad := engine.NewRMSVAD(0.02, 500*time.Millisecond)

	// The configured STT providers are one-shot REST recognizers; wrap each
	// session's feed independently so the loopback and mic captures don't
	// share buffering state.
	micSTT := engine.NewVADSegmentingSTT(stt, vad, logger)
	systemSTT := engine.NewVADSegmentingSTT(stt, vad, logger)

	eng, err := engine.NewEngine(cfg.EngineConfig(), cfg.SessionBaseDir, micSTT, systemSTT, llm, tts, vad, nil, logger)
	if err != nil {
		log.Fatalf("failed to construct engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.StartTranscription(ctx); err != nil {
		log.Fatalf("failed to start transcription: %v", err)
	}

	go printEvents(eng)
	go runCommandLoop(ctx, eng, cfg.AgentLanguage)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("\nShutting down...")
	eng.Close()
}

func buildSTTProvider(cfg *config.Config) (engine.STTProvider, error) {
	switch cfg.STTProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for STT_PROVIDER=openai")
		}
		return sttProvider.NewOpenAISTT(cfg.OpenAIAPIKey, ""), nil
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY must be set for STT_PROVIDER=deepgram")
		}
		return sttProvider.NewDeepgramSTT(cfg.DeepgramAPIKey), nil
	case "assemblyai":
		if cfg.AssemblyAIAPIKey == "" {
			return nil, fmt.Errorf("ASSEMBLYAI_API_KEY must be set for STT_PROVIDER=assemblyai")
		}
		return sttProvider.NewAssemblyAISTT(cfg.AssemblyAIAPIKey), nil
	case "groq", "":
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY must be set for STT_PROVIDER=groq")
		}
		return sttProvider.NewGroqSTT(cfg.GroqAPIKey, ""), nil
	default:
		return nil, fmt.Errorf("unknown STT_PROVIDER %q", cfg.STTProvider)
	}
}

func buildLLMProvider(cfg *config.Config) (engine.LLMProvider, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for LLM_PROVIDER=openai")
		}
		return llmProvider.NewOpenAILLM(cfg.OpenAIAPIKey, cfg.LLMModel), nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set for LLM_PROVIDER=anthropic")
		}
		return llmProvider.NewAnthropicLLM(cfg.AnthropicAPIKey, cfg.LLMModel), nil
	case "google":
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY must be set for LLM_PROVIDER=google")
		}
		return llmProvider.NewGoogleLLM(cfg.GoogleAPIKey, cfg.LLMModel), nil
	case "groq", "":
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY must be set for LLM_PROVIDER=groq")
		}
		return llmProvider.NewGroqLLM(cfg.GroqAPIKey, cfg.LLMModel), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func printEvents(eng *engine.Engine) {
	for ev := range eng.Events() {
		switch ev.Type {
		case engine.EventTranscriptFinal:
			t := ev.Data.(engine.TranscriptEvent)
			fmt.Printf("\r\033[K📝 [%s] %s\n", t.Source, t.Text)
		case engine.EventTranslationReady:
			fmt.Printf("\r\033[K🌍 [TRANSLATION] %s\n", ev.Data.(string))
		case engine.EventInsightAdded:
			ins := ev.Data.(engine.InsightEvent)
			fmt.Printf("\r\033[K💡 [%s] %s\n", ins.Type, ins.Content)
		case engine.EventControllerState:
			fmt.Printf("\r\033[K🔊 [TTS] %s\n", ev.Data.(engine.ControllerState))
		case engine.EventSessionAutoPaused:
			fmt.Printf("\r\033[K⏸  [AUTO-PAUSE] no activity detected\n")
		case engine.EventSessionStarted:
			fmt.Printf("\r\033[K▶️  [SESSION] started %s\n", ev.SessionID)
		case engine.EventSessionEnded:
			fmt.Printf("\r\033[K⏹  [SESSION] ended %s\n", ev.SessionID)
		case engine.EventWarning:
			fmt.Printf("\r\033[K⚠️  [WARNING] %v\n", ev.Data)
		}
	}
}

// runCommandLoop offers a minimal stdin command surface for exercising the
// features that don't have a better embedder surface in this demo binary:
// enabling/disabling translation and TTS-to-mic, and asking the chat
// service common questions.
func runCommandLoop(ctx context.Context, eng *engine.Engine, defaultLanguage string) {
	fmt.Println("Commands: translate <language> | tts <language> | stop-tts | ask <question> | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		cmd := fields[0]
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}

		switch cmd {
		case "translate":
			if arg == "" {
				arg = defaultLanguage
			}
			if err := eng.EnableTextTranslation(arg); err != nil {
				fmt.Println("error:", err)
			}
		case "tts":
			if arg == "" {
				arg = defaultLanguage
			}
			if err := eng.EnableTTSToMic(arg); err != nil {
				fmt.Println("error:", err)
			}
		case "stop-tts":
			eng.DisableTTSToMic()
		case "ask":
			answer, err := eng.Ask(ctx, engine.QuestionCustom, arg)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("A:", answer)
		case "quit":
			return
		default:
			fmt.Println("unknown command:", cmd)
		}
	}
}
