// Package config loads the agent's environment-variable configuration into
// a single struct tags can populate instead of a sequence of Getenv calls.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/kata-ai/meeting-assistant/pkg/engine"
)

// Config is every environment-variable-tunable setting the agent needs:
// provider API keys, provider selection, and the engine's own tunables.
type Config struct {
	GroqAPIKey       string `env:"GROQ_API_KEY"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	GoogleAPIKey     string `env:"GOOGLE_API_KEY"`
	DeepgramAPIKey   string `env:"DEEPGRAM_API_KEY"`
	AssemblyAIAPIKey string `env:"ASSEMBLYAI_API_KEY"`
	LokutorAPIKey    string `env:"LOKUTOR_API_KEY"`

	STTProvider string `env:"STT_PROVIDER" envDefault:"groq"`
	LLMProvider string `env:"LLM_PROVIDER" envDefault:"groq"`
	LLMModel    string `env:"LLM_MODEL"`

	AgentLanguage string `env:"AGENT_LANGUAGE" envDefault:"es-ES"`

	SpeechLanguage           string   `env:"SPEECH_LANGUAGE" envDefault:"auto"`
	CandidateLanguages       []string `env:"CANDIDATE_LANGUAGES" envSeparator:"," envDefault:"en-US,ru-RU,tr-TR"`
	EnableDiarization        bool     `env:"ENABLE_DIARIZATION" envDefault:"true"`
	MinSpeakers              int      `env:"MIN_SPEAKERS" envDefault:"2"`
	MaxSpeakers              int      `env:"MAX_SPEAKERS" envDefault:"10"`
	SessionBaseDir           string   `env:"SESSION_BASE_DIR" envDefault:"./sessions"`
	AutoPauseSilenceSeconds  int      `env:"AUTO_PAUSE_SILENCE_DURATION" envDefault:"60"`
	EnableAutoPause          bool     `env:"ENABLE_AUTO_PAUSE" envDefault:"true"`
	MinConversationExchanges int      `env:"MIN_CONVERSATION_EXCHANGES" envDefault:"3"`
	MinAnalysisIntervalSecs  int      `env:"MIN_ANALYSIS_INTERVAL" envDefault:"45"`
	MinTextLength            int      `env:"MIN_TEXT_LENGTH" envDefault:"50"`
	SimilarityThreshold      float64  `env:"SIMILARITY_THRESHOLD" envDefault:"0.75"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Load reads .env (if present) into the process environment, then parses
// Config from the environment. envFileFound reports whether a .env file was
// actually read, so the caller can log a "No .env file found" notice
// without Load itself doing any logging.
func Load() (cfg *Config, envFileFound bool, err error) {
	_, statErr := os.Stat(".env")
	envFileFound = statErr == nil
	_ = godotenv.Load()

	cfg = &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, envFileFound, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, envFileFound, nil
}

// EngineConfig maps the environment-tunable fields onto engine.Config,
// starting from engine.DefaultConfig so anything not represented by an
// environment variable keeps its original default.
func (c *Config) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.SpeechLanguage = c.SpeechLanguage
	cfg.CandidateLanguages = c.CandidateLanguages
	cfg.EnableDiarization = c.EnableDiarization
	// MinSpeakers/MaxSpeakers are carried through for a provider that
	// accepts a speaker-count range (see DESIGN.md); none of the wired STT
	// providers' REST APIs expose that parameter today.
	cfg.MinSpeakers = c.MinSpeakers
	cfg.MaxSpeakers = c.MaxSpeakers
	cfg.LogFile = c.LogFile
	cfg.AutoPauseSilenceSeconds = c.AutoPauseSilenceSeconds
	cfg.EnableAutoPause = c.EnableAutoPause
	cfg.MinConversationExchanges = c.MinConversationExchanges
	cfg.MinAnalysisInterval = c.MinAnalysisIntervalSecs
	cfg.MinTextLength = c.MinTextLength
	cfg.SimilarityThreshold = c.SimilarityThreshold
	return cfg
}
