package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"osce-station/internal/station"
)

type PhaseDurations struct {
	History    time.Duration `yaml:"history"`
	Transition time.Duration `yaml:"transition"`
	ICE        time.Duration `yaml:"ice"`
	Management time.Duration `yaml:"management"`
}

type Config struct {
	Port           int    `yaml:"port"`
	DatabaseURL    string `yaml:"database_url"`
	MigrationsPath string `yaml:"migrations_path"`
	LogLevel       string `yaml:"log_level"`
	CasesDir       string `yaml:"cases_dir"`

	GroqAPIKey string        `yaml:"groq_api_key"`
	LLMBaseURL string        `yaml:"llm_base_url"`
	LLMModel   string        `yaml:"llm_model"`
	LLMTimeout time.Duration `yaml:"llm_timeout"`

	STTURL           string `yaml:"stt_url"`
	TTSURL           string `yaml:"tts_url"`
	ElevenLabsAPIKey string `yaml:"elevenlabs_api_key"`
	VoiceID          string `yaml:"voice_id"`

	TelegramBotToken string `yaml:"telegram_bot_token"`
	ExaminerChatID   int64  `yaml:"examiner_chat_id"`

	FamilyRelevantBias float64 `yaml:"family_relevant_bias"`

	SessionTTL      time.Duration `yaml:"session_ttl"`
	ReportRetention time.Duration `yaml:"report_retention"`

	Phases PhaseDurations `yaml:"phases"`
	Timing station.Timing `yaml:"timing"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	phases := station.DefaultPhases()
	return Config{
		Port:               8080,
		MigrationsPath:     "file://migrations",
		LogLevel:           "info",
		CasesDir:           "data/cases",
		LLMBaseURL:         "https://api.groq.com/openai/v1",
		LLMModel:           "llama3-70b-8192",
		LLMTimeout:         30 * time.Second,
		FamilyRelevantBias: 0.7,
		SessionTTL:         time.Hour,
		Phases: PhaseDurations{
			History:    phases[0].Duration,
			Transition: phases[1].Duration,
			ICE:        phases[2].Duration,
			Management: phases[3].Duration,
		},
		Timing: station.DefaultTiming(),
	}
}

// Load builds the configuration from defaults, then the YAML file named
// by STATION_CONFIG, then environment variables.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("STATION_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envInt("PORT", cfg.Port)
	cfg.DatabaseURL = envStr("DATABASE_URL", cfg.DatabaseURL)
	cfg.MigrationsPath = envStr("MIGRATIONS_PATH", cfg.MigrationsPath)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	if envBool("DEBUG", false) {
		cfg.LogLevel = "debug"
	}
	cfg.CasesDir = envStr("CASES_DIR", cfg.CasesDir)

	cfg.GroqAPIKey = envStr("GROQ_API_KEY", cfg.GroqAPIKey)
	cfg.LLMBaseURL = envStr("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMModel = envStr("LLM_MODEL", cfg.LLMModel)
	cfg.LLMTimeout = envDuration("LLM_TIMEOUT", cfg.LLMTimeout)

	cfg.STTURL = envStr("STT_URL", cfg.STTURL)
	cfg.TTSURL = envStr("TTS_URL", cfg.TTSURL)
	cfg.ElevenLabsAPIKey = envStr("ELEVENLABS_API_KEY", cfg.ElevenLabsAPIKey)
	cfg.VoiceID = envStr("VOICE_ID", cfg.VoiceID)

	cfg.TelegramBotToken = envStr("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	cfg.ExaminerChatID = envInt64("EXAMINER_CHAT_ID", cfg.ExaminerChatID)

	cfg.FamilyRelevantBias = envFloat("FAMILY_RELEVANT_BIAS", cfg.FamilyRelevantBias)
	cfg.SessionTTL = envDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.ReportRetention = envDuration("REPORT_RETENTION", cfg.ReportRetention)

	cfg.Phases.History = envDuration("PHASE_HISTORY", cfg.Phases.History)
	cfg.Phases.Transition = envDuration("PHASE_TRANSITION", cfg.Phases.Transition)
	cfg.Phases.ICE = envDuration("PHASE_ICE", cfg.Phases.ICE)
	cfg.Phases.Management = envDuration("PHASE_MANAGEMENT", cfg.Phases.Management)

	cfg.Timing.PollInterval = envDuration("POLL_INTERVAL", cfg.Timing.PollInterval)
	cfg.Timing.InputTimeout = envDuration("INPUT_TIMEOUT", cfg.Timing.InputTimeout)
	cfg.Timing.TransitionSilence = envDuration("TRANSITION_SILENCE", cfg.Timing.TransitionSilence)
	cfg.Timing.IdleThreshold = envDuration("IDLE_THRESHOLD", cfg.Timing.IdleThreshold)
	cfg.Timing.SettleDelay = envDuration("SETTLE_DELAY", cfg.Timing.SettleDelay)
	cfg.Timing.IdlePause = envDuration("IDLE_PAUSE", cfg.Timing.IdlePause)
}

func (c Config) Validate() error {
	if c.FamilyRelevantBias < 0 || c.FamilyRelevantBias > 1 {
		return fmt.Errorf("family_relevant_bias must be within [0,1], got %v", c.FamilyRelevantBias)
	}
	for name, d := range map[string]time.Duration{
		"history":    c.Phases.History,
		"transition": c.Phases.Transition,
		"ice":        c.Phases.ICE,
		"management": c.Phases.Management,
	} {
		if d <= 0 {
			return fmt.Errorf("phase %s must have a positive duration", name)
		}
	}
	if c.Timing.PollInterval <= 0 || c.Timing.InputTimeout <= 0 {
		return fmt.Errorf("poll interval and input timeout must be positive")
	}
	return nil
}

// StationPhases returns the configured schedule in execution order.
func (c Config) StationPhases() []station.Phase {
	phases := station.DefaultPhases()
	phases[0].Duration = c.Phases.History
	phases[1].Duration = c.Phases.Transition
	phases[2].Duration = c.Phases.ICE
	phases[3].Duration = c.Phases.Management
	return phases
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
