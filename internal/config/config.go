package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the ZenLearn reaction server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Tracker  TrackerConfig
	AI       AIConfig
	TTS      TTSConfig
	Proxy    ProxyConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	LogLevel           string
	MaxUploadBytes     int64
	APIKeyHashes       []string
	RateLimitPerMinute int
}

// DatabaseConfig is optional: an empty URL keeps jobs in process memory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig is optional: an empty URL disables the status cache and rate limiting.
type RedisConfig struct {
	URL string
}

type StorageConfig struct {
	UploadDir    string
	ReactionsDir string
}

type TrackerConfig struct {
	Workers      int
	QueueSize    int
	StageTimeout time.Duration
	StatusTTL    time.Duration
}

type AIConfig struct {
	STTProvider     string
	LLMProvider     string
	Temperature     float64
	MaxTokens       int
	FallbackEmotion string
	PromptTemplate  string
	OpenAI          OpenAIConfig
	Groq            OpenAIConfig
	Gemini          GeminiConfig
}

// OpenAIConfig also describes OpenAI-compatible endpoints such as Groq.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	TranscribeModel string
	ChatModel       string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type TTSConfig struct {
	ElevenLabs ElevenLabsConfig
}

type ElevenLabsConfig struct {
	APIKey       string
	BaseURL      string
	VoiceID      string
	ModelID      string
	OutputFormat string
	Timeout      time.Duration
}

type ProxyConfig struct {
	Addr string
}

var validSTTProviders = map[string]bool{
	"openai": true,
	"groq":   true,
}

var validLLMProviders = map[string]bool{
	"openai": true,
	"groq":   true,
	"gemini": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               envInt("ZENLEARN_PORT", 8080),
			Env:                envString("ZENLEARN_ENV", "development"),
			LogLevel:           strings.ToLower(envString("LOG_LEVEL", "info")),
			MaxUploadBytes:     int64(envInt("MAX_UPLOAD_BYTES", 25<<20)),
			APIKeyHashes:       envList("API_KEY_HASHES"),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 30),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Storage: StorageConfig{
			UploadDir:    envString("UPLOAD_DIR", "uploads"),
			ReactionsDir: envString("REACTIONS_DIR", "reactions"),
		},
		Tracker: TrackerConfig{
			Workers:      envInt("TRACKER_WORKERS", 4),
			QueueSize:    envInt("TRACKER_QUEUE_SIZE", 64),
			StageTimeout: envDuration("TRACKER_STAGE_TIMEOUT", 2*time.Minute),
			StatusTTL:    envDuration("JOB_STATUS_TTL", 30*time.Minute),
		},
		AI: AIConfig{
			STTProvider:     envString("STT_PROVIDER", "groq"),
			LLMProvider:     envString("LLM_PROVIDER", "groq"),
			Temperature:     envFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:       envInt("LLM_MAX_TOKENS", 256),
			FallbackEmotion: envString("REACTION_FALLBACK_EMOTION", "interested"),
			PromptTemplate:  os.Getenv("REACTION_PROMPT"),
			OpenAI: OpenAIConfig{
				APIKey:          os.Getenv("OPENAI_API_KEY"),
				BaseURL:         os.Getenv("OPENAI_BASE_URL"),
				TranscribeModel: envString("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
				ChatModel:       envString("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			},
			Groq: OpenAIConfig{
				APIKey:          os.Getenv("GROQ_API_KEY"),
				BaseURL:         envString("GROQ_BASE_URL", "https://api.groq.com/openai/v1/"),
				TranscribeModel: envString("GROQ_TRANSCRIBE_MODEL", "whisper-large-v3"),
				ChatModel:       envString("GROQ_CHAT_MODEL", "deepseek-r1-distill-llama-70b"),
			},
			Gemini: GeminiConfig{
				APIKey: os.Getenv("GEMINI_API_KEY"),
				Model:  envString("GEMINI_MODEL", "gemini-1.5-flash"),
			},
		},
		TTS: TTSConfig{
			ElevenLabs: ElevenLabsConfig{
				APIKey:       os.Getenv("ELEVENLABS_API_KEY"),
				BaseURL:      envString("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
				VoiceID:      envString("ELEVENLABS_VOICE_ID", "JBFqnCBsd6RMkjVDRZzb"),
				ModelID:      envString("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
				OutputFormat: envString("ELEVENLABS_OUTPUT_FORMAT", "mp3_44100_128"),
				Timeout:      envDuration("ELEVENLABS_TIMEOUT", 60*time.Second),
			},
		},
		Proxy: ProxyConfig{
			Addr: os.Getenv("OUTBOUND_PROXY"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("ZENLEARN_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Server.LogLevel)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Database.URL != "" &&
		!strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
		return fmt.Errorf("DATABASE_URL must start with postgres:// or postgresql://")
	}
	if c.Tracker.Workers <= 0 {
		return fmt.Errorf("TRACKER_WORKERS must be positive, got %d", c.Tracker.Workers)
	}
	if c.Tracker.QueueSize <= 0 {
		return fmt.Errorf("TRACKER_QUEUE_SIZE must be positive, got %d", c.Tracker.QueueSize)
	}
	if strings.TrimSpace(c.AI.FallbackEmotion) == "" {
		return fmt.Errorf("REACTION_FALLBACK_EMOTION must not be blank")
	}

	if !validSTTProviders[c.AI.STTProvider] {
		return fmt.Errorf("STT_PROVIDER must be one of openai, groq; got %q", c.AI.STTProvider)
	}
	if !validLLMProviders[c.AI.LLMProvider] {
		return fmt.Errorf("LLM_PROVIDER must be one of openai, groq, gemini; got %q", c.AI.LLMProvider)
	}
	for _, p := range []string{c.AI.STTProvider, c.AI.LLMProvider} {
		switch {
		case p == "openai" && c.AI.OpenAI.APIKey == "":
			return fmt.Errorf("OPENAI_API_KEY is required when openai is a selected provider")
		case p == "groq" && c.AI.Groq.APIKey == "":
			return fmt.Errorf("GROQ_API_KEY is required when groq is a selected provider")
		case p == "gemini" && c.AI.Gemini.APIKey == "":
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER is gemini")
		}
	}

	if c.TTS.ElevenLabs.APIKey == "" {
		return fmt.Errorf("ELEVENLABS_API_KEY is required")
	}
	if !strings.HasPrefix(c.TTS.ElevenLabs.BaseURL, "http://") && !strings.HasPrefix(c.TTS.ElevenLabs.BaseURL, "https://") {
		return fmt.Errorf("ELEVENLABS_BASE_URL must start with http:// or https://, got %q", c.TTS.ElevenLabs.BaseURL)
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
