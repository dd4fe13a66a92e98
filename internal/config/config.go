package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Haik11kashiyani/news-auto/internal/domain"
)

const (
	configPathEnv    = "NEWS_AUTO_CONFIG"
	ledgerDSNEnv     = "LEDGER_DSN"
	newsDataKeyEnv   = "NEWSDATA_API_KEY"
	geminiKeyEnv     = "GEMINI_API_KEY"
	elevenLabsKeyEnv = "ELEVENLABS_API_KEY"
	pexelsKeyEnv     = "PEXELS_API_KEY"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Run           RunConfig          `yaml:"run"`
	Script        ScriptConfig       `yaml:"script"`
	Assembly      AssemblyConfig     `yaml:"assembly"`
	Ledger        LedgerConfig       `yaml:"ledger"`
	NewsData      NewsDataConfig     `yaml:"newsdata"`
	Gemini        GeminiConfig       `yaml:"gemini"`
	TTS           TTSConfig          `yaml:"tts"`
	Stock         StockConfig        `yaml:"stock"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// LoggingConfig controls the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RunConfig bounds one orchestrator run.
type RunConfig struct {
	BatchSize       int    `yaml:"batchSize"`
	ConcurrencyCap  int    `yaml:"concurrencyCap"`
	MaxRetryAttempt int    `yaml:"maxRetryAttempts"`
	MaxItemAttempts int    `yaml:"maxItemAttempts"`
	OutputDir       string `yaml:"outputDir"`
}

// ScriptConfig constrains generated scripts and carries the persona.
type ScriptConfig struct {
	TargetMinSeconds float64       `yaml:"targetMinSeconds"`
	TargetMaxSeconds float64       `yaml:"targetMaxSeconds"`
	WordsPerSecond   float64       `yaml:"wordsPerSecond"`
	Persona          PersonaConfig `yaml:"persona"`
}

// PersonaConfig governs the tone and voice of generated scripts.
type PersonaConfig struct {
	Name   string `yaml:"name"`
	Tone   string `yaml:"tone"`
	Pacing string `yaml:"pacing"`
}

// Domain converts the persona settings into the entity handed to the scripter.
func (p PersonaConfig) Domain() domain.Persona {
	return domain.Persona{Name: p.Name, Tone: p.Tone, Pacing: p.Pacing}
}

// AssemblyConfig tunes the timeline alignment.
type AssemblyConfig struct {
	ToleranceSeconds float64 `yaml:"toleranceSeconds"`
}

// LedgerConfig selects and configures the dedup ledger backend.
type LedgerConfig struct {
	Backend       string `yaml:"backend"` // "file" or "postgres"
	Path          string `yaml:"path"`
	DSN           string `yaml:"dsn"`
	RetentionDays int    `yaml:"retentionDays"`
}

// NewsDataConfig describes the newsdata.io source.
type NewsDataConfig struct {
	Endpoint string              `yaml:"endpoint"`
	APIKey   string              `yaml:"apiKey"`
	Queries  []map[string]string `yaml:"queries"`
}

// GeminiConfig defines how to contact the Gemini API for script generation.
type GeminiConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// TTSConfig defines the ElevenLabs synthesis endpoint.
type TTSConfig struct {
	Endpoint string `yaml:"endpoint"`
	VoiceID  string `yaml:"voiceId"`
	ModelID  string `yaml:"modelId"`
	APIKey   string `yaml:"apiKey"`
}

// StockConfig defines the Pexels stock-footage search.
type StockConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// SchedulerConfig defines when runs execute.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timezone string        `yaml:"timezone"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SiteConfig describes one scraped site with its scanner strategy, used as an
// alternative news source alongside the API provider.
type SiteConfig struct {
	Name      string            `yaml:"name"`
	Scanner   string            `yaml:"scanner"`
	URL       string            `yaml:"url"`
	Selectors map[string]string `yaml:"selectors"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(ledgerDSNEnv); v != "" {
		c.Ledger.DSN = v
	}
	if v := os.Getenv(newsDataKeyEnv); v != "" {
		c.NewsData.APIKey = v
	}
	if v := os.Getenv(geminiKeyEnv); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv(elevenLabsKeyEnv); v != "" {
		c.TTS.APIKey = v
	}
	if v := os.Getenv(pexelsKeyEnv); v != "" {
		c.Stock.APIKey = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Run.BatchSize > 0 {
		base.Run.BatchSize = override.Run.BatchSize
	}
	if override.Run.ConcurrencyCap > 0 {
		base.Run.ConcurrencyCap = override.Run.ConcurrencyCap
	}
	if override.Run.MaxRetryAttempt > 0 {
		base.Run.MaxRetryAttempt = override.Run.MaxRetryAttempt
	}
	if override.Run.MaxItemAttempts > 0 {
		base.Run.MaxItemAttempts = override.Run.MaxItemAttempts
	}
	if override.Run.OutputDir != "" {
		base.Run.OutputDir = override.Run.OutputDir
	}

	if override.Script.TargetMinSeconds > 0 {
		base.Script.TargetMinSeconds = override.Script.TargetMinSeconds
	}
	if override.Script.TargetMaxSeconds > 0 {
		base.Script.TargetMaxSeconds = override.Script.TargetMaxSeconds
	}
	if override.Script.WordsPerSecond > 0 {
		base.Script.WordsPerSecond = override.Script.WordsPerSecond
	}
	if override.Script.Persona.Name != "" {
		base.Script.Persona = override.Script.Persona
	}

	if override.Assembly.ToleranceSeconds > 0 {
		base.Assembly.ToleranceSeconds = override.Assembly.ToleranceSeconds
	}

	if override.Ledger.Backend != "" {
		base.Ledger.Backend = override.Ledger.Backend
	}
	if override.Ledger.Path != "" {
		base.Ledger.Path = override.Ledger.Path
	}
	if override.Ledger.DSN != "" {
		base.Ledger.DSN = override.Ledger.DSN
	}
	if override.Ledger.RetentionDays > 0 {
		base.Ledger.RetentionDays = override.Ledger.RetentionDays
	}

	if override.NewsData.Endpoint != "" {
		base.NewsData.Endpoint = override.NewsData.Endpoint
	}
	if override.NewsData.APIKey != "" {
		base.NewsData.APIKey = override.NewsData.APIKey
	}
	if len(override.NewsData.Queries) > 0 {
		base.NewsData.Queries = override.NewsData.Queries
	}

	if override.Gemini.Endpoint != "" {
		base.Gemini.Endpoint = override.Gemini.Endpoint
	}
	if override.Gemini.Model != "" {
		base.Gemini.Model = override.Gemini.Model
	}
	if override.Gemini.APIKey != "" {
		base.Gemini.APIKey = override.Gemini.APIKey
	}

	if override.TTS.Endpoint != "" {
		base.TTS.Endpoint = override.TTS.Endpoint
	}
	if override.TTS.VoiceID != "" {
		base.TTS.VoiceID = override.TTS.VoiceID
	}
	if override.TTS.ModelID != "" {
		base.TTS.ModelID = override.TTS.ModelID
	}
	if override.TTS.APIKey != "" {
		base.TTS.APIKey = override.TTS.APIKey
	}

	if override.Stock.Endpoint != "" {
		base.Stock.Endpoint = override.Stock.Endpoint
	}
	if override.Stock.APIKey != "" {
		base.Stock.APIKey = override.Stock.APIKey
	}

	if override.Scheduler.Interval > 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Run: RunConfig{
			BatchSize:       10,
			ConcurrencyCap:  4,
			MaxRetryAttempt: 3,
			MaxItemAttempts: 3,
			OutputDir:       "generated_videos",
		},
		Script: ScriptConfig{
			TargetMinSeconds: 30,
			TargetMaxSeconds: 90,
			WordsPerSecond:   2.2,
			Persona: PersonaConfig{
				Name:   "Logic Vault",
				Tone:   "urgent, dramatic, authoritative",
				Pacing: "fast, short breaths, one-second dramatic stops",
			},
		},
		Assembly: AssemblyConfig{ToleranceSeconds: 0.5},
		Ledger: LedgerConfig{
			Backend:       "file",
			Path:          "processed_articles.json",
			RetentionDays: 7,
		},
		NewsData: NewsDataConfig{
			Endpoint: "https://newsdata.io/api/1/news",
			Queries: []map[string]string{
				{"country": "in", "language": "en"},
				{"category": "world", "language": "en"},
			},
		},
		Gemini: GeminiConfig{
			Endpoint: "https://generativelanguage.googleapis.com/v1beta",
			Model:    "gemini-2.0-flash-exp",
		},
		TTS: TTSConfig{
			Endpoint: "https://api.elevenlabs.io",
			VoiceID:  "nPczCjz86I70pA5ccg71",
			ModelID:  "eleven_monolingual_v1",
		},
		Stock: StockConfig{
			Endpoint: "https://api.pexels.com/videos/search",
		},
		Scheduler: SchedulerConfig{Interval: 3 * time.Hour, Timezone: "UTC"},
	}
}
