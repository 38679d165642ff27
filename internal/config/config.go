package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "WIKITRACKER_CONFIG"
	endpointEnv       = "WIKITRACKER_ENDPOINT"
	modelEnv          = "WIKITRACKER_MODEL"
	logLevelEnv       = "WIKITRACKER_LOG_LEVEL"
	archiveBucketEnv  = "WIKITRACKER_ARCHIVE_BUCKET"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Duplicate-key policies for the description table.
const (
	DuplicatesFirst = "first"
	DuplicatesLast  = "last"
)

// Config holds every setting of a classification run.
type Config struct {
	Input         InputConfig        `yaml:"input"`
	Output        OutputConfig       `yaml:"output"`
	Ollama        OllamaConfig       `yaml:"ollama"`
	Classifier    ClassifierConfig   `yaml:"classifier"`
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Archive       ArchiveConfig      `yaml:"archive"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// InputConfig points at the two source tables.
type InputConfig struct {
	Descriptions string `yaml:"descriptions"`
	Tracker      string `yaml:"tracker"`
	// Duplicates selects which description wins when video_title repeats: "first" or "last".
	Duplicates string `yaml:"duplicates"`
}

// OutputConfig describes where the labelled table goes.
type OutputConfig struct {
	Path string `yaml:"path"`
}

// OllamaConfig defines how to reach the generate endpoint. Zero Timeout means no limit.
type OllamaConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"maxRetries"`
	RetryDelay time.Duration `yaml:"retryDelay"`
}

// ClassifierConfig tunes prompt rendering and label normalisation.
type ClassifierConfig struct {
	StrictLabels   bool   `yaml:"strictLabels"`
	StripHTML      bool   `yaml:"stripHTML"`
	PromptTemplate string `yaml:"promptTemplate"`
}

// LoggingConfig sets the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig enables the Postgres audit trail when DSN is set.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	Table        string `yaml:"table"`
	EnsureSchema bool   `yaml:"ensureSchema"`
}

// MetricsConfig enables a node-exporter textfile when Textfile is set.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// ArchiveConfig enables S3 upload of the output when Bucket is set.
type ArchiveConfig struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads .env, the YAML configuration (if present) and applies environment overrides.
// An explicit path wins over WIKITRACKER_CONFIG.
func Load(path string) Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot read .env: %v", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
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

// Validate reports settings that would make a run impossible.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Input.Descriptions) == "" {
		errs = append(errs, errors.New("input.descriptions is empty"))
	}
	if strings.TrimSpace(c.Input.Tracker) == "" {
		errs = append(errs, errors.New("input.tracker is empty"))
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		errs = append(errs, errors.New("output.path is empty"))
	}
	switch c.Input.Duplicates {
	case DuplicatesFirst, DuplicatesLast:
	default:
		errs = append(errs, fmt.Errorf("input.duplicates %q is not one of first, last", c.Input.Duplicates))
	}
	if strings.TrimSpace(c.Ollama.Endpoint) == "" {
		errs = append(errs, errors.New("ollama.endpoint is empty"))
	}
	if strings.TrimSpace(c.Ollama.Model) == "" {
		errs = append(errs, errors.New("ollama.model is empty"))
	}
	if c.Ollama.Timeout < 0 {
		errs = append(errs, errors.New("ollama.timeout is negative"))
	}
	if c.Ollama.MaxRetries < 0 {
		errs = append(errs, errors.New("ollama.maxRetries is negative"))
	}
	if c.Ollama.RetryDelay < 0 {
		errs = append(errs, errors.New("ollama.retryDelay is negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(endpointEnv); v != "" {
		c.Ollama.Endpoint = v
	}

	if v := os.Getenv(modelEnv); v != "" {
		c.Ollama.Model = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(archiveBucketEnv); v != "" {
		c.Archive.Bucket = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Input.Descriptions != "" {
		base.Input.Descriptions = override.Input.Descriptions
	}
	if override.Input.Tracker != "" {
		base.Input.Tracker = override.Input.Tracker
	}
	if override.Input.Duplicates != "" {
		base.Input.Duplicates = strings.ToLower(override.Input.Duplicates)
	}

	if override.Output.Path != "" {
		base.Output.Path = override.Output.Path
	}

	if override.Ollama.Endpoint != "" {
		base.Ollama.Endpoint = override.Ollama.Endpoint
	}
	if override.Ollama.Model != "" {
		base.Ollama.Model = override.Ollama.Model
	}
	if override.Ollama.Timeout != 0 {
		base.Ollama.Timeout = override.Ollama.Timeout
	}
	if override.Ollama.MaxRetries != 0 {
		base.Ollama.MaxRetries = override.Ollama.MaxRetries
	}
	if override.Ollama.RetryDelay != 0 {
		base.Ollama.RetryDelay = override.Ollama.RetryDelay
	}

	base.Classifier.StrictLabels = base.Classifier.StrictLabels || override.Classifier.StrictLabels
	base.Classifier.StripHTML = base.Classifier.StripHTML || override.Classifier.StripHTML
	if override.Classifier.PromptTemplate != "" {
		base.Classifier.PromptTemplate = override.Classifier.PromptTemplate
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.Table != "" {
		base.Database.Table = override.Database.Table
	}
	base.Database.EnsureSchema = base.Database.EnsureSchema || override.Database.EnsureSchema

	if override.Metrics.Textfile != "" {
		base.Metrics.Textfile = override.Metrics.Textfile
	}

	if override.Archive.Bucket != "" {
		base.Archive.Bucket = override.Archive.Bucket
	}
	if override.Archive.Prefix != "" {
		base.Archive.Prefix = override.Archive.Prefix
	}
	if override.Archive.Region != "" {
		base.Archive.Region = override.Archive.Region
	}
	if override.Archive.Endpoint != "" {
		base.Archive.Endpoint = override.Archive.Endpoint
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Input: InputConfig{
			Descriptions: "descriptions.csv",
			Tracker:      "rossmann_wiki_tracker.csv",
			Duplicates:   DuplicatesFirst,
		},
		Output: OutputConfig{Path: "merged_first_try.csv"},
		Ollama: OllamaConfig{
			Endpoint:   "http://localhost:11434/api/generate",
			Model:      "llama3.2",
			RetryDelay: time.Second,
		},
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{Table: "wiki_classifications"},
		Archive:  ArchiveConfig{Prefix: "wikitracker", Region: "us-east-1"},
	}
}
