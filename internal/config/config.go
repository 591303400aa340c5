package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	DBPath      string `envconfig:"DB_PATH" default:"mailtriage.db"`

	// Exchange (EWS)
	EWSServer          string        `envconfig:"EWS_SERVER"`
	EWSEmail           string        `envconfig:"EWS_EMAIL"`
	EWSPassword        string        `envconfig:"EWS_PASSWORD"`
	PrimaryEmail       string        `envconfig:"MY_PRIMARY_EMAIL"` // inbox filtering keys on this; falls back to EWS_EMAIL
	EWSTimeout         time.Duration `envconfig:"EWS_TIMEOUT" default:"5m"`
	MaxMessagesPerSync int           `envconfig:"MAX_MESSAGES_PER_SYNC" default:"50"`

	// Ollama
	OllamaHost        string        `envconfig:"OLLAMA_HOST" default:"http://localhost:11434"`
	OllamaModel       string        `envconfig:"OLLAMA_MODEL" default:"llama3.1"`
	OllamaTriageModel string        `envconfig:"OLLAMA_TRIAGE_MODEL" default:"llama3.2:1b"`
	OllamaTimeout     time.Duration `envconfig:"OLLAMA_TIMEOUT" default:"10m"`
	TruncateChars     int           `envconfig:"OLLAMA_TRUNCATE_CHARS" default:"2000"`

	// Pipeline
	TaskConfidenceMin int           `envconfig:"TASK_CONFIDENCE_MIN" default:"30"`
	DefaultSyncDays   int           `envconfig:"DEFAULT_SYNC_DAYS" default:"3"`
	ArchiveAfterDays  int           `envconfig:"ARCHIVE_AFTER_DAYS" default:"3"`
	SyncInterval      time.Duration `envconfig:"SYNC_INTERVAL" default:"0"` // 0 disables the resident sync loop
	RulesFile         string        `envconfig:"RULES_FILE"`

	// Classification vocabulary defaults (used until the operator saves their own)
	DefaultProjects string `envconfig:"DEFAULT_PROJECTS" default:"Unknown"`
	DefaultTags     string `envconfig:"DEFAULT_TAGS" default:"follow-up,decision,report"`
	DefaultDomains  string `envconfig:"DEFAULT_DOMAINS" default:"Unknown"`

	// Directory lookup
	DirectoryCacheSize int `envconfig:"DIRECTORY_CACHE_SIZE" default:"256"`
}

// OperatorEmail returns the lowercased address the pipeline treats as "me".
func (c *Config) OperatorEmail() string {
	if c.PrimaryEmail != "" {
		return strings.ToLower(c.PrimaryEmail)
	}
	return strings.ToLower(c.EWSEmail)
}

// EWSEnabled returns true if Exchange credentials are configured.
func (c *Config) EWSEnabled() bool {
	return c.EWSServer != "" && c.EWSEmail != "" && c.EWSPassword != ""
}

// DefaultProjectList returns the configured default project vocabulary.
func (c *Config) DefaultProjectList() []string { return splitList(c.DefaultProjects) }

// DefaultTagList returns the configured default tag vocabulary.
func (c *Config) DefaultTagList() []string { return splitList(c.DefaultTags) }

// DefaultDomainList returns the configured default domain vocabulary.
func (c *Config) DefaultDomainList() []string { return splitList(c.DefaultDomains) }

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
