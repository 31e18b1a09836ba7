// Package config provides service configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/zoobzio/counsel"
)

const logPrefix = "config:LoadConfig"

// Config holds counsel service configuration.
type Config struct {
	// Language model
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4-turbo-preview"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`

	// Storage (empty = no history, placeholder retrieval)
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	HistoryWindow int    `envconfig:"HISTORY_WINDOW" default:"50"`

	// Interaction events (empty = not published)
	NATSURL     string `envconfig:"NATS_URL"`
	NATSSubject string `envconfig:"NATS_SUBJECT" default:"counsel.interactions"`

	// HTTP
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	// Per-call timeouts
	RetrieveTimeout time.Duration `envconfig:"RETRIEVE_TIMEOUT" default:"10s"`
	RouteTimeout    time.Duration `envconfig:"ROUTE_TIMEOUT" default:"15s"`
	HistoryTimeout  time.Duration `envconfig:"HISTORY_TIMEOUT" default:"5s"`
	DispatchTimeout time.Duration `envconfig:"DISPATCH_TIMEOUT" default:"60s"`
	EnrichTimeout   time.Duration `envconfig:"ENRICH_TIMEOUT" default:"30s"`
	BriefingTimeout time.Duration `envconfig:"BRIEFING_TIMEOUT" default:"60s"`
	SinkTimeout     time.Duration `envconfig:"SINK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks config needed by every command that talks to the model.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%s - OPENAI_API_KEY is required", logPrefix)
	}
	if c.OpenAIModel == "" {
		return fmt.Errorf("%s - OPENAI_MODEL must not be empty", logPrefix)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("%s - HISTORY_WINDOW must be positive", logPrefix)
	}
	for name, d := range map[string]time.Duration{
		"RETRIEVE_TIMEOUT": c.RetrieveTimeout,
		"ROUTE_TIMEOUT":    c.RouteTimeout,
		"HISTORY_TIMEOUT":  c.HistoryTimeout,
		"DISPATCH_TIMEOUT": c.DispatchTimeout,
		"ENRICH_TIMEOUT":   c.EnrichTimeout,
		"BRIEFING_TIMEOUT": c.BriefingTimeout,
		"SINK_TIMEOUT":     c.SinkTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s - %s must be positive", logPrefix, name)
		}
	}
	return nil
}

// ValidateForServe checks required config when running the HTTP server.
func (c *Config) ValidateForServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("%s - HTTP_ADDR is required for serve", logPrefix)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s - SHUTDOWN_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// Timeouts converts the per-call settings for the orchestrator.
func (c *Config) Timeouts() counsel.Timeouts {
	return counsel.Timeouts{
		Retrieve: c.RetrieveTimeout,
		Route:    c.RouteTimeout,
		History:  c.HistoryTimeout,
		Dispatch: c.DispatchTimeout,
		Enrich:   c.EnrichTimeout,
		Briefing: c.BriefingTimeout,
		Sink:     c.SinkTimeout,
	}
}
