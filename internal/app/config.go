package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // hcl pipeline definition
	Iterations   int

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.Iterations < 1 {
		return nil, errors.New("Iterations must be at least 1")
	}
	return &cfg, nil
}
