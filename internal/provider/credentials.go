package provider

import (
	"context"
	"strings"
)

// CredentialSource resolves the recognition configuration for a job run.
// Configurations are supplied per execution and never persisted by the core.
type CredentialSource interface {
	ResolveConfig(ctx context.Context) (Config, error)
}

// StaticSource serves one fixed configuration, typically loaded from the
// environment at startup.
type StaticSource struct {
	cfg Config
}

// NewStaticSource builds a CredentialSource around a fixed configuration.
func NewStaticSource(cfg Config) *StaticSource {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Region = strings.TrimSpace(cfg.Region)
	cfg.Language = strings.TrimSpace(cfg.Language)
	return &StaticSource{cfg: cfg}
}

// ResolveConfig returns the fixed configuration.
func (s *StaticSource) ResolveConfig(_ context.Context) (Config, error) {
	if s.cfg.Provider == "" {
		return Config{}, NewError(KindInvalidConfig, "", "no provider configured")
	}
	return s.cfg, nil
}

var _ CredentialSource = (*StaticSource)(nil)
