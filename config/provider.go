package config

import "strings"

// ProviderConfig selects and configures the OCR provider for this process.
// The values feed the credential source that hands a provider configuration
// to each recognition call; they are never written to the relational store.
type ProviderConfig struct {
	// Name selects the provider adapter (e.g. "azure", "google").
	Name string `env:"NAME"`

	// APIKey authenticates against the provider.
	APIKey string `env:"API_KEY"`

	// Region scopes region-bound providers. Required by azure.
	Region string `env:"REGION"`

	// Language is an optional recognition language hint.
	Language string `env:"LANGUAGE"`
}

// Sanitize normalises provider configuration values.
func (p *ProviderConfig) Sanitize() {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	p.APIKey = strings.TrimSpace(p.APIKey)
	p.Region = strings.TrimSpace(p.Region)
	p.Language = strings.TrimSpace(p.Language)
}
