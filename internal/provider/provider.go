// Package provider defines the contract for text recognition backends and the
// error taxonomy the execution layer uses to decide between retrying a page
// and aborting a job.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Config carries the per-call settings for a recognition request. Credentials
// arrive from the caller on every call and are never persisted.
type Config struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
	Region   string `json:"region,omitempty"`
	Language string `json:"language,omitempty"`
}

// PageText is the normalized recognition output for a single page image.
type PageText struct {
	Text             string  `json:"text"`
	Confidence       float64 `json:"confidence"`
	Language         string  `json:"language"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
}

// Provider recognizes text in rasterized page images.
//
// Recognize must bound its own remote calls with a deadline and surface
// expiry as a transient Error so the retry policy can take over.
type Provider interface {
	Name() string
	ValidateCredentials(ctx context.Context, cfg Config) error
	Recognize(ctx context.Context, image []byte, cfg Config) (*PageText, error)
}

// Registry resolves provider names to registered implementations.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its lowercased name.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return errors.New("provider is required")
	}
	name := strings.ToLower(strings.TrimSpace(p.Name()))
	if name == "" {
		return errors.New("provider name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = p
	return nil
}

// MustRegister is like Register but panics on error. For wiring in main.
func (r *Registry) MustRegister(p Provider) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Resolve returns the provider registered under name.
func (r *Registry) Resolve(name string) (Provider, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[key]
	if !ok {
		return nil, NewError(KindInvalidConfig, name, "unknown provider")
	}
	return p, nil
}

// Names returns the sorted names of all registered providers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
