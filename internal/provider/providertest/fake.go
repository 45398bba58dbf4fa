// Package providertest provides a scriptable in-memory recognition provider
// for exercising the execution pipeline without network or native engines.
package providertest

import (
	"context"
	"sync"

	"github.com/NayerAli/v2-ocr-sub002/internal/provider"
)

// Call records one Recognize invocation.
type Call struct {
	ImageSize int
	Config    provider.Config
}

// Fake implements provider.Provider with scriptable behavior. It is safe for
// concurrent use.
type Fake struct {
	mu            sync.Mutex
	name          string
	validateErr   error
	recognizeFunc func(ctx context.Context, image []byte, cfg provider.Config) (*provider.PageText, error)
	calls         []Call
}

// New builds a fake provider. An empty name defaults to "fake".
func New(name string) *Fake {
	if name == "" {
		name = "fake"
	}
	return &Fake{name: name}
}

// Name implements provider.Provider.
func (f *Fake) Name() string { return f.name }

// SetValidateErr makes ValidateCredentials return err.
func (f *Fake) SetValidateErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validateErr = err
}

// SetRecognizeFunc replaces the canned Recognize behavior. The function may
// be called concurrently.
func (f *Fake) SetRecognizeFunc(fn func(ctx context.Context, image []byte, cfg provider.Config) (*provider.PageText, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recognizeFunc = fn
}

// ValidateCredentials implements provider.Provider.
func (f *Fake) ValidateCredentials(_ context.Context, _ provider.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateErr
}

// Recognize implements provider.Provider. Without a scripted function it
// returns a fixed high-confidence result.
func (f *Fake) Recognize(ctx context.Context, image []byte, cfg provider.Config) (*provider.PageText, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{ImageSize: len(image), Config: cfg})
	fn := f.recognizeFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, image, cfg)
	}
	return &provider.PageText{
		Text:             "recognized text",
		Confidence:       0.95,
		Language:         cfg.Language,
		ProcessingTimeMs: 5,
	}, nil
}

// Calls returns a copy of the recorded Recognize invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times Recognize ran.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Reset clears recorded calls and scripted behavior.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.validateErr = nil
	f.recognizeFunc = nil
}
