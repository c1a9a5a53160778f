// Package generate produces test-suite source text from repository
// context via a pluggable model provider.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoAPIKey is returned when a provider requires a key and none is set.
var ErrNoAPIKey = errors.New("api key not set")

// Provider turns a prompt into raw model output.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options selects and configures a provider.
type Options struct {
	Provider  string
	Model     string
	APIKey    string
	OllamaURL string
}

// New constructs the provider named in opts. "openai" requires an API
// key; "ollama" talks to a local daemon and needs none.
func New(opts Options) (Provider, error) {
	switch strings.ToLower(opts.Provider) {
	case "", "openai":
		if opts.APIKey == "" {
			return nil, ErrNoAPIKey
		}
		return NewOpenAI(opts.APIKey, opts.Model), nil
	case "ollama":
		return NewOllama(opts.OllamaURL, opts.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", opts.Provider)
	}
}
