package llm

import (
	"fmt"
	"sort"

	"github.com/tbourn/go-rag-backend/internal/config"
)

// Registry is the closed set of generators available to chat sessions. It is
// built once at startup and read-only afterwards.
type Registry struct {
	gens map[string]Generator
}

// NewRegistry indexes gens by Name. Later duplicates win.
func NewRegistry(gens ...Generator) *Registry {
	r := &Registry{gens: make(map[string]Generator, len(gens))}
	for _, g := range gens {
		if g != nil {
			r.gens[g.Name()] = g
		}
	}
	return r
}

// FromConfig registers Ollama always and Azure OpenAI when it is configured.
func FromConfig(cfg config.LLMConfig) *Registry {
	gens := []Generator{NewOllama(OllamaConfig{
		BaseURL: cfg.Ollama.BaseURL,
		Model:   cfg.Ollama.Model,
		Timeout: cfg.Timeout,
	})}
	if cfg.Azure.Configured() {
		gens = append(gens, NewAzureOpenAI(AzureConfig{
			Endpoint:   cfg.Azure.Endpoint,
			APIKey:     cfg.Azure.APIKey,
			Deployment: cfg.Azure.Deployment,
			APIVersion: cfg.Azure.APIVersion,
			Timeout:    cfg.Timeout,
		}))
	}
	return NewRegistry(gens...)
}

// Get returns the generator registered under name.
func (r *Registry) Get(name string) (Generator, error) {
	g, ok := r.gens[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return g, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.gens[name]
	return ok
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.gens))
	for n := range r.gens {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
