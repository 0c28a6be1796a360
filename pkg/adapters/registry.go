package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
	"github.com/codeready-toolchain/grantfinder/pkg/config"
)

// Registry holds the named LLM adapters configured in InfraConfig and
// resolves the process-wide primary/fallback pointers (§9: "explicit
// interface per adapter with two implementations registered through a
// small service registry; degradation monitor flips a pointer under a
// lock").
type Registry struct {
	llms    map[string]LLM
	mu      sync.RWMutex
	primary string
}

// NewRegistry constructs every configured LLM provider. Providers that
// fail to construct (e.g. missing credentials) are skipped with a logged
// warning rather than failing startup, so a misconfigured fallback never
// blocks the primary path.
func NewRegistry(ctx context.Context, cfg *config.InfraConfig) (*Registry, error) {
	r := &Registry{llms: make(map[string]LLM), primary: cfg.PrimaryLLM}
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext:         (&http.Transport{}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	for name, p := range cfg.LLMProviders {
		switch p.Kind {
		case "anthropic":
			key := os.Getenv(p.APIKeyEnv)
			if key == "" {
				slog.Warn("skipping LLM provider: API key env var is empty", "provider", name, "env", p.APIKeyEnv)
				continue
			}
			r.llms[name] = NewAnthropicLLM(name, key, p.Model, httpClient)
		case "bedrock":
			llm, err := NewBedrockLLM(ctx, name, p.Region, p.Model)
			if err != nil {
				slog.Warn("skipping LLM provider: construction failed", "provider", name, "error", err)
				continue
			}
			r.llms[name] = llm
		}
	}

	if _, ok := r.llms[cfg.PrimaryLLM]; !ok {
		return nil, apperrors.New(apperrors.KindInternal, fmt.Sprintf("primary LLM provider %q failed to initialize", cfg.PrimaryLLM))
	}
	return r, nil
}

// Primary returns the currently-active primary LLM adapter.
func (r *Registry) Primary() LLM {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llms[r.primary]
}

// Get returns a named adapter, or nil if unregistered.
func (r *Registry) Get(name string) LLM { return r.llms[name] }

// SetPrimary atomically repoints the primary adapter, used by the
// Health & Degradation Monitor (§4.11) to fail over to a registered
// fallback provider when the primary's breaker trips.
func (r *Registry) SetPrimary(name string) {
	if _, ok := r.llms[name]; ok {
		r.mu.Lock()
		r.primary = name
		r.mu.Unlock()
	}
}
