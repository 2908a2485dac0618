package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scribe/internal/logging"
)

// Router directs call classes to named providers and owns the shared
// cooldown and retry policy. Components hold a *Router and never talk to
// a Generator directly.
type Router struct {
	generators map[string]Generator
	roles      map[Role]string
	cooldown   *Cooldown
	maxRetries int
	backoff    func(attempt int) time.Duration
}

// NewRouter creates a router over the given named generators. roles maps
// each call class to a generator name; unknown roles fail at call time.
func NewRouter(generators map[string]Generator, roles map[Role]string, cooldown *Cooldown, maxRetries int) *Router {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Router{
		generators: generators,
		roles:      roles,
		cooldown:   cooldown,
		maxRetries: maxRetries,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second
		},
	}
}

// Generate routes one call: resolve the provider for the role, wait out
// its cooldown, call it, and retry with exponential backoff on failure or
// empty output. Exhausted retries surface as a *GenerationError carrying
// the provider identity.
func (r *Router) Generate(ctx context.Context, role Role, prompt, contextText string, maxTokens int) (string, error) {
	name, ok := r.roles[role]
	if !ok {
		return "", fmt.Errorf("no provider configured for role %q", role)
	}
	gen, ok := r.generators[name]
	if !ok {
		return "", fmt.Errorf("unknown provider %q for role %q", name, role)
	}

	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if attempt > 0 {
			pause := r.backoff(attempt - 1)
			logging.Provider("retrying %s (attempt %d/%d) after %v: %v",
				gen.Name(), attempt+1, r.maxRetries, pause, lastErr)
			select {
			case <-time.After(pause):
			case <-ctx.Done():
				return "", &GenerationError{Provider: gen.Name(), Attempts: attempt, Err: ctx.Err()}
			}
		}

		if r.cooldown != nil {
			r.cooldown.Wait(gen.Name())
		}

		out, err := gen.Generate(ctx, prompt, contextText, maxTokens)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", &GenerationError{Provider: gen.Name(), Attempts: attempt + 1, Err: err}
			}
			lastErr = err
			continue
		}
		if out == "" {
			// Empty output is a retryable failure on our side of the
			// collaborator contract.
			lastErr = fmt.Errorf("empty output")
			continue
		}
		return out, nil
	}

	logging.ProviderError("%s exhausted %d attempts: %v", gen.Name(), r.maxRetries, lastErr)
	return "", &GenerationError{Provider: gen.Name(), Attempts: r.maxRetries, Err: lastErr}
}

// GeneratorName reports which provider a role resolves to.
func (r *Router) GeneratorName(role Role) string {
	return r.roles[role]
}
