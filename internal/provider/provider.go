// Package provider wraps the external generation collaborators. Every
// outbound call goes through the Router, which routes a call class to a
// named provider, enforces the per-provider cooldown, and retries with
// backoff before surfacing a fatal GenerationError.
package provider

import (
	"context"
	"fmt"
)

// Generator is the generation collaborator contract. Prompt carries the
// instruction, contextText carries supporting material (may be empty),
// maxTokens bounds the output. Empty or under-length output is treated as
// a retryable failure by the caller, not by the implementation.
type Generator interface {
	Generate(ctx context.Context, prompt, contextText string, maxTokens int) (string, error)
	Name() string
}

// Role classifies a call so the router can direct it to the configured
// provider.
type Role string

const (
	RoleDraft     Role = "draft"
	RoleCritique  Role = "critique"
	RoleSynthesis Role = "synthesis"
)

// GenerationError is the fatal error surfaced after retries are
// exhausted. It carries the provider identity and the attempt count so
// the terminal error names who failed and how often.
type GenerationError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("provider %s failed after %d attempts: %v", e.Provider, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
