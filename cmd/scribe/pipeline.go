package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"scribe/internal/config"
	"scribe/internal/provider"
	"scribe/internal/refine"
	"scribe/internal/store"
)

// buildRouter constructs the configured providers and the role routing.
// Only providers actually referenced by a role are instantiated, so a
// fully local setup never touches the Gemini SDK.
func buildRouter(ctx context.Context, cfg *config.Config) (*provider.Router, error) {
	roles := map[provider.Role]string{
		provider.RoleDraft:     cfg.Provider.DraftProvider,
		provider.RoleCritique:  cfg.Provider.CritiqueProvider,
		provider.RoleSynthesis: cfg.Provider.SynthesisProvider,
	}

	needed := make(map[string]bool)
	for _, name := range roles {
		needed[name] = true
	}

	generators := make(map[string]provider.Generator)
	for name := range needed {
		switch name {
		case "gemini":
			if cfg.Provider.Gemini.APIKey == "" {
				return nil, fmt.Errorf("gemini provider selected but no API key configured")
			}
			client, err := provider.NewGeminiClient(ctx,
				cfg.Provider.Gemini.APIKey, cfg.Provider.Gemini.Model, cfg.Provider.Gemini.MaxTokens)
			if err != nil {
				return nil, fmt.Errorf("failed to create gemini provider: %w", err)
			}
			generators[name] = client
		case "local":
			generators[name] = provider.NewLocalClient(
				cfg.Provider.Local.BaseURL, cfg.Provider.Local.Model, cfg.Provider.Local.MaxTokens)
		default:
			return nil, fmt.Errorf("unknown provider %q (want gemini or local)", name)
		}
	}

	cooldown := provider.NewCooldown(time.Duration(cfg.Provider.CooldownSeconds * float64(time.Second)))
	return provider.NewRouter(generators, roles, cooldown, cfg.Provider.MaxRetries), nil
}

// openStore opens the round store when persistence is enabled. Returns a
// nil sink (and nil closer) when it is not.
func openStore(cfg *config.Config) (refine.RoundSink, func(), error) {
	if !cfg.Store.Enabled {
		return nil, nil, nil
	}
	path := cfg.Store.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(workspace, path)
	}
	s, err := store.NewRoundStore(path)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}

func storePath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Store.Path) {
		return cfg.Store.Path
	}
	return filepath.Join(workspace, cfg.Store.Path)
}
