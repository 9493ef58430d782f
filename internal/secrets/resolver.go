package secrets

import (
	"fmt"
	"strings"

	"github.com/tmarkou/agora/internal/schema"
	"github.com/tmarkou/agora/internal/store"
	"github.com/tmarkou/agora/internal/vault"
)

// Placeholder prefix recognized in model api_key fields. The remainder of
// the value names a secret in the store.
const prefix = "secret:"

// Resolver substitutes secret placeholders in team configurations with
// decrypted values from the store.
type Resolver struct {
	store *store.Store
	vault *vault.Vault
}

func NewResolver(s *store.Store, v *vault.Vault) *Resolver {
	return &Resolver{store: s, vault: v}
}

// Store encrypts a secret value and persists it under name.
func (r *Resolver) Store(name, value string) error {
	token, err := r.vault.EncryptString(value)
	if err != nil {
		return fmt.Errorf("encrypt secret %s: %w", name, err)
	}
	return r.store.SaveSecret(name, token)
}

func (r *Resolver) lookup(name string) (string, error) {
	sec, err := r.store.GetSecret(name)
	if err != nil {
		return "", err
	}
	if sec == nil {
		return "", fmt.Errorf("unknown secret %q", name)
	}
	value, err := r.vault.DecryptString(sec.Token)
	if err != nil {
		return "", fmt.Errorf("decrypt secret %s: %w", name, err)
	}
	return value, nil
}

func (r *Resolver) resolveKey(key string) (string, error) {
	if !strings.HasPrefix(key, prefix) {
		return key, nil
	}
	return r.lookup(strings.TrimPrefix(key, prefix))
}

// ResolveTeam returns a deep copy of cfg with every secret: api_key
// placeholder replaced by its decrypted value. The input is never mutated
// so resolved keys cannot leak back into persisted configs.
func (r *Resolver) ResolveTeam(cfg *schema.TeamConfig) (*schema.TeamConfig, error) {
	out := *cfg

	if cfg.ModelClient != nil {
		mc, err := r.resolveModel(cfg.ModelClient)
		if err != nil {
			return nil, err
		}
		out.ModelClient = mc
	}

	out.Participants = make([]schema.AgentConfig, len(cfg.Participants))
	for i, p := range cfg.Participants {
		cp := p
		if p.ModelClient != nil {
			mc, err := r.resolveModel(p.ModelClient)
			if err != nil {
				return nil, err
			}
			cp.ModelClient = mc
		}
		if len(p.Tools) > 0 {
			cp.Tools = append([]schema.ToolConfig(nil), p.Tools...)
		}
		out.Participants[i] = cp
	}

	if cfg.TerminationCondition != nil {
		tc := copyTermination(cfg.TerminationCondition)
		out.TerminationCondition = tc
	}

	return &out, nil
}

func (r *Resolver) resolveModel(mc *schema.ModelConfig) (*schema.ModelConfig, error) {
	cp := *mc
	key, err := r.resolveKey(mc.APIKey)
	if err != nil {
		return nil, err
	}
	cp.APIKey = key
	return &cp, nil
}

func copyTermination(tc *schema.TerminationConfig) *schema.TerminationConfig {
	cp := *tc
	if len(tc.Conditions) > 0 {
		cp.Conditions = make([]schema.TerminationConfig, len(tc.Conditions))
		for i := range tc.Conditions {
			cp.Conditions[i] = *copyTermination(&tc.Conditions[i])
		}
	}
	return &cp
}
