package usage

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/suPer8Hu/ai-debate/internal/tokenstore"
)

type Limits struct {
	SessionLimit  int      `yaml:"session_limit"`
	MessageLimit  int      `yaml:"message_limit"`
	AllowedModels []string `yaml:"allowed_models"`
}

// Allows reports whether model may take part in a session on this tier.
func (l Limits) Allows(model string) bool {
	return slices.Contains(l.AllowedModels, strings.ToLower(strings.TrimSpace(model)))
}

// Policy maps each tier to its limits. It is read-only once loaded.
type Policy map[tokenstore.Tier]Limits

func DefaultPolicy() Policy {
	return Policy{
		tokenstore.TierFree: {
			SessionLimit:  3,
			MessageLimit:  15,
			AllowedModels: []string{"gemini", "deepseek"},
		},
		tokenstore.TierPro: {
			SessionLimit:  50,
			MessageLimit:  500,
			AllowedModels: []string{"gemini", "deepseek", "gpt", "claude"},
		},
		tokenstore.TierEnterprise: {
			SessionLimit:  1000,
			MessageLimit:  10000,
			AllowedModels: []string{"gemini", "deepseek", "gpt", "claude", "llama"},
		},
	}
}

// For returns the limits of t, falling back to the free tier.
func (p Policy) For(t tokenstore.Tier) Limits {
	if l, ok := p[t]; ok {
		return l
	}
	return p[tokenstore.TierFree]
}

func (p Policy) Validate() error {
	for _, t := range []tokenstore.Tier{tokenstore.TierFree, tokenstore.TierPro, tokenstore.TierEnterprise} {
		l, ok := p[t]
		if !ok {
			return fmt.Errorf("tier policy: missing tier %q", t)
		}
		if l.SessionLimit < 0 || l.MessageLimit < 0 {
			return fmt.Errorf("tier policy: negative limit for tier %q", t)
		}
		if len(l.AllowedModels) == 0 {
			return fmt.Errorf("tier policy: tier %q allows no models", t)
		}
	}
	for t := range p {
		if !t.Valid() {
			return fmt.Errorf("tier policy: unknown tier %q", t)
		}
	}
	return nil
}

// LoadPolicyFile reads a YAML policy such as
//
//	free:
//	  session_limit: 3
//	  message_limit: 15
//	  allowed_models: [gemini, deepseek]
//
// An empty path returns DefaultPolicy.
func LoadPolicyFile(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier policy: %w", err)
	}
	return ParsePolicy(b)
}

func ParsePolicy(b []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse tier policy: %w", err)
	}
	for t, l := range p {
		for i, m := range l.AllowedModels {
			l.AllowedModels[i] = strings.ToLower(strings.TrimSpace(m))
		}
		p[t] = l
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
