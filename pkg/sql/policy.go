package sql

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy decides which statement categories may run against a user's
// database. The default policy is read-only; anything wider has to be
// configured deliberately.
type Policy struct {
	AllowMutating    bool `yaml:"allow_mutating"`
	AllowDestructive bool `yaml:"allow_destructive"`
}

// DefaultPolicy returns the read-only policy.
func DefaultPolicy() *Policy {
	return &Policy{}
}

// LoadPolicy reads a policy from a YAML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	return &p, nil
}

// Allows reports whether statements with the given verdict may execute.
// Unparseable statements are never allowed.
func (p *Policy) Allows(v Verdict) bool {
	switch v {
	case VerdictReadOnly:
		return true
	case VerdictMutating:
		return p.AllowMutating
	case VerdictDestructive:
		return p.AllowDestructive
	default:
		return false
	}
}
