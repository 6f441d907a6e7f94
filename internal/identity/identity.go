// Package identity models agent-name resolution as an injected
// capability. The messaging and job cores compare identities with exact
// string equality; anything fuzzier (case folding, nicknames) happens
// here, before an identity enters the core.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arlobright/signalbox/internal/fault"
	"github.com/arlobright/signalbox/internal/models"
	"gorm.io/gorm"
)

// Resolver maps a user-supplied name to a canonical agent identity.
type Resolver interface {
	Resolve(name string) (string, error)
}

// StoreResolver resolves against the agent_configs table,
// case-insensitively. Configured rows carry lowercase canonical names.
type StoreResolver struct {
	DB *gorm.DB
}

// Resolve returns the canonical identity for name, or fault.ErrNotFound.
func (r *StoreResolver) Resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("identity: name is required: %w", fault.ErrValidation)
	}
	canonical := Canonical(name)
	var row models.AgentConfig
	err := r.DB.Where("name = ?", canonical).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("identity: agent %q: %w", name, fault.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("identity: resolve %q: %w", name, err)
	}
	return row.Name, nil
}

// Canonical lowercases and trims an agent name. This is the only
// normalization the platform applies.
func Canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
