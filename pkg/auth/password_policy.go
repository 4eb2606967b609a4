package auth

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tendant/vfense-accounts/pkg/domain"
)

// PasswordPolicy defines password complexity requirements.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// DefaultPasswordPolicy mirrors the rules new accounts have always been held to.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
		RequireSpecial:   true,
	}
}

// ValidatePassword checks a password against the policy. Every unmet rule is
// listed in the returned error, which wraps domain.ErrWeakPassword.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	var missing []string

	if p.MinLength > 0 && len(password) < p.MinLength {
		missing = append(missing, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	if p.RequireUppercase && !containsUppercase(password) {
		missing = append(missing, "one uppercase letter")
	}
	if p.RequireLowercase && !containsLowercase(password) {
		missing = append(missing, "one lowercase letter")
	}
	if p.RequireNumber && !containsNumber(password) {
		missing = append(missing, "one number")
	}
	if p.RequireSpecial && !containsSpecial(password) {
		missing = append(missing, "one special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: needs %s", domain.ErrWeakPassword, strings.Join(missing, ", "))
	}
	return nil
}

// Requirements returns a human-readable description of the policy.
func (p *PasswordPolicy) Requirements() string {
	if !p.HasRequirements() {
		return "No password requirements"
	}

	var requirements []string
	if p.MinLength > 0 {
		requirements = append(requirements, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	if p.RequireUppercase {
		requirements = append(requirements, "one uppercase letter")
	}
	if p.RequireLowercase {
		requirements = append(requirements, "one lowercase letter")
	}
	if p.RequireNumber {
		requirements = append(requirements, "one number")
	}
	if p.RequireSpecial {
		requirements = append(requirements, "one special character")
	}

	return "Password must contain " + strings.Join(requirements, ", ")
}

// HasRequirements returns true if the policy has any requirements.
func (p *PasswordPolicy) HasRequirements() bool {
	return p.MinLength > 0 || p.RequireUppercase || p.RequireLowercase || p.RequireNumber || p.RequireSpecial
}

func containsUppercase(s string) bool {
	return strings.IndexFunc(s, unicode.IsUpper) >= 0
}

func containsLowercase(s string) bool {
	return strings.IndexFunc(s, unicode.IsLower) >= 0
}

func containsNumber(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func containsSpecial(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
	}) >= 0
}
