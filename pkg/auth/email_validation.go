package auth

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/tendant/vfense-accounts/pkg/domain"
)

// Disposable mail providers rejected when EmailRules.BlockDisposable is set.
var disposableDomains = map[string]bool{
	"tempmail.com":      true,
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"mailinator.com":    true,
	"throwaway.email":   true,
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

const maxEmailLength = 254 // RFC 5321

// EmailRules controls how strictly addresses are checked.
type EmailRules struct {
	Strict          bool
	BlockDisposable bool
}

// ValidateEmail validates an email address for format and length.
// Errors wrap domain.ErrInvalidEmail.
func ValidateEmail(email string, rules EmailRules) error {
	if email == "" {
		return fmt.Errorf("%w: address is required", domain.ErrInvalidEmail)
	}
	if len(email) > maxEmailLength {
		return fmt.Errorf("%w: longer than %d characters", domain.ErrInvalidEmail, maxEmailLength)
	}

	addr, err := mail.ParseAddress(NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidEmail, email)
	}

	if rules.Strict && !emailRegex.MatchString(addr.Address) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidEmail, email)
	}

	if rules.BlockDisposable {
		_, host, _ := strings.Cut(addr.Address, "@")
		if disposableDomains[strings.ToLower(host)] {
			return fmt.Errorf("%w: disposable addresses are not allowed", domain.ErrInvalidEmail)
		}
	}

	return nil
}

// NormalizeEmail normalizes an email address by lowercasing and trimming.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
