// Package identity normalizes and classifies raw identity strings into
// canonical email or Iranian mobile-number form. All functions are pure;
// every flow uses this package as its precondition check.
package identity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/idgate/internal/domain"
	"github.com/idgate/internal/pkg/validate"
)

var phonePattern = regexp.MustCompile(`^09\d{9}$`)

// Normalize translates Persian/Arabic digits to ASCII, trims whitespace, and
// classifies the input. Strings containing '@' must be valid email addresses
// and are lower-cased; anything else must normalize to a canonical Iranian
// mobile number (09XXXXXXXXX). Re-normalizing the output is a no-op.
func Normalize(raw string) (domain.Identity, error) {
	value := strings.TrimSpace(normalizeDigits(raw))

	if strings.Contains(value, "@") {
		if err := validate.Var(value, "required,email"); err != nil {
			return domain.Identity{}, fmt.Errorf("malformed email %q: %w", value, domain.ErrInvalidIdentity)
		}
		return domain.Identity{Value: strings.ToLower(value), Kind: domain.IdentityEmail}, nil
	}

	phone := normalizePhone(value)
	if !phonePattern.MatchString(phone) {
		return domain.Identity{}, fmt.Errorf("not an email or Iranian mobile number: %w", domain.ErrInvalidIdentity)
	}
	return domain.Identity{Value: phone, Kind: domain.IdentityPhone}, nil
}

// normalizePhone collapses country-code prefixes to the national leading zero.
// Supports +98912..., 0098912..., 98912... and already-canonical 0912... input.
func normalizePhone(phone string) string {
	phone = strings.Join(strings.Fields(phone), "")
	switch {
	case strings.HasPrefix(phone, "+98"):
		return "0" + phone[3:]
	case strings.HasPrefix(phone, "0098"):
		return "0" + phone[4:]
	case strings.HasPrefix(phone, "98"):
		return "0" + phone[2:]
	}
	return phone
}

// normalizeDigits converts Persian (U+06F0..U+06F9) and Arabic-Indic
// (U+0660..U+0669) digit glyphs to ASCII digits.
func normalizeDigits(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		}
		return r
	}, text)
}
