/**
 * @description
 * This package implements phone number normalization and operator resolution
 * for the mobile-money markets served by the platform. Raw phone strings are
 * parsed into E.164 form against per-country calling-code and length rules,
 * then matched against the read-only operator prefix table.
 *
 * @notes
 * - Normalization is a pure computation. Normalizing an already-normalized
 *   number returns it unchanged.
 * - The country rule table and the operator prefix table are loaded once at
 *   process start and never mutated, so unrestricted concurrent reads are safe.
 */

package phone

import (
	"fmt"
	"strings"

	"github.com/sahelpay/transfer-service/internal/domain"
)

// FormatError describes why a raw phone string could not be normalized.
// Callers convert it into a negative verification result rather than
// propagating it.
type FormatError struct {
	Raw    string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid phone number %q: %s", e.Raw, e.Reason)
}

// CountryRule holds per-country dialing parameters.
type CountryRule struct {
	CountryCode    string // ISO 3166-1 alpha-2
	CallingCode    string // digits only, without '+'
	NationalLength int
}

// countryRules covers the West African markets the platform operates in.
var countryRules = []CountryRule{
	{CountryCode: "SN", CallingCode: "221", NationalLength: 9},
	{CountryCode: "CI", CallingCode: "225", NationalLength: 10},
	{CountryCode: "ML", CallingCode: "223", NationalLength: 8},
	{CountryCode: "BF", CallingCode: "226", NationalLength: 8},
	{CountryCode: "BJ", CallingCode: "229", NationalLength: 8},
	{CountryCode: "TG", CallingCode: "228", NationalLength: 8},
	{CountryCode: "NE", CallingCode: "227", NationalLength: 8},
	{CountryCode: "GN", CallingCode: "224", NationalLength: 9},
}

func ruleByCountry(countryCode string) (CountryRule, bool) {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	for _, rule := range countryRules {
		if rule.CountryCode == code {
			return rule, true
		}
	}
	return CountryRule{}, false
}

func ruleByCallingCode(digits string) (CountryRule, bool) {
	for _, rule := range countryRules {
		if strings.HasPrefix(digits, rule.CallingCode) {
			return rule, true
		}
	}
	return CountryRule{}, false
}

// stripFormatting removes everything except digits, keeping a single leading '+'.
func stripFormatting(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize parses a raw phone string into a PhoneNumber value. When the raw
// input carries no country code prefix, the assumed country's calling code is
// applied. assumedCountry may be empty if the input is fully qualified.
func Normalize(raw string, assumedCountry string) (domain.PhoneNumber, error) {
	cleaned := stripFormatting(raw)
	if cleaned == "" || cleaned == "+" {
		return domain.PhoneNumber{}, &FormatError{Raw: raw, Reason: "no digits present"}
	}

	var rule CountryRule
	var national string

	switch {
	case strings.HasPrefix(cleaned, "+"):
		digits := cleaned[1:]
		matched, ok := ruleByCallingCode(digits)
		if !ok {
			return domain.PhoneNumber{}, &FormatError{Raw: raw, Reason: "unknown country calling code"}
		}
		rule = matched
		national = digits[len(matched.CallingCode):]

	case strings.HasPrefix(cleaned, "00"):
		matched, ok := ruleByCallingCode(cleaned[2:])
		if !ok {
			return domain.PhoneNumber{}, &FormatError{Raw: raw, Reason: "unknown country calling code"}
		}
		rule = matched
		national = cleaned[2+len(matched.CallingCode):]

	default:
		// A bare number may still start with a calling code (e.g. "221774567890").
		if matched, ok := ruleByCallingCode(cleaned); ok && len(cleaned) == len(matched.CallingCode)+matched.NationalLength {
			rule = matched
			national = cleaned[len(matched.CallingCode):]
			break
		}
		matched, ok := ruleByCountry(assumedCountry)
		if !ok {
			return domain.PhoneNumber{}, &FormatError{Raw: raw, Reason: "no country code prefix and no assumed country"}
		}
		rule = matched
		national = cleaned
	}

	if len(national) != rule.NationalLength {
		return domain.PhoneNumber{}, &FormatError{
			Raw:    raw,
			Reason: fmt.Sprintf("expected %d national digits for %s, got %d", rule.NationalLength, rule.CountryCode, len(national)),
		}
	}

	return domain.PhoneNumber{
		RawInput:       raw,
		NormalizedE164: "+" + rule.CallingCode + national,
		CountryCode:    rule.CountryCode,
		NationalNumber: national,
	}, nil
}
