package utils

import "strings"

// personalDomains lists consumer email providers that are rejected at
// registration.  Everything else, including university domains, counts as
// corporate: educational institutions have the same workspace needs as
// companies.
var personalDomains = map[string]bool{
	"gmail.com":      true,
	"yahoo.com":      true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"aol.com":        true,
	"icloud.com":     true,
	"protonmail.com": true,
	"tutanota.com":   true,
	"live.com":       true,
	"me.com":         true,
	"mac.com":        true,
	"msn.com":        true,
	"ymail.com":      true,
}

// NormalizeEmail lowercases and trims an email address.  All lookups and
// stored values go through this so the unique-email invariant is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain returns the part after the last '@', lowercased, or "" when
// the address has no domain part.
func EmailDomain(email string) string {
	email = NormalizeEmail(email)
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}

// ValidEmail is a light structural check: one '@' with non-empty local and
// domain parts and a dot in the domain.  Real deliverability is proven by
// the verification email, not by parsing.
func ValidEmail(email string) bool {
	email = NormalizeEmail(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if strings.ContainsAny(email, " \t") {
		return false
	}
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

// IsCorporateEmail reports whether the address uses a non-consumer domain.
func IsCorporateEmail(email string) bool {
	domain := EmailDomain(email)
	if domain == "" {
		return false
	}
	return !personalDomains[domain]
}
