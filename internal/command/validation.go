package command

import (
	"regexp"

	apperrors "github.com/serbia-gov/iamcore/internal/shared/errors"
)

// domainPattern is a practical subset of RFC 1035: lowercase labels of
// letters/digits/hyphens, dot-separated, ending in a letter TLD of at
// least two characters. It rejects leading/trailing hyphens per label.
var domainPattern = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

// languageTagPattern accepts a bare two-letter lowercase ISO 639-1 code
// (e.g. "en", "sr"); region subtags are rejected.
var languageTagPattern = regexp.MustCompile(`^[a-z]{2}$`)

// usernamePattern: 3-200 chars, letters/digits/dot/dash/underscore/@,
// matching the login_name shape stored in the projection layer.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._@-]{3,200}$`)

func validateDomain(domain string) error {
	if !domainPattern.MatchString(domain) {
		return apperrors.InvalidArgument("VALIDATE-Domain01", "invalid domain name", map[string]string{"domain": domain})
	}
	return nil
}

func validateLanguageTag(tag string) error {
	if !languageTagPattern.MatchString(tag) {
		return apperrors.InvalidArgument("VALIDATE-Lang01", "invalid language tag", map[string]string{"language": tag})
	}
	return nil
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return apperrors.InvalidArgument("VALIDATE-Username01", "invalid username", map[string]string{"username": username})
	}
	return nil
}

func validateNonEmpty(code, field, value string) error {
	if value == "" {
		return apperrors.InvalidArgument(code, field+" must not be empty", map[string]string{"field": field})
	}
	return nil
}

func validateRoles(roles []string) error {
	if len(roles) == 0 {
		return apperrors.InvalidArgument("VALIDATE-Roles01", "at least one role is required", nil)
	}
	seen := make(map[string]bool, len(roles))
	for _, r := range roles {
		if r == "" {
			return apperrors.InvalidArgument("VALIDATE-Roles02", "role must not be empty", nil)
		}
		if seen[r] {
			return apperrors.InvalidArgument("VALIDATE-Roles03", "duplicate role", map[string]string{"role": r})
		}
		seen[r] = true
	}
	return nil
}
