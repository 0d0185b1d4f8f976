package policyresolver

import "unicode"

// Enforcement helpers are pure (spec §4.5): they depend on nothing but
// their arguments, so commands and authentication flows can call them
// without touching the resolver or the database at all once they hold a
// resolved policy.

// ShouldLockoutPassword reports whether attempts has crossed the
// lockout policy's password-attempt threshold.
func ShouldLockoutPassword(attempts int, p LockoutPolicy) bool {
	return attempts >= p.MaxPasswordAttempts
}

// ShouldLockoutOTP reports the same for one-time-password attempts.
func ShouldLockoutOTP(attempts int, p LockoutPolicy) bool {
	return attempts >= p.MaxOTPAttempts
}

// MeetsPasswordComplexity checks password against every rule a
// PasswordComplexityPolicy enables; a disabled rule is always satisfied.
func MeetsPasswordComplexity(password string, p PasswordComplexityPolicy) bool {
	if len(password) < p.MinLength {
		return false
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsNumber(r):
			hasNumber = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	if p.HasUppercase && !hasUpper {
		return false
	}
	if p.HasLowercase && !hasLower {
		return false
	}
	if p.HasNumber && !hasNumber {
		return false
	}
	if p.HasSymbol && !hasSymbol {
		return false
	}
	return true
}

// IsAllowedOrigin reports whether origin is in the security policy's
// allow-list, or the policy has no list configured (wide open).
func IsAllowedOrigin(origin string, p SecurityPolicy) bool {
	if len(p.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range p.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}
