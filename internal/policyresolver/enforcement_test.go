package policyresolver

import "testing"

func TestShouldLockoutPassword(t *testing.T) {
	p := LockoutPolicy{MaxPasswordAttempts: 10}
	if ShouldLockoutPassword(9, p) {
		t.Fatal("9 attempts should not yet lock out a 10-attempt policy")
	}
	if !ShouldLockoutPassword(10, p) {
		t.Fatal("10 attempts should lock out a 10-attempt policy")
	}
	if !ShouldLockoutPassword(11, p) {
		t.Fatal("11 attempts should lock out a 10-attempt policy")
	}
}

func TestShouldLockoutOTP(t *testing.T) {
	p := LockoutPolicy{MaxOTPAttempts: 5}
	if ShouldLockoutOTP(4, p) {
		t.Fatal("4 attempts should not lock out a 5-attempt policy")
	}
	if !ShouldLockoutOTP(5, p) {
		t.Fatal("5 attempts should lock out a 5-attempt policy")
	}
}

func TestMeetsPasswordComplexity(t *testing.T) {
	p := PasswordComplexityPolicy{MinLength: 8, HasUppercase: true, HasLowercase: true, HasNumber: true, HasSymbol: true}

	cases := []struct {
		password string
		want     bool
	}{
		{"Aa1!aaaa", true},
		{"aaaaaaaa", false}, // no uppercase/number/symbol
		{"AAAAAAA1", false}, // no lowercase/symbol
		{"Aa1!aa", false},   // below MinLength
	}

	for _, c := range cases {
		if got := MeetsPasswordComplexity(c.password, p); got != c.want {
			t.Errorf("MeetsPasswordComplexity(%q) = %v, want %v", c.password, got, c.want)
		}
	}
}

func TestMeetsPasswordComplexityDisabledRulesAlwaysPass(t *testing.T) {
	p := PasswordComplexityPolicy{MinLength: 4}
	if !MeetsPasswordComplexity("abcd", p) {
		t.Fatal("expected a policy with every rule disabled to accept any password meeting min length")
	}
}

func TestIsAllowedOrigin(t *testing.T) {
	open := SecurityPolicy{}
	if !IsAllowedOrigin("https://evil.example", open) {
		t.Fatal("expected an empty allow-list to permit any origin")
	}

	restricted := SecurityPolicy{AllowedOrigins: []string{"https://good.example"}}
	if !IsAllowedOrigin("https://good.example", restricted) {
		t.Fatal("expected listed origin to be allowed")
	}
	if IsAllowedOrigin("https://evil.example", restricted) {
		t.Fatal("expected unlisted origin to be rejected")
	}
}
