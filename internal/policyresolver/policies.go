package policyresolver

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Every Get method follows the same shape: try org override, fall back
// to instance default, fall back to the builtin literal named in spec.md
// §4.5 (lockout's built-in values are spelled out there explicitly; the
// rest follow the same compiled-in defaults as the projection's column
// defaults in internal/shared/database/migrations/0003_projections.sql,
// kept here independently since the resolver must work even against an
// empty database).

type LockoutPolicy struct {
	MaxPasswordAttempts int
	MaxOTPAttempts      int
	ShowFailures        bool
}

var builtinLockoutPolicy = LockoutPolicy{MaxPasswordAttempts: 10, MaxOTPAttempts: 5, ShowFailures: true}

func (r *Resolver) GetLockoutPolicy(ctx context.Context, instanceID, orgID string) (LockoutPolicy, error) {
	p := builtinLockoutPolicy
	found, err := r.lookup(ctx, "lockout_policies", "max_password_attempts, max_otp_attempts, show_failures", instanceID, orgID,
		func(row pgx.Row) error {
			return row.Scan(&p.MaxPasswordAttempts, &p.MaxOTPAttempts, &p.ShowFailures)
		})
	if err != nil {
		return LockoutPolicy{}, err
	}
	if !found {
		return builtinLockoutPolicy, nil
	}
	return p, nil
}

type PasswordComplexityPolicy struct {
	MinLength    int
	HasUppercase bool
	HasLowercase bool
	HasNumber    bool
	HasSymbol    bool
}

var builtinPasswordComplexityPolicy = PasswordComplexityPolicy{MinLength: 8, HasUppercase: true, HasLowercase: true, HasNumber: true, HasSymbol: false}

func (r *Resolver) GetPasswordComplexityPolicy(ctx context.Context, instanceID, orgID string) (PasswordComplexityPolicy, error) {
	p := builtinPasswordComplexityPolicy
	found, err := r.lookup(ctx, "password_complexity_policies", "min_length, has_uppercase, has_lowercase, has_number, has_symbol", instanceID, orgID,
		func(row pgx.Row) error {
			return row.Scan(&p.MinLength, &p.HasUppercase, &p.HasLowercase, &p.HasNumber, &p.HasSymbol)
		})
	if err != nil {
		return PasswordComplexityPolicy{}, err
	}
	if !found {
		return builtinPasswordComplexityPolicy, nil
	}
	return p, nil
}

type PrivacyPolicy struct {
	TOSLink     string
	PrivacyLink string
	HelpLink    string
}

var builtinPrivacyPolicy = PrivacyPolicy{}

func (r *Resolver) GetPrivacyPolicy(ctx context.Context, instanceID, orgID string) (PrivacyPolicy, error) {
	p := builtinPrivacyPolicy
	found, err := r.lookup(ctx, "privacy_policies", "tos_link, privacy_link, help_link", instanceID, orgID,
		func(row pgx.Row) error {
			return row.Scan(&p.TOSLink, &p.PrivacyLink, &p.HelpLink)
		})
	if err != nil {
		return PrivacyPolicy{}, err
	}
	if !found {
		return builtinPrivacyPolicy, nil
	}
	return p, nil
}

type NotificationPolicy struct {
	PasswordChangeNotify bool
}

var builtinNotificationPolicy = NotificationPolicy{PasswordChangeNotify: true}

func (r *Resolver) GetNotificationPolicy(ctx context.Context, instanceID, orgID string) (NotificationPolicy, error) {
	p := builtinNotificationPolicy
	found, err := r.lookup(ctx, "notification_policies", "password_change", instanceID, orgID,
		func(row pgx.Row) error {
			return row.Scan(&p.PasswordChangeNotify)
		})
	if err != nil {
		return NotificationPolicy{}, err
	}
	if !found {
		return builtinNotificationPolicy, nil
	}
	return p, nil
}

type SecurityPolicy struct {
	EnableIframeEmbedding bool
	AllowedOrigins        []string
}

var builtinSecurityPolicy = SecurityPolicy{EnableIframeEmbedding: false}

func (r *Resolver) GetSecurityPolicy(ctx context.Context, instanceID, orgID string) (SecurityPolicy, error) {
	p := builtinSecurityPolicy
	found, err := r.lookup(ctx, "security_policies", "enable_iframe, allowed_origins", instanceID, orgID,
		func(row pgx.Row) error {
			return row.Scan(&p.EnableIframeEmbedding, &p.AllowedOrigins)
		})
	if err != nil {
		return SecurityPolicy{}, err
	}
	if !found {
		return builtinSecurityPolicy, nil
	}
	return p, nil
}

type LoginPolicy struct {
	AllowUsernamePassword bool
	AllowRegister         bool
	ForceMFA              bool
}

var builtinLoginPolicy = LoginPolicy{AllowUsernamePassword: true, AllowRegister: true, ForceMFA: false}

func (r *Resolver) GetLoginPolicy(ctx context.Context, instanceID, orgID string) (LoginPolicy, error) {
	p := builtinLoginPolicy
	found, err := r.lookup(ctx, "login_policies", "allow_username_password, allow_register, force_mfa", instanceID, orgID,
		func(row pgx.Row) error {
			return row.Scan(&p.AllowUsernamePassword, &p.AllowRegister, &p.ForceMFA)
		})
	if err != nil {
		return LoginPolicy{}, err
	}
	if !found {
		return builtinLoginPolicy, nil
	}
	return p, nil
}

type DomainPolicy struct {
	UserLoginMustBeDomain            bool
	ValidateOrgDomains               bool
	SMTPSenderAddressMatchesInstance bool
}

var builtinDomainPolicy = DomainPolicy{UserLoginMustBeDomain: false, ValidateOrgDomains: true, SMTPSenderAddressMatchesInstance: false}

func (r *Resolver) GetDomainPolicy(ctx context.Context, instanceID, orgID string) (DomainPolicy, error) {
	p := builtinDomainPolicy
	found, err := r.lookup(ctx, "domain_policies", "user_login_must_be_domain, validate_org_domains, smtp_sender_matches_instance_domain", instanceID, orgID,
		func(row pgx.Row) error {
			return row.Scan(&p.UserLoginMustBeDomain, &p.ValidateOrgDomains, &p.SMTPSenderAddressMatchesInstance)
		})
	if err != nil {
		return DomainPolicy{}, err
	}
	if !found {
		return builtinDomainPolicy, nil
	}
	return p, nil
}
