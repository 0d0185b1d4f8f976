package query

import "context"

// Policy family read accessors serve admin listing/inspection (spec
// §4.6): "which policies exist and at which scope" rather than "which
// policy applies" — that resolution logic belongs to
// internal/policyresolver, not here.

// PolicyRow is the shape shared by every policy family's admin listing:
// identity plus scope, without the family-specific fields.
type PolicyRow struct {
	PolicyID       string
	OrganizationID string
	IsDefault      bool
}

func (q *Queries) ListLockoutPolicies(ctx context.Context, instanceID string) ([]PolicyRow, error) {
	return q.listPolicyRows(ctx, "lockout_policies", instanceID)
}

func (q *Queries) ListPasswordComplexityPolicies(ctx context.Context, instanceID string) ([]PolicyRow, error) {
	return q.listPolicyRows(ctx, "password_complexity_policies", instanceID)
}

func (q *Queries) ListPrivacyPolicies(ctx context.Context, instanceID string) ([]PolicyRow, error) {
	return q.listPolicyRows(ctx, "privacy_policies", instanceID)
}

func (q *Queries) ListNotificationPolicies(ctx context.Context, instanceID string) ([]PolicyRow, error) {
	return q.listPolicyRows(ctx, "notification_policies", instanceID)
}

func (q *Queries) ListSecurityPolicies(ctx context.Context, instanceID string) ([]PolicyRow, error) {
	return q.listPolicyRows(ctx, "security_policies", instanceID)
}

func (q *Queries) ListLoginPolicies(ctx context.Context, instanceID string) ([]PolicyRow, error) {
	return q.listPolicyRows(ctx, "login_policies", instanceID)
}

func (q *Queries) ListDomainPolicies(ctx context.Context, instanceID string) ([]PolicyRow, error) {
	return q.listPolicyRows(ctx, "domain_policies", instanceID)
}

// listPolicyRows is shared across all seven families: every policy
// table carries the same (policy_id, organization_id, is_default)
// identity columns regardless of its family-specific fields, so one
// query shape covers all of them (mirrors the declarative projection
// handler's policyTable-driven dispatch in
// internal/projection/handlers/policy.go).
func (q *Queries) listPolicyRows(ctx context.Context, table, instanceID string) ([]PolicyRow, error) {
	rows, err := q.pool.Query(ctx, `SELECT policy_id, coalesce(organization_id, ''), is_default FROM `+table+`
		WHERE instance_id = $1 ORDER BY is_default DESC, organization_id NULLS FIRST`,
		instanceID)
	if err != nil {
		return nil, notFound("QUERY-Policy01", table, "", err)
	}
	defer rows.Close()

	var items []PolicyRow
	for rows.Next() {
		var p PolicyRow
		if err := rows.Scan(&p.PolicyID, &p.OrganizationID, &p.IsDefault); err != nil {
			return nil, notFound("QUERY-Policy02", table, "", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// CustomText is one (language, key) -> text entry at a given scope.
type CustomText struct {
	Language string
	Key      string
	Text     string
}

func (q *Queries) ListCustomTexts(ctx context.Context, instanceID, orgID, language string) ([]CustomText, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT language, key, text FROM custom_texts
		WHERE instance_id = $1 AND organization_id = $2 AND ($3 = '' OR language = $3)
		ORDER BY key`,
		instanceID, orgID, language)
	if err != nil {
		return nil, notFound("QUERY-CustomText01", "custom_text", "", err)
	}
	defer rows.Close()

	var items []CustomText
	for rows.Next() {
		var c CustomText
		if err := rows.Scan(&c.Language, &c.Key, &c.Text); err != nil {
			return nil, notFound("QUERY-CustomText02", "custom_text", "", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
