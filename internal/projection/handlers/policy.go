package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/serbia-gov/iamcore/internal/domain/org"
	"github.com/serbia-gov/iamcore/internal/eventstore"
	"github.com/serbia-gov/iamcore/internal/projection"
)

// policyTable describes one policy family's projection table (spec
// §3.6, §4.5): a fixed (instance_id, policy_id, organization_id,
// is_default) header plus family-specific columns, upserted by
// (instance_id, policy_id) on every add/change event. policy_id is
// derived from scope rather than carried in the event: "default" for
// the instance level, the org_id for an org override.
type policyTable struct {
	name    string // projection name / handler Name()
	table   string
	columns []string // JSON keys == column names for every policy family (see internal/command/policy.go)
}

var policyTables = []policyTable{
	{"policy.lockout", "lockout_policies", []string{"max_password_attempts", "max_otp_attempts", "show_failures"}},
	{"policy.password_complexity", "password_complexity_policies", []string{"min_length", "has_uppercase", "has_lowercase", "has_number", "has_symbol"}},
	{"policy.privacy", "privacy_policies", []string{"tos_link", "privacy_link", "help_link"}},
	{"policy.notification", "notification_policies", []string{"password_change"}},
	{"policy.security", "security_policies", []string{"enable_iframe", "allowed_origins"}},
	{"policy.login", "login_policies", []string{"allow_username_password", "allow_register", "force_mfa"}},
	{"policy.domain", "domain_policies", []string{"user_login_must_be_domain", "validate_org_domains", "smtp_sender_matches_instance_domain"}},
}

// NewPolicyHandlers returns one DeclarativeHandler per policy family,
// each reacting to its instance.<family>.policy.{added,changed} and
// org.<family>.policy.{added,changed} event pairs (spec §8.2 S6).
func NewPolicyHandlers() []projection.Handler {
	out := make([]projection.Handler, 0, len(policyTables))
	for _, pt := range policyTables {
		out = append(out, newPolicyHandler(pt))
	}
	return out
}

func newPolicyHandler(pt policyTable) *projection.DeclarativeHandler {
	rule := DeclarativeRuleFor(pt)
	family := pt.table[:len(pt.table)-len("_policies")]
	rules := map[string]projection.DeclarativeRule{
		"instance." + family + ".policy.added":   rule,
		"instance." + family + ".policy.changed": rule,
		"org." + family + ".policy.added":        rule,
		"org." + family + ".policy.changed":      rule,
	}
	return projection.NewDeclarativeHandler(pt.name, rules, pt.table)
}

// DeclarativeRuleFor builds the upsert rule for one policy table: the
// SQL statement is fixed shape, column ordering, conflict target),
// fields are pulled straight out of the event's JSON payload since
// every policy family's JSON tags already match their table's column
// names one for one.
func DeclarativeRuleFor(pt policyTable) projection.DeclarativeRule {
	placeholders := ""
	setClauses := ""
	for i, col := range pt.columns {
		placeholders += fmt.Sprintf(", $%d", i+5)
		if i > 0 {
			setClauses += ", "
		}
		setClauses += fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}
	sql := fmt.Sprintf(`
		INSERT INTO %s (instance_id, policy_id, organization_id, is_default, %s)
		VALUES ($1, $2, $3, $4%s)
		ON CONFLICT (instance_id, policy_id) DO UPDATE SET %s`,
		pt.table, joinCols(pt.columns), placeholders, setClauses)

	return projection.DeclarativeRule{
		SQL: sql,
		Args: func(ev eventstore.Event) ([]any, error) {
			var payload map[string]any
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				return nil, err
			}
			var orgID any
			isDefault := true
			policyID := "default"
			if ev.AggregateType == org.AggregateType {
				orgID = ev.AggregateID
				isDefault = false
				policyID = ev.AggregateID
			}
			args := []any{ev.InstanceID, policyID, orgID, isDefault}
			for _, col := range pt.columns {
				args = append(args, payload[col])
			}
			return args, nil
		},
	}
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
