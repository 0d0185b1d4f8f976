package handlers

import (
	"context"
	"encoding/json"

	"github.com/serbia-gov/iamcore/internal/domain/org"
	"github.com/serbia-gov/iamcore/internal/eventstore"
	"github.com/serbia-gov/iamcore/internal/projection"
)

// OrgHandler maintains the organizations/org_domains/org_members
// tables. It is imperative rather than declarative (spec §9) because
// setPrimaryDomain's "clear every other domain's is_primary flag first"
// step can't be expressed as a single upsert template the way the
// policy families can (internal/projection/handlers/policy.go).
type OrgHandler struct{}

func NewOrgHandler() *OrgHandler { return &OrgHandler{} }

func (h *OrgHandler) Name() string { return "org" }

func (h *OrgHandler) Interested(eventType string) bool {
	switch eventType {
	case org.EventAdded, org.EventDeactivated, org.EventReactivated, org.EventRemoved,
		org.EventDomainAdded, org.EventDomainVerified, org.EventDomainPrimarySet, org.EventDomainRemoved,
		org.EventMemberAdded, org.EventMemberChanged, org.EventMemberRemoved:
		return true
	}
	return false
}

func (h *OrgHandler) Reset(ctx context.Context, db projection.Executor) error {
	for _, table := range []string{"org_members", "org_domains", "organizations"} {
		if _, err := db.Exec(ctx, "TRUNCATE TABLE "+table); err != nil {
			return err
		}
	}
	return nil
}

func (h *OrgHandler) Handle(ctx context.Context, db projection.Executor, ev eventstore.Event) error {
	switch ev.EventType {
	case org.EventAdded:
		var p struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `
			INSERT INTO organizations (instance_id, org_id, name, state, sequence)
			VALUES ($1, $2, $3, 'active', $4)
			ON CONFLICT (instance_id, org_id) DO UPDATE
			SET name = EXCLUDED.name, state = 'active', sequence = EXCLUDED.sequence, changed_at = NOW()`,
			ev.InstanceID, ev.AggregateID, p.Name, ev.AggregateVersion)
		return err

	case org.EventDeactivated:
		return h.setState(ctx, db, ev, "inactive")
	case org.EventReactivated:
		return h.setState(ctx, db, ev, "active")
	case org.EventRemoved:
		return h.setState(ctx, db, ev, "removed")

	case org.EventDomainAdded:
		var p struct {
			Domain string `json:"domain"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `
			INSERT INTO org_domains (instance_id, org_id, domain, sequence)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (instance_id, org_id, domain) DO NOTHING`,
			ev.InstanceID, ev.AggregateID, p.Domain, ev.AggregateVersion)
		return err

	case org.EventDomainVerified:
		var p struct {
			Domain string `json:"domain"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `
			UPDATE org_domains SET is_verified = TRUE, sequence = $4
			WHERE instance_id = $1 AND org_id = $2 AND domain = $3`,
			ev.InstanceID, ev.AggregateID, p.Domain, ev.AggregateVersion)
		return err

	case org.EventDomainPrimarySet:
		var p struct {
			Domain string `json:"domain"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		if _, err := db.Exec(ctx, `
			UPDATE org_domains SET is_primary = FALSE
			WHERE instance_id = $1 AND org_id = $2`, ev.InstanceID, ev.AggregateID); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `
			UPDATE org_domains SET is_primary = TRUE, sequence = $4
			WHERE instance_id = $1 AND org_id = $2 AND domain = $3`,
			ev.InstanceID, ev.AggregateID, p.Domain, ev.AggregateVersion)
		return err

	case org.EventDomainRemoved:
		var p struct {
			Domain string `json:"domain"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `
			DELETE FROM org_domains WHERE instance_id = $1 AND org_id = $2 AND domain = $3`,
			ev.InstanceID, ev.AggregateID, p.Domain)
		return err

	case org.EventMemberAdded, org.EventMemberChanged:
		var p struct {
			UserID string   `json:"user_id"`
			Roles  []string `json:"roles"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `
			INSERT INTO org_members (instance_id, org_id, user_id, roles, sequence)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (instance_id, org_id, user_id) DO UPDATE
			SET roles = EXCLUDED.roles, sequence = EXCLUDED.sequence`,
			ev.InstanceID, ev.AggregateID, p.UserID, p.Roles, ev.AggregateVersion)
		return err

	case org.EventMemberRemoved:
		var p struct {
			UserID string `json:"user_id"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `
			DELETE FROM org_members WHERE instance_id = $1 AND org_id = $2 AND user_id = $3`,
			ev.InstanceID, ev.AggregateID, p.UserID)
		return err
	}
	return nil
}

func (h *OrgHandler) setState(ctx context.Context, db projection.Executor, ev eventstore.Event, state string) error {
	_, err := db.Exec(ctx, `
		UPDATE organizations SET state = $3, sequence = $4, changed_at = NOW()
		WHERE instance_id = $1 AND org_id = $2`,
		ev.InstanceID, ev.AggregateID, state, ev.AggregateVersion)
	return err
}
