// Package org implements the Organization aggregate's write model (spec
// §4.2 example) and its event payloads. The state-machine-with-guard-
// methods technique is harvested from the teacher's
// internal/case/domain/case.go aggregate (deleted once the pattern was
// captured — see DESIGN.md) and generalized to the capability-set shape
// of internal/writemodel.
package org

import (
	"encoding/json"

	"github.com/serbia-gov/iamcore/internal/eventstore"
	"github.com/serbia-gov/iamcore/internal/writemodel"
)

// State enumerates the organization's lifecycle (spec §4.2).
type State string

const (
	StateUnspecified State = "unspecified"
	StateActive      State = "active"
	StateInactive    State = "inactive"
	StateRemoved     State = "removed"
)

const AggregateType = "org"

// Event type constants (spec §8.2 scenarios S1/S3/S4).
const (
	EventAdded           = "org.added"
	EventDeactivated     = "org.deactivated"
	EventReactivated     = "org.reactivated"
	EventRemoved         = "org.removed"
	EventDomainAdded     = "org.domain.added"
	EventDomainVerified  = "org.domain.verified"
	EventDomainPrimarySet = "org.domain.primary.set"
	EventDomainRemoved   = "org.domain.removed"
	EventMemberAdded     = "org.member.added"
	EventMemberChanged   = "org.member.changed"
	EventMemberRemoved   = "org.member.removed"
)

// Domain tracks one organization domain's verification/primary flags.
type Domain struct {
	Domain     string
	IsVerified bool
	IsPrimary  bool
}

// Member tracks one organization membership's roles.
type Member struct {
	UserID string
	Roles  []string
}

// Model is the Organization write model.
type Model struct {
	writemodel.Base

	Name    string
	State   State
	Domains map[string]*Domain
	Members map[string]*Member
}

// New returns an empty Model ready for writemodel.Load.
func New() *Model {
	return &Model{
		Domains: make(map[string]*Domain),
		Members: make(map[string]*Member),
	}
}

func (m *Model) AggregateType() string { return AggregateType }

// payload shapes, one per event type (spec §9 "Dynamic event payload",
// option (b): tagged records decoded per event_type).
type addedPayload struct {
	Name string `json:"name"`
}

type domainPayload struct {
	Domain string `json:"domain"`
}

type memberAddedPayload struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

type memberChangedPayload struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

type memberRemovedPayload struct {
	UserID string `json:"user_id"`
}

// Reduce is total over known event types; unknown types are ignored for
// forward compatibility (spec §4.2).
func (m *Model) Reduce(event eventstore.Event) error {
	defer m.Base.Observe(event)

	switch event.EventType {
	case EventAdded:
		var p addedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.Name = p.Name
		m.State = StateActive

	case EventDeactivated:
		m.State = StateInactive

	case EventReactivated:
		m.State = StateActive

	case EventRemoved:
		m.State = StateRemoved

	case EventDomainAdded:
		var p domainPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.Domains[p.Domain] = &Domain{Domain: p.Domain}

	case EventDomainVerified:
		var p domainPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		if d, ok := m.Domains[p.Domain]; ok {
			d.IsVerified = true
		}

	case EventDomainPrimarySet:
		var p domainPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		for _, d := range m.Domains {
			d.IsPrimary = false
		}
		if d, ok := m.Domains[p.Domain]; ok {
			d.IsPrimary = true
		}

	case EventDomainRemoved:
		var p domainPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		delete(m.Domains, p.Domain)

	case EventMemberAdded:
		var p memberAddedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.Members[p.UserID] = &Member{UserID: p.UserID, Roles: p.Roles}

	case EventMemberChanged:
		var p memberChangedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		if mem, ok := m.Members[p.UserID]; ok {
			mem.Roles = p.Roles
		}

	case EventMemberRemoved:
		var p memberRemovedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		delete(m.Members, p.UserID)
	}

	return nil
}

// HasVerifiedDomain reports whether domain exists and is verified —
// used by setPrimaryDomain's precondition check (spec §8.2 S4).
func (m *Model) HasVerifiedDomain(domain string) bool {
	d, ok := m.Domains[domain]
	return ok && d.IsVerified
}

// SameRoles reports whether a member's current roles equal roles,
// ignoring order — used by changeOrgMember's idempotence check (spec
// §4.3 step 4, §8.2 S3).
func (m *Member) SameRoles(roles []string) bool {
	if len(m.Roles) != len(roles) {
		return false
	}
	have := make(map[string]bool, len(m.Roles))
	for _, r := range m.Roles {
		have[r] = true
	}
	for _, r := range roles {
		if !have[r] {
			return false
		}
	}
	return true
}
