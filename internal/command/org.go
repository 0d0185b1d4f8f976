package command

import (
	"context"

	"github.com/serbia-gov/iamcore/internal/authz"
	"github.com/serbia-gov/iamcore/internal/domain/org"
	"github.com/serbia-gov/iamcore/internal/domain/user"
	apperrors "github.com/serbia-gov/iamcore/internal/shared/errors"
	"github.com/serbia-gov/iamcore/internal/jwtauth"
	"github.com/serbia-gov/iamcore/internal/writemodel"
)

// defaultOrgDomain is the domain addOrg registers, verifies, and sets
// primary on every new org, before any caller-supplied domain exists
// (spec §8.2 S1).
const defaultOrgDomain = "localhost"

func (c *Commands) loadOrg(ctx context.Context, instanceID, orgID string) (*org.Model, error) {
	model := org.New()
	if err := writemodel.Load(ctx, c.Store, instanceID, org.AggregateType, orgID, model); err != nil {
		return nil, apperrors.Wrap(err, "load org")
	}
	return model, nil
}

// AddOrgInput is the addOrg command (spec §8.2 S1). OrgID is optional:
// when empty, a new ID is minted (spec §4.3 step 2 "generate IDs …if
// the caller omitted them"); when supplied, a second addOrg with the
// same OrgID fails with AlreadyExists rather than minting a sibling
// aggregate (spec §8.2 S2).
type AddOrgInput struct {
	InstanceID string
	OrgID      string
	Name       string
}

// AddOrg creates a new organization aggregate and registers its default
// domain in the same batch (spec §8.2 S1): org.added, then
// org.domain.added/verified/primary.set for defaultOrgDomain, in that
// order, giving sequence >= 4.
func (c *Commands) AddOrg(ctx context.Context, caller jwtauth.CallerContext, in AddOrgInput) (Summary, error) {
	if err := validateNonEmpty("VALIDATE-Org01", "name", in.Name); err != nil {
		return Summary{}, err
	}
	if err := c.authorize(ctx, caller, "org", authz.Permission("org.write"), in.InstanceID); err != nil {
		return Summary{}, err
	}

	orgID := in.OrgID
	if orgID == "" {
		orgID = c.IDs.NextID().String()
	}
	model, err := c.loadOrg(ctx, in.InstanceID, orgID)
	if err != nil {
		return Summary{}, err
	}
	if model.Exists() {
		return Summary{}, apperrors.AlreadyExists("ORG-Add01", "org", orgID)
	}

	evs, err := c.pushBatch(ctx, []pendingEvent{
		{
			InstanceID: in.InstanceID, AggregateType: org.AggregateType, AggregateID: orgID,
			EventType: org.EventAdded, Creator: caller.UserID, Owner: orgID,
			Payload: struct {
				Name string `json:"name"`
			}{Name: in.Name},
		},
		{
			InstanceID: in.InstanceID, AggregateType: org.AggregateType, AggregateID: orgID,
			EventType: org.EventDomainAdded, Creator: caller.UserID, Owner: orgID,
			Payload: struct {
				Domain string `json:"domain"`
			}{Domain: defaultOrgDomain},
		},
		{
			InstanceID: in.InstanceID, AggregateType: org.AggregateType, AggregateID: orgID,
			EventType: org.EventDomainVerified, Creator: caller.UserID, Owner: orgID,
			Payload: struct {
				Domain string `json:"domain"`
			}{Domain: defaultOrgDomain},
		},
		{
			InstanceID: in.InstanceID, AggregateType: org.AggregateType, AggregateID: orgID,
			EventType: org.EventDomainPrimarySet, Creator: caller.UserID, Owner: orgID,
			Payload: struct {
				Domain string `json:"domain"`
			}{Domain: defaultOrgDomain},
		},
	})
	if err != nil {
		return Summary{}, err
	}
	return summaryFromLast(evs), nil
}

// SetupOrgAdmin is one administrator account created and granted
// ORG_OWNER as part of SetupOrg's batch.
type SetupOrgAdmin struct {
	Username string
	Password string
}

// SetupOrgInput combines addOrg with an optional custom domain and N
// administrators in one atomic batch (spec §8.1 invariant 10 "setup
// orthogonality": 1 + (3 if CustomDomain != "" else 0) + 2*len(Admins)
// events, in a fixed order). Unlike AddOrg, SetupOrg does not register
// defaultOrgDomain — a caller-supplied CustomDomain is the only domain
// block it ever emits, keeping the two commands' event counts
// orthogonal per the invariant's name.
type SetupOrgInput struct {
	InstanceID   string
	OrgID        string
	Name         string
	CustomDomain string
	Admins       []SetupOrgAdmin
}

func (c *Commands) SetupOrg(ctx context.Context, caller jwtauth.CallerContext, in SetupOrgInput) (Summary, error) {
	if err := validateNonEmpty("VALIDATE-Org02", "name", in.Name); err != nil {
		return Summary{}, err
	}
	if len(in.Admins) == 0 {
		return Summary{}, apperrors.InvalidArgument("VALIDATE-Org03", "at least one admin is required", nil)
	}
	if in.CustomDomain != "" {
		if err := validateDomain(in.CustomDomain); err != nil {
			return Summary{}, err
		}
	}
	for _, admin := range in.Admins {
		if err := validateUsername(admin.Username); err != nil {
			return Summary{}, err
		}
		if err := validateNonEmpty("VALIDATE-Org04", "password", admin.Password); err != nil {
			return Summary{}, err
		}
	}
	if err := c.authorize(ctx, caller, "org", authz.Permission("org.write"), in.InstanceID); err != nil {
		return Summary{}, err
	}

	orgID := in.OrgID
	if orgID == "" {
		orgID = c.IDs.NextID().String()
	}
	model, err := c.loadOrg(ctx, in.InstanceID, orgID)
	if err != nil {
		return Summary{}, err
	}
	if model.Exists() {
		return Summary{}, apperrors.AlreadyExists("ORG-Setup01", "org", orgID)
	}

	cmds := []pendingEvent{
		{
			InstanceID: in.InstanceID, AggregateType: org.AggregateType, AggregateID: orgID,
			EventType: org.EventAdded, Creator: caller.UserID, Owner: orgID,
			Payload: struct {
				Name string `json:"name"`
			}{Name: in.Name},
		},
	}
	if in.CustomDomain != "" {
		cmds = append(cmds,
			pendingEvent{
				InstanceID: in.InstanceID, AggregateType: org.AggregateType, AggregateID: orgID,
				EventType: org.EventDomainAdded, Creator: caller.UserID, Owner: orgID,
				Payload: struct {
					Domain string `json:"domain"`
				}{Domain: in.CustomDomain},
			},
			pendingEvent{
				InstanceID: in.InstanceID, AggregateType: org.AggregateType, AggregateID: orgID,
				EventType: org.EventDomainVerified, Creator: caller.UserID, Owner: orgID,
				Payload: struct {
					Domain string `json:"domain"`
				}{Domain: in.CustomDomain},
			},
			pendingEvent{
				InstanceID: in.InstanceID, AggregateType: org.AggregateType, AggregateID: orgID,
				EventType: org.EventDomainPrimarySet, Creator: caller.UserID, Owner: orgID,
				Payload: struct {
					Domain string `json:"domain"`
				}{Domain: in.CustomDomain},
			},
		)
	}

	for _, admin := range in.Admins {
		hash, err := c.Hasher.Hash(admin.Password)
		if err != nil {
			return Summary{}, apperrors.Internal("ORG-Setup02", err)
		}
		adminUserID := c.IDs.NextID().String()
		cmds = append(cmds,
			pendingEvent{
				InstanceID: in.InstanceID, AggregateType: user.AggregateType, AggregateID: adminUserID,
				EventType: user.EventHumanAdded, Creator: caller.UserID, Owner: orgID,
				Payload: struct {
					Username     string `json:"username"`
					Owner        string `json:"owner"`
					PasswordHash string `json:"password_hash"`
				}{Username: admin.Username, Owner: orgID, PasswordHash: hash},
			},
			pendingEvent{
				InstanceID: in.InstanceID, AggregateType: org.AggregateType, AggregateID: orgID,
				EventType: org.EventMemberAdded, Creator: caller.UserID, Owner: orgID,
				Payload: struct {
					UserID string   `json:"user_id"`
					Roles  []string `json:"roles"`
				}{UserID: adminUserID, Roles: []string{string(authz.RoleOrgOwner)}},
			},
		)
	}

	evs, err := c.pushBatch(ctx, cmds)
	if err != nil {
		return Summary{}, err
	}
	return summaryFromLast(evs), nil
}

// RemoveOrg tombstones an organization by emitting org.removed (spec §8.2 S1).
// Removing a nonexistent or already-removed org is always NotFound —
// org identity has no idempotent-removal carve-out (see idempotence.go).
func (c *Commands) RemoveOrg(ctx context.Context, caller jwtauth.CallerContext, instanceID, orgID string) (Summary, error) {
	if err := c.authorize(ctx, caller, "org", authz.Permission("org.write"), orgID); err != nil {
		return Summary{}, err
	}
	model, err := c.loadOrg(ctx, instanceID, orgID)
	if err != nil {
		return Summary{}, err
	}
	if !model.Exists() || model.State == org.StateRemoved {
		return Summary{}, apperrors.NotFound("ORG-Remove01", "org", orgID)
	}

	ev, err := c.push(ctx, instanceID, org.AggregateType, orgID, org.EventRemoved, caller.UserID, orgID, struct{}{})
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

// AddOrgMemberInput grants roles to a user within an org (spec §8.2 S3).
type AddOrgMemberInput struct {
	InstanceID string
	OrgID      string
	UserID     string
	Roles      []string
}

func (c *Commands) AddOrgMember(ctx context.Context, caller jwtauth.CallerContext, in AddOrgMemberInput) (Summary, error) {
	if err := validateRoles(in.Roles); err != nil {
		return Summary{}, err
	}
	if err := c.authorize(ctx, caller, "org.member", authz.Permission("org.member.write"), in.OrgID); err != nil {
		return Summary{}, err
	}

	model, err := c.loadOrg(ctx, in.InstanceID, in.OrgID)
	if err != nil {
		return Summary{}, err
	}
	if !model.Exists() || model.State == org.StateRemoved {
		return Summary{}, apperrors.NotFound("ORG-AddMember01", "org", in.OrgID)
	}
	if existing, ok := model.Members[in.UserID]; ok {
		if existing.SameRoles(in.Roles) {
			return Summary{ResourceOwner: in.OrgID, Sequence: model.Sequence, EventDate: c.Clock.Now()}, nil
		}
		return Summary{}, apperrors.AlreadyExists("ORG-AddMember02", "org member", in.UserID)
	}

	ev, err := c.push(ctx, in.InstanceID, org.AggregateType, in.OrgID, org.EventMemberAdded, caller.UserID, in.OrgID,
		struct {
			UserID string   `json:"user_id"`
			Roles  []string `json:"roles"`
		}{UserID: in.UserID, Roles: in.Roles},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

// ChangeOrgMember replaces a member's role set (spec §8.2 S3). A
// same-roles call is a documented idempotent no-op.
func (c *Commands) ChangeOrgMember(ctx context.Context, caller jwtauth.CallerContext, instanceID, orgID, userID string, roles []string) (Summary, error) {
	if err := validateRoles(roles); err != nil {
		return Summary{}, err
	}
	if err := c.authorize(ctx, caller, "org.member", authz.Permission("org.member.write"), orgID); err != nil {
		return Summary{}, err
	}

	model, err := c.loadOrg(ctx, instanceID, orgID)
	if err != nil {
		return Summary{}, err
	}
	member, ok := model.Members[userID]
	if !model.Exists() || !ok {
		return Summary{}, apperrors.NotFound("ORG-ChangeMember01", "org member", userID)
	}
	if member.SameRoles(roles) {
		return Summary{ResourceOwner: orgID, Sequence: model.Sequence, EventDate: c.Clock.Now()}, nil
	}

	ev, err := c.push(ctx, instanceID, org.AggregateType, orgID, org.EventMemberChanged, caller.UserID, orgID,
		struct {
			UserID string   `json:"user_id"`
			Roles  []string `json:"roles"`
		}{UserID: userID, Roles: roles},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

// RemoveOrgMember revokes a user's org membership. Removing an absent
// membership is an idempotent no-op (idempotence.go).
func (c *Commands) RemoveOrgMember(ctx context.Context, caller jwtauth.CallerContext, instanceID, orgID, userID string) (Summary, error) {
	if err := c.authorize(ctx, caller, "org.member", authz.Permission("org.member.write"), orgID); err != nil {
		return Summary{}, err
	}

	model, err := c.loadOrg(ctx, instanceID, orgID)
	if err != nil {
		return Summary{}, err
	}
	if _, ok := model.Members[userID]; !ok {
		return c.idempotentNoop(orgID), nil
	}

	ev, err := c.push(ctx, instanceID, org.AggregateType, orgID, org.EventMemberRemoved, caller.UserID, orgID,
		struct {
			UserID string `json:"user_id"`
		}{UserID: userID},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

// AddDomain registers a (not yet verified) domain on an org (spec §8.2 S4).
func (c *Commands) AddDomain(ctx context.Context, caller jwtauth.CallerContext, instanceID, orgID, domain string) (Summary, error) {
	if err := validateDomain(domain); err != nil {
		return Summary{}, err
	}
	if err := c.authorize(ctx, caller, "org.domain", authz.Permission("org.write"), orgID); err != nil {
		return Summary{}, err
	}

	model, err := c.loadOrg(ctx, instanceID, orgID)
	if err != nil {
		return Summary{}, err
	}
	if !model.Exists() || model.State == org.StateRemoved {
		return Summary{}, apperrors.NotFound("ORG-AddDomain01", "org", orgID)
	}
	if _, ok := model.Domains[domain]; ok {
		return Summary{}, apperrors.AlreadyExists("ORG-AddDomain02", "org domain", domain)
	}

	ev, err := c.push(ctx, instanceID, org.AggregateType, orgID, org.EventDomainAdded, caller.UserID, orgID,
		struct {
			Domain string `json:"domain"`
		}{Domain: domain},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

// VerifyDomain marks a registered domain verified (spec §8.2 S4),
// normally triggered by an out-of-band DNS/HTTP proof the caller
// already validated before invoking this command.
func (c *Commands) VerifyDomain(ctx context.Context, caller jwtauth.CallerContext, instanceID, orgID, domain string) (Summary, error) {
	if err := c.authorize(ctx, caller, "org.domain", authz.Permission("org.write"), orgID); err != nil {
		return Summary{}, err
	}

	model, err := c.loadOrg(ctx, instanceID, orgID)
	if err != nil {
		return Summary{}, err
	}
	d, ok := model.Domains[domain]
	if !ok {
		return Summary{}, apperrors.NotFound("ORG-VerifyDomain01", "org domain", domain)
	}
	if d.IsVerified {
		return Summary{ResourceOwner: orgID, Sequence: model.Sequence, EventDate: c.Clock.Now()}, nil
	}

	ev, err := c.push(ctx, instanceID, org.AggregateType, orgID, org.EventDomainVerified, caller.UserID, orgID,
		struct {
			Domain string `json:"domain"`
		}{Domain: domain},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

// SetPrimaryDomain promotes an already-verified domain to primary
// (spec §8.2 S4's precondition: the domain must be verified first).
func (c *Commands) SetPrimaryDomain(ctx context.Context, caller jwtauth.CallerContext, instanceID, orgID, domain string) (Summary, error) {
	if err := c.authorize(ctx, caller, "org.domain", authz.Permission("org.write"), orgID); err != nil {
		return Summary{}, err
	}

	model, err := c.loadOrg(ctx, instanceID, orgID)
	if err != nil {
		return Summary{}, err
	}
	if !model.HasVerifiedDomain(domain) {
		return Summary{}, apperrors.PreconditionFailed("ORG-SetPrimaryDomain01", "domain must be verified before it can be made primary")
	}

	ev, err := c.push(ctx, instanceID, org.AggregateType, orgID, org.EventDomainPrimarySet, caller.UserID, orgID,
		struct {
			Domain string `json:"domain"`
		}{Domain: domain},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

// RemoveDomain deregisters a domain; removing one already absent is an
// idempotent no-op.
func (c *Commands) RemoveDomain(ctx context.Context, caller jwtauth.CallerContext, instanceID, orgID, domain string) (Summary, error) {
	if err := c.authorize(ctx, caller, "org.domain", authz.Permission("org.write"), orgID); err != nil {
		return Summary{}, err
	}

	model, err := c.loadOrg(ctx, instanceID, orgID)
	if err != nil {
		return Summary{}, err
	}
	if _, ok := model.Domains[domain]; !ok {
		return c.idempotentNoop(orgID), nil
	}

	ev, err := c.push(ctx, instanceID, org.AggregateType, orgID, org.EventDomainRemoved, caller.UserID, orgID,
		struct {
			Domain string `json:"domain"`
		}{Domain: domain},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}
