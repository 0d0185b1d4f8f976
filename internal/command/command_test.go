package command

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/serbia-gov/iamcore/internal/authz"
	"github.com/serbia-gov/iamcore/internal/clock"
	apperrors "github.com/serbia-gov/iamcore/internal/shared/errors"
	"github.com/serbia-gov/iamcore/internal/idgen"
	"github.com/serbia-gov/iamcore/internal/jwtauth"
	"github.com/serbia-gov/iamcore/internal/passwordhash"
)

func newTestCommands() *Commands {
	return New(newMemStore(), idgen.New(), clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}, authz.AllowAll{}, passwordhash.New(), nil, zerolog.Nop())
}

func testCaller(userID string) jwtauth.CallerContext {
	return jwtauth.CallerContext{InstanceID: "inst1", UserID: userID, Roles: []string{"IAM_OWNER"}}
}

func TestAddOrg(t *testing.T) {
	c := newTestCommands()
	ctx := context.Background()

	sum, err := c.AddOrg(ctx, testCaller("admin"), AddOrgInput{InstanceID: "inst1", Name: "Acme"})
	if err != nil {
		t.Fatalf("AddOrg: %v", err)
	}
	// org.added + org.domain.added/verified/primary.set for the
	// default domain (spec §8.2 S1): sequence >= 4.
	if sum.Sequence < 4 {
		t.Errorf("expected sequence >= 4, got %d", sum.Sequence)
	}

	model, err := c.loadOrg(ctx, "inst1", sum.AggregateID)
	if err != nil {
		t.Fatalf("loadOrg: %v", err)
	}
	d, ok := model.Domains[defaultOrgDomain]
	if !ok {
		t.Fatalf("expected default domain %q to be registered", defaultOrgDomain)
	}
	if !d.IsVerified || !d.IsPrimary {
		t.Errorf("expected default domain verified and primary, got %+v", d)
	}

	if _, err := c.AddOrg(ctx, testCaller("admin"), AddOrgInput{InstanceID: "inst1", Name: ""}); !apperrors.Is(err, apperrors.KindInvalidArgument) {
		t.Errorf("expected InvalidArgument for empty name, got %v", err)
	}
}

func TestAddOrgWithSameOrgIDFailsAlreadyExists(t *testing.T) {
	c := newTestCommands()
	ctx := context.Background()
	caller := testCaller("admin")

	if _, err := c.AddOrg(ctx, caller, AddOrgInput{InstanceID: "inst1", OrgID: "org-x", Name: "Acme"}); err != nil {
		t.Fatalf("AddOrg: %v", err)
	}
	if _, err := c.AddOrg(ctx, caller, AddOrgInput{InstanceID: "inst1", OrgID: "org-x", Name: "Acme"}); !apperrors.Is(err, apperrors.KindAlreadyExists) {
		t.Errorf("expected AlreadyExists re-adding the same org ID, got %v", err)
	}
}

func TestSetupOrgGrantsOwner(t *testing.T) {
	c := newTestCommands()
	ctx := context.Background()

	sum, err := c.SetupOrg(ctx, testCaller("admin"), SetupOrgInput{
		InstanceID: "inst1", Name: "Acme",
		Admins: []SetupOrgAdmin{{Username: "owner1", Password: "hunter2-very-strong"}},
	})
	if err != nil {
		t.Fatalf("SetupOrg: %v", err)
	}
	// org.added + (user.human.added + org.member.added) for one admin,
	// no custom domain: sequence 2 on the org aggregate (spec §8.1
	// invariant 10: 1 + 0 + 2*1 = 3 events total, 2 of them on org).
	if sum.Sequence != 2 {
		t.Errorf("expected sequence 2 on the org aggregate, got %d", sum.Sequence)
	}

	model, err := c.loadOrg(ctx, "inst1", sum.AggregateID)
	if err != nil {
		t.Fatalf("loadOrg: %v", err)
	}
	if len(model.Members) != 1 {
		t.Fatalf("expected exactly one org member, got %d", len(model.Members))
	}
	for _, member := range model.Members {
		if !member.SameRoles([]string{string(authz.RoleOrgOwner)}) {
			t.Errorf("expected ORG_OWNER role, got %v", member.Roles)
		}
	}
}

func TestSetupOrgWithCustomDomainAndMultipleAdmins(t *testing.T) {
	c := newTestCommands()
	ctx := context.Background()

	sum, err := c.SetupOrg(ctx, testCaller("admin"), SetupOrgInput{
		InstanceID:   "inst1",
		Name:         "Acme",
		CustomDomain: "acme.example",
		Admins: []SetupOrgAdmin{
			{Username: "owner1", Password: "hunter2-very-strong"},
			{Username: "owner2", Password: "hunter2-very-strong"},
		},
	})
	if err != nil {
		t.Fatalf("SetupOrg: %v", err)
	}

	model, err := c.loadOrg(ctx, "inst1", sum.AggregateID)
	if err != nil {
		t.Fatalf("loadOrg: %v", err)
	}
	// 1 (added) + 3 (custom domain) + 2*2 (two admins) = 8 events total;
	// the org aggregate itself only receives 1 + 3 + 2 = 6 of them (the
	// per-admin user.human.added events land on their own aggregates).
	if sum.Sequence != 6 {
		t.Errorf("expected sequence 6 on the org aggregate, got %d", sum.Sequence)
	}
	d, ok := model.Domains["acme.example"]
	if !ok || !d.IsVerified || !d.IsPrimary {
		t.Errorf("expected acme.example registered, verified and primary, got %+v", model.Domains)
	}
	if len(model.Members) != 2 {
		t.Errorf("expected two org members, got %d", len(model.Members))
	}
}

func TestRemoveOrgMemberIsIdempotent(t *testing.T) {
	c := newTestCommands()
	ctx := context.Background()
	caller := testCaller("admin")

	setup, err := c.AddOrg(ctx, caller, AddOrgInput{InstanceID: "inst1", Name: "Acme"})
	if err != nil {
		t.Fatalf("AddOrg: %v", err)
	}
	orgID := setup.AggregateID
	if _, err := c.AddOrgMember(ctx, caller, AddOrgMemberInput{InstanceID: "inst1", OrgID: orgID, UserID: "user1", Roles: []string{string(authz.RoleOrgOwner)}}); err != nil {
		t.Fatalf("AddOrgMember: %v", err)
	}

	if _, err := c.RemoveOrgMember(ctx, caller, "inst1", orgID, "user1"); err != nil {
		t.Fatalf("RemoveOrgMember: %v", err)
	}
	// Second removal of the same (now-absent) member must succeed as a
	// no-op, not error — this is the documented idempotent-removal case.
	sum, err := c.RemoveOrgMember(ctx, caller, "inst1", orgID, "user1")
	if err != nil {
		t.Fatalf("expected idempotent no-op, got error: %v", err)
	}
	if sum.Sequence != 0 {
		t.Errorf("expected a no-op summary with zero sequence, got %d", sum.Sequence)
	}
}

func TestRemoveOrgIsNotFoundWhenAlreadyGone(t *testing.T) {
	c := newTestCommands()
	ctx := context.Background()
	caller := testCaller("admin")

	sum, err := c.AddOrg(ctx, caller, AddOrgInput{InstanceID: "inst1", Name: "Acme"})
	if err != nil {
		t.Fatalf("AddOrg: %v", err)
	}
	if _, err := c.RemoveOrg(ctx, caller, "inst1", sum.AggregateID); err != nil {
		t.Fatalf("RemoveOrg: %v", err)
	}
	if _, err := c.RemoveOrg(ctx, caller, "inst1", sum.AggregateID); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Errorf("expected NotFound removing an already-removed org, got %v", err)
	}
}

func TestSetPrimaryDomainRequiresVerification(t *testing.T) {
	c := newTestCommands()
	ctx := context.Background()
	caller := testCaller("admin")

	sum, err := c.AddOrg(ctx, caller, AddOrgInput{InstanceID: "inst1", Name: "Acme"})
	if err != nil {
		t.Fatalf("AddOrg: %v", err)
	}
	orgID := sum.AggregateID

	if _, err := c.AddDomain(ctx, caller, "inst1", orgID, "acme.example"); err != nil {
		t.Fatalf("AddDomain: %v", err)
	}
	if _, err := c.SetPrimaryDomain(ctx, caller, "inst1", orgID, "acme.example"); !apperrors.Is(err, apperrors.KindPreconditionFailed) {
		t.Errorf("expected PreconditionFailed before verification, got %v", err)
	}
	if _, err := c.VerifyDomain(ctx, caller, "inst1", orgID, "acme.example"); err != nil {
		t.Fatalf("VerifyDomain: %v", err)
	}
	if _, err := c.SetPrimaryDomain(ctx, caller, "inst1", orgID, "acme.example"); err != nil {
		t.Errorf("expected success after verification, got %v", err)
	}
}

func TestAddDomainRejectsInvalidName(t *testing.T) {
	c := newTestCommands()
	ctx := context.Background()
	caller := testCaller("admin")

	sum, err := c.AddOrg(ctx, caller, AddOrgInput{InstanceID: "inst1", Name: "Acme"})
	if err != nil {
		t.Fatalf("AddOrg: %v", err)
	}
	if _, err := c.AddDomain(ctx, caller, "inst1", sum.AggregateID, "not a domain"); !apperrors.Is(err, apperrors.KindInvalidArgument) {
		t.Errorf("expected InvalidArgument for malformed domain, got %v", err)
	}
}

func TestUserLifecycleTransitions(t *testing.T) {
	c := newTestCommands()
	ctx := context.Background()
	caller := testCaller("admin")

	_, userID, err := c.AddHumanUser(ctx, caller, AddHumanUserInput{InstanceID: "inst1", Owner: "inst1", Username: "alice", Password: "hunter2-very-strong"})
	if err != nil {
		t.Fatalf("AddHumanUser: %v", err)
	}

	if _, err := c.LockUser(ctx, caller, "inst1", userID); err != nil {
		t.Fatalf("LockUser: %v", err)
	}
	// Locking an already-locked user violates the state precondition.
	if _, err := c.LockUser(ctx, caller, "inst1", userID); !apperrors.Is(err, apperrors.KindPreconditionFailed) {
		t.Errorf("expected PreconditionFailed re-locking a locked user, got %v", err)
	}
	if _, err := c.UnlockUser(ctx, caller, "inst1", userID); err != nil {
		t.Fatalf("UnlockUser: %v", err)
	}
	if _, err := c.DeactivateUser(ctx, caller, "inst1", userID); err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}
	if _, err := c.ReactivateUser(ctx, caller, "inst1", userID); err != nil {
		t.Fatalf("ReactivateUser: %v", err)
	}
}

func TestPolicyRequiresExistingScope(t *testing.T) {
	c := newTestCommands()
	ctx := context.Background()
	caller := testCaller("admin")

	scope := PolicyScope{InstanceID: "does-not-exist"}
	if _, err := c.AddLockoutPolicy(ctx, caller, scope, LockoutPolicyFields{MaxPasswordAttempts: 10, MaxOTPAttempts: 5, ShowFailures: true}); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Errorf("expected NotFound for a policy targeting a nonexistent instance, got %v", err)
	}

	if _, err := c.AddInstance(ctx, AddInstanceInput{InstanceID: "inst1", DefaultLanguage: "en"}); err != nil {
		t.Fatalf("AddInstance: %v", err)
	}
	sum, err := c.AddLockoutPolicy(ctx, caller, PolicyScope{InstanceID: "inst1"}, LockoutPolicyFields{MaxPasswordAttempts: 10, MaxOTPAttempts: 5, ShowFailures: true})
	if err != nil {
		t.Errorf("expected success against an existing instance, got %v", err)
	}
	if sum.ResourceOwner != "inst1" {
		t.Errorf("expected resource owner inst1, got %s", sum.ResourceOwner)
	}
}
