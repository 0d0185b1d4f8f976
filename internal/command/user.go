package command

import (
	"context"

	"github.com/serbia-gov/iamcore/internal/authz"
	"github.com/serbia-gov/iamcore/internal/domain/user"
	apperrors "github.com/serbia-gov/iamcore/internal/shared/errors"
	"github.com/serbia-gov/iamcore/internal/jwtauth"
	"github.com/serbia-gov/iamcore/internal/writemodel"
)

func (c *Commands) loadUser(ctx context.Context, instanceID, userID string) (*user.Model, error) {
	model := user.New()
	if err := writemodel.Load(ctx, c.Store, instanceID, user.AggregateType, userID, model); err != nil {
		return nil, apperrors.Wrap(err, "load user")
	}
	return model, nil
}

// AddHumanUserInput is the addHumanUser command (spec §8.2 S2): a
// human user authenticates with a password, hashed here via the
// injected passwordhash.Hasher before the event is constructed —
// plaintext passwords never reach the event store.
type AddHumanUserInput struct {
	InstanceID string
	Owner      string // org_id the user belongs to, or instance_id for instance-level users
	Username   string
	Password   string
}

func (c *Commands) AddHumanUser(ctx context.Context, caller jwtauth.CallerContext, in AddHumanUserInput) (Summary, string, error) {
	if err := validateUsername(in.Username); err != nil {
		return Summary{}, "", err
	}
	if err := validateNonEmpty("VALIDATE-User01", "password", in.Password); err != nil {
		return Summary{}, "", err
	}
	if err := c.authorize(ctx, caller, "user", authz.Permission("user.write"), in.Owner); err != nil {
		return Summary{}, "", err
	}

	hash, err := c.Hasher.Hash(in.Password)
	if err != nil {
		return Summary{}, "", apperrors.Internal("USER-AddHuman01", err)
	}

	userID := c.IDs.NextID().String()
	ev, err := c.push(ctx, in.InstanceID, user.AggregateType, userID, user.EventHumanAdded,
		caller.UserID, in.Owner,
		struct {
			Username     string `json:"username"`
			Owner        string `json:"owner"`
			PasswordHash string `json:"password_hash"`
		}{Username: in.Username, Owner: in.Owner, PasswordHash: hash},
	)
	if err != nil {
		return Summary{}, "", err
	}
	return summaryFrom(ev), userID, nil
}

// AddMachineUserInput is the addMachineUser command (service accounts,
// spec §8.2 S5): no password; authenticated purely via registered
// machine keys (addMachineKey) and JWT-profile assertions.
type AddMachineUserInput struct {
	InstanceID string
	Owner      string
	Username   string
}

func (c *Commands) AddMachineUser(ctx context.Context, caller jwtauth.CallerContext, in AddMachineUserInput) (Summary, string, error) {
	if err := validateUsername(in.Username); err != nil {
		return Summary{}, "", err
	}
	if err := c.authorize(ctx, caller, "user", authz.Permission("user.write"), in.Owner); err != nil {
		return Summary{}, "", err
	}

	userID := c.IDs.NextID().String()
	ev, err := c.push(ctx, in.InstanceID, user.AggregateType, userID, user.EventMachineAdded,
		caller.UserID, in.Owner,
		struct {
			Username string `json:"username"`
			Owner    string `json:"owner"`
		}{Username: in.Username, Owner: in.Owner},
	)
	if err != nil {
		return Summary{}, "", err
	}
	return summaryFrom(ev), userID, nil
}

func (c *Commands) ChangeUsername(ctx context.Context, caller jwtauth.CallerContext, instanceID, userID, username string) (Summary, error) {
	if err := validateUsername(username); err != nil {
		return Summary{}, err
	}
	if err := c.authorize(ctx, caller, "user", authz.Permission("user.write"), userID); err != nil {
		return Summary{}, err
	}

	model, err := c.loadUser(ctx, instanceID, userID)
	if err != nil {
		return Summary{}, err
	}
	if !model.Exists() || model.State == user.StateRemoved {
		return Summary{}, apperrors.NotFound("USER-ChangeUsername01", "user", userID)
	}
	if model.Username == username {
		return Summary{ResourceOwner: model.Owner, Sequence: model.Sequence, EventDate: c.Clock.Now()}, nil
	}

	ev, err := c.push(ctx, instanceID, user.AggregateType, userID, user.EventUsernameChanged, caller.UserID, model.Owner,
		struct {
			Username string `json:"username"`
		}{Username: username},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

// lifecycleTransition implements the four simple user state
// transitions (deactivate/reactivate/lock/unlock): each is a precondition
// check against the current State plus a single event push.
func (c *Commands) lifecycleTransition(ctx context.Context, caller jwtauth.CallerContext, instanceID, userID string, from []user.State, eventType, code string) (Summary, error) {
	if err := c.authorize(ctx, caller, "user", authz.Permission("user.write"), userID); err != nil {
		return Summary{}, err
	}
	model, err := c.loadUser(ctx, instanceID, userID)
	if err != nil {
		return Summary{}, err
	}
	if !model.Exists() {
		return Summary{}, apperrors.NotFound(code+"-NotFound", "user", userID)
	}
	allowed := false
	for _, s := range from {
		if model.State == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return Summary{}, apperrors.PreconditionFailed(code+"-State", "user is not in a state this transition allows")
	}

	ev, err := c.push(ctx, instanceID, user.AggregateType, userID, eventType, caller.UserID, model.Owner, struct{}{})
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

func (c *Commands) DeactivateUser(ctx context.Context, caller jwtauth.CallerContext, instanceID, userID string) (Summary, error) {
	return c.lifecycleTransition(ctx, caller, instanceID, userID, []user.State{user.StateActive, user.StateLocked}, user.EventDeactivated, "USER-Deactivate")
}

func (c *Commands) ReactivateUser(ctx context.Context, caller jwtauth.CallerContext, instanceID, userID string) (Summary, error) {
	return c.lifecycleTransition(ctx, caller, instanceID, userID, []user.State{user.StateInactive}, user.EventReactivated, "USER-Reactivate")
}

func (c *Commands) LockUser(ctx context.Context, caller jwtauth.CallerContext, instanceID, userID string) (Summary, error) {
	return c.lifecycleTransition(ctx, caller, instanceID, userID, []user.State{user.StateActive}, user.EventLocked, "USER-Lock")
}

func (c *Commands) UnlockUser(ctx context.Context, caller jwtauth.CallerContext, instanceID, userID string) (Summary, error) {
	return c.lifecycleTransition(ctx, caller, instanceID, userID, []user.State{user.StateLocked}, user.EventUnlocked, "USER-Unlock")
}

// AddMachineKey registers a public key for a machine user's JWT-profile
// assertions (spec §8.2 S5). keyID is minted here; publicKeyData is
// opaque to the command pipeline (PEM or JWK bytes, as the configured
// jwtauth.KeyResolver expects).
func (c *Commands) AddMachineKey(ctx context.Context, caller jwtauth.CallerContext, instanceID, userID string, publicKeyData []byte) (Summary, string, error) {
	if err := c.authorize(ctx, caller, "user.machinekey", authz.Permission("user.write"), userID); err != nil {
		return Summary{}, "", err
	}
	model, err := c.loadUser(ctx, instanceID, userID)
	if err != nil {
		return Summary{}, "", err
	}
	if !model.Exists() || model.Type != user.TypeMachine {
		return Summary{}, "", apperrors.NotFound("USER-AddMachineKey01", "machine user", userID)
	}

	keyID := c.IDs.NextID().String()
	ev, err := c.push(ctx, instanceID, user.AggregateType, userID, user.EventMachineKeyAdded, caller.UserID, model.Owner,
		struct {
			KeyID        string `json:"key_id"`
			PublicKeyPEM string `json:"public_key_pem"`
		}{KeyID: keyID, PublicKeyPEM: string(publicKeyData)},
	)
	if err != nil {
		return Summary{}, "", err
	}
	return summaryFrom(ev), keyID, nil
}

// RemoveMachineKey revokes a machine key. Removing one already absent
// is an idempotent no-op.
func (c *Commands) RemoveMachineKey(ctx context.Context, caller jwtauth.CallerContext, instanceID, userID, keyID string) (Summary, error) {
	if err := c.authorize(ctx, caller, "user.machinekey", authz.Permission("user.write"), userID); err != nil {
		return Summary{}, err
	}
	model, err := c.loadUser(ctx, instanceID, userID)
	if err != nil {
		return Summary{}, err
	}
	if _, ok := model.MachineKeys[keyID]; !ok {
		return c.idempotentNoop(model.Owner), nil
	}

	ev, err := c.push(ctx, instanceID, user.AggregateType, userID, user.EventMachineKeyRemoved, caller.UserID, model.Owner,
		struct {
			KeyID string `json:"key_id"`
		}{KeyID: keyID},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

// AddPersonalAccessToken mints a PAT for an existing user of any type (spec §8.2 S2's
// token use case). The plaintext token is returned to the caller once
// and never again; only its hash is stored in the event payload.
func (c *Commands) AddPersonalAccessToken(ctx context.Context, caller jwtauth.CallerContext, instanceID, userID string, expiresAtUnix int64) (Summary, string, error) {
	if err := c.authorize(ctx, caller, "user.pat", authz.Permission("pat.write"), userID); err != nil {
		return Summary{}, "", err
	}
	model, err := c.loadUser(ctx, instanceID, userID)
	if err != nil {
		return Summary{}, "", err
	}
	if !model.Exists() || model.State == user.StateRemoved {
		return Summary{}, "", apperrors.NotFound("USER-AddPAT01", "user", userID)
	}

	tokenID := c.IDs.NextID().String()
	plaintext := c.IDs.NextID().String() + c.IDs.NextID().String()
	hash, err := c.Hasher.Hash(plaintext)
	if err != nil {
		return Summary{}, "", apperrors.Internal("USER-AddPAT02", err)
	}

	ev, err := c.push(ctx, instanceID, user.AggregateType, userID, user.EventPATAdded, caller.UserID, model.Owner,
		struct {
			TokenID       string `json:"token_id"`
			TokenHash     string `json:"token_hash"`
			ExpiresAtUnix int64  `json:"expires_at_unix"`
		}{TokenID: tokenID, TokenHash: hash, ExpiresAtUnix: expiresAtUnix},
	)
	if err != nil {
		return Summary{}, "", err
	}
	return summaryFrom(ev), plaintext, nil
}

// RemovePersonalAccessToken revokes a PAT; removing one already absent
// is an idempotent no-op.
func (c *Commands) RemovePersonalAccessToken(ctx context.Context, caller jwtauth.CallerContext, instanceID, userID, tokenID string) (Summary, error) {
	if err := c.authorize(ctx, caller, "user.pat", authz.Permission("pat.write"), userID); err != nil {
		return Summary{}, err
	}
	model, err := c.loadUser(ctx, instanceID, userID)
	if err != nil {
		return Summary{}, err
	}
	if _, ok := model.PATs[tokenID]; !ok {
		return c.idempotentNoop(model.Owner), nil
	}

	ev, err := c.push(ctx, instanceID, user.AggregateType, userID, user.EventPATRemoved, caller.UserID, model.Owner,
		struct {
			TokenID string `json:"token_id"`
		}{TokenID: tokenID},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

// SetUserMetadata sets one arbitrary key/value pair on a user (spec's
// user metadata use case — free-form attributes, e.g. SCIM extensions).
func (c *Commands) SetUserMetadata(ctx context.Context, caller jwtauth.CallerContext, instanceID, userID, key string, value []byte) (Summary, error) {
	if err := validateNonEmpty("VALIDATE-Metadata01", "key", key); err != nil {
		return Summary{}, err
	}
	if err := c.authorize(ctx, caller, "user.metadata", authz.Permission("user.write"), userID); err != nil {
		return Summary{}, err
	}
	model, err := c.loadUser(ctx, instanceID, userID)
	if err != nil {
		return Summary{}, err
	}
	if !model.Exists() {
		return Summary{}, apperrors.NotFound("USER-SetMetadata01", "user", userID)
	}

	ev, err := c.push(ctx, instanceID, user.AggregateType, userID, user.EventMetadataSet, caller.UserID, model.Owner,
		struct {
			Key   string `json:"key"`
			Value []byte `json:"value"`
		}{Key: key, Value: value},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

// BulkSetUserMetadata sets many key/value pairs atomically in one
// batch of events, so a partial write is never visible to a projection.
func (c *Commands) BulkSetUserMetadata(ctx context.Context, caller jwtauth.CallerContext, instanceID, userID string, kv map[string][]byte) (Summary, error) {
	if len(kv) == 0 {
		return Summary{}, apperrors.InvalidArgument("VALIDATE-Metadata02", "at least one key/value pair is required", nil)
	}
	if err := c.authorize(ctx, caller, "user.metadata", authz.Permission("user.write"), userID); err != nil {
		return Summary{}, err
	}
	model, err := c.loadUser(ctx, instanceID, userID)
	if err != nil {
		return Summary{}, err
	}
	if !model.Exists() {
		return Summary{}, apperrors.NotFound("USER-BulkSetMetadata01", "user", userID)
	}

	pending := make([]pendingEvent, 0, len(kv))
	for key, value := range kv {
		pending = append(pending, pendingEvent{
			InstanceID: instanceID, AggregateType: user.AggregateType, AggregateID: userID,
			EventType: user.EventMetadataSet, Creator: caller.UserID, Owner: model.Owner,
			Payload: struct {
				Key   string `json:"key"`
				Value []byte `json:"value"`
			}{Key: key, Value: value},
		})
	}
	evs, err := c.pushBatch(ctx, pending)
	if err != nil {
		return Summary{}, err
	}
	return summaryFromLast(evs), nil
}

// RemoveUserMetadata removes one metadata key; removing one already
// absent is an idempotent no-op.
func (c *Commands) RemoveUserMetadata(ctx context.Context, caller jwtauth.CallerContext, instanceID, userID, key string) (Summary, error) {
	if err := c.authorize(ctx, caller, "user.metadata", authz.Permission("user.write"), userID); err != nil {
		return Summary{}, err
	}
	model, err := c.loadUser(ctx, instanceID, userID)
	if err != nil {
		return Summary{}, err
	}
	if _, ok := model.Metadata[key]; !ok {
		return c.idempotentNoop(model.Owner), nil
	}

	ev, err := c.push(ctx, instanceID, user.AggregateType, userID, user.EventMetadataRemoved, caller.UserID, model.Owner,
		struct {
			Key string `json:"key"`
		}{Key: key},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}
