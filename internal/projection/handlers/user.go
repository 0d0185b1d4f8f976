package handlers

import (
	"context"
	"encoding/json"

	"github.com/serbia-gov/iamcore/internal/domain/user"
	"github.com/serbia-gov/iamcore/internal/eventstore"
	"github.com/serbia-gov/iamcore/internal/projection"
)

// UserHandler maintains users, login_names, personal_access_tokens,
// authn_keys and user_metadata. Imperative like OrgHandler
// (internal/projection/handlers/org.go): a username change has to
// replace the login_names row rather than upsert it, since the old
// username isn't present in the new event's payload.
type UserHandler struct{}

func NewUserHandler() *UserHandler { return &UserHandler{} }

func (h *UserHandler) Name() string { return "user" }

func (h *UserHandler) Interested(eventType string) bool {
	switch eventType {
	case user.EventHumanAdded, user.EventMachineAdded, user.EventUsernameChanged,
		user.EventDeactivated, user.EventReactivated, user.EventLocked, user.EventUnlocked, user.EventRemoved,
		user.EventMachineKeyAdded, user.EventMachineKeyRemoved,
		user.EventPATAdded, user.EventPATRemoved,
		user.EventMetadataSet, user.EventMetadataRemoved:
		return true
	}
	return false
}

func (h *UserHandler) Reset(ctx context.Context, db projection.Executor) error {
	for _, table := range []string{"user_metadata", "authn_keys", "personal_access_tokens", "login_names", "users"} {
		if _, err := db.Exec(ctx, "TRUNCATE TABLE "+table); err != nil {
			return err
		}
	}
	return nil
}

func (h *UserHandler) Handle(ctx context.Context, db projection.Executor, ev eventstore.Event) error {
	switch ev.EventType {
	case user.EventHumanAdded:
		var p struct {
			Username string `json:"username"`
			Owner    string `json:"owner"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		return h.insertUser(ctx, db, ev, "human", p.Username, p.Owner)

	case user.EventMachineAdded:
		var p struct {
			Username string `json:"username"`
			Owner    string `json:"owner"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		return h.insertUser(ctx, db, ev, "machine", p.Username, p.Owner)

	case user.EventUsernameChanged:
		var p struct {
			Username string `json:"username"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		if _, err := db.Exec(ctx, `
			UPDATE users SET username = $3, sequence = $4, changed_at = NOW()
			WHERE instance_id = $1 AND user_id = $2`,
			ev.InstanceID, ev.AggregateID, p.Username, ev.AggregateVersion); err != nil {
			return err
		}
		if _, err := db.Exec(ctx, `DELETE FROM login_names WHERE instance_id = $1 AND user_id = $2`,
			ev.InstanceID, ev.AggregateID); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `
			INSERT INTO login_names (instance_id, login_name, user_id) VALUES ($1, $2, $3)
			ON CONFLICT (instance_id, login_name) DO NOTHING`,
			ev.InstanceID, p.Username, ev.AggregateID)
		return err

	case user.EventDeactivated:
		return h.setState(ctx, db, ev, "inactive")
	case user.EventReactivated:
		return h.setState(ctx, db, ev, "active")
	case user.EventLocked:
		return h.setState(ctx, db, ev, "locked")
	case user.EventUnlocked:
		return h.setState(ctx, db, ev, "active")
	case user.EventRemoved:
		if err := h.setState(ctx, db, ev, "removed"); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `DELETE FROM login_names WHERE instance_id = $1 AND user_id = $2`,
			ev.InstanceID, ev.AggregateID)
		return err

	case user.EventMachineKeyAdded:
		var p struct {
			KeyID        string `json:"key_id"`
			PublicKeyPEM string `json:"public_key_pem"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `
			INSERT INTO authn_keys (instance_id, key_id, user_id, key_type, public_key)
			VALUES ($1, $2, $3, 'machine', $4)
			ON CONFLICT (instance_id, key_id) DO UPDATE SET public_key = EXCLUDED.public_key`,
			ev.InstanceID, p.KeyID, ev.AggregateID, []byte(p.PublicKeyPEM))
		return err

	case user.EventMachineKeyRemoved:
		var p struct {
			KeyID string `json:"key_id"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `DELETE FROM authn_keys WHERE instance_id = $1 AND key_id = $2`,
			ev.InstanceID, p.KeyID)
		return err

	case user.EventPATAdded:
		var p struct {
			TokenID       string `json:"token_id"`
			ExpiresAtUnix int64  `json:"expires_at_unix"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `
			INSERT INTO personal_access_tokens (instance_id, token_id, user_id, expires_at)
			VALUES ($1, $2, $3, to_timestamp($4))
			ON CONFLICT (instance_id, token_id) DO NOTHING`,
			ev.InstanceID, p.TokenID, ev.AggregateID, p.ExpiresAtUnix)
		return err

	case user.EventPATRemoved:
		var p struct {
			TokenID string `json:"token_id"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `DELETE FROM personal_access_tokens WHERE instance_id = $1 AND token_id = $2`,
			ev.InstanceID, p.TokenID)
		return err

	case user.EventMetadataSet:
		var p struct {
			Key   string `json:"key"`
			Value []byte `json:"value"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `
			INSERT INTO user_metadata (instance_id, user_id, key, value)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (instance_id, user_id, key) DO UPDATE SET value = EXCLUDED.value`,
			ev.InstanceID, ev.AggregateID, p.Key, p.Value)
		return err

	case user.EventMetadataRemoved:
		var p struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `DELETE FROM user_metadata WHERE instance_id = $1 AND user_id = $2 AND key = $3`,
			ev.InstanceID, ev.AggregateID, p.Key)
		return err
	}
	return nil
}

func (h *UserHandler) insertUser(ctx context.Context, db projection.Executor, ev eventstore.Event, userType, username, owner string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO users (instance_id, user_id, user_type, username, owner, state, sequence)
		VALUES ($1, $2, $3, $4, $5, 'active', $6)
		ON CONFLICT (instance_id, user_id) DO UPDATE
		SET username = EXCLUDED.username, state = 'active', sequence = EXCLUDED.sequence, changed_at = NOW()`,
		ev.InstanceID, ev.AggregateID, userType, username, owner, ev.AggregateVersion)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO login_names (instance_id, login_name, user_id) VALUES ($1, $2, $3)
		ON CONFLICT (instance_id, login_name) DO NOTHING`,
		ev.InstanceID, username, ev.AggregateID)
	return err
}

func (h *UserHandler) setState(ctx context.Context, db projection.Executor, ev eventstore.Event, state string) error {
	_, err := db.Exec(ctx, `
		UPDATE users SET state = $3, sequence = $4, changed_at = NOW()
		WHERE instance_id = $1 AND user_id = $2`,
		ev.InstanceID, ev.AggregateID, state, ev.AggregateVersion)
	return err
}
