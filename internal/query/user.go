package query

import (
	"context"
	"time"
)

// User is the read-model projection of a users row.
type User struct {
	UserID    string
	UserType  string
	Username  string
	Owner     string
	State     string
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
	ChangedAt time.Time
}

func (q *Queries) GetUserByID(ctx context.Context, instanceID, userID string) (User, error) {
	var u User
	err := q.pool.QueryRow(ctx, `
		SELECT user_id, user_type, username, owner, state, email, first_name, last_name, created_at, changed_at
		FROM users WHERE instance_id = $1 AND user_id = $2`,
		instanceID, userID).Scan(&u.UserID, &u.UserType, &u.Username, &u.Owner, &u.State,
		&u.Email, &u.FirstName, &u.LastName, &u.CreatedAt, &u.ChangedAt)
	if err != nil {
		return User{}, notFound("QUERY-User01", "user", userID, err)
	}
	return u, nil
}

// GetUserIDByLoginName resolves a login name (spec §3.4) to the user
// it currently belongs to, reading the login_names table UserHandler
// keeps in sync with every username change.
func (q *Queries) GetUserIDByLoginName(ctx context.Context, instanceID, loginName string) (string, error) {
	var userID string
	err := q.pool.QueryRow(ctx, `
		SELECT user_id FROM login_names WHERE instance_id = $1 AND login_name = $2`,
		instanceID, loginName).Scan(&userID)
	if err != nil {
		return "", notFound("QUERY-User02", "login_name", loginName, err)
	}
	return userID, nil
}

func (q *Queries) ListUsers(ctx context.Context, instanceID, usernameFilter string, p Pagination) (Page[User], error) {
	var total int
	if err := q.pool.QueryRow(ctx, `
		SELECT count(*) FROM users
		WHERE instance_id = $1 AND ($2 = '' OR username ILIKE '%' || $2 || '%')`,
		instanceID, usernameFilter).Scan(&total); err != nil {
		return Page[User]{}, notFound("QUERY-User03", "user", "", err)
	}

	rows, err := q.pool.Query(ctx, `
		SELECT user_id, user_type, username, owner, state, email, first_name, last_name, created_at, changed_at
		FROM users
		WHERE instance_id = $1 AND ($2 = '' OR username ILIKE '%' || $2 || '%')
		ORDER BY username
		LIMIT NULLIF($3, 0) OFFSET $4`,
		instanceID, usernameFilter, p.Limit, p.Offset)
	if err != nil {
		return Page[User]{}, notFound("QUERY-User04", "user", "", err)
	}
	defer rows.Close()

	var items []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.UserID, &u.UserType, &u.Username, &u.Owner, &u.State,
			&u.Email, &u.FirstName, &u.LastName, &u.CreatedAt, &u.ChangedAt); err != nil {
			return Page[User]{}, notFound("QUERY-User05", "user", "", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return Page[User]{}, notFound("QUERY-User06", "user", "", err)
	}
	return Page[User]{Items: items, Total: total}, nil
}

// AuthnKey is one machine user key.
type AuthnKey struct {
	KeyID     string
	UserID    string
	KeyType   string
	ExpiresAt *time.Time
}

// GetAuthnKey returns the raw key material registered for one machine
// user key, for jwtauth.KeyResolver implementations to parse.
func (q *Queries) GetAuthnKey(ctx context.Context, instanceID, userID, keyID string) (keyType string, publicKey []byte, err error) {
	err = q.pool.QueryRow(ctx, `
		SELECT key_type, public_key FROM authn_keys
		WHERE instance_id = $1 AND user_id = $2 AND key_id = $3`,
		instanceID, userID, keyID).Scan(&keyType, &publicKey)
	if err != nil {
		return "", nil, notFound("QUERY-AuthnKey03", "authn_key", keyID, err)
	}
	return keyType, publicKey, nil
}

func (q *Queries) ListAuthnKeys(ctx context.Context, instanceID, userID string) ([]AuthnKey, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT key_id, user_id, key_type, expires_at FROM authn_keys
		WHERE instance_id = $1 AND user_id = $2 ORDER BY key_id`,
		instanceID, userID)
	if err != nil {
		return nil, notFound("QUERY-AuthnKey01", "authn_key", "", err)
	}
	defer rows.Close()

	var items []AuthnKey
	for rows.Next() {
		var k AuthnKey
		if err := rows.Scan(&k.KeyID, &k.UserID, &k.KeyType, &k.ExpiresAt); err != nil {
			return nil, notFound("QUERY-AuthnKey02", "authn_key", "", err)
		}
		items = append(items, k)
	}
	return items, rows.Err()
}

// PAT is one personal access token's metadata (never the token secret
// itself, which the write model never persists in the clear either).
type PAT struct {
	TokenID   string
	UserID    string
	Scopes    []string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (q *Queries) ListPATs(ctx context.Context, instanceID, userID string) ([]PAT, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT token_id, user_id, scopes, expires_at, created_at FROM personal_access_tokens
		WHERE instance_id = $1 AND user_id = $2 ORDER BY created_at`,
		instanceID, userID)
	if err != nil {
		return nil, notFound("QUERY-PAT01", "pat", "", err)
	}
	defer rows.Close()

	var items []PAT
	for rows.Next() {
		var t PAT
		if err := rows.Scan(&t.TokenID, &t.UserID, &t.Scopes, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, notFound("QUERY-PAT02", "pat", "", err)
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (q *Queries) GetUserMetadata(ctx context.Context, instanceID, userID, key string) ([]byte, error) {
	var value []byte
	err := q.pool.QueryRow(ctx, `
		SELECT value FROM user_metadata WHERE instance_id = $1 AND user_id = $2 AND key = $3`,
		instanceID, userID, key).Scan(&value)
	if err != nil {
		return nil, notFound("QUERY-UserMetadata01", "user_metadata", key, err)
	}
	return value, nil
}
