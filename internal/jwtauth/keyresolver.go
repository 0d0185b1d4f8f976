package jwtauth

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// authnKeyStore is the subset of internal/query.Queries a KeyResolver
// needs, kept narrow so this package doesn't import the whole query
// surface just to resolve one key.
type authnKeyStore interface {
	GetAuthnKey(ctx context.Context, instanceID, userID, keyID string) (keyType string, publicKey []byte, err error)
}

// QueryKeyResolver resolves machine-user public keys registered via
// addMachineKey (spec §4.2 user aggregate) from the projection's
// authn_keys table.
type QueryKeyResolver struct {
	store authnKeyStore
}

func NewQueryKeyResolver(store authnKeyStore) *QueryKeyResolver {
	return &QueryKeyResolver{store: store}
}

// ResolveKey implements KeyResolver. Keys are stored PEM-encoded
// PKIX-format public keys regardless of the underlying algorithm
// (RSA/ECDSA/Ed25519). addMachineKey stores the key bytes as given
// without validating them, so a key in another form fails here.
func (r *QueryKeyResolver) ResolveKey(ctx context.Context, instanceID, userID, keyID string) (any, error) {
	_, raw, err := r.store.GetAuthnKey(ctx, instanceID, userID, keyID)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("machine key %s is not PEM-encoded", keyID)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse machine key %s: %w", keyID, err)
	}
	return pub, nil
}
