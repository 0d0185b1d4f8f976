// Package idgen provides the external ID provider consumed by the command
// pipeline (spec §6.2): next_id() producing sortable, globally-unique
// identifiers. IDs minted in different seconds sort in creation order;
// IDs minted within the same second are ordered by their random payload.
package idgen

import (
	"github.com/segmentio/ksuid"

	"github.com/serbia-gov/iamcore/internal/shared/types"
)

// Provider mints new identifiers. Implementations must be safe for
// concurrent use.
type Provider interface {
	NextID() types.ID
}

// KSUID is the default Provider, backed by segmentio/ksuid: 20 bytes
// (a 4-byte seconds timestamp followed by a 16-byte random payload),
// base62-encoded, so generated IDs sort lexicographically by creation
// second.
type KSUID struct{}

// New returns the default ID provider.
func New() KSUID { return KSUID{} }

func (KSUID) NextID() types.ID {
	return types.ID(ksuid.New().String())
}
