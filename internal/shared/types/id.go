package types

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ID is a sortable, tenant-opaque identifier. Aggregate and entity IDs are
// minted by internal/idgen (ksuid-backed); correlation/request IDs may be
// any non-empty string.
type ID string

// ParseID validates a non-empty identifier string.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("invalid ID: empty")
	}
	return ID(s), nil
}

// MustParseID parses a string into an ID, panics on error.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the string representation.
func (id ID) String() string {
	return string(id)
}

// IsZero checks if the ID is empty.
func (id ID) IsZero() bool {
	return id == ""
}

// Value implements driver.Valuer for database serialization.
func (id ID) Value() (driver.Value, error) {
	if id.IsZero() {
		return nil, nil
	}
	return string(id), nil
}

// NewCorrelationID mints a UUID for the X-Correlation-ID header of the
// admin HTTP surface — distinct from
// the ksuid-backed, sortable IDs internal/idgen mints for aggregates,
// since correlation IDs are never compared for creation order.
func NewCorrelationID() string {
	return uuid.NewString()
}

// Scan implements sql.Scanner for database deserialization.
func (id *ID) Scan(value interface{}) error {
	if value == nil {
		*id = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*id = ID(v)
	case []byte:
		*id = ID(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ID", value)
	}
	return nil
}
