package handlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/serbia-gov/iamcore/internal/eventstore"
	"github.com/serbia-gov/iamcore/internal/projection"
)

// AuditHandler appends every event into a SHA-256 hash chain (audit_entries),
// one row per event with no exceptions — unlike the other handlers it is
// interested in everything. It must be imperative rather than declarative
// because each row's hash depends on the previous row's hash, read from
// audit_chain_tip inside the same transaction as the insert; a
// DeclarativeRule's fixed SQL template can't express that read-then-compute
// step. The hashing technique (canonical JSON with sorted map keys, so a
// Go map's nondeterministic iteration order never changes the hash) is
// carried over from the teacher's internal/audit/model.go.
type AuditHandler struct{}

func NewAuditHandler() *AuditHandler { return &AuditHandler{} }

func (h *AuditHandler) Name() string { return "audit" }

func (h *AuditHandler) Interested(eventType string) bool { return true }

func (h *AuditHandler) Reset(ctx context.Context, db projection.Executor) error {
	if _, err := db.Exec(ctx, "TRUNCATE TABLE audit_entries"); err != nil {
		return err
	}
	_, err := db.Exec(ctx, "UPDATE audit_chain_tip SET last_hash = ''")
	return err
}

func (h *AuditHandler) Handle(ctx context.Context, db projection.Executor, ev eventstore.Event) error {
	var prevHash string
	if err := db.QueryRow(ctx, "SELECT last_hash FROM audit_chain_tip FOR UPDATE").Scan(&prevHash); err != nil {
		return err
	}

	hash, err := computeEntryHash(prevHash, ev)
	if err != nil {
		return err
	}

	if _, err := db.Exec(ctx, `
		INSERT INTO audit_entries
			(position, instance_id, aggregate_type, aggregate_id, event_type, creator, owner, occurred_at, hash, prev_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ev.Position.GlobalPosition, ev.InstanceID, ev.AggregateType, ev.AggregateID, ev.EventType,
		ev.Creator, ev.Owner, ev.CreatedAt, hash, prevHash); err != nil {
		return err
	}

	_, err = db.Exec(ctx, "UPDATE audit_chain_tip SET last_hash = $1", hash)
	return err
}

// computeEntryHash mirrors the teacher's AuditEntry.calculateHash: a fixed
// field set hashed as canonical JSON, chained onto prevHash.
func computeEntryHash(prevHash string, ev eventstore.Event) (string, error) {
	var payload any
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return "", err
		}
	}
	data := map[string]any{
		"prev_hash":      prevHash,
		"instance_id":    ev.InstanceID,
		"aggregate_type": ev.AggregateType,
		"aggregate_id":   ev.AggregateID,
		"aggregate_version": ev.AggregateVersion,
		"event_type":     ev.EventType,
		"creator":        ev.Creator,
		"owner":          ev.Owner,
		"payload":        payload,
	}
	canonical, err := canonicalJSON(data)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON and canonicalMarshal produce deterministic JSON (sorted
// map keys) so the hash never depends on Go's map iteration order.
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	return canonicalMarshal(parsed)
}

func canonicalMarshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			valBytes, err := canonicalMarshal(val[k])
			if err != nil {
				return nil, err
			}
			buf.Write(valBytes)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil

	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			itemBytes, err := canonicalMarshal(item)
			if err != nil {
				return nil, err
			}
			buf.Write(itemBytes)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil

	default:
		return json.Marshal(val)
	}
}
