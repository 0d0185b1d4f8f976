// Package user implements the User aggregate's write model — one
// aggregate type covering both human and machine users (spec §3.1 lists
// `user` as an aggregate_type; SPEC_FULL.md §4 supplements the human/
// machine command set), plus its personal-access-token and machine-key
// sub-entities which live on the same aggregate stream.
package user

import (
	"encoding/json"

	"github.com/serbia-gov/iamcore/internal/eventstore"
	"github.com/serbia-gov/iamcore/internal/writemodel"
)

type State string

const (
	StateUnspecified State = "unspecified"
	StateActive      State = "active"
	StateInactive    State = "inactive"
	StateLocked      State = "locked"
	StateRemoved     State = "removed"
)

type Type string

const (
	TypeHuman   Type = "human"
	TypeMachine Type = "machine"
)

const AggregateType = "user"

const (
	EventHumanAdded     = "user.human.added"
	EventMachineAdded   = "user.machine.added"
	EventUsernameChanged = "user.username.changed"
	EventDeactivated    = "user.deactivated"
	EventReactivated    = "user.reactivated"
	EventLocked         = "user.locked"
	EventUnlocked       = "user.unlocked"
	EventRemoved        = "user.removed"

	EventMachineKeyAdded   = "user.machine.key.added"
	EventMachineKeyRemoved = "user.machine.key.removed"

	EventPATAdded   = "user.pat.added"
	EventPATRemoved = "user.pat.removed"

	EventMetadataSet    = "user.metadata.set"
	EventMetadataRemoved = "user.metadata.removed"
)

type MachineKey struct {
	KeyID string
}

type PAT struct {
	TokenID string
}

// Model is the User write model.
type Model struct {
	writemodel.Base

	Type     Type
	Username string
	Owner    string
	State    State

	MachineKeys map[string]*MachineKey
	PATs        map[string]*PAT
	Metadata    map[string][]byte
}

func New() *Model {
	return &Model{
		MachineKeys: make(map[string]*MachineKey),
		PATs:        make(map[string]*PAT),
		Metadata:    make(map[string][]byte),
	}
}

func (m *Model) AggregateType() string { return AggregateType }

type humanAddedPayload struct {
	Username string `json:"username"`
	Owner    string `json:"owner"`
}

type machineAddedPayload struct {
	Username string `json:"username"`
	Owner    string `json:"owner"`
}

type usernameChangedPayload struct {
	Username string `json:"username"`
}

type machineKeyPayload struct {
	KeyID string `json:"key_id"`
}

type patPayload struct {
	TokenID string `json:"token_id"`
}

type metadataSetPayload struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

type metadataRemovedPayload struct {
	Key string `json:"key"`
}

func (m *Model) Reduce(event eventstore.Event) error {
	defer m.Base.Observe(event)

	switch event.EventType {
	case EventHumanAdded:
		var p humanAddedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.Type = TypeHuman
		m.Username = p.Username
		m.Owner = p.Owner
		m.State = StateActive

	case EventMachineAdded:
		var p machineAddedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.Type = TypeMachine
		m.Username = p.Username
		m.Owner = p.Owner
		m.State = StateActive

	case EventUsernameChanged:
		var p usernameChangedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.Username = p.Username

	case EventDeactivated:
		m.State = StateInactive

	case EventReactivated:
		m.State = StateActive

	case EventLocked:
		m.State = StateLocked

	case EventUnlocked:
		m.State = StateActive

	case EventRemoved:
		m.State = StateRemoved

	case EventMachineKeyAdded:
		var p machineKeyPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.MachineKeys[p.KeyID] = &MachineKey{KeyID: p.KeyID}

	case EventMachineKeyRemoved:
		var p machineKeyPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		delete(m.MachineKeys, p.KeyID)

	case EventPATAdded:
		var p patPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.PATs[p.TokenID] = &PAT{TokenID: p.TokenID}

	case EventPATRemoved:
		var p patPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		delete(m.PATs, p.TokenID)

	case EventMetadataSet:
		var p metadataSetPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.Metadata[p.Key] = p.Value

	case EventMetadataRemoved:
		var p metadataRemovedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		delete(m.Metadata, p.Key)
	}

	return nil
}
