// Package instance implements the Instance aggregate: the tenant-root
// aggregate that owns instance-default policies and i18n defaults
// (spec §8.2 S6, SPEC_FULL.md §4 "Instance aggregate").
package instance

import (
	"encoding/json"

	"github.com/serbia-gov/iamcore/internal/eventstore"
	"github.com/serbia-gov/iamcore/internal/writemodel"
)

const AggregateType = "instance"

const (
	EventAdded                = "instance.added"
	EventDefaultLanguageSet   = "instance.default.language.set"
)

// Model is the Instance write model. Only the slice of state the command
// pipeline actually needs to guard against is kept here — the instance's
// policy rows themselves live in projection tables and are read through
// internal/policyresolver, never replayed into this write model.
type Model struct {
	writemodel.Base

	DefaultLanguage string
}

func New() *Model { return &Model{} }

func (m *Model) AggregateType() string { return AggregateType }

type defaultLanguageSetPayload struct {
	Language string `json:"language"`
}

func (m *Model) Reduce(event eventstore.Event) error {
	defer m.Base.Observe(event)

	switch event.EventType {
	case EventAdded:
		// no attributes beyond existence; Base.Observe already marks
		// Exists() true.
	case EventDefaultLanguageSet:
		var p defaultLanguageSetPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return err
		}
		m.DefaultLanguage = p.Language
	}
	return nil
}
