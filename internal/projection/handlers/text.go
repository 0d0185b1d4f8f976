package handlers

import (
	"context"
	"encoding/json"

	"github.com/serbia-gov/iamcore/internal/domain/org"
	"github.com/serbia-gov/iamcore/internal/eventstore"
	"github.com/serbia-gov/iamcore/internal/projection"
)

// TextHandler maintains custom_texts and custom_message_texts, the i18n
// override tables behind SetCustomText/SetCustomMessageText (SPEC_FULL.md
// §4). organization_id is '' at instance scope and the org_id at org
// scope, matching the policy tables' inheritance shape one level down
// (no is_default flag here: absence of a row IS the default; nothing in
// this repository resolves custom texts or supplies compiled-in ones).
//
// custom_texts keys on (template, language, key); commands only carry a
// single template_key (spec.md §9 naming), so template is fixed to
// "default" until a command surface for template selection exists.
type TextHandler struct{}

func NewTextHandler() *TextHandler { return &TextHandler{} }

func (h *TextHandler) Name() string { return "text" }

const defaultTemplate = "default"

func (h *TextHandler) Interested(eventType string) bool {
	switch eventType {
	case "instance.custom_text.set", "org.custom_text.set",
		"instance.custom_text.reset", "org.custom_text.reset",
		"instance.custom_message_text.set", "org.custom_message_text.set":
		return true
	}
	return false
}

func (h *TextHandler) Reset(ctx context.Context, db projection.Executor) error {
	for _, table := range []string{"custom_texts", "custom_message_texts"} {
		if _, err := db.Exec(ctx, "TRUNCATE TABLE "+table); err != nil {
			return err
		}
	}
	return nil
}

func (h *TextHandler) Handle(ctx context.Context, db projection.Executor, ev eventstore.Event) error {
	orgID := ""
	if ev.AggregateType == org.AggregateType {
		orgID = ev.AggregateID
	}

	switch ev.EventType {
	case "instance.custom_text.set", "org.custom_text.set":
		var p struct {
			Key      string `json:"key"`
			Language string `json:"language"`
			Text     string `json:"text"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `
			INSERT INTO custom_texts (instance_id, organization_id, template, language, key, text)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (instance_id, organization_id, template, language, key) DO UPDATE SET text = EXCLUDED.text`,
			ev.InstanceID, orgID, defaultTemplate, p.Language, p.Key, p.Text)
		return err

	case "instance.custom_text.reset", "org.custom_text.reset":
		var p struct {
			Key      string `json:"key"`
			Language string `json:"language"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `
			DELETE FROM custom_texts
			WHERE instance_id = $1 AND organization_id = $2 AND template = $3 AND language = $4 AND key = $5`,
			ev.InstanceID, orgID, defaultTemplate, p.Language, p.Key)
		return err

	case "instance.custom_message_text.set", "org.custom_message_text.set":
		var p struct {
			MessageType string `json:"message_type"`
			Language    string `json:"language"`
			Subject     string `json:"subject"`
			Body        string `json:"body"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		_, err := db.Exec(ctx, `
			INSERT INTO custom_message_texts (instance_id, organization_id, message_type, language, subject, text)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (instance_id, organization_id, message_type, language) DO UPDATE
			SET subject = EXCLUDED.subject, text = EXCLUDED.text`,
			ev.InstanceID, orgID, p.MessageType, p.Language, p.Subject, p.Body)
		return err
	}
	return nil
}
