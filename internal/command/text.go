package command

import (
	"context"

	"github.com/serbia-gov/iamcore/internal/authz"
	"github.com/serbia-gov/iamcore/internal/domain/instance"
	"github.com/serbia-gov/iamcore/internal/domain/org"
	apperrors "github.com/serbia-gov/iamcore/internal/shared/errors"
	"github.com/serbia-gov/iamcore/internal/jwtauth"
	"github.com/serbia-gov/iamcore/internal/writemodel"
)

// SetCustomText overrides one UI text key for a language at instance-
// or org-scope (spec.md's i18n customization use case, supplementing
// the core policy inheritance chain with the same instance/org scoping
// for display strings rather than enforcement rules).
func (c *Commands) SetCustomText(ctx context.Context, caller jwtauth.CallerContext, scope PolicyScope, key, language, text string) (Summary, error) {
	if err := validateLanguageTag(language); err != nil {
		return Summary{}, err
	}
	if err := validateNonEmpty("VALIDATE-CustomText01", "key", key); err != nil {
		return Summary{}, err
	}
	if err := c.authorize(ctx, caller, "custom_text", authz.Permission("policy.write"), scope.aggregateID()); err != nil {
		return Summary{}, err
	}
	if err := c.checkTextScopeExists(ctx, scope); err != nil {
		return Summary{}, err
	}

	aggType := scope.aggregateType()
	ev, err := c.push(ctx, scope.InstanceID, aggType, scope.aggregateID(), aggType+".custom_text.set", caller.UserID, scope.aggregateID(),
		struct {
			Key      string `json:"key"`
			Language string `json:"language"`
			Text     string `json:"text"`
		}{Key: key, Language: language, Text: text},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

// ResetCustomText removes an override, falling back to the next level
// of inheritance (org override removed -> instance override -> compiled
// default). Resetting an already-default text is an idempotent no-op,
// enforced at the projection layer since custom text isn't replayed
// into any write model.
func (c *Commands) ResetCustomText(ctx context.Context, caller jwtauth.CallerContext, scope PolicyScope, key, language string) (Summary, error) {
	if err := c.authorize(ctx, caller, "custom_text", authz.Permission("policy.write"), scope.aggregateID()); err != nil {
		return Summary{}, err
	}
	if err := c.checkTextScopeExists(ctx, scope); err != nil {
		return Summary{}, err
	}

	aggType := scope.aggregateType()
	ev, err := c.push(ctx, scope.InstanceID, aggType, scope.aggregateID(), aggType+".custom_text.reset", caller.UserID, scope.aggregateID(),
		struct {
			Key      string `json:"key"`
			Language string `json:"language"`
		}{Key: key, Language: language},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

// SetCustomMessageText overrides one templated notification message
// (e.g. the "verify your email" email body) at instance- or org-scope.
func (c *Commands) SetCustomMessageText(ctx context.Context, caller jwtauth.CallerContext, scope PolicyScope, messageType, language, subject, body string) (Summary, error) {
	if err := validateLanguageTag(language); err != nil {
		return Summary{}, err
	}
	if err := validateNonEmpty("VALIDATE-MessageText01", "message_type", messageType); err != nil {
		return Summary{}, err
	}
	if err := c.authorize(ctx, caller, "custom_message_text", authz.Permission("policy.write"), scope.aggregateID()); err != nil {
		return Summary{}, err
	}
	if err := c.checkTextScopeExists(ctx, scope); err != nil {
		return Summary{}, err
	}

	aggType := scope.aggregateType()
	ev, err := c.push(ctx, scope.InstanceID, aggType, scope.aggregateID(), aggType+".custom_message_text.set", caller.UserID, scope.aggregateID(),
		struct {
			MessageType string `json:"message_type"`
			Language    string `json:"language"`
			Subject     string `json:"subject"`
			Body        string `json:"body"`
		}{MessageType: messageType, Language: language, Subject: subject, Body: body},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}

func (c *Commands) checkTextScopeExists(ctx context.Context, scope PolicyScope) error {
	if scope.aggregateType() == org.AggregateType {
		model, err := c.loadOrg(ctx, scope.InstanceID, scope.OrgID)
		if err != nil {
			return err
		}
		if !model.Exists() || model.State == org.StateRemoved {
			return apperrors.NotFound("TEXT-Scope01", "org", scope.OrgID)
		}
		return nil
	}
	model := instance.New()
	if err := writemodel.Load(ctx, c.Store, scope.InstanceID, instance.AggregateType, scope.InstanceID, model); err != nil {
		return apperrors.Wrap(err, "load instance")
	}
	if !model.Exists() {
		return apperrors.NotFound("TEXT-Scope02", "instance", scope.InstanceID)
	}
	return nil
}
