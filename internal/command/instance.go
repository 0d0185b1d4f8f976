package command

import (
	"context"

	"github.com/serbia-gov/iamcore/internal/authz"
	"github.com/serbia-gov/iamcore/internal/domain/instance"
	apperrors "github.com/serbia-gov/iamcore/internal/shared/errors"
	"github.com/serbia-gov/iamcore/internal/jwtauth"
	"github.com/serbia-gov/iamcore/internal/writemodel"
)

// AddInstanceInput is the tenant-provisioning command (spec.md's
// instance aggregate is the tenant root every org/user belongs to).
type AddInstanceInput struct {
	InstanceID      string
	DefaultLanguage string
}

// AddInstance provisions a new tenant. There is no caller-permission
// check: instance creation is performed by the operator out-of-band
// (spec.md never names an "addInstance" permission), so authorization
// is the caller of this method's responsibility (e.g. a CLI run as an
// operator identity, never exposed over the business API this core
// deliberately omits).
func (c *Commands) AddInstance(ctx context.Context, in AddInstanceInput) (Summary, error) {
	if err := validateNonEmpty("VALIDATE-Instance01", "instance_id", in.InstanceID); err != nil {
		return Summary{}, err
	}
	if err := validateLanguageTag(in.DefaultLanguage); err != nil {
		return Summary{}, err
	}

	model := instance.New()
	if err := writemodel.Load(ctx, c.Store, in.InstanceID, instance.AggregateType, in.InstanceID, model); err != nil {
		return Summary{}, apperrors.Wrap(err, "load instance")
	}
	if model.Exists() {
		return Summary{}, apperrors.AlreadyExists("INSTANCE-Add01", "instance", in.InstanceID)
	}

	evs, err := c.pushBatch(ctx, []pendingEvent{
		{
			InstanceID: in.InstanceID, AggregateType: instance.AggregateType, AggregateID: in.InstanceID,
			EventType: instance.EventAdded, Creator: "system", Owner: in.InstanceID,
			Payload: struct{}{},
		},
		{
			InstanceID: in.InstanceID, AggregateType: instance.AggregateType, AggregateID: in.InstanceID,
			EventType: instance.EventDefaultLanguageSet, Creator: "system", Owner: in.InstanceID,
			Payload: struct {
				Language string `json:"language"`
			}{Language: in.DefaultLanguage},
		},
	})
	if err != nil {
		return Summary{}, err
	}
	return summaryFromLast(evs), nil
}

// SetInstanceDefaultLanguage changes the tenant's i18n fallback
// language (spec.md §8.2 S6 built-in default scope).
func (c *Commands) SetInstanceDefaultLanguage(ctx context.Context, caller jwtauth.CallerContext, instanceID, language string) (Summary, error) {
	if err := validateLanguageTag(language); err != nil {
		return Summary{}, err
	}
	if err := c.authorize(ctx, caller, "instance", authz.Permission("instance.write"), instanceID); err != nil {
		return Summary{}, err
	}

	model := instance.New()
	if err := writemodel.Load(ctx, c.Store, instanceID, instance.AggregateType, instanceID, model); err != nil {
		return Summary{}, apperrors.Wrap(err, "load instance")
	}
	if !model.Exists() {
		return Summary{}, apperrors.NotFound("INSTANCE-SetLang01", "instance", instanceID)
	}
	if model.DefaultLanguage == language {
		return Summary{ResourceOwner: instanceID, Sequence: model.Sequence, EventDate: c.Clock.Now()}, nil
	}

	ev, err := c.push(ctx, instanceID, instance.AggregateType, instanceID, instance.EventDefaultLanguageSet,
		caller.UserID, instanceID,
		struct {
			Language string `json:"language"`
		}{Language: language},
	)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(ev), nil
}
