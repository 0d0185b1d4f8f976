package command

// This file documents which Remove*/Reset* commands are idempotent
// no-ops on a missing target versus a NotFound error (an Open Question
// left unresolved by spec.md, decided in SPEC_FULL.md §5 and repeated
// here next to the code it governs):
//
//   - removeOrgMember, removeMachineKey, removePersonalAccessToken,
//     removeUserMetadata, removeDomain: the target is a
//     *membership/attachment*, not an identity. Removing something
//     already gone is indistinguishable from removing it twice in a row
//     under retried delivery, so these return idempotentNoop(owner)
//     rather than NotFound when the target is already absent from the
//     loaded write model.
//
//   - removeSecondFactorFromOrgLoginPolicy: second factors are not
//     tracked in any write model, so this command does not check for
//     absence; it always emits its removal event.
//
//   - removeOrg, everything that removes a *user* (there is no
//     standalone removeUser in the command set below — deactivate/
//     reactivate/lock/unlock cover the user lifecycle spec §6.3 names):
//     these identify the aggregate itself, not an attachment on it, so
//     a missing aggregate is always NotFound. An aggregate that no
//     longer exists cannot be acted on again "for free".
//
// The distinction is existence of an *aggregate* (NotFound, no
// idempotence) versus existence of a *map entry on an existing
// aggregate* (idempotent no-op).
