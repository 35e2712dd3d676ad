package sale

import (
	appctx "stockline/internal/core/context"
	"stockline/internal/core/apperror"
	"stockline/internal/core/id"
	"stockline/internal/domain/catalog"
)

// LocationCandidates are the locations a sale may be booked against, fetched
// before resolution. Any of them may be nil.
type LocationCandidates struct {
	// DeliveryActor is the location owned by the named delivery actor.
	DeliveryActor *catalog.Location
	// Actor is the location owned by the acting user.
	Actor *catalog.Location
	// Principal is the current principal location.
	Principal *catalog.Location
}

// ResolveLocation picks the source location of a sale:
//
//  1. a named delivery actor sells from that actor's dealer location;
//  2. a dealer sells from their own dealer location;
//  3. an admin sells from the principal location, falling back to their own;
//  4. anyone else sells from their own location, falling back to the principal.
func ResolveLocation(actor *appctx.Actor, deliveryActorID *id.ID, c LocationCandidates) (id.ID, error) {
	if deliveryActorID != nil {
		if c.DeliveryActor == nil || !c.DeliveryActor.IsDealer() {
			return id.Nil(), apperror.NewBusinessRule(apperror.CodeNoDealerLocation,
				"the selected delivery actor has no dealer location").
				WithField("delivery_actor_id")
		}
		return c.DeliveryActor.ID, nil
	}

	if actor.IsDealer() {
		if c.Actor == nil || !c.Actor.IsDealer() {
			return id.Nil(), apperror.NewBusinessRule(apperror.CodeNoDealerLocation,
				"your dealer user has no dealer location assigned").
				WithField("location")
		}
		return c.Actor.ID, nil
	}

	order := []*catalog.Location{c.Actor, c.Principal}
	if actor.IsAdmin() {
		order = []*catalog.Location{c.Principal, c.Actor}
	}
	for _, loc := range order {
		if loc != nil {
			return loc.ID, nil
		}
	}
	return id.Nil(), apperror.NewBusinessRule(apperror.CodeNoLocationResolvable,
		"no location is associated with the user and no principal location exists").
		WithField("location")
}
