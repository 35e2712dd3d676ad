// Package context carries request-scoped values: the acting user and trace ids.
package context

import (
	"context"
	"slices"

	"stockline/internal/core/id"
)

// Roles understood by location resolution.
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super-admin"
	RoleDealer     = "dealer"
)

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID    id.ID
	Roles []string
}

// HasRole checks if the actor holds role.
func (a *Actor) HasRole(role string) bool {
	if a == nil {
		return false
	}
	return slices.Contains(a.Roles, role)
}

// IsAdmin reports admin or super-admin.
func (a *Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin) || a.HasRole(RoleSuperAdmin)
}

// IsDealer reports the dealer role.
func (a *Actor) IsDealer() bool {
	return a.HasRole(RoleDealer)
}

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns Actor from context.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetActorID returns the actor id as a string, or "" when unauthenticated.
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.ID.String()
	}
	return ""
}
