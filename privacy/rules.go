package privacy

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/aggstore"
)

// Viewer represents the authenticated user making a request.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier, or "".
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string { return v.UserID }

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string { return v.Roles }

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer returns a rule that denies access if no viewer is present
// in the context.
//
//	privacy.NewPolicy(
//	    privacy.DenyIfNoViewer(),
//	    privacy.Writes(privacy.HasRole("admin"), privacy.IsOwner("customer"), privacy.AlwaysDenyRule()),
//	)
func DenyIfNoViewer() Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows access if the viewer has the
// specified role, and skips otherwise.
func HasRole(role string) Rule {
	return HasAnyRole(role)
}

// HasAnyRole returns a rule that allows access if the viewer has any of
// the specified roles, and skips otherwise.
func HasAnyRole(roles ...string) Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		for _, role := range roles {
			if slices.Contains(viewer.GetRoles(), role) {
				return Allow
			}
		}
		return Skip
	})
}

// rootValue returns the value of the named scalar property of the event's
// root instance.
func rootValue(e aggstore.Event, property string) (string, bool) {
	if e.Entity == nil || e.Value == nil {
		return "", false
	}
	p := e.Entity.Property(property)
	if p == nil || p.IsAssociation() {
		return "", false
	}
	switch v := p.Get(e.Value).(type) {
	case string:
		return v, true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// IsOwner returns a rule that allows access if the named property of the
// aggregate root equals the viewer's ID. Deletes by identifier carry no
// root instance and are skipped.
func IsOwner(property string) Rule {
	return RuleFunc(func(ctx context.Context, e aggstore.Event) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		owner, ok := rootValue(e, property)
		if !ok {
			return Skip
		}
		if owner == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// TenantRule returns a rule that allows access if the named property of
// the aggregate root equals the viewer's tenant, and denies it otherwise.
func TenantRule(property string) Rule {
	return RuleFunc(func(ctx context.Context, e aggstore.Event) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		tenant, ok := rootValue(e, property)
		if !ok {
			return Skip
		}
		if tenant == viewer.GetTenantID() {
			return Allow
		}
		return Denyf("privacy: tenant mismatch")
	})
}
