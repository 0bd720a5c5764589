package auth

import "context"

type contextKey struct{}

// Scope is the per-request capability object every query is filtered
// through: who the actor is, which organization they act in, which
// location they may touch, and what they may manage.
type Scope struct {
	UserID         int64
	OrgID          int64
	LocationID     *int64 // non-nil restricts the actor to one campus
	IsAdmin        bool
	IsPlatform     bool // platform operators may act across organizations
	CanManageUsers bool
	ScanOnly       bool // scan-session actors may only submit cards
	SessionID      int64
}

// AllowsLocation reports whether the scope may touch a record at the
// given location. A nil record location is org-wide and always allowed.
func (s Scope) AllowsLocation(locationID *int64) bool {
	if s.LocationID == nil || locationID == nil {
		return true
	}
	return *s.LocationID == *locationID
}

func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(contextKey{}).(Scope)
	return s, ok
}

func OrgID(ctx context.Context) int64 {
	s, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return s.OrgID
}

func UserID(ctx context.Context) int64 {
	s, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return s.UserID
}

func IsAdmin(ctx context.Context) bool {
	s, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return s.IsAdmin
}
