package domain

import "time"

// Role classifies the identity making a request.
type Role int

const (
	RoleAnonymous Role = iota
	RoleUser
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	default:
		return "anonymous"
	}
}

// Caller is the identity resolved by the authentication layer.
type Caller struct {
	Role   Role
	UserID int64
}

// Anonymous is the zero caller.
var Anonymous = Caller{Role: RoleAnonymous}

// CallerFor derives the caller identity for an authenticated user.
// A nil user is anonymous.
func CallerFor(u *User) Caller {
	if u == nil {
		return Anonymous
	}
	if u.IsAdmin {
		return Caller{Role: RoleAdmin, UserID: u.ID}
	}
	return Caller{Role: RoleUser, UserID: u.ID}
}

// ScopeOptions narrows a scope beyond what the caller's role allows.
type ScopeOptions struct {
	TargetID       *int64
	WindowStart    *time.Time
	OnlyNotDeleted bool
}

// ReadingFilter is a predicate over the reading collection. The zero value
// matches every reading; None matches nothing.
type ReadingFilter struct {
	None           bool
	UserID         *int64
	ID             *int64
	Since          *time.Time
	OnlyNotDeleted bool
}

// ResolveScope computes the readings a caller may see. Anonymous callers get
// a filter matching nothing together with ErrUnauthorized.
func ResolveScope(c Caller, opts ScopeOptions) (ReadingFilter, error) {
	f := ReadingFilter{
		ID:             opts.TargetID,
		Since:          opts.WindowStart,
		OnlyNotDeleted: opts.OnlyNotDeleted,
	}
	switch c.Role {
	case RoleAdmin:
		return f, nil
	case RoleUser:
		uid := c.UserID
		f.UserID = &uid
		return f, nil
	default:
		return ReadingFilter{None: true}, ErrUnauthorized
	}
}

// Matches reports whether r satisfies the filter.
func (f ReadingFilter) Matches(r Reading) bool {
	if f.None {
		return false
	}
	if f.UserID != nil && r.UserID != *f.UserID {
		return false
	}
	if f.ID != nil && r.ID != *f.ID {
		return false
	}
	if f.Since != nil && r.ObservedAt.Before(*f.Since) {
		return false
	}
	if f.OnlyNotDeleted && r.IsDeleted {
		return false
	}
	return true
}
