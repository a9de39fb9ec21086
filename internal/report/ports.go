package report

import (
	"context"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/rbac"
)

// User is the resolved identity of a report caller.
type User struct {
	ID   string
	Role rbac.Role
}

// AuthContext resolves a requesting user id to a logged-in user. It is
// supplied by the host application; this package never authenticates.
type AuthContext interface {
	// ResolveUser returns core.ErrUnauthenticated when the id does not
	// belong to a live session.
	ResolveUser(ctx context.Context, userID string) (User, error)
}

// Scope is the set of user ids a transaction query may see: everything, or
// a single user.
type Scope struct {
	All    bool
	UserID string
}

// Contains reports whether a record owned by userID falls inside the scope.
func (s Scope) Contains(userID string) bool {
	return s.All || s.UserID == userID
}

// TransactionStore supplies the expense and income records a report is
// built from. Both queries are modeled as subscriptions: the channel emits
// the current matching list immediately and again after every local
// mutation, until ctx is done. The builder takes exactly one value and
// stops observing.
type TransactionStore interface {
	WatchExpenses(ctx context.Context, scope Scope, start, end time.Time) (<-chan []core.Transaction, error)
	WatchIncomes(ctx context.Context, scope Scope, start, end time.Time) (<-chan []core.Transaction, error)
}

// CategoryResolver maps a category id to its display name. Returns
// core.ErrNotFound for an id with no matching category.
type CategoryResolver interface {
	CategoryName(ctx context.Context, id int64) (string, error)
}
