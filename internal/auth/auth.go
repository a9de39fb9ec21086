// Package auth holds the static user directory. Authentication proper
// happens outside this system; the directory only maps an already
// authenticated user id to its role.
package auth

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/rbac"
	"fintrack/internal/report"
)

// Directory resolves user ids against a fixed user-to-role table.
type Directory struct {
	users map[string]rbac.Role
}

var _ report.AuthContext = (*Directory)(nil)

// NewDirectory builds a directory from an explicit table.
func NewDirectory(users map[string]rbac.Role) *Directory {
	copied := make(map[string]rbac.Role, len(users))
	for id, role := range users {
		copied[id] = role
	}
	return &Directory{users: copied}
}

// ParseDirectory parses a "user:role,user:role" listing, as carried by the
// FINTRACK_USERS environment variable.
func ParseDirectory(s string) (*Directory, error) {
	users := map[string]rbac.Role{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, role, ok := strings.Cut(pair, ":")
		id = strings.TrimSpace(id)
		role = strings.TrimSpace(role)
		if !ok || id == "" || role == "" {
			return nil, fmt.Errorf("malformed user entry %q (want user:role)", pair)
		}
		users[id] = rbac.Role(role)
	}
	return NewDirectory(users), nil
}

// ResolveUser implements report.AuthContext.
func (d *Directory) ResolveUser(_ context.Context, userID string) (report.User, error) {
	role, ok := d.users[userID]
	if !ok {
		return report.User{}, core.ErrUnauthenticated
	}
	return report.User{ID: userID, Role: role}, nil
}
