package auth

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/rbac"
)

func TestParseDirectory(t *testing.T) {
	d, err := ParseDirectory("alice:admin, bob:employee,")
	if err != nil {
		t.Fatalf("ParseDirectory: %v", err)
	}

	u, err := d.ResolveUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ResolveUser(alice): %v", err)
	}
	if u.Role != rbac.RoleAdmin {
		t.Errorf("alice role = %q, want admin", u.Role)
	}

	if _, err := d.ResolveUser(context.Background(), "mallory"); !errors.Is(err, core.ErrUnauthenticated) {
		t.Errorf("unknown user: err = %v, want ErrUnauthenticated", err)
	}
}

func TestParseDirectoryRejectsMalformed(t *testing.T) {
	for _, s := range []string{"alice", "alice:", ":admin"} {
		if _, err := ParseDirectory(s); err == nil {
			t.Errorf("ParseDirectory(%q): expected error, got nil", s)
		}
	}
}
