package domain_test

import (
	"testing"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Role
		ok   bool
	}{
		{"admin", domain.RoleAdmin, true},
		{" Gerente ", domain.RoleGerente, true},
		{"user", domain.RoleFuncionario, true},
		{"cliente", domain.RoleCliente, true},
		{"superuser", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := domain.ParseRole(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseRole(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoleFromUsername(t *testing.T) {
	cases := map[string]domain.Role{
		"admin":   domain.RoleAdmin,
		"ADMIN":   domain.RoleAdmin,
		"gerente": domain.RoleGerente,
		"joana":   domain.RoleFuncionario,
	}
	for username, want := range cases {
		if got := domain.RoleFromUsername(username); got != want {
			t.Errorf("RoleFromUsername(%q) = %q, want %q", username, got, want)
		}
	}
}

func TestUserPatch_Empty(t *testing.T) {
	var p domain.UserPatch
	if !p.Empty() {
		t.Fatal("zero patch should be empty")
	}
	active := false
	p.Active = &active
	if p.Empty() {
		t.Fatal("patch with Active set should not be empty")
	}
}
