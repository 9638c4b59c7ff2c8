package models

import "testing"

func TestRoleAtLeast(t *testing.T) {
	ordered := []Role{RoleViewer, RoleMember, RoleAdmin, RoleOwner}
	for i, have := range ordered {
		for j, need := range ordered {
			want := i >= j
			if got := have.AtLeast(need); got != want {
				t.Errorf("%s.AtLeast(%s) = %v, want %v", have, need, got, want)
			}
		}
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"OWNER", RoleOwner, true},
		{"admin", RoleAdmin, true},
		{"Member", RoleMember, true},
		{" viewer ", RoleViewer, true},
		{"", "", false},
		{"root", "root", false},
	}
	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestRedactEmail(t *testing.T) {
	if got := RedactEmail("alice@example.com"); got != "***@example.com" {
		t.Errorf("RedactEmail = %q", got)
	}
	if got := RedactEmail("not-an-email"); got != "***" {
		t.Errorf("RedactEmail without @ = %q", got)
	}
}
