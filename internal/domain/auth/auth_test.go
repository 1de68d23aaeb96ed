package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func int64Ptr(v int64) *int64 { return &v }

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"
	claims := Claims{UserID: "u1", TenantID: "t1", Roles: []string{"hr", "staff"}}

	token, err := GenerateToken(secret, claims, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if parsed.UserID != claims.UserID || parsed.TenantID != claims.TenantID || len(parsed.Roles) != 2 || parsed.Roles[0] != "hr" {
		t.Fatalf("claims mismatch: %+v", parsed)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("a", Claims{UserID: "u1", TenantID: "t1"}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("b", token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken("a", Claims{UserID: "u1", TenantID: "t1"}, -time.Minute)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("a", token); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: "u1", TenantID: "t1"})
	signed, err := token.SignedString([]byte("a"))
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}
	if _, err := ParseToken("a", signed); err == nil {
		t.Fatal("expected signing method error")
	}
}

func TestParseTokenRequiresTenant(t *testing.T) {
	token, err := GenerateToken("a", Claims{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("a", token); err == nil {
		t.Fatal("expected missing tenant error")
	}
}

func TestPolicyIsAdmin(t *testing.T) {
	policy := NewPolicy([]string{"HR", " admin "})
	if !policy.IsAdmin(Identity{Roles: []string{"staff", "hr"}}) {
		t.Fatal("expected hr to be admin")
	}
	if !policy.IsAdmin(Identity{Roles: []string{"Admin"}}) {
		t.Fatal("expected case-insensitive match")
	}
	if policy.IsAdmin(Identity{Roles: []string{"staff"}}) {
		t.Fatal("staff must not be admin")
	}
	if policy.IsAdmin(Identity{}) {
		t.Fatal("no roles must not be admin")
	}
}

func TestPolicyCanActFor(t *testing.T) {
	policy := NewPolicy([]string{"hr"})
	self := Identity{StaffMemberID: int64Ptr(7), Roles: []string{"staff"}}
	if !policy.CanActFor(self, 7) {
		t.Fatal("owner should be allowed")
	}
	if policy.CanActFor(self, 8) {
		t.Fatal("non-owner should be denied")
	}
	if !policy.CanActFor(Identity{Roles: []string{"hr"}}, 8) {
		t.Fatal("admin should be allowed")
	}
	if policy.CanActFor(Identity{Roles: []string{"staff"}}, 8) {
		t.Fatal("identity without staff record should be denied")
	}
}

func TestPolicyScopeStaff(t *testing.T) {
	policy := NewPolicy([]string{"hr"})

	scoped, ok := policy.ScopeStaff(Identity{Roles: []string{"hr"}}, nil)
	if !ok || scoped != nil {
		t.Fatalf("admin unscoped: got %v %v", scoped, ok)
	}

	scoped, ok = policy.ScopeStaff(Identity{Roles: []string{"hr"}}, int64Ptr(3))
	if !ok || scoped == nil || *scoped != 3 {
		t.Fatalf("admin filter: got %v %v", scoped, ok)
	}

	self := Identity{StaffMemberID: int64Ptr(5)}
	scoped, ok = policy.ScopeStaff(self, nil)
	if !ok || scoped == nil || *scoped != 5 {
		t.Fatalf("self forced: got %v %v", scoped, ok)
	}
	if _, ok := policy.ScopeStaff(self, int64Ptr(6)); ok {
		t.Fatal("self asking for another staff member must be denied")
	}
	if _, ok := policy.ScopeStaff(Identity{}, nil); ok {
		t.Fatal("identity without staff record must be denied")
	}
}
