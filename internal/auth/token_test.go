// ABOUTME: Unit tests for JWT credential verification and generation
// ABOUTME: Covers valid, invalid, expired, and missing credentials plus claim defaults

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestJWTVerifier_ValidCredential(t *testing.T) {
	verifier := NewJWTVerifier([]byte("test-secret-key-for-jwt-signing"))

	token, err := verifier.Generate("user-123", RoleTeacher, []string{"teacher:*", "academic:courses"}, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	ident, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if ident.Actor != "user-123" {
		t.Errorf("Actor = %q, want %q", ident.Actor, "user-123")
	}
	if ident.Role != RoleTeacher {
		t.Errorf("Role = %q, want %q", ident.Role, RoleTeacher)
	}
	if len(ident.Scopes) != 2 {
		t.Errorf("Scopes = %v, want 2 entries", ident.Scopes)
	}
	if ident.Credential != token {
		t.Error("Identity should retain the raw credential")
	}
}

func TestJWTVerifier_MissingCredential(t *testing.T) {
	verifier := NewJWTVerifier([]byte("secret"))

	_, err := verifier.Verify("")
	if !errors.Is(err, ErrCredentialMissing) {
		t.Errorf("Verify(\"\") error = %v, want ErrCredentialMissing", err)
	}
}

func TestJWTVerifier_InvalidCredential(t *testing.T) {
	verifier := NewJWTVerifier([]byte("test-secret-key-for-jwt-signing"))

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage token", token: "not-a-jwt-token"},
		{name: "malformed JWT", token: "header.payload.signature"},
		{
			name: "wrong secret",
			token: func() string {
				other := NewJWTVerifier([]byte("different-secret"))
				token, _ := other.Generate("user-123", RoleStudent, nil, time.Hour)
				return token
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if !errors.Is(err, ErrInvalidCredential) {
				t.Errorf("Verify() error = %v, want ErrInvalidCredential", err)
			}
		})
	}
}

func TestJWTVerifier_ExpiredCredential(t *testing.T) {
	verifier := NewJWTVerifier([]byte("test-secret-key-for-jwt-signing"))

	token, err := verifier.Generate("user-123", RoleStudent, nil, -time.Minute)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrExpiredCredential) {
		t.Errorf("Verify() error = %v, want ErrExpiredCredential", err)
	}
}

func TestJWTVerifier_RoleDefaultScopes(t *testing.T) {
	verifier := NewJWTVerifier([]byte("test-secret-key-for-jwt-signing"))

	// No explicit scopes claim: role defaults apply.
	token, err := verifier.Generate("user-456", RoleAdminSales, nil, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	ident, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if len(ident.Scopes) != 1 || ident.Scopes[0] != "finance:*" {
		t.Errorf("Scopes = %v, want [finance:*]", ident.Scopes)
	}
}

func TestJWTVerifier_UnknownRoleGetsNoScopes(t *testing.T) {
	verifier := NewJWTVerifier([]byte("test-secret-key-for-jwt-signing"))

	token, err := verifier.Generate("svc-1", Role("mystery"), nil, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	ident, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(ident.Scopes) != 0 {
		t.Errorf("Scopes = %v, want empty", ident.Scopes)
	}
}

func TestAnonymous(t *testing.T) {
	ident := Anonymous()
	if ident.Role != RoleGuest {
		t.Errorf("Role = %q, want guest", ident.Role)
	}
	if len(ident.Scopes) != 0 {
		t.Errorf("Scopes = %v, want empty", ident.Scopes)
	}
	if HasScope(ident, "finance:invoices") {
		t.Error("anonymous identity should hold no scopes")
	}
}

func TestDefaultScopes_ReturnsCopy(t *testing.T) {
	a := DefaultScopes(RoleAdmin)
	a[0] = "mutated"
	b := DefaultScopes(RoleAdmin)
	if b[0] == "mutated" {
		t.Error("DefaultScopes must return an independent copy")
	}
}

func TestScopeError_NamesActorAndScope(t *testing.T) {
	ident := &Identity{Actor: "user-789", Role: RoleStudent, Scopes: []string{"student:*"}}

	err := RequireScope(ident, "finance:invoices")
	if err == nil {
		t.Fatal("RequireScope() should fail")
	}
	msg := err.Error()
	if !strings.Contains(msg, "user-789") {
		t.Errorf("error %q should name the actor", msg)
	}
	if !strings.Contains(msg, "finance:invoices") {
		t.Errorf("error %q should name the missing scope", msg)
	}
}
