package auth

import (
	"context"
	"slices"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	SetSecret("test-secret")
	t.Cleanup(ResetSecretForTests)

	token, err := GenerateToken("admin@x.com", "Admin@X.com", []string{"KYC_Reviewer", "kyc_reviewer", "admin"}, 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "admin@x.com" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Email != "admin@x.com" {
		t.Fatalf("email not normalised: %s", claims.Email)
	}
	if len(claims.Roles) != 2 || !slices.Contains(claims.Roles, RoleReviewer) || !slices.Contains(claims.Roles, RoleAdmin) {
		t.Fatalf("roles were not preserved: %v", claims.Roles)
	}
	if !claims.Principal().HasPermission(PermDecide) {
		t.Fatalf("expected decide capability from roles")
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	SetSecret("secret-a")
	token, err := GenerateToken("u1", "", []string{"user"}, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	SetSecret("secret-b")
	t.Cleanup(ResetSecretForTests)

	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseAndValidate("   "); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for blank token, got %v", err)
	}
}

func TestMissingSecret(t *testing.T) {
	t.Setenv(secretEnvVariable, "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("u1", "", nil, time.Minute); err == nil {
		t.Fatal("expected error without a configured secret")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = ContextWithUser(ctx, "user-7", []string{"Admin", "Admin", "viewer"})
	id, ok := UserIDFromContext(ctx)
	if !ok || id != "user-7" {
		t.Fatalf("unexpected user id: %s, ok=%v", id, ok)
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 2 {
		t.Fatalf("expected deduplicated roles, got %v", roles)
	}
	if !HasRole(ctx, "viewer") || !HasRole(ctx, "admin") {
		t.Fatalf("HasRole missing expected roles: %v", roles)
	}
	if HasRole(ctx, "operator") {
		t.Fatalf("unexpected role found")
	}

	ctx = ContextWithPrincipal(ctx, NewPrincipal("admin@x.com", "admin@x.com", []string{RoleReviewer}))
	if id, _ := UserIDFromContext(ctx); id != "admin@x.com" {
		t.Fatalf("principal should win over bare user id, got %s", id)
	}
	if !HasRole(ctx, RoleReviewer) {
		t.Fatalf("expected principal roles to be visible")
	}
}
