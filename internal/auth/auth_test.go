package auth

import (
	"context"
	"testing"

	"github.com/starford/studyai/internal/apperr"
)

func TestResolver_ContextWins(t *testing.T) {
	r := Resolver{Default: "local"}
	uid, err := r.CurrentUser(WithUser(context.Background(), "u42"))
	if err != nil || uid != "u42" {
		t.Fatalf("CurrentUser = %q, %v", uid, err)
	}
}

func TestResolver_FallsBackToDefault(t *testing.T) {
	uid, err := Resolver{Default: "local"}.CurrentUser(context.Background())
	if err != nil || uid != "local" {
		t.Fatalf("CurrentUser = %q, %v", uid, err)
	}
}

func TestResolver_NoUser(t *testing.T) {
	_, err := Resolver{}.CurrentUser(context.Background())
	if !apperr.IsAuth(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	_, err = Static("").CurrentUser(context.Background())
	if !apperr.IsAuth(err) {
		t.Fatalf("expected AuthError from empty Static, got %v", err)
	}
}
