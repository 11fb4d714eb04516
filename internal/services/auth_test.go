package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/powerlens-backend/internal/data/repos"
	"github.com/yungbote/powerlens-backend/internal/data/repos/testutil"
	"github.com/yungbote/powerlens-backend/internal/platform/ctxutil"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
)

func TestAuthRegisterLoginRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	svc := NewAuthService(log, repos.NewUserRepo(db, log), "test-secret", time.Minute)
	ctx := context.Background()

	u, err := svc.Register(ctx, " Reviewer@Example.com ", "Rae Viewer", "correct-horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "reviewer@example.com" || u.PasswordHash == "" || u.PasswordHash == "correct-horse" {
		t.Fatalf("Register: unexpected user %+v", u)
	}
	if _, err := svc.Register(ctx, "reviewer@example.com", "Again", "correct-horse"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Register duplicate: want ErrInvalidArgument got %v", err)
	}

	token, err := svc.Login(ctx, "reviewer@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	authed, err := svc.SetContextFromToken(ctx, token)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	if got := ctxutil.UserID(authed); got != u.ID {
		t.Fatalf("SetContextFromToken: user want=%s got=%s", u.ID, got)
	}
	if svc.GetAccessTTL() != time.Minute {
		t.Fatalf("GetAccessTTL: want=1m got=%v", svc.GetAccessTTL())
	}
}

func TestAuthRejections(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	svc := NewAuthService(log, repos.NewUserRepo(db, log), "test-secret", time.Minute)
	other := NewAuthService(log, repos.NewUserRepo(db, log), "other-secret", time.Minute)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "not-an-email", "X", "long-enough"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Register bad email: want ErrInvalidArgument got %v", err)
	}
	if _, err := svc.Register(ctx, "a@example.com", "X", "short"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Register short password: want ErrInvalidArgument got %v", err)
	}
	if _, err := svc.Register(ctx, "a@example.com", "A", "long-enough"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(ctx, "a@example.com", "wrong-password"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Login wrong password: want ErrUnauthorized got %v", err)
	}
	if _, err := svc.Login(ctx, testutil.SystemIdentity().Email, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Login system user: want ErrUnauthorized got %v", err)
	}

	token, err := other.Login(ctx, "a@example.com", "long-enough")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := svc.SetContextFromToken(ctx, token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("SetContextFromToken foreign signature: want ErrUnauthorized got %v", err)
	}
	if _, err := svc.SetContextFromToken(ctx, "garbage"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("SetContextFromToken garbage: want ErrUnauthorized got %v", err)
	}
}

// unseenEmails reports every email as free, as a check that ran before a
// concurrent registration committed would.
type unseenEmails struct {
	repos.UserRepo
}

func (unseenEmails) EmailExists(dbctx.Context, string) (bool, error) { return false, nil }

func TestAuthRegisterDuplicateInsertIsInvalidArgument(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	svc := NewAuthService(log, unseenEmails{repos.NewUserRepo(db, log)}, "test-secret", time.Minute)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "race@example.com", "First", "correct-horse"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := svc.Register(ctx, "race@example.com", "Second", "correct-horse")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Register duplicate insert: want ErrInvalidArgument got %v", err)
	}
}
