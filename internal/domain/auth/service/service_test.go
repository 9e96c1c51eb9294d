package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/RonTitans/BillFlow/internal/domain/auth/repository"
)

type fakeUserRepo struct {
	users map[string]*repository.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*repository.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, params repository.NewUserParams) (*repository.User, error) {
	if _, ok := f.users[params.Username]; ok {
		return nil, repository.ErrUserAlreadyExists
	}
	u := &repository.User{
		ID:             uuid.New(),
		Username:       params.Username,
		HashedPassword: params.HashedPassword,
		Email:          params.Email,
		DisplayName:    params.DisplayName,
		Role:           params.Role,
		IsActive:       true,
		CreatedAt:      time.Now(),
	}
	f.users[u.Username] = u
	return u, nil
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*repository.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id uuid.UUID) (*repository.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUserRepo) UpdateLastLogin(context.Context, uuid.UUID) error { return nil }

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo) {
	t.Helper()
	repo := newFakeUserRepo()
	tm := NewTokenManager([]byte("test-secret"), time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthService(repo, tm, logger), repo
}

func seedUser(t *testing.T, repo *fakeUserRepo, username, password string) *repository.User {
	t.Helper()
	hashed, err := HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	u, err := repo.CreateUser(context.Background(), repository.NewUserParams{
		Username:       username,
		HashedPassword: hashed,
	})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestLoginAndVerify(t *testing.T) {
	svc, repo := newTestAuthService(t)
	user := seedUser(t, repo, "inspector", "secret123")

	result, err := svc.Login(context.Background(), "inspector", "secret123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a token")
	}
	if result.User.ID != user.ID {
		t.Errorf("user id = %s, want %s", result.User.ID, user.ID)
	}

	verified, err := svc.Verify(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if verified.ID != user.ID {
		t.Errorf("verified user = %s, want %s", verified.ID, user.ID)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, repo := newTestAuthService(t)
	seedUser(t, repo, "inspector", "secret123")

	_, err := svc.Login(context.Background(), "inspector", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownUserSameError(t *testing.T) {
	svc, _ := newTestAuthService(t)

	_, err := svc.Login(context.Background(), "nobody", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user must yield the same error as a wrong password, got %v", err)
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	svc, repo := newTestAuthService(t)
	u := seedUser(t, repo, "inspector", "secret123")
	u.IsActive = false

	_, err := svc.Login(context.Background(), "inspector", "secret123")
	if !errors.Is(err, ErrAccountInactive) {
		t.Errorf("expected ErrAccountInactive, got %v", err)
	}
}

func TestVerify_TamperedToken(t *testing.T) {
	svc, repo := newTestAuthService(t)
	seedUser(t, repo, "inspector", "secret123")

	result, err := svc.Login(context.Background(), "inspector", "secret123")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Verify(context.Background(), result.Token+"x"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	repo := newFakeUserRepo()
	tm := NewTokenManager([]byte("test-secret"), -time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewAuthService(repo, tm, logger)
	seedUser(t, repo, "inspector", "secret123")

	result, err := svc.Login(context.Background(), "inspector", "secret123")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Verify(context.Background(), result.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	ours := NewTokenManager([]byte("secret-a"), time.Hour)
	theirs := NewTokenManager([]byte("secret-b"), time.Hour)

	token, err := theirs.GenerateAccessToken(uuid.NewString(), "someone")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ours.ValidateAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
