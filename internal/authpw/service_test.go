package authpw

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"noteboard/api/internal/store"
)

// mockUserStore is a mock implementation of UserStore for testing
type mockUserStore struct {
	users      map[string]store.User
	emailIndex map[string]string // email -> userID
	resets     map[string]struct {
		userID    string
		expiresAt time.Time
		used      bool
	}
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:      make(map[string]store.User),
		emailIndex: make(map[string]string),
		resets: make(map[string]struct {
			userID    string
			expiresAt time.Time
			used      bool
		}),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, sql.ErrNoRows
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, sql.ErrNoRows
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	if _, ok := m.emailIndex[user.Email]; ok {
		return store.ErrDuplicateEmail
	}
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	return nil
}

func (m *mockUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	user, ok := m.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	m.users[userID] = user
	return nil
}

func (m *mockUserStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	m.resets[token] = struct {
		userID    string
		expiresAt time.Time
		used      bool
	}{userID: userID, expiresAt: expiresAt, used: false}
	return nil
}

func (m *mockUserStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	if reset, ok := m.resets[token]; ok && !reset.used && time.Now().Before(reset.expiresAt) {
		return reset.userID, nil
	}
	return "", errors.New("invalid or expired token")
}

func (m *mockUserStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	if reset, ok := m.resets[token]; ok {
		reset.used = true
		m.resets[token] = reset
	}
	return nil
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	t.Run("successful sign up", func(t *testing.T) {
		user, err := svc.SignUp(ctx, SignUpRequest{
			Email:           "test@example.com",
			Password:        "password123",
			ConfirmPassword: "password123",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.ID == "" {
			t.Error("expected user ID to be set")
		}
		if user.AuthMethod != store.MethodManual {
			t.Errorf("expected method manual, got %q", user.AuthMethod)
		}
		if user.PasswordHash == "password123" {
			t.Error("password must never be stored in plaintext")
		}
		if !strings.HasPrefix(user.PasswordHash, "$2") {
			t.Errorf("expected bcrypt hash, got %q", user.PasswordHash)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:           "test@example.com",
			Password:        "otherpassword",
			ConfirmPassword: "otherpassword",
		})
		if !errors.Is(err, ErrDuplicateEmail) {
			t.Fatalf("expected ErrDuplicateEmail, got %v", err)
		}
		// original record unchanged
		original, err := mockStore.GetUserByEmail(ctx, "test@example.com")
		if err != nil {
			t.Fatalf("original user gone: %v", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(original.PasswordHash), []byte("password123")) != nil {
			t.Error("original password hash was modified")
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		if _, err := svc.SignUp(ctx, SignUpRequest{Email: "", Password: "x", ConfirmPassword: "x"}); !errors.Is(err, ErrMissingFields) {
			t.Fatalf("expected ErrMissingFields, got %v", err)
		}
	})

	t.Run("confirmation mismatch", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:           "other@example.com",
			Password:        "password123",
			ConfirmPassword: "password124",
		})
		if !errors.Is(err, ErrPasswordMismatch) {
			t.Fatalf("expected ErrPasswordMismatch, got %v", err)
		}
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	created, err := svc.SignUp(ctx, SignUpRequest{
		Email:           "avery@example.com",
		Password:        "correct horse",
		ConfirmPassword: "correct horse",
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	t.Run("correct password returns the created user", func(t *testing.T) {
		user, err := svc.SignIn(ctx, SignInRequest{Email: "avery@example.com", Password: "correct horse"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.ID != created.ID {
			t.Fatalf("expected user %s, got %s", created.ID, user.ID)
		}
	})

	t.Run("wrong password fails closed", func(t *testing.T) {
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "avery@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown email fails closed", func(t *testing.T) {
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "nobody@example.com", Password: "whatever"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("external account without hash fails closed", func(t *testing.T) {
		external := store.User{ID: "usr_ext", Email: "ext@example.com", AuthMethod: store.MethodExternal}
		if err := mockStore.CreateUser(ctx, external); err != nil {
			t.Fatalf("seed external user: %v", err)
		}
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "ext@example.com", Password: "anything"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestSignInLegacyPlaintext(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	legacy := store.User{
		ID:           "usr_legacy",
		Email:        "legacy@example.com",
		PasswordHash: "plain-old-password",
		AuthMethod:   store.MethodManual,
	}
	if err := mockStore.CreateUser(ctx, legacy); err != nil {
		t.Fatalf("seed legacy user: %v", err)
	}

	user, err := svc.SignIn(ctx, SignInRequest{Email: "legacy@example.com", Password: "plain-old-password"})
	if err != nil {
		t.Fatalf("legacy plaintext login failed: %v", err)
	}
	if user.ID != "usr_legacy" {
		t.Fatalf("expected usr_legacy, got %s", user.ID)
	}

	// The row should have migrated itself to a hash on the way through.
	stored := mockStore.users["usr_legacy"]
	if !strings.HasPrefix(stored.PasswordHash, "$2") {
		t.Fatalf("expected legacy row to be re-hashed, got %q", stored.PasswordHash)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "legacy@example.com", Password: "plain-old-password"}); err != nil {
		t.Fatalf("login after migration failed: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "legacy@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials after migration, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	created, err := svc.SignUp(ctx, SignUpRequest{
		Email:           "avery@example.com",
		Password:        "old password",
		ConfirmPassword: "old password",
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	if err := svc.ChangePassword(ctx, created.ID, "new password"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "avery@example.com", Password: "old password"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to be rejected, got %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "avery@example.com", Password: "new password"}); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}

	if err := svc.ChangePassword(ctx, "usr_missing", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected failure for unknown user, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	if _, err := svc.SignUp(ctx, SignUpRequest{
		Email:           "avery@example.com",
		Password:        "forgotten",
		ConfirmPassword: "forgotten",
	}); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	token, err := svc.RequestPasswordReset(ctx, "avery@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if token == "" {
		t.Fatal("expected a reset token for a known manual account")
	}

	// Unknown email must not be distinguishable from a known one.
	silent, err := svc.RequestPasswordReset(ctx, "nobody@example.com")
	if err != nil || silent != "" {
		t.Fatalf("expected silent empty result, got token=%q err=%v", silent, err)
	}

	if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "remembered"}); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "avery@example.com", Password: "remembered"}); err != nil {
		t.Fatalf("sign in after reset: %v", err)
	}

	// Token is single-use.
	if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "again"}); err == nil {
		t.Fatal("expected reused token to be rejected")
	}
}
