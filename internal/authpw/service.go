// Package authpw provides email/password authentication.
package authpw

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"noteboard/api/internal/store"
	"noteboard/api/internal/util"
)

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrMissingFields      = errors.New("email and password are required")
)

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error
	GetPasswordReset(ctx context.Context, token string) (string, error)
	MarkPasswordResetUsed(ctx context.Context, token string) error
}

// Service provides email/password authentication
type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// SignUpRequest contains sign-up parameters
type SignUpRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
	DisplayName     string
}

// SignUp creates a manual account. The plaintext password is hashed before
// it ever reaches the store; duplicate emails surface via the store's
// unique constraint.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.User, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return store.User{}, ErrMissingFields
	}
	if req.Password != req.ConfirmPassword {
		return store.User{}, ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           util.NewID("usr"),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		AuthMethod:   store.MethodManual,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return store.User{}, ErrDuplicateEmail
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// SignInRequest contains sign-in parameters
type SignInRequest struct {
	Email    string
	Password string
}

// SignIn verifies credentials, failing closed: a missing record, an
// external-only account, and a hash mismatch all yield the same error.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.User, error) {
	if req.Email == "" || req.Password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		// External accounts carry no usable password hash.
		return store.User{}, ErrInvalidCredentials
	}

	if isBcryptHash(user.PasswordHash) {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			return store.User{}, ErrInvalidCredentials
		}
		return user, nil
	}

	// Legacy rows predate hashing and hold the password verbatim.
	// TODO: drop this branch once no plaintext rows remain in production.
	if subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(req.Password)) != 1 {
		return store.User{}, ErrInvalidCredentials
	}

	// Successful plaintext login: re-hash eagerly so the row migrates itself.
	if hash, hashErr := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost); hashErr == nil {
		if err := s.store.UpdateUserPassword(ctx, user.ID, string(hash)); err != nil {
			log.Printf("authpw: rehash legacy password for %s: %v", user.ID, err)
		} else {
			user.PasswordHash = string(hash)
		}
	}
	return user, nil
}

// ChangePassword re-hashes and overwrites the stored credential.
func (s *Service) ChangePassword(ctx context.Context, userID, newPassword string) error {
	if newPassword == "" {
		return ErrMissingFields
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// RequestPasswordReset creates a reset token. The empty return on an
// unknown email is deliberate: callers must not learn whether it exists.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", nil
	}
	if user.AuthMethod == store.MethodExternal {
		return "", nil
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}

	expiresAt := time.Now().Add(1 * time.Hour)
	if err := s.store.CreatePasswordReset(ctx, user.ID, token, expiresAt); err != nil {
		return "", err
	}
	return token, nil
}

// ResetPasswordRequest contains password reset parameters
type ResetPasswordRequest struct {
	Token       string
	NewPassword string
}

// ResetPassword resets a user's password using a reset token
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if req.Token == "" || req.NewPassword == "" {
		return ErrMissingFields
	}

	userID, err := s.store.GetPasswordReset(ctx, req.Token)
	if err != nil {
		return errors.New("invalid or expired reset token")
	}

	if err := s.ChangePassword(ctx, userID, req.NewPassword); err != nil {
		return err
	}

	if err := s.store.MarkPasswordResetUsed(ctx, req.Token); err != nil {
		// Password was reset; a stale token row is tolerable.
		log.Printf("authpw: mark reset token used: %v", err)
	}
	return nil
}

func isBcryptHash(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}

// generateToken creates a secure random token
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
