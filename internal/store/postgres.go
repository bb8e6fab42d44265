package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateEmail is returned when an insert trips the unique email
// constraint. Uniqueness is enforced by the constraint, not a pre-check.
var ErrDuplicateEmail = errors.New("email already registered")

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, auth_method)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Email, user.PasswordHash, user.DisplayName, user.AuthMethod)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// EnsureExternalUser resolves an externally-authenticated identity to a user
// row, creating one on first sight. Idempotent: an existing row is returned
// unchanged regardless of its auth method.
func (s *PostgresStore) EnsureExternalUser(ctx context.Context, id, email, displayName string) (User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, auth_method)
		VALUES ($1, $2, '', $3, $4)
		ON CONFLICT (email) DO NOTHING
	`, id, email, displayName, MethodExternal)
	if err != nil {
		return User{}, fmt.Errorf("insert external user: %w", err)
	}

	// Re-read so a concurrent first sign-in of the same email still
	// resolves to the single surviving row.
	return s.GetUserByEmail(ctx, email)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, COALESCE(display_name, ''), auth_method, created_at
		FROM users
		WHERE email=$1
	`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.AuthMethod, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, COALESCE(display_name, ''), auth_method, created_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.AuthMethod, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2 WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteUser removes the user and all owned notes in one transaction.
// Partial deletion would be a correctness violation, so both statements
// commit or neither does. Returns the removed attachment keys so the caller
// can clean up object storage after commit.
func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete user tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT attachment_key FROM notes
		WHERE user_id=$1 AND attachment_key IS NOT NULL
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user attachments: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan attachment key: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachment keys: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE user_id=$1`, userID); err != nil {
		return nil, fmt.Errorf("delete user notes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM password_resets WHERE user_id=$1`, userID); err != nil {
		return nil, fmt.Errorf("delete user resets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE user_id=$1`, userID); err != nil {
		return nil, fmt.Errorf("delete user sessions: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
	if err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("delete user rows: %w", err)
	}
	if affected == 0 {
		return nil, sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete user: %w", err)
	}
	return keys, nil
}

func (s *PostgresStore) InsertNote(ctx context.Context, note Note) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, title, content, attachment_key)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
	`, note.ID, note.OwnerID, note.Title, note.Content, note.AttachmentKey)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNote(ctx context.Context, noteID string) (Note, error) {
	var note Note
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, content, COALESCE(attachment_key, ''), created_at
		FROM notes
		WHERE id=$1
	`, noteID).Scan(&note.ID, &note.OwnerID, &note.Title, &note.Content, &note.AttachmentKey, &note.CreatedAt)
	if err != nil {
		return Note{}, err
	}
	return note, nil
}

func (s *PostgresStore) ListNotesByOwner(ctx context.Context, ownerID string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, content, COALESCE(attachment_key, ''), created_at
		FROM notes
		WHERE user_id=$1
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		var item Note
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Title, &item.Content, &item.AttachmentKey, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListAllNotes(ctx context.Context) ([]NoteWithOwner, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.user_id, n.title, n.content, COALESCE(n.attachment_key, ''), n.created_at, u.email
		FROM notes n
		JOIN users u ON u.id = n.user_id
		ORDER BY n.created_at DESC, n.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list all notes: %w", err)
	}
	defer rows.Close()

	items := make([]NoteWithOwner, 0)
	for rows.Next() {
		var item NoteWithOwner
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Title, &item.Content, &item.AttachmentKey, &item.CreatedAt, &item.OwnerEmail); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate all notes: %w", err)
	}
	return items, nil
}

// DeleteNote removes a note only when both the note ID and the owner ID
// match an existing row. A miss on either is a no-op reported as false.
func (s *PostgresStore) DeleteNote(ctx context.Context, noteID, ownerID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM notes WHERE id=$1 AND user_id=$2
	`, noteID, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete note rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.email, u.password_hash, COALESCE(u.display_name, ''), u.auth_method, u.created_at
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.AuthMethod, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
