package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"noteboard/api/internal/assistant"
	"noteboard/api/internal/auth"
	"noteboard/api/internal/authgoogle"
	"noteboard/api/internal/authpw"
	"noteboard/api/internal/config"
	"noteboard/api/internal/docext"
	"noteboard/api/internal/email"
	"noteboard/api/internal/export"
	"noteboard/api/internal/search"
	"noteboard/api/internal/store"
	"noteboard/api/internal/util"
)

// Session is the authenticated identity installed by a successful sign-in.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Email        string
	UserName     string
	AuthMethod   string
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the slice of the Postgres store the service uses directly.
type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	DeleteUser(context.Context, string) ([]string, error)
	InsertNote(context.Context, store.Note) error
	GetNote(context.Context, string) (store.Note, error)
	ListNotesByOwner(context.Context, string) ([]store.Note, error)
	ListAllNotes(context.Context) ([]store.NoteWithOwner, error)
	DeleteNote(context.Context, string, string) (bool, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	Ping(ctx context.Context) error
}

// SessionBackend holds refresh sessions; Redis in production, Postgres as
// fallback when Redis is not configured.
type SessionBackend interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// AttachmentBackend persists note attachments in object storage.
type AttachmentBackend interface {
	Put(ctx context.Context, ownerID string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// noteSearch indexes and queries notes.
type noteSearch interface {
	Search(q search.Query) search.Response
	IndexNote(n search.NoteRecord)
	DeleteNote(id string)
	ReindexAllFromPG(ctx context.Context)
}

// completer produces chat replies. Failures surface as inline reply text.
type completer interface {
	Complete(ctx context.Context, message string, history []assistant.Message, noteContext string) string
	IsConfigured() bool
}

// exporter renders a note to a downloadable file.
type exporter interface {
	Export(note export.NoteData) (*export.Result, error)
}

type Service struct {
	cfg         config.Config
	store       dataStore
	sessions    SessionBackend
	pw          *authpw.Service
	google      *authgoogle.Service
	mail        *email.Service
	attachments AttachmentBackend
	search      noteSearch
	assistant   completer
	export      exporter
}

func New(cfg config.Config, dataStore dataStore, sessions SessionBackend, pw *authpw.Service, google *authgoogle.Service, mail *email.Service, attachments AttachmentBackend, searchSvc noteSearch, completer completer, exporter exporter) *Service {
	return &Service{
		cfg:         cfg,
		store:       dataStore,
		sessions:    sessions,
		pw:          pw,
		google:      google,
		mail:        mail,
		attachments: attachments,
		search:      searchSvc,
		assistant:   completer,
		export:      exporter,
	}
}

// Bootstrap runs startup work that needs the full stack wired: re-seeding
// the search index from Postgres.
func (s *Service) Bootstrap(ctx context.Context) {
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// SMTPConfigured reports whether reset emails can actually be sent.
func (s *Service) SMTPConfigured() bool {
	return s.mail != nil && s.mail.IsConfigured()
}

// GoogleConfigured reports whether the external sign-in path is available.
func (s *Service) GoogleConfigured() bool {
	return s.google != nil && s.google.IsConfigured()
}

// SignUp registers a manual account and signs it straight in.
func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	user, err := s.pw.SignUp(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// SignIn verifies manual credentials and issues a session.
func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (Session, error) {
	user, err := s.pw.SignIn(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// GoogleSignIn resolves an authorization code through the external provider
// and issues a session for the resulting user.
func (s *Service) GoogleSignIn(ctx context.Context, code string) (Session, error) {
	if s.google == nil {
		return Session{}, authgoogle.ErrProfileUnavailable
	}
	user, err := s.google.Resolve(ctx, code)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:    user.ID,
		Email:  user.Email,
		Name:   user.Name(),
		Method: user.AuthMethod,
		JTI:    jti,
		Exp:    expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Email:        user.Email,
		UserName:     user.Name(),
		AuthMethod:   user.AuthMethod,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken validates an access token and rebuilds the session from
// the current user row, so renames and deletions take effect immediately.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:      token,
		UserID:     user.ID,
		Email:      user.Email,
		UserName:   user.Name(),
		AuthMethod: user.AuthMethod,
		JTI:        claims.JTI,
		ExpiresAt:  time.Unix(claims.Exp, 0),
	}, nil
}

// Refresh rotates a refresh token: the old one is revoked and a fresh
// session is issued from the current user row.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	partial, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, partial.ID)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// ChangePassword verifies the current password before overwriting it.
// External accounts have no password to change.
func (s *Service) ChangePassword(ctx context.Context, session Session, currentPassword, newPassword string) error {
	if session.AuthMethod == store.MethodExternal {
		return domainError(http.StatusConflict, "EXTERNAL_ACCOUNT", "This account signs in with an external provider", nil)
	}
	if _, err := s.pw.SignIn(ctx, authpw.SignInRequest{Email: session.Email, Password: currentPassword}); err != nil {
		return err
	}
	return s.pw.ChangePassword(ctx, session.UserID, newPassword)
}

// RequestPasswordReset creates a reset token and mails it when SMTP is
// configured. The token comes back to the caller for the dev bypass path.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) (string, error) {
	token, err := s.pw.RequestPasswordReset(ctx, emailAddr)
	if err != nil || token == "" {
		return "", err
	}

	if s.SMTPConfigured() {
		user, lookupErr := s.store.GetUserByEmail(ctx, strings.TrimSpace(emailAddr))
		name := emailAddr
		if lookupErr == nil {
			name = user.Name()
		}
		resetURL := fmt.Sprintf("%s?token=%s", s.cfg.ResetBaseURL, token)
		if sendErr := s.mail.SendPasswordResetEmail(strings.TrimSpace(emailAddr), name, resetURL); sendErr != nil {
			log.Printf("app: send reset email: %v", sendErr)
		}
	}
	return token, nil
}

func (s *Service) ResetPassword(ctx context.Context, req authpw.ResetPasswordRequest) error {
	return s.pw.ResetPassword(ctx, req)
}

// DeleteAccount removes the user and everything they own in one
// transaction, then cleans up attachments and search entries best-effort.
func (s *Service) DeleteAccount(ctx context.Context, session Session) error {
	notes, err := s.store.ListNotesByOwner(ctx, session.UserID)
	if err != nil {
		return err
	}

	keys, err := s.store.DeleteUser(ctx, session.UserID)
	if err != nil {
		return err
	}

	// The row cascade is already committed; object and index cleanup can
	// tolerate failure.
	for _, key := range keys {
		if s.attachments == nil {
			break
		}
		if err := s.attachments.Remove(ctx, key); err != nil {
			log.Printf("app: remove attachment %s: %v", key, err)
		}
	}
	if s.search != nil {
		for _, note := range notes {
			s.search.DeleteNote(note.ID)
		}
	}
	return nil
}

// CreateNoteInput carries a new note. Attachment bytes are optional.
type CreateNoteInput struct {
	Title      string
	Content    string
	Attachment []byte
}

// CreateNote validates and persists a note. A note must have a title and
// either body text or an attachment. Attachment text extraction failures
// degrade to storing the note without the extracted tail.
func (s *Service) CreateNote(ctx context.Context, session Session, input CreateNoteInput) (store.Note, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" {
		return store.Note{}, validationError("title is required")
	}
	if content == "" && len(input.Attachment) == 0 {
		return store.Note{}, validationError("a note needs content or an attachment")
	}

	attachmentKey := ""
	if len(input.Attachment) > 0 {
		if s.attachments == nil {
			return store.Note{}, domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage is not configured", nil)
		}
		key, err := s.attachments.Put(ctx, session.UserID, input.Attachment)
		if err != nil {
			return store.Note{}, fmt.Errorf("store attachment: %w", err)
		}
		attachmentKey = key

		extracted, err := docext.Text(input.Attachment)
		if err != nil {
			log.Printf("app: extract attachment text: %v", err)
		} else {
			content = docext.Append(content, extracted)
		}
	}

	note := store.Note{
		ID:            util.NewID("note"),
		OwnerID:       session.UserID,
		Title:         title,
		Content:       content,
		AttachmentKey: attachmentKey,
		CreatedAt:     time.Now(),
	}
	if err := s.store.InsertNote(ctx, note); err != nil {
		return store.Note{}, err
	}

	if s.search != nil {
		s.search.IndexNote(search.NoteRecord{
			ID:         note.ID,
			Title:      note.Title,
			Content:    note.Content,
			OwnerID:    session.UserID,
			OwnerEmail: session.Email,
		})
	}
	return note, nil
}

// MyNotes lists the caller's notes, newest first.
func (s *Service) MyNotes(ctx context.Context, session Session) ([]store.Note, error) {
	return s.store.ListNotesByOwner(ctx, session.UserID)
}

// AllNotes lists every note with its owner's email, newest first.
func (s *Service) AllNotes(ctx context.Context) ([]store.NoteWithOwner, error) {
	return s.store.ListAllNotes(ctx)
}

// DeleteNote removes a note the caller owns. A miss — wrong ID or someone
// else's note — reports the same not-found result.
func (s *Service) DeleteNote(ctx context.Context, session Session, noteID string) error {
	note, err := s.store.GetNote(ctx, noteID)
	attachmentKey := ""
	if err == nil {
		attachmentKey = note.AttachmentKey
	}

	deleted, err := s.store.DeleteNote(ctx, noteID, session.UserID)
	if err != nil {
		return err
	}
	if !deleted {
		return notFound("Note not found")
	}

	if attachmentKey != "" && s.attachments != nil {
		if err := s.attachments.Remove(ctx, attachmentKey); err != nil {
			log.Printf("app: remove attachment %s: %v", attachmentKey, err)
		}
	}
	if s.search != nil {
		s.search.DeleteNote(noteID)
	}
	return nil
}

// Attachment returns the raw attachment of a note the caller owns.
func (s *Service) Attachment(ctx context.Context, session Session, noteID string) ([]byte, error) {
	note, err := s.ownedNote(ctx, session, noteID)
	if err != nil {
		return nil, err
	}
	if note.AttachmentKey == "" {
		return nil, notFound("Note has no attachment")
	}
	if s.attachments == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage is not configured", nil)
	}
	return s.attachments.Get(ctx, note.AttachmentKey)
}

// ExportNote renders a note the caller owns to PDF. Only the user-authored
// part of the body is printed; the extracted document tail is dropped.
func (s *Service) ExportNote(ctx context.Context, session Session, noteID string) (*export.Result, error) {
	note, err := s.ownedNote(ctx, session, noteID)
	if err != nil {
		return nil, err
	}
	return s.export.Export(export.NoteData{
		ID:         note.ID,
		Title:      note.Title,
		Content:    docext.UserContent(note.Content),
		OwnerName:  session.UserName,
		OwnerEmail: session.Email,
		CreatedAt:  note.CreatedAt,
	})
}

// ownedNote fetches a note and hides its existence from non-owners.
func (s *Service) ownedNote(ctx context.Context, session Session, noteID string) (store.Note, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return store.Note{}, err
	}
	if note.OwnerID != session.UserID {
		return store.Note{}, notFound("Note not found")
	}
	return note, nil
}

// Search queries notes. scope "mine" restricts to the caller's notes,
// anything else searches globally.
func (s *Service) Search(ctx context.Context, session Session, text, scope string, limit, offset int) search.Response {
	q := search.Query{Text: text, Limit: limit, Offset: offset}
	if scope == "mine" {
		q.OwnerID = session.UserID
	}
	return s.search.Search(q)
}

// Chat answers a message with the caller's notes as context. The reply is
// always a string; provider trouble comes back inline.
func (s *Service) Chat(ctx context.Context, session Session, message string, history []assistant.Message) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", validationError("message is required")
	}

	noteContext := ""
	notes, err := s.store.ListNotesByOwner(ctx, session.UserID)
	if err != nil {
		log.Printf("app: load notes for chat context: %v", err)
	} else {
		// Listings are newest-first; build the context oldest-first so
		// the gateway's size cap drops the oldest notes, not the newest.
		var b strings.Builder
		for i := len(notes) - 1; i >= 0; i-- {
			note := notes[i]
			fmt.Fprintf(&b, "## %s\n%s\n\n", note.Title, docext.UserContent(note.Content))
		}
		noteContext = b.String()
	}

	return s.assistant.Complete(ctx, message, history, noteContext), nil
}

// mapAuthError translates auth service errors into transport errors.
func mapAuthError(err error) (int, string, string) {
	switch {
	case errors.Is(err, authpw.ErrDuplicateEmail):
		return http.StatusConflict, "EMAIL_EXISTS", "Email already registered"
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"
	case errors.Is(err, authpw.ErrPasswordMismatch):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Passwords do not match"
	case errors.Is(err, authpw.ErrMissingFields):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Email and password are required"
	case errors.Is(err, authgoogle.ErrProfileUnavailable):
		return http.StatusUnauthorized, "GOOGLE_AUTH_FAILED", "Could not authenticate with Google"
	}
	return 0, "", ""
}
