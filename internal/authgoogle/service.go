// Package authgoogle resolves Google sign-in callbacks to user records.
package authgoogle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"noteboard/api/internal/store"
	"noteboard/api/internal/util"
)

const userinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

// profileTimeout bounds the userinfo fetch; any failure inside it is
// treated as "no profile data", never a crash.
const profileTimeout = 5 * time.Second

// ErrProfileUnavailable covers every failure of the external path: code
// exchange failure, userinfo timeout, non-success status, missing email.
// No partial user is ever created.
var ErrProfileUnavailable = errors.New("could not retrieve profile from identity provider")

// UserStore is the slice of the credential store the resolver needs.
type UserStore interface {
	EnsureExternalUser(ctx context.Context, id, email, displayName string) (store.User, error)
}

type Service struct {
	oauth          *oauth2.Config
	store          UserStore
	userinfoURL    string
	profileTimeout time.Duration
}

func NewService(store UserStore, clientID, clientSecret, redirectURL string) *Service {
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		store:          store,
		userinfoURL:    userinfoEndpoint,
		profileTimeout: profileTimeout,
	}
}

// IsConfigured returns true if Google sign-in is configured
func (s *Service) IsConfigured() bool {
	return s.oauth.ClientID != "" && s.oauth.ClientSecret != ""
}

type profile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Resolve exchanges an authorization code for profile data and resolves it
// to a user record, creating one on first sight of a new identity.
func (s *Service) Resolve(ctx context.Context, code string) (store.User, error) {
	if !s.IsConfigured() {
		return store.User{}, ErrProfileUnavailable
	}
	if strings.TrimSpace(code) == "" {
		return store.User{}, ErrProfileUnavailable
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.profileTimeout)
	defer cancel()

	token, err := s.oauth.Exchange(fetchCtx, code)
	if err != nil {
		return store.User{}, fmt.Errorf("%w: exchange failed", ErrProfileUnavailable)
	}

	info, err := s.fetchProfile(fetchCtx, token.AccessToken)
	if err != nil {
		return store.User{}, err
	}
	if info.Email == "" {
		return store.User{}, fmt.Errorf("%w: provider returned no email", ErrProfileUnavailable)
	}

	name := info.Name
	if name == "" {
		name = info.Email
	}

	user, err := s.store.EnsureExternalUser(ctx, util.NewID("usr"), info.Email, name)
	if err != nil {
		return store.User{}, fmt.Errorf("resolve external user: %w", err)
	}
	return user, nil
}

func (s *Service) fetchProfile(ctx context.Context, accessToken string) (profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userinfoURL, nil)
	if err != nil {
		return profile{}, fmt.Errorf("%w: build userinfo request", ErrProfileUnavailable)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return profile{}, fmt.Errorf("%w: userinfo fetch failed", ErrProfileUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return profile{}, fmt.Errorf("%w: userinfo status %d", ErrProfileUnavailable, resp.StatusCode)
	}

	var info profile
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return profile{}, fmt.Errorf("%w: decode userinfo", ErrProfileUnavailable)
	}
	return info, nil
}
