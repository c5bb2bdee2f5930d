package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"formbuilder-go/internal/airtable"
	"formbuilder-go/internal/models"
	"formbuilder-go/internal/state"
	"formbuilder-go/internal/storage"
)

var (
	ErrMissingCode  = errors.New("missing ?code from Airtable")
	ErrInvalidState = errors.New("unknown or expired OAuth state")
)

// OAuthFlow is the Airtable authorization code flow
type OAuthFlow interface {
	Configured() bool
	NewVerifier() string
	AuthCodeURL(state, verifier string) (string, error)
	Exchange(ctx context.Context, code, verifier string) (airtable.Token, error)
}

// AuthService connects the form owner to Airtable
type AuthService struct {
	store  storage.Store
	oauth  OAuthFlow
	state  *state.AppState
	userID string
	logger *slog.Logger

	newState func() string
	now      func() time.Time
}

func NewAuthService(store storage.Store, oauth OAuthFlow, appState *state.AppState, userID string, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		store:    store,
		oauth:    oauth,
		state:    appState,
		userID:   userID,
		logger:   logger,
		newState: uuid.NewString,
		now:      time.Now,
	}
}

// Configured reports whether the OAuth flow can start
func (s *AuthService) Configured() bool {
	return s.oauth != nil && s.oauth.Configured()
}

// Start records a pending flow and returns the Airtable consent URL
func (s *AuthService) Start() (string, error) {
	if !s.Configured() {
		return "", airtable.ErrOAuthNotConfigured
	}
	stateValue := s.newState()
	verifier := s.oauth.NewVerifier()

	authURL, err := s.oauth.AuthCodeURL(stateValue, verifier)
	if err != nil {
		return "", err
	}
	s.state.PutPending(stateValue, state.PendingAuth{Verifier: verifier, UserID: s.userID})
	s.logger.Debug("airtable: oauth started", "user_id", s.userID, "pending", s.state.PendingCount())
	return authURL, nil
}

// Callback finishes a flow started by Start and stores the owner's tokens
func (s *AuthService) Callback(ctx context.Context, code, stateValue string) (models.User, error) {
	if code == "" {
		return models.User{}, ErrMissingCode
	}
	if !s.Configured() {
		return models.User{}, airtable.ErrOAuthNotConfigured
	}
	pending, ok := s.state.TakePending(stateValue)
	if !ok {
		return models.User{}, ErrInvalidState
	}

	tok, err := s.oauth.Exchange(ctx, code, pending.Verifier)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.store.GetUser(ctx, pending.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return models.User{}, err
	}

	loginAt := s.now().UTC()
	user.UserID = pending.UserID
	user.AirtableUserID = nil
	if tok.AirtableUserID != "" {
		user.AirtableUserID = &tok.AirtableUserID
	}
	user.AccessToken = tok.AccessToken
	user.RefreshToken = tok.RefreshToken
	user.LoginAt = &loginAt

	if err := s.store.UpsertUser(ctx, user); err != nil {
		return models.User{}, err
	}
	s.logger.Info("airtable: oauth connected", "user_id", user.UserID)
	return user, nil
}

// Status reports whether the owner holds an Airtable access token
func (s *AuthService) Status(ctx context.Context) (models.AuthStatusResponse, error) {
	user, err := s.store.GetUser(ctx, s.userID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.AuthStatusResponse{Connected: false}, nil
	}
	if err != nil {
		return models.AuthStatusResponse{}, err
	}
	return models.AuthStatusResponse{
		Connected:      user.AccessToken != "",
		UserID:         user.UserID,
		AirtableUserID: user.AirtableUserID,
		LoginAt:        user.LoginAt,
	}, nil
}
