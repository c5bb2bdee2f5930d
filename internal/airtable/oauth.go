package airtable

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Airtable OAuth endpoints
const (
	AuthURL  = "https://airtable.com/oauth2/v1/authorize"
	TokenURL = "https://airtable.com/oauth2/v1/token"
)

// DefaultScopes requested by the form builder
var DefaultScopes = []string{"data.records:read", "data.records:write", "schema.bases:read"}

// ErrOAuthNotConfigured is returned when the client id or redirect is missing
var ErrOAuthNotConfigured = errors.New("airtable: oauth not configured")

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	// AuthURL and TokenURL override the Airtable endpoints, for tests.
	AuthURL  string
	TokenURL string
	Timeout  time.Duration
}

// Token is the result of a code exchange
type Token struct {
	AccessToken    string
	RefreshToken   string
	Expiry         time.Time
	AirtableUserID string
}

// OAuth drives the authorization code flow with PKCE
type OAuth struct {
	config *oauth2.Config
	client *http.Client
}

func NewOAuth(cfg OAuthConfig) *OAuth {
	if cfg.ClientID == "" || cfg.RedirectURI == "" {
		return nil
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = TokenURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	authStyle := oauth2.AuthStyleInParams
	if cfg.ClientSecret != "" {
		authStyle = oauth2.AuthStyleInHeader
	}
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: authStyle,
			},
		},
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether the flow can start
func (o *OAuth) Configured() bool {
	return o != nil && o.config != nil
}

// NewVerifier returns a fresh PKCE code verifier
func (o *OAuth) NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthCodeURL builds the consent redirect for state and the PKCE verifier.
func (o *OAuth) AuthCodeURL(state, verifier string) (string, error) {
	if !o.Configured() {
		return "", ErrOAuthNotConfigured
	}
	return o.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// Exchange trades an authorization code for tokens
func (o *OAuth) Exchange(ctx context.Context, code, verifier string) (Token, error) {
	if !o.Configured() {
		return Token{}, ErrOAuthNotConfigured
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.client)

	tok, err := o.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Token{}, fmt.Errorf("exchange code: %w", err)
	}

	out := Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if userID, ok := tok.Extra("user_id").(string); ok {
		out.AirtableUserID = userID
	}
	return out, nil
}
