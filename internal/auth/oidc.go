// Package auth resolves organization roles from SSO group claims and keeps
// memberships in sync at login.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// ErrNoIDToken is returned when a token response carries no id_token.
var ErrNoIDToken = errors.New("no id_token in token response")

// OIDCConfig holds OIDC provider configuration.
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// DefaultOIDCConfig returns an OIDCConfig with standard scopes plus groups.
func DefaultOIDCConfig(issuer, clientID, clientSecret, redirectURL string) OIDCConfig {
	return OIDCConfig{
		Issuer:       issuer,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email", "groups"},
	}
}

// OIDC wraps the OIDC provider and OAuth2 configuration.
type OIDC struct {
	oauth2Config oauth2.Config
	verifier     *oidc.IDTokenVerifier
	logger       zerolog.Logger
}

// NewOIDC creates a new OIDC provider instance.
func NewOIDC(ctx context.Context, cfg OIDCConfig, logger zerolog.Logger) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider: %w", err)
	}

	o := &OIDC{
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       cfg.Scopes,
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		logger:   logger.With().Str("component", "oidc").Logger(),
	}

	o.logger.Info().Str("issuer", cfg.Issuer).Msg("OIDC provider initialized")
	return o, nil
}

// AuthorizationURL returns the URL to redirect users for authentication.
func (o *OIDC) AuthorizationURL(state string) string {
	return o.oauth2Config.AuthCodeURL(state)
}

// Exchange exchanges an authorization code for tokens.
func (o *OIDC) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := o.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}

// Groups verifies the token's id_token and extracts its groups.
func (o *OIDC) Groups(ctx context.Context, token *oauth2.Token, customClaim string) ([]string, error) {
	groups, err := GroupsFromOAuth2Token(ctx, o.verifier, token, customClaim)
	if err != nil {
		return nil, err
	}
	o.logger.Debug().Int("groups", len(groups)).Msg("extracted groups from token")
	return groups, nil
}

// Claims verifies a raw ID token issued by this provider and returns its claims.
func (o *OIDC) Claims(ctx context.Context, rawIDToken string) (jwt.MapClaims, error) {
	return VerifiedClaims(ctx, o.verifier, rawIDToken)
}

// GroupsFromOAuth2Token verifies the id_token carried by an OAuth2 token
// response and extracts its groups.
func GroupsFromOAuth2Token(ctx context.Context, verifier *oidc.IDTokenVerifier, token *oauth2.Token, customClaim string) ([]string, error) {
	if token == nil {
		return nil, ErrNoIDToken
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, ErrNoIDToken
	}
	return GroupsFromIDToken(ctx, verifier, rawIDToken, customClaim)
}

// GroupsFromIDToken verifies a raw ID token and extracts its groups.
func GroupsFromIDToken(ctx context.Context, verifier *oidc.IDTokenVerifier, rawIDToken, customClaim string) ([]string, error) {
	claims, err := VerifiedClaims(ctx, verifier, rawIDToken)
	if err != nil {
		return nil, err
	}
	return ExtractGroups(claims, customClaim), nil
}

// VerifiedClaims verifies a raw ID token and returns all of its claims.
func VerifiedClaims(ctx context.Context, verifier *oidc.IDTokenVerifier, rawIDToken string) (jwt.MapClaims, error) {
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify ID token: %w", err)
	}

	claims := jwt.MapClaims{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}
	return claims, nil
}
