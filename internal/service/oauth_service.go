package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"passgate/internal/pkce"
	"passgate/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AuthorizeQuery carries the raw query string parameters of an authorize
// request. State is opaque and is never parsed or re-encoded.
type AuthorizeQuery struct {
	ClientID            string `form:"client_id"`
	RedirectURI         string `form:"redirect_uri"`
	ResponseType        string `form:"response_type"`
	Scope               string `form:"scope"`
	State               string `form:"state"`
	GrantTypeID         string `form:"grant_type_id"`
	CodeChallenge       string `form:"code_challenge"`
	CodeChallengeMethod string `form:"code_challenge_method"`
	Prompt              string `form:"prompt"`
}

// AuthorizationRequest is a validated authorize request with the client
// resolved and the redirect URI and scopes checked against its registration.
type AuthorizationRequest struct {
	Client              *Client
	RedirectURI         string
	Scopes              []string
	State               string
	GrantTypeID         string
	CodeChallenge       string
	CodeChallengeMethod string
}

// TokenResponse is the token endpoint success body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

type OAuthServiceConfig struct {
	Issuer            string
	AuthCodeExpiry    int
	AccessTokenExpiry int
}

// OAuthService implements the protocol core: request validation, code
// issuance, PKCE-verified redemption and JWT signing.
type OAuthService struct {
	config     OAuthServiceConfig
	clients    *ClientService
	queries    *repository.Queries
	signingKey *rsa.PrivateKey
}

func NewOAuthService(config OAuthServiceConfig, clients *ClientService, queries *repository.Queries) *OAuthService {
	return &OAuthService{
		config:  config,
		clients: clients,
		queries: queries,
	}
}

// Init loads the RSA signing key from the database, generating and persisting
// one on first run so tokens survive restarts.
func (oauth *OAuthService) Init() error {
	ctx := context.Background()

	key, err := oauth.queries.GetLatestSigningKey(ctx)

	if err == nil {
		block, _ := pem.Decode([]byte(key.PrivateKey))
		if block == nil {
			return errors.New("failed to decode stored signing key")
		}
		parsed, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return fmt.Errorf("failed to parse stored signing key: %w", err)
		}
		oauth.signingKey = parsed
		return nil
	}

	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to load signing key: %w", err)
	}

	log.Info().Msg("No signing key found, generating a new RSA key")

	generated, err := rsa.GenerateKey(rand.Reader, 2048)

	if err != nil {
		return fmt.Errorf("failed to generate signing key: %w", err)
	}

	encoded := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(generated),
	})

	if err := oauth.queries.CreateSigningKey(ctx, string(encoded), time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to persist signing key: %w", err)
	}

	oauth.signingKey = generated
	return nil
}

// ValidateAuthorizationRequest checks the query against the client registry
// and PKCE rules. Errors before the redirect URI is trusted have no
// RedirectURI set; errors after it carry the URI and the request state.
func (oauth *OAuthService) ValidateAuthorizationRequest(ctx context.Context, query AuthorizeQuery) (*AuthorizationRequest, error) {
	if query.ClientID == "" {
		return nil, &OAuthError{Code: ErrorInvalidRequest, Description: "client_id is required"}
	}

	client, err := oauth.clients.GetClient(ctx, query.ClientID)

	if err != nil {
		return nil, &OAuthError{Code: ErrorInvalidClient, Description: "client authentication failed"}
	}

	redirectURI, err := oauth.clients.ResolveRedirectURI(client, query.RedirectURI)

	if err != nil {
		return nil, &OAuthError{Code: ErrorInvalidRequest, Description: err.Error()}
	}

	// From here on errors are safe to deliver to the client via redirect.
	if query.ResponseType != "code" {
		return nil, &OAuthError{
			Code:        ErrorUnsupportedResponseType,
			Description: "only the code response type is supported",
			RedirectURI: redirectURI,
			State:       query.State,
		}
	}

	scopes, err := oauth.clients.ValidateScopes(client, SplitScopes(query.Scope))

	if err != nil {
		return nil, &OAuthError{
			Code:        ErrorInvalidScope,
			Description: err.Error(),
			RedirectURI: redirectURI,
			State:       query.State,
		}
	}

	if query.CodeChallenge == "" {
		return nil, &OAuthError{
			Code:        ErrorInvalidRequest,
			Description: "code_challenge is required",
			RedirectURI: redirectURI,
			State:       query.State,
		}
	}

	method := query.CodeChallengeMethod
	if method == "" {
		method = pkce.MethodS256
	}

	if method != pkce.MethodS256 {
		return nil, &OAuthError{
			Code:        ErrorInvalidRequest,
			Description: "only the S256 code_challenge_method is supported",
			RedirectURI: redirectURI,
			State:       query.State,
		}
	}

	if err := pkce.ValidateChallenge(query.CodeChallenge); err != nil {
		return nil, &OAuthError{
			Code:        ErrorInvalidRequest,
			Description: err.Error(),
			RedirectURI: redirectURI,
			State:       query.State,
		}
	}

	return &AuthorizationRequest{
		Client:              client,
		RedirectURI:         redirectURI,
		Scopes:              scopes,
		State:               query.State,
		GrantTypeID:         query.GrantTypeID,
		CodeChallenge:       query.CodeChallenge,
		CodeChallengeMethod: method,
	}, nil
}

// GenerateAuthorizationCode issues a single-use code for the approved grant.
func (oauth *OAuthService) GenerateAuthorizationCode(ctx context.Context, grant repository.PendingAuthorization) (string, error) {
	now := time.Now()
	code := uuid.New().String()

	err := oauth.queries.CreateAuthorizationCode(ctx, repository.AuthorizationCode{
		Code:                code,
		ClientID:            grant.ClientID,
		UserEmail:           grant.UserEmail,
		RedirectURI:         grant.RedirectURI,
		Scopes:              grant.Scopes,
		CodeChallenge:       grant.CodeChallenge,
		CodeChallengeMethod: grant.CodeChallengeMethod,
		ExpiresAt:           now.Add(time.Duration(oauth.config.AuthCodeExpiry) * time.Second).Unix(),
		CreatedAt:           now.Unix(),
	})

	if err != nil {
		return "", fmt.Errorf("failed to store authorization code: %w", err)
	}

	return code, nil
}

// RedeemAuthorizationCode exchanges a code for an access token. The code is
// consumed atomically so a replay loses even when requests race. All
// redemption failures report invalid_grant without detail.
func (oauth *OAuthService) RedeemAuthorizationCode(ctx context.Context, code string, clientID string, redirectURI string, verifier string) (*TokenResponse, error) {
	invalidGrant := &OAuthError{Code: ErrorInvalidGrant, Description: "the authorization code is invalid"}

	stored, err := oauth.queries.ConsumeAuthorizationCode(ctx, code)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidGrant
		}
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	if stored.ExpiresAt <= time.Now().Unix() {
		return nil, invalidGrant
	}

	if stored.ClientID != clientID {
		return nil, invalidGrant
	}

	if stored.RedirectURI != redirectURI {
		return nil, invalidGrant
	}

	if stored.CodeChallenge != "" {
		if err := pkce.ValidateVerifier(verifier); err != nil {
			return nil, invalidGrant
		}
		if err := pkce.VerifyS256(stored.CodeChallenge, verifier); err != nil {
			log.Debug().Str("client_id", clientID).Msg("PKCE verification failed")
			return nil, invalidGrant
		}
	}

	return oauth.issueAccessToken(ctx, stored.UserEmail, stored.ClientID, stored.Scopes)
}

func (oauth *OAuthService) issueAccessToken(ctx context.Context, email string, clientID string, scopes string) (*TokenResponse, error) {
	now := time.Now()
	expiry := time.Duration(oauth.config.AccessTokenExpiry) * time.Second
	tokenID := uuid.New().String()

	claims := jwt.MapClaims{
		"jti":       tokenID,
		"iss":       oauth.config.Issuer,
		"sub":       email,
		"aud":       clientID,
		"iat":       now.Unix(),
		"exp":       now.Add(expiry).Unix(),
		"scope":     scopes,
		"client_id": clientID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

	signed, err := token.SignedString(oauth.signingKey)

	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	err = oauth.queries.CreateAccessToken(ctx, repository.AccessToken{
		ID:        tokenID,
		UserEmail: email,
		ClientID:  clientID,
		Scopes:    canonicalScopes(SplitScopes(scopes)),
		ExpiresAt: now.Add(expiry).Unix(),
		CreatedAt: now.Unix(),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to record access token: %w", err)
	}

	return &TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   oauth.config.AccessTokenExpiry,
		Scope:       scopes,
	}, nil
}

// HasValidToken reports whether the user already holds a live token for this
// client with exactly these scopes, which lets the authorize flow skip the
// consent prompt.
func (oauth *OAuthService) HasValidToken(ctx context.Context, email string, clientID string, scopes []string) (bool, error) {
	count, err := oauth.queries.CountValidAccessTokens(ctx, email, clientID, canonicalScopes(scopes), time.Now().Unix())

	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// SplitScopes parses a space-delimited scope string, preserving order and
// dropping duplicates.
func SplitScopes(scope string) []string {
	fields := strings.Fields(scope)
	scopes := make([]string, 0, len(fields))
	seen := make(map[string]bool)

	for _, s := range fields {
		if seen[s] {
			continue
		}
		seen[s] = true
		scopes = append(scopes, s)
	}

	return scopes
}

func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// canonicalScopes sorts and joins scopes so equal sets compare equal as
// strings regardless of request order.
func canonicalScopes(scopes []string) string {
	sorted := make([]string, len(scopes))
	copy(sorted, scopes)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}
