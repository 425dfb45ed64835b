package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"passgate/internal/config"
	"passgate/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const (
	StatusApproved        = "approved"
	StatusDenied          = "denied"
	StatusConsentRequired = "consent_required"
)

const (
	PromptNone    = "none"
	PromptConsent = "consent"
)

// Credentials are the resource owner's login fields carried alongside the
// authorize request.
type Credentials struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

// ConsentUser is the resource owner as shown on the consent prompt.
type ConsentUser struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// ConsentPrompt is the view model returned when the request awaits an
// explicit approve or deny call.
type ConsentPrompt struct {
	Client    *Client     `json:"client"`
	User      ConsentUser `json:"user"`
	Scopes    []string    `json:"scopes"`
	AuthToken string      `json:"auth_token"`
}

// AuthorizeResult is the outcome of an authorize call. RedirectURI is set for
// approved and denied outcomes, Consent for consent_required.
type AuthorizeResult struct {
	Status      string
	RedirectURI string
	Session     repository.Session
	Consent     *ConsentPrompt
}

// AuthorizeService runs the authorization decision flow on top of the
// validated request: login, consent policy, approval and denial.
type AuthorizeService struct {
	oauth     *OAuthService
	auth      *AuthService
	clients   *ClientService
	validator *validator.Validate
}

func NewAuthorizeService(oauth *OAuthService, auth *AuthService, clients *ClientService) *AuthorizeService {
	return &AuthorizeService{
		oauth:     oauth,
		auth:      auth,
		clients:   clients,
		validator: validator.New(),
	}
}

// Authorize validates the request, logs the resource owner in and decides
// between immediate approval, denial and the consent prompt.
//
// The OAuth parameters are checked before the credentials so a misconfigured
// client is reported even when the login fields are missing.
func (as *AuthorizeService) Authorize(ctx context.Context, query AuthorizeQuery, creds Credentials) (*AuthorizeResult, error) {
	request, err := as.oauth.ValidateAuthorizationRequest(ctx, query)

	if err != nil {
		return nil, err
	}

	if err := as.validateCredentials(creds); err != nil {
		return nil, err
	}

	user, err := as.auth.FindUser(ctx, creds.Email)

	if err != nil {
		return nil, ErrUserNotFound
	}

	// A wrong password is reported exactly like an unknown email so the
	// endpoint cannot be used to probe which accounts exist.
	if !as.auth.VerifyUser(user, creds.Password) {
		return nil, ErrUserNotFound
	}

	session, err := as.auth.CreateSession(ctx, user.Email, user.Name)

	if err != nil {
		return nil, err
	}

	log.Debug().Str("email", user.Email).Str("client_id", request.Client.ID).Msg("Resource owner authenticated for authorize request")

	if query.Prompt == PromptConsent {
		return as.requireConsent(ctx, session, user, request)
	}

	approved := as.clients.SkipsAuthorization(request.Client)

	if !approved {
		approved, err = as.oauth.HasValidToken(ctx, user.Email, request.Client.ID, request.Scopes)
		if err != nil {
			return nil, err
		}
	}

	if approved {
		return as.approve(ctx, session, repository.PendingAuthorization{
			SessionUUID:         session.UUID,
			ClientID:            request.Client.ID,
			UserEmail:           user.Email,
			RedirectURI:         request.RedirectURI,
			Scopes:              JoinScopes(request.Scopes),
			State:               request.State,
			GrantType:           request.GrantTypeID,
			CodeChallenge:       request.CodeChallenge,
			CodeChallengeMethod: request.CodeChallengeMethod,
		})
	}

	if query.Prompt == PromptNone {
		// The request was not silently approvable, so the non-interactive
		// client is turned away at the client's primary redirect URI.
		return &AuthorizeResult{
			Status:      StatusDenied,
			Session:     session,
			RedirectURI: buildDeniedRedirect(request.Client.RedirectURIs[0], request.State, request.GrantTypeID, "Unauthenticated"),
		}, nil
	}

	return as.requireConsent(ctx, session, user, request)
}

// Approve redeems a pending request into an authorization code redirect. The
// auth token is single-use; a replay fails with ErrRequestNotFound.
func (as *AuthorizeService) Approve(ctx context.Context, sessionUUID string, authToken string) (*AuthorizeResult, error) {
	pending, err := as.auth.TakePendingAuthorization(ctx, authToken, sessionUUID)

	if err != nil {
		return nil, err
	}

	return as.approve(ctx, repository.Session{UUID: sessionUUID}, pending)
}

// Deny discards a pending request and redirects back with access_denied.
func (as *AuthorizeService) Deny(ctx context.Context, sessionUUID string, authToken string) (*AuthorizeResult, error) {
	pending, err := as.auth.TakePendingAuthorization(ctx, authToken, sessionUUID)

	if err != nil {
		return nil, err
	}

	log.Info().Str("client_id", pending.ClientID).Str("email", pending.UserEmail).Msg("Authorization request denied by resource owner")

	return &AuthorizeResult{
		Status:      StatusDenied,
		RedirectURI: buildDeniedRedirect(pending.RedirectURI, pending.State, pending.GrantType, "The resource owner denied the request"),
	}, nil
}

func (as *AuthorizeService) approve(ctx context.Context, session repository.Session, grant repository.PendingAuthorization) (*AuthorizeResult, error) {
	code, err := as.oauth.GenerateAuthorizationCode(ctx, grant)

	if err != nil {
		return nil, err
	}

	redirect, err := buildApprovedRedirect(grant.RedirectURI, code, grant.State)

	if err != nil {
		return nil, err
	}

	log.Info().Str("client_id", grant.ClientID).Str("email", grant.UserEmail).Msg("Authorization request approved")

	return &AuthorizeResult{
		Status:      StatusApproved,
		Session:     session,
		RedirectURI: redirect,
	}, nil
}

func (as *AuthorizeService) requireConsent(ctx context.Context, session repository.Session, user *config.User, request *AuthorizationRequest) (*AuthorizeResult, error) {
	authToken, err := as.auth.StorePendingAuthorization(ctx, repository.PendingAuthorization{
		SessionUUID:         session.UUID,
		ClientID:            request.Client.ID,
		UserEmail:           user.Email,
		RedirectURI:         request.RedirectURI,
		Scopes:              JoinScopes(request.Scopes),
		State:               request.State,
		GrantType:           request.GrantTypeID,
		CodeChallenge:       request.CodeChallenge,
		CodeChallengeMethod: request.CodeChallengeMethod,
	})

	if err != nil {
		return nil, err
	}

	return &AuthorizeResult{
		Status:  StatusConsentRequired,
		Session: session,
		Consent: &ConsentPrompt{
			Client:    request.Client,
			User:      ConsentUser{Email: user.Email, Name: user.Name},
			Scopes:    request.Scopes,
			AuthToken: authToken,
		},
	}, nil
}

func (as *AuthorizeService) validateCredentials(creds Credentials) error {
	err := as.validator.Struct(creds)

	if err == nil {
		return nil
	}

	fieldErrors, ok := err.(validator.ValidationErrors)

	if !ok {
		return err
	}

	errors := make(ValidationErrors)

	for _, fieldError := range fieldErrors {
		field := strings.ToLower(fieldError.Field())

		switch fieldError.Tag() {
		case "required":
			errors[field] = append(errors[field], fmt.Sprintf("The %s field is required.", field))
		case "email":
			errors[field] = append(errors[field], fmt.Sprintf("The %s field must be a valid email address.", field))
		default:
			errors[field] = append(errors[field], fmt.Sprintf("The %s field is invalid.", field))
		}
	}

	return errors
}

// buildApprovedRedirect appends code and state to the redirect URI, keeping
// any query parameters the client registered.
func buildApprovedRedirect(redirectURI string, code string, state string) (string, error) {
	parsed, err := url.Parse(redirectURI)

	if err != nil {
		return "", fmt.Errorf("failed to parse redirect URI: %w", err)
	}

	query := parsed.Query()
	query.Set("code", code)

	if state != "" {
		query.Set("state", state)
	}

	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// buildDeniedRedirect appends the access_denied error to the redirect URI by
// raw string concatenation so the URI and state are carried untouched. The
// implicit grant gets a fragment, everything else a query string.
func buildDeniedRedirect(redirectURI string, state string, grantTypeID string, description string) string {
	separator := "?"

	if grantTypeID == "implicit" {
		separator = "#"
	}

	if strings.Contains(redirectURI, separator) {
		separator = "&"
	}

	var builder strings.Builder
	builder.WriteString(redirectURI)
	builder.WriteString(separator)

	if state != "" {
		builder.WriteString("state=")
		builder.WriteString(state)
		builder.WriteString("&")
	}

	builder.WriteString("error=")
	builder.WriteString(ErrorAccessDenied)
	builder.WriteString("&error_description=")
	builder.WriteString(url.QueryEscape(description))

	return builder.String()
}
