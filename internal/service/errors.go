package service

import (
	"errors"
	"fmt"
	"strings"
)

// OAuth 2.0 error codes from RFC 6749.
const (
	ErrorInvalidRequest          = "invalid_request"
	ErrorInvalidClient           = "invalid_client"
	ErrorInvalidScope            = "invalid_scope"
	ErrorInvalidGrant            = "invalid_grant"
	ErrorAccessDenied            = "access_denied"
	ErrorUnsupportedResponseType = "unsupported_response_type"
	ErrorUnsupportedGrantType    = "unsupported_grant_type"
	ErrorServerError             = "server_error"
)

// Errors surfaced directly to the resource owner's browser, never redirected.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrRequestNotFound = errors.New("request not found")
)

// OAuthError is a protocol-level error. When RedirectURI is set the error is
// meant to be delivered to the client via redirect; otherwise no trusted
// redirect target was established and it is returned as JSON.
type OAuthError struct {
	Code        string
	Description string
	RedirectURI string
	State       string
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// ValidationErrors maps a field name to its failure messages, mirroring the
// 422 body shape of the authorize endpoint.
type ValidationErrors map[string][]string

func (e ValidationErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	return fmt.Sprintf("validation failed for %s", strings.Join(fields, ", "))
}
