package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"passgate/internal/config"
	"passgate/internal/controller"
	"passgate/internal/middleware"
	"passgate/internal/pkce"
	"passgate/internal/repository"
	"passgate/internal/service"

	"github.com/gin-gonic/gin"
	"gotest.tools/v3/assert"
)

var testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

// bcrypt hash of "test"
var testPasswordHash = "$2a$10$ne6z693sTgzT3ePoQ05PgOecUHnBjM7sSNj6M.l5CLUP.f6NyCnt."

func setupOAuthController(t *testing.T, maxRetries int) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/oauth")

	databaseService := service.NewDatabaseService(service.DatabaseServiceConfig{
		DatabasePath: ":memory:",
	})

	assert.NilError(t, databaseService.Init())

	queries := repository.New(databaseService.GetDatabase())

	clientService := service.NewClientService(service.ClientServiceConfig{}, queries)

	err := clientService.SyncClients(context.Background(), []config.ClientConfig{
		{
			ID:                "skip-client",
			Name:              "Skip Client",
			RedirectURIs:      []string{"http://client.example/cb"},
			Scopes:            []string{"read", "write"},
			SkipAuthorization: true,
		},
		{
			ID:           "consent-client",
			Name:         "Consent Client",
			RedirectURIs: []string{"http://client.example/cb"},
			Scopes:       []string{"read", "write"},
		},
		{
			ID:           "query-client",
			Name:         "Query Client",
			RedirectURIs: []string{"http://client.example/cb?foo=bar"},
			Scopes:       []string{"read"},
		},
	})

	assert.NilError(t, err)

	authService := service.NewAuthService(service.AuthServiceConfig{
		Users: []config.User{
			{
				Email:    "user@example.com",
				Name:     "Test User",
				Password: testPasswordHash,
			},
		},
		GuardName:         "local",
		SessionExpiry:     3600,
		PendingExpiry:     600,
		SessionCookieName: "passgate-session",
		LoginTimeout:      300,
		LoginMaxRetries:   maxRetries,
	}, nil, queries)

	oauthService := service.NewOAuthService(service.OAuthServiceConfig{
		Issuer:            "http://localhost:3000",
		AuthCodeExpiry:    600,
		AccessTokenExpiry: 3600,
	}, clientService, queries)

	assert.NilError(t, oauthService.Init())

	authorizeService := service.NewAuthorizeService(oauthService, authService, clientService)

	rateLimitMiddleware := middleware.NewRateLimitMiddleware(middleware.RateLimitMiddlewareConfig{})

	assert.NilError(t, rateLimitMiddleware.Init())

	ctrl := controller.NewOAuthController(group, authorizeService, oauthService, authService, rateLimitMiddleware)
	ctrl.SetupRoutes()

	return router
}

func authorizeURL(clientID string, extra map[string]string) string {
	values := url.Values{}
	values.Set("client_id", clientID)
	values.Set("redirect_uri", "http://client.example/cb")
	values.Set("response_type", "code")
	values.Set("scope", "read write")
	values.Set("state", "opaque-state")
	values.Set("code_challenge", pkce.ChallengeS256(testVerifier))
	values.Set("code_challenge_method", pkce.MethodS256)
	values.Set("email", "user@example.com")
	values.Set("password", "test")

	for key, value := range extra {
		if value == "" {
			values.Del(key)
			continue
		}
		values.Set(key, value)
	}

	return "/oauth/authorize?" + values.Encode()
}

func doRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func exchangeCode(t *testing.T, router *gin.Engine, code string, verifier string) *httptest.ResponseRecorder {
	t.Helper()

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", "skip-client")
	form.Set("redirect_uri", "http://client.example/cb")
	form.Set("code", code)
	form.Set("code_verifier", verifier)

	req, err := http.NewRequest("POST", "/oauth/token", strings.NewReader(form.Encode()))
	assert.NilError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return doRequest(router, req)
}

func locationQueryParam(t *testing.T, recorder *httptest.ResponseRecorder, name string) string {
	t.Helper()

	location, err := url.Parse(recorder.Header().Get("Location"))
	assert.NilError(t, err)

	return location.Query().Get(name)
}

func TestAuthorizeCodeExchangeRoundTrip(t *testing.T) {
	router := setupOAuthController(t, 0)

	req, err := http.NewRequest("GET", authorizeURL("skip-client", nil), nil)
	assert.NilError(t, err)

	recorder := doRequest(router, req)

	assert.Equal(t, recorder.Code, http.StatusFound)
	assert.Equal(t, locationQueryParam(t, recorder, "state"), "opaque-state")

	code := locationQueryParam(t, recorder, "code")
	assert.Assert(t, code != "")

	// Exchange the code
	tokenRecorder := exchangeCode(t, router, code, testVerifier)

	assert.Equal(t, tokenRecorder.Code, http.StatusOK)

	var token service.TokenResponse
	assert.NilError(t, json.Unmarshal(tokenRecorder.Body.Bytes(), &token))
	assert.Equal(t, token.TokenType, "Bearer")
	assert.Assert(t, token.AccessToken != "")

	// The code is single use
	replayRecorder := exchangeCode(t, router, code, testVerifier)

	assert.Equal(t, replayRecorder.Code, http.StatusBadRequest)
	assert.Assert(t, strings.Contains(replayRecorder.Body.String(), service.ErrorInvalidGrant))
}

func TestAuthorizeConsentFlow(t *testing.T) {
	router := setupOAuthController(t, 0)

	req, err := http.NewRequest("GET", authorizeURL("consent-client", nil), nil)
	assert.NilError(t, err)

	recorder := doRequest(router, req)

	assert.Equal(t, recorder.Code, http.StatusOK)

	var consent service.ConsentPrompt
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &consent))
	assert.Equal(t, consent.Client.ID, "consent-client")
	assert.Equal(t, consent.User.Email, "user@example.com")
	assert.Assert(t, consent.AuthToken != "")

	cookies := recorder.Result().Cookies()
	assert.Assert(t, len(cookies) > 0)

	// Approve with the session cookie and auth token
	form := url.Values{}
	form.Set("auth_token", consent.AuthToken)

	approveReq, err := http.NewRequest("POST", "/oauth/authorize", strings.NewReader(form.Encode()))
	assert.NilError(t, err)
	approveReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	for _, cookie := range cookies {
		approveReq.AddCookie(cookie)
	}

	approveRecorder := doRequest(router, approveReq)

	assert.Equal(t, approveRecorder.Code, http.StatusFound)
	assert.Assert(t, locationQueryParam(t, approveRecorder, "code") != "")

	// A replayed approve is a stale request
	replayReq, err := http.NewRequest("POST", "/oauth/authorize", strings.NewReader(form.Encode()))
	assert.NilError(t, err)
	replayReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	for _, cookie := range cookies {
		replayReq.AddCookie(cookie)
	}

	replayRecorder := doRequest(router, replayReq)

	assert.Equal(t, replayRecorder.Code, http.StatusNotFound)
	assert.Assert(t, strings.Contains(replayRecorder.Body.String(), "request_not_found"))
}

func TestDenyRedirectsBack(t *testing.T) {
	router := setupOAuthController(t, 0)

	req, err := http.NewRequest("GET", authorizeURL("consent-client", nil), nil)
	assert.NilError(t, err)

	recorder := doRequest(router, req)

	assert.Equal(t, recorder.Code, http.StatusOK)

	var consent service.ConsentPrompt
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &consent))

	denyReq, err := http.NewRequest("DELETE", "/oauth/authorize?auth_token="+consent.AuthToken, nil)
	assert.NilError(t, err)

	for _, cookie := range recorder.Result().Cookies() {
		denyReq.AddCookie(cookie)
	}

	denyRecorder := doRequest(router, denyReq)

	assert.Equal(t, denyRecorder.Code, http.StatusFound)
	assert.Assert(t, strings.Contains(denyRecorder.Header().Get("Location"), "error=access_denied"))
}

func TestApproveWithoutSessionIsNotFound(t *testing.T) {
	router := setupOAuthController(t, 0)

	form := url.Values{}
	form.Set("auth_token", "whatever")

	req, err := http.NewRequest("POST", "/oauth/authorize", strings.NewReader(form.Encode()))
	assert.NilError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	recorder := doRequest(router, req)

	assert.Equal(t, recorder.Code, http.StatusNotFound)
}

func TestAuthorizeValidationErrorBody(t *testing.T) {
	router := setupOAuthController(t, 0)

	req, err := http.NewRequest("GET", authorizeURL("skip-client", map[string]string{
		"email":    "",
		"password": "",
	}), nil)
	assert.NilError(t, err)

	recorder := doRequest(router, req)

	assert.Equal(t, recorder.Code, http.StatusUnprocessableEntity)

	var body map[string][]string
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Assert(t, len(body["email"]) > 0)
	assert.Assert(t, len(body["password"]) > 0)
}

func TestAuthorizeUnknownUserIsEmpty404(t *testing.T) {
	router := setupOAuthController(t, 0)

	req, err := http.NewRequest("GET", authorizeURL("skip-client", map[string]string{
		"email": "ghost@example.com",
	}), nil)
	assert.NilError(t, err)

	recorder := doRequest(router, req)

	assert.Equal(t, recorder.Code, http.StatusNotFound)
	assert.Equal(t, recorder.Body.Len(), 0)
}

func TestAuthorizeUnknownClientIsJSONError(t *testing.T) {
	router := setupOAuthController(t, 0)

	req, err := http.NewRequest("GET", authorizeURL("nope", nil), nil)
	assert.NilError(t, err)

	recorder := doRequest(router, req)

	assert.Equal(t, recorder.Code, http.StatusBadRequest)
	assert.Assert(t, strings.Contains(recorder.Body.String(), service.ErrorInvalidClient))
}

func TestAuthorizeRedirectableErrorCarriesState(t *testing.T) {
	router := setupOAuthController(t, 0)

	req, err := http.NewRequest("GET", authorizeURL("skip-client", map[string]string{
		"response_type": "token",
	}), nil)
	assert.NilError(t, err)

	recorder := doRequest(router, req)

	assert.Equal(t, recorder.Code, http.StatusFound)
	assert.Equal(t, locationQueryParam(t, recorder, "error"), service.ErrorUnsupportedResponseType)
	assert.Equal(t, locationQueryParam(t, recorder, "state"), "opaque-state")
}

func TestPromptNoneAppendsToExistingQueryString(t *testing.T) {
	router := setupOAuthController(t, 0)

	req, err := http.NewRequest("GET", authorizeURL("query-client", map[string]string{
		"redirect_uri": "http://client.example/cb?foo=bar",
		"scope":        "read",
		"prompt":       "none",
	}), nil)
	assert.NilError(t, err)

	recorder := doRequest(router, req)

	assert.Equal(t, recorder.Code, http.StatusFound)
	assert.Equal(t, recorder.Header().Get("Location"), "http://client.example/cb?foo=bar&state=opaque-state&error=access_denied&error_description=Unauthenticated")
}

func TestTokenUnsupportedGrantType(t *testing.T) {
	router := setupOAuthController(t, 0)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequest("POST", "/oauth/token", strings.NewReader(form.Encode()))
	assert.NilError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	recorder := doRequest(router, req)

	assert.Equal(t, recorder.Code, http.StatusBadRequest)
	assert.Assert(t, strings.Contains(recorder.Body.String(), service.ErrorUnsupportedGrantType))
}

func TestAccountLocksAfterFailedLogins(t *testing.T) {
	router := setupOAuthController(t, 2)

	failing := authorizeURL("skip-client", map[string]string{"password": "wrong"})

	for i := 0; i < 2; i++ {
		req, err := http.NewRequest("GET", failing, nil)
		assert.NilError(t, err)

		recorder := doRequest(router, req)
		assert.Equal(t, recorder.Code, http.StatusNotFound)
	}

	// Even the correct password is rejected while locked
	req, err := http.NewRequest("GET", authorizeURL("skip-client", nil), nil)
	assert.NilError(t, err)

	recorder := doRequest(router, req)

	assert.Equal(t, recorder.Code, http.StatusTooManyRequests)
	assert.Assert(t, strings.Contains(recorder.Body.String(), "too_many_attempts"))
}
