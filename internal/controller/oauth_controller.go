package controller

import (
	"errors"
	"net/http"
	"net/url"

	"passgate/internal/middleware"
	"passgate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type TokenRequest struct {
	GrantType    string `form:"grant_type"`
	ClientID     string `form:"client_id"`
	RedirectURI  string `form:"redirect_uri"`
	Code         string `form:"code"`
	CodeVerifier string `form:"code_verifier"`
}

type OAuthController struct {
	router    *gin.RouterGroup
	authorize *service.AuthorizeService
	oauth     *service.OAuthService
	auth      *service.AuthService
	rateLimit *middleware.RateLimitMiddleware
}

func NewOAuthController(router *gin.RouterGroup, authorize *service.AuthorizeService, oauth *service.OAuthService, auth *service.AuthService, rateLimit *middleware.RateLimitMiddleware) *OAuthController {
	return &OAuthController{
		router:    router,
		authorize: authorize,
		oauth:     oauth,
		auth:      auth,
		rateLimit: rateLimit,
	}
}

func (controller *OAuthController) SetupRoutes() {
	controller.router.GET("/authorize", controller.authorizeHandler)
	controller.router.POST("/authorize", controller.approveHandler)
	controller.router.DELETE("/authorize", controller.denyHandler)
	controller.router.POST("/token", controller.rateLimit.Middleware(), controller.tokenHandler)
}

func (controller *OAuthController) authorizeHandler(c *gin.Context) {
	var query service.AuthorizeQuery
	var creds service.Credentials

	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             service.ErrorInvalidRequest,
			"error_description": "malformed query string",
		})
		return
	}

	// Credentials ride along in the query string. Their shape is checked by
	// the authorize service, not by binding, so both fields get reported.
	creds.Email = c.Query("email")
	creds.Password = c.Query("password")

	if locked, retryAfter := controller.auth.IsAccountLocked(creds.Email); locked {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "too_many_attempts",
			"error_description": "account is temporarily locked",
			"retry_after":       retryAfter,
		})
		return
	}

	result, err := controller.authorize.Authorize(c.Request.Context(), query, creds)

	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) && creds.Email != "" {
			controller.auth.RecordLoginAttempt(creds.Email, false)
		}
		controller.handleAuthorizeError(c, err)
		return
	}

	controller.auth.RecordLoginAttempt(creds.Email, true)
	controller.auth.SetSessionCookie(c, result.Session)

	switch result.Status {
	case service.StatusConsentRequired:
		c.JSON(http.StatusOK, result.Consent)
	default:
		c.Redirect(http.StatusFound, result.RedirectURI)
	}
}

func (controller *OAuthController) approveHandler(c *gin.Context) {
	session, authToken, ok := controller.consentAction(c)

	if !ok {
		return
	}

	result, err := controller.authorize.Approve(c.Request.Context(), session, authToken)

	if err != nil {
		controller.handleAuthorizeError(c, err)
		return
	}

	c.Redirect(http.StatusFound, result.RedirectURI)
}

func (controller *OAuthController) denyHandler(c *gin.Context) {
	session, authToken, ok := controller.consentAction(c)

	if !ok {
		return
	}

	result, err := controller.authorize.Deny(c.Request.Context(), session, authToken)

	if err != nil {
		controller.handleAuthorizeError(c, err)
		return
	}

	c.Redirect(http.StatusFound, result.RedirectURI)
}

// consentAction resolves the session cookie and auth token shared by the
// approve and deny handlers. A missing session is reported like a stale
// token so the response does not reveal whether the token ever existed.
func (controller *OAuthController) consentAction(c *gin.Context) (string, string, bool) {
	authToken := c.PostForm("auth_token")

	if authToken == "" {
		authToken = c.Query("auth_token")
	}

	session, err := controller.auth.GetSession(c)

	if err != nil || authToken == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "request_not_found"})
		return "", "", false
	}

	return session.UUID, authToken, true
}

func (controller *OAuthController) tokenHandler(c *gin.Context) {
	var req TokenRequest

	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             service.ErrorInvalidRequest,
			"error_description": "malformed request body",
		})
		return
	}

	if req.GrantType != "authorization_code" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             service.ErrorUnsupportedGrantType,
			"error_description": "only the authorization_code grant type is supported",
		})
		return
	}

	if req.ClientID == "" || req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             service.ErrorInvalidRequest,
			"error_description": "client_id and code are required",
		})
		return
	}

	token, err := controller.oauth.RedeemAuthorizationCode(c.Request.Context(), req.Code, req.ClientID, req.RedirectURI, req.CodeVerifier)

	if err != nil {
		var oauthErr *service.OAuthError

		if errors.As(err, &oauthErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             oauthErr.Code,
				"error_description": oauthErr.Description,
			})
			return
		}

		log.Error().Err(err).Msg("Failed to redeem authorization code")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             service.ErrorServerError,
			"error_description": "failed to issue token",
		})
		return
	}

	c.JSON(http.StatusOK, token)
}

func (controller *OAuthController) handleAuthorizeError(c *gin.Context, err error) {
	var validationErrors service.ValidationErrors
	var oauthErr *service.OAuthError

	switch {
	case errors.As(err, &validationErrors):
		c.JSON(http.StatusUnprocessableEntity, validationErrors)
	case errors.Is(err, service.ErrUserNotFound):
		c.Status(http.StatusNotFound)
	case errors.Is(err, service.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "request_not_found"})
	case errors.As(err, &oauthErr):
		if oauthErr.RedirectURI != "" {
			c.Redirect(http.StatusFound, buildErrorRedirect(oauthErr))
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             oauthErr.Code,
			"error_description": oauthErr.Description,
		})
	default:
		log.Error().Err(err).Msg("Authorize request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             service.ErrorServerError,
			"error_description": "an unexpected error occurred",
		})
	}
}

func buildErrorRedirect(oauthErr *service.OAuthError) string {
	parsed, err := url.Parse(oauthErr.RedirectURI)

	if err != nil {
		return oauthErr.RedirectURI
	}

	query := parsed.Query()
	query.Set("error", oauthErr.Code)
	query.Set("error_description", oauthErr.Description)

	if oauthErr.State != "" {
		query.Set("state", oauthErr.State)
	}

	parsed.RawQuery = query.Encode()
	return parsed.String()
}
