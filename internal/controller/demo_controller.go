package controller

import (
	"crypto/subtle"
	"net/http"
	"time"

	"passgate/internal/pkce"

	"github.com/cenkalti/backoff/v5"
	"github.com/gin-gonic/gin"
	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	demoStateCookie    = "passgate-demo-state"
	demoVerifierCookie = "passgate-demo-verifier"
	demoCookieExpiry   = 600
)

type demoAuthorizeParams struct {
	ClientID            string `url:"client_id"`
	RedirectURI         string `url:"redirect_uri"`
	ResponseType        string `url:"response_type"`
	Scope               string `url:"scope"`
	State               string `url:"state"`
	CodeChallenge       string `url:"code_challenge"`
	CodeChallengeMethod string `url:"code_challenge_method"`
	Email               string `url:"email,omitempty"`
	Password            string `url:"password,omitempty"`
}

type DemoControllerConfig struct {
	AppURL       string
	PathPrefix   string
	ClientID     string
	Scope        string
	SecureCookie bool
}

// DemoController implements a built-in confidential-less demo client that
// walks the full authorization code + PKCE round trip against this server.
type DemoController struct {
	config DemoControllerConfig
	router *gin.RouterGroup
}

func NewDemoController(config DemoControllerConfig, router *gin.RouterGroup) *DemoController {
	return &DemoController{
		config: config,
		router: router,
	}
}

func (controller *DemoController) SetupRoutes() {
	controller.router.GET("/redirect", controller.redirectHandler)
	controller.router.GET("/callback", controller.callbackHandler)
}

func (controller *DemoController) redirectHandler(c *gin.Context) {
	verifier, err := pkce.GenerateVerifier(pkce.DefaultVerifierLength)

	if err != nil {
		log.Error().Err(err).Msg("Failed to generate PKCE verifier")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	state := uuid.New().String()

	c.SetCookie(demoStateCookie, state, demoCookieExpiry, "/", "", controller.config.SecureCookie, true)
	c.SetCookie(demoVerifierCookie, verifier, demoCookieExpiry, "/", "", controller.config.SecureCookie, true)

	params := demoAuthorizeParams{
		ClientID:            controller.config.ClientID,
		RedirectURI:         controller.config.AppURL + "/callback",
		ResponseType:        "code",
		Scope:               controller.config.Scope,
		State:               state,
		CodeChallenge:       pkce.ChallengeS256(verifier),
		CodeChallengeMethod: pkce.MethodS256,
		Email:               c.Query("email"),
		Password:            c.Query("password"),
	}

	values, err := query.Values(params)

	if err != nil {
		log.Error().Err(err).Msg("Failed to encode authorize parameters")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.Redirect(http.StatusFound, controller.config.AppURL+controller.config.PathPrefix+"/authorize?"+values.Encode())
}

func (controller *DemoController) callbackHandler(c *gin.Context) {
	state, err := c.Cookie(demoStateCookie)

	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(c.Query("state"))) != 1 {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid_state"})
		return
	}

	verifier, err := c.Cookie(demoVerifierCookie)

	if err != nil || verifier == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "missing_verifier"})
		return
	}

	c.SetCookie(demoStateCookie, "", -1, "/", "", controller.config.SecureCookie, true)
	c.SetCookie(demoVerifierCookie, "", -1, "/", "", controller.config.SecureCookie, true)

	if errorCode := c.Query("error"); errorCode != "" {
		c.JSON(http.StatusOK, gin.H{
			"error":             errorCode,
			"error_description": c.Query("error_description"),
		})
		return
	}

	conf := oauth2.Config{
		ClientID:    controller.config.ClientID,
		RedirectURL: controller.config.AppURL + "/callback",
		Endpoint: oauth2.Endpoint{
			TokenURL: controller.config.AppURL + controller.config.PathPrefix + "/token",
		},
	}

	// The token endpoint is rate limited, so the exchange backs off and
	// retries a few times instead of failing on the first 429.
	token, err := backoff.Retry(c.Request.Context(), func() (*oauth2.Token, error) {
		return conf.Exchange(c.Request.Context(), c.Query("code"), oauth2.VerifierOption(verifier))
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))

	if err != nil {
		log.Error().Err(err).Msg("Demo token exchange failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "exchange_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token.AccessToken,
		"token_type":   token.TokenType,
		"expires_in":   int(time.Until(token.Expiry).Seconds()),
	})
}
