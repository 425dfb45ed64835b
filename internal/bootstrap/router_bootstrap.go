package bootstrap

import (
	"fmt"
	"strings"

	"passgate/internal/controller"
	"passgate/internal/middleware"

	"github.com/gin-gonic/gin"
)

func (app *BootstrapApp) setupRouter() (*gin.Engine, error) {
	engine := gin.New()
	engine.Use(gin.Recovery())

	if len(app.config.TrustedProxies) > 0 {
		err := engine.SetTrustedProxies(strings.Split(app.config.TrustedProxies, ","))

		if err != nil {
			return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
		}
	}

	zerologMiddleware := middleware.NewZerologMiddleware()

	if err := zerologMiddleware.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize zerolog middleware: %w", err)
	}

	engine.Use(zerologMiddleware.Middleware())

	rateLimitMiddleware := middleware.NewRateLimitMiddleware(middleware.RateLimitMiddlewareConfig{
		Limit: app.config.TokenRateLimit,
		Burst: app.config.TokenRateLimit * 2,
	})

	if err := rateLimitMiddleware.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize rate limit middleware: %w", err)
	}

	oauthRouter := engine.Group(app.context.pathPrefix)

	oauthController := controller.NewOAuthController(oauthRouter, app.services.authorizeService, app.services.oauthService, app.services.authService, rateLimitMiddleware)

	oauthController.SetupRoutes()

	apiRouter := engine.Group("/api")

	healthController := controller.NewHealthController(apiRouter)

	healthController.SetupRoutes()

	if app.config.EnableDemoClient {
		demoController := controller.NewDemoController(controller.DemoControllerConfig{
			AppURL:       app.config.AppURL,
			PathPrefix:   app.context.pathPrefix,
			ClientID:     app.config.DemoClientID,
			SecureCookie: app.config.SecureCookie,
		}, &engine.RouterGroup)

		demoController.SetupRoutes()
	}

	return engine, nil
}
