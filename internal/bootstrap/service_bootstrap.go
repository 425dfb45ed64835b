package bootstrap

import (
	"fmt"

	"passgate/internal/config"
	"passgate/internal/repository"
	"passgate/internal/service"

	"github.com/rs/zerolog/log"
)

type Services struct {
	databaseService  *service.DatabaseService
	clientService    *service.ClientService
	ldapService      *service.LdapService
	authService      *service.AuthService
	oauthService     *service.OAuthService
	authorizeService *service.AuthorizeService
}

func (app *BootstrapApp) initServices() (Services, error) {
	services := Services{}

	databaseService := service.NewDatabaseService(service.DatabaseServiceConfig{
		DatabasePath: app.config.DatabasePath,
	})

	if err := databaseService.Init(); err != nil {
		return Services{}, err
	}

	services.databaseService = databaseService

	queries := repository.New(databaseService.GetDatabase())

	clientService := service.NewClientService(service.ClientServiceConfig{
		ClientsFile:        app.config.ClientsFile,
		ConsentSkipDefault: app.config.ConsentSkipDefault,
	}, queries)

	if err := clientService.Init(); err != nil {
		return Services{}, err
	}

	services.clientService = clientService

	var ldapService *service.LdapService

	if app.config.GuardName == "ldap" {
		if app.config.LdapAddress == "" {
			return Services{}, fmt.Errorf("the ldap guard is selected but no LDAP address is configured")
		}

		ldapService = service.NewLdapService(service.LdapServiceConfig{
			Address:      app.config.LdapAddress,
			BindDN:       app.config.LdapBindDN,
			BindPassword: app.config.LdapBindPassword,
			BaseDN:       app.config.LdapBaseDN,
			Insecure:     app.config.LdapInsecure,
			SearchFilter: app.config.LdapSearchFilter,
		})

		if err := ldapService.Init(); err != nil {
			return Services{}, err
		}

		services.ldapService = ldapService
		log.Info().Str("address", app.config.LdapAddress).Msg("LDAP guard initialized")
	}

	authService := service.NewAuthService(service.AuthServiceConfig{
		Users:             app.context.users,
		GuardName:         app.config.GuardName,
		SessionExpiry:     app.config.SessionExpiry,
		PendingExpiry:     app.config.AuthCodeExpiry,
		SecureCookie:      app.config.SecureCookie,
		SessionCookieName: config.SessionCookieName,
		LoginTimeout:      app.config.LoginTimeout,
		LoginMaxRetries:   app.config.LoginMaxRetries,
	}, ldapService, queries)

	services.authService = authService

	oauthService := service.NewOAuthService(service.OAuthServiceConfig{
		Issuer:            app.config.AppURL,
		AuthCodeExpiry:    app.config.AuthCodeExpiry,
		AccessTokenExpiry: app.config.AccessTokenExpiry,
	}, clientService, queries)

	if err := oauthService.Init(); err != nil {
		return Services{}, err
	}

	services.oauthService = oauthService

	services.authorizeService = service.NewAuthorizeService(oauthService, authService, clientService)

	return services, nil
}
