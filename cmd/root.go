package cmd

import (
	"passgate/cmd/user"
	"passgate/internal/bootstrap"
	"passgate/internal/config"
	"passgate/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "passgate",
	Short: "A small OAuth2 authorization server with password-credential authorize and PKCE.",
	Long:  `Passgate is an OAuth2 authorization-code server where the authorize endpoint accepts email/password credentials directly and clients can be flagged to skip the consent prompt.`,
	Run: func(cmd *cobra.Command, args []string) {
		log.Info().Msg("Parsing config")
		var conf config.Config
		err := viper.Unmarshal(&conf)
		HandleError(err, "Failed to parse config")

		log.Info().Msg("Validating config")
		validate := validator.New()
		err = validate.Struct(conf)
		HandleError(err, "Invalid config")

		zerolog.SetGlobalLevel(utils.GetLogLevel(conf.LogLevel))

		app := bootstrap.NewBootstrapApp(conf)
		err = app.Setup()
		HandleError(err, "Failed to start app")
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}

func HandleError(err error, msg string) {
	if err != nil {
		log.Fatal().Err(err).Msg(msg)
	}
}

func init() {
	rootCmd.AddCommand(user.UserCmd())
	viper.AutomaticEnv()
	rootCmd.Flags().Int("port", 3000, "Port to run the server on.")
	rootCmd.Flags().String("address", "0.0.0.0", "Address to bind the server to.")
	rootCmd.Flags().String("app-url", "", "The passgate URL.")
	rootCmd.Flags().String("database-path", "/data/passgate.db", "Path to the sqlite database file.")
	rootCmd.Flags().String("log-level", "info", "Log level.")
	rootCmd.Flags().String("trusted-proxies", "", "Comma separated list of trusted proxies.")
	rootCmd.Flags().Bool("secure-cookie", false, "Send cookie over secure connection only.")
	rootCmd.Flags().String("path-prefix", "oauth", "Route namespace for the OAuth endpoints.")
	rootCmd.Flags().String("guard-name", "local", "Credential store used to resolve users (local or ldap).")
	rootCmd.Flags().Bool("consent-skip-default", false, "Skip the consent prompt for every client, regardless of the per-client flag.")
	rootCmd.Flags().String("users", "", "Comma separated list of users in the format email:bcrypt-hashed-password or email:bcrypt-hashed-password:name.")
	rootCmd.Flags().String("users-file", "", "Path to a file containing users, one per line.")
	rootCmd.Flags().String("clients-file", "", "Path to a JSON file with the registered OAuth clients.")
	rootCmd.Flags().Int("session-expiry", 86400, "Session expiration time in seconds.")
	rootCmd.Flags().Int("auth-code-expiry", 600, "Authorization code expiration time in seconds.")
	rootCmd.Flags().Int("access-token-expiry", 3600, "Access token expiration time in seconds.")
	rootCmd.Flags().Int("login-timeout", 300, "Duration in seconds an account stays locked after too many failed logins.")
	rootCmd.Flags().Int("login-max-retries", 5, "Failed login attempts before an account is locked (0 to disable).")
	rootCmd.Flags().Int("token-rate-limit", 10, "Requests per second allowed per IP on the token endpoint (0 to disable).")
	rootCmd.Flags().Bool("enable-demo-client", false, "Enable the /redirect and /callback demo client routes.")
	rootCmd.Flags().String("demo-client-id", "", "Client id used by the demo client routes.")
	rootCmd.Flags().String("ldap-address", "", "LDAP server address.")
	rootCmd.Flags().String("ldap-bind-dn", "", "LDAP bind DN.")
	rootCmd.Flags().String("ldap-bind-password", "", "LDAP bind password.")
	rootCmd.Flags().String("ldap-base-dn", "", "LDAP base DN.")
	rootCmd.Flags().Bool("ldap-insecure", false, "Skip TLS verification for LDAP.")
	rootCmd.Flags().String("ldap-search-filter", "(mail=%s)", "LDAP search filter for resolving users by email.")
	viper.BindEnv("port", "PORT")
	viper.BindEnv("address", "ADDRESS")
	viper.BindEnv("app-url", "APP_URL")
	viper.BindEnv("database-path", "DATABASE_PATH")
	viper.BindEnv("log-level", "LOG_LEVEL")
	viper.BindEnv("trusted-proxies", "TRUSTED_PROXIES")
	viper.BindEnv("secure-cookie", "SECURE_COOKIE")
	viper.BindEnv("path-prefix", "PATH_PREFIX")
	viper.BindEnv("guard-name", "GUARD_NAME")
	viper.BindEnv("consent-skip-default", "CONSENT_SKIP_DEFAULT")
	viper.BindEnv("users", "USERS")
	viper.BindEnv("users-file", "USERS_FILE")
	viper.BindEnv("clients-file", "CLIENTS_FILE")
	viper.BindEnv("session-expiry", "SESSION_EXPIRY")
	viper.BindEnv("auth-code-expiry", "AUTH_CODE_EXPIRY")
	viper.BindEnv("access-token-expiry", "ACCESS_TOKEN_EXPIRY")
	viper.BindEnv("login-timeout", "LOGIN_TIMEOUT")
	viper.BindEnv("login-max-retries", "LOGIN_MAX_RETRIES")
	viper.BindEnv("token-rate-limit", "TOKEN_RATE_LIMIT")
	viper.BindEnv("enable-demo-client", "ENABLE_DEMO_CLIENT")
	viper.BindEnv("demo-client-id", "DEMO_CLIENT_ID")
	viper.BindEnv("ldap-address", "LDAP_ADDRESS")
	viper.BindEnv("ldap-bind-dn", "LDAP_BIND_DN")
	viper.BindEnv("ldap-bind-password", "LDAP_BIND_PASSWORD")
	viper.BindEnv("ldap-base-dn", "LDAP_BASE_DN")
	viper.BindEnv("ldap-insecure", "LDAP_INSECURE")
	viper.BindEnv("ldap-search-filter", "LDAP_SEARCH_FILTER")
	viper.BindPFlags(rootCmd.Flags())
}
