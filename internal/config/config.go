package config

// Version information, set at build time

var Version = "development"
var CommitHash = "development"
var BuildTimestamp = "0000-00-00T00:00:00Z"

// Cookie name template, suffixed with an instance id at bootstrap

var SessionCookieName = "passgate-session"

// Main app config

type Config struct {
	Port               int    `mapstructure:"port" validate:"required"`
	Address            string `validate:"required,ip4_addr" mapstructure:"address"`
	AppURL             string `validate:"required,url" mapstructure:"app-url"`
	DatabasePath       string `mapstructure:"database-path" validate:"required"`
	LogLevel           string `mapstructure:"log-level" validate:"oneof=trace debug info warn error fatal panic"`
	TrustedProxies     string `mapstructure:"trusted-proxies"`
	SecureCookie       bool   `mapstructure:"secure-cookie"`
	PathPrefix         string `mapstructure:"path-prefix"`
	GuardName          string `mapstructure:"guard-name" validate:"oneof=local ldap"`
	ConsentSkipDefault bool   `mapstructure:"consent-skip-default"`
	Users              string `mapstructure:"users"`
	UsersFile          string `mapstructure:"users-file"`
	ClientsFile        string `mapstructure:"clients-file"`
	SessionExpiry      int    `mapstructure:"session-expiry"`
	AuthCodeExpiry     int    `mapstructure:"auth-code-expiry"`
	AccessTokenExpiry  int    `mapstructure:"access-token-expiry"`
	LoginTimeout       int    `mapstructure:"login-timeout"`
	LoginMaxRetries    int    `mapstructure:"login-max-retries"`
	TokenRateLimit     int    `mapstructure:"token-rate-limit"`
	EnableDemoClient   bool   `mapstructure:"enable-demo-client"`
	DemoClientID       string `mapstructure:"demo-client-id"`
	LdapAddress        string `mapstructure:"ldap-address"`
	LdapBindDN         string `mapstructure:"ldap-bind-dn"`
	LdapBindPassword   string `mapstructure:"ldap-bind-password"`
	LdapBaseDN         string `mapstructure:"ldap-base-dn"`
	LdapInsecure       bool   `mapstructure:"ldap-insecure"`
	LdapSearchFilter   string `mapstructure:"ldap-search-filter"`
}

// User is a resource owner parsed from the users config. The password is a
// bcrypt hash, never plaintext.

type User struct {
	Email    string
	Name     string
	Password string
}

// ClientConfig is one entry of the clients file, synced into the database at
// bootstrap.

type ClientConfig struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	RedirectURIs      []string `json:"redirect_uris"`
	Scopes            []string `json:"scopes"`
	SkipAuthorization bool     `json:"skip_authorization"`
}
