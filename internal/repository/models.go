package repository

// Client is a registered OAuth client. RedirectURIs and Scopes are stored as
// JSON arrays.
type Client struct {
	ID                string
	Name              string
	RedirectURIs      string
	Scopes            string
	SkipAuthorization bool
	CreatedAt         int64
	UpdatedAt         int64
}

// Session is a logged-in resource owner, referenced by the session cookie.
type Session struct {
	UUID      string
	Email     string
	Name      string
	Guard     string
	ExpiresAt int64
	CreatedAt int64
}

// PendingAuthorization is an authorization request parked between the consent
// prompt and the later approve/deny call, keyed by an opaque auth token.
type PendingAuthorization struct {
	AuthToken           string
	SessionUUID         string
	ClientID            string
	UserEmail           string
	RedirectURI         string
	Scopes              string
	State               string
	GrantType           string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           int64
	CreatedAt           int64
}

// AuthorizationCode is a single-use code bound to the approved request.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	UserEmail           string
	RedirectURI         string
	Scopes              string
	CodeChallenge       string
	CodeChallengeMethod string
	Used                bool
	ExpiresAt           int64
	CreatedAt           int64
}

// AccessToken records an issued token so later authorize calls can silently
// re-approve the same (user, client, scopes) grant.
type AccessToken struct {
	ID        string
	UserEmail string
	ClientID  string
	Scopes    string
	Revoked   bool
	ExpiresAt int64
	CreatedAt int64
}

// SigningKey holds the PEM-encoded RSA key used to sign access tokens.
type SigningKey struct {
	ID         int64
	PrivateKey string
	CreatedAt  int64
}
