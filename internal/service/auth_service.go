package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"passgate/internal/config"
	"passgate/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type LoginAttempt struct {
	FailedAttempts int
	LastAttempt    time.Time
	LockedUntil    time.Time
}

type AuthServiceConfig struct {
	Users             []config.User
	GuardName         string
	SessionExpiry     int
	PendingExpiry     int
	SecureCookie      bool
	SessionCookieName string
	LoginTimeout      int
	LoginMaxRetries   int
}

// AuthService owns resource-owner lookup (through the configured guard),
// login sessions and the pending-consent store.
type AuthService struct {
	config        AuthServiceConfig
	ldap          *LdapService
	queries       *repository.Queries
	loginAttempts map[string]*LoginAttempt
	loginMutex    sync.RWMutex
}

func NewAuthService(config AuthServiceConfig, ldap *LdapService, queries *repository.Queries) *AuthService {
	return &AuthService{
		config:        config,
		ldap:          ldap,
		queries:       queries,
		loginAttempts: make(map[string]*LoginAttempt),
	}
}

// FindUser resolves an email through the configured guard. ErrUserNotFound is
// returned for unknown emails regardless of guard.
func (auth *AuthService) FindUser(ctx context.Context, email string) (*config.User, error) {
	switch auth.config.GuardName {
	case "ldap":
		if auth.ldap == nil {
			return nil, errors.New("ldap guard selected but LDAP is not configured")
		}
		dn, name, err := auth.ldap.SearchEmail(email)
		if err != nil {
			log.Debug().Err(err).Str("email", email).Msg("LDAP lookup failed")
			return nil, ErrUserNotFound
		}
		// Password holds the DN so VerifyUser can bind as the user
		return &config.User{Email: email, Name: name, Password: dn}, nil
	default:
		for _, user := range auth.config.Users {
			if user.Email == email {
				u := user
				return &u, nil
			}
		}
		return nil, ErrUserNotFound
	}
}

func (auth *AuthService) VerifyUser(user *config.User, password string) bool {
	switch auth.config.GuardName {
	case "ldap":
		err := auth.ldap.VerifyCredentials(user.Password, password)
		if err != nil {
			log.Debug().Err(err).Str("email", user.Email).Msg("LDAP bind failed")
		}
		return err == nil
	default:
		err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
		return err == nil
	}
}

func (auth *AuthService) CreateSession(ctx context.Context, email string, name string) (repository.Session, error) {
	now := time.Now()

	session := repository.Session{
		UUID:      uuid.New().String(),
		Email:     email,
		Name:      name,
		Guard:     auth.config.GuardName,
		ExpiresAt: now.Add(time.Duration(auth.config.SessionExpiry) * time.Second).Unix(),
		CreatedAt: now.Unix(),
	}

	if err := auth.queries.CreateSession(ctx, session); err != nil {
		return repository.Session{}, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

func (auth *AuthService) SetSessionCookie(c *gin.Context, session repository.Session) {
	c.SetCookie(auth.config.SessionCookieName, session.UUID, auth.config.SessionExpiry, "/", "", auth.config.SecureCookie, true)
}

func (auth *AuthService) ClearSessionCookie(c *gin.Context) {
	c.SetCookie(auth.config.SessionCookieName, "", -1, "/", "", auth.config.SecureCookie, true)
}

// GetSession returns the logged-in session referenced by the request cookie.
func (auth *AuthService) GetSession(c *gin.Context) (repository.Session, error) {
	cookie, err := c.Cookie(auth.config.SessionCookieName)

	if err != nil || cookie == "" {
		return repository.Session{}, errors.New("no session cookie")
	}

	session, err := auth.queries.GetSession(c.Request.Context(), cookie, time.Now().Unix())

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Session{}, errors.New("session expired or unknown")
		}
		return repository.Session{}, err
	}

	return session, nil
}

// StorePendingAuthorization parks a validated request until the approve/deny
// call and returns the fresh auth token correlating the two.
func (auth *AuthService) StorePendingAuthorization(ctx context.Context, pending repository.PendingAuthorization) (string, error) {
	now := time.Now()

	pending.AuthToken = uuid.New().String()
	pending.ExpiresAt = now.Add(time.Duration(auth.config.PendingExpiry) * time.Second).Unix()
	pending.CreatedAt = now.Unix()

	if err := auth.queries.CreatePendingAuthorization(ctx, pending); err != nil {
		return "", fmt.Errorf("failed to store pending authorization: %w", err)
	}

	return pending.AuthToken, nil
}

// TakePendingAuthorization atomically removes and returns the pending request.
// A stale, replayed or concurrent duplicate call gets ErrRequestNotFound.
func (auth *AuthService) TakePendingAuthorization(ctx context.Context, authToken string, sessionUUID string) (repository.PendingAuthorization, error) {
	pending, err := auth.queries.TakePendingAuthorization(ctx, authToken, sessionUUID, time.Now().Unix())

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.PendingAuthorization{}, ErrRequestNotFound
		}
		return repository.PendingAuthorization{}, err
	}

	return pending, nil
}

func (auth *AuthService) IsAccountLocked(email string) (bool, int) {
	auth.loginMutex.RLock()
	defer auth.loginMutex.RUnlock()

	if auth.config.LoginMaxRetries <= 0 {
		return false, 0
	}

	attempt, exists := auth.loginAttempts[email]

	if !exists {
		return false, 0
	}

	if attempt.LockedUntil.After(time.Now()) {
		remaining := int(time.Until(attempt.LockedUntil).Seconds())
		return true, remaining
	}

	return false, 0
}

func (auth *AuthService) RecordLoginAttempt(email string, success bool) {
	if auth.config.LoginMaxRetries <= 0 {
		return
	}

	auth.loginMutex.Lock()
	defer auth.loginMutex.Unlock()

	if success {
		delete(auth.loginAttempts, email)
		return
	}

	attempt, exists := auth.loginAttempts[email]

	if !exists {
		attempt = &LoginAttempt{}
		auth.loginAttempts[email] = attempt
	}

	attempt.FailedAttempts++
	attempt.LastAttempt = time.Now()

	if attempt.FailedAttempts >= auth.config.LoginMaxRetries {
		attempt.LockedUntil = time.Now().Add(time.Duration(auth.config.LoginTimeout) * time.Second)
		log.Warn().Str("email", email).Int("attempts", attempt.FailedAttempts).Msg("Account locked due to failed login attempts")
	}
}
