package service

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	ldapgo "github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"
)

type LdapServiceConfig struct {
	Address      string
	BindDN       string
	BindPassword string
	BaseDN       string
	Insecure     bool
	SearchFilter string
}

// LdapService is the "ldap" guard: it resolves emails to directory entries
// and verifies passwords by binding as the user.
type LdapService struct {
	config LdapServiceConfig
	conn   *ldapgo.Conn
	mutex  sync.Mutex
}

func NewLdapService(config LdapServiceConfig) *LdapService {
	return &LdapService{
		config: config,
	}
}

func (ldap *LdapService) Init() error {
	if _, err := ldap.connect(); err != nil {
		return fmt.Errorf("failed to connect to LDAP server: %w", err)
	}

	go func() {
		for range time.Tick(time.Duration(5) * time.Minute) {
			if err := ldap.heartbeat(); err != nil {
				log.Error().Err(err).Msg("LDAP connection heartbeat failed")
				if reconnectErr := ldap.reconnect(); reconnectErr != nil {
					log.Error().Err(reconnectErr).Msg("Failed to reconnect to LDAP server")
					continue
				}
				log.Info().Msg("Successfully reconnected to LDAP server")
			}
		}
	}()

	return nil
}

func (ldap *LdapService) connect() (*ldapgo.Conn, error) {
	ldap.mutex.Lock()
	defer ldap.mutex.Unlock()

	conn, err := ldapgo.DialURL(ldap.config.Address, ldapgo.DialWithTLSConfig(&tls.Config{
		InsecureSkipVerify: ldap.config.Insecure,
		MinVersion:         tls.VersionTLS12,
	}))

	if err != nil {
		return nil, err
	}

	if err := conn.Bind(ldap.config.BindDN, ldap.config.BindPassword); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to bind as service account: %w", err)
	}

	ldap.conn = conn
	return conn, nil
}

func (ldap *LdapService) reconnect() error {
	_, err := backoff.Retry(context.Background(), func() (*ldapgo.Conn, error) {
		return ldap.connect()
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
	return err
}

func (ldap *LdapService) heartbeat() error {
	ldap.mutex.Lock()
	defer ldap.mutex.Unlock()

	searchRequest := ldapgo.NewSearchRequest(
		"",
		ldapgo.ScopeBaseObject, ldapgo.NeverDerefAliases, 1, 5, false,
		"(objectClass=*)",
		[]string{"supportedLDAPVersion"},
		nil,
	)

	_, err := ldap.conn.Search(searchRequest)
	return err
}

// SearchEmail resolves an email address to exactly one directory entry and
// returns its DN and display name.
func (ldap *LdapService) SearchEmail(email string) (string, string, error) {
	escaped := ldapgo.EscapeFilter(email)
	filter := fmt.Sprintf(ldap.config.SearchFilter, escaped)

	searchRequest := ldapgo.NewSearchRequest(
		ldap.config.BaseDN,
		ldapgo.ScopeWholeSubtree, ldapgo.NeverDerefAliases, 0, 0, false,
		filter,
		[]string{"dn", "cn"},
		nil,
	)

	ldap.mutex.Lock()
	defer ldap.mutex.Unlock()

	searchResult, err := ldap.conn.Search(searchRequest)
	if err != nil {
		return "", "", err
	}

	if len(searchResult.Entries) != 1 {
		return "", "", fmt.Errorf("multiple or no entries found for email %s", email)
	}

	entry := searchResult.Entries[0]
	return entry.DN, entry.GetAttributeValue("cn"), nil
}

// VerifyCredentials binds as the user to check the password, then rebinds as
// the service account.
func (ldap *LdapService) VerifyCredentials(userDN string, password string) error {
	ldap.mutex.Lock()
	defer ldap.mutex.Unlock()

	if err := ldap.conn.Bind(userDN, password); err != nil {
		if rebindErr := ldap.conn.Bind(ldap.config.BindDN, ldap.config.BindPassword); rebindErr != nil {
			log.Error().Err(rebindErr).Msg("Failed to rebind as service account")
		}
		return fmt.Errorf("invalid credentials: %w", err)
	}

	return ldap.conn.Bind(ldap.config.BindDN, ldap.config.BindPassword)
}
