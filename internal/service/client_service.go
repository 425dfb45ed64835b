package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"passgate/internal/config"
	"passgate/internal/repository"

	"github.com/rs/zerolog/log"
)

// Client is a registered OAuth client with its JSON columns decoded.
type Client struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	RedirectURIs      []string `json:"redirect_uris"`
	Scopes            []string `json:"scopes"`
	SkipAuthorization bool     `json:"skip_authorization"`
}

type ClientServiceConfig struct {
	ClientsFile        string
	ConsentSkipDefault bool
}

type ClientService struct {
	config  ClientServiceConfig
	queries *repository.Queries
}

func NewClientService(config ClientServiceConfig, queries *repository.Queries) *ClientService {
	return &ClientService{
		config:  config,
		queries: queries,
	}
}

// Init syncs the clients file into the database so registrations survive
// restarts but always reflect the config.
func (cs *ClientService) Init() error {
	if cs.config.ClientsFile == "" {
		return nil
	}

	contents, err := os.ReadFile(cs.config.ClientsFile)

	if err != nil {
		return fmt.Errorf("failed to read clients file: %w", err)
	}

	var clients []config.ClientConfig

	if err := json.Unmarshal(contents, &clients); err != nil {
		return fmt.Errorf("failed to parse clients file: %w", err)
	}

	return cs.SyncClients(context.Background(), clients)
}

func (cs *ClientService) SyncClients(ctx context.Context, clients []config.ClientConfig) error {
	for _, client := range clients {
		if client.ID == "" {
			log.Warn().Msg("Skipping client with empty id")
			continue
		}

		if len(client.RedirectURIs) == 0 {
			log.Warn().Str("client_id", client.ID).Msg("No redirect URIs configured for client, skipping")
			continue
		}

		name := client.Name
		if name == "" {
			name = client.ID
		}

		redirectURIs, err := json.Marshal(client.RedirectURIs)
		if err != nil {
			return fmt.Errorf("failed to marshal redirect URIs: %w", err)
		}

		scopes := client.Scopes
		if scopes == nil {
			scopes = []string{}
		}

		scopesJSON, err := json.Marshal(scopes)
		if err != nil {
			return fmt.Errorf("failed to marshal scopes: %w", err)
		}

		now := time.Now().Unix()

		err = cs.queries.UpsertClient(ctx, repository.Client{
			ID:                client.ID,
			Name:              name,
			RedirectURIs:      string(redirectURIs),
			Scopes:            string(scopesJSON),
			SkipAuthorization: client.SkipAuthorization,
			CreatedAt:         now,
			UpdatedAt:         now,
		})

		if err != nil {
			return fmt.Errorf("failed to sync client %s: %w", client.ID, err)
		}

		log.Info().Str("client_id", client.ID).Str("client_name", name).Msg("Synced OAuth client")
	}

	return nil
}

func (cs *ClientService) GetClient(ctx context.Context, clientID string) (*Client, error) {
	row, err := cs.queries.GetClient(ctx, clientID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errors.New("client not found")
		}
		return nil, err
	}

	client := Client{
		ID:                row.ID,
		Name:              row.Name,
		SkipAuthorization: row.SkipAuthorization,
	}

	if err := json.Unmarshal([]byte(row.RedirectURIs), &client.RedirectURIs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal redirect URIs: %w", err)
	}

	if err := json.Unmarshal([]byte(row.Scopes), &client.Scopes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scopes: %w", err)
	}

	return &client, nil
}

// ResolveRedirectURI matches the requested URI against the registered ones.
// An empty request resolves to the uniquely registered URI.
func (cs *ClientService) ResolveRedirectURI(client *Client, redirectURI string) (string, error) {
	if redirectURI == "" {
		if len(client.RedirectURIs) == 1 {
			return client.RedirectURIs[0], nil
		}
		return "", errors.New("redirect_uri is required for clients with multiple registered URIs")
	}

	for _, uri := range client.RedirectURIs {
		if uri == redirectURI {
			return uri, nil
		}
	}

	return "", errors.New("redirect_uri does not match a registered URI")
}

// ValidateScopes checks every requested scope against the client's permitted
// scopes and returns the effective set, order preserved and deduplicated.
func (cs *ClientService) ValidateScopes(client *Client, requested []string) ([]string, error) {
	effective := make([]string, 0, len(requested))
	seen := make(map[string]bool)

	for _, scope := range requested {
		if seen[scope] {
			continue
		}
		seen[scope] = true

		allowed := false
		for _, s := range client.Scopes {
			if s == scope {
				allowed = true
				break
			}
		}

		if !allowed {
			return nil, fmt.Errorf("scope %q is not permitted for this client", scope)
		}

		effective = append(effective, scope)
	}

	return effective, nil
}

// SkipsAuthorization reports whether the consent prompt should be bypassed
// for this client, honoring the global override.
func (cs *ClientService) SkipsAuthorization(client *Client) bool {
	return client.SkipAuthorization || cs.config.ConsentSkipDefault
}
