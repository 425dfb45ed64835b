package service_test

import (
	"context"
	"testing"

	"passgate/internal/config"
	"passgate/internal/repository"
	"passgate/internal/service"

	"gotest.tools/v3/assert"
)

func setupClientService(t *testing.T, consentSkipDefault bool) *service.ClientService {
	t.Helper()

	databaseService := service.NewDatabaseService(service.DatabaseServiceConfig{
		DatabasePath: ":memory:",
	})

	assert.NilError(t, databaseService.Init())

	queries := repository.New(databaseService.GetDatabase())

	clientService := service.NewClientService(service.ClientServiceConfig{
		ConsentSkipDefault: consentSkipDefault,
	}, queries)

	err := clientService.SyncClients(context.Background(), []config.ClientConfig{
		{
			ID:           "web-app",
			Name:         "Web App",
			RedirectURIs: []string{"http://app.example/cb", "http://app.example/alt"},
			Scopes:       []string{"read", "write"},
		},
		{
			ID:           "cli-tool",
			RedirectURIs: []string{"http://localhost:9999/cb"},
			Scopes:       []string{"read"},
		},
		{
			// No redirect URIs, skipped during sync
			ID:     "broken",
			Scopes: []string{"read"},
		},
	})

	assert.NilError(t, err)

	return clientService
}

func TestGetClientRoundTrip(t *testing.T) {
	clientService := setupClientService(t, false)

	client, err := clientService.GetClient(context.Background(), "web-app")

	assert.NilError(t, err)
	assert.Equal(t, client.Name, "Web App")
	assert.DeepEqual(t, client.RedirectURIs, []string{"http://app.example/cb", "http://app.example/alt"})
	assert.DeepEqual(t, client.Scopes, []string{"read", "write"})
}

func TestGetClientNameDefaultsToID(t *testing.T) {
	clientService := setupClientService(t, false)

	client, err := clientService.GetClient(context.Background(), "cli-tool")

	assert.NilError(t, err)
	assert.Equal(t, client.Name, "cli-tool")
}

func TestClientWithoutRedirectURIsIsNotSynced(t *testing.T) {
	clientService := setupClientService(t, false)

	_, err := clientService.GetClient(context.Background(), "broken")

	assert.ErrorContains(t, err, "not found")
}

func TestResolveRedirectURI(t *testing.T) {
	clientService := setupClientService(t, false)

	multi, err := clientService.GetClient(context.Background(), "web-app")
	assert.NilError(t, err)

	single, err := clientService.GetClient(context.Background(), "cli-tool")
	assert.NilError(t, err)

	// Exact match
	uri, err := clientService.ResolveRedirectURI(multi, "http://app.example/alt")
	assert.NilError(t, err)
	assert.Equal(t, uri, "http://app.example/alt")

	// Unregistered URI
	_, err = clientService.ResolveRedirectURI(multi, "http://evil.example/cb")
	assert.ErrorContains(t, err, "does not match")

	// Empty request with a single registered URI
	uri, err = clientService.ResolveRedirectURI(single, "")
	assert.NilError(t, err)
	assert.Equal(t, uri, "http://localhost:9999/cb")

	// Empty request is ambiguous with several registered URIs
	_, err = clientService.ResolveRedirectURI(multi, "")
	assert.ErrorContains(t, err, "required")
}

func TestValidateScopes(t *testing.T) {
	clientService := setupClientService(t, false)

	client, err := clientService.GetClient(context.Background(), "web-app")
	assert.NilError(t, err)

	// Order preserved, duplicates dropped
	scopes, err := clientService.ValidateScopes(client, []string{"write", "read", "write"})
	assert.NilError(t, err)
	assert.DeepEqual(t, scopes, []string{"write", "read"})

	// Empty request is allowed
	scopes, err = clientService.ValidateScopes(client, nil)
	assert.NilError(t, err)
	assert.DeepEqual(t, scopes, []string{})

	// Unpermitted scope rejected
	_, err = clientService.ValidateScopes(client, []string{"read", "admin"})
	assert.ErrorContains(t, err, "not permitted")
}

func TestSkipsAuthorizationHonorsGlobalOverride(t *testing.T) {
	clientService := setupClientService(t, true)

	client, err := clientService.GetClient(context.Background(), "web-app")
	assert.NilError(t, err)

	assert.Assert(t, !client.SkipAuthorization)
	assert.Assert(t, clientService.SkipsAuthorization(client))
}
