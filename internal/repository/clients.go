package repository

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("not found")

const getClient = `SELECT id, name, redirect_uris, scopes, skip_authorization, created_at, updated_at FROM clients WHERE id = ?`

func (q *Queries) GetClient(ctx context.Context, id string) (Client, error) {
	var c Client
	err := q.db.QueryRowContext(ctx, getClient, id).Scan(&c.ID, &c.Name, &c.RedirectURIs, &c.Scopes, &c.SkipAuthorization, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	return c, err
}

const upsertClient = `INSERT INTO clients (id, name, redirect_uris, scopes, skip_authorization, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET name = excluded.name, redirect_uris = excluded.redirect_uris, scopes = excluded.scopes, skip_authorization = excluded.skip_authorization, updated_at = excluded.updated_at`

func (q *Queries) UpsertClient(ctx context.Context, c Client) error {
	_, err := q.db.ExecContext(ctx, upsertClient, c.ID, c.Name, c.RedirectURIs, c.Scopes, c.SkipAuthorization, c.CreatedAt, c.UpdatedAt)
	return err
}
