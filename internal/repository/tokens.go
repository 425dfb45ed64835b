package repository

import (
	"context"
)

const createAccessToken = `INSERT INTO access_tokens (id, user_email, client_id, scopes, revoked, expires_at, created_at) VALUES (?, ?, ?, ?, 0, ?, ?)`

func (q *Queries) CreateAccessToken(ctx context.Context, t AccessToken) error {
	_, err := q.db.ExecContext(ctx, createAccessToken, t.ID, t.UserEmail, t.ClientID, t.Scopes, t.ExpiresAt, t.CreatedAt)
	return err
}

// Scopes are stored canonically (sorted, space-joined) so the lookup is a
// plain equality match.
const countValidAccessTokens = `SELECT COUNT(*) FROM access_tokens WHERE user_email = ? AND client_id = ? AND scopes = ? AND revoked = 0 AND expires_at > ?`

func (q *Queries) CountValidAccessTokens(ctx context.Context, userEmail string, clientID string, scopes string, now int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countValidAccessTokens, userEmail, clientID, scopes, now).Scan(&count)
	return count, err
}

const deleteExpiredAccessTokens = `DELETE FROM access_tokens WHERE expires_at <= ?`

func (q *Queries) DeleteExpiredAccessTokens(ctx context.Context, now int64) error {
	_, err := q.db.ExecContext(ctx, deleteExpiredAccessTokens, now)
	return err
}
