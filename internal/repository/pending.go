package repository

import (
	"context"
	"database/sql"
	"errors"
)

const createPendingAuthorization = `INSERT INTO pending_authorizations (auth_token, session_uuid, client_id, user_email, redirect_uri, scopes, state, grant_type, code_challenge, code_challenge_method, expires_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreatePendingAuthorization(ctx context.Context, p PendingAuthorization) error {
	_, err := q.db.ExecContext(ctx, createPendingAuthorization, p.AuthToken, p.SessionUUID, p.ClientID, p.UserEmail, p.RedirectURI, p.Scopes, p.State, p.GrantType, p.CodeChallenge, p.CodeChallengeMethod, p.ExpiresAt, p.CreatedAt)
	return err
}

// TakePendingAuthorization removes and returns the pending request in one
// statement. The auth token and session must both match, so a replayed or
// concurrent duplicate call finds no row. This is the only synchronization
// point between the consent prompt and the approve/deny call.
const takePendingAuthorization = `DELETE FROM pending_authorizations WHERE auth_token = ? AND session_uuid = ? AND expires_at > ?
RETURNING auth_token, session_uuid, client_id, user_email, redirect_uri, scopes, state, grant_type, code_challenge, code_challenge_method, expires_at, created_at`

func (q *Queries) TakePendingAuthorization(ctx context.Context, authToken string, sessionUUID string, now int64) (PendingAuthorization, error) {
	var p PendingAuthorization
	err := q.db.QueryRowContext(ctx, takePendingAuthorization, authToken, sessionUUID, now).Scan(&p.AuthToken, &p.SessionUUID, &p.ClientID, &p.UserEmail, &p.RedirectURI, &p.Scopes, &p.State, &p.GrantType, &p.CodeChallenge, &p.CodeChallengeMethod, &p.ExpiresAt, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingAuthorization{}, ErrNotFound
	}
	return p, err
}

const deleteExpiredPendingAuthorizations = `DELETE FROM pending_authorizations WHERE expires_at <= ?`

func (q *Queries) DeleteExpiredPendingAuthorizations(ctx context.Context, now int64) error {
	_, err := q.db.ExecContext(ctx, deleteExpiredPendingAuthorizations, now)
	return err
}
