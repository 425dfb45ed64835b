package repository

import (
	"context"
	"database/sql"
	"errors"
)

const createAuthorizationCode = `INSERT INTO authorization_codes (code, client_id, user_email, redirect_uri, scopes, code_challenge, code_challenge_method, used, expires_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`

func (q *Queries) CreateAuthorizationCode(ctx context.Context, c AuthorizationCode) error {
	_, err := q.db.ExecContext(ctx, createAuthorizationCode, c.Code, c.ClientID, c.UserEmail, c.RedirectURI, c.Scopes, c.CodeChallenge, c.CodeChallengeMethod, c.ExpiresAt, c.CreatedAt)
	return err
}

// ConsumeAuthorizationCode atomically marks the code as used and returns it.
// A second redemption of the same code finds used = 1 and gets ErrNotFound,
// which keeps codes single-use even under concurrent requests.
const consumeAuthorizationCode = `UPDATE authorization_codes SET used = 1 WHERE code = ? AND used = 0
RETURNING code, client_id, user_email, redirect_uri, scopes, code_challenge, code_challenge_method, used, expires_at, created_at`

func (q *Queries) ConsumeAuthorizationCode(ctx context.Context, code string) (AuthorizationCode, error) {
	var c AuthorizationCode
	err := q.db.QueryRowContext(ctx, consumeAuthorizationCode, code).Scan(&c.Code, &c.ClientID, &c.UserEmail, &c.RedirectURI, &c.Scopes, &c.CodeChallenge, &c.CodeChallengeMethod, &c.Used, &c.ExpiresAt, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AuthorizationCode{}, ErrNotFound
	}
	return c, err
}

const deleteExpiredAuthorizationCodes = `DELETE FROM authorization_codes WHERE expires_at <= ?`

func (q *Queries) DeleteExpiredAuthorizationCodes(ctx context.Context, now int64) error {
	_, err := q.db.ExecContext(ctx, deleteExpiredAuthorizationCodes, now)
	return err
}
