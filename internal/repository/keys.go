package repository

import (
	"context"
	"database/sql"
	"errors"
)

const getLatestSigningKey = `SELECT id, private_key, created_at FROM signing_keys ORDER BY id DESC LIMIT 1`

func (q *Queries) GetLatestSigningKey(ctx context.Context) (SigningKey, error) {
	var k SigningKey
	err := q.db.QueryRowContext(ctx, getLatestSigningKey).Scan(&k.ID, &k.PrivateKey, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SigningKey{}, ErrNotFound
	}
	return k, err
}

const createSigningKey = `INSERT INTO signing_keys (private_key, created_at) VALUES (?, ?)`

func (q *Queries) CreateSigningKey(ctx context.Context, privateKey string, createdAt int64) error {
	_, err := q.db.ExecContext(ctx, createSigningKey, privateKey, createdAt)
	return err
}
