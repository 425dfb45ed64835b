package repository

import (
	"context"
	"database/sql"
	"errors"
)

const createSession = `INSERT INTO sessions (uuid, email, name, guard, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateSession(ctx context.Context, s Session) error {
	_, err := q.db.ExecContext(ctx, createSession, s.UUID, s.Email, s.Name, s.Guard, s.ExpiresAt, s.CreatedAt)
	return err
}

const getSession = `SELECT uuid, email, name, guard, expires_at, created_at FROM sessions WHERE uuid = ? AND expires_at > ?`

func (q *Queries) GetSession(ctx context.Context, uuid string, now int64) (Session, error) {
	var s Session
	err := q.db.QueryRowContext(ctx, getSession, uuid, now).Scan(&s.UUID, &s.Email, &s.Name, &s.Guard, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

const deleteSession = `DELETE FROM sessions WHERE uuid = ?`

func (q *Queries) DeleteSession(ctx context.Context, uuid string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, uuid)
	return err
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at <= ?`

func (q *Queries) DeleteExpiredSessions(ctx context.Context, now int64) error {
	_, err := q.db.ExecContext(ctx, deleteExpiredSessions, now)
	return err
}
