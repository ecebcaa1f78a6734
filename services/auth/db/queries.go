package db

import (
	"context"
)

type Session struct {
	Token        string
	Email        string
	IsAdmin      int64
	StayLoggedIn int64
	CreatedAt    int64
	ExpiresAt    int64
}

const createSession = `
INSERT INTO sessions (token, email, is_admin, stay_logged_in, created_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateSessionParams struct {
	Token        string
	Email        string
	IsAdmin      int64
	StayLoggedIn int64
	CreatedAt    int64
	ExpiresAt    int64
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) error {
	_, err := q.db.ExecContext(ctx, createSession,
		arg.Token,
		arg.Email,
		arg.IsAdmin,
		arg.StayLoggedIn,
		arg.CreatedAt,
		arg.ExpiresAt,
	)
	return err
}

const getSession = `
SELECT token, email, is_admin, stay_logged_in, created_at, expires_at
FROM sessions
WHERE token = ?
`

func (q *Queries) GetSession(ctx context.Context, token string) (Session, error) {
	row := q.db.QueryRowContext(ctx, getSession, token)
	var s Session
	err := row.Scan(&s.Token, &s.Email, &s.IsAdmin, &s.StayLoggedIn, &s.CreatedAt, &s.ExpiresAt)
	return s, err
}

const deleteSession = `
DELETE FROM sessions WHERE token = ?
`

func (q *Queries) DeleteSession(ctx context.Context, token string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, token)
	return err
}

const deleteSessionsForEmail = `
DELETE FROM sessions WHERE email = ?
`

func (q *Queries) DeleteSessionsForEmail(ctx context.Context, email string) error {
	_, err := q.db.ExecContext(ctx, deleteSessionsForEmail, email)
	return err
}

const deleteSessionsBefore = `
DELETE FROM sessions WHERE expires_at < ?
`

func (q *Queries) DeleteSessionsBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteSessionsBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
