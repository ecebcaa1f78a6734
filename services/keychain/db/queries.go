package db

import (
	"context"
)

type Credential struct {
	ID        int64
	Service   string
	Email     string
	Password  string
	CreatedAt int64
	UpdatedAt int64
}

const upsertCredential = `
INSERT INTO credentials (service, email, password, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (service) DO UPDATE SET
    email = excluded.email,
    password = excluded.password,
    updated_at = excluded.updated_at
`

type UpsertCredentialParams struct {
	Service   string
	Email     string
	Password  string
	CreatedAt int64
	UpdatedAt int64
}

func (q *Queries) UpsertCredential(ctx context.Context, arg UpsertCredentialParams) error {
	_, err := q.db.ExecContext(ctx, upsertCredential,
		arg.Service,
		arg.Email,
		arg.Password,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getCredential = `
SELECT id, service, email, password, created_at, updated_at
FROM credentials
WHERE service = ?
`

func (q *Queries) GetCredential(ctx context.Context, service string) (Credential, error) {
	row := q.db.QueryRowContext(ctx, getCredential, service)
	var c Credential
	err := row.Scan(&c.ID, &c.Service, &c.Email, &c.Password, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const listCredentials = `
SELECT id, service, email, password, created_at, updated_at
FROM credentials
ORDER BY service
`

func (q *Queries) ListCredentials(ctx context.Context) ([]Credential, error) {
	rows, err := q.db.QueryContext(ctx, listCredentials)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		var c Credential
		err := rows.Scan(&c.ID, &c.Service, &c.Email, &c.Password, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const deleteCredential = `
DELETE FROM credentials WHERE service = ?
`

func (q *Queries) DeleteCredential(ctx context.Context, service string) error {
	_, err := q.db.ExecContext(ctx, deleteCredential, service)
	return err
}
