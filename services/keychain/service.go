package keychain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"sheetpilot-backend/lib/textutil"
	"sheetpilot-backend/lib/timezone"
	"sheetpilot-backend/services/keychain/db"

	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

// ServiceSmartsheet is the credential namespace the submission bot
// reads from.
const ServiceSmartsheet = "smartsheet"

var ErrNotFound = fmt.Errorf("no credentials stored")

type Credential struct {
	Service  string `json:"service"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// Service persists vendor login credentials. Passwords are stored
// as provided; the database file itself is the trust boundary.
type Service struct {
	db  *sql.DB
	qry *db.Queries
}

func NewService(database *sql.DB) Service {
	return Service{
		db:  database,
		qry: db.New(database),
	}
}

func (s Service) Set(ctx context.Context, cred Credential) error {
	ctx, span := tracer.Start(ctx, "keychain:Set")
	defer span.End()

	if cred.Service == "" {
		return fmt.Errorf("service name is required")
	}
	if cred.Email == "" || cred.Password == "" {
		return fmt.Errorf("email and password are required")
	}

	now := timezone.Now().Unix()
	err := s.qry.UpsertCredential(ctx, db.UpsertCredentialParams{
		Service:   cred.Service,
		Email:     cred.Email,
		Password:  cred.Password,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert credential")
		return err
	}

	slog.InfoContext(ctx, "stored credentials",
		"service", cred.Service,
		"email", textutil.RedactEmail(cred.Email),
	)
	return nil
}

// Get returns the stored credential for a service, or ErrNotFound.
func (s Service) Get(ctx context.Context, service string) (Credential, error) {
	ctx, span := tracer.Start(ctx, "keychain:Get")
	defer span.End()

	row, err := s.qry.GetCredential(ctx, service)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read credential")
		return Credential{}, err
	}

	return Credential{
		Service:  row.Service,
		Email:    row.Email,
		Password: row.Password,
	}, nil
}

// List returns stored credentials with passwords omitted and emails
// redacted, for display surfaces only.
func (s Service) List(ctx context.Context) ([]Credential, error) {
	ctx, span := tracer.Start(ctx, "keychain:List")
	defer span.End()

	rows, err := s.qry.ListCredentials(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list credentials")
		return nil, err
	}

	out := make([]Credential, 0, len(rows))
	for _, row := range rows {
		out = append(out, Credential{
			Service: row.Service,
			Email:   textutil.RedactEmail(row.Email),
		})
	}
	return out, nil
}

func (s Service) Delete(ctx context.Context, service string) error {
	ctx, span := tracer.Start(ctx, "keychain:Delete")
	defer span.End()

	err := s.qry.DeleteCredential(ctx, service)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete credential")
		return err
	}

	slog.InfoContext(ctx, "deleted credentials", "service", service)
	return nil
}
