package auth

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"sheetpilot-backend/lib/textutil"
	"sheetpilot-backend/lib/timezone"
	"sheetpilot-backend/services/auth/db"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

const (
	sessionDuration      = time.Hour * 8
	stayLoggedInDuration = time.Hour * 24 * 30

	defaultAdminUsername = "Admin"
	defaultAdminPassword = "SWFL_ADMIN"

	tokenLength = 48
)

type Options struct {
	AdminUsername string
	AdminPassword string
}

type Session struct {
	Token        string
	Email        string
	IsAdmin      bool
	StayLoggedIn bool
	ExpiresAt    time.Time
}

// Service issues and validates bearer session tokens. Sessions are
// persisted so a daemon restart does not log everyone out.
type Service struct {
	db     *sql.DB
	qry    *db.Queries
	config Options
}

func NewService(database *sql.DB, options Options) Service {
	if options.AdminUsername == "" {
		options.AdminUsername = defaultAdminUsername
	}
	if options.AdminPassword == "" {
		options.AdminPassword = defaultAdminPassword
	}
	return Service{
		db:     database,
		qry:    db.New(database),
		config: options,
	}
}

func normalizeEmail(email string) string {
	return strings.Trim(strings.ToLower(email), " \t\n")
}

// IsAdminLogin checks the built-in admin credentials. The admin
// username is not an email address and is matched case-sensitively.
func (s Service) IsAdminLogin(username, password string) bool {
	return username == s.config.AdminUsername && password == s.config.AdminPassword
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// CreateSession mints a fresh random token. A stay-logged-in session
// lives thirty days instead of eight hours.
func (s Service) CreateSession(ctx context.Context, email string, isAdmin, stayLoggedIn bool) (Session, error) {
	ctx, span := tracer.Start(ctx, "auth:CreateSession")
	defer span.End()

	token, err := random.String(tokenLength)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate session token")
		return Session{}, err
	}

	duration := sessionDuration
	if stayLoggedIn {
		duration = stayLoggedInDuration
	}

	now := timezone.Now()
	expiresAt := now.Add(duration)
	if !isAdmin {
		email = normalizeEmail(email)
	}

	err = s.qry.CreateSession(ctx, db.CreateSessionParams{
		Token:        token,
		Email:        email,
		IsAdmin:      boolInt(isAdmin),
		StayLoggedIn: boolInt(stayLoggedIn),
		CreatedAt:    now.Unix(),
		ExpiresAt:    expiresAt.Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert session row")
		return Session{}, err
	}

	slog.InfoContext(ctx, "created session",
		"email", textutil.RedactEmail(email),
		"admin", isAdmin,
		"stay_logged_in", stayLoggedIn,
	)
	return Session{
		Token:        token,
		Email:        email,
		IsAdmin:      isAdmin,
		StayLoggedIn: stayLoggedIn,
		ExpiresAt:    expiresAt,
	}, nil
}

// Validate resolves a bearer token. Expired sessions are deleted on
// sight so the table self-cleans under normal traffic.
func (s Service) Validate(ctx context.Context, token string) (Session, bool) {
	ctx, span := tracer.Start(ctx, "auth:Validate")
	defer span.End()

	if token == "" {
		return Session{}, false
	}

	row, err := s.qry.GetSession(ctx, token)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read session row")
		return Session{}, false
	}

	if row.ExpiresAt < timezone.Now().Unix() {
		if err := s.qry.DeleteSession(ctx, token); err != nil {
			slog.WarnContext(ctx, "failed to delete expired session", "err", err)
		}
		return Session{}, false
	}

	return Session{
		Token:        row.Token,
		Email:        row.Email,
		IsAdmin:      row.IsAdmin != 0,
		StayLoggedIn: row.StayLoggedIn != 0,
		ExpiresAt:    time.Unix(row.ExpiresAt, 0).In(timezone.Location),
	}, true
}

func (s Service) ClearSession(ctx context.Context, token string) error {
	ctx, span := tracer.Start(ctx, "auth:ClearSession")
	defer span.End()

	err := s.qry.DeleteSession(ctx, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete session")
		return err
	}
	return nil
}

func (s Service) ClearUserSessions(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, "auth:ClearUserSessions")
	defer span.End()

	err := s.qry.DeleteSessionsForEmail(ctx, normalizeEmail(email))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete user sessions")
		return err
	}
	return nil
}

// PruneExpired removes sessions past their expiry in bulk, for the
// periodic maintenance pass.
func (s Service) PruneExpired(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "auth:PruneExpired")
	defer span.End()

	count, err := s.qry.DeleteSessionsBefore(ctx, timezone.Now().Unix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to prune sessions")
		return 0, err
	}
	if count > 0 {
		slog.InfoContext(ctx, "pruned expired sessions", "count", count)
	}
	return count, nil
}
