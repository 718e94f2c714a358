package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DefaultUsersTable is used when the configured table name sanitizes to nothing.
const DefaultUsersTable = "portal_users"

// Querier is the subset of pgxpool.Pool used by PostgresRepository.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements CredentialStore with one parameterized lookup
// per call. Query failures are reported as ErrCredentialNotFound so a broken
// database never authenticates anyone.
type PostgresRepository struct {
	db         Querier
	table      string
	production bool
	logger     *slog.Logger
}

// PostgresOption configures a PostgresRepository.
type PostgresOption func(*PostgresRepository)

// WithTable overrides the credential table. The name is sanitized.
func WithTable(name string) PostgresOption {
	return func(r *PostgresRepository) {
		r.table = SanitizeIdentifier(name)
	}
}

// WithProduction suppresses logging of query failures.
func WithProduction(production bool) PostgresOption {
	return func(r *PostgresRepository) {
		r.production = production
	}
}

// WithLogger sets the logger used for query failures.
func WithLogger(logger *slog.Logger) PostgresOption {
	return func(r *PostgresRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewPostgresRepository creates a CredentialStore backed by db.
func NewPostgresRepository(db Querier, opts ...PostgresOption) *PostgresRepository {
	r := &PostgresRepository{
		db:     db,
		table:  DefaultUsersTable,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SanitizeIdentifier keeps only [A-Za-z0-9_.] from name and falls back to
// DefaultUsersTable when nothing is left.
func SanitizeIdentifier(name string) string {
	var b strings.Builder
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_', ch == '.':
			b.WriteRune(ch)
		}
	}
	if b.Len() == 0 {
		return DefaultUsersTable
	}
	return b.String()
}

// Table returns the sanitized table name queried by the repository.
func (r *PostgresRepository) Table() string {
	return r.table
}

// FindByUsername retrieves the active credential for username.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*Credential, error) {
	query := fmt.Sprintf(`
		SELECT username, password_hash, company, dashboard_path, label, project_id, active
		FROM %s
		WHERE username = $1 AND active = TRUE
		LIMIT 1`, r.table)

	return r.findOne(ctx, "username", query, username)
}

// FindByCompany retrieves the active credential for company, preferring the
// lowest username when several records share it.
func (r *PostgresRepository) FindByCompany(ctx context.Context, company string) (*Credential, error) {
	query := fmt.Sprintf(`
		SELECT username, password_hash, company, dashboard_path, label, project_id, active
		FROM %s
		WHERE company = $1 AND active = TRUE
		ORDER BY username ASC
		LIMIT 1`, r.table)

	return r.findOne(ctx, "company", query, company)
}

func (r *PostgresRepository) findOne(ctx context.Context, by, query, arg string) (*Credential, error) {
	var (
		c                         Credential
		dashboard, label, project *string
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&c.Username, &c.PasswordHash, &c.Company,
		&dashboard, &label, &project, &c.Active,
	)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logFailure("querying credential", by, err)
		}
		return nil, ErrCredentialNotFound
	}

	c.DashboardPath = deref(dashboard)
	c.Label = deref(label)
	c.ProjectID = deref(project)
	if !c.Active {
		return nil, ErrCredentialNotFound
	}
	if err := c.Normalize(); err != nil {
		r.logFailure("normalizing credential", by, err)
		return nil, ErrCredentialNotFound
	}

	return &c, nil
}

func (r *PostgresRepository) logFailure(msg, by string, err error) {
	if r.production {
		return
	}
	r.logger.Error(msg, "table", r.table, "lookup", by, "error", err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
