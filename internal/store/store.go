// Package store provides the persistence backends for TastingFlow.
//
// A store holds the tasting catalog (packages, bottles, question rows), the tastings hosts open
// for participants, and the final submissions. Catalog reads feed the flow loader; the write side
// of the catalog exists for bulk loading and tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BTreeMap/TastingFlow/internal/models"
)

// Table names a catalog table that may be cleared wholesale.
type Table string

const (
	TablePackages  Table = "packages"
	TableBottles   Table = "bottles"
	TableQuestions Table = "questions"
)

var (
	// ErrUnknownTable is returned by DeleteAll for anything outside the catalog tables.
	ErrUnknownTable = errors.New("unknown table")
	// ErrDuplicateTasting is returned by SaveTasting when the join code is already taken.
	ErrDuplicateTasting = errors.New("tasting code already exists")
)

// Store is the query interface shared by all backends.
//
// Lookups that find nothing return a nil pointer and a nil error.
type Store interface {
	ListPackages(ctx context.Context) ([]models.Package, error)
	GetPackage(ctx context.Context, id int64) (*models.Package, error)
	// ListBottlesByNames matches names case-insensitively.
	ListBottlesByNames(ctx context.Context, names []string) ([]models.Bottle, error)
	// ListQuestionsByBottleIDs returns rows bound to the given bottles plus rows that carry no
	// bottle ID at all, which the caller binds by bottle name.
	ListQuestionsByBottleIDs(ctx context.Context, ids []int64) ([]models.RawQuestion, error)

	DeleteAll(ctx context.Context, table Table) error
	InsertPackage(ctx context.Context, p models.Package) (models.Package, error)
	InsertBottle(ctx context.Context, b models.Bottle) (models.Bottle, error)
	InsertQuestion(ctx context.Context, q models.RawQuestion) (models.RawQuestion, error)

	SaveTasting(ctx context.Context, t models.Tasting) error
	GetTastingByCode(ctx context.Context, code string) (*models.Tasting, error)
	SaveSubmission(ctx context.Context, s models.Submission) error
	ListSubmissions(ctx context.Context, tastingCode string) ([]models.Submission, error)

	NotificationQueue

	Close() error
}

// checkTable validates a DeleteAll target.
func checkTable(t Table) error {
	switch t {
	case TablePackages, TableBottles, TableQuestions:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownTable, string(t))
}

// Opts holds configuration for the SQL backends.
type Opts struct {
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path or DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports which driver a DSN belongs to: "postgres" for URLs with a postgres scheme
// or libpq key=value strings, "sqlite3" for everything else.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	lower := strings.ToLower(d)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	for _, key := range []string{"host=", "user=", "dbname=", "password=", "sslmode="} {
		if strings.Contains(lower, key) {
			return "postgres"
		}
	}
	return "sqlite3"
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
