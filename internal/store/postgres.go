package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/TastingFlow/internal/models"
	"github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) ListPackages(ctx context.Context) ([]models.Package, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, COALESCE(description, ''), bottles FROM packages ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore.ListPackages query failed", "error", err)
		return nil, fmt.Errorf("failed to query packages: %w", err)
	}
	defer rows.Close()

	var packages []models.Package
	for rows.Next() {
		var p models.Package
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Bottles); err != nil {
			slog.Error("PostgresStore.ListPackages scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}
		packages = append(packages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate package rows: %w", err)
	}
	slog.Debug("PostgresStore.ListPackages succeeded", "count", len(packages))
	return packages, nil
}

func (s *PostgresStore) GetPackage(ctx context.Context, id int64) (*models.Package, error) {
	var p models.Package
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(description, ''), bottles FROM packages WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Bottles)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore.GetPackage not found", "packageID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetPackage failed", "error", err, "packageID", id)
		return nil, fmt.Errorf("failed to get package %d: %w", id, err)
	}
	return &p, nil
}

func (s *PostgresStore) ListBottlesByNames(ctx context.Context, names []string) ([]models.Bottle, error) {
	keys := lowerNames(names)
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT * FROM bottles WHERE LOWER(TRIM(name)) = ANY($1) ORDER BY id`, pq.Array(keys))
	if err != nil {
		slog.Error("PostgresStore.ListBottlesByNames query failed", "error", err, "names", len(keys))
		return nil, fmt.Errorf("failed to query bottles: %w", err)
	}
	defer rows.Close()

	maps, err := scanRowMaps(rows)
	if err != nil {
		slog.Error("PostgresStore.ListBottlesByNames scan failed", "error", err)
		return nil, err
	}
	bottles := make([]models.Bottle, 0, len(maps))
	for _, m := range maps {
		bottles = append(bottles, adaptBottle(m))
	}
	slog.Debug("PostgresStore.ListBottlesByNames succeeded", "requested", len(keys), "found", len(bottles))
	return bottles, nil
}

func (s *PostgresStore) ListQuestionsByBottleIDs(ctx context.Context, ids []int64) ([]models.RawQuestion, error) {
	if ids == nil {
		ids = []int64{}
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT * FROM questions WHERE bottle_id IS NULL OR bottle_id = ANY($1) ORDER BY position, id`,
		pq.Array(ids))
	if err != nil {
		slog.Error("PostgresStore.ListQuestionsByBottleIDs query failed", "error", err, "bottles", len(ids))
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	maps, err := scanRowMaps(rows)
	if err != nil {
		slog.Error("PostgresStore.ListQuestionsByBottleIDs scan failed", "error", err)
		return nil, err
	}
	questions := make([]models.RawQuestion, 0, len(maps))
	for _, m := range maps {
		questions = append(questions, adaptQuestion(m))
	}
	slog.Debug("PostgresStore.ListQuestionsByBottleIDs succeeded", "bottles", len(ids), "questions", len(questions))
	return questions, nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context, table Table) error {
	if err := checkTable(table); err != nil {
		slog.Warn("PostgresStore.DeleteAll rejected table", "table", table)
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+pq.QuoteIdentifier(string(table))); err != nil {
		slog.Error("PostgresStore.DeleteAll failed", "error", err, "table", table)
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	slog.Debug("PostgresStore.DeleteAll succeeded", "table", table)
	return nil
}

func (s *PostgresStore) InsertPackage(ctx context.Context, p models.Package) (models.Package, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO packages (name, description, bottles) VALUES ($1, $2, $3) RETURNING id`,
		p.Name, nilIfEmpty(p.Description), p.Bottles,
	).Scan(&p.ID)
	if err != nil {
		slog.Error("PostgresStore.InsertPackage failed", "error", err, "name", p.Name)
		return p, fmt.Errorf("failed to insert package %q: %w", p.Name, err)
	}
	return p, nil
}

func (s *PostgresStore) InsertBottle(ctx context.Context, b models.Bottle) (models.Bottle, error) {
	var seq sql.NullInt64
	if b.Sequence != nil {
		seq = sql.NullInt64{Int64: int64(*b.Sequence), Valid: true}
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO bottles (name, sequence) VALUES ($1, $2) RETURNING id`, b.Name, seq,
	).Scan(&b.ID)
	if err != nil {
		slog.Error("PostgresStore.InsertBottle failed", "error", err, "name", b.Name)
		return b, fmt.Errorf("failed to insert bottle %q: %w", b.Name, err)
	}
	b.Questions = nil
	return b, nil
}

func (s *PostgresStore) InsertQuestion(ctx context.Context, q models.RawQuestion) (models.RawQuestion, error) {
	choices, err := choicesColumn(q.Choices)
	if err != nil {
		return q, err
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO questions (bottle_id, bottle_name, question_text, question_type, choices, help_text, media_url, for_host, position)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		nilIfZero(q.BottleID), nilIfEmpty(q.BottleName), q.Prompt, q.Type, choices,
		nilIfEmpty(q.HelpText), nilIfEmpty(q.MediaURL), q.ForHost, q.Position,
	).Scan(&q.ID)
	if err != nil {
		slog.Error("PostgresStore.InsertQuestion failed", "error", err, "bottleID", q.BottleID)
		return q, fmt.Errorf("failed to insert question: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) SaveTasting(ctx context.Context, t models.Tasting) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tastings (code, package_id, host_name, host_phone, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (code) DO NOTHING`,
		t.Code, t.PackageID, nilIfEmpty(t.HostName), nilIfEmpty(t.HostPhone), t.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore.SaveTasting failed", "error", err, "code", t.Code)
		return fmt.Errorf("failed to save tasting %s: %w", t.Code, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateTasting
	}
	slog.Debug("PostgresStore.SaveTasting succeeded", "code", t.Code, "packageID", t.PackageID)
	return nil
}

func (s *PostgresStore) GetTastingByCode(ctx context.Context, code string) (*models.Tasting, error) {
	var t models.Tasting
	err := s.db.QueryRowContext(ctx,
		`SELECT code, package_id, COALESCE(host_name, ''), COALESCE(host_phone, ''), created_at FROM tastings WHERE code = $1`, code,
	).Scan(&t.Code, &t.PackageID, &t.HostName, &t.HostPhone, &t.CreatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore.GetTastingByCode not found", "code", code)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetTastingByCode failed", "error", err, "code", code)
		return nil, fmt.Errorf("failed to get tasting %s: %w", code, err)
	}
	return &t, nil
}

func (s *PostgresStore) SaveSubmission(ctx context.Context, sub models.Submission) error {
	enc, err := encodeSubmission(sub)
	if err != nil {
		slog.Error("PostgresStore.SaveSubmission encode failed", "error", err, "submissionID", sub.ID)
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, session_id, tasting_code, package_id, participant_name, participant_email,
		 bottle_names, answers, responses, summary, used_fallback, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sub.ID, sub.SessionID, nilIfEmpty(sub.TastingCode), nilIfZero(sub.PackageID),
		nilIfEmpty(sub.Participant.Name), nilIfEmpty(sub.Participant.Email),
		string(enc.bottles), string(enc.answers), string(enc.responses), nilIfEmpty(sub.Summary), sub.UsedFallback, sub.SubmittedAt)
	if err != nil {
		slog.Error("PostgresStore.SaveSubmission failed", "error", err, "submissionID", sub.ID, "sessionID", sub.SessionID)
		return fmt.Errorf("failed to save submission %s: %w", sub.ID, err)
	}
	slog.Debug("PostgresStore.SaveSubmission succeeded", "submissionID", sub.ID, "tastingCode", sub.TastingCode)
	return nil
}

func (s *PostgresStore) ListSubmissions(ctx context.Context, tastingCode string) ([]models.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, COALESCE(tasting_code, ''), COALESCE(package_id, 0), COALESCE(participant_name, ''),
		 COALESCE(participant_email, ''), bottle_names, answers, responses, COALESCE(summary, ''), used_fallback, submitted_at
		 FROM submissions WHERE tasting_code = $1 ORDER BY submitted_at, id`, tastingCode)
	if err != nil {
		slog.Error("PostgresStore.ListSubmissions query failed", "error", err, "tastingCode", tastingCode)
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		var sub models.Submission
		var enc submissionJSON
		if err := rows.Scan(&sub.ID, &sub.SessionID, &sub.TastingCode, &sub.PackageID,
			&sub.Participant.Name, &sub.Participant.Email, &enc.bottles, &enc.answers, &enc.responses,
			&sub.Summary, &sub.UsedFallback, &sub.SubmittedAt); err != nil {
			slog.Error("PostgresStore.ListSubmissions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		if err := decodeSubmission(&sub, enc); err != nil {
			slog.Error("PostgresStore.ListSubmissions decode failed", "error", err, "submissionID", sub.ID)
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submission rows: %w", err)
	}
	slog.Debug("PostgresStore.ListSubmissions succeeded", "tastingCode", tastingCode, "count", len(subs))
	return subs, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
