package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	"github.com/BTreeMap/TastingFlow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(sqlitePath(dsn))
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// sqlitePath strips the file: scheme and query parameters from a SQLite DSN.
func sqlitePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *SQLiteStore) ListPackages(ctx context.Context) ([]models.Package, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, COALESCE(description, ''), bottles FROM packages ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore.ListPackages query failed", "error", err)
		return nil, fmt.Errorf("failed to query packages: %w", err)
	}
	defer rows.Close()

	var packages []models.Package
	for rows.Next() {
		var p models.Package
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Bottles); err != nil {
			slog.Error("SQLiteStore.ListPackages scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}
		packages = append(packages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate package rows: %w", err)
	}
	slog.Debug("SQLiteStore.ListPackages succeeded", "count", len(packages))
	return packages, nil
}

func (s *SQLiteStore) GetPackage(ctx context.Context, id int64) (*models.Package, error) {
	var p models.Package
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(description, ''), bottles FROM packages WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Bottles)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.GetPackage not found", "packageID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetPackage failed", "error", err, "packageID", id)
		return nil, fmt.Errorf("failed to get package %d: %w", id, err)
	}
	return &p, nil
}

func (s *SQLiteStore) ListBottlesByNames(ctx context.Context, names []string) ([]models.Bottle, error) {
	keys := lowerNames(names)
	if len(keys) == 0 {
		return nil, nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	query := `SELECT * FROM bottles WHERE LOWER(TRIM(name)) IN (` + placeholders(len(keys)) + `) ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("SQLiteStore.ListBottlesByNames query failed", "error", err, "names", len(keys))
		return nil, fmt.Errorf("failed to query bottles: %w", err)
	}
	defer rows.Close()

	maps, err := scanRowMaps(rows)
	if err != nil {
		slog.Error("SQLiteStore.ListBottlesByNames scan failed", "error", err)
		return nil, err
	}
	bottles := make([]models.Bottle, 0, len(maps))
	for _, m := range maps {
		bottles = append(bottles, adaptBottle(m))
	}
	slog.Debug("SQLiteStore.ListBottlesByNames succeeded", "requested", len(keys), "found", len(bottles))
	return bottles, nil
}

func (s *SQLiteStore) ListQuestionsByBottleIDs(ctx context.Context, ids []int64) ([]models.RawQuestion, error) {
	query := `SELECT * FROM questions WHERE bottle_id IS NULL`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if len(ids) > 0 {
		query += ` OR bottle_id IN (` + placeholders(len(ids)) + `)`
	}
	query += ` ORDER BY position, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("SQLiteStore.ListQuestionsByBottleIDs query failed", "error", err, "bottles", len(ids))
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	maps, err := scanRowMaps(rows)
	if err != nil {
		slog.Error("SQLiteStore.ListQuestionsByBottleIDs scan failed", "error", err)
		return nil, err
	}
	questions := make([]models.RawQuestion, 0, len(maps))
	for _, m := range maps {
		questions = append(questions, adaptQuestion(m))
	}
	slog.Debug("SQLiteStore.ListQuestionsByBottleIDs succeeded", "bottles", len(ids), "questions", len(questions))
	return questions, nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context, table Table) error {
	if err := checkTable(table); err != nil {
		slog.Warn("SQLiteStore.DeleteAll rejected table", "table", table)
		return err
	}
	// table is one of the fixed catalog names, never caller text.
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+string(table)); err != nil {
		slog.Error("SQLiteStore.DeleteAll failed", "error", err, "table", table)
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	slog.Debug("SQLiteStore.DeleteAll succeeded", "table", table)
	return nil
}

func (s *SQLiteStore) InsertPackage(ctx context.Context, p models.Package) (models.Package, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO packages (name, description, bottles) VALUES (?, ?, ?)`,
		p.Name, nilIfEmpty(p.Description), p.Bottles)
	if err != nil {
		slog.Error("SQLiteStore.InsertPackage failed", "error", err, "name", p.Name)
		return p, fmt.Errorf("failed to insert package %q: %w", p.Name, err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return p, fmt.Errorf("failed to read package id: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) InsertBottle(ctx context.Context, b models.Bottle) (models.Bottle, error) {
	var seq interface{}
	if b.Sequence != nil {
		seq = *b.Sequence
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO bottles (name, sequence) VALUES (?, ?)`, b.Name, seq)
	if err != nil {
		slog.Error("SQLiteStore.InsertBottle failed", "error", err, "name", b.Name)
		return b, fmt.Errorf("failed to insert bottle %q: %w", b.Name, err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return b, fmt.Errorf("failed to read bottle id: %w", err)
	}
	b.Questions = nil
	return b, nil
}

func (s *SQLiteStore) InsertQuestion(ctx context.Context, q models.RawQuestion) (models.RawQuestion, error) {
	choices, err := choicesColumn(q.Choices)
	if err != nil {
		return q, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (bottle_id, bottle_name, question_text, question_type, choices, help_text, media_url, for_host, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nilIfZero(q.BottleID), nilIfEmpty(q.BottleName), q.Prompt, q.Type, choices,
		nilIfEmpty(q.HelpText), nilIfEmpty(q.MediaURL), q.ForHost, q.Position)
	if err != nil {
		slog.Error("SQLiteStore.InsertQuestion failed", "error", err, "bottleID", q.BottleID)
		return q, fmt.Errorf("failed to insert question: %w", err)
	}
	if q.ID, err = res.LastInsertId(); err != nil {
		return q, fmt.Errorf("failed to read question id: %w", err)
	}
	return q, nil
}

func (s *SQLiteStore) SaveTasting(ctx context.Context, t models.Tasting) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tastings (code, package_id, host_name, host_phone, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (code) DO NOTHING`,
		t.Code, t.PackageID, nilIfEmpty(t.HostName), nilIfEmpty(t.HostPhone), t.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore.SaveTasting failed", "error", err, "code", t.Code)
		return fmt.Errorf("failed to save tasting %s: %w", t.Code, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateTasting
	}
	slog.Debug("SQLiteStore.SaveTasting succeeded", "code", t.Code, "packageID", t.PackageID)
	return nil
}

func (s *SQLiteStore) GetTastingByCode(ctx context.Context, code string) (*models.Tasting, error) {
	var t models.Tasting
	err := s.db.QueryRowContext(ctx,
		`SELECT code, package_id, COALESCE(host_name, ''), COALESCE(host_phone, ''), created_at FROM tastings WHERE code = ?`, code,
	).Scan(&t.Code, &t.PackageID, &t.HostName, &t.HostPhone, &t.CreatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.GetTastingByCode not found", "code", code)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetTastingByCode failed", "error", err, "code", code)
		return nil, fmt.Errorf("failed to get tasting %s: %w", code, err)
	}
	return &t, nil
}

func (s *SQLiteStore) SaveSubmission(ctx context.Context, sub models.Submission) error {
	enc, err := encodeSubmission(sub)
	if err != nil {
		slog.Error("SQLiteStore.SaveSubmission encode failed", "error", err, "submissionID", sub.ID)
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, session_id, tasting_code, package_id, participant_name, participant_email,
		 bottle_names, answers, responses, summary, used_fallback, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.SessionID, nilIfEmpty(sub.TastingCode), nilIfZero(sub.PackageID),
		nilIfEmpty(sub.Participant.Name), nilIfEmpty(sub.Participant.Email),
		string(enc.bottles), string(enc.answers), string(enc.responses), nilIfEmpty(sub.Summary), sub.UsedFallback, sub.SubmittedAt)
	if err != nil {
		slog.Error("SQLiteStore.SaveSubmission failed", "error", err, "submissionID", sub.ID, "sessionID", sub.SessionID)
		return fmt.Errorf("failed to save submission %s: %w", sub.ID, err)
	}
	slog.Debug("SQLiteStore.SaveSubmission succeeded", "submissionID", sub.ID, "tastingCode", sub.TastingCode)
	return nil
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context, tastingCode string) ([]models.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, COALESCE(tasting_code, ''), COALESCE(package_id, 0), COALESCE(participant_name, ''),
		 COALESCE(participant_email, ''), bottle_names, answers, responses, COALESCE(summary, ''), used_fallback, submitted_at
		 FROM submissions WHERE tasting_code = ? ORDER BY submitted_at, id`, tastingCode)
	if err != nil {
		slog.Error("SQLiteStore.ListSubmissions query failed", "error", err, "tastingCode", tastingCode)
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
			slog.Error("SQLiteStore.ListSubmissions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		if err := decodeSubmission(&sub, enc); err != nil {
			slog.Error("SQLiteStore.ListSubmissions decode failed", "error", err, "submissionID", sub.ID)
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submission rows: %w", err)
	}
	slog.Debug("SQLiteStore.ListSubmissions succeeded", "tastingCode", tastingCode, "count", len(subs))
	return subs, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	} else {
		slog.Debug("SQLite database connection closed successfully")
	}
	return err
}
