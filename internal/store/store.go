// Package store persists finished audits in SQLite or Postgres.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers "sqlite"

	"github.com/raysh454/darklens/internal/auditor"
	"github.com/raysh454/darklens/internal/logging"
	"github.com/raysh454/darklens/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Record is a stored audit.
type Record = model.AuditRecord

var (
	ErrReportNotFound = errors.New("report not found")
	ErrInvalidRecord  = errors.New("invalid record")
	ErrUnknownDriver  = errors.New("unknown store driver")
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// SQLStore implements interfaces.ReportStore over database/sql.
type SQLStore struct {
	db     *sqlx.DB
	logger logging.Logger
}

type row struct {
	ID              string `db:"id"`
	Target          string `db:"target"`
	TargetKey       string `db:"target_key"`
	TrustScore      int    `db:"trust_score"`
	Status          string `db:"status"`
	TotalViolations int    `db:"total_violations"`
	Detector        string `db:"detector"`
	Screenshot      string `db:"screenshot"`
	CreatedAt       int64  `db:"created_at"`
	Report          string `db:"report"`
}

const columns = `id, target, target_key, trust_score, status, total_violations, detector, screenshot, created_at, report`

// Open connects to the configured database and migrates it to the latest
// schema.
func Open(ctx context.Context, cfg Config, logger logging.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With(logging.F("component", "store"))

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var dialect goose.Dialect
	switch driver {
	case "", DriverSQLite:
		driver, dialect = DriverSQLite, goose.DialectSQLite3
		if cfg.DSN == "" {
			cfg.DSN = DefaultConfig().DSN
		}
		if dir := filepath.Dir(cfg.DSN); !strings.Contains(cfg.DSN, ":") && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	case DriverPostgres, "postgres":
		driver, dialect = DriverPostgres, goose.DialectPostgres
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	db, err := sqlx.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// a single connection keeps :memory: databases and pragmas alive
		db.SetMaxOpenConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrate(ctx, db.DB, dialect, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("report store ready", logging.F("driver", driver))
	return &SQLStore{db: db, logger: logger}, nil
}

func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}
	return nil
}

func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, logger logging.Logger) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, r := range results {
		logger.Debug("applied migration", logging.F("version", r.Source.Version), logging.F("duration", r.Duration))
	}
	return nil
}

func (s *SQLStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" || rec.Report == nil {
		return ErrInvalidRecord
	}
	report, err := json.Marshal(rec.Report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	q := s.db.Rebind(`INSERT INTO audits (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, q,
		rec.ID, rec.Target, rec.TargetKey, rec.TrustScore, string(rec.Status), rec.TotalViolations,
		rec.Detector, rec.Screenshot, createdAt.UTC().UnixMicro(), string(report))
	if err != nil {
		return fmt.Errorf("insert audit %s: %w", rec.ID, err)
	}
	s.logger.Debug("saved audit", logging.F("id", rec.ID), logging.F("target_key", rec.TargetKey))
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Record, error) {
	var r row
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT `+columns+` FROM audits WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get audit %s: %w", id, err)
	}
	return r.record()
}

func (s *SQLStore) List(ctx context.Context, limit int) ([]*Record, error) {
	return s.list(ctx, `SELECT `+columns+` FROM audits ORDER BY created_at DESC, id DESC`, limit)
}

func (s *SQLStore) ListByTarget(ctx context.Context, targetKey string, limit int) ([]*Record, error) {
	return s.list(ctx, `SELECT `+columns+` FROM audits WHERE target_key = ? ORDER BY created_at DESC, id DESC`, limit, targetKey)
}

func (s *SQLStore) list(ctx context.Context, q string, limit int, args ...any) ([]*Record, error) {
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	out := make([]*Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// DeleteBefore removes audits older than cutoff and reports how many went.
func (s *SQLStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM audits WHERE created_at < ?`), cutoff.UTC().UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("delete audits: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (r row) record() (*Record, error) {
	var report auditor.Report
	if err := json.Unmarshal([]byte(r.Report), &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", r.ID, err)
	}
	return &Record{
		ID:              r.ID,
		Target:          r.Target,
		TargetKey:       r.TargetKey,
		TrustScore:      r.TrustScore,
		Status:          auditor.Status(r.Status),
		TotalViolations: r.TotalViolations,
		Detector:        r.Detector,
		Screenshot:      r.Screenshot,
		CreatedAt:       time.UnixMicro(r.CreatedAt).UTC(),
		Report:          &report,
	}, nil
}
