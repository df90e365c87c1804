package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/opstrack/internal/log"
	"github.com/slok/opstrack/internal/model"
	"github.com/slok/opstrack/internal/storage"
	"github.com/slok/opstrack/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.HistoryRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

var _ storage.HistoryRepository = &Repository{}

// NewRepository creates a new SQLite repository, applying the pending migrations.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite history repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

const historyColumns = `id, task_id, operation, state, message, log_lines, launched_at, finished_at`

// CreateHistoryRecord stores a terminated task record.
func (r *Repository) CreateHistoryRecord(ctx context.Context, h model.HistoryRecord) error {
	if err := h.Validate(); err != nil {
		return fmt.Errorf("invalid history record: %w", err)
	}

	query := `INSERT INTO history (` + historyColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		h.ID,
		h.TaskID,
		string(h.Operation),
		string(h.State),
		h.Message,
		h.LogLines,
		toDB(h.LaunchedAt),
		toDB(h.FinishedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: history.") {
			return fmt.Errorf("history record %s: %w", h.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert history record: %w", err)
	}

	r.logger.Debugf("Created history record %s for task %s", h.ID, h.TaskID)
	return nil
}

// GetHistoryRecord retrieves a record by ID.
func (r *Repository) GetHistoryRecord(ctx context.Context, id string) (*model.HistoryRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM history WHERE id = ?`

	h, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("history record %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query history record: %w", err)
	}

	return &h, nil
}

// ListHistoryRecords returns the records, most recently finished first.
func (r *Repository) ListHistoryRecords(ctx context.Context, opts storage.ListHistoryOpts) ([]model.HistoryRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM history`
	var args []any
	if opts.Operation != "" {
		query += ` WHERE operation = ?`
		args = append(args, string(opts.Operation))
	}
	query += ` ORDER BY finished_at DESC, id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query history: %w", err)
	}
	defer rows.Close()

	var records []model.HistoryRecord
	for rows.Next() {
		h, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		records = append(records, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (model.HistoryRecord, error) {
	var (
		h                      model.HistoryRecord
		op, state              string
		launchedAt, finishedAt int64
	)
	err := s.Scan(&h.ID, &h.TaskID, &op, &state, &h.Message, &h.LogLines, &launchedAt, &finishedAt)
	if err != nil {
		return model.HistoryRecord{}, err
	}

	h.Operation = model.OperationType(op)
	h.State = model.TaskState(state)
	h.LaunchedAt = fromDB(launchedAt)
	h.FinishedAt = fromDB(finishedAt)
	return h, nil
}

// Times are stored as unix milliseconds.
func toDB(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromDB(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
