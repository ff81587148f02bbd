package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"chessreel/internal/config"
)

// ErrDuplicate indicates a record with the same kind and uuid already exists.
var ErrDuplicate = errors.New("job record already exists")

// Store manages job status persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the ledger database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "ledger.db")
	return OpenPath(dbPath)
}

// OpenPath opens a ledger database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the ledger database file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Create inserts a new record in the received state. A record with the same
// kind and uuid yields ErrDuplicate.
func (s *Store) Create(ctx context.Context, kind Kind, uuid, userID string) (*Record, error) {
	uuid = strings.TrimSpace(uuid)
	if uuid == "" {
		return nil, errors.New("uuid is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO conversion_jobs (kind, uuid, user_id, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		string(kind),
		uuid,
		nullableString(userID),
		string(StateReceived),
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrDuplicate, kind, uuid)
		}
		return nil, fmt.Errorf("insert job record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a record by identifier. Missing records return (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM conversion_jobs WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// FindByUUID returns the record matching a kind and job correlation value, or
// (nil, nil) when absent. Callers must branch on both outcomes explicitly.
func (s *Store) FindByUUID(ctx context.Context, kind Kind, uuid string) (*Record, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+recordColumns+` FROM conversion_jobs WHERE kind = ? AND uuid = ? LIMIT 1`,
		string(kind),
		strings.TrimSpace(uuid),
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by uuid: %w", err)
	}
	return record, nil
}

// Advance moves a record to next if and only if next is strictly ahead of the
// stored state, writing the provided payload fields in the same transaction.
// It reports whether the write took effect; a duplicate delivery observing an
// equal-or-ahead state is a clean no-op that leaves every stored field intact.
func (s *Store) Advance(ctx context.Context, id int64, next State, fields Fields) (bool, error) {
	if _, ok := stateRank[next]; !ok {
		return false, fmt.Errorf("unknown state %q", next)
	}

	var advanced bool
	err := retryOnBusy(ctx, func() error {
		advanced = false
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin advance tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var current string
		row := tx.QueryRowContext(ctx, `SELECT state FROM conversion_jobs WHERE id = ?`, id)
		if err := row.Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("record %d not found", id)
			}
			return fmt.Errorf("read current state: %w", err)
		}

		if !CanAdvance(State(current), next) {
			return tx.Commit()
		}

		assignments := []string{"state = ?", "updated_at = ?"}
		args := []any{string(next), time.Now().UTC().Format(time.RFC3339Nano)}
		if fields.PGNContent != "" {
			assignments = append(assignments, "pgn_content = ?")
			args = append(args, fields.PGNContent)
		}
		if fields.TimestampsJSON != "" {
			assignments = append(assignments, "timestamps_json = ?")
			args = append(args, fields.TimestampsJSON)
		}
		if fields.VideoPath != "" {
			assignments = append(assignments, "video_path = ?")
			args = append(args, fields.VideoPath)
		}
		if fields.ThumbnailPath != "" {
			assignments = append(assignments, "thumbnail_path = ?")
			args = append(args, fields.ThumbnailPath)
		}
		if fields.ErrorMessage != "" {
			assignments = append(assignments, "error_message = ?")
			args = append(args, fields.ErrorMessage)
		}
		args = append(args, id)

		query := `UPDATE conversion_jobs SET ` + strings.Join(assignments, ", ") + ` WHERE id = ?`
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("advance record: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit advance: %w", err)
		}
		advanced = true
		return nil
	})
	return advanced, err
}

// MarkError records a terminal failure with a non-empty diagnostic.
func (s *Store) MarkError(ctx context.Context, id int64, diagnostic string) (bool, error) {
	diagnostic = strings.TrimSpace(diagnostic)
	if diagnostic == "" {
		diagnostic = "unknown failure"
	}
	return s.Advance(ctx, id, StateError, Fields{ErrorMessage: diagnostic})
}

// List returns records filtered by optional kind and states, newest first.
func (s *Store) List(ctx context.Context, kind Kind, states ...State) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM conversion_jobs`
	var clauses []string
	var args []any
	if kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(kind))
	}
	if len(states) > 0 {
		placeholders := makePlaceholders(len(states))
		clauses = append(clauses, "state IN ("+placeholders+")")
		for _, state := range states {
			args = append(args, string(state))
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Summarize returns a count of records grouped into summary buckets.
func (s *Store) Summarize(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM conversion_jobs GROUP BY state`)
	if err != nil {
		return Stats{}, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var state State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		switch state {
		case StateReceived:
			stats.Received += count
		case StateConverting, StateProcessing:
			stats.InFlight += count
		case StateCompleted:
			stats.Completed += count
		case StateError:
			stats.Errored += count
		}
	}
	return stats, rows.Err()
}

const recordColumns = "id, kind, uuid, user_id, state, pgn_content, timestamps_json, video_path, thumbnail_path, error_message, created_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id         int64
		kind       string
		uuid       string
		userID     sql.NullString
		state      string
		pgn        sql.NullString
		timestamps sql.NullString
		videoPath  sql.NullString
		thumbnail  sql.NullString
		errMessage sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&kind,
		&uuid,
		&userID,
		&state,
		&pgn,
		&timestamps,
		&videoPath,
		&thumbnail,
		&errMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		ID:             id,
		Kind:           Kind(kind),
		UUID:           uuid,
		UserID:         userID.String,
		State:          State(state),
		PGNContent:     pgn.String,
		TimestampsJSON: timestamps.String,
		VideoPath:      videoPath.String,
		ThumbnailPath:  thumbnail.String,
		ErrorMessage:   errMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
