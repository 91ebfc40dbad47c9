package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
)

// Driver names registered by the blank imports in drivers.go.
const (
	// DriverModernc is the pure Go SQLite driver (no CGO). Default.
	DriverModernc = "sqlite"
	// DriverMattn is the CGO SQLite driver.
	DriverMattn = "sqlite3"
)

// timeLayout is fixed-width so that lexical order of stored values equals
// chronological order (ORDER BY on the TEXT columns).
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS scan_runs (
	run_id INTEGER PRIMARY KEY,
	root_path TEXT UNIQUE,
	queued_at TEXT,
	started_at TEXT,
	completed_at TEXT,
	status TEXT,
	total_files INTEGER DEFAULT 0,
	total_errors INTEGER DEFAULT 0,
	duration_seconds REAL,
	error_message TEXT
);

CREATE TABLE IF NOT EXISTS files (
	file_id INTEGER PRIMARY KEY,
	run_id INTEGER NOT NULL,
	path TEXT NOT NULL,
	file_name TEXT,
	subfolder TEXT,
	extension TEXT,
	created_at TEXT,
	modified_at TEXT,
	modified_by TEXT,
	FOREIGN KEY(run_id) REFERENCES scan_runs(run_id),
	UNIQUE(run_id, path)
);

CREATE INDEX IF NOT EXISTS idx_files_run_subfolder ON files(run_id, subfolder);
CREATE INDEX IF NOT EXISTS idx_files_run_extension ON files(run_id, extension);
CREATE INDEX IF NOT EXISTS idx_files_run_modified ON files(run_id, modified_at);
`

const upsertFileSQL = `
INSERT INTO files(run_id, path, file_name, subfolder, extension, created_at, modified_at, modified_by)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, path) DO UPDATE SET
	file_name = excluded.file_name,
	subfolder = excluded.subfolder,
	extension = excluded.extension,
	created_at = COALESCE(excluded.created_at, files.created_at),
	modified_at = COALESCE(excluded.modified_at, files.modified_at),
	modified_by = COALESCE(excluded.modified_by, files.modified_by)`

const runColumns = `run_id, root_path, queued_at, started_at, completed_at, status,
	total_files, total_errors, duration_seconds, error_message`

// Options configures how the store opens its database.
type Options struct {
	// Driver is DriverModernc (default) or DriverMattn.
	Driver string
}

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time

	schemaMu sync.Mutex
	mu       sync.RWMutex
	closed   bool
}

// Verify interface implementation at compile time
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the store at path and ensures the schema.
// An empty path opens an in-memory store for testing.
func NewSQLiteStore(path string, opts ...Options) (*SQLiteStore, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Driver == "" {
		o.Driver = DriverModernc
	}

	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open(o.Driver, dsn)
	if err != nil {
		return nil, fserrors.StoreError("open", err)
	}

	// Single connection: writers never contend with each other and an
	// in-memory database stays a single database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fserrors.StoreError("pragma", err)
		}
	}

	s := NewSQLiteStoreFromDB(db, path)
	if err := s.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Debug("store_opened",
		slog.String("path", path),
		slog.String("driver", o.Driver))

	return s, nil
}

// NewSQLiteStoreFromDB wraps an already open database without touching the schema.
func NewSQLiteStoreFromDB(db *sql.DB, path string) *SQLiteStore {
	return &SQLiteStore{
		db:   db,
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Path returns the database file path ("" for in-memory stores).
func (s *SQLiteStore) Path() string {
	return s.path
}

// EnsureSchema creates the tables and indexes if absent. Safe to call concurrently.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fserrors.StoreError("ensure_schema", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO schema_version (version) VALUES (?)", CurrentSchemaVersion); err != nil {
		return fserrors.StoreError("ensure_schema", err)
	}
	return nil
}

// CanonicalRoot returns the absolute, cleaned form of root with symlinks
// resolved when the path exists.
func CanonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fserrors.New(fserrors.ErrCodeInvalidPath,
			fmt.Sprintf("cannot resolve path %q", root), err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.Clean(abs), nil
}

// PrepareRun creates a queued run for rootPath, or resets the existing one and
// deletes its file records. Returns the run id.
func (s *SQLiteStore) PrepareRun(ctx context.Context, rootPath string) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	root, err := CanonicalRoot(rootPath)
	if err != nil {
		return 0, err
	}
	now := formatTime(s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fserrors.StoreError("prepare_run", err)
	}
	defer func() { _ = tx.Rollback() }()

	var runID int64
	err = tx.QueryRowContext(ctx,
		"SELECT run_id FROM scan_runs WHERE root_path = ?", root).Scan(&runID)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `
			UPDATE scan_runs
			SET queued_at = ?, started_at = NULL, completed_at = NULL,
				status = ?, total_files = 0, total_errors = 0,
				duration_seconds = NULL, error_message = NULL
			WHERE run_id = ?`, now, string(RunStatusQueued), runID); err != nil {
			return 0, fserrors.StoreError("prepare_run", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE run_id = ?", runID); err != nil {
			return 0, fserrors.StoreError("prepare_run", err)
		}
	case stderrors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			"INSERT INTO scan_runs(root_path, queued_at, status) VALUES (?, ?, ?)",
			root, now, string(RunStatusQueued))
		if err != nil {
			return 0, fserrors.StoreError("prepare_run", err)
		}
		runID, err = res.LastInsertId()
		if err != nil {
			return 0, fserrors.StoreError("prepare_run", err)
		}
	default:
		return 0, fserrors.StoreError("prepare_run", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fserrors.StoreError("prepare_run", err)
	}

	slog.Debug("run_prepared", slog.Int64("run_id", runID), slog.String("root", root))
	return runID, nil
}

// MarkRunStarted moves a queued run to running. Unknown ids are a no-op; a
// run in any other state is left unchanged and ErrInvalidStatus is returned.
func (s *SQLiteStore) MarkRunStarted(ctx context.Context, runID int64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE scan_runs SET started_at = ?, status = ? WHERE run_id = ? AND status = ?",
		formatTime(s.now()), string(RunStatusRunning), runID, string(RunStatusQueued))
	if err != nil {
		return fserrors.StoreError("mark_run_started", err)
	}
	return s.checkTransition(ctx, "mark_run_started", res, runID, RunStatusRunning)
}

// UpdateRunProgress overwrites the run's running counters.
func (s *SQLiteStore) UpdateRunProgress(ctx context.Context, runID int64, totalFiles, totalErrors int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE scan_runs SET total_files = ?, total_errors = ? WHERE run_id = ?",
		totalFiles, totalErrors, runID)
	if err != nil {
		return fserrors.StoreError("update_run_progress", err)
	}
	return nil
}

// FinalizeRun records the terminal state of a running run. Unknown ids are a
// no-op; a run that is not running is left unchanged and ErrInvalidStatus is
// returned.
func (s *SQLiteStore) FinalizeRun(ctx context.Context, runID int64, f Finalization) error {
	if !f.Status.IsTerminal() {
		return fserrors.New(fserrors.ErrCodeInvalidStatus,
			fmt.Sprintf("finalize status must be completed or failed, got %q", f.Status), nil)
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	var errMsg any
	if f.ErrorMessage != nil {
		errMsg = *f.ErrorMessage
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE scan_runs
		SET completed_at = ?, status = ?, total_files = ?, total_errors = ?,
			duration_seconds = ?, error_message = ?
		WHERE run_id = ? AND status = ?`,
		formatTime(s.now()), string(f.Status), f.TotalFiles, f.TotalErrors,
		f.DurationSeconds, errMsg, runID, string(RunStatusRunning))
	if err != nil {
		return fserrors.StoreError("finalize_run", err)
	}
	return s.checkTransition(ctx, "finalize_run", res, runID, f.Status)
}

// checkTransition explains a guarded UPDATE that touched no row: the run is
// either unknown (a no-op) or not in a state that may move to next.
func (s *SQLiteStore) checkTransition(ctx context.Context, op string, res sql.Result, runID int64, next RunStatus) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fserrors.StoreError(op, err)
	}
	if n > 0 {
		return nil
	}
	run, err := s.GetRun(ctx, runID)
	if err != nil || run == nil {
		return err
	}
	if run.Status.CanTransitionTo(next) {
		return nil
	}
	return fserrors.New(fserrors.ErrCodeInvalidStatus,
		fmt.Sprintf("run %d cannot move from %s to %s", runID, run.Status, next), nil).
		WithDetail("operation", op)
}

// InsertFileBatch upserts rows in a single transaction. Nullable columns keep
// their previous value when the new value is nil.
func (s *SQLiteStore) InsertFileBatch(ctx context.Context, runID int64, rows []FileRecord) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fserrors.StoreError("insert_file_batch", fmt.Errorf("store is closed"))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fserrors.StoreError("insert_file_batch", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertFileSQL)
	if err != nil {
		return fserrors.StoreError("insert_file_batch", err)
	}
	defer stmt.Close()

	for i := range rows {
		r := &rows[i]
		if _, err := stmt.ExecContext(ctx,
			runID, r.Path, r.FileName, r.Subfolder, r.Extension,
			nullableTime(r.CreatedAt), nullableTime(r.ModifiedAt), nullableString(r.Owner),
		); err != nil {
			return fserrors.StoreError("insert_file_batch", err).WithDetail("path", r.Path)
		}
	}

	if err := tx.Commit(); err != nil {
		return fserrors.StoreError("insert_file_batch", err)
	}
	return nil
}

// GetRun returns the run with the given id, or nil if it does not exist.
func (s *SQLiteStore) GetRun(ctx context.Context, runID int64) (*Run, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM scan_runs WHERE run_id = ?", runID)
	run, err := scanRun(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fserrors.StoreError("get_run", err)
	}
	return run, nil
}

// GetRunByRoot returns the run keyed by the canonical form of rootPath, or nil.
func (s *SQLiteStore) GetRunByRoot(ctx context.Context, rootPath string) (*Run, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	root, err := CanonicalRoot(rootPath)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM scan_runs WHERE root_path = ?", root)
	run, err := scanRun(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fserrors.StoreError("get_run_by_root", err)
	}
	return run, nil
}

// ListRuns returns running runs first, then queued, then the rest; each group
// ordered by most recent activity first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]Run, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM scan_runs
		ORDER BY
			CASE status WHEN 'running' THEN 0 WHEN 'queued' THEN 1 ELSE 2 END,
			COALESCE(completed_at, started_at, queued_at) DESC,
			run_id DESC`)
	if err != nil {
		return nil, fserrors.StoreError("list_runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fserrors.StoreError("list_runs", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fserrors.StoreError("list_runs", err)
	}
	return runs, nil
}

// FetchExtensions returns the distinct extensions of a run, ascending.
// "" stands for files without an extension.
func (s *SQLiteStore) FetchExtensions(ctx context.Context, runID int64) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT COALESCE(extension, '') AS ext FROM files WHERE run_id = ? ORDER BY ext",
		runID)
	if err != nil {
		return nil, fserrors.StoreError("fetch_extensions", err)
	}
	defer rows.Close()

	exts := []string{}
	for rows.Next() {
		var ext string
		if err := rows.Scan(&ext); err != nil {
			return nil, fserrors.StoreError("fetch_extensions", err)
		}
		exts = append(exts, ext)
	}
	if err := rows.Err(); err != nil {
		return nil, fserrors.StoreError("fetch_extensions", err)
	}
	return exts, nil
}

// FetchPage returns one page of matching file rows and the total match count.
func (s *SQLiteStore) FetchPage(ctx context.Context, q PageQuery) (*Page, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	where, args := buildWhere(q)
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	offset := max(q.PageIndex, 0) * pageSize

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE "+where, args...).Scan(&total); err != nil {
		return nil, fserrors.StoreError("fetch_page", err)
	}

	query := `SELECT path, file_name, subfolder, extension, created_at, modified_at, modified_by
		FROM files WHERE ` + where + " " + buildOrderBy(q.Sort) + " LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return nil, fserrors.StoreError("fetch_page", err)
	}
	defer rows.Close()

	page := &Page{Rows: []FileRecord{}, Total: total}
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, fserrors.StoreError("fetch_page", err)
		}
		page.Rows = append(page.Rows, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fserrors.StoreError("fetch_page", err)
	}
	return page, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fserrors.StoreError("access", fmt.Errorf("store is closed"))
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                             Run
		root, status                    sql.NullString
		queued, started, completed, msg sql.NullString
		duration                        sql.NullFloat64
		files, errs                     sql.NullInt64
	)
	if err := row.Scan(&run.ID, &root, &queued, &started, &completed, &status,
		&files, &errs, &duration, &msg); err != nil {
		return nil, err
	}

	run.RootPath = root.String
	run.Status = RunStatus(status.String)
	run.TotalFiles = int(files.Int64)
	run.TotalErrors = int(errs.Int64)
	run.QueuedAt = parseTime(queued)
	run.StartedAt = parseTime(started)
	run.CompletedAt = parseTime(completed)
	if duration.Valid {
		d := duration.Float64
		run.DurationSeconds = &d
	}
	if msg.Valid {
		m := msg.String
		run.ErrorMessage = &m
	}
	return &run, nil
}

func scanFile(row rowScanner) (*FileRecord, error) {
	var (
		rec                      FileRecord
		name, sub, ext           sql.NullString
		created, modified, owner sql.NullString
	)
	if err := row.Scan(&rec.Path, &name, &sub, &ext, &created, &modified, &owner); err != nil {
		return nil, err
	}
	rec.FileName = name.String
	rec.Subfolder = sub.String
	rec.Extension = ext.String
	rec.CreatedAt = parseTime(created)
	rec.ModifiedAt = parseTime(modified)
	if owner.Valid {
		o := owner.String
		rec.Owner = &o
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		// Rows written by older tools may use plain RFC3339.
		t, err = time.Parse(time.RFC3339Nano, v.String)
		if err != nil {
			return nil
		}
	}
	return &t
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
