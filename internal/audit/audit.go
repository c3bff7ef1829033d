package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one finished task
type Entry struct {
	TaskID    string
	Timestamp time.Time
	TaskType  string
	Status    string
	Priority  float64
	Fallback  bool
	Duration  time.Duration
	Error     string
	Metadata  map[string]string
}

// Filter narrows an audit query. Zero values match everything.
type Filter struct {
	TaskType string
	Status   string
	Since    time.Time
	Limit    int
}

// Stats holds aggregate task statistics
type Stats struct {
	Total           int            `json:"total"`
	Completed       int            `json:"completed"`
	Failed          int            `json:"failed"`
	ErrorRate       float64        `json:"error_rate"`
	AverageDuration time.Duration  `json:"average_duration"`
	ByType          map[string]int `json:"by_type"`
}

// Logger records finished tasks
type Logger interface {
	Log(ctx context.Context, entry *Entry) error
	Close() error
}

// SQLiteLog implements Logger using SQLite
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLiteLog opens (or creates) the audit database at dbPath
func NewSQLiteLog(dbPath string) (*SQLiteLog, error) {
	if strings.HasPrefix(dbPath, "~/") {
		home, _ := os.UserHomeDir()
		dbPath = filepath.Join(home, dbPath[2:])
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	l := &SQLiteLog{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return l, nil
}

// initSchema creates the task log table
func (l *SQLiteLog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS task_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		task_type TEXT NOT NULL,
		status TEXT NOT NULL,
		priority REAL,
		fallback BOOLEAN,
		duration_ms INTEGER,
		error TEXT,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_task_timestamp ON task_log(timestamp);
	CREATE INDEX IF NOT EXISTS idx_task_type ON task_log(task_type);
	CREATE INDEX IF NOT EXISTS idx_task_status ON task_log(status);
	`

	_, err := l.db.Exec(schema)
	return err
}

// Log records a finished task
func (l *SQLiteLog) Log(ctx context.Context, entry *Entry) error {
	metadata := []byte("{}")
	if len(entry.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(entry.Metadata); err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO task_log (
			task_id, timestamp, task_type, status, priority, fallback, duration_ms, error, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := l.db.ExecContext(ctx, query,
		entry.TaskID,
		entry.Timestamp.UTC(),
		entry.TaskType,
		entry.Status,
		entry.Priority,
		entry.Fallback,
		entry.Duration.Milliseconds(),
		entry.Error,
		string(metadata),
	)
	return err
}

// Query retrieves task records, newest first
func (l *SQLiteLog) Query(ctx context.Context, filter Filter) ([]*Entry, error) {
	query := "SELECT task_id, timestamp, task_type, status, priority, fallback, duration_ms, error, metadata FROM task_log WHERE 1=1"
	args := []interface{}{}

	if filter.TaskType != "" {
		query += " AND task_type = ?"
		args = append(args, filter.TaskType)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.UTC())
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var durationMs int64
		var metadata string

		err := rows.Scan(
			&entry.TaskID,
			&entry.Timestamp,
			&entry.TaskType,
			&entry.Status,
			&entry.Priority,
			&entry.Fallback,
			&durationMs,
			&entry.Error,
			&metadata,
		)
		if err != nil {
			return nil, err
		}

		entry.Duration = time.Duration(durationMs) * time.Millisecond
		if metadata != "" && metadata != "{}" {
			json.Unmarshal([]byte(metadata), &entry.Metadata)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Stats returns aggregate statistics for tasks logged since the given time
func (l *SQLiteLog) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN status = 'COMPLETED' THEN 1 ELSE 0 END), 0) as completed,
			COALESCE(SUM(CASE WHEN status = 'FAILED' THEN 1 ELSE 0 END), 0) as failed,
			AVG(duration_ms) as avg_duration_ms
		FROM task_log
		WHERE timestamp >= ?
	`

	stats := Stats{ByType: make(map[string]int)}
	var avgDuration sql.NullFloat64

	err := l.db.QueryRowContext(ctx, query, since.UTC()).Scan(
		&stats.Total,
		&stats.Completed,
		&stats.Failed,
		&avgDuration,
	)
	if err != nil {
		return nil, err
	}

	if avgDuration.Valid {
		stats.AverageDuration = time.Duration(avgDuration.Float64 * float64(time.Millisecond))
	}
	if stats.Total > 0 {
		stats.ErrorRate = float64(stats.Failed) / float64(stats.Total)
	}

	rows, err := l.db.QueryContext(ctx,
		"SELECT task_type, COUNT(*) FROM task_log WHERE timestamp >= ? GROUP BY task_type", since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var taskType string
		var count int
		if err := rows.Scan(&taskType, &count); err != nil {
			return nil, err
		}
		stats.ByType[taskType] = count
	}

	return &stats, rows.Err()
}

// Close closes the database connection
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}
