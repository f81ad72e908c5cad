// Package sqlite provides a SQLite-backed ThreadStore.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tambo-ai/tambo-go/internal/domain"
	"github.com/tambo-ai/tambo-go/internal/storage"
)

// Store is a SQLite implementation of ThreadStore.
type Store struct {
	db *sqlx.DB
}

var _ storage.ThreadStore = (*Store)(nil)

// New opens (or creates) the database at path and initializes the schema.
func New(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA foreign_keys=ON`,
		`PRAGMA busy_timeout=5000`,
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS threads (
id TEXT PRIMARY KEY,
project_id TEXT NOT NULL,
metadata TEXT,
created_at TIMESTAMP NOT NULL,
updated_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS messages (
id TEXT PRIMARY KEY,
thread_id TEXT NOT NULL,
role TEXT NOT NULL,
content TEXT NOT NULL,
tool_call_id TEXT,
tool_call_request TEXT,
created_at TIMESTAMP NOT NULL,
FOREIGN KEY (thread_id) REFERENCES threads(id) ON DELETE CASCADE
)`,
		`CREATE INDEX IF NOT EXISTS idx_threads_project ON threads(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateThread(ctx context.Context, thread *storage.Thread) error {
	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	thread.CreatedAt = time.Now()
	thread.UpdatedAt = thread.CreatedAt

	metadata, err := json.Marshal(thread.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO threads (id, project_id, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		thread.ID, thread.ProjectID, string(metadata), thread.CreatedAt, thread.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}
	return nil
}

func (s *Store) GetThread(ctx context.Context, id string) (*storage.Thread, error) {
	var thread storage.Thread
	var metadataJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, metadata, created_at, updated_at FROM threads WHERE id = ?`, id).
		Scan(&thread.ID, &thread.ProjectID, &metadataJSON, &thread.CreatedAt, &thread.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thread %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &thread.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	messages, err := s.GetMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	thread.Messages = messages
	return &thread, nil
}

func (s *Store) ListThreads(ctx context.Context, opts storage.ListOptions) ([]*storage.Thread, error) {
	query := `SELECT id, project_id, metadata, created_at, updated_at FROM threads`
	var args []any
	if opts.ProjectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, opts.ProjectID)
	}
	query += ` ORDER BY updated_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var result []*storage.Thread
	for rows.Next() {
		var thread storage.Thread
		var metadataJSON sql.NullString
		if err := rows.Scan(&thread.ID, &thread.ProjectID, &metadataJSON, &thread.CreatedAt, &thread.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &thread.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		result = append(result, &thread)
	}
	return result, rows.Err()
}

func (s *Store) AddMessage(ctx context.Context, threadID string, msg *domain.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.ThreadID = threadID
	msg.CreatedAt = time.Now()

	content, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	var toolCallRequest sql.NullString
	if msg.ToolCallRequest != nil {
		raw, err := json.Marshal(msg.ToolCallRequest)
		if err != nil {
			return fmt.Errorf("failed to marshal tool call request: %w", err)
		}
		toolCallRequest = sql.NullString{String: string(raw), Valid: true}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE threads SET updated_at = ? WHERE id = ?`, msg.CreatedAt, threadID)
	if err != nil {
		return fmt.Errorf("failed to touch thread: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("thread %s: %w", threadID, storage.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, thread_id, role, content, tool_call_id, tool_call_request, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, threadID, string(msg.Role), string(content), msg.ToolCallID, toolCallRequest, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *Store) GetMessages(ctx context.Context, threadID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, tool_call_id, tool_call_request, created_at
		 FROM messages WHERE thread_id = ? ORDER BY created_at ASC, rowid ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var content string
		var toolCallID, toolCallRequest sql.NullString
		if err := rows.Scan(&msg.ID, &msg.Role, &content, &toolCallID, &toolCallRequest, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.ThreadID = threadID
		if err := json.Unmarshal([]byte(content), &msg.Content); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content: %w", err)
		}
		msg.ToolCallID = toolCallID.String
		if toolCallRequest.Valid && toolCallRequest.String != "" {
			msg.ToolCallRequest = &domain.ToolCallRequest{}
			if err := json.Unmarshal([]byte(toolCallRequest.String), msg.ToolCallRequest); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool call request: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
