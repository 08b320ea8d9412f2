// Package storage provides the SQL-backed conversation context store.
// It works against postgres in production and sqlite in development;
// the scoped read-modify-write contract of conversation.Store is
// implemented with a transaction per call.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/convoflow/core/conversation"
	"github.com/m3rciful/convoflow/core/database"
	"github.com/m3rciful/convoflow/core/logger"
)

type contextRow struct {
	ChatID      int64  `db:"chat_id"`
	UserID      int64  `db:"user_id"`
	ActiveState string `db:"active_state"`
	Data        []byte `db:"data"`
}

// SQLStore persists conversation contexts in a conversation_contexts table.
type SQLStore struct {
	db *sqlx.DB
}

// New wraps an open sqlx connection.
func New(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// EnsureSchema creates the contexts table when migrations are not in
// use, e.g. with the sqlite backend.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS conversation_contexts (
		chat_id      BIGINT NOT NULL,
		user_id      BIGINT NOT NULL,
		active_state TEXT      NOT NULL DEFAULT '',
		data         TEXT      NOT NULL DEFAULT '{}',
		updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (chat_id, user_id)
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("storage: ensure schema: %w", err)
	}
	return nil
}

// Update loads the context for id inside a transaction, runs fn with
// exclusive access, and persists the mutated context on success. On
// postgres the row is locked with FOR UPDATE for the duration of the
// call; sqlite relies on its single-writer transaction semantics.
func (s *SQLStore) Update(ctx context.Context, id conversation.ID, fn func(*conversation.Context) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c, err := s.load(ctx, tx, id, true)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		// Scoped access releases on failure; mutations are discarded.
		return err
	}
	if err := s.save(ctx, tx, c); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// View runs fn against the stored context without persisting changes.
func (s *SQLStore) View(ctx context.Context, id conversation.ID, fn func(*conversation.Context) error) error {
	c, err := s.load(ctx, s.db, id, false)
	if err != nil {
		return err
	}
	return fn(c)
}

type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

func (s *SQLStore) load(ctx context.Context, q queryer, id conversation.ID, forUpdate bool) (*conversation.Context, error) {
	query := `SELECT chat_id, user_id, active_state, data
		FROM conversation_contexts WHERE chat_id = ? AND user_id = ?`
	if forUpdate && s.db.DriverName() == database.DriverPostgres {
		query += " FOR UPDATE"
	}
	query = s.db.Rebind(query)

	var row contextRow
	err := q.GetContext(ctx, &row, query, id.ChatID, id.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return &conversation.Context{ID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load %s: %w", id, err)
	}

	c := &conversation.Context{ID: id, Active: row.ActiveState}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &c.Data); err != nil {
			// A corrupt scratch blob must not wedge the conversation.
			logger.Warn(ctx, "conv.storage", "data.corrupt",
				slog.String("id", id.String()),
				slog.String("err", err.Error()),
			)
			c.Data = nil
		}
	}
	if len(c.Data) == 0 {
		c.Data = nil
	}
	return c, nil
}

func (s *SQLStore) save(ctx context.Context, tx *sqlx.Tx, c *conversation.Context) error {
	data := c.Data
	if data == nil {
		data = map[string]any{}
	}
	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", c.ID, err)
	}

	query := s.db.Rebind(`INSERT INTO conversation_contexts (chat_id, user_id, active_state, data, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (chat_id, user_id)
		DO UPDATE SET active_state = excluded.active_state, data = excluded.data, updated_at = CURRENT_TIMESTAMP`)
	if _, err := tx.ExecContext(ctx, query, c.ID.ChatID, c.ID.UserID, c.Active, blob); err != nil {
		return fmt.Errorf("storage: save %s: %w", c.ID, err)
	}
	return nil
}
