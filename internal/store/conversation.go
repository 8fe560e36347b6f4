package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const conversationColumns = `id, kind, name, created_at, updated_at, last_message_id, unread_count,
	archived, muted, settings, metadata, external_id, deleted_at`

// InsertConversation creates a conversation row. A live conversation with the
// same external id yields ErrConflict.
func (db *DB) InsertConversation(ctx context.Context, c *Conversation) error {
	settings, err := json.Marshal(c.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	metadata, err := encodeMetadata(c.Metadata)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO conversations (id, kind, name, created_at, updated_at, last_message_id, unread_count,
			archived, muted, settings, metadata, external_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Kind), c.Name, c.CreatedAt, c.UpdatedAt, nullString(c.LastMessageID), c.UnreadCount,
		c.Archived, c.Muted, string(settings), metadata, nullString(c.ExternalID))
	return mapErr(err)
}

// GetConversation returns a conversation by id, including soft-deleted ones.
// Returns nil when absent.
func (db *DB) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetConversationByExternalID returns the live conversation bound to an
// external chat id, or nil.
func (db *DB) GetConversationByExternalID(ctx context.Context, externalID string) (*Conversation, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE external_id = ? AND deleted_at IS NULL`, externalID)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListConversations returns live conversations, most recently updated first.
func (db *DB) ListConversations(ctx context.Context, includeArchived bool) ([]Conversation, error) {
	q := `SELECT ` + conversationColumns + ` FROM conversations WHERE deleted_at IS NULL`
	if !includeArchived {
		q += ` AND archived = 0`
	}
	q += ` ORDER BY updated_at DESC, id`
	return db.queryConversations(ctx, q)
}

// ListConversationsByIDs returns the live conversations among ids, most
// recently updated first. Unknown ids are ignored.
func (db *DB) ListConversationsByIDs(ctx context.Context, ids []string, includeArchived bool) ([]Conversation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT ` + conversationColumns + ` FROM conversations
		WHERE deleted_at IS NULL AND id IN (` + placeholders(len(ids)) + `)`
	if !includeArchived {
		q += ` AND archived = 0`
	}
	q += ` ORDER BY updated_at DESC, id`
	return db.queryConversations(ctx, q, args...)
}

// ListExternalBindings returns external id -> conversation id for every live
// conversation that has one.
func (db *DB) ListExternalBindings(ctx context.Context) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT external_id, id FROM conversations
		WHERE external_id IS NOT NULL AND deleted_at IS NULL`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	bindings := make(map[string]string)
	for rows.Next() {
		var ext, id string
		if err := rows.Scan(&ext, &id); err != nil {
			return nil, err
		}
		bindings[ext] = id
	}
	return bindings, rows.Err()
}

// SetLastMessage points the conversation at msgID, bumps updated_at and
// increments the unread counter.
func (db *DB) SetLastMessage(ctx context.Context, conversationID, msgID string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE conversations SET
			last_message_id = ?,
			unread_count = unread_count + 1,
			updated_at = ?
		WHERE id = ?`, msgID, time.Now().UnixMilli(), conversationID)
	return expectRow(res, err)
}

// SetArchived flips the archived flag.
func (db *DB) SetArchived(ctx context.Context, id string, archived bool) error {
	res, err := db.ExecContext(ctx, `
		UPDATE conversations SET archived = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`, archived, time.Now().UnixMilli(), id)
	return expectRow(res, err)
}

// SetMuted flips the muted flag.
func (db *DB) SetMuted(ctx context.Context, id string, muted bool) error {
	res, err := db.ExecContext(ctx, `
		UPDATE conversations SET muted = ? WHERE id = ? AND deleted_at IS NULL`, muted, id)
	return expectRow(res, err)
}

// ResetUnread clears the unread counter.
func (db *DB) ResetUnread(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE conversations SET unread_count = 0 WHERE id = ? AND deleted_at IS NULL`, id)
	return expectRow(res, err)
}

// SoftDeleteConversation marks the conversation deleted. Its external id no
// longer counts towards the uniqueness invariant.
func (db *DB) SoftDeleteConversation(ctx context.Context, id string) error {
	now := time.Now().UnixMilli()
	res, err := db.ExecContext(ctx, `
		UPDATE conversations SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`, now, now, id)
	return expectRow(res, err)
}

// DeleteConversation removes the conversation row.
func (db *DB) DeleteConversation(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	return expectRow(res, err)
}

func (db *DB) queryConversations(ctx context.Context, q string, args ...any) ([]Conversation, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	return convs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner) (*Conversation, error) {
	var (
		c                   Conversation
		kind                string
		lastMsg, externalID sql.NullString
		deletedAt           sql.NullInt64
		settings, metadata  string
	)
	if err := s.Scan(&c.ID, &kind, &c.Name, &c.CreatedAt, &c.UpdatedAt, &lastMsg, &c.UnreadCount,
		&c.Archived, &c.Muted, &settings, &metadata, &externalID, &deletedAt); err != nil {
		return nil, err
	}
	c.Kind = Kind(kind)
	c.LastMessageID = lastMsg.String
	c.ExternalID = externalID.String
	c.DeletedAt = deletedAt.Int64
	if err := json.Unmarshal([]byte(settings), &c.Settings); err != nil {
		return nil, fmt.Errorf("decode settings of %s: %w", c.ID, err)
	}
	md, err := decodeMetadata(metadata)
	if err != nil {
		return nil, fmt.Errorf("decode metadata of %s: %w", c.ID, err)
	}
	c.Metadata = md
	return &c, nil
}

func encodeMetadata(md map[string]any) (string, error) {
	if len(md) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var md map[string]any
	if err := json.Unmarshal([]byte(s), &md); err != nil {
		return nil, err
	}
	return md, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// ErrNoRows is returned by targeted updates and deletes that matched nothing.
var ErrNoRows = sql.ErrNoRows

func expectRow(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}
