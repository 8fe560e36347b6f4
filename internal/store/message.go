package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const messageColumns = `m.id, m.conversation_id, m.sender_id, m.sender_name, m.recipient_id, m.recipient_name,
	m.content, m.message_type, m.timestamp, m.edited_at, m.is_edited, m.status, m.metadata,
	m.thread_id, m.reply_to_id, m.is_deleted, m.deleted_at, m.external_id`

// UpsertMessage writes a message by id with replace-on-conflict semantics.
// Attachments are replaced in the same transaction.
func (db *DB) UpsertMessage(ctx context.Context, m *Message) error {
	metadata, err := encodeMetadata(m.Metadata)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, sender_name, recipient_id, recipient_name,
			content, message_type, timestamp, edited_at, is_edited, status, metadata,
			thread_id, reply_to_id, is_deleted, deleted_at, external_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			sender_id = excluded.sender_id,
			sender_name = excluded.sender_name,
			recipient_id = excluded.recipient_id,
			recipient_name = excluded.recipient_name,
			content = excluded.content,
			message_type = excluded.message_type,
			timestamp = excluded.timestamp,
			edited_at = excluded.edited_at,
			is_edited = excluded.is_edited,
			status = excluded.status,
			metadata = excluded.metadata,
			thread_id = excluded.thread_id,
			reply_to_id = excluded.reply_to_id,
			is_deleted = excluded.is_deleted,
			deleted_at = excluded.deleted_at,
			external_id = excluded.external_id`,
		m.ID, m.ConversationID, m.SenderID, m.SenderName, m.RecipientID, m.RecipientName,
		m.Content, string(m.Type), m.Timestamp, nullInt(m.EditedAt), m.IsEdited, string(m.Status), metadata,
		m.ThreadID, m.ReplyToID, m.IsDeleted, nullInt(m.DeletedAt), nullString(m.ExternalID)); err != nil {
		return fmt.Errorf("upsert message %s: %w", m.ID, mapErr(err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE message_id = ?`, m.ID); err != nil {
		return fmt.Errorf("clear attachments of %s: %w", m.ID, err)
	}
	for i, a := range m.Attachments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attachments (id, message_id, position, file_name, size, mime_type, extension,
				url, local_path, thumbnail, duration, width, height)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, m.ID, i, a.FileName, a.Size, a.MIMEType, a.Extension,
			a.URL, a.LocalPath, a.Thumbnail, a.Duration, a.Width, a.Height); err != nil {
			return fmt.Errorf("insert attachment %q: %w", a.ID, mapErr(err))
		}
	}
	return tx.Commit()
}

// GetMessage returns a message by id, or nil.
func (db *DB) GetMessage(ctx context.Context, id string) (*Message, error) {
	msgs, err := db.queryMessages(ctx, `SELECT `+messageColumns+` FROM messages m WHERE m.id = ?`, id)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

// FindMessageByExternalID returns the live message carrying the platform
// message id within a conversation, or nil.
func (db *DB) FindMessageByExternalID(ctx context.Context, conversationID, externalID string) (*Message, error) {
	msgs, err := db.queryMessages(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.conversation_id = ? AND m.external_id = ? AND m.is_deleted = 0`, conversationID, externalID)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

// UpdateMessage applies a patch to the mutable fields of a message.
func (db *DB) UpdateMessage(ctx context.Context, id string, p MessagePatch) error {
	var (
		sets []string
		args []any
	)
	if p.Content != nil {
		sets, args = append(sets, "content = ?"), append(args, *p.Content)
	}
	if p.EditedAt != nil {
		sets, args = append(sets, "edited_at = ?"), append(args, nullInt(*p.EditedAt))
	}
	if p.IsEdited != nil {
		sets, args = append(sets, "is_edited = ?"), append(args, *p.IsEdited)
	}
	if p.Status != nil {
		sets, args = append(sets, "status = ?"), append(args, string(*p.Status))
	}
	if p.SenderName != nil {
		sets, args = append(sets, "sender_name = ?"), append(args, *p.SenderName)
	}
	if p.Timestamp != nil {
		sets, args = append(sets, "timestamp = ?"), append(args, *p.Timestamp)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := db.ExecContext(ctx, `UPDATE messages SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return expectRow(res, err)
}

// SoftDeleteMessage flags a message deleted without removing the row.
func (db *DB) SoftDeleteMessage(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE messages SET is_deleted = 1, deleted_at = ?
		WHERE id = ? AND is_deleted = 0`, time.Now().UnixMilli(), id)
	return expectRow(res, err)
}

// DeleteMessagesByConversation removes every message of a conversation and
// returns how many rows went away.
func (db *DB) DeleteMessagesByConversation(ctx context.Context, conversationID string) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMessages returns a page of a conversation's messages, newest first.
func (db *DB) ListMessages(ctx context.Context, conversationID string, limit, offset int, includeDeleted bool) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + messageColumns + ` FROM messages m WHERE m.conversation_id = ?`
	if !includeDeleted {
		q += ` AND m.is_deleted = 0`
	}
	q += ` ORDER BY m.timestamp DESC, m.rowid DESC LIMIT ? OFFSET ?`
	return db.queryMessages(ctx, q, conversationID, limit, offset)
}

// MessageCount returns the number of rows in a conversation, deleted included.
func (db *DB) MessageCount(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&count)
	return count, err
}

func (db *DB) queryMessages(ctx context.Context, q string, args ...any) ([]Message, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	_ = rows.Close()
	if err := db.loadAttachments(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (db *DB) loadAttachments(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	index := make(map[string]int, len(msgs))
	args := make([]any, len(msgs))
	for i, m := range msgs {
		index[m.ID] = i
		args[i] = m.ID
	}
	rows, err := db.QueryContext(ctx, `
		SELECT message_id, id, file_name, size, mime_type, extension, url, local_path, thumbnail,
			duration, width, height
		FROM attachments
		WHERE message_id IN (`+placeholders(len(msgs))+`)
		ORDER BY message_id, position`, args...)
	if err != nil {
		return fmt.Errorf("load attachments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			msgID string
			a     Attachment
		)
		if err := rows.Scan(&msgID, &a.ID, &a.FileName, &a.Size, &a.MIMEType, &a.Extension, &a.URL,
			&a.LocalPath, &a.Thumbnail, &a.Duration, &a.Width, &a.Height); err != nil {
			return err
		}
		i := index[msgID]
		msgs[i].Attachments = append(msgs[i].Attachments, a)
	}
	return rows.Err()
}

func scanMessage(s scanner) (*Message, error) {
	var (
		m                   Message
		msgType, status     string
		editedAt, deletedAt sql.NullInt64
		externalID          sql.NullString
		metadata            string
	)
	if err := s.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &m.RecipientID, &m.RecipientName,
		&m.Content, &msgType, &m.Timestamp, &editedAt, &m.IsEdited, &status, &metadata,
		&m.ThreadID, &m.ReplyToID, &m.IsDeleted, &deletedAt, &externalID); err != nil {
		return nil, err
	}
	m.Type = MessageType(msgType)
	m.Status = Status(status)
	m.EditedAt = editedAt.Int64
	m.DeletedAt = deletedAt.Int64
	m.ExternalID = externalID.String
	md, err := decodeMetadata(metadata)
	if err != nil {
		return nil, fmt.Errorf("decode metadata of %s: %w", m.ID, err)
	}
	m.Metadata = md
	return &m, nil
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
