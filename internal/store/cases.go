package store

import (
	"context"
	"time"
)

// AssignCase inserts or updates a case and its lawyer assignment.
func (db *DB) AssignCase(ctx context.Context, c *Case) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO cases (id, title, conversation_id, lawyer_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			conversation_id = excluded.conversation_id,
			lawyer_id = excluded.lawyer_id`,
		c.ID, c.Title, nullString(c.ConversationID), c.LawyerID, time.Now().UnixMilli())
	return mapErr(err)
}

// ListConversationIDsAssignedTo returns the distinct conversation ids linked
// to cases assigned to the lawyer.
func (db *DB) ListConversationIDsAssignedTo(ctx context.Context, lawyerID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT conversation_id FROM cases
		WHERE lawyer_id = ? AND conversation_id IS NOT NULL
		ORDER BY conversation_id`, lawyerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
