package store

import (
	"context"
	"strings"
)

// SearchMessages runs a full-text match over live message content in live
// conversations, newest first. A nil conversationIDs searches every
// conversation; a non-nil empty slice matches nothing.
func (db *DB) SearchMessages(ctx context.Context, query string, conversationIDs []string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if conversationIDs != nil && len(conversationIDs) == 0 {
		return nil, nil
	}

	q := `
		SELECT ` + messageColumns + `
		FROM messages_fts f
		JOIN messages m ON m.rowid = f.rowid
		JOIN conversations c ON c.id = m.conversation_id
		WHERE messages_fts MATCH ? AND m.is_deleted = 0 AND c.deleted_at IS NULL`

	args := []any{match}
	if conversationIDs != nil {
		q += " AND m.conversation_id IN (" + placeholders(len(conversationIDs)) + ")"
		for _, id := range conversationIDs {
			args = append(args, id)
		}
	}
	q += " ORDER BY m.timestamp DESC LIMIT ?"
	args = append(args, limit)

	return db.queryMessages(ctx, q, args...)
}

// ftsQuery quotes each term so user input is matched literally instead of
// being parsed as FTS5 syntax. Terms are ANDed.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " ")
}
