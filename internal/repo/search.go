package repo

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/lawdesk/internal/store"
)

// MaxSearchResults caps every search.
const MaxSearchResults = 100

// Search runs full-text queries over live message content.
type Search struct {
	guard  *Guard
	logger *zap.Logger
}

// NewSearch creates a search accessor.
func NewSearch(g *Guard, logger *zap.Logger) *Search {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Search{guard: g, logger: logger}
}

// Search returns up to MaxSearchResults non-deleted messages matching query,
// newest first. The cap applies after scoping: a nil conversationIDs searches
// everything, otherwise only the listed conversations are searched and an
// empty list matches nothing. Any failure yields an empty result.
func (s *Search) Search(ctx context.Context, query string, conversationIDs []string) []store.Message {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if conversationIDs != nil && len(conversationIDs) == 0 {
		return nil
	}
	var msgs []store.Message
	err := s.guard.Do(ctx, "search_messages", func(ctx context.Context, b Backend) error {
		var err error
		msgs, err = b.SearchMessages(ctx, query, conversationIDs, MaxSearchResults)
		return err
	})
	if err != nil {
		s.logger.Warn("search unavailable",
			zap.Int("conversations", len(conversationIDs)),
			zap.Error(err),
		)
		return nil
	}
	return msgs
}
