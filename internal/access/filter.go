// Package access decides which conversations a caller may see. It fails
// closed: any lookup failure narrows the result, never widens it.
package access

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/lawdesk/internal/store"
)

// Caller is an authenticated principal. Identity and role are supplied by
// the authentication layer and trusted as given.
type Caller struct {
	ID   string
	Role Role
}

// Assignments resolves the conversations linked to a lawyer's cases.
type Assignments interface {
	ListConversationIDsAssignedTo(ctx context.Context, lawyerID string) ([]string, error)
}

// Conversations is the read side of the conversation repository. Both
// methods degrade to cached or empty results instead of failing.
type Conversations interface {
	List(ctx context.Context, includeArchived bool) []store.Conversation
	ListByIDs(ctx context.Context, ids []string, includeArchived bool) []store.Conversation
}

// Options narrows a visibility query.
type Options struct {
	IncludeArchived bool
	// RestrictTo limits the result to one conversation, matched by internal
	// id or external chat id.
	RestrictTo string
}

// Filter applies role-based visibility.
type Filter struct {
	convs       Conversations
	assignments Assignments
	logger      *zap.Logger
}

// NewFilter creates a filter.
func NewFilter(convs Conversations, assignments Assignments, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{convs: convs, assignments: assignments, logger: logger}
}

// Visible returns the conversations the caller may see.
func (f *Filter) Visible(ctx context.Context, c Caller, opts Options) []store.Conversation {
	if c.Role == nil {
		return nil
	}
	convs := c.Role.scope(ctx, f.withCaller(c), c.ID, opts.IncludeArchived)
	if opts.RestrictTo == "" {
		return convs
	}
	for _, conv := range convs {
		if conv.ID == opts.RestrictTo || (conv.ExternalID != "" && conv.ExternalID == opts.RestrictTo) {
			return []store.Conversation{conv}
		}
	}
	return nil
}

// Resolve returns the internal id of the conversation ref names, if the
// caller may see it. Archived conversations count as visible.
func (f *Filter) Resolve(ctx context.Context, c Caller, ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	convs := f.Visible(ctx, c, Options{IncludeArchived: true, RestrictTo: ref})
	if len(convs) == 0 {
		return "", false
	}
	return convs[0].ID, true
}

// VisibleIDs returns the ids of every conversation the caller may see,
// archived ones included.
func (f *Filter) VisibleIDs(ctx context.Context, c Caller) map[string]struct{} {
	convs := f.Visible(ctx, c, Options{IncludeArchived: true})
	ids := make(map[string]struct{}, len(convs))
	for _, conv := range convs {
		ids[conv.ID] = struct{}{}
	}
	return ids
}

func (f *Filter) withCaller(c Caller) *Filter {
	return &Filter{
		convs:       f.convs,
		assignments: f.assignments,
		logger:      f.logger.With(zap.String("caller", c.ID), zap.String("role", c.Role.Name())),
	}
}
