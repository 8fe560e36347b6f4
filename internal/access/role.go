package access

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/lawdesk/internal/store"
)

// Role is a caller role. The set of roles is closed: every implementation
// lives in this package and decides its own visibility scope.
type Role interface {
	Name() string
	scope(ctx context.Context, f *Filter, callerID string, includeArchived bool) []store.Conversation
}

// Admin sees every conversation.
type Admin struct{}

// Lawyer sees the conversations linked to cases assigned to them.
type Lawyer struct{}

// Client sees nothing through the storage layer.
type Client struct{}

// OfficeAdmin manages the office but is not granted conversation access.
type OfficeAdmin struct{}

// Unknown is any role name this build does not recognize.
type Unknown struct{ Raw string }

func (Admin) Name() string       { return "admin" }
func (Lawyer) Name() string      { return "lawyer" }
func (Client) Name() string      { return "client" }
func (OfficeAdmin) Name() string { return "office_admin" }
func (u Unknown) Name() string   { return u.Raw }

func (Admin) scope(ctx context.Context, f *Filter, _ string, includeArchived bool) []store.Conversation {
	return f.convs.List(ctx, includeArchived)
}

func (Lawyer) scope(ctx context.Context, f *Filter, callerID string, includeArchived bool) []store.Conversation {
	if callerID == "" || f.assignments == nil {
		return nil
	}
	ids, err := f.assignments.ListConversationIDsAssignedTo(ctx, callerID)
	if err != nil {
		f.logger.Warn("case assignment lookup failed, denying", zap.Error(err))
		return nil
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}
	return f.convs.ListByIDs(ctx, ids, includeArchived)
}

func (Client) scope(context.Context, *Filter, string, bool) []store.Conversation      { return nil }
func (OfficeAdmin) scope(context.Context, *Filter, string, bool) []store.Conversation { return nil }
func (Unknown) scope(context.Context, *Filter, string, bool) []store.Conversation     { return nil }

// ParseRole maps a role name to its Role. Unrecognized names map to Unknown,
// which sees nothing.
func ParseRole(name string) Role {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "admin":
		return Admin{}
	case "lawyer":
		return Lawyer{}
	case "client":
		return Client{}
	case "office_admin":
		return OfficeAdmin{}
	default:
		return Unknown{Raw: name}
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
