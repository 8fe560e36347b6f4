package api

import (
	"context"

	"google.golang.org/grpc/metadata"

	"github.com/matheus3301/lawdesk/internal/access"
)

// Metadata keys set by the authentication layer in front of the daemon.
const (
	CallerIDKey   = "x-caller-id"
	CallerRoleKey = "x-caller-role"
)

// callerFrom reads the caller from incoming metadata. A request without a
// role carries no access.
func callerFrom(ctx context.Context) (access.Caller, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return access.Caller{}, false
	}
	role := first(md.Get(CallerRoleKey))
	if role == "" {
		return access.Caller{}, false
	}
	return access.Caller{ID: first(md.Get(CallerIDKey)), Role: access.ParseRole(role)}, true
}

// WithCaller attaches caller identity to an outgoing client context.
func WithCaller(ctx context.Context, id, role string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, CallerIDKey, id, CallerRoleKey, role)
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
