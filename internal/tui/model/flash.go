package model

import (
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Flash is a status line message that disappears after a while.
type Flash struct {
	mu      sync.RWMutex
	message string
	expires time.Time
}

// Set shows msg for d.
func (f *Flash) Set(msg string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.expires = time.Now().Add(d)
}

// Error shows a failed action for a few seconds, phrased for the operator
// rather than as a raw RPC error.
func (f *Flash) Error(action string, err error) {
	f.Set(action+" failed: "+describe(err), 5*time.Second)
}

// Get returns the current message, or empty once it expired.
func (f *Flash) Get() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.expires) {
		return ""
	}
	return f.message
}

func describe(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return err.Error()
	}
	switch st.Code() {
	case codes.Unavailable:
		return "daemon or store unavailable (" + st.Message() + ")"
	case codes.NotFound:
		return "conversation not found"
	case codes.PermissionDenied, codes.Unauthenticated:
		return "not allowed for this caller"
	case codes.DeadlineExceeded:
		return "daemon did not answer in time"
	default:
		return st.Message()
	}
}
