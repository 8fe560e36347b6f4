package wa

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
)

func TestConnectWithRetry(t *testing.T) {
	errDown := errors.New("websocket dial failed")
	tests := []struct {
		name      string
		failures  int
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{"first try", 0, 5, 1, nil},
		{"recovers", 2, 5, 3, nil},
		{"gives up", 10, 3, 3, errDown},
		{"zero attempts means one", 10, 0, 1, errDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			connect := func() error {
				calls++
				if calls <= tt.failures {
					return errDown
				}
				return nil
			}
			err := connectWithRetry(context.Background(), connect, tt.attempts, time.Millisecond, zap.NewNop())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestConnectWithRetryUnpairedIsPermanent(t *testing.T) {
	calls := 0
	err := connectWithRetry(context.Background(), func() error {
		calls++
		return ErrNotPaired
	}, 5, time.Millisecond, zap.NewNop())
	if !errors.Is(err, ErrNotPaired) {
		t.Errorf("err = %v, want ErrNotPaired", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestConnectWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := connectWithRetry(ctx, func() error {
		calls++
		cancel()
		return errors.New("down")
	}, 5, 10*time.Millisecond, zap.NewNop())
	if err == nil {
		t.Fatal("expected error after cancel")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestResolveLIDPassesThroughPhoneJIDs(t *testing.T) {
	a := &Adapter{}
	jid := types.NewJID("5511999999999", types.DefaultUserServer)
	if got := a.ResolveLID(context.Background(), jid); got != jid {
		t.Errorf("ResolveLID(%s) = %s", jid, got)
	}
	lid := types.NewJID("123456", types.HiddenUserServer)
	if got := a.ResolveLID(context.Background(), lid); got != lid {
		t.Errorf("ResolveLID without store = %s, want unchanged", got)
	}
}
