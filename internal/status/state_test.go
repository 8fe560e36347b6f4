package status

import (
	"testing"

	"github.com/matheus3301/lawdesk/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, Online},
		{Booting, NotConfigured},
		{Booting, Degraded},
		{Booting, Error},
		{Online, Degraded},
		{Degraded, Online},
		{Error, Booting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, NotConfigured)
	// A store that was never configured cannot come online without a restart.
	if err := m.Transition(Online); err == nil {
		t.Error("Transition(NOT_CONFIGURED -> ONLINE) should fail")
	}
	if m.Current() != NotConfigured {
		t.Errorf("state = %s, want NOT_CONFIGURED", m.Current())
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Online)
	if err := m.Ensure(Online); err != nil {
		t.Errorf("Ensure(ONLINE) from ONLINE: %v", err)
	}
	if err := m.Ensure(Degraded); err != nil {
		t.Fatal(err)
	}
	if err := m.Ensure(Degraded); err != nil {
		t.Errorf("Ensure(DEGRADED) twice: %v", err)
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("store.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Online); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindStoreStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindStoreStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != Online {
		t.Errorf("change = %v -> %v, want BOOTING -> ONLINE", change.From, change.To)
	}
}

// TestOutageCycle simulates the breaker opening and closing again:
// BOOTING → ONLINE → DEGRADED → ONLINE
func TestOutageCycle(t *testing.T) {
	m := NewMachine(nil)

	steps := []State{Online, Degraded, Online}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Online {
		t.Errorf("final state = %s, want ONLINE", m.Current())
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:       {},
		Online:        {Online},
		Degraded:      {Online, Degraded},
		NotConfigured: {NotConfigured},
		Error:         {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
