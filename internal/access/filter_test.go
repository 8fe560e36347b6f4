package access

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/lawdesk/internal/store"
)

type fakeConversations struct {
	all       []store.Conversation
	listCalls int
	byIDCalls [][]string
}

func (f *fakeConversations) List(_ context.Context, includeArchived bool) []store.Conversation {
	f.listCalls++
	var out []store.Conversation
	for _, c := range f.all {
		if includeArchived || !c.Archived {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeConversations) ListByIDs(_ context.Context, ids []string, includeArchived bool) []store.Conversation {
	f.byIDCalls = append(f.byIDCalls, ids)
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []store.Conversation
	for _, c := range f.all {
		if want[c.ID] && (includeArchived || !c.Archived) {
			out = append(out, c)
		}
	}
	return out
}

type fakeAssignments struct {
	ids map[string][]string
	err error
}

func (f fakeAssignments) ListConversationIDsAssignedTo(_ context.Context, lawyerID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ids[lawyerID], nil
}

func seedConversations() *fakeConversations {
	return &fakeConversations{all: []store.Conversation{
		{ID: "c1", ExternalID: "111@s.whatsapp.net"},
		{ID: "c2", ExternalID: "222@s.whatsapp.net"},
		{ID: "c3", Archived: true},
		{ID: "c4"},
	}}
}

func ids(convs []store.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestVisibleByRole(t *testing.T) {
	assignments := fakeAssignments{ids: map[string][]string{
		"lawyer-1": {"c1", "c3", "c1"},
	}}

	tests := []struct {
		name   string
		caller Caller
		opts   Options
		want   []string
	}{
		{"admin sees active", Caller{ID: "a", Role: Admin{}}, Options{}, []string{"c1", "c2", "c4"}},
		{"admin sees archived on request", Caller{ID: "a", Role: Admin{}}, Options{IncludeArchived: true}, []string{"c1", "c2", "c3", "c4"}},
		{"lawyer sees assigned only", Caller{ID: "lawyer-1", Role: Lawyer{}}, Options{}, []string{"c1"}},
		{"lawyer sees assigned archived", Caller{ID: "lawyer-1", Role: Lawyer{}}, Options{IncludeArchived: true}, []string{"c1", "c3"}},
		{"lawyer without cases sees nothing", Caller{ID: "lawyer-2", Role: Lawyer{}}, Options{}, nil},
		{"lawyer without id sees nothing", Caller{Role: Lawyer{}}, Options{}, nil},
		{"client sees nothing", Caller{ID: "cl", Role: Client{}}, Options{IncludeArchived: true}, nil},
		{"office admin sees nothing", Caller{ID: "oa", Role: OfficeAdmin{}}, Options{}, nil},
		{"unknown role sees nothing", Caller{ID: "x", Role: ParseRole("superuser")}, Options{}, nil},
		{"missing role sees nothing", Caller{ID: "x"}, Options{}, nil},
		{"restrict by id", Caller{ID: "a", Role: Admin{}}, Options{RestrictTo: "c2"}, []string{"c2"}},
		{"restrict by external id", Caller{ID: "a", Role: Admin{}}, Options{RestrictTo: "111@s.whatsapp.net"}, []string{"c1"}},
		{"restrict outside scope", Caller{ID: "lawyer-1", Role: Lawyer{}}, Options{RestrictTo: "c2"}, nil},
		{"restrict to unknown", Caller{ID: "a", Role: Admin{}}, Options{RestrictTo: "nope"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter(seedConversations(), assignments, nil)
			got := ids(f.Visible(context.Background(), tt.caller, tt.opts))
			if !equalIDs(got, tt.want) && !(len(got) == 0 && len(tt.want) == 0) {
				t.Errorf("Visible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLawyerWithNoCasesNeverFallsBackToAll(t *testing.T) {
	convs := seedConversations()
	f := NewFilter(convs, fakeAssignments{}, nil)

	if got := f.Visible(context.Background(), Caller{ID: "lawyer", Role: Lawyer{}}, Options{}); len(got) != 0 {
		t.Errorf("Visible = %v, want empty", ids(got))
	}
	if convs.listCalls != 0 || len(convs.byIDCalls) != 0 {
		t.Errorf("repository consulted: list=%d byIDs=%d", convs.listCalls, len(convs.byIDCalls))
	}
}

func TestAssignmentFailureFailsClosed(t *testing.T) {
	convs := seedConversations()
	f := NewFilter(convs, fakeAssignments{err: errors.New("timeout")}, nil)

	if got := f.Visible(context.Background(), Caller{ID: "lawyer-1", Role: Lawyer{}}, Options{}); len(got) != 0 {
		t.Errorf("Visible = %v, want empty", ids(got))
	}
	if convs.listCalls != 0 {
		t.Error("assignment failure widened to a full listing")
	}
}

func TestNilAssignmentsFailsClosed(t *testing.T) {
	f := NewFilter(seedConversations(), nil, nil)
	if got := f.Visible(context.Background(), Caller{ID: "lawyer-1", Role: Lawyer{}}, Options{}); len(got) != 0 {
		t.Errorf("Visible = %v, want empty", ids(got))
	}
}

func TestAssignedIDsAreDeduplicated(t *testing.T) {
	convs := seedConversations()
	f := NewFilter(convs, fakeAssignments{ids: map[string][]string{"l": {"c1", "", "c1", "c2"}}}, nil)
	_ = f.Visible(context.Background(), Caller{ID: "l", Role: Lawyer{}}, Options{})

	if len(convs.byIDCalls) != 1 || !equalIDs(convs.byIDCalls[0], []string{"c1", "c2"}) {
		t.Errorf("ListByIDs calls = %v, want [[c1 c2]]", convs.byIDCalls)
	}
}

func TestResolve(t *testing.T) {
	f := NewFilter(seedConversations(), fakeAssignments{ids: map[string][]string{"l": {"c3"}}}, nil)
	ctx := context.Background()

	if id, ok := f.Resolve(ctx, Caller{ID: "a", Role: Admin{}}, "222@s.whatsapp.net"); !ok || id != "c2" {
		t.Errorf("admin Resolve = %q, %v, want c2", id, ok)
	}
	// Archived conversations stay reachable for the assigned lawyer.
	if id, ok := f.Resolve(ctx, Caller{ID: "l", Role: Lawyer{}}, "c3"); !ok || id != "c3" {
		t.Errorf("lawyer Resolve = %q, %v, want c3", id, ok)
	}
	if _, ok := f.Resolve(ctx, Caller{ID: "l", Role: Lawyer{}}, "c1"); ok {
		t.Error("lawyer resolved an unassigned conversation")
	}
	if _, ok := f.Resolve(ctx, Caller{ID: "a", Role: Admin{}}, ""); ok {
		t.Error("empty reference resolved")
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"admin", "admin"},
		{"Lawyer", "lawyer"},
		{" client ", "client"},
		{"office_admin", "office_admin"},
		{"root", "root"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParseRole(tt.in).Name(); got != tt.want {
			t.Errorf("ParseRole(%q).Name() = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, ok := ParseRole("root").(Unknown); !ok {
		t.Error("unrecognized role not mapped to Unknown")
	}
}
