package model

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/lawdesk/internal/api"
	"github.com/matheus3301/lawdesk/internal/store"
)

const historyPageSize = 100

// Backend is the subset of the daemon client the browser uses.
type Backend interface {
	ListConversations(ctx context.Context, req *api.ListConversationsRequest) (*api.ListConversationsResponse, error)
	GetHistory(ctx context.Context, req *api.GetHistoryRequest) (*api.GetHistoryResponse, error)
	Search(ctx context.Context, req *api.SearchRequest) (*api.SearchResponse, error)
	ArchiveConversation(ctx context.Context, req *api.ArchiveConversationRequest) (*api.ArchiveConversationResponse, error)
	GetStatus(ctx context.Context, req *api.GetStatusRequest) (*api.GetStatusResponse, error)
}

// ViewModel caches what the daemon returned for one caller and signals the
// UI when it changes.
type ViewModel struct {
	mu sync.RWMutex

	backend      Backend
	callerID     string
	callerRole   string
	status       *api.GetStatusResponse
	convs        []store.Conversation
	messages     []store.Message
	results      []store.Message
	active       string
	showArchived bool

	Flash Flash

	refreshCh chan struct{}
}

// NewViewModel creates a view model that issues every call as the given caller.
func NewViewModel(b Backend, callerID, callerRole string) *ViewModel {
	return &ViewModel{
		backend:    b,
		callerID:   callerID,
		callerRole: callerRole,
		refreshCh:  make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

func (vm *ViewModel) ctx(ctx context.Context) context.Context {
	return api.WithCaller(ctx, vm.callerID, vm.callerRole)
}

// LoadStatus fetches daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.backend.GetStatus(vm.ctx(ctx), &api.GetStatusRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadConversations fetches the conversations visible to the caller.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	vm.mu.RLock()
	archived := vm.showArchived
	vm.mu.RUnlock()

	resp, err := vm.backend.ListConversations(vm.ctx(ctx), &api.ListConversationsRequest{IncludeArchived: archived})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.convs = resp.Conversations
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Open loads the latest messages of a conversation and makes it active.
func (vm *ViewModel) Open(ctx context.Context, conversationID string) error {
	resp, err := vm.backend.GetHistory(vm.ctx(ctx), &api.GetHistoryRequest{
		Conversation: conversationID,
		Limit:        historyPageSize,
	})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.active = conversationID
	vm.messages = resp.Messages
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Search runs a full-text query across every visible conversation.
func (vm *ViewModel) Search(ctx context.Context, query string) error {
	resp, err := vm.backend.Search(vm.ctx(ctx), &api.SearchRequest{Query: query})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.results = resp.Messages
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// ToggleArchived flips the archived flag of a conversation and reloads the list.
func (vm *ViewModel) ToggleArchived(ctx context.Context, conversationID string) error {
	conv, ok := vm.Conversation(conversationID)
	if !ok {
		return nil
	}
	_, err := vm.backend.ArchiveConversation(vm.ctx(ctx), &api.ArchiveConversationRequest{
		Conversation: conversationID,
		Archived:     !conv.Archived,
	})
	if err != nil {
		return err
	}
	if conv.Archived {
		vm.Flash.Set("Unarchived "+DisplayName(conv), 3*time.Second)
	} else {
		vm.Flash.Set("Archived "+DisplayName(conv), 3*time.Second)
	}
	return vm.LoadConversations(ctx)
}

// SetShowArchived controls whether archived conversations are listed.
func (vm *ViewModel) SetShowArchived(show bool) {
	vm.mu.Lock()
	vm.showArchived = show
	vm.mu.Unlock()
}

// ShowArchived reports whether archived conversations are listed.
func (vm *ViewModel) ShowArchived() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.showArchived
}

// Status returns the last fetched daemon status, or nil.
func (vm *ViewModel) Status() *api.GetStatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Conversations returns a snapshot of the conversation list.
func (vm *ViewModel) Conversations() []store.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.convs
}

// Conversation looks up a listed conversation by id.
func (vm *ViewModel) Conversation(id string) (store.Conversation, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.convs {
		if c.ID == id {
			return c, true
		}
	}
	return store.Conversation{}, false
}

// Messages returns the messages of the active conversation, newest first.
func (vm *ViewModel) Messages() []store.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.messages
}

// Results returns the last search results.
func (vm *ViewModel) Results() []store.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.results
}

// Active returns the id of the open conversation.
func (vm *ViewModel) Active() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.active
}

// DisplayName is the name shown for a conversation.
func DisplayName(c store.Conversation) string {
	switch {
	case c.Name != "":
		return c.Name
	case c.ExternalID != "":
		return c.ExternalID
	default:
		return c.ID
	}
}
