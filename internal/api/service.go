package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/lawdesk/internal/access"
	"github.com/matheus3301/lawdesk/internal/bus"
	"github.com/matheus3301/lawdesk/internal/ingest"
	"github.com/matheus3301/lawdesk/internal/repo"
	"github.com/matheus3301/lawdesk/internal/status"
)

// Connector reports on the chat-platform connection. Nil when the connector
// is disabled.
type Connector interface {
	Connected() bool
	PhoneNumber() string
}

// Deps groups what the service needs.
type Deps struct {
	Workspace string
	Filter    *access.Filter
	Convs     *repo.ConversationRepo
	Msgs      *repo.MessageRepo
	Search    *repo.Search
	Cases     *repo.CaseRepo
	Engine    *ingest.Engine
	Guard     *repo.Guard
	Health    *status.Machine
	Bus       *bus.Bus
	Connector Connector
	Logger    *zap.Logger
}

// ConversationService implements the lawdesk.v1.ConversationService gRPC
// service. Reads never fail on access: a conversation the caller may not
// see looks empty.
type ConversationService struct {
	d         Deps
	startedAt time.Time
	logger    *zap.Logger
}

// NewConversationService creates the service.
func NewConversationService(d Deps) *ConversationService {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{d: d, startedAt: time.Now(), logger: logger}
}

func (s *ConversationService) ListConversations(ctx context.Context, req *ListConversationsRequest) (*ListConversationsResponse, error) {
	caller, ok := callerFrom(ctx)
	if !ok {
		return &ListConversationsResponse{}, nil
	}
	convs := s.d.Filter.Visible(ctx, caller, access.Options{IncludeArchived: req.IncludeArchived})
	return &ListConversationsResponse{Conversations: convs}, nil
}

func (s *ConversationService) GetHistory(ctx context.Context, req *GetHistoryRequest) (*GetHistoryResponse, error) {
	caller, ok := callerFrom(ctx)
	if !ok {
		return &GetHistoryResponse{}, nil
	}
	id, ok := s.d.Filter.Resolve(ctx, caller, req.Conversation)
	if !ok {
		return &GetHistoryResponse{}, nil
	}
	msgs := s.d.Msgs.History(ctx, id, repo.Page{
		Limit:          req.Limit,
		Offset:         req.Offset,
		IncludeDeleted: req.IncludeDeleted,
	})
	return &GetHistoryResponse{ConversationID: id, Messages: msgs}, nil
}

func (s *ConversationService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	caller, ok := callerFrom(ctx)
	if !ok || strings.TrimSpace(req.Query) == "" {
		return &SearchResponse{}, nil
	}

	if req.Conversation != "" {
		id, ok := s.d.Filter.Resolve(ctx, caller, req.Conversation)
		if !ok {
			return &SearchResponse{}, nil
		}
		return &SearchResponse{Messages: s.d.Search.Search(ctx, req.Query, []string{id})}, nil
	}

	if _, ok := caller.Role.(access.Admin); ok {
		return &SearchResponse{Messages: s.d.Search.Search(ctx, req.Query, nil)}, nil
	}
	visible := s.d.Filter.VisibleIDs(ctx, caller)
	if len(visible) == 0 {
		return &SearchResponse{}, nil
	}
	ids := make([]string, 0, len(visible))
	for id := range visible {
		ids = append(ids, id)
	}
	return &SearchResponse{Messages: s.d.Search.Search(ctx, req.Query, ids)}, nil
}

func (s *ConversationService) ArchiveConversation(ctx context.Context, req *ArchiveConversationRequest) (*ArchiveConversationResponse, error) {
	id, err := s.resolveForWrite(ctx, req.Conversation)
	if err != nil {
		return nil, err
	}
	if req.Archived {
		err = s.d.Convs.Archive(ctx, id)
	} else {
		err = s.d.Convs.Unarchive(ctx, id)
	}
	if err != nil {
		return nil, s.toStatus("archive conversation", err)
	}
	return &ArchiveConversationResponse{ConversationID: id}, nil
}

func (s *ConversationService) DeleteConversation(ctx context.Context, req *DeleteConversationRequest) (*DeleteConversationResponse, error) {
	id, err := s.resolveForWrite(ctx, req.Conversation)
	if err != nil {
		return nil, err
	}
	if req.Hard {
		err = s.d.Convs.HardDelete(ctx, id)
	} else {
		err = s.d.Convs.SoftDelete(ctx, id)
	}
	if err != nil {
		return nil, s.toStatus("delete conversation", err)
	}
	return &DeleteConversationResponse{ConversationID: id}, nil
}

// Ingest feeds one platform event through the ingestion engine. Only
// admins may call it; connectors authenticate as admin.
func (s *ConversationService) Ingest(ctx context.Context, req *IngestRequest) (*IngestResponse, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	res, err := s.d.Engine.Ingest(ctx, req.Event)
	if err != nil {
		return nil, s.toStatus("ingest", err)
	}
	return &IngestResponse{Result: res}, nil
}

func (s *ConversationService) AssignCase(ctx context.Context, req *AssignCaseRequest) (*AssignCaseResponse, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	c := req.Case
	if err := s.d.Cases.Assign(ctx, &c); err != nil {
		return nil, s.toStatus("assign case", err)
	}
	return &AssignCaseResponse{CaseID: c.ID}, nil
}

func (s *ConversationService) GetStatus(_ context.Context, _ *GetStatusRequest) (*GetStatusResponse, error) {
	resp := &GetStatusResponse{
		Workspace: s.d.Workspace,
		UptimeMs:  time.Since(s.startedAt).Milliseconds(),
	}
	if s.d.Health != nil {
		resp.StoreState = string(s.d.Health.Current())
		resp.StoreSinceMs = s.d.Health.Since().UnixMilli()
	}
	if s.d.Guard != nil {
		resp.Breaker = s.d.Guard.BreakerState()
	}
	if s.d.Connector != nil {
		resp.Connector = s.d.Connector.Connected()
		resp.PhoneNumber = s.d.Connector.PhoneNumber()
	}
	if s.d.Convs != nil {
		resp.CachedIdentities = s.d.Convs.Cache().Len()
	}
	if s.d.Bus != nil {
		resp.DroppedEvents = s.d.Bus.Dropped()
	}
	return resp, nil
}

// resolveForWrite maps a conversation reference to an id the caller may
// see. Invisible conversations are reported as not found.
func (s *ConversationService) resolveForWrite(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", grpcstatus.Error(codes.InvalidArgument, "conversation is required")
	}
	caller, ok := callerFrom(ctx)
	if !ok {
		return "", grpcstatus.Error(codes.Unauthenticated, "no caller identity")
	}
	id, ok := s.d.Filter.Resolve(ctx, caller, ref)
	if !ok {
		return "", grpcstatus.Errorf(codes.NotFound, "conversation %q not found", ref)
	}
	return id, nil
}

func (s *ConversationService) requireAdmin(ctx context.Context) error {
	caller, ok := callerFrom(ctx)
	if !ok {
		return grpcstatus.Error(codes.Unauthenticated, "no caller identity")
	}
	if _, ok := caller.Role.(access.Admin); !ok {
		return grpcstatus.Errorf(codes.PermissionDenied, "role %q may not call this method", caller.Role.Name())
	}
	return nil
}

func (s *ConversationService) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, repo.ErrNotConfigured), errors.Is(err, repo.ErrUnavailable):
		s.logger.Warn(op+" unavailable", zap.Error(err))
		return grpcstatus.Errorf(codes.Unavailable, "%s: %v", op, err)
	case errors.Is(err, repo.ErrNotFound):
		return grpcstatus.Errorf(codes.NotFound, "%s: %v", op, err)
	case errors.Is(err, repo.ErrInvalidArgument):
		return grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		return grpcstatus.Errorf(codes.Internal, "%s: %v", op, err)
	}
}
