package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "lawdesk.v1.ConversationService"

// ConversationServer is the server API for the conversation service.
type ConversationServer interface {
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	GetHistory(context.Context, *GetHistoryRequest) (*GetHistoryResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	ArchiveConversation(context.Context, *ArchiveConversationRequest) (*ArchiveConversationResponse, error)
	DeleteConversation(context.Context, *DeleteConversationRequest) (*DeleteConversationResponse, error)
	Ingest(context.Context, *IngestRequest) (*IngestResponse, error)
	AssignCase(context.Context, *AssignCaseRequest) (*AssignCaseResponse, error)
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
}

var _ ConversationServer = (*ConversationService)(nil)

// ServiceDesc describes the conversation service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConversationServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListConversations", ConversationServer.ListConversations),
		unary("GetHistory", ConversationServer.GetHistory),
		unary("Search", ConversationServer.Search),
		unary("ArchiveConversation", ConversationServer.ArchiveConversation),
		unary("DeleteConversation", ConversationServer.DeleteConversation),
		unary("Ingest", ConversationServer.Ingest),
		unary("AssignCase", ConversationServer.AssignCase),
		unary("GetStatus", ConversationServer.GetStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lawdesk/v1/conversation.proto",
}

// RegisterConversationServer registers srv with s.
func RegisterConversationServer(s grpc.ServiceRegistrar, srv ConversationServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(ConversationServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ConversationServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ConversationServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
