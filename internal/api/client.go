package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket.
func New(socketPath string) (*Client, error) {
	return Dial("unix://" + socketPath)
}

// Dial connects to target. Extra options are appended to the defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) ListConversations(ctx context.Context, req *ListConversationsRequest) (*ListConversationsResponse, error) {
	out := new(ListConversationsResponse)
	return out, c.conn.Invoke(ctx, fullMethod("ListConversations"), req, out)
}

func (c *Client) GetHistory(ctx context.Context, req *GetHistoryRequest) (*GetHistoryResponse, error) {
	out := new(GetHistoryResponse)
	return out, c.conn.Invoke(ctx, fullMethod("GetHistory"), req, out)
}

func (c *Client) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	out := new(SearchResponse)
	return out, c.conn.Invoke(ctx, fullMethod("Search"), req, out)
}

func (c *Client) ArchiveConversation(ctx context.Context, req *ArchiveConversationRequest) (*ArchiveConversationResponse, error) {
	out := new(ArchiveConversationResponse)
	return out, c.conn.Invoke(ctx, fullMethod("ArchiveConversation"), req, out)
}

func (c *Client) DeleteConversation(ctx context.Context, req *DeleteConversationRequest) (*DeleteConversationResponse, error) {
	out := new(DeleteConversationResponse)
	return out, c.conn.Invoke(ctx, fullMethod("DeleteConversation"), req, out)
}

func (c *Client) Ingest(ctx context.Context, req *IngestRequest) (*IngestResponse, error) {
	out := new(IngestResponse)
	return out, c.conn.Invoke(ctx, fullMethod("Ingest"), req, out)
}

func (c *Client) AssignCase(ctx context.Context, req *AssignCaseRequest) (*AssignCaseResponse, error) {
	out := new(AssignCaseResponse)
	return out, c.conn.Invoke(ctx, fullMethod("AssignCase"), req, out)
}

func (c *Client) GetStatus(ctx context.Context, req *GetStatusRequest) (*GetStatusResponse, error) {
	out := new(GetStatusResponse)
	return out, c.conn.Invoke(ctx, fullMethod("GetStatus"), req, out)
}
