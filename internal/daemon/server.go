package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"path"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/matheus3301/lawdesk/internal/api"
	"github.com/matheus3301/lawdesk/internal/metrics"
	"github.com/matheus3301/lawdesk/internal/workspace"
)

// Server owns the gRPC listener on the workspace socket.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewServer listens on the workspace socket, or p.SocketPath when set, and
// registers the conversation service. m may be nil.
func NewServer(p Params, logger *zap.Logger, m *metrics.Metrics, svc *api.ConversationService) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = workspace.SocketPath(p.Workspace)
	}

	// A socket left behind by a crashed daemon; the workspace lock is
	// already held, so nobody else is serving it.
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		recoverInterceptor(logger),
		observeInterceptor(logger, m),
	))
	api.RegisterConversationServer(srv, svc)

	return &Server{
		grpcServer: srv,
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
	}, nil
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("gRPC server starting", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// Stop drains in-flight calls and removes the socket file.
func (s *Server) Stop(_ context.Context) {
	s.logger.Info("gRPC server stopping")
	s.grpcServer.GracefulStop()
	_ = os.Remove(s.socketPath)
}

// recoverInterceptor turns a handler panic into codes.Internal.
func recoverInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// observeInterceptor logs every call and records its code and latency.
func observeInterceptor(logger *zap.Logger, m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)
		code := status.Code(err)
		method := path.Base(info.FullMethod)

		if m != nil {
			m.RPCs.WithLabelValues(method, code.String()).Inc()
			m.RPCDuration.WithLabelValues(method).Observe(elapsed.Seconds())
		}

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("code", code.String()),
			zap.Duration("elapsed", elapsed),
		}
		switch code {
		case codes.OK, codes.NotFound, codes.InvalidArgument, codes.PermissionDenied, codes.Unauthenticated:
			logger.Debug("rpc", fields...)
		case codes.Unavailable:
			logger.Warn("rpc", append(fields, zap.Error(err))...)
		default:
			logger.Error("rpc", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}
