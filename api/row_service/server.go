package rowservice

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sushant-115/infinitygrid/core/datasource"
	"github.com/sushant-115/infinitygrid/core/span"
	"github.com/sushant-115/infinitygrid/pkg/logger"
)

// Server serves a Provider's rows.
type Server[T any] struct {
	provider datasource.Provider[T]
	codec    Codec[T]
	logger   *zap.Logger
}

var _ RowServiceServer = (*Server[string])(nil)

// NewServer creates a Server over provider.
func NewServer[T any](provider datasource.Provider[T], codec Codec[T], l *zap.Logger) *Server[T] {
	return &Server[T]{
		provider: provider,
		codec:    codec,
		logger:   logger.OrNop(l).Named("row_service"),
	}
}

// FetchRows implements RowServiceServer.
func (s *Server[T]) FetchRows(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start, err := intField(req, "start")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	end, err := intField(req, "end")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	r := span.New(start, end)
	page, err := s.provider.Fetch(ctx, r)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, status.FromContextError(err).Err()
		}
		s.logger.Error("provider fetch failed", zap.Stringer("range", r), zap.Error(err))
		return nil, status.Errorf(codes.Unavailable, "fetch %s: %v", r, err)
	}

	list := &structpb.ListValue{Values: make([]*structpb.Value, len(page.Data))}
	for i, v := range page.Data {
		pv, err := s.codec.Encode(v)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encode row %d: %v", page.Start+i, err)
		}
		list.Values[i] = pv
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"total_length": structpb.NewNumberValue(float64(page.TotalLength)),
		"start":        structpb.NewNumberValue(float64(page.Start)),
		"data":         structpb.NewListValue(list),
	}}, nil
}

// LoggingInterceptor logs every unary call with its duration and status code.
func LoggingInterceptor(l *zap.Logger) grpc.UnaryServerInterceptor {
	l = logger.OrNop(l).Named("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		started := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("elapsed", time.Since(started)),
			zap.Stringer("code", status.Code(err)),
		}
		if err != nil {
			l.Warn("rpc failed", append(fields, zap.Error(err))...)
		} else {
			l.Debug("rpc served", fields...)
		}
		return resp, err
	}
}
