// Package rowservice exposes a datasource.Provider over gRPC and consumes one
// as a Provider on the other side. Messages are protobuf Structs:
//
//	request:  {"start": n, "end": n}
//	response: {"total_length": n, "start": n, "data": [...]}
package rowservice

import (
	"context"
	"errors"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName     = "infinitygrid.rows.v1.RowService"
	fetchRowsMethod = "/" + serviceName + "/FetchRows"
)

var (
	// ErrBadMessage is returned when a message is missing fields or carries
	// the wrong types.
	ErrBadMessage = errors.New("rowservice: malformed message")
)

// RowServiceServer is the server side of the row service.
type RowServiceServer interface {
	FetchRows(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func fetchRowsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RowServiceServer).FetchRows(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fetchRowsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RowServiceServer).FetchRows(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var rowServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RowServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FetchRows", Handler: fetchRowsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "infinitygrid/rows/v1/rows.proto",
}

// RegisterRowServiceServer registers srv on reg.
func RegisterRowServiceServer(reg grpc.ServiceRegistrar, srv RowServiceServer) {
	reg.RegisterService(&rowServiceDesc, srv)
}

func intField(s *structpb.Struct, name string) (int, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrBadMessage, name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a number", ErrBadMessage, name)
	}
	f := n.NumberValue
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q is not an integer: %v", ErrBadMessage, name, f)
	}
	return int(f), nil
}
