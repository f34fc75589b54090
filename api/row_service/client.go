package rowservice

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sushant-115/infinitygrid/core/datasource"
	"github.com/sushant-115/infinitygrid/core/span"
)

// Client is a datasource.Provider backed by a remote row service.
type Client[T any] struct {
	conn  grpc.ClientConnInterface
	codec Codec[T]
}

var _ datasource.Provider[string] = (*Client[string])(nil)

// NewClient creates a Client on conn.
func NewClient[T any](conn grpc.ClientConnInterface, codec Codec[T]) *Client[T] {
	return &Client[T]{conn: conn, codec: codec}
}

// Dial opens a plaintext connection to a row server.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to row server %s: %w", target, err)
	}
	return conn, nil
}

// Fetch implements datasource.Provider.
func (c *Client[T]) Fetch(ctx context.Context, r span.Range) (datasource.Page[T], error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"start": structpb.NewNumberValue(float64(r.Start)),
		"end":   structpb.NewNumberValue(float64(r.End)),
	}}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fetchRowsMethod, req, out); err != nil {
		return datasource.Page[T]{}, fmt.Errorf("row service fetch %s: %w", r, err)
	}

	total, err := intField(out, "total_length")
	if err != nil {
		return datasource.Page[T]{}, err
	}
	start, err := intField(out, "start")
	if err != nil {
		return datasource.Page[T]{}, err
	}
	list := out.GetFields()["data"].GetListValue()
	if list == nil {
		return datasource.Page[T]{}, fmt.Errorf("%w: missing %q", ErrBadMessage, "data")
	}

	data := make([]T, len(list.GetValues()))
	for i, v := range list.GetValues() {
		if data[i], err = c.codec.Decode(v); err != nil {
			return datasource.Page[T]{}, fmt.Errorf("decode row %d: %w", start+i, err)
		}
	}
	return datasource.Page[T]{TotalLength: total, Start: start, Data: data}, nil
}
