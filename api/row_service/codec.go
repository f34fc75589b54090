package rowservice

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Codec converts row values to and from protobuf values.
type Codec[T any] struct {
	Encode func(T) (*structpb.Value, error)
	Decode func(*structpb.Value) (T, error)
}

// StringCodec carries rows as protobuf strings.
var StringCodec = Codec[string]{
	Encode: func(s string) (*structpb.Value, error) {
		return structpb.NewStringValue(s), nil
	},
	Decode: func(v *structpb.Value) (string, error) {
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return "", fmt.Errorf("%w: expected string, got %T", ErrBadMessage, v.GetKind())
		}
		return s.StringValue, nil
	},
}

// MapCodec carries rows as protobuf structs, for records with named fields.
var MapCodec = Codec[map[string]any]{
	Encode: func(m map[string]any) (*structpb.Value, error) {
		s, err := structpb.NewStruct(m)
		if err != nil {
			return nil, err
		}
		return structpb.NewStructValue(s), nil
	},
	Decode: func(v *structpb.Value) (map[string]any, error) {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("%w: expected struct, got %T", ErrBadMessage, v.GetKind())
		}
		return s.AsMap(), nil
	},
}
