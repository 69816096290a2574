package grpcx

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// JSONCodecName is the content subtype negotiated as application/grpc+json.
const JSONCodecName = "json"

// jsonCodec lets services expose plain Go structs over gRPC without generated
// protobuf types. Protobuf messages (well-known types included) go through
// protojson so they keep their canonical JSON mapping.
type jsonCodec struct{}

var protoJSON = protojson.MarshalOptions{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protoJSON.Marshal(m)
	}
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, m)
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return JSONCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
