package grpcx

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/agendoai/agendo/libs/httpx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type echoRequest struct {
	Text string `json:"text"`
}

type echoResponse struct {
	Text      string `json:"text"`
	RequestID string `json:"requestId"`
}

type echoServer interface {
	Echo(ctx context.Context, req *echoRequest) (*echoResponse, error)
}

type echoImpl struct{}

func (echoImpl) Echo(ctx context.Context, req *echoRequest) (*echoResponse, error) {
	if req.Text == "panic" {
		panic("boom")
	}
	if req.Text == "" {
		return nil, status.Error(codes.InvalidArgument, "text required")
	}
	return &echoResponse{Text: req.Text, RequestID: httpx.RequestIDFromContext(ctx)}, nil
}

var echoDesc = grpc.ServiceDesc{
	ServiceName: "test.Echo",
	HandlerType: (*echoServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Echo",
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(echoRequest)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return srv.(echoServer).Echo(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/test.Echo/Echo"}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return srv.(echoServer).Echo(ctx, req.(*echoRequest))
			})
		},
	}},
}

func startEcho(t *testing.T) *grpc.ClientConn {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv, _ := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv.RegisterService(&echoDesc, echoImpl{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := Dial(lis.Addr().String(), DialOptions{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestJSONCodecRoundTripAndRequestID(t *testing.T) {
	conn := startEcho(t)

	ctx := httpx.ContextWithRequestID(context.Background(), "req-123")
	var header metadata.MD
	resp := new(echoResponse)
	if err := conn.Invoke(ctx, "/test.Echo/Echo", &echoRequest{Text: "hi"}, resp, grpc.Header(&header)); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if resp.Text != "hi" {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if resp.RequestID != "req-123" {
		t.Fatalf("expected propagated request id, got %q", resp.RequestID)
	}
	if got := header.Get(RequestIDMetadataKey); len(got) != 1 || got[0] != "req-123" {
		t.Fatalf("expected echoed request id header, got %v", got)
	}
}

func TestServerStatusAndPanicRecovery(t *testing.T) {
	conn := startEcho(t)

	err := conn.Invoke(context.Background(), "/test.Echo/Echo", &echoRequest{}, new(echoResponse))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	err = conn.Invoke(context.Background(), "/test.Echo/Echo", &echoRequest{Text: "panic"}, new(echoResponse))
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal after panic, got %v", err)
	}
}

func TestJSONCodecUsesProtoJSONForMessages(t *testing.T) {
	codec := encoding.GetCodec(JSONCodecName)
	if codec == nil {
		t.Fatal("codec not registered")
	}

	b, err := codec.Marshal(wrapperspb.Int64(42))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// protojson encodes int64 wrappers as JSON strings.
	if string(b) != `"42"` {
		t.Fatalf("unexpected encoding %s", b)
	}
	out := new(wrapperspb.Int64Value)
	if err := codec.Unmarshal(b, out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.GetValue() != 42 {
		t.Fatalf("expected 42, got %d", out.GetValue())
	}

	b, err = codec.Marshal(&echoRequest{Text: "plain"})
	if err != nil || string(b) != `{"text":"plain"}` {
		t.Fatalf("plain struct: %s err=%v", b, err)
	}
}
