package grpcapi

import (
	"context"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Client calls SchedulingService on conn. The conn must negotiate the JSON codec,
// which grpcx.Dial configures by default.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) GetAvailableSlots(ctx context.Context, req *GetAvailableSlotsRequest, opts ...grpc.CallOption) (*GetAvailableSlotsResponse, error) {
	out := new(GetAvailableSlotsResponse)
	if err := c.conn.Invoke(ctx, MethodGetAvailableSlots, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListAvailabilityWindows(ctx context.Context, req *ListAvailabilityWindowsRequest, opts ...grpc.CallOption) (*ListAvailabilityWindowsResponse, error) {
	out := new(ListAvailabilityWindowsResponse)
	if err := c.conn.Invoke(ctx, MethodListAvailabilityWindows, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ErrorReason returns the ErrorInfo reason attached by the server, or "" when err
// carries none.
func ErrorReason(err error) string {
	for _, d := range status.Convert(err).Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return info.GetReason()
		}
	}
	return ""
}
