// Package grpcapi exposes the read side of the scheduling service over gRPC
// using the JSON codec from libs/grpcx.
package grpcapi

import (
	"context"
	"errors"

	"github.com/agendoai/agendo/services/scheduling-service/internal/apperr"
	"github.com/agendoai/agendo/services/scheduling-service/internal/model"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "agendo.scheduling.v1.SchedulingService"

const (
	MethodGetAvailableSlots       = "/" + ServiceName + "/GetAvailableSlots"
	MethodListAvailabilityWindows = "/" + ServiceName + "/ListAvailabilityWindows"
)

type GetAvailableSlotsRequest struct {
	ProviderID int64  `json:"providerId"`
	Date       string `json:"date"`
	ServiceID  int64  `json:"serviceId,omitempty"`
}

type TimeSlot struct {
	StartTime      model.TimeOfDay `json:"startTime"`
	EndTime        model.TimeOfDay `json:"endTime"`
	IsAvailable    bool            `json:"isAvailable"`
	AvailabilityID *int64          `json:"availabilityId,omitempty"`
}

type GetAvailableSlotsResponse struct {
	Slots []TimeSlot `json:"slots"`
}

type ListAvailabilityWindowsRequest struct {
	ProviderID int64  `json:"providerId"`
	Date       string `json:"date"`
}

type AvailabilityWindow struct {
	ID          int64           `json:"id"`
	StartTime   model.TimeOfDay `json:"startTime"`
	EndTime     model.TimeOfDay `json:"endTime"`
	IsAvailable bool            `json:"isAvailable"`
}

type ListAvailabilityWindowsResponse struct {
	Windows []AvailabilityWindow `json:"windows"`
}

// SchedulingServer is the service contract registered under ServiceName.
type SchedulingServer interface {
	GetAvailableSlots(ctx context.Context, req *GetAvailableSlotsRequest) (*GetAvailableSlotsResponse, error)
	ListAvailabilityWindows(ctx context.Context, req *ListAvailabilityWindowsRequest) (*ListAvailabilityWindowsResponse, error)
}

// Reader is the part of the scheduling service exposed over gRPC.
type Reader interface {
	GetAvailableSlots(ctx context.Context, providerID int64, date model.Date, serviceID *int64) ([]model.TimeSlot, error)
	ListAvailabilityWindows(ctx context.Context, providerID int64, date model.Date) ([]model.AvailabilityWindow, error)
}

type Server struct {
	svc Reader
}

func NewServer(svc Reader) *Server {
	return &Server{svc: svc}
}

func Register(s *grpc.Server, impl SchedulingServer) {
	s.RegisterService(&serviceDesc, impl)
}

func (s *Server) GetAvailableSlots(ctx context.Context, req *GetAvailableSlotsRequest) (*GetAvailableSlotsResponse, error) {
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var serviceID *int64
	if req.ServiceID != 0 {
		id := req.ServiceID
		serviceID = &id
	}
	slots, err := s.svc.GetAvailableSlots(ctx, req.ProviderID, date, serviceID)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &GetAvailableSlotsResponse{Slots: make([]TimeSlot, 0, len(slots))}
	for _, sl := range slots {
		out.Slots = append(out.Slots, TimeSlot{
			StartTime:      sl.StartTime,
			EndTime:        sl.EndTime,
			IsAvailable:    sl.IsAvailable,
			AvailabilityID: sl.AvailabilityID,
		})
	}
	return out, nil
}

func (s *Server) ListAvailabilityWindows(ctx context.Context, req *ListAvailabilityWindowsRequest) (*ListAvailabilityWindowsResponse, error) {
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	windows, err := s.svc.ListAvailabilityWindows(ctx, req.ProviderID, date)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &ListAvailabilityWindowsResponse{Windows: make([]AvailabilityWindow, 0, len(windows))}
	for _, w := range windows {
		out.Windows = append(out.Windows, AvailabilityWindow{
			ID: w.ID, StartTime: w.StartTime, EndTime: w.EndTime, IsAvailable: w.IsAvailable,
		})
	}
	return out, nil
}

// ErrorDomain scopes the ErrorInfo detail attached to every error status.
const ErrorDomain = "scheduling.agendo.ai"

// Reasons carried in ErrorInfo, stable for clients that branch on them.
const (
	ReasonNotFound        = "NOT_FOUND"
	ReasonValidation      = "VALIDATION_ERROR"
	ReasonSlotConflict    = "SLOT_CONFLICT"
	ReasonDataUnavailable = "DATA_UNAVAILABLE"
	ReasonInternal        = "INTERNAL"
)

// toStatus maps error kinds to gRPC codes plus an ErrorInfo detail. Storage details
// never leave the process.
func toStatus(err error) error {
	code, reason, msg := codes.Internal, ReasonInternal, "internal error"
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		code, reason, msg = codes.NotFound, ReasonNotFound, apperr.Message(err)
	case errors.Is(err, apperr.ErrValidation):
		code, reason, msg = codes.InvalidArgument, ReasonValidation, apperr.Message(err)
	case errors.Is(err, apperr.ErrSlotConflict):
		code, reason, msg = codes.AlreadyExists, ReasonSlotConflict, apperr.Message(err)
	case errors.Is(err, apperr.ErrDataUnavailable):
		code, reason, msg = codes.Unavailable, ReasonDataUnavailable, "temporarily unavailable"
	}

	st := status.New(code, msg)
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: ErrorDomain})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetAvailableSlots",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(GetAvailableSlotsRequest)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(SchedulingServer).GetAvailableSlots(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetAvailableSlots}
				return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
					return srv.(SchedulingServer).GetAvailableSlots(ctx, req.(*GetAvailableSlotsRequest))
				})
			},
		},
		{
			MethodName: "ListAvailabilityWindows",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(ListAvailabilityWindowsRequest)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(SchedulingServer).ListAvailabilityWindows(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListAvailabilityWindows}
				return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
					return srv.(SchedulingServer).ListAvailabilityWindows(ctx, req.(*ListAvailabilityWindowsRequest))
				})
			},
		},
	},
	Streams: []grpc.StreamDesc{},
}
