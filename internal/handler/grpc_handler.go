package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/pesio-ai/be-mfg-scans/internal/errors"
	"github.com/pesio-ai/be-mfg-scans/internal/logger"
	"github.com/pesio-ai/be-mfg-scans/internal/service"
)

// ScanServiceName is the fully qualified gRPC service name
const ScanServiceName = "mfg.scans.v1.ScanService"

// ScanServiceServer is the gRPC surface of the scan engine. Messages are
// google.protobuf.Struct documents carrying the same JSON fields as the HTTP
// API.
type ScanServiceServer interface {
	Scan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Status(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Rework(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ScanServiceDesc describes ScanServiceServer for grpc.Server.RegisterService
var ScanServiceDesc = grpc.ServiceDesc{
	ServiceName: ScanServiceName,
	HandlerType: (*ScanServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Scan", Handler: unaryHandler("Scan", ScanServiceServer.Scan)},
		{MethodName: "Status", Handler: unaryHandler("Status", ScanServiceServer.Status)},
		{MethodName: "Rework", Handler: unaryHandler("Rework", ScanServiceServer.Rework)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mfg/scans/v1/scan_service.proto",
}

// RegisterScanServiceServer registers srv on s
func RegisterScanServiceServer(s grpc.ServiceRegistrar, srv ScanServiceServer) {
	s.RegisterService(&ScanServiceDesc, srv)
}

func unaryHandler(
	method string,
	call func(ScanServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) grpc.MethodHandler {
	fullMethod := "/" + ScanServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ScanServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ScanServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// GRPCHandler implements ScanServiceServer
type GRPCHandler struct {
	service   ScanServiceInterface
	localizer *Localizer
	log       *logger.Logger
}

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(svc ScanServiceInterface, localizer *Localizer, log *logger.Logger) *GRPCHandler {
	return &GRPCHandler{
		service:   svc,
		localizer: localizer,
		log:       log.Component("grpc"),
	}
}

// Scan handles one terminal scan
func (h *GRPCHandler) Scan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in service.ScanRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res := h.service.Scan(ctx, &in)
	return h.resultToStruct(ctx, res)
}

// Rework withdraws a unit or a whole box
func (h *GRPCHandler) Rework(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in service.ReworkRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res := h.service.Rework(ctx, &in)
	return h.resultToStruct(ctx, res)
}

// Status returns the open box and pallet counters of an article
func (h *GRPCHandler) Status(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	workplace := req.GetFields()["workplace"].GetStringValue()
	article := req.GetFields()["article"].GetStringValue()
	if workplace == "" || article == "" {
		return nil, status.Error(codes.InvalidArgument, "workplace and article are required")
	}

	st, err := h.service.Status(ctx, workplace, article)
	if err != nil {
		return nil, h.mapErrorToGRPC(err)
	}
	return toStruct(st)
}

func (h *GRPCHandler) resultToStruct(ctx context.Context, res *service.Result) (*structpb.Struct, error) {
	var acceptLanguage string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("accept-language"); len(v) > 0 {
			acceptLanguage = v[0]
		}
	}

	return toStruct(&ScanResponse{
		Result:  res,
		Message: h.localizer.Message(acceptLanguage, res),
		Cue:     CueFor(res.Reason),
	})
}

func (h *GRPCHandler) mapErrorToGRPC(err error) error {
	msg := err.Error()
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeNotFound:
		return status.Error(codes.NotFound, msg)
	case apperrors.ErrCodeInvalidInput:
		return status.Error(codes.InvalidArgument, msg)
	case apperrors.ErrCodeConflict:
		return status.Error(codes.AlreadyExists, msg)
	case apperrors.ErrCodeUnavailable:
		return status.Error(codes.Unavailable, msg)
	default:
		h.log.Error().Err(err).Msg("gRPC request failed")
		return status.Error(codes.Internal, "internal error")
	}
}

// fromStruct decodes a Struct through its JSON form
func fromStruct(s *structpb.Struct, v interface{}) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// toStruct encodes v through its JSON form
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
