package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hive-corporation/fraudshield/internal/adapter/vendor"
	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

// The Detector service carries the browser extension's {type, content,
// fileName} message as a google.protobuf.Struct, so there is no generated
// code: the service descriptor below is written by hand.
const (
	DetectorServiceName = "fraudshield.v1.Detector"

	analyzeMethod = "/" + DetectorServiceName + "/Analyze"
	scoreMethod   = "/" + DetectorServiceName + "/Score"
)

// DetectorServer is the server API for fraudshield.v1.Detector.
type DetectorServer interface {
	Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Score(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterDetectorServer(s *grpclib.Server, srv DetectorServer) {
	s.RegisterService(&detectorServiceDesc, srv)
}

var detectorServiceDesc = grpclib.ServiceDesc{
	ServiceName: DetectorServiceName,
	HandlerType: (*DetectorServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "Analyze", Handler: detectorAnalyzeHandler},
		{MethodName: "Score", Handler: detectorScoreHandler},
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "fraudshield/v1/detector.proto",
}

func detectorAnalyzeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	req := new(structpb.Struct)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DetectorServer).Analyze(ctx, req)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: analyzeMethod}
	return interceptor(ctx, req, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DetectorServer).Analyze(ctx, req.(*structpb.Struct))
	})
}

func detectorScoreHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	req := new(structpb.Struct)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DetectorServer).Score(ctx, req)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: scoreMethod}
	return interceptor(ctx, req, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DetectorServer).Score(ctx, req.(*structpb.Struct))
	})
}

// GrpcServer implements DetectorServer on top of the detection service.
type GrpcServer struct {
	detector Detector
}

func NewGrpcServer(detector Detector) *GrpcServer {
	return &GrpcServer{detector: detector}
}

// NewServer builds a grpc.Server with the Detector, health and reflection
// services registered.
func NewServer(detector Detector, opts ...grpclib.ServerOption) *grpclib.Server {
	s := grpclib.NewServer(opts...)
	RegisterDetectorServer(s, NewGrpcServer(detector))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus(DetectorServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(s)
	return s
}

// Analyze expects {type: "text"|"url"|"image", content, fileName?, clientId?}.
func (s *GrpcServer) Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	kind := domain.InputKind(fields["type"].GetStringValue())
	content := fields["content"].GetStringValue()

	switch kind {
	case domain.KindText, domain.KindURL, domain.KindImage:
	case "":
		kind = domain.DetectInputKind(content)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unsupported type %q", kind)
	}

	rec, err := analyze(ctx, s.detector, fields["clientId"].GetStringValue(), kind, content, fields["fileName"].GetStringValue())
	if err != nil {
		log.WithFields(log.Fields{"type": kind, "error": err}).Warn("gRPC analysis failed")
		return nil, grpcError(err)
	}

	vendor.RecordAnalysis(rec)
	return toStruct(NewDetectionResponse(rec))
}

// Score expects {content, type?} and runs the rule-based scorer only.
func (s *GrpcServer) Score(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	content := fields["content"].GetStringValue()
	if content == "" {
		return nil, status.Error(codes.InvalidArgument, "content cannot be empty")
	}

	result := s.detector.Score(domain.AnalysisInput{
		Content: content,
		Kind:    domain.InputKind(fields["type"].GetStringValue()),
	})
	return toStruct(result)
}

func grpcError(err error) error {
	httpStatus, message := errorStatus(err)
	switch httpStatus {
	case http.StatusBadRequest:
		return status.Error(codes.InvalidArgument, message)
	case http.StatusServiceUnavailable:
		return status.Error(codes.Unavailable, message)
	case http.StatusGatewayTimeout:
		return status.Error(codes.DeadlineExceeded, message)
	default:
		return status.Error(codes.Internal, message)
	}
}

// toStruct converts any JSON-serialisable value into a Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

// DetectorClient calls a remote fraudshield.v1.Detector.
type DetectorClient struct {
	cc grpclib.ClientConnInterface
}

func NewDetectorClient(cc grpclib.ClientConnInterface) *DetectorClient {
	return &DetectorClient{cc: cc}
}

func (c *DetectorClient) Analyze(ctx context.Context, kind domain.InputKind, content, fileName string) (DetectionResponse, error) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"type":     string(kind),
		"content":  content,
		"fileName": fileName,
	})
	if err != nil {
		return DetectionResponse{}, err
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, analyzeMethod, req, out); err != nil {
		return DetectionResponse{}, err
	}

	var resp DetectionResponse
	if err := fromStruct(out, &resp); err != nil {
		return DetectionResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}

func (c *DetectorClient) Score(ctx context.Context, kind domain.InputKind, content string) (domain.AnalysisResult, error) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"type":    string(kind),
		"content": content,
	})
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, scoreMethod, req, out); err != nil {
		return domain.AnalysisResult{}, err
	}

	var result domain.AnalysisResult
	if err := fromStruct(out, &result); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return result, nil
}

func fromStruct(s *structpb.Struct, dst interface{}) error {
	raw, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
