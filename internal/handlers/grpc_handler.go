package handlers

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"eyemonitor/go-backend/internal/metrics"
	"eyemonitor/go-backend/internal/models"
	"eyemonitor/go-backend/internal/services"
	"eyemonitor/go-backend/internal/session"
	"eyemonitor/go-backend/internal/vision"
	pb "eyemonitor/go-backend/pkg/pb"
)

const streamBuffer = 64

type GRPCHandler struct {
	pb.UnimplementedEyeMetricsServer
	tracker  *session.Tracker
	analyzer *services.Analyzer
	log      *slog.Logger

	mu   sync.Mutex
	subs map[chan models.SampleEvent]struct{}
}

func NewGRPCHandler(t *session.Tracker, a *services.Analyzer, log *slog.Logger) *GRPCHandler {
	return &GRPCHandler{
		tracker:  t,
		analyzer: a,
		log:      log,
		subs:     make(map[chan models.SampleEvent]struct{}),
	}
}

// Register adds the EyeMetrics and health services to s.
func (h *GRPCHandler) Register(s *grpc.Server) *health.Server {
	pb.RegisterEyeMetricsServer(s, h)
	hs := health.NewServer()
	hs.SetServingStatus(pb.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(s, hs)
	return hs
}

func (h *GRPCHandler) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s, err := models.ToStruct(statsResponse(h.tracker))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}

func (h *GRPCHandler) AnalyzeFrame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var fm models.FrameMessage
	if err := models.FromStruct(req, &fm); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := h.analyzer.Detect(ctx, fm.Frame())
	if errors.Is(err, vision.ErrInvalidFrame) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err != nil {
		h.log.Error("grpc analyze failed", "err", err)
		return nil, status.Error(codes.Internal, "processing failed")
	}

	resp := models.DetectResponse{Detected: res != nil}
	if res != nil {
		ev := models.NewSampleEvent(res.Sample, res.Alerts)
		resp.Event = &ev
	}
	out, err := models.ToStruct(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// StreamSamples pushes every emitted sample until the client goes away. A
// subscriber that falls behind misses samples rather than stalling analysis.
func (h *GRPCHandler) StreamSamples(_ *emptypb.Empty, stream pb.EyeMetrics_StreamSamplesServer) error {
	ch := make(chan models.SampleEvent, streamBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}()

	h.log.Info("sample stream started")
	for {
		select {
		case <-stream.Context().Done():
			h.log.Info("sample stream completed")
			return nil
		case ev := <-ch:
			s, err := models.ToStruct(ev)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.Send(s); err != nil {
				return err
			}
		}
	}
}

func (h *GRPCHandler) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// PublishSample implements services.SampleSink.
func (h *GRPCHandler) PublishSample(s metrics.Sample, a metrics.Alerts) {
	ev := models.NewSampleEvent(s, a)
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
