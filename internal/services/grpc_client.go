package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/emptypb"

	"eyemonitor/go-backend/internal/models"
	"eyemonitor/go-backend/internal/vision"
	pb "eyemonitor/go-backend/pkg/pb"
)

// GRPCClient talks to a running EyeMetrics server.
type GRPCClient struct {
	conn   *grpc.ClientConn
	client pb.EyeMetricsClient
	health grpc_health_v1.HealthClient
	url    string
}

func NewGRPCClient(url string, maxMessageBytes int) (*GRPCClient, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMessageBytes),
			grpc.MaxCallSendMsgSize(maxMessageBytes),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	conn, err := grpc.NewClient(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not connect to gRPC server at %s: %w", url, err)
	}
	c := NewGRPCClientConn(conn)
	c.url = url
	return c, nil
}

// NewGRPCClientConn wraps an existing connection.
func NewGRPCClientConn(conn *grpc.ClientConn) *GRPCClient {
	return &GRPCClient{
		conn:   conn,
		client: pb.NewEyeMetricsClient(conn),
		health: grpc_health_v1.NewHealthClient(conn),
		url:    conn.Target(),
	}
}

func (gc *GRPCClient) GetStats(ctx context.Context) (models.StatsResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var out models.StatsResponse
	s, err := gc.client.GetStats(ctx, &emptypb.Empty{})
	if err != nil {
		return out, fmt.Errorf("could not get stats: %w", err)
	}
	if err := models.FromStruct(s, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (gc *GRPCClient) AnalyzeFrame(ctx context.Context, f *vision.Frame) (models.DetectResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var out models.DetectResponse
	req, err := models.ToStruct(models.NewFrameMessage(f))
	if err != nil {
		return out, err
	}
	res, err := gc.client.AnalyzeFrame(ctx, req)
	if err != nil {
		return out, fmt.Errorf("could not analyze frame: %w", err)
	}
	if err := models.FromStruct(res, &out); err != nil {
		return out, err
	}
	return out, nil
}

// StreamSamples calls fn for every sample the server pushes until ctx is done,
// the stream ends or fn returns an error.
func (gc *GRPCClient) StreamSamples(ctx context.Context, fn func(models.SampleEvent) error) error {
	stream, err := gc.client.StreamSamples(ctx, &emptypb.Empty{})
	if err != nil {
		return fmt.Errorf("could not open sample stream: %w", err)
	}
	for {
		s, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("sample stream: %w", err)
		}
		var ev models.SampleEvent
		if err := models.FromStruct(s, &ev); err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

func (gc *GRPCClient) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	res, err := gc.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: pb.ServiceName})
	return err == nil && res.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING
}

func (gc *GRPCClient) Close() error {
	if gc.conn != nil {
		return gc.conn.Close()
	}
	return nil
}
