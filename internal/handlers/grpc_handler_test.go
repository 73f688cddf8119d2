package handlers

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"eyemonitor/go-backend/internal/metrics"
	"eyemonitor/go-backend/internal/models"
	"eyemonitor/go-backend/internal/services"
)

func newGRPCClient(t *testing.T, e *testEnv) *services.GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	e.grpc.Register(s)
	go s.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	c := services.NewGRPCClientConn(conn)
	t.Cleanup(func() {
		c.Close()
		s.Stop()
	})
	return c
}

func TestGRPCHealth(t *testing.T) {
	e := newTestEnv(t, "")
	c := newGRPCClient(t, e)
	assert.True(t, c.HealthCheck(context.Background()))
}

func TestGRPCGetStats(t *testing.T) {
	e := newTestEnv(t, "")
	c := newGRPCClient(t, e)
	e.api.Tracker.Start()
	e.api.Tracker.TickMinute()

	stats, err := c.GetStats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Session.Active)
	assert.Equal(t, 1, stats.Stats.TotalScreenTimeMinutes)
	assert.Equal(t, metrics.BaselineBlinkRate, stats.Stats.AverageBlinkRate)
}

func TestGRPCAnalyzeFrame(t *testing.T) {
	e := newTestEnv(t, "")
	c := newGRPCClient(t, e)
	ctx := context.Background()

	out, err := c.AnalyzeFrame(ctx, faceFrame(0))
	require.NoError(t, err)
	assert.False(t, out.Detected)

	e.api.Tracker.Start()
	out, err = c.AnalyzeFrame(ctx, faceFrame(1))
	require.NoError(t, err)
	require.True(t, out.Detected)
	assert.InDelta(t, 36.2, out.Event.Sample.DistanceCm, 0.01)

	bad := faceFrame(2)
	bad.Width = 0
	_, err = c.AnalyzeFrame(ctx, bad)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCStreamSamples(t *testing.T) {
	e := newTestEnv(t, "")
	c := newGRPCClient(t, e)
	e.api.Tracker.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan models.SampleEvent, 1)
	go c.StreamSamples(ctx, func(ev models.SampleEvent) error {
		got <- ev
		cancel()
		return nil
	})
	require.Eventually(t, func() bool { return e.grpc.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	e.api.Analyzer.Submit(faceFrame(0))

	select {
	case ev := <-got:
		assert.Equal(t, metrics.StatusTooClose, ev.DistanceStatus)
	case <-time.After(5 * time.Second):
		t.Fatal("no sample streamed")
	}
	assert.Eventually(t, func() bool { return e.grpc.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
