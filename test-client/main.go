package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"eyemonitor/go-backend/internal/models"
	"eyemonitor/go-backend/internal/services"
	"eyemonitor/go-backend/internal/synth"
	"eyemonitor/go-backend/internal/vision"
)

var (
	backendURL = flag.String("http", "http://localhost:8080", "backend HTTP base URL")
	grpcAddr   = flag.String("grpc", "localhost:50051", "backend gRPC address")
	token      = flag.String("token", "", "API token for the control endpoints")
	blinks     = flag.Int("blinks", 5, "number of synthetic blinks to send")
)

func post(path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, *backendURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(out))
	}
	return out, nil
}

func get(path string) ([]byte, error) {
	resp, err := http.Get(*backendURL + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(out))
	}
	return out, nil
}

func testHealth() error {
	fmt.Println("\n[TEST] Testing /api/health...")
	body, err := get("/api/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	fmt.Printf("✓ Health check: %s\n", strings.TrimSpace(string(body)))
	return nil
}

func testStart() error {
	fmt.Println("\n[TEST] Testing /api/session/start...")
	body, err := post("/api/session/start", nil)
	if err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	fmt.Printf("✓ Session started: %s\n", strings.TrimSpace(string(body)))
	return nil
}

func detect(f *vision.Frame) (models.DetectResponse, error) {
	var out models.DetectResponse
	raw, err := json.Marshal(models.NewFrameMessage(f))
	if err != nil {
		return out, err
	}
	body, err := post("/api/detect", raw)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(body, &out)
	return out, err
}

func testDetection() error {
	fmt.Println("\n[TEST] Testing /api/detect with synthetic blinks...")

	start := time.Now()
	var last models.DetectResponse
	for i := 0; i < *blinks; i++ {
		frames := synth.Blink(start.Add(time.Duration(i)*3*time.Second), 100*time.Millisecond, 3)
		for _, f := range frames {
			res, err := detect(f)
			if err != nil {
				return fmt.Errorf("detection failed: %w", err)
			}
			last = res
		}
	}

	if !last.Detected || last.Event == nil {
		return fmt.Errorf("no face detected in synthetic frames")
	}
	fmt.Printf("✓ Detection successful!\n")
	fmt.Printf("  - Blink rate: %.1f/min (%s)\n", last.Event.Sample.BlinkRate, last.Event.BlinkStatus)
	fmt.Printf("  - Distance: %.1f cm (%s)\n", last.Event.Sample.DistanceCm, last.Event.DistanceStatus)
	fmt.Printf("  - Alerts: %+v\n", last.Event.Alerts)
	return nil
}

func testStats() error {
	fmt.Println("\n[TEST] Testing /api/stats...")
	body, err := get("/api/stats")
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}
	var stats models.StatsResponse
	if err := json.Unmarshal(body, &stats); err != nil {
		return fmt.Errorf("failed to parse stats: %w", err)
	}
	fmt.Printf("✓ Eye strain score: %d, blink events: %d\n",
		stats.Stats.EyeStrainScore, stats.Session.TotalBlinkEvents)
	return nil
}

func testGRPC() error {
	fmt.Println("\n[TEST] Testing gRPC at", *grpcAddr, "...")

	client, err := services.NewGRPCClient(*grpcAddr, 16<<20)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !client.HealthCheck(ctx) {
		return fmt.Errorf("gRPC health check failed")
	}
	fmt.Println("✓ gRPC health: SERVING")

	received := make(chan models.SampleEvent, 1)
	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()
	go client.StreamSamples(streamCtx, func(ev models.SampleEvent) error {
		select {
		case received <- ev:
		default:
		}
		return nil
	})
	// Give the stream a moment to subscribe.
	time.Sleep(200 * time.Millisecond)

	res, err := client.AnalyzeFrame(ctx, synth.Frame(320, 240, synth.DefaultFace, true, time.Now()))
	if err != nil {
		return err
	}
	fmt.Printf("✓ AnalyzeFrame: detected=%v\n", res.Detected)

	select {
	case ev := <-received:
		fmt.Printf("✓ Streamed sample: distance %.1f cm\n", ev.Sample.DistanceCm)
	case <-time.After(2 * time.Second):
		fmt.Println("⚠ No sample streamed")
	}

	stats, err := client.GetStats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✓ GetStats: screen time %d min, score %d\n",
		stats.Stats.TotalScreenTimeMinutes, stats.Stats.EyeStrainScore)
	return nil
}

func testStop() error {
	fmt.Println("\n[TEST] Testing /api/session/stop...")
	if _, err := post("/api/session/stop", nil); err != nil {
		return fmt.Errorf("stop failed: %w", err)
	}
	fmt.Println("✓ Session stopped")

	if body, err := get("/api/snapshots?limit=1"); err == nil {
		fmt.Printf("✓ Latest snapshot: %s\n", strings.TrimSpace(string(body)))
	}
	return nil
}

func main() {
	flag.Parse()

	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Println("EYE MONITOR - Backend Testing Client")
	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Println("\n[INFO] Make sure the backend is running on", *backendURL)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Health Check", testHealth},
		{"Start Session", testStart},
		{"Detection", testDetection},
		{"Stats", testStats},
		{"gRPC", testGRPC},
		{"Stop Session", testStop},
	}

	for _, test := range tests {
		if err := test.fn(); err != nil {
			log.Printf("❌ %s failed: %v", test.name, err)
			os.Exit(1)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("✅ All tests completed successfully!")
	fmt.Println("=" + strings.Repeat("=", 60))
}
