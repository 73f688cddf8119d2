package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"eyemonitor/go-backend/internal/config"
	"eyemonitor/go-backend/internal/database"
	"eyemonitor/go-backend/internal/emitter"
	"eyemonitor/go-backend/internal/handlers"
	"eyemonitor/go-backend/internal/logging"
	"eyemonitor/go-backend/internal/models"
	"eyemonitor/go-backend/internal/services"
	"eyemonitor/go-backend/internal/session"
)

var (
	grpcServer *grpc.Server
	httpServer *http.Server
)

func main() {
	httpPort := flag.String("http-port", "", "HTTP port (overrides HTTP_PORT)")
	grpcPort := flag.String("grpc-port", "", "gRPC port (overrides GRPC_PORT)")
	hashToken := flag.String("hash-token", "", "print the bcrypt hash of a token for API_TOKEN_HASH and exit")
	flag.Parse()

	if *hashToken != "" {
		hash, err := handlers.HashToken(*hashToken)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort != "" {
		cfg.HTTPPort = *httpPort
	}
	if *grpcPort != "" {
		cfg.GRPCPort = *grpcPort
	}

	log := logging.New(cfg.LogLevel, cfg.Environment)
	slog.SetDefault(log)

	log.Info("starting eye monitor",
		"grpc_port", cfg.GRPCPort,
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"db_driver", cfg.DBDriver,
		"dotenv", cfg.DotenvLoaded,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	tracker, err := session.NewTracker(cfg.Pipeline, log)
	if err != nil {
		log.Error("invalid pipeline", "err", err)
		os.Exit(1)
	}

	metrics := services.NewMetrics()
	analyzer := services.NewAnalyzer(tracker, services.NewFrameMailbox(), metrics, log)
	maxMessageBytes := cfg.MaxMessageSizeMB << 20
	hub := handlers.NewHub(analyzer, metrics, log, cfg.MaxConnections, int64(maxMessageBytes))
	grpcHandler := handlers.NewGRPCHandler(tracker, analyzer, log)
	analyzer.AddSampleSink(hub)
	analyzer.AddSampleSink(grpcHandler)
	analyzer.AddAlertSink(hub)

	var store *database.Store
	var persister session.Persister
	if cfg.PersistenceEnabled() {
		store, err = openStore(ctx, cfg, log)
		if err != nil {
			log.Error("database unavailable", "dsn", cfg.DSNForLog(), "err", err)
			os.Exit(1)
		}
		defer store.Close()
		persister = store
		analyzer.AddAlertSink(store)
		restore(ctx, store, tracker, log)
	}

	var mqttEmitter *emitter.MQTTEmitter
	if cfg.MQTTEnabled() {
		mqttEmitter = emitter.NewMQTTEmitter(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, log)
		if err := mqttEmitter.Connect(ctx); err != nil {
			log.Warn("mqtt broker not reachable yet, alerts will be published once connected", "broker", cfg.MQTTBroker, "err", err)
		}
		analyzer.AddAlertSink(mqttEmitter)
	}

	scheduler := session.NewScheduler(tracker, persister, cfg.FlushInterval, log)
	scheduler.OnFlush = func(s session.Snapshot) {
		hub.Broadcast(models.MsgStats, s)
	}

	if cfg.AutoStart {
		st := tracker.Start()
		if store != nil {
			if err := store.CreateSession(ctx, st.ID, st.StartedAt); err != nil {
				log.Error("could not record session start", "session", st.ID, "err", err)
			}
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		analyzer.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	grpcServer = grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMessageBytes),
		grpc.MaxSendMsgSize(maxMessageBytes),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	healthServer := grpcHandler.Register(grpcServer)

	api := &handlers.API{
		Tracker:         tracker,
		Analyzer:        analyzer,
		Hub:             hub,
		Metrics:         metrics,
		Scheduler:       scheduler,
		Auth:            handlers.NewTokenAuth(cfg.APITokenHash),
		Log:             log,
		CORSOrigins:     cfg.CORSOrigins,
		MaxMessageBytes: int64(maxMessageBytes),
	}
	if store != nil {
		api.Store = store
	}
	if api.Auth == nil {
		log.Warn("API_TOKEN_HASH not set, control endpoints are unauthenticated")
	}

	httpServer = newHTTPServer(cfg.HTTPPort, api)
	go startGRPCServer(cfg.GRPCPort, log)
	go startHTTPServer(log)

	<-done
	log.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		log.Info("gRPC server stopped")
	case <-shutdownCtx.Done():
		log.Warn("forcing gRPC shutdown")
		grpcServer.Stop()
	}

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelHTTP()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		log.Error("error shutting down HTTP server", "err", err)
	} else {
		log.Info("HTTP server stopped")
	}
	hub.CloseAll()

	// Stopping the scheduler writes the final snapshot.
	cancel()
	wg.Wait()
	if st := tracker.Session(); st.Active && store != nil {
		endCtx, cancelEnd := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.EndSession(endCtx, st.ID, time.Now()); err != nil {
			log.Error("could not record session end", "session", st.ID, "err", err)
		}
		cancelEnd()
	}

	if mqttEmitter != nil {
		mqttEmitter.Disconnect()
	}
	log.Info("goodbye")
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*database.Store, error) {
	db, err := database.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("database ready", "driver", cfg.DBDriver, "dsn", cfg.DSNForLog())
	return database.NewStore(db), nil
}

// restore carries today's counters over from the last snapshot.
func restore(ctx context.Context, store *database.Store, tracker *session.Tracker, log *slog.Logger) {
	snap, err := store.LatestSnapshot(ctx)
	if errors.Is(err, database.ErrNoSnapshot) {
		return
	}
	if err != nil {
		log.Warn("could not load last snapshot", "err", err)
		return
	}
	if tracker.RestoreSameDay(snap) {
		log.Info("restored daily counters",
			"screen_minutes", snap.ScreenTimeMinutes,
			"blink_events", snap.TotalBlinkEvents,
			"taken_at", snap.TakenAt,
		)
	}
}

func listenAddr(port string) string {
	return ":" + strings.TrimPrefix(port, ":")
}

func startGRPCServer(port string, log *slog.Logger) {
	lis, err := net.Listen("tcp", listenAddr(port))
	if err != nil {
		log.Error("failed to listen on gRPC port", "port", port, "err", err)
		os.Exit(1)
	}

	log.Info("gRPC server listening", "addr", lis.Addr().String())
	if err := grpcServer.Serve(lis); err != nil {
		log.Error("gRPC server failed", "err", err)
		os.Exit(1)
	}
}

func newHTTPServer(port string, api *handlers.API) *http.Server {
	mux := http.NewServeMux()
	api.Routes(mux)

	return &http.Server{
		Addr:         listenAddr(port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func startHTTPServer(log *slog.Logger) {
	log.Info("HTTP server listening",
		"addr", httpServer.Addr,
		"websocket", fmt.Sprintf("ws://localhost%s/ws", httpServer.Addr),
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("HTTP server failed", "err", err)
		os.Exit(1)
	}
}
