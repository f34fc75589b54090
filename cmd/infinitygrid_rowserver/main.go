package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	rowservice "github.com/sushant-115/infinitygrid/api/row_service"
	"github.com/sushant-115/infinitygrid/config"
	"github.com/sushant-115/infinitygrid/internal/host"
)

var (
	configPath  = flag.String("config", "", "Path to the YAML configuration file")
	grpcAddr    = flag.String("grpc-addr", "", "gRPC listen address (overrides server.grpc_address)")
	sqlitePath  = flag.String("sqlite", "", "Serve rows from this SQLite database instead of the configured provider")
	rows        = flag.Int("rows", -1, "Collection size for generated rows or SQLite seeding (overrides provider.rows)")
	metricsPort = flag.Int("metrics-port", 0, "Serve Prometheus /metrics on this port (enables telemetry)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	h, err := host.Setup(cfg)
	if err != nil {
		log.Fatalf("failed to set up host: %v", err)
	}
	zlogger := h.Logger.Named("rowserver")

	p, err := h.Provider(context.Background())
	if err != nil {
		zlogger.Fatal("failed to create provider", zap.Error(err))
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddress)
	if err != nil {
		zlogger.Fatal("failed to listen for gRPC", zap.Error(err), zap.String("address", cfg.Server.GRPCAddress))
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(rowservice.LoggingInterceptor(h.Logger)))
	rowservice.RegisterRowServiceServer(grpcServer, rowservice.NewServer(p, rowservice.StringCodec, h.Logger))

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigs
		zlogger.Info("shutting down", zap.Stringer("signal", sig))
		grpcServer.GracefulStop()
	}()

	zlogger.Info("row server starting",
		zap.String("address", lis.Addr().String()),
		zap.String("provider", cfg.Provider.Kind),
		zap.Int("metricsPort", cfg.Telemetry.PrometheusPort))
	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		zlogger.Error("gRPC server failed to serve", zap.Error(err))
	}

	if err := h.Close(context.Background()); err != nil {
		zlogger.Error("shutdown failed", zap.Error(err))
	}
}

func applyFlags(cfg *config.Config) {
	if *grpcAddr != "" {
		cfg.Server.GRPCAddress = *grpcAddr
	}
	if *sqlitePath != "" {
		cfg.Provider.Kind = config.ProviderSQLite
		cfg.Provider.SQLitePath = *sqlitePath
	}
	if *rows >= 0 {
		cfg.Provider.Rows = *rows
	}
	if *metricsPort > 0 {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.PrometheusPort = *metricsPort
	}
	if cfg.Provider.Kind == config.ProviderGenerated {
		// A server answers immediately; latency is a client-side demo knob.
		cfg.Provider.Latency = 0
	}
}
