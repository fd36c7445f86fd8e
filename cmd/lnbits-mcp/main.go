package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/i2y/lnbits-mcp/configs"
	"github.com/i2y/lnbits-mcp/internal/adapter/inbound/mcphttp"
	"github.com/i2y/lnbits-mcp/internal/adapter/inbound/mcpserver"
	"github.com/i2y/lnbits-mcp/internal/adapter/outbound/httpinvoker"
	"github.com/i2y/lnbits-mcp/internal/adapter/outbound/lnbits"
	"github.com/i2y/lnbits-mcp/internal/adapter/outbound/memrepo"
	"github.com/i2y/lnbits-mcp/internal/adapter/outbound/metrics"
	"github.com/i2y/lnbits-mcp/internal/adapter/outbound/openapi"
	"github.com/i2y/lnbits-mcp/internal/usecase"
)

const serviceName = "lnbits-mcp"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// shutdowner is implemented by the SSE and streamable HTTP transports.
type shutdowner interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	var transport string
	flag.StringVar(&transport, "transport", "stdio", "Transport mode: stdio, sse or http")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Configuration ===
	cfg, err := configs.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// === Logging ===
	logger := newLogger(cfg, transport)
	slog.SetDefault(logger)
	logger.Info("Logger initialized.",
		slog.String("level", cfg.ParsedLogLevel().String()),
		slog.String("transport", transport),
		slog.String("version", version))

	// === OpenTelemetry Initialization ===
	shutdownOtel, err := initOtelProvider(cfg)
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry.", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry TracerProvider.", slog.Any("error", err))
		}
	}()

	// === Dependency Injection ===
	settings, err := cfg.LNbitsSettings()
	if err != nil {
		logger.Error("Invalid LNbits connection settings.", slog.Any("error", err))
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector("lnbits_mcp", reg)

	manager := lnbits.NewManager(settings, logger)
	registry := memrepo.NewRegistry(cfg.RegistryConfig(), logger)
	fetcher := openapi.NewSchemaFetcher(&http.Client{Timeout: cfg.Timeout}, cfg.SpecPath, logger)
	parser := openapi.NewParser(openapi.DefaultNamingRules(), logger)

	discoverUC := usecase.NewDiscoverToolsUseCase(fetcher, parser, registry, recorder, logger)
	invokeUC := usecase.NewInvokeToolUseCase(registry, manager, httpinvoker.New(logger), logger)
	catalog, err := usecase.NewCatalog(discoverUC, invokeUC, registry, manager, recorder, logger)
	if err != nil {
		logger.Error("Failed to create tool catalog.", slog.Any("error", err))
		os.Exit(1)
	}

	// A new connection may expose a different API, so rediscover.
	manager.OnChange(func(ctx context.Context) {
		if _, err := catalog.Refresh(ctx); err != nil {
			logger.Warn("Rediscovery after configuration change failed.", slog.Any("error", err))
		}
	})

	srv := mcpserver.New(serviceName, version, catalog, logger)
	logger.Info("Dependencies initialized.", slog.String("lnbits_url", settings.URL))

	switch transport {
	case "stdio":
		logger.Info("Starting MCP server in STDIO mode.")
		if err := srv.ServeStdio(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("STDIO server error.", slog.Any("error", err))
			os.Exit(1)
		}

	case "sse", "http":
		var mcpHTTP shutdowner
		if transport == "sse" {
			mcpHTTP = srv.SSE(publicBaseURL(cfg.ListenAddr))
		} else {
			mcpHTTP = srv.StreamableHTTP()
		}

		adminMux := http.NewServeMux()
		mcphttp.NewHandlers(catalog, registry, reg, logger).RegisterAdminRoutes(adminMux)
		adminServer := &http.Server{
			Addr:        cfg.AdminAddr,
			Handler:     adminMux,
			ReadTimeout: cfg.ServerReadTimeout,
			IdleTimeout: cfg.ServerIdleTimeout,
		}
		go func() {
			logger.Info("Admin HTTP server starting.", slog.String("address", adminServer.Addr))
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Admin HTTP server failed to start.", slog.Any("error", err))
			}
		}()

		go func() {
			logger.Info("MCP server starting.", slog.String("transport", transport), slog.String("address", cfg.ListenAddr))
			if err := mcpHTTP.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("MCP server failed to start.", slog.Any("error", err))
				stop()
			}
		}()

		<-ctx.Done()

		// === Server Shutdown ===
		logger.Info("Shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Admin HTTP server graceful shutdown failed.", slog.Any("error", err))
		}
		if err := mcpHTTP.Shutdown(shutdownCtx); err != nil {
			logger.Error("MCP server graceful shutdown failed.", slog.Any("error", err))
		}
		logger.Info("Servers shut down gracefully.")

	default:
		logger.Error("Invalid transport mode", slog.String("transport", transport))
		os.Exit(1)
	}
}

// newLogger writes to stderr, except in stdio mode where stdout carries
// JSON-RPC and logs go to LOG_FILE instead.
func newLogger(cfg *configs.Config, transport string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.ParsedLogLevel()}
	if transport != "stdio" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, opts))
	}
	return slog.New(slog.NewTextHandler(logFile, opts))
}

func publicBaseURL(listenAddr string) string {
	if len(listenAddr) > 0 && listenAddr[0] == ':' {
		return "http://localhost" + listenAddr
	}
	return "http://" + listenAddr
}

// initOtelProvider initializes the OpenTelemetry SDK and sets up the OTLP trace exporter.
// It returns a shutdown function to be called on application exit.
func initOtelProvider(cfg *configs.Config) (func(context.Context) error, error) {
	ctx := context.Background()

	// Trace context is propagated to LNbits even when no exporter is configured.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if cfg.OtelExporterOtlpEndpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, OpenTelemetry tracing disabled.")
		return func(context.Context) error { return nil }, nil
	}

	slog.Info("Initializing OTLP exporter.", slog.String("endpoint", cfg.OtelExporterOtlpEndpoint))

	grpcOpts := []grpc.DialOption{}
	if cfg.OtelExporterOtlpInsecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		slog.Warn("Using insecure connection for OTLP exporter.")
	} else {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	conn, err := grpc.NewClient(cfg.OtelExporterOtlpEndpoint, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to OTLP endpoint: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	slog.Info("OpenTelemetry TracerProvider configured.")

	return func(ctx context.Context) error {
		providerErr := tp.Shutdown(ctx)
		connErr := conn.Close()
		return errors.Join(providerErr, connErr)
	}, nil
}
