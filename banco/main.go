package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"
	_ "time/tzdata"

	healthgo "github.com/hellofresh/health-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	echoSwagger "github.com/swaggo/echo-swagger"
	_ "github.com/taldoflemis/trattoria/banco/docs"
	"github.com/taldoflemis/trattoria/cassa"
	"github.com/taldoflemis/trattoria/cassa/postgres"
	"github.com/taldoflemis/trattoria/pacchetto"
	"github.com/taldoflemis/trattoria/pacchetto/telemetry"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const liveFeedBuffer = 32

// @title						Banco
// @version						1.0
// @description					Order intake for the restaurant storefront.
// @host						localhost:8080
// @BasePath					/
func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()
	retcode := 0
	defer func() {
		os.Exit(retcode)
	}()

	slog.InfoContext(ctx, "Launching banco")

	slog.InfoContext(ctx, "Loading config")
	settings, err := LoadConfig()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", slog.Any("err", err))
		retcode = 1
		return
	}

	intakeSettings, err := settings.Intake.CassaSettings()
	if err != nil {
		slog.ErrorContext(ctx, "invalid intake settings", slog.Any("err", err))
		retcode = 1
		return
	}

	location, err := time.LoadLocation(settings.Intake.Timezone)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load store timezone", slog.Any("err", err))
		retcode = 1
		return
	}

	slog.InfoContext(ctx, "Setting up opentelemetry")
	otelShutdown, err := telemetry.SetupOTelSDK(ctx, settings.App, settings.OpenTelemetry)
	if err != nil {
		slog.Error("failed to setup telemetry", slog.Any("err", err))
		retcode = 1
		return
	}

	defer func() {
		err = errors.Join(err, otelShutdown(context.Background()))
		if err != nil {
			slog.ErrorContext(
				ctx,
				"failed to shutdown opentelemetry providers",
				slog.Any("err", err),
			)
			retcode = 1
		}
	}()

	slog.InfoContext(ctx, "Connecting to postgres")
	pool, err := pacchetto.NewPostgresPool(ctx, settings.Postgres)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to postgres", slog.Any("err", err))
		retcode = 1
		return
	}
	defer pool.Close()

	if err = postgres.Migrate(ctx, pool); err != nil {
		slog.ErrorContext(ctx, "failed to migrate database", slog.Any("err", err))
		retcode = 1
		return
	}

	errChan := make(chan error, 3)
	feed := NewLiveFeed(liveFeedBuffer)

	checks := []healthgo.Config{{
		Name:    "postgres",
		Timeout: 2 * time.Second,
		Check: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	}}

	publisher, brokerChecks, closeBroker, err := setupEvents(ctx, settings, feed, errChan)
	if err != nil {
		slog.ErrorContext(ctx, "failed to set up order events", slog.Any("err", err))
		retcode = 1
		return
	}
	defer closeBroker()
	checks = append(checks, brokerChecks...)

	intake, err := cassa.NewIntake(intakeSettings, cassa.Collaborators{
		Menu:      postgres.NewMenuStore(pool),
		Ledger:    postgres.NewOrderLedger(pool),
		Users:     postgres.NewUserDirectory(pool),
		POS:       NewCloverPOS(settings.Clover),
		Mailer:    NewSMTPMailer(settings.SMTP, location),
		Publisher: publisher,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create order intake", slog.Any("err", err))
		retcode = 1
		return
	}

	slog.InfoContext(ctx, "Setting up health checker")
	health, err := healthgo.New(
		healthgo.WithComponent(healthgo.Component{
			Name:    settings.App.Name,
			Version: settings.App.Version,
		}),
		healthgo.WithChecks(checks...),
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create health checker", slog.Any("err", err))
		retcode = 1
		return
	}

	slog.InfoContext(ctx, "Creating gRPC server")
	grpcServer, healthcheck := pacchetto.CreateGRPCServer(settings.GRPCServer)
	go watchHealth(ctx, settings.GRPCServer, pool, healthcheck.SetServingStatus)

	lis, err := net.Listen("tcp", settings.GRPCServer.Address())
	if err != nil {
		slog.ErrorContext(ctx, "failed to listen", slog.Any("err", err))
		retcode = 1
		return
	}
	go func() {
		slog.InfoContext(ctx, "Starting gRPC server", slog.Any("addr", lis.Addr()))
		if err := grpcServer.Serve(lis); err != nil {
			errChan <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	server := echo.New()
	NewMainHandler(server, settings, intake, feed, NewSessionReader(settings.Session), health)
	server.GET("/swagger/*", echoSwagger.WrapHandler)
	pprof.Register(server)

	go func() {
		slog.InfoContext(ctx, "listening for requests", slog.String("ip", settings.HTTP.IP), slog.String("port", settings.HTTP.Port))
		errChan <- server.Start(net.JoinHostPort(settings.HTTP.IP, settings.HTTP.Port))
	}()

	select {
	case err = <-errChan:
		slog.ErrorContext(ctx, "error when running server", slog.Any("err", err))
		retcode = 1
	case <-ctx.Done():
		// Wait for first Signal arrives
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "failed to shutdown gracefully the server", slog.Any("err", err))
	}
	slog.InfoContext(ctx, "Shutting down gRPC server")
	grpcServer.GracefulStop()
}

// setupEvents builds the order publisher for the configured driver. Every
// driver ends up feeding the in-process live feed.
func setupEvents(
	ctx context.Context,
	settings *Settings,
	feed *LiveFeed,
	errChan chan<- error,
) (cassa.OrderPublisher, []healthgo.Config, func(), error) {
	noop := func() {}

	switch settings.Events.Driver {
	case "nats":
		slog.InfoContext(ctx, "Connecting to NATS server")
		nc, err := settings.Nats.GetNatsClient(settings.App.Name)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connect to nats: %w", err)
		}

		publisher, err := NewNATSOrderPublisher(ctx, nc, settings.Events.Stream, settings.Events.Subject)
		if err != nil {
			nc.Close()
			return nil, nil, noop, err
		}

		go func() {
			if err := publisher.RelayToFeed(ctx, feed); err != nil {
				errChan <- err
			}
		}()

		check := healthgo.Config{
			Name: "nats",
			Check: func(context.Context) error {
				if nc.Status() != nats.CONNECTED {
					return errors.New("NATS connection is not active")
				}
				return nil
			},
		}
		return publisher, []healthgo.Config{check}, func() { _ = nc.Drain() }, nil

	case "amqp":
		slog.InfoContext(ctx, "Connecting to AMQP broker")
		conn, err := settings.AMQP.Dial()
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connect to amqp: %w", err)
		}

		publisher, err := NewAMQPOrderPublisher(conn, settings.Events.Exchange)
		if err != nil {
			_ = conn.Close()
			return nil, nil, noop, err
		}

		check := healthgo.Config{
			Name: "amqp",
			Check: func(context.Context) error {
				if conn.IsClosed() {
					return errors.New("AMQP connection is closed")
				}
				return nil
			},
		}
		closeFn := func() {
			_ = publisher.Close()
			_ = conn.Close()
		}
		return teePublisher{broker: publisher, feed: feed}, []healthgo.Config{check}, closeFn, nil

	default:
		slog.InfoContext(ctx, "Order events stay in process")
		return feed, nil, noop, nil
	}
}

// watchHealth toggles the gRPC serving status with database reachability.
func watchHealth(
	ctx context.Context,
	cfg pacchetto.GRPCServerSettings,
	pool *pgxpool.Pool,
	set func(service string, status healthpb.HealthCheckResponse_ServingStatus),
) {
	interval := time.Duration(cfg.AsyncHealthIntervalInSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status := healthpb.HealthCheckResponse_SERVING
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := pool.Ping(pingCtx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		cancel()
		set("", status)

		select {
		case <-ctx.Done():
			set("", healthpb.HealthCheckResponse_NOT_SERVING)
			return
		case <-ticker.C:
		}
	}
}
