package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MenopausaC/quiz-funnel-service/internal/app"
	"github.com/MenopausaC/quiz-funnel-service/internal/config"
	"github.com/MenopausaC/quiz-funnel-service/internal/infra/memory"
	"github.com/MenopausaC/quiz-funnel-service/internal/infra/postgres"
	redisstore "github.com/MenopausaC/quiz-funnel-service/internal/infra/redis"
	"github.com/MenopausaC/quiz-funnel-service/internal/metrics"
	"github.com/MenopausaC/quiz-funnel-service/internal/relay"
	"github.com/MenopausaC/quiz-funnel-service/internal/sink"
	transport "github.com/MenopausaC/quiz-funnel-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the funnel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// Local stores: redis-backed when configured, in-process otherwise.
	var (
		events interface {
			app.EventLog
			metrics.EventSource
			sink.EventLog
		}
		leads interface {
			app.LeadList
			metrics.LeadSource
			sink.LeadList
		}
	)
	if redisClient != nil {
		events = redisstore.NewEventLog(redisClient, cfg.Analytics.KeyPrefix)
		leads = redisstore.NewLeadList(redisClient, cfg.Analytics.KeyPrefix)
	} else {
		events = memory.NewEventLog()
		leads = memory.NewLeadList()
	}

	// Remote store and metrics reader, when postgres is configured.
	var (
		remote sink.RemoteStore
		reader metrics.RemoteReader
		pool   *pgxpool.Pool
	)
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		reader = postgres.NewMetricsReader(pool)

		db := openBun(cfg.Postgres.URL)
		defer db.Close()
		remote = postgres.NewStore(db)
	}

	recorder := sink.New(remote, events, leads)
	aggregator := metrics.NewAggregator(reader, events, leads)
	service := app.NewFunnelService(events, leads, recorder, aggregator)

	relayClient := relay.New(cfg.Webhooks.MakeViewURL)
	api := transport.NewAPI(service, relayClient, cfg.Webhooks.HublaSecret, remote != nil)
	refresh := config.TTLDuration(cfg.Analytics.RefreshInterval, 30*time.Second)
	mux := transport.NewMux(api, transport.NewMetricsWSHandler(service, refresh))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz funnel service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
