package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MenopausaC/quiz-funnel-service/internal/app"
	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
	"github.com/MenopausaC/quiz-funnel-service/internal/infra/postgres"
	pgmigrations "github.com/MenopausaC/quiz-funnel-service/internal/infra/postgres/migrations"
	infraredis "github.com/MenopausaC/quiz-funnel-service/internal/infra/redis"
	"github.com/MenopausaC/quiz-funnel-service/internal/metrics"
	"github.com/MenopausaC/quiz-funnel-service/internal/sink"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestFunnelEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	events := infraredis.NewEventLog(redisClient, "funnel")
	leads := infraredis.NewLeadList(redisClient, "funnel")
	remote := postgres.NewStore(db)
	reader := postgres.NewMetricsReader(pool)
	recorder := sink.New(remote, events, leads)
	aggregator := metrics.NewAggregator(reader, events, leads)
	service := app.NewFunnelService(events, leads, recorder, aggregator)

	// Full quiz traversal.
	sessionID, out := service.StartSession(ctx, "testbx4", "Mozilla/5.0", "https://quiz.example/")
	if out.Backend != sink.BackendRemote {
		t.Fatalf("view should land remotely, got %+v", out)
	}
	answers := map[string]int{"idade": 10, "sintomas": 15, "duracao": 20, "tratamento": 15, "impacto": 25}
	for q, pts := range answers {
		err := service.RecordAnswer(ctx, sessionID, domain.Answer{Pergunta: q, Resposta: "r", Pontos: pts, TempoMs: 20000})
		if err != nil {
			t.Fatalf("answer %s: %v", q, err)
		}
	}
	_ = service.TrackNavigation(ctx, sessionID, true)

	lead, out, err := service.Complete(ctx, sessionID, app.Contact{
		Nome: "Maria Silva", Email: "maria@exemplo.com", Telefone: "11988887777", Idade: 52,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.Backend != sink.BackendRemote {
		t.Fatalf("lead should land remotely, got %+v", out)
	}
	if lead.Qualificacao.Score != 85 {
		t.Fatalf("expected score 85, got %d", lead.Qualificacao.Score)
	}

	// Payment correlation against the stored lead.
	conv, found, out := service.ProcessPayment(ctx, app.PaymentEvent{
		EventType: "payment.approved", PaymentID: "pay_1", Status: "approved",
		Amount: 197, CustomerEmail: "maria@exemplo.com",
	})
	if !found {
		t.Fatalf("payment must correlate with the lead")
	}
	if out.Backend != sink.BackendRemote {
		t.Fatalf("conversion should land remotely, got %+v", out)
	}
	if conv.LeadID != lead.ID {
		t.Fatalf("conversion references wrong lead: %+v", conv)
	}

	// Metrics must come from the remote reader and agree with the writes.
	summary, err := service.Metrics(ctx)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if summary.Mode != "remote" {
		t.Fatalf("expected remote aggregation, got %q", summary.Mode)
	}
	if summary.TotalViews != 1 || summary.TotalLeads != 1 || summary.TotalConversoes != 1 {
		t.Fatalf("unexpected totals: %+v", summary)
	}
	if summary.ReceitaTotal != 197 {
		t.Fatalf("expected revenue 197, got %v", summary.ReceitaTotal)
	}
	vs, ok := summary.Variantes["testbx4"]
	if !ok || vs.Leads != 1 || vs.Views != 1 {
		t.Fatalf("variant tally wrong: %+v", summary.Variantes)
	}

	// Local stores hold the same lead; with postgres gone the aggregation
	// falls back to them.
	pool.Close()
	localLeads, err := leads.ReadAll(ctx)
	if err != nil || len(localLeads) != 1 {
		t.Fatalf("local lead list must mirror the remote store: %v %d", err, len(localLeads))
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "funnel", "POSTGRES_PASSWORD": "funnelpass", "POSTGRES_DB": "funneldb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://funnel:funnelpass@%s:%s/funneldb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func openBun(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
