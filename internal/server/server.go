package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"cloutgraph/internal/queue"
	"cloutgraph/internal/runlog"
	mid "cloutgraph/internal/server/middleware"
	"cloutgraph/internal/util"
	"cloutgraph/pkg/graph"
	"cloutgraph/pkg/logger"
	"cloutgraph/pkg/store/neo4j"

	"cloutgraph/pkg/enrich/proxycurl"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	migrationsURL := util.GetEnvString("MIGRATIONS_URL", "file://migrations")
	if err := runlog.Migrate(migrationsURL, util.GetEnv("DATABASE_URL")); err != nil {
		logger.Fatal("Failed to migrate ledger schema", "err", err)
	}

	graphStore, err := neo4j.NewStore(ctx, neo4j.NewStoreParams{
		URI:      util.GetEnv("NEO4J_URI"),
		Username: util.GetEnv("NEO4J_USER"),
		Password: util.GetEnv("NEO4J_PASSWORD"),
		Database: util.GetEnvString("NEO4J_DATABASE", "neo4j"),
	})
	if err != nil {
		logger.Fatal("Failed to connect to graph store", "err", err)
	}
	defer graphStore.Close(ctx)

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	fetcher := proxycurl.NewClient(proxycurl.NewClientParams{
		BaseURL:           util.GetEnv("ENRICH_BASE_URL"),
		APIKey:            util.GetEnv("ENRICH_API_KEY"),
		RequestsPerSecond: util.GetEnvNumeric("ENRICH_RPS", 2),
	})

	graphClient := graph.NewClient(graph.NewClientParams{
		ParallelConnections: int(util.GetEnvNumeric("INGEST_PARALLEL", 8)),
	})

	app := &mid.App{
		DBConn:  conn,
		Queue:   ch,
		Store:   graphStore,
		Fetcher: fetcher,
		Graph:   graphClient,
		Ledger:  runlog.NewStore(conn),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("16M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
