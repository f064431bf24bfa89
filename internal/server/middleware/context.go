package middleware

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"cloutgraph/internal/runlog"
	"cloutgraph/pkg/enrich"
	"cloutgraph/pkg/graph"
	"cloutgraph/pkg/store"
)

// App bundles the shared clients every handler needs.
type App struct {
	DBConn  *pgxpool.Pool
	Queue   *amqp091.Channel
	Store   store.GraphStore
	Fetcher enrich.ProfileFetcher
	Graph   *graph.Client
	Ledger  *runlog.Store
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
