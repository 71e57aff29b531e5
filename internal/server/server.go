package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/scribelab/scribe/config"
	"github.com/scribelab/scribe/internal/agents"
	"github.com/scribelab/scribe/internal/capability"
	"github.com/scribelab/scribe/internal/store"
	"github.com/scribelab/scribe/internal/workflow"
)

// Run wires the whole service together and serves HTTP until the process
// exits.
func Run(cfg *config.Config) error {
	e := newEcho()

	ctx := context.Background()
	dsn := cfg.Storage.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		log.Printf("[SERVER] migrations: %v (continuing)", err)
	}

	st, err := store.New(ctx, dsn)
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Host + ":" + cfg.Storage.Redis.Port,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}

	llm := capability.NewOpenAIClient(cfg.LLM)
	search := capability.NewSerperClient(cfg.Search)
	cancels := workflow.NewRedisCancelRegistry(rdb, 2*cfg.Pipeline.RunTimeout)

	engine := workflow.New(st, cancels,
		agents.NewPlanner(llm),
		agents.NewResearcher(llm, search),
		agents.NewCritic(llm),
		agents.NewWriter(llm),
		agents.NewReviewer(llm),
		workflow.Options{
			PhaseRetries:    cfg.Pipeline.PhaseRetries,
			PhaseRetryDelay: cfg.Pipeline.PhaseRetryDelay,
			Research: agents.ResearchOptions{
				Parallel:      cfg.Pipeline.ParallelResearch,
				MaxSources:    cfg.Pipeline.MaxSourcesPerQuestion,
				QuestionDelay: cfg.Pipeline.QuestionDelay,
			},
		})

	secret := []byte(cfg.Server.JWTSecret)
	api := e.Group("/api")

	auth := &AuthHandler{
		Store:          st,
		Secret:         secret,
		TokenTTL:       cfg.Server.TokenTTL,
		InitialCredits: cfg.Quota.InitialCredits,
	}
	auth.Register(api.Group("/auth"))

	reports := &ReportsHandler{
		Store:      st,
		Engine:     engine,
		Cancels:    cancels,
		RunTimeout: cfg.Pipeline.RunTimeout,
		Logger:     log.New(log.Writer(), "[REPORTS] ", log.LstdFlags),
	}
	reports.Register(api.Group("/reports"), secret)

	sched := &Scheduler{
		Store:       st,
		Rdb:         rdb,
		Cron:        cfg.Quota.ResetCron,
		ReplenishTo: cfg.Quota.ReplenishTo,
		Stop:        make(chan struct{}),
	}
	sched.Start()
	defer close(sched.Stop)

	return e.Start(cfg.Server.Address)
}

// newEcho builds the echo instance with recovery, CORS, the JSON error
// handler and the unauthenticated operational endpoints.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}
