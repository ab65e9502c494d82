package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/mapper"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/poller"
	"github.com/Ramsey-B/fern/pkg/records"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/table"
)

// App holds the wired service
type App struct {
	echo    *echo.Echo
	server  *http.Server
	health  *health.Checker
	startup *startup.Startup
}

func newApp(cfg config.Config, logger ectologger.Logger) (*App, error) {
	transport, err := httpclient.NewClient(httpclient.Config{
		BaseURL:         cfg.InstanceURL,
		Username:        cfg.Username,
		Password:        cfg.Password,
		Token:           cfg.Token,
		Timeout:         cfg.ClientTimeout,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}, logger)
	if err != nil {
		return nil, err
	}

	tables := table.NewClient(transport, cfg.PageSize, logger)
	service := records.NewService(tables, mapper.DefaultTables(), logger)

	checker := health.NewChecker(cfg.Version)
	pingBackend := health.PingFunc(func(ctx context.Context) error {
		return tables.Ping(ctx, cfg.HealthCheckTable)
	})
	checker.AddCheck("backend", pingBackend)

	deps := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	deps.AddDependency(startup.Func{Name: "backend", StartFunc: pingBackend})

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		deps.AddDependency(startup.Func{
			Name: "redis",
			StartFunc: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, redis.Config{
					Host:     cfg.RedisHost,
					Port:     cfg.RedisPort,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				}, logger)
				if err != nil {
					return err
				}
				redisClient = client
				checker.AddOptionalCheck("redis", client)
				return nil
			},
			StopFunc: func(context.Context) error {
				return redisClient.Close()
			},
		})
	}

	if cfg.PollerEnabled {
		if err := addPoller(cfg, deps, service, func() *redis.Client { return redisClient }, logger); err != nil {
			return nil, err
		}
	}

	e := newEcho(cfg, logger, service, checker)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	return &App{
		echo:    e,
		server:  server,
		health:  checker,
		startup: deps,
	}, nil
}

// addPoller registers the kafka producer and the poller. redisClient is read at start
// time since the redis dependency connects first.
func addPoller(cfg config.Config, deps *startup.Startup, service *records.Service, redisClient func() *redis.Client, logger ectologger.Logger) error {
	tables, err := poller.LoadTables(cfg.PollerTables, cfg.PollerQueryDir)
	if err != nil {
		return err
	}

	var producer *kafka.Producer
	deps.AddDependency(startup.Func{
		Name: "kafka",
		StartFunc: func(context.Context) error {
			producer = kafka.NewProducer(kafka.ParseConfig(cfg.KafkaBrokers, cfg.KafkaTopic), logger)
			return nil
		},
		StopFunc: func(context.Context) error {
			return producer.Close()
		},
	})

	requires := []string{"backend", "kafka"}
	if cfg.RedisEnabled {
		requires = append(requires, "redis")
	}

	var p *poller.Poller
	deps.AddDependency(startup.Func{
		Name:     "poller",
		Requires: requires,
		StartFunc: func(ctx context.Context) error {
			var watermarks poller.WatermarkStore
			var locker poller.Locker
			if client := redisClient(); client != nil {
				watermarks = redis.NewWatermarks(client, "")
				locker = poller.NewRedisLocker(redis.NewLocker(client, ""))
			}

			p = poller.NewPoller(service, producer, watermarks, locker, poller.Config{
				Interval:   cfg.PollerInterval,
				BatchLimit: cfg.PollerBatchLimit,
				Tables:     tables,
			}, logger)
			return p.Start(ctx)
		},
		StopFunc: func(ctx context.Context) error {
			return p.Stop(ctx)
		},
	})
	return nil
}

func newEcho(cfg config.Config, logger ectologger.Logger, service *records.Service, checker *health.Checker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.AllowOrigins}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	handlers.NewQueryHandler(service, logger).Register(v1.Group("/query"))
	handlers.NewRecordHandler(service, logger).Register(v1.Group("/tables"))
	handlers.NewCMDBHandler(service, logger).Register(v1.Group("/cmdb"))

	return e
}
