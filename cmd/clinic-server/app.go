package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/billing"
	"github.com/clinic/clinic/internal/domain/indication"
	"github.com/clinic/clinic/internal/domain/registry"
	"github.com/clinic/clinic/internal/domain/result"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/domain/ticket"
	"github.com/clinic/clinic/internal/domain/visit"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/internal/platform/middleware"
)

// Database is satisfied by *pgxpool.Pool and by pgxmock pools.
type Database interface {
	db.Querier
	db.Beginner
	db.Pinger
}

type deps struct {
	DB       Database
	Redis    *redis.Client
	Blobs    blobstore.Store
	Registry *prometheus.Registry
	Logger   zerolog.Logger
}

type routeRegistrar interface {
	RegisterRoutes(api *echo.Group)
}

// app holds the wired workflow services, from the registry down to billing.
type app struct {
	registry    *registry.Service
	scheduling  *scheduling.Service
	visits      *visit.Service
	tickets     *ticket.Service
	indications *indication.Service
	results     *result.Service
	bills       *billing.Service
	metrics     *metrics.Metrics
	handlers    []routeRegistrar
}

func newApp(cfg *config.Config, d deps) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	tx := db.NewTransactor(d.DB)
	m := metrics.New(d.Registry)

	catalog, err := registry.NewCachedCatalog(registry.NewServiceRepo(d.DB), cfg.CatalogCacheSize)
	if err != nil {
		return nil, fmt.Errorf("catalog cache: %w", err)
	}
	regSvc := registry.NewService(
		registry.NewPatientRepo(d.DB),
		registry.NewDoctorRepo(d.DB),
		catalog,
		registry.NewPrescriptionRepo(d.DB),
	)

	schedSvc := scheduling.NewService(scheduling.NewRepo(d.DB), tx, regSvc, regSvc)
	schedSvc.SetMetrics(m)
	schedSvc.SetLogger(d.Logger.With().Str("component", "scheduling").Logger())
	schedSvc.SetLocation(loc)

	visitSvc := visit.NewService(visit.NewRepo(d.DB), tx, regSvc, regSvc, schedSvc)
	visitSvc.SetMetrics(m)
	visitSvc.SetLogger(d.Logger.With().Str("component", "visit").Logger())
	visitSvc.SetLocation(loc)

	var barcodes ticket.BarcodeAllocator
	if d.Redis != nil {
		barcodes = ticket.NewRedisBarcodes(d.Redis)
	}
	ticketSvc := ticket.NewService(ticket.NewRepo(d.DB), visitSvc, regSvc, regSvc, barcodes)
	ticketSvc.SetMetrics(m)
	ticketSvc.SetLogger(d.Logger.With().Str("component", "ticket").Logger())
	ticketSvc.SetLocation(loc)

	indSvc := indication.NewService(indication.NewRepo(d.DB), tx, ticketSvc, regSvc, regSvc, regSvc)
	indSvc.SetMetrics(m)
	indSvc.SetLogger(d.Logger.With().Str("component", "indication").Logger())

	resultSvc := result.NewService(result.NewRepo(d.DB), tx, indSvc, regSvc, regSvc, d.Blobs)
	resultSvc.SetMetrics(m)
	resultSvc.SetLogger(d.Logger.With().Str("component", "result").Logger())

	billSvc := billing.NewService(billing.NewRepo(d.DB), regSvc, ticketSvc, indSvc, regSvc)
	billSvc.SetMetrics(m)
	billSvc.SetLogger(d.Logger.With().Str("component", "billing").Logger())

	return &app{
		registry:    regSvc,
		scheduling:  schedSvc,
		visits:      visitSvc,
		tickets:     ticketSvc,
		indications: indSvc,
		results:     resultSvc,
		bills:       billSvc,
		metrics:     m,
		handlers: []routeRegistrar{
			registry.NewHandler(regSvc),
			scheduling.NewHandler(schedSvc, regSvc),
			visit.NewHandler(visitSvc),
			ticket.NewHandler(ticketSvc),
			indication.NewHandler(indSvc),
			result.NewHandler(resultSvc),
			billing.NewHandler(billSvc),
		},
	}, nil
}

func newServer(cfg *config.Config, a *app, d deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(d.Logger)

	// Global middleware
	e.Use(middleware.Recovery(d.Logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Logger(d.Logger))
	e.Use(a.metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Role"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	e.Use(middleware.RateLimit(rateLimitCfg))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(d.DB))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.Registry)))

	api := e.Group("")
	for _, h := range a.handlers {
		h.RegisterRoutes(api)
	}
	return e
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "clinic-server").Logger()
}

// openRedis returns nil when no REDIS_URL is configured; ticket barcodes
// then fall back to random suffixes.
func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.BlobBackend == "s3" {
		return blobstore.NewS3StoreFromEnv(ctx, cfg.AWSRegion, cfg.S3Bucket)
	}
	return blobstore.NewMemoryStore(), nil
}
