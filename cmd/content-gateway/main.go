// Command content-gateway serves cached content from a prioritized chain
// of backing providers.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/PetroPricesnearMe/content-gateway/auth"
	"github.com/PetroPricesnearMe/content-gateway/cache"
	"github.com/PetroPricesnearMe/content-gateway/config"
	"github.com/PetroPricesnearMe/content-gateway/gateway"
	"github.com/PetroPricesnearMe/content-gateway/health"
	"github.com/PetroPricesnearMe/content-gateway/httpapi"
	"github.com/PetroPricesnearMe/content-gateway/observe"
	"github.com/PetroPricesnearMe/content-gateway/provider"
	"github.com/PetroPricesnearMe/content-gateway/provider/baserow"
	"github.com/PetroPricesnearMe/content-gateway/provider/dynamo"
	"github.com/PetroPricesnearMe/content-gateway/provider/postgres"
	"github.com/PetroPricesnearMe/content-gateway/provider/sheets"
	"github.com/PetroPricesnearMe/content-gateway/resilience"
	"github.com/PetroPricesnearMe/content-gateway/secret"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "content-gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := secret.NewResolver(true)
	cfg, err := config.Load(ctx, resolver)
	if err != nil {
		return err
	}

	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: cfg.Observe.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   cfg.Observe.TracingEnabled,
			Exporter:  cfg.Observe.TracingExporter,
			SamplePct: cfg.Observe.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  cfg.Observe.MetricsEnabled,
			Exporter: cfg.Observe.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   cfg.Observe.LogLevel,
		},
	})
	if err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()
	logger := obs.Logger()

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return fmt.Errorf("middleware: %w", err)
	}

	entries, checkers, cleanup, err := buildProviders(ctx, cfg, mw.Metrics())
	if err != nil {
		return err
	}
	defer cleanup()

	chain, err := gateway.NewChain(entries...)
	if err != nil {
		return err
	}
	chain = chain.WithMiddleware(mw)

	var store *cache.Store
	policy := cache.NoCachePolicy()
	if !cfg.Cache.Disabled {
		store = cache.NewStore(cache.StoreConfig{MaxEntries: cfg.Cache.MaxEntries})
		policy = cache.Policy{
			Default: cache.TTL{Fresh: cfg.Cache.FreshTTL, Stale: cfg.Cache.StaleTTL},
		}
	}

	var refreshGuard *resilience.Bulkhead
	if cfg.Cache.RefreshMaxConcurrent > 0 {
		refreshGuard = resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.Cache.RefreshMaxConcurrent,
		})
	}

	gw, err := gateway.New(gateway.Config{
		Chain:           chain,
		Store:           store,
		Policy:          policy,
		RefreshBulkhead: refreshGuard,
		Logger:          logger,
		Metrics:         mw.Metrics(),
	})
	if err != nil {
		return err
	}

	if cfg.Revalidate.Interval > 0 {
		intervals := make(map[string]time.Duration, len(cfg.Revalidate.Collections))
		for _, c := range cfg.Revalidate.Collections {
			intervals[c] = cfg.Revalidate.Interval
		}
		reval := gateway.NewRevalidator(gw, gateway.RevalidatorConfig{
			Intervals: intervals,
			Eager:     cfg.Revalidate.Eager,
			Logger:    logger,
		})
		reval.Start()
		defer reval.Stop()
	}

	var authn auth.Authenticator
	if cfg.Revalidate.Enabled {
		bearer := auth.NewBearerAuthenticator(auth.BearerConfig{Token: cfg.Revalidate.Token})
		if cfg.Revalidate.JWTSecret != "" {
			jwtAuthn := auth.NewJWTAuthenticator(auth.JWTConfig{
				Issuer:   cfg.Revalidate.JWTIssuer,
				Audience: cfg.Revalidate.JWTAudience,
			}, auth.NewStaticKeyProvider([]byte(cfg.Revalidate.JWTSecret)))
			authn = auth.NewCompositeAuthenticator(jwtAuthn, bearer)
		} else {
			authn = bearer
		}
	}

	api, err := httpapi.New(httpapi.Config{
		Gateway:       gw,
		Authenticator: authn,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	agg := health.NewAggregator()
	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))
	for name, checker := range checkers {
		agg.Register(name, checker)
	}

	mux := api.Routes()
	health.RegisterHandlers(mux, agg)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", observe.Field{Key: "addr", Value: cfg.Server.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildProviders constructs adapters, wrappers and health checkers in
// the configured priority order. The returned cleanup closes any
// database handles.
func buildProviders(ctx context.Context, cfg *config.Config, metrics observe.Metrics) ([]gateway.Entry, map[string]health.Checker, func(), error) {
	var (
		entries  []gateway.Entry
		closers  []func()
		checkers = make(map[string]health.Checker)
	)
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, name := range cfg.Providers.Priority {
		var (
			adapter provider.Adapter
			err     error
		)
		switch name {
		case "baserow":
			adapter, err = baserow.New(baserow.Config{
				BaseURL: cfg.Providers.Baserow.BaseURL,
				Token:   cfg.Providers.Baserow.Token,
				Tables:  cfg.Providers.Baserow.Tables,
			})
		case "sheets":
			adapter, err = sheets.New(sheets.Config{
				BaseURL:       cfg.Providers.Sheets.BaseURL,
				SpreadsheetID: cfg.Providers.Sheets.SpreadsheetID,
				APIKey:        cfg.Providers.Sheets.APIKey,
				Tabs:          cfg.Providers.Sheets.Tabs,
			})
		case "dynamo":
			loaded, loadErr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Providers.Dynamo.Region))
			if loadErr != nil {
				cleanup()
				return nil, nil, nil, fmt.Errorf("aws config: %w", loadErr)
			}
			adapter, err = dynamo.New(dynamodb.NewFromConfig(loaded), dynamo.Config{
				Table: cfg.Providers.Dynamo.Table,
			})
		case "postgres":
			db, openErr := sql.Open("postgres", cfg.Providers.Postgres.DSN)
			if openErr != nil {
				cleanup()
				return nil, nil, nil, fmt.Errorf("postgres open: %w", openErr)
			}
			closers = append(closers, func() { _ = db.Close() })
			adapter, err = postgres.New(ctx, db, postgres.Config{
				CreateTable: cfg.Providers.Postgres.CreateTable,
			})
		}
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("provider %s: %w", name, err)
		}

		providerName := name
		var limiter *resilience.RateLimiter
		if cfg.Resilience.RateLimit > 0 {
			limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
				Rate:  cfg.Resilience.RateLimit,
				Burst: cfg.Resilience.RateLimitBurst,
			})
		}
		wrapper := resilience.NewWrapper(resilience.WrapperConfig{
			Timeout: cfg.Resilience.Timeout,
			Retry: resilience.RetryConfig{
				MaxAttempts: cfg.Resilience.MaxAttempts,
				BaseDelay:   cfg.Resilience.BaseDelay,
				MaxDelay:    cfg.Resilience.MaxDelay,
			},
			Circuit: resilience.CircuitBreakerConfig{
				FailureThreshold: cfg.Resilience.FailureThreshold,
				Cooldown:         cfg.Resilience.Cooldown,
				OnStateChange: func(from, to resilience.State) {
					metrics.RecordCircuitTransition(context.Background(), providerName, from.String(), to.String())
				},
			},
			RateLimiter: limiter,
		})

		entries = append(entries, gateway.Entry{Adapter: adapter, Wrapper: wrapper})
		checkers["provider:"+name] = health.NewProviderChecker(adapter, wrapper, health.ProviderCheckerConfig{
			Collection: cfg.Server.HealthCollection,
		})
	}

	return entries, checkers, cleanup, nil
}
