// Command server runs the crowdgate sale engine: an HTTP service exposing a
// KYC-gated, capped token sale with owner-only administration.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"crowdgate/internal/funds"
	"crowdgate/internal/jwtauth"
	"crowdgate/internal/operator"
	"crowdgate/internal/platform/config"
	"crowdgate/internal/platform/httpserver"
	"crowdgate/internal/platform/logger"
	platformredis "crowdgate/internal/platform/redis"
	"crowdgate/internal/ratelimit"
	salehandler "crowdgate/internal/sale/handler"
	salemetrics "crowdgate/internal/sale/metrics"
	"crowdgate/internal/sale/models"
	"crowdgate/internal/sale/service"
	"crowdgate/internal/sale/store"
	"crowdgate/internal/token"
	httptransport "crowdgate/internal/transport/http"
	audit "crowdgate/pkg/platform/audit"
	auditkafka "crowdgate/pkg/platform/audit/kafka"
	"crowdgate/pkg/platform/audit/publisher"
	auditmem "crowdgate/pkg/platform/audit/store/memory"
	auditpg "crowdgate/pkg/platform/audit/store/postgres"
	"crowdgate/pkg/platform/audit/worker"
)

func main() {
	log := logger.New()
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tok, err := token.NewLedger(cfg.Sale.TokenCap, cfg.Sale.SaleAddress)
	if err != nil {
		return err
	}

	var saleStore store.Store
	var health func(ctx context.Context) error
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		saleStore = pg
		health = pool.Ping
		log.Info("using postgres ledger store")
	} else {
		saleStore = store.NewInMemoryStore()
		log.Warn("no database configured, ledger state is in-memory only")
	}

	// Audit pipeline: events buffer in-process and a worker ships them to
	// the configured sinks.
	var sinks audit.MultiSink
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		sinks = append(sinks, auditpg.New(db))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := auditkafka.New(auditkafka.Config{
			Brokers:         cfg.Kafka.Brokers,
			ComplianceTopic: cfg.Kafka.ComplianceTopic,
			OperationsTopic: cfg.Kafka.OperationsTopic,
		})
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = kafkaSink.Close(shutdownCtx)
		}()
		sinks = append(sinks, kafkaSink)
	}
	if len(sinks) == 0 {
		sinks = append(sinks, auditmem.New())
	}

	buffered := worker.NewBuffered(1024)
	auditWorker := worker.New(sinks, buffered.Inbox(), log)

	saleCfg := models.Config{
		SaleAddress:    cfg.Sale.SaleAddress,
		Price:          cfg.Sale.Price,
		StartTime:      cfg.Sale.StartTime,
		EndTime:        cfg.Sale.EndTime,
		Wallet:         cfg.Sale.Wallet,
		TeamWallet:     cfg.Sale.TeamWallet,
		CompanyWallet:  cfg.Sale.CompanyWallet,
		AdvisorsWallet: cfg.Sale.AdvisorsWallet,
		TotalTokens:    cfg.Sale.TotalTokens,
		TeamShare:      cfg.Sale.TeamShare,
		Signers:        cfg.Sale.Signers,
	}

	saleService, err := service.New(
		saleCfg,
		saleStore,
		tok,
		funds.NewMemoryForwarder(),
		publisher.New(buffered),
		salemetrics.New(),
		log,
	)
	if err != nil {
		return err
	}

	jwtService := jwtauth.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	var creds []operator.Credential
	if cfg.OperatorUser != "" {
		creds = append(creds, operator.Credential{
			Username:     cfg.OperatorUser,
			PasswordHash: cfg.OperatorPasswordHash,
		})
	} else {
		log.Warn("no operator credentials configured, owner login is disabled")
	}
	operators, err := operator.New(creds, jwtService, cfg.TokenTTL, log)
	if err != nil {
		return err
	}

	var limitStore ratelimit.Store
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		limitStore = ratelimit.NewRedisStore(redisClient.Client, "")
		log.Info("using redis rate limit store")
	} else {
		limitStore = ratelimit.NewInMemoryStore()
	}
	limiter := ratelimit.NewMiddleware(limitStore, cfg.RateLimit, cfg.RateLimitWindow, log)

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Sale:           salehandler.New(saleService, operators, log, nil),
		TokenValidator: jwtService,
		RateLimiter:    limiter,
		RequestTimeout: cfg.RequestTimeout,
		Health:         health,
	})

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return auditWorker.Run(groupCtx)
	})

	group.Go(func() error {
		log.Info("starting crowdgate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
