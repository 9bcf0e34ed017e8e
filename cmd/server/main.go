package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	rediscache "github.com/ogurasousui/user-api/internal/adapters/cache/redis"
	"github.com/ogurasousui/user-api/internal/adapters/http/handler"
	"github.com/ogurasousui/user-api/internal/adapters/repository/postgres"
	"github.com/ogurasousui/user-api/internal/adapters/repository/sqlstore"
	"github.com/ogurasousui/user-api/internal/core/user"
	"github.com/ogurasousui/user-api/internal/platform/config"
	pg "github.com/ogurasousui/user-api/internal/platform/db/postgres"
	"github.com/ogurasousui/user-api/internal/platform/logger"
	"github.com/ogurasousui/user-api/internal/platform/metrics"
	"github.com/ogurasousui/user-api/internal/platform/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

const serviceName = "user-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: serviceName,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

// store はストア実装ごとの依存関係をまとめます。
type store struct {
	repo  user.Repository
	tx    user.TransactionManager
	check handler.Check
	close func()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (*store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		conn, err := sqlstore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &store{
			repo:  sqlstore.NewUserStore(conn),
			tx:    sqlstore.NewTransactionManager(conn),
			check: sqlstore.ReadinessCheck(conn),
			close: func() { _ = sqlstore.Close(conn) },
		}, nil
	default:
		pool, err := pg.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("initialize database pool: %w", err)
		}
		return &store{
			repo:  postgres.NewUserRepository(pool),
			tx:    pg.NewTransactionManager(pool),
			check: pg.ReadinessCheck(pool),
			close: pool.Close,
		}, nil
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	checks := map[string]handler.Check{"database": st.check}
	opts := []user.Option{user.WithRecorder(metrics.NewUserMetrics(reg))}

	if cfg.Redis.Enabled() {
		client, err := rediscache.Connect(ctx, rediscache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()

		opts = append(opts, user.WithCache(rediscache.NewUserCache(client, cfg.Cache.TTL)))
		checks["cache"] = rediscache.ReadinessCheck(client)
		log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Cache.TTL).Msg("redis cache enabled")
	}

	svc := user.NewService(st.repo, nil, st.tx, opts...)

	router := handler.NewRouter(handler.RouterDeps{
		Users:      svc,
		Health:     handler.NewHealthHandler(checks, 0),
		Metrics:    metrics.NewHTTPMetrics(reg),
		Exposition: metrics.Handler(reg),
		Logger:     log,
	})

	srv := server.New(router, server.Options{
		HTTPAddr:        cfg.HTTP.ListenAddr,
		GRPCHealthAddr:  cfg.GRPCHealth.ListenAddr,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Logger:          log,
	})

	log.Info().Str("driver", cfg.Database.Driver).Msg("starting user api")
	return srv.Run(ctx)
}
