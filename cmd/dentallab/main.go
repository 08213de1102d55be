// Package main запускает HTTP-сервер сервиса зуботехнической лаборатории.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/dental-lab/internal/config"
	"github.com/mmeshcher/dental-lab/internal/handler"
	"github.com/mmeshcher/dental-lab/internal/middleware"
	"github.com/mmeshcher/dental-lab/internal/model"
	"github.com/mmeshcher/dental-lab/internal/postgrest"
	"github.com/mmeshcher/dental-lab/internal/realtime"
	"github.com/mmeshcher/dental-lab/internal/repository"
	"github.com/mmeshcher/dental-lab/internal/service"
	"github.com/mmeshcher/dental-lab/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		gateway  store.Gateway
		exports  service.Repository
		pgFeed   *repository.PostgresRepository
		redisHub *realtime.RedisFeed
	)

	switch {
	case cfg.DatabaseURI != "":
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI, logger)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		gateway, exports, pgFeed = repo, repo, repo
	case cfg.PostgRESTURL != "":
		client := postgrest.NewClient(cfg.PostgRESTURL, cfg.PostgRESTKey, logger)
		gateway, exports = client, client
	default:
		sugar.Warn("no remote storage configured, data is kept in memory only")
	}

	if cfg.RedisAddr != "" {
		redisHub, err = realtime.NewRedisFeed(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer redisHub.Close()
	}

	st, err := store.New(gateway, logger, store.WithNodeID(cfg.NodeID))
	if err != nil {
		sugar.Fatalw("store initialization error", "error", err.Error())
	}
	if err := st.Load(ctx); err != nil {
		sugar.Warnw("initial load failed", "error", err.Error())
	}

	var exporter handler.Exporter
	if exports != nil {
		svc := service.NewService(exports, readLogo(sugar, cfg.LogoPath), logger)
		defer svc.Close()
		exporter = svc
	}

	if cfg.Passphrase == "" {
		sugar.Warn("APP_PASSPHRASE is empty, login is disabled")
	}
	gate := middleware.NewSessionGate(cfg.Passphrase, cfg.SessionSecret, cfg.SessionTTL)
	h := handler.NewHandler(st, exporter, logger, gate)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	g, ctx := errgroup.WithContext(ctx)

	// Согласование локального хранилища с уведомлениями об изменениях
	if cfg.EnableRealtime {
		if feed := changeFeed(pgFeed, redisHub); feed != nil {
			g.Go(func() error {
				sugar.Infow("realtime sync started", "bridge", cfg.RedisBridge)
				return syncStore(ctx, st, feed, bridgeTarget(cfg.RedisBridge, feed, redisHub), logger)
			})
		}
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting dental lab server", "addr", cfg.RunAddress, "remote", st.Remote())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// changeFeed выбирает источник уведомлений: LISTEN базы данных, если она
// подключена напрямую, иначе Redis.
func changeFeed(pg *repository.PostgresRepository, rdb *realtime.RedisFeed) store.Feed {
	switch {
	case pg != nil:
		return pg
	case rdb != nil:
		return rdb
	default:
		return nil
	}
}

// publisher рассылает уведомления другим экземплярам сервиса.
type publisher interface {
	Publish(ctx context.Context, ch model.Change) error
}

// bridgeTarget возвращает Redis для пересылки уведомлений базы данных либо nil,
// если пересылка выключена или Redis сам служит источником.
func bridgeTarget(bridge bool, feed store.Feed, rdb *realtime.RedisFeed) publisher {
	if !bridge || rdb == nil || feed == store.Feed(rdb) {
		return nil
	}
	return rdb
}

// syncStore применяет уведомления к хранилищу. При pub != nil уведомления
// дополнительно публикуются для других экземпляров.
func syncStore(ctx context.Context, st *store.Store, feed store.Feed, pub publisher, logger *zap.Logger) error {
	if pub == nil {
		return st.Sync(ctx, feed)
	}

	return feed.Subscribe(ctx, model.Tables, func(ch model.Change) {
		if err := st.Apply(ch); err != nil {
			logger.Error("apply change error", zap.String("table", ch.Table), zap.Error(err))
		}
		if err := pub.Publish(ctx, ch); err != nil {
			logger.Warn("redis publish error", zap.String("table", ch.Table), zap.Error(err))
		}
	})
}

func readLogo(sugar *zap.SugaredLogger, path string) []byte {
	if path == "" {
		return nil
	}
	logo, err := os.ReadFile(path)
	if err != nil {
		sugar.Warnw("logo is not available", "path", path, "error", err.Error())
		return nil
	}
	return logo
}
