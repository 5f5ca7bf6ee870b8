package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"perimeter-state-sync/internal/api"
	"perimeter-state-sync/internal/cache"
	"perimeter-state-sync/internal/config"
	"perimeter-state-sync/internal/notifier"
	"perimeter-state-sync/internal/poller"
	"perimeter-state-sync/internal/prod"
	"perimeter-state-sync/internal/worker"

	"github.com/go-chi/chi/v5"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	slog.InfoContext(ctx, "Starting service...")

	cfg, err := config.Load(os.Getenv("PSS_CONFIG"))
	if err != nil {
		panic(err)
	}

	prodDB, err := prod.Init(ctx, prod.Config{ConnString: cfg.Production.ConnString})
	if err != nil {
		panic(err)
	}
	defer prodDB.Close()

	cacheStore, err := cache.Open(ctx, cache.Config{
		Path:           cfg.Cache.Path,
		MigrationsPath: cfg.Cache.MigrationsPath,
	})
	if err != nil {
		panic(err)
	}
	defer cacheStore.Close()

	pollerCfg := poller.Config{
		Prod:     prodDB,
		Cache:    cacheStore,
		Lookback: cfg.Poll.Lookback,
	}
	if cfg.Kafka.Enabled {
		n := notifier.New(notifier.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		defer n.Close(ctx)
		pollerCfg.Notifier = n
	}

	p := poller.New(pollerCfg)
	if err := p.Init(ctx); err != nil {
		panic(err)
	}

	w := worker.New(worker.Config{
		Name:      "reconcile-worker",
		Interval:  cfg.Poll.Interval,
		Processor: p,
	})

	wg := sync.WaitGroup{}
	wg.Go(func() {
		w.Run(ctx)
	})

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	api.New(api.Config{Cache: cacheStore}).Routes(r)

	srv := &http.Server{Addr: cfg.API.Addr, Handler: r}
	go func() {
		slog.InfoContext(ctx, "HTTP server listening...", "addr", cfg.API.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "HTTP server error", "error", err)
			cancel()
		}
	}()

	go func() {
		<-sigs
		cancel()
	}()

	wg.Wait()
	srv.Shutdown(context.Background())
}
