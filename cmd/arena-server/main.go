package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"algo-arena/internal/app"
	"algo-arena/internal/catalog"
	"algo-arena/internal/config"
	"algo-arena/internal/ephemeral"
	"algo-arena/internal/logging"
	"algo-arena/internal/notify"
	"algo-arena/internal/store"
	httptransport "algo-arena/internal/transport/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	hubReplaySize   = 2000
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	closer := logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("arena server stopped")
		_ = closer.Close()
		os.Exit(1)
	}
	log.Info().Msg("arena server stopped")
	_ = closer.Close()
}

func run(ctx context.Context, cfg config.AppConfig) error {
	st, err := store.New(cfg.Server.PostgresDSN)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		return err
	}
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	if err := catalog.SeedDefaults(ctx, st); err != nil {
		return err
	}
	cat, err := catalog.Load(ctx, st)
	if err != nil {
		return err
	}
	algorithms, items, spells := cat.Size()
	log.Info().Int("algorithms", algorithms).Int("items", items).Int("spells", spells).Msg("catalog loaded")

	es, err := ephemeral.Open(ctx, cfg.Server.RedisURL)
	if err != nil {
		return err
	}
	defer es.Close()

	hub := notify.NewHub(hubReplaySize)
	defer hub.Close()
	notifier := notify.Multi{hub}
	if cfg.Server.NATSURL != "" {
		pub, err := notify.ConnectNATS(cfg.Server.NATSURL)
		if err != nil {
			return err
		}
		defer pub.Close()
		notifier = append(notifier, pub)
		log.Info().Str("url", cfg.Server.NATSURL).Msg("nats publisher connected")
	}

	arena := app.New(cfg.Engine, st, es, cat, notifier)
	if n, err := arena.RebuildRanking(ctx); err != nil {
		log.Warn().Err(err).Msg("ranking rebuild failed")
	} else {
		log.Info().Int("users", n).Msg("ranking rebuilt")
	}

	r := httptransport.NewRouter(httptransport.Deps{
		Durable:   st,
		Ephemeral: es,
		Ranking:   arena.Ranking,
		Hub:       hub,
		AdminKey:  cfg.Server.AdminAPIKey,
	})
	httptransport.LogRoutes(r)
	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return arena.Run(ctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hub.Close()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
