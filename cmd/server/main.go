package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/video-routing-backend/internal/config"
	"github.com/DoyleJ11/video-routing-backend/internal/gateway"
	"github.com/DoyleJ11/video-routing-backend/internal/httpapi"
	"github.com/DoyleJ11/video-routing-backend/internal/journal"
	"github.com/DoyleJ11/video-routing-backend/internal/logging"
	"github.com/DoyleJ11/video-routing-backend/internal/metrics"
	"github.com/DoyleJ11/video-routing-backend/internal/registry"
	"github.com/DoyleJ11/video-routing-backend/internal/router"
	"github.com/DoyleJ11/video-routing-backend/internal/ws"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatal(err)
	}

	os.Exit(exitCode(logger, run(cfg, logger)))
}

// exitCode logs err and flushes the logger before the process exits, since
// os.Exit skips deferred calls.
func exitCode(logger *zap.Logger, err error) int {
	code := 0
	if err != nil {
		logger.Error("server exited", zap.Error(err))
		code = 1
	}
	_ = logger.Sync()
	return code
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	// The journal outlives the gateway so the final disconnects still land.
	journalCtx, stopJournal := context.WithCancel(context.Background())
	defer stopJournal()

	g, gctx := errgroup.WithContext(ctx)

	var rec journal.Recorder = journal.Nop{}
	if cfg.DatabaseURL != "" {
		store, err := journal.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()

		w := journal.NewWriter(store, cfg.JournalBuffer, logger.Named("journal"),
			journal.WithDropHook(m.JournalDropped.Inc))
		g.Go(func() error { return w.Run(journalCtx) })
		rec = w
		logger.Info("journal enabled")
	}

	// The gateway is torn down explicitly below, not by signal.
	gw := gateway.New(context.Background(),
		router.New(registry.New(registry.WithAssignmentMemory(cfg.AssignmentMemory)), logger.Named("router")),
		logger.Named("gateway"),
		gateway.WithJournal(rec),
		gateway.WithMetrics(m),
	)

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Gateway: gw,
			WS: ws.Options{
				OriginPatterns: cfg.OriginPatterns,
				PingInterval:   cfg.PingInterval,
				WriteTimeout:   cfg.WriteTimeout,
				ReadLimit:      cfg.ReadLimit,
				OutboxSize:     cfg.OutboxSize,
			},
			Gatherer: promReg,
			Log:      logger.Named("http"),
		}),
	}

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Websockets are hijacked, so http.Server.Shutdown does not wait for
		// them; stopping the gateway closes every outbox and with it every socket.
		gw.Send(shutdownCtx, gateway.Shutdown{})
		select {
		case <-gw.Done():
		case <-shutdownCtx.Done():
		}
		err := srv.Shutdown(shutdownCtx)
		stopJournal()
		return err
	})

	return g.Wait()
}
