package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/FabioSeixas/exchange/internal/config"
	"github.com/FabioSeixas/exchange/internal/engine"
	exchangelog "github.com/FabioSeixas/exchange/internal/log"
	"github.com/FabioSeixas/exchange/internal/metrics"
	exchangenet "github.com/FabioSeixas/exchange/internal/net"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	cfg := config.Load()
	logger := exchangelog.NewLogger(cfg)
	reg := metrics.Init(logger)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
			log.Error().Err(err).Msg("metrics listener stopped")
		}
	}()

	// Setup the TCP server and the matching engine.
	eng := engine.New()
	srv := exchangenet.New(cfg.Server.Addr, cfg.Server.Port, eng, cfg.Server.Workers)
	eng.SetReporter(srv)

	go srv.Run(ctx)
	// Block on running the server.
	<-ctx.Done()
}
