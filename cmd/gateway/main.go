package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/404minds/telematics-gateway/internal/config"
	"github.com/404minds/telematics-gateway/internal/logging"
	"github.com/404minds/telematics-gateway/internal/registry"
	"github.com/404minds/telematics-gateway/internal/sink"
	"github.com/404minds/telematics-gateway/internal/statusapi"
	"github.com/404minds/telematics-gateway/internal/supervisor"
	"go.uber.org/zap"
)

// shutdownGrace bounds how long the process waits for in-flight
// connections and queued sink deliveries to drain after a signal.
const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	reg := registry.New()
	dispatcher := sink.New(cfg.FleetAPIURL, cfg.SharedSecret, logger)
	dispatcher.Start()

	sup, err := supervisor.New(":"+cfg.TCPPort, reg, dispatcher, logger)
	if err != nil {
		logger.Error("bind failed", zap.Error(err))
		os.Exit(1)
	}

	status := statusapi.New(reg, logger, time.Now())
	statusSrv := &http.Server{Addr: ":" + cfg.StatusPort, Handler: status.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("status server listening", zap.String("addr", statusSrv.Addr))
		if err := statusSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("status server failed", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("tcp gateway listening", zap.String("addr", sup.Addr().String()))
		if err := sup.Serve(); err != nil {
			logger.Error("tcp gateway failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	sup.Shutdown(shutdownGrace)
	_ = statusSrv.Shutdown(shutdownCtx)
	dispatcher.Stop(shutdownGrace)

	logger.Info("shutdown complete")
}
