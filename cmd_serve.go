package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"WarrenBot/internal/handlers"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(os.Stdout, runServe)
	},
}

const shutdownTimeout = 10 * time.Second

func runServe(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)

	prices := handlers.NewPriceHandler(a.service, a.cfg.Market.DefaultSymbol, a.cfg.Market.DefaultInterval,
		a.cfg.Market.RefreshEvery, a.log)
	router := handlers.NewRouter(a.service, prices, a.metrics, handlers.RouterConfig{
		DefaultSymbol:   a.cfg.Market.DefaultSymbol,
		DefaultInterval: a.cfg.Market.DefaultInterval,
		AllowedOrigins:  a.cfg.Server.AllowedOrigins,
	}, a.log)

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("starting API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	recording := prices.Start(ctx)

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
	}

	a.log.Info("shutting down...")
	stop()
	if runErr != nil {
		if recording != nil {
			<-recording
		}
		return runErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if recording != nil {
		<-recording
	}

	a.log.Info("shutdown complete")
	return nil
}
