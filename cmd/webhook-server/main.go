package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orderimages/internal/app"
	"orderimages/internal/config"
	"orderimages/internal/handlers"
	"orderimages/internal/logging"
	"orderimages/internal/metrics"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	log := logging.FromEnv().WithFields(logging.F("service", "webhook-server"))
	metrics.Register(prometheus.DefaultRegisterer)

	loader := config.NewLoader()
	proc, configured := app.NewProcessor(context.Background(), loader, log)

	r := mux.NewRouter()
	r.Handle("/webhooks/orders/create", metrics.Instrument("orders-create", handlers.NewOrderWebhook(proc))).Methods(http.MethodPost)
	r.Handle("/health", metrics.Instrument("health", handlers.Health{Configured: configured})).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("starting HTTP server", logging.F("port", port), logging.F("configured", configured))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", err)
			os.Exit(1)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", err)
		os.Exit(1)
	}
	log.Info("server shutdown complete")
}
