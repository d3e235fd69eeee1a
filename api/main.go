package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"white-traffic-console/api/internal/handlers"
	"white-traffic-console/api/internal/storage"
	"white-traffic-console/internal/utils"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	var (
		configFile = flag.String("config", utils.DefaultConfigPath, "Configuration file path (YAML)")
		port       = flag.String("port", "", "API server port (overrides sandbox.port)")
		seedFile   = flag.String("seed", "", "Seed file (YAML or JSON, overrides sandbox.seed_file)")
	)
	flag.Parse()

	config, err := utils.LoadConsoleConfigOrDefault(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		config.Sandbox.Port = *port
	}
	if *seedFile != "" {
		config.Sandbox.SeedFile = *seedFile
	}

	logger := utils.NewLogger(config.Logging.Level, config.Logging.Format)

	// Create in-memory storage
	store := storage.NewStorage(logger)

	seed := storage.DefaultSeed()
	if config.Sandbox.SeedFile != "" {
		seed, err = storage.LoadSeed(config.Sandbox.SeedFile)
		if err != nil {
			logger.Fatalf("Failed to load seed: %v", err)
		}
	}
	if err := store.Apply(seed); err != nil {
		logger.Fatalf("Failed to apply seed: %v", err)
	}

	token := config.Sandbox.Token
	if token == "" {
		token = uuid.NewString()
		logger.Infof("No sandbox token configured, generated %s", token)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	h := handlers.NewHandlers(store, handlers.Credentials{
		Token:    token,
		Username: config.Sandbox.Username,
		Password: config.Sandbox.Password,
	}, logger)
	router := handlers.NewRouter(h, handlers.NewServerMetrics(reg), reg)

	addr := fmt.Sprintf(":%s", config.GetSandboxPort())
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
	}

	logger.Infof("Sandbox API server starting on port %s", config.GetSandboxPort())

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down API server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
