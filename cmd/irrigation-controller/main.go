// GROUNDED ON cmd/Crepes/main.go'S FLAG-PARSE → CONFIG-LOAD → WIRE → SERVE → GRACEFUL-SHUTDOWN SHAPE.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nickheyer/Crepes/internal/api"
	"github.com/nickheyer/Crepes/internal/config"
	"github.com/nickheyer/Crepes/internal/controller"
	"github.com/nickheyer/Crepes/internal/environment"
	"github.com/nickheyer/Crepes/internal/valve"
)

const VERSION = "v0.1.0"

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	port := flag.String("port", "", "HTTP port to listen on (overrides config)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Printf("WARNING: Failed to load config file: %v, using default settings", err)
		cfg = config.GetDefaultConfig()
	}

	if *port != "" {
		cfg.Port = *port
	}

	createDirs(cfg)

	ctrl, err := controller.New(cfg, valve.NewSimulatedBackend(), environment.NewSimulatedBackend())
	if err != nil {
		log.Fatalf("Failed to assemble controller: %v", err)
	}

	if err := ctrl.Start(); err != nil {
		log.Fatalf("Failed to start controller: %v", err)
	}
	defer ctrl.Stop()

	router := api.SetupRouter(ctrl)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Handler:      router,
		Addr:         addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("irrigation-controller %s starting on http://localhost%s", VERSION, addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited properly")
}

func createDirs(cfg *config.Config) {
	dirs := []string{cfg.DataPath, cfg.LogPath}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				log.Printf("WARNING: Failed to create directory: %s, %v", dir, err)
			}
		}
		absPath, err := filepath.Abs(dir)
		if err != nil {
			log.Printf("WARNING: Failed to get absolute path for %s: %v", dir, err)
		} else {
			log.Printf("Using directory: %s", absPath)
		}
	}
}
