package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"govariant/adapters/api"
	"govariant/internal"
	"govariant/internal/config"
	"govariant/internal/container"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	// The registry is optional; without it the server still predicts.
	db, err := container.OpenDatabase(ctx, appConfig)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if db != nil {
		if err := appContainer.InitWithDatabase(db); err != nil {
			log.Fatalf("Failed to initialize container: %v", err)
		}
	} else {
		logger.Warn("DATABASE_URL not set; run endpoints are disabled")
	}

	if err := appContainer.LoadInitialModel(ctx); err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}

	server := api.NewServer(api.Config{
		Port:            appConfig.Server.Port,
		ShutdownTimeout: appConfig.Server.ShutdownTimeout,
	}, appContainer.Predictor, appContainer.Store, appContainer.Registry, logger)

	log.Printf("🚀 Serving predictions on :%s", appConfig.Server.Port)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("👋 Server stopped")
}
