package main

import (
	"context"
	"log"

	"govariant/internal/config"
	"govariant/internal/container"
	"govariant/internal/migration"

	"github.com/joho/godotenv"
)

// migrate applies the run registry schema to DATABASE_URL and exits.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !appConfig.RegistryEnabled() {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	runner := migration.NewRunner()
	log.Printf("Migrating %s registry to schema %s", appConfig.Database.Driver, runner.Version())

	db, err := container.OpenDatabase(ctx, appConfig)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	defer db.Close()

	applied, err := runner.Applied(ctx, db)
	if err != nil {
		log.Fatalf("Failed to verify migration: %v", err)
	}
	if !applied {
		log.Fatal("Migration did not record its version")
	}
	log.Println("✅ Migration complete")
}
