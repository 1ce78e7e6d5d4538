package main

import (
	"context"
	"flag"
	"log"

	schema "studyforge/database"
	"studyforge/internal/config"
	"studyforge/internal/database"
	"studyforge/internal/logger"

	"go.uber.org/zap"
)

func main() {
	path := flag.String("db", "", "sqlite database path (defaults to database.path from config)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Initialize(cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	l := logger.Get()
	defer l.Sync()

	dbPath := cfg.Database.Path
	if *path != "" {
		dbPath = *path
	}
	if dbPath == "" {
		l.Fatal("No database path configured; set database.path or DATABASE_PATH, or pass -db")
	}

	db, err := database.NewSQLiteDB(context.Background(), dbPath)
	if err != nil {
		l.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(db.DB, schema.Migrations, schema.MigrationsDir); err != nil {
		l.Fatal("Failed to run migrations", zap.Error(err))
	}
	l.Info("Migrations complete", zap.String("path", dbPath))
}
