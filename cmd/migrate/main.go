// Package main applies the embedded database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"stockline/internal/config"
	"stockline/internal/infrastructure/storage/postgres"
	"stockline/pkg/logger"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo|validate")
	version := flag.String("version", "", "target version for -cmd=version")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log = log.WithComponent("migrate")

	// validate needs no database
	if *cmd == "validate" {
		if err := postgres.ValidateMigrations(); err != nil {
			log.Fatalw("migration validation failed", "error", err)
		}
		log.Info("migration validation passed")
		return
	}

	dbCfg, err := config.LoadDB()
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	ctx := context.Background()
	poolCfg := postgres.DefaultPoolConfig(dbCfg.DSN)
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 0
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	switch *cmd {
	case "version":
		if *version == "" {
			log.Fatal("missing -version for version command")
		}
		err = postgres.MigrateToVersion(ctx, pool, *version)
	case "up", "down", "status", "redo":
		err = postgres.Migrate(ctx, pool, *cmd)
	default:
		log.Fatalw("unknown -cmd value", "cmd", *cmd)
	}
	if err != nil {
		log.Fatalw("migration failed", "cmd", *cmd, "error", err)
	}
	log.Infow("migration finished", "cmd", *cmd)
}
