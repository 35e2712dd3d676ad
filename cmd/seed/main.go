// Package main seeds the database with the principal location and,
// optionally, demo catalog data.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"stockline/internal/config"
	"stockline/internal/core/id"
	"stockline/internal/domain/catalog"
	"stockline/internal/domain/stock"
	"stockline/internal/infrastructure/storage/postgres"
	"stockline/internal/infrastructure/storage/postgres/catalog_repo"
	"stockline/internal/infrastructure/storage/postgres/register_repo"
	"stockline/pkg/logger"
)

func main() {
	principal := flag.String("principal", "Main warehouse", "name of the principal location")
	demo := flag.Bool("demo", false, "seed demo items and a dealer location")
	dealer := flag.String("dealer", "", "actor id owning the demo dealer location")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	dealerID, err := id.ParseOptional(*dealer)
	if err != nil {
		log.Fatalw("invalid -dealer", "error", err)
	}

	dbCfg, err := config.LoadDB()
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbCfg.DSN))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)
	ledger := stock.NewLedger(register_repo.NewStockRepo(txm), txm)
	svc := catalog.NewService(catalog_repo.New(txm), txm, ledger)

	opts := seedOptions{PrincipalName: *principal, Demo: *demo, DealerOwner: dealerID}
	if err := seed(ctx, svc, opts); err != nil {
		log.Fatalw("seed failed", "error", err)
	}
	log.Info("seed completed")
}
