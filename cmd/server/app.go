package main

import (
	"context"
	"fmt"

	"stockline/internal/config"
	"stockline/internal/domain/auth"
	"stockline/internal/domain/catalog"
	"stockline/internal/domain/delivery"
	"stockline/internal/domain/pricing"
	"stockline/internal/domain/sale"
	"stockline/internal/domain/stock"
	"stockline/internal/domain/transfer"
	"stockline/internal/infrastructure/idempotency"
	"stockline/internal/infrastructure/metrics"
	"stockline/internal/infrastructure/numerator"
	"stockline/internal/infrastructure/storage/postgres"
	"stockline/internal/infrastructure/storage/postgres/catalog_repo"
	"stockline/internal/infrastructure/storage/postgres/document_repo"
	"stockline/internal/infrastructure/storage/postgres/register_repo"
)

// app is the wired service graph.
type app struct {
	jwt         *auth.JWTService
	idempotency idempotency.Store
	catalog     *catalog.Service
	ledger      *stock.Ledger
	sales       *sale.Service
	transfers   *transfer.Service

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, txm *postgres.TxManager, m *metrics.Metrics) (*app, error) {
	policy, err := pricing.NewPolicy(cfg.Sale.WeighableStep)
	if err != nil {
		return nil, fmt.Errorf("sale policy: %w", err)
	}
	fare, err := delivery.NewCalculatorFromConfig(delivery.Config{
		TiersJSON:          cfg.Delivery.TiersJSON,
		BaseFee:            cfg.Delivery.BaseFee,
		IncentiveThreshold: cfg.Delivery.IncentiveThreshold,
		IncentiveBonus:     cfg.Delivery.IncentiveBonus,
	})
	if err != nil {
		return nil, fmt.Errorf("delivery fare: %w", err)
	}

	audit, err := postgres.NewAuditLog(txm)
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	audit = audit.WithOutbox(postgres.NewOutboxPublisher(txm))

	numbers := numerator.New(func(ctx context.Context) numerator.Querier {
		return txm.GetQuerier(ctx)
	})

	catalogRepo := catalog_repo.New(txm)
	ledger := stock.NewLedger(register_repo.NewStockRepo(txm), txm)

	a := &app{
		jwt: auth.NewJWTService(auth.JWTConfig{
			Secret:         cfg.Auth.JWTSecret,
			Issuer:         cfg.Auth.JWTIssuer,
			AccessTokenTTL: cfg.Auth.AccessTTL,
		}),
		catalog: catalog.NewService(catalogRepo, txm, ledger),
		ledger:  ledger,
		sales: sale.NewService(sale.Deps{
			Repo:      document_repo.NewSaleRepo(txm),
			Catalog:   catalogRepo,
			Stock:     ledger,
			TxManager: txm,
			Fare:      fare,
			Policy:    policy,
			Numerator: numbers,
			Audit:     audit,
			Metrics:   m,
			Debug:     cfg.App.Debug,
		}),
		transfers: transfer.NewService(
			document_repo.NewTransferRepo(txm),
			catalogRepo,
			ledger,
			txm,
			policy,
			numbers,
			audit,
			m,
		),
	}

	if cfg.Idempotency.Enabled {
		switch cfg.Idempotency.Backend {
		case config.IdempotencyBackendRedis:
			client, err := idempotency.NewRedisClient(ctx, cfg.Redis)
			if err != nil {
				return nil, fmt.Errorf("redis: %w", err)
			}
			a.closers = append(a.closers, client.Close)
			a.idempotency = idempotency.NewRedisStore(client, cfg.Idempotency.TTL)
		default:
			a.idempotency = postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL)
		}
	}
	return a, nil
}
