package main

import (
	"fmt"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	appledger "github.com/fieldsales/ledgersync/internal/application/ledger"
	"github.com/fieldsales/ledgersync/internal/domain/ledger"
	"github.com/fieldsales/ledgersync/internal/infrastructure/config"
	"github.com/fieldsales/ledgersync/internal/infrastructure/logger"
	"github.com/fieldsales/ledgersync/internal/infrastructure/persistence"
	"github.com/fieldsales/ledgersync/internal/infrastructure/remote"
	"github.com/fieldsales/ledgersync/internal/infrastructure/syncer"
)

// application wires configuration, storage, services and the sync
// orchestrator together for the subcommands
type application struct {
	cfg *config.Config
	log *zap.Logger
	db  *persistence.Database

	invoices     *appledger.InvoiceService
	collections  *appledger.CollectionService
	balances     *appledger.BalanceService
	catalogs     *appledger.CatalogService
	orchestrator *syncer.Orchestrator
}

func newApplication() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database,
		logger.NewGormLogger(log.Named("gorm"), gormlogger.Warn))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	gateway, err := remote.NewHTTPGateway(&cfg.Remote)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing remote gateway: %w", err)
	}

	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	collectionRepo := persistence.NewGormCollectionRepository(db.DB)
	rangeRepo := persistence.NewGormNumberRangeRepository(db.DB)
	balanceRepo := persistence.NewGormRemoteBalanceRepository(db.DB)
	catalogRepo := persistence.NewGormCatalogRepository(db.DB)

	reconciler := ledger.NewBalanceReconciler(
		ledger.WithDefaultPaymentTerm(cfg.Sync.DefaultPaymentTerm))
	guard := appledger.NewDuplicateGuard(gateway, log.Named("guard"))

	invoiceOpts := []appledger.InvoiceServiceOption{
		appledger.WithInvoiceSeries(cfg.Sync.InvoiceSeries),
	}
	collectionOpts := []appledger.CollectionServiceOption{
		appledger.WithReceiptSeries(cfg.Sync.ReceiptSeries),
	}
	if cfg.Sync.AllowFallback {
		invoiceOpts = append(invoiceOpts, appledger.WithInvoiceFallbackNumbering())
		collectionOpts = append(collectionOpts, appledger.WithReceiptFallbackNumbering())
	}

	invoices := appledger.NewInvoiceService(invoiceRepo, rangeRepo, catalogRepo, gateway, invoiceOpts...)
	collections := appledger.NewCollectionService(collectionRepo, invoiceRepo, balanceRepo,
		rangeRepo, catalogRepo, gateway, reconciler, guard, collectionOpts...)
	balances := appledger.NewBalanceService(balanceRepo, invoiceRepo, collectionRepo,
		catalogRepo, gateway, reconciler)
	catalogs := appledger.NewCatalogService(catalogRepo, gateway)

	orchestrator, err := syncer.New(
		syncer.Config{Enabled: cfg.Sync.Enabled, Interval: cfg.Sync.Interval},
		invoices, collections, balances, catalogs, log.Named("syncer"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing orchestrator: %w", err)
	}

	return &application{
		cfg:          cfg,
		log:          log,
		db:           db,
		invoices:     invoices,
		collections:  collections,
		balances:     balances,
		catalogs:     catalogs,
		orchestrator: orchestrator,
	}, nil
}

func (a *application) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("closing database", zap.Error(err))
	}
	_ = a.log.Sync()
}
