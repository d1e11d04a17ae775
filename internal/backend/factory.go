package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moneyguard/internal/amqp"
	"moneyguard/internal/cache"
	"moneyguard/internal/httpclient"
	"moneyguard/internal/log"
	"moneyguard/internal/query"
	"moneyguard/internal/rates"
	"moneyguard/internal/services"
	"moneyguard/internal/session"
	"moneyguard/internal/sheets"
	gsheet "moneyguard/internal/sheets/google"
	"moneyguard/internal/sheets/memory"
	"moneyguard/internal/storage"
	"moneyguard/internal/worker"
)

// cleanupInterval is how often idle cache entries are swept
const cleanupInterval = time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentApp),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, storage.Config{Backend: config.Storage.String(), Path: config.SQLiteDBPath})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	state := session.New(store, f.logger)
	if err := state.Hydrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	httpClient, err := httpclient.New(config.APIBaseURL, state,
		httpclient.WithHTTPClient(httpclient.NewHTTPClient(config.RequestTimeout)),
		httpclient.WithLogger(f.logger))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	cacheStore := cache.NewStore(cache.Options{
		MaxEntries: config.CacheMaxEntries,
		IdleTTL:    config.CacheIdleTTL,
		Logger:     f.logger,
	})
	manager := cache.NewManager(f.logger)
	manager.Register(cacheStore)

	queries := query.NewQueryExecutor(cacheStore, httpClient, f.logger, query.WithFetchTimeout(config.RequestTimeout))

	// Initialize AMQP client (optional)
	mutationOpts := []query.MutationOption{query.WithMutationTimeout(config.RequestTimeout)}
	var bus *amqp.Client
	if config.AMQPURL != "" {
		bus, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without invalidation bus", log.FieldError, err.Error())
			bus = nil
		} else {
			mutationOpts = append(mutationOpts, query.WithPublisher(bus))
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"origin", bus.Origin())
		}
	}
	mutations := query.NewMutationExecutor(queries, httpClient, f.logger, mutationOpts...)

	rateCache := rates.New(store, queries, httpClient, config.CurrencyAPIURL, f.logger)

	exporter, err := f.createExporter(ctx, config)
	if err != nil {
		if bus != nil {
			bus.Close()
		}
		store.Close()
		return nil, err
	}

	client := &Client{
		Session:      state,
		Cache:        cacheStore,
		CacheManager: manager,
		Queries:      queries,
		Mutations:    mutations,
		Rates:        rateCache,
		Auth:         services.NewAuthService(httpClient, state, cacheStore, f.logger),
		Transactions: services.NewTransactionService(queries, mutations, exporter, f.logger),
		Dashboard:    services.NewDashboardService(queries, rateCache),
		Worker:       worker.NewRefreshWorker(queries, mutations, rateCache, f.logger),
		Bus:          bus,
	}
	manager.StartCleanup(cleanupInterval)

	f.logger.Info("Initialized client stack",
		"storage", config.Storage.String(),
		"api", config.APIBaseURL,
		"amqp_enabled", bus != nil,
		"sheets_enabled", config.GoogleSpreadsheetID != "",
		"authenticated", state.IsAuthenticated())

	cleanup := func() error {
		client.Worker.Stop()
		manager.Stop()
		queries.Wait()
		var errs []error
		if bus != nil {
			errs = append(errs, bus.Close())
		}
		errs = append(errs, store.Close())
		return errors.Join(errs...)
	}

	return &BackendResult{
		Client:  client,
		Cleanup: cleanup,
	}, nil
}

func (f *DefaultFactory) createExporter(ctx context.Context, config Config) (sheets.TransactionExporter, error) {
	if config.GoogleSpreadsheetID == "" {
		return memory.New(), nil
	}

	cli, err := gsheet.NewClient(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets exporter", "spreadsheet_id", config.GoogleSpreadsheetID)
	return cli, nil
}
