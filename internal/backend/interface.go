package backend

import (
	"context"
	"time"

	"moneyguard/internal/amqp"
	"moneyguard/internal/cache"
	"moneyguard/internal/query"
	"moneyguard/internal/rates"
	"moneyguard/internal/services"
	"moneyguard/internal/session"
	"moneyguard/internal/worker"
)

// Client is the assembled client stack
type Client struct {
	Session      *session.State
	Cache        *cache.Store
	CacheManager *cache.Manager
	Queries      *query.QueryExecutor
	Mutations    *query.MutationExecutor
	Rates        *rates.Cache

	Auth         *services.AuthService
	Transactions *services.TransactionService
	Dashboard    *services.DashboardService

	Worker *worker.RefreshWorker
	// Bus is nil when no AMQP URL is configured or the broker is unreachable
	Bus *amqp.Client
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the client stack and its cleanup function
type BackendResult struct {
	Client  *Client
	Cleanup CleanupFunc
}

// Factory creates client stacks based on configuration
type Factory interface {
	// CreateBackend creates a client stack based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for stack creation
type Config struct {
	// Durable storage
	Storage      StorageType
	SQLiteDBPath string

	// Remote endpoints
	APIBaseURL     string
	CurrencyAPIURL string
	RequestTimeout time.Duration

	// Query cache
	CacheMaxEntries int
	CacheIdleTTL    time.Duration

	// Invalidation bus, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export, optional
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

// StorageType represents the durable storage of session and rates
type StorageType string

const (
	SQLiteStorage StorageType = "sqlite"
	MemoryStorage StorageType = "memory"
)

// String implements fmt.Stringer
func (st StorageType) String() string {
	return string(st)
}

// IsValid returns true if the storage type is valid
func (st StorageType) IsValid() bool {
	switch st {
	case SQLiteStorage, MemoryStorage:
		return true
	default:
		return false
	}
}
