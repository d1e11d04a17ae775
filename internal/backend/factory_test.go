package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneyguard/internal/config"
	"moneyguard/internal/core"
)

func testConfig(apiURL string) Config {
	return Config{
		Storage:         MemoryStorage,
		APIBaseURL:      apiURL,
		CurrencyAPIURL:  apiURL + "/bank/currency",
		RequestTimeout:  5 * time.Second,
		CacheMaxEntries: 16,
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig("http://localhost")
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Storage = "sheets"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Storage = SQLiteStorage
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.GoogleSpreadsheetID = "id"
	assert.Error(t, bad.Validate())
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	require.Error(t, err)

	app := &config.Config{StorageBackend: "memory", APIBaseURL: "https://api.example.com/", AMQPExchange: "ex"}
	cfg, err := FromAppConfig(app)
	require.NoError(t, err)
	assert.Equal(t, MemoryStorage, cfg.Storage)
	assert.Equal(t, "https://api.example.com/", cfg.APIBaseURL)
	assert.Equal(t, "ex", cfg.AMQPExchange)

	app.StorageBackend = "postgres"
	_, err = FromAppConfig(app)
	assert.Error(t, err)
}

func TestCreateBackendWiresStack(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/sign-in", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"user":{"id":1,"username":"ann","email":"ann@example.com","balance":10},"token":"jwt"}`)
	})
	mux.HandleFunc("GET /users/current", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer jwt" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"id":1,"username":"ann","email":"ann@example.com","balance":10}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, testConfig(srv.URL))
	require.NoError(t, err)
	defer func() { require.NoError(t, res.Cleanup()) }()

	c := res.Client
	assert.Nil(t, c.Bus)
	assert.False(t, c.Session.IsAuthenticated())

	_, err = c.Auth.Login(ctx, core.LoginInput{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)

	balance, err := c.Dashboard.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10.0, balance)
	assert.Equal(t, 1, c.Cache.Len())
}

func TestCreateBackendRestoresSQLiteSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/sign-in", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"user":{"id":1,"username":"ann","email":"ann@example.com"},"token":"jwt"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Storage = SQLiteStorage
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "moneyguard.db")
	ctx := context.Background()

	first, err := NewFactory(nil).CreateBackend(ctx, cfg)
	require.NoError(t, err)
	_, err = first.Client.Auth.Login(ctx, core.LoginInput{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, first.Cleanup())

	second, err := NewFactory(nil).CreateBackend(ctx, cfg)
	require.NoError(t, err)
	defer second.Cleanup()

	user, ok := second.Client.Auth.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "ann", user.Username)
	assert.Equal(t, "jwt", second.Client.Session.Token())
}
