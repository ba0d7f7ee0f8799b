package lpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vediex/book-api/internal/provider"
	"github.com/vediex/book-api/internal/vault"
)

func TestSignIsDeterministic(t *testing.T) {
	sig := Sign("secret", "1700000000000", "POST", "/order", `{"symbol":"EURUSD"}`)

	assert.Len(t, sig, 64) // hex-encoded SHA-256
	assert.Equal(t, sig, Sign("secret", "1700000000000", "POST", "/order", `{"symbol":"EURUSD"}`))
}

func TestSignCoversEveryComponent(t *testing.T) {
	base := Sign("secret", "1700000000000", "POST", "/order", "{}")

	assert.NotEqual(t, base, Sign("other", "1700000000000", "POST", "/order", "{}"))
	assert.NotEqual(t, base, Sign("secret", "1700000000001", "POST", "/order", "{}"))
	assert.NotEqual(t, base, Sign("secret", "1700000000000", "GET", "/order", "{}"))
	assert.NotEqual(t, base, Sign("secret", "1700000000000", "POST", "/orders", "{}"))
	assert.NotEqual(t, base, Sign("secret", "1700000000000", "POST", "/order", `{"a":1}`))
}

func newTestRegistry(t *testing.T, baseURL string) (*provider.Registry, *vault.Vault) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&provider.LPProvider{}))

	v := vault.New("test-encryption-key")
	apiKey, err := v.Encrypt("test-api-key")
	require.NoError(t, err)
	secretKey, err := v.Encrypt("test-secret-key")
	require.NoError(t, err)
	accountID, err := v.Encrypt("ACC-42")
	require.NoError(t, err)

	require.NoError(t, db.Create(&provider.LPProvider{
		ProviderName:      "Test LP",
		ProviderCode:      "TESTLP",
		APIBaseURL:        baseURL,
		APIKey:            apiKey,
		SecretKey:         secretKey,
		AccountID:         accountID,
		PlaceOrderPath:    "/order",
		IsActive:          true,
		TimeoutMs:         5000,
		RequestsPerSecond: 100,
	}).Error)

	registry := provider.NewRegistry(db, v)
	require.NoError(t, registry.Refresh())
	return registry, v
}

func TestRequestSignsAndAuthenticates(t *testing.T) {
	var captured *http.Request
	var capturedBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())
		body, _ := io.ReadAll(r.Body)
		capturedBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orderId":"LP-1","price":101.5}`))
	}))
	defer server.Close()

	registry, _ := newTestRegistry(t, server.URL)
	client := New(registry)

	p := registry.GetProvider("TESTLP")
	require.NotNil(t, p)

	res := client.Request(context.Background(), p, http.MethodPost, "/order", map[string]interface{}{
		"symbol": "EURUSD",
		"side":   "BUY",
	})

	require.True(t, res.Success)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "LP-1", res.Data["orderId"])

	require.NotNil(t, captured)
	assert.Equal(t, "test-api-key", captured.Header.Get("X-API-KEY"))
	assert.Equal(t, "ACC-42", captured.Header.Get("X-ACCOUNT-ID"))
	assert.Empty(t, captured.Header.Get("X-PASSPHRASE"))

	timestamp := captured.Header.Get("X-TIMESTAMP")
	require.NotEmpty(t, timestamp)
	expected := Sign("test-secret-key", timestamp, http.MethodPost, "/order", capturedBody)
	assert.Equal(t, expected, captured.Header.Get("X-SIGNATURE"))
}

func TestRequestNormalizesProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"insufficient liquidity"}`))
	}))
	defer server.Close()

	registry, _ := newTestRegistry(t, server.URL)
	client := New(registry)
	p := registry.GetProvider("TESTLP")
	require.NotNil(t, p)

	res := client.Request(context.Background(), p, http.MethodPost, "/order", map[string]interface{}{"symbol": "EURUSD"})

	assert.False(t, res.Success)
	assert.Equal(t, http.StatusServiceUnavailable, res.Status)
	assert.Equal(t, "insufficient liquidity", res.ErrorMessage())
}

func TestRequestTransportFailure(t *testing.T) {
	// Nothing listens here
	registry, _ := newTestRegistry(t, "http://127.0.0.1:1")
	client := New(registry)
	p := registry.GetProvider("TESTLP")
	require.NotNil(t, p)

	res := client.Request(context.Background(), p, http.MethodPost, "/order", map[string]interface{}{"symbol": "EURUSD"})

	assert.False(t, res.Success)
	assert.Equal(t, 0, res.Status)
	assert.NotEmpty(t, res.ErrorMessage())
}

func TestResultErrorMessageFallback(t *testing.T) {
	assert.Equal(t, "boom", Result{Err: "boom"}.ErrorMessage())
	assert.Equal(t, "rejected", Result{Data: map[string]interface{}{"message": "rejected"}}.ErrorMessage())
	assert.Equal(t, "LP order failed", Result{Data: map[string]interface{}{}}.ErrorMessage())
}
