package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holderbot/internal/domain"
)

func TestStatsEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t, &scriptedLedger{})
	ctx := context.Background()

	_, err := h.purchaseRepo.Create(ctx, &domain.Purchase{
		TelegramID: 1, ServiceKey: "holders", PackageKey: "holders_50",
		ContractAddress: "TokenMint111", BaseLamports: 500_000_000,
		FinalLamports: 500_000_000, Signature: "sig-stats",
	})
	require.NoError(t, err)
	_, err = h.loyaltyRepo.GetOrCreate(ctx, 1)
	require.NoError(t, err)

	handlerFn := h.adminAuthMiddleware(http.HandlerFunc(h.handleStats))

	// Missing token is rejected.
	rec := httptest.NewRecorder()
	handlerFn.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Authorized request returns the aggregates.
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-Admin-Token", h.cfg.AdminToken)
	rec = httptest.NewRecorder()
	handlerFn.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                 `json:"success"`
		Data    domain.PurchaseStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1), resp.Data.TotalPurchases)
	assert.Equal(t, int64(500_000_000), resp.Data.TotalLamports)
	assert.Equal(t, int64(1), resp.Data.TotalAccounts)
}

func TestHealthEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t, &scriptedLedger{})

	rec := httptest.NewRecorder()
	h.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}
