package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func rpcServer(t *testing.T, handler func(method string, params []json.RawMessage) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + handler(req.Method, req.Params) + `}`))
	}))
}

func TestListRecentSignatures(t *testing.T) {
	srv := rpcServer(t, func(method string, params []json.RawMessage) string {
		assert.Equal(t, "getSignaturesForAddress", method)
		return `[{"signature":"sig1","slot":10},{"signature":"sig2","slot":9}]`
	})
	defer srv.Close()

	c := NewRPCClient(srv.URL, zap.NewNop())
	sigs, err := c.ListRecentSignatures(context.Background(), "Deposit111", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"sig1", "sig2"}, sigs)
}

func TestGetTransactionDetail(t *testing.T) {
	srv := rpcServer(t, func(method string, params []json.RawMessage) string {
		assert.Equal(t, "getTransaction", method)
		return `{
			"meta":{"preBalances":[900,100],"postBalances":[400,600]},
			"transaction":{"message":{"accountKeys":["Payer111","Deposit111"]}}
		}`
	})
	defer srv.Close()

	c := NewRPCClient(srv.URL, zap.NewNop())
	detail, err := c.GetTransactionDetail(context.Background(), "sig1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Payer111", "Deposit111"}, detail.AccountKeys)
	assert.Equal(t, []int64{900, 100}, detail.PreBalances)
	assert.Equal(t, []int64{400, 600}, detail.PostBalances)
}

func TestGetTransactionDetailNotFound(t *testing.T) {
	srv := rpcServer(t, func(method string, params []json.RawMessage) string {
		return `null`
	})
	defer srv.Close()

	c := NewRPCClient(srv.URL, zap.NewNop())
	_, err := c.GetTransactionDetail(context.Background(), "missing")
	assert.Error(t, err)
}

func TestCallSurfacesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"node is behind"}}`))
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, zap.NewNop())
	_, err := c.ListRecentSignatures(context.Background(), "Deposit111", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node is behind")
}
