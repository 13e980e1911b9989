package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// TransactionDetail carries the balance movement of one confirmed
// transaction: pre/post lamport balances indexed by the participating
// account keys.
type TransactionDetail struct {
	Signature    string
	AccountKeys  []string
	PreBalances  []int64
	PostBalances []int64
}

// Client is the read-only ledger collaborator the verifier polls. Both
// operations are best-effort; callers treat errors as a miss, not a fault.
type Client interface {
	ListRecentSignatures(ctx context.Context, address string, limit int) ([]string, error)
	GetTransactionDetail(ctx context.Context, signature string) (*TransactionDetail, error)
}

// RPCClient talks JSON-RPC 2.0 to a Solana node.
type RPCClient struct {
	url    string
	http   *http.Client
	logger *zap.Logger
}

func NewRPCClient(url string, logger *zap.Logger) *RPCClient {
	return &RPCClient{
		url:    url,
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *RPCClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("unmarshal %s result: %w", method, err)
	}
	return nil
}

// ListRecentSignatures returns the most recent transaction signatures that
// touched the address, newest first, bounded by limit.
func (c *RPCClient) ListRecentSignatures(ctx context.Context, address string, limit int) ([]string, error) {
	var result []struct {
		Signature string `json:"signature"`
	}
	params := []interface{}{address, map[string]interface{}{"limit": limit}}
	if err := c.call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}

	sigs := make([]string, 0, len(result))
	for _, r := range result {
		sigs = append(sigs, r.Signature)
	}
	return sigs, nil
}

// GetTransactionDetail fetches the balance table of one transaction.
func (c *RPCClient) GetTransactionDetail(ctx context.Context, signature string) (*TransactionDetail, error) {
	var result *struct {
		Meta *struct {
			PreBalances  []int64 `json:"preBalances"`
			PostBalances []int64 `json:"postBalances"`
		} `json:"meta"`
		Transaction struct {
			Message struct {
				AccountKeys []string `json:"accountKeys"`
			} `json:"message"`
		} `json:"transaction"`
	}

	params := []interface{}{signature, map[string]interface{}{
		"encoding":                       "json",
		"maxSupportedTransactionVersion": 0,
	}}
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result == nil || result.Meta == nil {
		return nil, fmt.Errorf("getTransaction: %s not found", signature)
	}

	return &TransactionDetail{
		Signature:    signature,
		AccountKeys:  result.Transaction.Message.AccountKeys,
		PreBalances:  result.Meta.PreBalances,
		PostBalances: result.Meta.PostBalances,
	}, nil
}
