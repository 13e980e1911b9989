package verify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"holderbot/internal/solana"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const depositAddr = "Deposit111"

// fakeLedger scripts one response per polling attempt.
type fakeLedger struct {
	mu       sync.Mutex
	attempts int
	// byAttempt maps the 1-based poll number to the visible transactions.
	byAttempt map[int][]*solana.TransactionDetail
	listErr   error
	detailErr map[string]error
}

func (f *fakeLedger) ListRecentSignatures(ctx context.Context, address string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var sigs []string
	for _, d := range f.byAttempt[f.attempts] {
		sigs = append(sigs, d.Signature)
	}
	if limit < len(sigs) {
		sigs = sigs[:limit]
	}
	return sigs, nil
}

func (f *fakeLedger) GetTransactionDetail(ctx context.Context, signature string) (*solana.TransactionDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.detailErr[signature]; ok {
		return nil, err
	}
	for _, details := range f.byAttempt {
		for _, d := range details {
			if d.Signature == signature {
				return d, nil
			}
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeLedger) polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func paymentTx(sig string, lamports int64) *solana.TransactionDetail {
	return &solana.TransactionDetail{
		Signature:    sig,
		AccountKeys:  []string{"Payer111", depositAddr},
		PreBalances:  []int64{lamports + 5000, 1_000_000},
		PostBalances: []int64{5000, 1_000_000 + lamports},
	}
}

func testConfig(maxAttempts int) Config {
	return Config{
		DepositAddress: depositAddr,
		Tolerance:      5000,
		MaxAttempts:    maxAttempts,
		PollInterval:   time.Millisecond,
		SignatureLimit: 10,
	}
}

func TestVerifyMatchesOnSecondAttempt(t *testing.T) {
	ledger := &fakeLedger{byAttempt: map[int][]*solana.TransactionDetail{
		2: {paymentTx("sig-pay", 500_000_000)},
	}}
	v := New(ledger, NewMemoryClaims(), testConfig(5), zap.NewNop())

	res, err := v.Verify(context.Background(), 500_000_000)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "sig-pay", res.Signature)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, ledger.polls())
}

func TestVerifyExhaustsExactlyMaxAttempts(t *testing.T) {
	ledger := &fakeLedger{byAttempt: map[int][]*solana.TransactionDetail{}}
	v := New(ledger, NewMemoryClaims(), testConfig(4), zap.NewNop())

	res, err := v.Verify(context.Background(), 500_000_000)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, 4, ledger.polls())
}

func TestVerifyToleranceBoundary(t *testing.T) {
	cfg := testConfig(1)

	within := &fakeLedger{byAttempt: map[int][]*solana.TransactionDetail{
		1: {paymentTx("sig-close", 500_000_000+cfg.Tolerance)},
	}}
	v := New(within, NewMemoryClaims(), cfg, zap.NewNop())
	res, err := v.Verify(context.Background(), 500_000_000)
	require.NoError(t, err)
	assert.True(t, res.Matched)

	outside := &fakeLedger{byAttempt: map[int][]*solana.TransactionDetail{
		1: {paymentTx("sig-far", 500_000_000+cfg.Tolerance+1)},
	}}
	v = New(outside, NewMemoryClaims(), cfg, zap.NewNop())
	res, err = v.Verify(context.Background(), 500_000_000)
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestVerifySkipsTransactionsWithoutDeposit(t *testing.T) {
	tx := &solana.TransactionDetail{
		Signature:    "sig-other",
		AccountKeys:  []string{"Payer111", "Someone111"},
		PreBalances:  []int64{1_000_000_000, 0},
		PostBalances: []int64{500_000_000, 500_000_000},
	}
	ledger := &fakeLedger{byAttempt: map[int][]*solana.TransactionDetail{1: {tx}}}
	v := New(ledger, NewMemoryClaims(), testConfig(1), zap.NewNop())

	res, err := v.Verify(context.Background(), 500_000_000)
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestVerifyRPCFailureCountsAsMiss(t *testing.T) {
	ledger := &fakeLedger{listErr: errors.New("rpc down")}
	v := New(ledger, NewMemoryClaims(), testConfig(3), zap.NewNop())

	res, err := v.Verify(context.Background(), 500_000_000)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, 3, ledger.polls())
}

func TestVerifyDetailFailureSkipsSignature(t *testing.T) {
	ledger := &fakeLedger{
		byAttempt: map[int][]*solana.TransactionDetail{
			1: {paymentTx("sig-bad", 500_000_000), paymentTx("sig-good", 500_000_000)},
		},
		detailErr: map[string]error{"sig-bad": errors.New("timeout")},
	}
	v := New(ledger, NewMemoryClaims(), testConfig(1), zap.NewNop())

	res, err := v.Verify(context.Background(), 500_000_000)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "sig-good", res.Signature)
}

func TestVerifySignatureClaimedOnlyOnce(t *testing.T) {
	// Two runs expecting the same amount see the same single payment; the
	// shared claim registry lets exactly one of them settle.
	claims := NewMemoryClaims()
	mk := func() *Verifier {
		ledger := &fakeLedger{byAttempt: map[int][]*solana.TransactionDetail{
			1: {paymentTx("sig-shared", 500_000_000)},
		}}
		return New(ledger, claims, testConfig(1), zap.NewNop())
	}

	first, err := mk().Verify(context.Background(), 500_000_000)
	require.NoError(t, err)
	second, err := mk().Verify(context.Background(), 500_000_000)
	require.NoError(t, err)

	assert.True(t, first.Matched)
	assert.False(t, second.Matched)
}

func TestVerifyCancelledBetweenAttempts(t *testing.T) {
	ledger := &fakeLedger{byAttempt: map[int][]*solana.TransactionDetail{}}
	cfg := testConfig(100)
	cfg.PollInterval = 50 * time.Millisecond
	v := New(ledger, NewMemoryClaims(), cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() {
		res, err := v.Verify(ctx, 500_000_000)
		assert.ErrorIs(t, err, context.Canceled)
		done <- res
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case res := <-done:
		assert.False(t, res.Matched)
	case <-time.After(2 * cfg.PollInterval):
		t.Fatal("verification did not stop after cancel")
	}
}

func TestMemoryClaims(t *testing.T) {
	claims := NewMemoryClaims()
	ok, err := claims.Claim(context.Background(), "sig-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = claims.Claim(context.Background(), "sig-a")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = claims.Claim(context.Background(), "sig-b")
	require.NoError(t, err)
	assert.True(t, ok)
}
