package verify

import (
	"context"
	"time"

	"holderbot/internal/solana"

	"go.uber.org/zap"
)

// Config bounds one verification run. Tolerance is the matching epsilon in
// lamports; it is a knob, not a derived value.
type Config struct {
	DepositAddress string
	Tolerance      int64
	MaxAttempts    int
	PollInterval   time.Duration
	SignatureLimit int
}

// Result reports the outcome of one verification run.
type Result struct {
	Matched   bool
	Signature string
	Attempts  int
}

// Verifier polls the ledger for a payment of an expected amount to the
// deposit address. Each run is bounded by MaxAttempts * PollInterval and is
// cancellable between attempts via the context.
type Verifier struct {
	client solana.Client
	claims ClaimRegistry
	cfg    Config
	logger *zap.Logger
}

func New(client solana.Client, claims ClaimRegistry, cfg Config, logger *zap.Logger) *Verifier {
	return &Verifier{client: client, claims: claims, cfg: cfg, logger: logger}
}

// Verify polls until a transaction moves expectedLamports (within tolerance)
// into the deposit address, claiming the matching signature so no other run
// can settle on it. RPC failures count as a miss for that attempt; only
// exhausting every attempt yields Matched == false with a nil error.
func (v *Verifier) Verify(ctx context.Context, expectedLamports int64) (Result, error) {
	res := Result{}

	for attempt := 1; attempt <= v.cfg.MaxAttempts; attempt++ {
		res.Attempts = attempt

		if sig, ok := v.scanOnce(ctx, expectedLamports, attempt); ok {
			res.Matched = true
			res.Signature = sig
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if attempt == v.cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(v.cfg.PollInterval):
		}
	}

	v.logger.Info("payment verification exhausted",
		zap.Int64("expected_lamports", expectedLamports),
		zap.Int("attempts", res.Attempts))
	return res, nil
}

// scanOnce inspects the recent signature window once. Collaborator errors
// are logged and treated as a non-match for the attempt.
func (v *Verifier) scanOnce(ctx context.Context, expectedLamports int64, attempt int) (string, bool) {
	sigs, err := v.client.ListRecentSignatures(ctx, v.cfg.DepositAddress, v.cfg.SignatureLimit)
	if err != nil {
		v.logger.Warn("list signatures failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
		return "", false
	}

	for _, sig := range sigs {
		if ctx.Err() != nil {
			return "", false
		}

		detail, err := v.client.GetTransactionDetail(ctx, sig)
		if err != nil {
			v.logger.Warn("fetch transaction failed",
				zap.String("signature", sig),
				zap.Error(err))
			continue
		}

		delta, ok := depositDelta(detail, v.cfg.DepositAddress)
		if !ok {
			continue
		}
		if abs(delta-expectedLamports) > v.cfg.Tolerance {
			continue
		}

		claimed, err := v.claims.Claim(ctx, sig)
		if err != nil {
			v.logger.Warn("claim registry error",
				zap.String("signature", sig),
				zap.Error(err))
			continue
		}
		if !claimed {
			// Another session already settled on this payment.
			v.logger.Info("signature already claimed, skipping",
				zap.String("signature", sig))
			continue
		}

		v.logger.Info("payment matched",
			zap.String("signature", sig),
			zap.Int64("delta_lamports", delta),
			zap.Int64("expected_lamports", expectedLamports),
			zap.Int("attempt", attempt))
		return sig, true
	}
	return "", false
}

// depositDelta returns postBalance - preBalance at the deposit address's
// index, or false when the address did not participate.
func depositDelta(detail *solana.TransactionDetail, address string) (int64, bool) {
	for i, key := range detail.AccountKeys {
		if key != address {
			continue
		}
		if i >= len(detail.PreBalances) || i >= len(detail.PostBalances) {
			return 0, false
		}
		return detail.PostBalances[i] - detail.PreBalances[i], true
	}
	return 0, false
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
