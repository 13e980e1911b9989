package pricing

import (
	"testing"

	"holderbot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteForFreshAccount(t *testing.T) {
	acct := &domain.LoyaltyAccount{}
	q := QuoteFor(500_000_000, acct, DefaultParams())

	assert.Equal(t, int64(500_000_000), q.BaseLamports)
	assert.Equal(t, int64(500_000_000), q.FinalLamports)
	assert.Equal(t, int64(0), q.PointsUsed)
	assert.False(t, q.UnlockedApplied)
}

func TestQuoteForUnlockedDiscount(t *testing.T) {
	// 3.8 SOL package with the unlocked flat discount prices at 3.42 SOL.
	acct := &domain.LoyaltyAccount{DiscountUnlocked: true}
	q := QuoteFor(3_800_000_000, acct, DefaultParams())

	assert.Equal(t, int64(3_420_000_000), q.FinalLamports)
	assert.Equal(t, int64(0), q.PointsUsed)
	assert.True(t, q.UnlockedApplied)
}

func TestQuoteForPointsRedemption(t *testing.T) {
	// 40 points at 0.01 SOL/point against a 0.5 SOL package: the 50% cap
	// limits the discount to 0.25 SOL, consuming 25 points.
	acct := &domain.LoyaltyAccount{Points: 40}
	q := QuoteFor(500_000_000, acct, DefaultParams())

	assert.Equal(t, int64(250_000_000), q.FinalLamports)
	assert.Equal(t, int64(25), q.PointsUsed)
	assert.False(t, q.UnlockedApplied)
}

func TestQuoteForSmallPointBalance(t *testing.T) {
	// Under the cap the full balance is redeemed.
	acct := &domain.LoyaltyAccount{Points: 10}
	q := QuoteFor(3_000_000_000, acct, DefaultParams())

	assert.Equal(t, int64(2_900_000_000), q.FinalLamports)
	assert.Equal(t, int64(10), q.PointsUsed)
}

func TestQuoteForUnlockedWinsOverPoints(t *testing.T) {
	// The two discount paths never stack; unlocked status always wins and
	// leaves the point balance untouched.
	acct := &domain.LoyaltyAccount{DiscountUnlocked: true, Points: 500}
	q := QuoteFor(1_800_000_000, acct, DefaultParams())

	assert.True(t, q.UnlockedApplied)
	assert.Equal(t, int64(0), q.PointsUsed)
	assert.Equal(t, int64(1_620_000_000), q.FinalLamports)
}

func TestQuoteForNeverNegative(t *testing.T) {
	acct := &domain.LoyaltyAccount{Points: 1_000_000}
	q := QuoteFor(1, acct, DefaultParams())

	assert.GreaterOrEqual(t, q.FinalLamports, int64(0))
}

func TestQuoteForDeterministic(t *testing.T) {
	acct := &domain.LoyaltyAccount{Points: 37}
	first := QuoteFor(1_800_000_000, acct, DefaultParams())
	for i := 0; i < 10; i++ {
		require.Equal(t, first, QuoteFor(1_800_000_000, acct, DefaultParams()))
	}
}

func TestQuoteForChargesExactlyRedeemedPoints(t *testing.T) {
	// The charged discount must equal points_used * rate so the ledger can
	// consume exactly what the quote reserved.
	acct := &domain.LoyaltyAccount{Points: 33}
	p := DefaultParams()
	q := QuoteFor(500_000_000, acct, p)

	assert.Equal(t, q.BaseLamports-q.PointsUsed*p.RedemptionRateLamports, q.FinalLamports)
}
