package pricing

import "holderbot/internal/domain"

// Params are the pricing knobs. All rates are basis points or lamports so
// the whole computation stays in integers.
type Params struct {
	UnlockedDiscountBps    int64 // flat discount for unlocked accounts, e.g. 1000 = 10%
	RedemptionRateLamports int64 // lamports of discount per loyalty point
	RedemptionCapBps       int64 // max share of base price redeemable, e.g. 5000 = 50%
}

// DefaultParams matches the advertised terms: 10% unlocked discount,
// 0.01 SOL per point, redemption capped at half the base price.
func DefaultParams() Params {
	return Params{
		UnlockedDiscountBps:    1000,
		RedemptionRateLamports: 10_000_000,
		RedemptionCapBps:       5000,
	}
}

// Quote is the outcome of pricing one package for one account snapshot.
type Quote struct {
	BaseLamports    int64
	FinalLamports   int64
	PointsUsed      int64
	UnlockedApplied bool
}

// QuoteFor prices a package against a loyalty snapshot. The unlocked flat
// discount and point redemption are mutually exclusive; unlocked always
// wins. Pure function, no side effects.
func QuoteFor(baseLamports int64, acct *domain.LoyaltyAccount, p Params) Quote {
	q := Quote{BaseLamports: baseLamports, FinalLamports: baseLamports}

	switch {
	case acct.DiscountUnlocked:
		q.FinalLamports = baseLamports - baseLamports*p.UnlockedDiscountBps/10_000
		q.UnlockedApplied = true

	case acct.Points > 0 && p.RedemptionRateLamports > 0:
		discount := acct.Points * p.RedemptionRateLamports
		if cap := baseLamports * p.RedemptionCapBps / 10_000; discount > cap {
			discount = cap
		}
		// Round down to a whole number of points, then charge exactly
		// the discount those points buy.
		q.PointsUsed = discount / p.RedemptionRateLamports
		q.FinalLamports = baseLamports - q.PointsUsed*p.RedemptionRateLamports
	}

	if q.FinalLamports < 0 {
		q.FinalLamports = 0
	}
	return q
}
