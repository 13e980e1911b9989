package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"holderbot/internal/domain"

	"go.uber.org/zap"
)

// UnlockRule decides when an account earns the permanent flat discount.
type UnlockRule struct {
	Referrals     int64
	SpendLamports int64
}

// ApplyDelta is one atomic loyalty update. PointsSpent is the amount the
// pricing quote reserved; it is consumed in the same transaction that adds
// the purchase's earnings.
type ApplyDelta struct {
	PointsEarned     int64
	PointsSpent      int64
	SpendLamports    int64
	ReferralOccurred bool
}

// LoyaltyRepository owns the durable per-user loyalty accounts. Apply is
// atomic per user: a per-key mutex serializes concurrent updates and the
// whole read-modify-write runs in one SQL transaction.
type LoyaltyRepository struct {
	db     *sql.DB
	logger *zap.Logger
	rule   UnlockRule

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewLoyaltyRepository(db *sql.DB, logger *zap.Logger, rule UnlockRule) *LoyaltyRepository {
	return &LoyaltyRepository{
		db:     db,
		logger: logger,
		rule:   rule,
		locks:  make(map[int64]*sync.Mutex),
	}
}

func (r *LoyaltyRepository) userLock(telegramID int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[telegramID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[telegramID] = lock
	}
	return lock
}

// GetOrCreate returns the account for the user, creating a zero-valued
// record on first access.
func (r *LoyaltyRepository) GetOrCreate(ctx context.Context, telegramID int64) (*domain.LoyaltyAccount, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO loyalty_accounts (telegram_id) VALUES (?)`, telegramID)
	if err != nil {
		r.logger.Error("Failed to create loyalty account", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return nil, fmt.Errorf("failed to create loyalty account: %w", err)
	}
	return r.get(ctx, r.db.QueryRowContext, telegramID)
}

type rowQuerier func(ctx context.Context, query string, args ...interface{}) *sql.Row

func (r *LoyaltyRepository) get(ctx context.Context, queryRow rowQuerier, telegramID int64) (*domain.LoyaltyAccount, error) {
	query := `
		SELECT telegram_id, points, referrals, total_spent_lamports,
			   last_purchase_at, discount_unlocked, created_at, updated_at
		FROM loyalty_accounts
		WHERE telegram_id = ?`

	acct := &domain.LoyaltyAccount{}
	var lastPurchaseAt sql.NullTime

	err := queryRow(ctx, query, telegramID).Scan(
		&acct.TelegramID, &acct.Points, &acct.Referrals, &acct.TotalSpentLamports,
		&lastPurchaseAt, &acct.DiscountUnlocked, &acct.CreatedAt, &acct.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to get loyalty account", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return nil, fmt.Errorf("failed to get loyalty account: %w", err)
	}

	if lastPurchaseAt.Valid {
		acct.LastPurchaseAt = &lastPurchaseAt.Time
	}
	return acct, nil
}

// Apply mutates the account under the user's lock and re-evaluates the
// discount unlock after the deltas land. The unlocked flag is monotonic:
// once set it is never cleared, even if the rule would no longer hold.
func (r *LoyaltyRepository) Apply(ctx context.Context, telegramID int64, d ApplyDelta) (*domain.LoyaltyAccount, error) {
	lock := r.userLock(telegramID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin loyalty update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO loyalty_accounts (telegram_id) VALUES (?)`, telegramID); err != nil {
		return nil, fmt.Errorf("failed to ensure loyalty account: %w", err)
	}

	acct, err := r.get(ctx, tx.QueryRowContext, telegramID)
	if err != nil {
		return nil, err
	}

	acct.Points += d.PointsEarned - d.PointsSpent
	if acct.Points < 0 {
		return nil, fmt.Errorf("points underflow for user %d: spent %d exceeds balance", telegramID, d.PointsSpent)
	}
	acct.TotalSpentLamports += d.SpendLamports
	if d.ReferralOccurred {
		acct.Referrals++
	}
	if d.SpendLamports > 0 {
		now := time.Now().UTC()
		acct.LastPurchaseAt = &now
	}
	if acct.Referrals >= r.rule.Referrals || acct.TotalSpentLamports >= r.rule.SpendLamports {
		acct.DiscountUnlocked = true
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE loyalty_accounts
		SET points = ?, referrals = ?, total_spent_lamports = ?,
			last_purchase_at = ?, discount_unlocked = ?
		WHERE telegram_id = ?`,
		acct.Points, acct.Referrals, acct.TotalSpentLamports,
		acct.LastPurchaseAt, acct.DiscountUnlocked, telegramID,
	)
	if err != nil {
		r.logger.Error("Failed to apply loyalty update", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return nil, fmt.Errorf("failed to apply loyalty update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit loyalty update: %w", err)
	}

	r.logger.Info("Loyalty account updated",
		zap.Int64("telegram_id", telegramID),
		zap.Int64("points", acct.Points),
		zap.Int64("referrals", acct.Referrals),
		zap.Int64("total_spent_lamports", acct.TotalSpentLamports),
		zap.Bool("discount_unlocked", acct.DiscountUnlocked))

	return acct, nil
}

// RedeemReferral records that newUserID was referred by referrerID. The
// primary key on new_user_id makes the link single-use: the first call wins,
// later calls return false.
func (r *LoyaltyRepository) RedeemReferral(ctx context.Context, newUserID, referrerID int64) (bool, error) {
	if newUserID == referrerID {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO referral_redemptions (new_user_id, referrer_id) VALUES (?, ?)`,
		newUserID, referrerID)
	if err != nil {
		r.logger.Error("Failed to redeem referral", zap.Error(err),
			zap.Int64("new_user_id", newUserID), zap.Int64("referrer_id", referrerID))
		return false, fmt.Errorf("failed to redeem referral: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// CountAccounts reports how many loyalty accounts exist.
func (r *LoyaltyRepository) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loyalty_accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}
