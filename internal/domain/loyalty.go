package domain

import "time"

// LoyaltyAccount is the durable per-user loyalty record. It survives
// restarts; the conversation session does not.
type LoyaltyAccount struct {
	TelegramID         int64      `json:"telegram_id"`
	Points             int64      `json:"points"`
	Referrals          int64      `json:"referrals"`
	TotalSpentLamports int64      `json:"total_spent_lamports"`
	LastPurchaseAt     *time.Time `json:"last_purchase_at,omitempty"`
	DiscountUnlocked   bool       `json:"discount_unlocked"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Purchase is a completed, verified purchase.
type Purchase struct {
	ID              string    `json:"id"`
	TelegramID      int64     `json:"telegram_id"`
	ServiceKey      string    `json:"service_key"`
	PackageKey      string    `json:"package_key"`
	ContractAddress string    `json:"contract_address"`
	BaseLamports    int64     `json:"base_lamports"`
	FinalLamports   int64     `json:"final_lamports"`
	PointsUsed      int64     `json:"points_used"`
	PointsEarned    int64     `json:"points_earned"`
	Signature       string    `json:"signature"`
	CreatedAt       time.Time `json:"created_at"`
}

// PurchaseStats is the aggregate view served by the admin API.
type PurchaseStats struct {
	TotalPurchases int64 `json:"total_purchases"`
	TotalLamports  int64 `json:"total_lamports"`
	TotalAccounts  int64 `json:"total_accounts"`
}
