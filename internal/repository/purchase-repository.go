package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"holderbot/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PurchaseRepository records verified purchases. Rows are only written
// after the verifier has matched and claimed a signature.
type PurchaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPurchaseRepository(db *sql.DB, logger *zap.Logger) *PurchaseRepository {
	return &PurchaseRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a completed purchase and returns it with its generated ID.
func (r *PurchaseRepository) Create(ctx context.Context, p *domain.Purchase) (*domain.Purchase, error) {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO purchases (
			id, telegram_id, service_key, package_key, contract_address,
			base_lamports, final_lamports, points_used, points_earned,
			signature, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.TelegramID, p.ServiceKey, p.PackageKey, p.ContractAddress,
		p.BaseLamports, p.FinalLamports, p.PointsUsed, p.PointsEarned,
		p.Signature, p.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create purchase", zap.Error(err), zap.Int64("telegram_id", p.TelegramID))
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}

	return p, nil
}

// ListByUser returns the user's purchases, newest first.
func (r *PurchaseRepository) ListByUser(ctx context.Context, telegramID int64, limit int) ([]domain.Purchase, error) {
	query := `
		SELECT id, telegram_id, service_key, package_key, contract_address,
			   base_lamports, final_lamports, points_used, points_earned,
			   signature, created_at
		FROM purchases
		WHERE telegram_id = ?
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, telegramID, limit)
	if err != nil {
		r.logger.Error("Failed to list purchases", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(
			&p.ID, &p.TelegramID, &p.ServiceKey, &p.PackageKey, &p.ContractAddress,
			&p.BaseLamports, &p.FinalLamports, &p.PointsUsed, &p.PointsEarned,
			&p.Signature, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// Stats aggregates purchase volume for the admin API.
func (r *PurchaseRepository) Stats(ctx context.Context) (*domain.PurchaseStats, error) {
	stats := &domain.PurchaseStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(final_lamports), 0) FROM purchases`,
	).Scan(&stats.TotalPurchases, &stats.TotalLamports)
	if err != nil {
		r.logger.Error("Failed to aggregate purchase stats", zap.Error(err))
		return nil, fmt.Errorf("failed to aggregate purchase stats: %w", err)
	}
	return stats, nil
}
