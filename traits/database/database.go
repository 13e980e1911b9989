package database

import (
	"database/sql"
	"os"

	"holderbot/config"

	"go.uber.org/zap"
)

// InitDatabase initializes the SQLite database
func InitDatabase(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DBPath, 0755); err != nil {
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", cfg.GetDatabasePath()+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database initialized successfully",
		zap.String("path", cfg.GetDatabasePath()),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)

	return db, nil
}

// CreateTables creates the loyalty, purchase, and referral tables.
func CreateTables(db *sql.DB, logger *zap.Logger) error {
	loyaltyAccountsTable := `
		CREATE TABLE IF NOT EXISTS loyalty_accounts (
			telegram_id INTEGER PRIMARY KEY,
			points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
			referrals INTEGER NOT NULL DEFAULT 0 CHECK (referrals >= 0),
			total_spent_lamports INTEGER NOT NULL DEFAULT 0 CHECK (total_spent_lamports >= 0),
			last_purchase_at DATETIME NULL,
			discount_unlocked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	purchasesTable := `
		CREATE TABLE IF NOT EXISTS purchases (
			id TEXT PRIMARY KEY,
			telegram_id INTEGER NOT NULL,
			service_key TEXT NOT NULL,
			package_key TEXT NOT NULL,
			contract_address TEXT NOT NULL,
			base_lamports INTEGER NOT NULL,
			final_lamports INTEGER NOT NULL CHECK (final_lamports >= 0),
			points_used INTEGER NOT NULL DEFAULT 0,
			points_earned INTEGER NOT NULL DEFAULT 0,
			signature TEXT NOT NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	referralRedemptionsTable := `
		CREATE TABLE IF NOT EXISTS referral_redemptions (
			new_user_id INTEGER PRIMARY KEY,
			referrer_id INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	tables := []struct {
		name string
		sql  string
	}{
		{"loyalty_accounts", loyaltyAccountsTable},
		{"purchases", purchasesTable},
		{"referral_redemptions", referralRedemptionsTable},
	}

	for _, table := range tables {
		if _, err := db.Exec(table.sql); err != nil {
			logger.Error("Failed to create table", zap.String("table", table.name), zap.Error(err))
			return err
		}
	}

	indexes := []struct {
		name string
		sql  string
	}{
		{
			name: "idx_purchases_telegram_id",
			sql:  "CREATE INDEX IF NOT EXISTS idx_purchases_telegram_id ON purchases(telegram_id);",
		},
		{
			name: "idx_purchases_created_at",
			sql:  "CREATE INDEX IF NOT EXISTS idx_purchases_created_at ON purchases(created_at);",
		},
		{
			name: "idx_referral_redemptions_referrer",
			sql:  "CREATE INDEX IF NOT EXISTS idx_referral_redemptions_referrer ON referral_redemptions(referrer_id);",
		},
	}

	for _, index := range indexes {
		if _, err := db.Exec(index.sql); err != nil {
			logger.Warn("Failed to create index",
				zap.String("index", index.name),
				zap.Error(err),
			)
		}
	}

	trigger := `
		CREATE TRIGGER IF NOT EXISTS trigger_loyalty_accounts_updated_at
		AFTER UPDATE ON loyalty_accounts
		BEGIN
			UPDATE loyalty_accounts SET updated_at = CURRENT_TIMESTAMP WHERE telegram_id = NEW.telegram_id;
		END;`
	if _, err := db.Exec(trigger); err != nil {
		logger.Warn("Failed to create trigger",
			zap.String("trigger", "trigger_loyalty_accounts_updated_at"),
			zap.Error(err))
	}

	logger.Info("Database schema created successfully")
	return nil
}
