package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config contains application configuration parameters
type Config struct {
	// Server configuration
	Port         string        `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`

	// Telegram Bot configuration
	Token       string `json:"token"`
	BotUsername string `json:"bot_username"`
	AdminToken  string `json:"admin_token"`

	// Solana configuration
	RPCURL         string `json:"rpc_url"`
	DepositAddress string `json:"deposit_address"`

	// Redis configuration (optional; claim registry falls back to memory)
	RedisAddr string `json:"redis_addr"`
	RedisDB   int    `json:"redis_db"`

	// Database configuration
	DBName          string        `json:"db_name"`
	DBPath          string        `json:"db_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`

	// Payment verification
	VerifyMaxAttempts       int           `json:"verify_max_attempts"`
	VerifyPollInterval      time.Duration `json:"verify_poll_interval"`
	VerifyToleranceLamports int64         `json:"verify_tolerance_lamports"`
	VerifySignatureLimit    int           `json:"verify_signature_limit"`
	ClaimTTL                time.Duration `json:"claim_ttl"`

	// Loyalty & pricing
	UnlockedDiscountBps    int64 `json:"unlocked_discount_bps"`
	RedemptionRateLamports int64 `json:"redemption_rate_lamports"`
	RedemptionCapBps       int64 `json:"redemption_cap_bps"`
	PointsPerSol           int64 `json:"points_per_sol"`
	UnlockReferrals        int64 `json:"unlock_referrals"`
	UnlockSpendLamports    int64 `json:"unlock_spend_lamports"`
	ReferralBonusPoints    int64 `json:"referral_bonus_points"`
	WelcomeBonusPoints     int64 `json:"welcome_bonus_points"`

	// Follow-up notifications
	ScanNotifyDelay time.Duration `json:"scan_notify_delay"`
	DoneNotifyDelay time.Duration `json:"done_notify_delay"`

	// App configuration
	Environment string `json:"environment"` // development, production
	LogLevel    string `json:"log_level"`   // debug, info, warn, error
}

// NewConfig creates and returns a new configuration instance
func NewConfig() (*Config, error) {
	cfg := &Config{
		// Server defaults
		Port:         ":8081",
		Host:         "0.0.0.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,

		// Telegram defaults; token must come from the environment
		BotUsername: "HolderBoostBot",
		AdminToken:  "admin-secret-token-change-in-production",

		// Solana defaults
		RPCURL: "https://api.mainnet-beta.solana.com",

		// Database defaults
		DBName:          "holderbot.db",
		DBPath:          "./data/",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,

		// Verification defaults
		VerifyMaxAttempts:       12,
		VerifyPollInterval:      10 * time.Second,
		VerifyToleranceLamports: 5000,
		VerifySignatureLimit:    15,
		ClaimTTL:                24 * time.Hour,

		// Loyalty defaults: 10% unlocked discount, 0.01 SOL per point,
		// redemption capped at half the base price, 100 points per SOL
		// spent, unlock at 3 referrals or 10 SOL lifetime spend.
		UnlockedDiscountBps:    1000,
		RedemptionRateLamports: 10_000_000,
		RedemptionCapBps:       5000,
		PointsPerSol:           100,
		UnlockReferrals:        3,
		UnlockSpendLamports:    10_000_000_000,
		ReferralBonusPoints:    20,
		WelcomeBonusPoints:     10,

		// Follow-up defaults match the historical flow: scanning notice,
		// then the completion notice
		ScanNotifyDelay: 10 * time.Second,
		DoneNotifyDelay: 4 * time.Second,

		// App defaults
		Environment: "development",
		LogLevel:    "info",
	}

	// Override with environment variables if set
	if port := os.Getenv("PORT"); port != "" {
		if port[0] != ':' {
			cfg.Port = ":" + port
		} else {
			cfg.Port = port
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}

	if token := os.Getenv("BOT_TOKEN"); token != "" {
		cfg.Token = token
	}

	if username := os.Getenv("BOT_USERNAME"); username != "" {
		cfg.BotUsername = username
	}

	if adminToken := os.Getenv("ADMIN_TOKEN"); adminToken != "" {
		cfg.AdminToken = adminToken
	}

	if rpcURL := os.Getenv("RPC_URL"); rpcURL != "" {
		cfg.RPCURL = rpcURL
	}

	if deposit := os.Getenv("DEPOSIT_ADDRESS"); deposit != "" {
		cfg.DepositAddress = deposit
	}

	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.RedisAddr = redisAddr
	}

	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.DBName = dbName
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Parse numeric environment variables
	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if n, err := strconv.Atoi(redisDB); err == nil {
			cfg.RedisDB = n
		}
	}

	if attempts := os.Getenv("VERIFY_MAX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil {
			cfg.VerifyMaxAttempts = n
		}
	}

	if tolerance := os.Getenv("VERIFY_TOLERANCE_LAMPORTS"); tolerance != "" {
		if n, err := strconv.ParseInt(tolerance, 10, 64); err == nil {
			cfg.VerifyToleranceLamports = n
		}
	}

	if sigLimit := os.Getenv("VERIFY_SIGNATURE_LIMIT"); sigLimit != "" {
		if n, err := strconv.Atoi(sigLimit); err == nil {
			cfg.VerifySignatureLimit = n
		}
	}

	if pointsPerSol := os.Getenv("POINTS_PER_SOL"); pointsPerSol != "" {
		if n, err := strconv.ParseInt(pointsPerSol, 10, 64); err == nil {
			cfg.PointsPerSol = n
		}
	}

	if rate := os.Getenv("REDEMPTION_RATE_LAMPORTS"); rate != "" {
		if n, err := strconv.ParseInt(rate, 10, 64); err == nil {
			cfg.RedemptionRateLamports = n
		}
	}

	if bonus := os.Getenv("REFERRAL_BONUS_POINTS"); bonus != "" {
		if n, err := strconv.ParseInt(bonus, 10, 64); err == nil {
			cfg.ReferralBonusPoints = n
		}
	}

	if bonus := os.Getenv("WELCOME_BONUS_POINTS"); bonus != "" {
		if n, err := strconv.ParseInt(bonus, 10, 64); err == nil {
			cfg.WelcomeBonusPoints = n
		}
	}

	if maxOpenConns := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenConns != "" {
		if conns, err := strconv.Atoi(maxOpenConns); err == nil {
			cfg.MaxOpenConns = conns
		}
	}

	if maxIdleConns := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleConns != "" {
		if conns, err := strconv.Atoi(maxIdleConns); err == nil {
			cfg.MaxIdleConns = conns
		}
	}

	// Parse duration environment variables
	if interval := os.Getenv("VERIFY_POLL_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.VerifyPollInterval = d
		}
	}

	if ttl := os.Getenv("CLAIM_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.ClaimTTL = d
		}
	}

	if delay := os.Getenv("SCAN_NOTIFY_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			cfg.ScanNotifyDelay = d
		}
	}

	if delay := os.Getenv("DONE_NOTIFY_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			cfg.DoneNotifyDelay = d
		}
	}

	if connMaxLifetime := os.Getenv("DB_CONN_MAX_LIFETIME"); connMaxLifetime != "" {
		if lifetime, err := time.ParseDuration(connMaxLifetime); err == nil {
			cfg.ConnMaxLifetime = lifetime
		}
	}

	if readTimeout := os.Getenv("READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			cfg.ReadTimeout = timeout
		}
	}

	if writeTimeout := os.Getenv("WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			cfg.WriteTimeout = timeout
		}
	}

	return cfg, nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GetDatabasePath returns the full path to the database file
func (c *Config) GetDatabasePath() string {
	return c.DBPath + c.DBName
}

// GetServerAddress returns the server address
func (c *Config) GetServerAddress() string {
	return c.Host + c.Port
}

// ValidateConfig validates the configuration
func (c *Config) ValidateConfig() error {
	if c.Token == "" {
		return fmt.Errorf("telegram bot token is required (BOT_TOKEN)")
	}

	if c.DepositAddress == "" {
		return fmt.Errorf("deposit address is required (DEPOSIT_ADDRESS)")
	}

	if c.RPCURL == "" {
		return fmt.Errorf("solana RPC URL is required")
	}

	if c.DBName == "" {
		return fmt.Errorf("database name is required")
	}

	if c.VerifyMaxAttempts <= 0 {
		return fmt.Errorf("verification attempts must be positive")
	}

	if c.VerifyPollInterval <= 0 {
		return fmt.Errorf("verification poll interval must be positive")
	}

	if c.VerifyToleranceLamports < 0 {
		return fmt.Errorf("verification tolerance cannot be negative")
	}

	if c.VerifySignatureLimit <= 0 {
		return fmt.Errorf("verification signature limit must be positive")
	}

	if c.RedemptionRateLamports <= 0 {
		return fmt.Errorf("redemption rate must be positive")
	}

	if c.PointsPerSol < 0 {
		return fmt.Errorf("points per SOL cannot be negative")
	}

	return nil
}
