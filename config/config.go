package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
)

// Config holds every runtime setting of the API server.
type Config struct {
	Port    int    `env:"PORT" envDefault:"8000"`
	GinMode string `env:"GIN_MODE" envDefault:"release"`

	DatabaseType string `env:"DATABASE_TYPE" envDefault:"postgres"`
	DBHost       string `env:"DB_HOST" envDefault:"localhost"`
	DBUser       string `env:"DB_USER"`
	DBPassword   string `env:"DB_PASSWORD"`
	DBName       string `env:"DB_NAME" envDefault:"votex"`
	DBPort       string `env:"DB_PORT" envDefault:"5432"`
	DBSSLMode    string `env:"DB_SSLMODE" envDefault:"disable"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"votex.db"`

	JWTSecret       string        `env:"JWT_SECRET"`
	EncryptionKey   string        `env:"ENCRYPTION_KEY"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"5m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"24h"`
	ResetTokenTTL   time.Duration `env:"RESET_TOKEN_TTL" envDefault:"24h"`

	ReceiptShares    int `env:"RECEIPT_SHARES" envDefault:"5"`
	ReceiptThreshold int `env:"RECEIPT_THRESHOLD" envDefault:"3"`

	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	ResultsCacheTTL time.Duration `env:"RESULTS_CACHE_TTL" envDefault:"5s"`
	ResultsInterval time.Duration `env:"RESULTS_STREAM_INTERVAL" envDefault:"5s"`

	VoteRate     int `env:"VOTE_RATE" envDefault:"10"`
	AnonVoteRate int `env:"ANON_VOTE_RATE" envDefault:"5"`

	NotifyInterval time.Duration `env:"NOTIFY_INTERVAL" envDefault:"1m"`
	ReminderLead   time.Duration `env:"REMINDER_LEAD" envDefault:"1h"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://127.0.0.1:5173"`
	FrontendURL string   `env:"FRONTEND_URL" envDefault:"http://127.0.0.1:5173"`

	// Proxies whose X-Forwarded-For is believed; empty trusts none.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	SMTPAddr     string `env:"SMTP_ADDR"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"no-reply@votex.local"`

	DefaultCategories []string `env:"DEFAULT_CATEGORIES" envSeparator:"," envDefault:"Politics,Entertainment,Sports,Technology,Education,Business"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.EncryptionKey) < 32 {
		return errors.New("ENCRYPTION_KEY must be at least 32 bytes")
	}
	switch c.DatabaseType {
	case DatabasePostgres, DatabaseSQLite:
	default:
		return fmt.Errorf("unknown DATABASE_TYPE %q", c.DatabaseType)
	}
	if c.ReceiptThreshold < 2 || c.ReceiptThreshold > c.ReceiptShares || c.ReceiptShares > 255 {
		return fmt.Errorf("invalid receipt sharing %d-of-%d", c.ReceiptThreshold, c.ReceiptShares)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	for _, proxy := range c.TrustedProxies {
		if net.ParseIP(proxy) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			return fmt.Errorf("invalid TRUSTED_PROXIES entry %q", proxy)
		}
	}
	return nil
}

// Key returns the first 32 bytes of ENCRYPTION_KEY as a secretbox key.
func (c Config) Key() [32]byte {
	var key [32]byte
	copy(key[:], []byte(c.EncryptionKey))
	return key
}

// DSN builds the postgres connection string from the DB_* settings.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// GormConfig stores timestamps in UTC and translates driver errors such as
// unique violations into gorm.ErrDuplicatedKey.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}
}

// ConnectDatabase opens the configured database.
func ConnectDatabase(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseType {
	case DatabaseSQLite:
		dialector = sqlite.Open(cfg.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, GormConfig())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DatabaseType, err)
	}
	return db, nil
}
