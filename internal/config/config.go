package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"gstrecon/internal/reconcile"
)

// Config holds all application configuration.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	S3     S3Config
	Log    LogConfig
	CORS   CORSConfig
	Email  EmailConfig
	Redis  RedisConfig
	Recon  ReconConfig
}

// EmailConfig holds risk alert delivery settings.
type EmailConfig struct {
	Provider        string   `mapstructure:"provider"`
	Region          string   `mapstructure:"region"`
	FromAddress     string   `mapstructure:"from_address"`
	FromName        string   `mapstructure:"from_name"`
	FrontendURL     string   `mapstructure:"frontend_url"`
	AlertRecipients []string `mapstructure:"alert_recipients"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	MaxBodyMB    int64         `mapstructure:"max_body_mb"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds report archive settings. An empty bucket disables archiving.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Prefix        string `mapstructure:"prefix"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RedisConfig holds the run cache settings. An empty address disables the cache.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// ReconConfig holds the engine tolerances and weights.
type ReconConfig struct {
	AbsTolerance       string        `mapstructure:"abs_tolerance"`
	RelTolerance       string        `mapstructure:"rel_tolerance"`
	RoundingBand       string        `mapstructure:"rounding_band"`
	WeightAmount       float64       `mapstructure:"weight_amount"`
	WeightTax          float64       `mapstructure:"weight_tax"`
	WeightSeverity     float64       `mapstructure:"weight_severity"`
	WeightHistory      float64       `mapstructure:"weight_history"`
	IncidentalSeverity float64       `mapstructure:"incidental_severity"`
	HighThreshold      int           `mapstructure:"high_threshold"`
	MediumThreshold    int           `mapstructure:"medium_threshold"`
	VendorRatioWeight  float64       `mapstructure:"vendor_ratio_weight"`
	VendorMismatch     float64       `mapstructure:"vendor_mismatch_weight"`
	RatioAmplifier     float64       `mapstructure:"ratio_amplifier"`
	TrendBand          int           `mapstructure:"trend_band"`
	LooseGSTINMatch    bool          `mapstructure:"loose_gstin_match"`
	Workers            int           `mapstructure:"workers"`
	MaxRecords         int           `mapstructure:"max_records"`
	RunTimeout         time.Duration `mapstructure:"run_timeout"`
}

// Engine converts the settings into an engine configuration.
func (r *ReconConfig) Engine() (reconcile.Config, error) {
	cfg := reconcile.DefaultConfig()
	var err error
	if cfg.AbsTolerance, err = decimal.NewFromString(r.AbsTolerance); err != nil {
		return cfg, fmt.Errorf("recon.abs_tolerance: %w", err)
	}
	if cfg.RelTolerance, err = decimal.NewFromString(r.RelTolerance); err != nil {
		return cfg, fmt.Errorf("recon.rel_tolerance: %w", err)
	}
	if cfg.RoundingBand, err = decimal.NewFromString(r.RoundingBand); err != nil {
		return cfg, fmt.Errorf("recon.rounding_band: %w", err)
	}
	cfg.Weights = reconcile.Weights{
		Amount:   r.WeightAmount,
		Tax:      r.WeightTax,
		Severity: r.WeightSeverity,
		History:  r.WeightHistory,
	}
	cfg.IncidentalSeverity = r.IncidentalSeverity
	cfg.HighThreshold = r.HighThreshold
	cfg.MediumThreshold = r.MediumThreshold
	cfg.VendorRatioWeight = r.VendorRatioWeight
	cfg.VendorMismatchWeight = r.VendorMismatch
	cfg.RatioAmplifier = r.RatioAmplifier
	cfg.TrendBand = r.TrendBand
	cfg.LooseGSTINMatch = r.LooseGSTINMatch
	cfg.Workers = r.Workers
	return cfg, nil
}

// Load reads configuration from environment variables with the GSTRECON_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GSTRECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_body_mb", 32)

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "gstrecon")
	v.SetDefault("db.password", "gstrecon_secret")
	v.SetDefault("db.name", "gstrecon_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "ap-south-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.prefix", "reports")
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "text")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173")

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "ap-south-1")
	v.SetDefault("email.from_address", "alerts@gstrecon.local")
	v.SetDefault("email.from_name", "GST Reconciliation")
	v.SetDefault("email.frontend_url", "http://localhost:3000")
	v.SetDefault("email.alert_recipients", "")

	// Redis defaults
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")
	v.SetDefault("redis.lock_ttl", "2m")

	// Reconciliation defaults
	v.SetDefault("recon.abs_tolerance", "1")
	v.SetDefault("recon.rel_tolerance", "0.0001")
	v.SetDefault("recon.rounding_band", "0.02")
	v.SetDefault("recon.weight_amount", 30)
	v.SetDefault("recon.weight_tax", 20)
	v.SetDefault("recon.weight_severity", 30)
	v.SetDefault("recon.weight_history", 20)
	v.SetDefault("recon.incidental_severity", 0.35)
	v.SetDefault("recon.high_threshold", 70)
	v.SetDefault("recon.medium_threshold", 40)
	v.SetDefault("recon.vendor_ratio_weight", 70)
	v.SetDefault("recon.vendor_mismatch_weight", 30)
	v.SetDefault("recon.ratio_amplifier", 2.5)
	v.SetDefault("recon.trend_band", 5)
	v.SetDefault("recon.loose_gstin_match", true)
	v.SetDefault("recon.workers", 0)
	v.SetDefault("recon.max_records", 200000)
	v.SetDefault("recon.run_timeout", "2m")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                  "GSTRECON_SERVER_PORT",
		"server.read_timeout":          "GSTRECON_SERVER_READ_TIMEOUT",
		"server.write_timeout":         "GSTRECON_SERVER_WRITE_TIMEOUT",
		"server.environment":           "GSTRECON_SERVER_ENVIRONMENT",
		"server.max_body_mb":           "GSTRECON_SERVER_MAX_BODY_MB",
		"db.host":                      "GSTRECON_DB_HOST",
		"db.port":                      "GSTRECON_DB_PORT",
		"db.user":                      "GSTRECON_DB_USER",
		"db.password":                  "GSTRECON_DB_PASSWORD",
		"db.name":                      "GSTRECON_DB_NAME",
		"db.sslmode":                   "GSTRECON_DB_SSLMODE",
		"db.max_open":                  "GSTRECON_DB_MAX_OPEN",
		"db.max_idle":                  "GSTRECON_DB_MAX_IDLE",
		"s3.region":                    "GSTRECON_S3_REGION",
		"s3.bucket":                    "GSTRECON_S3_BUCKET",
		"s3.endpoint":                  "GSTRECON_S3_ENDPOINT",
		"s3.access_key":                "GSTRECON_S3_ACCESS_KEY",
		"s3.secret_key":                "GSTRECON_S3_SECRET_KEY",
		"s3.prefix":                    "GSTRECON_S3_PREFIX",
		"s3.presign_expiry":            "GSTRECON_S3_PRESIGN_EXPIRY",
		"log.level":                    "GSTRECON_LOG_LEVEL",
		"log.format":                   "GSTRECON_LOG_FORMAT",
		"cors.allowed_origins":         "GSTRECON_CORS_ALLOWED_ORIGINS",
		"email.provider":               "GSTRECON_EMAIL_PROVIDER",
		"email.region":                 "GSTRECON_EMAIL_REGION",
		"email.from_address":           "GSTRECON_EMAIL_FROM_ADDRESS",
		"email.from_name":              "GSTRECON_EMAIL_FROM_NAME",
		"email.frontend_url":           "GSTRECON_EMAIL_FRONTEND_URL",
		"email.alert_recipients":       "GSTRECON_EMAIL_ALERT_RECIPIENTS",
		"redis.addr":                   "GSTRECON_REDIS_ADDR",
		"redis.password":               "GSTRECON_REDIS_PASSWORD",
		"redis.db":                     "GSTRECON_REDIS_DB",
		"redis.ttl":                    "GSTRECON_REDIS_TTL",
		"redis.lock_ttl":               "GSTRECON_REDIS_LOCK_TTL",
		"recon.abs_tolerance":          "GSTRECON_RECON_ABS_TOLERANCE",
		"recon.rel_tolerance":          "GSTRECON_RECON_REL_TOLERANCE",
		"recon.rounding_band":          "GSTRECON_RECON_ROUNDING_BAND",
		"recon.weight_amount":          "GSTRECON_RECON_WEIGHT_AMOUNT",
		"recon.weight_tax":             "GSTRECON_RECON_WEIGHT_TAX",
		"recon.weight_severity":        "GSTRECON_RECON_WEIGHT_SEVERITY",
		"recon.weight_history":         "GSTRECON_RECON_WEIGHT_HISTORY",
		"recon.incidental_severity":    "GSTRECON_RECON_INCIDENTAL_SEVERITY",
		"recon.high_threshold":         "GSTRECON_RECON_HIGH_THRESHOLD",
		"recon.medium_threshold":       "GSTRECON_RECON_MEDIUM_THRESHOLD",
		"recon.vendor_ratio_weight":    "GSTRECON_RECON_VENDOR_RATIO_WEIGHT",
		"recon.vendor_mismatch_weight": "GSTRECON_RECON_VENDOR_MISMATCH_WEIGHT",
		"recon.ratio_amplifier":        "GSTRECON_RECON_RATIO_AMPLIFIER",
		"recon.trend_band":             "GSTRECON_RECON_TREND_BAND",
		"recon.loose_gstin_match":      "GSTRECON_RECON_LOOSE_GSTIN_MATCH",
		"recon.workers":                "GSTRECON_RECON_WORKERS",
		"recon.max_records":            "GSTRECON_RECON_MAX_RECORDS",
		"recon.run_timeout":            "GSTRECON_RECON_RUN_TIMEOUT",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if GSTRECON_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("GSTRECON_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
		MaxBodyMB:    v.GetInt64("server.max_body_mb"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		Prefix:        v.GetString("s3.prefix"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
	}
	cfg.Email = EmailConfig{
		Provider:        v.GetString("email.provider"),
		Region:          v.GetString("email.region"),
		FromAddress:     v.GetString("email.from_address"),
		FromName:        v.GetString("email.from_name"),
		FrontendURL:     v.GetString("email.frontend_url"),
		AlertRecipients: splitList(v.GetString("email.alert_recipients")),
	}
	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
		TTL:      v.GetDuration("redis.ttl"),
		LockTTL:  v.GetDuration("redis.lock_ttl"),
	}
	cfg.Recon = ReconConfig{
		AbsTolerance:       v.GetString("recon.abs_tolerance"),
		RelTolerance:       v.GetString("recon.rel_tolerance"),
		RoundingBand:       v.GetString("recon.rounding_band"),
		WeightAmount:       v.GetFloat64("recon.weight_amount"),
		WeightTax:          v.GetFloat64("recon.weight_tax"),
		WeightSeverity:     v.GetFloat64("recon.weight_severity"),
		WeightHistory:      v.GetFloat64("recon.weight_history"),
		IncidentalSeverity: v.GetFloat64("recon.incidental_severity"),
		HighThreshold:      v.GetInt("recon.high_threshold"),
		MediumThreshold:    v.GetInt("recon.medium_threshold"),
		VendorRatioWeight:  v.GetFloat64("recon.vendor_ratio_weight"),
		VendorMismatch:     v.GetFloat64("recon.vendor_mismatch_weight"),
		RatioAmplifier:     v.GetFloat64("recon.ratio_amplifier"),
		TrendBand:          v.GetInt("recon.trend_band"),
		LooseGSTINMatch:    v.GetBool("recon.loose_gstin_match"),
		Workers:            v.GetInt("recon.workers"),
		MaxRecords:         v.GetInt("recon.max_records"),
		RunTimeout:         v.GetDuration("recon.run_timeout"),
	}

	if _, err := cfg.Recon.Engine(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList parses a comma-separated env value.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
