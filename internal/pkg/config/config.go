package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"installment-ledger/internal/pkg/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds server-level config
type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	LogLevel string `yaml:"level"`
}

// MongoDB connection config
type MongoConfig struct {
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	URI             string        `yaml:"uri"`
	DBName          string        `yaml:"db_name"`
	MaxPoolSize     uint64        `yaml:"max_pool_size"`
	MinPoolSize     uint64        `yaml:"min_pool_size"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// Redis connection config
type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	EnableTLS      bool          `yaml:"enable_tls"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	CertContent    string        `yaml:"cert_content"`
}

// Kafka connection config
type KafkaConfig struct {
	Server           string `yaml:"server"`
	LedgerTopic      string `yaml:"ledger_topic"`
	SecurityProtocol string `yaml:"security_protocol"`
	SASLMechanism    string `yaml:"sasl_mechanism"`
	SASLUsername     string `yaml:"sasl_username"`
	SASLPassword     string `yaml:"sasl_password"`
	SessionTimeoutMs int    `yaml:"session_timeout_ms"`
	ClientID         string `yaml:"client_id"`
}

type PubSubConfig struct {
	ProjectID              string `yaml:"project_id"`
	CollectionSubscription string `yaml:"collection_subscription"`
	NotificationTopic      string `yaml:"notification_topic"`
	MaxOutstandingMessages int    `yaml:"max_outstanding_messages"`
}

type GCSConfig struct {
	BucketName string `yaml:"bucket_name"`
	FolderName string `yaml:"folder_name"`
}

type OtelConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ServiceName  string `yaml:"service_name"`
	CollectorURL string `yaml:"collector_url"`
}

// LedgerConfig carries the scheduling calendar and the concurrency knobs of the ledger.
type LedgerConfig struct {
	Timezone            string        `yaml:"timezone"`
	RestDay             string        `yaml:"rest_day"`
	DefaultWeekday      string        `yaml:"default_weekday"`
	DefaultMonthlyDay   int           `yaml:"default_monthly_day"`
	MonthlyPivotDay     int           `yaml:"monthly_pivot_day"`
	MaxActiveLoanGroups int           `yaml:"max_active_loan_groups"`
	LockTTL             time.Duration `yaml:"lock_ttl"`
	LockWait            time.Duration `yaml:"lock_wait"`
	MaxConflictRetries  int           `yaml:"max_conflict_retries"`
	CalendarCacheTTL    time.Duration `yaml:"calendar_cache_ttl"`
}

type DeductionSweepConfig struct {
	WorkerCount int `yaml:"worker_count"`
	BufferSize  int `yaml:"buffer_size"`

	// MarkerTTL expires per-member sweep markers left behind by a crashed replica.
	MarkerTTL time.Duration `yaml:"marker_ttl"`
}

type KafkaRetryServiceConfig struct {
	RetryStartDate string        `yaml:"retry_start_date"`
	WorkerCount    int           `yaml:"worker_count"`
	BufferSize     int           `yaml:"buffer_size"`
	MaxBatchSize   int           `yaml:"max_batch_size"`
	MongoBatchSize int32         `yaml:"mongo_batch_size"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
}

// AppConfig is the main config struct that holds all configs
type AppConfig struct {
	Server            ServerConfig            `yaml:"server"`
	Mongo             MongoConfig             `yaml:"mongo"`
	Redis             RedisConfig             `yaml:"redis"`
	Kafka             KafkaConfig             `yaml:"kafka"`
	PubSub            PubSubConfig            `yaml:"pubsub"`
	Logging           LogConfig               `yaml:"logging"`
	GCS               GCSConfig               `yaml:"gcs"`
	Otel              OtelConfig              `yaml:"otel"`
	Ledger            LedgerConfig            `yaml:"ledger"`
	DeductionSweep    DeductionSweepConfig    `yaml:"deduction_sweep"`
	KafkaRetryService KafkaRetryServiceConfig `yaml:"kafka_retry_service"`
}

// Location resolves the ledger timezone. Calendar days for duplicate detection and
// due dates are computed in this location.
func (l LedgerConfig) Location() *time.Location {
	if loc, err := time.LoadLocation(l.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// nolint: funlen
func assignDefaultConfigValues(cfg *AppConfig) *AppConfig {

	cfg.Server.Port = GetEnvOrDefaultAsInt("SERVER_PORT", orInt(cfg.Server.Port, 8080))

	cfg.Logging.LogLevel = GetEnvOrDefaultAsString("LOGGING_LEVEL", orString(cfg.Logging.LogLevel, "info"))

	// MongoDB config defaults
	cfg.Mongo.URI = GetEnvOrDefaultAsString("MONGO_URI", cfg.Mongo.URI)
	cfg.Mongo.DBName = GetEnvOrDefaultAsString("MONGO_DB_NAME", cfg.Mongo.DBName)
	cfg.Mongo.Username = GetEnvOrDefaultAsString("MONGO_USERNAME", cfg.Mongo.Username)
	cfg.Mongo.Password = GetEnvOrDefaultAsString("MONGO_PASSWORD", cfg.Mongo.Password)
	cfg.Mongo.MaxPoolSize = GetEnvOrDefaultAsUint64("MONGO_MAX_POOL_SIZE", cfg.Mongo.MaxPoolSize)
	cfg.Mongo.MinPoolSize = GetEnvOrDefaultAsUint64("MONGO_MIN_POOL_SIZE", cfg.Mongo.MinPoolSize)
	cfg.Mongo.MaxConnIdleTime = GetEnvOrDefaultAsDuration("MONGO_MAX_CONN_IDLE_TIME",
		orDuration(cfg.Mongo.MaxConnIdleTime, 30*time.Minute))
	cfg.Mongo.ConnectTimeout = GetEnvOrDefaultAsDuration("MONGO_CONNECT_TIMEOUT",
		orDuration(cfg.Mongo.ConnectTimeout, 10*time.Second))

	// Redis config defaults
	cfg.Redis.Addr = GetEnvOrDefaultAsString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = GetEnvOrDefaultAsString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = GetEnvOrDefaultAsInt("REDIS_DB", cfg.Redis.DB)
	if v, ok := os.LookupEnv("REDIS_ENABLE_TLS"); ok {
		cfg.Redis.EnableTLS = v == "1" || v == "true"
	}
	cfg.Redis.ConnectTimeout = GetEnvOrDefaultAsDuration("REDIS_CONNECT_TIMEOUT",
		orDuration(cfg.Redis.ConnectTimeout, 10*time.Second))
	cfg.Redis.CertContent = GetEnvOrDefaultAsString("REDIS_TLS_CERT", cfg.Redis.CertContent)

	// Kafka config defaults
	cfg.Kafka.Server = GetEnvOrDefaultAsString("KAFKA_SERVER", cfg.Kafka.Server)
	cfg.Kafka.LedgerTopic = GetEnvOrDefaultAsString("KAFKA_LEDGER_TOPIC", cfg.Kafka.LedgerTopic)
	cfg.Kafka.SecurityProtocol = GetEnvOrDefaultAsString("KAFKA_SECURITY_PROTOCOL", cfg.Kafka.SecurityProtocol)
	cfg.Kafka.SASLMechanism = GetEnvOrDefaultAsString("KAFKA_SASL_MECHANISM", cfg.Kafka.SASLMechanism)
	cfg.Kafka.SASLUsername = GetEnvOrDefaultAsString("KAFKA_SASL_USERNAME", cfg.Kafka.SASLUsername)
	cfg.Kafka.SASLPassword = GetEnvOrDefaultAsString("KAFKA_SASL_PASSWORD", cfg.Kafka.SASLPassword)
	cfg.Kafka.SessionTimeoutMs = GetEnvOrDefaultAsInt("KAFKA_SESSION_TIMEOUT_MS", orInt(cfg.Kafka.SessionTimeoutMs, 15000))
	cfg.Kafka.ClientID = GetEnvOrDefaultAsString("KAFKA_CLIENT_ID", orString(cfg.Kafka.ClientID, "installment-ledger"))

	// PubSub config defaults
	cfg.PubSub.ProjectID = GetEnvOrDefaultAsString("PROJECT_ID", cfg.PubSub.ProjectID)
	cfg.PubSub.CollectionSubscription = GetEnvOrDefaultAsString("PUBSUB_COLLECTION_SUBSCRIPTION",
		cfg.PubSub.CollectionSubscription)
	cfg.PubSub.NotificationTopic = GetEnvOrDefaultAsString("PUBSUB_NOTIFICATION_TOPIC",
		cfg.PubSub.NotificationTopic)
	cfg.PubSub.MaxOutstandingMessages = GetEnvOrDefaultAsInt("PUBSUB_MAX_OUTSTANDING_MESSAGES",
		orInt(cfg.PubSub.MaxOutstandingMessages, 10))

	cfg.GCS.BucketName = GetEnvOrDefaultAsString("GCS_BUCKET_NAME", cfg.GCS.BucketName)
	cfg.GCS.FolderName = GetEnvOrDefaultAsString("GCS_FOLDER_NAME", orString(cfg.GCS.FolderName, "deduction-sweeps"))

	if v, ok := os.LookupEnv("OTEL_ENABLED"); ok {
		cfg.Otel.Enabled = v == "1" || v == "true"
	}
	cfg.Otel.ServiceName = GetEnvOrDefaultAsString("OTEL_SERVICE_NAME", orString(cfg.Otel.ServiceName, "installment-ledger"))
	cfg.Otel.CollectorURL = GetEnvOrDefaultAsString("OTEL_COLLECTOR_URL", cfg.Otel.CollectorURL)

	// Ledger defaults
	cfg.Ledger.Timezone = GetEnvOrDefaultAsString("LEDGER_TIMEZONE", orString(cfg.Ledger.Timezone, "Asia/Dhaka"))
	cfg.Ledger.RestDay = GetEnvOrDefaultAsString("LEDGER_REST_DAY", orString(cfg.Ledger.RestDay, "Friday"))
	cfg.Ledger.DefaultWeekday = GetEnvOrDefaultAsString("LEDGER_DEFAULT_WEEKDAY",
		orString(cfg.Ledger.DefaultWeekday, "Saturday"))
	cfg.Ledger.DefaultMonthlyDay = GetEnvOrDefaultAsInt("LEDGER_DEFAULT_MONTHLY_DAY", orInt(cfg.Ledger.DefaultMonthlyDay, 20))
	cfg.Ledger.MonthlyPivotDay = GetEnvOrDefaultAsInt("LEDGER_MONTHLY_PIVOT_DAY", orInt(cfg.Ledger.MonthlyPivotDay, 15))
	cfg.Ledger.MaxActiveLoanGroups = GetEnvOrDefaultAsInt("LEDGER_MAX_ACTIVE_LOAN_GROUPS",
		orInt(cfg.Ledger.MaxActiveLoanGroups, 2))
	cfg.Ledger.LockTTL = GetEnvOrDefaultAsDuration("LEDGER_LOCK_TTL", orDuration(cfg.Ledger.LockTTL, 15*time.Second))
	cfg.Ledger.LockWait = GetEnvOrDefaultAsDuration("LEDGER_LOCK_WAIT", orDuration(cfg.Ledger.LockWait, 5*time.Second))
	cfg.Ledger.MaxConflictRetries = GetEnvOrDefaultAsInt("LEDGER_MAX_CONFLICT_RETRIES",
		orInt(cfg.Ledger.MaxConflictRetries, 3))
	cfg.Ledger.CalendarCacheTTL = GetEnvOrDefaultAsDuration("LEDGER_CALENDAR_CACHE_TTL",
		orDuration(cfg.Ledger.CalendarCacheTTL, 24*time.Hour))

	cfg.DeductionSweep.WorkerCount = GetEnvOrDefaultAsInt("SWEEP_WORKER_COUNT", orInt(cfg.DeductionSweep.WorkerCount, 4))
	cfg.DeductionSweep.BufferSize = GetEnvOrDefaultAsInt("SWEEP_BUFFER_SIZE", orInt(cfg.DeductionSweep.BufferSize, 64))
	cfg.DeductionSweep.MarkerTTL = GetEnvOrDefaultAsDuration("SWEEP_MARKER_TTL",
		orDuration(cfg.DeductionSweep.MarkerTTL, 2*time.Hour))

	cfg.KafkaRetryService.RetryStartDate = GetEnvOrDefaultAsString("RETRY_START_DATE",
		cfg.KafkaRetryService.RetryStartDate)
	cfg.KafkaRetryService.WorkerCount = GetEnvOrDefaultAsInt("WORKER_COUNT", orInt(cfg.KafkaRetryService.WorkerCount, 4))
	cfg.KafkaRetryService.BufferSize = GetEnvOrDefaultAsInt("BUFFER_SIZE", orInt(cfg.KafkaRetryService.BufferSize, 100))
	cfg.KafkaRetryService.MaxBatchSize = GetEnvOrDefaultAsInt("MAX_BATCH_SIZE", orInt(cfg.KafkaRetryService.MaxBatchSize, 50))
	cfg.KafkaRetryService.MongoBatchSize = GetEnvOrDefaultAsInt32("MONGO_BATCH_SIZE",
		orInt32(cfg.KafkaRetryService.MongoBatchSize, 100))
	cfg.KafkaRetryService.FlushInterval = GetEnvOrDefaultAsDuration("FLUSH_INTERVAL",
		orDuration(cfg.KafkaRetryService.FlushInterval, 500*time.Millisecond))
	return cfg
}

// LoadFromConfigFilePath loads and parses config file into AppConfig
func LoadFromConfigFilePath(configPath string) (*AppConfig, error) {

	// #nosec G304: configPath comes from the deployment environment
	data, err := os.ReadFile(configPath)
	if err != nil {
		logger.Error("Failed to read config file", err, slog.String("path", configPath))
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("Failed to unmarshal config", err)
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	defaultCfg := assignDefaultConfigValues(&cfg)

	if err := validateConfig(defaultCfg); err != nil {
		logger.Error("Config validation failed", err)
		return nil, err
	}

	logger.Info("Configuration loaded successfully", slog.String("path", configPath))

	return defaultCfg, nil
}

// LoadFromConfig loads an optional .env file and then the config file named by CONFIG_PATH.
func LoadFromConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to load .env file", slog.String("error", err.Error()))
	}

	configPath := GetEnvOrDefaultAsString("CONFIG_PATH", "configs/config.yaml")

	cfg, err := LoadFromConfigFilePath(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	return cfg, nil
}

func validateConfig(cfg *AppConfig) error {
	if err := validateMongoConfig(cfg.Mongo); err != nil {
		return err
	}
	if err := validateKafkaConfig(cfg.Kafka); err != nil {
		return err
	}
	if err := validateLedgerConfig(cfg.Ledger); err != nil {
		return err
	}
	if cfg.DeductionSweep.WorkerCount < 1 || cfg.DeductionSweep.WorkerCount > 64 {
		return fmt.Errorf("deduction_sweep.worker_count must be between 1 and 64, got %d",
			cfg.DeductionSweep.WorkerCount)
	}
	if cfg.DeductionSweep.MarkerTTL < time.Minute {
		return fmt.Errorf("deduction_sweep.marker_ttl must be at least 1m, got %v", cfg.DeductionSweep.MarkerTTL)
	}
	return nil
}

func validateMongoConfig(mongo MongoConfig) error {
	if mongo.MinPoolSize < 5 || mongo.MinPoolSize > 10 {
		return fmt.Errorf("mongo.min_pool_size must be between 5 and 10, got %d", mongo.MinPoolSize)
	}

	if mongo.MaxPoolSize < 10 || mongo.MaxPoolSize > 50 {
		return fmt.Errorf("mongo.max_pool_size must be between 10 and 50, got %d", mongo.MaxPoolSize)
	}

	minIdle := 20 * time.Minute
	maxIdle := 30 * time.Minute
	if mongo.MaxConnIdleTime < minIdle || mongo.MaxConnIdleTime > maxIdle {
		return fmt.Errorf("mongo.max_conn_idle_time must be between %v and %v, got %v",
			minIdle, maxIdle, mongo.MaxConnIdleTime)
	}

	return nil
}

func validateKafkaConfig(kafka KafkaConfig) error {
	if kafka.SessionTimeoutMs < 10000 || kafka.SessionTimeoutMs > 15000 {
		return fmt.Errorf("kafka.session_timeout_ms must be between 10000 and 15000 ms, got %d",
			kafka.SessionTimeoutMs)
	}
	return nil
}

func validateLedgerConfig(ledger LedgerConfig) error {
	if _, err := time.LoadLocation(ledger.Timezone); err != nil {
		return fmt.Errorf("ledger.timezone %q is not a valid location: %w", ledger.Timezone, err)
	}
	if ledger.DefaultMonthlyDay < 1 || ledger.DefaultMonthlyDay > 31 {
		return fmt.Errorf("ledger.default_monthly_day must be between 1 and 31, got %d", ledger.DefaultMonthlyDay)
	}
	if ledger.MonthlyPivotDay < 1 || ledger.MonthlyPivotDay > 28 {
		return fmt.Errorf("ledger.monthly_pivot_day must be between 1 and 28, got %d", ledger.MonthlyPivotDay)
	}
	if ledger.MaxActiveLoanGroups < 1 {
		return fmt.Errorf("ledger.max_active_loan_groups must be positive, got %d", ledger.MaxActiveLoanGroups)
	}
	if ledger.LockWait > ledger.LockTTL {
		return fmt.Errorf("ledger.lock_wait (%v) must not exceed ledger.lock_ttl (%v)", ledger.LockWait, ledger.LockTTL)
	}
	if ledger.MaxConflictRetries < 0 || ledger.MaxConflictRetries > 10 {
		return fmt.Errorf("ledger.max_conflict_retries must be between 0 and 10, got %d", ledger.MaxConflictRetries)
	}
	return nil
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orInt32(v, def int32) int32 {
	if v == 0 {
		return def
	}
	return v
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

// GetEnvOrDefaultAsInt returns the value of the given env variable
// as an int or the default value if not set or invalid.
func GetEnvOrDefaultAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return int(value)
}

// GetEnvOrDefaultAsString returns the value of the given env variable or the default value if not set.
func GetEnvOrDefaultAsString(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		if val != "" {
			return val
		}
	}
	return defaultVal
}

func GetEnvOrDefaultAsUint64(key string, defaultValue uint64) uint64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvOrDefaultAsInt32(key string, defaultValue int32) int32 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 32)
	if err != nil {
		return defaultValue
	}
	return int32(value)
}

// GetEnvOrDefaultAsDuration parses values such as "15s" or "30m".
func GetEnvOrDefaultAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
