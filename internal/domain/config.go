package domain

import (
	"time"
)

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Tier determines the default infrastructure
	Tier Tier `json:"tier" yaml:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"event_bus"`

	// Decisioning
	Scoring   ScoringConfig   `json:"scoring" yaml:"scoring"`
	Oracle    OracleConfig    `json:"oracle" yaml:"oracle"`
	Decisions DecisionsConfig `json:"decisions" yaml:"decisions"`

	// Access and audit
	Auth  AuthConfig  `json:"auth" yaml:"auth"`
	Audit AuditConfig `json:"audit" yaml:"audit"`

	// Outbound decision events
	Events EventsConfig `json:"events" yaml:"events"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"read_timeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"write_timeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"service_name"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// ScoringConfig holds the score range, vocabulary and loan tiers.
type ScoringConfig struct {
	MinScore int `json:"minScore" yaml:"min_score"`
	MaxScore int `json:"maxScore" yaml:"max_score"`

	// Currency code printed in approval messages
	Currency string `json:"currency" yaml:"currency"`

	// Optional YAML vocabulary replacing the built-in encoding tables
	VocabularyFile string `json:"vocabularyFile" yaml:"vocabulary_file"`

	// Evaluated highest MinScore first
	LoanTiers []LoanTier `json:"loanTiers" yaml:"loan_tiers"`
}

// OracleConfig selects and configures the classifier backend.
type OracleConfig struct {
	// Backend is "logistic", "onnx" or "remote"
	Backend string `json:"backend" yaml:"backend"`

	// Model artifact (logistic YAML or .onnx file)
	ModelPath string `json:"modelPath" yaml:"model_path"`

	// Class the raw model probability refers to
	PositiveClass PositiveClass `json:"positiveClass" yaml:"positive_class"`

	// ONNX runtime settings
	ONNXLibrary   string `json:"onnxLibrary" yaml:"onnx_library"`
	InputName     string `json:"inputName" yaml:"input_name"`
	OutputName    string `json:"outputName" yaml:"output_name"`
	PositiveIndex int    `json:"positiveIndex" yaml:"positive_index"`

	// Remote backend request timeout
	TimeoutMs int `json:"timeoutMs" yaml:"timeout_ms"`

	// Serve answers remote predict requests on the event bus
	Serve bool `json:"serve" yaml:"serve"`
}

// DecisionsConfig holds async decision settings.
type DecisionsConfig struct {
	// How long decision records stay retrievable
	ResultTTL time.Duration `json:"resultTtl" yaml:"result_ttl"`

	// Run the async worker in this process
	WorkerEnabled bool `json:"workerEnabled" yaml:"worker_enabled"`
}

// AuthConfig holds the credential store and login throttling settings.
type AuthConfig struct {
	DefaultAdminUsername string       `json:"defaultAdminUsername" yaml:"default_admin_username"`
	DefaultAdminPassword string       `json:"-" yaml:"default_admin_password"`
	BcryptCost           int          `json:"bcryptCost" yaml:"bcrypt_cost"`
	Users                []UserConfig `json:"users" yaml:"users"`

	// Failed attempts allowed per username within AttemptWindow
	MaxAttempts   int           `json:"maxAttempts" yaml:"max_attempts"`
	AttemptWindow time.Duration `json:"attemptWindow" yaml:"attempt_window"`
}

// UserConfig is one configured user with a bcrypt password hash.
type UserConfig struct {
	Username     string `json:"username" yaml:"username"`
	PasswordHash string `json:"-" yaml:"password_hash"`
	Role         Role   `json:"role" yaml:"role"`
}

// AuditConfig holds audit retention settings.
type AuditConfig struct {
	RetentionDays int    `json:"retentionDays" yaml:"retention_days"`
	PurgeCron     string `json:"purgeCron" yaml:"purge_cron"`
}

// EventsConfig selects the decision event publisher.
type EventsConfig struct {
	// Type is "none", "bus" or "kafka"
	Type         string   `json:"type" yaml:"type"`
	KafkaBrokers []string `json:"kafkaBrokers" yaml:"kafka_brokers"`
	KafkaTopic   string   `json:"kafkaTopic" yaml:"kafka_topic"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs everything in one process with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro uses PostgreSQL + NATS + Redis + Kafka
	TierPro Tier = "pro"
)

// DefaultLoanTiers returns the income multiplier table, highest first.
func DefaultLoanTiers() []LoanTier {
	return []LoanTier{
		{MinScore: 750, Multiplier: 3.0},
		{MinScore: 700, Multiplier: 2.5},
		{MinScore: 650, Multiplier: 2.0},
		{MinScore: 600, Multiplier: 1.5},
		{MinScore: 0, Multiplier: 1.0},
	}
}

// DefaultScoringConfig returns the 300-800 score range with KES amounts.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		MinScore:  300,
		MaxScore:  800,
		Currency:  "KES",
		LoanTiers: DefaultLoanTiers(),
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring: DefaultScoringConfig(),
		Oracle: OracleConfig{
			Backend:       "logistic",
			ModelPath:     "./configs/model.yaml",
			PositiveClass: PositiveApproval,
			InputName:     "float_input",
			OutputName:    "probabilities",
			PositiveIndex: 1,
			TimeoutMs:     2000,
		},
		Decisions: DecisionsConfig{
			ResultTTL:     24 * time.Hour,
			WorkerEnabled: true,
		},
		Auth: AuthConfig{
			DefaultAdminUsername: "admin",
			DefaultAdminPassword: "admin123",
			BcryptCost:           12,
			MaxAttempts:          5,
			AttemptWindow:        15 * time.Minute,
		},
		Audit: AuditConfig{
			RetentionDays: 90,
			PurgeCron:     "0 0 3 * * *",
		},
		Events: EventsConfig{
			Type:       "bus",
			KafkaTopic: "kestrel.decisions",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Events = EventsConfig{
		Type:         "kafka",
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "kestrel.decisions",
	}
	cfg.Tracing.Enabled = true
	return cfg
}
