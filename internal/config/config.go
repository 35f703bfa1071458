// Package config loads the Kestrel configuration from tier defaults, an
// optional YAML file and KESTREL_* environment variables.
package config

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration. A missing file at path is tolerated.
func Load(path string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	if strings.EqualFold(os.Getenv("KESTREL_TIER"), string(domain.TierPro)) {
		cfg = domain.ProConfig()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Warn("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, domain.ConfigError("read %s: %v", path, err)
		default:
			if err := overlay(cfg, data); err != nil {
				return nil, domain.ConfigError("parse %s: %v", path, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay decodes YAML on top of cfg. Unknown keys are rejected.
func overlay(cfg *domain.Config, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *domain.Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.ConfigError("%s: %v", key, err)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return domain.ConfigError("%s: %v", key, err)
		}
		*dst = b
		return nil
	}

	str("KESTREL_HOST", &cfg.Server.Host)
	str("KESTREL_LOG_LEVEL", &cfg.Logging.Level)
	str("KESTREL_LOG_FORMAT", &cfg.Logging.Format)
	str("KESTREL_DB_DRIVER", &cfg.Repository.Driver)
	str("KESTREL_SQLITE_PATH", &cfg.Repository.SQLitePath)
	str("KESTREL_POSTGRES_HOST", &cfg.Repository.PostgresHost)
	str("KESTREL_POSTGRES_USER", &cfg.Repository.PostgresUser)
	str("KESTREL_POSTGRES_PASSWORD", &cfg.Repository.PostgresPassword)
	str("KESTREL_POSTGRES_DB", &cfg.Repository.PostgresDB)
	str("KESTREL_CACHE", &cfg.Cache.Type)
	str("KESTREL_REDIS_ADDR", &cfg.Cache.RedisAddr)
	str("KESTREL_REDIS_PASSWORD", &cfg.Cache.RedisPassword)
	str("KESTREL_EVENT_BUS", &cfg.EventBus.Type)
	str("KESTREL_NATS_URL", &cfg.EventBus.NATSUrl)
	str("KESTREL_NATS_TOKEN", &cfg.EventBus.NATSToken)
	str("KESTREL_ORACLE_BACKEND", &cfg.Oracle.Backend)
	str("KESTREL_MODEL_PATH", &cfg.Oracle.ModelPath)
	str("KESTREL_ONNX_LIBRARY", &cfg.Oracle.ONNXLibrary)
	str("KESTREL_VOCABULARY_FILE", &cfg.Scoring.VocabularyFile)
	str("KESTREL_ADMIN_USERNAME", &cfg.Auth.DefaultAdminUsername)
	str("KESTREL_ADMIN_PASSWORD", &cfg.Auth.DefaultAdminPassword)
	str("KESTREL_EVENTS", &cfg.Events.Type)
	str("KESTREL_KAFKA_TOPIC", &cfg.Events.KafkaTopic)

	if v, ok := os.LookupEnv("KESTREL_KAFKA_BROKERS"); ok {
		cfg.Events.KafkaBrokers = splitList(v)
	}
	if v, ok := os.LookupEnv("KESTREL_POSITIVE_CLASS"); ok {
		cfg.Oracle.PositiveClass = domain.PositiveClass(v)
	}
	if os.Getenv("KESTREL_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}

	for key, dst := range map[string]*int{
		"KESTREL_PORT":            &cfg.Server.Port,
		"KESTREL_POSTGRES_PORT":   &cfg.Repository.PostgresPort,
		"KESTREL_BCRYPT_COST":     &cfg.Auth.BcryptCost,
		"KESTREL_RETENTION_DAYS":  &cfg.Audit.RetentionDays,
		"KESTREL_ORACLE_TIMEOUT":  &cfg.Oracle.TimeoutMs,
		"KESTREL_MAX_LOGIN_TRIES": &cfg.Auth.MaxAttempts,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*bool{
		"KESTREL_WORKER_ENABLED":  &cfg.Decisions.WorkerEnabled,
		"KESTREL_TRACING_ENABLED": &cfg.Tracing.Enabled,
		"KESTREL_METRICS_ENABLED": &cfg.Metrics.Enabled,
		"KESTREL_ORACLE_SERVE":    &cfg.Oracle.Serve,
	} {
		if err := flag(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
