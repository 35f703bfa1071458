package config

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Validate reports the first invalid setting as a configuration error.
func Validate(cfg *domain.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return domain.ConfigError("server.port %d out of range", cfg.Server.Port)
	}

	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return domain.ConfigError("unsupported repository driver: %s", cfg.Repository.Driver)
	}
	switch cfg.Cache.Type {
	case "memory", "redis":
	default:
		return domain.ConfigError("unsupported cache type: %s", cfg.Cache.Type)
	}
	switch cfg.EventBus.Type {
	case "channel", "nats":
	default:
		return domain.ConfigError("unsupported event bus type: %s", cfg.EventBus.Type)
	}

	s := cfg.Scoring
	if s.MinScore >= s.MaxScore {
		return domain.ConfigError("scoring.min_score %d must be below max_score %d", s.MinScore, s.MaxScore)
	}
	if len(s.LoanTiers) == 0 {
		return domain.ConfigError("scoring.loan_tiers is empty")
	}

	switch cfg.Oracle.Backend {
	case "logistic", "onnx", "remote":
	default:
		return domain.ConfigError("unsupported oracle backend: %s", cfg.Oracle.Backend)
	}
	switch cfg.Oracle.PositiveClass {
	case domain.PositiveApproval, domain.PositiveDefault:
	default:
		return domain.ConfigError("oracle.positive_class must be approval or default, got %q", cfg.Oracle.PositiveClass)
	}
	if cfg.Oracle.Backend != "remote" && cfg.Oracle.ModelPath == "" {
		return domain.ConfigError("oracle.model_path is required for the %s backend", cfg.Oracle.Backend)
	}
	if cfg.Oracle.Backend == "remote" && cfg.Oracle.Serve {
		return domain.ConfigError("oracle.serve requires a local backend")
	}

	if cfg.Decisions.ResultTTL <= 0 {
		return domain.ConfigError("decisions.result_ttl must be positive")
	}

	a := cfg.Auth
	if a.BcryptCost < 4 || a.BcryptCost > 31 {
		return domain.ConfigError("auth.bcrypt_cost %d out of range 4-31", a.BcryptCost)
	}
	if a.MaxAttempts <= 0 || a.AttemptWindow <= 0 {
		return domain.ConfigError("auth.max_attempts and auth.attempt_window must be positive")
	}
	for _, u := range a.Users {
		if !u.Role.Valid() {
			return domain.ConfigError("user %q has invalid role %q", u.Username, u.Role)
		}
	}

	if cfg.Audit.RetentionDays <= 0 {
		return domain.ConfigError("audit.retention_days must be positive")
	}

	switch cfg.Events.Type {
	case "none", "bus":
	case "kafka":
		if len(cfg.Events.KafkaBrokers) == 0 || cfg.Events.KafkaTopic == "" {
			return domain.ConfigError("kafka events need events.kafka_brokers and events.kafka_topic")
		}
	default:
		return domain.ConfigError("unsupported events type: %s", cfg.Events.Type)
	}

	return nil
}
