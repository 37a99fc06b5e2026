package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	OrgVoterSalt      string
	VoteSigningSecret string
	TokenTTL          time.Duration

	EnableElectionStateConsumer bool
	EnableResultsNotifier       bool
}

func Load() (Config, error) {
	// Local development reads .env when present; real deployments inject the
	// environment directly.
	_ = godotenv.Load()

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "ballotbox"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	tokenTTL := 14 * 24 * time.Hour
	if raw := strings.TrimSpace(os.Getenv("TOKEN_TTL_HOURS")); raw != "" {
		if hours, err := strconv.Atoi(raw); err == nil && hours > 0 {
			tokenTTL = time.Duration(hours) * time.Hour
		}
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		OrgVoterSalt:      os.Getenv("ORG_VOTER_SALT"),
		VoteSigningSecret: os.Getenv("VOTE_SIGNING_SECRET"),
		TokenTTL:          tokenTTL,

		EnableElectionStateConsumer: envBool("ENABLE_ELECTION_STATE_CONSUMER", true),
		EnableResultsNotifier:       envBool("ENABLE_RESULTS_NOTIFIER", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
