package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean. Store and external-service settings are grouped per backend.
type Config struct {
	Addr          string
	JWTSigningKey string

	// DatabaseURL points at the live report store (Postgres). Empty means
	// in-memory stores, which is the test and local-dev default.
	DatabaseURL string

	// RedisURL backs the quota ledger. Empty means the in-memory ledger.
	RedisURL string

	// Firestore holds the cold store for aged-out reports.
	FirestoreProjectID  string
	FirestoreCollection string

	S3 S3Config

	Geocode    GeocodeConfig
	Moderation ModerationConfig

	// SubmitDailyLimit caps reports per source per UTC day.
	SubmitDailyLimit int

	// AgingInterval is how often the age-out job runs; AgingRetention is how
	// old a report must be before it is moved to the cold store.
	AgingInterval  time.Duration
	AgingRetention time.Duration

	// KafkaBrokers/KafkaAuditTopic enable the audit fan-out when set.
	KafkaBrokers    []string
	KafkaAuditTopic string
}

// S3Config holds the object storage settings for report images.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	EndpointURL     string
	PublicBaseURL   string
}

// GeocodeConfig holds the external geocoder settings.
type GeocodeConfig struct {
	APIKey string
	// Country is the ISO 3166-1 alpha-2 code results must fall in.
	Country string
	Timeout time.Duration
}

// ModerationConfig holds the sentiment classifier settings. The thresholds
// are deliberately configurable: where the cut-off for "negative" sits is a
// policy decision, not a code constant.
type ModerationConfig struct {
	APIKey string
	// ScoreThreshold rejects notes with sentiment score at or below it.
	ScoreThreshold float64
	// MagnitudeThreshold additionally requires this much signal strength.
	MagnitudeThreshold float64
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:          envOr("SIGHTLINE_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),

		FirestoreProjectID:  os.Getenv("FIRESTORE_PROJECT_ID"),
		FirestoreCollection: envOr("FIRESTORE_COLD_COLLECTION", "aged_reports"),

		S3: S3Config{
			Region:          envOr("S3_REGION", "us-east-1"),
			Bucket:          envOr("S3_BUCKET", "sightline-images"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			EndpointURL:     os.Getenv("S3_ENDPOINT_URL"),
			PublicBaseURL:   envOr("S3_PUBLIC_BASE_URL", "https://images.sightline.example"),
		},

		Geocode: GeocodeConfig{
			APIKey:  os.Getenv("GEOCODE_API_KEY"),
			Country: envOr("GEOCODE_COUNTRY", "US"),
			Timeout: envDurationOr("GEOCODE_TIMEOUT", 10*time.Second),
		},

		Moderation: ModerationConfig{
			APIKey:             os.Getenv("MODERATION_API_KEY"),
			ScoreThreshold:     envFloatOr("MODERATION_SCORE_THRESHOLD", -0.4),
			MagnitudeThreshold: envFloatOr("MODERATION_MAGNITUDE_THRESHOLD", 0.5),
		},

		SubmitDailyLimit: envIntOr("SUBMIT_DAILY_LIMIT", 10),

		AgingInterval:  envDurationOr("AGING_INTERVAL", 24*time.Hour),
		AgingRetention: envDurationOr("AGING_RETENTION", 7*24*time.Hour),

		KafkaBrokers:    splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
		KafkaAuditTopic: envOr("KAFKA_AUDIT_TOPIC", "sightline.audit"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
