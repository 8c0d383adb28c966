package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Port  string
	Debug bool

	DBDriver string
	DBURL    string

	MediaRoot string
	MediaURL  string
	Location  *time.Location

	RedisHost     string
	RedisPassword string
	CacheTTL      time.Duration

	KafkaBroker string
	KafkaTopic  string
	KafkaGroup  string

	ElasticsearchURL string
	SearchIndex      string

	SentryDSN  string
	AppEnv     string
	AppVersion string

	CORSOrigins []string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	ReminderSchedule string

	RatingIncludeUnapproved bool
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	loc, err := time.LoadLocation(getEnv("TIME_ZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE: %w", err)
	}

	ttl, err := time.ParseDuration(getEnv("CACHE_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		Debug:                   getBool("DEBUG", false),
		DBDriver:                getEnv("DB_DRIVER", "postgres"),
		DBURL:                   os.Getenv("DB_URL"),
		MediaRoot:               getEnv("MEDIA_ROOT", "media"),
		MediaURL:                normalizeMediaURL(getEnv("MEDIA_URL", "/media/")),
		Location:                loc,
		RedisHost:               os.Getenv("REDIS_HOST"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		CacheTTL:                ttl,
		KafkaBroker:             os.Getenv("KAFKA_BROKER"),
		KafkaTopic:              getEnv("KAFKA_TOPIC", "clinic_events"),
		KafkaGroup:              getEnv("KAFKA_GROUP", "vetclinic-group"),
		ElasticsearchURL:        os.Getenv("ELASTICSEARCH_URL"),
		SearchIndex:             getEnv("SEARCH_INDEX", "services"),
		SentryDSN:               os.Getenv("SENTRY_DSN"),
		AppEnv:                  getEnv("APP_ENV", "development"),
		AppVersion:              getEnv("APP_VERSION", "dev"),
		CORSOrigins:             getList("CORS_ORIGINS"),
		TwilioAccountSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:         os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:              os.Getenv("TWILIO_PHONE_NUMBER"),
		ReminderSchedule:        getEnv("REMINDER_SCHEDULE", "0 9 * * *"),
		RatingIncludeUnapproved: getBool("RATING_INCLUDE_UNAPPROVED", false),
	}

	if cfg.DBURL == "" {
		cfg.DBURL = defaultDSN(cfg.DBDriver)
	}
	return cfg, nil
}

// defaultDSN assembles a DSN from the discrete DB_* variables.
func defaultDSN(driver string) string {
	if driver == "sqlite" {
		return getEnv("DB_NAME", "vetclinic.db") + "?_pragma=foreign_keys(1)"
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_USER", "postgres"),
		os.Getenv("DB_PASSWORD"),
		getEnv("DB_NAME", "vetclinic"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_SSLMODE", "disable"),
	)
}

func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q: %v", key, v, err)
		return fallback
	}
	return b
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeMediaURL(u string) string {
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}
