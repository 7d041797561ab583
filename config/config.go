package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	BotToken string
	ChatIDs  []int64

	SourceURL       string
	FetchBackend    string // "chrome" or "static"
	FetchTimeoutSec int

	CatalogBackend string // "csv" or "postgres"
	CatalogPath    string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	ExcludedDistrictsFile string
	UnresolvedCacheFile   string

	MinSize         float64
	MaxRent         float64
	RequireBalcony  bool
	PermitRoomLimit float64

	GeocodeURL        string
	GeocodeIntervalMs int

	MaxRetries     int
	MaxConcurrency int

	PollMinMinutes int
	PollMaxMinutes int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		BotToken: getEnv("BOT_TOKEN", ""),
		ChatIDs:  getEnvInt64List("CHAT_IDS"),

		SourceURL:       getEnv("SOURCE_URL", "https://inberlinwohnen.de/wohnungsfinder/"),
		FetchBackend:    getEnv("FETCH_BACKEND", "chrome"),
		FetchTimeoutSec: getEnvInt("FETCH_TIMEOUT_SEC", 16),

		CatalogBackend: getEnv("CATALOG_BACKEND", "csv"),
		CatalogPath:    getEnv("CATALOG_PATH", "listings.csv"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "flatwatch"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "flatwatch"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		ExcludedDistrictsFile: getEnv("EXCLUDED_DISTRICTS_FILE", "excluded_districts.yaml"),
		UnresolvedCacheFile:   getEnv("UNRESOLVED_CACHE_FILE", "unresolved_addresses.yaml"),

		MinSize:         getEnvFloat("MIN_SIZE", 56),
		MaxRent:         getEnvFloat("MAX_RENT", 800),
		RequireBalcony:  getEnvBool("REQUIRE_BALCONY", true),
		PermitRoomLimit: getEnvFloat("PERMIT_ROOM_LIMIT", 2),

		GeocodeURL:        getEnv("GEOCODE_URL", "https://nominatim.openstreetmap.org"),
		GeocodeIntervalMs: getEnvInt("GEOCODE_INTERVAL_MS", 1000),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),

		PollMinMinutes: getEnvInt("POLL_MIN_MINUTES", 28),
		PollMaxMinutes: getEnvInt("POLL_MAX_MINUTES", 142),
	}
}

// Validate checks the startup-fatal invariants. Anything caught here aborts
// the process before the poll loop starts; everything past this point is
// recoverable at runtime.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	if len(c.ChatIDs) == 0 {
		return errors.New("CHAT_IDS must name at least one recipient")
	}
	switch c.FetchBackend {
	case "chrome", "static":
	default:
		return fmt.Errorf("FETCH_BACKEND %q: must be chrome or static", c.FetchBackend)
	}
	switch c.CatalogBackend {
	case "csv", "postgres":
	default:
		return fmt.Errorf("CATALOG_BACKEND %q: must be csv or postgres", c.CatalogBackend)
	}
	if c.MinSize < 0 || c.MaxRent < 0 || c.PermitRoomLimit < 0 {
		return errors.New("filter thresholds must be non-negative")
	}
	if c.PollMinMinutes <= 0 || c.PollMaxMinutes < c.PollMinMinutes {
		return fmt.Errorf("poll interval range %d-%d minutes is invalid",
			c.PollMinMinutes, c.PollMaxMinutes)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

type districtsDoc struct {
	ExcludedDistricts []string `yaml:"excluded_districts"`
}

// LoadExcludedDistricts reads the human-editable YAML district list. A
// missing or malformed file degrades to an empty set; district exclusion is
// an optional criterion, not a startup requirement.
func LoadExcludedDistricts(path string) (map[string]struct{}, error) {
	set := make(map[string]struct{})

	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return set, fmt.Errorf("config: read %s: %w", path, err)
	}

	var doc districtsDoc
	if err := yaml.Unmarshal(payload, &doc); err != nil {
		return set, fmt.Errorf("config: parse %s: %w", path, err)
	}

	for _, d := range doc.ExcludedDistricts {
		if d = strings.TrimSpace(d); d != "" {
			set[d] = struct{}{}
		}
	}
	return set, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt64List(key string) []int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("[config] %s: skipping non-numeric entry %q", key, part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
