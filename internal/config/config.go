package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Record store backends.
const (
	CollaboratorTableAPI = "tableapi"
	CollaboratorPostgres = "postgres"
)

// Choice cache backends.
const (
	ChoiceCacheMemory = "memory"
	ChoiceCacheRedis  = "redis"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	// Collaborator picks the record store: the remote table API or the local Postgres schema.
	Collaborator string

	TableAPI struct {
		URL     string
		Token   string
		Timeout time.Duration
	}

	ChoiceCache        string
	RedisURL           string
	ChoiceCacheTTL     time.Duration
	ChoiceFallbackFile string

	KafkaBrokers string
	KafkaTopic   string

	DedupDefault bool
	CORSOrigins  []string

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:            getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:           firstEnv("APP_PORT", "HTTP_PORT", "8098"),
		AppEnv:             getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Collaborator:       strings.ToLower(getEnv("COLLABORATOR", CollaboratorTableAPI)),
		ChoiceCache:        strings.ToLower(getEnv("CHOICE_CACHE", ChoiceCacheMemory)),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		ChoiceFallbackFile: getEnv("CHOICE_FALLBACK_FILE", ""),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:         getEnv("KAFKA_TOPIC_PORTAL", "problem-portal.events"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "")),
	}
	cfg.TableAPI.URL = getEnv("TABLE_API_URL", "")
	cfg.TableAPI.Token = getEnv("TABLE_API_TOKEN", "")

	var err error
	if cfg.TableAPI.Timeout, err = durationEnv("TABLE_API_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ChoiceCacheTTL, err = durationEnv("CHOICE_CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.DedupDefault, err = boolEnv("DEDUP_DEFAULT", false); err != nil {
		return nil, err
	}

	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "problem_portal")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Collaborator {
	case CollaboratorTableAPI:
		if c.TableAPI.URL == "" {
			return errors.New("config: TABLE_API_URL is required when COLLABORATOR=tableapi")
		}
		if _, err := url.ParseRequestURI(c.TableAPI.URL); err != nil {
			return fmt.Errorf("config: TABLE_API_URL: %w", err)
		}
	case CollaboratorPostgres:
		if err := c.ValidateDB(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("config: COLLABORATOR must be %s or %s, got %q", CollaboratorTableAPI, CollaboratorPostgres, c.Collaborator)
	}
	switch c.ChoiceCache {
	case ChoiceCacheMemory:
	case ChoiceCacheRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL is required when CHOICE_CACHE=redis")
		}
	default:
		return fmt.Errorf("config: CHOICE_CACHE must be %s or %s, got %q", ChoiceCacheMemory, ChoiceCacheRedis, c.ChoiceCache)
	}
	return nil
}

// ValidateDB checks the settings the Postgres store and migrations need.
func (c *Config) ValidateDB() error {
	if c.DB.Host == "" || c.DB.Database == "" {
		return errors.New("config: DB_HOST and DB_DATABASE are required")
	}
	if c.IsProduction() && c.DB.Password == "" {
		return errors.New("config: in production DB_PASSWORD is required")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
