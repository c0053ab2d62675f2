package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMongo      = "mongo"
	DriverClickHouse = "clickhouse"
	DriverPostgres   = "postgres"
	DriverSQLite     = "sqlite"
	DriverMemory     = "memory"

	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"

	defaultPort       = "8080"
	defaultMongoURL   = "mongodb://localhost:27017"
	defaultMongoDB    = "analytics"
	defaultSQLitePath = "sitepulse.db"
	defaultKafkaTopic = "tracking-events"
	defaultOrigin     = "http://localhost:3000"
)

// Config is the runtime configuration. Values come from an optional YAML file
// and are then overridden by environment variables.
type Config struct {
	Port      string   `yaml:"port"`
	Env       string   `yaml:"env"`
	GinMode   string   `yaml:"gin_mode"`
	PublicURL string   `yaml:"public_url"`
	Origins   []string `yaml:"allowed_origins"`

	Store      StoreConfig      `yaml:"store"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	RedisURL   string           `yaml:"redis_url"`
	GeoIPPath  string           `yaml:"geoip_db_path"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	LLM        LLMConfig        `yaml:"llm"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	MongoURL    string `yaml:"mongodb_url"`
	MongoDB     string `yaml:"mongodb_db_name"`
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
}

type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"native_port"`
	Database string `yaml:"db_name"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

type DashboardConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	APIKeyHash string `yaml:"api_key_hash"`
}

// Guarded reports whether dashboard routes require credentials.
func (d DashboardConfig) Guarded() bool {
	return d.JWTSecret != "" || d.APIKeyHash != ""
}

func defaults() *Config {
	return &Config{
		Port:    defaultPort,
		Env:     "production",
		Origins: []string{defaultOrigin},
		Store: StoreConfig{
			Driver:     DriverMongo,
			MongoURL:   defaultMongoURL,
			MongoDB:    defaultMongoDB,
			SQLitePath: defaultSQLitePath,
		},
		ClickHouse: ClickHouseConfig{Port: 9000},
		Kafka:      KafkaConfig{Topic: defaultKafkaTopic},
	}
}

// Load reads .env, the optional YAML file at path and the environment, in that
// order of increasing precedence.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := defaults()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.Env, "APP_ENV")
	setString(&c.GinMode, "GIN_MODE")
	setString(&c.PublicURL, "PUBLIC_URL")
	if v := firstEnv("FE_ORIGINS", "FE_ORIGIN"); v != "" {
		c.Origins = splitList(v)
	}

	setString(&c.Store.Driver, "STORE_DRIVER")
	setString(&c.Store.MongoURL, "MONGODB_URL")
	setString(&c.Store.MongoDB, "MONGODB_DB_NAME")
	setString(&c.Store.DatabaseURL, "DATABASE_URL")
	setString(&c.Store.SQLitePath, "SQLITE_PATH")

	setString(&c.ClickHouse.Host, "CLICKHOUSE_HOST")
	setString(&c.ClickHouse.Database, "CLICKHOUSE_DB_NAME")
	setString(&c.ClickHouse.Username, "CLICKHOUSE_USERNAME")
	setString(&c.ClickHouse.Password, "CLICKHOUSE_PASSWORD")
	if v := os.Getenv("CLICKHOUSE_NATIVE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CLICKHOUSE_NATIVE_PORT: %w", err)
		}
		c.ClickHouse.Port = port
	}

	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.GeoIPPath, "GEOIP_DB_PATH")
	setString(&c.Kafka.Brokers, "KAFKA_BROKERS")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")

	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	if c.LLM.APIKey == "" {
		// Key name used by the first deployments, which only spoke to Gemini.
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			c.LLM.APIKey = v
			if c.LLM.Provider == "" {
				c.LLM.Provider = ProviderGemini
			}
		}
	}

	setString(&c.Dashboard.JWTSecret, "DASHBOARD_JWT_SECRET")
	setString(&c.Dashboard.APIKeyHash, "DASHBOARD_API_KEY_HASH")
	return nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.PublicURL = strings.TrimRight(strings.TrimSpace(c.PublicURL), "/")
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = defaultKafkaTopic
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverMongo, DriverClickHouse, DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.LLM.Provider {
	case "", ProviderAnthropic, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLM.Provider)
	}
	return nil
}

// IsDevelopment switches logging to the console encoder.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
