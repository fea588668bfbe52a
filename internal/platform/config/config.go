// Package config loads service configuration from an optional YAML file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Config is the full server configuration.
type Config struct {
	Server      Server            `yaml:"server"`
	Log         Log               `yaml:"log"`
	Auth        Auth              `yaml:"auth"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Validation  Validation        `yaml:"validation"`
	RateLimit   RateLimit         `yaml:"rate_limit"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Auth struct {
	JWTSigningKey string        `yaml:"jwt_signing_key"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

// PostgresConfig holds the completed-profile database settings. An empty DSN
// keeps completed profiles in memory.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds the draft store settings. An empty URL keeps drafts in
// memory.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	DraftTTL     time.Duration `yaml:"draft_ttl"`
}

// KafkaConfig holds the event producer settings. No brokers keeps events in
// memory.
type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	Topic             string   `yaml:"topic"`
	Partitions        int32    `yaml:"partitions"`
	ReplicationFactor int16    `yaml:"replication_factor"`
}

// ObjectStoreConfig holds the document blob store settings. An empty
// endpoint keeps documents in memory.
type ObjectStoreConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	AccessKey     string        `yaml:"access_key"`
	SecretKey     string        `yaml:"secret_key"`
	Bucket        string        `yaml:"bucket"`
	UseSSL        bool          `yaml:"use_ssl"`
	PublicBaseURL string        `yaml:"public_base_url"`
	PresignTTL    time.Duration `yaml:"presign_ttl"`
}

// Validation points at optional cross-field rules.
type Validation struct {
	RulesFile string `yaml:"rules_file"`
}

// RateLimit bounds document uploads per organization. Zero uploads per
// window disables the limiter.
type RateLimit struct {
	UploadsPerWindow int           `yaml:"uploads_per_window"`
	Window           time.Duration `yaml:"window"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Log:  Log{Level: "info", Format: "text"},
		Auth: Auth{Issuer: "onboard", Audience: "onboard-api", TokenTTL: 12 * time.Hour},
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			DraftTTL:     30 * 24 * time.Hour,
		},
		Kafka: KafkaConfig{Topic: "profile.completed", Partitions: 3, ReplicationFactor: 1},
		ObjectStore: ObjectStoreConfig{
			Bucket:     "facility-documents",
			PresignTTL: 15 * time.Minute,
		},
		RateLimit: RateLimit{UploadsPerWindow: 30, Window: time.Minute},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if cfg.Auth.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.Auth.JWTSigningKey = devSigningKey
	}
	return cfg, cfg.Validate()
}

// FromEnv builds a config from defaults and environment variables only.
func FromEnv() (Config, error) {
	return Load("")
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("ONBOARD_ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("JWT_SIGNING_KEY", &c.Auth.JWTSigningKey)
	dur("JWT_TOKEN_TTL", &c.Auth.TokenTTL)
	str("DATABASE_URL", &c.Postgres.DSN)
	str("REDIS_URL", &c.Redis.URL)
	dur("DRAFT_TTL", &c.Redis.DraftTTL)
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	str("MINIO_ENDPOINT", &c.ObjectStore.Endpoint)
	str("MINIO_ACCESS_KEY", &c.ObjectStore.AccessKey)
	str("MINIO_SECRET_KEY", &c.ObjectStore.SecretKey)
	str("MINIO_BUCKET", &c.ObjectStore.Bucket)
	str("MINIO_PUBLIC_BASE_URL", &c.ObjectStore.PublicBaseURL)
	if v, ok := lookup("MINIO_USE_SSL"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MINIO_USE_SSL: %w", err))
		} else {
			c.ObjectStore.UseSSL = b
		}
	}
	str("VALIDATION_RULES_FILE", &c.Validation.RulesFile)
	if v, ok := lookup("UPLOAD_RATE_LIMIT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("UPLOAD_RATE_LIMIT: %w", err))
		} else {
			c.RateLimit.UploadsPerWindow = n
		}
	}
	dur("UPLOAD_RATE_WINDOW", &c.RateLimit.Window)
	return errors.Join(errs...)
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Redis.DraftTTL < 0 {
		errs = append(errs, errors.New("redis.draft_ttl must not be negative"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	if c.ObjectStore.Endpoint != "" && c.ObjectStore.Bucket == "" {
		errs = append(errs, errors.New("object_store.bucket is required when an endpoint is set"))
	}
	if c.RateLimit.UploadsPerWindow < 0 {
		errs = append(errs, errors.New("rate_limit.uploads_per_window must not be negative"))
	}
	if c.RateLimit.UploadsPerWindow > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.window must be positive when uploads are limited"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
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
