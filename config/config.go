package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Postgres PostgresConfig `koanf:"postgres"`
	Supabase SupabaseConfig `koanf:"supabase"`
	Auth     AuthConfig     `koanf:"auth"`
	Mongo    MongoConfig    `koanf:"mongo"`
	Redis    RedisConfig    `koanf:"redis"`
	Vector   VectorConfig   `koanf:"vector"`
	GCP      GCPConfig      `koanf:"gcp"`
	Chat     ChatConfig     `koanf:"chat"`
}

type ServerConfig struct {
	Port        string `koanf:"port"`
	LogLevel    string `koanf:"log_level"`
	TraceStdout bool   `koanf:"trace_stdout"`
}

// StoreConfig selects the backend that receives chat messages and leads.
type StoreConfig struct {
	Driver string `koanf:"driver"` // postgres|supabase
}

type PostgresConfig struct {
	URI string `koanf:"uri"`
}

type SupabaseConfig struct {
	URL string `koanf:"url"`
	Key string `koanf:"key"`
}

type AuthConfig struct {
	JWTSecret   string `koanf:"jwt_secret"`
	JWTIssuer   string `koanf:"jwt_issuer"`
	JWTAudience string `koanf:"jwt_audience"`
}

type MongoConfig struct {
	URI         string `koanf:"uri"`
	DB          string `koanf:"db"`
	ForceTLS    bool   `koanf:"force_tls"`
	InsecureTLS bool   `koanf:"insecure_tls"`
}

type RedisConfig struct {
	Addr string `koanf:"addr"`
	URL  string `koanf:"url"`
}

type VectorConfig struct {
	Driver           string `koanf:"driver"` // pgvector|qdrant
	QdrantURL        string `koanf:"qdrant_url"`
	QdrantAPIKey     string `koanf:"qdrant_api_key"`
	QdrantCollection string `koanf:"qdrant_collection"`
}

type GCPConfig struct {
	Project         string `koanf:"project"`
	Location        string `koanf:"location"`
	GeminiModel     string `koanf:"gemini_model"`
	ClassifierModel string `koanf:"classifier_model"`
	EmbeddingModel  string `koanf:"embedding_model"`
	Bucket          string `koanf:"bucket"`
}

type ChatConfig struct {
	SessionTTL           time.Duration `koanf:"session_ttl"`
	ConfigCacheTTL       time.Duration `koanf:"config_cache_ttl"`
	TurnLockTTL          time.Duration `koanf:"turn_lock_ttl"`
	VoiceBufferTTL       time.Duration `koanf:"voice_buffer_ttl"`
	VoiceWorkers         int           `koanf:"voice_workers"`
	IrrelevanceThreshold float64       `koanf:"irrelevance_threshold"`
}

// envKeys maps the supported environment variables onto config paths.
// Anything not listed is ignored.
var envKeys = map[string]string{
	"PORT":                   "server.port",
	"LOG_LEVEL":              "server.log_level",
	"TRACE_STDOUT":           "server.trace_stdout",
	"STORE_DRIVER":           "store.driver",
	"POSTGRES_URI":           "postgres.uri",
	"SUPABASE_URL":           "supabase.url",
	"SUPABASE_KEY":           "supabase.key",
	"SUPABASE_JWT_SECRET":    "auth.jwt_secret",
	"SUPABASE_JWT_ISSUER":    "auth.jwt_issuer",
	"SUPABASE_JWT_AUDIENCE":  "auth.jwt_audience",
	"MONGO_URI":              "mongo.uri",
	"MONGO_DB":               "mongo.db",
	"MONGO_FORCE_TLS_CONFIG": "mongo.force_tls",
	"MONGO_INSECURE_TLS":     "mongo.insecure_tls",
	"REDIS_ADDR":             "redis.addr",
	"REDIS_URL":              "redis.url",
	"VECTOR_DRIVER":          "vector.driver",
	"QDRANT_URL":             "vector.qdrant_url",
	"QDRANT_API_KEY":         "vector.qdrant_api_key",
	"QDRANT_COLLECTION":      "vector.qdrant_collection",
	"GCP_PROJECT":            "gcp.project",
	"GCP_LOCATION":           "gcp.location",
	"GEMINI_MODEL":           "gcp.gemini_model",
	"CLASSIFIER_MODEL":       "gcp.classifier_model",
	"EMBEDDING_MODEL":        "gcp.embedding_model",
	"GCS_BUCKET":             "gcp.bucket",
	"SESSION_TTL":            "chat.session_ttl",
	"CONFIG_CACHE_TTL":       "chat.config_cache_ttl",
	"TURN_LOCK_TTL":          "chat.turn_lock_ttl",
	"VOICE_BUFFER_TTL":       "chat.voice_buffer_ttl",
	"VOICE_WORKERS":          "chat.voice_workers",
	"IRRELEVANCE_THRESHOLD":  "chat.irrelevance_threshold",
}

var defaults = map[string]any{
	"server.port":                "8080",
	"server.log_level":           "info",
	"store.driver":               "postgres",
	"mongo.db":                   "botdesk",
	"vector.driver":              "pgvector",
	"vector.qdrant_collection":   "document_chunks",
	"gcp.location":               "us-central1",
	"gcp.gemini_model":           "gemini-1.5-flash",
	"gcp.classifier_model":       "gemini-1.5-flash",
	"gcp.embedding_model":        "text-embedding-004",
	"chat.session_ttl":           "24h",
	"chat.config_cache_ttl":      "5m",
	"chat.turn_lock_ttl":         "60s",
	"chat.voice_buffer_ttl":      "24h",
	"chat.voice_workers":         5,
	"chat.irrelevance_threshold": 0.7,
}

// Load reads the process environment into a Config. Call godotenv first if
// a .env file should be honoured.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[strings.TrimSpace(s)]
	}), nil); err != nil {
		return nil, err
	}

	for key, val := range defaults {
		if !k.Exists(key) || k.String(key) == "" {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = cfg.Redis.URL
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Vector.Driver = strings.ToLower(strings.TrimSpace(cfg.Vector.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	// Chatbot configuration and the dashboard always read from Postgres;
	// STORE_DRIVER only selects the chat write path.
	if c.Postgres.URI == "" {
		errs = append(errs, errors.New("POSTGRES_URI is required"))
	}

	switch c.Store.Driver {
	case "postgres":
	case "supabase":
		if c.Supabase.URL == "" || c.Supabase.Key == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_KEY are required when STORE_DRIVER=supabase"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	switch c.Vector.Driver {
	case "pgvector":
	case "qdrant":
		if c.Vector.QdrantURL == "" {
			errs = append(errs, errors.New("QDRANT_URL is required when VECTOR_DRIVER=qdrant"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown VECTOR_DRIVER %q", c.Vector.Driver))
	}

	if c.Mongo.URI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR (or REDIS_URL) is required"))
	}
	if c.Chat.IrrelevanceThreshold < 0 || c.Chat.IrrelevanceThreshold > 1 {
		errs = append(errs, fmt.Errorf("IRRELEVANCE_THRESHOLD %v must be within [0,1]", c.Chat.IrrelevanceThreshold))
	}

	return errors.Join(errs...)
}
