// Package config loads the process configuration shared by the gateway, the
// read API and the activity indexer.
package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	GatewayAddr string `env:"GATEWAY_ADDR,default=:8080" validate:"required"`
	APIAddr     string `env:"API_ADDR,default=:8081" validate:"required"`
	IndexerAddr string `env:"INDEXER_METRICS_ADDR,default=:9102" validate:"required"`
	LogLevel    string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`

	JWTSecret string        `env:"JWT_SECRET,required=true" validate:"required,min=16"`
	JWTIssuer string        `env:"JWT_ISSUER,default=commune-chat"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=24h" validate:"gt=0"`

	StoreDriver    string `env:"STORE_DRIVER,default=scylla" validate:"oneof=scylla postgres memory"`
	ScyllaHosts    string `env:"SCYLLA_HOSTS,default=localhost:9042"`
	ScyllaKeyspace string `env:"SCYLLA_KEYSPACE,default=chat"`
	PostgresDSN    string `env:"POSTGRES_DSN" validate:"required_if=StoreDriver postgres"`
	AutoMigrate    bool   `env:"AUTO_MIGRATE,default=false"`
	SnowflakeNode  int    `env:"SNOWFLAKE_NODE,default=1" validate:"gte=0,lte=1023"`

	// Empty RedisAddr disables presence tracking.
	RedisAddr string `env:"REDIS_ADDR"`
	// Empty KafkaBrokers makes the gateway record activity directly.
	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=chat-messages-stored"`
	KafkaGroupID string `env:"KAFKA_GROUP_ID,default=chat-activity-indexer"`

	AllowedOrigins    string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxFrameSize      int           `env:"MAX_FRAME_SIZE,default=4096" validate:"gt=0"`
	MaxMessageLength  int           `env:"MAX_MESSAGE_LENGTH,default=2000" validate:"gt=0"`
	SendBuffer        int           `env:"SEND_BUFFER,default=256" validate:"gt=0"`
	RateLimitBurst    int           `env:"RATE_LIMIT_BURST,default=10" validate:"gt=0"`
	RateLimitRefill   time.Duration `env:"RATE_LIMIT_REFILL,default=1s" validate:"gt=0"`
	OrderedRooms      bool          `env:"ORDERED_ROOMS,default=false"`
	MessageEventAlias string        `env:"MESSAGE_EVENT_ALIAS"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME,default=commune-chat"`
}

var validate = validator.New()

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.Validate()
}

// FromMap decodes a configuration from explicit key/value pairs.
func FromMap(values map[string]string) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(env.EnvSet(values), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c Config) Scylla() []string { return splitList(c.ScyllaHosts) }

func (c Config) Kafka() []string { return splitList(c.KafkaBrokers) }

func (c Config) Origins() []string { return splitList(c.AllowedOrigins) }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
