package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Tracing
	TracingEnabled      bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingOTLPEndpoint string `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingOTLPProtocol string `env:"TRACING_OTLP_PROTOCOL" env-default:"grpc"`

	// PostgreSQL (Match Database)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis (client snapshot cache)
	RedisHost        string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort        int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB          int           `env:"REDIS_DB" env-default:"0"`
	SnapshotCacheTTL time.Duration `env:"SNAPSHOT_CACHE_TTL" env-default:"24h"`

	// Place search provider
	PlacesBaseURL        string        `env:"PLACES_BASE_URL" env-default:"https://maps.googleapis.com/maps/api/place"`
	PlacesAPIKey         string        `env:"PLACES_API_KEY" env-default:""`
	PlacesRequestTimeout time.Duration `env:"PLACES_REQUEST_TIMEOUT" env-default:"15s"`

	// Text generation collaborator (narrative profile synthesis)
	TextGenBaseURL        string        `env:"TEXTGEN_BASE_URL" env-default:""`
	TextGenAPIKey         string        `env:"TEXTGEN_API_KEY" env-default:""`
	TextGenModel          string        `env:"TEXTGEN_MODEL" env-default:"gpt-4o-mini"`
	TextGenRequestTimeout time.Duration `env:"TEXTGEN_REQUEST_TIMEOUT" env-default:"30s"`

	// Kafka (match record change feed)
	KafkaBrokers          []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaMatchEventsTopic string   `env:"KAFKA_MATCH_EVENTS_TOPIC" env-default:"match-record-events"`
	KafkaConsumerGroup    string   `env:"KAFKA_CONSUMER_GROUP" env-default:"clover-view-consumer"`
	KafkaBatchSize        int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout     int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks     int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression      string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Discovery
	DiscoveryMaxResults     int           `env:"DISCOVERY_MAX_RESULTS" env-default:"20"`
	DiscoveryMaxTerms       int           `env:"DISCOVERY_MAX_TERMS" env-default:"8"`
	DiscoveryRefreshEnabled bool          `env:"DISCOVERY_REFRESH_ENABLED" env-default:"true"`
	DiscoveryRefreshCron    string        `env:"DISCOVERY_REFRESH_CRON" env-default:"0 */6 * * *"`
	DiscoveryRefreshMaxAge  time.Duration `env:"DISCOVERY_REFRESH_MAX_AGE" env-default:"6h"`

	// Sync view
	ViewPageSize     int           `env:"VIEW_PAGE_SIZE" env-default:"20"`
	ViewDebounce     time.Duration `env:"VIEW_DEBOUNCE" env-default:"400ms"`
	ViewFetchTimeout time.Duration `env:"VIEW_FETCH_TIMEOUT" env-default:"10s"`
}
