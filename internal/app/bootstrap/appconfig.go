// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// Values come from OPPORTUNITYHUB_* environment variables, config files, or
// command-line flags (see LoadConfig). WAFFLE's CoreConfig keeps the
// framework-level settings: ports, TLS, logging level and environment.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Principal resolution
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions
	SessionDomain string // Cookie domain (blank means current host)
	JWTSecret     string // HS256 secret for bearer tokens; blank disables bearer auth

	// Attachment storage
	StorageType      string // "local" or "s3"
	StorageLocalPath string // Directory local uploads are written under
	StorageLocalURL  string // URL prefix local uploads are served from
	StoragePrefix    string // Key prefix inside the backend (e.g., "opportunities")

	// S3 configuration (only used if StorageType is "s3")
	StorageS3Region string
	StorageS3Bucket string
	StorageS3Prefix string

	// Domain events; blank RedisAddr disables publishing
	RedisAddr          string
	RedisChannelPrefix string

	// Comma-separated list of allowed CORS origins
	CORSOrigins string

	// Store deadlines
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration

	// Per-principal limit on mutating requests; zero disables
	RateLimitWrites int
	RateLimitWindow time.Duration

	// Cron schedule for removing saved rows whose opportunity is gone; blank disables
	OrphanSweepCron string
}
