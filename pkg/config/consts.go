package config

// EnvPrefix is passed to envconfig; individual fields carry explicit names so
// the prefix only matters for fields without a tag.
const EnvPrefix = "LIBRIS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "LIBRIS_APP_ENV"
	EnvPort     = "LIBRIS_APP_PORT"
	EnvDBDSN    = "LIBRIS_DB_DSN"
	EnvDBHost   = "LIBRIS_DB_HOST"
	EnvDBUser   = "LIBRIS_DB_USER"
	EnvDBName   = "LIBRIS_DB_NAME"
	EnvRedisURL = "LIBRIS_REDIS_URL"

	EnvJWTSecret         = "LIBRIS_JWT_SECRET"
	EnvJWTIssuer         = "LIBRIS_JWT_ISSUER"
	EnvJWTExpMins        = "LIBRIS_JWT_EXPIRATION_MINUTES"
	EnvSessionTTLMinutes = "LIBRIS_SESSION_TTL_MINUTES"
	EnvGoogleBooksAPIKey = "LIBRIS_GOOGLE_BOOKS_API_KEY"
	EnvAssistantAPIKey   = "LIBRIS_GEMINI_API_KEY"
	EnvFinesDailyRate    = "LIBRIS_FINES_DAILY_RATE"
	EnvAutoMigrate       = "LIBRIS_AUTO_MIGRATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
