package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Load env vars from .env file directly
func init() {
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist (e.g. in production),
		// but we should log it just in case.
		// However, mostly we want to rely on environment variables being set.
		// If we are in local dev, this helps.
		log.Println("No .env file found or error loading it, using system environment variables")
	}
}

// Config holds every environment-derived setting the gateway needs.
type Config struct {
	Env  string
	Host string
	Port string

	// DatabaseURL is read from SUPABASE_URL: the project's direct Postgres
	// connection string, used as a sqlx/lib/pq DSN rather than through
	// Supabase's REST client.
	DatabaseURL string
	// SupabaseKey is read from SUPABASE_KEY. It is accepted for parity
	// with the Job Store's documented credentials but unused by the
	// direct-SQL access path.
	SupabaseKey string

	DifyAPIURL         string
	DifyAPIKey         string
	DifyAllowServerKey bool

	ReplicateAPIKey string
	IPFSURL         string
	PublicURL       string

	LogLevel string
}

// Load reads and validates the gateway's required configuration,
// returning an error naming a missing required variable. When several
// are missing, which one is named is not defined.
func Load() (*Config, error) {
	cfg := &Config{
		Env:                getEnv("NODE_ENV", getEnv("ENV", "development")),
		Host:                getEnv("HOST", "0.0.0.0"),
		Port:                getEnv("PORT", "8223"),
		DatabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseKey:        os.Getenv("SUPABASE_KEY"),
		DifyAPIURL:         os.Getenv("DIFY_API_URL"),
		DifyAPIKey:         os.Getenv("DIFY_API_KEY"),
		DifyAllowServerKey: strings.EqualFold(os.Getenv("DIFY_ALLOW_SERVER_KEY"), "true"),
		ReplicateAPIKey:    os.Getenv("REPLICATE_API_KEY"),
		IPFSURL:            getEnv("IPFS_URL", "https://ipfs.infura.io:5001"),
		PublicURL:          os.Getenv("PUBLIC_URL"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
	}

	required := map[string]string{
		"SUPABASE_URL":      cfg.DatabaseURL,
		"SUPABASE_KEY":      cfg.SupabaseKey,
		"DIFY_API_URL":      cfg.DifyAPIURL,
		"REPLICATE_API_KEY": cfg.ReplicateAPIKey,
		"PUBLIC_URL":        cfg.PublicURL,
	}
	for name, value := range required {
		if value == "" {
			return nil, fmt.Errorf("%s environment variable is required", name)
		}
	}

	return cfg, nil
}

// Addr returns the host:port bind address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetAllowedOrigins returns a slice of allowed origins from the environment variable.
// It defaults to localhost:3000 if not set.
func GetAllowedOrigins() []string {
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr == "" {
		return []string{"http://localhost:3000"}
	}

	// Split by comma and trim spaces
	parts := strings.Split(originsStr, ",")
	var origins []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
