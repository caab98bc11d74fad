package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	ServerPort  string
	GRPCPort    string
	Environment string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis configuration
	RedisAddress string
	ListCacheTTL time.Duration

	// Minimum gap between two profile mirror writes for one user
	ProfileSyncInterval time.Duration

	// Identity provider. JWKSURL wins over JWTSecret when both are set.
	JWTSecret string
	JWKSURL   string

	// Hosted realtime collaboration service
	RealtimeBaseURL   string
	RealtimeSecretKey string

	SessionTimeout time.Duration
	HealthInterval time.Duration
	WorkerCount    int

	FrontendAddress string
}

// Global application configuration
var AppConfig Config

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Find .env file
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Try to find .env in parent directories
		envPath = filepath.Join("..", ".env")
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			envPath = filepath.Join("..", "..", ".env")
		}
	}

	// Load .env file if it exists
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	AppConfig = Config{
		ServerPort:          getEnv("PORT", "8080"),
		GRPCPort:            getEnv("GRPC_PORT", "9090"),
		Environment:         getEnv("ENV", "development"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", "postgres"),
		DBName:              getEnv("DB_NAME", "collaborative_docs"),
		RedisAddress:        getEnv("REDIS_ADDRESS", "localhost:6379"),
		ListCacheTTL:        getDuration("LIST_CACHE_TTL", 10*time.Minute),
		ProfileSyncInterval: getDuration("PROFILE_SYNC_INTERVAL", time.Minute),
		JWTSecret:           os.Getenv("IDENTITY_JWT_SECRET"),
		JWKSURL:             os.Getenv("IDENTITY_JWKS_URL"),
		RealtimeBaseURL:     getEnv("REALTIME_BASE_URL", "https://api.liveblocks.io"),
		RealtimeSecretKey:   os.Getenv("REALTIME_SECRET_KEY"),
		SessionTimeout:      getDuration("SESSION_TIMEOUT", 5*time.Second),
		HealthInterval:      getDuration("HEALTH_INTERVAL", 15*time.Second),
		WorkerCount:         getInt("WORKER_COUNT", 4),
		FrontendAddress:     getEnv("FRONTEND_ADDRESS", "https://production-frontend.com"),
	}

	if AppConfig.JWTSecret == "" && AppConfig.JWKSURL == "" {
		log.Fatal("either IDENTITY_JWT_SECRET or IDENTITY_JWKS_URL must be set")
	}
	if AppConfig.RealtimeSecretKey == "" {
		log.Println("Warning: REALTIME_SECRET_KEY is empty, realtime session grants will be rejected upstream")
	}
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid duration for %s (%q), using %s\n", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		log.Printf("Warning: invalid integer for %s (%q), using %d\n", key, value, defaultValue)
		return defaultValue
	}
	return n
}
