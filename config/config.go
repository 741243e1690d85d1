package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Media     MediaConfig
	Telemetry TelemetryConfig
	CORS      CORSConfig
	Lifecycle LifecycleConfig
	Seed      SeedConfig
}

type ServerConfig struct {
	Port            string
	GinMode         string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL string
	// Driver selects the store implementation: "postgres" or "memory".
	Driver string
}

type JWTConfig struct {
	Secret             string
	ExpiryHours        int
	RefreshExpiryHours int
}

type RedisConfig struct {
	URL     string
	Channel string
}

type MediaConfig struct {
	Driver              string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSBucket           string
	UploadDir           string
	BaseURL             string
}

type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
	OTLPInsecure bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

// SeedConfig controls the demo data written at startup.
type SeedConfig struct {
	Demo          bool
	AdminEmail    string
	AdminPassword string
}

type LifecycleConfig struct {
	// RequireManualProgress makes CompleteWork count only servicer-authored
	// progress entries.
	RequireManualProgress   bool
	PaymentReminderAfter    time.Duration
	PaymentReminderInterval time.Duration
}

var AppConfig *Config

func Load() {
	AppConfig = &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			GinMode:         getEnv("GIN_MODE", "debug"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:    getEnv("DB_URL", ""),
			Driver: getEnv("STORE_DRIVER", "postgres"),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "your-super-secret-jwt-key-change-this-in-production"),
			ExpiryHours:        getEnvAsInt("JWT_EXPIRY_HOURS", 24),
			RefreshExpiryHours: getEnvAsInt("REFRESH_EXPIRY_HOURS", 24*30),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			Channel: getEnv("REDIS_CHANNEL", "booking:events"),
		},
		Media: MediaConfig{
			Driver:              getEnv("MEDIA_DRIVER", "local"),
			CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
			AWSRegion:           getEnv("AWS_REGION", ""),
			AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
			AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
			AWSBucket:           getEnv("AWS_S3_BUCKET", ""),
			UploadDir:           getEnv("UPLOAD_DIR", "./uploads"),
			BaseURL:             getEnv("BASE_URL", "http://localhost:8080"),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("SERVICE_NAME", "vehicle-service-server"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Lifecycle: LifecycleConfig{
			RequireManualProgress:   getEnvAsBool("REQUIRE_MANUAL_PROGRESS", false),
			PaymentReminderAfter:    getEnvAsDuration("PAYMENT_REMINDER_AFTER", 24*time.Hour),
			PaymentReminderInterval: getEnvAsDuration("PAYMENT_REMINDER_INTERVAL", time.Hour),
		},
		Seed: SeedConfig{
			Demo:          getEnvAsBool("SEED_DEMO", false),
			AdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@vehicleservice.local"),
			AdminPassword: getEnv("SEED_ADMIN_PASSWORD", "Admin@12345"),
		},
	}
}

// Default returns a configuration with every value at its default, ignoring
// the environment. Used by tests.
func Default() *Config {
	cfg := &Config{}
	cfg.Server = ServerConfig{Port: "8080", GinMode: "test", ShutdownTimeout: 10 * time.Second}
	cfg.Database = DatabaseConfig{Driver: "memory"}
	cfg.JWT = JWTConfig{Secret: "test-secret", ExpiryHours: 24, RefreshExpiryHours: 24 * 30}
	cfg.Redis = RedisConfig{Channel: "booking:events"}
	cfg.Media = MediaConfig{Driver: "local", UploadDir: os.TempDir(), BaseURL: "http://localhost:8080"}
	cfg.Telemetry = TelemetryConfig{ServiceName: "vehicle-service-server"}
	cfg.CORS = CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}}
	cfg.Lifecycle = LifecycleConfig{PaymentReminderAfter: 24 * time.Hour, PaymentReminderInterval: time.Hour}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
