package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds runtime configuration for the API server and the in-process
// transcription worker.
type Config struct {
	Env         string
	HTTPPort    string
	MetricsAddr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// PostgresDSN selects the durable job store. When empty the service runs
	// with the in-memory store, intended for local development only.
	PostgresDSN string

	ScratchDir     string
	MaxUploadBytes int64
	ListLimit      int

	FFmpegBin string
	PythonBin string

	DefaultModelSize  string
	SegmentTimeout    time.Duration
	KeepAliveInterval time.Duration
	SubscriptionGrace time.Duration

	ArtifactDir         string
	ArtifactS3Bucket    string
	ArtifactS3Region    string
	ArtifactS3Endpoint  string
	ArtifactS3PathStyle bool

	RateLimitCapacity int
	RateLimitRefill   float64
}

// Load reads configuration from environment variables with sane defaults for
// local development.
func Load() Config {
	return Config{
		Env:         getEnv("APP_ENV", "dev"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		ScratchDir:     getEnv("SCRATCH_DIR", os.TempDir()),
		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 200*1024*1024),
		ListLimit:      getEnvInt("LIST_LIMIT", 20),

		FFmpegBin: getEnv("FFMPEG_BIN", "ffmpeg"),
		PythonBin: getEnv("PYTHON_BIN", "python3"),

		DefaultModelSize:  getEnv("DEFAULT_MODEL_SIZE", "base"),
		SegmentTimeout:    getEnvDuration("SEGMENT_TIMEOUT", 300*time.Second),
		KeepAliveInterval: getEnvDuration("KEEPALIVE_INTERVAL", 30*time.Second),
		SubscriptionGrace: getEnvDuration("SUBSCRIPTION_GRACE", 5*time.Minute),

		ArtifactDir:         getEnv("ARTIFACT_DIR", "./artifacts"),
		ArtifactS3Bucket:    getEnv("ARTIFACT_S3_BUCKET", ""),
		ArtifactS3Region:    getEnv("ARTIFACT_S3_REGION", "us-east-1"),
		ArtifactS3Endpoint:  getEnv("ARTIFACT_S3_ENDPOINT", ""),
		ArtifactS3PathStyle: getEnvBool("ARTIFACT_S3_PATH_STYLE", false),

		RateLimitCapacity: getEnvInt("RATE_LIMIT_CAPACITY", 20),
		RateLimitRefill:   getEnvFloat("RATE_LIMIT_REFILL_PER_SEC", 0.5),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
