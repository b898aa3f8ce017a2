package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// GetDSN builds the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig holds broker settings plus the topics the engine consumes and
// publishes. Camera topics use a single-level wildcard for the camera ID.
type MQTTConfig struct {
	Broker           string
	ClientID         string
	Username         string
	Password         string
	QoS              byte
	FrameTopic       string // e.g. "vision360/cameras/+/frames"
	HeartbeatTopic   string // e.g. "vision360/cameras/+/heartbeat"
	AlertTopicPrefix string // e.g. "vision360/alerts"
}

// MinioConfig holds the snapshot object-store settings.
type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PresignExpiry time.Duration
}

// RecognitionConfig holds the external detect-and-match service settings.
type RecognitionConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Thresholds are the tunable decision parameters. They are loaded once,
// validated at startup, and never mutated at runtime.
type Thresholds struct {
	BlurThreshold          float64 // variance-of-Laplacian minimum
	BrightnessMin          float64 // mean intensity lower bound
	BrightnessMax          float64 // mean intensity upper bound
	MinFaceSize            int     // minimum face size in pixels, forwarded to the recognizer
	MinDetectionConfidence float64 // person-detection cutoff, percent
	FaceMatchThreshold     float64 // similarity required to authorize, percent
	HighConfidenceCutoff   float64 // intruder confidence band boundary, percent
}

// Config is the process-wide configuration for the vision engine.
type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	MQTT        MQTTConfig
	Minio       MinioConfig
	Recognition RecognitionConfig
	Thresholds  Thresholds

	HTTP struct {
		Addr string
	}

	Cache struct {
		EventsKeyPrefix string // recent-events cache key prefix, e.g. "vision360:camera:"
		EventsSuffix    string // e.g. ":events"
		EventsTTL       int    // seconds
		EventsLimit     int    // entries kept per camera
		DegradedKey     string // degraded-mode flag key
		DegradedTTL     int    // seconds
	}

	Liveness struct {
		HeartbeatTimeout time.Duration
		ProbeInterval    time.Duration
	}

	Pipeline struct {
		QueueSize        int // per-camera frame queue depth
		DuplicateMaxBits int // max fingerprint hamming distance treated as duplicate
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from the environment (a .env file is honored when
// present) and validates it. The engine refuses to start on malformed
// thresholds rather than applying undefined comparisons.
func Load() (*Config, error) {
	// Best effort; a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "vision360")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "vision360-engine")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 1))
	cfg.MQTT.FrameTopic = getEnv("MQTT_FRAME_TOPIC", "vision360/cameras/+/frames")
	cfg.MQTT.HeartbeatTopic = getEnv("MQTT_HEARTBEAT_TOPIC", "vision360/cameras/+/heartbeat")
	cfg.MQTT.AlertTopicPrefix = getEnv("MQTT_ALERT_TOPIC_PREFIX", "vision360/alerts")

	cfg.Minio.Endpoint = getEnv("MINIO_ENDPOINT", "localhost:9000")
	cfg.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", "")
	cfg.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", "")
	cfg.Minio.Bucket = getEnv("MINIO_BUCKET", "vision360-snapshots")
	cfg.Minio.UseSSL = getEnv("MINIO_USE_SSL", "false") == "true"
	cfg.Minio.PresignExpiry = time.Duration(getEnvInt("MINIO_PRESIGN_EXPIRY_SEC", 86400)) * time.Second

	cfg.Recognition.BaseURL = getEnv("RECOGNITION_URL", "http://localhost:9200")
	cfg.Recognition.Timeout = time.Duration(getEnvInt("RECOGNITION_TIMEOUT_SEC", 5)) * time.Second

	cfg.Thresholds.BlurThreshold = getEnvFloat("BLUR_THRESHOLD", 100)
	cfg.Thresholds.BrightnessMin = getEnvFloat("BRIGHTNESS_MIN", 30)
	cfg.Thresholds.BrightnessMax = getEnvFloat("BRIGHTNESS_MAX", 220)
	cfg.Thresholds.MinFaceSize = getEnvInt("MIN_FACE_SIZE", 80)
	cfg.Thresholds.MinDetectionConfidence = getEnvFloat("MIN_DETECTION_CONFIDENCE", 70)
	cfg.Thresholds.FaceMatchThreshold = getEnvFloat("FACE_MATCH_THRESHOLD", 80)
	cfg.Thresholds.HighConfidenceCutoff = getEnvFloat("HIGH_CONFIDENCE_CUTOFF", 90)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Cache.EventsKeyPrefix = getEnv("CACHE_EVENTS_PREFIX", "vision360:camera:")
	cfg.Cache.EventsSuffix = ":events"
	cfg.Cache.EventsTTL = getEnvInt("CACHE_EVENTS_TTL", 300)
	cfg.Cache.EventsLimit = getEnvInt("CACHE_EVENTS_LIMIT", 20)
	cfg.Cache.DegradedKey = getEnv("CACHE_DEGRADED_KEY", "vision360:store:degraded")
	cfg.Cache.DegradedTTL = getEnvInt("CACHE_DEGRADED_TTL", 120)

	cfg.Liveness.HeartbeatTimeout = time.Duration(getEnvInt("HEARTBEAT_TIMEOUT_SEC", 60)) * time.Second
	cfg.Liveness.ProbeInterval = time.Duration(getEnvInt("LIVENESS_PROBE_INTERVAL_SEC", 15)) * time.Second

	cfg.Pipeline.QueueSize = getEnvInt("PIPELINE_QUEUE_SIZE", 16)
	cfg.Pipeline.DuplicateMaxBits = getEnvInt("DUPLICATE_MAX_BITS", 3)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations that would make quality-gate or
// classification comparisons undefined.
func (c *Config) Validate() error {
	t := c.Thresholds

	if t.BlurThreshold < 0 {
		return fmt.Errorf("invalid config: blur threshold must be non-negative, got %v", t.BlurThreshold)
	}
	if t.BrightnessMin < 0 || t.BrightnessMax > 255 {
		return fmt.Errorf("invalid config: brightness bounds must be within [0,255], got [%v,%v]",
			t.BrightnessMin, t.BrightnessMax)
	}
	if t.BrightnessMin >= t.BrightnessMax {
		return fmt.Errorf("invalid config: brightness min %v must be below max %v",
			t.BrightnessMin, t.BrightnessMax)
	}
	if t.MinFaceSize < 0 {
		return fmt.Errorf("invalid config: min face size must be non-negative, got %d", t.MinFaceSize)
	}
	if t.MinDetectionConfidence < 0 || t.MinDetectionConfidence > 100 {
		return fmt.Errorf("invalid config: detection confidence threshold must be within [0,100], got %v",
			t.MinDetectionConfidence)
	}
	if t.FaceMatchThreshold < 0 || t.FaceMatchThreshold > 100 {
		return fmt.Errorf("invalid config: face match threshold must be within [0,100], got %v",
			t.FaceMatchThreshold)
	}
	if t.HighConfidenceCutoff < t.MinDetectionConfidence || t.HighConfidenceCutoff > 100 {
		return fmt.Errorf("invalid config: high confidence cutoff must be within [%v,100], got %v",
			t.MinDetectionConfidence, t.HighConfidenceCutoff)
	}
	if c.Liveness.HeartbeatTimeout <= 0 {
		return fmt.Errorf("invalid config: heartbeat timeout must be positive, got %v",
			c.Liveness.HeartbeatTimeout)
	}
	if c.Pipeline.DuplicateMaxBits < 0 || c.Pipeline.DuplicateMaxBits > 64 {
		return fmt.Errorf("invalid config: duplicate max bits must be within [0,64], got %d",
			c.Pipeline.DuplicateMaxBits)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
