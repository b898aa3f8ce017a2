package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "vision360", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "vision360/cameras/+/frames", cfg.MQTT.FrameTopic)
	assert.Equal(t, "vision360/cameras/+/heartbeat", cfg.MQTT.HeartbeatTopic)
	assert.Equal(t, "vision360/alerts", cfg.MQTT.AlertTopicPrefix)

	assert.Equal(t, float64(100), cfg.Thresholds.BlurThreshold)
	assert.Equal(t, float64(30), cfg.Thresholds.BrightnessMin)
	assert.Equal(t, float64(220), cfg.Thresholds.BrightnessMax)
	assert.Equal(t, 80, cfg.Thresholds.MinFaceSize)
	assert.Equal(t, float64(70), cfg.Thresholds.MinDetectionConfidence)
	assert.Equal(t, float64(80), cfg.Thresholds.FaceMatchThreshold)
	assert.Equal(t, float64(90), cfg.Thresholds.HighConfidenceCutoff)

	assert.Equal(t, "vision360:camera:", cfg.Cache.EventsKeyPrefix)
	assert.Equal(t, ":events", cfg.Cache.EventsSuffix)
	assert.Equal(t, 20, cfg.Cache.EventsLimit)

	assert.Equal(t, int64(60), int64(cfg.Liveness.HeartbeatTimeout.Seconds()))

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_NAME", "test-db")
	os.Setenv("REDIS_ADDR", "test-redis:6380")
	os.Setenv("FACE_MATCH_THRESHOLD", "85")
	os.Setenv("MIN_DETECTION_CONFIDENCE", "75")
	os.Setenv("HEARTBEAT_TIMEOUT_SEC", "90")
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, "test-db", cfg.Database.Database)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, float64(85), cfg.Thresholds.FaceMatchThreshold)
	assert.Equal(t, float64(75), cfg.Thresholds.MinDetectionConfidence)
	assert.Equal(t, int64(90), int64(cfg.Liveness.HeartbeatTimeout.Seconds()))
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_RejectsInvertedBrightnessBounds(t *testing.T) {
	os.Clearenv()
	os.Setenv("BRIGHTNESS_MIN", "200")
	os.Setenv("BRIGHTNESS_MAX", "100")
	defer os.Clearenv()

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "brightness min")
}

func TestLoad_RejectsNegativeBlurThreshold(t *testing.T) {
	os.Clearenv()
	os.Setenv("BLUR_THRESHOLD", "-1")
	defer os.Clearenv()

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "blur threshold")
}

func TestLoad_RejectsOutOfRangeFaceMatchThreshold(t *testing.T) {
	os.Clearenv()
	os.Setenv("FACE_MATCH_THRESHOLD", "120")
	defer os.Clearenv()

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "face match threshold")
}

func TestGetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "u",
		Password: "p",
		Database: "vision360",
		SSLMode:  "disable",
	}

	assert.Equal(t, "host=db port=5433 user=u password=p dbname=vision360 sslmode=disable", cfg.GetDSN())
}

func TestGetEnv(t *testing.T) {
	os.Clearenv()
	assert.Equal(t, "default-value", getEnv("TEST_KEY", "default-value"))

	os.Setenv("TEST_KEY", "env-value")
	defer os.Unsetenv("TEST_KEY")
	assert.Equal(t, "env-value", getEnv("TEST_KEY", "default-value"))
}
