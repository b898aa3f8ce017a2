package consumer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/frnnnnn/Vision360/internal/config"
	"github.com/frnnnnn/Vision360/internal/models"
	"github.com/frnnnnn/Vision360/internal/mqttclient"
	"github.com/frnnnnn/Vision360/internal/pipeline"
)

// MQTTConsumer subscribes to the camera topics and feeds the engine.
// Topic layout:
//
//	vision360/cameras/<camera_id>/frames     base64 JPEG + timestamp
//	vision360/cameras/<camera_id>/heartbeat  timestamp
type MQTTConsumer struct {
	cfg    *config.Config
	client *mqttclient.Client
	engine *pipeline.Engine
	logger *zap.Logger
}

func NewMQTTConsumer(
	cfg *config.Config,
	client *mqttclient.Client,
	engine *pipeline.Engine,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		cfg:    cfg,
		client: client,
		engine: engine,
		logger: logger,
	}
}

// Start subscribes to the frame and heartbeat topics.
func (c *MQTTConsumer) Start() error {
	if err := c.client.Subscribe(c.cfg.MQTT.FrameTopic, c.handleFrame); err != nil {
		return fmt.Errorf("failed to subscribe to frames: %w", err)
	}
	if err := c.client.Subscribe(c.cfg.MQTT.HeartbeatTopic, c.handleHeartbeat); err != nil {
		return fmt.Errorf("failed to subscribe to heartbeats: %w", err)
	}

	c.logger.Info("mqtt consumer started",
		zap.String("frame_topic", c.cfg.MQTT.FrameTopic),
		zap.String("heartbeat_topic", c.cfg.MQTT.HeartbeatTopic))
	return nil
}

func (c *MQTTConsumer) handleFrame(topic string, payload []byte) error {
	var msg models.FrameMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to decode frame message: %w", err)
	}

	// the topic segment is authoritative; the body field is optional
	if msg.CameraID == "" {
		msg.CameraID = cameraIDFromTopic(topic)
	}
	if msg.CameraID == "" {
		return fmt.Errorf("frame message missing camera_id (topic %s)", topic)
	}

	image, err := base64.StdEncoding.DecodeString(msg.Image)
	if err != nil {
		return fmt.Errorf("failed to decode frame image: %w", err)
	}

	return c.engine.SubmitFrame(msg.CameraID, msg.Timestamp, image)
}

func (c *MQTTConsumer) handleHeartbeat(topic string, payload []byte) error {
	var msg models.HeartbeatMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to decode heartbeat message: %w", err)
	}

	if msg.CameraID == "" {
		msg.CameraID = cameraIDFromTopic(topic)
	}
	if msg.CameraID == "" {
		return fmt.Errorf("heartbeat message missing camera_id (topic %s)", topic)
	}

	return c.engine.SubmitHeartbeat(context.Background(), msg.CameraID, msg.Timestamp)
}

// cameraIDFromTopic extracts the camera segment from
// "vision360/cameras/<camera_id>/frames".
func cameraIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		return ""
	}
	return parts[2]
}
