package notifier

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/frnnnnn/Vision360/internal/models"
)

// Publisher is the broker-facing slice of the MQTT client.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Alert is the outbound alert payload, published once per intruder event.
type Alert struct {
	AlertID     string          `json:"alert_id"`
	EventID     string          `json:"event_id"`
	CameraID    string          `json:"camera_id"`
	Timestamp   int64           `json:"timestamp"` // unix ms
	Severity    models.Severity `json:"severity"`
	Confidence  float64         `json:"confidence"`
	SnapshotURL string          `json:"snapshot_url,omitempty"`
	Message     string          `json:"message"`
}

// OfflineNotice is published when the liveness monitor declares a camera
// offline.
type OfflineNotice struct {
	AlertID       string `json:"alert_id"`
	CameraID      string `json:"camera_id"`
	LastHeartbeat int64  `json:"last_heartbeat"` // unix ms
	Message       string `json:"message"`
}

// Notifier publishes alerts to the broker, fanned out by severity so
// consumers subscribe to the tiers they care about.
type Notifier struct {
	publisher   Publisher
	topicPrefix string
	logger      *zap.Logger
}

func New(publisher Publisher, topicPrefix string, logger *zap.Logger) *Notifier {
	return &Notifier{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		logger:      logger,
	}
}

// BuildAlert assembles the alert payload for an intruder event.
func BuildAlert(event *models.Event, snapshotURL string) Alert {
	return Alert{
		AlertID:     uuid.New().String(),
		EventID:     event.EventID,
		CameraID:    event.CameraID,
		Timestamp:   event.Timestamp,
		Severity:    event.Severity,
		Confidence:  event.Confidence,
		SnapshotURL: snapshotURL,
		Message: fmt.Sprintf("intruder detected on camera %s at %s",
			event.CameraID,
			time.UnixMilli(event.Timestamp).UTC().Format(time.RFC3339)),
	}
}

// NotifyIntruder publishes the alert on <prefix>/<severity>.
func (n *Notifier) NotifyIntruder(event *models.Event, snapshotURL string) error {
	alert := BuildAlert(event, snapshotURL)

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", n.topicPrefix, event.Severity)
	if err := n.publisher.Publish(topic, payload); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	n.logger.Info("alert published",
		zap.String("alert_id", alert.AlertID),
		zap.String("event_id", alert.EventID),
		zap.String("severity", string(alert.Severity)),
		zap.String("topic", topic))
	return nil
}

// NotifyCameraOffline publishes an offline notice on <prefix>/offline.
func (n *Notifier) NotifyCameraOffline(cameraID string, lastHeartbeat int64) error {
	notice := OfflineNotice{
		AlertID:       uuid.New().String(),
		CameraID:      cameraID,
		LastHeartbeat: lastHeartbeat,
		Message: fmt.Sprintf("camera %s offline, last heartbeat %s",
			cameraID,
			time.UnixMilli(lastHeartbeat).UTC().Format(time.RFC3339)),
	}

	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal offline notice: %w", err)
	}

	topic := n.topicPrefix + "/offline"
	if err := n.publisher.Publish(topic, payload); err != nil {
		return fmt.Errorf("failed to publish offline notice: %w", err)
	}

	n.logger.Warn("camera offline notice published",
		zap.String("camera_id", cameraID),
		zap.String("topic", topic))
	return nil
}
