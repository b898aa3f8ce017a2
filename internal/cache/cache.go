package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/frnnnnn/Vision360/internal/config"
	"github.com/frnnnnn/Vision360/internal/models"
)

// Manager keeps the per-camera recent-events list and the store-degraded
// flag in Redis. Everything here is best effort: the event pipeline treats
// cache failures as log-and-continue.
type Manager struct {
	cfg         *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewManager(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (m *Manager) eventsKey(cameraID string) string {
	return m.cfg.Cache.EventsKeyPrefix + cameraID + m.cfg.Cache.EventsSuffix
}

// PushRecentEvent prepends the event to the camera's recent list, trims it
// to the configured limit, and refreshes the TTL.
func (m *Manager) PushRecentEvent(ctx context.Context, event *models.Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := m.eventsKey(event.CameraID)
	limit := int64(m.cfg.Cache.EventsLimit)
	ttl := time.Duration(m.cfg.Cache.EventsTTL) * time.Second

	pipe := m.redisClient.Pipeline()
	pipe.LPush(ctx, key, jsonData)
	pipe.LTrim(ctx, key, 0, limit-1)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push recent event: %w", err)
	}

	m.logger.Debug("cached recent event",
		zap.String("camera_id", event.CameraID),
		zap.String("event_id", event.EventID))
	return nil
}

// RecentEvents returns the camera's cached events, newest first. A missing
// key is an empty list, not an error.
func (m *Manager) RecentEvents(ctx context.Context, cameraID string) ([]*models.Event, error) {
	vals, err := m.redisClient.LRange(ctx, m.eventsKey(cameraID), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []*models.Event{}, nil
		}
		return nil, fmt.Errorf("failed to read recent events: %w", err)
	}

	events := make([]*models.Event, 0, len(vals))
	for _, val := range vals {
		var event models.Event
		if err := json.Unmarshal([]byte(val), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached event: %w", err)
		}
		events = append(events, &event)
	}
	return events, nil
}

// SetDegraded raises the store-degraded flag. The flag expires on its own
// so a recovered store clears it without coordination.
func (m *Manager) SetDegraded(ctx context.Context) error {
	ttl := time.Duration(m.cfg.Cache.DegradedTTL) * time.Second
	if err := m.redisClient.Set(ctx, m.cfg.Cache.DegradedKey, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to set degraded flag: %w", err)
	}
	return nil
}

// Degraded reports whether the store-degraded flag is currently raised.
// Redis being unreachable counts as degraded.
func (m *Manager) Degraded(ctx context.Context) bool {
	_, err := m.redisClient.Get(ctx, m.cfg.Cache.DegradedKey).Result()
	if err == nil {
		return true
	}
	if err == redis.Nil {
		return false
	}
	m.logger.Warn("degraded flag check failed", zap.Error(err))
	return true
}
