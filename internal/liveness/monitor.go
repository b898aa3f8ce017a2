package liveness

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/frnnnnn/Vision360/internal/models"
)

// OfflineHandler is invoked once per online->offline transition detected by
// the background sweep.
type OfflineHandler func(cameraID string, lastHeartbeat int64)

// Monitor tracks the last heartbeat watermark per camera and answers status
// queries against it. Beat only moves the watermark forward, so late or
// replayed heartbeats cannot make a camera look fresher than it is.
type Monitor struct {
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	cameras map[string]int64 // camera_id -> last heartbeat, unix ms

	onOffline OfflineHandler
	// cameras already reported offline, cleared when they beat again
	reported map[string]bool
}

func NewMonitor(timeout time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		cameras:  make(map[string]int64),
		reported: make(map[string]bool),
	}
}

// OnOffline registers the handler fired by Run when a camera goes stale.
func (m *Monitor) OnOffline(h OfflineHandler) {
	m.mu.Lock()
	m.onOffline = h
	m.mu.Unlock()
}

// Beat records a heartbeat at ts (unix ms). Heartbeats older than the
// current watermark are dropped.
func (m *Monitor) Beat(cameraID string, ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, seen := m.cameras[cameraID]
	if seen && ts < last {
		m.logger.Debug("stale heartbeat dropped",
			zap.String("camera_id", cameraID),
			zap.Int64("ts", ts),
			zap.Int64("watermark", last))
		return
	}
	m.cameras[cameraID] = ts
	if m.reported[cameraID] {
		delete(m.reported, cameraID)
		m.logger.Info("camera back online", zap.String("camera_id", cameraID))
	}
}

// Status reports the camera's liveness at query time. It never mutates
// state: a camera that times out is reported offline here but only
// transitions (and fires the handler) in the background sweep.
func (m *Monitor) Status(cameraID string) models.CameraStatus {
	m.mu.RLock()
	last, seen := m.cameras[cameraID]
	m.mu.RUnlock()

	if !seen {
		return models.StatusUnknown
	}
	if m.now().UnixMilli()-last > m.timeout.Milliseconds() {
		return models.StatusOffline
	}
	return models.StatusOnline
}

// Snapshot returns the current state of every known camera.
func (m *Monitor) Snapshot() []models.CameraState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nowMs := m.now().UnixMilli()
	out := make([]models.CameraState, 0, len(m.cameras))
	for id, last := range m.cameras {
		status := models.StatusOnline
		if nowMs-last > m.timeout.Milliseconds() {
			status = models.StatusOffline
		}
		out = append(out, models.CameraState{
			CameraID:      id,
			LastHeartbeat: last,
			Status:        status,
		})
	}
	return out
}

// Run sweeps for newly offline cameras every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Monitor) sweep() {
	nowMs := m.now().UnixMilli()

	m.mu.Lock()
	var gone []struct {
		id   string
		last int64
	}
	for id, last := range m.cameras {
		if nowMs-last > m.timeout.Milliseconds() && !m.reported[id] {
			m.reported[id] = true
			gone = append(gone, struct {
				id   string
				last int64
			}{id, last})
		}
	}
	handler := m.onOffline
	m.mu.Unlock()

	for _, g := range gone {
		m.logger.Warn("camera offline",
			zap.String("camera_id", g.id),
			zap.Int64("last_heartbeat", g.last))
		if handler != nil {
			handler(g.id, g.last)
		}
	}
}
