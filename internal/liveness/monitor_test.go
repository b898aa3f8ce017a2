package liveness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/frnnnnn/Vision360/internal/models"
)

func newTestMonitor(timeout time.Duration) (*Monitor, *time.Time) {
	base := time.Unix(1_700_000_000, 0)
	clock := base
	m := NewMonitor(timeout, zap.NewNop())
	m.now = func() time.Time { return clock }
	return m, &clock
}

func TestStatus_UnknownBeforeFirstHeartbeat(t *testing.T) {
	m, _ := newTestMonitor(60 * time.Second)

	assert.Equal(t, models.StatusUnknown, m.Status("cam01"))
}

func TestStatus_TimeoutBoundary(t *testing.T) {
	m, clock := newTestMonitor(60 * time.Second)
	base := *clock

	m.Beat("cam01", base.UnixMilli())

	// Exactly at the timeout the camera is still online; only strictly
	// past it does the status flip.
	*clock = base.Add(60 * time.Second)
	assert.Equal(t, models.StatusOnline, m.Status("cam01"))

	*clock = base.Add(61 * time.Second)
	assert.Equal(t, models.StatusOffline, m.Status("cam01"))

	*clock = base.Add(65 * time.Second)
	assert.Equal(t, models.StatusOffline, m.Status("cam01"))
}

func TestBeat_StaleHeartbeatIgnored(t *testing.T) {
	m, clock := newTestMonitor(60 * time.Second)
	base := *clock

	m.Beat("cam01", base.UnixMilli())
	// A delayed heartbeat from 2 minutes ago must not rewind the watermark.
	m.Beat("cam01", base.Add(-2*time.Minute).UnixMilli())

	*clock = base.Add(30 * time.Second)
	assert.Equal(t, models.StatusOnline, m.Status("cam01"))

	snap := m.Snapshot()
	assert.Len(t, snap, 1)
	assert.Equal(t, base.UnixMilli(), snap[0].LastHeartbeat)
}

func TestBeat_RecoversAfterOffline(t *testing.T) {
	m, clock := newTestMonitor(60 * time.Second)
	base := *clock

	m.Beat("cam01", base.UnixMilli())
	*clock = base.Add(2 * time.Minute)
	assert.Equal(t, models.StatusOffline, m.Status("cam01"))

	m.Beat("cam01", clock.UnixMilli())
	assert.Equal(t, models.StatusOnline, m.Status("cam01"))
}

func TestStatus_QueryDoesNotMutate(t *testing.T) {
	m, clock := newTestMonitor(60 * time.Second)
	base := *clock

	m.Beat("cam01", base.UnixMilli())
	*clock = base.Add(90 * time.Second)

	// Repeated queries of an expired camera must keep returning offline
	// from the same watermark, never unknown.
	assert.Equal(t, models.StatusOffline, m.Status("cam01"))
	assert.Equal(t, models.StatusOffline, m.Status("cam01"))

	snap := m.Snapshot()
	assert.Equal(t, base.UnixMilli(), snap[0].LastHeartbeat)
}

func TestSweep_FiresOfflineHandlerOnce(t *testing.T) {
	m, clock := newTestMonitor(60 * time.Second)
	base := *clock

	var fired []string
	m.OnOffline(func(cameraID string, lastHeartbeat int64) {
		fired = append(fired, cameraID)
		assert.Equal(t, base.UnixMilli(), lastHeartbeat)
	})

	m.Beat("cam01", base.UnixMilli())

	*clock = base.Add(30 * time.Second)
	m.sweep()
	assert.Empty(t, fired)

	*clock = base.Add(90 * time.Second)
	m.sweep()
	m.sweep()
	assert.Equal(t, []string{"cam01"}, fired, "offline reported exactly once")

	// Coming back and dying again reports again.
	m.Beat("cam01", clock.UnixMilli())
	*clock = clock.Add(2 * time.Minute)
	m.sweep()
	assert.Equal(t, []string{"cam01", "cam01"}, fired)
}

func TestSnapshot_MixedFleet(t *testing.T) {
	m, clock := newTestMonitor(60 * time.Second)
	base := *clock

	m.Beat("front", base.UnixMilli())
	m.Beat("garage", base.Add(-5*time.Minute).UnixMilli())

	snap := m.Snapshot()
	assert.Len(t, snap, 2)

	byID := make(map[string]models.CameraStatus, len(snap))
	for _, s := range snap {
		byID[s.CameraID] = s.Status
	}
	assert.Equal(t, models.StatusOnline, byID["front"])
	assert.Equal(t, models.StatusOffline, byID["garage"])
}
