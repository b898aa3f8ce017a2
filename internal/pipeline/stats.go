package pipeline

import (
	"fmt"
	"sync/atomic"
)

var errEmptyFrame = fmt.Errorf("empty frame payload")

func errInvalidCameraID(cameraID string) error {
	return fmt.Errorf("invalid camera_id: %q", cameraID)
}

// Stats are the engine's running counters, exposed over the API for
// operational visibility.
type Stats struct {
	FramesReceived      atomic.Int64
	FramesDropped       atomic.Int64
	FramesRejected      atomic.Int64
	FramesDuplicate     atomic.Int64
	FramesNoPerson      atomic.Int64
	EventsClassified    atomic.Int64
	EventsStored        atomic.Int64
	StoreFailures       atomic.Int64
	AlertsFired         atomic.Int64
	AlertFailures       atomic.Int64
	RecognitionFailures atomic.Int64
	Heartbeats          atomic.Int64
}

// StatsSnapshot is the JSON-friendly copy served by the API.
type StatsSnapshot struct {
	FramesReceived      int64 `json:"frames_received"`
	FramesDropped       int64 `json:"frames_dropped"`
	FramesRejected      int64 `json:"frames_rejected"`
	FramesDuplicate     int64 `json:"frames_duplicate"`
	FramesNoPerson      int64 `json:"frames_no_person"`
	EventsClassified    int64 `json:"events_classified"`
	EventsStored        int64 `json:"events_stored"`
	StoreFailures       int64 `json:"store_failures"`
	AlertsFired         int64 `json:"alerts_fired"`
	AlertFailures       int64 `json:"alert_failures"`
	RecognitionFailures int64 `json:"recognition_failures"`
	Heartbeats          int64 `json:"heartbeats"`
}

// Stats returns a point-in-time copy of the counters.
func (e *Engine) Stats() StatsSnapshot {
	return StatsSnapshot{
		FramesReceived:      e.stats.FramesReceived.Load(),
		FramesDropped:       e.stats.FramesDropped.Load(),
		FramesRejected:      e.stats.FramesRejected.Load(),
		FramesDuplicate:     e.stats.FramesDuplicate.Load(),
		FramesNoPerson:      e.stats.FramesNoPerson.Load(),
		EventsClassified:    e.stats.EventsClassified.Load(),
		EventsStored:        e.stats.EventsStored.Load(),
		StoreFailures:       e.stats.StoreFailures.Load(),
		AlertsFired:         e.stats.AlertsFired.Load(),
		AlertFailures:       e.stats.AlertFailures.Load(),
		RecognitionFailures: e.stats.RecognitionFailures.Load(),
		Heartbeats:          e.stats.Heartbeats.Load(),
	}
}
