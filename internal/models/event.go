package models

import (
	"time"
)

// Classification is the outcome of the recognition decision. Every frame that
// reaches the decision maker lands in exactly one of the three classes.
type Classification int

const (
	ClassNoPerson Classification = iota
	ClassAuthorized
	ClassIntruder
)

// String returns the classification name used in logs and trigger payloads.
func (c Classification) String() string {
	switch c {
	case ClassNoPerson:
		return "no_person"
	case ClassAuthorized:
		return "authorized"
	case ClassIntruder:
		return "intruder"
	}
	return "unknown"
}

// Severity is the alert priority tier derived from classification and
// confidence band.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Label is one detector label kept on the event record.
type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Event is one classified detection outcome for one camera at one timestamp
// (corresponds to the events table).
type Event struct {
	EventID        string   `json:"event_id" db:"event_id"`
	CameraID       string   `json:"camera_id" db:"camera_id"`
	Timestamp      int64    `json:"timestamp" db:"timestamp"` // milliseconds since epoch
	PersonDetected bool     `json:"person_detected" db:"person_detected"`
	Confidence     float64  `json:"confidence" db:"confidence"`
	FaceSimilarity *float64 `json:"face_similarity,omitempty" db:"face_similarity"`
	Authorized     bool     `json:"authorized" db:"authorized"`
	PersonName     *string  `json:"person_name,omitempty" db:"person_name"`
	FaceID         *string  `json:"face_id,omitempty" db:"face_id"`
	Severity       Severity `json:"severity" db:"severity"`
	Labels         []Label  `json:"labels,omitempty" db:"labels"`
	SnapshotKey    string   `json:"snapshot_key,omitempty" db:"snapshot_key"`
	Reviewed       bool     `json:"reviewed" db:"reviewed"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
