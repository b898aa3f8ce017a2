package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/frnnnnn/Vision360/internal/models"
)

// Timestamps below this are assumed to be unix seconds and get promoted
// to milliseconds. The cutoff corresponds to 2001-09-09 in ms.
const msCutoff = int64(1_000_000_000_000)

const saveAttempts = 3

// NormalizeTimestamp promotes a unix-seconds timestamp to milliseconds.
// Already-millisecond inputs pass through unchanged, so applying it twice
// is safe.
func NormalizeTimestamp(ts int64) int64 {
	if ts > 0 && ts < msCutoff {
		return ts * 1000
	}
	return ts
}

// EventKey derives the canonical event identity from camera and a
// normalized millisecond timestamp.
func EventKey(cameraID string, tsMs int64) string {
	return cameraID + "-" + strconv.FormatInt(tsMs, 10)
}

// ValidCameraID rejects IDs that would make EventKey ambiguous.
func ValidCameraID(cameraID string) bool {
	return cameraID != "" && !strings.Contains(cameraID, "-")
}

// EventFilters narrows ListEvents.
type EventFilters struct {
	CameraID  *string
	Severity  *models.Severity
	Reviewed  *bool
	StartTime *int64 // triggered_at >= StartTime, unix ms
	EndTime   *int64 // triggered_at <= EndTime, unix ms
}

// EventsRepository persists classified events in Postgres.
type EventsRepository struct {
	db      *sql.DB
	logger  *zap.Logger
	backoff func(attempt int) time.Duration
}

func NewEventsRepository(db *sql.DB, logger *zap.Logger) *EventsRepository {
	return &EventsRepository{
		db:     db,
		logger: logger,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 100 * time.Millisecond
		},
	}
}

// SaveEvent writes the event, retrying transient failures with bounded
// backoff. The timestamp is normalized and the event_id rederived here, so
// callers may pass seconds or milliseconds interchangeably. A repeated key
// overwrites the previous row (last write wins).
func (r *EventsRepository) SaveEvent(ctx context.Context, event *models.Event) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if !ValidCameraID(event.CameraID) {
		return fmt.Errorf("invalid camera_id: %q", event.CameraID)
	}

	event.Timestamp = NormalizeTimestamp(event.Timestamp)
	event.EventID = EventKey(event.CameraID, event.Timestamp)

	labels, err := json.Marshal(event.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	query := `
		INSERT INTO events (
			event_id,
			camera_id,
			triggered_at,
			person_detected,
			confidence,
			face_similarity,
			authorized,
			person_name,
			face_id,
			severity,
			labels,
			snapshot_key,
			reviewed,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (event_id) DO UPDATE SET
			person_detected = EXCLUDED.person_detected,
			confidence      = EXCLUDED.confidence,
			face_similarity = EXCLUDED.face_similarity,
			authorized      = EXCLUDED.authorized,
			person_name     = EXCLUDED.person_name,
			face_id         = EXCLUDED.face_id,
			severity        = EXCLUDED.severity,
			labels          = EXCLUDED.labels,
			snapshot_key    = EXCLUDED.snapshot_key,
			reviewed        = EXCLUDED.reviewed
	`

	var lastErr error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		_, lastErr = r.db.ExecContext(ctx, query,
			event.EventID,
			event.CameraID,
			event.Timestamp,
			event.PersonDetected,
			event.Confidence,
			event.FaceSimilarity,
			event.Authorized,
			event.PersonName,
			event.FaceID,
			string(event.Severity),
			labels,
			event.SnapshotKey,
			event.Reviewed,
			event.CreatedAt,
		)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("failed to save event: %w", lastErr)
		}

		r.logger.Warn("event save failed, retrying",
			zap.String("event_id", event.EventID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt < saveAttempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("failed to save event: %w", lastErr)
			case <-time.After(r.backoff(attempt)):
			}
		}
	}
	return fmt.Errorf("failed to save event after %d attempts: %w", saveAttempts, lastErr)
}

const eventColumns = `
	event_id,
	camera_id,
	triggered_at,
	person_detected,
	confidence,
	face_similarity,
	authorized,
	person_name,
	face_id,
	severity,
	labels,
	snapshot_key,
	reviewed,
	created_at
`

func scanEvent(row interface {
	Scan(dest ...interface{}) error
}) (*models.Event, error) {
	var event models.Event
	var faceSimilarity sql.NullFloat64
	var personName, faceID sql.NullString
	var severity string
	var labels []byte

	err := row.Scan(
		&event.EventID,
		&event.CameraID,
		&event.Timestamp,
		&event.PersonDetected,
		&event.Confidence,
		&faceSimilarity,
		&event.Authorized,
		&personName,
		&faceID,
		&severity,
		&labels,
		&event.SnapshotKey,
		&event.Reviewed,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if faceSimilarity.Valid {
		event.FaceSimilarity = &faceSimilarity.Float64
	}
	if personName.Valid {
		event.PersonName = &personName.String
	}
	if faceID.Valid {
		event.FaceID = &faceID.String
	}
	event.Severity = models.Severity(severity)

	if len(labels) > 0 {
		if err := json.Unmarshal(labels, &event.Labels); err != nil {
			return nil, fmt.Errorf("unmarshal labels: %w", err)
		}
	}
	return &event, nil
}

// GetEvent fetches a single event by its identity key.
func (r *EventsRepository) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}

	query := fmt.Sprintf(`SELECT %s FROM events WHERE event_id = $1`, eventColumns)

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, eventID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event not found: event_id=%s", eventID)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// ListEvents returns events newest first, filtered and paginated.
func (r *EventsRepository) ListEvents(ctx context.Context, filters EventFilters, limit, offset int) ([]*models.Event, error) {
	where := []string{}
	args := []interface{}{}
	argN := 1

	if filters.CameraID != nil {
		where = append(where, fmt.Sprintf("camera_id = $%d", argN))
		args = append(args, *filters.CameraID)
		argN++
	}
	if filters.Severity != nil {
		where = append(where, fmt.Sprintf("severity = $%d", argN))
		args = append(args, string(*filters.Severity))
		argN++
	}
	if filters.Reviewed != nil {
		where = append(where, fmt.Sprintf("reviewed = $%d", argN))
		args = append(args, *filters.Reviewed)
		argN++
	}
	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("triggered_at >= $%d", argN))
		args = append(args, *filters.StartTime)
		argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("triggered_at <= $%d", argN))
		args = append(args, *filters.EndTime)
		argN++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM events
		%s
		ORDER BY triggered_at DESC
		LIMIT $%d OFFSET $%d
	`, eventColumns, whereClause, argN, argN+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// MarkReviewed flips the reviewed flag on an event.
func (r *EventsRepository) MarkReviewed(ctx context.Context, eventID string, reviewed bool) error {
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE events SET reviewed = $1 WHERE event_id = $2`,
		reviewed, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event reviewed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("event not found: event_id=%s", eventID)
	}
	return nil
}
