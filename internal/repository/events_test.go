package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/frnnnnn/Vision360/internal/models"
)

func setupMockEventsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *EventsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewEventsRepository(db, zap.NewNop())
	repo.backoff = func(int) time.Duration { return 0 }

	return db, mock, repo
}

func sampleEvent() *models.Event {
	similarity := 91.5
	name := "Ana"
	faceID := "face-123"
	return &models.Event{
		CameraID:       "cam01",
		Timestamp:      1_700_000_000_123,
		PersonDetected: true,
		Confidence:     97.2,
		FaceSimilarity: &similarity,
		Authorized:     true,
		PersonName:     &name,
		FaceID:         &faceID,
		Severity:       models.SeverityLow,
		Labels:         []models.Label{{Name: "Person", Confidence: 97.2}},
		SnapshotKey:    "events/raw/2023-11-14/cam01-1700000000123.jpg",
		CreatedAt:      time.Now(),
	}
}

// ============================================
// Identity helpers
// ============================================

func TestNormalizeTimestamp(t *testing.T) {
	// seconds get promoted
	assert.Equal(t, int64(1_700_000_000_000), NormalizeTimestamp(1_700_000_000))
	// milliseconds pass through
	assert.Equal(t, int64(1_700_000_000_123), NormalizeTimestamp(1_700_000_000_123))
	// idempotent
	assert.Equal(t, NormalizeTimestamp(1_700_000_000),
		NormalizeTimestamp(NormalizeTimestamp(1_700_000_000)))
}

func TestEventKey(t *testing.T) {
	assert.Equal(t, "cam01-1700000000123", EventKey("cam01", 1_700_000_000_123))
}

func TestValidCameraID(t *testing.T) {
	assert.True(t, ValidCameraID("cam01"))
	assert.True(t, ValidCameraID("front_door"))
	assert.False(t, ValidCameraID(""))
	// a dash would make the event key ambiguous
	assert.False(t, ValidCameraID("cam-01"))
}

// ============================================
// SaveEvent
// ============================================

func TestSaveEvent_Success(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	event := sampleEvent()

	mock.ExpectExec(`INSERT INTO events`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.SaveEvent(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, "cam01-1700000000123", event.EventID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEvent_NormalizesSecondsTimestamp(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	event := sampleEvent()
	event.Timestamp = 1_700_000_000 // seconds

	mock.ExpectExec(`INSERT INTO events`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.SaveEvent(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), event.Timestamp)
	assert.Equal(t, "cam01-1700000000000", event.EventID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEvent_RetriesTransientFailure(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO events`).
		WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectExec(`INSERT INTO events`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.SaveEvent(context.Background(), sampleEvent())

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEvent_ExhaustsRetries(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	for i := 0; i < saveAttempts; i++ {
		mock.ExpectExec(`INSERT INTO events`).
			WillReturnError(fmt.Errorf("connection reset"))
	}

	err := repo.SaveEvent(context.Background(), sampleEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEvent_InvalidCameraID(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	event := sampleEvent()
	event.CameraID = "cam-01"

	err := repo.SaveEvent(context.Background(), event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid camera_id")
	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// GetEvent / ListEvents / MarkReviewed
// ============================================

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"event_id", "camera_id", "triggered_at", "person_detected",
		"confidence", "face_similarity", "authorized", "person_name",
		"face_id", "severity", "labels", "snapshot_key", "reviewed",
		"created_at",
	})
}

func TestGetEvent_Success(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	createdAt := time.Now()
	rows := eventRows().AddRow(
		"cam01-1700000000123", "cam01", int64(1_700_000_000_123), true,
		88.0, nil, false, nil,
		nil, "high", `[{"name":"Person","confidence":88}]`, "", false,
		createdAt,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs("cam01-1700000000123").
		WillReturnRows(rows)

	event, err := repo.GetEvent(context.Background(), "cam01-1700000000123")

	require.NoError(t, err)
	assert.Equal(t, "cam01", event.CameraID)
	assert.Equal(t, models.SeverityHigh, event.Severity)
	assert.Nil(t, event.FaceSimilarity)
	require.Len(t, event.Labels, 1)
	assert.Equal(t, "Person", event.Labels[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEvent_NotFound(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("cam01-42").
		WillReturnError(sql.ErrNoRows)

	event, err := repo.GetEvent(context.Background(), "cam01-42")

	assert.Error(t, err)
	assert.Nil(t, event)
	assert.Contains(t, err.Error(), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEvents_FiltersByCameraAndSeverity(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	rows := eventRows().AddRow(
		"cam01-1700000000123", "cam01", int64(1_700_000_000_123), true,
		92.0, nil, false, nil,
		nil, "high", `[]`, "", false,
		time.Now(),
	)

	cameraID := "cam01"
	severity := models.SeverityHigh

	mock.ExpectQuery(`SELECT`).
		WithArgs(cameraID, string(severity), 10, 0).
		WillReturnRows(rows)

	events, err := repo.ListEvents(context.Background(), EventFilters{
		CameraID: &cameraID,
		Severity: &severity,
	}, 10, 0)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "cam01-1700000000123", events[0].EventID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEvents_DefaultsLimit(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs(50, 0).
		WillReturnRows(eventRows())

	events, err := repo.ListEvents(context.Background(), EventFilters{}, 0, -5)

	require.NoError(t, err)
	assert.Empty(t, events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReviewed_Success(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE events`).
		WithArgs(true, "cam01-1700000000123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkReviewed(context.Background(), "cam01-1700000000123", true)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReviewed_NotFound(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE events`).
		WithArgs(true, "cam01-42").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkReviewed(context.Background(), "cam01-42", true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}
