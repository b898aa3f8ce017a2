package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/frnnnnn/Vision360/internal/models"
)

// CamerasRepository persists the per-camera heartbeat watermark so camera
// state survives restarts.
type CamerasRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCamerasRepository(db *sql.DB, logger *zap.Logger) *CamerasRepository {
	return &CamerasRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertHeartbeat records a heartbeat, keeping the highest watermark on
// concurrent or replayed writes.
func (r *CamerasRepository) UpsertHeartbeat(ctx context.Context, cameraID string, ts int64) error {
	if !ValidCameraID(cameraID) {
		return fmt.Errorf("invalid camera_id: %q", cameraID)
	}
	ts = NormalizeTimestamp(ts)

	query := `
		INSERT INTO cameras (camera_id, last_heartbeat)
		VALUES ($1, $2)
		ON CONFLICT (camera_id) DO UPDATE SET
			last_heartbeat = GREATEST(cameras.last_heartbeat, EXCLUDED.last_heartbeat)
	`
	if _, err := r.db.ExecContext(ctx, query, cameraID, ts); err != nil {
		return fmt.Errorf("failed to upsert heartbeat: %w", err)
	}
	return nil
}

// GetCamera fetches a single camera's stored watermark. Status is left
// Unknown for the liveness monitor to fill in.
func (r *CamerasRepository) GetCamera(ctx context.Context, cameraID string) (*models.CameraState, error) {
	if cameraID == "" {
		return nil, fmt.Errorf("camera_id is required")
	}

	var state models.CameraState
	err := r.db.QueryRowContext(ctx,
		`SELECT camera_id, last_heartbeat FROM cameras WHERE camera_id = $1`,
		cameraID,
	).Scan(&state.CameraID, &state.LastHeartbeat)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("camera not found: camera_id=%s", cameraID)
		}
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}
	state.Status = models.StatusUnknown
	return &state, nil
}

// ListCameras returns every known camera's stored watermark.
func (r *CamerasRepository) ListCameras(ctx context.Context) ([]*models.CameraState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT camera_id, last_heartbeat FROM cameras ORDER BY camera_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	cameras := []*models.CameraState{}
	for rows.Next() {
		var state models.CameraState
		if err := rows.Scan(&state.CameraID, &state.LastHeartbeat); err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		state.Status = models.StatusUnknown
		cameras = append(cameras, &state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cameras: %w", err)
	}
	return cameras, nil
}
