package models

// CameraStatus is the derived liveness state of a camera.
type CameraStatus string

const (
	StatusOnline  CameraStatus = "online"
	StatusOffline CameraStatus = "offline"
	// StatusUnknown is reported for cameras with no recorded heartbeat,
	// distinct from offline.
	StatusUnknown CameraStatus = "unknown"
)

// CameraState is the per-camera liveness record (corresponds to the cameras
// table). LastHeartbeat is milliseconds since epoch; zero means no heartbeat
// has ever been recorded.
type CameraState struct {
	CameraID      string       `json:"camera_id" db:"camera_id"`
	LastHeartbeat int64        `json:"last_heartbeat" db:"last_heartbeat"`
	Status        CameraStatus `json:"status" db:"status"`
}
