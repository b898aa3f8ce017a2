package models

// FrameMessage is a captured frame submitted to the classification pipeline,
// received over MQTT or the HTTP submission endpoint. Image is base64-encoded
// JPEG. Timestamp may be seconds or milliseconds; the ingestion edge
// normalizes it to milliseconds before anything else happens.
type FrameMessage struct {
	CameraID  string `json:"camera_id"`
	Timestamp int64  `json:"timestamp"`
	Image     string `json:"image"`
}

// HeartbeatMessage is a camera liveness signal, independent of frame content.
type HeartbeatMessage struct {
	CameraID  string `json:"camera_id"`
	Timestamp int64  `json:"timestamp"`
}
