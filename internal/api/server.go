package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/frnnnnn/Vision360/internal/models"
	"github.com/frnnnnn/Vision360/internal/pipeline"
	"github.com/frnnnnn/Vision360/internal/repository"
)

// Engine is the pipeline surface the API needs.
type Engine interface {
	SubmitFrame(cameraID string, ts int64, image []byte) error
	SubmitHeartbeat(ctx context.Context, cameraID string, ts int64) error
	Stats() pipeline.StatsSnapshot
}

// StatusReader answers camera liveness queries.
type StatusReader interface {
	Status(cameraID string) models.CameraStatus
	Snapshot() []models.CameraState
}

// EventReader serves persisted events.
type EventReader interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	ListEvents(ctx context.Context, filters repository.EventFilters, limit, offset int) ([]*models.Event, error)
	MarkReviewed(ctx context.Context, eventID string, reviewed bool) error
}

// RecentEventsReader serves the cached per-camera event lists.
type RecentEventsReader interface {
	RecentEvents(ctx context.Context, cameraID string) ([]*models.Event, error)
	Degraded(ctx context.Context) bool
}

// SnapshotLinker mints download links for stored snapshots.
type SnapshotLinker interface {
	PresignedURL(ctx context.Context, key string) (string, error)
}

// Server is the HTTP control surface: event review, camera status, and a
// direct ingestion path for cameras that speak HTTP instead of MQTT.
type Server struct {
	engine    Engine
	status    StatusReader
	events    EventReader
	recent    RecentEventsReader
	snapshots SnapshotLinker
	logger    *zap.Logger
	router    *mux.Router
}

func NewServer(
	engine Engine,
	status StatusReader,
	events EventReader,
	recent RecentEventsReader,
	snapshots SnapshotLinker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		engine:    engine,
		status:    status,
		events:    events,
		recent:    recent,
		snapshots: snapshots,
		logger:    logger,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/stats", s.handleStats).Methods("GET")
	v1.HandleFunc("/cameras", s.handleListCameras).Methods("GET")
	v1.HandleFunc("/cameras/{id}/status", s.handleCameraStatus).Methods("GET")
	v1.HandleFunc("/cameras/{id}/events", s.handleCameraRecentEvents).Methods("GET")
	v1.HandleFunc("/events", s.handleListEvents).Methods("GET")
	v1.HandleFunc("/events/{id}", s.handleGetEvent).Methods("GET")
	v1.HandleFunc("/events/{id}", s.handlePatchEvent).Methods("PATCH")
	v1.HandleFunc("/frames", s.handlePostFrame).Methods("POST")
	v1.HandleFunc("/heartbeat", s.handlePostHeartbeat).Methods("POST")

	return r
}

// Handler returns the assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// ============================================
// health and stats
// ============================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.recent.Degraded(r.Context()) {
		status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"service": "vision360-engine",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Stats())
}

// ============================================
// cameras
// ============================================

func (s *Server) handleListCameras(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cameras": s.status.Snapshot(),
	})
}

func (s *Server) handleCameraStatus(w http.ResponseWriter, r *http.Request) {
	cameraID := mux.Vars(r)["id"]
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"camera_id": cameraID,
		"status":    s.status.Status(cameraID),
	})
}

func (s *Server) handleCameraRecentEvents(w http.ResponseWriter, r *http.Request) {
	cameraID := mux.Vars(r)["id"]

	events, err := s.recent.RecentEvents(r.Context(), cameraID)
	if err != nil {
		s.logger.Error("recent events lookup failed",
			zap.String("camera_id", cameraID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load recent events")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"camera_id": cameraID,
		"events":    events,
	})
}

// ============================================
// events
// ============================================

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := repository.EventFilters{}

	if v := q.Get("camera_id"); v != "" {
		filters.CameraID = &v
	}
	if v := q.Get("severity"); v != "" {
		sev := models.Severity(v)
		filters.Severity = &sev
	}
	if v := q.Get("reviewed"); v != "" {
		reviewed, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid reviewed parameter")
			return
		}
		filters.Reviewed = &reviewed
	}
	if v := q.Get("from"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid from parameter")
			return
		}
		ts = repository.NormalizeTimestamp(ts)
		filters.StartTime = &ts
	}
	if v := q.Get("to"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid to parameter")
			return
		}
		ts = repository.NormalizeTimestamp(ts)
		filters.EndTime = &ts
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	events, err := s.events.ListEvents(r.Context(), filters, limit, offset)
	if err != nil {
		s.logger.Error("event list failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

type eventResponse struct {
	*models.Event
	SnapshotURL string `json:"snapshot_url,omitempty"`
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["id"]

	event, err := s.events.GetEvent(r.Context(), eventID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "event not found")
		return
	}

	resp := eventResponse{Event: event}
	if event.SnapshotKey != "" {
		if url, err := s.snapshots.PresignedURL(r.Context(), event.SnapshotKey); err == nil {
			resp.SnapshotURL = url
		} else {
			s.logger.Warn("snapshot presign failed",
				zap.String("event_id", eventID), zap.Error(err))
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePatchEvent(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["id"]

	var body struct {
		Reviewed *bool `json:"reviewed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Reviewed == nil {
		s.writeError(w, http.StatusBadRequest, "body must contain reviewed")
		return
	}

	if err := s.events.MarkReviewed(r.Context(), eventID, *body.Reviewed); err != nil {
		s.writeError(w, http.StatusNotFound, "event not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"event_id": eventID,
		"reviewed": *body.Reviewed,
	})
}

// ============================================
// ingestion
// ============================================

func (s *Server) handlePostFrame(w http.ResponseWriter, r *http.Request) {
	var msg models.FrameMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid frame payload")
		return
	}
	if msg.CameraID == "" {
		s.writeError(w, http.StatusBadRequest, "camera_id is required")
		return
	}

	image, err := base64.StdEncoding.DecodeString(msg.Image)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "image must be base64-encoded")
		return
	}

	if err := s.engine.SubmitFrame(msg.CameraID, msg.Timestamp, image); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handlePostHeartbeat(w http.ResponseWriter, r *http.Request) {
	var msg models.HeartbeatMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid heartbeat payload")
		return
	}
	if msg.CameraID == "" {
		s.writeError(w, http.StatusBadRequest, "camera_id is required")
		return
	}

	if err := s.engine.SubmitHeartbeat(r.Context(), msg.CameraID, msg.Timestamp); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
