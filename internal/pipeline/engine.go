package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/frnnnnn/Vision360/internal/classifier"
	"github.com/frnnnnn/Vision360/internal/config"
	"github.com/frnnnnn/Vision360/internal/dedupe"
	"github.com/frnnnnn/Vision360/internal/imaging"
	"github.com/frnnnnn/Vision360/internal/liveness"
	"github.com/frnnnnn/Vision360/internal/models"
	"github.com/frnnnnn/Vision360/internal/recognition"
	"github.com/frnnnnn/Vision360/internal/repository"
)

// EventWriter persists classified events.
type EventWriter interface {
	SaveEvent(ctx context.Context, event *models.Event) error
}

// HeartbeatWriter persists camera heartbeats.
type HeartbeatWriter interface {
	UpsertHeartbeat(ctx context.Context, cameraID string, ts int64) error
}

// AlertSink receives one alert per intruder event.
type AlertSink interface {
	NotifyIntruder(event *models.Event, snapshotURL string) error
}

// SnapshotSaver stores the raw frame for a persisted event.
type SnapshotSaver interface {
	Save(ctx context.Context, eventID string, tsMs int64, data []byte) (string, error)
	PresignedURL(ctx context.Context, key string) (string, error)
}

// EventCacher mirrors recent events into the cache and tracks store health.
type EventCacher interface {
	PushRecentEvent(ctx context.Context, event *models.Event) error
	SetDegraded(ctx context.Context) error
}

type frameJob struct {
	cameraID string
	ts       int64 // unix ms, normalized
	image    []byte
}

// Engine runs the per-frame decision chain: quality gate, duplicate
// suppression, recognition, classification, alerting, persistence. Frames
// are processed per camera in arrival order; cameras never block each
// other.
type Engine struct {
	cfg        *config.Config
	gate       *imaging.QualityGate
	suppressor *dedupe.Suppressor
	recognizer recognition.Service
	classify   *classifier.Classifier
	monitor    *liveness.Monitor
	events     EventWriter
	heartbeats HeartbeatWriter
	alerts     AlertSink
	snapshots  SnapshotSaver
	cache      EventCacher
	logger     *zap.Logger

	stats Stats

	mu      sync.Mutex
	workers map[string]chan frameJob
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewEngine(
	cfg *config.Config,
	recognizer recognition.Service,
	monitor *liveness.Monitor,
	events EventWriter,
	heartbeats HeartbeatWriter,
	alerts AlertSink,
	snapshots SnapshotSaver,
	cache EventCacher,
	logger *zap.Logger,
) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:        cfg,
		gate:       imaging.NewQualityGate(cfg.Thresholds),
		suppressor: dedupe.NewSuppressor(cfg.Pipeline.DuplicateMaxBits, logger),
		recognizer: recognizer,
		classify:   classifier.New(cfg.Thresholds),
		monitor:    monitor,
		events:     events,
		heartbeats: heartbeats,
		alerts:     alerts,
		snapshots:  snapshots,
		cache:      cache,
		logger:     logger,
		workers:    make(map[string]chan frameJob),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SubmitFrame queues a frame for its camera's worker. The call never
// blocks: if the camera's queue is full the frame is dropped and counted.
func (e *Engine) SubmitFrame(cameraID string, ts int64, image []byte) error {
	if !repository.ValidCameraID(cameraID) {
		e.stats.FramesRejected.Add(1)
		return errInvalidCameraID(cameraID)
	}
	if len(image) == 0 {
		e.stats.FramesRejected.Add(1)
		return errEmptyFrame
	}

	job := frameJob{
		cameraID: cameraID,
		ts:       repository.NormalizeTimestamp(ts),
		image:    image,
	}

	select {
	case e.workerFor(cameraID) <- job:
		e.stats.FramesReceived.Add(1)
		return nil
	case <-e.ctx.Done():
		return e.ctx.Err()
	default:
		e.stats.FramesDropped.Add(1)
		e.logger.Warn("frame queue full, dropping frame",
			zap.String("camera_id", cameraID),
			zap.Int64("ts", job.ts))
		return nil
	}
}

// SubmitHeartbeat updates the liveness watermark and persists it.
func (e *Engine) SubmitHeartbeat(ctx context.Context, cameraID string, ts int64) error {
	if !repository.ValidCameraID(cameraID) {
		return errInvalidCameraID(cameraID)
	}
	ts = repository.NormalizeTimestamp(ts)

	e.monitor.Beat(cameraID, ts)
	e.stats.Heartbeats.Add(1)

	if err := e.heartbeats.UpsertHeartbeat(ctx, cameraID, ts); err != nil {
		// in-memory watermark already advanced; the stored one catches up
		// on the next heartbeat
		e.logger.Warn("heartbeat persist failed",
			zap.String("camera_id", cameraID),
			zap.Error(err))
	}
	return nil
}

func (e *Engine) workerFor(cameraID string) chan frameJob {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch, ok := e.workers[cameraID]
	if !ok {
		ch = make(chan frameJob, e.cfg.Pipeline.QueueSize)
		e.workers[cameraID] = ch
		e.wg.Add(1)
		go e.runWorker(cameraID, ch)
	}
	return ch
}

func (e *Engine) runWorker(cameraID string, jobs <-chan frameJob) {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case job := <-jobs:
			e.processFrame(job)
		}
	}
}

// Close stops the workers. Queued frames are abandoned.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) processFrame(job frameJob) {
	log := e.logger.With(
		zap.String("camera_id", job.cameraID),
		zap.Int64("ts", job.ts))

	img, err := imaging.Decode(job.image)
	if err != nil {
		e.stats.FramesRejected.Add(1)
		log.Warn("frame decode failed", zap.Error(err))
		return
	}

	if ok, reason := e.gate.Accept(img); !ok {
		e.stats.FramesRejected.Add(1)
		log.Debug("frame rejected by quality gate", zap.String("reason", string(reason)))
		return
	}

	dup, err := e.suppressor.IsDuplicate(job.cameraID, img)
	if err != nil {
		e.stats.FramesRejected.Add(1)
		log.Warn("fingerprint failed", zap.Error(err))
		return
	}
	if dup {
		e.stats.FramesDuplicate.Add(1)
		log.Debug("duplicate frame suppressed")
		return
	}

	result := e.recognize(job.image, log)
	decision := e.classify.Classify(result.Confidence, result.FaceSimilarity, result.Matched())

	if !decision.PersonDetected {
		e.stats.FramesNoPerson.Add(1)
		log.Debug("no person detected", zap.Float64("confidence", result.Confidence))
		return
	}

	event := e.buildEvent(job, result, decision)
	e.stats.EventsClassified.Add(1)

	// Alert first. A storage outage must never swallow an intruder alert.
	if decision.Classification == models.ClassIntruder {
		e.fireAlert(event, job.image, log)
	} else {
		log.Info("authorized person recognized",
			zap.Stringp("person_name", event.PersonName),
			zap.Float64p("face_similarity", event.FaceSimilarity))
	}

	e.persist(event, job.image, log)
}

// recognize calls the engine with the configured deadline. On failure the
// frame is treated as an unidentified person at the detection floor, which
// classifies as a medium intruder: missing an intruder costs more than a
// false alert.
func (e *Engine) recognize(image []byte, log *zap.Logger) recognition.Result {
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.Recognition.Timeout)
	defer cancel()

	result, err := e.recognizer.DetectAndMatch(ctx, image)
	if err != nil {
		e.stats.RecognitionFailures.Add(1)
		log.Warn("recognition failed, assuming unidentified person", zap.Error(err))
		return recognition.Result{Confidence: e.cfg.Thresholds.MinDetectionConfidence}
	}
	return result
}

func (e *Engine) buildEvent(job frameJob, result recognition.Result, decision classifier.Decision) *models.Event {
	labels := make([]models.Label, 0, len(result.Labels))
	for _, l := range result.Labels {
		labels = append(labels, models.Label{Name: l.Name, Confidence: l.Confidence})
	}

	return &models.Event{
		EventID:        repository.EventKey(job.cameraID, job.ts),
		CameraID:       job.cameraID,
		Timestamp:      job.ts,
		PersonDetected: decision.PersonDetected,
		Confidence:     decision.Confidence,
		FaceSimilarity: decision.FaceSimilarity,
		Authorized:     decision.Authorized,
		PersonName:     result.PersonName,
		FaceID:         result.FaceID,
		Severity:       e.classify.Severity(decision),
		Labels:         labels,
		CreatedAt:      time.Now().UTC(),
	}
}

func (e *Engine) fireAlert(event *models.Event, frame []byte, log *zap.Logger) {
	// upload before alerting so the alert can carry a link; alert goes out
	// either way
	snapshotURL := e.saveSnapshot(event, frame, log)

	if err := e.alerts.NotifyIntruder(event, snapshotURL); err != nil {
		e.stats.AlertFailures.Add(1)
		log.Error("alert publish failed", zap.Error(err))
	} else {
		e.stats.AlertsFired.Add(1)
	}
}

func (e *Engine) saveSnapshot(event *models.Event, frame []byte, log *zap.Logger) string {
	ctx, cancel := context.WithTimeout(e.ctx, 10*time.Second)
	defer cancel()

	key, err := e.snapshots.Save(ctx, event.EventID, event.Timestamp, frame)
	if err != nil {
		log.Warn("snapshot upload failed", zap.Error(err))
		return ""
	}
	event.SnapshotKey = key

	url, err := e.snapshots.PresignedURL(ctx, key)
	if err != nil {
		log.Warn("snapshot presign failed", zap.Error(err))
		return ""
	}
	return url
}

func (e *Engine) persist(event *models.Event, frame []byte, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(e.ctx, 15*time.Second)
	defer cancel()

	// non-intruder events still get their frame stored for review
	if event.SnapshotKey == "" {
		if key, err := e.snapshots.Save(ctx, event.EventID, event.Timestamp, frame); err == nil {
			event.SnapshotKey = key
		} else {
			log.Warn("snapshot upload failed", zap.Error(err))
		}
	}

	if err := e.events.SaveEvent(ctx, event); err != nil {
		e.stats.StoreFailures.Add(1)
		log.Error("event persist failed, store degraded",
			zap.String("event_id", event.EventID),
			zap.Error(err))
		if cacheErr := e.cache.SetDegraded(ctx); cacheErr != nil {
			log.Warn("degraded flag update failed", zap.Error(cacheErr))
		}
		return
	}
	e.stats.EventsStored.Add(1)

	if err := e.cache.PushRecentEvent(ctx, event); err != nil {
		log.Warn("recent-events cache update failed", zap.Error(err))
	}
}
