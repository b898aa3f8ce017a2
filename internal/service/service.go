package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	_ "github.com/lib/pq"

	"github.com/frnnnnn/Vision360/internal/api"
	"github.com/frnnnnn/Vision360/internal/cache"
	"github.com/frnnnnn/Vision360/internal/config"
	"github.com/frnnnnn/Vision360/internal/consumer"
	"github.com/frnnnnn/Vision360/internal/liveness"
	"github.com/frnnnnn/Vision360/internal/mqttclient"
	"github.com/frnnnnn/Vision360/internal/notifier"
	"github.com/frnnnnn/Vision360/internal/pipeline"
	"github.com/frnnnnn/Vision360/internal/recognition"
	"github.com/frnnnnn/Vision360/internal/repository"
	"github.com/frnnnnn/Vision360/internal/storage"
)

// EngineService wires the full decision engine: broker consumer, frame
// pipeline, liveness monitor, persistence, and the HTTP control surface.
type EngineService struct {
	cfg         *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttclient.Client
	logger      *zap.Logger

	eventsRepo   *repository.EventsRepository
	camerasRepo  *repository.CamerasRepository
	cacheManager *cache.Manager
	monitor      *liveness.Monitor
	engine       *pipeline.Engine
	consumer     *consumer.MQTTConsumer
	httpServer   *http.Server
}

// NewEngineService connects every backing store and assembles the pipeline.
func NewEngineService(cfg *config.Config, logger *zap.Logger) (*EngineService, error) {
	// 1. Postgres
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. MQTT
	mqttClient, err := mqttclient.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect mqtt: %w", err)
	}

	// 4. Snapshot store
	snapshots, err := storage.NewMinioStore(cfg.Minio, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect snapshot store: %w", err)
	}

	// 5. Repositories and cache
	eventsRepo := repository.NewEventsRepository(db, logger)
	camerasRepo := repository.NewCamerasRepository(db, logger)
	cacheManager := cache.NewManager(cfg, redisClient, logger)

	// 6. Liveness monitor, alert notifier, recognizer
	monitor := liveness.NewMonitor(cfg.Liveness.HeartbeatTimeout, logger)
	alertNotifier := notifier.New(mqttClient, cfg.MQTT.AlertTopicPrefix, logger)
	monitor.OnOffline(func(cameraID string, lastHeartbeat int64) {
		if err := alertNotifier.NotifyCameraOffline(cameraID, lastHeartbeat); err != nil {
			logger.Error("offline notice failed",
				zap.String("camera_id", cameraID), zap.Error(err))
		}
	})
	recognizer := recognition.NewClient(cfg.Recognition, cfg.Thresholds)

	// 7. Pipeline engine
	engine := pipeline.NewEngine(cfg, recognizer, monitor,
		eventsRepo, camerasRepo, alertNotifier, snapshots, cacheManager, logger)

	// 8. Inbound consumer and HTTP server
	mqttConsumer := consumer.NewMQTTConsumer(cfg, mqttClient, engine, logger)
	apiServer := api.NewServer(engine, monitor, eventsRepo, cacheManager, snapshots, logger)

	return &EngineService{
		cfg:          cfg,
		db:           db,
		redisClient:  redisClient,
		mqttClient:   mqttClient,
		logger:       logger,
		eventsRepo:   eventsRepo,
		camerasRepo:  camerasRepo,
		cacheManager: cacheManager,
		monitor:      monitor,
		engine:       engine,
		consumer:     mqttConsumer,
		httpServer: &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: apiServer.Handler(),
		},
	}, nil
}

// Start restores camera watermarks, subscribes to the broker, and serves
// HTTP until ctx is cancelled.
func (s *EngineService) Start(ctx context.Context) error {
	s.logger.Info("starting engine service",
		zap.String("http_addr", s.cfg.HTTP.Addr),
		zap.String("mqtt_broker", s.cfg.MQTT.Broker))

	// warm the liveness monitor from stored watermarks so a restart does
	// not report every camera unknown
	cameras, err := s.camerasRepo.ListCameras(ctx)
	if err != nil {
		s.logger.Warn("camera watermark restore failed", zap.Error(err))
	} else {
		for _, cam := range cameras {
			s.monitor.Beat(cam.CameraID, cam.LastHeartbeat)
		}
		s.logger.Info("camera watermarks restored", zap.Int("cameras", len(cameras)))
	}

	if err := s.consumer.Start(); err != nil {
		return fmt.Errorf("failed to start mqtt consumer: %w", err)
	}

	go s.monitor.Run(ctx, s.cfg.Liveness.ProbeInterval)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errChan:
		return err
	}
}

// Stop shuts everything down in dependency order.
func (s *EngineService) Stop() {
	s.logger.Info("stopping engine service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http shutdown failed", zap.Error(err))
	}

	s.engine.Close()
	s.mqttClient.Disconnect()

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("redis close failed", zap.Error(err))
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("database close failed", zap.Error(err))
	}
}
