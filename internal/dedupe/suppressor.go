package dedupe

import (
	"image"
	"sync"

	"go.uber.org/zap"

	"github.com/frnnnnn/Vision360/internal/imaging"
)

// Suppressor drops frames perceptually identical to the immediately
// preceding accepted frame of the same camera. It is the cheap pre-filter
// that runs between the quality gate and the costly recognition call.
//
// State is partitioned by camera: each camera owns its last fingerprint and
// its own lock. There is no global lock around comparisons.
type Suppressor struct {
	maxDistance int
	logger      *zap.Logger

	mu      sync.Mutex // guards the cameras map only
	cameras map[string]*cameraFingerprint
}

type cameraFingerprint struct {
	mu   sync.Mutex
	last *imaging.Fingerprint
}

// NewSuppressor creates a suppressor. maxDistance is the largest fingerprint
// hamming distance still treated as a duplicate (3 bits of a 64-bit hash is
// roughly 95% similarity).
func NewSuppressor(maxDistance int, logger *zap.Logger) *Suppressor {
	return &Suppressor{
		maxDistance: maxDistance,
		logger:      logger,
		cameras:     make(map[string]*cameraFingerprint),
	}
}

// IsDuplicate reports whether the frame repeats the camera's last accepted
// frame. Duplicates leave the stored fingerprint unchanged; non-duplicates
// replace it and proceed downstream. The fingerprint is computed before the
// per-camera lock is taken, so a slow hash never blocks other frames.
func (s *Suppressor) IsDuplicate(cameraID string, img image.Image) (bool, error) {
	fp, err := imaging.NewFingerprint(img)
	if err != nil {
		return false, err
	}

	state := s.stateFor(cameraID)

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.last != nil {
		distance, err := state.last.Distance(fp)
		if err != nil {
			return false, err
		}
		if distance <= s.maxDistance {
			s.logger.Debug("Duplicate frame suppressed",
				zap.String("camera_id", cameraID),
				zap.Int("distance", distance),
			)
			return true, nil
		}
	}

	state.last = fp
	return false, nil
}

// Reset forgets the stored fingerprint for a camera.
func (s *Suppressor) Reset(cameraID string) {
	state := s.stateFor(cameraID)
	state.mu.Lock()
	state.last = nil
	state.mu.Unlock()
}

func (s *Suppressor) stateFor(cameraID string) *cameraFingerprint {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.cameras[cameraID]
	if !ok {
		state = &cameraFingerprint{}
		s.cameras[cameraID] = state
	}
	return state
}
