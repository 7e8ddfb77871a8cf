package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cvscanner/internal/config"
	"cvscanner/internal/logger"
	"cvscanner/internal/model"

	"github.com/google/uuid"
)

// SessionState is the lifecycle state of one camera session.
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionRequesting SessionState = "requesting"
	SessionLive       SessionState = "live"
	SessionCapturing  SessionState = "capturing"
	SessionStopped    SessionState = "stopped"
)

// LiveSession owns an open camera stream between Start and Stop.
type LiveSession struct {
	mu         sync.Mutex
	state      SessionState
	stream     Stream
	device     model.CameraDevice
	resolution Resolution
	quality    int
	captured   int
	startedAt  time.Time
}

// State returns the current session state.
func (s *LiveSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Device returns the camera the session was opened on.
func (s *LiveSession) Device() model.CameraDevice {
	return s.device
}

// Resolution returns the requested frame size.
func (s *LiveSession) Resolution() Resolution {
	return s.resolution
}

// Captured returns how many pages were captured in this session.
func (s *LiveSession) Captured() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captured
}

// SessionManager starts, drives and stops camera sessions.
type SessionManager struct {
	camera          Camera
	encoder         Encoder
	logger          *logger.Logger
	quality         int
	lowPowerQuality int
	previewQuality  int
	newID           func() string
	now             func() time.Time
}

// NewSessionManager creates a SessionManager using the configured encode qualities.
func NewSessionManager(camera Camera, encoder Encoder, config *config.Config, logger *logger.Logger) *SessionManager {
	return &SessionManager{
		camera:          camera,
		encoder:         encoder,
		logger:          logger,
		quality:         config.JPEGQuality,
		lowPowerQuality: config.LowPowerJPEGQuality,
		previewQuality:  config.PreviewJPEGQuality,
		newID:           uuid.NewString,
		now:             time.Now,
	}
}

// Start opens the camera best suited for documents. On failure the caller
// falls back to file selection; Start never retries.
func (m *SessionManager) Start(ctx context.Context, profile model.DeviceProfile) (*LiveSession, error) {
	if !profile.HasCamera || len(profile.Cameras) == 0 {
		return nil, model.ErrNoDeviceAvailable
	}

	device := PreferredCamera(profile.Cameras)
	session := &LiveSession{
		state:      SessionRequesting,
		device:     device,
		resolution: ResolutionFor(profile),
		quality:    m.QualityFor(profile),
	}

	stream, err := m.camera.Open(ctx, device, session.resolution)
	if err != nil {
		session.state = SessionStopped
		if model.IsDeviceError(err) {
			m.logger.Warning("Camera %d unavailable: %v", device.Index, err)
			return nil, err
		}
		m.logger.Warning("Failed to open camera %d: %v", device.Index, err)
		return nil, model.NewError(model.ErrorKindNoDeviceAvailable, "camera could not be opened", err)
	}

	session.stream = stream
	session.state = SessionLive
	session.startedAt = m.now()
	m.logger.Info("📷 Camera %d live at %dx%d (quality %d)", device.Index,
		session.resolution.Width, session.resolution.Height, session.quality)
	return session, nil
}

// CaptureFrame grabs the current frame and encodes it as a new page.
func (m *SessionManager) CaptureFrame(session *LiveSession) (model.CapturedPage, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state != SessionLive {
		return model.CapturedPage{}, fmt.Errorf("camera session is %s", session.state)
	}

	session.state = SessionCapturing
	defer func() { session.state = SessionLive }()

	data, err := m.grab(session, session.quality)
	if err != nil {
		return model.CapturedPage{}, err
	}

	session.captured++
	page := model.CapturedPage{
		ID:         m.newID(),
		Image:      model.NewMemoryImage(data),
		SourceType: model.SourceCamera,
		MimeType:   "image/jpeg",
		CapturedAt: m.now(),
	}
	m.logger.Info("Captured page %s (%d bytes)", page.ID, len(data))
	return page, nil
}

// Preview grabs a low-quality frame for live viewers.
func (m *SessionManager) Preview(session *LiveSession) ([]byte, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state != SessionLive {
		return nil, fmt.Errorf("camera session is %s", session.state)
	}
	return m.grab(session, m.previewQuality)
}

// Stop releases the camera. It is safe to call on any exit path, more than once.
func (m *SessionManager) Stop(session *LiveSession) error {
	if session == nil {
		return nil
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state == SessionStopped {
		return nil
	}
	session.state = SessionStopped

	if session.stream == nil {
		return nil
	}
	err := session.stream.Close()
	session.stream = nil
	if err != nil {
		m.logger.Error("Error releasing camera %d: %v", session.device.Index, err)
		return err
	}
	m.logger.Info("📷 Camera %d released after %d page(s)", session.device.Index, session.captured)
	return nil
}

// QualityFor returns the JPEG quality used for pages on this device.
func (m *SessionManager) QualityFor(profile model.DeviceProfile) int {
	if profile.IsLowPowerDevice {
		return m.lowPowerQuality
	}
	return m.quality
}

func (m *SessionManager) grab(session *LiveSession, quality int) ([]byte, error) {
	frame, err := session.stream.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	defer frame.Close()

	data, err := m.encoder.Encode(frame, EncodeParams{MimeType: "image/jpeg", Quality: quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return data, nil
}

// ResolutionFor picks the capture resolution for a device profile.
func ResolutionFor(profile model.DeviceProfile) Resolution {
	if profile.IsLowPowerDevice {
		return LowPowerResolution
	}
	return DefaultResolution
}

// PreferredCamera prefers an environment-facing camera, then one of unknown
// facing, then a user-facing one. Ties keep enumeration order.
func PreferredCamera(cameras []model.CameraDevice) model.CameraDevice {
	rank := func(f model.Facing) int {
		switch f {
		case model.FacingEnvironment:
			return 0
		case model.FacingUser:
			return 2
		default:
			return 1
		}
	}

	best := cameras[0]
	for _, c := range cameras[1:] {
		if rank(c.Facing) < rank(best.Facing) {
			best = c
		}
	}
	return best
}
