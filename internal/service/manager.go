package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"cvscanner/internal/config"
	"cvscanner/internal/dto"
	"cvscanner/internal/logger"
	"cvscanner/internal/service/capture"
	"cvscanner/internal/service/pipeline"
	"cvscanner/internal/service/probe"
	"cvscanner/internal/service/storage"
	"cvscanner/internal/service/websocket"
)

// Manager owns the single active pipeline session of the kiosk and feeds
// its state and camera preview to the viewers.
type Manager struct {
	prober    *probe.Prober
	sessions  *capture.SessionManager
	selector  *capture.FileSelector
	submitter pipeline.Submitter
	archiver  pipeline.Archiver
	hub       *websocket.HubService
	logger    *logger.Logger

	maxPages        int
	previewInterval time.Duration
	previewEveryNth int // Co którą klatkę podglądu wysyłać do widzów
	frameCounter    int

	startMu sync.Mutex // Serializuje StartSession
	mu      sync.Mutex
	current *pipeline.Controller
	done    chan struct{}
	wg      sync.WaitGroup
}

// ViewMessage is one message pushed to viewers.
type ViewMessage struct {
	Type  string        `json:"type"`
	State *dto.Snapshot `json:"state,omitempty"`
	Image string        `json:"image,omitempty"`
}

func NewManager(prober *probe.Prober, sessions *capture.SessionManager, selector *capture.FileSelector, submitter pipeline.Submitter, archiver pipeline.Archiver, hub *websocket.HubService, config *config.Config, logger *logger.Logger) *Manager {
	everyNth := config.PreviewEveryNth
	if everyNth <= 0 {
		everyNth = 1
	}

	manager := &Manager{
		prober:          prober,
		sessions:        sessions,
		selector:        selector,
		submitter:       submitter,
		archiver:        archiver,
		hub:             hub,
		logger:          logger,
		maxPages:        config.MaxPages,
		previewInterval: config.PreviewInterval,
		previewEveryNth: everyNth,
		done:            make(chan struct{}),
	}

	if manager.previewInterval > 0 && hub != nil {
		manager.wg.Add(1)
		go manager.previewWorker()
	}

	manager.logger.Info("🎬 Manager started - preview every %v, sending every %d frame(s)", manager.previewInterval, manager.previewEveryNth)
	return manager
}

// StartSession probes the device and replaces the active session with a new one.
func (m *Manager) StartSession(ctx context.Context, hints dto.ProbeHints) *pipeline.Controller {
	profile := m.prober.Probe(ctx, hints)

	controller := pipeline.NewController(profile, pipeline.Options{
		Buffer:    storage.NewPageBuffer(m.maxPages, m.logger),
		Sessions:  m.sessions,
		Selector:  m.selector,
		Submitter: m.submitter,
		Archiver:  m.archiver,
		Logger:    m.logger,
	})
	controller.Subscribe(m.SendState)

	m.startMu.Lock()
	defer m.startMu.Unlock()

	// Stara sesja zwalnia kamerę, zanim nowa stanie się dostępna
	if previous := m.Current(); previous != nil {
		previous.Close()
	}

	m.mu.Lock()
	m.current = controller
	m.frameCounter = 0
	m.mu.Unlock()

	m.logger.Info("New intake session: camera=%t lowPower=%t network=%s",
		profile.HasCamera, profile.IsLowPowerDevice, profile.NetworkClass)
	m.SendState(controller.Snapshot())
	return controller
}

// Current returns the active session, or nil before the first StartSession.
func (m *Manager) Current() *pipeline.Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SendState pushes a state snapshot to every viewer.
func (m *Manager) SendState(snapshot dto.Snapshot) {
	if m.hub == nil {
		return
	}
	msg, err := json.Marshal(ViewMessage{Type: "state", State: &snapshot})
	if err != nil {
		m.logger.Error("Failed to encode state snapshot: %v", err)
		return
	}
	m.hub.Publish(msg)
}

// SendPreview pushes a preview frame to every viewer, dropping it when they lag.
func (m *Manager) SendPreview(image []byte) {
	msg, err := json.Marshal(ViewMessage{Type: "preview", Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		m.logger.Error("Failed to encode preview: %v", err)
		return
	}
	m.hub.Broadcast(msg)
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.hub
}

// previewWorker grabs frames from the live camera and forwards every Nth one.
func (m *Manager) previewWorker() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.previewInterval)
	defer ticker.Stop()

	m.logger.Info("🔧 Preview worker started")
	for {
		select {
		case <-m.done:
			m.logger.Info("🔧 Preview worker stopped")
			return
		case <-ticker.C:
			m.previewTick()
		}
	}
}

func (m *Manager) previewTick() {
	controller := m.Current()
	if controller == nil || !controller.State().CameraLive || m.hub.GetClientCount() == 0 {
		return
	}

	m.mu.Lock()
	m.frameCounter++
	frameCount := m.frameCounter
	m.mu.Unlock()

	if frameCount%m.previewEveryNth != 0 {
		return
	}

	image, err := controller.Preview()
	if err != nil {
		// Kamera mogła zostać zatrzymana między sprawdzeniem a odczytem
		return
	}
	m.SendPreview(image)
}

// Stop closes the active session and stops the preview worker.
func (m *Manager) Stop() {
	select {
	case <-m.done:
		return
	default:
		close(m.done)
	}
	m.wg.Wait()

	m.mu.Lock()
	current := m.current
	m.current = nil
	m.mu.Unlock()

	if current != nil {
		current.Close()
	}
	m.logger.Info("🛑 Manager stopped")
}
