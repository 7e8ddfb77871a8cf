package probe

import (
	"context"
	"strings"

	"cvscanner/internal/config"
	"cvscanner/internal/dto"
	"cvscanner/internal/logger"
	"cvscanner/internal/model"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	// LowPowerMemoryBytes is the memory at or below which a device counts as low power.
	LowPowerMemoryBytes = 2 << 30
	// LowPowerCores is the logical core count at or below which a device counts as low power.
	LowPowerCores = 2
)

// CameraEnumerator lists the cameras attached to the device.
type CameraEnumerator interface {
	Devices(ctx context.Context) ([]model.CameraDevice, error)
}

// HostInfo reads hardware facts of the machine the service runs on.
type HostInfo interface {
	MemoryBytes(ctx context.Context) (uint64, error)
	LogicalCores(ctx context.Context) (int, error)
}

// Prober builds the DeviceProfile of a pipeline session.
type Prober struct {
	cameras         CameraEnumerator
	host            HostInfo
	networkOverride string
	logger          *logger.Logger
}

// NewProber creates a Prober. A nil enumerator means the device has no camera.
func NewProber(cameras CameraEnumerator, host HostInfo, config *config.Config, logger *logger.Logger) *Prober {
	if host == nil {
		host = SystemHost{}
	}
	return &Prober{
		cameras:         cameras,
		host:            host,
		networkOverride: config.NetworkClass,
		logger:          logger,
	}
}

// Probe inspects the device. It never fails: every fact that cannot be read
// falls back to its most conservative value.
func (p *Prober) Probe(ctx context.Context, hints dto.ProbeHints) model.DeviceProfile {
	profile := model.DeviceProfile{
		SupportsFileSelection: true,
		Cameras:               []model.CameraDevice{},
	}

	if p.cameras != nil {
		devices, err := p.cameras.Devices(ctx)
		if err != nil {
			p.logger.Warning("Camera enumeration failed, assuming no camera: %v", err)
		} else if len(devices) > 0 {
			profile.Cameras = devices
		}
	}
	profile.HasCamera = len(profile.Cameras) > 0
	profile.HasMultipleCameras = len(profile.Cameras) > 1

	if hints.Screen != nil {
		profile.Screen = *hints.Screen
	}

	profile.MemoryBytes, profile.LogicalCores = p.resources(ctx, hints)
	profile.IsLowPowerDevice = IsLowPower(profile.MemoryBytes, profile.LogicalCores)

	profile.NetworkClass = ClassifyNetwork(hints.EffectiveType)
	if profile.NetworkClass == model.NetworkUnknown && p.networkOverride != "" {
		profile.NetworkClass = ClassifyNetwork(p.networkOverride)
	}

	p.logger.Info("🔎 Device profile: cameras=%d lowPower=%t network=%s",
		len(profile.Cameras), profile.IsLowPowerDevice, profile.NetworkClass)
	return profile
}

// resources prefers client-reported values and falls back to the host.
// Zero means unknown.
func (p *Prober) resources(ctx context.Context, hints dto.ProbeHints) (uint64, int) {
	var memory uint64
	if hints.DeviceMemoryGB > 0 {
		memory = uint64(hints.DeviceMemoryGB * float64(1<<30))
	} else if m, err := p.host.MemoryBytes(ctx); err == nil {
		memory = m
	} else {
		p.logger.Warning("Could not read device memory: %v", err)
	}

	cores := hints.HardwareConcurrency
	if cores <= 0 {
		if c, err := p.host.LogicalCores(ctx); err == nil {
			cores = c
		} else {
			p.logger.Warning("Could not read core count: %v", err)
		}
	}

	return memory, cores
}

// IsLowPower applies the memory/core thresholds. Unknown values count as low power.
func IsLowPower(memoryBytes uint64, cores int) bool {
	if memoryBytes == 0 || cores <= 0 {
		return true
	}
	return memoryBytes <= LowPowerMemoryBytes || cores <= LowPowerCores
}

// ClassifyNetwork maps a Network Information API effectiveType to a class.
func ClassifyNetwork(effectiveType string) model.NetworkClass {
	switch strings.ToLower(strings.TrimSpace(effectiveType)) {
	case "slow-2g", "2g", "slow":
		return model.NetworkSlow
	case "3g", "moderate":
		return model.NetworkModerate
	case "4g", "5g", "wifi", "ethernet", "fast":
		return model.NetworkFast
	default:
		return model.NetworkUnknown
	}
}

// SystemHost reads memory and cores of the local machine.
type SystemHost struct{}

func (SystemHost) MemoryBytes(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Total, nil
}

func (SystemHost) LogicalCores(ctx context.Context) (int, error) {
	return cpu.CountsWithContext(ctx, true)
}
