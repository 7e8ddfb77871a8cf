package model

// NetworkClass is a coarse bucket of the client's connection quality.
type NetworkClass string

const (
	NetworkSlow     NetworkClass = "slow"
	NetworkModerate NetworkClass = "moderate"
	NetworkFast     NetworkClass = "fast"
	NetworkUnknown  NetworkClass = "unknown"
)

// Facing tells which way a camera points.
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
	FacingUnknown     Facing = "unknown"
)

// CameraDevice describes one camera found while probing.
type CameraDevice struct {
	Index  int    `json:"index"`
	Label  string `json:"label"`
	Facing Facing `json:"facing"`
}

// ScreenDimensions are reported by the client that renders the pipeline.
type ScreenDimensions struct {
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	PixelDensity float64 `json:"pixelDensity"`
}

// DeviceProfile is the result of capability probing. It is created once per
// pipeline session and passed by value so nobody can change it afterwards.
type DeviceProfile struct {
	HasCamera             bool             `json:"hasCamera"`
	HasMultipleCameras    bool             `json:"hasMultipleCameras"`
	SupportsFileSelection bool             `json:"supportsFileSelection"`
	Screen                ScreenDimensions `json:"screenDimensions"`
	IsLowPowerDevice      bool             `json:"isLowPowerDevice"`
	NetworkClass          NetworkClass     `json:"networkClass"`
	Cameras               []CameraDevice   `json:"cameras"`
	MemoryBytes           uint64           `json:"memoryBytes"`
	LogicalCores          int              `json:"logicalCores"`
}
