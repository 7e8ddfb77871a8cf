package capture

import (
	"context"

	"cvscanner/internal/model"
)

// Resolution is the frame size requested from the camera.
type Resolution struct {
	Width  int
	Height int
}

var (
	// LowPowerResolution is requested on low-power devices.
	LowPowerResolution = Resolution{Width: 1280, Height: 720}
	// DefaultResolution is requested everywhere else.
	DefaultResolution = Resolution{Width: 1920, Height: 1080}
)

// EncodeParams controls how a frame is turned into image bytes.
type EncodeParams struct {
	MimeType string
	Quality  int
}

// Frame is one decoded video frame owned by the caller until Close.
type Frame interface {
	Close() error
}

// Stream is an open camera stream.
type Stream interface {
	Read() (Frame, error)
	Close() error
}

// Camera opens streams on physical devices. Open returns model.ErrPermissionDenied
// or model.ErrNoDeviceAvailable kinds when the device cannot be used.
type Camera interface {
	Open(ctx context.Context, device model.CameraDevice, res Resolution) (Stream, error)
}

// Encoder turns frames into image bytes.
type Encoder interface {
	Encode(frame Frame, params EncodeParams) ([]byte, error)
}
