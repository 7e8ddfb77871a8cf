package opencv

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"cvscanner/internal/config"
	"cvscanner/internal/logger"
	"cvscanner/internal/model"
	"cvscanner/internal/service/capture"

	"gocv.io/x/gocv"
)

// Camera opens OpenCV video capture devices.
type Camera struct {
	maxDevices int
	facing     map[int]string
	logger     *logger.Logger
}

// NewCamera creates a Camera probing at most config.CameraMaxDevices indices.
func NewCamera(config *config.Config, logger *logger.Logger) *Camera {
	return &Camera{
		maxDevices: config.CameraMaxDevices,
		facing:     config.CameraFacing,
		logger:     logger,
	}
}

// Devices lists the capture devices that can be opened.
func (c *Camera) Devices(ctx context.Context) ([]model.CameraDevice, error) {
	var devices []model.CameraDevice

	for index := 0; index < c.maxDevices; index++ {
		if err := ctx.Err(); err != nil {
			return devices, err
		}

		if err := checkDeviceAccess(index); err != nil {
			continue
		}

		vc, err := gocv.VideoCaptureDevice(index)
		if err != nil {
			continue
		}
		opened := vc.IsOpened()
		vc.Close()
		if !opened {
			continue
		}

		devices = append(devices, model.CameraDevice{
			Index:  index,
			Label:  fmt.Sprintf("camera %d", index),
			Facing: c.facingOf(index),
		})
	}

	c.logger.Info("Found %d camera device(s)", len(devices))
	return devices, nil
}

// Open starts capturing from the device at the requested resolution.
func (c *Camera) Open(ctx context.Context, device model.CameraDevice, res capture.Resolution) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := checkDeviceAccess(device.Index); err != nil {
		return nil, err
	}

	vc, err := gocv.VideoCaptureDevice(device.Index)
	if err != nil {
		return nil, model.NewError(model.ErrorKindNoDeviceAvailable, "failed to open camera", err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, model.ErrNoDeviceAvailable
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(res.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(res.Height))

	return &stream{vc: vc}, nil
}

func (c *Camera) facingOf(index int) model.Facing {
	switch c.facing[index] {
	case "environment", "back", "rear":
		return model.FacingEnvironment
	case "user", "front":
		return model.FacingUser
	default:
		return model.FacingUnknown
	}
}

// checkDeviceAccess tells a denied device node apart from a missing one on Linux.
func checkDeviceAccess(index int) error {
	if runtime.GOOS != "linux" {
		return nil
	}

	node := fmt.Sprintf("/dev/video%d", index)
	file, err := os.OpenFile(node, os.O_RDWR, 0)
	if err != nil {
		if os.IsPermission(err) {
			return model.NewError(model.ErrorKindPermissionDenied, "camera permission denied", err)
		}
		return model.NewError(model.ErrorKindNoDeviceAvailable, "camera device not found", err)
	}
	file.Close()
	return nil
}

type stream struct {
	vc *gocv.VideoCapture
}

func (s *stream) Read() (capture.Frame, error) {
	mat := gocv.NewMat()
	if ok := s.vc.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("camera returned an empty frame")
	}
	return &frame{mat: mat}, nil
}

func (s *stream) Close() error {
	return s.vc.Close()
}

type frame struct {
	mat gocv.Mat
}

func (f *frame) Close() error {
	return f.mat.Close()
}
