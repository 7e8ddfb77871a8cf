package dto

import "cvscanner/internal/model"

// ProbeHints are capability facts only the rendering client can observe.
type ProbeHints struct {
	Screen              *model.ScreenDimensions `json:"screen,omitempty"`
	DeviceMemoryGB      float64                 `json:"deviceMemory,omitempty"`
	HardwareConcurrency int                     `json:"hardwareConcurrency,omitempty"`
	EffectiveType       string                  `json:"effectiveType,omitempty"`
}
