package dto

import "cvscanner/internal/model"

// Snapshot is what the view renders: the pipeline state plus the page list
// and the actions currently on offer.
type Snapshot struct {
	Phase            string               `json:"phase"`
	Generation       uint64               `json:"generation"`
	Profile          model.DeviceProfile  `json:"profile"`
	Pages            []PageInfo           `json:"pages"`
	AvailableActions []string             `json:"availableActions"`
	CameraLive       bool                 `json:"cameraLive"`
	Result           *model.IntakeResult  `json:"result,omitempty"`
	Failure          *model.PipelineError `json:"failure,omitempty"`
	Notice           string               `json:"notice,omitempty"`
	ArchivedID       string               `json:"archivedId,omitempty"`
}
