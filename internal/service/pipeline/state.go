package pipeline

import (
	"errors"
	"fmt"

	"cvscanner/internal/model"
)

// Phase is the user-facing step of the intake flow.
type Phase string

const (
	PhaseChoosingMethod Phase = "choosing_method"
	PhaseLiveCapture    Phase = "live_capture"
	PhaseFileSelection  Phase = "file_selection"
	PhaseReviewingPages Phase = "reviewing_pages"
	PhaseProcessing     Phase = "processing"
	PhaseResult         Phase = "result"
	PhaseFailed         Phase = "failed"
)

// ActionType names a dispatchable action.
type ActionType string

const (
	ActionChooseCamera        ActionType = "choose_camera"
	ActionCameraUnavailable   ActionType = "camera_unavailable"
	ActionChooseFiles         ActionType = "choose_files"
	ActionCaptureFrame        ActionType = "capture_frame"
	ActionFinishCapturing     ActionType = "finish_capturing"
	ActionCancel              ActionType = "cancel"
	ActionFilesSelected       ActionType = "files_selected"
	ActionRetakePage          ActionType = "retake_page"
	ActionSubmit              ActionType = "submit"
	ActionSubmissionSucceeded ActionType = "submission_succeeded"
	ActionSubmissionFailed    ActionType = "submission_failed"
	ActionRetry               ActionType = "retry"
	ActionEditPages           ActionType = "edit_pages"
	ActionAccept              ActionType = "accept"
	ActionReset               ActionType = "reset"
)

// Effect is a side effect the controller performs after a transition.
type Effect string

const (
	EffectStartCamera      Effect = "start_camera"
	EffectStopCamera       Effect = "stop_camera"
	EffectCaptureFrame     Effect = "capture_frame"
	EffectAppendPages      Effect = "append_pages"
	EffectRemovePage       Effect = "remove_page"
	EffectSubmit           Effect = "submit"
	EffectCancelSubmission Effect = "cancel_submission"
	EffectArchive          Effect = "archive"
	EffectClearBuffer      Effect = "clear_buffer"
)

var (
	// ErrInvalidTransition is returned for an action the current phase does not allow.
	ErrInvalidTransition = errors.New("action not allowed in current phase")
	// ErrStaleResult is returned for a submission outcome of an older generation.
	ErrStaleResult = errors.New("submission result belongs to an earlier session")
)

// State is the single source of truth the view renders from.
type State struct {
	Phase      Phase                `json:"phase"`
	Generation uint64               `json:"generation"`
	Profile    model.DeviceProfile  `json:"profile"`
	PageCount  int                  `json:"pageCount"`
	CameraLive bool                 `json:"cameraLive"`
	Result     *model.IntakeResult  `json:"result,omitempty"`
	Failure    *model.PipelineError `json:"failure,omitempty"`
	Notice     string               `json:"notice,omitempty"`
	// ArchivedID is the history id of the last accepted intake.
	ArchivedID string `json:"archivedId,omitempty"`
}

// Action is one event fed into Next.
type Action struct {
	Type       ActionType
	PageID     string
	Generation uint64
	Result     *model.IntakeResult
	Err        error
}

// NewState returns the initial state of a session.
func NewState(profile model.DeviceProfile) State {
	return State{Phase: PhaseChoosingMethod, Profile: profile}
}

// Next computes the state after action and the effects the controller must
// run. It does not touch any device; an error leaves the state unchanged.
func Next(s State, a Action) (State, []Effect, error) {
	if a.Type == ActionReset {
		return reset(s), resetEffects(s), nil
	}

	next := s
	next.Notice = ""

	switch s.Phase {
	case PhaseChoosingMethod, PhaseReviewingPages:
		switch a.Type {
		case ActionChooseCamera:
			if !s.Profile.HasCamera {
				return s, nil, fmt.Errorf("%w: no camera on this device", ErrInvalidTransition)
			}
			next.Phase = PhaseLiveCapture
			next.CameraLive = true
			return next, []Effect{EffectStartCamera}, nil
		case ActionChooseFiles:
			next.Phase = PhaseFileSelection
			return next, nil, nil
		}

		if s.Phase == PhaseReviewingPages {
			switch a.Type {
			case ActionRetakePage:
				return next, []Effect{EffectRemovePage}, nil
			case ActionSubmit:
				if s.PageCount == 0 {
					return s, nil, model.ErrEmptyBuffer
				}
				return startProcessing(next), []Effect{EffectSubmit}, nil
			}
		}

	case PhaseLiveCapture:
		switch a.Type {
		case ActionCameraUnavailable:
			next.Phase = PhaseFileSelection
			next.CameraLive = false
			next.Notice = cameraNotice(a.Err)
			return next, nil, nil
		case ActionCaptureFrame:
			return next, []Effect{EffectCaptureFrame}, nil
		case ActionFinishCapturing:
			next.Phase = PhaseReviewingPages
			next.CameraLive = false
			return next, []Effect{EffectStopCamera}, nil
		case ActionCancel:
			next.Phase = afterCancel(s)
			next.CameraLive = false
			return next, []Effect{EffectStopCamera}, nil
		}

	case PhaseFileSelection:
		switch a.Type {
		case ActionFilesSelected:
			next.Phase = PhaseReviewingPages
			return next, []Effect{EffectAppendPages}, nil
		case ActionCancel:
			next.Phase = afterCancel(s)
			return next, nil, nil
		}

	case PhaseProcessing:
		switch a.Type {
		case ActionSubmissionSucceeded, ActionSubmissionFailed:
			if a.Generation != s.Generation {
				return s, nil, ErrStaleResult
			}
			if a.Type == ActionSubmissionSucceeded {
				next.Phase = PhaseResult
				next.Result = a.Result
				return next, nil, nil
			}
			next.Phase = PhaseFailed
			next.Failure = asPipelineError(a.Err)
			return next, nil, nil
		}

	case PhaseFailed:
		switch a.Type {
		case ActionRetry:
			if s.PageCount == 0 {
				return s, nil, model.ErrEmptyBuffer
			}
			return startProcessing(next), []Effect{EffectSubmit}, nil
		case ActionEditPages:
			next.Phase = PhaseReviewingPages
			next.Failure = nil
			return next, nil, nil
		}

	case PhaseResult:
		if a.Type == ActionAccept {
			accepted := reset(s)
			return accepted, []Effect{EffectArchive, EffectClearBuffer}, nil
		}
	}

	return s, nil, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, a.Type, s.Phase)
}

// AvailableActions lists the user actions the current phase offers.
func AvailableActions(s State) []ActionType {
	var actions []ActionType

	switch s.Phase {
	case PhaseChoosingMethod:
		if s.Profile.HasCamera {
			actions = append(actions, ActionChooseCamera)
		}
		actions = append(actions, ActionChooseFiles)
	case PhaseLiveCapture:
		actions = append(actions, ActionCaptureFrame, ActionFinishCapturing, ActionCancel)
	case PhaseFileSelection:
		actions = append(actions, ActionFilesSelected, ActionCancel)
	case PhaseReviewingPages:
		if s.Profile.HasCamera {
			actions = append(actions, ActionChooseCamera)
		}
		actions = append(actions, ActionChooseFiles)
		if s.PageCount > 0 {
			actions = append(actions, ActionRetakePage, ActionSubmit)
		}
	case PhaseProcessing:
	case PhaseResult:
		actions = append(actions, ActionAccept)
	case PhaseFailed:
		actions = append(actions, ActionRetry, ActionEditPages)
	}

	if s.Phase != PhaseChoosingMethod {
		actions = append(actions, ActionReset)
	}
	return actions
}

// Allows reports whether the current phase offers action.
func Allows(s State, action ActionType) bool {
	for _, a := range AvailableActions(s) {
		if a == action {
			return true
		}
	}
	return false
}

func startProcessing(s State) State {
	s.Phase = PhaseProcessing
	s.Generation++
	s.Result = nil
	s.Failure = nil
	return s
}

func reset(s State) State {
	return State{
		Phase:      PhaseChoosingMethod,
		Generation: s.Generation + 1,
		Profile:    s.Profile,
	}
}

func resetEffects(s State) []Effect {
	var effects []Effect
	if s.CameraLive {
		effects = append(effects, EffectStopCamera)
	}
	if s.Phase == PhaseProcessing {
		effects = append(effects, EffectCancelSubmission)
	}
	return append(effects, EffectClearBuffer)
}

func afterCancel(s State) Phase {
	if s.PageCount > 0 {
		return PhaseReviewingPages
	}
	return PhaseChoosingMethod
}

func cameraNotice(err error) string {
	if model.KindOf(err) == model.ErrorKindPermissionDenied {
		return "Camera access was denied. You can upload photos or a PDF of your CV instead."
	}
	return "No camera is available. You can upload photos or a PDF of your CV instead."
}

func asPipelineError(err error) *model.PipelineError {
	var pe *model.PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	if err == nil {
		return model.NewError(model.ErrorKindServerRejected, "submission failed", nil)
	}
	return model.NewError(model.ErrorKindNetwork, err.Error(), err)
}
