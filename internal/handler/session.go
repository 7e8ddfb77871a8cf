package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"cvscanner/internal/dto"
	"cvscanner/internal/logger"
	"cvscanner/internal/model"
	"cvscanner/internal/service"
	"cvscanner/internal/service/pipeline"

	"github.com/gorilla/mux"
)

// actions maps the path names of POST /api/actions/{action} to pipeline actions.
var actions = map[string]pipeline.ActionType{
	"camera":  pipeline.ActionChooseCamera,
	"files":   pipeline.ActionChooseFiles,
	"capture": pipeline.ActionCaptureFrame,
	"finish":  pipeline.ActionFinishCapturing,
	"cancel":  pipeline.ActionCancel,
	"submit":  pipeline.ActionSubmit,
	"retry":   pipeline.ActionRetry,
	"edit":    pipeline.ActionEditPages,
	"accept":  pipeline.ActionAccept,
	"reset":   pipeline.ActionReset,
}

// StartSessionHandler probes the device with the client hints and opens a new session.
func StartSessionHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var hints dto.ProbeHints
		if err := json.NewDecoder(r.Body).Decode(&hints); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "Invalid probe hints", http.StatusBadRequest)
			return
		}

		controller := manager.StartSession(r.Context(), hints)
		writeJSON(w, http.StatusCreated, controller.Snapshot(), logger)
	}
}

// StateHandler returns the snapshot of the active session.
func StateHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		controller := manager.Current()
		if controller == nil {
			http.Error(w, "No active session", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, controller.Snapshot(), logger)
	}
}

// ActionHandler applies one named action to the active session.
func ActionHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["action"]
		action, ok := actions[name]
		if !ok {
			http.Error(w, "Unknown action: "+name, http.StatusNotFound)
			return
		}

		controller := manager.Current()
		if controller == nil {
			http.Error(w, "No active session", http.StatusNotFound)
			return
		}

		if _, err := controller.Dispatch(r.Context(), action, ""); err != nil {
			writeActionError(w, controller, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, controller.Snapshot(), logger)
	}
}

type errorResponse struct {
	Error     string          `json:"error"`
	ErrorKind model.ErrorKind `json:"errorKind,omitempty"`
	State     *dto.Snapshot   `json:"state,omitempty"`
}

// writeActionError reports a rejected action together with the unchanged state.
func writeActionError(w http.ResponseWriter, controller *pipeline.Controller, err error, logger *logger.Logger) {
	resp := errorResponse{Error: err.Error(), ErrorKind: model.KindOf(err)}
	if !errors.Is(err, pipeline.ErrClosed) {
		snapshot := controller.Snapshot()
		resp.State = &snapshot
	}
	writeJSON(w, statusFor(err), resp, logger)
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidTransition), errors.Is(err, pipeline.ErrStaleResult):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrClosed):
		return http.StatusGone
	case errors.Is(err, model.ErrEmptyBuffer):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrBufferFull):
		return http.StatusRequestEntityTooLarge
	case model.IsDeviceError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
