package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cvscanner/internal/dto"
	"cvscanner/internal/logger"
	"cvscanner/internal/model"
	"cvscanner/internal/service/capture"
	"cvscanner/internal/service/storage"
)

// ErrClosed is returned by every action after Close.
var ErrClosed = errors.New("pipeline session closed")

// Submitter sends the buffered pages to the intake backend.
type Submitter interface {
	Submit(ctx context.Context, pages []model.CapturedPage, profile model.DeviceProfile) (*model.IntakeResult, error)
}

// Archiver stores an accepted intake and its pages.
type Archiver interface {
	Archive(ctx context.Context, pages []model.CapturedPage, result *model.IntakeResult) (string, error)
}

// Listener receives a snapshot after every applied transition.
type Listener func(dto.Snapshot)

// Controller runs one pipeline session. It owns the page buffer, the live
// camera session and the in-flight submission. Actions are serialised.
type Controller struct {
	mu        sync.Mutex
	state     State
	buffer    *storage.PageBuffer
	sessions  *capture.SessionManager
	selector  *capture.FileSelector
	submitter Submitter
	archiver  Archiver
	logger    *logger.Logger

	session   *capture.LiveSession
	cancel    context.CancelFunc
	inflight  sync.WaitGroup
	base      context.Context
	stop      context.CancelFunc
	closed    bool
	listeners []Listener
}

// Options holds the collaborators of a Controller. Archiver may be nil.
type Options struct {
	Buffer    *storage.PageBuffer
	Sessions  *capture.SessionManager
	Selector  *capture.FileSelector
	Submitter Submitter
	Archiver  Archiver
	Logger    *logger.Logger
}

// NewController starts a session in ChoosingMethod for the given profile.
func NewController(profile model.DeviceProfile, opts Options) *Controller {
	base, stop := context.WithCancel(context.Background())
	return &Controller{
		state:     NewState(profile),
		buffer:    opts.Buffer,
		sessions:  opts.Sessions,
		selector:  opts.Selector,
		submitter: opts.Submitter,
		archiver:  opts.Archiver,
		logger:    opts.Logger,
		base:      base,
		stop:      stop,
	}
}

// Subscribe registers a listener for state changes.
func (c *Controller) Subscribe(listener Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the current state together with the page list.
func (c *Controller) Snapshot() dto.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Pages returns the buffered pages in document order.
func (c *Controller) Pages() []model.CapturedPage {
	return c.buffer.Pages()
}

// Page returns one buffered page.
func (c *Controller) Page(id string) (model.CapturedPage, bool) {
	return c.buffer.Get(id)
}

// ChooseCamera starts the camera. If the camera cannot be opened the session
// moves to file selection with a notice instead of failing.
func (c *Controller) ChooseCamera(ctx context.Context) (State, error) {
	return c.do(ctx, Action{Type: ActionChooseCamera}, nil)
}

// ChooseFiles moves to file selection.
func (c *Controller) ChooseFiles(ctx context.Context) (State, error) {
	return c.do(ctx, Action{Type: ActionChooseFiles}, nil)
}

// CaptureFrame appends the current camera frame as a new page.
func (c *Controller) CaptureFrame(ctx context.Context) (State, error) {
	return c.do(ctx, Action{Type: ActionCaptureFrame}, nil)
}

// FinishCapturing stops the camera and opens the review.
func (c *Controller) FinishCapturing(ctx context.Context) (State, error) {
	return c.do(ctx, Action{Type: ActionFinishCapturing}, nil)
}

// Cancel leaves live capture or file selection.
func (c *Controller) Cancel(ctx context.Context) (State, error) {
	return c.do(ctx, Action{Type: ActionCancel}, nil)
}

// FilesSelected appends the usable files as pages.
func (c *Controller) FilesSelected(ctx context.Context, files []capture.SelectedFile) (State, error) {
	return c.do(ctx, Action{Type: ActionFilesSelected}, files)
}

// RetakePage removes one page from the buffer.
func (c *Controller) RetakePage(ctx context.Context, id string) (State, error) {
	return c.do(ctx, Action{Type: ActionRetakePage, PageID: id}, nil)
}

// Submit sends the buffer to the intake backend in the background.
func (c *Controller) Submit(ctx context.Context) (State, error) {
	return c.do(ctx, Action{Type: ActionSubmit}, nil)
}

// Retry resubmits the unchanged buffer after a failure.
func (c *Controller) Retry(ctx context.Context) (State, error) {
	return c.do(ctx, Action{Type: ActionRetry}, nil)
}

// EditPages returns from a failure to the review.
func (c *Controller) EditPages(ctx context.Context) (State, error) {
	return c.do(ctx, Action{Type: ActionEditPages}, nil)
}

// Accept archives the result and starts over.
func (c *Controller) Accept(ctx context.Context) (State, error) {
	return c.do(ctx, Action{Type: ActionAccept}, nil)
}

// Reset stops the camera, drops any submission and empties the buffer.
func (c *Controller) Reset(ctx context.Context) (State, error) {
	return c.do(ctx, Action{Type: ActionReset}, nil)
}

// Dispatch applies an action by type. Completion actions are internal and rejected.
func (c *Controller) Dispatch(ctx context.Context, action ActionType, pageID string) (State, error) {
	switch action {
	case ActionSubmissionSucceeded, ActionSubmissionFailed, ActionCameraUnavailable, ActionFilesSelected:
		return c.State(), fmt.Errorf("%w: %s cannot be dispatched directly", ErrInvalidTransition, action)
	}
	return c.do(ctx, Action{Type: action, PageID: pageID}, nil)
}

// Preview grabs a low-quality frame while the camera is live.
func (c *Controller) Preview() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, fmt.Errorf("camera is not live")
	}
	return c.sessions.Preview(c.session)
}

// Wait blocks until the in-flight submission, if any, has been applied or dropped.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Close tears the session down. It is safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stop()
	c.cancelSubmission()
	c.stopCamera()
	c.buffer.Clear()
	c.mu.Unlock()

	c.inflight.Wait()
	c.logger.Info("Pipeline session closed")
}

func (c *Controller) do(ctx context.Context, action Action, files []capture.SelectedFile) (State, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return State{}, ErrClosed
	}

	err := c.apply(ctx, action, files)
	state := c.state
	var snapshot dto.Snapshot
	listeners := c.listeners
	if err == nil {
		snapshot = c.snapshot()
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warning("Action %s rejected in %s: %v", action.Type, state.Phase, err)
		return state, err
	}
	notify(listeners, snapshot)
	return state, nil
}

// apply runs one transition and its effects. Callers hold c.mu.
func (c *Controller) apply(ctx context.Context, action Action, files []capture.SelectedFile) error {
	prev := c.state
	next, effects, err := Next(prev, action)
	if err != nil {
		return err
	}
	c.state = next

	for _, effect := range effects {
		if err := c.run(ctx, effect, action, prev, files); err != nil {
			c.state = prev
			c.state.PageCount = c.buffer.Len()
			return err
		}
	}
	c.state.PageCount = c.buffer.Len()

	if prev.Phase != c.state.Phase {
		c.logger.Info("Pipeline %s -> %s (%s)", prev.Phase, c.state.Phase, action.Type)
	}
	return nil
}

func (c *Controller) run(ctx context.Context, effect Effect, action Action, prev State, files []capture.SelectedFile) error {
	switch effect {
	case EffectStartCamera:
		session, err := c.sessions.Start(ctx, c.state.Profile)
		if err != nil {
			c.state, _, _ = Next(c.state, Action{Type: ActionCameraUnavailable, Err: err})
			return nil
		}
		c.session = session

	case EffectStopCamera:
		c.stopCamera()

	case EffectCaptureFrame:
		if c.session == nil {
			return model.ErrNoDeviceAvailable
		}
		page, err := c.sessions.CaptureFrame(c.session)
		if err != nil {
			return err
		}
		if err := c.buffer.Append(page); err != nil {
			_ = page.Image.Release()
			return err
		}

	case EffectAppendPages:
		pages := c.selector.SelectFiles(ctx, files, c.state.Profile)
		added := 0
		for _, page := range pages {
			if err := c.buffer.Append(page); err != nil {
				_ = page.Image.Release()
				continue
			}
			added++
		}
		switch {
		case added == 0:
			c.state.Notice = "None of the selected files could be used. Choose JPEG, PNG, WebP, HEIC or PDF files."
		case added < len(pages):
			c.state.Notice = fmt.Sprintf("Only %d of %d pages were added, the page limit is %d.", added, len(pages), c.buffer.Limit())
		}

	case EffectRemovePage:
		c.buffer.Remove(action.PageID)

	case EffectSubmit:
		c.startSubmission(c.state.Generation)

	case EffectCancelSubmission:
		c.cancelSubmission()

	case EffectArchive:
		pages := c.buffer.Detach()
		defer releaseAll(pages)
		if c.archiver == nil {
			return nil
		}
		id, err := c.archiver.Archive(ctx, pages, prev.Result)
		if err != nil {
			c.logger.Error("Failed to archive intake: %v", err)
			c.state.Notice = "The result could not be saved to history."
			return nil
		}
		c.state.ArchivedID = id

	case EffectClearBuffer:
		c.buffer.Clear()
	}
	return nil
}

func (c *Controller) startSubmission(generation uint64) {
	c.cancelSubmission()

	pages := c.buffer.Pages()
	profile := c.state.Profile
	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer cancel()

		c.logger.Info("🚀 Submitting %d page(s), generation %d", len(pages), generation)
		result, err := c.submitter.Submit(ctx, pages, profile)
		if errors.Is(err, model.ErrCancelled) {
			c.logger.Info("Submission of generation %d cancelled", generation)
			return
		}

		action := Action{Type: ActionSubmissionSucceeded, Generation: generation, Result: result}
		if err != nil {
			action = Action{Type: ActionSubmissionFailed, Generation: generation, Err: err}
		}
		c.complete(action)
	}()
}

func (c *Controller) complete(action Action) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if err := c.apply(c.base, action, nil); err != nil {
		c.mu.Unlock()
		c.logger.Warning("Dropped submission outcome of generation %d: %v", action.Generation, err)
		return
	}
	if c.state.Failure != nil {
		c.logger.Warning("Submission failed: %v", c.state.Failure)
	} else {
		c.logger.Info("✅ Submission succeeded")
	}
	snapshot := c.snapshot()
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, snapshot)
}

func (c *Controller) cancelSubmission() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) stopCamera() {
	if c.session == nil {
		return
	}
	_ = c.sessions.Stop(c.session)
	c.session = nil
	c.state.CameraLive = false
}

func (c *Controller) snapshot() dto.Snapshot {
	actions := AvailableActions(c.state)
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return dto.Snapshot{
		Phase:            string(c.state.Phase),
		Generation:       c.state.Generation,
		Profile:          c.state.Profile,
		Pages:            dto.NewPageInfos(c.buffer.Pages()),
		AvailableActions: names,
		CameraLive:       c.state.CameraLive,
		Result:           c.state.Result,
		Failure:          c.state.Failure,
		Notice:           c.state.Notice,
		ArchivedID:       c.state.ArchivedID,
	}
}

func notify(listeners []Listener, snapshot dto.Snapshot) {
	for _, listener := range listeners {
		listener(snapshot)
	}
}

func releaseAll(pages []model.CapturedPage) {
	for _, page := range pages {
		if page.Image != nil {
			_ = page.Image.Release()
		}
	}
}
