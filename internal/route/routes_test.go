package route

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"cvscanner/internal/config"
	"cvscanner/internal/dto"
	"cvscanner/internal/logger"
	"cvscanner/internal/model"
	"cvscanner/internal/repository/sqlite"
	"cvscanner/internal/service"
	"cvscanner/internal/service/capture"
	"cvscanner/internal/service/probe"
	"cvscanner/internal/service/storage"
	"cvscanner/internal/service/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedHost struct{}

func (fixedHost) MemoryBytes(ctx context.Context) (uint64, error) { return 8 << 30, nil }
func (fixedHost) LogicalCores(ctx context.Context) (int, error)   { return 8, nil }

type okSubmitter struct{}

func (okSubmitter) Submit(ctx context.Context, pages []model.CapturedPage, profile model.DeviceProfile) (*model.IntakeResult, error) {
	return &model.IntakeResult{
		PersonalInfo:           model.PersonalInfo{FullName: "Jane Doe"},
		Summary:                "Engineer",
		WorkHistory:            []model.WorkExperience{},
		Skills:                 []string{"Go"},
		Education:              []model.Education{},
		ConfidenceScore:        0.75,
		ImprovementSuggestions: []string{},
	}, nil
}

type testServer struct {
	handler http.Handler
	manager *service.Manager
}

func setupServer(t *testing.T, token string) *testServer {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		APIToken:            token,
		MaxPages:            20,
		JPEGQuality:         85,
		LowPowerJPEGQuality: 60,
		PreviewJPEGQuality:  40,
		ImageDirectory:      filepath.Join(dir, "intakes"),
		UploadDirectory:     filepath.Join(dir, "uploads"),
		LogDirectory:        filepath.Join(dir, "logs"),
	}
	log := logger.NewLogger(cfg)

	db, err := sqlite.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	intakes := sqlite.NewIntakeRepository(db)
	images := sqlite.NewImageRepository(db)
	archive := storage.NewArchiveService(cfg, log, intakes, images)

	hub := websocket.NewHubService(log)
	go hub.Run()

	manager := service.NewManager(
		probe.NewProber(nil, fixedHost{}, cfg, log),
		capture.NewSessionManager(nil, nil, cfg, log),
		capture.NewFileSelector(nil, cfg, log),
		okSubmitter{}, archive, hub, cfg, log,
	)

	t.Cleanup(func() {
		manager.Stop()
		hub.Stop()
		db.Close()
	})

	return &testServer{
		handler: SetupRoutes(manager, archive, cfg, log, intakes, images),
		manager: manager,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) dto.Snapshot {
	t.Helper()
	var snapshot dto.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot), rec.Body.String())
	return snapshot
}

func uploadBody(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 3, 3))))

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("files", "cv.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, form.Close())
	return &body, form.FormDataContentType()
}

func TestRoutes_NoSession(t *testing.T) {
	srv := setupServer(t, "")

	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/state", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodPost, "/api/actions/submit", nil, "").Code)
}

func TestRoutes_FileIntakeFlow(t *testing.T) {
	srv := setupServer(t, "")

	// Session on a device without camera
	rec := srv.do(t, http.MethodPost, "/api/session", bytes.NewBufferString(`{"effectiveType":"4g"}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)
	snapshot := decodeSnapshot(t, rec)
	assert.Equal(t, "choosing_method", snapshot.Phase)
	assert.NotContains(t, snapshot.AvailableActions, "choose_camera")
	assert.Equal(t, model.NetworkFast, snapshot.Profile.NetworkClass)

	// Camera actions are rejected
	rec = srv.do(t, http.MethodPost, "/api/actions/capture", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = srv.do(t, http.MethodPost, "/api/actions/teleport", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Upload one page
	body, contentType := uploadBody(t)
	rec = srv.do(t, http.MethodPost, "/api/pages/upload", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snapshot = decodeSnapshot(t, rec)
	assert.Equal(t, "reviewing_pages", snapshot.Phase)
	require.Len(t, snapshot.Pages, 1)
	pageID := snapshot.Pages[0].ID

	rec = srv.do(t, http.MethodGet, "/api/pages/"+pageID+"/image", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = srv.do(t, http.MethodGet, "/api/pages/missing/image", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Submit and wait for the result
	rec = srv.do(t, http.MethodPost, "/api/actions/submit", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	srv.manager.Current().Wait()

	snapshot = decodeSnapshot(t, srv.do(t, http.MethodGet, "/api/state", nil, ""))
	assert.Equal(t, "result", snapshot.Phase)
	require.NotNil(t, snapshot.Result)
	assert.Equal(t, "Jane Doe", snapshot.Result.PersonalInfo.FullName)

	// Accept stores the intake
	rec = srv.do(t, http.MethodPost, "/api/actions/accept", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot = decodeSnapshot(t, rec)
	assert.Equal(t, "choosing_method", snapshot.Phase)
	require.NotEmpty(t, snapshot.ArchivedID)
	intakeID := snapshot.ArchivedID

	var history dto.IntakesData
	rec = srv.do(t, http.MethodGet, "/api/intakes?name=Jane", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Equal(t, 1, history.Length)
	require.Len(t, history.Intakes, 1)
	assert.Equal(t, intakeID, history.Intakes[0].ID)

	var detail dto.IntakeDetail
	rec = srv.do(t, http.MethodGet, "/api/intakes/"+intakeID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Len(t, detail.Pages, 1)

	rec = srv.do(t, http.MethodDelete, "/api/intakes/"+intakeID, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(t, http.MethodGet, "/api/intakes/"+intakeID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_SubmitEmptyBuffer(t *testing.T) {
	srv := setupServer(t, "")

	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/session", nil, "").Code)

	body, contentType := uploadBody(t)
	rec := srv.do(t, http.MethodPost, "/api/pages/upload", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)
	pageID := decodeSnapshot(t, rec).Pages[0].ID

	rec = srv.do(t, http.MethodDelete, "/api/pages/"+pageID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeSnapshot(t, rec).Pages)

	rec = srv.do(t, http.MethodPost, "/api/actions/submit", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		ErrorKind string        `json:"errorKind"`
		State     *dto.Snapshot `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "empty_buffer", resp.ErrorKind)
	require.NotNil(t, resp.State)
	assert.Equal(t, "reviewing_pages", resp.State.Phase)
}

func TestRoutes_NewSessionReplacesOld(t *testing.T) {
	srv := setupServer(t, "")

	srv.do(t, http.MethodPost, "/api/session", nil, "")
	first := srv.manager.Current()
	srv.do(t, http.MethodPost, "/api/session", nil, "")

	assert.NotSame(t, first, srv.manager.Current())
	_, err := first.Reset(context.Background())
	assert.Error(t, err, "the replaced session is closed")
}

func TestRoutes_TokenGuard(t *testing.T) {
	srv := setupServer(t, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, srv.do(t, http.MethodPost, "/api/session", nil, "").Code)

	req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/state?token=s3cret", nil, "").Code)
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/logs/info", nil, "").Code, "logs are not guarded")
}

func TestRoutes_Logs(t *testing.T) {
	srv := setupServer(t, "")
	srv.do(t, http.MethodPost, "/api/session", nil, "")

	rec := srv.do(t, http.MethodGet, "/logs/info", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Device profile")

	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/logs/debug", nil, "").Code)
	assert.Equal(t, http.StatusNoContent, srv.do(t, http.MethodPost, "/logs/warning/clear", nil, "").Code)
}

func TestRoutes_ResetFromAnyPhase(t *testing.T) {
	srv := setupServer(t, "")
	srv.do(t, http.MethodPost, "/api/session", nil, "")

	rec := srv.do(t, http.MethodPost, "/api/actions/files", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "file_selection", decodeSnapshot(t, rec).Phase)

	rec = srv.do(t, http.MethodPost, "/api/actions/reset", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot := decodeSnapshot(t, rec)
	assert.Equal(t, "choosing_method", snapshot.Phase)
	assert.Equal(t, uint64(1), snapshot.Generation)

}

func TestRoutes_UploadFromFileSelection(t *testing.T) {
	srv := setupServer(t, "")
	srv.do(t, http.MethodPost, "/api/session", nil, "")

	rec := srv.do(t, http.MethodPost, "/api/actions/files", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "file_selection", decodeSnapshot(t, rec).Phase)

	// choose_files is not offered here, the upload goes straight to the selection
	body, contentType := uploadBody(t)
	rec = srv.do(t, http.MethodPost, "/api/pages/upload", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snapshot := decodeSnapshot(t, rec)
	assert.Equal(t, "reviewing_pages", snapshot.Phase)
	assert.Len(t, snapshot.Pages, 1)

	// A second upload from the review opens file selection on its own
	body, contentType = uploadBody(t)
	rec = srv.do(t, http.MethodPost, "/api/pages/upload", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeSnapshot(t, rec).Pages, 2)
}

func TestRoutes_CancelFileSelection(t *testing.T) {
	srv := setupServer(t, "")
	srv.do(t, http.MethodPost, "/api/session", nil, "")

	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/actions/files", nil, "").Code)

	rec := srv.do(t, http.MethodPost, "/api/actions/cancel", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "choosing_method", decodeSnapshot(t, rec).Phase)

	rec = srv.do(t, http.MethodPost, "/api/actions/edit", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}
