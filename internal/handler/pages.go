package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"cvscanner/internal/config"
	"cvscanner/internal/dto"
	"cvscanner/internal/logger"
	"cvscanner/internal/service"
	"cvscanner/internal/service/capture"
	"cvscanner/internal/service/pipeline"

	"github.com/gorilla/mux"
)

// MaxUploadMemory is how much of an upload is kept in memory before spilling to disk.
const MaxUploadMemory = 32 << 20

// ListPagesHandler returns the buffered pages in document order.
func ListPagesHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		controller := manager.Current()
		if controller == nil {
			http.Error(w, "No active session", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, dto.NewPageInfos(controller.Pages()), logger)
	}
}

// PageImageHandler serves the image of one buffered page.
func PageImageHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		controller := manager.Current()
		if controller == nil {
			http.Error(w, "No active session", http.StatusNotFound)
			return
		}

		page, ok := controller.Page(mux.Vars(r)["id"])
		if !ok || page.Image == nil {
			http.Error(w, "Page not found", http.StatusNotFound)
			return
		}

		rc, err := page.Image.Open()
		if err != nil {
			logger.Error("Failed to open page %s: %v", page.ID, err)
			http.Error(w, "Page image unavailable", http.StatusGone)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", page.MimeType)
		w.Header().Set("Content-Length", strconv.FormatInt(page.Image.Size(), 10))
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := io.Copy(w, rc); err != nil {
			logger.Error("Error streaming page %s: %v", page.ID, err)
		}
	}
}

// RetakePageHandler removes a page so it can be captured again.
func RetakePageHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		controller := manager.Current()
		if controller == nil {
			http.Error(w, "No active session", http.StatusNotFound)
			return
		}

		if _, err := controller.RetakePage(r.Context(), mux.Vars(r)["id"]); err != nil {
			writeActionError(w, controller, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, controller.Snapshot(), logger)
	}
}

// UploadPagesHandler spools the uploaded "files" to disk and adds them as pages.
// Coming from the method choice or the review it opens file selection first.
func UploadPagesHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		controller := manager.Current()
		if controller == nil {
			http.Error(w, "No active session", http.StatusNotFound)
			return
		}

		if err := r.ParseMultipartForm(MaxUploadMemory); err != nil {
			http.Error(w, "Invalid upload", http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		headers := r.MultipartForm.File["files"]
		if len(headers) == 0 {
			http.Error(w, "No files uploaded", http.StatusBadRequest)
			return
		}

		files, err := spoolUploads(cfg.UploadDirectory, headers)
		if err != nil {
			logger.Error("Failed to store uploaded files: %v", err)
			http.Error(w, "Unable to store uploaded files", http.StatusInternalServerError)
			return
		}

		if pipeline.Allows(controller.State(), pipeline.ActionChooseFiles) {
			if _, err := controller.ChooseFiles(r.Context()); err != nil {
				discardUploads(files)
				writeActionError(w, controller, err, logger)
				return
			}
		}

		if _, err := controller.FilesSelected(r.Context(), files); err != nil {
			discardUploads(files)
			writeActionError(w, controller, err, logger)
			return
		}
		logger.Info("📄 Received %d uploaded file(s)", len(files))
		writeJSON(w, http.StatusOK, controller.Snapshot(), logger)
	}
}

// spoolUploads copies each upload to its own file. The client file name is
// kept only for logging.
func spoolUploads(dir string, headers []*multipart.FileHeader) ([]capture.SelectedFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	files := make([]capture.SelectedFile, 0, len(headers))
	for _, header := range headers {
		path, err := spool(dir, header)
		if err != nil {
			discardUploads(files)
			return nil, err
		}
		files = append(files, capture.SelectedFile{Name: header.Filename, Path: path, Owned: true})
	}
	return files, nil
}

func spool(dir string, header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(dir, "upload-*"+filepath.Ext(filepath.Base(header.Filename)))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func discardUploads(files []capture.SelectedFile) {
	for _, f := range files {
		if f.Owned {
			os.Remove(f.Path)
		}
	}
}
