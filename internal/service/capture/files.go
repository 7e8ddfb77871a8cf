package capture

import (
	"context"
	"os"
	"time"

	"cvscanner/internal/config"
	"cvscanner/internal/logger"
	"cvscanner/internal/model"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// AcceptedMimeTypes lists the content types a selected file may have.
var AcceptedMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/heic",
	"image/heif",
	"application/pdf",
}

// SelectedFile is a file picked by the user. Owned files were spooled by
// the service and are deleted when no longer referenced.
type SelectedFile struct {
	Name  string
	Path  string
	Owned bool
}

// Rasterizer renders every page of a PDF as JPEG bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, path string, dpi int, quality int) ([][]byte, error)
}

// FileSelector turns selected files into pages.
type FileSelector struct {
	rasterizer      Rasterizer
	logger          *logger.Logger
	dpi             int
	lowPowerDPI     int
	quality         int
	lowPowerQuality int
	newID           func() string
	now             func() time.Time
}

// NewFileSelector creates a FileSelector. A nil rasterizer keeps PDFs as single pages.
func NewFileSelector(rasterizer Rasterizer, config *config.Config, logger *logger.Logger) *FileSelector {
	return &FileSelector{
		rasterizer:      rasterizer,
		logger:          logger,
		dpi:             config.PDFDPI,
		lowPowerDPI:     config.LowPowerPDFDPI,
		quality:         config.JPEGQuality,
		lowPowerQuality: config.LowPowerJPEGQuality,
		newID:           uuid.NewString,
		now:             time.Now,
	}
}

// SelectFiles validates each file by content and builds pages in selection order.
// Files of other types are skipped without error.
func (s *FileSelector) SelectFiles(ctx context.Context, files []SelectedFile, profile model.DeviceProfile) []model.CapturedPage {
	pages := make([]model.CapturedPage, 0, len(files))

	for _, file := range files {
		if ctx.Err() != nil {
			discard(file)
			continue
		}

		info, err := os.Stat(file.Path)
		if err != nil || info.IsDir() {
			s.logger.Warning("Skipping %s: not a readable file", file.Name)
			discard(file)
			continue
		}

		mimeType, ok := detectAccepted(file.Path)
		if !ok {
			s.logger.Warning("Skipping %s: unsupported type %s", file.Name, mimeType)
			discard(file)
			continue
		}

		if mimeType == "application/pdf" && s.rasterizer != nil {
			pages = append(pages, s.rasterize(ctx, file, profile)...)
			continue
		}

		pages = append(pages, model.CapturedPage{
			ID:         s.newID(),
			Image:      model.NewFileImage(file.Path, info.Size(), file.Owned),
			SourceType: model.SourceFileUpload,
			MimeType:   mimeType,
			CapturedAt: s.now(),
		})
	}

	s.logger.Info("Selected %d page(s) from %d file(s)", len(pages), len(files))
	return pages
}

func (s *FileSelector) rasterize(ctx context.Context, file SelectedFile, profile model.DeviceProfile) []model.CapturedPage {
	defer discard(file)

	dpi, quality := s.dpi, s.quality
	if profile.IsLowPowerDevice {
		dpi, quality = s.lowPowerDPI, s.lowPowerQuality
	}

	images, err := s.rasterizer.Rasterize(ctx, file.Path, dpi, quality)
	if err != nil {
		s.logger.Warning("Skipping %s: %v", file.Name, err)
		return nil
	}

	pages := make([]model.CapturedPage, 0, len(images))
	for _, data := range images {
		pages = append(pages, model.CapturedPage{
			ID:         s.newID(),
			Image:      model.NewMemoryImage(data),
			SourceType: model.SourceFileUpload,
			MimeType:   "image/jpeg",
			CapturedAt: s.now(),
		})
	}
	return pages
}

// detectAccepted sniffs the file content and reports whether its type is accepted.
func detectAccepted(path string) (string, bool) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", false
	}
	for _, accepted := range AcceptedMimeTypes {
		if mtype.Is(accepted) {
			return accepted, true
		}
	}
	return mtype.String(), false
}

// discard deletes spooled files that did not become pages.
func discard(file SelectedFile) {
	if file.Owned {
		os.Remove(file.Path)
	}
}
