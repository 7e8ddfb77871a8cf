package storage

import (
	"context"
	"cvscanner/internal/config"
	"cvscanner/internal/logger"
	"cvscanner/internal/model"
	"cvscanner/internal/repository"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ArchiveService stores accepted intakes: page images on disk, metadata in the repositories.
type ArchiveService struct {
	imagesDir  string
	logger     *logger.Logger
	intakeRepo repository.IntakeRepository
	imageRepo  repository.ImageRepository
	now        func() time.Time
}

// NewArchiveService creates an ArchiveService writing below config.ImageDirectory.
func NewArchiveService(config *config.Config, logger *logger.Logger, intakeRepo repository.IntakeRepository, imageRepo repository.ImageRepository) *ArchiveService {
	return &ArchiveService{
		imagesDir:  config.ImageDirectory,
		logger:     logger,
		intakeRepo: intakeRepo,
		imageRepo:  imageRepo,
		now:        time.Now,
	}
}

// Archive writes the pages of an accepted intake to disk and records them.
// It returns the new intake ID.
func (s *ArchiveService) Archive(ctx context.Context, pages []model.CapturedPage, result *model.IntakeResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("no intake result to archive")
	}

	intakeID := uuid.NewString()
	intakeDir := filepath.Join(s.imagesDir, intakeID)
	if err := os.MkdirAll(intakeDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create intake directory: %w", err)
	}

	images := make([]model.Image, 0, len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			os.RemoveAll(intakeDir)
			return "", err
		}

		data, err := page.ReadAll()
		if err != nil {
			os.RemoveAll(intakeDir)
			return "", fmt.Errorf("failed to read page %s: %w", page.ID, err)
		}

		filename := fmt.Sprintf("page_%02d%s", i+1, page.Extension())
		fullpath := filepath.Join(intakeDir, filename)
		if err := os.WriteFile(fullpath, data, 0644); err != nil {
			os.RemoveAll(intakeDir)
			return "", fmt.Errorf("failed to save page %s: %w", filename, err)
		}

		images = append(images, model.Image{
			IntakeID:   intakeID,
			PageID:     page.ID,
			Position:   i,
			Filename:   filename,
			FilePath:   fullpath,
			FileSize:   int64(len(data)),
			MimeType:   page.MimeType,
			SourceType: page.SourceType,
			CapturedAt: page.CapturedAt,
		})
	}

	record := &model.IntakeRecord{
		ID:         intakeID,
		FullName:   result.PersonalInfo.FullName,
		PageCount:  len(pages),
		Confidence: result.ConfidenceScore,
		Result:     *result,
		CreatedAt:  s.now(),
	}

	if s.intakeRepo != nil {
		if err := s.intakeRepo.Insert(record); err != nil {
			os.RemoveAll(intakeDir)
			return "", err
		}

		if s.imageRepo != nil && len(images) > 0 {
			if err := s.imageRepo.InsertBatch(images); err != nil {
				s.logger.Error("Error saving page images of intake %s: %v", intakeID, err)
				if derr := s.intakeRepo.Delete(intakeID); derr != nil {
					s.logger.Error("Failed to roll back intake %s: %v", intakeID, derr)
				}
				os.RemoveAll(intakeDir)
				return "", fmt.Errorf("failed to save page images: %w", err)
			}
		}
	}

	s.logger.Info("Archived intake %s with %d page(s)", intakeID, len(images))
	return intakeID, nil
}

// Remove deletes an archived intake from disk and from the repositories.
func (s *ArchiveService) Remove(intakeID string) error {
	if _, err := uuid.Parse(intakeID); err != nil {
		return fmt.Errorf("invalid intake id %q", intakeID)
	}

	if err := os.RemoveAll(filepath.Join(s.imagesDir, intakeID)); err != nil {
		s.logger.Error("Failed to delete intake directory %s: %v", intakeID, err)
	}

	if s.imageRepo != nil {
		if err := s.imageRepo.DeleteByIntakeID(intakeID); err != nil {
			return err
		}
	}
	if s.intakeRepo != nil {
		return s.intakeRepo.Delete(intakeID)
	}
	return nil
}
