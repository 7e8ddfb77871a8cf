package sqlite

import (
	"fmt"

	"cvscanner/internal/model"
)

// ImageRepository implements repository.ImageRepository for SQLite.
type ImageRepository struct {
	db *DB
}

// NewImageRepository creates a new SQLite page image repository.
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// InsertBatch adds multiple page images in a single transaction.
func (r *ImageRepository) InsertBatch(images []model.Image) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO page_images (intake_id, page_id, position, filename, filepath, filesize, mime_type, source_type, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, img := range images {
		if _, err := stmt.Exec(img.IntakeID, img.PageID, img.Position, img.Filename, img.FilePath,
			img.FileSize, img.MimeType, string(img.SourceType), img.CapturedAt); err != nil {
			return fmt.Errorf("failed to insert page image: %w", err)
		}
	}

	return tx.Commit()
}

// GetByIntakeID retrieves the page images of an intake in document order.
func (r *ImageRepository) GetByIntakeID(intakeID string) ([]model.Image, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, intake_id, page_id, position, filename, filepath, filesize, mime_type, source_type, captured_at
		FROM page_images WHERE intake_id = ? ORDER BY position
	`, intakeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query page images: %w", err)
	}
	defer rows.Close()

	images := []model.Image{}
	for rows.Next() {
		var img model.Image
		var source string
		if err := rows.Scan(&img.ID, &img.IntakeID, &img.PageID, &img.Position, &img.Filename,
			&img.FilePath, &img.FileSize, &img.MimeType, &source, &img.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page image: %w", err)
		}
		img.SourceType = model.SourceType(source)
		images = append(images, img)
	}

	return images, rows.Err()
}

// GetDirectorySize returns the total size of archived page images in bytes.
func (r *ImageRepository) GetDirectorySize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM page_images`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum page image sizes: %w", err)
	}
	return size, nil
}

// DeleteByIntakeID removes all page image rows of an intake.
func (r *ImageRepository) DeleteByIntakeID(intakeID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM page_images WHERE intake_id = ?`, intakeID); err != nil {
		return fmt.Errorf("failed to delete page images: %w", err)
	}
	return nil
}
