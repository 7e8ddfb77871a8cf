package repository

import (
	"cvscanner/internal/dto"
	"cvscanner/internal/model"
)

// IntakeRepository defines the interface for archived intake operations.
type IntakeRepository interface {
	// Create operations
	Insert(rec *model.IntakeRecord) error

	// Read operations
	GetByID(id string) (*model.IntakeRecord, error)
	GetAll(filter *dto.IntakeFilters) ([]model.IntakeRecord, error)
	GetTotalCount(filter *dto.IntakeFilters) (int, error)
	GetStats() (*model.IntakeStats, error)

	// Delete operations
	Delete(id string) error
	DeleteAll() error
}

// ImageRepository defines the interface for archived page image operations.
type ImageRepository interface {
	// Create operations
	InsertBatch(images []model.Image) error

	// Read operations
	GetByIntakeID(intakeID string) ([]model.Image, error)
	GetDirectorySize() (int64, error)

	// Delete operations
	DeleteByIntakeID(intakeID string) error
}
