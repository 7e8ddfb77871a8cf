package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"cvscanner/internal/dto"
	"cvscanner/internal/model"
)

// IntakeRepository implements repository.IntakeRepository for SQLite.
type IntakeRepository struct {
	db *DB
}

// NewIntakeRepository creates a new SQLite intake repository.
func NewIntakeRepository(db *DB) *IntakeRepository {
	return &IntakeRepository{db: db}
}

// Insert adds a new intake record to the database.
func (r *IntakeRepository) Insert(rec *model.IntakeRecord) error {
	payload, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to encode intake result: %w", err)
	}

	r.db.Lock()
	defer r.db.Unlock()

	_, err = r.db.Conn().Exec(`
		INSERT INTO intakes (id, full_name, page_count, confidence, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.FullName, rec.PageCount, rec.Confidence, string(payload), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert intake: %w", err)
	}
	return nil
}

// GetByID retrieves an intake by its ID. It returns nil when none exists.
func (r *IntakeRepository) GetByID(id string) (*model.IntakeRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`
		SELECT id, full_name, page_count, confidence, payload, created_at
		FROM intakes WHERE id = ?
	`, id)

	rec, err := scanIntake(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intake: %w", err)
	}
	return rec, nil
}

// GetAll retrieves intakes based on filter criteria, newest first.
func (r *IntakeRepository) GetAll(filter *dto.IntakeFilters) ([]model.IntakeRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `
		SELECT id, full_name, page_count, confidence, payload, created_at
		FROM intakes
	` + where + " ORDER BY created_at DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query intakes: %w", err)
	}
	defer rows.Close()

	intakes := []model.IntakeRecord{}
	for rows.Next() {
		rec, err := scanIntake(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intake: %w", err)
		}
		intakes = append(intakes, *rec)
	}

	return intakes, rows.Err()
}

// GetTotalCount returns the total count of intakes matching the filter.
func (r *IntakeRepository) GetTotalCount(filter *dto.IntakeFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM intakes`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count intakes: %w", err)
	}
	return count, nil
}

// GetStats returns statistics about archived intakes.
func (r *IntakeRepository) GetStats() (*model.IntakeStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.IntakeStats{}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM intakes`).Scan(&stats.TotalIntakes); err != nil {
		return nil, err
	}

	if err := r.db.Conn().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(filesize), 0) FROM page_images
	`).Scan(&stats.TotalPages, &stats.TotalSizeBytes); err != nil {
		return nil, err
	}

	return stats, nil
}

// Delete removes an intake and its page image rows.
func (r *IntakeRepository) Delete(id string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM page_images WHERE intake_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete page images: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM intakes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete intake: %w", err)
	}
	return nil
}

// DeleteAll removes all intakes and their page images.
func (r *IntakeRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM page_images`); err != nil {
		return fmt.Errorf("failed to delete page images: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM intakes`); err != nil {
		return fmt.Errorf("failed to delete intakes: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntake(row rowScanner) (*model.IntakeRecord, error) {
	var rec model.IntakeRecord
	var payload string

	if err := row.Scan(&rec.ID, &rec.FullName, &rec.PageCount, &rec.Confidence, &payload, &rec.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(payload), &rec.Result); err != nil {
		return nil, fmt.Errorf("failed to decode intake %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func buildWhere(filter *dto.IntakeFilters) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}

	if filter == nil {
		return where, args
	}

	if filter.Name != "" {
		where += " AND full_name LIKE ?"
		args = append(args, "%"+filter.Name+"%")
	}

	if filter.MinConfidence > 0 {
		where += " AND confidence >= ?"
		args = append(args, filter.MinConfidence)
	}

	if !filter.DateAfter.IsZero() {
		where += " AND DATE(created_at) >= DATE(?)"
		args = append(args, filter.DateAfter)
	}

	if !filter.DateBefore.IsZero() {
		where += " AND DATE(created_at) <= DATE(?)"
		args = append(args, filter.DateBefore)
	}

	return where, args
}
