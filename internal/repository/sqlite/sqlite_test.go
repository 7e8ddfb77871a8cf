package sqlite_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cvscanner/internal/dto"
	"cvscanner/internal/model"
	"cvscanner/internal/repository/sqlite"
)

// ========================================
// Test Setup Helpers
// ========================================

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testIntake(id, name string, confidence float64, createdAt time.Time) *model.IntakeRecord {
	return &model.IntakeRecord{
		ID:         id,
		FullName:   name,
		PageCount:  2,
		Confidence: confidence,
		CreatedAt:  createdAt,
		Result: model.IntakeResult{
			PersonalInfo:    model.PersonalInfo{FullName: name, Email: "jane@example.com"},
			Summary:         "Backend engineer",
			WorkHistory:     []model.WorkExperience{{Title: "Engineer", Company: "Acme"}},
			Skills:          []string{"Go", "SQL"},
			Education:       []model.Education{},
			ConfidenceScore: confidence,
		},
	}
}

func testImages(intakeID string, n int) []model.Image {
	images := make([]model.Image, 0, n)
	for i := 0; i < n; i++ {
		images = append(images, model.Image{
			IntakeID:   intakeID,
			PageID:     fmt.Sprintf("page-%d", i),
			Position:   i,
			Filename:   fmt.Sprintf("page_%02d.jpg", i+1),
			FilePath:   fmt.Sprintf("/intakes/%s/page_%02d.jpg", intakeID, i+1),
			FileSize:   1000,
			MimeType:   "image/jpeg",
			SourceType: model.SourceCamera,
			CapturedAt: time.Now(),
		})
	}
	return images
}

// ========================================
// Database Tests
// ========================================

func TestDatabase_Migration_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sqlite.New(path)
	if err != nil {
		t.Fatalf("First open failed: %v", err)
	}
	db.Close()

	db, err = sqlite.New(path)
	if err != nil {
		t.Fatalf("Second open failed: %v", err)
	}
	defer db.Close()

	var count int
	err = db.Conn().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('intakes','page_images')`).Scan(&count)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 tables, got %d", count)
	}
}

func TestDatabase_ForeignKeyConstraint(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewImageRepository(db)

	err := repo.InsertBatch(testImages("missing-intake", 1))
	if err == nil {
		t.Error("Expected foreign key error for page of unknown intake")
	}
}

func TestDatabase_ConcurrentAccess(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewIntakeRepository(db)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- repo.Insert(testIntake(fmt.Sprintf("id-%d", i), "Jane", 0.5, time.Now()))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent insert failed: %v", err)
		}
	}

	count, err := repo.GetTotalCount(nil)
	if err != nil {
		t.Fatalf("GetTotalCount failed: %v", err)
	}
	if count != 10 {
		t.Errorf("Expected 10 intakes, got %d", count)
	}
}

// ========================================
// Intake Repository Tests
// ========================================

func TestIntakeRepository_InsertAndGetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewIntakeRepository(db)

	rec := testIntake("a1", "Jane Doe", 0.9, time.Now().Truncate(time.Second))
	if err := repo.Insert(rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repo.GetByID("a1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected intake, got nil")
	}
	if got.FullName != "Jane Doe" {
		t.Errorf("FullName mismatch: expected Jane Doe, got %s", got.FullName)
	}
	if len(got.Result.Skills) != 2 || got.Result.Skills[0] != "Go" {
		t.Errorf("Skills not restored from payload: %v", got.Result.Skills)
	}
	if got.Result.WorkHistory[0].Company != "Acme" {
		t.Errorf("Work history not restored: %+v", got.Result.WorkHistory)
	}
}

func TestIntakeRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewIntakeRepository(db)

	got, err := repo.GetByID("nope")
	if err != nil {
		t.Fatalf("GetByID should not error for unknown id: %v", err)
	}
	if got != nil {
		t.Error("Expected nil for unknown intake")
	}
}

func TestIntakeRepository_Insert_DuplicateID(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewIntakeRepository(db)

	rec := testIntake("dup", "Jane", 0.5, time.Now())
	if err := repo.Insert(rec); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := repo.Insert(rec); err == nil {
		t.Error("Expected error for duplicate id, got nil")
	}
}

func TestIntakeRepository_GetAll_Filters(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewIntakeRepository(db)

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"Jane Doe", "John Smith", "Janet Roe"} {
		rec := testIntake(fmt.Sprintf("id-%d", i), name, 0.3*float64(i+1), base.Add(time.Duration(i)*time.Minute))
		if err := repo.Insert(rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := repo.GetAll(nil)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 intakes, got %d", len(all))
	}
	if all[0].ID != "id-2" {
		t.Errorf("Expected newest first, got %s", all[0].ID)
	}

	byName, err := repo.GetAll(&dto.IntakeFilters{Name: "Jan"})
	if err != nil {
		t.Fatalf("GetAll by name failed: %v", err)
	}
	if len(byName) != 2 {
		t.Errorf("Expected 2 intakes matching 'Jan', got %d", len(byName))
	}

	confident, err := repo.GetAll(&dto.IntakeFilters{MinConfidence: 0.5})
	if err != nil {
		t.Fatalf("GetAll by confidence failed: %v", err)
	}
	if len(confident) != 2 {
		t.Errorf("Expected 2 intakes with confidence >= 0.5, got %d", len(confident))
	}

	page, err := repo.GetAll(&dto.IntakeFilters{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("GetAll paginated failed: %v", err)
	}
	if len(page) != 1 || page[0].ID != "id-1" {
		t.Errorf("Expected second newest intake on page 2, got %+v", page)
	}

	count, err := repo.GetTotalCount(&dto.IntakeFilters{Name: "Jan", Limit: 1})
	if err != nil {
		t.Fatalf("GetTotalCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Total count should ignore pagination: expected 2, got %d", count)
	}
}

func TestIntakeRepository_DeleteRemovesPages(t *testing.T) {
	db := setupTestDB(t)
	intakes := sqlite.NewIntakeRepository(db)
	images := sqlite.NewImageRepository(db)

	if err := intakes.Insert(testIntake("del", "Jane", 0.5, time.Now())); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := images.InsertBatch(testImages("del", 3)); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	if err := intakes.Delete("del"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	pages, err := images.GetByIntakeID("del")
	if err != nil {
		t.Fatalf("GetByIntakeID failed: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("Expected no pages after delete, got %d", len(pages))
	}
}

func TestIntakeRepository_Stats(t *testing.T) {
	db := setupTestDB(t)
	intakes := sqlite.NewIntakeRepository(db)
	images := sqlite.NewImageRepository(db)

	for _, id := range []string{"s1", "s2"} {
		if err := intakes.Insert(testIntake(id, "Jane", 0.5, time.Now())); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if err := images.InsertBatch(testImages(id, 2)); err != nil {
			t.Fatalf("InsertBatch failed: %v", err)
		}
	}

	stats, err := intakes.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalIntakes != 2 || stats.TotalPages != 4 || stats.TotalSizeBytes != 4000 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	if err := intakes.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	stats, err = intakes.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalIntakes != 0 || stats.TotalPages != 0 {
		t.Errorf("Expected empty archive, got %+v", stats)
	}
}

// ========================================
// Image Repository Tests
// ========================================

func TestImageRepository_GetByIntakeID_Ordered(t *testing.T) {
	db := setupTestDB(t)
	intakes := sqlite.NewIntakeRepository(db)
	images := sqlite.NewImageRepository(db)

	if err := intakes.Insert(testIntake("ord", "Jane", 0.5, time.Now())); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	batch := testImages("ord", 3)
	batch[0], batch[2] = batch[2], batch[0]
	if err := images.InsertBatch(batch); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	pages, err := images.GetByIntakeID("ord")
	if err != nil {
		t.Fatalf("GetByIntakeID failed: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("Expected 3 pages, got %d", len(pages))
	}
	for i, p := range pages {
		if p.Position != i {
			t.Errorf("Page %d has position %d", i, p.Position)
		}
		if p.SourceType != model.SourceCamera {
			t.Errorf("Source type not restored: %s", p.SourceType)
		}
	}

	size, err := images.GetDirectorySize()
	if err != nil {
		t.Fatalf("GetDirectorySize failed: %v", err)
	}
	if size != 3000 {
		t.Errorf("Expected 3000 bytes, got %d", size)
	}

	if err := images.DeleteByIntakeID("ord"); err != nil {
		t.Fatalf("DeleteByIntakeID failed: %v", err)
	}
	pages, _ = images.GetByIntakeID("ord")
	if len(pages) != 0 {
		t.Errorf("Expected no pages, got %d", len(pages))
	}
}
