package handler

import (
	"net/http"
	"strconv"
	"time"

	"cvscanner/internal/config"
	"cvscanner/internal/dto"
	"cvscanner/internal/logger"
	"cvscanner/internal/repository"
	"cvscanner/internal/service/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ListIntakesHandler returns the filtered, paginated history of accepted intakes.
func ListIntakesHandler(cfg *config.Config, logger *logger.Logger,
	intakeRepo repository.IntakeRepository, imageRepo repository.ImageRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.IntakeFilters{
			Name:          q.Get("name"),
			MinConfidence: parseFloat(q.Get("minConfidence")),
			DateAfter:     parseDate(q.Get("dateAfter")),
			DateBefore:    parseDate(q.Get("dateBefore")),
			Limit:         limit,
			Offset:        (page - 1) * limit,
		}

		intakes, err := intakeRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying intakes from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalSize, err := imageRepo.GetDirectorySize()
		if err != nil {
			logger.Error("Error getting image directory size: %v", err)
			totalSize = 0
		}

		totalCount, err := intakeRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting intakes: %v", err)
			totalCount = len(intakes)
		}

		data := dto.IntakesData{
			Intakes:     intakes,
			ImagesDir:   cfg.ImageDirectory,
			Size:        totalSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}
		writeJSON(w, http.StatusOK, data, logger)
	}
}

// GetIntakeHandler returns one accepted intake with its pages.
func GetIntakeHandler(logger *logger.Logger,
	intakeRepo repository.IntakeRepository, imageRepo repository.ImageRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if _, err := uuid.Parse(id); err != nil {
			http.Error(w, "Invalid intake id", http.StatusBadRequest)
			return
		}

		intake, err := intakeRepo.GetByID(id)
		if err != nil {
			logger.Error("Error loading intake %s: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if intake == nil {
			http.Error(w, "Intake not found", http.StatusNotFound)
			return
		}

		pages, err := imageRepo.GetByIntakeID(id)
		if err != nil {
			logger.Error("Error loading pages of intake %s: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, dto.IntakeDetail{Intake: *intake, Pages: pages}, logger)
	}
}

// DeleteIntakeHandler removes an accepted intake from disk and database.
func DeleteIntakeHandler(archive *storage.ArchiveService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if _, err := uuid.Parse(id); err != nil {
			http.Error(w, "Invalid intake id", http.StatusBadRequest)
			return
		}

		if err := archive.Remove(id); err != nil {
			logger.Error("Failed to delete intake %s: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted intake: %s", id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id}, logger)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseDate parses a date string in the format "2006-01-02" from the request (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
