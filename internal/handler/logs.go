package handler

import (
	"net/http"
	"os"

	"cvscanner/internal/logger"

	"github.com/gorilla/mux"
)

func knownLevel(level string) bool {
	for _, l := range logger.Levels {
		if l == level {
			return true
		}
	}
	return false
}

// ShowLogsHandler serves the log file of the {level} path variable as text/plain.
func ShowLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level := mux.Vars(r)["level"]
		if !knownLevel(level) {
			http.Error(w, "Unknown log level: "+level, http.StatusNotFound)
			return
		}

		filePath := log.FilePath(level)
		if _, err := os.Stat(filePath); filePath == "" || os.IsNotExist(err) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Log file not found: " + level + ".log"))
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")

		http.ServeFile(w, r, filePath)
	}
}

// ClearLogsHandler truncates the log file of the {level} path variable.
func ClearLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level := mux.Vars(r)["level"]
		if !knownLevel(level) {
			http.Error(w, "Unknown log level: "+level, http.StatusNotFound)
			return
		}

		if err := log.CleanLogs(level); err != nil {
			http.Error(w, "Unable to clear log", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
