package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	APIToken string // Pusty token wyłącza autoryzację /api

	IntakeEndpoint         string
	IntakeTimeout          time.Duration
	IntakeLowPowerTimeout  time.Duration
	IntakeMaxResponseBytes int64

	MaxPages            int
	CameraMaxDevices    int
	CameraFacing        map[int]string // indeks urządzenia -> environment/user
	JPEGQuality         int
	LowPowerJPEGQuality int
	PreviewJPEGQuality  int
	PDFDPI              int
	LowPowerPDFDPI      int
	PreviewInterval     time.Duration
	PreviewEveryNth     int // Co którą klatkę podglądu wysyłać do widzów
	NetworkClass        string

	ImageDirectory  string
	UploadDirectory string
	DatabasePath    string
	LogDirectory    string
}

// Load reads configuration from the environment, loading a .env file first when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnvAsInt("PORT", 8080),
		APIToken: getEnv("API_TOKEN", ""),

		IntakeEndpoint:         getEnv("INTAKE_ENDPOINT", "http://localhost:9000/api/cv/analyze"),
		IntakeTimeout:          getEnvAsSeconds("INTAKE_TIMEOUT", 30),
		IntakeLowPowerTimeout:  getEnvAsSeconds("INTAKE_LOW_POWER_TIMEOUT", 60),
		IntakeMaxResponseBytes: getEnvAsInt64("INTAKE_MAX_RESPONSE_BYTES", 4<<20),

		MaxPages:            getEnvAsInt("MAX_PAGES", 20),
		CameraMaxDevices:    getEnvAsInt("CAMERA_MAX_DEVICES", 4),
		CameraFacing:        parseFacing(getEnv("CAMERA_FACING", "")),
		JPEGQuality:         getEnvAsInt("JPEG_QUALITY", 85),
		LowPowerJPEGQuality: getEnvAsInt("LOW_POWER_JPEG_QUALITY", 60),
		PreviewJPEGQuality:  getEnvAsInt("PREVIEW_JPEG_QUALITY", 40),
		PDFDPI:              getEnvAsInt("PDF_DPI", 150),
		LowPowerPDFDPI:      getEnvAsInt("LOW_POWER_PDF_DPI", 96),
		PreviewInterval:     time.Duration(getEnvAsInt("PREVIEW_INTERVAL_MS", 200)) * time.Millisecond,
		PreviewEveryNth:     getEnvAsInt("PREVIEW_EVERY_NTH", 1),
		NetworkClass:        getEnv("NETWORK_CLASS", ""),

		ImageDirectory:  getEnv("IMAGE_DIR", filepath.Join(".", "intakes")),
		UploadDirectory: getEnv("UPLOAD_DIR", filepath.Join(os.TempDir(), "cvscanner-uploads")),
		DatabasePath:    getEnv("DB_PATH", filepath.Join(".", "data", "intakes.db")),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultSeconds)) * time.Second
}

// parseFacing parses "0:user,1:environment" into a device index -> facing map.
// Malformed entries are skipped.
func parseFacing(value string) map[int]string {
	facing := make(map[int]string)
	if value == "" {
		return facing
	}

	for _, entry := range strings.Split(value, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 2)
		if len(parts) != 2 {
			continue
		}
		index, err := strconv.Atoi(parts[0])
		if err != nil || index < 0 {
			continue
		}
		facing[index] = strings.ToLower(strings.TrimSpace(parts[1]))
	}
	return facing
}
