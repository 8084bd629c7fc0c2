// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds every externally supplied setting.
type Config struct {
	// HTTP
	Port string

	// Ledger
	DBPath string

	// Gemini
	GeminiModel string

	// Pinecone; when Host is empty the in-memory index is used instead.
	PineconeHost   string
	PineconeAPIKey string

	// Analytics archive; empty BQProject disables the export worker.
	BQProject string
	BQDataset string
	GCSBucket string
}

// Load reads the .env file if present and resolves every setting with its
// default. Missing optional settings are not an error.
func Load() *Config {
	// Absence of .env is normal outside local development.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("FINANCE_DB_PATH", "finance.db"),
		GeminiModel:    getEnv("GEMINI_MODEL", ""),
		PineconeHost:   getEnv("PINECONE_HOST", ""),
		PineconeAPIKey: getEnv("PINECONE_API_KEY", ""),
		BQProject:      getEnv("BQ_PROJECT", ""),
		BQDataset:      getEnv("BQ_DATASET", "finance_assistant"),
		GCSBucket:      getEnv("GCS_BUCKET", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultVal
}
