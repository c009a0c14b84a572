package utils

import (
	"os"
	"strings"
)

const (
	StorageProviderFS  = "fs"
	StorageProviderGCS = "gcs"
	StorageProviderSQL = "sql"
)

// GetStorageProvider selects where datasets live. Defaults to the local data directory.
func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderFS
	}
	return provider
}

func GetDataDir() string {
	if dir := strings.TrimSpace(os.Getenv("DATA_DIR")); dir != "" {
		return dir
	}
	return "data"
}
