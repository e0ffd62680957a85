package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// WorkerID names this process for logs and lock ownership.
func WorkerID() string {
	return Get("WORKER_ID", "worker-0")
}
