package instance

import (
	"fmt"
	"os"
)

// GetID identifies this worker process in logs and lock ownership. It
// prefers an explicit ODDFELLOW_INSTANCE_ID, falls back to the hostname
// (the pod name under kubernetes), and lastly tags the bare pid.
func GetID() string {
	if id := os.Getenv("ODDFELLOW_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fmt.Sprintf("pid-%d", os.Getpid())
}
