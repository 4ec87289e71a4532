package instance

import "os"

// GetID returns the worker instance identifier used to tell replicas apart in logs.
func GetID() string {
	if id := os.Getenv("STOREFRONT_WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
