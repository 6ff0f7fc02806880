package config

import (
	"os"
	"strings"
)

// ReplicationEnabled gates the background outbox replicator. Disable it on
// devices that should stay fully offline (field testing, demo units).
//
// Set via env:
// - REPLICATION_ENABLED=false
func ReplicationEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("REPLICATION_ENABLED")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ReplicationCronSpec returns an optional cron expression for scheduled
// replication passes, in addition to the steady poll loop. Empty disables
// the cron trigger.
//
// Set via env:
// - REPLICATION_CRON="*/15 * * * *"
func ReplicationCronSpec() string {
	return strings.TrimSpace(os.Getenv("REPLICATION_CRON"))
}
