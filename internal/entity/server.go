package entity

import (
	"time"

	"github.com/google/uuid"
)

// ServerAlias is an auto-discovered server, keyed by the hostname reported
// by ingesting agents.
type ServerAlias struct {
	ID    uuid.UUID `json:"id" ch:"id"`
	OrgID uuid.UUID `json:"org_id" ch:"org_id"`

	Hostname    string `json:"hostname" ch:"hostname"`
	DisplayName string `json:"display_name" ch:"display_name"`
	Description string `json:"description,omitempty" ch:"description"`
	Active      bool   `json:"active" ch:"active"`

	FirstSeen time.Time `json:"first_seen" ch:"first_seen"`
	LastSeen  time.Time `json:"last_seen" ch:"last_seen"`
}

// ServerStats combines a server with its recent activity.
type ServerStats struct {
	Server     ServerAlias `json:"server"`
	TotalLogs  uint64      `json:"total_logs"`
	RecentLogs uint64      `json:"recent_logs"`
	Healthy    bool        `json:"healthy"`
}
