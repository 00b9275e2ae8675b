package router

import (
	"time"

	"github.com/memgate/memgate/engine/timesync"
)

// SyncRequest is a sync event pushed by a service.
type SyncRequest struct {
	Service        string `json:"service"          binding:"required"`
	IsMemoryUpdate bool   `json:"is_memory_update"`
}

// SyncResponse acknowledges a recorded sync event.
type SyncResponse struct {
	Service        string    `json:"service"`
	Timestamp      time.Time `json:"timestamp"`
	IsMemoryUpdate bool      `json:"is_memory_update"`
	Success        bool      `json:"success"`
}

// StatusResponse reports a single service's staleness and record.
type StatusResponse struct {
	Service string           `json:"service"`
	IsStale bool             `json:"is_stale"`
	Status  *timesync.Record `json:"status"`
}

// ServiceStatus is one entry of the all-statuses listing.
type ServiceStatus struct {
	Service          string          `json:"service"`
	LastSync         time.Time       `json:"last_sync"`
	LastMemoryUpdate time.Time       `json:"last_memory_update"`
	Status           timesync.Status `json:"status"`
	IsStale          bool            `json:"is_stale"`
}

// AllStatusesResponse lists every registered service.
type AllStatusesResponse struct {
	Services      []ServiceStatus `json:"services"`
	TotalServices int             `json:"total_services"`
	Timestamp     time.Time       `json:"timestamp"`
}

// CompareRequest asks the server to compare a client timestamp against its
// own state for a service.
type CompareRequest struct {
	Service   string    `json:"service"   binding:"required"`
	Timestamp time.Time `json:"timestamp" binding:"required"`
}

// LatestEntry names the service holding the most recent memory update.
type LatestEntry struct {
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// LatestResponse reports the globally latest memory update, if any.
type LatestResponse struct {
	Latest      *LatestEntry `json:"latest"`
	CurrentTime time.Time    `json:"current_time"`
}

// RegisterResponse acknowledges a service registration.
type RegisterResponse struct {
	Service    string    `json:"service"`
	Registered bool      `json:"registered"`
	Timestamp  time.Time `json:"timestamp"`
}

// DeregisterResponse acknowledges a service deregistration.
type DeregisterResponse struct {
	Service      string `json:"service"`
	Deregistered bool   `json:"deregistered"`
}
