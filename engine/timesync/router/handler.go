package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/memgate/memgate/engine/timesync"
)

// Handler handles timestamp-synchronization HTTP requests.
type Handler struct {
	tracker *timesync.Tracker
}

// NewHandler creates a new sync handler.
func NewHandler(tracker *timesync.Tracker) *Handler {
	return &Handler{tracker: tracker}
}

// Sync records a sync event for a service, registering unknown names first.
func (h *Handler) Sync(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	timestamp := h.tracker.UpdateSync(c.Request.Context(), req.Service, req.IsMemoryUpdate)
	c.JSON(http.StatusOK, SyncResponse{
		Service:        req.Service,
		Timestamp:      timestamp,
		IsMemoryUpdate: req.IsMemoryUpdate,
		Success:        true,
	})
}

// ServiceStatus reports whether a single service is stale, plus its record.
// Unknown services report stale with a null record.
func (h *Handler) ServiceStatus(c *gin.Context) {
	service := c.Param("service")
	isStale := h.tracker.CheckStale(c.Request.Context(), service)
	resp := StatusResponse{Service: service, IsStale: isStale}
	if record, ok := h.tracker.Status(service); ok {
		resp.Status = &record
	}
	c.JSON(http.StatusOK, resp)
}

// AllStatuses lists every registered service with its staleness.
func (h *Handler) AllStatuses(c *gin.Context) {
	records := h.tracker.AllStatuses()
	services := make([]ServiceStatus, 0, len(records))
	for _, record := range records {
		// CheckStale may flip the status, so re-read the record after it.
		isStale := h.tracker.CheckStale(c.Request.Context(), record.Service)
		if updated, ok := h.tracker.Status(record.Service); ok {
			record = updated
		}
		services = append(services, ServiceStatus{
			Service:          record.Service,
			LastSync:         record.LastSync,
			LastMemoryUpdate: record.LastMemoryUpdate,
			Status:           record.Status,
			IsStale:          isStale,
		})
	}
	c.JSON(http.StatusOK, AllStatusesResponse{
		Services:      services,
		TotalServices: len(services),
		Timestamp:     h.tracker.Now(),
	})
}

// Compare compares a client timestamp against the server's last memory
// update for a service.
func (h *Handler) Compare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.tracker.CompareTimestamps(req.Service, req.Timestamp))
}

// Latest reports the most recent memory update across all services.
func (h *Handler) Latest(c *gin.Context) {
	resp := LatestResponse{CurrentTime: h.tracker.Now()}
	if service, ts, ok := h.tracker.LatestTimestamp(); ok {
		resp.Latest = &LatestEntry{Service: service, Timestamp: ts}
	}
	c.JSON(http.StatusOK, resp)
}

// Register registers a service by name, resetting any prior history.
func (h *Handler) Register(c *gin.Context) {
	service := c.Param("service")
	h.tracker.Register(c.Request.Context(), service)
	c.JSON(http.StatusOK, RegisterResponse{
		Service:    service,
		Registered: true,
		Timestamp:  h.tracker.Now(),
	})
}

// Deregister marks a service disconnected. Unknown names are a 404.
func (h *Handler) Deregister(c *gin.Context) {
	service := c.Param("service")
	if !h.tracker.Deregister(c.Request.Context(), service) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown service", "details": service})
		return
	}
	c.JSON(http.StatusOK, DeregisterResponse{Service: service, Deregistered: true})
}
