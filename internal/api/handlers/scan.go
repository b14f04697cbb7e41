package handlers

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/marisel-vam/ai-inbox-zero/internal/progress"
	"github.com/marisel-vam/ai-inbox-zero/internal/scan"
)

// ScanHandler handles inbox scan related requests
type ScanHandler struct {
	orchestrator *scan.Orchestrator
	broadcaster  *progress.Broadcaster
	batchSize    int

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	lastSummary *scan.Summary
}

// NewScanHandler creates a new ScanHandler instance
func NewScanHandler(orchestrator *scan.Orchestrator, broadcaster *progress.Broadcaster, batchSize int) *ScanHandler {
	return &ScanHandler{
		orchestrator: orchestrator,
		broadcaster:  broadcaster,
		batchSize:    batchSize,
	}
}

// StartScanRequest represents the request to start a scan
type StartScanRequest struct {
	MaxBatch int `json:"max_batch"`
}

// StartScan kicks off an inbox scan in the background. Only one scan
// runs at a time; a second request while one is in flight gets 409.
// POST /api/scan
func (h *ScanHandler) StartScan(c *gin.Context) {
	var req StartScanRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request body",
				"details": err.Error(),
			},
		})
		return
	}

	maxBatch := req.MaxBatch
	if maxBatch <= 0 {
		maxBatch = h.batchSize
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SCAN_IN_PROGRESS",
				"message": "A scan is already running",
			},
		})
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.running = true
	h.cancel = cancel
	h.mu.Unlock()

	go func() {
		defer cancel()
		summary, _ := h.orchestrator.Scan(ctx, maxBatch)

		h.mu.Lock()
		h.running = false
		h.cancel = nil
		h.lastSummary = summary
		h.mu.Unlock()
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"status":    "started",
			"max_batch": maxBatch,
		},
	})
}

// CancelScan cancels the running scan, if any
// POST /api/scan/cancel
func (h *ScanHandler) CancelScan(c *gin.Context) {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()

	if cancel == nil {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NO_SCAN_RUNNING",
				"message": "No scan is currently running",
			},
		})
		return
	}

	cancel()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"status": "cancelling"},
	})
}

// ScanStatus returns whether a scan is running and the last summary
// GET /api/scan/status
func (h *ScanHandler) ScanStatus(c *gin.Context) {
	h.mu.Lock()
	running := h.running
	summary := h.lastSummary
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"running":      running,
			"last_summary": summary,
		},
	})
}

// StreamProgress streams scan progress events over SSE until the
// client disconnects
// GET /api/scan/stream
func (h *ScanHandler) StreamProgress(c *gin.Context) {
	id, events := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(id)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("progress", event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
