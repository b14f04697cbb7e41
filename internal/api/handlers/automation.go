package handlers

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/marisel-vam/ai-inbox-zero/internal/automation"
	"github.com/marisel-vam/ai-inbox-zero/internal/store"
)

// Preference keys for automation rule toggles. Stored values override
// the config file defaults.
const (
	PrefArchiveNewsletters = "archive_newsletters"
	PrefDeleteSpam         = "delete_spam"
	PrefAutoReplyImportant = "auto_reply_important"
	PrefCautionMode        = "caution_mode"
)

// AutomationHandler handles autopilot rule execution requests
type AutomationHandler struct {
	engine   *automation.Engine
	gateway  *store.Gateway
	defaults automation.Config

	mu      sync.Mutex
	running bool
}

// NewAutomationHandler creates a new AutomationHandler instance
func NewAutomationHandler(engine *automation.Engine, gateway *store.Gateway, defaults automation.Config) *AutomationHandler {
	return &AutomationHandler{
		engine:   engine,
		gateway:  gateway,
		defaults: defaults,
	}
}

// RunAutomation evaluates the rule set against processed messages
// POST /api/automation/run
func (h *AutomationHandler) RunAutomation(c *gin.Context) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTOMATION_IN_PROGRESS",
				"message": "An automation run is already in progress",
			},
		})
		return
	}
	h.running = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	cfg := h.ResolveConfig(c)

	result, err := h.engine.Run(c.Request.Context(), cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetRules returns the effective automation rule configuration
// GET /api/automation/rules
func (h *AutomationHandler) GetRules(c *gin.Context) {
	cfg := h.ResolveConfig(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"archive_newsletters":  cfg.ArchiveNewsletters,
			"delete_spam":          cfg.DeleteSpam,
			"auto_reply_important": cfg.AutoReplyImportant,
			"caution_mode":         cfg.CautionMode,
		},
	})
}

// ResolveConfig layers stored preferences over the config defaults
func (h *AutomationHandler) ResolveConfig(c *gin.Context) automation.Config {
	cfg := h.defaults
	cfg.ArchiveNewsletters = h.boolPreference(c, PrefArchiveNewsletters, cfg.ArchiveNewsletters)
	cfg.DeleteSpam = h.boolPreference(c, PrefDeleteSpam, cfg.DeleteSpam)
	cfg.AutoReplyImportant = h.boolPreference(c, PrefAutoReplyImportant, cfg.AutoReplyImportant)
	cfg.CautionMode = h.boolPreference(c, PrefCautionMode, cfg.CautionMode)
	return cfg
}

func (h *AutomationHandler) boolPreference(c *gin.Context, key string, fallback bool) bool {
	value, err := h.gateway.GetPreference(c.Request.Context(), key, strconv.FormatBool(fallback))
	if err != nil {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
