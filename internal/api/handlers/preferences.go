package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/marisel-vam/ai-inbox-zero/internal/database/models"
	"github.com/marisel-vam/ai-inbox-zero/internal/services"
	"github.com/marisel-vam/ai-inbox-zero/internal/store"
)

// PreferencesHandler handles operator preference requests
type PreferencesHandler struct {
	gateway  *store.Gateway
	activity *services.ActivityService
}

// NewPreferencesHandler creates a new PreferencesHandler instance
func NewPreferencesHandler(gateway *store.Gateway, activity *services.ActivityService) *PreferencesHandler {
	return &PreferencesHandler{
		gateway:  gateway,
		activity: activity,
	}
}

// PreferencesResponse represents the automation preference toggles
type PreferencesResponse struct {
	ArchiveNewsletters bool `json:"archive_newsletters"`
	DeleteSpam         bool `json:"delete_spam"`
	AutoReplyImportant bool `json:"auto_reply_important"`
	CautionMode        bool `json:"caution_mode"`
}

// UpdatePreferencesRequest represents the request to update preferences.
// Only provided fields are changed.
type UpdatePreferencesRequest struct {
	ArchiveNewsletters *bool `json:"archive_newsletters"`
	DeleteSpam         *bool `json:"delete_spam"`
	AutoReplyImportant *bool `json:"auto_reply_important"`
	CautionMode        *bool `json:"caution_mode"`
}

// GetPreferences returns the stored automation preferences
// GET /api/preferences
func (h *PreferencesHandler) GetPreferences(c *gin.Context) {
	resp, err := h.load(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to retrieve preferences",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    resp,
	})
}

// UpdatePreferences updates the provided automation preferences
// PUT /api/preferences
func (h *PreferencesHandler) UpdatePreferences(c *gin.Context) {
	var req UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
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

	updates := map[string]*bool{
		PrefArchiveNewsletters: req.ArchiveNewsletters,
		PrefDeleteSpam:         req.DeleteSpam,
		PrefAutoReplyImportant: req.AutoReplyImportant,
		PrefCautionMode:        req.CautionMode,
	}
	for key, value := range updates {
		if value == nil {
			continue
		}
		if err := h.gateway.SetPreference(c.Request.Context(), key, strconv.FormatBool(*value)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INTERNAL_ERROR",
					"message": "Failed to update preferences",
				},
			})
			return
		}
	}

	resp, err := h.load(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to retrieve preferences",
			},
		})
		return
	}

	h.activity.Info(models.LogComponentAPI, "preferences_update", "Automation preferences updated", map[string]interface{}{
		"archive_newsletters":  resp.ArchiveNewsletters,
		"delete_spam":          resp.DeleteSpam,
		"auto_reply_important": resp.AutoReplyImportant,
		"caution_mode":         resp.CautionMode,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    resp,
	})
}

func (h *PreferencesHandler) load(c *gin.Context) (PreferencesResponse, error) {
	var resp PreferencesResponse
	var err error
	if resp.ArchiveNewsletters, err = h.boolPref(c, PrefArchiveNewsletters); err != nil {
		return resp, err
	}
	if resp.DeleteSpam, err = h.boolPref(c, PrefDeleteSpam); err != nil {
		return resp, err
	}
	if resp.AutoReplyImportant, err = h.boolPref(c, PrefAutoReplyImportant); err != nil {
		return resp, err
	}
	if resp.CautionMode, err = h.boolPref(c, PrefCautionMode); err != nil {
		return resp, err
	}
	return resp, nil
}

func (h *PreferencesHandler) boolPref(c *gin.Context, key string) (bool, error) {
	value, err := h.gateway.GetPreference(c.Request.Context(), key, "false")
	if err != nil {
		return false, err
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, nil
	}
	return parsed, nil
}
