package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marisel-vam/ai-inbox-zero/internal/database/models"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
	"github.com/marisel-vam/ai-inbox-zero/internal/services"
	"github.com/marisel-vam/ai-inbox-zero/internal/store"
)

// MessageHandler handles processed message related requests
type MessageHandler struct {
	gateway  *store.Gateway
	mailbox  mailbox.Mailbox
	activity *services.ActivityService
}

// NewMessageHandler creates a new MessageHandler instance
func NewMessageHandler(gateway *store.Gateway, mb mailbox.Mailbox, activity *services.ActivityService) *MessageHandler {
	return &MessageHandler{
		gateway:  gateway,
		mailbox:  mb,
		activity: activity,
	}
}

// ListMessages returns processed messages, optionally filtered
// GET /api/messages?category=&priority=&needs_reply=&unsent=&search=&limit=
func (h *MessageHandler) ListMessages(c *gin.Context) {
	filter := store.MessageFilter{
		Category: models.Category(c.Query("category")),
		Priority: models.Priority(c.Query("priority")),
		Search:   c.Query("search"),
	}
	if v := c.Query("needs_reply"); v != "" {
		needsReply := v == "true" || v == "1"
		filter.NeedsReply = &needsReply
	}
	if v := c.Query("unsent"); v == "true" || v == "1" {
		filter.UnsentOnly = true
	}
	if v := c.Query("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			filter.Limit = limit
		}
	}

	messages, err := h.gateway.ListMessages(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to retrieve messages",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"messages": messages,
			"count":    len(messages),
		},
	})
}

// GetMessage returns a single processed message
// GET /api/messages/:id
func (h *MessageHandler) GetMessage(c *gin.Context) {
	record, err := h.gateway.GetMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Message not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to retrieve message",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    record,
	})
}

// SendReplyRequest represents the request to send a reply
type SendReplyRequest struct {
	Body string `json:"body"`
}

// SendReply sends the stored (or supplied) reply for a message. A
// heuristic-generated reply is never sent as-is; the caller must
// provide an explicit body for those.
// POST /api/messages/:id/send
func (h *MessageHandler) SendReply(c *gin.Context) {
	id := c.Param("id")

	var req SendReplyRequest
	_ = c.ShouldBindJSON(&req)

	record, ok := h.loadMessage(c, id)
	if !ok {
		return
	}

	if record.Sent {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ALREADY_SENT",
				"message": "A reply was already sent for this message",
			},
		})
		return
	}

	body := req.Body
	if body == "" {
		if record.IsFallbackClassification {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FALLBACK_REPLY",
					"message": "This reply was generated without AI; provide a body to send",
				},
			})
			return
		}
		body = record.AIReplyText
	}
	if body == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NO_REPLY_TEXT",
				"message": "Message has no reply text to send",
			},
		})
		return
	}

	ctx := c.Request.Context()
	if err := h.mailbox.Send(ctx, id, body); err != nil {
		h.mailboxError(c, err)
		return
	}
	if err := h.gateway.MarkSent(ctx, id); err != nil {
		h.storeError(c, err)
		return
	}
	h.incrementQuietly(c, store.FieldRepliesSent, id)

	h.activity.Info(models.LogComponentAPI, "send_reply", "Reply sent", map[string]interface{}{"message_id": id})
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"message_id": id, "sent": true},
	})
}

// ArchiveMessage archives a message in the mailbox and records it
// POST /api/messages/:id/archive
func (h *MessageHandler) ArchiveMessage(c *gin.Context) {
	id := c.Param("id")
	record, ok := h.loadMessage(c, id)
	if !ok {
		return
	}
	if record.Archived {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    gin.H{"message_id": id, "archived": true},
		})
		return
	}

	ctx := c.Request.Context()
	if err := h.mailbox.Archive(ctx, id); err != nil {
		h.mailboxError(c, err)
		return
	}
	if err := h.gateway.MarkArchived(ctx, id); err != nil {
		h.storeError(c, err)
		return
	}
	h.incrementQuietly(c, store.FieldEmailsArchived, id)

	h.activity.Info(models.LogComponentAPI, "archive", "Message archived", map[string]interface{}{"message_id": id})
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"message_id": id, "archived": true},
	})
}

// DeleteMessage moves a message to trash and records it
// DELETE /api/messages/:id
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	id := c.Param("id")
	record, ok := h.loadMessage(c, id)
	if !ok {
		return
	}
	if record.Deleted {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    gin.H{"message_id": id, "deleted": true},
		})
		return
	}

	ctx := c.Request.Context()
	if err := h.mailbox.Delete(ctx, id); err != nil {
		h.mailboxError(c, err)
		return
	}
	if err := h.gateway.MarkDeleted(ctx, id); err != nil {
		h.storeError(c, err)
		return
	}
	h.incrementQuietly(c, store.FieldEmailsDeleted, id)

	h.activity.Info(models.LogComponentAPI, "delete", "Message deleted", map[string]interface{}{"message_id": id})
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"message_id": id, "deleted": true},
	})
}

// MarkRead marks a message read in the mailbox
// PUT /api/messages/:id/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.loadMessage(c, id); !ok {
		return
	}

	if err := h.mailbox.MarkRead(c.Request.Context(), id); err != nil {
		h.mailboxError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"message_id": id, "read": true},
	})
}

// loadMessage fetches the record or writes the error response
func (h *MessageHandler) loadMessage(c *gin.Context, id string) (*models.MessageRecord, bool) {
	record, err := h.gateway.GetMessage(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Message not found",
				},
			})
		} else {
			h.storeError(c, err)
		}
		return nil, false
	}
	return record, true
}

// incrementQuietly bumps a daily counter; the primary action already
// succeeded, so a failed increment is logged and swallowed
func (h *MessageHandler) incrementQuietly(c *gin.Context, field store.AggregateField, id string) {
	today := time.Now().Format("2006-01-02")
	if err := h.gateway.IncrementAggregate(c.Request.Context(), today, field); err != nil {
		h.activity.Warn(models.LogComponentAPI, "aggregate", "Failed to update daily counter", map[string]interface{}{
			"message_id": id,
			"field":      string(field),
			"error":      err.Error(),
		})
	}
}

func (h *MessageHandler) mailboxError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	code := "MAILBOX_ERROR"
	if errors.Is(err, mailbox.ErrMessageNotFound) {
		status = http.StatusNotFound
		code = "NOT_FOUND"
	}
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": err.Error(),
		},
	})
}

func (h *MessageHandler) storeError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": err.Error(),
		},
	})
}
