// Package local implements the deterministic heuristic classifier used
// when the external classification service is unavailable. It never
// fails; a scan degrades to fallback classifications rather than
// aborting.
package local

import (
	"fmt"
	"strings"

	"github.com/marisel-vam/ai-inbox-zero/internal/classify"
	"github.com/marisel-vam/ai-inbox-zero/internal/database/models"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
)

var (
	// Sender patterns indicating automated no-reply addresses
	noReplyPatterns = []string{
		"no-reply", "noreply", "donotreply", "do-not-reply",
		"notifications", "automated", "mailer-daemon",
	}

	// Subject keywords indicating bulk/marketing mail
	newsletterKeywords = []string{
		"newsletter", "unsubscribe", "promotion", "digest",
		"weekly update", "special offer",
	}

	// Subject keywords indicating unsolicited junk
	spamKeywords = []string{
		"you have won", "lottery", "prince", "viagra",
		"claim your prize", "100% free",
	}
)

// IsNoReplySender reports whether the sender is an automated no-reply
// address that should never receive a reply
func IsNoReplySender(sender string) bool {
	senderLower := strings.ToLower(sender)
	for _, pattern := range noReplyPatterns {
		if strings.Contains(senderLower, pattern) {
			return true
		}
	}
	return false
}

// Classify produces a heuristic fallback classification for the message.
// The result always carries IsFallback=true so downstream rule evaluation
// can distinguish it from a confident service classification.
func Classify(msg mailbox.RawMessage, userName string) classify.Result {
	subjectLower := strings.ToLower(msg.Subject)

	if IsNoReplySender(msg.Sender) {
		return classify.Result{
			Category:   models.CategoryNewsletter,
			Priority:   models.PriorityLow,
			Reply:      "No reply needed",
			Reasoning:  "Automated no-reply sender",
			NeedsReply: false,
			IsFallback: true,
		}
	}

	for _, keyword := range spamKeywords {
		if strings.Contains(subjectLower, keyword) {
			return classify.Result{
				Category:   models.CategorySpam,
				Priority:   models.PriorityLow,
				Reply:      "No reply needed",
				Reasoning:  "Spam keyword in subject",
				NeedsReply: false,
				IsFallback: true,
			}
		}
	}

	for _, keyword := range newsletterKeywords {
		if strings.Contains(subjectLower, keyword) {
			return classify.Result{
				Category:   models.CategoryNewsletter,
				Priority:   models.PriorityLow,
				Reply:      "No reply needed",
				Reasoning:  "Newsletter keyword in subject",
				NeedsReply: false,
				IsFallback: true,
			}
		}
	}

	return classify.Result{
		Category:   models.CategoryPersonal,
		Priority:   models.PriorityMedium,
		Reply:      acknowledgmentReply(msg.Sender, msg.Subject, userName),
		Reasoning:  "Fallback due to classification service unavailability",
		NeedsReply: true,
		IsFallback: true,
	}
}

// acknowledgmentReply drafts a neutral holding reply for messages the
// heuristic cannot confidently classify
func acknowledgmentReply(sender, subject, userName string) string {
	senderName := strings.TrimSpace(strings.Split(sender, "<")[0])
	if senderName == "" {
		senderName = sender
	}
	if userName == "" {
		userName = "the recipient"
	}

	return fmt.Sprintf(`Dear %s,

Thank you for your email regarding "%s". I have received your message and will review it shortly.

(Note: This is an automated acknowledgment. A detailed response will follow.)

Best regards,
%s`, senderName, subject, userName)
}
