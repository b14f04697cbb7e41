// Package automation applies deterministic rules over stored, already
// classified messages: archive newsletters, delete spam, send drafted
// replies for important mail. It runs independently of scans and only
// consumes persisted state.
package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/marisel-vam/ai-inbox-zero/internal/database/models"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
	"github.com/marisel-vam/ai-inbox-zero/internal/services"
	"github.com/marisel-vam/ai-inbox-zero/internal/store"
	"go.uber.org/zap"
)

// Config holds the automation rule switches. CautionMode suppresses
// auto-reply regardless of the other settings.
type Config struct {
	ArchiveNewsletters bool `json:"archive_newsletters"`
	DeleteSpam         bool `json:"delete_spam"`
	AutoReplyImportant bool `json:"auto_reply_important"`
	CautionMode        bool `json:"caution_mode"`
}

// ActionType identifies what the engine did with a message
type ActionType string

const (
	ActionArchived ActionType = "Archived"
	ActionDeleted  ActionType = "Deleted"
	ActionReplied  ActionType = "Replied"
	ActionSkipped  ActionType = "Skipped"
	ActionFailed   ActionType = "Failed"
)

// Action is one ledger entry per evaluated message per run. The ledger is
// returned, not persisted; the flags on MessageRecord are the durable
// effect.
type Action struct {
	MessageID string     `json:"message_id"`
	Action    ActionType `json:"action_taken"`
	Reason    string     `json:"reason"`
}

// RunResult summarizes an automation run
type RunResult struct {
	Actions  []Action      `json:"actions"`
	Archived int           `json:"archived"`
	Deleted  int           `json:"deleted"`
	Replied  int           `json:"replied"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Elapsed  time.Duration `json:"elapsed"`
}

// evaluationLimit bounds how many stored records one run considers
const evaluationLimit = 100

// Engine evaluates automation rules and applies the resulting mailbox and
// store mutations
type Engine struct {
	gateway  *store.Gateway
	mailbox  mailbox.Mailbox
	retry    store.RetryPolicy
	activity *services.ActivityService
	log      *zap.SugaredLogger
}

// NewEngine creates an automation Engine. Mailbox calls reuse the
// gateway's transient-retry discipline with a mailbox-specific
// transience check.
func NewEngine(gateway *store.Gateway, mb mailbox.Mailbox, retry store.RetryPolicy, activity *services.ActivityService, log *zap.SugaredLogger) *Engine {
	retry.Retryable = mailbox.IsTransient
	return &Engine{
		gateway:  gateway,
		mailbox:  mb,
		retry:    retry,
		activity: activity,
		log:      log,
	}
}

// Run evaluates every stored, not-deleted record against the configured
// rules. Each message is evaluated independently; the first matching rule
// wins and at most one action is applied per message per run. A mailbox
// failure marks that message Failed and the run continues.
func (e *Engine) Run(ctx context.Context, cfg Config) (*RunResult, error) {
	start := time.Now()

	records, err := e.gateway.ListMessages(ctx, store.MessageFilter{Limit: evaluationLimit})
	if err != nil {
		return nil, err
	}

	result := &RunResult{Actions: make([]Action, 0, len(records))}
	today := time.Now().Format("2006-01-02")

	for _, record := range records {
		action := e.evaluate(ctx, &record, cfg, today)
		result.Actions = append(result.Actions, action)

		switch action.Action {
		case ActionArchived:
			result.Archived++
		case ActionDeleted:
			result.Deleted++
		case ActionReplied:
			result.Replied++
		case ActionSkipped:
			result.Skipped++
		case ActionFailed:
			result.Failed++
		}
	}

	result.Elapsed = time.Since(start)
	e.log.Infof("[Automation] Run complete: archived=%d deleted=%d replied=%d skipped=%d failed=%d",
		result.Archived, result.Deleted, result.Replied, result.Skipped, result.Failed)
	e.activity.Info(models.LogComponentAutomation, "run", "Automation run completed", map[string]interface{}{
		"archived": result.Archived,
		"deleted":  result.Deleted,
		"replied":  result.Replied,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
	})

	return result, nil
}

// evaluate applies the rule order from the product definition: archive
// newsletters, delete spam, auto-reply important. A fallback
// classification is still eligible for archive and delete, but its reply
// must never be auto-sent.
func (e *Engine) evaluate(ctx context.Context, record *models.MessageRecord, cfg Config, today string) Action {
	id := record.ID

	if cfg.ArchiveNewsletters && record.Category == models.CategoryNewsletter {
		if record.Archived {
			return Action{MessageID: id, Action: ActionSkipped, Reason: "already archived"}
		}
		if err := e.mailboxCall(ctx, func() error { return e.mailbox.Archive(ctx, id) }); err != nil {
			e.log.Warnf("[Automation] Archive failed for %s: %v", id, err)
			return Action{MessageID: id, Action: ActionFailed, Reason: "archive: " + err.Error()}
		}
		if err := e.gateway.MarkArchived(ctx, id); err != nil {
			return Action{MessageID: id, Action: ActionFailed, Reason: "mark archived: " + err.Error()}
		}
		e.incrementQuietly(ctx, today, store.FieldEmailsArchived, id)
		return Action{MessageID: id, Action: ActionArchived, Reason: "newsletter"}
	}

	if cfg.DeleteSpam && record.Category == models.CategorySpam {
		if record.Deleted {
			return Action{MessageID: id, Action: ActionSkipped, Reason: "already deleted"}
		}
		if err := e.mailboxCall(ctx, func() error { return e.mailbox.Delete(ctx, id) }); err != nil {
			e.log.Warnf("[Automation] Delete failed for %s: %v", id, err)
			return Action{MessageID: id, Action: ActionFailed, Reason: "delete: " + err.Error()}
		}
		if err := e.gateway.MarkDeleted(ctx, id); err != nil {
			return Action{MessageID: id, Action: ActionFailed, Reason: "mark deleted: " + err.Error()}
		}
		e.incrementQuietly(ctx, today, store.FieldEmailsDeleted, id)
		return Action{MessageID: id, Action: ActionDeleted, Reason: "spam"}
	}

	if cfg.AutoReplyImportant && !cfg.CautionMode &&
		record.Category == models.CategoryImportant && record.NeedsReply {
		if record.Sent {
			return Action{MessageID: id, Action: ActionSkipped, Reason: "already sent"}
		}
		if record.IsFallbackClassification {
			return Action{MessageID: id, Action: ActionSkipped, Reason: "fallback classification, reply withheld"}
		}
		if !hasSendableReply(record.AIReplyText) {
			return Action{MessageID: id, Action: ActionSkipped, Reason: "no drafted reply"}
		}
		if err := e.mailboxCall(ctx, func() error { return e.mailbox.Send(ctx, id, record.AIReplyText) }); err != nil {
			e.log.Warnf("[Automation] Reply failed for %s: %v", id, err)
			return Action{MessageID: id, Action: ActionFailed, Reason: "send: " + err.Error()}
		}
		if err := e.gateway.MarkSent(ctx, id); err != nil {
			return Action{MessageID: id, Action: ActionFailed, Reason: "mark sent: " + err.Error()}
		}
		e.incrementQuietly(ctx, today, store.FieldRepliesSent, id)
		return Action{MessageID: id, Action: ActionReplied, Reason: "important, reply drafted"}
	}

	return Action{MessageID: id, Action: ActionSkipped, Reason: "no rule matched"}
}

// mailboxCall applies the retry policy to a mutating mailbox operation
func (e *Engine) mailboxCall(ctx context.Context, op func() error) error {
	if err := e.retry.Do(ctx, op); err != nil {
		return fmt.Errorf("%w: %v", mailbox.ErrMailboxCall, err)
	}
	return nil
}

// incrementQuietly bumps a day counter; the action already succeeded, so
// a counter failure is logged rather than reported
func (e *Engine) incrementQuietly(ctx context.Context, today string, field store.AggregateField, id string) {
	if err := e.gateway.IncrementAggregate(ctx, today, field); err != nil {
		e.log.Warnf("[Automation] Aggregate increment %s failed for %s: %v", field, id, err)
	}
}

func hasSendableReply(reply string) bool {
	return reply != "" && reply != "No reply needed"
}
