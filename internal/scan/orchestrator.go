// Package scan coordinates a single inbox scan: fetch a bounded batch of
// unread messages, classify them through the worker pool, persist each
// result, and stream progress to observers.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marisel-vam/ai-inbox-zero/internal/database/models"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
	"github.com/marisel-vam/ai-inbox-zero/internal/progress"
	"github.com/marisel-vam/ai-inbox-zero/internal/services"
	"github.com/marisel-vam/ai-inbox-zero/internal/store"
	"go.uber.org/zap"
)

// ErrFetchFailed indicates the mailbox batch fetch failed; this is fatal
// to the scan run
var ErrFetchFailed = errors.New("mailbox fetch failed")

// Summary is the caller-visible outcome of a scan run. Per-message
// failures degrade to counters here instead of surfacing as errors.
type Summary struct {
	Total          int                     `json:"total"`
	Processed      int                     `json:"processed"`
	Cached         int                     `json:"cached"`
	Fallback       int                     `json:"fallback"`
	Errors         int                     `json:"errors"`
	RepliesDrafted int                     `json:"replies_drafted"`
	Categories     map[models.Category]int `json:"categories"`
	Priorities     map[models.Priority]int `json:"priorities"`
	Elapsed        time.Duration           `json:"elapsed"`
	Failed         bool                    `json:"failed"`
	FailureReason  string                  `json:"failure_reason,omitempty"`
}

// Orchestrator drives the scan pipeline. A single Orchestrator may run
// scans concurrently; callers who want mutual exclusion serialize at the
// boundary.
type Orchestrator struct {
	mailbox     mailbox.Mailbox
	pool        *Pool
	gateway     *store.Gateway
	broadcaster *progress.Broadcaster
	activity    *services.ActivityService
	autoDraft   bool
	log         *zap.SugaredLogger
}

// NewOrchestrator creates a scan Orchestrator
func NewOrchestrator(mb mailbox.Mailbox, pool *Pool, gateway *store.Gateway, broadcaster *progress.Broadcaster, activity *services.ActivityService, autoDraft bool, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		mailbox:     mb,
		pool:        pool,
		gateway:     gateway,
		broadcaster: broadcaster,
		activity:    activity,
		autoDraft:   autoDraft,
		log:         log,
	}
}

// Scan fetches up to maxBatch unread messages and processes them.
// Cancelling ctx stops submission of new work; in-flight messages finish
// and a partial summary is returned. Already persisted records are never
// rolled back.
func (o *Orchestrator) Scan(ctx context.Context, maxBatch int) (*Summary, error) {
	start := time.Now()
	summary := &Summary{
		Categories: make(map[models.Category]int),
		Priorities: make(map[models.Priority]int),
	}

	o.broadcaster.Publish(progress.Event{Stage: progress.StageStarted})
	o.log.Infof("[Scan] Starting scan, batch size %d", maxBatch)

	raw, err := o.mailbox.ListUnread(ctx, maxBatch)
	if err != nil {
		summary.Failed = true
		summary.FailureReason = err.Error()
		summary.Elapsed = time.Since(start)
		o.broadcaster.Publish(progress.Event{Stage: progress.StageFailed, Error: err.Error()})
		o.activity.Error(models.LogComponentScan, "fetch", "Unread fetch failed", map[string]interface{}{
			"error": err.Error(),
		})
		return summary, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	msgs := dedupeByID(raw)
	summary.Total = len(msgs)
	o.broadcaster.Publish(progress.Event{Stage: progress.StageFetching, TotalCount: summary.Total})

	if summary.Total == 0 {
		summary.Elapsed = time.Since(start)
		o.broadcaster.Publish(progress.Event{Stage: progress.StageCompleted})
		o.log.Infof("[Scan] No unread messages")
		return summary, nil
	}

	// Skip messages that already have a stored classification so an id
	// reprocessed within a scan never re-increments the aggregates.
	toProcess := make([]mailbox.RawMessage, 0, len(msgs))
	for _, msg := range msgs {
		existing, err := o.gateway.GetMessage(ctx, msg.ID)
		if err == nil && existing != nil && !existing.ProcessedAt.IsZero() {
			summary.Cached++
			o.publishProgress(summary, msg.Sender, progress.StageStored)
			continue
		}
		toProcess = append(toProcess, msg)
	}

	o.broadcaster.Publish(progress.Event{
		Stage:          progress.StageAnalyzing,
		ProcessedCount: summary.Cached,
		TotalCount:     summary.Total,
	})

	// Cancellation stops submission only; results already classified are
	// still persisted, so the store context must outlive the scan context.
	storeCtx := context.WithoutCancel(ctx)
	today := time.Now().Format("2006-01-02")
	for result := range o.pool.Run(ctx, toProcess) {
		o.handleResult(storeCtx, result, today, summary)
	}

	summary.Elapsed = time.Since(start)
	o.broadcaster.Publish(progress.Event{
		Stage:          progress.StageCompleted,
		ProcessedCount: summary.Processed + summary.Cached + summary.Errors,
		TotalCount:     summary.Total,
	})

	o.log.Infof("[Scan] Complete: processed=%d cached=%d fallback=%d errors=%d drafted=%d in %s",
		summary.Processed, summary.Cached, summary.Fallback, summary.Errors, summary.RepliesDrafted, summary.Elapsed)
	o.activity.Info(models.LogComponentScan, "scan", "Scan completed", map[string]interface{}{
		"total":     summary.Total,
		"processed": summary.Processed,
		"cached":    summary.Cached,
		"fallback":  summary.Fallback,
		"errors":    summary.Errors,
		"elapsed":   summary.Elapsed.String(),
	})

	return summary, nil
}

// handleResult persists one classification and advances the summary. The
// record is durable before the Stored progress event for it is published.
func (o *Orchestrator) handleResult(ctx context.Context, result PoolResult, today string, summary *Summary) {
	msg := result.Message
	cls := result.Classification

	record := &models.MessageRecord{
		ID:                       msg.ID,
		ThreadID:                 msg.ThreadID,
		Sender:                   msg.Sender,
		Subject:                  msg.Subject,
		BodySnippet:              msg.Snippet,
		Category:                 cls.Category,
		Priority:                 cls.Priority,
		AIReplyText:              cls.Reply,
		Reasoning:                cls.Reasoning,
		NeedsReply:               cls.NeedsReply,
		IsFallbackClassification: cls.IsFallback,
		ProcessedAt:              time.Now(),
	}

	if err := o.gateway.UpsertMessage(ctx, record); err != nil {
		summary.Errors++
		o.log.Errorf("[Scan] Persist failed for %s: %v", msg.ID, err)
		o.publishError(summary, msg.Sender, err)
		return
	}

	if err := o.gateway.RecordClassified(ctx, today, cls.Category); err != nil {
		// Record is durable; only the day counter is behind.
		summary.Errors++
		o.log.Errorf("[Scan] Aggregate increment failed for %s: %v", msg.ID, err)
		o.publishError(summary, msg.Sender, err)
		return
	}

	summary.Processed++
	summary.Categories[cls.Category]++
	summary.Priorities[cls.Priority]++
	if cls.IsFallback {
		summary.Fallback++
	}

	if o.autoDraft && cls.NeedsReply && hasDraftableReply(cls.Reply) {
		if err := o.mailbox.CreateDraft(ctx, msg.ID, cls.Reply); err != nil {
			o.log.Warnf("[Scan] Draft creation failed for %s: %v", msg.ID, err)
		} else {
			summary.RepliesDrafted++
		}
	}

	o.publishProgress(summary, msg.Sender, progress.StageStored)
}

func (o *Orchestrator) publishProgress(summary *Summary, sender string, stage progress.Stage) {
	o.broadcaster.Publish(progress.Event{
		Stage:          stage,
		ProcessedCount: summary.Processed + summary.Cached + summary.Errors,
		TotalCount:     summary.Total,
		CurrentSender:  sender,
	})
}

func (o *Orchestrator) publishError(summary *Summary, sender string, err error) {
	o.broadcaster.Publish(progress.Event{
		Stage:          progress.StageStored,
		ProcessedCount: summary.Processed + summary.Cached + summary.Errors,
		TotalCount:     summary.Total,
		CurrentSender:  sender,
		Error:          err.Error(),
	})
}

// hasDraftableReply filters out placeholder replies
func hasDraftableReply(reply string) bool {
	reply = strings.TrimSpace(reply)
	return reply != "" && !strings.EqualFold(reply, "No reply needed")
}

// dedupeByID drops duplicate message ids, keeping first occurrence
func dedupeByID(msgs []mailbox.RawMessage) []mailbox.RawMessage {
	seen := make(map[string]bool, len(msgs))
	out := msgs[:0:0]
	for _, msg := range msgs {
		if msg.ID == "" || seen[msg.ID] {
			continue
		}
		seen[msg.ID] = true
		out = append(out, msg)
	}
	return out
}
