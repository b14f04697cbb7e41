// Package store is the retry-safe persistence gateway over message
// records, daily aggregates and preferences. SQLite serializes
// conflicting writers; the gateway's job is to absorb transient
// busy/locked errors with bounded backoff and never silently drop a
// write.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marisel-vam/ai-inbox-zero/internal/database/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrMessageNotFound indicates no record exists for the given id
var ErrMessageNotFound = errors.New("message record not found")

// AggregateField names a DailyAggregate counter that can be incremented
// individually
type AggregateField string

const (
	FieldRepliesSent    AggregateField = "replies_sent"
	FieldEmailsArchived AggregateField = "emails_archived"
	FieldEmailsDeleted  AggregateField = "emails_deleted"
)

// categoryColumns maps a classification category to its aggregate column
var categoryColumns = map[models.Category]string{
	models.CategoryImportant:  "important_count",
	models.CategoryPersonal:   "personal_count",
	models.CategoryNewsletter: "newsletter_count",
	models.CategorySpam:       "spam_count",
}

// aggregateColumns whitelists incrementable counter columns
var aggregateColumns = map[AggregateField]string{
	FieldRepliesSent:    "replies_sent",
	FieldEmailsArchived: "emails_archived",
	FieldEmailsDeleted:  "emails_deleted",
}

// Gateway provides retry-wrapped access to the persistent store
type Gateway struct {
	db    *gorm.DB
	retry RetryPolicy
	log   *zap.SugaredLogger
}

// NewGateway creates a Gateway with the given retry policy
func NewGateway(db *gorm.DB, retry RetryPolicy, log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		db:    db,
		retry: retry,
		log:   log,
	}
}

// UpsertMessage inserts or replaces the record keyed by its id. Upserting
// identical input is idempotent.
func (g *Gateway) UpsertMessage(ctx context.Context, record *models.MessageRecord) error {
	if record.ID == "" {
		return errors.New("message record id must not be empty")
	}
	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now()
	}

	err := g.retry.Do(ctx, func() error {
		return g.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(record).Error
	})
	if err != nil {
		g.log.Errorf("[Store] Upsert failed for message %s: %v", record.ID, err)
	}
	return err
}

// GetMessage returns the record for id, or ErrMessageNotFound
func (g *Gateway) GetMessage(ctx context.Context, id string) (*models.MessageRecord, error) {
	var record models.MessageRecord
	err := g.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &record, nil
}

// MessageFilter narrows a ListMessages query. Zero values mean "no
// constraint".
type MessageFilter struct {
	Category       models.Category
	Priority       models.Priority
	NeedsReply     *bool
	UnsentOnly     bool
	Search         string // free text over sender and subject
	IncludeDeleted bool
	Limit          int
}

// ListMessages returns records matching the filter, newest first
func (g *Gateway) ListMessages(ctx context.Context, filter MessageFilter) ([]models.MessageRecord, error) {
	query := g.db.WithContext(ctx).Model(&models.MessageRecord{})

	if !filter.IncludeDeleted {
		query = query.Where("deleted = ?", false)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.NeedsReply != nil {
		query = query.Where("needs_reply = ?", *filter.NeedsReply)
	}
	if filter.UnsentOnly {
		query = query.Where("sent = ?", false)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("sender LIKE ? OR subject LIKE ?", pattern, pattern)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var records []models.MessageRecord
	if err := query.Order("processed_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// MarkSent sets the sent flag and timestamp. The transition is monotonic:
// a sent record never reverts.
func (g *Gateway) MarkSent(ctx context.Context, id string) error {
	return g.updateMessage(ctx, id, map[string]interface{}{
		"sent":    true,
		"sent_at": time.Now(),
	})
}

// MarkArchived sets the archived flag
func (g *Gateway) MarkArchived(ctx context.Context, id string) error {
	return g.updateMessage(ctx, id, map[string]interface{}{"archived": true})
}

// MarkDeleted sets the deleted flag. The record itself stays in the
// store; the flag is the durable trace of the mailbox deletion.
func (g *Gateway) MarkDeleted(ctx context.Context, id string) error {
	return g.updateMessage(ctx, id, map[string]interface{}{"deleted": true})
}

func (g *Gateway) updateMessage(ctx context.Context, id string, fields map[string]interface{}) error {
	return g.retry.Do(ctx, func() error {
		result := g.db.WithContext(ctx).Model(&models.MessageRecord{}).
			Where("id = ?", id).Updates(fields)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
		}
		return nil
	})
}

// RecordClassified atomically increments today's total and the counter
// for the message's category. Increments happen in SQL, never via
// read-modify-write in application state.
func (g *Gateway) RecordClassified(ctx context.Context, date string, category models.Category) error {
	column, ok := categoryColumns[category]
	if !ok {
		return fmt.Errorf("unknown category %q", category)
	}

	return g.retry.Do(ctx, func() error {
		return g.db.WithContext(ctx).Exec(fmt.Sprintf(`
			INSERT INTO daily_aggregates (date, total_emails, %s)
			VALUES (?, 1, 1)
			ON CONFLICT(date) DO UPDATE SET
				total_emails = total_emails + 1,
				%s = %s + 1`, column, column, column),
			date).Error
	})
}

// IncrementAggregate atomically increments a single counter for the day
func (g *Gateway) IncrementAggregate(ctx context.Context, date string, field AggregateField) error {
	column, ok := aggregateColumns[field]
	if !ok {
		return fmt.Errorf("unknown aggregate field %q", field)
	}

	return g.retry.Do(ctx, func() error {
		return g.db.WithContext(ctx).Exec(fmt.Sprintf(`
			INSERT INTO daily_aggregates (date, %s)
			VALUES (?, 1)
			ON CONFLICT(date) DO UPDATE SET
				%s = %s + 1`, column, column, column),
			date).Error
	})
}

// AggregateSummary totals the daily counters over a date range
type AggregateSummary struct {
	TotalEmails     int `json:"total_emails"`
	ImportantCount  int `json:"important_count"`
	PersonalCount   int `json:"personal_count"`
	NewsletterCount int `json:"newsletter_count"`
	SpamCount       int `json:"spam_count"`
	RepliesSent     int `json:"replies_sent"`
	EmailsArchived  int `json:"emails_archived"`
	EmailsDeleted   int `json:"emails_deleted"`
}

// AggregateRange returns the summed counters and the per-day rows for the
// last days calendar days, newest first
func (g *Gateway) AggregateRange(ctx context.Context, days int) (*AggregateSummary, []models.DailyAggregate, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days).Format("2006-01-02")

	var daily []models.DailyAggregate
	if err := g.db.WithContext(ctx).
		Where("date >= ?", since).
		Order("date DESC").
		Find(&daily).Error; err != nil {
		return nil, nil, err
	}

	summary := &AggregateSummary{}
	for _, day := range daily {
		summary.TotalEmails += day.TotalEmails
		summary.ImportantCount += day.ImportantCount
		summary.PersonalCount += day.PersonalCount
		summary.NewsletterCount += day.NewsletterCount
		summary.SpamCount += day.SpamCount
		summary.RepliesSent += day.RepliesSent
		summary.EmailsArchived += day.EmailsArchived
		summary.EmailsDeleted += day.EmailsDeleted
	}
	return summary, daily, nil
}

// GetPreference returns the stored value for key, or fallback when unset
func (g *Gateway) GetPreference(ctx context.Context, key, fallback string) (string, error) {
	var pref models.Preference
	err := g.db.WithContext(ctx).First(&pref, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fallback, nil
		}
		return fallback, err
	}
	return pref.Value, nil
}

// SetPreference stores a key/value pair, last writer wins
func (g *Gateway) SetPreference(ctx context.Context, key, value string) error {
	return g.retry.Do(ctx, func() error {
		return g.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&models.Preference{
			Key:       key,
			Value:     value,
			UpdatedAt: time.Now(),
		}).Error
	})
}
