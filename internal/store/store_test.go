package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/marisel-vam/ai-inbox-zero/internal/database/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	tmpFile, err := os.CreateTemp("", "test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpFile.Close()

	db, err := gorm.Open(sqlite.Open(tmpFile.Name()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to open database: %v", err)
	}

	err = db.AutoMigrate(
		&models.MessageRecord{},
		&models.DailyAggregate{},
		&models.Preference{},
	)
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to migrate: %v", err)
	}

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.Remove(tmpFile.Name())
	}

	return db, cleanup
}

func newTestGateway(t *testing.T) (*Gateway, func()) {
	db, cleanup := setupTestDB(t)
	gateway := NewGateway(db, quickRetryPolicy(3), zap.NewNop().Sugar())
	return gateway, cleanup
}

func sampleRecord(id string) *models.MessageRecord {
	return &models.MessageRecord{
		ID:          id,
		ThreadID:    "t-" + id,
		Sender:      "carol@client.com",
		Subject:     "Contract review",
		BodySnippet: "Could you look at the contract...",
		Category:    models.CategoryImportant,
		Priority:    models.PriorityHigh,
		AIReplyText: "Happy to review it.",
		NeedsReply:  true,
	}
}

func TestUpsertMessage_InsertAndGet(t *testing.T) {
	gateway, cleanup := newTestGateway(t)
	defer cleanup()
	ctx := context.Background()

	record := sampleRecord("m1")
	if err := gateway.UpsertMessage(ctx, record); err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}
	if record.ProcessedAt.IsZero() {
		t.Error("UpsertMessage did not stamp ProcessedAt")
	}

	got, err := gateway.GetMessage(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Sender != "carol@client.com" || got.Category != models.CategoryImportant {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestUpsertMessage_ReplacesExistingRecord(t *testing.T) {
	gateway, cleanup := newTestGateway(t)
	defer cleanup()
	ctx := context.Background()

	first := sampleRecord("m1")
	if err := gateway.UpsertMessage(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := sampleRecord("m1")
	second.Category = models.CategoryPersonal
	second.Priority = models.PriorityMedium
	if err := gateway.UpsertMessage(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := gateway.GetMessage(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Category != models.CategoryPersonal {
		t.Errorf("Category = %v, want Personal after upsert", got.Category)
	}

	var count int64
	// Only one row may exist for the id
	gateway.db.Model(&models.MessageRecord{}).Count(&count)
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}

func TestUpsertMessage_EmptyIDRejected(t *testing.T) {
	gateway, cleanup := newTestGateway(t)
	defer cleanup()

	if err := gateway.UpsertMessage(context.Background(), &models.MessageRecord{}); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestGetMessage_NotFound(t *testing.T) {
	gateway, cleanup := newTestGateway(t)
	defer cleanup()

	_, err := gateway.GetMessage(context.Background(), "missing")
	if !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("error = %v, want ErrMessageNotFound", err)
	}
}

func TestListMessages_Filters(t *testing.T) {
	gateway, cleanup := newTestGateway(t)
	defer cleanup()
	ctx := context.Background()

	important := sampleRecord("m1")
	newsletter := sampleRecord("m2")
	newsletter.Category = models.CategoryNewsletter
	newsletter.Priority = models.PriorityLow
	newsletter.NeedsReply = false
	newsletter.Sender = "digest@weekly.news"
	deleted := sampleRecord("m3")
	deleted.Deleted = true

	for _, record := range []*models.MessageRecord{important, newsletter, deleted} {
		if err := gateway.UpsertMessage(ctx, record); err != nil {
			t.Fatalf("UpsertMessage %s: %v", record.ID, err)
		}
	}

	// Deleted records are hidden by default
	all, err := gateway.ListMessages(ctx, MessageFilter{})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("default list length = %d, want 2", len(all))
	}

	byCategory, err := gateway.ListMessages(ctx, MessageFilter{Category: models.CategoryNewsletter})
	if err != nil {
		t.Fatalf("ListMessages by category: %v", err)
	}
	if len(byCategory) != 1 || byCategory[0].ID != "m2" {
		t.Errorf("category filter returned %+v", byCategory)
	}

	needsReply := true
	byReply, err := gateway.ListMessages(ctx, MessageFilter{NeedsReply: &needsReply})
	if err != nil {
		t.Fatalf("ListMessages by needs_reply: %v", err)
	}
	if len(byReply) != 1 || byReply[0].ID != "m1" {
		t.Errorf("needs_reply filter returned %+v", byReply)
	}

	bySearch, err := gateway.ListMessages(ctx, MessageFilter{Search: "weekly"})
	if err != nil {
		t.Fatalf("ListMessages by search: %v", err)
	}
	if len(bySearch) != 1 || bySearch[0].ID != "m2" {
		t.Errorf("search filter returned %+v", bySearch)
	}

	withDeleted, err := gateway.ListMessages(ctx, MessageFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("ListMessages include deleted: %v", err)
	}
	if len(withDeleted) != 3 {
		t.Errorf("include_deleted list length = %d, want 3", len(withDeleted))
	}
}

func TestMarkSent_SetsFlagAndTimestamp(t *testing.T) {
	gateway, cleanup := newTestGateway(t)
	defer cleanup()
	ctx := context.Background()

	if err := gateway.UpsertMessage(ctx, sampleRecord("m1")); err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}
	if err := gateway.MarkSent(ctx, "m1"); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	got, err := gateway.GetMessage(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !got.Sent {
		t.Error("Sent = false after MarkSent")
	}
	if got.SentAt == nil || got.SentAt.IsZero() {
		t.Error("SentAt not stamped")
	}
}

func TestMarkFlags_UnknownIDReturnsNotFound(t *testing.T) {
	gateway, cleanup := newTestGateway(t)
	defer cleanup()
	ctx := context.Background()

	for name, op := range map[string]func(context.Context, string) error{
		"MarkSent":     gateway.MarkSent,
		"MarkArchived": gateway.MarkArchived,
		"MarkDeleted":  gateway.MarkDeleted,
	} {
		if err := op(ctx, "missing"); !errors.Is(err, ErrMessageNotFound) {
			t.Errorf("%s error = %v, want ErrMessageNotFound", name, err)
		}
	}
}

func TestRecordClassified_IncrementsTotalsAndCategory(t *testing.T) {
	gateway, cleanup := newTestGateway(t)
	defer cleanup()
	ctx := context.Background()
	date := "2026-01-15"

	for i := 0; i < 3; i++ {
		if err := gateway.RecordClassified(ctx, date, models.CategoryImportant); err != nil {
			t.Fatalf("RecordClassified: %v", err)
		}
	}
	if err := gateway.RecordClassified(ctx, date, models.CategorySpam); err != nil {
		t.Fatalf("RecordClassified: %v", err)
	}

	var row models.DailyAggregate
	if err := gateway.db.First(&row, "date = ?", date).Error; err != nil {
		t.Fatalf("load aggregate: %v", err)
	}
	if row.TotalEmails != 4 {
		t.Errorf("TotalEmails = %d, want 4", row.TotalEmails)
	}
	if row.ImportantCount != 3 {
		t.Errorf("ImportantCount = %d, want 3", row.ImportantCount)
	}
	if row.SpamCount != 1 {
		t.Errorf("SpamCount = %d, want 1", row.SpamCount)
	}
}

func TestRecordClassified_UnknownCategoryRejected(t *testing.T) {
	gateway, cleanup := newTestGateway(t)
	defer cleanup()

	if err := gateway.RecordClassified(context.Background(), "2026-01-15", "Mystery"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestIncrementAggregate_CreatesAndIncrements(t *testing.T) {
	gateway, cleanup := newTestGateway(t)
	defer cleanup()
	ctx := context.Background()
	date := "2026-01-16"

	for i := 0; i < 2; i++ {
		if err := gateway.IncrementAggregate(ctx, date, FieldRepliesSent); err != nil {
			t.Fatalf("IncrementAggregate: %v", err)
		}
	}

	var row models.DailyAggregate
	if err := gateway.db.First(&row, "date = ?", date).Error; err != nil {
		t.Fatalf("load aggregate: %v", err)
	}
	if row.RepliesSent != 2 {
		t.Errorf("RepliesSent = %d, want 2", row.RepliesSent)
	}
	if row.TotalEmails != 0 {
		t.Errorf("TotalEmails = %d, want 0 (action counters leave totals alone)", row.TotalEmails)
	}
}

func TestAggregateRange_SumsRecentDays(t *testing.T) {
	gateway, cleanup := newTestGateway(t)
	defer cleanup()
	ctx := context.Background()

	today := time.Now().Format("2006-01-02")
	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	ancient := time.Now().AddDate(0, 0, -30).Format("2006-01-02")

	gateway.RecordClassified(ctx, today, models.CategoryImportant)
	gateway.RecordClassified(ctx, yesterday, models.CategoryPersonal)
	gateway.RecordClassified(ctx, ancient, models.CategorySpam)
	gateway.IncrementAggregate(ctx, today, FieldEmailsArchived)

	summary, daily, err := gateway.AggregateRange(ctx, 7)
	if err != nil {
		t.Fatalf("AggregateRange: %v", err)
	}
	if summary.TotalEmails != 2 {
		t.Errorf("TotalEmails = %d, want 2 (ancient row excluded)", summary.TotalEmails)
	}
	if summary.EmailsArchived != 1 {
		t.Errorf("EmailsArchived = %d, want 1", summary.EmailsArchived)
	}
	if len(daily) != 2 {
		t.Errorf("daily rows = %d, want 2", len(daily))
	}
}

func TestPreferences_RoundTripAndDefault(t *testing.T) {
	gateway, cleanup := newTestGateway(t)
	defer cleanup()
	ctx := context.Background()

	value, err := gateway.GetPreference(ctx, "delete_spam", "false")
	if err != nil {
		t.Fatalf("GetPreference: %v", err)
	}
	if value != "false" {
		t.Errorf("default value = %q, want \"false\"", value)
	}

	if err := gateway.SetPreference(ctx, "delete_spam", "true"); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	if err := gateway.SetPreference(ctx, "delete_spam", "false"); err != nil {
		t.Fatalf("SetPreference overwrite: %v", err)
	}

	value, err = gateway.GetPreference(ctx, "delete_spam", "true")
	if err != nil {
		t.Fatalf("GetPreference: %v", err)
	}
	if value != "false" {
		t.Errorf("value = %q, want \"false\" (last write wins)", value)
	}
}
