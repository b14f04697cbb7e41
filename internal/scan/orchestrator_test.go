package scan

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/marisel-vam/ai-inbox-zero/internal/classify"
	"github.com/marisel-vam/ai-inbox-zero/internal/database/models"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
	"github.com/marisel-vam/ai-inbox-zero/internal/progress"
	"github.com/marisel-vam/ai-inbox-zero/internal/services"
	"github.com/marisel-vam/ai-inbox-zero/internal/store"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeMailbox satisfies mailbox.Mailbox with canned unread messages and
// recorded mutation calls.
type fakeMailbox struct {
	mu       sync.Mutex
	unread   []mailbox.RawMessage
	listErr  error
	draftErr error
	drafts   map[string]string
}

func (f *fakeMailbox) ListUnread(ctx context.Context, max int) ([]mailbox.RawMessage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if max > 0 && len(f.unread) > max {
		return f.unread[:max], nil
	}
	return f.unread, nil
}

func (f *fakeMailbox) CreateDraft(ctx context.Context, messageID, replyText string) error {
	if f.draftErr != nil {
		return f.draftErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.drafts == nil {
		f.drafts = make(map[string]string)
	}
	f.drafts[messageID] = replyText
	return nil
}

func (f *fakeMailbox) Send(ctx context.Context, messageID, replyText string) error { return nil }
func (f *fakeMailbox) Archive(ctx context.Context, messageID string) error         { return nil }
func (f *fakeMailbox) Delete(ctx context.Context, messageID string) error          { return nil }
func (f *fakeMailbox) MarkRead(ctx context.Context, messageID string) error        { return nil }

func setupScanDB(t *testing.T) (*gorm.DB, func()) {
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
		&models.ActivityLog{},
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

type orchestratorFixture struct {
	orchestrator *Orchestrator
	mailbox      *fakeMailbox
	gateway      *store.Gateway
	db           *gorm.DB
}

func newOrchestratorFixture(t *testing.T, mb *fakeMailbox, classifier classify.Classifier, autoDraft bool) (*orchestratorFixture, func()) {
	t.Helper()
	db, cleanup := setupScanDB(t)

	log := zap.NewNop().Sugar()
	retry := store.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Retryable: store.IsBusy}
	gateway := store.NewGateway(db, retry, log)
	pool := NewPool(2, generousLimiter(t), classifier, time.Second, "Sam", log)
	activity := services.NewActivityService(db, log)
	orchestrator := NewOrchestrator(mb, pool, gateway, progress.NewBroadcaster(), activity, autoDraft, log)

	return &orchestratorFixture{
		orchestrator: orchestrator,
		mailbox:      mb,
		gateway:      gateway,
		db:           db,
	}, cleanup
}

func fixedClassifier(result classify.Result) classify.Classifier {
	return classifierFunc(func(ctx context.Context, msg mailbox.RawMessage) (classify.Result, error) {
		return result, nil
	})
}

func TestScan_PersistsAndCountsEveryMessage(t *testing.T) {
	mb := &fakeMailbox{unread: []mailbox.RawMessage{
		{ID: "m1", Sender: "alice@example.com", Subject: "quarterly numbers"},
		{ID: "m2", Sender: "bob@example.com", Subject: "lunch?"},
		{ID: "m3", Sender: "news@example.com", Subject: "weekly digest"},
	}}
	fixture, cleanup := newOrchestratorFixture(t, mb, fixedClassifier(classify.Result{
		Category: models.CategoryPersonal,
		Priority: models.PriorityMedium,
	}), false)
	defer cleanup()

	summary, err := fixture.orchestrator.Scan(context.Background(), 50)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if summary.Total != 3 || summary.Processed != 3 || summary.Errors != 0 {
		t.Errorf("summary = total %d processed %d errors %d, want 3/3/0",
			summary.Total, summary.Processed, summary.Errors)
	}
	if summary.Categories[models.CategoryPersonal] != 3 {
		t.Errorf("Personal count = %d, want 3", summary.Categories[models.CategoryPersonal])
	}
	if summary.Priorities[models.PriorityMedium] != 3 {
		t.Errorf("Medium count = %d, want 3", summary.Priorities[models.PriorityMedium])
	}

	for _, id := range []string{"m1", "m2", "m3"} {
		record, err := fixture.gateway.GetMessage(context.Background(), id)
		if err != nil {
			t.Errorf("message %s not persisted: %v", id, err)
			continue
		}
		if record.ProcessedAt.IsZero() {
			t.Errorf("message %s persisted without processed timestamp", id)
		}
	}

	var aggregate models.DailyAggregate
	if err := fixture.db.First(&aggregate, "date = ?", time.Now().Format("2006-01-02")).Error; err != nil {
		t.Fatalf("daily aggregate not written: %v", err)
	}
	if aggregate.TotalEmails != 3 || aggregate.PersonalCount != 3 {
		t.Errorf("aggregate = total %d personal %d, want 3/3", aggregate.TotalEmails, aggregate.PersonalCount)
	}
}

func TestScan_RerunSkipsCachedWithoutReincrementingAggregates(t *testing.T) {
	mb := &fakeMailbox{unread: []mailbox.RawMessage{
		{ID: "m1", Sender: "alice@example.com", Subject: "hello"},
		{ID: "m2", Sender: "bob@example.com", Subject: "hi"},
	}}
	fixture, cleanup := newOrchestratorFixture(t, mb, fixedClassifier(classify.Result{
		Category: models.CategoryImportant,
		Priority: models.PriorityHigh,
	}), false)
	defer cleanup()

	if _, err := fixture.orchestrator.Scan(context.Background(), 50); err != nil {
		t.Fatalf("first scan failed: %v", err)
	}

	summary, err := fixture.orchestrator.Scan(context.Background(), 50)
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}

	if summary.Cached != 2 || summary.Processed != 0 {
		t.Errorf("rerun summary = cached %d processed %d, want 2/0", summary.Cached, summary.Processed)
	}

	var aggregate models.DailyAggregate
	if err := fixture.db.First(&aggregate, "date = ?", time.Now().Format("2006-01-02")).Error; err != nil {
		t.Fatalf("aggregate lookup failed: %v", err)
	}
	if aggregate.TotalEmails != 2 || aggregate.ImportantCount != 2 {
		t.Errorf("rerun mutated aggregate: total %d important %d, want 2/2",
			aggregate.TotalEmails, aggregate.ImportantCount)
	}
}

func TestScan_FetchFailureIsFatal(t *testing.T) {
	mb := &fakeMailbox{listErr: errors.New("imap: connection refused")}
	fixture, cleanup := newOrchestratorFixture(t, mb, fixedClassifier(classify.Result{
		Category: models.CategoryPersonal,
		Priority: models.PriorityLow,
	}), false)
	defer cleanup()

	summary, err := fixture.orchestrator.Scan(context.Background(), 50)
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("error = %v, want ErrFetchFailed", err)
	}
	if summary == nil || !summary.Failed {
		t.Error("summary should be marked failed")
	}
	if summary.FailureReason == "" {
		t.Error("failure reason should carry the mailbox error")
	}
}

func TestScan_DuplicateIDsProcessedOnce(t *testing.T) {
	mb := &fakeMailbox{unread: []mailbox.RawMessage{
		{ID: "m1", Sender: "alice@example.com", Subject: "first copy"},
		{ID: "m1", Sender: "alice@example.com", Subject: "second copy"},
		{ID: "", Sender: "ghost@example.com", Subject: "no id"},
		{ID: "m2", Sender: "bob@example.com", Subject: "unique"},
	}}
	fixture, cleanup := newOrchestratorFixture(t, mb, fixedClassifier(classify.Result{
		Category: models.CategoryPersonal,
		Priority: models.PriorityMedium,
	}), false)
	defer cleanup()

	summary, err := fixture.orchestrator.Scan(context.Background(), 50)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if summary.Total != 2 || summary.Processed != 2 {
		t.Errorf("summary = total %d processed %d, want 2/2", summary.Total, summary.Processed)
	}

	record, err := fixture.gateway.GetMessage(context.Background(), "m1")
	if err != nil {
		t.Fatalf("m1 not persisted: %v", err)
	}
	if record.Subject != "first copy" {
		t.Errorf("m1 subject = %q, want first occurrence kept", record.Subject)
	}
}

func TestScan_AutoDraftCreatesDraftsForActionableReplies(t *testing.T) {
	mb := &fakeMailbox{unread: []mailbox.RawMessage{
		{ID: "m1", Sender: "alice@example.com", Subject: "need your input"},
		{ID: "m2", Sender: "news@example.com", Subject: "weekly digest"},
	}}

	classifier := classifierFunc(func(ctx context.Context, msg mailbox.RawMessage) (classify.Result, error) {
		if msg.ID == "m1" {
			return classify.Result{
				Category:   models.CategoryImportant,
				Priority:   models.PriorityHigh,
				Reply:      "Thanks, I'll review and reply by Friday.",
				NeedsReply: true,
			}, nil
		}
		return classify.Result{
			Category: models.CategoryNewsletter,
			Priority: models.PriorityLow,
			Reply:    "No reply needed",
		}, nil
	})

	fixture, cleanup := newOrchestratorFixture(t, mb, classifier, true)
	defer cleanup()

	summary, err := fixture.orchestrator.Scan(context.Background(), 50)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if summary.RepliesDrafted != 1 {
		t.Errorf("RepliesDrafted = %d, want 1", summary.RepliesDrafted)
	}
	if _, ok := mb.drafts["m1"]; !ok {
		t.Error("draft for m1 not created")
	}
	if _, ok := mb.drafts["m2"]; ok {
		t.Error("placeholder reply for m2 should not be drafted")
	}
}

func TestScan_DraftFailureDoesNotFailTheRun(t *testing.T) {
	mb := &fakeMailbox{
		unread:   []mailbox.RawMessage{{ID: "m1", Sender: "alice@example.com", Subject: "ping"}},
		draftErr: errors.New("draft quota exceeded"),
	}
	fixture, cleanup := newOrchestratorFixture(t, mb, fixedClassifier(classify.Result{
		Category:   models.CategoryImportant,
		Priority:   models.PriorityHigh,
		Reply:      "On it.",
		NeedsReply: true,
	}), true)
	defer cleanup()

	summary, err := fixture.orchestrator.Scan(context.Background(), 50)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if summary.Processed != 1 || summary.Errors != 0 {
		t.Errorf("summary = processed %d errors %d, want 1/0", summary.Processed, summary.Errors)
	}
	if summary.RepliesDrafted != 0 {
		t.Errorf("RepliesDrafted = %d, want 0 when drafting fails", summary.RepliesDrafted)
	}
}

func TestScan_EmptyInboxCompletesCleanly(t *testing.T) {
	fixture, cleanup := newOrchestratorFixture(t, &fakeMailbox{}, fixedClassifier(classify.Result{
		Category: models.CategoryPersonal,
		Priority: models.PriorityLow,
	}), false)
	defer cleanup()

	summary, err := fixture.orchestrator.Scan(context.Background(), 50)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if summary.Total != 0 || summary.Processed != 0 {
		t.Errorf("summary = total %d processed %d, want 0/0", summary.Total, summary.Processed)
	}
}

func TestScan_CancellationReturnsPartialPersistedSummary(t *testing.T) {
	msgs := make([]mailbox.RawMessage, 8)
	for i := range msgs {
		msgs[i] = mailbox.RawMessage{
			ID:      "m" + string(rune('0'+i)),
			Sender:  "alice@example.com",
			Subject: "hello",
		}
	}
	mb := &fakeMailbox{unread: msgs}

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	classifier := classifierFunc(func(cctx context.Context, msg mailbox.RawMessage) (classify.Result, error) {
		once.Do(cancel)
		time.Sleep(10 * time.Millisecond)
		return classify.Result{Category: models.CategoryPersonal, Priority: models.PriorityMedium}, nil
	})

	fixture, cleanup := newOrchestratorFixture(t, mb, classifier, false)
	defer cleanup()

	summary, err := fixture.orchestrator.Scan(ctx, 50)
	if err != nil {
		t.Fatalf("Scan returned error on cancellation: %v", err)
	}

	if summary.Processed == 0 {
		t.Error("in-flight messages should still be processed and counted")
	}
	if summary.Processed == summary.Total {
		t.Error("cancellation should stop submission before the whole batch runs")
	}

	records, err := fixture.gateway.ListMessages(context.Background(), store.MessageFilter{})
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(records) != summary.Processed {
		t.Errorf("persisted records = %d, summary.Processed = %d; partial results must stay durable",
			len(records), summary.Processed)
	}
}
