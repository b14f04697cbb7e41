// Package app wires the processing pipeline from configuration. Both
// the API server and the CLI commands build their collaborators here so
// the two entry points cannot drift apart.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/marisel-vam/ai-inbox-zero/internal/api"
	"github.com/marisel-vam/ai-inbox-zero/internal/automation"
	"github.com/marisel-vam/ai-inbox-zero/internal/classify"
	"github.com/marisel-vam/ai-inbox-zero/internal/classify/ai"
	"github.com/marisel-vam/ai-inbox-zero/internal/config"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox/gmail"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox/imap"
	"github.com/marisel-vam/ai-inbox-zero/internal/progress"
	"github.com/marisel-vam/ai-inbox-zero/internal/ratelimit"
	"github.com/marisel-vam/ai-inbox-zero/internal/scan"
	"github.com/marisel-vam/ai-inbox-zero/internal/services"
	"github.com/marisel-vam/ai-inbox-zero/internal/store"
)

// Build constructs the full pipeline from config. The mailbox provider
// is selected here; for Gmail this performs the OAuth token load.
func Build(ctx context.Context, db *gorm.DB, cfg *config.Config, log *zap.SugaredLogger) (*api.Deps, error) {
	mb, err := buildMailbox(ctx, cfg)
	if err != nil {
		return nil, err
	}

	limiter, err := ratelimit.New(cfg.RateLimitCalls, cfg.RateLimitWindow())
	if err != nil {
		return nil, err
	}

	classifier := buildClassifier(cfg)

	retry := store.DefaultRetryPolicy(cfg.StoreMaxRetries)
	gateway := store.NewGateway(db, retry, log)
	activity := services.NewActivityServiceWithLevel(db, cfg.LogLevel, log)
	broadcaster := progress.NewBroadcaster()

	pool := scan.NewPool(cfg.WorkerConcurrency, limiter, classifier, cfg.ClassifyTimeout(), cfg.UserName, log)
	orchestrator := scan.NewOrchestrator(mb, pool, gateway, broadcaster, activity, cfg.AutoDraftReplies, log)
	engine := automation.NewEngine(gateway, mb, retry, activity, log)

	return &api.Deps{
		Orchestrator: orchestrator,
		Engine:       engine,
		Gateway:      gateway,
		Broadcaster:  broadcaster,
		Mailbox:      mb,
		Activity:     activity,
	}, nil
}

// buildMailbox selects the mailbox adapter from config
func buildMailbox(ctx context.Context, cfg *config.Config) (mailbox.Mailbox, error) {
	switch cfg.MailboxProvider {
	case "gmail":
		svc, err := gmail.NewFromCredentials(ctx, cfg.GmailCredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("gmail setup: %w", err)
		}
		return svc, nil
	case "imap":
		return imap.New(imap.Options{
			Host:     cfg.IMAPHost,
			Port:     cfg.IMAPPort,
			Username: cfg.IMAPUsername,
			Password: cfg.IMAPPassword,
			UseSSL:   cfg.IMAPUseSSL,
			SMTPHost: cfg.SMTPHost,
			SMTPPort: cfg.SMTPPort,
		}), nil
	default:
		return nil, fmt.Errorf("unknown mailbox provider %q", cfg.MailboxProvider)
	}
}

// buildClassifier returns the AI client, configured when credentials
// are present. An unconfigured client fails every call, which the
// worker pool turns into heuristic fallback results.
func buildClassifier(cfg *config.Config) classify.Classifier {
	client := ai.NewClient()
	if cfg.AIAPIKey != "" {
		client.Configure(cfg.AIProvider, cfg.AIAPIKey, cfg.AIModel, cfg.AIBaseURL, cfg.UserName)
	}
	return client
}
