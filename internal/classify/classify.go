// Package classify defines the classification contract consumed by the
// scan worker pool. The external service lives behind the Classifier
// interface; the local package supplies the deterministic fallback used
// when the service fails or times out.
package classify

import (
	"context"

	"github.com/marisel-vam/ai-inbox-zero/internal/database/models"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
)

// Result is the outcome of classifying a single message
type Result struct {
	Category   models.Category
	Priority   models.Priority
	Reply      string
	Reasoning  string
	NeedsReply bool
	// IsFallback marks a classification produced by the local heuristic
	// instead of a live service call. Downstream rule evaluation must be
	// able to tell the two apart.
	IsFallback bool
}

// Classifier turns a raw mailbox message into a classification result.
// Implementations must not retry internally; retries and fallback policy
// belong to the caller.
type Classifier interface {
	Classify(ctx context.Context, msg mailbox.RawMessage) (Result, error)
}
