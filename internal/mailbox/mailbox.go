// Package mailbox defines the contract for the external mailbox
// collaborator. The scan orchestrator reads through it and the automation
// engine mutates through it; adapters for Gmail and IMAP live in
// subpackages.
package mailbox

import (
	"context"
	"errors"
)

var (
	// ErrMailboxCall indicates a mailbox operation failed
	ErrMailboxCall = errors.New("mailbox call failed")
	// ErrTransient marks a mailbox failure worth retrying
	ErrTransient = errors.New("transient mailbox error")
	// ErrMessageNotFound indicates the message no longer exists in the mailbox
	ErrMessageNotFound = errors.New("message not found in mailbox")
)

// RawMessage is an unclassified message as fetched from the mailbox
type RawMessage struct {
	ID       string
	ThreadID string
	Sender   string
	Subject  string
	Snippet  string
	Body     string
}

// Mailbox is the external mailbox collaborator. All operations may fail
// transiently; callers apply their own retry policy.
type Mailbox interface {
	// ListUnread returns up to max unread messages
	ListUnread(ctx context.Context, max int) ([]RawMessage, error)
	// Send sends replyText as a reply to the given message
	Send(ctx context.Context, messageID, replyText string) error
	// CreateDraft stores replyText as a draft reply to the given message
	CreateDraft(ctx context.Context, messageID, replyText string) error
	// Archive removes the message from the inbox without deleting it
	Archive(ctx context.Context, messageID string) error
	// Delete moves the message to trash
	Delete(ctx context.Context, messageID string) error
	// MarkRead clears the unread state of the message
	MarkRead(ctx context.Context, messageID string) error
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
