// Package gmail adapts the Gmail REST API to the mailbox collaborator
// contract
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const unreadQuery = "is:unread in:inbox"

// Service implements mailbox.Mailbox over an authenticated Gmail API
// client
type Service struct {
	svc *gm.Service
}

// New wraps an authenticated Gmail service
func New(svc *gm.Service) *Service {
	return &Service{svc: svc}
}

// ListUnread returns up to max unread inbox messages
func (s *Service) ListUnread(ctx context.Context, max int) ([]mailbox.RawMessage, error) {
	resp, err := s.svc.Users.Messages.List("me").
		Q(unreadQuery).
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapErr("list unread", err)
	}

	msgs := make([]mailbox.RawMessage, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		detail, err := s.svc.Users.Messages.Get("me", ref.Id).
			Format("full").
			Context(ctx).
			Do()
		if err != nil {
			// One unreadable message does not fail the batch
			continue
		}

		headers := headerMap(detail.Payload.Headers)
		msgs = append(msgs, mailbox.RawMessage{
			ID:       detail.Id,
			ThreadID: detail.ThreadId,
			Sender:   headers["From"],
			Subject:  defaultStr(headers["Subject"], "(no subject)"),
			Snippet:  detail.Snippet,
			Body:     extractBody(detail.Payload),
		})
	}

	return msgs, nil
}

// Send sends replyText as a reply on the message's thread
func (s *Service) Send(ctx context.Context, messageID, replyText string) error {
	raw, threadID, err := s.buildReply(ctx, messageID, replyText)
	if err != nil {
		return err
	}

	_, err = s.svc.Users.Messages.Send("me", &gm.Message{
		Raw:      raw,
		ThreadId: threadID,
	}).Context(ctx).Do()
	if err != nil {
		return wrapErr("send reply", err)
	}
	return nil
}

// CreateDraft stores replyText as a draft reply on the message's thread
func (s *Service) CreateDraft(ctx context.Context, messageID, replyText string) error {
	raw, threadID, err := s.buildReply(ctx, messageID, replyText)
	if err != nil {
		return err
	}

	_, err = s.svc.Users.Drafts.Create("me", &gm.Draft{
		Message: &gm.Message{Raw: raw, ThreadId: threadID},
	}).Context(ctx).Do()
	if err != nil {
		return wrapErr("create draft", err)
	}
	return nil
}

// Archive removes the message from the inbox
func (s *Service) Archive(ctx context.Context, messageID string) error {
	_, err := s.svc.Users.Messages.Modify("me", messageID, &gm.ModifyMessageRequest{
		RemoveLabelIds: []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return wrapErr("archive", err)
	}
	return nil
}

// Delete moves the message to trash
func (s *Service) Delete(ctx context.Context, messageID string) error {
	_, err := s.svc.Users.Messages.Trash("me", messageID).Context(ctx).Do()
	if err != nil {
		return wrapErr("delete", err)
	}
	return nil
}

// MarkRead clears the unread label
func (s *Service) MarkRead(ctx context.Context, messageID string) error {
	_, err := s.svc.Users.Messages.Modify("me", messageID, &gm.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return wrapErr("mark read", err)
	}
	return nil
}

// buildReply fetches the original headers and assembles a base64url
// encoded RFC 822 reply message
func (s *Service) buildReply(ctx context.Context, messageID, replyText string) (raw, threadID string, err error) {
	original, err := s.svc.Users.Messages.Get("me", messageID).
		Format("metadata").
		MetadataHeaders("From", "Subject", "Message-ID").
		Context(ctx).
		Do()
	if err != nil {
		return "", "", wrapErr("get original", err)
	}

	headers := headerMap(original.Payload.Headers)
	to := headers["From"]
	subject := headers["Subject"]
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	if msgID := headers["Message-ID"]; msgID != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", msgID)
		fmt.Fprintf(&b, "References: %s\r\n", msgID)
	}
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(replyText)

	return base64.URLEncoding.EncodeToString([]byte(b.String())), original.ThreadId, nil
}

// extractBody gets the plain text body from a message payload, preferring
// text/plain and recursing through multipart messages
func extractBody(payload *gm.MessagePart) string {
	if payload == nil {
		return ""
	}
	if payload.Body != nil && payload.Body.Data != "" {
		if decoded, err := decodeBase64URL(payload.Body.Data); err == nil {
			return decoded
		}
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return decoded
			}
		}
		if len(part.Parts) > 0 {
			if body := extractBody(part); body != "" {
				return body
			}
		}
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return decoded
			}
		}
	}

	return ""
}

// headerMap converts Gmail API headers into a simple key-value map
func headerMap(headers []*gm.MessagePartHeader) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Name] = h.Value
	}
	return m
}

// decodeBase64URL decodes Gmail's base64url-encoded content
func decodeBase64URL(data string) (string, error) {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).
		DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// wrapErr classifies a Gmail API failure. Rate-limit and server-side
// errors are transient; everything else surfaces as a plain mailbox call
// failure.
func wrapErr(op string, err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return fmt.Errorf("%w: %s: %v", mailbox.ErrTransient, op, err)
		}
		if apiErr.Code == 404 {
			return fmt.Errorf("%w: %s: %v", mailbox.ErrMessageNotFound, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", mailbox.ErrMailboxCall, op, err)
}
