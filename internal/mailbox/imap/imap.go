// Package imap adapts a standard IMAP/SMTP account to the mailbox
// collaborator contract. Message ids are inbox UIDs rendered as decimal
// strings.
package imap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
)

const (
	inboxFolder   = "INBOX"
	draftsFolder  = "Drafts"
	archiveFolder = "Archive"

	snippetLength = 200
)

// Options configures the IMAP/SMTP connection
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	UseSSL   bool
	SMTPHost string
	SMTPPort int
}

// Client implements mailbox.Mailbox over IMAP for reading and mutating
// and SMTP for sending. Each operation dials a fresh session; the
// account is the unit of serialization, not the connection.
type Client struct {
	opts Options
}

// New creates an IMAP mailbox Client
func New(opts Options) *Client {
	return &Client{opts: opts}
}

// ListUnread fetches up to max unseen inbox messages
func (c *Client) ListUnread(ctx context.Context, max int) ([]mailbox.RawMessage, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Logout()

	if _, err := conn.Select(inboxFolder, true); err != nil {
		return nil, wrapErr("select inbox", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := conn.UidSearch(criteria)
	if err != nil {
		return nil, wrapErr("search unseen", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	if max > 0 && len(uids) > max {
		uids = uids[len(uids)-max:]
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- conn.UidFetch(seqSet, items, messages)
	}()

	var result []mailbox.RawMessage
	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}
		body := readTextBody(msg.GetBody(section))
		result = append(result, mailbox.RawMessage{
			ID:      strconv.FormatUint(uint64(msg.Uid), 10),
			Sender:  formatAddress(msg.Envelope.From),
			Subject: msg.Envelope.Subject,
			Snippet: snippet(body),
			Body:    body,
		})
	}

	if err := <-done; err != nil {
		return nil, wrapErr("fetch", err)
	}
	return result, nil
}

// Send sends replyText as an SMTP reply to the message's sender
func (c *Client) Send(ctx context.Context, messageID, replyText string) error {
	env, err := c.fetchEnvelope(messageID)
	if err != nil {
		return err
	}

	to := firstAddress(env.From)
	if to == "" {
		return fmt.Errorf("%w: message %s has no sender address", mailbox.ErrMailboxCall, messageID)
	}

	return c.smtpSend(to, replySubject(env.Subject), env.MessageId, replyText)
}

// CreateDraft appends replyText to the drafts folder as an unsent reply
func (c *Client) CreateDraft(ctx context.Context, messageID, replyText string) error {
	env, err := c.fetchEnvelope(messageID)
	if err != nil {
		return err
	}

	literal := buildReplyMessage(c.opts.Username, firstAddress(env.From), replySubject(env.Subject), env.MessageId, replyText)

	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Logout()

	err = conn.Append(draftsFolder, []string{imap.DraftFlag}, time.Now(), strings.NewReader(literal))
	if err != nil {
		return wrapErr("append draft", err)
	}
	return nil
}

// Archive copies the message to the archive folder and removes it from
// the inbox
func (c *Client) Archive(ctx context.Context, messageID string) error {
	return c.withMessage(messageID, func(conn *client.Client, seqSet *imap.SeqSet) error {
		if err := conn.UidCopy(seqSet, archiveFolder); err != nil {
			return wrapErr("copy to archive", err)
		}
		return c.expunge(conn, seqSet)
	})
}

// Delete flags the message deleted and expunges it
func (c *Client) Delete(ctx context.Context, messageID string) error {
	return c.withMessage(messageID, func(conn *client.Client, seqSet *imap.SeqSet) error {
		return c.expunge(conn, seqSet)
	})
}

// MarkRead sets the seen flag on the message
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	return c.withMessage(messageID, func(conn *client.Client, seqSet *imap.SeqSet) error {
		op := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := conn.UidStore(seqSet, op, []interface{}{imap.SeenFlag}, nil); err != nil {
			return wrapErr("store seen flag", err)
		}
		return nil
	})
}

// dial opens and authenticates a fresh IMAP session
func (c *Client) dial() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.opts.Host, c.opts.Port)

	var conn *client.Client
	var err error
	if c.opts.UseSSL {
		conn, err = client.DialTLS(addr, nil)
	} else {
		conn, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", mailbox.ErrTransient, addr, err)
	}

	if err := conn.Login(c.opts.Username, c.opts.Password); err != nil {
		conn.Logout()
		return nil, wrapErr("login", err)
	}
	return conn, nil
}

// withMessage runs op against the message's UID inside a writable inbox
// session
func (c *Client) withMessage(messageID string, op func(*client.Client, *imap.SeqSet) error) error {
	uid, err := parseUID(messageID)
	if err != nil {
		return err
	}

	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Logout()

	if _, err := conn.Select(inboxFolder, false); err != nil {
		return wrapErr("select inbox", err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	return op(conn, seqSet)
}

// expunge flags the messages deleted and expunges the mailbox
func (c *Client) expunge(conn *client.Client, seqSet *imap.SeqSet) error {
	op := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := conn.UidStore(seqSet, op, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return wrapErr("store deleted flag", err)
	}
	if err := conn.Expunge(nil); err != nil {
		return wrapErr("expunge", err)
	}
	return nil
}

// fetchEnvelope retrieves just the envelope for a single UID
func (c *Client) fetchEnvelope(messageID string) (*imap.Envelope, error) {
	uid, err := parseUID(messageID)
	if err != nil {
		return nil, err
	}

	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Logout()

	if _, err := conn.Select(inboxFolder, true); err != nil {
		return nil, wrapErr("select inbox", err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- conn.UidFetch(seqSet, []imap.FetchItem{imap.FetchEnvelope}, messages)
	}()

	var env *imap.Envelope
	for msg := range messages {
		if msg.Envelope != nil {
			env = msg.Envelope
		}
	}
	if err := <-done; err != nil {
		return nil, wrapErr("fetch envelope", err)
	}
	if env == nil {
		return nil, fmt.Errorf("%w: uid %d", mailbox.ErrMessageNotFound, uid)
	}
	return env, nil
}

// readTextBody extracts the first text part from a raw message body
func readTextBody(r io.Reader) string {
	if r == nil {
		return ""
	}

	entity, err := gomessage.Read(r)
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return ""
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			mediaType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
			if mediaType == "text/plain" || mediaType == "" {
				data, _ := io.ReadAll(part.Body)
				return string(data)
			}
		}
		return ""
	}

	data, _ := io.ReadAll(entity.Body)
	return string(data)
}

func parseUID(messageID string) (uint32, error) {
	uid, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid message id %q", mailbox.ErrMailboxCall, messageID)
	}
	return uint32(uid), nil
}

func formatAddress(addrs []*imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	addr := addrs[0]
	email := addr.MailboxName + "@" + addr.HostName
	if addr.PersonalName != "" {
		return fmt.Sprintf("%s <%s>", addr.PersonalName, email)
	}
	return email
}

func firstAddress(addrs []*imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	return addrs[0].MailboxName + "@" + addrs[0].HostName
}

func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

func snippet(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if len(body) > snippetLength {
		return body[:snippetLength]
	}
	return body
}

// wrapErr classifies an IMAP failure. Connection-level problems are
// transient; the rest surface as plain mailbox call failures.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") ||
		errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %v", mailbox.ErrTransient, op, err)
	}
	return fmt.Errorf("%w: %s: %v", mailbox.ErrMailboxCall, op, err)
}
