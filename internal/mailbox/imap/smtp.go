package imap

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
)

const smtpTimeout = 10 * time.Second

// loginAuth implements smtp.Auth for LOGIN authentication.
// Required for QQ Mail, 163 Mail and other providers that reject PLAIN.
type loginAuth struct {
	username, password string
}

func newLoginAuth(username, password string) smtp.Auth {
	return &loginAuth{username, password}
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", []byte{}, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		switch string(fromServer) {
		case "Username:", "username:":
			return []byte(a.username), nil
		case "Password:", "password:":
			return []byte(a.password), nil
		default:
			return nil, errors.New("unknown LOGIN challenge: " + string(fromServer))
		}
	}
	return nil, nil
}

// smtpSend delivers a reply over SMTP. PLAIN auth is tried first with a
// LOGIN fallback, matching what most providers accept.
func (c *Client) smtpSend(to, subject, inReplyTo, body string) error {
	addr := fmt.Sprintf("%s:%d", c.opts.SMTPHost, c.opts.SMTPPort)

	client, err := c.smtpDial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	auth := smtp.PlainAuth("", c.opts.Username, c.opts.Password, c.opts.SMTPHost)
	if err := client.Auth(auth); err != nil {
		if err2 := client.Auth(newLoginAuth(c.opts.Username, c.opts.Password)); err2 != nil {
			return fmt.Errorf("%w: authentication failed (tried PLAIN and LOGIN): %v", mailbox.ErrMailboxCall, err)
		}
	}

	if err := client.Mail(c.opts.Username); err != nil {
		return wrapErr("smtp mail", err)
	}
	if err := client.Rcpt(to); err != nil {
		return wrapErr("smtp rcpt", err)
	}

	w, err := client.Data()
	if err != nil {
		return wrapErr("smtp data", err)
	}
	msg := buildReplyMessage(c.opts.Username, to, subject, inReplyTo, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		w.Close()
		return wrapErr("smtp write", err)
	}
	if err := w.Close(); err != nil {
		return wrapErr("smtp close", err)
	}

	// Some servers return an odd response on QUIT; delivery already
	// succeeded at this point.
	client.Quit()
	return nil
}

// smtpDial connects on port 465 with implicit TLS, otherwise plain with
// opportunistic STARTTLS
func (c *Client) smtpDial(addr string) (*smtp.Client, error) {
	tlsConfig := &tls.Config{ServerName: c.opts.SMTPHost}

	if c.opts.SMTPPort == 465 {
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: smtpTimeout}, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: smtp dial %s: %v", mailbox.ErrTransient, addr, err)
		}
		client, err := smtp.NewClient(conn, c.opts.SMTPHost)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: smtp handshake: %v", mailbox.ErrTransient, err)
		}
		return client, nil
	}

	client, err := smtp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: smtp dial %s: %v", mailbox.ErrTransient, addr, err)
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(tlsConfig); err != nil {
			// Continue without TLS if STARTTLS fails
		}
	}
	return client, nil
}

// buildReplyMessage assembles an RFC 5322 reply literal
func buildReplyMessage(from, to, subject, inReplyTo, body string) string {
	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + subject + "\r\n")
	if inReplyTo != "" {
		sb.WriteString("In-Reply-To: " + inReplyTo + "\r\n")
		sb.WriteString("References: " + inReplyTo + "\r\n")
	}
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")
	return sb.String()
}
