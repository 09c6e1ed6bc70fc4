package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Sender delivers messages over SMTP, one connection per message.
type Sender struct {
	cfg  ServerConfig
	from string
	now  func() time.Time
}

// NewSender creates a Sender that authenticates as cfg.Username and uses
// it as the envelope sender.
func NewSender(cfg ServerConfig) *Sender {
	return &Sender{cfg: cfg, from: cfg.Username, now: time.Now}
}

// Send composes and transmits msg.
func (s *Sender) Send(ctx context.Context, msg Outgoing) error {
	if len(msg.To) == 0 {
		return &TransportError{Op: "send", Err: fmt.Errorf("no recipients")}
	}

	raw, err := composeMessage(s.from, msg, s.now())
	if err != nil {
		return &TransportError{Op: "compose", Err: err}
	}

	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(s.from, nil); err != nil {
		return &TransportError{Op: "send", Err: fmt.Errorf("SMTP MAIL FROM: %w", err)}
	}
	for _, rcpt := range uniqueRecipients(msg.To, msg.Cc, msg.Bcc) {
		if err := client.Rcpt(rcpt, nil); err != nil {
			return &TransportError{
				Op:  "send",
				Err: fmt.Errorf("SMTP RCPT TO %q: %w", rcpt, err),
			}
		}
	}

	writer, err := client.Data()
	if err != nil {
		return &TransportError{Op: "send", Err: fmt.Errorf("SMTP DATA: %w", err)}
	}
	if _, err := writer.Write(raw); err != nil {
		return &TransportError{Op: "send", Err: fmt.Errorf("writing email body: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return &TransportError{Op: "send", Err: fmt.Errorf("closing email body: %w", err)}
	}

	if err := client.Quit(); err != nil {
		return &TransportError{Op: "send", Err: fmt.Errorf("SMTP QUIT: %w", err)}
	}
	return nil
}

// connect dials with implicit TLS or STARTTLS and authenticates with PLAIN.
func (s *Sender) connect(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	tlsConfig := &tls.Config{ServerName: s.cfg.Host}
	netDialer := &net.Dialer{Timeout: dialTimeout}

	var client *smtp.Client
	if s.cfg.TLS {
		dialer := &tls.Dialer{NetDialer: netDialer, Config: tlsConfig}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, &TransportError{Op: "connect", Err: fmt.Errorf("TLS dial to %s: %w", addr, err)}
		}
		client = smtp.NewClient(conn)
	} else {
		conn, err := netDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, &TransportError{Op: "connect", Err: fmt.Errorf("dial to %s: %w", addr, err)}
		}
		client, err = smtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			conn.Close()
			return nil, &TransportError{Op: "connect", Err: fmt.Errorf("SMTP STARTTLS: %w", err)}
		}
	}

	auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, &TransportError{Op: "login", Err: &AuthError{
			Server:  addr,
			Message: fmt.Sprintf("SMTP auth failed for %s: %v", s.cfg.Username, err),
		}}
	}

	return client, nil
}

// composeMessage renders a single-part text/plain message. Bcc recipients
// are never written to the headers.
func composeMessage(from string, msg Outgoing, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", toAddresses(msg.To))
	if len(msg.Cc) > 0 {
		h.SetAddressList("Cc", toAddresses(msg.Cc))
	}
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating Message-ID: %w", err)
	}
	if msg.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{msg.InReplyTo})
		h.SetMsgIDList("References", []string{msg.InReplyTo})
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}

	return buf.Bytes(), nil
}

func toAddresses(list []string) []*mail.Address {
	out := make([]*mail.Address, 0, len(list))
	for _, a := range list {
		out = append(out, &mail.Address{Address: ExtractAddress(a)})
	}
	return out
}

func uniqueRecipients(groups ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range groups {
		for _, raw := range group {
			addr := ExtractAddress(raw)
			if addr == "" || seen[addr] {
				continue
			}
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out
}
