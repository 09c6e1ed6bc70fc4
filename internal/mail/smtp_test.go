package mail

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardSession struct{}

func (discardSession) Reset() {}
func (discardSession) Logout() error { return nil }
func (discardSession) Mail(string, *smtp.MailOptions) error { return nil }
func (discardSession) Rcpt(string, *smtp.RcptOptions) error { return nil }

func (discardSession) Data(r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

// startPlainSMTPServer serves SMTP without TLS, so STARTTLS is never
// advertised.
func startPlainSMTPServer(t *testing.T) ServerConfig {
	t.Helper()

	srv := smtp.NewServer(smtp.BackendFunc(func(*smtp.Conn) (smtp.Session, error) {
		return discardSession{}, nil
	}))
	srv.Domain = "localhost"

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return ServerConfig{Host: host, Port: port, Username: "agent@example.com", Password: "secret"}
}

func TestSenderRequiresSTARTTLS(t *testing.T) {
	cfg := startPlainSMTPServer(t)

	err := NewSender(cfg).Send(context.Background(), Outgoing{
		To:      []string{"alice@example.com"},
		Subject: "Hi",
		Body:    "Hello",
	})
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "connect", te.Op)
	assert.Contains(t, err.Error(), "STARTTLS")
	assert.False(t, IsAuthError(err))
}
