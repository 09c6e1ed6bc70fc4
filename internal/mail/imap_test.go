package mail

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox-triage/internal/logging"
)

const (
	testUser     = "agent@example.com"
	testPassword = "secret"
)

// startIMAPServer serves an in-memory INBOX holding n unread messages
// with UIDs 1..n.
func startIMAPServer(t *testing.T, n int) ServerConfig {
	t.Helper()

	user := imapmemserver.NewUser(testUser, testPassword)
	require.NoError(t, user.Create("INBOX", nil))
	for i := 1; i <= n; i++ {
		raw := fmt.Sprintf("From: Sender %d <sender%d@example.com>\r\n"+
			"Subject: Subject %d\r\n"+
			"Message-Id: <msg-%d@example.com>\r\n"+
			"Date: Sun, 01 Mar 2026 09:0%d:00 +0000\r\n"+
			"Content-Type: text/plain; charset=utf-8\r\n"+
			"\r\n"+
			"Body %d\r\n", i, i, i, i, i%10, i)
		_, err := user.Append("INBOX", bytes.NewReader([]byte(raw)), &imap.AppendOptions{})
		require.NoError(t, err)
	}

	mem := imapmemserver.New()
	mem.AddUser(user)

	srv := imapserver.New(&imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return mem.NewSession(), nil, nil
		},
		Caps:         imap.CapSet{imap.CapIMAP4rev1: {}},
		InsecureAuth: true,
		Logger:       logging.Discard(),
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return ServerConfig{Host: host, Port: port, Username: testUser, Password: testPassword}
}

// plainDialer is imapDialer without TLS.
func plainDialer(cfg ServerConfig, dials *int) dialFunc {
	return func(ctx context.Context) (*imapclient.Client, error) {
		*dials++
		client, err := imapclient.DialInsecure(net.JoinHostPort(cfg.Host, cfg.Port), &imapclient.Options{
			WordDecoder: headerDecoder,
		})
		if err != nil {
			return nil, &TransportError{Op: "connect", Err: err}
		}
		return openMailbox(client, cfg, "INBOX")
	}
}

func TestIMAPClientFetchNewestFirstWithLimit(t *testing.T) {
	cfg := startIMAPServer(t, 5)
	var dials int
	c := &IMAPClient{session: &perCallSession{dial: plainDialer(cfg, &dials)}}
	ctx := context.Background()

	msgs, err := c.FetchUnread(ctx, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"5", "4", "3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})

	first := msgs[0]
	assert.Equal(t, "Subject 5", first.Subject)
	assert.Equal(t, "Sender 5 <sender5@example.com>", first.Sender)
	assert.Equal(t, "msg-5@example.com", first.MessageID)
	assert.Equal(t, "Body 5", first.Body)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC), first.Date.UTC())

	n, err := c.CountUnread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n, "fetching peeks and leaves messages unread")
}

func TestIMAPClientMarkReadIsIdempotent(t *testing.T) {
	cfg := startIMAPServer(t, 5)
	var dials int
	c := &IMAPClient{session: &perCallSession{dial: plainDialer(cfg, &dials)}}
	ctx := context.Background()

	require.NoError(t, c.MarkRead(ctx, "5"))
	require.NoError(t, c.MarkRead(ctx, "5"))

	n, err := c.CountUnread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	msgs, err := c.FetchUnread(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "4", msgs[0].ID)
	assert.Equal(t, 4, dials, "per-call sessions dial once per operation")
}

func TestMailboxOverIMAPServer(t *testing.T) {
	cfg := startIMAPServer(t, 2)
	var dials int
	reader := &IMAPClient{session: &perCallSession{dial: plainDialer(cfg, &dials)}}
	mb := NewMailbox(reader, NewSender(cfg), logging.Discard())
	ctx := context.Background()

	assert.True(t, mb.MarkRead(ctx, "1"))
	assert.True(t, mb.MarkRead(ctx, "1"))

	n, ok := mb.CountUnread(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestPooledSessionRedialsAfterBrokenConnection(t *testing.T) {
	cfg := startIMAPServer(t, 3)
	var dials int
	pool := &pooledSession{dial: plainDialer(cfg, &dials)}
	c := &IMAPClient{session: pool}
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	n, err := c.CountUnread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = c.CountUnread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, dials, "pooled session reuses its connection")

	require.NoError(t, pool.client.Close())

	msgs, err := c.FetchUnread(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Equal(t, 2, dials)
}

func TestOpenMailboxRejectsBadPassword(t *testing.T) {
	cfg := startIMAPServer(t, 1)
	cfg.Password = "wrong"
	var dials int
	c := &IMAPClient{session: &perCallSession{dial: plainDialer(cfg, &dials)}}

	_, err := c.CountUnread(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}
