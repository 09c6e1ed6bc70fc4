package mail

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/emersion/go-imap/v2/imapclient"
)

// session hands out an authenticated client with the mailbox selected.
// Implementations decide whether the connection outlives the call.
type session interface {
	withClient(ctx context.Context, fn func(*imapclient.Client) error) error
	Close() error
}

type dialFunc func(ctx context.Context) (*imapclient.Client, error)

// perCallSession opens a fresh connection for every operation and logs
// out afterwards, on success and failure alike.
type perCallSession struct {
	dial dialFunc
}

func (s *perCallSession) withClient(
	ctx context.Context, fn func(*imapclient.Client) error,
) error {
	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	return fn(client)
}

func (s *perCallSession) Close() error { return nil }

// pooledSession keeps one connection and serializes access to it. Any
// error drops the connection; a reused connection that fails is retried
// once on a fresh one.
type pooledSession struct {
	dial dialFunc

	mu     sync.Mutex
	client *imapclient.Client
}

func (s *pooledSession) withClient(
	ctx context.Context, fn func(*imapclient.Client) error,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reused := s.client != nil
	if err := s.ensure(ctx); err != nil {
		return err
	}

	err := fn(s.client)
	if err == nil {
		return nil
	}
	s.drop()

	if !reused || IsAuthError(err) {
		return err
	}
	if err := s.ensure(ctx); err != nil {
		return err
	}
	if err := fn(s.client); err != nil {
		s.drop()
		return err
	}
	return nil
}

func (s *pooledSession) ensure(ctx context.Context) error {
	if s.client != nil {
		return nil
	}
	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	s.client = client
	return nil
}

func (s *pooledSession) drop() {
	if s.client == nil {
		return
	}
	_ = s.client.Close()
	s.client = nil
}

func (s *pooledSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Logout().Wait()
	_ = s.client.Close()
	s.client = nil
	return err
}

// imapDialer returns a dialFunc that connects, authenticates and selects
// mailbox.
func imapDialer(cfg ServerConfig, mailbox string) dialFunc {
	return func(ctx context.Context) (*imapclient.Client, error) {
		addr := net.JoinHostPort(cfg.Host, cfg.Port)
		opts := &imapclient.Options{WordDecoder: headerDecoder}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var client *imapclient.Client
		var err error
		if cfg.TLS {
			client, err = imapclient.DialTLS(addr, opts)
		} else {
			client, err = imapclient.DialStartTLS(addr, opts)
		}
		if err != nil {
			return nil, &TransportError{
				Op:  "connect",
				Err: fmt.Errorf("connecting to IMAP %s: %w", addr, err),
			}
		}

		return openMailbox(client, cfg, mailbox)
	}
}

// openMailbox logs in and selects mailbox on a fresh connection. The
// connection is logged out on failure.
func openMailbox(client *imapclient.Client, cfg ServerConfig, mailbox string) (*imapclient.Client, error) {
	addr := net.JoinHostPort(cfg.Host, cfg.Port)

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &TransportError{Op: "login", Err: &AuthError{
			Server: addr,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v", cfg.Username, err,
			),
		}}
	}

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &TransportError{
			Op:  "select",
			Err: fmt.Errorf("selecting %s: %w", mailbox, err),
		}
	}

	return client, nil
}
