package mail

import (
	"context"
	"fmt"
	"mime"
	"slices"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/charset"

	"github.com/nhle/inbox-triage/internal/model"
)

// IMAPClient queries one mailbox. Every method returns a *TransportError
// on failure.
type IMAPClient struct {
	session session
}

// NewIMAPClient creates a client. When pooled is false a new connection
// is opened and closed around every call.
func NewIMAPClient(cfg ServerConfig, mailbox string, pooled bool) *IMAPClient {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	dial := imapDialer(cfg, mailbox)

	var s session = &perCallSession{dial: dial}
	if pooled {
		s = &pooledSession{dial: dial}
	}
	return &IMAPClient{session: s}
}

// Close releases a pooled connection, if any.
func (c *IMAPClient) Close() error {
	return c.session.Close()
}

var unseenCriteria = &imap.SearchCriteria{
	NotFlag: []imap.Flag{imap.FlagSeen},
}

// FetchUnread returns at most limit unread messages, most recent first.
// Bodies are fetched with PEEK so the \Seen flag is left alone.
func (c *IMAPClient) FetchUnread(
	ctx context.Context, limit int,
) ([]model.Message, error) {
	var messages []model.Message

	err := c.session.withClient(ctx, func(client *imapclient.Client) error {
		searchData, err := client.UIDSearch(unseenCriteria, nil).Wait()
		if err != nil {
			return fmt.Errorf("searching unseen messages: %w", err)
		}

		uids := searchData.AllUIDs()
		if len(uids) == 0 {
			return nil
		}

		// Take the most recent UIDs.
		if limit > 0 && len(uids) > limit {
			uids = uids[len(uids)-limit:]
		}

		bodySection := &imap.FetchItemBodySection{Peek: true}
		fetchOpts := &imap.FetchOptions{
			Envelope:    true,
			UID:         true,
			BodySection: []*imap.FetchItemBodySection{bodySection},
		}

		bufs, err := client.Fetch(imap.UIDSetNum(uids...), fetchOpts).Collect()
		if err != nil {
			return fmt.Errorf("fetching messages: %w", err)
		}

		slices.SortFunc(bufs, func(a, b *imapclient.FetchMessageBuffer) int {
			switch {
			case a.UID > b.UID:
				return -1
			case a.UID < b.UID:
				return 1
			default:
				return 0
			}
		})

		messages = make([]model.Message, 0, len(bufs))
		for _, buf := range bufs {
			messages = append(
				messages, messageFromBuffer(buf, buf.FindBodySection(bodySection)),
			)
		}
		return nil
	})
	if err != nil {
		return nil, wrapOp("fetch", err)
	}

	return messages, nil
}

// CountUnread returns the number of unread messages without fetching any
// message data.
func (c *IMAPClient) CountUnread(ctx context.Context) (int, error) {
	count := 0
	err := c.session.withClient(ctx, func(client *imapclient.Client) error {
		searchData, err := client.UIDSearch(unseenCriteria, nil).Wait()
		if err != nil {
			return fmt.Errorf("counting unseen messages: %w", err)
		}
		count = len(searchData.AllUIDs())
		return nil
	})
	if err != nil {
		return 0, wrapOp("count", err)
	}
	return count, nil
}

// MarkRead adds \Seen to the message. Marking an already-read message
// succeeds.
func (c *IMAPClient) MarkRead(ctx context.Context, id string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}

	err = c.session.withClient(ctx, func(client *imapclient.Client) error {
		storeCmd := client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen},
		}, nil)
		if err := storeCmd.Close(); err != nil {
			return fmt.Errorf("storing \\Seen on UID %d: %w", uid, err)
		}
		return nil
	})
	return wrapOp("mark_read", err)
}

// messageFromBuffer maps fetched data to a model.Message.
func messageFromBuffer(buf *imapclient.FetchMessageBuffer, raw []byte) model.Message {
	msg := model.Message{
		ID: strconv.FormatUint(uint64(buf.UID), 10),
	}

	if env := buf.Envelope; env != nil {
		msg.Subject = decodeHeader(env.Subject)
		msg.Date = env.Date
		msg.MessageID = env.MessageID
		if len(env.From) > 0 {
			msg.Sender = formatAddress(env.From[0])
		}
	}

	if raw != nil {
		msg.Body = extractBody(raw)
	}

	return msg
}

func formatAddress(addr imap.Address) string {
	name := decodeHeader(addr.Name)
	if name == "" {
		return addr.Addr()
	}
	return fmt.Sprintf("%s <%s>", name, addr.Addr())
}

// headerDecoder is shared with the IMAP client so envelope fields and
// display names decode legacy charsets the same way.
var headerDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// decodeHeader decodes RFC 2047 encoded-words in a header value.
func decodeHeader(s string) string {
	decoded, err := headerDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// parseUID converts a message id to an IMAP UID.
func parseUID(id string) (imap.UID, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil || uid == 0 {
		return 0, &TransportError{
			Op:  "parse_id",
			Err: fmt.Errorf("invalid message id %q", id),
		}
	}
	return imap.UID(uid), nil
}
