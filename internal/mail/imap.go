package mail

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	"github.com/sirupsen/logrus"

	"mail-triage-go/internal/config"
)

// IMAPFetcher implements Fetcher over IMAP. Message IDs are the mailbox
// UIDs of the selected INBOX.
type IMAPFetcher struct {
	client *client.Client
}

// NewIMAPFetcher connects and authenticates to the IMAP server
func NewIMAPFetcher(cfg *config.MailConfig) (*IMAPFetcher, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(cfg.IMAPUser, cfg.IMAPPassword); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	return &IMAPFetcher{client: c}, nil
}

// FetchUnread fetches all unseen messages in INBOX
func (f *IMAPFetcher) FetchUnread(ctx context.Context, account string) ([]InboundMessage, error) {
	if _, err := f.client.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := f.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- f.client.UidFetch(seqset, items, messages)
	}()

	var out []InboundMessage
	for msg := range messages {
		m, err := parseIMAPMessage(msg, section)
		if err != nil {
			logrus.Warnf("Failed to parse IMAP message %d: %v", msg.Uid, err)
			continue
		}
		out = append(out, m)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return out, nil
}

// MarkRead sets the \Seen flag on the message
func (f *IMAPFetcher) MarkRead(ctx context.Context, account, messageID string) error {
	uid, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid IMAP message id %q: %w", messageID, err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := f.client.UidStore(seqset, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark message %s as read: %w", messageID, err)
	}
	return nil
}

// Close logs out of the IMAP session
func (f *IMAPFetcher) Close() error {
	return f.client.Logout()
}

// parseIMAPMessage parses an IMAP message into an InboundMessage
func parseIMAPMessage(msg *imap.Message, section *imap.BodySectionName) (InboundMessage, error) {
	m := InboundMessage{
		ID: strconv.FormatUint(uint64(msg.Uid), 10),
	}

	if msg.Envelope != nil {
		m.Subject = msg.Envelope.Subject
		m.ThreadID = strings.Trim(msg.Envelope.MessageId, "<> ")
		m.ReceivedAt = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 {
			m.From = msg.Envelope.From[0].Address()
		}
		for _, addr := range msg.Envelope.To {
			m.To = append(m.To, addr.Address())
		}
		for _, addr := range msg.Envelope.Cc {
			m.CC = append(m.CC, addr.Address())
		}
	}

	if err := parseIMAPBody(msg, section, &m); err != nil {
		return m, err
	}
	return m, nil
}

// parseIMAPBody reads the message body, handling multipart entities
func parseIMAPBody(msg *imap.Message, section *imap.BodySectionName, out *InboundMessage) error {
	r := msg.GetBody(section)
	if r == nil {
		return nil
	}

	entity, err := message.Read(r)
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to read part: %w", err)
			}

			content, err := io.ReadAll(p.Body)
			if err != nil {
				return fmt.Errorf("failed to read part body: %w", err)
			}

			contentType := p.Header.Get("Content-Type")
			if strings.Contains(contentType, "text/plain") {
				out.Body = string(content)
			} else if strings.Contains(contentType, "text/html") {
				out.HTMLBody = string(content)
			}
		}
		return nil
	}

	content, err := io.ReadAll(entity.Body)
	if err != nil {
		return fmt.Errorf("failed to read message body: %w", err)
	}

	contentType := entity.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") {
		out.HTMLBody = string(content)
	} else {
		out.Body = string(content)
	}
	return nil
}
