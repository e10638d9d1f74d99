package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/sirupsen/logrus"

	"mail-triage-go/internal/config"
)

// GmailFetcher implements Fetcher using the Gmail API
type GmailFetcher struct {
	service *gmail.Service
}

// GmailForwarder implements Forwarder using the Gmail API
type GmailForwarder struct {
	service *gmail.Service
}

func newGmailService(cfg *config.MailConfig, scopes ...string) (*gmail.Service, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return service, nil
}

// NewGmailFetcher creates a new Gmail API fetcher
func NewGmailFetcher(cfg *config.MailConfig) (*GmailFetcher, error) {
	service, err := newGmailService(cfg, gmail.GmailModifyScope)
	if err != nil {
		return nil, err
	}
	return &GmailFetcher{service: service}, nil
}

// NewGmailForwarder creates a new Gmail API forwarder
func NewGmailForwarder(cfg *config.MailConfig) (*GmailForwarder, error) {
	service, err := newGmailService(cfg, gmail.GmailSendScope)
	if err != nil {
		return nil, err
	}
	return &GmailForwarder{service: service}, nil
}

// FetchUnread fetches all unread messages for the account
func (f *GmailFetcher) FetchUnread(ctx context.Context, account string) ([]InboundMessage, error) {
	call := f.service.Users.Messages.List(account).Q("is:unread").Context(ctx)
	response, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var messages []InboundMessage
	for _, ref := range response.Messages {
		full, err := f.service.Users.Messages.Get(account, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			logrus.Warnf("Failed to get message %s: %v", ref.Id, err)
			continue
		}

		msg, err := parseGmailMessage(full)
		if err != nil {
			logrus.Warnf("Failed to parse message %s: %v", ref.Id, err)
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// MarkRead removes the UNREAD label from the message
func (f *GmailFetcher) MarkRead(ctx context.Context, account, messageID string) error {
	req := &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}
	if _, err := f.service.Users.Messages.Modify(account, messageID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to mark message %s as read: %w", messageID, err)
	}
	return nil
}

// Close closes the Gmail API fetcher
func (f *GmailFetcher) Close() error {
	// Gmail API service doesn't need explicit closing
	return nil
}

// parseGmailMessage parses a Gmail API message into an InboundMessage
func parseGmailMessage(msg *gmail.Message) (InboundMessage, error) {
	m := InboundMessage{
		ID:         msg.Id,
		ReceivedAt: time.UnixMilli(msg.InternalDate),
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			m.Subject = header.Value
		case "From":
			m.From = extractAddress(header.Value)
		case "To":
			m.To = splitAddresses(header.Value)
		case "Cc":
			m.CC = splitAddresses(header.Value)
		case "Message-ID", "Message-Id":
			m.ThreadID = strings.Trim(header.Value, "<> ")
		}
	}

	if err := parseGmailBody(msg.Payload, &m); err != nil {
		return m, err
	}
	return m, nil
}

// parseGmailBody recursively parses Gmail message body parts
func parseGmailBody(part *gmail.MessagePart, msg *InboundMessage) error {
	if part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return fmt.Errorf("failed to decode body data: %w", err)
		}

		switch part.MimeType {
		case "text/plain":
			msg.Body = string(data)
		case "text/html":
			msg.HTMLBody = string(data)
		}
	}

	for _, sub := range part.Parts {
		if err := parseGmailBody(sub, msg); err != nil {
			return err
		}
	}
	return nil
}

func extractAddress(value string) string {
	value = strings.TrimSpace(value)
	if start := strings.LastIndex(value, "<"); start >= 0 {
		if end := strings.Index(value[start:], ">"); end > 0 {
			return value[start+1 : start+end]
		}
	}
	return value
}

func splitAddresses(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if addr := extractAddress(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// Forward re-sends the message to the destination address, cc'ing nobody
// and preserving the original headers as references
func (f *GmailForwarder) Forward(ctx context.Context, account string, msg InboundMessage, to, note string) error {
	raw := buildForwardMIME(account, msg, to, note)

	message := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}

	if _, err := f.service.Users.Messages.Send(account, message).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to forward message %s to %s: %w", msg.ID, to, err)
	}

	logrus.Infof("Forwarded message %s to %s", msg.ID, to)
	return nil
}

// Reply sends an acknowledgment back to the original sender
func (f *GmailForwarder) Reply(ctx context.Context, account string, msg InboundMessage, subject, body string) error {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", account))
	b.WriteString(fmt.Sprintf("To: %s\r\n", msg.From))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	b.WriteString(fmt.Sprintf("In-Reply-To: <%s>\r\n", msg.ThreadID))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)

	message := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(b.String())),
	}

	if _, err := f.service.Users.Messages.Send(account, message).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to send reply for message %s: %w", msg.ID, err)
	}
	return nil
}

// Close closes the forwarder (no-op for Gmail API)
func (f *GmailForwarder) Close() error {
	return nil
}

// buildForwardMIME assembles the raw forwarded email
func buildForwardMIME(account string, msg InboundMessage, to, note string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("From: %s\r\n", account))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	if msg.From != "" {
		b.WriteString(fmt.Sprintf("Cc: %s\r\n", msg.From))
	}
	b.WriteString(fmt.Sprintf("Subject: Fwd: %s\r\n", msg.Subject))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString(fmt.Sprintf("X-Original-From: %s\r\n", msg.From))
	b.WriteString(fmt.Sprintf("X-Original-To: %s\r\n", strings.Join(msg.To, ", ")))
	b.WriteString(fmt.Sprintf("X-Original-Message-ID: <%s>\r\n", msg.ThreadID))
	b.WriteString("\r\n")

	if note != "" {
		b.WriteString(note + "\r\n\r\n")
	}
	b.WriteString("---------- Forwarded message ----------\r\n")
	b.WriteString(fmt.Sprintf("From: %s\r\n", msg.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", msg.ReceivedAt.Format(time.RFC1123Z)))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString("\r\n")

	if msg.Body != "" {
		b.WriteString(msg.Body)
	} else {
		b.WriteString("[No text content available]\r\n")
	}

	return b.String()
}
