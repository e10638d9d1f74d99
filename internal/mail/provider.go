package mail

import (
	"context"
	"fmt"
)

// Fetcher reads unread messages from a mailbox and flips their read state.
type Fetcher interface {
	FetchUnread(ctx context.Context, account string) ([]InboundMessage, error)
	MarkRead(ctx context.Context, account, messageID string) error
	Close() error
}

// Forwarder delivers messages onward and sends acknowledgment replies.
type Forwarder interface {
	Forward(ctx context.Context, account string, msg InboundMessage, to, note string) error
	Reply(ctx context.Context, account string, msg InboundMessage, subject, body string) error
	Close() error
}

// Provider bundles one Fetcher and one Forwarder behind the single
// collaborator surface the pipeline consumes. Fetching may go over IMAP
// while forwarding stays on the Gmail API.
type Provider struct {
	Fetcher
	fw Forwarder
}

// NewProvider creates a provider from its two halves.
func NewProvider(f Fetcher, fw Forwarder) *Provider {
	return &Provider{Fetcher: f, fw: fw}
}

// Forward delivers msg to the given destination.
func (p *Provider) Forward(ctx context.Context, account string, msg InboundMessage, to, note string) error {
	return p.fw.Forward(ctx, account, msg, to, note)
}

// Reply sends an acknowledgment back to the message sender.
func (p *Provider) Reply(ctx context.Context, account string, msg InboundMessage, subject, body string) error {
	return p.fw.Reply(ctx, account, msg, subject, body)
}

// Close releases both halves.
func (p *Provider) Close() error {
	ferr := p.Fetcher.Close()
	werr := p.fw.Close()
	if ferr != nil {
		return ferr
	}
	if werr != nil {
		return fmt.Errorf("close forwarder: %w", werr)
	}
	return nil
}
