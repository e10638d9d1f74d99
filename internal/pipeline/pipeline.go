// Package pipeline drives one message from unread to a terminal audit
// record: duplicate guard, classification, business-rule resolution,
// routing, forwarding and read-state bookkeeping.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mail-triage-go/internal/classifier"
	"mail-triage-go/internal/config"
	"mail-triage-go/internal/mail"
	"mail-triage-go/internal/metrics"
	"mail-triage-go/internal/routing"
	"mail-triage-go/internal/store"
	"mail-triage-go/internal/triage"
)

// MailProvider is the mailbox collaborator surface the pipeline consumes.
type MailProvider interface {
	Forward(ctx context.Context, account string, msg mail.InboundMessage, to, note string) error
	MarkRead(ctx context.Context, account, messageID string) error
	Reply(ctx context.Context, account string, msg mail.InboundMessage, subject, body string) error
}

// Classifier produces the merged three-stage classification draft.
type Classifier interface {
	Classify(ctx context.Context, text string) (*classifier.ClassificationDraft, error)
}

// LogStore is the durable record of terminal outcomes and the duplicate
// suppression index.
type LogStore interface {
	Exists(ctx context.Context, threadID string) (bool, error)
	InsertProcessingRecord(ctx context.Context, record *store.ProcessingRecord) error
	InsertSkipRecord(ctx context.Context, record *store.SkipRecord) error
}

// Processor owns the per-message state machine. It is safe for concurrent
// use; the retry set is its only shared mutable state.
type Processor struct {
	provider   MailProvider
	classifier Classifier
	resolver   *triage.Resolver
	table      *routing.Table
	store      LogStore
	retries    *RetrySet
	metrics    *metrics.Metrics

	maxTextLen  int
	maxAttempts int
	backoffBase time.Duration
	autoRespond bool
}

// NewProcessor wires the pipeline from its collaborators.
func NewProcessor(provider MailProvider, cls Classifier, resolver *triage.Resolver,
	table *routing.Table, logStore LogStore, retries *RetrySet, m *metrics.Metrics,
	cfg *config.Config) *Processor {
	return &Processor{
		provider:    provider,
		classifier:  cls,
		resolver:    resolver,
		table:       table,
		store:       logStore,
		retries:     retries,
		metrics:     m,
		maxTextLen:  cfg.Triage.MaxTextLen,
		maxAttempts: cfg.Delivery.MaxAttempts,
		backoffBase: cfg.Delivery.BackoffBase,
		autoRespond: cfg.Triage.AutoRespond,
	}
}

// Process runs one message to a terminal state. A failure in one message
// never propagates to its batch siblings: panics are contained here.
func (p *Processor) Process(ctx context.Context, account string, msg mail.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Recovered from panic processing message %s: %v", msg.ID, r)
			p.writeSkip(ctx, account, msg, store.SkipError, fmt.Sprintf("panic: %v", r))
		}
	}()

	start := time.Now()
	log := logrus.WithFields(logrus.Fields{
		"account": account,
		"message": msg.ID,
		"thread":  msg.ThreadID,
		"subject": msg.Subject,
	})

	if msg.IsMalformed() {
		log.Warn("Skipping malformed message")
		p.markReadQuietly(ctx, account, msg.ID)
		p.writeSkip(ctx, account, msg, store.SkipMalformed, "missing thread id or empty content")
		return
	}

	if msg.IsSystemSender() {
		log.Infof("Skipping system sender %s", msg.From)
		p.markReadQuietly(ctx, account, msg.ID)
		p.writeSkip(ctx, account, msg, store.SkipSystemAddress, "sender is a system address")
		return
	}

	// Duplicate guard: consult history before any paid call or side
	// effect. A failed lookup fails open.
	duplicate, err := p.store.Exists(ctx, msg.ThreadID)
	if err != nil {
		log.Warnf("Duplicate lookup failed, treating as new: %v", err)
	}
	if duplicate {
		log.Info("Thread already processed, skipping")
		p.markReadQuietly(ctx, account, msg.ID)
		p.writeSkip(ctx, account, msg, store.SkipDuplicate, "thread already has a processing record")
		return
	}

	record := p.newRecord(account, msg, start)

	text := msg.TriageText(p.maxTextLen)
	draft, err := p.classifier.Classify(ctx, text)
	if err != nil {
		log.Errorf("Classification failed, falling back to original destination: %v", err)
		p.metrics.ClassificationFailures.Inc()
		p.deliverFallback(ctx, account, msg, record, err)
		p.finish(ctx, record, start)
		return
	}

	final := p.resolver.Resolve(text, draft)
	decision := p.table.Resolve(final, msg.OriginalDestination())

	record.StsClass = store.StatusSuccess
	record.Category = draft.FinalCategory
	record.Reason = draft.Reason
	record.ActionRequired = draft.ActionRequired
	record.Sentiment = draft.Sentiment
	record.CostUSD = draft.CostUSD
	record.Region = draft.Region()
	record.RoutedTo = decision.Destination
	record.Intervention = decision.Intervention
	p.metrics.ClassificationCostUSD.Add(draft.CostUSD)
	if !decision.Intervention {
		p.metrics.FallbackRoutes.Inc()
	}

	if err := p.forward(ctx, account, msg, decision.Destination, "AI Forwarded message"); err != nil {
		// The message stays unread for manual handling. Nothing was
		// delivered, so there is no forwarded copy to reconcile.
		log.Errorf("Forward to %s failed after retries: %v", decision.Destination, err)
		p.metrics.ForwardFailures.Inc()
		record.StsRouting = store.StatusError
		record.StsRead = store.StatusError
		p.finish(ctx, record, start)
		return
	}
	record.StsRouting = store.StatusSuccess
	p.metrics.ForwardSuccesses.Inc()

	record.AutoResponse = p.sendAutoResponse(ctx, account, msg, decision)

	record.StsRead = store.StatusSuccess
	if err := p.markRead(ctx, account, msg.ID); err != nil {
		// Forward already succeeded: never re-forward, only retry the
		// read-state correction via the sweep.
		log.Warnf("Mark-read failed after retries, queueing for sweep: %v", err)
		record.StsRead = store.StatusError
		p.retries.Insert(RetryEntry{Account: account, MessageID: msg.ID})
		p.metrics.RetryQueueSize.Set(float64(p.retries.Len()))
	}

	p.finish(ctx, record, start)
	log.Infof("Processed message: category=%q routed_to=%s intervention=%t",
		record.Category, record.RoutedTo, record.Intervention)
}

// deliverFallback handles the classification-failure path: forward to the
// original destination, mark read, and record the classify error.
func (p *Processor) deliverFallback(ctx context.Context, account string, msg mail.InboundMessage,
	record *store.ProcessingRecord, classErr error) {
	record.StsClass = store.StatusError
	record.Category = "error"
	record.Reason = "error: " + classErr.Error()
	record.RoutedTo = msg.OriginalDestination()
	p.metrics.FallbackRoutes.Inc()

	if err := p.forward(ctx, account, msg, msg.OriginalDestination(),
		"AI Forwarded message by default due to classification error"); err != nil {
		logrus.Errorf("Fallback forward for message %s failed: %v", msg.ID, err)
		p.metrics.ForwardFailures.Inc()
		record.StsRouting = store.StatusError
		record.StsRead = store.StatusError
		return
	}
	record.StsRouting = store.StatusSuccess
	p.metrics.ForwardSuccesses.Inc()

	record.StsRead = store.StatusSuccess
	if err := p.markRead(ctx, account, msg.ID); err != nil {
		record.StsRead = store.StatusError
		p.retries.Insert(RetryEntry{Account: account, MessageID: msg.ID})
		p.metrics.RetryQueueSize.Set(float64(p.retries.Len()))
	}
}

// RetrySweep re-attempts mark-read for messages that were forwarded but
// left unread. Entries that still fail go back into the set.
func (p *Processor) RetrySweep(ctx context.Context) {
	entries := p.retries.Drain()
	if len(entries) == 0 {
		return
	}

	logrus.Infof("Retry sweep: %d messages awaiting mark-read", len(entries))
	for _, e := range entries {
		if err := p.provider.MarkRead(ctx, e.Account, e.MessageID); err != nil {
			logrus.Warnf("Retry mark-read failed for message %s: %v", e.MessageID, err)
			p.retries.Insert(e)
			continue
		}
		logrus.Infof("Marked message %s as read on retry", e.MessageID)
	}
	p.metrics.RetryQueueSize.Set(float64(p.retries.Len()))
}

func (p *Processor) forward(ctx context.Context, account string, msg mail.InboundMessage, to, note string) error {
	return withRetry(ctx, p.maxAttempts, p.backoffBase, "forward", func(ctx context.Context) error {
		return p.provider.Forward(ctx, account, msg, to, note)
	})
}

func (p *Processor) markRead(ctx context.Context, account, messageID string) error {
	return withRetry(ctx, p.maxAttempts, p.backoffBase, "mark-read", func(ctx context.Context) error {
		return p.provider.MarkRead(ctx, account, messageID)
	})
}

// markReadQuietly is the best-effort single attempt used on skip paths.
func (p *Processor) markReadQuietly(ctx context.Context, account, messageID string) {
	if err := p.provider.MarkRead(ctx, account, messageID); err != nil {
		logrus.Warnf("Failed to mark skipped message %s as read: %v", messageID, err)
	}
}

func (p *Processor) newRecord(account string, msg mail.InboundMessage, start time.Time) *store.ProcessingRecord {
	return &store.ProcessingRecord{
		ID:         uuid.NewString(),
		MessageID:  msg.ID,
		ThreadID:   msg.ThreadID,
		Account:    account,
		From:       msg.From,
		To:         strings.Join(msg.To, ", "),
		CC:         strings.Join(msg.CC, ", "),
		Subject:    msg.Subject,
		Body:       msg.Body,
		ReceivedAt: msg.ReceivedAt,
		StartedAt:  start,
	}
}

// finish stamps the terminal timestamps and writes the record exactly once.
func (p *Processor) finish(ctx context.Context, record *store.ProcessingRecord, start time.Time) {
	end := time.Now()
	record.EndedAt = end
	record.TATSeconds = end.Sub(start).Seconds()

	if err := p.store.InsertProcessingRecord(ctx, record); err != nil {
		logrus.Errorf("Failed to write processing record for thread %s: %v", record.ThreadID, err)
		return
	}
	p.metrics.MessagesProcessed.Inc()
	p.metrics.ProcessingTime.Observe(record.TATSeconds)
}

func (p *Processor) writeSkip(ctx context.Context, account string, msg mail.InboundMessage, reason, detail string) {
	record := &store.SkipRecord{
		ID:        uuid.NewString(),
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		Account:   account,
		Reason:    reason,
		Detail:    detail,
	}
	if err := p.store.InsertSkipRecord(ctx, record); err != nil {
		logrus.Errorf("Failed to write skip record for message %s: %v", msg.ID, err)
		return
	}
	p.metrics.MessagesSkipped.WithLabelValues(reason).Inc()
}
