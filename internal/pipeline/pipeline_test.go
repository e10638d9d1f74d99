package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-triage-go/internal/classifier"
	"mail-triage-go/internal/config"
	"mail-triage-go/internal/mail"
	"mail-triage-go/internal/metrics"
	"mail-triage-go/internal/routing"
	"mail-triage-go/internal/store"
	"mail-triage-go/internal/triage"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = metrics.NewMetrics()

type forwardCall struct {
	To   string
	Note string
}

type fakeProvider struct {
	mu          sync.Mutex
	forwards    []forwardCall
	markReads   []string
	replies     []string
	forwardErr  error
	markReadErr error
	replyErr    error
}

func (f *fakeProvider) Forward(_ context.Context, _ string, _ mail.InboundMessage, to, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwards = append(f.forwards, forwardCall{To: to, Note: note})
	return f.forwardErr
}

func (f *fakeProvider) MarkRead(_ context.Context, _ string, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReads = append(f.markReads, messageID)
	return f.markReadErr
}

func (f *fakeProvider) Reply(_ context.Context, _ string, _ mail.InboundMessage, subject, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, subject)
	return f.replyErr
}

type fakeClassifier struct {
	draft *classifier.ClassificationDraft
	err   error
	calls int
}

func (f *fakeClassifier) Classify(context.Context, string) (*classifier.ClassificationDraft, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	d := *f.draft
	return &d, nil
}

type fakeStore struct {
	mu        sync.Mutex
	exists    bool
	existsErr error
	records   []*store.ProcessingRecord
	skips     []*store.SkipRecord
	insertErr error
}

func (f *fakeStore) Exists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeStore) InsertProcessingRecord(_ context.Context, r *store.ProcessingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, r)
	return nil
}

func (f *fakeStore) InsertSkipRecord(_ context.Context, r *store.SkipRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skips = append(f.skips, r)
	return nil
}

func testMessage() mail.InboundMessage {
	return mail.InboundMessage{
		ID:         "msg-1",
		ThreadID:   "thread-1",
		From:       "customer@example.com",
		To:         []string{"inbox@example.com"},
		Subject:    "Accident claim",
		Body:       "I had an accident yesterday and need to claim",
		ReceivedAt: time.Now(),
	}
}

func testDraft() *classifier.ClassificationDraft {
	return &classifier.ClassificationDraft{
		Categories:     []string{"claims"},
		Reason:         "accident report",
		ActionRequired: true,
		Sentiment:      classifier.SentimentNegative,
		FinalCategory:  "claims",
		CostUSD:        0.002,
		Stages: []classifier.StageUsage{
			{Stage: classifier.StageCategorise, Region: classifier.RegionPrimary},
			{Stage: classifier.StageActionCheck},
			{Stage: classifier.StagePrioritize},
		},
	}
}

func newTestProcessor(provider *fakeProvider, cls Classifier, st LogStore) *Processor {
	cfg := &config.Config{}
	cfg.Triage.MaxTextLen = 300000
	cfg.Delivery.MaxAttempts = 3
	cfg.Delivery.BackoffBase = time.Millisecond

	priority := triage.NewPriority(config.DefaultPriority)
	table := routing.NewTable(map[string]string{
		"claims":     "claims@example.com",
		"retentions": "retentions@example.com",
	})

	return NewProcessor(provider, cls, triage.NewResolver(priority), table,
		st, NewRetrySet(), testMetrics, cfg)
}

func TestProcessHappyPath(t *testing.T) {
	provider := &fakeProvider{}
	cls := &fakeClassifier{draft: testDraft()}
	st := &fakeStore{}
	p := newTestProcessor(provider, cls, st)

	p.Process(context.Background(), "inbox@example.com", testMessage())

	require.Len(t, provider.forwards, 1)
	assert.Equal(t, "claims@example.com", provider.forwards[0].To)
	assert.Equal(t, []string{"msg-1"}, provider.markReads)

	require.Len(t, st.records, 1)
	rec := st.records[0]
	assert.Equal(t, "thread-1", rec.ThreadID)
	assert.Equal(t, "claims", rec.Category)
	assert.Equal(t, "claims@example.com", rec.RoutedTo)
	assert.True(t, rec.Intervention)
	assert.Equal(t, store.StatusSuccess, rec.StsClass)
	assert.Equal(t, store.StatusSuccess, rec.StsRouting)
	assert.Equal(t, store.StatusSuccess, rec.StsRead)
	assert.Equal(t, classifier.RegionPrimary, rec.Region)
	assert.GreaterOrEqual(t, rec.TATSeconds, 0.0)
	assert.Empty(t, st.skips)
	assert.Zero(t, p.retries.Len())
}

func TestProcessDuplicateSkipsWithoutClassifying(t *testing.T) {
	provider := &fakeProvider{}
	cls := &fakeClassifier{draft: testDraft()}
	st := &fakeStore{exists: true}
	p := newTestProcessor(provider, cls, st)

	p.Process(context.Background(), "inbox@example.com", testMessage())

	assert.Zero(t, cls.calls)
	assert.Empty(t, provider.forwards)
	assert.Equal(t, []string{"msg-1"}, provider.markReads)
	assert.Empty(t, st.records)
	require.Len(t, st.skips, 1)
	assert.Equal(t, store.SkipDuplicate, st.skips[0].Reason)
}

func TestProcessDuplicateLookupErrorFailsOpen(t *testing.T) {
	provider := &fakeProvider{}
	cls := &fakeClassifier{draft: testDraft()}
	st := &fakeStore{existsErr: errors.New("connection refused")}
	p := newTestProcessor(provider, cls, st)

	p.Process(context.Background(), "inbox@example.com", testMessage())

	// The message is treated as new and processed normally.
	assert.Equal(t, 1, cls.calls)
	require.Len(t, st.records, 1)
	assert.Empty(t, st.skips)
}

func TestProcessClassificationFailureFallsBack(t *testing.T) {
	provider := &fakeProvider{}
	cls := &fakeClassifier{err: errors.New("both classification endpoints failed")}
	st := &fakeStore{}
	p := newTestProcessor(provider, cls, st)

	p.Process(context.Background(), "inbox@example.com", testMessage())

	// Forwarded to the original destination, marked read, one record.
	require.Len(t, provider.forwards, 1)
	assert.Equal(t, "inbox@example.com", provider.forwards[0].To)
	assert.Contains(t, provider.forwards[0].Note, "classification error")
	assert.Equal(t, []string{"msg-1"}, provider.markReads)

	require.Len(t, st.records, 1)
	rec := st.records[0]
	assert.Equal(t, store.StatusError, rec.StsClass)
	assert.Equal(t, store.StatusSuccess, rec.StsRouting)
	assert.Equal(t, store.StatusSuccess, rec.StsRead)
	assert.Equal(t, "error", rec.Category)
	assert.Contains(t, rec.Reason, "error:")
	assert.Equal(t, "inbox@example.com", rec.RoutedTo)
}

func TestProcessForwardFailureLeavesUnread(t *testing.T) {
	provider := &fakeProvider{forwardErr: errors.New("invalid recipient")}
	cls := &fakeClassifier{draft: testDraft()}
	st := &fakeStore{}
	p := newTestProcessor(provider, cls, st)

	p.Process(context.Background(), "inbox@example.com", testMessage())

	// Non-transient failure: one attempt, no mark-read, no retry entry.
	assert.Len(t, provider.forwards, 1)
	assert.Empty(t, provider.markReads)
	assert.Zero(t, p.retries.Len())

	require.Len(t, st.records, 1)
	rec := st.records[0]
	assert.Equal(t, store.StatusSuccess, rec.StsClass)
	assert.Equal(t, store.StatusError, rec.StsRouting)
	assert.Equal(t, store.StatusError, rec.StsRead)
}

func TestProcessTransientForwardFailureRetries(t *testing.T) {
	provider := &fakeProvider{forwardErr: errors.New("rate limit exceeded")}
	cls := &fakeClassifier{draft: testDraft()}
	st := &fakeStore{}
	p := newTestProcessor(provider, cls, st)

	p.Process(context.Background(), "inbox@example.com", testMessage())

	// Transient failure: retried up to the attempt budget.
	assert.Len(t, provider.forwards, 3)
	require.Len(t, st.records, 1)
	assert.Equal(t, store.StatusError, st.records[0].StsRouting)
}

func TestProcessMarkReadFailureQueuesRetry(t *testing.T) {
	provider := &fakeProvider{markReadErr: errors.New("temporarily unavailable")}
	cls := &fakeClassifier{draft: testDraft()}
	st := &fakeStore{}
	p := newTestProcessor(provider, cls, st)

	p.Process(context.Background(), "inbox@example.com", testMessage())

	// Forwarded exactly once; the unread state goes to the retry set.
	assert.Len(t, provider.forwards, 1)
	assert.True(t, p.retries.Contains(RetryEntry{Account: "inbox@example.com", MessageID: "msg-1"}))

	require.Len(t, st.records, 1)
	rec := st.records[0]
	assert.Equal(t, store.StatusSuccess, rec.StsRouting)
	assert.Equal(t, store.StatusError, rec.StsRead)
}

func TestProcessSystemSenderSkipped(t *testing.T) {
	provider := &fakeProvider{}
	cls := &fakeClassifier{draft: testDraft()}
	st := &fakeStore{}
	p := newTestProcessor(provider, cls, st)

	msg := testMessage()
	msg.From = "mailer-daemon@googlemail.com"
	p.Process(context.Background(), "inbox@example.com", msg)

	assert.Zero(t, cls.calls)
	assert.Empty(t, provider.forwards)
	require.Len(t, st.skips, 1)
	assert.Equal(t, store.SkipSystemAddress, st.skips[0].Reason)
}

func TestProcessMalformedSkipped(t *testing.T) {
	provider := &fakeProvider{}
	cls := &fakeClassifier{draft: testDraft()}
	st := &fakeStore{}
	p := newTestProcessor(provider, cls, st)

	msg := testMessage()
	msg.ThreadID = ""
	p.Process(context.Background(), "inbox@example.com", msg)

	assert.Zero(t, cls.calls)
	require.Len(t, st.skips, 1)
	assert.Equal(t, store.SkipMalformed, st.skips[0].Reason)
}

type panickyClassifier struct{}

func (panickyClassifier) Classify(context.Context, string) (*classifier.ClassificationDraft, error) {
	panic("boom")
}

func TestProcessRecoversFromPanic(t *testing.T) {
	provider := &fakeProvider{}
	st := &fakeStore{}
	p := newTestProcessor(provider, panickyClassifier{}, st)

	assert.NotPanics(t, func() {
		p.Process(context.Background(), "inbox@example.com", testMessage())
	})
	require.Len(t, st.skips, 1)
	assert.Equal(t, store.SkipError, st.skips[0].Reason)
}

func TestRetrySweep(t *testing.T) {
	provider := &fakeProvider{}
	cls := &fakeClassifier{draft: testDraft()}
	st := &fakeStore{}
	p := newTestProcessor(provider, cls, st)

	p.retries.Insert(RetryEntry{Account: "inbox@example.com", MessageID: "msg-a"})
	p.retries.Insert(RetryEntry{Account: "inbox@example.com", MessageID: "msg-b"})

	p.RetrySweep(context.Background())

	assert.ElementsMatch(t, []string{"msg-a", "msg-b"}, provider.markReads)
	assert.Zero(t, p.retries.Len())
}

func TestRetrySweepReinsertsFailures(t *testing.T) {
	provider := &fakeProvider{markReadErr: errors.New("still failing")}
	cls := &fakeClassifier{draft: testDraft()}
	st := &fakeStore{}
	p := newTestProcessor(provider, cls, st)

	entry := RetryEntry{Account: "inbox@example.com", MessageID: "msg-a"}
	p.retries.Insert(entry)

	p.RetrySweep(context.Background())

	assert.True(t, p.retries.Contains(entry))
	assert.Equal(t, 1, p.retries.Len())
}
