package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-triage-go/internal/config"
	"mail-triage-go/internal/mail"
	"mail-triage-go/internal/metrics"
)

var testMetrics = metrics.NewMetrics()

type stubFetcher struct {
	mu       sync.Mutex
	messages []mail.InboundMessage
	fetches  int
}

func (s *stubFetcher) FetchUnread(context.Context, string) ([]mail.InboundMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return s.messages, nil
}

type recordingPipeline struct {
	mu        sync.Mutex
	processed []string
	inFlight  int
	maxFlight int
	sweeps    int
	delay     time.Duration
}

func (r *recordingPipeline) Process(_ context.Context, _ string, msg mail.InboundMessage) {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxFlight {
		r.maxFlight = r.inFlight
	}
	r.mu.Unlock()

	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	r.inFlight--
	r.processed = append(r.processed, msg.ID)
	r.mu.Unlock()
}

func (r *recordingPipeline) RetrySweep(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweeps++
}

func messages(ids ...string) []mail.InboundMessage {
	out := make([]mail.InboundMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, mail.InboundMessage{ID: id, ThreadID: "t-" + id})
	}
	return out
}

func testConfig() *config.SchedulerConfig {
	return &config.SchedulerConfig{
		PollInterval: time.Hour,
		BatchSize:    3,
		BatchPause:   time.Millisecond,
		SweepEvery:   5,
	}
}

func TestSchedulerRestart(t *testing.T) {
	fetcher := &stubFetcher{messages: messages("m1")}
	pipe := &recordingPipeline{}
	sched := NewScheduler(testConfig(), []string{"inbox@example.com"},
		fetcher, pipe, testMetrics)

	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())
	assert.Error(t, sched.Start())

	require.NoError(t, sched.Stop())
	assert.False(t, sched.IsRunning())

	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())
	defer sched.Stop()

	// A restarted scheduler must actually do work: the Stop above
	// cancelled the old context and Start has to replace it.
	require.NoError(t, sched.RunOnce())
	sched.Wait()

	assert.Equal(t, 1, fetcher.fetches)
	assert.Equal(t, []string{"m1"}, pipe.processed)
}

func TestRunOnceOnStoppedSchedulerErrors(t *testing.T) {
	fetcher := &stubFetcher{messages: messages("m1")}
	pipe := &recordingPipeline{}
	sched := NewScheduler(testConfig(), []string{"inbox@example.com"},
		fetcher, pipe, testMetrics)

	assert.Error(t, sched.RunOnce())

	require.NoError(t, sched.Start())
	require.NoError(t, sched.Stop())

	assert.Error(t, sched.RunOnce())
	assert.Zero(t, fetcher.fetches)
	assert.Empty(t, pipe.processed)
}

func TestRunOnceProcessesAllMessages(t *testing.T) {
	fetcher := &stubFetcher{messages: messages("m1", "m2", "m3", "m4", "m5")}
	pipe := &recordingPipeline{}
	sched := NewScheduler(testConfig(), []string{"inbox@example.com"}, fetcher, pipe, testMetrics)

	require.NoError(t, sched.Start())
	defer sched.Stop()

	require.NoError(t, sched.RunOnce())
	sched.Wait()

	assert.Equal(t, 1, fetcher.fetches)
	assert.ElementsMatch(t, []string{"m1", "m2", "m3", "m4", "m5"}, pipe.processed)
}

func TestBatchConcurrencyBounded(t *testing.T) {
	fetcher := &stubFetcher{messages: messages("m1", "m2", "m3", "m4", "m5", "m6", "m7")}
	pipe := &recordingPipeline{delay: 10 * time.Millisecond}
	sched := NewScheduler(testConfig(), []string{"inbox@example.com"}, fetcher, pipe, testMetrics)

	require.NoError(t, sched.Start())
	defer sched.Stop()

	require.NoError(t, sched.RunOnce())
	sched.Wait()

	assert.Len(t, pipe.processed, 7)
	// Never more than BatchSize messages in flight at once.
	assert.LessOrEqual(t, pipe.maxFlight, 3)
	assert.GreaterOrEqual(t, pipe.maxFlight, 1)
}

func TestSweepRunsEveryNthCycle(t *testing.T) {
	fetcher := &stubFetcher{}
	pipe := &recordingPipeline{}
	cfg := testConfig()
	cfg.SweepEvery = 2
	sched := NewScheduler(cfg, []string{"inbox@example.com"}, fetcher, pipe, testMetrics)

	require.NoError(t, sched.Start())
	defer sched.Stop()

	for i := 0; i < 4; i++ {
		require.NoError(t, sched.RunOnce())
	}
	sched.Wait()

	assert.Equal(t, 2, pipe.sweeps)
}

func TestPollCycleFansOutAccounts(t *testing.T) {
	fetcher := &stubFetcher{messages: messages("m1")}
	pipe := &recordingPipeline{}
	sched := NewScheduler(testConfig(), []string{"a@example.com", "b@example.com"}, fetcher, pipe, testMetrics)

	require.NoError(t, sched.Start())
	defer sched.Stop()

	require.NoError(t, sched.RunOnce())
	sched.Wait()

	assert.Equal(t, 2, fetcher.fetches)
	assert.Len(t, pipe.processed, 2)
}
