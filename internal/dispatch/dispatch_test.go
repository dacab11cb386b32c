package dispatch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fpang/alt-text-bot/internal/notify"
	"github.com/fpang/alt-text-bot/internal/pipeline"
	"github.com/fpang/alt-text-bot/internal/slackevent"
)

type fakeRunner struct {
	results map[string]pipeline.Result
	delay   time.Duration
}

func (r *fakeRunner) Run(ctx context.Context, files []slackevent.File) map[string]pipeline.Result {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
		}
	}
	return r.results
}

type fakeSender struct {
	mu   sync.Mutex
	errs []error
	sent []sentMessage
	done chan struct{}
}

type sentMessage struct {
	channel, user, text, threadTS string
}

func newFakeSender(errs ...error) *fakeSender {
	return &fakeSender{errs: errs, done: make(chan struct{}, 8)}
}

func (s *fakeSender) PostEphemeral(ctx context.Context, channel, user, text, threadTS string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{channel, user, text, threadTS})
	var err error
	if len(s.errs) > 0 {
		err, s.errs = s.errs[0], s.errs[1:]
	}
	s.done <- struct{}{}
	return err
}

func (s *fakeSender) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

type fakeCache struct {
	mu        sync.Mutex
	forgotten []string
}

func (c *fakeCache) Forget(fp string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forgotten = append(c.forgotten, fp)
}

func (c *fakeCache) forgottenList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.forgotten...)
}

func waitForSend(t *testing.T, s *fakeSender) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for send")
	}
}

func testJob() Job {
	return Job{
		Fingerprint: "Ev1:C1:U1",
		Channel:     "C1",
		User:        "U1",
		ThreadTS:    "1700000000.000100",
		FileCount:   1,
		Missing:     []slackevent.File{{ID: "F1", Name: "cat.png"}},
	}
}

func TestDispatch_SendsReminderWithSuggestions(t *testing.T) {
	runner := &fakeRunner{results: map[string]pipeline.Result{
		"cat.png": {AltText: "A cat on a windowsill"},
	}}
	sender := newFakeSender()
	cache := &fakeCache{}

	d := New(runner, sender, cache, time.Second, time.Second)
	d.Dispatch(testJob())
	waitForSend(t, sender)

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 send, got %d", len(msgs))
	}
	if msgs[0].channel != "C1" || msgs[0].user != "U1" {
		t.Errorf("unexpected target: %+v", msgs[0])
	}
	if msgs[0].threadTS != "1700000000.000100" {
		t.Errorf("thread_ts = %q", msgs[0].threadTS)
	}
	if !strings.Contains(msgs[0].text, "A cat on a windowsill") {
		t.Errorf("expected suggestion in reminder, got %q", msgs[0].text)
	}
	if len(cache.forgottenList()) != 0 {
		t.Error("successful send must not release the dedup slot")
	}
}

func TestDispatch_NilRunnerSendsReminderWithoutSuggestions(t *testing.T) {
	sender := newFakeSender()
	d := New(nil, sender, &fakeCache{}, time.Second, time.Second)

	d.Dispatch(testJob())
	waitForSend(t, sender)

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 send, got %d", len(msgs))
	}
	if strings.Contains(msgs[0].text, "Suggested descriptions") {
		t.Errorf("expected no suggestion block, got %q", msgs[0].text)
	}
	if !strings.Contains(msgs[0].text, "cat.png") {
		t.Errorf("expected reminder to name the file, got %q", msgs[0].text)
	}
}

func TestDispatch_ReturnsAtAckDeadlineWhileJobContinues(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]pipeline.Result{"cat.png": {AltText: "a cat"}},
		delay:   300 * time.Millisecond,
	}
	sender := newFakeSender()
	d := New(runner, sender, &fakeCache{}, 50*time.Millisecond, time.Second)

	start := time.Now()
	d.Dispatch(testJob())
	elapsed := time.Since(start)

	if elapsed >= 300*time.Millisecond {
		t.Errorf("Dispatch blocked past the ack deadline: %v", elapsed)
	}
	if len(sender.messages()) != 0 {
		t.Error("send should not have happened yet")
	}

	// Detached job still delivers.
	waitForSend(t, sender)
	if len(sender.messages()) != 1 {
		t.Fatalf("expected detached send, got %d", len(sender.messages()))
	}
}

func TestDispatch_DuplicateSendReleasesDedupSlot(t *testing.T) {
	sender := newFakeSender(notify.ErrDuplicateSend)
	cache := &fakeCache{}
	d := New(nil, sender, cache, time.Second, time.Second)

	d.Dispatch(testJob())
	waitForSend(t, sender)

	// Forget happens after the send returns; poll briefly.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(cache.forgottenList()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	got := cache.forgottenList()
	if len(got) != 1 || got[0] != "Ev1:C1:U1" {
		t.Fatalf("expected dedup rollback for fingerprint, got %v", got)
	}
}

func TestDispatch_SendFailureIsNotFatalAndKeepsSlot(t *testing.T) {
	sender := newFakeSender(context.DeadlineExceeded)
	cache := &fakeCache{}
	d := New(nil, sender, cache, time.Second, time.Second)

	d.Dispatch(testJob())
	waitForSend(t, sender)

	time.Sleep(20 * time.Millisecond)
	if len(cache.forgottenList()) != 0 {
		t.Error("non-duplicate send failure must not release the dedup slot")
	}
}

func TestDispatch_FailedGenerationStillSendsReminder(t *testing.T) {
	runner := &fakeRunner{results: map[string]pipeline.Result{
		"cat.png": {Failure: pipeline.FailureDownload},
	}}
	sender := newFakeSender()
	d := New(runner, sender, &fakeCache{}, time.Second, time.Second)

	d.Dispatch(testJob())
	waitForSend(t, sender)

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 send, got %d", len(msgs))
	}
	if strings.Contains(msgs[0].text, "Suggested descriptions") {
		t.Errorf("expected no suggestion block on total failure, got %q", msgs[0].text)
	}
}
