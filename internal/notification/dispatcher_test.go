package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coalition/internal/platform/logger"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
	done chan struct{}
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	s.done <- struct{}{}
	return s.err
}

func (s *recordingSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

func runWorker(t *testing.T, d *Dispatcher, sender Sender) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = NewWorker(d, sender, logger.New()).Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
}

func await(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestDispatcherDelivers(t *testing.T) {
	d := NewDispatcher(8, logger.New())
	sender := &recordingSender{done: make(chan struct{}, 8)}
	runWorker(t, d, sender)

	id := uuid.New()
	d.VerificationRequested(id, "jane@example.org", "Jane", "tok-123")
	await(t, sender.done)

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, KindVerification, msgs[0].Kind)
	assert.Equal(t, "jane@example.org", msgs[0].Recipient)
	assert.Equal(t, "tok-123", msgs[0].Token)
	assert.Equal(t, id, msgs[0].EndorsementID)
}

func TestDispatcherFullQueueDropsInsteadOfBlocking(t *testing.T) {
	// No worker draining: the channel fills and further enqueues must return
	// immediately.
	d := NewDispatcher(2, logger.New())

	start := time.Now()
	for i := 0; i < 10; i++ {
		d.EndorsementApproved(uuid.New(), "jane@example.org", "Jane")
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, d.queue, 2)
}

func TestWorkerContinuesPastDeliveryFailure(t *testing.T) {
	d := NewDispatcher(8, logger.New())
	sender := &recordingSender{done: make(chan struct{}, 8), err: errors.New("smtp down")}
	runWorker(t, d, sender)

	d.EndorsementRejected(uuid.New(), "jane@example.org", "Jane")
	await(t, sender.done)
	d.EndorsementApproved(uuid.New(), "jane@example.org", "Jane")
	await(t, sender.done)

	assert.Len(t, sender.messages(), 2)
}

func TestSMTPRender(t *testing.T) {
	s := &SMTPSender{From: "no-reply@example.org", VerifyBaseURL: "https://example.org/verify"}

	subject, body := s.render(Message{Kind: KindVerification, Name: "Jane", Token: "tok-123"})
	assert.Equal(t, "Confirm your endorsement", subject)
	assert.Contains(t, body, "https://example.org/verify?token=tok-123")

	subject, body = s.render(Message{Kind: KindApproved})
	assert.Equal(t, "Your endorsement is live", subject)
	assert.Contains(t, body, "Hi there")
}
