package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Dispatcher enqueues messages onto a buffered channel consumed by Worker.
// Enqueueing never blocks the transition that triggered it: when the queue is
// full the message is dropped and logged, and the user can request a resend.
type Dispatcher struct {
	queue  chan Message
	logger *slog.Logger
}

func NewDispatcher(depth int, logger *slog.Logger) *Dispatcher {
	if depth <= 0 {
		depth = 256
	}
	return &Dispatcher{
		queue:  make(chan Message, depth),
		logger: logger,
	}
}

// VerificationRequested queues the verification email carrying the plain token.
func (d *Dispatcher) VerificationRequested(endorsementID uuid.UUID, email, name, token string) {
	d.enqueue(Message{
		Kind:          KindVerification,
		EndorsementID: endorsementID,
		Recipient:     email,
		Name:          name,
		Token:         token,
	})
}

// EndorsementApproved queues the approval notice.
func (d *Dispatcher) EndorsementApproved(endorsementID uuid.UUID, email, name string) {
	d.enqueue(Message{
		Kind:          KindApproved,
		EndorsementID: endorsementID,
		Recipient:     email,
		Name:          name,
	})
}

// EndorsementRejected queues the rejection notice.
func (d *Dispatcher) EndorsementRejected(endorsementID uuid.UUID, email, name string) {
	d.enqueue(Message{
		Kind:          KindRejected,
		EndorsementID: endorsementID,
		Recipient:     email,
		Name:          name,
	})
}

func (d *Dispatcher) enqueue(msg Message) {
	msg.QueuedAt = time.Now()
	select {
	case d.queue <- msg:
	default:
		d.logger.Warn("notification queue full, dropping message",
			"kind", string(msg.Kind),
			"endorsement_id", msg.EndorsementID,
		)
	}
}

// Worker consumes the dispatcher queue and delivers through a Sender. It keeps
// background processing testable without wiring queue infrastructure.
type Worker struct {
	dispatcher *Dispatcher
	sender     Sender
	logger     *slog.Logger
}

func NewWorker(dispatcher *Dispatcher, sender Sender, logger *slog.Logger) *Worker {
	return &Worker{dispatcher: dispatcher, sender: sender, logger: logger}
}

// Run delivers messages until the context is canceled. Delivery errors are
// logged and the message dropped; the state transition behind it stands.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-w.dispatcher.queue:
			if err := w.sender.Send(ctx, msg); err != nil {
				w.logger.ErrorContext(ctx, "notification delivery failed",
					"error", err,
					"kind", string(msg.Kind),
					"endorsement_id", msg.EndorsementID,
				)
			}
		}
	}
}
