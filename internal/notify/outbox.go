package notify

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const sendTimeout = 30 * time.Second

// Outbox queues messages and sends them from one worker, throttled by a
// token bucket.
type Outbox struct {
	sender  Sender
	limiter *rate.Limiter
	queue   chan Message
	logger  *slog.Logger
	onSent  func(err error)
}

// OutboxConfig tunes the queue. A zero Rate disables throttling.
type OutboxConfig struct {
	Rate   rate.Limit
	Burst  int
	Size   int
	Logger *slog.Logger
	// OnSent, when set, observes every delivery attempt.
	OnSent func(err error)
}

func NewOutbox(sender Sender, cfg OutboxConfig) *Outbox {
	if cfg.Rate <= 0 {
		cfg.Rate = rate.Inf
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Size <= 0 {
		cfg.Size = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Outbox{
		sender:  sender,
		limiter: rate.NewLimiter(cfg.Rate, cfg.Burst),
		queue:   make(chan Message, cfg.Size),
		logger:  cfg.Logger,
		onSent:  cfg.OnSent,
	}
}

// Enqueue adds msg without blocking. It reports false when the queue is full
// and the message was dropped.
func (o *Outbox) Enqueue(msg Message) bool {
	select {
	case o.queue <- msg:
		return true
	default:
		o.logger.Warn("mail outbox full, dropping message", "to", msg.To, "subject", msg.Subject)
		return false
	}
}

// Run drains the queue until ctx is cancelled.
func (o *Outbox) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-o.queue:
			if err := o.limiter.Wait(ctx); err != nil {
				return
			}
			o.deliver(ctx, msg)
		}
	}
}

// Start runs the worker in a goroutine.
func (o *Outbox) Start(ctx context.Context) {
	go o.Run(ctx)
}

func (o *Outbox) deliver(ctx context.Context, msg Message) {
	c, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	err := o.sender.Send(c, msg)
	if err != nil {
		o.logger.Error("mail delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
	}
	if o.onSent != nil {
		o.onSent(err)
	}
}
