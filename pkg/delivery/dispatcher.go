package delivery

import (
	"context"
	"fmt"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/examdigest/pkg/digest"
	"github.com/umputun/examdigest/pkg/domain"
)

// Sender delivers a single email
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SubscriberStore is the subscriber surface the dispatcher needs
type SubscriberStore interface {
	GetActive(ctx context.Context, verifiedOnly bool) ([]*domain.Subscriber, error)
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)
}

// DeliveryLogger records delivery attempts
type DeliveryLogger interface {
	Add(ctx context.Context, entry *domain.DeliveryLog) error
}

// Assembler builds per-subscriber digests from a shared pool
type Assembler interface {
	Pool(ctx context.Context) ([]*domain.Article, error)
	Build(pool []*domain.Article, sub *domain.Subscriber) *digest.Digest
}

// Renderer turns digests into email subjects and bodies
type Renderer interface {
	Render(d *digest.Digest) (subject, body string, err error)
	RenderWelcome(sub *domain.Subscriber) (subject, body string, err error)
}

// RunOptions selects the delivery mode. TestEmail restricts a run to one
// address and relaxes the empty-digest skip so the trigger always gets mail.
type RunOptions struct {
	TestEmail string
}

// Result summarizes a delivery run
type Result struct {
	SentCount       int `json:"sent_count"`
	SkippedCount    int `json:"skipped_count"`
	FailedCount     int `json:"failed_count"`
	SubscriberCount int `json:"subscriber_count"`
}

// Dispatcher runs digest delivery: assemble once, personalize and send per
// subscriber. A failed send on a scheduled run is logged and must not stop
// the remaining subscribers; on a test run it propagates.
type Dispatcher struct {
	assembler       Assembler
	renderer        Renderer
	sender          Sender
	subscribers     SubscriberStore
	deliveries      DeliveryLogger
	requireVerified bool
}

// NewDispatcher creates a delivery dispatcher. With requireVerified set,
// scheduled runs target verified subscribers only; test runs always resolve
// by address regardless.
func NewDispatcher(assembler Assembler, renderer Renderer, sender Sender,
	subscribers SubscriberStore, deliveries DeliveryLogger, requireVerified bool) *Dispatcher {
	return &Dispatcher{
		assembler:       assembler,
		renderer:        renderer,
		sender:          sender,
		subscribers:     subscribers,
		deliveries:      deliveries,
		requireVerified: requireVerified,
	}
}

// Run executes one delivery pass
func (d *Dispatcher) Run(ctx context.Context, opts RunOptions) (Result, error) {
	var result Result

	pool, err := d.assembler.Pool(ctx)
	if err != nil {
		return result, fmt.Errorf("assemble pool: %w", err)
	}

	subs, err := d.targets(ctx, opts)
	if err != nil {
		return result, err
	}
	result.SubscriberCount = len(subs)
	log.Printf("[INFO] delivery started, pool %d articles, %d subscribers", len(pool), len(subs))

	testRun := opts.TestEmail != ""
	for _, sub := range subs {
		dig := d.assembler.Build(pool, sub)

		// a scheduled run stays silent when nothing matched; an explicit
		// test trigger still gets the "all quiet" mail as confirmation
		if dig.ItemCount == 0 && !testRun {
			log.Printf("[DEBUG] nothing for %s, skipping", sub.Email)
			result.SkippedCount++
			continue
		}

		subject, body, err := d.renderer.Render(dig)
		if err != nil {
			return result, fmt.Errorf("render digest for %s: %w", sub.Email, err)
		}

		if err := d.sender.Send(ctx, sub.Email, subject, body); err != nil {
			if testRun {
				return result, fmt.Errorf("send to %s: %w", sub.Email, err)
			}
			log.Printf("[WARN] send failed for %s: %v", sub.Email, err)
			d.logDelivery(ctx, sub, subject, dig.ItemCount, "failed")
			result.FailedCount++
			continue
		}

		d.logDelivery(ctx, sub, subject, dig.ItemCount, "sent")
		result.SentCount++
	}

	log.Printf("[INFO] delivery completed: sent %d, skipped %d, failed %d",
		result.SentCount, result.SkippedCount, result.FailedCount)
	return result, nil
}

// targets resolves the subscriber list for a run
func (d *Dispatcher) targets(ctx context.Context, opts RunOptions) ([]*domain.Subscriber, error) {
	if opts.TestEmail != "" {
		sub, err := d.subscribers.GetByEmail(ctx, opts.TestEmail)
		if err != nil {
			return nil, fmt.Errorf("test subscriber %s: %w", opts.TestEmail, err)
		}
		return []*domain.Subscriber{sub}, nil
	}

	subs, err := d.subscribers.GetActive(ctx, d.requireVerified)
	if err != nil {
		return nil, fmt.Errorf("active subscribers: %w", err)
	}
	return subs, nil
}

// SendWelcome delivers the signup confirmation. Failure is reported but
// callers treat it as non-fatal; the subscription itself already succeeded.
func (d *Dispatcher) SendWelcome(ctx context.Context, sub *domain.Subscriber) error {
	subject, body, err := d.renderer.RenderWelcome(sub)
	if err != nil {
		return fmt.Errorf("render welcome for %s: %w", sub.Email, err)
	}
	if err := d.sender.Send(ctx, sub.Email, subject, body); err != nil {
		return fmt.Errorf("send welcome to %s: %w", sub.Email, err)
	}
	d.logDelivery(ctx, sub, subject, 0, "sent")
	return nil
}

func (d *Dispatcher) logDelivery(ctx context.Context, sub *domain.Subscriber, subject string, items int, status string) {
	entry := &domain.DeliveryLog{
		SubscriberID: sub.ID,
		Email:        sub.Email,
		Subject:      subject,
		ItemCount:    items,
		Status:       status,
	}
	if err := d.deliveries.Add(ctx, entry); err != nil {
		log.Printf("[WARN] failed to record delivery for %s: %v", sub.Email, err)
	}
}
