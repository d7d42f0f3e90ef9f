package scheduler

import (
	"context"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/examdigest/pkg/classifier"
	"github.com/umputun/examdigest/pkg/delivery"
	"github.com/umputun/examdigest/pkg/ingest"
)

// Fetcher runs one ingestion pass over all sources
type Fetcher interface {
	Run(ctx context.Context) ingest.Result
}

// Classifier runs one classification pass
type Classifier interface {
	Run(ctx context.Context, sel classifier.Selection) (classifier.Result, error)
}

// Enricher extracts article bodies before classification
type Enricher interface {
	EnrichPending(ctx context.Context, limit int) (int, error)
}

// Dispatcher runs one digest delivery pass
type Dispatcher interface {
	Run(ctx context.Context, opts delivery.RunOptions) (delivery.Result, error)
}

// Config holds scheduler timing
type Config struct {
	FetchInterval    time.Duration
	ClassifyInterval time.Duration
	DigestHour       int // local hour for the daily digest delivery
	EnrichLimit      int
}

// Scheduler drives the pipeline on a schedule: periodic ingestion, periodic
// enrichment plus classification, and a daily digest delivery. Explicit API
// triggers run the same stages out of band.
type Scheduler struct {
	fetcher    Fetcher
	classifier Classifier
	enricher   Enricher // nil disables body extraction
	dispatcher Dispatcher

	fetchInterval    time.Duration
	classifyInterval time.Duration
	digestHour       int
	enrichLimit      int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler over the pipeline stages
func NewScheduler(fetcher Fetcher, cls Classifier, enricher Enricher, dispatcher Dispatcher, cfg Config) *Scheduler {
	if cfg.FetchInterval == 0 {
		cfg.FetchInterval = time.Hour
	}
	if cfg.ClassifyInterval == 0 {
		cfg.ClassifyInterval = 10 * time.Minute
	}
	if cfg.EnrichLimit == 0 {
		cfg.EnrichLimit = 20
	}
	return &Scheduler{
		fetcher:          fetcher,
		classifier:       cls,
		enricher:         enricher,
		dispatcher:       dispatcher,
		fetchInterval:    cfg.FetchInterval,
		classifyInterval: cfg.ClassifyInterval,
		digestHour:       cfg.DigestHour,
		enrichLimit:      cfg.EnrichLimit,
	}
}

// Start launches the background workers
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.fetchWorker(ctx)

	s.wg.Add(1)
	go s.classifyWorker(ctx)

	s.wg.Add(1)
	go s.digestWorker(ctx)

	log.Printf("[INFO] scheduler started: fetch every %v, classify every %v, digest at %02d:00",
		s.fetchInterval, s.classifyInterval, s.digestHour)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	log.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Printf("[INFO] scheduler stopped")
}

// fetchWorker periodically runs ingestion, immediately on start
func (s *Scheduler) fetchWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.fetchInterval)
	defer ticker.Stop()

	s.fetcher.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fetcher.Run(ctx)
		}
	}
}

// classifyWorker periodically enriches pending articles and classifies them
func (s *Scheduler) classifyWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.classifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.classifyOnce(ctx)
		}
	}
}

func (s *Scheduler) classifyOnce(ctx context.Context) {
	if s.enricher != nil {
		if _, err := s.enricher.EnrichPending(ctx, s.enrichLimit); err != nil {
			log.Printf("[ERROR] enrichment failed: %v", err)
		}
	}
	if _, err := s.classifier.Run(ctx, classifier.Selection{}); err != nil {
		log.Printf("[ERROR] classification failed: %v", err)
	}
}

// digestWorker sends the digest once a day at the configured hour
func (s *Scheduler) digestWorker(ctx context.Context) {
	defer s.wg.Done()

	for {
		wait := untilHour(time.Now(), s.digestHour)
		log.Printf("[DEBUG] next digest delivery in %v", wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, err := s.dispatcher.Run(ctx, delivery.RunOptions{}); err != nil {
				log.Printf("[ERROR] digest delivery failed: %v", err)
			}
		}
	}
}

// untilHour returns the duration from now to the next occurrence of the
// given local hour
func untilHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
