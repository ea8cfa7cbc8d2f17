package matcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-credit/kestrel/internal/domain"
)

// Worker consumes recompute events from the bus and drives the Service.
// Handlers dispatch jobs onto a bounded pool so one slow full-population
// scan cannot stall borrower recomputes behind it.
type Worker struct {
	bus     domain.EventBus
	service *Service
	logger  *slog.Logger

	timeout time.Duration
	slots   chan struct{}

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a recompute worker.
func NewWorker(bus domain.EventBus, service *Service, cfg domain.MatcherConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	timeout := time.Duration(cfg.RecomputeTimeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		service: service,
		logger:  logger,
		timeout: timeout,
		slots:   make(chan struct{}, workers),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to the recompute topics.
func (w *Worker) Start() error {
	borrowerSub, err := w.bus.Subscribe(w.ctx, domain.TopicMatchBorrower, w.handleBorrowerEvent)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, borrowerSub)

	policySub, err := w.bus.Subscribe(w.ctx, domain.TopicMatchPolicy, w.handlePolicyEvent)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, policySub)

	w.logger.Info("matcher worker started",
		"workers", cap(w.slots),
		"topics", []string{domain.TopicMatchBorrower, domain.TopicMatchPolicy},
	)
	return nil
}

func (w *Worker) handleBorrowerEvent(ctx context.Context, msg *domain.Message) error {
	var event domain.MatchBorrowerEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		w.logger.Error("malformed borrower event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	w.dispatch(func(jobCtx context.Context) {
		// A failed recompute aborts this job only; the next event for the
		// same borrower rebuilds the set.
		_ = w.service.RecomputeBorrower(jobCtx, event.BorrowerID)
	})
	return nil
}

func (w *Worker) handlePolicyEvent(ctx context.Context, msg *domain.Message) error {
	var event domain.MatchPolicyEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		w.logger.Error("malformed policy event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	w.dispatch(func(jobCtx context.Context) {
		_ = w.service.RecomputePolicy(jobCtx, event.LenderID, event.PolicyID)
	})
	return nil
}

// dispatch runs fn on the pool, blocking while all slots are busy so the
// bus's buffer provides the only queueing.
func (w *Worker) dispatch(fn func(context.Context)) {
	select {
	case w.slots <- struct{}{}:
	case <-w.ctx.Done():
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.slots }()

		jobCtx, cancel := context.WithTimeout(w.ctx, w.timeout)
		defer cancel()
		fn(jobCtx)
	}()
}

// Stop unsubscribes and waits for in-flight jobs to finish.
func (w *Worker) Stop() error {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	// In-flight jobs run to completion; their per-job timeout bounds how
	// long this can take.
	w.wg.Wait()
	w.cancel()

	w.logger.Info("matcher worker stopped")
	return nil
}
