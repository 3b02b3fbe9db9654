// Package worker reacts to analysis lifecycle events in the background.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/ringscope/internal/bus"
	"github.com/opensource-finance/ringscope/internal/domain"
	"github.com/opensource-finance/ringscope/internal/projector"
)

// Unloader clears the views showing an analysis.
type Unloader interface {
	Unload(ctx context.Context, analysisID string) int
}

// Worker warms projections of newly stored analyses and drops the
// projections and views of deleted ones.
type Worker struct {
	bus         domain.EventBus
	repo        domain.Repository
	projections *projector.Cached
	views       Unloader

	warmed      atomic.Uint64
	invalidated atomic.Uint64
	failed      atomic.Uint64

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// Tenant is the bus tenant to subscribe under. Defaults to the fan-in
	// tenant every analysis event is published to.
	Tenant string
}

// NewWorker creates a new worker. views may be nil.
func NewWorker(b domain.EventBus, repo domain.Repository, projections *projector.Cached, views Unloader) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:         b,
		repo:        repo,
		projections: projections,
		views:       views,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start subscribes to the analysis lifecycle topics.
func (w *Worker) Start(cfg Config) error {
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = domain.FanInTenant
	}

	handlers := map[string]domain.MessageHandler{
		domain.TopicAnalysisIngested: w.handleIngested,
		domain.TopicAnalysisDeleted:  w.handleDeleted,
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, topic := range []string{domain.TopicAnalysisIngested, domain.TopicAnalysisDeleted} {
		sub, err := w.bus.Subscribe(w.ctx, tenant, topic, handlers[topic])
		if err != nil {
			return err
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("worker started",
		"tenant", tenant,
		"subscriptions", len(w.subscriptions),
	)
	return nil
}

// handleIngested precomputes every projection of a stored analysis.
func (w *Worker) handleIngested(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var ev domain.AnalysisEvent
	if err := bus.Decode(msg, &ev); err != nil {
		w.failed.Add(1)
		slog.Error("failed to parse analysis event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	a, err := w.repo.GetAnalysis(ctx, ev.TenantID, ev.AnalysisID)
	if err != nil {
		w.failed.Add(1)
		slog.Error("failed to load analysis for warming",
			"analysis_id", ev.AnalysisID,
			"tenant_id", ev.TenantID,
			"trace_id", ev.TraceID,
			"error", err,
		)
		return err
	}

	n := w.projections.Warm(ctx, ev.TenantID, a)
	w.warmed.Add(uint64(n))

	slog.Info("projections warmed",
		"analysis_id", ev.AnalysisID,
		"tenant_id", ev.TenantID,
		"trace_id", ev.TraceID,
		"projections", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// handleDeleted drops the cached projections of a deleted analysis and
// clears the views still showing it.
func (w *Worker) handleDeleted(ctx context.Context, msg *domain.Message) error {
	var ev domain.AnalysisEvent
	if err := bus.Decode(msg, &ev); err != nil {
		w.failed.Add(1)
		slog.Error("failed to parse analysis event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	stub := &domain.Analysis{ID: ev.AnalysisID, Result: &domain.AnalysisResult{}}
	for _, id := range ev.RingIDs {
		stub.Result.FraudRings = append(stub.Result.FraudRings, domain.FraudRing{RingID: id})
	}
	w.projections.Invalidate(ctx, ev.TenantID, stub)
	w.invalidated.Add(1)

	cleared := 0
	if w.views != nil {
		cleared = w.views.Unload(ctx, ev.AnalysisID)
	}

	slog.Info("analysis evicted",
		"analysis_id", ev.AnalysisID,
		"tenant_id", ev.TenantID,
		"rings", len(ev.RingIDs),
		"views_cleared", cleared,
	)
	return nil
}

// Stop unsubscribes and cancels in-flight handlers.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Warmed            uint64   `json:"warmed"`
	Invalidated       uint64   `json:"invalidated"`
	Failed            uint64   `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Warmed:            w.warmed.Load(),
		Invalidated:       w.invalidated.Load(),
		Failed:            w.failed.Load(),
	}
}
