/**
 * @description
 * Scheduled reconciliation sweep. Payments left in committed past the stale window,
 * and payments whose compensating reversal failed, need an operator: the gateway
 * may hold a commit that our ledger does not reflect. The sweep reports them and
 * never mutates them.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dummybank/payment-service/internal/domain"
	"github.com/dummybank/payment-service/internal/store"
	"github.com/dummybank/payment-service/pkg/rabbitmq"
)

const reconciliationBatchSize = 100

// Reconciler reports payments that need manual reconciliation.
type Reconciler struct {
	repo       store.Repository
	producer   rabbitmq.Publisher
	logger     *slog.Logger
	staleAfter time.Duration
	now        func() time.Time
}

// NewReconciler creates a reconciliation sweep runner.
func NewReconciler(repo store.Repository, producer rabbitmq.Publisher, logger *slog.Logger, staleAfter time.Duration) *Reconciler {
	if producer == nil {
		producer = &rabbitmq.EventProducerFallback{Logger: logger}
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &Reconciler{
		repo:       repo,
		producer:   producer,
		logger:     logger,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Sweep lists flagged payments and reports each one. It returns how many were found.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	payments, err := r.repo.ListPaymentsNeedingReconciliation(ctx, r.now().Add(-r.staleAfter), reconciliationBatchSize)
	if err != nil {
		return 0, err
	}

	for i := range payments {
		p := &payments[i]
		reason := "reversal failed"
		if p.Status == domain.PaymentCommitted {
			reason = "stuck in committed"
		}
		r.logger.ErrorContext(ctx, "CRITICAL: payment requires manual reconciliation",
			"payment_id", p.ID,
			"user_id", p.UserID,
			"status", p.Status,
			"reason", reason,
			"debited", p.Debited,
			"commit_transaction_id", p.CommitTransactionID,
			"gateway_transaction_id", p.GatewayTransactionID,
			"updated_at", p.UpdatedAt,
		)
		event := rabbitmq.PaymentEvent{
			PaymentID:       p.ID,
			UserID:          p.UserID,
			AccountID:       p.AccountID,
			ReferenceNumber: p.ReferenceNumber,
			Status:          string(p.Status),
			TotalAmount:     p.TotalAmount,
			Currency:        p.Currency,
			TransactionID:   p.SettlementTransactionID(),
			Reason:          reason,
			Timestamp:       r.now().UTC(),
		}
		if err := r.producer.PublishPaymentEvent(ctx, rabbitmq.RoutingPaymentReconciliationRequired, event); err != nil {
			r.logger.WarnContext(ctx, "failed to publish reconciliation event", "payment_id", p.ID, "err", err)
		}
	}
	return len(payments), nil
}

// Run is the cron entry point.
func (r *Reconciler) Run() {
	r.logger.Info("starting reconciliation sweep")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	found, err := r.Sweep(ctx)
	if err != nil {
		r.logger.Error("reconciliation sweep failed", "error", err)
		return
	}
	r.logger.Info("reconciliation sweep finished", "flagged", found)
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron       *cron.Cron
	reconciler *Reconciler
	logger     *slog.Logger
	schedule   string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(reconciler *Reconciler, logger *slog.Logger, schedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:       c,
		reconciler: reconciler,
		logger:     logger,
		schedule:   schedule,
	}
}

// Start registers the sweep and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.reconciler.Run); err != nil {
		s.logger.Error("failed to schedule reconciliation sweep", "error", err)
		return err
	}
	s.logger.Info("scheduled reconciliation sweep", "schedule", s.schedule)
	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
