/**
 * @description
 * This file contains the payment orchestrator. The `Service` struct drives a bill
 * payment through lookup, start, commit, ledger debit and confirm, coordinating the
 * local ledger with the OSP gateway, and runs the compensating reversal when a
 * committed payment cannot be confirmed.
 *
 * Key features:
 * - Per-payment serialisation in process plus compare-and-set status writes.
 * - The ledger debit, its transaction row and the payment's debited flag commit atomically.
 * - Gateway calls go through one bounded retry helper.
 * - Publishes lifecycle events to RabbitMQ for downstream consumers.
 *
 * @dependencies
 * - internal/currency, internal/domain, internal/store: conversion, models, data access.
 * - pkg/rabbitmq: lifecycle event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dummybank/payment-service/internal/currency"
	"github.com/dummybank/payment-service/internal/domain"
	"github.com/dummybank/payment-service/internal/platform/logger"
	"github.com/dummybank/payment-service/internal/store"
	"github.com/dummybank/payment-service/pkg/rabbitmq"
)

// DefaultFeeUSD is the flat platform fee, charged in USD and converted to the
// account currency.
var DefaultFeeUSD = decimal.RequireFromString("0.50")

// ErrInvalidRequest is returned for missing or malformed caller input.
var ErrInvalidRequest = errors.New("invalid request")

// Options configures a Service.
type Options struct {
	// FeeUSD is the flat fee in USD. Negative values are treated as zero.
	FeeUSD decimal.Decimal
	Retry  RetryPolicy
	// CompensationTimeout bounds the bookkeeping and reversal that follow a commit
	// attempt. That work runs detached from the request context so a client
	// disconnect cannot abandon a half-settled payment.
	CompensationTimeout time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service provides the core business logic for bill payments.
type Service struct {
	repo          store.Repository
	gateway       Gateway
	converter     *currency.Converter
	eventProducer rabbitmq.Publisher
	logger        *slog.Logger

	feeUSD              decimal.Decimal
	retry               RetryPolicy
	compensationTimeout time.Duration
	now                 func() time.Time
	locks               *keyedMutex

	limiter     RateLimiter
	confirmRule RateLimitRule
}

// NewService creates a new payment service instance.
func NewService(repo store.Repository, gateway Gateway, converter *currency.Converter, producer rabbitmq.Publisher, log *slog.Logger, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if producer == nil {
		producer = &rabbitmq.EventProducerFallback{Logger: log}
	}
	fee := opts.FeeUSD
	if fee.IsNegative() {
		fee = decimal.Zero
	}
	retry := opts.Retry
	if retry.Attempts < 1 {
		retry = DefaultRetryPolicy
	}
	timeout := opts.CompensationTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:                repo,
		gateway:             gateway,
		converter:           converter,
		eventProducer:       producer,
		logger:              log,
		feeUSD:              currency.Quantize(fee),
		retry:               retry,
		compensationTimeout: timeout,
		now:                 now,
		locks:               newKeyedMutex(),
	}
}

// Lookup queries the gateway for an invoice. A 423 surfaces as ErrAlreadyPaid.
func (s *Service) Lookup(ctx context.Context, userID int64, referenceNumber string) (*domain.InvoiceView, error) {
	referenceNumber = strings.TrimSpace(referenceNumber)
	if referenceNumber == "" {
		return nil, fmt.Errorf("%w: reference_number is required", ErrInvalidRequest)
	}
	ctx = logger.With(ctx, "user_id", userID, "reference_number", referenceNumber)

	info, err := s.lookupInvoice(ctx, referenceNumber)
	if err != nil {
		s.logger.WarnContext(ctx, "invoice lookup failed", "err", err)
		return nil, err
	}

	return &domain.InvoiceView{
		ReferenceNumber: referenceNumber,
		CustomerName:    info.customerName,
		Amount:          currency.Quantize(info.amount),
		Currency:        currency.Normalize(info.currency),
		SessionID:       info.sessionID,
		ResponseCode:    info.code,
		ResponseMsg:     info.msg,
	}, nil
}

type invoice struct {
	customerName string
	amount       decimal.Decimal
	currency     string
	sessionID    string
	code         int
	msg          string
}

func (s *Service) lookupInvoice(ctx context.Context, referenceNumber string) (*invoice, error) {
	return withRetry(ctx, s.logger, s.retry, "lookup", func(ctx context.Context) (*invoice, error) {
		res, err := s.gateway.Lookup(ctx, referenceNumber)
		if err != nil {
			return nil, err
		}
		return &invoice{
			customerName: res.CustomerName,
			amount:       res.Amount,
			currency:     res.Currency,
			sessionID:    res.SessionID,
			code:         res.ResponseCode,
			msg:          res.ResponseMsg,
		}, nil
	})
}

// StartPaymentParams are the inputs to StartPayment.
type StartPaymentParams struct {
	UserID          int64
	AccountID       int64
	ServiceID       int64
	ReferenceNumber string
}

// StartPayment prices an invoice in the account currency, checks the balance and
// records a started payment. Nothing is reserved; the balance is checked again
// when the payment is confirmed.
func (s *Service) StartPayment(ctx context.Context, params StartPaymentParams) (*domain.PaymentView, error) {
	params.ReferenceNumber = strings.TrimSpace(params.ReferenceNumber)
	if params.ReferenceNumber == "" {
		return nil, fmt.Errorf("%w: reference_number is required", ErrInvalidRequest)
	}
	ctx = logger.With(ctx, "user_id", params.UserID, "account_id", params.AccountID, "reference_number", params.ReferenceNumber)

	account, err := s.repo.GetAccountForUser(ctx, params.UserID, params.AccountID)
	if err != nil {
		return nil, wrapLookupError(err, "account")
	}
	svc, err := s.repo.GetService(ctx, params.ServiceID)
	if err != nil {
		return nil, wrapLookupError(err, "service")
	}

	info, err := s.lookupInvoice(ctx, params.ReferenceNumber)
	if err != nil {
		s.logger.WarnContext(ctx, "lookup on start failed", "err", err)
		return nil, err
	}

	invoiceCurrency := currency.Normalize(info.currency)
	if invoiceCurrency == "" {
		invoiceCurrency = currency.KHR
	}
	sessionID := info.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	accountCurrency := currency.Normalize(account.Currency)
	invoiceAmount := currency.Quantize(info.amount)

	converted, err := s.converter.Convert(invoiceAmount, invoiceCurrency, accountCurrency)
	if err != nil {
		return nil, err
	}
	fee, err := s.converter.Convert(s.feeUSD, currency.USD, accountCurrency)
	if err != nil {
		return nil, err
	}
	total := currency.Quantize(converted.Add(fee))

	if account.Balance.LessThan(total) {
		s.logger.InfoContext(ctx, "insufficient balance for payment", "balance", account.Balance, "total", total, "currency", accountCurrency)
		return nil, ErrInsufficientFunds
	}

	payment := &domain.Payment{
		UserID:          params.UserID,
		AccountID:       account.ID,
		ServiceID:       svc.ID,
		ReferenceNumber: params.ReferenceNumber,
		CustomerName:    info.customerName,
		Amount:          invoiceAmount,
		InvoiceCurrency: invoiceCurrency,
		Fee:             fee,
		TotalAmount:     total,
		Currency:        accountCurrency,
		SessionID:       sessionID,
		Status:          domain.PaymentStarted,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, store.ErrServiceNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	ctx = logger.With(ctx, "payment_id", payment.ID)
	s.logger.InfoContext(ctx, "payment started", "invoice_amount", invoiceAmount, "invoice_currency", invoiceCurrency, "total", total, "currency", accountCurrency)
	s.publish(ctx, rabbitmq.RoutingPaymentStarted, payment, "")

	view := domain.NewPaymentView(payment, svc)
	rate := s.converter.Rate()
	view.USDToKHRRate = &rate
	return &view, nil
}

// ConfirmPayment verifies the PIN, commits the invoice at the gateway, debits the
// ledger and confirms. If the payment cannot be confirmed after a commit it is
// reversed; ErrPaymentReversed or ErrReconciliationRequired report that outcome.
func (s *Service) ConfirmPayment(ctx context.Context, userID, paymentID int64, pin string) (*domain.PaymentView, error) {
	ctx = logger.With(ctx, "user_id", userID, "payment_id", paymentID)
	started := s.now()

	if err := s.consumeConfirmBudget(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "confirm rate limited", "err", err)
		return nil, err
	}

	unlock := s.locks.Lock(paymentID)
	defer unlock()

	payment, err := s.repo.GetPaymentForUser(ctx, userID, paymentID)
	if err != nil {
		return nil, wrapLookupError(err, "payment")
	}
	account, err := s.repo.GetAccountForUser(ctx, userID, payment.AccountID)
	if err != nil {
		return nil, wrapLookupError(err, "account")
	}
	svc := s.serviceOrNil(ctx, payment.ServiceID)

	if !confirmable(payment) {
		return nil, fmt.Errorf("%w: cannot confirm a %s payment", ErrInvalidState, payment.Status)
	}
	if err := s.verifyPIN(ctx, userID, pin); err != nil {
		s.logger.WarnContext(ctx, "pin verification failed", "err", err)
		return nil, err
	}

	// Sessions expire, so refresh before committing.
	before := payment.Status
	info, err := s.lookupInvoice(ctx, payment.ReferenceNumber)
	if err != nil {
		s.fail(ctx, payment, before, "lookup on confirm: "+err.Error())
		return nil, err
	}
	if info.sessionID != "" {
		payment.SessionID = info.sessionID
	}

	// Each attempt commits under a fresh id so gateway duplicate detection never
	// rejects a legitimate retry.
	commit, err := withRetry(ctx, s.logger, s.retry, "commit", func(ctx context.Context) (*commitOutcome, error) {
		tid := domain.NewCommitTransactionID(s.now(), payment.ID, payment.CommitTransactionID)
		payment.CommitTransactionID = tid
		s.logger.InfoContext(ctx, "committing payment", "commit_transaction_id", tid)
		res, err := s.gateway.Commit(ctx, payment.ReferenceNumber, payment.SessionID, tid)
		if err != nil {
			return nil, err
		}
		return &commitOutcome{res.TransactionID, res.AcknowledgementID, res.CDCTransactionDatetime}, nil
	})

	// The gateway may hold the bill from here on, whatever the commit returned.
	ctx, cancel := s.detach(ctx)
	defer cancel()
	if err != nil {
		s.fail(ctx, payment, before, "commit: "+err.Error())
		return nil, err
	}

	payment.GatewayTransactionID = commit.transactionID
	payment.AcknowledgementID = commit.acknowledgementID
	if commit.acknowledgementID == "" && commit.transactionID == "" {
		// Keep Committed() truthful even if the gateway echoes nothing back.
		payment.GatewayTransactionID = payment.CommitTransactionID
	}
	s.stampSettlement(ctx, payment, commit.cdcDatetime)
	payment.Status = domain.PaymentCommitted
	payment.FailureReason = ""
	if err := s.repo.UpdatePayment(ctx, payment, before); err != nil {
		return nil, s.compensate(ctx, payment, svc, before, fmt.Errorf("failed to record commit: %w", err))
	}
	s.logger.InfoContext(ctx, "payment committed", "gateway_transaction_id", payment.GatewayTransactionID, "acknowledgement_id", payment.AcknowledgementID)

	ledger, err := s.repo.SettlePaymentDebit(ctx, store.SettleDebitParams{
		PaymentID:   payment.ID,
		UserID:      userID,
		AccountID:   account.ID,
		Amount:      payment.TotalAmount,
		Currency:    payment.Currency,
		Reference:   payment.ReferenceNumber,
		Description: paymentDescription(svc),
		At:          s.now(),
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			err = ErrInsufficientFunds
		}
		return nil, s.compensate(ctx, payment, svc, domain.PaymentCommitted, fmt.Errorf("ledger debit: %w", err))
	}
	payment.Debited = true
	s.logger.InfoContext(ctx, "ledger debited", "transaction_id", ledger.Transaction.TransactionID, "amount", payment.TotalAmount, "new_balance", ledger.NewBalance)

	confirmed, err := withRetry(ctx, s.logger, s.retry, "confirm", func(ctx context.Context) (string, error) {
		res, err := s.gateway.Confirm(ctx, payment.ReferenceNumber, payment.SettlementTransactionID(), payment.AcknowledgementID)
		if err != nil {
			return "", err
		}
		return res.CDCTransactionDatetime, nil
	})
	if err != nil {
		return nil, s.compensate(ctx, payment, svc, domain.PaymentCommitted, fmt.Errorf("gateway confirm: %w", err))
	}

	if payment.CDCTransactionDatetimeUTC == nil {
		s.stampSettlement(ctx, payment, confirmed)
	}
	confirmedAt := s.now().UTC()
	payment.Status = domain.PaymentConfirmed
	payment.ConfirmedAt = &confirmedAt
	if err := s.repo.UpdatePayment(ctx, payment, domain.PaymentCommitted); err != nil {
		// Gateway and ledger agree; only our status write is missing.
		s.logger.ErrorContext(ctx, "CRITICAL: payment settled but status update failed", "err", err)
		s.publish(ctx, rabbitmq.RoutingPaymentReconciliationRequired, payment, err.Error())
		return nil, fmt.Errorf("%w: payment %d settled but not recorded: %w", ErrReconciliationRequired, payment.ID, err)
	}

	s.logger.InfoContext(ctx, "payment confirmed", "transaction_id", payment.SettlementTransactionID(), "elapsed", s.now().Sub(started))
	s.publish(ctx, rabbitmq.RoutingPaymentConfirmed, payment, "")

	view := domain.NewPaymentView(payment, svc)
	balance := ledger.NewBalance
	debited := payment.TotalAmount
	view.NewBalance = &balance
	view.AmountDebited = &debited
	return &view, nil
}

type commitOutcome struct {
	transactionID     string
	acknowledgementID string
	cdcDatetime       string
}

// ReversePayment undoes a payment. The gateway is only called when a commit
// happened; the account is credited back only when it was debited.
func (s *Service) ReversePayment(ctx context.Context, userID, paymentID int64) (*domain.PaymentView, error) {
	ctx = logger.With(ctx, "user_id", userID, "payment_id", paymentID)

	unlock := s.locks.Lock(paymentID)
	defer unlock()

	payment, err := s.repo.GetPaymentForUser(ctx, userID, paymentID)
	if err != nil {
		return nil, wrapLookupError(err, "payment")
	}
	svc := s.serviceOrNil(ctx, payment.ServiceID)

	switch payment.Status {
	case domain.PaymentStarted, domain.PaymentCommitted, domain.PaymentFailed, domain.PaymentConfirmed, domain.PaymentReversalFailed:
	default:
		return nil, fmt.Errorf("%w: cannot reverse a %s payment", ErrInvalidState, payment.Status)
	}

	before := payment.Status
	if !payment.Committed() {
		// Nothing is held at the gateway.
		result, err := s.repo.RefundPaymentCredit(ctx, store.RefundCreditParams{
			PaymentID:     payment.ID,
			UserID:        userID,
			Description:   reversalDescription(svc),
			FailureReason: payment.FailureReason,
			At:            s.now(),
			Expected:      []domain.PaymentStatus{before},
		})
		if err != nil {
			return nil, s.ledgerError(err)
		}
		payment.Status = domain.PaymentReversed
		payment.Debited = false
		s.logger.InfoContext(ctx, "payment cancelled locally", "previous_status", before)
		s.publish(ctx, rabbitmq.RoutingPaymentReversed, payment, "")
		view := domain.NewPaymentView(payment, svc)
		view.NewBalance = &result.NewBalance
		return &view, nil
	}

	result, err := s.reverseAtGateway(ctx, payment, svc, before, payment.FailureReason)
	if err != nil {
		if errors.Is(err, ErrReconciliationRequired) {
			return nil, err
		}
		if before == domain.PaymentConfirmed {
			// The settled payment is still consistent on both sides.
			s.logger.WarnContext(ctx, "refund reversal failed; payment stays confirmed", "err", err)
			return nil, err
		}
		s.markReversalFailed(ctx, payment, before, err)
		return nil, fmt.Errorf("%w: %w", ErrReconciliationRequired, err)
	}

	view := domain.NewPaymentView(payment, svc)
	view.NewBalance = &result.NewBalance
	return &view, nil
}

// compensate reverses a payment after a failure that followed a successful
// commit. It runs on a context detached from the caller's cancellation.
func (s *Service) compensate(ctx context.Context, payment *domain.Payment, svc *domain.Service, expected domain.PaymentStatus, cause error) error {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	s.logger.ErrorContext(ctx, "payment failed after commit; reversing", "err", cause, "debited", payment.Debited)

	if _, err := s.reverseAtGateway(ctx, payment, svc, expected, cause.Error()); err != nil {
		if !errors.Is(err, ErrReconciliationRequired) {
			s.markReversalFailed(ctx, payment, expected, fmt.Errorf("%v; reversal: %w", cause, err))
		}
		return fmt.Errorf("%w: payment %d: %w", ErrReconciliationRequired, payment.ID, cause)
	}
	return fmt.Errorf("%w: %w", ErrPaymentReversed, cause)
}

// reverseAtGateway issues the gateway reversal and, on success, refunds the
// ledger and marks the payment reversed. A gateway failure is returned as is and
// leaves the payment untouched. A refund failure after the gateway reversed is
// flagged here and returned as ErrReconciliationRequired.
func (s *Service) reverseAtGateway(ctx context.Context, payment *domain.Payment, svc *domain.Service, expected domain.PaymentStatus, reason string) (*store.LedgerResult, error) {
	reversalID := domain.ReversalTransactionID(payment.CommitTransactionID)
	ackID := payment.ReversalAcknowledgementID
	if payment.Status == domain.PaymentReversalFailed && ackID != "" {
		// An earlier attempt reversed at the gateway; only the refund is owed.
		s.logger.InfoContext(ctx, "gateway already reversed; retrying ledger refund", "reversal_acknowledgement_id", ackID)
	} else {
		ack, err := withRetry(ctx, s.logger, s.retry, "reverse", func(ctx context.Context) (string, error) {
			res, err := s.gateway.Reverse(ctx, payment.ReferenceNumber, payment.SettlementTransactionID(), reversalID)
			if err != nil {
				return "", err
			}
			return res.ReversalAcknowledgementID, nil
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "gateway reversal failed", "reversal_transaction_id", reversalID, "err", err)
			return nil, err
		}
		ackID = ack
	}

	result, err := s.repo.RefundPaymentCredit(ctx, store.RefundCreditParams{
		PaymentID:                 payment.ID,
		UserID:                    payment.UserID,
		Description:               reversalDescription(svc),
		ReversalTransactionID:     reversalID,
		ReversalAcknowledgementID: ackID,
		FailureReason:             reason,
		At:                        s.now(),
		Expected:                  []domain.PaymentStatus{expected},
	})
	if err != nil {
		refundErr := fmt.Errorf("reversed at gateway but ledger refund failed: %w", s.ledgerError(err))
		s.logger.ErrorContext(ctx, "CRITICAL: reversed at gateway but ledger refund failed", "err", err)
		payment.ReversalAcknowledgementID = ackID
		s.markReversalFailed(ctx, payment, expected, refundErr)
		s.publish(ctx, rabbitmq.RoutingPaymentReconciliationRequired, payment, refundErr.Error())
		return nil, fmt.Errorf("%w: payment %d: %w", ErrReconciliationRequired, payment.ID, refundErr)
	}

	refunded := payment.Debited
	payment.Status = domain.PaymentReversed
	payment.Debited = false
	payment.ReversalTransactionID = reversalID
	payment.ReversalAcknowledgementID = ackID
	payment.FailureReason = reason
	s.logger.InfoContext(ctx, "payment reversed", "reversal_transaction_id", reversalID, "refunded", refunded, "new_balance", result.NewBalance)
	s.publish(ctx, rabbitmq.RoutingPaymentReversed, payment, reason)
	return result, nil
}

// fail marks a payment that never reached the gateway's books as failed.
func (s *Service) fail(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus, reason string) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	payment.Status = domain.PaymentFailed
	payment.FailureReason = reason
	if err := s.repo.UpdatePayment(ctx, payment, expected); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark payment failed", "err", err)
		return
	}
	s.logger.WarnContext(ctx, "payment failed", "reason", reason)
	s.publish(ctx, rabbitmq.RoutingPaymentFailed, payment, reason)
}

func (s *Service) markReversalFailed(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus, cause error) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	payment.Status = domain.PaymentReversalFailed
	payment.FailureReason = cause.Error()
	payment.ReversalTransactionID = domain.ReversalTransactionID(payment.CommitTransactionID)
	if err := s.repo.UpdatePayment(ctx, payment, expected); err != nil {
		s.logger.ErrorContext(ctx, "CRITICAL: failed to flag payment for reconciliation", "err", err)
	}
	s.logger.ErrorContext(ctx, "CRITICAL: payment requires manual reconciliation", "reason", payment.FailureReason, "debited", payment.Debited)
	s.publish(ctx, rabbitmq.RoutingPaymentReversalFailed, payment, payment.FailureReason)
}

// detach keeps ctx's values but not its cancellation, bounded by the
// compensation timeout.
func (s *Service) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
}

func (s *Service) stampSettlement(ctx context.Context, payment *domain.Payment, raw string) {
	if raw == "" {
		return
	}
	local, utc, ok := domain.ParseSettlementTime(raw)
	if !ok {
		s.logger.WarnContext(ctx, "unparseable cdc_transaction_datetime", "value", raw)
		return
	}
	payment.CDCTransactionDatetime = &local
	payment.CDCTransactionDatetimeUTC = &utc
}

func (s *Service) publish(ctx context.Context, routingKey string, payment *domain.Payment, reason string) {
	event := rabbitmq.PaymentEvent{
		PaymentID:       payment.ID,
		UserID:          payment.UserID,
		AccountID:       payment.AccountID,
		ReferenceNumber: payment.ReferenceNumber,
		Status:          string(payment.Status),
		TotalAmount:     payment.TotalAmount,
		Currency:        payment.Currency,
		TransactionID:   payment.SettlementTransactionID(),
		Reason:          reason,
		Timestamp:       s.now().UTC(),
	}
	if err := s.eventProducer.PublishPaymentEvent(ctx, routingKey, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish payment event", "routing_key", routingKey, "err", err)
	}
}

func (s *Service) serviceOrNil(ctx context.Context, serviceID int64) *domain.Service {
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		s.logger.WarnContext(ctx, "service not found for payment", "service_id", serviceID, "err", err)
		return nil
	}
	return svc
}

func (s *Service) ledgerError(err error) error {
	switch {
	case errors.Is(err, store.ErrPaymentStateConflict):
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	case errors.Is(err, store.ErrPaymentNotFound), errors.Is(err, store.ErrAccountNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return err
	}
}

// confirmable allows a first confirm, or a retry of a failed payment that never
// reached the gateway's books.
func confirmable(p *domain.Payment) bool {
	switch p.Status {
	case domain.PaymentStarted:
		return true
	case domain.PaymentFailed:
		return !p.Committed() && !p.Debited
	default:
		return false
	}
}

func wrapLookupError(err error, what string) error {
	switch {
	case errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrServiceNotFound),
		errors.Is(err, store.ErrPaymentNotFound),
		errors.Is(err, store.ErrTransactionNotFound),
		errors.Is(err, store.ErrUserNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return fmt.Errorf("failed to load %s: %w", what, err)
	}
}

func paymentDescription(svc *domain.Service) string {
	if svc == nil {
		return "Bill payment"
	}
	return "Payment to " + svc.Name
}

func reversalDescription(svc *domain.Service) string {
	if svc == nil {
		return "Bill payment reversal"
	}
	return "Reversal of payment to " + svc.Name
}
