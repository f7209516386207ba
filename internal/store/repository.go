/**
 * @description
 * The `Repository` interface is the contract for all data access the payment-service
 * needs. Business logic depends on this interface only, so the orchestrator can be
 * tested against an in-memory implementation.
 *
 * @dependencies
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dummybank/payment-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
// Every user-facing read is scoped by user id.
type Repository interface {
	// Account methods
	GetAccountForUser(ctx context.Context, userID, accountID int64) (*domain.Account, error)
	ListAccountsByUser(ctx context.Context, userID int64) ([]domain.Account, error)

	// Credential methods
	GetUserPINHash(ctx context.Context, userID int64) (string, error)

	// Catalog methods
	GetService(ctx context.Context, serviceID int64) (*domain.Service, error)
	ListServices(ctx context.Context) ([]domain.Service, error)

	// Payment methods
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	GetPaymentForUser(ctx context.Context, userID, paymentID int64) (*domain.Payment, error)
	// UpdatePayment persists the mutable payment fields only if the stored status
	// is one of expected; otherwise it returns ErrPaymentStateConflict.
	UpdatePayment(ctx context.Context, payment *domain.Payment, expected ...domain.PaymentStatus) error
	ListPaymentsNeedingReconciliation(ctx context.Context, staleBefore time.Time, limit int) ([]domain.Payment, error)

	// Ledger methods
	SettlePaymentDebit(ctx context.Context, params SettleDebitParams) (*LedgerResult, error)
	RefundPaymentCredit(ctx context.Context, params RefundCreditParams) (*LedgerResult, error)

	// History methods
	ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]domain.TransactionDetail, int64, error)
	GetTransactionForUser(ctx context.Context, userID, transactionID int64) (*domain.TransactionDetail, error)
}

// SettleDebitParams describes the atomic ledger step of a confirmed payment.
type SettleDebitParams struct {
	PaymentID   int64
	UserID      int64
	AccountID   int64
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	Description string
	At          time.Time
}

// RefundCreditParams describes the ledger side of a successful reversal.
// The account is credited only when the payment is still marked debited.
type RefundCreditParams struct {
	PaymentID                 int64
	UserID                    int64
	Description               string
	ReversalTransactionID     string
	ReversalAcknowledgementID string
	FailureReason             string
	At                        time.Time
	Expected                  []domain.PaymentStatus
}

// LedgerResult reports the outcome of a ledger step. Transaction is nil when no
// money moved.
type LedgerResult struct {
	Transaction *domain.Transaction
	NewBalance  decimal.Decimal
}
