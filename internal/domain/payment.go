/**
 * @description
 * Core domain models for the payment-service: ledger accounts, bill payments,
 * ledger transactions and the biller catalog.
 *
 * @notes
 * - Money is decimal with two places. Invoice amounts stay in the invoice
 *   currency; fee and total are always in the account currency.
 */

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a bill payment.
type PaymentStatus string

const (
	PaymentStarted        PaymentStatus = "started"
	PaymentCommitted      PaymentStatus = "committed"
	PaymentConfirmed      PaymentStatus = "confirmed"
	PaymentReversed       PaymentStatus = "reversed"
	PaymentFailed         PaymentStatus = "failed"
	PaymentReversalFailed PaymentStatus = "reversal_failed"
)

// Terminal reports whether no further automatic transition is possible.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentConfirmed || s == PaymentReversed || s == PaymentReversalFailed
}

const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

// Account is a user's ledger account.
type Account struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Name      string          `json:"name"`
	Number    string          `json:"number"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
}

// Service is a biller in the catalog.
type Service struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	LogoURL     string `json:"logo_url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Payment is one bill payment attempt and its settlement trail.
type Payment struct {
	ID                        int64
	UserID                    int64
	AccountID                 int64
	ServiceID                 int64
	ReferenceNumber           string
	CustomerName              string
	Amount                    decimal.Decimal // invoice currency
	InvoiceCurrency           string
	Fee                       decimal.Decimal // account currency
	TotalAmount               decimal.Decimal // account currency
	Currency                  string          // account currency
	SessionID                 string
	CommitTransactionID       string
	GatewayTransactionID      string
	AcknowledgementID         string
	ReversalTransactionID     string
	ReversalAcknowledgementID string
	Debited                   bool
	Status                    PaymentStatus
	FailureReason             string
	CDCTransactionDatetime    *time.Time
	CDCTransactionDatetimeUTC *time.Time
	ConfirmedAt               *time.Time
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// Committed reports whether the gateway ever accepted a commit for this payment.
func (p *Payment) Committed() bool {
	return p.AcknowledgementID != "" || p.GatewayTransactionID != ""
}

// SettlementTransactionID is the id the gateway knows the payment by: the one it
// returned on commit, falling back to the one we sent.
func (p *Payment) SettlementTransactionID() string {
	if p.GatewayTransactionID != "" {
		return p.GatewayTransactionID
	}
	return p.CommitTransactionID
}

// Transaction is an immutable ledger movement.
type Transaction struct {
	ID              int64
	UserID          int64
	AccountID       int64
	PaymentID       *int64
	ReferenceNumber string
	Amount          decimal.Decimal
	Currency        string
	Direction       string
	Description     string
	TransactionID   string
	CreatedAt       time.Time
}

// TransactionDetail is a transaction joined with its payment and biller, used by
// the history endpoints.
type TransactionDetail struct {
	Transaction
	Payment *Payment
	Service *Service
}
