package app

import (
	"errors"

	"github.com/dummybank/payment-service/internal/currency"
	"github.com/dummybank/payment-service/pkg/ospclient"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidPINFormat  = errors.New("pin must be exactly 4 digits")
	ErrInvalidCredential = errors.New("invalid pin")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInvalidState      = errors.New("payment is not in a state that allows this operation")
	ErrRateLimited       = errors.New("too many requests")
	// ErrPaymentReversed means confirmation failed after commit and the payment
	// was reversed; the account balance is unchanged.
	ErrPaymentReversed = errors.New("payment failed and was reversed")
	// ErrReconciliationRequired means the compensating reversal failed too.
	ErrReconciliationRequired = errors.New("manual reconciliation required")

	ErrConfiguration      = currency.ErrConfiguration
	ErrGatewayUnreachable = ospclient.ErrGatewayUnreachable
	ErrGatewayRejected    = ospclient.ErrGatewayRejected
	ErrAlreadyPaid        = ospclient.ErrAlreadyPaid
)
