package ospclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// StatusOK is the response_code the gateway uses for success.
const StatusOK = 200

// StatusAlreadyPaid is returned by query-payment when the bill was settled already.
const StatusAlreadyPaid = 423

// CDCLayout is the gateway's local settlement timestamp format (UTC+7).
const CDCLayout = "2006-01-02 15:04:05"

var (
	// ErrGatewayUnreachable covers transport failures: dial errors, timeouts,
	// unreadable bodies and an open circuit breaker.
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")
	// ErrGatewayRejected matches every *GatewayError.
	ErrGatewayRejected = errors.New("payment gateway rejected the request")
	// ErrAlreadyPaid matches a *GatewayError carrying response code 423.
	ErrAlreadyPaid = errors.New("invoice already paid")
)

// GatewayError is a reachable gateway answering with a non-200 response code.
type GatewayError struct {
	Op      string
	Code    int
	Message string
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("osp %s rejected: code %d", e.Op, e.Code)
	}
	return fmt.Sprintf("osp %s rejected: code %d: %s", e.Op, e.Code, e.Message)
}

func (e *GatewayError) Is(target error) bool {
	switch target {
	case ErrGatewayRejected:
		return true
	case ErrAlreadyPaid:
		return e.Code == StatusAlreadyPaid
	}
	return false
}

// Transient reports whether the rejection is worth retrying.
func (e *GatewayError) Transient() bool {
	return e.Code >= 500
}

// IsTransient reports whether err is a failure a bounded retry may fix.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrGatewayUnreachable) {
		return true
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Transient()
	}
	return false
}

// InvoiceInfo is the bill description returned by query-payment.
type InvoiceInfo struct {
	ResponseCode    int
	ResponseMsg     string
	ReferenceNumber string
	CustomerName    string
	Amount          decimal.Decimal
	Currency        string
	SessionID       string
}

// CommitResult is returned by commit-payment.
type CommitResult struct {
	ResponseCode           int
	ResponseMsg            string
	TransactionID          string
	AcknowledgementID      string
	CDCTransactionDatetime string
}

// ConfirmResult is returned by confirm-payment.
type ConfirmResult struct {
	ResponseCode           int
	ResponseMsg            string
	TransactionID          string
	AcknowledgementID      string
	CDCTransactionDatetime string
}

// ReverseResult is returned by reverse-payment.
type ReverseResult struct {
	ResponseCode              int
	ResponseMsg               string
	ReversalTransactionID     string
	ReversalAcknowledgementID string
}

// envelope is the union of fields the gateway returns across operations.
type envelope struct {
	ResponseCode              flexInt    `json:"response_code"`
	ResponseMsg               flexString `json:"response_msg"`
	Detail                    flexString `json:"detail"`
	ReferenceNumber           flexString `json:"reference_number"`
	CustomerName              flexString `json:"customer_name"`
	Amount                    flexString `json:"amount"`
	Currency                  flexString `json:"currency"`
	SessionID                 flexString `json:"session_id"`
	TransactionID             flexString `json:"transaction_id"`
	AcknowledgementID         flexString `json:"acknowledgement_id"`
	CDCTransactionDatetime    flexString `json:"cdc_transaction_datetime"`
	ReversalTransactionID     flexString `json:"reversal_transaction_id"`
	ReversalAcknowledgementID flexString `json:"reversal_acknowledgement_id"`
}

func (e *envelope) message() string {
	if msg := strings.TrimSpace(string(e.ResponseMsg)); msg != "" {
		return msg
	}
	return strings.TrimSpace(string(e.Detail))
}

// flexString accepts JSON strings, numbers and null.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	// numbers and nested objects are kept verbatim
	*s = flexString(data)
	return nil
}

// flexInt accepts 200 and "200". Zero means absent.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	var raw flexString
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	value := strings.TrimSpace(string(raw))
	if value == "" {
		*n = 0
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid response_code %q: %w", value, err)
	}
	*n = flexInt(parsed)
	return nil
}
