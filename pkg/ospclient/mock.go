package ospclient

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockBill is one invoice known to the mock gateway.
type MockBill struct {
	CustomerName string
	Amount       decimal.Decimal
	Currency     string
	SessionID    string
}

// DefaultMockBills mirrors the bills served by the OSP sandbox.
func DefaultMockBills() map[string]MockBill {
	return map[string]MockBill{
		"00A0000000000": {CustomerName: "Cathainote Co., Ltd", Amount: decimal.NewFromInt(230), Currency: "USD", SessionID: "SESS618112"},
		"00B0000000001": {CustomerName: "Darachhat Co., Ltd", Amount: decimal.NewFromInt(170), Currency: "USD", SessionID: "SESS618113"},
		"00C0000000002": {CustomerName: "Phnom Penh Water Supply", Amount: decimal.NewFromInt(23000), Currency: "KHR", SessionID: "SESS618114"},
	}
}

// Mock is an in-memory gateway. Confirmed bills answer lookups with 423 until
// they are reversed. Failures can be scripted per operation with FailNext.
type Mock struct {
	mu       sync.Mutex
	bills    map[string]MockBill
	paid     map[string]bool
	failures map[string][]error
	calls    map[string]int
	now      func() time.Time
	logger   *slog.Logger
}

// NewMock returns a mock gateway serving the given bills (DefaultMockBills when nil).
func NewMock(bills map[string]MockBill, logger *slog.Logger) *Mock {
	if bills == nil {
		bills = DefaultMockBills()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mock{
		bills:    bills,
		paid:     make(map[string]bool),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
		now:      time.Now,
		logger:   logger.With("component", "osp_mock"),
	}
}

// AddBill registers or replaces a bill.
func (m *Mock) AddBill(referenceNumber string, bill MockBill) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bills[referenceNumber] = bill
	delete(m.paid, referenceNumber)
}

// FailNext queues errors returned by the next calls of op
// ("lookup", "commit", "confirm", "reverse"), one per call.
func (m *Mock) FailNext(op string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], errs...)
}

// Calls returns how many times op was invoked.
func (m *Mock) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *Mock) enter(ctx context.Context, op string, args ...any) error {
	m.calls[op]++
	m.logger.InfoContext(ctx, "osp mock call", append([]any{"op", op}, args...)...)
	if queued := m.failures[op]; len(queued) > 0 {
		m.failures[op] = queued[1:]
		return queued[0]
	}
	return nil
}

// stamp formats now the way CDC does: local business time, UTC+7.
func (m *Mock) stamp() string {
	return m.now().UTC().Add(7 * time.Hour).Format(CDCLayout)
}

func (m *Mock) Lookup(ctx context.Context, referenceNumber string) (*InvoiceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, opLookup, "reference_number", referenceNumber); err != nil {
		return nil, err
	}

	bill, ok := m.bills[referenceNumber]
	if !ok {
		return nil, &GatewayError{Op: opLookup, Code: 404, Message: "Reference not found"}
	}
	if m.paid[referenceNumber] {
		return nil, &GatewayError{Op: opLookup, Code: StatusAlreadyPaid, Message: "Bill already paid"}
	}
	return &InvoiceInfo{
		ResponseCode:    StatusOK,
		ResponseMsg:     "Bill found",
		ReferenceNumber: referenceNumber,
		CustomerName:    bill.CustomerName,
		Amount:          bill.Amount,
		Currency:        strings.ToUpper(bill.Currency),
		SessionID:       bill.SessionID,
	}, nil
}

func (m *Mock) Commit(ctx context.Context, referenceNumber, sessionID, transactionID string) (*CommitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, opCommit, "reference_number", referenceNumber, "transaction_id", transactionID); err != nil {
		return nil, err
	}
	if _, ok := m.bills[referenceNumber]; !ok {
		return nil, &GatewayError{Op: opCommit, Code: 404, Message: "Reference not found at OSP"}
	}
	return &CommitResult{
		ResponseCode:           StatusOK,
		ResponseMsg:            "Commit successful",
		TransactionID:          "CDC" + transactionID,
		AcknowledgementID:      "AID" + shortID(),
		CDCTransactionDatetime: m.stamp(),
	}, nil
}

func (m *Mock) Confirm(ctx context.Context, referenceNumber, transactionID, acknowledgementID string) (*ConfirmResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, opConfirm, "reference_number", referenceNumber, "transaction_id", transactionID); err != nil {
		return nil, err
	}
	if _, ok := m.bills[referenceNumber]; !ok {
		return nil, &GatewayError{Op: opConfirm, Code: 400, Message: "Confirmation failed at OSP"}
	}
	m.paid[referenceNumber] = true
	return &ConfirmResult{
		ResponseCode:           StatusOK,
		ResponseMsg:            "Confirmed successfully",
		TransactionID:          transactionID,
		AcknowledgementID:      acknowledgementID,
		CDCTransactionDatetime: m.stamp(),
	}, nil
}

func (m *Mock) Reverse(ctx context.Context, referenceNumber, transactionID, reversalTransactionID string) (*ReverseResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, opReverse, "reference_number", referenceNumber, "transaction_id", transactionID); err != nil {
		return nil, err
	}
	if _, ok := m.bills[referenceNumber]; !ok {
		return nil, &GatewayError{Op: opReverse, Code: 404, Message: "Reference not found at OSP"}
	}
	delete(m.paid, referenceNumber)
	return &ReverseResult{
		ResponseCode:              StatusOK,
		ResponseMsg:               "Reversal successful",
		ReversalTransactionID:     reversalTransactionID,
		ReversalAcknowledgementID: "RAID" + shortID(),
	}, nil
}

// Unreachable builds the error a transport failure would produce, for scripting.
func Unreachable(op string) error {
	return fmt.Errorf("%w: osp %s: connection refused", ErrGatewayUnreachable, op)
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}
