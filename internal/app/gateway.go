package app

import (
	"context"

	"github.com/dummybank/payment-service/pkg/ospclient"
)

// Gateway is the external bill-payment network. The live OSP client and the
// in-memory mock both satisfy it; cmd/main.go picks one at startup.
type Gateway interface {
	Lookup(ctx context.Context, referenceNumber string) (*ospclient.InvoiceInfo, error)
	Commit(ctx context.Context, referenceNumber, sessionID, transactionID string) (*ospclient.CommitResult, error)
	Confirm(ctx context.Context, referenceNumber, transactionID, acknowledgementID string) (*ospclient.ConfirmResult, error)
	Reverse(ctx context.Context, referenceNumber, transactionID, reversalTransactionID string) (*ospclient.ReverseResult, error)
}

var (
	_ Gateway = (*ospclient.Client)(nil)
	_ Gateway = (*ospclient.Mock)(nil)
)
