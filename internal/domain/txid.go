package domain

import (
	"fmt"
	"time"
)

const txidTimeLayout = "20060102150405"

// ledgerTransactionPrefix keeps ledger ids out of the gateway commit namespace.
const ledgerTransactionPrefix = "TXN"

// FormatTransactionID renders UTC YYYYmmddHHMMSS followed by the zero padded id.
func FormatTransactionID(at time.Time, id int64) string {
	return at.UTC().Format(txidTimeLayout) + fmt.Sprintf("%06d", id)
}

// LedgerTransactionID is the human readable id of a ledger row. It never collides
// with a commit id, even when the row id equals a payment id in the same second.
func LedgerTransactionID(at time.Time, rowID int64) string {
	return ledgerTransactionPrefix + FormatTransactionID(at, rowID)
}

// NewCommitTransactionID returns a commit id for paymentID that differs from the
// previous attempt's id, so a retried commit never reuses an identifier.
func NewCommitTransactionID(now time.Time, paymentID int64, previous string) string {
	id := FormatTransactionID(now, paymentID)
	for id == previous {
		now = now.Add(time.Second)
		id = FormatTransactionID(now, paymentID)
	}
	return id
}

// ReversalTransactionID derives the reversal id sent to the gateway.
func ReversalTransactionID(commitTransactionID string) string {
	return "REV" + commitTransactionID
}
