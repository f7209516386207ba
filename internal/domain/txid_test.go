package domain

import (
	"testing"
	"time"
)

func TestFormatTransactionID(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("ICT", 7*3600))
	if got := FormatTransactionID(at, 42); got != "20250101200405000042" {
		t.Fatalf("unexpected id %q", got)
	}
}

func TestNewCommitTransactionIDIsFreshPerAttempt(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	first := NewCommitTransactionID(now, 7, "")
	second := NewCommitTransactionID(now, 7, first)
	if first == second {
		t.Fatalf("retry reused commit id %q", first)
	}
	if second != "20250102030406000007" {
		t.Fatalf("unexpected retry id %q", second)
	}
}

func TestLedgerTransactionIDNeverMatchesCommitID(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	ledger := LedgerTransactionID(now, 1)
	if ledger != "TXN20250102030405000001" {
		t.Fatalf("unexpected ledger id %q", ledger)
	}
	if commit := NewCommitTransactionID(now, 1, ""); commit == ledger {
		t.Fatalf("ledger id %q collides with commit id", ledger)
	}
}

func TestReversalTransactionID(t *testing.T) {
	if got := ReversalTransactionID("20250102030405000007"); got != "REV20250102030405000007" {
		t.Fatalf("unexpected reversal id %q", got)
	}
}
