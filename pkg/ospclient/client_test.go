package ospclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(baseURL string) *Client {
	return NewClient(baseURL, "Bearer token", "DUMMYBANK", 2*time.Second, discardLogger())
}

func TestLookupSendsPartnerAndAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query-payment" || r.Method != http.MethodGet {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Fatalf("expected authorization header, got %q", got)
		}
		if r.URL.Query().Get("partner") != "DUMMYBANK" || r.URL.Query().Get("reference_number") != "00C0000000002" {
			t.Fatalf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response_code":"200","response_msg":"Bill found","reference_number":"00C0000000002","customer_name":"Water","amount":"23000","currency":"khr","session_id":"SESS1"}`))
	}))
	defer server.Close()

	info, err := newTestClient(server.URL).Lookup(context.Background(), "00C0000000002")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if !info.Amount.Equal(decimal.NewFromInt(23000)) || info.Currency != "KHR" || info.SessionID != "SESS1" {
		t.Fatalf("unexpected invoice: %+v", info)
	}
}

func TestLookupAlreadyPaid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response_code":423,"response_msg":"Bill already paid"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Lookup(context.Background(), "00A0000000000")
	if !errors.Is(err, ErrAlreadyPaid) || !errors.Is(err, ErrGatewayRejected) {
		t.Fatalf("expected already-paid rejection, got %v", err)
	}
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) || gwErr.Message != "Bill already paid" {
		t.Fatalf("expected gateway message to survive, got %v", err)
	}
}

func TestCommitPostsForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/commit-payment" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		for key, want := range map[string]string{
			"reference_number": "00A0000000000",
			"session_id":       "SESS618112",
			"transaction_id":   "20250101120000000042",
			"partner":          "DUMMYBANK",
		} {
			if got := r.PostForm.Get(key); got != want {
				t.Fatalf("form %s = %q, want %q", key, got, want)
			}
		}
		_, _ = w.Write([]byte(`{"response_code":200,"transaction_id":"OSP-9","acknowledgement_id":"AID1","cdc_transaction_datetime":"2025-01-01 19:00:00"}`))
	}))
	defer server.Close()

	res, err := newTestClient(server.URL).Commit(context.Background(), "00A0000000000", "SESS618112", "20250101120000000042")
	if err != nil {
		t.Fatalf("Commit returned error: %v", err)
	}
	if res.TransactionID != "OSP-9" || res.AcknowledgementID != "AID1" || res.CDCTransactionDatetime != "2025-01-01 19:00:00" {
		t.Fatalf("unexpected commit result: %+v", res)
	}
}

func TestHTTPErrorWithoutResponseCodeIsTransientRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"OSP temporary failure"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Confirm(context.Background(), "ref", "tid", "aid")
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) || gwErr.Code != 500 || gwErr.Message != "OSP temporary failure" {
		t.Fatalf("expected 500 gateway error, got %v", err)
	}
	if !IsTransient(err) {
		t.Fatal("5xx rejection should be transient")
	}
}

func TestTransportFailureIsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	_, err := newTestClient(baseURL).Reverse(context.Background(), "ref", "tid", "REVtid")
	if !errors.Is(err, ErrGatewayUnreachable) {
		t.Fatalf("expected ErrGatewayUnreachable, got %v", err)
	}
	if errors.Is(err, ErrGatewayRejected) {
		t.Fatal("transport failure must not look like a rejection")
	}
}

func TestBreakerOpensAfterConsecutiveTransientFailures(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	for i := 0; i < 5; i++ {
		if _, err := client.Lookup(context.Background(), "ref"); err == nil {
			t.Fatal("expected failure")
		}
	}
	_, err := client.Lookup(context.Background(), "ref")
	if !errors.Is(err, ErrGatewayUnreachable) {
		t.Fatalf("expected short-circuit error, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 5 {
		t.Fatalf("expected breaker to stop calls after 5 hits, got %d", got)
	}
}

func TestBusinessRejectionsDoNotTripBreaker(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"response_code":404,"response_msg":"Reference not found"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	for i := 0; i < 8; i++ {
		_, _ = client.Lookup(context.Background(), "missing")
	}
	if got := atomic.LoadInt32(&hits); got != 8 {
		t.Fatalf("expected every call to reach the gateway, got %d", got)
	}
}

func TestMaskParams(t *testing.T) {
	params := url.Values{}
	params.Set("pin", "1234")
	params.Set("reference_number", "ref")

	masked := maskParams(params)
	if masked["pin"] != "***masked***" || masked["reference_number"] != "ref" {
		t.Fatalf("unexpected masked params: %v", masked)
	}
}
