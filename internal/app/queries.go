package app

import (
	"context"

	"github.com/dummybank/payment-service/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps the page offset well inside int range.
	MaxPage = 1_000_000
)

// ListAccounts returns the caller's accounts.
func (s *Service) ListAccounts(ctx context.Context, userID int64) ([]domain.Account, error) {
	accounts, err := s.repo.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, wrapLookupError(err, "accounts")
	}
	return accounts, nil
}

// ListServices returns the biller catalog.
func (s *Service) ListServices(ctx context.Context) ([]domain.Service, error) {
	services, err := s.repo.ListServices(ctx)
	if err != nil {
		return nil, wrapLookupError(err, "services")
	}
	return services, nil
}

// GetPayment returns one of the caller's payments.
func (s *Service) GetPayment(ctx context.Context, userID, paymentID int64) (*domain.PaymentView, error) {
	payment, err := s.repo.GetPaymentForUser(ctx, userID, paymentID)
	if err != nil {
		return nil, wrapLookupError(err, "payment")
	}
	view := domain.NewPaymentView(payment, s.serviceOrNil(ctx, payment.ServiceID))
	return &view, nil
}

// ListTransactions returns a page of the caller's ledger history, newest first.
// Page is 1-based; out of range values fall back to the defaults.
func (s *Service) ListTransactions(ctx context.Context, userID int64, page, pageSize int) (*domain.TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	details, total, err := s.repo.ListTransactions(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, wrapLookupError(err, "transactions")
	}

	items := make([]domain.TransactionView, 0, len(details))
	for _, d := range details {
		items = append(items, domain.NewTransactionView(d))
	}
	return &domain.TransactionPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// GetTransaction returns one of the caller's ledger transactions.
func (s *Service) GetTransaction(ctx context.Context, userID, transactionID int64) (*domain.TransactionView, error) {
	detail, err := s.repo.GetTransactionForUser(ctx, userID, transactionID)
	if err != nil {
		return nil, wrapLookupError(err, "transaction")
	}
	view := domain.NewTransactionView(*detail)
	return &view, nil
}
