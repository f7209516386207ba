package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dummybank/payment-service/internal/domain"
	"github.com/dummybank/payment-service/internal/store"
)

// memRepo is an in-memory store.Repository with the same locking and
// compare-and-set semantics as the Postgres implementation.
type memRepo struct {
	mu           sync.Mutex
	accounts     map[int64]*domain.Account
	pinHashes    map[int64]string
	services     map[int64]*domain.Service
	payments     map[int64]*domain.Payment
	transactions []domain.Transaction
	nextPayment  int64
	nextTxn      int64

	updateErr error
	settleErr error
	refundErr error
	// honourCtx makes writes fail on a cancelled context, as pgx does.
	honourCtx bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		accounts:  map[int64]*domain.Account{},
		pinHashes: map[int64]string{},
		services:  map[int64]*domain.Service{},
		payments:  map[int64]*domain.Payment{},
	}
}

func (r *memRepo) addAccount(a domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = &a
}

func (r *memRepo) addService(s domain.Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[s.ID] = &s
}

func (r *memRepo) balance(accountID int64) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[accountID].Balance
}

func (r *memRepo) payment(id int64) domain.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.payments[id]
}

func (r *memRepo) transactionsFor(paymentID int64) []domain.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, t := range r.transactions {
		if t.PaymentID != nil && *t.PaymentID == paymentID {
			out = append(out, t)
		}
	}
	return out
}

func (r *memRepo) GetAccountForUser(ctx context.Context, userID, accountID int64) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok || a.UserID != userID {
		return nil, store.ErrAccountNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *memRepo) ListAccountsByUser(ctx context.Context, userID int64) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Account, 0)
	for _, a := range r.accounts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) GetUserPINHash(ctx context.Context, userID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hash, ok := r.pinHashes[userID]
	if !ok {
		return "", store.ErrUserNotFound
	}
	if hash == "" {
		return "", store.ErrPINNotSet
	}
	return hash, nil
}

func (r *memRepo) GetService(ctx context.Context, serviceID int64) (*domain.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[serviceID]
	if !ok {
		return nil, store.ErrServiceNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *memRepo) ListServices(ctx context.Context) ([]domain.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Service, 0, len(r.services))
	for _, s := range r.services {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[payment.ServiceID]; !ok {
		return store.ErrServiceNotFound
	}
	r.nextPayment++
	payment.ID = r.nextPayment
	payment.CreatedAt = time.Now().UTC()
	payment.UpdatedAt = payment.CreatedAt
	copied := *payment
	r.payments[payment.ID] = &copied
	return nil
}

func (r *memRepo) GetPaymentForUser(ctx context.Context, userID, paymentID int64) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[paymentID]
	if !ok || p.UserID != userID {
		return nil, store.ErrPaymentNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *memRepo) UpdatePayment(ctx context.Context, payment *domain.Payment, expected ...domain.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if r.honourCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	stored, ok := r.payments[payment.ID]
	if !ok || !statusIn(stored.Status, expected) {
		return store.ErrPaymentStateConflict
	}
	debited := stored.Debited
	copied := *payment
	copied.Debited = debited
	copied.UpdatedAt = time.Now().UTC()
	r.payments[payment.ID] = &copied
	payment.UpdatedAt = copied.UpdatedAt
	return nil
}

func (r *memRepo) ListPaymentsNeedingReconciliation(ctx context.Context, staleBefore time.Time, limit int) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Payment, 0)
	for _, p := range r.payments {
		if p.Status == domain.PaymentReversalFailed || (p.Status == domain.PaymentCommitted && p.UpdatedAt.Before(staleBefore)) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) SettlePaymentDebit(ctx context.Context, params store.SettleDebitParams) (*store.LedgerResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settleErr != nil {
		return nil, r.settleErr
	}
	a, ok := r.accounts[params.AccountID]
	if !ok || a.UserID != params.UserID {
		return nil, store.ErrAccountNotFound
	}
	if a.Balance.LessThan(params.Amount) {
		return nil, store.ErrInsufficientFunds
	}
	p, ok := r.payments[params.PaymentID]
	if !ok || p.Status != domain.PaymentCommitted || p.Debited {
		return nil, store.ErrPaymentStateConflict
	}

	a.Balance = a.Balance.Sub(params.Amount)
	p.Debited = true
	txn := r.appendTransaction(params.PaymentID, params.UserID, a.ID, params.Reference, params.Amount, params.Currency, domain.DirectionDebit, params.Description, params.At)
	return &store.LedgerResult{Transaction: txn, NewBalance: a.Balance}, nil
}

func (r *memRepo) RefundPaymentCredit(ctx context.Context, params store.RefundCreditParams) (*store.LedgerResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refundErr != nil {
		return nil, r.refundErr
	}
	p, ok := r.payments[params.PaymentID]
	if !ok || p.UserID != params.UserID {
		return nil, store.ErrPaymentNotFound
	}
	if len(params.Expected) > 0 && !statusIn(p.Status, params.Expected) {
		return nil, store.ErrPaymentStateConflict
	}
	a := r.accounts[p.AccountID]
	result := &store.LedgerResult{NewBalance: a.Balance}
	if p.Debited {
		a.Balance = a.Balance.Add(p.TotalAmount)
		result.NewBalance = a.Balance
		result.Transaction = r.appendTransaction(p.ID, p.UserID, a.ID, p.ReferenceNumber, p.TotalAmount, p.Currency, domain.DirectionCredit, params.Description, params.At)
	}
	p.Status = domain.PaymentReversed
	p.Debited = false
	p.ReversalTransactionID = params.ReversalTransactionID
	p.ReversalAcknowledgementID = params.ReversalAcknowledgementID
	p.FailureReason = params.FailureReason
	p.UpdatedAt = time.Now().UTC()
	return result, nil
}

func (r *memRepo) appendTransaction(paymentID, userID, accountID int64, ref string, amount decimal.Decimal, cur, direction, description string, at time.Time) *domain.Transaction {
	r.nextTxn++
	pid := paymentID
	txn := domain.Transaction{
		ID:              r.nextTxn,
		UserID:          userID,
		AccountID:       accountID,
		PaymentID:       &pid,
		ReferenceNumber: ref,
		Amount:          amount,
		Currency:        cur,
		Direction:       direction,
		Description:     description,
		TransactionID:   domain.LedgerTransactionID(at, r.nextTxn),
		CreatedAt:       at,
	}
	r.transactions = append(r.transactions, txn)
	return &txn
}

func (r *memRepo) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]domain.TransactionDetail, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.TransactionDetail
	for i := len(r.transactions) - 1; i >= 0; i-- {
		if r.transactions[i].UserID == userID {
			all = append(all, r.detail(r.transactions[i]))
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []domain.TransactionDetail{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *memRepo) GetTransactionForUser(ctx context.Context, userID, transactionID int64) (*domain.TransactionDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.transactions {
		if t.ID == transactionID && t.UserID == userID {
			d := r.detail(t)
			return &d, nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (r *memRepo) detail(t domain.Transaction) domain.TransactionDetail {
	d := domain.TransactionDetail{Transaction: t}
	if t.PaymentID != nil {
		if p, ok := r.payments[*t.PaymentID]; ok {
			copied := *p
			d.Payment = &copied
			if s, ok := r.services[p.ServiceID]; ok {
				svc := *s
				d.Service = &svc
			}
		}
	}
	return d
}

func statusIn(status domain.PaymentStatus, expected []domain.PaymentStatus) bool {
	for _, e := range expected {
		if e == status {
			return true
		}
	}
	return false
}
