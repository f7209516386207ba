/**
 * @description
 * PostgreSQL implementation of the Repository interface, built on pgx's
 * connection pool.
 *
 * @notes
 * - Ledger steps run in one database transaction that locks the account row with
 *   SELECT ... FOR UPDATE, which serialises concurrent debits per account.
 * - Payment status changes are compare-and-set on the current status.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dummybank/payment-service/internal/domain"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrServiceNotFound      = errors.New("service not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrPINNotSet            = errors.New("transaction pin not set")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrPaymentStateConflict = errors.New("payment status changed concurrently")
)

const pgForeignKeyViolation = "23503"

// PostgresRepository is the concrete implementation of the Repository interface.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, user_id, name, number, balance, currency, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Number, &a.Balance, &a.Currency, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Currency = strings.TrimSpace(a.Currency)
	return &a, nil
}

func (r *PostgresRepository) GetAccountForUser(ctx context.Context, userID, accountID int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND user_id = $2`
	account, err := scanAccount(r.db.QueryRow(ctx, query, accountID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (r *PostgresRepository) ListAccountsByUser(ctx context.Context, userID int64) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY id`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

func (r *PostgresRepository) GetUserPINHash(ctx context.Context, userID int64) (string, error) {
	var hash *string
	err := r.db.QueryRow(ctx, `SELECT pin_hash FROM users WHERE id = $1`, userID).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	if hash == nil || strings.TrimSpace(*hash) == "" {
		return "", ErrPINNotSet
	}
	return *hash, nil
}

func (r *PostgresRepository) GetService(ctx context.Context, serviceID int64) (*domain.Service, error) {
	var s domain.Service
	err := r.db.QueryRow(ctx, `SELECT id, name, code, logo_url, description FROM services WHERE id = $1`, serviceID).
		Scan(&s.ID, &s.Name, &s.Code, &s.LogoURL, &s.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) ListServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, code, logo_url, description FROM services ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := make([]domain.Service, 0)
	for rows.Next() {
		var s domain.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Code, &s.LogoURL, &s.Description); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

const paymentColumns = `
	id, user_id, account_id, service_id, reference_number, customer_name,
	amount, invoice_currency, fee, total_amount, currency, session_id,
	commit_transaction_id, gateway_transaction_id, acknowledgement_id,
	reversal_transaction_id, reversal_acknowledgement_id, debited, status, failure_reason,
	cdc_transaction_datetime, cdc_transaction_datetime_utc, confirmed_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var status string
	err := row.Scan(
		&p.ID, &p.UserID, &p.AccountID, &p.ServiceID, &p.ReferenceNumber, &p.CustomerName,
		&p.Amount, &p.InvoiceCurrency, &p.Fee, &p.TotalAmount, &p.Currency, &p.SessionID,
		&p.CommitTransactionID, &p.GatewayTransactionID, &p.AcknowledgementID,
		&p.ReversalTransactionID, &p.ReversalAcknowledgementID, &p.Debited, &status, &p.FailureReason,
		&p.CDCTransactionDatetime, &p.CDCTransactionDatetimeUTC, &p.ConfirmedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	p.Currency = strings.TrimSpace(p.Currency)
	p.InvoiceCurrency = strings.TrimSpace(p.InvoiceCurrency)
	return &p, nil
}

// CreatePayment inserts a payment and fills in its id and timestamps.
func (r *PostgresRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (
			user_id, account_id, service_id, reference_number, customer_name,
			amount, invoice_currency, fee, total_amount, currency, session_id, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		payment.UserID,
		payment.AccountID,
		payment.ServiceID,
		payment.ReferenceNumber,
		payment.CustomerName,
		payment.Amount,
		payment.InvoiceCurrency,
		payment.Fee,
		payment.TotalAmount,
		payment.Currency,
		payment.SessionID,
		string(payment.Status),
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation && strings.Contains(pgErr.ConstraintName, "service") {
			return ErrServiceNotFound
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetPaymentForUser(ctx context.Context, userID, paymentID int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 AND user_id = $2`
	payment, err := scanPayment(r.db.QueryRow(ctx, query, paymentID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// UpdatePayment writes the mutable fields of payment, guarded by the expected statuses.
func (r *PostgresRepository) UpdatePayment(ctx context.Context, payment *domain.Payment, expected ...domain.PaymentStatus) error {
	query := `
		UPDATE payments SET
			status = $3,
			session_id = $4,
			commit_transaction_id = $5,
			gateway_transaction_id = $6,
			acknowledgement_id = $7,
			reversal_transaction_id = $8,
			reversal_acknowledgement_id = $9,
			failure_reason = $10,
			cdc_transaction_datetime = $11,
			cdc_transaction_datetime_utc = $12,
			confirmed_at = $13,
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($2::text[])
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		payment.ID,
		statusStrings(expected),
		string(payment.Status),
		payment.SessionID,
		payment.CommitTransactionID,
		payment.GatewayTransactionID,
		payment.AcknowledgementID,
		payment.ReversalTransactionID,
		payment.ReversalAcknowledgementID,
		payment.FailureReason,
		payment.CDCTransactionDatetime,
		payment.CDCTransactionDatetimeUTC,
		payment.ConfirmedAt,
	).Scan(&payment.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPaymentStateConflict
		}
		return fmt.Errorf("failed to update payment %d: %w", payment.ID, err)
	}
	return nil
}

// ListPaymentsNeedingReconciliation returns payments whose reversal failed, plus
// payments stuck in committed since before staleBefore.
func (r *PostgresRepository) ListPaymentsNeedingReconciliation(ctx context.Context, staleBefore time.Time, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'reversal_failed'
		   OR (status = 'committed' AND updated_at < $1)
		ORDER BY updated_at
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, staleBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	return payments, rows.Err()
}

// SettlePaymentDebit debits the account, records the debit transaction and marks the
// payment debited. Either all of it commits or none of it does.
func (r *PostgresRepository) SettlePaymentDebit(ctx context.Context, params SettleDebitParams) (*LedgerResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance decimal.Decimal
	// Use FOR UPDATE to lock the row, preventing race conditions.
	err = tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 AND user_id = $2 FOR UPDATE`, params.AccountID, params.UserID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if balance.LessThan(params.Amount) {
		return nil, ErrInsufficientFunds
	}

	var newBalance decimal.Decimal
	err = tx.QueryRow(ctx, `UPDATE accounts SET balance = balance - $1 WHERE id = $2 RETURNING balance`, params.Amount, params.AccountID).Scan(&newBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to debit account: %w", err)
	}

	paymentID := params.PaymentID
	txn := &domain.Transaction{
		UserID:          params.UserID,
		AccountID:       params.AccountID,
		PaymentID:       &paymentID,
		ReferenceNumber: params.Reference,
		Amount:          params.Amount,
		Currency:        params.Currency,
		Direction:       domain.DirectionDebit,
		Description:     params.Description,
	}
	if err := insertTransaction(ctx, tx, txn, params.At); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `UPDATE payments SET debited = TRUE, updated_at = NOW() WHERE id = $1 AND status = 'committed' AND debited = FALSE`, params.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark payment debited: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrPaymentStateConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit debit: %w", err)
	}
	return &LedgerResult{Transaction: txn, NewBalance: newBalance}, nil
}

// RefundPaymentCredit records a successful reversal: credits the account back when
// the payment was debited and moves the payment to reversed.
func (r *PostgresRepository) RefundPaymentCredit(ctx context.Context, params RefundCreditParams) (*LedgerResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		accountID int64
		reference string
		total     decimal.Decimal
		currency  string
		debited   bool
		status    string
	)
	err = tx.QueryRow(ctx, `
		SELECT account_id, reference_number, total_amount, currency, debited, status
		FROM payments WHERE id = $1 AND user_id = $2 FOR UPDATE`, params.PaymentID, params.UserID).
		Scan(&accountID, &reference, &total, &currency, &debited, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if len(params.Expected) > 0 && !containsStatus(params.Expected, domain.PaymentStatus(status)) {
		return nil, ErrPaymentStateConflict
	}

	result := &LedgerResult{}
	err = tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&result.NewBalance)
	if err != nil {
		return nil, err
	}

	if debited {
		err = tx.QueryRow(ctx, `UPDATE accounts SET balance = balance + $1 WHERE id = $2 RETURNING balance`, total, accountID).Scan(&result.NewBalance)
		if err != nil {
			return nil, fmt.Errorf("failed to credit account: %w", err)
		}
		paymentID := params.PaymentID
		txn := &domain.Transaction{
			UserID:          params.UserID,
			AccountID:       accountID,
			PaymentID:       &paymentID,
			ReferenceNumber: reference,
			Amount:          total,
			Currency:        strings.TrimSpace(currency),
			Direction:       domain.DirectionCredit,
			Description:     params.Description,
		}
		if err := insertTransaction(ctx, tx, txn, params.At); err != nil {
			return nil, err
		}
		result.Transaction = txn
	}

	_, err = tx.Exec(ctx, `
		UPDATE payments SET
			status = 'reversed',
			debited = FALSE,
			reversal_transaction_id = $2,
			reversal_acknowledgement_id = $3,
			failure_reason = $4,
			updated_at = NOW()
		WHERE id = $1`,
		params.PaymentID, params.ReversalTransactionID, params.ReversalAcknowledgementID, params.FailureReason)
	if err != nil {
		return nil, fmt.Errorf("failed to mark payment reversed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reversal: %w", err)
	}
	return result, nil
}

// insertTransaction reserves the row id first so the human readable transaction
// id can embed it.
func insertTransaction(ctx context.Context, tx pgx.Tx, txn *domain.Transaction, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	if err := tx.QueryRow(ctx, `SELECT nextval(pg_get_serial_sequence('transactions', 'id'))`).Scan(&txn.ID); err != nil {
		return fmt.Errorf("failed to reserve transaction id: %w", err)
	}
	txn.TransactionID = domain.LedgerTransactionID(at, txn.ID)

	query := `
		INSERT INTO transactions (
			id, user_id, account_id, payment_id, reference_number, amount, currency,
			direction, description, transaction_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`
	err := tx.QueryRow(ctx, query,
		txn.ID,
		txn.UserID,
		txn.AccountID,
		txn.PaymentID,
		txn.ReferenceNumber,
		txn.Amount,
		txn.Currency,
		txn.Direction,
		txn.Description,
		txn.TransactionID,
		at,
	).Scan(&txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert %s transaction: %w", txn.Direction, err)
	}
	return nil
}

const transactionDetailQuery = `
	SELECT t.id, t.user_id, t.account_id, t.payment_id, t.reference_number, t.amount,
	       t.currency, t.direction, t.description, t.transaction_id, t.created_at,
	       p.fee, p.total_amount, p.customer_name, p.status,
	       s.id, s.name, s.logo_url
	FROM transactions t
	LEFT JOIN payments p ON p.id = t.payment_id
	LEFT JOIN services s ON s.id = p.service_id`

func scanTransactionDetail(row pgx.Row) (*domain.TransactionDetail, error) {
	var (
		d            domain.TransactionDetail
		fee          decimal.NullDecimal
		total        decimal.NullDecimal
		customerName *string
		status       *string
		serviceID    *int64
		serviceName  *string
		serviceLogo  *string
	)
	err := row.Scan(
		&d.ID, &d.UserID, &d.AccountID, &d.PaymentID, &d.ReferenceNumber, &d.Amount,
		&d.Currency, &d.Direction, &d.Description, &d.TransactionID, &d.CreatedAt,
		&fee, &total, &customerName, &status,
		&serviceID, &serviceName, &serviceLogo,
	)
	if err != nil {
		return nil, err
	}
	d.Currency = strings.TrimSpace(d.Currency)
	if d.PaymentID != nil && fee.Valid {
		d.Payment = &domain.Payment{ID: *d.PaymentID, Fee: fee.Decimal, TotalAmount: total.Decimal}
		if customerName != nil {
			d.Payment.CustomerName = *customerName
		}
		if status != nil {
			d.Payment.Status = domain.PaymentStatus(*status)
		}
	}
	if serviceID != nil {
		d.Service = &domain.Service{ID: *serviceID}
		if serviceName != nil {
			d.Service.Name = *serviceName
		}
		if serviceLogo != nil {
			d.Service.LogoURL = *serviceLogo
		}
	}
	return &d, nil
}

// ListTransactions returns a page of the user's ledger, newest first, and the total count.
func (r *PostgresRepository) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]domain.TransactionDetail, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := transactionDetailQuery + `
		WHERE t.user_id = $1
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]domain.TransactionDetail, 0, limit)
	for rows.Next() {
		detail, err := scanTransactionDetail(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *detail)
	}
	return items, total, rows.Err()
}

func (r *PostgresRepository) GetTransactionForUser(ctx context.Context, userID, transactionID int64) (*domain.TransactionDetail, error) {
	query := transactionDetailQuery + ` WHERE t.id = $1 AND t.user_id = $2`
	detail, err := scanTransactionDetail(r.db.QueryRow(ctx, query, transactionID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return detail, nil
}

func statusStrings(statuses []domain.PaymentStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func containsStatus(statuses []domain.PaymentStatus, status domain.PaymentStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
