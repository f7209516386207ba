package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementTimeLayout is how settlement timestamps are rendered.
const SettlementTimeLayout = "2006-01-02 15:04:05"

// BusinessZone is the bank's local time, a fixed UTC+7.
var BusinessZone = time.FixedZone("ICT", 7*60*60)

// ServiceRef is the biller descriptor embedded in payment responses.
type ServiceRef struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logo_url,omitempty"`
}

// NewServiceRef returns nil for a nil service.
func NewServiceRef(s *Service) *ServiceRef {
	if s == nil {
		return nil
	}
	return &ServiceRef{ID: s.ID, Name: s.Name, LogoURL: s.LogoURL}
}

// InvoiceView is the lookup response.
type InvoiceView struct {
	ReferenceNumber string          `json:"reference_number"`
	CustomerName    string          `json:"customer_name"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	SessionID       string          `json:"session_id,omitempty"`
	ResponseCode    int             `json:"response_code"`
	ResponseMsg     string          `json:"response_msg,omitempty"`
}

// PaymentView is the single serialization of a Payment. Invoice fields carry the
// biller's amount and currency; amount, fee and total_amount are in the account
// currency.
type PaymentView struct {
	PaymentID                   int64            `json:"payment_id"`
	Status                      PaymentStatus    `json:"status"`
	AccountID                   int64            `json:"account_id"`
	ReferenceNumber             string           `json:"reference_number"`
	CustomerName                string           `json:"customer_name,omitempty"`
	InvoiceAmount               decimal.Decimal  `json:"invoice_amount"`
	InvoiceCurrency             string           `json:"invoice_currency"`
	Amount                      decimal.Decimal  `json:"amount"`
	Fee                         decimal.Decimal  `json:"fee"`
	TotalAmount                 decimal.Decimal  `json:"total_amount"`
	Currency                    string           `json:"currency"`
	USDToKHRRate                *decimal.Decimal `json:"usd_to_khr_rate,omitempty"`
	SessionID                   string           `json:"session_id,omitempty"`
	TransactionID               string           `json:"transaction_id,omitempty"`
	AcknowledgementID           string           `json:"acknowledgement_id,omitempty"`
	ReversalTransactionID       string           `json:"reversal_transaction_id,omitempty"`
	ReversalAcknowledgementID   string           `json:"reversal_acknowledgement_id,omitempty"`
	NewBalance                  *decimal.Decimal `json:"new_balance,omitempty"`
	AmountDebited               *decimal.Decimal `json:"amount_debited,omitempty"`
	CDCTransactionDatetime      string           `json:"cdc_transaction_datetime,omitempty"`
	CDCTransactionDatetimeUTC   string           `json:"cdc_transaction_datetime_utc,omitempty"`
	CDCTransactionDatetimeLocal string           `json:"cdc_transaction_datetime_local,omitempty"`
	Service                     *ServiceRef      `json:"service,omitempty"`
	CreatedAt                   time.Time        `json:"created_at"`
	ConfirmedAt                 *time.Time       `json:"confirmed_at,omitempty"`
}

// NewPaymentView builds the canonical payment representation.
func NewPaymentView(p *Payment, svc *Service) PaymentView {
	view := PaymentView{
		PaymentID:                 p.ID,
		Status:                    p.Status,
		AccountID:                 p.AccountID,
		ReferenceNumber:           p.ReferenceNumber,
		CustomerName:              p.CustomerName,
		InvoiceAmount:             p.Amount,
		InvoiceCurrency:           p.InvoiceCurrency,
		Amount:                    p.TotalAmount.Sub(p.Fee),
		Fee:                       p.Fee,
		TotalAmount:               p.TotalAmount,
		Currency:                  p.Currency,
		SessionID:                 p.SessionID,
		TransactionID:             p.SettlementTransactionID(),
		AcknowledgementID:         p.AcknowledgementID,
		ReversalTransactionID:     p.ReversalTransactionID,
		ReversalAcknowledgementID: p.ReversalAcknowledgementID,
		Service:                   NewServiceRef(svc),
		CreatedAt:                 p.CreatedAt,
		ConfirmedAt:               p.ConfirmedAt,
	}
	if p.CDCTransactionDatetime != nil {
		view.CDCTransactionDatetime = p.CDCTransactionDatetime.Format(SettlementTimeLayout)
	}
	if p.CDCTransactionDatetimeUTC != nil {
		utc := p.CDCTransactionDatetimeUTC.UTC()
		view.CDCTransactionDatetimeUTC = utc.Format(SettlementTimeLayout)
		view.CDCTransactionDatetimeLocal = utc.In(BusinessZone).Format(SettlementTimeLayout)
	}
	return view
}

// TransactionView is the single serialization of a ledger transaction. Fee and
// total_amount come from the linked payment when there is one.
type TransactionView struct {
	ID              int64            `json:"id"`
	TransactionID   string           `json:"transaction_id"`
	PaymentID       *int64           `json:"payment_id,omitempty"`
	ReferenceNumber string           `json:"reference_number,omitempty"`
	Description     string           `json:"description,omitempty"`
	Amount          decimal.Decimal  `json:"amount"`
	Fee             *decimal.Decimal `json:"fee,omitempty"`
	TotalAmount     *decimal.Decimal `json:"total_amount,omitempty"`
	Direction       string           `json:"direction"`
	Currency        string           `json:"currency"`
	CustomerName    string           `json:"customer_name,omitempty"`
	ServiceName     string           `json:"service_name,omitempty"`
	ServiceLogoURL  string           `json:"service_logo_url,omitempty"`
	AccountID       int64            `json:"account_id"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NewTransactionView builds the canonical transaction representation.
func NewTransactionView(d TransactionDetail) TransactionView {
	view := TransactionView{
		ID:              d.ID,
		TransactionID:   d.TransactionID,
		PaymentID:       d.PaymentID,
		ReferenceNumber: d.ReferenceNumber,
		Description:     d.Description,
		Amount:          d.Amount,
		Direction:       d.Direction,
		Currency:        d.Currency,
		AccountID:       d.AccountID,
		CreatedAt:       d.CreatedAt,
	}
	if d.Payment != nil {
		fee := d.Payment.Fee
		total := d.Payment.TotalAmount
		view.Fee = &fee
		view.TotalAmount = &total
		view.CustomerName = d.Payment.CustomerName
	}
	if d.Service != nil {
		view.ServiceName = d.Service.Name
		view.ServiceLogoURL = d.Service.LogoURL
	}
	return view
}

// TransactionPage is a page of transaction history.
type TransactionPage struct {
	Items    []TransactionView `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}
