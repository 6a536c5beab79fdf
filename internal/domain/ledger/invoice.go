package ledger

import (
	"fmt"
	"time"

	"github.com/fieldsales/ledgersync/internal/domain/shared"
	"github.com/fieldsales/ledgersync/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of a locally issued invoice
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending" // Created locally, not yet accepted remotely
	InvoiceStatusSending InvoiceStatus = "sending" // Submission in flight
	InvoiceStatusSent    InvoiceStatus = "sent"    // Accepted remotely, terminal
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusSending, InvoiceStatusSent:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no transition leaves this status
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusSent
}

// CanBeginSend returns true if a submission may be started in this status
func (s InvoiceStatus) CanBeginSend() bool {
	return s == InvoiceStatusPending
}

// InvoiceItem is a line on an invoice. It belongs to exactly one invoice
// and is immutable after creation.
type InvoiceItem struct {
	ID          uuid.UUID       `json:"id"`
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	VATRate     decimal.Decimal `json:"vat_rate"` // percent, per item; mixed-rate invoices are common
	LineTotal   decimal.Decimal `json:"line_total"`
}

// NewInvoiceItem creates an invoice line and computes its net total
func NewInvoiceItem(invoiceID, productID uuid.UUID, productName, unit string, quantity, unitPrice, vatRate decimal.Decimal) (*InvoiceItem, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if productName == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT_NAME", "Product name cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}
	if vatRate.IsNegative() {
		return nil, shared.NewDomainError("INVALID_VAT_RATE", "VAT rate cannot be negative")
	}
	return &InvoiceItem{
		ID:          uuid.New(),
		InvoiceID:   invoiceID,
		ProductID:   productID,
		ProductName: productName,
		Unit:        unit,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		VATRate:     vatRate,
		LineTotal:   quantity.Mul(unitPrice),
	}, nil
}

// VATAmount returns the VAT for this line at its own stored rate
func (i *InvoiceItem) VATAmount() decimal.Decimal {
	return i.LineTotal.Mul(i.VATRate).Div(decimal.NewFromInt(100))
}

// GrossTotal returns the line total including VAT
func (i *InvoiceItem) GrossTotal() decimal.Decimal {
	return i.LineTotal.Add(i.VATAmount())
}

// Invoice is the aggregate root for a locally issued invoice.
// Its number is assigned exactly once at creation and is never reused,
// even if the send later fails permanently. Once sent, the invoice is
// never physically deleted.
type Invoice struct {
	shared.BaseAggregateRoot
	Number      int64         `json:"number"`
	Series      string        `json:"series"`
	PartnerID   uuid.UUID     `json:"partner_id"`
	PartnerName string        `json:"partner_name"`
	LocationID  uuid.UUID     `json:"location_id"`
	Status      InvoiceStatus `json:"status"`
	Items       []InvoiceItem `json:"items"`
	Notes       string        `json:"notes"`
	SentAt      *time.Time    `json:"sent_at"`
	RemoteDocID string        `json:"remote_doc_id"` // Identifier assigned by the remote ledger on acceptance
	LastError   string        `json:"last_error"`
}

// NewInvoice creates a new invoice in pending status. The number must come
// from the allocator, inside the same transaction that persists the invoice.
func NewInvoice(number int64, series string, partnerID uuid.UUID, partnerName string, locationID uuid.UUID, notes string) (*Invoice, error) {
	if number <= 0 {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Invoice number must be positive")
	}
	if partnerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PARTNER", "Partner ID cannot be empty")
	}
	if partnerName == "" {
		return nil, shared.NewDomainError("INVALID_PARTNER_NAME", "Partner name cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LOCATION", "Location ID cannot be empty")
	}

	return &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            number,
		Series:            series,
		PartnerID:         partnerID,
		PartnerName:       partnerName,
		LocationID:        locationID,
		Status:            InvoiceStatusPending,
		Items:             []InvoiceItem{},
		Notes:             notes,
	}, nil
}

// AddItem appends a line to an invoice that has not been submitted yet
func (inv *Invoice) AddItem(item InvoiceItem) error {
	if inv.Status != InvoiceStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot add items to invoice in %s status", inv.Status))
	}
	item.InvoiceID = inv.ID
	inv.Items = append(inv.Items, item)
	inv.UpdatedAt = time.Now()
	return nil
}

// NetTotal returns the sum of line totals net of VAT
func (inv *Invoice) NetTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range inv.Items {
		total = total.Add(inv.Items[i].LineTotal)
	}
	return total
}

// VATTotal returns the VAT summed per item at each item's own rate
func (inv *Invoice) VATTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range inv.Items {
		total = total.Add(inv.Items[i].VATAmount())
	}
	return total
}

// GrossTotal returns the VAT-inclusive invoice total
func (inv *Invoice) GrossTotal() decimal.Decimal {
	return inv.NetTotal().Add(inv.VATTotal())
}

// GrossTotalMoney returns the gross total as Money
func (inv *Invoice) GrossTotalMoney() valueobject.Money {
	return valueobject.NewMoneyRON(inv.GrossTotal())
}

// Ref returns the document reference under which collections target this invoice
func (inv *Invoice) Ref() DocumentRef {
	return DocumentRef{
		Series: inv.Series,
		Number: fmt.Sprintf("%d", inv.Number),
	}
}

// BeginSend transitions Pending -> Sending. The persistence layer must pair
// this with a conditional update on the status column; two concurrent
// senders must not both succeed.
func (inv *Invoice) BeginSend() error {
	if !inv.Status.CanBeginSend() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot begin send for invoice in %s status", inv.Status))
	}
	inv.Status = InvoiceStatusSending
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// CancelSend reverts Sending -> Pending with an operator-cancelled error.
// Illegal from any other status: a cancellation racing a completed send
// must not revert a Sent invoice.
func (inv *Invoice) CancelSend() error {
	if inv.Status != InvoiceStatusSending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel invoice with status %q, only sending invoices can be cancelled", inv.Status))
	}
	inv.Status = InvoiceStatusPending
	inv.LastError = "Sending cancelled by operator"
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// CompleteSend transitions Sending -> Sent and stamps sent_at. Terminal.
func (inv *Invoice) CompleteSend(remoteDocID string) error {
	if inv.Status != InvoiceStatusSending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete send for invoice in %s status", inv.Status))
	}
	if remoteDocID == "" {
		return shared.NewDomainError("INVALID_REMOTE_DOC", "Remote document ID cannot be empty")
	}
	now := time.Now()
	inv.Status = InvoiceStatusSent
	inv.RemoteDocID = remoteDocID
	inv.SentAt = &now
	inv.LastError = ""
	inv.UpdatedAt = now
	inv.IncrementVersion()
	return nil
}

// FailSend transitions Sending -> Pending and records the failure reason.
// The invoice stays eligible for retry.
func (inv *Invoice) FailSend(reason string) error {
	if inv.Status != InvoiceStatusSending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail send for invoice in %s status", inv.Status))
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Failure reason is required")
	}
	inv.Status = InvoiceStatusPending
	inv.LastError = reason
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// IsSent returns true if the invoice was accepted remotely
func (inv *Invoice) IsSent() bool {
	return inv.Status == InvoiceStatusSent
}

// ItemCount returns the number of lines on the invoice
func (inv *Invoice) ItemCount() int {
	return len(inv.Items)
}
