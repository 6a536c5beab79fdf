package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
	"github.com/fieldsales/ledgersync/internal/domain/shared"
)

// InvoiceService provides application-level invoice operations: creation
// against the catalog caches, listing, and the guarded send lifecycle.
type InvoiceService struct {
	invoiceRepo ledger.InvoiceRepository
	rangeRepo   ledger.NumberRangeRepository
	catalogRepo ledger.CatalogRepository
	gateway     ledger.RemoteGateway

	invoiceSeries string
	allowFallback bool
	now           func() time.Time
}

// InvoiceServiceOption is a functional option for configuring InvoiceService
type InvoiceServiceOption func(*InvoiceService)

// WithInvoiceSeries sets the series stamped on new invoices
func WithInvoiceSeries(series string) InvoiceServiceOption {
	return func(s *InvoiceService) {
		if series != "" {
			s.invoiceSeries = series
		}
	}
}

// WithInvoiceFallbackNumbering enables timestamp-derived numbers when no
// range is configured. Off by default: unmanaged numbers cannot be matched
// back by downstream reconciliation, so opting in is deliberate.
func WithInvoiceFallbackNumbering() InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.allowFallback = true
	}
}

// WithInvoiceClock overrides the time source, for tests
func WithInvoiceClock(now func() time.Time) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.now = now
	}
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo ledger.InvoiceRepository,
	rangeRepo ledger.NumberRangeRepository,
	catalogRepo ledger.CatalogRepository,
	gateway ledger.RemoteGateway,
	opts ...InvoiceServiceOption,
) *InvoiceService {
	s := &InvoiceService{
		invoiceRepo:   invoiceRepo,
		rangeRepo:     rangeRepo,
		catalogRepo:   catalogRepo,
		gateway:       gateway,
		invoiceSeries: "FV",
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInvoiceItemRequest is one requested invoice line
type CreateInvoiceItemRequest struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// CreateInvoiceRequest is the request to create an invoice
type CreateInvoiceRequest struct {
	PartnerID  uuid.UUID                  `json:"partner_id"`
	LocationID uuid.UUID                  `json:"location_id"`
	Notes      string                     `json:"notes"`
	Items      []CreateInvoiceItemRequest `json:"items"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID          uuid.UUID            `json:"id"`
	Number      int64                `json:"number"`
	Series      string               `json:"series"`
	PartnerID   uuid.UUID            `json:"partner_id"`
	PartnerName string               `json:"partner_name"`
	LocationID  uuid.UUID            `json:"location_id"`
	Status      string               `json:"status"`
	Items       []ledger.InvoiceItem `json:"items"`
	NetTotal    decimal.Decimal      `json:"net_total"`
	VATTotal    decimal.Decimal      `json:"vat_total"`
	GrossTotal  decimal.Decimal      `json:"gross_total"`
	Notes       string               `json:"notes,omitempty"`
	SentAt      *time.Time           `json:"sent_at,omitempty"`
	RemoteDocID string               `json:"remote_doc_id,omitempty"`
	LastError   string               `json:"last_error,omitempty"`
	Unmanaged   bool                 `json:"unmanaged,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

func toInvoiceResponse(inv *ledger.Invoice, unmanaged bool) *InvoiceResponse {
	return &InvoiceResponse{
		ID:          inv.ID,
		Number:      inv.Number,
		Series:      inv.Series,
		PartnerID:   inv.PartnerID,
		PartnerName: inv.PartnerName,
		LocationID:  inv.LocationID,
		Status:      inv.Status.String(),
		Items:       inv.Items,
		NetTotal:    inv.NetTotal(),
		VATTotal:    inv.VATTotal(),
		GrossTotal:  inv.GrossTotal(),
		Notes:       inv.Notes,
		SentAt:      inv.SentAt,
		RemoteDocID: inv.RemoteDocID,
		LastError:   inv.LastError,
		Unmanaged:   unmanaged,
		CreatedAt:   inv.CreatedAt,
	}
}

// CreateInvoice creates a pending invoice, pricing each line from the
// catalog caches and consuming one number from the invoice range.
func (s *InvoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	if len(req.Items) == 0 {
		return nil, shared.NewDomainError("EMPTY_INVOICE", "Invoice must have at least one item")
	}

	partner, err := s.catalogRepo.FindPartner(ctx, req.PartnerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("UNKNOWN_PARTNER", "Partner is not in the local catalog")
		}
		return nil, err
	}
	if partner.Blocked {
		return nil, shared.NewDomainError("PARTNER_BLOCKED", fmt.Sprintf("Partner %s is blocked for invoicing", partner.Name))
	}
	if partner.Inactive {
		return nil, shared.NewDomainError("PARTNER_INACTIVE", fmt.Sprintf("Partner %s is inactive", partner.Name))
	}

	location, err := s.catalogRepo.FindLocation(ctx, req.LocationID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("UNKNOWN_LOCATION", "Delivery location is not in the local catalog")
		}
		return nil, err
	}
	if location.PartnerID != partner.ID {
		return nil, shared.NewDomainError("LOCATION_MISMATCH", "Delivery location does not belong to the partner")
	}

	allocation, err := s.allocateNumber(ctx)
	if err != nil {
		return nil, err
	}

	invoice, err := ledger.NewInvoice(allocation.Number, s.invoiceSeries, partner.ID, partner.Name, location.ID, req.Notes)
	if err != nil {
		return nil, err
	}

	for _, line := range req.Items {
		product, err := s.catalogRepo.FindProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("UNKNOWN_PRODUCT", "Product is not in the local catalog")
			}
			return nil, err
		}
		offer, err := s.catalogRepo.FindOfferPrice(ctx, product.ID, partner.ID)
		if err != nil {
			return nil, err
		}

		item, err := ledger.NewInvoiceItem(invoice.ID, product.ID, product.Name, product.Unit,
			line.Quantity, ledger.PriceFor(product, offer), product.VATRate)
		if err != nil {
			return nil, err
		}
		if err := invoice.AddItem(*item); err != nil {
			return nil, err
		}
	}

	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		return nil, err
	}
	return toInvoiceResponse(invoice, allocation.Unmanaged), nil
}

// allocateNumber consumes the next invoice number. A failed save afterwards
// burns the number and leaves a gap in the series; the range guarantees no
// number is ever issued twice, not that the series is gapless.
func (s *InvoiceService) allocateNumber(ctx context.Context) (ledger.NumberAllocation, error) {
	number, err := s.rangeRepo.Allocate(ctx, ledger.CounterKindInvoice)
	if err == nil {
		return ledger.NumberAllocation{Kind: ledger.CounterKindInvoice, Number: number}, nil
	}
	if errors.Is(err, shared.ErrRangeNotConfigured) && s.allowFallback {
		return ledger.UnmanagedNumber(ledger.CounterKindInvoice, s.now()), nil
	}
	return ledger.NumberAllocation{}, err
}

// GetInvoice loads one invoice by ID
func (s *InvoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toInvoiceResponse(invoice, false), nil
}

// ListInvoices lists invoices with filtering, newest first
func (s *InvoiceService) ListInvoices(ctx context.Context, filter ledger.InvoiceFilter) ([]InvoiceResponse, error) {
	invoices, err := s.invoiceRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	responses := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		responses = append(responses, *toInvoiceResponse(&invoices[i], false))
	}
	return responses, nil
}

// SendInvoice pushes one pending invoice to the remote ledger. The claim is
// a conditional status flip, so concurrent senders cannot both submit; the
// row is released back to pending on any failure and the invoice never
// leaves pending except through a successful remote acceptance.
func (s *InvoiceService) SendInvoice(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == ledger.InvoiceStatusSent {
		return nil, shared.NewDomainError("ALREADY_SENT", fmt.Sprintf("Invoice %s %d was already accepted remotely", invoice.Series, invoice.Number))
	}

	if err := s.invoiceRepo.UpdateStatus(ctx, id, ledger.InvoiceStatusPending, ledger.InvoiceStatusSending, ""); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, shared.ErrSendInProgress
		}
		return nil, err
	}

	resp, err := s.gateway.PushInvoice(ctx, invoice)
	if err != nil {
		reason := err.Error()
		if releaseErr := s.invoiceRepo.UpdateStatus(ctx, id, ledger.InvoiceStatusSending, ledger.InvoiceStatusPending, reason); releaseErr != nil {
			return nil, releaseErr
		}
		return nil, err
	}

	if err := s.invoiceRepo.CompleteSend(ctx, id, resp.RemoteDocID, s.now()); err != nil {
		return nil, err
	}
	return s.GetInvoice(ctx, id)
}

// CancelSend reverts an in-flight invoice back to pending. Only legal while
// the invoice is in sending status: a cancel racing a completed send loses.
func (s *InvoiceService) CancelSend(ctx context.Context, id uuid.UUID) error {
	err := s.invoiceRepo.UpdateStatus(ctx, id, ledger.InvoiceStatusSending, ledger.InvoiceStatusPending, "Sending cancelled by operator")
	if errors.Is(err, shared.ErrConcurrencyConflict) {
		return shared.NewDomainError("INVALID_STATE", "Only a sending invoice can be cancelled")
	}
	return err
}

// PendingInvoiceIDs lists invoices awaiting submission, oldest number first
func (s *InvoiceService) PendingInvoiceIDs(ctx context.Context) ([]uuid.UUID, error) {
	pending, err := s.invoiceRepo.FindPending(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(pending))
	for i := range pending {
		ids = append(ids, pending[i].ID)
	}
	return ids, nil
}

// DeleteInvoice removes an invoice that was never sent
func (s *InvoiceService) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	return s.invoiceRepo.Delete(ctx, id)
}

// ConfigureNumberRange creates or replaces the number range for a counter kind
func (s *InvoiceService) ConfigureNumberRange(ctx context.Context, kind ledger.CounterKind, start, end int64) error {
	nr, err := ledger.NewNumberRange(kind, start, end)
	if err != nil {
		return err
	}
	return s.rangeRepo.Configure(ctx, nr)
}

// NumberRangeStatus reports the configured window and how much of it is left
type NumberRangeStatus struct {
	Kind      ledger.CounterKind `json:"kind"`
	Start     int64              `json:"start"`
	End       int64              `json:"end"`
	Current   int64              `json:"current"`
	Remaining int64              `json:"remaining"`
	Exhausted bool               `json:"exhausted"`
}

// GetNumberRangeStatus loads the range configured for a counter kind
func (s *InvoiceService) GetNumberRangeStatus(ctx context.Context, kind ledger.CounterKind) (*NumberRangeStatus, error) {
	nr, err := s.rangeRepo.Find(ctx, kind)
	if err != nil {
		return nil, err
	}
	return &NumberRangeStatus{
		Kind:      nr.Kind,
		Start:     nr.Start,
		End:       nr.End,
		Current:   nr.Current,
		Remaining: nr.Remaining(),
		Exhausted: nr.Exhausted(),
	}, nil
}
