package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	PartnerID *uuid.UUID     // Filter by partner
	Status    *InvoiceStatus // Filter by status
	FromDate  *time.Time     // Filter by creation date range start
	ToDate    *time.Time     // Filter by creation date range end
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByID finds an invoice, including its items
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByNumber finds an invoice by its sequential number
	FindByNumber(ctx context.Context, number int64) (*Invoice, error)

	// FindAll lists invoices with filtering, newest first
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)

	// FindPending lists invoices eligible for submission, oldest first
	FindPending(ctx context.Context) ([]Invoice, error)

	// FindUnsent lists invoices in any non-terminal status, for balance synthesis
	FindUnsent(ctx context.Context) ([]Invoice, error)

	// Save creates or updates an invoice together with its items
	Save(ctx context.Context, invoice *Invoice) error

	// UpdateStatus performs a conditional status transition: the row is
	// updated only if its current status equals expected. Returns
	// shared.ErrConcurrencyConflict when the condition does not hold.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next InvoiceStatus, lastError string) error

	// CompleteSend marks an invoice sent, stamping sent_at and the remote
	// document ID, conditional on the row still being in sending status.
	CompleteSend(ctx context.Context, id uuid.UUID, remoteDocID string, sentAt time.Time) error

	// Delete removes an invoice that was never sent
	Delete(ctx context.Context, id uuid.UUID) error
}

// CollectionFilter defines filtering options for collection queries
type CollectionFilter struct {
	PartnerID *uuid.UUID        // Filter by partner
	Status    *CollectionStatus // Filter by status
	FromDate  *time.Time        // Filter by collection date range start
	ToDate    *time.Time        // Filter by collection date range end
}

// CollectionRepository defines the interface for collection persistence
type CollectionRepository interface {
	// FindByID finds a single collection row
	FindByID(ctx context.Context, id uuid.UUID) (*Collection, error)

	// FindGroup loads all members of a receipt group
	FindGroup(ctx context.Context, groupID uuid.UUID) (*ReceiptGroup, error)

	// FindAll lists collection rows with filtering, newest first
	FindAll(ctx context.Context, filter CollectionFilter) ([]Collection, error)

	// FindRetryableGroups lists group IDs with at least one pending or
	// failed member, oldest first
	FindRetryableGroups(ctx context.Context) ([]uuid.UUID, error)

	// FindCountingAgainstBalance lists collections in a status that reduces
	// an invoice's effective balance, optionally limited to one partner
	FindCountingAgainstBalance(ctx context.Context, partnerID *uuid.UUID) ([]Collection, error)

	// ExistsInFlightFor reports whether any collection in pending or
	// sending status already targets the given reference
	ExistsInFlightFor(ctx context.Context, partnerID uuid.UUID, ref DocumentRef) (bool, error)

	// SaveGroup inserts all rows of a new receipt group in one transaction;
	// on any failure no row is kept
	SaveGroup(ctx context.Context, members []Collection) error

	// UpdateGroupStatus performs a conditional group-wide transition: rows
	// already in a terminal status are left untouched. Returns the number
	// of rows updated.
	UpdateGroupStatus(ctx context.Context, groupID uuid.UUID, next CollectionStatus, lastError string, syncedAt *time.Time) (int64, error)

	// BeginGroupSend conditionally moves a group's non-terminal members to
	// sending. Returns zero when another sender already holds the group.
	BeginGroupSend(ctx context.Context, groupID uuid.UUID) (int64, error)

	// DeleteGroup removes a never-synced receipt group entirely
	DeleteGroup(ctx context.Context, groupID uuid.UUID) error
}

// NumberRangeRepository defines the interface for number range persistence.
// Implementations must make Allocate atomic with respect to concurrent
// callers: no two callers may observe and consume the same cursor.
type NumberRangeRepository interface {
	// Find loads the range configured for a counter kind; returns
	// shared.ErrRangeNotConfigured when no row exists
	Find(ctx context.Context, kind CounterKind) (*NumberRange, error)

	// Configure creates or replaces the range for a counter kind
	Configure(ctx context.Context, r *NumberRange) error

	// Allocate consumes the next number for the kind with a single
	// conditional update. Returns shared.ErrRangeExhausted when the range
	// is used up and shared.ErrRangeNotConfigured when no row exists.
	Allocate(ctx context.Context, kind CounterKind) (int64, error)
}

// RemoteBalanceRepository stores the remote open-items snapshot
type RemoteBalanceRepository interface {
	// FindAll lists snapshot lines, optionally limited to one partner
	FindAll(ctx context.Context, partnerID *uuid.UUID) ([]RemoteBalanceLine, error)

	// ReplaceAll swaps the whole snapshot in one transaction; the pull is a
	// full refresh, not an incremental feed
	ReplaceAll(ctx context.Context, lines []RemoteBalanceLine) error
}

// CatalogRepository reads the partner/product caches the engine validates against
type CatalogRepository interface {
	// FindPartner loads one partner
	FindPartner(ctx context.Context, id uuid.UUID) (*Partner, error)

	// FindLocation loads one delivery location
	FindLocation(ctx context.Context, id uuid.UUID) (*Location, error)

	// FindProduct loads one product
	FindProduct(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindOfferPrice loads the negotiated price for a product and partner,
	// nil when none exists
	FindOfferPrice(ctx context.Context, productID, partnerID uuid.UUID) (*OfferPrice, error)

	// PaymentTermsByPartner returns configured payment terms keyed by partner
	PaymentTermsByPartner(ctx context.Context) (map[uuid.UUID]int, error)

	// ReplacePartners swaps the partner cache (with locations) wholesale
	ReplacePartners(ctx context.Context, partners []Partner, locations []Location) error

	// ReplaceProducts swaps the product cache (with offer prices) wholesale
	ReplaceProducts(ctx context.Context, products []Product, offers []OfferPrice) error
}
