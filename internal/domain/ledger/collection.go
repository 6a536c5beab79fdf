package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/fieldsales/ledgersync/internal/domain/shared"
	"github.com/fieldsales/ledgersync/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CollectionStatus represents the status of a cash collection (receipt line)
type CollectionStatus string

const (
	CollectionStatusPending CollectionStatus = "pending" // Recorded locally, not yet settled remotely
	CollectionStatusSending CollectionStatus = "sending" // Settlement submission in flight
	CollectionStatusSynced  CollectionStatus = "synced"  // Accepted by the remote ledger, terminal
	CollectionStatusFailed  CollectionStatus = "failed"  // Rejected remotely, retryable
)

// IsValid checks if the status is a valid CollectionStatus
func (s CollectionStatus) IsValid() bool {
	switch s {
	case CollectionStatusPending, CollectionStatusSending, CollectionStatusSynced, CollectionStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of CollectionStatus
func (s CollectionStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no transition leaves this status
func (s CollectionStatus) IsTerminal() bool {
	return s == CollectionStatusSynced
}

// IsInFlight returns true while the collection still counts against a balance
// but has not been confirmed remotely
func (s CollectionStatus) IsInFlight() bool {
	return s == CollectionStatusPending || s == CollectionStatusSending
}

// CountsAgainstBalance returns true if the collection reduces the effective
// remaining balance of its invoice
func (s CollectionStatus) CountsAgainstBalance() bool {
	return s == CollectionStatusPending || s == CollectionStatusSending || s == CollectionStatusSynced
}

// IsRetryable returns true if the sync orchestrator should pick this record up
func (s CollectionStatus) IsRetryable() bool {
	return s == CollectionStatusPending || s == CollectionStatusFailed
}

// DocumentRef identifies the invoice (or external document) a collection
// applies to: a series + number pair, or an external document code.
type DocumentRef struct {
	Series       string `json:"series"`
	Number       string `json:"number"`
	ExternalCode string `json:"external_code"`
}

// NewDocumentRef creates a reference from a series and number
func NewDocumentRef(series, number string) DocumentRef {
	return DocumentRef{Series: series, Number: number}
}

// NewExternalDocumentRef creates a reference to a document known only by an
// external code (e.g. an obligation imported from the remote ledger)
func NewExternalDocumentRef(code string) DocumentRef {
	return DocumentRef{ExternalCode: code}
}

// IsZero returns true if the reference is empty
func (r DocumentRef) IsZero() bool {
	return strings.TrimSpace(r.Series) == "" && strings.TrimSpace(r.Number) == "" && strings.TrimSpace(r.ExternalCode) == ""
}

// Key returns the normalized matching key for balance lookups. Blank parts
// collapse to the empty string so that locally-created and remotely-imported
// references compare equal.
func (r DocumentRef) Key(partnerID uuid.UUID) string {
	return fmt.Sprintf("%s|%s|%s|%s",
		partnerID.String(),
		strings.TrimSpace(r.Series),
		strings.TrimSpace(r.Number),
		strings.TrimSpace(r.ExternalCode),
	)
}

// String returns a display form of the reference
func (r DocumentRef) String() string {
	if r.ExternalCode != "" && r.Series == "" && r.Number == "" {
		return r.ExternalCode
	}
	return strings.TrimSpace(r.Series + " " + r.Number)
}

// Collection is one receipt line: an amount collected against exactly one
// invoice-or-external-document. Collections sharing a ReceiptGroupID form
// one printed receipt; the group is immutable as a set once created, only
// individual member status changes afterwards.
type Collection struct {
	shared.BaseAggregateRoot
	ReceiptGroupID uuid.UUID        `json:"receipt_group_id"`
	ReceiptSeries  string           `json:"receipt_series"`
	ReceiptNumber  string           `json:"receipt_number"`
	PartnerID      uuid.UUID        `json:"partner_id"`
	PartnerName    string           `json:"partner_name"`
	InvoiceRef     DocumentRef      `json:"invoice_ref"`
	Amount         decimal.Decimal  `json:"amount"`
	Status         CollectionStatus `json:"status"`
	CollectedAt    time.Time        `json:"collected_at"`
	SyncedAt       *time.Time       `json:"synced_at"`
	LastError      string           `json:"last_error"`
}

// NewCollection creates a pending collection row
func NewCollection(groupID uuid.UUID, receiptSeries, receiptNumber string, partnerID uuid.UUID, partnerName string, invoiceRef DocumentRef, amount valueobject.Money, collectedAt time.Time) (*Collection, error) {
	if groupID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_GROUP", "Receipt group ID cannot be empty")
	}
	if partnerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PARTNER", "Partner ID cannot be empty")
	}
	if invoiceRef.IsZero() {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Collection must reference an invoice or external document")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Collection amount must be positive")
	}
	if collectedAt.IsZero() {
		collectedAt = time.Now()
	}

	return &Collection{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ReceiptGroupID:    groupID,
		ReceiptSeries:     receiptSeries,
		ReceiptNumber:     receiptNumber,
		PartnerID:         partnerID,
		PartnerName:       partnerName,
		InvoiceRef:        invoiceRef,
		Amount:            amount.Amount(),
		Status:            CollectionStatusPending,
		CollectedAt:       collectedAt,
	}, nil
}

// AmountMoney returns the collected amount as Money
func (c *Collection) AmountMoney() valueobject.Money {
	return valueobject.NewMoneyRON(c.Amount)
}

// BeginSend transitions an in-flight-eligible collection to sending
func (c *Collection) BeginSend() error {
	if !c.Status.IsRetryable() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot begin send for collection in %s status", c.Status))
	}
	c.Status = CollectionStatusSending
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
	return nil
}

// MarkSynced transitions Sending -> Synced and stamps synced_at. Also legal
// straight from Pending: the duplicate guard settles groups without a send.
func (c *Collection) MarkSynced() error {
	if c.Status == CollectionStatusSynced {
		return nil
	}
	if c.Status != CollectionStatusSending && c.Status != CollectionStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark collection in %s status as synced", c.Status))
	}
	now := time.Now()
	c.Status = CollectionStatusSynced
	c.SyncedAt = &now
	c.LastError = ""
	c.UpdatedAt = now
	c.IncrementVersion()
	return nil
}

// MarkFailed records a remote rejection; the row stays retryable
func (c *Collection) MarkFailed(reason string) error {
	if c.Status != CollectionStatusSending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark collection in %s status as failed", c.Status))
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Failure reason is required")
	}
	c.Status = CollectionStatusFailed
	c.LastError = reason
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
	return nil
}

// MarkPending reverts an in-flight collection after a transient failure,
// keeping the error visible to the operator
func (c *Collection) MarkPending(reason string) error {
	if c.Status != CollectionStatusSending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot revert collection in %s status to pending", c.Status))
	}
	c.Status = CollectionStatusPending
	c.LastError = reason
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
	return nil
}

// ReceiptGroup is the set of collections sharing one printed receipt
type ReceiptGroup struct {
	GroupID       uuid.UUID
	ReceiptSeries string
	ReceiptNumber string
	PartnerID     uuid.UUID
	PartnerName   string
	Members       []Collection
}

// NewReceiptGroup assembles a group from its member rows
func NewReceiptGroup(members []Collection) (*ReceiptGroup, error) {
	if len(members) == 0 {
		return nil, shared.NewDomainError("EMPTY_GROUP", "Receipt group has no members")
	}
	first := members[0]
	for i := range members {
		if members[i].ReceiptGroupID != first.ReceiptGroupID {
			return nil, shared.NewDomainError("MIXED_GROUP", "Receipt group members must share one group ID")
		}
	}
	return &ReceiptGroup{
		GroupID:       first.ReceiptGroupID,
		ReceiptSeries: first.ReceiptSeries,
		ReceiptNumber: first.ReceiptNumber,
		PartnerID:     first.PartnerID,
		PartnerName:   first.PartnerName,
		Members:       members,
	}, nil
}

// TotalAmount returns the sum of member amounts
func (g *ReceiptGroup) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for i := range g.Members {
		total = total.Add(g.Members[i].Amount)
	}
	return total
}

// TotalMoney returns the group total as Money
func (g *ReceiptGroup) TotalMoney() valueobject.Money {
	return valueobject.NewMoneyRON(g.TotalAmount())
}

// Status returns the effective status of the group: synced only when every
// member is synced, sending if any member is in flight, failed if any member
// failed, pending otherwise.
func (g *ReceiptGroup) Status() CollectionStatus {
	allSynced := true
	for i := range g.Members {
		switch g.Members[i].Status {
		case CollectionStatusSending:
			return CollectionStatusSending
		case CollectionStatusFailed:
			return CollectionStatusFailed
		case CollectionStatusSynced:
		default:
			allSynced = false
		}
	}
	if allSynced {
		return CollectionStatusSynced
	}
	return CollectionStatusPending
}

// InvoiceRefs returns the distinct document references the group settles
func (g *ReceiptGroup) InvoiceRefs() []DocumentRef {
	seen := make(map[string]struct{}, len(g.Members))
	refs := make([]DocumentRef, 0, len(g.Members))
	for i := range g.Members {
		key := g.Members[i].InvoiceRef.Key(g.Members[i].PartnerID)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, g.Members[i].InvoiceRef)
	}
	return refs
}

// Allocation is an (invoice reference, amount) pair within a receipt group request
type Allocation struct {
	InvoiceRef DocumentRef
	Amount     decimal.Decimal
}
