package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
	"github.com/fieldsales/ledgersync/internal/domain/shared"
	"github.com/fieldsales/ledgersync/internal/domain/shared/valueobject"
)

// CollectionService provides application-level collection operations:
// recording receipt groups against effective balances and the guarded
// group send lifecycle.
type CollectionService struct {
	collectionRepo ledger.CollectionRepository
	invoiceRepo    ledger.InvoiceRepository
	balanceRepo    ledger.RemoteBalanceRepository
	rangeRepo      ledger.NumberRangeRepository
	catalogRepo    ledger.CatalogRepository
	gateway        ledger.RemoteGateway
	reconciler     *ledger.BalanceReconciler
	guard          *DuplicateGuard

	receiptSeries string
	allowFallback bool
	now           func() time.Time
}

// CollectionServiceOption is a functional option for configuring CollectionService
type CollectionServiceOption func(*CollectionService)

// WithReceiptSeries sets the series stamped on new receipts
func WithReceiptSeries(series string) CollectionServiceOption {
	return func(s *CollectionService) {
		if series != "" {
			s.receiptSeries = series
		}
	}
}

// WithReceiptFallbackNumbering enables timestamp-derived receipt numbers
// when no range is configured
func WithReceiptFallbackNumbering() CollectionServiceOption {
	return func(s *CollectionService) {
		s.allowFallback = true
	}
}

// WithCollectionClock overrides the time source, for tests
func WithCollectionClock(now func() time.Time) CollectionServiceOption {
	return func(s *CollectionService) {
		s.now = now
	}
}

// NewCollectionService creates a new CollectionService
func NewCollectionService(
	collectionRepo ledger.CollectionRepository,
	invoiceRepo ledger.InvoiceRepository,
	balanceRepo ledger.RemoteBalanceRepository,
	rangeRepo ledger.NumberRangeRepository,
	catalogRepo ledger.CatalogRepository,
	gateway ledger.RemoteGateway,
	reconciler *ledger.BalanceReconciler,
	guard *DuplicateGuard,
	opts ...CollectionServiceOption,
) *CollectionService {
	s := &CollectionService{
		collectionRepo: collectionRepo,
		invoiceRepo:    invoiceRepo,
		balanceRepo:    balanceRepo,
		rangeRepo:      rangeRepo,
		catalogRepo:    catalogRepo,
		gateway:        gateway,
		reconciler:     reconciler,
		guard:          guard,
		receiptSeries:  "CH",
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AllocationRequest is one requested (document reference, amount) pair
type AllocationRequest struct {
	Series       string          `json:"series"`
	Number       string          `json:"number"`
	ExternalCode string          `json:"external_code"`
	Amount       decimal.Decimal `json:"amount"`
}

// RecordGroupRequest is the request to record one receipt group
type RecordGroupRequest struct {
	PartnerID   uuid.UUID           `json:"partner_id"`
	CollectedAt time.Time           `json:"collected_at"`
	Allocations []AllocationRequest `json:"allocations"`
}

// CollectionResponse represents one collection row in API responses
type CollectionResponse struct {
	ID          uuid.UUID       `json:"id"`
	InvoiceRef  string          `json:"invoice_ref"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	CollectedAt time.Time       `json:"collected_at"`
	SyncedAt    *time.Time      `json:"synced_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
}

// ReceiptGroupResponse represents a receipt group in API responses
type ReceiptGroupResponse struct {
	GroupID       uuid.UUID            `json:"group_id"`
	ReceiptSeries string               `json:"receipt_series"`
	ReceiptNumber string               `json:"receipt_number"`
	PartnerID     uuid.UUID            `json:"partner_id"`
	PartnerName   string               `json:"partner_name"`
	Status        string               `json:"status"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Members       []CollectionResponse `json:"members"`
	// AlreadySettled is set when the duplicate guard found the payment
	// absorbed remotely and the group was marked synced without a send.
	AlreadySettled bool `json:"already_settled,omitempty"`
}

func toReceiptGroupResponse(group *ledger.ReceiptGroup) *ReceiptGroupResponse {
	members := make([]CollectionResponse, 0, len(group.Members))
	for i := range group.Members {
		m := &group.Members[i]
		members = append(members, CollectionResponse{
			ID:          m.ID,
			InvoiceRef:  m.InvoiceRef.String(),
			Amount:      m.Amount,
			Status:      m.Status.String(),
			CollectedAt: m.CollectedAt,
			SyncedAt:    m.SyncedAt,
			LastError:   m.LastError,
		})
	}
	return &ReceiptGroupResponse{
		GroupID:       group.GroupID,
		ReceiptSeries: group.ReceiptSeries,
		ReceiptNumber: group.ReceiptNumber,
		PartnerID:     group.PartnerID,
		PartnerName:   group.PartnerName,
		Status:        group.Status().String(),
		TotalAmount:   group.TotalAmount(),
		Members:       members,
	}
}

func (r AllocationRequest) ref() ledger.DocumentRef {
	if r.ExternalCode != "" {
		return ledger.NewExternalDocumentRef(r.ExternalCode)
	}
	return ledger.NewDocumentRef(r.Series, r.Number)
}

// RecordGroup validates and records one receipt group. Validation is
// all-or-nothing: every allocation must fit inside the effective remaining
// balance of its document and none may target a document with a collection
// already in flight, otherwise nothing is persisted.
func (s *CollectionService) RecordGroup(ctx context.Context, req RecordGroupRequest) (*ReceiptGroupResponse, error) {
	if len(req.Allocations) == 0 {
		return nil, shared.NewDomainError("EMPTY_GROUP", "Receipt must settle at least one document")
	}

	partner, err := s.catalogRepo.FindPartner(ctx, req.PartnerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("UNKNOWN_PARTNER", "Partner is not in the local catalog")
		}
		return nil, err
	}

	remote, err := s.balanceRepo.FindAll(ctx, &partner.ID)
	if err != nil {
		return nil, err
	}
	unsent, err := s.invoiceRepo.FindUnsent(ctx)
	if err != nil {
		return nil, err
	}
	counting, err := s.collectionRepo.FindCountingAgainstBalance(ctx, &partner.ID)
	if err != nil {
		return nil, err
	}
	terms, err := s.catalogRepo.PaymentTermsByPartner(ctx)
	if err != nil {
		return nil, err
	}

	// Allocations in the same request may hit the same document, so the
	// check runs against the remaining balance net of earlier lines.
	requested := make(map[string]decimal.Decimal, len(req.Allocations))
	for _, alloc := range req.Allocations {
		ref := alloc.ref()
		if ref.IsZero() {
			return nil, shared.NewDomainError("INVALID_REFERENCE", "Allocation must reference an invoice or external document")
		}
		if !alloc.Amount.IsPositive() {
			return nil, shared.NewDomainError("INVALID_AMOUNT", fmt.Sprintf("Allocation for %s must be positive", ref))
		}

		inFlight, err := s.collectionRepo.ExistsInFlightFor(ctx, partner.ID, ref)
		if err != nil {
			return nil, err
		}
		if inFlight {
			return nil, shared.NewDomainError("SEND_IN_PROGRESS",
				fmt.Sprintf("A collection for %s is already awaiting sync; wait for it to settle", ref))
		}

		key := ref.Key(partner.ID)
		remaining := s.reconciler.RemainingFor(partner.ID, ref, remote, unsent, counting, terms).Amount()
		remaining = remaining.Sub(requested[key])
		if alloc.Amount.GreaterThan(remaining.Add(ledger.BalanceEpsilon)) {
			return nil, shared.NewDomainError("INSUFFICIENT_BALANCE",
				fmt.Sprintf("Document %s has %s remaining, cannot collect %s", ref, remaining.StringFixed(2), alloc.Amount.StringFixed(2)))
		}
		requested[key] = requested[key].Add(alloc.Amount)
	}

	receiptNumber, err := s.allocateReceiptNumber(ctx)
	if err != nil {
		return nil, err
	}

	groupID := uuid.New()
	collectedAt := req.CollectedAt
	if collectedAt.IsZero() {
		collectedAt = s.now()
	}

	members := make([]ledger.Collection, 0, len(req.Allocations))
	for _, alloc := range req.Allocations {
		c, err := ledger.NewCollection(groupID, s.receiptSeries, receiptNumber,
			partner.ID, partner.Name, alloc.ref(), valueobject.NewMoneyRON(alloc.Amount), collectedAt)
		if err != nil {
			return nil, err
		}
		members = append(members, *c)
	}

	if err := s.collectionRepo.SaveGroup(ctx, members); err != nil {
		return nil, err
	}

	group, err := ledger.NewReceiptGroup(members)
	if err != nil {
		return nil, err
	}
	return toReceiptGroupResponse(group), nil
}

// RecordFromInvoice records a single-allocation receipt settling one document
func (s *CollectionService) RecordFromInvoice(ctx context.Context, partnerID uuid.UUID, ref ledger.DocumentRef, amount decimal.Decimal, collectedAt time.Time) (*ReceiptGroupResponse, error) {
	return s.RecordGroup(ctx, RecordGroupRequest{
		PartnerID:   partnerID,
		CollectedAt: collectedAt,
		Allocations: []AllocationRequest{{
			Series:       ref.Series,
			Number:       ref.Number,
			ExternalCode: ref.ExternalCode,
			Amount:       amount,
		}},
	})
}

func (s *CollectionService) allocateReceiptNumber(ctx context.Context) (string, error) {
	number, err := s.rangeRepo.Allocate(ctx, ledger.CounterKindReceipt)
	if err == nil {
		return strconv.FormatInt(number, 10), nil
	}
	if errors.Is(err, shared.ErrRangeNotConfigured) && s.allowFallback {
		return strconv.FormatInt(ledger.UnmanagedNumber(ledger.CounterKindReceipt, s.now()).Number, 10), nil
	}
	return "", err
}

// GetGroup loads one receipt group
func (s *CollectionService) GetGroup(ctx context.Context, groupID uuid.UUID) (*ReceiptGroupResponse, error) {
	group, err := s.collectionRepo.FindGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return toReceiptGroupResponse(group), nil
}

// ListCollections lists collection rows with filtering, newest first
func (s *CollectionService) ListCollections(ctx context.Context, filter ledger.CollectionFilter) ([]CollectionResponse, error) {
	rows, err := s.collectionRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	responses := make([]CollectionResponse, 0, len(rows))
	for i := range rows {
		m := &rows[i]
		responses = append(responses, CollectionResponse{
			ID:          m.ID,
			InvoiceRef:  m.InvoiceRef.String(),
			Amount:      m.Amount,
			Status:      m.Status.String(),
			CollectedAt: m.CollectedAt,
			SyncedAt:    m.SyncedAt,
			LastError:   m.LastError,
		})
	}
	return responses, nil
}

// SendGroup pushes one receipt group to the remote ledger. The group is
// claimed with a conditional flip to sending, checked against the duplicate
// guard first; a group the remote side already settled is marked synced
// without resending.
func (s *CollectionService) SendGroup(ctx context.Context, groupID uuid.UUID) (*ReceiptGroupResponse, error) {
	group, err := s.collectionRepo.FindGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	switch group.Status() {
	case ledger.CollectionStatusSynced:
		// Already settled; re-sending is a no-op.
		return toReceiptGroupResponse(group), nil
	case ledger.CollectionStatusSending:
		return nil, shared.ErrSendInProgress
	}

	fiscalCode := ""
	if partner, err := s.catalogRepo.FindPartner(ctx, group.PartnerID); err == nil {
		fiscalCode = partner.FiscalCode
	}
	if s.guard != nil && s.guard.AlreadySettled(ctx, group, fiscalCode) {
		now := s.now()
		if _, err := s.collectionRepo.UpdateGroupStatus(ctx, groupID, ledger.CollectionStatusSynced, "", &now); err != nil {
			return nil, err
		}
		resp, err := s.GetGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		resp.AlreadySettled = true
		return resp, nil
	}

	claimed, err := s.collectionRepo.BeginGroupSend(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if claimed == 0 {
		return nil, shared.ErrSendInProgress
	}

	if _, err := s.gateway.PushReceiptGroup(ctx, group); err != nil {
		next := ledger.CollectionStatusPending
		if ledger.IsGatewayRejection(err) {
			next = ledger.CollectionStatusFailed
		}
		if _, releaseErr := s.collectionRepo.UpdateGroupStatus(ctx, groupID, next, err.Error(), nil); releaseErr != nil {
			return nil, releaseErr
		}
		return nil, err
	}

	now := s.now()
	if _, err := s.collectionRepo.UpdateGroupStatus(ctx, groupID, ledger.CollectionStatusSynced, "", &now); err != nil {
		return nil, err
	}
	return s.GetGroup(ctx, groupID)
}

// RetryableGroups lists receipt groups with members still awaiting sync,
// oldest first
func (s *CollectionService) RetryableGroups(ctx context.Context) ([]uuid.UUID, error) {
	return s.collectionRepo.FindRetryableGroups(ctx)
}

// DeleteGroup removes a receipt group that was never synced
func (s *CollectionService) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	return s.collectionRepo.DeleteGroup(ctx, groupID)
}
