package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
)

// BalanceService derives effective balances from the stored remote snapshot
// and local state, and refreshes the snapshot from the remote ledger.
type BalanceService struct {
	balanceRepo    ledger.RemoteBalanceRepository
	invoiceRepo    ledger.InvoiceRepository
	collectionRepo ledger.CollectionRepository
	catalogRepo    ledger.CatalogRepository
	gateway        ledger.RemoteGateway
	reconciler     *ledger.BalanceReconciler
}

// NewBalanceService creates a new BalanceService
func NewBalanceService(
	balanceRepo ledger.RemoteBalanceRepository,
	invoiceRepo ledger.InvoiceRepository,
	collectionRepo ledger.CollectionRepository,
	catalogRepo ledger.CatalogRepository,
	gateway ledger.RemoteGateway,
	reconciler *ledger.BalanceReconciler,
) *BalanceService {
	return &BalanceService{
		balanceRepo:    balanceRepo,
		invoiceRepo:    invoiceRepo,
		collectionRepo: collectionRepo,
		catalogRepo:    catalogRepo,
		gateway:        gateway,
		reconciler:     reconciler,
	}
}

// EffectiveBalanceResponse represents one derived balance line
type EffectiveBalanceResponse struct {
	PartnerID   uuid.UUID       `json:"partner_id"`
	PartnerName string          `json:"partner_name"`
	Ref         string          `json:"ref"`
	Source      string          `json:"source"`
	Total       decimal.Decimal `json:"total"`
	Remaining   decimal.Decimal `json:"remaining"`
	DueAt       *time.Time      `json:"due_at,omitempty"`
	Overdue     bool            `json:"overdue"`
}

// EffectiveBalances derives the current open items, optionally limited to
// one partner: the stored remote snapshot merged with provisional lines for
// local unsent invoices, net of local collections.
func (s *BalanceService) EffectiveBalances(ctx context.Context, partnerID *uuid.UUID) ([]EffectiveBalanceResponse, error) {
	remote, err := s.balanceRepo.FindAll(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	unsent, err := s.invoiceRepo.FindUnsent(ctx)
	if err != nil {
		return nil, err
	}
	counting, err := s.collectionRepo.FindCountingAgainstBalance(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	terms, err := s.catalogRepo.PaymentTermsByPartner(ctx)
	if err != nil {
		return nil, err
	}

	if partnerID != nil {
		filtered := unsent[:0]
		for i := range unsent {
			if unsent[i].PartnerID == *partnerID {
				filtered = append(filtered, unsent[i])
			}
		}
		unsent = filtered
	}

	now := time.Now()
	balances := s.reconciler.EffectiveBalances(remote, unsent, counting, terms)
	responses := make([]EffectiveBalanceResponse, 0, len(balances))
	for i := range balances {
		b := &balances[i]
		responses = append(responses, EffectiveBalanceResponse{
			PartnerID:   b.PartnerID,
			PartnerName: b.PartnerName,
			Ref:         b.Ref.String(),
			Source:      string(b.Source),
			Total:       b.Total,
			Remaining:   b.Remaining,
			DueAt:       b.DueAt,
			Overdue:     b.DueAt != nil && now.After(*b.DueAt),
		})
	}
	return responses, nil
}

// RefreshFromRemote pulls the full open-items snapshot and replaces the
// stored one. Returns the number of lines stored.
func (s *BalanceService) RefreshFromRemote(ctx context.Context) (int, error) {
	lines, err := s.gateway.PullBalances(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.balanceRepo.ReplaceAll(ctx, lines); err != nil {
		return 0, err
	}
	return len(lines), nil
}
