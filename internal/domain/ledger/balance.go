package ledger

import (
	"time"

	"github.com/fieldsales/ledgersync/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceEpsilon is the rounding tolerance used when comparing collected
// amounts against remaining balances (two-decimal currency).
var BalanceEpsilon = decimal.NewFromFloat(0.01)

// RemoteBalanceLine is one line of the remote ledger's open-items snapshot:
// the authoritative amount still unpaid for one document. It is not owned
// locally and is replaced wholesale on each reconciliation pull.
type RemoteBalanceLine struct {
	ID           uuid.UUID            `json:"id"`
	PartnerID    uuid.UUID            `json:"partner_id"`
	PartnerName  string               `json:"partner_name"`
	FiscalCode   string               `json:"fiscal_code"`
	DocumentType string               `json:"document_type"`
	Ref          DocumentRef          `json:"ref"`
	Total        decimal.Decimal      `json:"total"`
	Rest         decimal.Decimal      `json:"rest"` // Authoritative amount still unpaid
	Currency     valueobject.Currency `json:"currency"`
	IssuedAt     *time.Time           `json:"issued_at"`
	DueAt        *time.Time           `json:"due_at"`
	SyncedAt     time.Time            `json:"synced_at"`
}

// RestMoney returns the authoritative remaining amount as Money
func (l *RemoteBalanceLine) RestMoney() valueobject.Money {
	m, err := valueobject.NewMoney(l.Rest, l.Currency)
	if err != nil {
		return valueobject.NewMoneyRON(l.Rest)
	}
	return m
}

// IsOverdue returns true if the line is past its due date
func (l *RemoteBalanceLine) IsOverdue(now time.Time) bool {
	return l.DueAt != nil && now.After(*l.DueAt)
}

// BalanceLineSource says where an effective balance line came from
type BalanceLineSource string

const (
	BalanceLineSourceRemote      BalanceLineSource = "remote"      // Authoritative remote snapshot
	BalanceLineSourceProvisional BalanceLineSource = "provisional" // Synthesized from a local unsent invoice
)

// EffectiveBalance is the derived, never-persisted remaining amount for one
// document: rest(remote or provisional) minus all local in-flight and synced
// collections, clamped to zero.
type EffectiveBalance struct {
	PartnerID   uuid.UUID
	PartnerName string
	Ref         DocumentRef
	Source      BalanceLineSource
	Total       decimal.Decimal
	Remaining   decimal.Decimal
	DueAt       *time.Time
}

// RemainingMoney returns the remaining amount as Money
func (b *EffectiveBalance) RemainingMoney() valueobject.Money {
	return valueobject.NewMoneyRON(b.Remaining)
}

// BalanceReconciler is a stateless domain service that merges the remote
// open-items snapshot with the effect of local state. Remote data, when
// present for a reference, always wins over anything derived locally; the
// provisional path only exists so operators can record partial payment
// before the invoice is visible remotely.
type BalanceReconciler struct {
	defaultPaymentTermDays int
}

// BalanceReconcilerOption is a functional option for configuring BalanceReconciler
type BalanceReconcilerOption func(*BalanceReconciler)

// WithDefaultPaymentTerm sets the payment term applied to provisional lines
// when the partner carries none
func WithDefaultPaymentTerm(days int) BalanceReconcilerOption {
	return func(r *BalanceReconciler) {
		if days >= 0 {
			r.defaultPaymentTermDays = days
		}
	}
}

// NewBalanceReconciler creates a new balance reconciler
func NewBalanceReconciler(opts ...BalanceReconcilerOption) *BalanceReconciler {
	r := &BalanceReconciler{defaultPaymentTermDays: 30}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultPaymentTermDays returns the configured fallback payment term
func (r *BalanceReconciler) DefaultPaymentTermDays() int {
	return r.defaultPaymentTermDays
}

// collectedByRef sums collections that count against a balance, grouped by
// the normalized reference key
func collectedByRef(collections []Collection) map[string]decimal.Decimal {
	sums := make(map[string]decimal.Decimal)
	for i := range collections {
		c := &collections[i]
		if !c.Status.CountsAgainstBalance() {
			continue
		}
		key := c.InvoiceRef.Key(c.PartnerID)
		sums[key] = sums[key].Add(c.Amount)
	}
	return sums
}

// EffectiveBalances merges the remote snapshot with local unsent invoices and
// subtracts local collections. Remote lines win: a local invoice contributes a
// provisional line only while no remote line exists for its reference. Lines
// whose remaining drops to zero (within epsilon) are omitted.
func (r *BalanceReconciler) EffectiveBalances(remote []RemoteBalanceLine, localInvoices []Invoice, collections []Collection, partnerPaymentTerms map[uuid.UUID]int) []EffectiveBalance {
	collected := collectedByRef(collections)
	remoteKeys := make(map[string]struct{}, len(remote))
	balances := make([]EffectiveBalance, 0, len(remote)+len(localInvoices))

	for i := range remote {
		line := &remote[i]
		key := line.Ref.Key(line.PartnerID)
		remoteKeys[key] = struct{}{}

		remaining := line.Rest.Sub(collected[key])
		if remaining.LessThanOrEqual(BalanceEpsilon) {
			continue
		}
		balances = append(balances, EffectiveBalance{
			PartnerID:   line.PartnerID,
			PartnerName: line.PartnerName,
			Ref:         line.Ref,
			Source:      BalanceLineSourceRemote,
			Total:       line.Total,
			Remaining:   remaining,
			DueAt:       line.DueAt,
		})
	}

	for i := range localInvoices {
		inv := &localInvoices[i]
		key := inv.Ref().Key(inv.PartnerID)
		if _, seen := remoteKeys[key]; seen {
			continue
		}
		if inv.Status.IsTerminal() {
			// Sent but not yet visible in the snapshot: the remote ledger
			// owns it now, so no provisional line is synthesized.
			continue
		}

		gross := inv.GrossTotal()
		remaining := gross.Sub(collected[key])
		if remaining.LessThanOrEqual(BalanceEpsilon) {
			continue
		}

		termDays := r.defaultPaymentTermDays
		if days, ok := partnerPaymentTerms[inv.PartnerID]; ok && days >= 0 {
			termDays = days
		}
		dueAt := inv.CreatedAt.AddDate(0, 0, termDays)

		balances = append(balances, EffectiveBalance{
			PartnerID:   inv.PartnerID,
			PartnerName: inv.PartnerName,
			Ref:         inv.Ref(),
			Source:      BalanceLineSourceProvisional,
			Total:       gross,
			Remaining:   remaining,
			DueAt:       &dueAt,
		})
	}

	return balances
}

// RemainingFor computes the effective remaining amount for one reference.
// Returns zero when nothing is owed (or the reference is unknown).
func (r *BalanceReconciler) RemainingFor(partnerID uuid.UUID, ref DocumentRef, remote []RemoteBalanceLine, localInvoices []Invoice, collections []Collection, partnerPaymentTerms map[uuid.UUID]int) valueobject.Money {
	key := ref.Key(partnerID)
	for _, b := range r.EffectiveBalances(remote, localInvoices, collections, partnerPaymentTerms) {
		if b.Ref.Key(b.PartnerID) == key {
			return b.RemainingMoney()
		}
	}
	return valueobject.ZeroRON()
}
