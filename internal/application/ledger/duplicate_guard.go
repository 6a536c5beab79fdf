package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
)

// DuplicateGuardBuffer is the tolerance applied when comparing a receipt
// group's total against the freshly pulled remote rest. Wider than the
// balance epsilon on purpose: the guard must not block legitimate sends over
// rounding drift between the two ledgers.
var DuplicateGuardBuffer = decimal.NewFromFloat(0.5)

// DuplicateGuard detects receipt groups that were already settled remotely,
// typically because an earlier send succeeded but its acknowledgement was
// lost. Right before a group is submitted it pulls the partner's fresh
// open-items snapshot and compares what the remote ledger still considers
// unpaid against what the group is about to settle.
type DuplicateGuard struct {
	gateway ledger.RemoteGateway
	logger  *zap.Logger
}

// NewDuplicateGuard creates a new duplicate guard
func NewDuplicateGuard(gateway ledger.RemoteGateway, log *zap.Logger) *DuplicateGuard {
	if log == nil {
		log = zap.NewNop()
	}
	return &DuplicateGuard{gateway: gateway, logger: log}
}

// AlreadySettled reports whether the remote ledger has already absorbed the
// group's payment. When the fresh pull cannot be obtained the guard answers
// false and the send proceeds: a duplicate can still be rejected remotely,
// a collection skipped on a hunch is lost for good.
func (g *DuplicateGuard) AlreadySettled(ctx context.Context, group *ledger.ReceiptGroup, fiscalCode string) bool {
	if fiscalCode == "" {
		return false
	}

	lines, err := g.gateway.PullPartnerBalances(ctx, fiscalCode)
	if err != nil {
		g.logger.Warn("duplicate guard check skipped, partner balance pull failed",
			zap.String("receipt_group_id", group.GroupID.String()),
			zap.String("fiscal_code", fiscalCode),
			zap.Error(err))
		return false
	}

	restByKey := make(map[string]decimal.Decimal, len(lines))
	for i := range lines {
		key := lines[i].Ref.Key(lines[i].PartnerID)
		restByKey[key] = restByKey[key].Add(lines[i].Rest)
	}

	// Only refs the remote ledger still reports carry an unpaid rest; a ref
	// absent from the snapshot is fully paid from the remote point of view.
	remoteRest := decimal.Zero
	for _, ref := range group.InvoiceRefs() {
		remoteRest = remoteRest.Add(restByKey[ref.Key(group.PartnerID)])
	}

	total := group.TotalAmount()
	settled := remoteRest.LessThan(total.Sub(DuplicateGuardBuffer))
	if settled {
		g.logger.Info("receipt group already settled remotely, skipping send",
			zap.String("receipt_group_id", group.GroupID.String()),
			zap.String("receipt_number", group.ReceiptNumber),
			zap.String("group_total", total.String()),
			zap.String("remote_rest", remoteRest.String()))
	}
	return settled
}
