package ledger

import (
	"context"
	"errors"
)

// Gateway errors. Callers branch on these to decide between retrying later
// (unavailable) and surfacing a permanent rejection (rejected).
var (
	// ErrGatewayUnavailable marks transient transport failures: timeouts,
	// connection refusals, 5xx responses. The document stays retryable.
	ErrGatewayUnavailable = errors.New("remote ledger unavailable")

	// ErrGatewayRejected marks a definitive remote rejection of the
	// submitted document. Retrying the same payload will not help.
	ErrGatewayRejected = errors.New("remote ledger rejected the document")
)

// IsGatewayUnavailable reports whether the error is a transient transport failure
func IsGatewayUnavailable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}

// IsGatewayRejection reports whether the remote ledger definitively rejected
// the document
func IsGatewayRejection(err error) bool {
	return errors.Is(err, ErrGatewayRejected)
}

// PushInvoiceResponse is the remote ledger's acknowledgement of an invoice
type PushInvoiceResponse struct {
	RemoteDocID string
}

// PushReceiptResponse is the remote ledger's acknowledgement of a receipt group
type PushReceiptResponse struct {
	RemoteDocID string
}

// RemoteGateway is the outbound port to the remote accounting system. All
// calls cross an unreliable network; implementations must honor the context
// and classify failures with the gateway sentinel errors.
type RemoteGateway interface {
	// PushInvoice submits one invoice for acceptance
	PushInvoice(ctx context.Context, invoice *Invoice) (*PushInvoiceResponse, error)

	// PushReceiptGroup submits a whole receipt group for settlement
	PushReceiptGroup(ctx context.Context, group *ReceiptGroup) (*PushReceiptResponse, error)

	// PullBalances fetches the full open-items snapshot
	PullBalances(ctx context.Context) ([]RemoteBalanceLine, error)

	// PullPartnerBalances fetches the open-items snapshot for one partner.
	// Used by the duplicate guard, which needs fresh data for a single
	// partner right before settling.
	PullPartnerBalances(ctx context.Context, fiscalCode string) ([]RemoteBalanceLine, error)

	// PullPartners fetches the partner catalog with delivery locations
	PullPartners(ctx context.Context) ([]Partner, []Location, error)

	// PullProducts fetches the product catalog with negotiated prices
	PullProducts(ctx context.Context) ([]Product, []OfferPrice, error)
}
