package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Partner is a read-model row of the partner catalog cache. The cache is
// refreshed wholesale from the remote ledger; the engine only reads it to
// validate and price invoices.
type Partner struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	FiscalCode      string          `json:"fiscal_code"`
	RegistryCode    string          `json:"registry_code"`
	ExternalCode    string          `json:"external_code"`
	PaymentTermDays *int            `json:"payment_term_days"`
	CreditLimit     decimal.Decimal `json:"credit_limit"`
	Currency        string          `json:"currency"`
	Blocked         bool            `json:"blocked"`
	Inactive        bool            `json:"inactive"`
	SyncedAt        time.Time       `json:"synced_at"`
}

// Location is a delivery location belonging to a partner
type Location struct {
	ID             uuid.UUID `json:"id"`
	PartnerID      uuid.UUID `json:"partner_id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	ExternalSiteID string    `json:"external_site_id"`
	Inactive       bool      `json:"inactive"`
}

// Product is a read-model row of the product catalog cache
type Product struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	ListPrice decimal.Decimal `json:"list_price"`
	VATRate   decimal.Decimal `json:"vat_rate"` // percent
	SyncedAt  time.Time       `json:"synced_at"`
}

// OfferPrice is a partner-specific negotiated price overriding the list price
type OfferPrice struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	PartnerID uuid.UUID       `json:"partner_id"`
	Price     decimal.Decimal `json:"price"`
}

// PriceFor returns the effective unit price for a product and partner: the
// offer price when one exists, the list price otherwise.
func PriceFor(product *Product, offer *OfferPrice) decimal.Decimal {
	if offer != nil {
		return offer.Price
	}
	return product.ListPrice
}
