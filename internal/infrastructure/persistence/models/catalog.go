package models

import (
	"time"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PartnerModel is the persistence model for the partner catalog cache.
type PartnerModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	Name            string    `gorm:"type:varchar(200);not null;index"`
	FiscalCode      string    `gorm:"type:varchar(40);index"`
	RegistryCode    string    `gorm:"type:varchar(40)"`
	ExternalCode    string    `gorm:"type:varchar(60)"`
	PaymentTermDays *int
	CreditLimit     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency        string          `gorm:"type:varchar(3)"`
	Blocked         bool            `gorm:"not null;default:false"`
	Inactive        bool            `gorm:"not null;default:false"`
	SyncedAt        time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PartnerModel) TableName() string {
	return "partners"
}

// ToDomain converts the persistence model to a domain Partner
func (m *PartnerModel) ToDomain() *ledger.Partner {
	return &ledger.Partner{
		ID:              m.ID,
		Name:            m.Name,
		FiscalCode:      m.FiscalCode,
		RegistryCode:    m.RegistryCode,
		ExternalCode:    m.ExternalCode,
		PaymentTermDays: m.PaymentTermDays,
		CreditLimit:     m.CreditLimit,
		Currency:        m.Currency,
		Blocked:         m.Blocked,
		Inactive:        m.Inactive,
		SyncedAt:        m.SyncedAt,
	}
}

// PartnerModelFromDomain creates a persistence model from a domain Partner
func PartnerModelFromDomain(p *ledger.Partner) *PartnerModel {
	return &PartnerModel{
		ID:              p.ID,
		Name:            p.Name,
		FiscalCode:      p.FiscalCode,
		RegistryCode:    p.RegistryCode,
		ExternalCode:    p.ExternalCode,
		PaymentTermDays: p.PaymentTermDays,
		CreditLimit:     p.CreditLimit,
		Currency:        p.Currency,
		Blocked:         p.Blocked,
		Inactive:        p.Inactive,
		SyncedAt:        p.SyncedAt,
	}
}

// LocationModel is the persistence model for a partner delivery location.
type LocationModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	PartnerID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Name           string    `gorm:"type:varchar(200);not null"`
	Address        string    `gorm:"type:varchar(400)"`
	ExternalSiteID string    `gorm:"type:varchar(60)"`
	Inactive       bool      `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (LocationModel) TableName() string {
	return "locations"
}

// ToDomain converts the persistence model to a domain Location
func (m *LocationModel) ToDomain() *ledger.Location {
	return &ledger.Location{
		ID:             m.ID,
		PartnerID:      m.PartnerID,
		Name:           m.Name,
		Address:        m.Address,
		ExternalSiteID: m.ExternalSiteID,
		Inactive:       m.Inactive,
	}
}

// LocationModelFromDomain creates a persistence model from a domain Location
func LocationModelFromDomain(l *ledger.Location) *LocationModel {
	return &LocationModel{
		ID:             l.ID,
		PartnerID:      l.PartnerID,
		Name:           l.Name,
		Address:        l.Address,
		ExternalSiteID: l.ExternalSiteID,
		Inactive:       l.Inactive,
	}
}

// ProductModel is the persistence model for the product catalog cache.
type ProductModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	Name      string          `gorm:"type:varchar(200);not null;index"`
	Unit      string          `gorm:"type:varchar(20)"`
	ListPrice decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	VATRate   decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	SyncedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *ledger.Product {
	return &ledger.Product{
		ID:        m.ID,
		Name:      m.Name,
		Unit:      m.Unit,
		ListPrice: m.ListPrice,
		VATRate:   m.VATRate,
		SyncedAt:  m.SyncedAt,
	}
}

// ProductModelFromDomain creates a persistence model from a domain Product
func ProductModelFromDomain(p *ledger.Product) *ProductModel {
	return &ProductModel{
		ID:        p.ID,
		Name:      p.Name,
		Unit:      p.Unit,
		ListPrice: p.ListPrice,
		VATRate:   p.VATRate,
		SyncedAt:  p.SyncedAt,
	}
}

// OfferPriceModel is the persistence model for a negotiated partner price.
type OfferPriceModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_offer_product_partner,priority:1"`
	PartnerID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_offer_product_partner,priority:2"`
	Price     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (OfferPriceModel) TableName() string {
	return "offer_prices"
}

// ToDomain converts the persistence model to a domain OfferPrice
func (m *OfferPriceModel) ToDomain() *ledger.OfferPrice {
	return &ledger.OfferPrice{
		ID:        m.ID,
		ProductID: m.ProductID,
		PartnerID: m.PartnerID,
		Price:     m.Price,
	}
}

// OfferPriceModelFromDomain creates a persistence model from a domain OfferPrice
func OfferPriceModelFromDomain(o *ledger.OfferPrice) *OfferPriceModel {
	return &OfferPriceModel{
		ID:        o.ID,
		ProductID: o.ProductID,
		PartnerID: o.PartnerID,
		Price:     o.Price,
	}
}
