package models

import (
	"strings"
	"time"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
	"github.com/fieldsales/ledgersync/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentRefModel maps the domain DocumentRef to three flat columns.
// Embedded with a prefix by the models that carry a reference.
type DocumentRefModel struct {
	Series       string `gorm:"type:varchar(20)"`
	Number       string `gorm:"type:varchar(40)"`
	ExternalCode string `gorm:"type:varchar(60)"`
}

// ToDomain converts the model to a domain DocumentRef
func (m DocumentRefModel) ToDomain() ledger.DocumentRef {
	return ledger.DocumentRef{
		Series:       m.Series,
		Number:       m.Number,
		ExternalCode: m.ExternalCode,
	}
}

// DocumentRefModelFromDomain creates a model from a domain DocumentRef.
// Parts are stored trimmed so plain column equality matches the normalized
// comparison DocumentRef.Key performs.
func DocumentRefModelFromDomain(r ledger.DocumentRef) DocumentRefModel {
	return DocumentRefModel{
		Series:       strings.TrimSpace(r.Series),
		Number:       strings.TrimSpace(r.Number),
		ExternalCode: strings.TrimSpace(r.ExternalCode),
	}
}

// InvoiceModel is the persistence model for the Invoice aggregate.
type InvoiceModel struct {
	AggregateModel
	Number      int64                `gorm:"not null;uniqueIndex"`
	Series      string               `gorm:"type:varchar(20);not null"`
	PartnerID   uuid.UUID            `gorm:"type:uuid;not null;index"`
	PartnerName string               `gorm:"type:varchar(200);not null"`
	LocationID  uuid.UUID            `gorm:"type:uuid;not null"`
	Status      ledger.InvoiceStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	Notes       string               `gorm:"type:text"`
	SentAt      *time.Time
	RemoteDocID string             `gorm:"type:varchar(60)"`
	LastError   string             `gorm:"type:text"`
	Items       []InvoiceItemModel `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice aggregate.
func (m *InvoiceModel) ToDomain() *ledger.Invoice {
	items := make([]ledger.InvoiceItem, 0, len(m.Items))
	for i := range m.Items {
		items = append(items, m.Items[i].ToDomain())
	}
	return &ledger.Invoice{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Number:            m.Number,
		Series:            m.Series,
		PartnerID:         m.PartnerID,
		PartnerName:       m.PartnerName,
		LocationID:        m.LocationID,
		Status:            m.Status,
		Items:             items,
		Notes:             m.Notes,
		SentAt:            m.SentAt,
		RemoteDocID:       m.RemoteDocID,
		LastError:         m.LastError,
	}
}

// FromDomain populates the persistence model from a domain Invoice aggregate.
func (m *InvoiceModel) FromDomain(inv *ledger.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.Number = inv.Number
	m.Series = inv.Series
	m.PartnerID = inv.PartnerID
	m.PartnerName = inv.PartnerName
	m.LocationID = inv.LocationID
	m.Status = inv.Status
	m.Notes = inv.Notes
	m.SentAt = inv.SentAt
	m.RemoteDocID = inv.RemoteDocID
	m.LastError = inv.LastError
	m.Items = make([]InvoiceItemModel, 0, len(inv.Items))
	for i := range inv.Items {
		item := InvoiceItemModel{}
		item.FromDomain(&inv.Items[i])
		m.Items = append(m.Items, item)
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *ledger.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceItemModel is the persistence model for one invoice line.
type InvoiceItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName string          `gorm:"type:varchar(200);not null"`
	Unit        string          `gorm:"type:varchar(20)"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	VATRate     decimal.Decimal `gorm:"type:decimal(8,4);not null"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceItem
func (m *InvoiceItemModel) ToDomain() ledger.InvoiceItem {
	return ledger.InvoiceItem{
		ID:          m.ID,
		InvoiceID:   m.InvoiceID,
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		Unit:        m.Unit,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		VATRate:     m.VATRate,
		LineTotal:   m.LineTotal,
	}
}

// FromDomain populates the persistence model from a domain InvoiceItem
func (m *InvoiceItemModel) FromDomain(item *ledger.InvoiceItem) {
	m.ID = item.ID
	m.InvoiceID = item.InvoiceID
	m.ProductID = item.ProductID
	m.ProductName = item.ProductName
	m.Unit = item.Unit
	m.Quantity = item.Quantity
	m.UnitPrice = item.UnitPrice
	m.VATRate = item.VATRate
	m.LineTotal = item.LineTotal
}

// CollectionModel is the persistence model for the Collection aggregate.
type CollectionModel struct {
	AggregateModel
	ReceiptGroupID uuid.UUID               `gorm:"type:uuid;not null;index"`
	ReceiptSeries  string                  `gorm:"type:varchar(20)"`
	ReceiptNumber  string                  `gorm:"type:varchar(40)"`
	PartnerID      uuid.UUID               `gorm:"type:uuid;not null;index"`
	PartnerName    string                  `gorm:"type:varchar(200);not null"`
	InvoiceRef     DocumentRefModel        `gorm:"embedded;embeddedPrefix:ref_"`
	Amount         decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Status         ledger.CollectionStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	CollectedAt    time.Time               `gorm:"not null"`
	SyncedAt       *time.Time
	LastError      string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (CollectionModel) TableName() string {
	return "collections"
}

// ToDomain converts the persistence model to a domain Collection aggregate.
func (m *CollectionModel) ToDomain() *ledger.Collection {
	return &ledger.Collection{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ReceiptGroupID:    m.ReceiptGroupID,
		ReceiptSeries:     m.ReceiptSeries,
		ReceiptNumber:     m.ReceiptNumber,
		PartnerID:         m.PartnerID,
		PartnerName:       m.PartnerName,
		InvoiceRef:        m.InvoiceRef.ToDomain(),
		Amount:            m.Amount,
		Status:            m.Status,
		CollectedAt:       m.CollectedAt,
		SyncedAt:          m.SyncedAt,
		LastError:         m.LastError,
	}
}

// FromDomain populates the persistence model from a domain Collection aggregate.
func (m *CollectionModel) FromDomain(c *ledger.Collection) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.ReceiptGroupID = c.ReceiptGroupID
	m.ReceiptSeries = c.ReceiptSeries
	m.ReceiptNumber = c.ReceiptNumber
	m.PartnerID = c.PartnerID
	m.PartnerName = c.PartnerName
	m.InvoiceRef = DocumentRefModelFromDomain(c.InvoiceRef)
	m.Amount = c.Amount
	m.Status = c.Status
	m.CollectedAt = c.CollectedAt
	m.SyncedAt = c.SyncedAt
	m.LastError = c.LastError
}

// CollectionModelFromDomain creates a new persistence model from a domain Collection.
func CollectionModelFromDomain(c *ledger.Collection) *CollectionModel {
	m := &CollectionModel{}
	m.FromDomain(c)
	return m
}

// NumberRangeModel is the persistence model for one document number range.
// One row per counter kind; Current is only ever advanced by a conditional
// single-statement update.
type NumberRangeModel struct {
	Kind      ledger.CounterKind `gorm:"type:varchar(20);primary_key"`
	Start     int64              `gorm:"not null"`
	End       int64              `gorm:"column:end_number;not null"`
	Current   int64              `gorm:"not null"`
	UpdatedAt time.Time          `gorm:"not null"`
}

// TableName returns the table name for GORM
func (NumberRangeModel) TableName() string {
	return "number_ranges"
}

// ToDomain converts the persistence model to a domain NumberRange
func (m *NumberRangeModel) ToDomain() *ledger.NumberRange {
	return &ledger.NumberRange{
		Kind:    m.Kind,
		Start:   m.Start,
		End:     m.End,
		Current: m.Current,
	}
}

// NumberRangeModelFromDomain creates a persistence model from a domain NumberRange
func NumberRangeModelFromDomain(r *ledger.NumberRange) *NumberRangeModel {
	return &NumberRangeModel{
		Kind:      r.Kind,
		Start:     r.Start,
		End:       r.End,
		Current:   r.Current,
		UpdatedAt: time.Now(),
	}
}

// RemoteBalanceLineModel is the persistence model for one line of the remote
// open-items snapshot. The table is replaced wholesale on each pull.
type RemoteBalanceLineModel struct {
	ID           uuid.UUID        `gorm:"type:uuid;primary_key"`
	PartnerID    uuid.UUID        `gorm:"type:uuid;not null;index"`
	PartnerName  string           `gorm:"type:varchar(200)"`
	FiscalCode   string           `gorm:"type:varchar(40)"`
	DocumentType string           `gorm:"type:varchar(40)"`
	Ref          DocumentRefModel `gorm:"embedded;embeddedPrefix:ref_"`
	Total        decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	Rest         decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	Currency     string           `gorm:"type:varchar(3);not null;default:'RON'"`
	IssuedAt     *time.Time
	DueAt        *time.Time
	SyncedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RemoteBalanceLineModel) TableName() string {
	return "remote_balance_lines"
}

// ToDomain converts the persistence model to a domain RemoteBalanceLine
func (m *RemoteBalanceLineModel) ToDomain() ledger.RemoteBalanceLine {
	return ledger.RemoteBalanceLine{
		ID:           m.ID,
		PartnerID:    m.PartnerID,
		PartnerName:  m.PartnerName,
		FiscalCode:   m.FiscalCode,
		DocumentType: m.DocumentType,
		Ref:          m.Ref.ToDomain(),
		Total:        m.Total,
		Rest:         m.Rest,
		Currency:     valueobject.Currency(m.Currency),
		IssuedAt:     m.IssuedAt,
		DueAt:        m.DueAt,
		SyncedAt:     m.SyncedAt,
	}
}

// RemoteBalanceLineModelFromDomain creates a persistence model from a domain line
func RemoteBalanceLineModelFromDomain(l *ledger.RemoteBalanceLine) *RemoteBalanceLineModel {
	id := l.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &RemoteBalanceLineModel{
		ID:           id,
		PartnerID:    l.PartnerID,
		PartnerName:  l.PartnerName,
		FiscalCode:   l.FiscalCode,
		DocumentType: l.DocumentType,
		Ref:          DocumentRefModelFromDomain(l.Ref),
		Total:        l.Total,
		Rest:         l.Rest,
		Currency:     string(l.Currency),
		IssuedAt:     l.IssuedAt,
		DueAt:        l.DueAt,
		SyncedAt:     l.SyncedAt,
	}
}
