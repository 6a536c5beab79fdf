package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockInvoiceRepository is a mock implementation of ledger.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByNumber(ctx context.Context, number int64) (*ledger.Invoice, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAll(ctx context.Context, filter ledger.InvoiceFilter) ([]ledger.Invoice, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]ledger.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindPending(ctx context.Context) ([]ledger.Invoice, error) {
	args := m.Called(ctx)
	return args.Get(0).([]ledger.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindUnsent(ctx context.Context) ([]ledger.Invoice, error) {
	args := m.Called(ctx)
	return args.Get(0).([]ledger.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *ledger.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next ledger.InvoiceStatus, lastError string) error {
	args := m.Called(ctx, id, expected, next, lastError)
	return args.Error(0)
}

func (m *MockInvoiceRepository) CompleteSend(ctx context.Context, id uuid.UUID, remoteDocID string, sentAt time.Time) error {
	args := m.Called(ctx, id, remoteDocID, sentAt)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockCollectionRepository is a mock implementation of ledger.CollectionRepository
type MockCollectionRepository struct {
	mock.Mock
}

func (m *MockCollectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Collection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Collection), args.Error(1)
}

func (m *MockCollectionRepository) FindGroup(ctx context.Context, groupID uuid.UUID) (*ledger.ReceiptGroup, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.ReceiptGroup), args.Error(1)
}

func (m *MockCollectionRepository) FindAll(ctx context.Context, filter ledger.CollectionFilter) ([]ledger.Collection, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]ledger.Collection), args.Error(1)
}

func (m *MockCollectionRepository) FindRetryableGroups(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockCollectionRepository) FindCountingAgainstBalance(ctx context.Context, partnerID *uuid.UUID) ([]ledger.Collection, error) {
	args := m.Called(ctx, partnerID)
	return args.Get(0).([]ledger.Collection), args.Error(1)
}

func (m *MockCollectionRepository) ExistsInFlightFor(ctx context.Context, partnerID uuid.UUID, ref ledger.DocumentRef) (bool, error) {
	args := m.Called(ctx, partnerID, ref)
	return args.Bool(0), args.Error(1)
}

func (m *MockCollectionRepository) SaveGroup(ctx context.Context, members []ledger.Collection) error {
	args := m.Called(ctx, members)
	return args.Error(0)
}

func (m *MockCollectionRepository) UpdateGroupStatus(ctx context.Context, groupID uuid.UUID, next ledger.CollectionStatus, lastError string, syncedAt *time.Time) (int64, error) {
	args := m.Called(ctx, groupID, next, lastError, syncedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCollectionRepository) BeginGroupSend(ctx context.Context, groupID uuid.UUID) (int64, error) {
	args := m.Called(ctx, groupID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCollectionRepository) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

// MockNumberRangeRepository is a mock implementation of ledger.NumberRangeRepository
type MockNumberRangeRepository struct {
	mock.Mock
}

func (m *MockNumberRangeRepository) Find(ctx context.Context, kind ledger.CounterKind) (*ledger.NumberRange, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.NumberRange), args.Error(1)
}

func (m *MockNumberRangeRepository) Configure(ctx context.Context, r *ledger.NumberRange) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockNumberRangeRepository) Allocate(ctx context.Context, kind ledger.CounterKind) (int64, error) {
	args := m.Called(ctx, kind)
	return args.Get(0).(int64), args.Error(1)
}

// MockRemoteBalanceRepository is a mock implementation of ledger.RemoteBalanceRepository
type MockRemoteBalanceRepository struct {
	mock.Mock
}

func (m *MockRemoteBalanceRepository) FindAll(ctx context.Context, partnerID *uuid.UUID) ([]ledger.RemoteBalanceLine, error) {
	args := m.Called(ctx, partnerID)
	return args.Get(0).([]ledger.RemoteBalanceLine), args.Error(1)
}

func (m *MockRemoteBalanceRepository) ReplaceAll(ctx context.Context, lines []ledger.RemoteBalanceLine) error {
	args := m.Called(ctx, lines)
	return args.Error(0)
}

// MockCatalogRepository is a mock implementation of ledger.CatalogRepository
type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) FindPartner(ctx context.Context, id uuid.UUID) (*ledger.Partner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Partner), args.Error(1)
}

func (m *MockCatalogRepository) FindLocation(ctx context.Context, id uuid.UUID) (*ledger.Location, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Location), args.Error(1)
}

func (m *MockCatalogRepository) FindProduct(ctx context.Context, id uuid.UUID) (*ledger.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Product), args.Error(1)
}

func (m *MockCatalogRepository) FindOfferPrice(ctx context.Context, productID, partnerID uuid.UUID) (*ledger.OfferPrice, error) {
	args := m.Called(ctx, productID, partnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.OfferPrice), args.Error(1)
}

func (m *MockCatalogRepository) PaymentTermsByPartner(ctx context.Context) (map[uuid.UUID]int, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[uuid.UUID]int), args.Error(1)
}

func (m *MockCatalogRepository) ReplacePartners(ctx context.Context, partners []ledger.Partner, locations []ledger.Location) error {
	args := m.Called(ctx, partners, locations)
	return args.Error(0)
}

func (m *MockCatalogRepository) ReplaceProducts(ctx context.Context, products []ledger.Product, offers []ledger.OfferPrice) error {
	args := m.Called(ctx, products, offers)
	return args.Error(0)
}

// MockRemoteGateway is a mock implementation of ledger.RemoteGateway
type MockRemoteGateway struct {
	mock.Mock
}

func (m *MockRemoteGateway) PushInvoice(ctx context.Context, invoice *ledger.Invoice) (*ledger.PushInvoiceResponse, error) {
	args := m.Called(ctx, invoice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.PushInvoiceResponse), args.Error(1)
}

func (m *MockRemoteGateway) PushReceiptGroup(ctx context.Context, group *ledger.ReceiptGroup) (*ledger.PushReceiptResponse, error) {
	args := m.Called(ctx, group)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.PushReceiptResponse), args.Error(1)
}

func (m *MockRemoteGateway) PullBalances(ctx context.Context) ([]ledger.RemoteBalanceLine, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.RemoteBalanceLine), args.Error(1)
}

func (m *MockRemoteGateway) PullPartnerBalances(ctx context.Context, fiscalCode string) ([]ledger.RemoteBalanceLine, error) {
	args := m.Called(ctx, fiscalCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.RemoteBalanceLine), args.Error(1)
}

func (m *MockRemoteGateway) PullPartners(ctx context.Context) ([]ledger.Partner, []ledger.Location, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]ledger.Partner), args.Get(1).([]ledger.Location), args.Error(2)
}

func (m *MockRemoteGateway) PullProducts(ctx context.Context) ([]ledger.Product, []ledger.OfferPrice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]ledger.Product), args.Get(1).([]ledger.OfferPrice), args.Error(2)
}
