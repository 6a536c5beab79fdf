package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
	"github.com/fieldsales/ledgersync/internal/domain/shared"
	"github.com/fieldsales/ledgersync/internal/domain/shared/valueobject"
)

type collectionServiceFixture struct {
	collectionRepo *MockCollectionRepository
	invoiceRepo    *MockInvoiceRepository
	balanceRepo    *MockRemoteBalanceRepository
	rangeRepo      *MockNumberRangeRepository
	catalogRepo    *MockCatalogRepository
	gateway        *MockRemoteGateway
	partner        *ledger.Partner
}

func newCollectionServiceFixture() *collectionServiceFixture {
	return &collectionServiceFixture{
		collectionRepo: new(MockCollectionRepository),
		invoiceRepo:    new(MockInvoiceRepository),
		balanceRepo:    new(MockRemoteBalanceRepository),
		rangeRepo:      new(MockNumberRangeRepository),
		catalogRepo:    new(MockCatalogRepository),
		gateway:        new(MockRemoteGateway),
		partner: &ledger.Partner{
			ID:         uuid.New(),
			Name:       "Aprozar Deal SRL",
			FiscalCode: "RO1234567",
		},
	}
}

func (f *collectionServiceFixture) service(opts ...CollectionServiceOption) *CollectionService {
	return NewCollectionService(
		f.collectionRepo, f.invoiceRepo, f.balanceRepo, f.rangeRepo, f.catalogRepo,
		f.gateway, ledger.NewBalanceReconciler(), NewDuplicateGuard(f.gateway, nil), opts...)
}

// expectBalanceContext wires the lookups RecordGroup performs before
// validating allocations.
func (f *collectionServiceFixture) expectBalanceContext(ctx context.Context, remote []ledger.RemoteBalanceLine) {
	f.catalogRepo.On("FindPartner", ctx, f.partner.ID).Return(f.partner, nil)
	f.balanceRepo.On("FindAll", ctx, &f.partner.ID).Return(remote, nil)
	f.invoiceRepo.On("FindUnsent", ctx).Return([]ledger.Invoice{}, nil)
	f.collectionRepo.On("FindCountingAgainstBalance", ctx, &f.partner.ID).Return([]ledger.Collection{}, nil)
	f.catalogRepo.On("PaymentTermsByPartner", ctx).Return(map[uuid.UUID]int{}, nil)
}

func (f *collectionServiceFixture) remoteLine(ref ledger.DocumentRef, rest float64) ledger.RemoteBalanceLine {
	return ledger.RemoteBalanceLine{
		ID:          uuid.New(),
		PartnerID:   f.partner.ID,
		PartnerName: f.partner.Name,
		FiscalCode:  f.partner.FiscalCode,
		Ref:         ref,
		Total:       decimal.NewFromFloat(rest),
		Rest:        decimal.NewFromFloat(rest),
		Currency:    valueobject.RON,
		SyncedAt:    time.Now(),
	}
}

func TestCollectionService_RecordGroup(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	ref := ledger.NewDocumentRef("FV", "1001")

	f.expectBalanceContext(ctx, []ledger.RemoteBalanceLine{f.remoteLine(ref, 500)})
	f.collectionRepo.On("ExistsInFlightFor", ctx, f.partner.ID, ref).Return(false, nil)
	f.rangeRepo.On("Allocate", ctx, ledger.CounterKindReceipt).Return(int64(301), nil)
	f.collectionRepo.On("SaveGroup", ctx, mock.AnythingOfType("[]ledger.Collection")).Return(nil)

	resp, err := f.service().RecordGroup(ctx, RecordGroupRequest{
		PartnerID: f.partner.ID,
		Allocations: []AllocationRequest{
			{Series: "FV", Number: "1001", Amount: decimal.NewFromFloat(200)},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "CH", resp.ReceiptSeries)
	assert.Equal(t, "301", resp.ReceiptNumber)
	assert.Equal(t, "pending", resp.Status)
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(200)))
	require.Len(t, resp.Members, 1)
	f.collectionRepo.AssertExpectations(t)
}

func TestCollectionService_RecordFromInvoice(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	ref := ledger.NewDocumentRef("FV", "1001")
	collectedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	f.expectBalanceContext(ctx, []ledger.RemoteBalanceLine{f.remoteLine(ref, 500)})
	f.collectionRepo.On("ExistsInFlightFor", ctx, f.partner.ID, ref).Return(false, nil)
	f.rangeRepo.On("Allocate", ctx, ledger.CounterKindReceipt).Return(int64(304), nil)
	f.collectionRepo.On("SaveGroup", ctx, mock.Anything).Return(nil)

	resp, err := f.service().RecordFromInvoice(ctx, f.partner.ID, ref, decimal.NewFromFloat(150), collectedAt)

	require.NoError(t, err)
	require.Len(t, resp.Members, 1)
	assert.Equal(t, "304", resp.ReceiptNumber)
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(150)))
}

func TestCollectionService_RecordGroup_SplitAcrossDocuments(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	refA := ledger.NewDocumentRef("FV", "1001")
	refB := ledger.NewExternalDocumentRef("EXT-552")

	f.expectBalanceContext(ctx, []ledger.RemoteBalanceLine{
		f.remoteLine(refA, 300),
		f.remoteLine(refB, 120),
	})
	f.collectionRepo.On("ExistsInFlightFor", ctx, f.partner.ID, mock.Anything).Return(false, nil)
	f.rangeRepo.On("Allocate", ctx, ledger.CounterKindReceipt).Return(int64(302), nil)
	f.collectionRepo.On("SaveGroup", ctx, mock.MatchedBy(func(members []ledger.Collection) bool {
		if len(members) != 2 {
			return false
		}
		return members[0].ReceiptGroupID == members[1].ReceiptGroupID
	})).Return(nil)

	resp, err := f.service().RecordGroup(ctx, RecordGroupRequest{
		PartnerID: f.partner.ID,
		Allocations: []AllocationRequest{
			{Series: "FV", Number: "1001", Amount: decimal.NewFromFloat(300)},
			{ExternalCode: "EXT-552", Amount: decimal.NewFromFloat(100)},
		},
	})

	require.NoError(t, err)
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(400)))
}

func TestCollectionService_RecordGroup_OverBalance(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	ref := ledger.NewDocumentRef("FV", "1001")

	f.expectBalanceContext(ctx, []ledger.RemoteBalanceLine{f.remoteLine(ref, 150)})
	f.collectionRepo.On("ExistsInFlightFor", ctx, f.partner.ID, ref).Return(false, nil)

	_, err := f.service().RecordGroup(ctx, RecordGroupRequest{
		PartnerID: f.partner.ID,
		Allocations: []AllocationRequest{
			{Series: "FV", Number: "1001", Amount: decimal.NewFromFloat(200)},
		},
	})

	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "INSUFFICIENT_BALANCE", domainErr.Code)
	f.collectionRepo.AssertNotCalled(t, "SaveGroup", mock.Anything, mock.Anything)
	f.rangeRepo.AssertNotCalled(t, "Allocate", mock.Anything, mock.Anything)
}

func TestCollectionService_RecordGroup_WithinEpsilon(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	ref := ledger.NewDocumentRef("FV", "1001")

	// 150.005 against a 150.00 rest: inside the rounding tolerance.
	f.expectBalanceContext(ctx, []ledger.RemoteBalanceLine{f.remoteLine(ref, 150)})
	f.collectionRepo.On("ExistsInFlightFor", ctx, f.partner.ID, ref).Return(false, nil)
	f.rangeRepo.On("Allocate", ctx, ledger.CounterKindReceipt).Return(int64(303), nil)
	f.collectionRepo.On("SaveGroup", ctx, mock.Anything).Return(nil)

	_, err := f.service().RecordGroup(ctx, RecordGroupRequest{
		PartnerID: f.partner.ID,
		Allocations: []AllocationRequest{
			{Series: "FV", Number: "1001", Amount: decimal.NewFromFloat(150.005)},
		},
	})

	assert.NoError(t, err)
}

func TestCollectionService_RecordGroup_RepeatedRefConsumesBalance(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	ref := ledger.NewDocumentRef("FV", "1001")

	f.expectBalanceContext(ctx, []ledger.RemoteBalanceLine{f.remoteLine(ref, 300)})
	f.collectionRepo.On("ExistsInFlightFor", ctx, f.partner.ID, ref).Return(false, nil)

	// Two lines against the same document must fit its balance together.
	_, err := f.service().RecordGroup(ctx, RecordGroupRequest{
		PartnerID: f.partner.ID,
		Allocations: []AllocationRequest{
			{Series: "FV", Number: "1001", Amount: decimal.NewFromFloat(200)},
			{Series: "FV", Number: "1001", Amount: decimal.NewFromFloat(200)},
		},
	})

	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "INSUFFICIENT_BALANCE", domainErr.Code)
}

func TestCollectionService_RecordGroup_InFlightRejected(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	ref := ledger.NewDocumentRef("FV", "1001")

	f.expectBalanceContext(ctx, []ledger.RemoteBalanceLine{f.remoteLine(ref, 500)})
	f.collectionRepo.On("ExistsInFlightFor", ctx, f.partner.ID, ref).Return(true, nil)

	_, err := f.service().RecordGroup(ctx, RecordGroupRequest{
		PartnerID: f.partner.ID,
		Allocations: []AllocationRequest{
			{Series: "FV", Number: "1001", Amount: decimal.NewFromFloat(100)},
		},
	})

	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "SEND_IN_PROGRESS", domainErr.Code)
	f.collectionRepo.AssertNotCalled(t, "SaveGroup", mock.Anything, mock.Anything)
}

func TestCollectionService_RecordGroup_EmptyGroup(t *testing.T) {
	f := newCollectionServiceFixture()

	_, err := f.service().RecordGroup(context.Background(), RecordGroupRequest{PartnerID: f.partner.ID})

	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "EMPTY_GROUP", domainErr.Code)
}

func testReceiptGroup(t *testing.T, partnerID uuid.UUID, status ledger.CollectionStatus, amounts ...float64) *ledger.ReceiptGroup {
	t.Helper()
	groupID := uuid.New()
	members := make([]ledger.Collection, 0, len(amounts))
	for i, amount := range amounts {
		c, err := ledger.NewCollection(groupID, "CH", "301", partnerID, "Aprozar Deal SRL",
			ledger.NewDocumentRef("FV", fmt.Sprintf("100%d", i+1)),
			valueobject.NewMoneyRONFromFloat(amount), time.Now())
		require.NoError(t, err)
		c.Status = status
		members = append(members, *c)
	}
	group, err := ledger.NewReceiptGroup(members)
	require.NoError(t, err)
	return group
}

func TestCollectionService_SendGroup(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	group := testReceiptGroup(t, f.partner.ID, ledger.CollectionStatusPending, 200, 100)

	f.collectionRepo.On("FindGroup", ctx, group.GroupID).Return(group, nil)
	f.catalogRepo.On("FindPartner", ctx, f.partner.ID).Return(f.partner, nil)
	// Fresh pull still shows the full rest unpaid: not a duplicate.
	f.gateway.On("PullPartnerBalances", ctx, f.partner.FiscalCode).Return([]ledger.RemoteBalanceLine{
		f.remoteLine(ledger.NewDocumentRef("FV", "1001"), 200),
		f.remoteLine(ledger.NewDocumentRef("FV", "1002"), 100),
	}, nil)
	f.collectionRepo.On("BeginGroupSend", ctx, group.GroupID).Return(int64(2), nil)
	f.gateway.On("PushReceiptGroup", ctx, group).Return(&ledger.PushReceiptResponse{RemoteDocID: "RCP-19"}, nil)
	f.collectionRepo.On("UpdateGroupStatus", ctx, group.GroupID, ledger.CollectionStatusSynced, "", mock.AnythingOfType("*time.Time")).Return(int64(2), nil)

	_, err := f.service().SendGroup(ctx, group.GroupID)

	require.NoError(t, err)
	f.collectionRepo.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func TestCollectionService_SendGroup_AlreadySynced(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	group := testReceiptGroup(t, f.partner.ID, ledger.CollectionStatusSynced, 200)

	f.collectionRepo.On("FindGroup", ctx, group.GroupID).Return(group, nil)

	resp, err := f.service().SendGroup(ctx, group.GroupID)

	require.NoError(t, err)
	assert.Equal(t, "synced", resp.Status)
	f.gateway.AssertNotCalled(t, "PushReceiptGroup", mock.Anything, mock.Anything)
}

func TestCollectionService_SendGroup_InFlight(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	group := testReceiptGroup(t, f.partner.ID, ledger.CollectionStatusSending, 200)

	f.collectionRepo.On("FindGroup", ctx, group.GroupID).Return(group, nil)

	_, err := f.service().SendGroup(ctx, group.GroupID)

	assert.ErrorIs(t, err, shared.ErrSendInProgress)
}

func TestCollectionService_SendGroup_DuplicateGuardShortCircuits(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	group := testReceiptGroup(t, f.partner.ID, ledger.CollectionStatusPending, 200)

	f.collectionRepo.On("FindGroup", ctx, group.GroupID).Return(group, nil)
	f.catalogRepo.On("FindPartner", ctx, f.partner.ID).Return(f.partner, nil)
	// Remote already absorbed the payment: nothing left unpaid on the ref.
	f.gateway.On("PullPartnerBalances", ctx, f.partner.FiscalCode).Return([]ledger.RemoteBalanceLine{}, nil)
	f.collectionRepo.On("UpdateGroupStatus", ctx, group.GroupID, ledger.CollectionStatusSynced, "", mock.AnythingOfType("*time.Time")).Return(int64(1), nil)

	resp, err := f.service().SendGroup(ctx, group.GroupID)

	require.NoError(t, err)
	assert.True(t, resp.AlreadySettled)
	f.gateway.AssertNotCalled(t, "PushReceiptGroup", mock.Anything, mock.Anything)
	f.collectionRepo.AssertNotCalled(t, "BeginGroupSend", mock.Anything, mock.Anything)
}

func TestCollectionService_SendGroup_TransientFailureStaysRetryable(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	group := testReceiptGroup(t, f.partner.ID, ledger.CollectionStatusPending, 200)
	gatewayErr := ledger.ErrGatewayUnavailable

	f.collectionRepo.On("FindGroup", ctx, group.GroupID).Return(group, nil)
	f.catalogRepo.On("FindPartner", ctx, f.partner.ID).Return(f.partner, nil)
	f.gateway.On("PullPartnerBalances", ctx, f.partner.FiscalCode).Return([]ledger.RemoteBalanceLine{
		f.remoteLine(ledger.NewDocumentRef("FV", "1001"), 200),
	}, nil)
	f.collectionRepo.On("BeginGroupSend", ctx, group.GroupID).Return(int64(1), nil)
	f.gateway.On("PushReceiptGroup", ctx, group).Return(nil, gatewayErr)
	f.collectionRepo.On("UpdateGroupStatus", ctx, group.GroupID, ledger.CollectionStatusPending, gatewayErr.Error(), (*time.Time)(nil)).Return(int64(1), nil)

	_, err := f.service().SendGroup(ctx, group.GroupID)

	assert.True(t, ledger.IsGatewayUnavailable(err))
	f.collectionRepo.AssertExpectations(t)
}

func TestCollectionService_SendGroup_RejectionMarksFailed(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	group := testReceiptGroup(t, f.partner.ID, ledger.CollectionStatusPending, 200)
	gatewayErr := ledger.ErrGatewayRejected

	f.collectionRepo.On("FindGroup", ctx, group.GroupID).Return(group, nil)
	f.catalogRepo.On("FindPartner", ctx, f.partner.ID).Return(f.partner, nil)
	f.gateway.On("PullPartnerBalances", ctx, f.partner.FiscalCode).Return([]ledger.RemoteBalanceLine{
		f.remoteLine(ledger.NewDocumentRef("FV", "1001"), 200),
	}, nil)
	f.collectionRepo.On("BeginGroupSend", ctx, group.GroupID).Return(int64(1), nil)
	f.gateway.On("PushReceiptGroup", ctx, group).Return(nil, gatewayErr)
	f.collectionRepo.On("UpdateGroupStatus", ctx, group.GroupID, ledger.CollectionStatusFailed, gatewayErr.Error(), (*time.Time)(nil)).Return(int64(1), nil)

	_, err := f.service().SendGroup(ctx, group.GroupID)

	assert.True(t, ledger.IsGatewayRejection(err))
	f.collectionRepo.AssertExpectations(t)
}

func TestCollectionService_SendGroup_ClaimLost(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	group := testReceiptGroup(t, f.partner.ID, ledger.CollectionStatusPending, 200)

	f.collectionRepo.On("FindGroup", ctx, group.GroupID).Return(group, nil)
	f.catalogRepo.On("FindPartner", ctx, f.partner.ID).Return(f.partner, nil)
	f.gateway.On("PullPartnerBalances", ctx, f.partner.FiscalCode).Return([]ledger.RemoteBalanceLine{
		f.remoteLine(ledger.NewDocumentRef("FV", "1001"), 200),
	}, nil)
	f.collectionRepo.On("BeginGroupSend", ctx, group.GroupID).Return(int64(0), nil)

	_, err := f.service().SendGroup(ctx, group.GroupID)

	assert.ErrorIs(t, err, shared.ErrSendInProgress)
	f.gateway.AssertNotCalled(t, "PushReceiptGroup", mock.Anything, mock.Anything)
}

func TestCollectionService_ReceiptFallbackNumbering(t *testing.T) {
	f := newCollectionServiceFixture()
	ctx := context.Background()
	ref := ledger.NewDocumentRef("FV", "1001")
	fixed := time.Date(2026, 8, 30, 9, 15, 0, 0, time.UTC)

	f.expectBalanceContext(ctx, []ledger.RemoteBalanceLine{f.remoteLine(ref, 500)})
	f.collectionRepo.On("ExistsInFlightFor", ctx, f.partner.ID, ref).Return(false, nil)
	f.rangeRepo.On("Allocate", ctx, ledger.CounterKindReceipt).Return(int64(0), shared.ErrRangeNotConfigured)
	f.collectionRepo.On("SaveGroup", ctx, mock.Anything).Return(nil)

	svc := f.service(
		WithReceiptFallbackNumbering(),
		WithCollectionClock(func() time.Time { return fixed }),
	)
	resp, err := svc.RecordGroup(ctx, RecordGroupRequest{
		PartnerID: f.partner.ID,
		Allocations: []AllocationRequest{
			{Series: "FV", Number: "1001", Amount: decimal.NewFromFloat(100)},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "20260830091500", resp.ReceiptNumber)
}
