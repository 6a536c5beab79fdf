package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
	"github.com/fieldsales/ledgersync/internal/domain/shared"
	"github.com/fieldsales/ledgersync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCollectionRepository implements ledger.CollectionRepository using GORM
type GormCollectionRepository struct {
	db *gorm.DB
}

// NewGormCollectionRepository creates a new GormCollectionRepository
func NewGormCollectionRepository(db *gorm.DB) *GormCollectionRepository {
	return &GormCollectionRepository{db: db}
}

// FindByID finds a single collection row
func (r *GormCollectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Collection, error) {
	var model models.CollectionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindGroup loads all members of a receipt group
func (r *GormCollectionRepository) FindGroup(ctx context.Context, groupID uuid.UUID) (*ledger.ReceiptGroup, error) {
	var collectionModels []models.CollectionModel
	if err := r.db.WithContext(ctx).
		Where("receipt_group_id = ?", groupID).
		Order("created_at ASC").
		Find(&collectionModels).Error; err != nil {
		return nil, err
	}
	if len(collectionModels) == 0 {
		return nil, shared.ErrNotFound
	}
	return ledger.NewReceiptGroup(toDomainCollections(collectionModels))
}

// FindAll lists collection rows with filtering, newest first
func (r *GormCollectionRepository) FindAll(ctx context.Context, filter ledger.CollectionFilter) ([]ledger.Collection, error) {
	query := r.db.WithContext(ctx).Model(&models.CollectionModel{})

	if filter.PartnerID != nil {
		query = query.Where("partner_id = ?", *filter.PartnerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.FromDate != nil {
		query = query.Where("collected_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("collected_at <= ?", *filter.ToDate)
	}

	var collectionModels []models.CollectionModel
	if err := query.Order("collected_at DESC").Find(&collectionModels).Error; err != nil {
		return nil, err
	}
	return toDomainCollections(collectionModels), nil
}

// FindRetryableGroups lists group IDs with at least one pending or failed
// member, oldest first
func (r *GormCollectionRepository) FindRetryableGroups(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.CollectionModel{}).
		Where("status IN ?", []ledger.CollectionStatus{ledger.CollectionStatusPending, ledger.CollectionStatusFailed}).
		Group("receipt_group_id").
		Order("MIN(created_at) ASC").
		Pluck("receipt_group_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FindCountingAgainstBalance lists collections in a status that reduces an
// invoice's effective balance, optionally limited to one partner
func (r *GormCollectionRepository) FindCountingAgainstBalance(ctx context.Context, partnerID *uuid.UUID) ([]ledger.Collection, error) {
	query := r.db.WithContext(ctx).Model(&models.CollectionModel{}).
		Where("status IN ?", []ledger.CollectionStatus{
			ledger.CollectionStatusPending,
			ledger.CollectionStatusSending,
			ledger.CollectionStatusSynced,
		})
	if partnerID != nil {
		query = query.Where("partner_id = ?", *partnerID)
	}

	var collectionModels []models.CollectionModel
	if err := query.Find(&collectionModels).Error; err != nil {
		return nil, err
	}
	return toDomainCollections(collectionModels), nil
}

// ExistsInFlightFor reports whether any collection in pending or sending
// status already targets the given reference
func (r *GormCollectionRepository) ExistsInFlightFor(ctx context.Context, partnerID uuid.UUID, ref ledger.DocumentRef) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CollectionModel{}).
		Where("partner_id = ? AND ref_series = ? AND ref_number = ? AND ref_external_code = ?",
			partnerID,
			strings.TrimSpace(ref.Series),
			strings.TrimSpace(ref.Number),
			strings.TrimSpace(ref.ExternalCode)).
		Where("status IN ?", []ledger.CollectionStatus{ledger.CollectionStatusPending, ledger.CollectionStatusSending}).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveGroup inserts all rows of a new receipt group in one transaction; on
// any failure no row is kept
func (r *GormCollectionRepository) SaveGroup(ctx context.Context, members []ledger.Collection) error {
	if len(members) == 0 {
		return shared.NewDomainError("EMPTY_GROUP", "Receipt group has no members")
	}
	collectionModels := make([]models.CollectionModel, 0, len(members))
	for i := range members {
		collectionModels = append(collectionModels, *models.CollectionModelFromDomain(&members[i]))
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&collectionModels).Error
	})
}

// UpdateGroupStatus performs a conditional group-wide transition: rows
// already in a terminal status are left untouched. Returns the number of
// rows updated.
func (r *GormCollectionRepository) UpdateGroupStatus(ctx context.Context, groupID uuid.UUID, next ledger.CollectionStatus, lastError string, syncedAt *time.Time) (int64, error) {
	updates := map[string]any{
		"status":     next,
		"last_error": lastError,
		"updated_at": time.Now(),
		"version":    gorm.Expr("version + 1"),
	}
	if syncedAt != nil {
		updates["synced_at"] = *syncedAt
	}

	result := r.db.WithContext(ctx).Model(&models.CollectionModel{}).
		Where("receipt_group_id = ? AND status != ?", groupID, ledger.CollectionStatusSynced).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// BeginGroupSend conditionally moves a group's non-terminal members to
// sending. Returns zero when another sender already holds the group.
func (r *GormCollectionRepository) BeginGroupSend(ctx context.Context, groupID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.CollectionModel{}).
		Where("receipt_group_id = ? AND status IN ?", groupID,
			[]ledger.CollectionStatus{ledger.CollectionStatusPending, ledger.CollectionStatusFailed}).
		Updates(map[string]any{
			"status":     ledger.CollectionStatusSending,
			"updated_at": time.Now(),
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DeleteGroup removes a never-synced receipt group entirely. Groups with a
// synced or in-flight member are refused.
func (r *GormCollectionRepository) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.CollectionModel{}).
			Where("receipt_group_id = ? AND status IN ?", groupID,
				[]ledger.CollectionStatus{ledger.CollectionStatusSending, ledger.CollectionStatusSynced}).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return shared.ErrInvalidState
		}

		result := tx.Where("receipt_group_id = ?", groupID).Delete(&models.CollectionModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func toDomainCollections(collectionModels []models.CollectionModel) []ledger.Collection {
	collections := make([]ledger.Collection, 0, len(collectionModels))
	for i := range collectionModels {
		collections = append(collections, *collectionModels[i].ToDomain())
	}
	return collections
}
