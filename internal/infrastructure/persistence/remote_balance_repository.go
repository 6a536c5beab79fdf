package persistence

import (
	"context"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
	"github.com/fieldsales/ledgersync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRemoteBalanceRepository implements ledger.RemoteBalanceRepository using GORM
type GormRemoteBalanceRepository struct {
	db *gorm.DB
}

// NewGormRemoteBalanceRepository creates a new GormRemoteBalanceRepository
func NewGormRemoteBalanceRepository(db *gorm.DB) *GormRemoteBalanceRepository {
	return &GormRemoteBalanceRepository{db: db}
}

// FindAll lists snapshot lines, optionally limited to one partner
func (r *GormRemoteBalanceRepository) FindAll(ctx context.Context, partnerID *uuid.UUID) ([]ledger.RemoteBalanceLine, error) {
	query := r.db.WithContext(ctx).Model(&models.RemoteBalanceLineModel{})
	if partnerID != nil {
		query = query.Where("partner_id = ?", *partnerID)
	}

	var lineModels []models.RemoteBalanceLineModel
	if err := query.Order("due_at ASC").Find(&lineModels).Error; err != nil {
		return nil, err
	}

	lines := make([]ledger.RemoteBalanceLine, 0, len(lineModels))
	for i := range lineModels {
		lines = append(lines, lineModels[i].ToDomain())
	}
	return lines, nil
}

// ReplaceAll swaps the whole snapshot in one transaction. The pull is a full
// refresh: stale lines must not survive a successful pull.
func (r *GormRemoteBalanceRepository) ReplaceAll(ctx context.Context, lines []ledger.RemoteBalanceLine) error {
	lineModels := make([]models.RemoteBalanceLineModel, 0, len(lines))
	for i := range lines {
		lineModels = append(lineModels, *models.RemoteBalanceLineModelFromDomain(&lines[i]))
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.RemoteBalanceLineModel{}).Error; err != nil {
			return err
		}
		if len(lineModels) == 0 {
			return nil
		}
		return tx.CreateInBatches(&lineModels, 200).Error
	})
}
