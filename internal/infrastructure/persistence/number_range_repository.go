package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
	"github.com/fieldsales/ledgersync/internal/domain/shared"
	"github.com/fieldsales/ledgersync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormNumberRangeRepository implements ledger.NumberRangeRepository using GORM
type GormNumberRangeRepository struct {
	db *gorm.DB
}

// NewGormNumberRangeRepository creates a new GormNumberRangeRepository
func NewGormNumberRangeRepository(db *gorm.DB) *GormNumberRangeRepository {
	return &GormNumberRangeRepository{db: db}
}

// Find loads the range configured for a counter kind
func (r *GormNumberRangeRepository) Find(ctx context.Context, kind ledger.CounterKind) (*ledger.NumberRange, error) {
	var model models.NumberRangeModel
	if err := r.db.WithContext(ctx).First(&model, "kind = ?", kind).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrRangeNotConfigured
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Configure creates or replaces the range for a counter kind
func (r *GormNumberRangeRepository) Configure(ctx context.Context, nr *ledger.NumberRange) error {
	if err := nr.Validate(); err != nil {
		return err
	}
	model := models.NumberRangeModelFromDomain(nr)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// Allocate consumes the next number for the kind with a single conditional
// update. The guard on the cursor makes concurrent callers serialize on the
// row: no two callers can observe the same number.
func (r *GormNumberRangeRepository) Allocate(ctx context.Context, kind ledger.CounterKind) (int64, error) {
	var allocated int64
	result := r.db.WithContext(ctx).Raw(
		`UPDATE number_ranges
		 SET current = current + 1, updated_at = ?
		 WHERE kind = ? AND current <= end_number
		 RETURNING current - 1`,
		time.Now(), kind,
	).Scan(&allocated)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		return allocated, nil
	}

	// No row moved: the range is either missing or used up.
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.NumberRangeModel{}).
		Where("kind = ?", kind).Count(&count).Error; err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, shared.ErrRangeNotConfigured
	}
	return 0, shared.ErrRangeExhausted
}
