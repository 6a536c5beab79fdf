package persistence

import (
	"context"
	"errors"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
	"github.com/fieldsales/ledgersync/internal/domain/shared"
	"github.com/fieldsales/ledgersync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCatalogRepository implements ledger.CatalogRepository using GORM.
// The catalog tables are read caches refreshed wholesale from the remote
// ledger; nothing in them is authored locally.
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// FindPartner loads one partner
func (r *GormCatalogRepository) FindPartner(ctx context.Context, id uuid.UUID) (*ledger.Partner, error) {
	var model models.PartnerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindLocation loads one delivery location
func (r *GormCatalogRepository) FindLocation(ctx context.Context, id uuid.UUID) (*ledger.Location, error) {
	var model models.LocationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindProduct loads one product
func (r *GormCatalogRepository) FindProduct(ctx context.Context, id uuid.UUID) (*ledger.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOfferPrice loads the negotiated price for a product and partner, nil
// when none exists
func (r *GormCatalogRepository) FindOfferPrice(ctx context.Context, productID, partnerID uuid.UUID) (*ledger.OfferPrice, error) {
	var model models.OfferPriceModel
	if err := r.db.WithContext(ctx).
		First(&model, "product_id = ? AND partner_id = ?", productID, partnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// PaymentTermsByPartner returns configured payment terms keyed by partner
func (r *GormCatalogRepository) PaymentTermsByPartner(ctx context.Context) (map[uuid.UUID]int, error) {
	var partnerModels []models.PartnerModel
	if err := r.db.WithContext(ctx).
		Select("id", "payment_term_days").
		Where("payment_term_days IS NOT NULL").
		Find(&partnerModels).Error; err != nil {
		return nil, err
	}

	terms := make(map[uuid.UUID]int, len(partnerModels))
	for i := range partnerModels {
		if partnerModels[i].PaymentTermDays != nil {
			terms[partnerModels[i].ID] = *partnerModels[i].PaymentTermDays
		}
	}
	return terms, nil
}

// ReplacePartners swaps the partner cache (with locations) wholesale
func (r *GormCatalogRepository) ReplacePartners(ctx context.Context, partners []ledger.Partner, locations []ledger.Location) error {
	partnerModels := make([]models.PartnerModel, 0, len(partners))
	for i := range partners {
		partnerModels = append(partnerModels, *models.PartnerModelFromDomain(&partners[i]))
	}
	locationModels := make([]models.LocationModel, 0, len(locations))
	for i := range locations {
		locationModels = append(locationModels, *models.LocationModelFromDomain(&locations[i]))
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.LocationModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.PartnerModel{}).Error; err != nil {
			return err
		}
		if len(partnerModels) > 0 {
			if err := tx.CreateInBatches(&partnerModels, 200).Error; err != nil {
				return err
			}
		}
		if len(locationModels) > 0 {
			if err := tx.CreateInBatches(&locationModels, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceProducts swaps the product cache (with offer prices) wholesale
func (r *GormCatalogRepository) ReplaceProducts(ctx context.Context, products []ledger.Product, offers []ledger.OfferPrice) error {
	productModels := make([]models.ProductModel, 0, len(products))
	for i := range products {
		productModels = append(productModels, *models.ProductModelFromDomain(&products[i]))
	}
	offerModels := make([]models.OfferPriceModel, 0, len(offers))
	for i := range offers {
		offerModels = append(offerModels, *models.OfferPriceModelFromDomain(&offers[i]))
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.OfferPriceModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.ProductModel{}).Error; err != nil {
			return err
		}
		if len(productModels) > 0 {
			if err := tx.CreateInBatches(&productModels, 200).Error; err != nil {
				return err
			}
		}
		if len(offerModels) > 0 {
			if err := tx.CreateInBatches(&offerModels, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
