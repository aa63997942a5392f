package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/sms-gateway-bridge/models"
	"gorm.io/gorm"
)

// AccountRepositoryImpl implements AccountRepository
type AccountRepositoryImpl struct {
	*BaseRepository[models.Account, models.AccountFilter]
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &AccountRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Account, models.AccountFilter](db),
	}
}

// ByGatewayUsername returns the account whose gateway username matches, or nil
func (r *AccountRepositoryImpl) ByGatewayUsername(ctx context.Context, username string) (*models.Account, error) {
	db := r.getDB(ctx)

	var account models.Account
	err := db.Where("gateway_username = ?", username).Order("id ASC").First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// UpdateGatewayCredentials writes the three gateway columns together. Passing
// three nils clears them.
func (r *AccountRepositoryImpl) UpdateGatewayCredentials(ctx context.Context, accountID uint, baseURL, username, passwordEncrypted *string) error {
	db := r.getDB(ctx)

	res := db.Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"gateway_base_url":           baseURL,
			"gateway_username":           username,
			"gateway_password_encrypted": passwordEncrypted,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update gateway credentials: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *AccountRepositoryImpl) ByFilter(ctx context.Context, filter models.AccountFilter, orderBy string, limit, offset int) ([]*models.Account, error) {
	db := r.applyFilter(r.getDB(ctx), filter)
	db = paginate(db, orderBy, limit, offset)

	var accounts []*models.Account
	if err := db.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *AccountRepositoryImpl) Count(ctx context.Context, filter models.AccountFilter) (int64, error) {
	db := r.applyFilter(r.getDB(ctx).Model(&models.Account{}), filter)

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AccountRepositoryImpl) applyFilter(db *gorm.DB, filter models.AccountFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.Name != nil {
		db = db.Where("name = ?", *filter.Name)
	}
	if filter.GatewayUsername != nil {
		db = db.Where("gateway_username = ?", *filter.GatewayUsername)
	}
	return db
}
