package repository

import (
	"context"

	"github.com/amirphl/sms-gateway-bridge/models"
	"gorm.io/gorm"
)

// IncomingSMSRepositoryImpl implements IncomingSMSRepository
type IncomingSMSRepositoryImpl struct {
	*BaseRepository[models.IncomingSMS, models.IncomingSMSFilter]
}

func NewIncomingSMSRepository(db *gorm.DB) IncomingSMSRepository {
	return &IncomingSMSRepositoryImpl{
		BaseRepository: NewBaseRepository[models.IncomingSMS, models.IncomingSMSFilter](db),
	}
}

func (r *IncomingSMSRepositoryImpl) ByFilter(ctx context.Context, filter models.IncomingSMSFilter, orderBy string, limit, offset int) ([]*models.IncomingSMS, error) {
	db := r.applyFilter(r.getDB(ctx), filter)
	db = paginate(db, orderBy, limit, offset)

	var rows []*models.IncomingSMS
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *IncomingSMSRepositoryImpl) Count(ctx context.Context, filter models.IncomingSMSFilter) (int64, error) {
	db := r.applyFilter(r.getDB(ctx).Model(&models.IncomingSMS{}), filter)

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *IncomingSMSRepositoryImpl) applyFilter(db *gorm.DB, filter models.IncomingSMSFilter) *gorm.DB {
	if filter.AccountID != nil {
		db = db.Where("account_id = ?", *filter.AccountID)
	}
	if filter.Sender != nil {
		db = db.Where("sender = ?", *filter.Sender)
	}
	if filter.GatewayMessageID != nil {
		db = db.Where("gateway_message_id = ?", *filter.GatewayMessageID)
	}
	if filter.ReceivedAfter != nil {
		db = db.Where("received_at >= ?", *filter.ReceivedAfter)
	}
	if filter.ReceivedBefore != nil {
		db = db.Where("received_at <= ?", *filter.ReceivedBefore)
	}
	return db
}
