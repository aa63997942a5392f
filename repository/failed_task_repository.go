package repository

import (
	"context"

	"github.com/amirphl/sms-gateway-bridge/models"
	"gorm.io/gorm"
)

// FailedTaskRepositoryImpl implements FailedTaskRepository
type FailedTaskRepositoryImpl struct {
	*BaseRepository[models.FailedTask, models.FailedTaskFilter]
}

func NewFailedTaskRepository(db *gorm.DB) FailedTaskRepository {
	return &FailedTaskRepositoryImpl{
		BaseRepository: NewBaseRepository[models.FailedTask, models.FailedTaskFilter](db),
	}
}

func (r *FailedTaskRepositoryImpl) ByFilter(ctx context.Context, filter models.FailedTaskFilter, orderBy string, limit, offset int) ([]*models.FailedTask, error) {
	db := r.applyFilter(r.getDB(ctx), filter)
	db = paginate(db, orderBy, limit, offset)

	var rows []*models.FailedTask
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *FailedTaskRepositoryImpl) Count(ctx context.Context, filter models.FailedTaskFilter) (int64, error) {
	db := r.applyFilter(r.getDB(ctx).Model(&models.FailedTask{}), filter)

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *FailedTaskRepositoryImpl) applyFilter(db *gorm.DB, filter models.FailedTaskFilter) *gorm.DB {
	if filter.AccountID != nil {
		db = db.Where("account_id = ?", *filter.AccountID)
	}
	if filter.MessageID != nil {
		db = db.Where("message_id = ?", *filter.MessageID)
	}
	if filter.Kind != nil {
		db = db.Where("kind = ?", *filter.Kind)
	}
	return db
}
