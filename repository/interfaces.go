package repository

import (
	"context"

	"github.com/amirphl/sms-gateway-bridge/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// AccountRepository defines operations for accounts and their gateway credentials
type AccountRepository interface {
	Repository[models.Account, models.AccountFilter]
	ByGatewayUsername(ctx context.Context, username string) (*models.Account, error)
	UpdateGatewayCredentials(ctx context.Context, accountID uint, baseURL, username, passwordEncrypted *string) error
}

// IncomingSMSRepository defines operations for inbound messages
type IncomingSMSRepository interface {
	Repository[models.IncomingSMS, models.IncomingSMSFilter]
}

// FailedTaskRepository defines operations for permanently failed tasks
type FailedTaskRepository interface {
	Repository[models.FailedTask, models.FailedTaskFilter]
}
