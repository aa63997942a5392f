package businessflow

import (
	"context"
	"fmt"
	"log"

	"github.com/amirphl/sms-gateway-bridge/app/services"
	"github.com/amirphl/sms-gateway-bridge/repository"
)

// CredentialResolver turns an account id into usable gateway credentials.
// It never writes, so repeated calls yield the same result.
type CredentialResolver interface {
	Resolve(ctx context.Context, accountID uint) (*services.GatewayCredentials, error)
	IsConfigured(ctx context.Context, accountID uint) (bool, error)
}

type CredentialResolverImpl struct {
	accountRepo repository.AccountRepository
	cipher      services.SecretCipher
	logger      *log.Logger
}

func NewCredentialResolver(accountRepo repository.AccountRepository, cipher services.SecretCipher, logger *log.Logger) CredentialResolver {
	if logger == nil {
		logger = log.Default()
	}
	return &CredentialResolverImpl{
		accountRepo: accountRepo,
		cipher:      cipher,
		logger:      logger,
	}
}

func (r *CredentialResolverImpl) Resolve(ctx context.Context, accountID uint) (*services.GatewayCredentials, error) {
	account, err := r.accountRepo.ByID(ctx, accountID)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_FETCH_FAILED", "Failed to fetch account", fmt.Errorf("%w: %w", ErrAccountFetchFailed, err))
	}
	if account == nil {
		return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "Account not found", ErrAccountNotFound)
	}
	if !account.HasGatewayConfigured() {
		return nil, NewBusinessError("GATEWAY_NOT_CONFIGURED", "SMS gateway settings are not configured for this account", ErrGatewayNotConfigured)
	}

	password, err := r.cipher.Decrypt(ctx, []byte(*account.GatewayPasswordEncrypted))
	if err != nil {
		r.logger.Printf("CRITICAL credential decryption failed account_id=%d err=%v", accountID, err)
		return nil, NewBusinessError("CREDENTIAL_DECRYPTION_FAILED", "Stored gateway credentials could not be decrypted", ErrCredentialDecryptionFailed)
	}

	return &services.GatewayCredentials{
		BaseURL:  *account.GatewayBaseURL,
		Username: *account.GatewayUsername,
		Password: string(password),
	}, nil
}

func (r *CredentialResolverImpl) IsConfigured(ctx context.Context, accountID uint) (bool, error) {
	account, err := r.accountRepo.ByID(ctx, accountID)
	if err != nil {
		return false, NewBusinessError("ACCOUNT_FETCH_FAILED", "Failed to fetch account", fmt.Errorf("%w: %w", ErrAccountFetchFailed, err))
	}
	if account == nil {
		return false, NewBusinessError("ACCOUNT_NOT_FOUND", "Account not found", ErrAccountNotFound)
	}
	return account.HasGatewayConfigured(), nil
}
