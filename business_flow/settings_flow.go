package businessflow

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/amirphl/sms-gateway-bridge/app/dto"
	"github.com/amirphl/sms-gateway-bridge/app/services"
	"github.com/amirphl/sms-gateway-bridge/models"
	"github.com/amirphl/sms-gateway-bridge/repository"
	"github.com/amirphl/sms-gateway-bridge/utils"
)

// SettingsFlow manages the per-account gateway credentials
type SettingsFlow interface {
	UpdateGatewaySettings(ctx context.Context, accountID uint, req *dto.UpdateGatewaySettingsRequest, metadata *ClientMetadata) (*dto.GatewaySettingsResponse, error)
	GetGatewaySettings(ctx context.Context, accountID uint) (*dto.GatewaySettingsResponse, error)
}

type SettingsFlowImpl struct {
	accountRepo repository.AccountRepository
	cipher      services.SecretCipher
	logger      *log.Logger
}

func NewSettingsFlow(accountRepo repository.AccountRepository, cipher services.SecretCipher, logger *log.Logger) SettingsFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &SettingsFlowImpl{
		accountRepo: accountRepo,
		cipher:      cipher,
		logger:      logger,
	}
}

// UpdateGatewaySettings stores all three fields together or clears them all
func (f *SettingsFlowImpl) UpdateGatewaySettings(ctx context.Context, accountID uint, req *dto.UpdateGatewaySettingsRequest, metadata *ClientMetadata) (*dto.GatewaySettingsResponse, error) {
	if req == nil {
		return nil, NewBusinessError("INVALID_REQUEST", "request is required", nil)
	}

	account, err := f.fetchAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimSpace(utils.Deref(req.BaseURL))
	username := strings.TrimSpace(utils.Deref(req.Username))
	password := utils.Deref(req.Password)

	provided := 0
	for _, v := range []string{baseURL, username, password} {
		if v != "" {
			provided++
		}
	}

	switch provided {
	case 0:
		if err := f.accountRepo.UpdateGatewayCredentials(ctx, account.ID, nil, nil, nil); err != nil {
			return nil, NewBusinessError("SETTINGS_UPDATE_FAILED", "Failed to update gateway settings", err)
		}
		f.logger.Printf("gateway settings cleared account_id=%d %s", account.ID, metadata)

	case 3:
		if err := validateGatewayURL(baseURL); err != nil {
			return nil, err
		}
		sealed, err := f.cipher.Encrypt(ctx, []byte(password))
		if err != nil {
			return nil, NewBusinessError("CREDENTIAL_ENCRYPTION_FAILED", "Failed to encrypt gateway password", err)
		}
		encrypted := string(sealed)
		baseURL = strings.TrimRight(baseURL, "/")
		if err := f.accountRepo.UpdateGatewayCredentials(ctx, account.ID, &baseURL, &username, &encrypted); err != nil {
			return nil, NewBusinessError("SETTINGS_UPDATE_FAILED", "Failed to update gateway settings", err)
		}
		f.logger.Printf("gateway settings updated account_id=%d base_url=%s username=%s %s", account.ID, baseURL, username, metadata)

	default:
		return nil, NewBusinessError("PARTIAL_GATEWAY_SETTINGS", "Please provide all SMS gateway fields (URL, username, password) or leave them all blank", ErrPartialGatewaySettings)
	}

	resp, err := f.GetGatewaySettings(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	resp.Message = "SMS gateway settings updated successfully"
	return resp, nil
}

func (f *SettingsFlowImpl) GetGatewaySettings(ctx context.Context, accountID uint) (*dto.GatewaySettingsResponse, error) {
	account, err := f.fetchAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &dto.GatewaySettingsResponse{
		Message:    "SMS gateway settings retrieved",
		BaseURL:    account.GatewayBaseURL,
		Username:   account.GatewayUsername,
		Configured: account.HasGatewayConfigured(),
		UpdatedAt:  account.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (f *SettingsFlowImpl) fetchAccount(ctx context.Context, accountID uint) (*models.Account, error) {
	account, err := f.accountRepo.ByID(ctx, accountID)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_FETCH_FAILED", "Failed to fetch account", fmt.Errorf("%w: %w", ErrAccountFetchFailed, err))
	}
	if account == nil {
		return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "Account not found", ErrAccountNotFound)
	}
	return account, nil
}

func validateGatewayURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return NewBusinessError("INVALID_GATEWAY_URL", "Gateway base URL must be an absolute http or https URL", ErrInvalidGatewayURL)
	}
	return nil
}
