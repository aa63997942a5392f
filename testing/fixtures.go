package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/sms-gateway-bridge/models"
	"github.com/amirphl/sms-gateway-bridge/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// GatewayFixture is a credential triple; PasswordEncrypted must already be a
// ciphertext produced by the cipher under test
type GatewayFixture struct {
	BaseURL           string
	Username          string
	PasswordEncrypted string
}

// CreateTestAccount inserts an account, configured when gw is not nil
func (tf *TestFixtures) CreateTestAccount(name string, gw *GatewayFixture) (*models.Account, error) {
	account := &models.Account{Name: name}
	if gw != nil {
		account.GatewayBaseURL = utils.ToPtr(gw.BaseURL)
		account.GatewayUsername = utils.ToPtr(gw.Username)
		account.GatewayPasswordEncrypted = utils.ToPtr(gw.PasswordEncrypted)
	}
	if err := tf.DB.DB.Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create test account %s: %w", name, err)
	}
	return account, nil
}

// CreateTestIncomingSMS inserts an inbound message for accountID
func (tf *TestFixtures) CreateTestIncomingSMS(accountID *uint, sender, body string, receivedAt time.Time) (*models.IncomingSMS, error) {
	row := &models.IncomingSMS{
		AccountID:  accountID,
		Sender:     sender,
		Body:       body,
		ReceivedAt: receivedAt,
		RawPayload: fmt.Sprintf(`{"phoneNumber":%q,"message":%q}`, sender, body),
	}
	if err := tf.DB.DB.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create incoming sms: %w", err)
	}
	return row, nil
}
