package businessflow

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/sms-gateway-bridge/app/queue"
	"github.com/amirphl/sms-gateway-bridge/app/services"
	"github.com/amirphl/sms-gateway-bridge/models"
	"github.com/amirphl/sms-gateway-bridge/repository"
	testingutil "github.com/amirphl/sms-gateway-bridge/testing"
	"github.com/amirphl/sms-gateway-bridge/utils"
	"github.com/stretchr/testify/require"
)

const testGatewayPassword = "gw-pass"

// fakeGateway records calls and answers with the configured functions
type fakeGateway struct {
	mu       sync.Mutex
	sendFn   func(call int, msg services.GatewayMessage) (*services.GatewayAck, error)
	statusFn func(id string) (services.GatewayStatus, error)

	sends       []services.GatewayMessage
	creds       []services.GatewayCredentials
	statusCalls int
}

func (g *fakeGateway) SendMessage(_ context.Context, creds services.GatewayCredentials, msg services.GatewayMessage) (*services.GatewayAck, error) {
	g.mu.Lock()
	g.sends = append(g.sends, msg)
	g.creds = append(g.creds, creds)
	call := len(g.sends)
	fn := g.sendFn
	g.mu.Unlock()

	if fn == nil {
		return &services.GatewayAck{ID: msg.ID, State: "Pending"}, nil
	}
	return fn(call, msg)
}

func (g *fakeGateway) GetStatus(_ context.Context, _ services.GatewayCredentials, id string) (services.GatewayStatus, error) {
	g.mu.Lock()
	g.statusCalls++
	fn := g.statusFn
	g.mu.Unlock()

	if fn == nil {
		return services.GatewayStatus{"id": id, "state": "Delivered"}, nil
	}
	return fn(id)
}

func (g *fakeGateway) httpCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sends) + g.statusCalls
}

type testEnv struct {
	db           *testingutil.TestDB
	fixtures     *testingutil.TestFixtures
	cipher       services.SecretCipher
	accountRepo  repository.AccountRepository
	incomingRepo repository.IncomingSMSRepository
	failedRepo   repository.FailedTaskRepository
	queue        *queue.MemoryQueue
	gateway      *fakeGateway
	resolver     CredentialResolver
	logger       *log.Logger
	now          time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := testingutil.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.TeardownTestDB() })

	cipher, err := services.NewAESGCMSecretCipher("test-app-key", "test", 1)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	logger := log.New(io.Discard, "", 0)
	accountRepo := repository.NewAccountRepository(db.DB)

	return &testEnv{
		db:           db,
		fixtures:     testingutil.NewTestFixtures(db),
		cipher:       cipher,
		accountRepo:  accountRepo,
		incomingRepo: repository.NewIncomingSMSRepository(db.DB),
		failedRepo:   repository.NewFailedTaskRepository(db.DB),
		queue:        queue.NewMemoryQueue(utils.FixedClock(now)),
		gateway:      &fakeGateway{},
		resolver:     NewCredentialResolver(accountRepo, cipher, logger),
		logger:       logger,
		now:          now,
	}
}

func (e *testEnv) configuredAccount(t *testing.T, name, username string) *models.Account {
	t.Helper()
	sealed, err := e.cipher.Encrypt(context.Background(), []byte(testGatewayPassword))
	require.NoError(t, err)

	account, err := e.fixtures.CreateTestAccount(name, &testingutil.GatewayFixture{
		BaseURL:           "https://gw.example.com/3rdparty/v1",
		Username:          username,
		PasswordEncrypted: string(sealed),
	})
	require.NoError(t, err)
	return account
}

func (e *testEnv) unconfiguredAccount(t *testing.T, name string) *models.Account {
	t.Helper()
	account, err := e.fixtures.CreateTestAccount(name, nil)
	require.NoError(t, err)
	return account
}

func (e *testEnv) queued(t *testing.T) []queue.ScheduledTask {
	t.Helper()
	return e.queue.Scheduled()
}

func gatewayErr(kind services.GatewayErrorKind, status int) *services.GatewayError {
	return &services.GatewayError{
		Kind:       kind,
		Operation:  services.GatewayOperationSend,
		StatusCode: status,
		URL:        "https://gw.example.com/3rdparty/v1/messages",
		Message:    "failed",
	}
}
