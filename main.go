// Package main provides the main entry point for the SMS gateway bridge
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/sms-gateway-bridge/app/dto"
	"github.com/amirphl/sms-gateway-bridge/app/handlers"
	"github.com/amirphl/sms-gateway-bridge/app/middleware"
	"github.com/amirphl/sms-gateway-bridge/app/queue"
	"github.com/amirphl/sms-gateway-bridge/app/router"
	"github.com/amirphl/sms-gateway-bridge/app/scheduler"
	"github.com/amirphl/sms-gateway-bridge/app/services"
	businessflow "github.com/amirphl/sms-gateway-bridge/business_flow"
	"github.com/amirphl/sms-gateway-bridge/config"
	"github.com/amirphl/sms-gateway-bridge/models"
	"github.com/amirphl/sms-gateway-bridge/repository"
	"github.com/amirphl/sms-gateway-bridge/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.Config
	server    *fiber.App
	logOutput io.WriteCloser
	stopFuncs []func()
}

func main() {
	issueToken := flag.Uint("issue-token", 0, "print an access token for the given account id and exit")
	flag.Parse()

	log.Println("Starting SMS gateway bridge...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *issueToken != 0 {
		if err := printAccessToken(cfg, uint(*issueToken)); err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		return
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.logOutput.Close()

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// HTTP stops before the workers
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	for _, fn := range app.stopFuncs {
		fn()
	}

	log.Println("Server stopped")
}

// initializeDatabase opens the configured driver and applies the pool settings
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// sqlite allows one writer at a time
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(models.All()...); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	log.Printf("Database connection established (driver=%s)", cfg.Driver)

	return db, nil
}

// initializeRedis connects to Redis and verifies connectivity
func initializeRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.DB != 0 {
		opt.DB = cfg.DB
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", opt.DB)
	return rc, nil
}

// startRedisHealthMonitor periodically pings Redis to surface connectivity issues.
// The returned cancel function stops the monitor.
func startRedisHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("WARNING Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

func initializeTokenService(cfg config.JWTConfig) (services.TokenService, error) {
	tokenService, err := services.NewTokenService(
		cfg.AccessTokenTTL,
		cfg.Issuer,
		cfg.Audience,
		cfg.UseRSAKeys,
		cfg.PrivateKey,
		cfg.PublicKey,
		cfg.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	return tokenService, nil
}

// printAccessToken writes a bearer token for accountID to stdout
func printAccessToken(cfg *config.Config, accountID uint) error {
	tokenService, err := initializeTokenService(cfg.JWT)
	if err != nil {
		return err
	}
	access, err := tokenService.GenerateAccessToken(accountID)
	if err != nil {
		return err
	}
	fmt.Println(access)
	return nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.Config) (*Application, error) {
	var stopFuncs []func()

	logOutput := utils.NewLogOutput(cfg.Logging.LogFileOptions())

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	healthChecks := map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	// Task queue
	var taskQueue queue.Queue
	switch cfg.Queue.Driver {
	case "memory":
		taskQueue = queue.NewMemoryQueue(utils.UTCNow)
		log.Println("WARNING using in-memory task queue; pending tasks are lost on restart")
	default:
		rc, err := initializeRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		stopFuncs = append(stopFuncs, startRedisHealthMonitor(context.Background(), rc, cfg.Redis.HealthCheckInterval))
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
		healthChecks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
		taskQueue = queue.NewRedisQueue(rc, cfg.Queue.KeyPrefix, cfg.Queue.VisibilityTimeout, utils.NewLogger(logOutput, "[queue] "))
	}

	// Repositories
	accountRepo := repository.NewAccountRepository(db)
	incomingRepo := repository.NewIncomingSMSRepository(db)
	failedRepo := repository.NewFailedTaskRepository(db)

	// Services
	cipher, err := services.NewAESGCMSecretCipher(cfg.Security.AppKey, cfg.Security.KeyID, cfg.Security.KeyVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secret cipher: %w", err)
	}

	tokenService, err := initializeTokenService(cfg.JWT)
	if err != nil {
		return nil, err
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	var defaults services.GatewayDefaults
	if cfg.Gateway.SimSlot > 0 {
		sim := cfg.Gateway.SimSlot
		defaults.SimNumber = &sim
	}
	defaults.WithDeliveryReport = cfg.Gateway.DeliveryReport

	gatewayClient := services.NewHTTPGatewayClient(
		&http.Client{},
		defaults,
		cfg.Gateway.SendTimeout,
		cfg.Gateway.StatusTimeout,
		utils.NewLogger(logOutput, "[gateway] "),
	)

	// Flows
	flowLogger := utils.NewLogger(logOutput, "[flow] ")
	resolver := businessflow.NewCredentialResolver(accountRepo, cipher, flowLogger)
	smsFlow := businessflow.NewSMSFlow(resolver, gatewayClient, taskQueue, flowLogger)
	webhookFlow := businessflow.NewWebhookFlow(cfg.Webhook.Secret, cfg.Webhook.Tolerance, taskQueue, flowLogger, utils.UTCNow)
	settingsFlow := businessflow.NewSettingsFlow(accountRepo, cipher, flowLogger)
	inboxFlow := businessflow.NewInboxFlow(incomingRepo)

	if cfg.Webhook.Secret == "" {
		log.Println("WARNING SMS_GATEWAY_WEBHOOK_SECRET is empty; webhook signatures are not verified")
	}

	if cfg.HasBootstrapGateway() {
		if err := bootstrapAccount(context.Background(), db, accountRepo, settingsFlow, cfg); err != nil {
			return nil, err
		}
	}

	// Background jobs
	if cfg.Queue.WorkerEnable {
		jobLogger := utils.NewLogger(logOutput, "[job] ")
		deliveryJob := businessflow.NewDeliveryJob(
			resolver,
			gatewayClient,
			taskQueue,
			failedRepo,
			businessflow.RetryPolicy{MaxRetries: cfg.Queue.MaxRetries, Backoff: cfg.Queue.RetryBackoff},
			jobLogger,
			utils.UTCNow,
		)
		incomingJob := businessflow.NewIncomingSMSJob(accountRepo, incomingRepo, jobLogger, utils.UTCNow)

		worker := scheduler.NewTaskWorker(taskQueue, scheduler.WorkerConfig{
			PollInterval: cfg.Queue.PollInterval,
			BatchSize:    cfg.Queue.BatchSize,
			Concurrency:  cfg.Queue.Concurrency,
		}, utils.NewLogger(logOutput, "[worker] "), utils.UTCNow)
		worker.Register(queue.KindDeliverSMS, deliveryJob.Run)
		worker.Register(queue.KindProcessIncomingSMS, incomingJob.Run)

		// workers drain before the redis client closes
		stopFuncs = append([]func(){worker.Start(context.Background())}, stopFuncs...)
	}

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	fiberRouter := router.NewFiberRouter(router.Config{
		BodyLimit:          cfg.Server.BodyLimit,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		IdleTimeout:        cfg.Server.IdleTimeout,
		CORSAllowOrigins:   cfg.Security.AllowedOrigins,
		RateLimitPerMinute: cfg.Server.RateLimit,
		MetricsEnabled:     cfg.Metrics.Enabled,
		MetricsPath:        cfg.Metrics.Path,
		AccessLog:          logOutput,
		HealthChecks:       healthChecks,
	}, router.Handlers{
		SMS:      handlers.NewSMSHandler(smsFlow),
		Settings: handlers.NewSettingsHandler(settingsFlow),
		Inbox:    handlers.NewInboxHandler(inboxFlow),
		Webhook:  handlers.NewWebhookHandler(webhookFlow),
	}, authMiddleware)

	return &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		logOutput: logOutput,
		stopFuncs: stopFuncs,
	}, nil
}

// bootstrapAccount stores the env gateway credentials on the named account,
// creating the account on first start
func bootstrapAccount(ctx context.Context, db *gorm.DB, accountRepo repository.AccountRepository, settingsFlow businessflow.SettingsFlow, cfg *config.Config) error {
	return repository.WithTransaction(ctx, db, func(ctx context.Context) error {
		return bootstrapAccountTx(ctx, accountRepo, settingsFlow, cfg)
	})
}

func bootstrapAccountTx(ctx context.Context, accountRepo repository.AccountRepository, settingsFlow businessflow.SettingsFlow, cfg *config.Config) error {
	name := cfg.Bootstrap.AccountName
	accounts, err := accountRepo.ByFilter(ctx, models.AccountFilter{Name: &name}, "id ASC", 1, 0)
	if err != nil {
		return fmt.Errorf("failed to look up bootstrap account: %w", err)
	}

	var account *models.Account
	if len(accounts) > 0 {
		account = accounts[0]
	} else {
		account = &models.Account{Name: name}
		if err := accountRepo.Save(ctx, account); err != nil {
			return fmt.Errorf("failed to create bootstrap account: %w", err)
		}
	}

	req := &dto.UpdateGatewaySettingsRequest{
		BaseURL:  &cfg.Gateway.BaseURL,
		Username: &cfg.Gateway.Username,
		Password: &cfg.Gateway.Password,
	}
	if _, err := settingsFlow.UpdateGatewaySettings(ctx, account.ID, req, businessflow.NewClientMetadata("", "bootstrap")); err != nil {
		var be *businessflow.BusinessError
		if errors.As(err, &be) {
			return fmt.Errorf("failed to store bootstrap gateway settings: %s: %w", be.Code, err)
		}
		return fmt.Errorf("failed to store bootstrap gateway settings: %w", err)
	}

	log.Printf("Bootstrap account %q (id=%d) uses gateway %s", account.Name, account.ID, cfg.Gateway.BaseURL)
	return nil
}
