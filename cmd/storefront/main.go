package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/handlers"
	"github.com/favianyip/shunharvest/internal/payments"
	"github.com/favianyip/shunharvest/internal/platform/auth"
	"github.com/favianyip/shunharvest/internal/platform/config"
	pfirestore "github.com/favianyip/shunharvest/internal/platform/firestore"
	"github.com/favianyip/shunharvest/internal/platform/idempotency"
	"github.com/favianyip/shunharvest/internal/platform/jobs"
	"github.com/favianyip/shunharvest/internal/platform/observability"
	"github.com/favianyip/shunharvest/internal/platform/secrets"
	"github.com/favianyip/shunharvest/internal/repositories"
	firestoreRepo "github.com/favianyip/shunharvest/internal/repositories/firestore"
	"github.com/favianyip/shunharvest/internal/repositories/memory"
	"github.com/favianyip/shunharvest/internal/services"
)

func main() {
	ctx := context.Background()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["SHOP_LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("storefront")

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets("PSP.StripeAPIKey", "PSP.StripeWebhookSecret", "Admin.PasswordHash", "Admin.JWTSecret"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	registry, provider, err := newRegistry(cfg)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("repository close error", zap.Error(err))
		}
	}()

	publisher, closePublisher, err := newOrderPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise order event publisher", zap.Error(err))
	}
	defer closePublisher()

	eventLogger := func(component string) func(context.Context, string, map[string]any) {
		return observability.NewEventLogger(baseLogger, component)
	}

	gateway, err := payments.NewStripeGateway(payments.StripeGatewayConfig{
		APIKey:  cfg.PSP.StripeAPIKey,
		Timeout: cfg.PSP.Timeout,
		Logger:  payments.StripeLogger(eventLogger("stripe")),
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe gateway", zap.Error(err))
	}
	verifier, err := payments.NewStripeWebhookVerifier(cfg.PSP.StripeWebhookSecret, 0)
	if err != nil {
		logger.Fatal("failed to initialise stripe webhook verifier", zap.Error(err))
	}

	defaults := domain.DefaultPaymentSettings()
	defaults.PublishableKey = cfg.PSP.StripePublishableKey
	settingsService, err := services.NewSettingsService(services.SettingsServiceDeps{
		Settings: registry.Settings(),
		Defaults: &defaults,
		Logger:   eventLogger("settings"),
	})
	if err != nil {
		logger.Fatal("failed to initialise settings service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:   registry.Products(),
		Categories: registry.Categories(),
		Banners:    registry.Banners(),
		Currency:   cfg.PSP.Currency,
		Logger:     eventLogger("catalog"),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	cartPricer, err := services.NewCartPricer(services.CartPricerDeps{
		Products: registry.Products(),
		Currency: cfg.PSP.Currency,
	})
	if err != nil {
		logger.Fatal("failed to initialise cart pricer", zap.Error(err))
	}

	checkoutDeps := services.CheckoutServiceDeps{
		Gateway:              gateway,
		Settings:             settingsService,
		Currency:             cfg.PSP.Currency,
		ShippingCountries:    cfg.Checkout.ShippingCountries,
		ExpressShippingMinor: cfg.Checkout.ExpressShippingMinor,
		PushQRMethod:         cfg.PSP.PushQRMethod,
		Logger:               eventLogger("checkout"),
	}
	if cfg.Checkout.CatalogPricing {
		checkoutDeps.Pricer = cartPricer
	}
	checkoutService, err := services.NewCheckoutService(checkoutDeps)
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	orderDeps := services.OrderServiceDeps{
		Orders: registry.Orders(),
		Logger: eventLogger("orders"),
	}
	if publisher != nil {
		orderDeps.Events = publisher
	}
	orderService, err := services.NewOrderService(orderDeps)
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	paymentEvents, err := services.NewPaymentEventService(services.PaymentEventServiceDeps{
		Verifier:      verifier,
		Orders:        orderService,
		Currency:      cfg.PSP.Currency,
		PushQRMethod:  cfg.PSP.PushQRMethod,
		MeterProvider: otel.GetMeterProvider(),
		Logger:        eventLogger("payments"),
	})
	if err != nil {
		logger.Fatal("failed to initialise payment event service", zap.Error(err))
	}

	credentials, err := auth.NewCredentialChecker(cfg.Admin.Username, cfg.Admin.PasswordHash)
	if err != nil {
		logger.Fatal("failed to initialise admin credentials", zap.Error(err))
	}
	tokens, err := auth.NewTokenIssuer(cfg.Admin.JWTSecret, auth.WithTokenTTL(cfg.Admin.TokenTTL))
	if err != nil {
		logger.Fatal("failed to initialise admin token issuer", zap.Error(err))
	}
	adminAuthService, err := services.NewAdminAuthService(services.AdminAuthServiceDeps{
		Credentials: credentials,
		Tokens:      tokens,
		Logger:      eventLogger("admin"),
	})
	if err != nil {
		logger.Fatal("failed to initialise admin auth service", zap.Error(err))
	}

	var idempotencyStore idempotency.Store = idempotency.NewMemoryStore()
	if provider != nil {
		idempotencyStore = idempotency.NewFirestoreStore(provider)
	}
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	startIdempotencyCleanup(cleanupCtx, &cleanupWG, logger.Named("idempotency"), idempotencyStore, cfg.Idempotency)

	requireAdmin := handlers.AdminMiddleware(tokens.RequireAdmin())
	publicHandlers := handlers.NewPublicHandlers(catalogService, settingsService, cartPricer, cfg.PSP.Currency)
	checkoutHandlers := handlers.NewCheckoutHandlers(checkoutService,
		handlers.WithCheckoutBaseURL(cfg.Checkout.PublicBaseURL),
		handlers.WithCheckoutRateLimit(cfg.RateLimits.CheckoutPerMinute),
	)
	webhookHandlers := handlers.NewPaymentWebhookHandlers(paymentEvents)
	adminAuthHandlers := handlers.NewAdminAuthHandlers(adminAuthService, cfg.RateLimits.LoginPerMinute)
	adminCatalogHandlers := handlers.NewAdminCatalogHandlers(requireAdmin, catalogService, cfg.PSP.Currency)
	adminOrderHandlers := handlers.NewAdminOrderHandlers(requireAdmin, orderService)
	adminSettingsHandlers := handlers.NewAdminSettingsHandlers(requireAdmin, settingsService)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadinessCheck("storage", registry.Health().Ping),
	)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPublicRoutes(publicHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithCheckoutMiddlewares(idempotencyMiddleware),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithAdminRoutes(func(r chi.Router) {
			adminAuthHandlers.Routes(r)
			adminCatalogHandlers.Routes(r)
			adminOrderHandlers.Routes(r)
			adminSettingsHandlers.Routes(r)
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr), zap.String("storage", cfg.Storage.Driver))
	go func() {
		serverLogger.Info("storefront listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newRegistry(cfg config.Config) (repositories.Registry, *pfirestore.Provider, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		return memory.NewRegistry(), nil, nil
	}
	provider := pfirestore.NewProvider(cfg.Firestore, cfg.Firebase)
	registry, err := firestoreRepo.NewRegistry(provider, cfg.PSP.Currency)
	if err != nil {
		_ = provider.Close()
		return nil, nil, err
	}
	return registry, provider, nil
}

// newOrderPublisher returns a nil publisher when no topic is configured.
func newOrderPublisher(ctx context.Context, cfg config.Config) (*jobs.PubSubOrderPublisher, func(), error) {
	topicName := strings.TrimSpace(cfg.PubSub.OrderTopic)
	if topicName == "" {
		return nil, func() {}, nil
	}
	var opts []option.ClientOption
	if path := strings.TrimSpace(cfg.Firebase.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	publisher, err := jobs.NewPubSubOrderPublisher(client.Topic(topicName))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return publisher, func() {
		publisher.Stop()
		_ = client.Close()
	}, nil
}

func startIdempotencyCleanup(ctx context.Context, wg *sync.WaitGroup, logger *zap.Logger, store idempotency.Store, cfg config.IdempotencyConfig) {
	if cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.CleanupInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, time.Minute)
				removed, err := store.CleanupExpired(runCtx, time.Now().UTC(), cfg.CleanupBatchSize)
				cancel()
				if err != nil {
					logger.Error("idempotency cleanup error", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Info("idempotency cleanup removed records", zap.Int("count", removed))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}
	project := lookup("SHOP_SECRET_DEFAULT_PROJECT_ID")
	if project == "" {
		project = lookup("SHOP_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("SHOP_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
		secrets.WithFallbackFile(fallbackPath),
	}
	var clientOpts []option.ClientOption
	if path := lookup("SHOP_FIREBASE_CREDENTIALS_FILE"); path != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(path))
	}
	return secrets.NewFetcher(ctx, opts, clientOpts...)
}
