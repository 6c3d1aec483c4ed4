package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultShutdownTimeout      = 10 * time.Second
	defaultStorageDriver        = StorageDriverFirestore
	defaultCurrency             = "SGD"
	defaultPushQRMethod         = "paynow"
	defaultPSPTimeout           = 15 * time.Second
	defaultExpressShippingMinor = 2500
	defaultAdminUsername        = "admin"
	defaultAdminTokenTTL        = 24 * time.Hour
	defaultLoginPerMinute       = 10
	defaultCheckoutPerMinute    = 30
	defaultSecurityEnvironment  = "local"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
)

// Storage drivers accepted by SHOP_STORAGE_DRIVER.
const (
	StorageDriverFirestore = "firestore"
	StorageDriverMemory    = "memory"
)

var defaultShippingCountries = []string{"US", "CA", "SG", "JP", "GB", "AU"}

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Log         LogConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Storage     StorageConfig
	PSP         PSPConfig
	Checkout    CheckoutConfig
	Admin       AdminConfig
	RateLimits  RateLimitConfig
	PubSub      PubSubConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig selects the zap level.
type LogConfig struct {
	Level string
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig picks the persistence backend.
type StorageConfig struct {
	Driver string
}

// PSPConfig holds the Stripe credentials and call policy.
type PSPConfig struct {
	StripeAPIKey         string
	StripeWebhookSecret  string
	StripePublishableKey string
	Currency             string
	PushQRMethod         string
	Timeout              time.Duration
}

// CheckoutConfig drives checkout presentation options.
type CheckoutConfig struct {
	ShippingCountries    []string
	ExpressShippingMinor int64
	CatalogPricing       bool
	PublicBaseURL        string
}

// AdminConfig is the single back-office credential and token policy.
type AdminConfig struct {
	Username     string
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

// RateLimitConfig controls request throttling per client IP.
type RateLimitConfig struct {
	LoginPerMinute    int
	CheckoutPerMinute int
}

// PubSubConfig names the topic order events are published to. Empty disables publishing.
type PubSubConfig struct {
	ProjectID  string
	OrderTopic string
}

// SecurityConfig carries the deployment environment name.
type SecurityConfig struct {
	Environment string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// SecretResolver resolves secret:// references.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret calls f.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists missing or invalid configuration fields.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending field names.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// SecretError describes a failed secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError reports required secrets that resolved to nothing.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// Names returns the config field names of the missing secrets.
func (e *MissingSecretsError) Names() []string {
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

// RedactedNames returns hashed identifiers safe to log.
func (e *MissingSecretsError) RedactedNames() []string {
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		sum := sha256.Sum256([]byte(name))
		out = append(out, hex.EncodeToString(sum[:8]))
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the .env path; empty disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv stops Load from reading the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// and sm:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets marks secret fields (e.g. "PSP.StripeWebhookSecret") as mandatory.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// EnvironmentValues returns the merged environment (.env < OS env < explicit map) so callers
// can build the secret fetcher before Load runs.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := defaultOptions(opts)
	dotEnv, err := readDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(dotEnv))
	for k, v := range dotEnv {
		values[k] = v
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			if key, value, ok := strings.Cut(entry, "="); ok && strings.TrimSpace(key) != "" {
				values[strings.TrimSpace(key)] = value
			}
		}
	}
	for k, v := range options.envMap {
		values[k] = v
	}
	return values, nil
}

// Load assembles the configuration from defaults, .env, the environment and Secret Manager.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultOptions(opts)

	values, err := EnvironmentValues(opts...)
	if err != nil {
		return Config{}, err
	}
	env := envValues(values)

	cfg := Config{
		Server: ServerConfig{
			Port:            env.text("SHOP_SERVER_PORT", env.text("PORT", defaultPort)),
			ReadTimeout:     env.duration("SHOP_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    env.duration("SHOP_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     env.duration("SHOP_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: env.duration("SHOP_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Log: LogConfig{
			Level: env.text("SHOP_LOG_LEVEL", "info"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       env.text("SHOP_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: env.text("SHOP_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.text("SHOP_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: env.text("SHOP_FIRESTORE_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(env.text("SHOP_STORAGE_DRIVER", defaultStorageDriver)),
		},
		PSP: PSPConfig{
			StripeAPIKey:         env.text("SHOP_PSP_STRIPE_API_KEY", ""),
			StripeWebhookSecret:  env.text("SHOP_PSP_STRIPE_WEBHOOK_SECRET", ""),
			StripePublishableKey: env.text("SHOP_PSP_STRIPE_PUBLISHABLE_KEY", ""),
			Currency:             strings.ToUpper(env.text("SHOP_PSP_CURRENCY", defaultCurrency)),
			PushQRMethod:         strings.ToLower(env.text("SHOP_PSP_PUSHQR_METHOD", defaultPushQRMethod)),
			Timeout:              env.duration("SHOP_PSP_TIMEOUT", defaultPSPTimeout),
		},
		Checkout: CheckoutConfig{
			ShippingCountries:    env.upperList("SHOP_CHECKOUT_SHIPPING_COUNTRIES", defaultShippingCountries),
			ExpressShippingMinor: int64(env.integer("SHOP_CHECKOUT_EXPRESS_SHIPPING_MINOR", defaultExpressShippingMinor)),
			CatalogPricing:       env.flag("SHOP_CHECKOUT_CATALOG_PRICING", true),
			PublicBaseURL:        strings.TrimRight(env.text("SHOP_CHECKOUT_PUBLIC_BASE_URL", ""), "/"),
		},
		Admin: AdminConfig{
			Username:     env.text("SHOP_ADMIN_USERNAME", defaultAdminUsername),
			PasswordHash: env.text("SHOP_ADMIN_PASSWORD_HASH", ""),
			JWTSecret:    env.text("SHOP_ADMIN_JWT_SECRET", ""),
			TokenTTL:     env.duration("SHOP_ADMIN_TOKEN_TTL", defaultAdminTokenTTL),
		},
		RateLimits: RateLimitConfig{
			LoginPerMinute:    env.integer("SHOP_RATELIMIT_LOGIN_PER_MIN", defaultLoginPerMinute),
			CheckoutPerMinute: env.integer("SHOP_RATELIMIT_CHECKOUT_PER_MIN", defaultCheckoutPerMinute),
		},
		PubSub: PubSubConfig{
			ProjectID:  env.text("SHOP_PUBSUB_PROJECT_ID", ""),
			OrderTopic: env.text("SHOP_PUBSUB_ORDER_TOPIC", ""),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(env.text("SHOP_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
		},
		Idempotency: IdempotencyConfig{
			Header:           env.text("SHOP_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              env.duration("SHOP_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  env.duration("SHOP_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: env.integer("SHOP_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firebase.ProjectID
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"PSP.StripeAPIKey", &cfg.PSP.StripeAPIKey},
		{"PSP.StripeWebhookSecret", &cfg.PSP.StripeWebhookSecret},
		{"Admin.PasswordHash", &cfg.Admin.PasswordHash},
		{"Admin.JWTSecret", &cfg.Admin.JWTSecret},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

func defaultOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "secret://") && !strings.HasPrefix(trimmed, "sm://") {
		return value, nil
	}
	ref := "secret://" + strings.TrimPrefix(strings.TrimPrefix(trimmed, "secret://"), "sm://")
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var invalid []string
	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	switch cfg.Storage.Driver {
	case StorageDriverFirestore:
		if cfg.Firestore.ProjectID == "" {
			invalid = append(invalid, "Firestore.ProjectID")
		}
	case StorageDriverMemory:
	default:
		invalid = append(invalid, "Storage.Driver")
	}
	if len(cfg.PSP.Currency) != 3 {
		invalid = append(invalid, "PSP.Currency")
	}
	if cfg.PSP.Timeout <= 0 {
		invalid = append(invalid, "PSP.Timeout")
	}
	if cfg.Checkout.ExpressShippingMinor < 0 {
		invalid = append(invalid, "Checkout.ExpressShippingMinor")
	}
	if cfg.Admin.TokenTTL <= 0 {
		invalid = append(invalid, "Admin.TokenTTL")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		invalid = append(invalid, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		invalid = append(invalid, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		invalid = append(invalid, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		invalid = append(invalid, "Idempotency.CleanupBatchSize")
	}
	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	var missing []string
	seen := make(map[string]struct{})
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if resolved[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{names: missing}
}
