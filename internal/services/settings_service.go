package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/repositories"
)

var (
	// ErrSettingsInvalidInput indicates an invalid settings update.
	ErrSettingsInvalidInput = errors.New("settings: invalid input")

	// Singapore UEN formats are 9 or 10 alphanumerics.
	uenPattern = regexp.MustCompile(`^[0-9]{8,9}[A-Z]$|^[STR][0-9]{2}[A-Z]{2}[0-9]{4}[A-Z]$`)
	// Publishable keys are safe to expose; secret keys never are.
	publishableKeyPattern = regexp.MustCompile(`^pk_(test|live)_[A-Za-z0-9]+$`)
)

// UpdatePaymentSettingsCommand replaces the payment settings record.
type UpdatePaymentSettingsCommand struct {
	CardEnabled    bool
	PushQREnabled  bool
	PublishableKey string
	PushQR         domain.PushQRDisplay
	ActorID        string
}

// SettingsServiceDeps wires the settings service.
type SettingsServiceDeps struct {
	Settings repositories.SettingsRepository
	// Defaults is returned until an administrator saves settings. Zero value means both
	// methods enabled.
	Defaults *PaymentSettings
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type settingsService struct {
	repo     repositories.SettingsRepository
	defaults PaymentSettings
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(deps SettingsServiceDeps) (SettingsService, error) {
	if deps.Settings == nil {
		return nil, errors.New("settings service: settings repository is required")
	}
	defaults := domain.DefaultPaymentSettings()
	if deps.Defaults != nil {
		defaults = *deps.Defaults
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &settingsService{
		repo:     deps.Settings,
		defaults: defaults,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

func (s *settingsService) PaymentSettings(ctx context.Context) (PaymentSettings, error) {
	settings, found, err := s.repo.PaymentSettings(ctx)
	if err != nil {
		return PaymentSettings{}, fmt.Errorf("settings: load payment settings: %w", err)
	}
	if !found {
		return s.defaults, nil
	}
	return settings, nil
}

func (s *settingsService) UpdatePaymentSettings(ctx context.Context, cmd UpdatePaymentSettingsCommand) (PaymentSettings, error) {
	settings := PaymentSettings{
		CardEnabled:    cmd.CardEnabled,
		PushQREnabled:  cmd.PushQREnabled,
		PublishableKey: strings.TrimSpace(cmd.PublishableKey),
		PushQR: domain.PushQRDisplay{
			UEN:          strings.ToUpper(strings.TrimSpace(cmd.PushQR.UEN)),
			DisplayName:  strings.TrimSpace(cmd.PushQR.DisplayName),
			QRImageURL:   strings.TrimSpace(cmd.PushQR.QRImageURL),
			ContactEmail: strings.TrimSpace(cmd.PushQR.ContactEmail),
		},
		UpdatedAt: s.now(),
	}
	if err := validatePaymentSettings(settings); err != nil {
		return PaymentSettings{}, err
	}
	if err := s.repo.SavePaymentSettings(ctx, settings); err != nil {
		return PaymentSettings{}, fmt.Errorf("settings: save payment settings: %w", err)
	}
	s.logger(ctx, "settings.payments.updated", map[string]any{
		"cardEnabled":   settings.CardEnabled,
		"pushQrEnabled": settings.PushQREnabled,
		"actor":         strings.TrimSpace(cmd.ActorID),
	})
	return settings, nil
}

func validatePaymentSettings(settings PaymentSettings) error {
	if settings.PublishableKey != "" && !publishableKeyPattern.MatchString(settings.PublishableKey) {
		return fmt.Errorf("%w: publishable key must start with pk_test_ or pk_live_", ErrSettingsInvalidInput)
	}
	display := settings.PushQR
	if display.UEN != "" && !uenPattern.MatchString(display.UEN) {
		return fmt.Errorf("%w: invalid UEN", ErrSettingsInvalidInput)
	}
	if settings.PushQREnabled && display.UEN == "" {
		return fmt.Errorf("%w: UEN is required when push-QR is enabled", ErrSettingsInvalidInput)
	}
	if display.ContactEmail != "" {
		if addr, err := mail.ParseAddress(display.ContactEmail); err != nil || addr.Address != display.ContactEmail {
			return fmt.Errorf("%w: invalid contact email", ErrSettingsInvalidInput)
		}
	}
	if _, err := normalizeOptionalURL("qr image", display.QRImageURL); err != nil {
		return fmt.Errorf("%w: qr image must be an absolute http(s) url", ErrSettingsInvalidInput)
	}
	return nil
}
