package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/repositories/memory"
)

func TestPaymentSettingsDefaultsUntilSaved(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	svc, err := NewSettingsService(SettingsServiceDeps{Settings: memory.NewSettingsRepository(), Clock: clock.Now})
	require.NoError(t, err)
	ctx := context.Background()

	settings, err := svc.PaymentSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPaymentSettings(), settings)

	saved, err := svc.UpdatePaymentSettings(ctx, UpdatePaymentSettingsCommand{
		CardEnabled:    true,
		PushQREnabled:  true,
		PublishableKey: "pk_test_abc123",
		PushQR: domain.PushQRDisplay{
			UEN:          "201912345k",
			DisplayName:  "Shun Harvest",
			ContactEmail: "hello@shunharvest.test",
			QRImageURL:   "https://cdn.example.com/qr.png",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "201912345K", saved.PushQR.UEN)
	assert.Equal(t, clock.now, saved.UpdatedAt)

	loaded, err := svc.PaymentSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestPaymentSettingsValidation(t *testing.T) {
	svc, err := NewSettingsService(SettingsServiceDeps{Settings: memory.NewSettingsRepository()})
	require.NoError(t, err)

	cases := map[string]UpdatePaymentSettingsCommand{
		"secret key":        {CardEnabled: true, PublishableKey: "sk_live_abc"},
		"push-qr needs uen": {PushQREnabled: true},
		"bad uen":           {PushQR: domain.PushQRDisplay{UEN: "12"}},
		"bad email":         {PushQR: domain.PushQRDisplay{ContactEmail: "nope"}},
		"relative qr image": {PushQR: domain.PushQRDisplay{QRImageURL: "/qr.png"}},
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.UpdatePaymentSettings(context.Background(), cmd)
			require.ErrorIs(t, err, ErrSettingsInvalidInput)
		})
	}
}

type brokenSettingsRepo struct{}

func (brokenSettingsRepo) PaymentSettings(context.Context) (domain.PaymentSettings, bool, error) {
	return domain.PaymentSettings{}, false, errors.New("unavailable")
}

func (brokenSettingsRepo) SavePaymentSettings(context.Context, domain.PaymentSettings) error {
	return errors.New("unavailable")
}

func TestPaymentSettingsPropagatesStoreErrors(t *testing.T) {
	svc, err := NewSettingsService(SettingsServiceDeps{Settings: brokenSettingsRepo{}})
	require.NoError(t, err)
	_, err = svc.PaymentSettings(context.Background())
	require.Error(t, err)
}
