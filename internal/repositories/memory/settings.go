package memory

import (
	"context"
	"sync"

	"github.com/favianyip/shunharvest/internal/domain"
)

// SettingsRepository stores the payment settings record in memory.
type SettingsRepository struct {
	mu       sync.RWMutex
	settings *domain.PaymentSettings
}

// NewSettingsRepository returns a repository with nothing saved.
func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{}
}

func (r *SettingsRepository) PaymentSettings(context.Context) (domain.PaymentSettings, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.settings == nil {
		return domain.PaymentSettings{}, false, nil
	}
	return *r.settings, true, nil
}

func (r *SettingsRepository) SavePaymentSettings(_ context.Context, settings domain.PaymentSettings) error {
	r.mu.Lock()
	r.settings = &settings
	r.mu.Unlock()
	return nil
}
