package firestore

import (
	"context"
	"time"

	"github.com/favianyip/shunharvest/internal/domain"
	pfirestore "github.com/favianyip/shunharvest/internal/platform/firestore"
)

const (
	settingsCollection = "settings"
	paymentSettingsDoc = "payments"
)

type paymentSettingsDocument struct {
	CardEnabled    bool      `firestore:"cardEnabled"`
	PushQREnabled  bool      `firestore:"paynowEnabled"`
	PublishableKey string    `firestore:"publishableKey"`
	UEN            string    `firestore:"paynowUen"`
	DisplayName    string    `firestore:"paynowDisplayName"`
	QRImageURL     string    `firestore:"paynowQrImage"`
	ContactEmail   string    `firestore:"paynowContactEmail"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

// SettingsRepository persists the settings/payments document.
type SettingsRepository struct {
	base *pfirestore.BaseRepository[paymentSettingsDocument]
}

// NewSettingsRepository binds the settings collection.
func NewSettingsRepository(provider *pfirestore.Provider) *SettingsRepository {
	return &SettingsRepository{base: pfirestore.NewBaseRepository[paymentSettingsDocument](provider, settingsCollection)}
}

func (r *SettingsRepository) PaymentSettings(ctx context.Context) (domain.PaymentSettings, bool, error) {
	doc, err := r.base.Get(ctx, paymentSettingsDoc)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.PaymentSettings{}, false, nil
		}
		return domain.PaymentSettings{}, false, err
	}
	d := doc.Data
	return domain.PaymentSettings{
		CardEnabled:    d.CardEnabled,
		PushQREnabled:  d.PushQREnabled,
		PublishableKey: d.PublishableKey,
		PushQR: domain.PushQRDisplay{
			UEN:          d.UEN,
			DisplayName:  d.DisplayName,
			QRImageURL:   d.QRImageURL,
			ContactEmail: d.ContactEmail,
		},
		UpdatedAt: d.UpdatedAt.UTC(),
	}, true, nil
}

func (r *SettingsRepository) SavePaymentSettings(ctx context.Context, s domain.PaymentSettings) error {
	return r.base.Set(ctx, paymentSettingsDoc, paymentSettingsDocument{
		CardEnabled:    s.CardEnabled,
		PushQREnabled:  s.PushQREnabled,
		PublishableKey: s.PublishableKey,
		UEN:            s.PushQR.UEN,
		DisplayName:    s.PushQR.DisplayName,
		QRImageURL:     s.PushQR.QRImageURL,
		ContactEmail:   s.PushQR.ContactEmail,
		UpdatedAt:      s.UpdatedAt.UTC(),
	})
}
