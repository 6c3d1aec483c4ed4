package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/favianyip/shunharvest/internal/domain"
	pfirestore "github.com/favianyip/shunharvest/internal/platform/firestore"
	"github.com/favianyip/shunharvest/internal/repositories"
)

const (
	ordersCollection      = "orders"
	paymentRefsCollection = "order_payment_refs"
)

type orderItemDocument struct {
	ProductID      string `firestore:"productId"`
	Name           string `firestore:"name"`
	UnitPriceMinor int64  `firestore:"unitPriceMinor"`
	Quantity       int    `firestore:"quantity"`
	Image          string `firestore:"image,omitempty"`
}

type orderDocument struct {
	Items           []orderItemDocument `firestore:"items"`
	TotalMinor      int64               `firestore:"totalMinor"`
	AmountPaidMinor int64               `firestore:"amountPaidMinor"`
	Currency        string              `firestore:"currency"`
	Status          string              `firestore:"status"`
	CustomerEmail   string              `firestore:"customerEmail"`
	CustomerName    string              `firestore:"customerName"`
	ShippingAddress string              `firestore:"shippingAddress"`
	PaymentMethod   string              `firestore:"paymentMethod"`
	PaymentRef      string              `firestore:"paymentRef"`
	NeedsReview     bool                `firestore:"needsReview"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
}

// paymentRefDocument guards exactly-once creation per upstream payment id.
type paymentRefDocument struct {
	OrderID    string    `firestore:"orderId"`
	PaymentRef string    `firestore:"paymentRef"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

func newOrderDocument(o domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemDocument{
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceMinor: item.UnitPrice,
			Quantity:       item.Quantity,
			Image:          item.Image,
		})
	}
	return orderDocument{
		Items:           items,
		TotalMinor:      o.Total,
		AmountPaidMinor: o.AmountPaid,
		Currency:        o.Currency,
		Status:          string(o.Status),
		CustomerEmail:   o.CustomerEmail,
		CustomerName:    o.CustomerName,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentRef:      o.PaymentRef,
		NeedsReview:     o.NeedsReview,
		CreatedAt:       o.CreatedAt.UTC(),
		UpdatedAt:       o.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPriceMinor,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	return domain.Order{
		ID:              id,
		Items:           items,
		Total:           d.TotalMinor,
		AmountPaid:      d.AmountPaidMinor,
		Currency:        d.Currency,
		Status:          domain.OrderStatus(d.Status),
		CustomerEmail:   d.CustomerEmail,
		CustomerName:    d.CustomerName,
		ShippingAddress: d.ShippingAddress,
		PaymentMethod:   domain.PaymentMethod(d.PaymentMethod),
		PaymentRef:      d.PaymentRef,
		NeedsReview:     d.NeedsReview,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

// OrderRepository persists orders and their payment reference guards.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
	refs     *pfirestore.BaseRepository[paymentRefDocument]
}

// NewOrderRepository binds the orders and order_payment_refs collections.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection),
		refs:     pfirestore.NewBaseRepository[paymentRefDocument](provider, paymentRefsCollection),
	}, nil
}

func paymentRefID(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:])
}

// CreateForPayment writes the guard document and the order in one transaction. When the guard
// already exists the order it points to is returned instead.
func (r *OrderRepository) CreateForPayment(ctx context.Context, order domain.Order) (domain.Order, bool, error) {
	ref := strings.TrimSpace(order.PaymentRef)
	if ref == "" {
		return domain.Order{}, false, errors.New("orders.create_for_payment: payment reference is required")
	}

	guardRef, err := r.refs.DocumentRef(ctx, paymentRefID(ref))
	if err != nil {
		return domain.Order{}, false, err
	}

	var (
		result  domain.Order
		created bool
	)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false
		snap, err := tx.Get(guardRef)
		switch {
		case err == nil:
			var guard paymentRefDocument
			if err := snap.DataTo(&guard); err != nil {
				return fmt.Errorf("decode payment ref %s: %w", ref, err)
			}
			orderRef, err := r.orders.DocumentRef(ctx, guard.OrderID)
			if err != nil {
				return err
			}
			orderSnap, err := tx.Get(orderRef)
			if err != nil {
				return err
			}
			existing, err := pfirestore.Decode[orderDocument](orderSnap)
			if err != nil {
				return err
			}
			result = existing.Data.toDomain(existing.ID)
			return nil
		case status.Code(err) != codes.NotFound:
			return err
		}

		orderRef, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(guardRef, paymentRefDocument{OrderID: order.ID, PaymentRef: ref, CreatedAt: order.CreatedAt.UTC()}); err != nil {
			return err
		}
		if err := tx.Create(orderRef, newOrderDocument(order)); err != nil {
			return err
		}
		result = order
		created = true
		return nil
	})
	if err != nil {
		return domain.Order{}, false, pfirestore.WrapError("orders.create_for_payment", err)
	}
	return result, created, nil
}

func (r *OrderRepository) Get(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *OrderRepository) FindByPaymentRef(ctx context.Context, paymentRef string) (domain.Order, error) {
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("paymentRef", "==", paymentRef).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, repositories.NewNotFoundError("orders.find_by_payment_ref", "order", paymentRef)
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain(doc.ID))
	}
	return out, nil
}

// UpdateStatus re-reads the order inside a transaction and applies the change only when the
// stored status and updatedAt still match what the caller saw.
func (r *OrderRepository) UpdateStatus(ctx context.Context, update repositories.OrderStatusUpdate) (domain.Order, error) {
	orderRef, err := r.orders.DocumentRef(ctx, update.OrderID)
	if err != nil {
		return domain.Order{}, err
	}
	var result domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(orderRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewNotFoundError("orders.update_status", "order", update.OrderID)
			}
			return err
		}
		current, err := pfirestore.Decode[orderDocument](snap)
		if err != nil {
			return err
		}
		if domain.OrderStatus(current.Data.Status) != update.From {
			return repositories.NewConflictError("orders.update_status", "order status changed concurrently")
		}
		if !update.ExpectedUpdatedAt.IsZero() && !current.Data.UpdatedAt.Equal(update.ExpectedUpdatedAt) {
			return repositories.NewConflictError("orders.update_status", "order was modified concurrently")
		}
		if err := tx.Update(orderRef, []firestore.Update{
			{Path: "status", Value: string(update.To)},
			{Path: "updatedAt", Value: update.UpdatedAt.UTC()},
		}); err != nil {
			return err
		}
		result = current.Data.toDomain(current.ID)
		result.Status = update.To
		result.UpdatedAt = update.UpdatedAt.UTC()
		return nil
	})
	if err != nil {
		var repoErr *repositories.Error
		if errors.As(err, &repoErr) {
			return domain.Order{}, repoErr
		}
		return domain.Order{}, pfirestore.WrapError("orders.update_status", err)
	}
	return result, nil
}
