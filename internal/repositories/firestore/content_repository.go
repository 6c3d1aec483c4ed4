package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/favianyip/shunharvest/internal/domain"
	pfirestore "github.com/favianyip/shunharvest/internal/platform/firestore"
	"github.com/favianyip/shunharvest/internal/repositories"
)

const (
	categoriesCollection = "categories"
	bannersCollection    = "banners"
)

type categoryDocument struct {
	Name        string    `firestore:"name"`
	Slug        string    `firestore:"slug"`
	Description string    `firestore:"description"`
	Image       string    `firestore:"image"`
	Order       int       `firestore:"order"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func (d categoryDocument) toDomain(id string) domain.Category {
	return domain.Category{
		ID:          id,
		Name:        d.Name,
		Slug:        d.Slug,
		Description: d.Description,
		Image:       d.Image,
		Order:       d.Order,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func newCategoryDocument(c domain.Category) categoryDocument {
	return categoryDocument{
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Image:       c.Image,
		Order:       c.Order,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

// CategoryRepository persists categories.
type CategoryRepository struct {
	base *pfirestore.BaseRepository[categoryDocument]
}

// NewCategoryRepository binds the categories collection.
func NewCategoryRepository(provider *pfirestore.Provider) *CategoryRepository {
	return &CategoryRepository{base: pfirestore.NewBaseRepository[categoryDocument](provider, categoriesCollection)}
}

func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("order", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain(doc.ID))
	}
	return out, nil
}

func (r *CategoryRepository) Get(ctx context.Context, categoryID string) (domain.Category, error) {
	doc, err := r.base.Get(ctx, categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *CategoryRepository) FindBySlug(ctx context.Context, slug string) (domain.Category, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", slug).Limit(1)
	})
	if err != nil {
		return domain.Category{}, err
	}
	if len(docs) == 0 {
		return domain.Category{}, repositories.NewNotFoundError("categories.find_by_slug", "category", slug)
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) error {
	return r.base.Create(ctx, category.ID, newCategoryDocument(category))
}

func (r *CategoryRepository) Update(ctx context.Context, category domain.Category) error {
	return r.base.Set(ctx, category.ID, newCategoryDocument(category))
}

func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	return r.base.Delete(ctx, categoryID)
}

type bannerDocument struct {
	Title     string    `firestore:"title"`
	Subtitle  string    `firestore:"subtitle"`
	Image     string    `firestore:"image"`
	Link      string    `firestore:"link"`
	Active    bool      `firestore:"active"`
	Order     int       `firestore:"order"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (d bannerDocument) toDomain(id string) domain.Banner {
	return domain.Banner{
		ID:        id,
		Title:     d.Title,
		Subtitle:  d.Subtitle,
		Image:     d.Image,
		Link:      d.Link,
		Active:    d.Active,
		Order:     d.Order,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func newBannerDocument(b domain.Banner) bannerDocument {
	return bannerDocument{
		Title:     b.Title,
		Subtitle:  b.Subtitle,
		Image:     b.Image,
		Link:      b.Link,
		Active:    b.Active,
		Order:     b.Order,
		CreatedAt: b.CreatedAt.UTC(),
		UpdatedAt: b.UpdatedAt.UTC(),
	}
}

// BannerRepository persists banners.
type BannerRepository struct {
	base *pfirestore.BaseRepository[bannerDocument]
}

// NewBannerRepository binds the banners collection.
func NewBannerRepository(provider *pfirestore.Provider) *BannerRepository {
	return &BannerRepository{base: pfirestore.NewBaseRepository[bannerDocument](provider, bannersCollection)}
}

func (r *BannerRepository) List(ctx context.Context, activeOnly bool) ([]domain.Banner, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if activeOnly {
			q = q.Where("active", "==", true)
		}
		return q.OrderBy("order", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Banner, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain(doc.ID))
	}
	return out, nil
}

func (r *BannerRepository) Get(ctx context.Context, bannerID string) (domain.Banner, error) {
	doc, err := r.base.Get(ctx, bannerID)
	if err != nil {
		return domain.Banner{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *BannerRepository) Insert(ctx context.Context, banner domain.Banner) error {
	return r.base.Create(ctx, banner.ID, newBannerDocument(banner))
}

func (r *BannerRepository) Update(ctx context.Context, banner domain.Banner) error {
	return r.base.Set(ctx, banner.ID, newBannerDocument(banner))
}

func (r *BannerRepository) Delete(ctx context.Context, bannerID string) error {
	return r.base.Delete(ctx, bannerID)
}
