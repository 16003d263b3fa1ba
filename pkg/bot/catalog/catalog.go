// Package catalog provides a short-lived, per-tenant snapshot of the active products.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
)

// DefaultTTL is how long a snapshot is served before reloading.
const DefaultTTL = 30 * time.Second

type entry struct {
	products []domain.Product
	loadedAt time.Time
}

// Index is the read-only catalog view used for matching and stock checks.
type Index struct {
	repo repository.ProductRepository
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	sfg     singleflight.Group
}

// NewIndex creates an index over repo. ttl <= 0 disables caching.
func NewIndex(repo repository.ProductRepository, ttl time.Duration) *Index {
	return &Index{
		repo:    repo,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Snapshot returns the active products of the tenant in catalog order.
// The returned slice must not be modified.
func (i *Index) Snapshot(ctx context.Context, tenantID string) ([]domain.Product, error) {
	if i.ttl > 0 {
		i.mu.RLock()
		e, ok := i.entries[tenantID]
		i.mu.RUnlock()
		if ok && i.now().Sub(e.loadedAt) < i.ttl {
			return e.products, nil
		}
	}

	// concurrent misses for the same tenant share one query
	v, err, _ := i.sfg.Do(tenantID, func() (interface{}, error) {
		rows, err := i.repo.ListActive(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("catalog: list products: %w", err)
		}
		products := make([]domain.Product, 0, len(rows))
		for _, p := range rows {
			if p != nil {
				products = append(products, *p)
			}
		}
		if i.ttl > 0 {
			i.mu.Lock()
			i.entries[tenantID] = entry{products: products, loadedAt: i.now()}
			i.mu.Unlock()
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

// Invalidate drops the cached snapshot, e.g. after stock changed.
func (i *Index) Invalidate(tenantID string) {
	i.mu.Lock()
	delete(i.entries, tenantID)
	i.mu.Unlock()
}

// FindByID always reads through to the repository.
func (i *Index) FindByID(ctx context.Context, tenantID string, productID int64) (*domain.Product, error) {
	p, err := i.repo.FindByID(ctx, tenantID, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: find product %d: %w", productID, err)
	}
	return p, nil
}

// Available filters products that can be browsed or ordered.
func Available(products []domain.Product) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.IsAvailable() {
			out = append(out, p)
		}
	}
	return out
}

// FirstByName returns the first available product whose name contains name (case-insensitive).
func FirstByName(products []domain.Product, name string) (domain.Product, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return domain.Product{}, false
	}
	for _, p := range products {
		if p.IsAvailable() && strings.Contains(strings.ToLower(p.Name), needle) {
			return p, true
		}
	}
	return domain.Product{}, false
}

// FirstActiveByName is FirstByName without the stock requirement, so sold-out
// products can still be recognized by name.
func FirstActiveByName(products []domain.Product, name string) (domain.Product, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return domain.Product{}, false
	}
	for _, p := range products {
		if p.Status == domain.ProductActive && strings.Contains(strings.ToLower(p.Name), needle) {
			return p, true
		}
	}
	return domain.Product{}, false
}

// Search matches available products by name or category substring, capped at limit.
func Search(products []domain.Product, name, category string, limit int) []domain.Product {
	name = strings.ToLower(strings.TrimSpace(name))
	category = strings.ToLower(strings.TrimSpace(category))
	if name == "" && category == "" {
		return nil
	}

	var out []domain.Product
	for _, p := range products {
		if !p.IsAvailable() {
			continue
		}
		byName := name != "" && strings.Contains(strings.ToLower(p.Name), name)
		byCategory := category != "" && strings.Contains(strings.ToLower(p.Category), category)
		if byName || byCategory {
			out = append(out, p)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}
