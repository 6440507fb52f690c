// Package catalog serves the storefront's local data snapshot: products,
// categories, discount codes, and cart discounts exported from the commerce
// platform. Data is embedded at build time, loaded lazily, and memoized for
// the lifetime of the process.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/macaronshop/storefront/internal/domain"
	apperrors "github.com/macaronshop/storefront/pkg/errors"
)

//go:embed data/*.json
var snapshotFS embed.FS

// Store is the read-only in-memory view of the snapshot data. Construct one
// per process with New and share it; all accessors are safe for concurrent
// use after first load.
type Store struct {
	fsys fs.FS

	productsOnce sync.Once
	products     []domain.Product
	productsByID map[string]int

	categoriesOnce sync.Once
	categories     []domain.Category
	categoriesByID map[string]int

	codesOnce   sync.Once
	codes       []domain.DiscountCode
	codesByID   map[string]int
	codesByCode map[string]int

	discountsOnce sync.Once
	discounts     []domain.CartDiscount
	discountsByID map[string]int
}

// New creates a store backed by the embedded snapshot.
func New() *Store {
	return NewFromFS(snapshotFS)
}

// NewFromFS creates a store backed by the given filesystem. The filesystem
// must contain data/products.json, data/categories.json,
// data/discount_codes.json, and data/cart_discounts.json.
func NewFromFS(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

// load decodes one snapshot file. The data ships inside the binary and is
// validated by tests, so a decode failure is a build defect, not a runtime
// condition.
func load[T any](fsys fs.FS, name string) []T {
	raw, err := fs.ReadFile(fsys, "data/"+name)
	if err != nil {
		panic(fmt.Sprintf("catalog: read snapshot %s: %v", name, err))
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		panic(fmt.Sprintf("catalog: decode snapshot %s: %v", name, err))
	}
	return items
}

// Products returns all products in snapshot order.
func (s *Store) Products() []domain.Product {
	s.productsOnce.Do(func() {
		s.products = load[domain.Product](s.fsys, "products.json")
		s.productsByID = make(map[string]int, len(s.products))
		for i := range s.products {
			s.productsByID[s.products[i].ID] = i
		}
	})
	return s.products
}

// ProductByID returns the product with the given ID.
func (s *Store) ProductByID(id string) (*domain.Product, error) {
	s.Products()
	i, ok := s.productsByID[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return &s.products[i], nil
}

// Categories returns all categories in snapshot order.
func (s *Store) Categories() []domain.Category {
	s.categoriesOnce.Do(func() {
		s.categories = load[domain.Category](s.fsys, "categories.json")
		s.categoriesByID = make(map[string]int, len(s.categories))
		for i := range s.categories {
			s.categoriesByID[s.categories[i].ID] = i
		}
	})
	return s.categories
}

// CategoryByID returns the category with the given ID.
func (s *Store) CategoryByID(id string) (*domain.Category, error) {
	s.Categories()
	i, ok := s.categoriesByID[id]
	if !ok {
		return nil, apperrors.NotFound("category", id)
	}
	return &s.categories[i], nil
}

// DiscountCodes returns all discount codes in snapshot order.
func (s *Store) DiscountCodes() []domain.DiscountCode {
	s.codesOnce.Do(func() {
		s.codes = load[domain.DiscountCode](s.fsys, "discount_codes.json")
		s.codesByID = make(map[string]int, len(s.codes))
		s.codesByCode = make(map[string]int, len(s.codes))
		for i := range s.codes {
			s.codesByID[s.codes[i].ID] = i
			s.codesByCode[normalizeCode(s.codes[i].Code)] = i
		}
	})
	return s.codes
}

// DiscountCodeByID returns the discount code with the given ID.
func (s *Store) DiscountCodeByID(id string) (*domain.DiscountCode, error) {
	s.DiscountCodes()
	i, ok := s.codesByID[id]
	if !ok {
		return nil, apperrors.NotFound("discount code", id)
	}
	return &s.codes[i], nil
}

// DiscountCodeByCode returns the discount code matching the human-entered
// code, case-insensitively.
func (s *Store) DiscountCodeByCode(code string) (*domain.DiscountCode, error) {
	s.DiscountCodes()
	i, ok := s.codesByCode[normalizeCode(code)]
	if !ok {
		return nil, apperrors.NotFound("discount code", code)
	}
	return &s.codes[i], nil
}

// CartDiscounts returns all cart discounts in snapshot order.
func (s *Store) CartDiscounts() []domain.CartDiscount {
	s.discountsOnce.Do(func() {
		s.discounts = load[domain.CartDiscount](s.fsys, "cart_discounts.json")
		s.discountsByID = make(map[string]int, len(s.discounts))
		for i := range s.discounts {
			s.discountsByID[s.discounts[i].ID] = i
		}
	})
	return s.discounts
}

// CartDiscountByID returns the cart discount with the given ID.
func (s *Store) CartDiscountByID(id string) (*domain.CartDiscount, error) {
	s.CartDiscounts()
	i, ok := s.discountsByID[id]
	if !ok {
		return nil, apperrors.NotFound("cart discount", id)
	}
	return &s.discounts[i], nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
