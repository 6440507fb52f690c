package catalog

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/macaronshop/storefront/internal/domain"
	"github.com/macaronshop/storefront/pkg/pagination"
)

// Product sort order constants.
const (
	SortName      = "name"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
)

// ProductFilter narrows a product query. Zero values mean "no constraint".
type ProductFilter struct {
	CategoryID string
	Query      string // substring match over name and description
	OnSale     *bool
	MinPrice   int64
	MaxPrice   int64
	Sort       string
}

// SearchProducts filters, sorts, and paginates the product snapshot. The
// returned total is the match count before pagination.
func (s *Store) SearchProducts(filter ProductFilter, page pagination.Params) ([]domain.Product, int) {
	var matched []domain.Product
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	for _, p := range s.Products() {
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.OnSale != nil && p.OnSale != *filter.OnSale {
			continue
		}
		if filter.MinPrice > 0 && p.Price < filter.MinPrice {
			continue
		}
		if filter.MaxPrice > 0 && p.Price > filter.MaxPrice {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Description), query) {
			continue
		}
		matched = append(matched, p)
	}

	sortProducts(matched, filter.Sort)
	return pagination.Slice(matched, page), len(matched)
}

func sortProducts(products []domain.Product, order string) {
	switch order {
	case SortName:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Name < products[j].Name
		})
	case SortPriceAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price < products[j].Price
		})
	case SortPriceDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price > products[j].Price
		})
	case SortNewest:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		})
	}
}

// CategoriesByParent returns the categories directly under the given parent
// ID; an empty parent ID selects the top-level categories.
func (s *Store) CategoriesByParent(parentID string) []domain.Category {
	var out []domain.Category
	for _, c := range s.Categories() {
		switch {
		case parentID == "" && c.ParentID == nil:
			out = append(out, c)
		case c.ParentID != nil && *c.ParentID == parentID:
			out = append(out, c)
		}
	}
	return out
}

// ActiveDiscountCodes returns the discount codes redeemable at the given
// instant.
func (s *Store) ActiveDiscountCodes(now time.Time) []domain.DiscountCode {
	var out []domain.DiscountCode
	for _, code := range s.DiscountCodes() {
		if code.IsRedeemable(now) {
			out = append(out, code)
		}
	}
	return out
}

// FetchActiveCodes returns the currently redeemable discount codes in their
// displayable shape.
func (s *Store) FetchActiveCodes(_ context.Context) ([]domain.ActivePromoCode, error) {
	active := s.ActiveDiscountCodes(time.Now().UTC())
	out := make([]domain.ActivePromoCode, len(active))
	for i, code := range active {
		out[i] = domain.ActivePromoCode{
			ID:   code.ID,
			Name: code.Name,
			Code: code.Code,
		}
	}
	return out, nil
}
