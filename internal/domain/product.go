package domain

import "time"

// Product is a catalog product loaded from the snapshot data.
type Product struct {
	ID            string           `json:"id"`
	Key           string           `json:"key"`
	Name          string           `json:"name"`
	Slug          string           `json:"slug"`
	Description   string           `json:"description,omitempty"`
	CategoryID    string           `json:"category_id,omitempty"`
	Price         int64            `json:"price"`
	OriginalPrice *int64           `json:"original_price,omitempty"`
	OnSale        bool             `json:"on_sale"`
	Currency      string           `json:"currency"`
	ImageURL      string           `json:"image_url,omitempty"`
	Variants      []ProductVariant `json:"variants,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ProductVariant is a purchasable variation of a product (e.g. box size).
type ProductVariant struct {
	ID         string            `json:"id"`
	SKU        string            `json:"sku"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Category is a catalog category loaded from the snapshot data.
type Category struct {
	ID          string  `json:"id"`
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description string  `json:"description,omitempty"`
	ParentID    *string `json:"parent_id,omitempty"`
}

// ProductCard is the projection of a product's display fields that a cart
// line item snapshots at add time.
type ProductCard struct {
	Name          string
	Price         int64
	OriginalPrice *int64
	OnSale        bool
	ImageURL      string
}

// Card projects the product into its display snapshot.
func (p *Product) Card() ProductCard {
	return ProductCard{
		Name:          p.Name,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		OnSale:        p.OnSale,
		ImageURL:      p.ImageURL,
	}
}

// VariantByID returns the variant with the given ID, or the master (first)
// variant when id is empty. The second return value is false when no variant
// matches.
func (p *Product) VariantByID(id string) (ProductVariant, bool) {
	if id == "" && len(p.Variants) > 0 {
		return p.Variants[0], true
	}
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return ProductVariant{}, false
}
