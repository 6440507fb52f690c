package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/macaronshop/storefront/internal/domain"
	pkgkafka "github.com/macaronshop/storefront/pkg/kafka"
)

// Kafka topic constants for storefront cart events.
const (
	TopicCartUpdated  = "storefront.cart.updated"
	TopicCartCleared  = "storefront.cart.cleared"
	TopicPromoApplied = "storefront.cart.promo_applied"
)

// Aggregate type constant.
const AggregateTypeCart = "cart"

// Source identifier for events originating from the storefront.
const SourceStorefront = "storefront"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	CustomerID     string         `json:"customer_id"`
	CartID         string         `json:"cart_id"`
	Version        int            `json:"version"`
	Items          []CartItemData `json:"items"`
	ItemCount      int            `json:"item_count"`
	Subtotal       int64          `json:"subtotal"`
	DiscountAmount int64          `json:"discount_amount"`
	TotalAmount    int64          `json:"total_amount"`
	Currency       string         `json:"currency"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	LineItemID string `json:"line_item_id"`
	ProductID  string `json:"product_id"`
	VariantID  string `json:"variant_id"`
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	Price      int64  `json:"price"`
	Quantity   int    `json:"quantity"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	CustomerID string `json:"customer_id"`
}

// PromoAppliedData is the payload for a cart.promo_applied event.
type PromoAppliedData struct {
	CustomerID     string `json:"customer_id"`
	CartID         string `json:"cart_id"`
	DiscountCodeID string `json:"discount_code_id"`
	Code           string `json:"code"`
	DiscountAmount int64  `json:"discount_amount"`
	TotalAmount    int64  `json:"total_amount"`
	Currency       string `json:"currency"`
}

// Producer publishes storefront cart events to Kafka. A nil Kafka producer
// disables publishing, which keeps the storefront usable without a broker.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the storefront.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	if p.kafka == nil {
		return nil
	}

	items := make([]CartItemData, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = CartItemData{
			LineItemID: item.ID,
			ProductID:  item.ProductID,
			VariantID:  item.VariantID,
			Name:       item.Name,
			SKU:        item.SKU,
			Price:      item.Price,
			Quantity:   item.Quantity,
		}
	}

	var discountAmount int64
	if cart.DiscountOnTotalPrice != nil {
		discountAmount = cart.DiscountOnTotalPrice.DiscountedAmount.CentAmount
	}

	data := CartUpdatedData{
		CustomerID:     cart.CustomerID,
		CartID:         cart.ID,
		Version:        cart.Version,
		Items:          items,
		ItemCount:      cart.ItemCount(),
		Subtotal:       cart.Subtotal(),
		DiscountAmount: discountAmount,
		TotalAmount:    cart.TotalPrice.CentAmount,
		Currency:       cart.Currency,
	}

	event, err := pkgkafka.NewEvent(TopicCartUpdated, cart.CustomerID, AggregateTypeCart, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create cart.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartUpdated, event); err != nil {
		return fmt.Errorf("publish cart.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("customer_id", cart.CustomerID),
		slog.Int("item_count", cart.ItemCount()),
	)

	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, customerID string) error {
	if p.kafka == nil {
		return nil
	}

	data := CartClearedData{CustomerID: customerID}

	event, err := pkgkafka.NewEvent(TopicCartCleared, customerID, AggregateTypeCart, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create cart.cleared event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartCleared, event); err != nil {
		return fmt.Errorf("publish cart.cleared event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.cleared event",
		slog.String("customer_id", customerID),
	)

	return nil
}

// PublishPromoApplied publishes a cart.promo_applied event.
func (p *Producer) PublishPromoApplied(ctx context.Context, cart *domain.Cart, code *domain.DiscountCode) error {
	if p.kafka == nil {
		return nil
	}

	var discountAmount int64
	if cart.DiscountOnTotalPrice != nil {
		discountAmount = cart.DiscountOnTotalPrice.DiscountedAmount.CentAmount
	}

	data := PromoAppliedData{
		CustomerID:     cart.CustomerID,
		CartID:         cart.ID,
		DiscountCodeID: code.ID,
		Code:           code.Code,
		DiscountAmount: discountAmount,
		TotalAmount:    cart.TotalPrice.CentAmount,
		Currency:       cart.Currency,
	}

	event, err := pkgkafka.NewEvent(TopicPromoApplied, cart.CustomerID, AggregateTypeCart, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create cart.promo_applied event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPromoApplied, event); err != nil {
		return fmt.Errorf("publish cart.promo_applied event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.promo_applied event",
		slog.String("customer_id", cart.CustomerID),
		slog.String("code", code.Code),
	)

	return nil
}
