// Package snapshot pulls catalog data from the upstream commerce platform
// and writes the JSON fixture files the embedded catalog is built from.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/macaronshop/storefront/internal/domain"
	"github.com/macaronshop/storefront/pkg/httpclient"
	"github.com/macaronshop/storefront/pkg/slug"
)

const pageLimit = 100

// Config holds exporter settings.
type Config struct {
	// BaseURL is the upstream commerce platform API root.
	BaseURL string
	// AuthToken is sent as a bearer token on every request.
	AuthToken string
	// OutDir receives the JSON fixture files.
	OutDir string
	// ImagePrefix, when set, rewrites upstream image URLs to local paths
	// keyed by the final path segment.
	ImagePrefix string
}

// Exporter fetches catalog entities page by page and writes them as fixtures.
type Exporter struct {
	cfg    Config
	client *httpclient.BreakerClient
	logger *slog.Logger
}

// New creates an exporter with a retrying, circuit-broken HTTP client.
func New(cfg Config, logger *slog.Logger) *Exporter {
	base := httpclient.New(httpclient.DefaultConfig())
	return &Exporter{
		cfg:    cfg,
		client: httpclient.NewBreakerClient(base, httpclient.DefaultBreakerConfig("commerce-platform"), logger),
		logger: logger,
	}
}

// page is the standard paged response shape of the platform API.
type page[T any] struct {
	Limit   int `json:"limit"`
	Offset  int `json:"offset"`
	Count   int `json:"count"`
	Total   int `json:"total"`
	Results []T `json:"results"`
}

// Run exports all four catalog datasets.
func (e *Exporter) Run(ctx context.Context) error {
	if err := os.MkdirAll(e.cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	products, err := e.fetchProducts(ctx)
	if err != nil {
		return fmt.Errorf("export products: %w", err)
	}
	if err := e.writeFixture("products.json", products); err != nil {
		return err
	}

	categories, err := fetchAll[domain.Category](ctx, e, "/categories")
	if err != nil {
		return fmt.Errorf("export categories: %w", err)
	}
	if err := e.writeFixture("categories.json", categories); err != nil {
		return err
	}

	codes, err := fetchAll[domain.DiscountCode](ctx, e, "/discount-codes")
	if err != nil {
		return fmt.Errorf("export discount codes: %w", err)
	}
	if err := e.writeFixture("discount_codes.json", codes); err != nil {
		return err
	}

	discounts, err := fetchAll[domain.CartDiscount](ctx, e, "/cart-discounts")
	if err != nil {
		return fmt.Errorf("export cart discounts: %w", err)
	}
	if err := e.writeFixture("cart_discounts.json", discounts); err != nil {
		return err
	}

	e.logger.Info("snapshot export complete",
		slog.Int("products", len(products)),
		slog.Int("categories", len(categories)),
		slog.Int("discount_codes", len(codes)),
		slog.Int("cart_discounts", len(discounts)),
	)

	return nil
}

func (e *Exporter) fetchProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := fetchAll[domain.Product](ctx, e, "/products")
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].Slug == "" {
			products[i].Slug = slug.Generate(products[i].Name)
		}
		products[i].ImageURL = e.rewriteImageURL(products[i].ImageURL)
	}
	return products, nil
}

// fetchAll walks the paged endpoint until the reported total is reached.
func fetchAll[T any](ctx context.Context, e *Exporter, path string) ([]T, error) {
	var out []T
	offset := 0
	for {
		var p page[T]
		if err := e.getJSON(ctx, path, offset, &p); err != nil {
			return nil, err
		}
		out = append(out, p.Results...)
		offset += len(p.Results)
		if len(p.Results) == 0 || offset >= p.Total {
			return out, nil
		}
	}
}

func (e *Exporter) getJSON(ctx context.Context, path string, offset int, target any) error {
	u := fmt.Sprintf("%s%s?limit=%d&offset=%d", strings.TrimRight(e.cfg.BaseURL, "/"), path, pageLimit, offset)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if e.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.AuthToken)
	}

	resp, err := e.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (e *Exporter) rewriteImageURL(raw string) string {
	if e.cfg.ImagePrefix == "" || raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	name := filepath.Base(u.Path)
	if name == "." || name == "/" {
		return raw
	}
	return strings.TrimRight(e.cfg.ImagePrefix, "/") + "/" + name
}

func (e *Exporter) writeFixture(name string, data any) error {
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	path := filepath.Join(e.cfg.OutDir, name)
	if err := os.WriteFile(path, append(buf, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	e.logger.Info("fixture written", slog.String("path", path))
	return nil
}
