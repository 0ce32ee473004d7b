// Package catalog reads products and categories from the Ecwid store API and serves them
// through a short-TTL cache that degrades to empty results when the store is unreachable.
package catalog

import (
	"context"
	"errors"

	"github.com/kotileipomo/faq-engine/internal/kb"
)

// ErrNotConfigured is returned when no store credentials are configured.
var ErrNotConfigured = errors.New("catalog provider not configured")

// Provider is the raw catalog API.
type Provider interface {
	Products(ctx context.Context, limit int, category *int64) ([]Product, error)
	Categories(ctx context.Context, limit int) ([]Category, error)
	ShippingOptions(ctx context.Context) ([]ShippingOption, error)
}

// Product is a store product.
type Product struct {
	ID           int64       `json:"id"`
	SKU          string      `json:"sku,omitempty"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Price        *float64    `json:"price,omitempty"`
	Enabled      bool        `json:"enabled"`
	ImageURL     string      `json:"imageUrl,omitempty"`
	ThumbnailURL string      `json:"thumbnailUrl,omitempty"`
	InStock      *bool       `json:"inStock,omitempty"`
	Quantity     *int        `json:"quantity,omitempty"`
	Unlimited    bool        `json:"unlimited,omitempty"`
	CategoryIDs  []int64     `json:"categoryIds,omitempty"`
	Attributes   []Attribute `json:"attributes,omitempty"`
}

// Image returns the thumbnail URL, falling back to the full image.
func (p Product) Image() string {
	if p.ThumbnailURL != "" {
		return p.ThumbnailURL
	}
	return p.ImageURL
}

// InCategory reports whether the product belongs to any of ids.
func (p Product) InCategory(ids map[int64]bool) bool {
	for _, id := range p.CategoryIDs {
		if ids[id] {
			return true
		}
	}
	return false
}

// Attribute is a named product attribute such as "Ainesosat".
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Category is a store category. Root categories have no parent.
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parentId,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// ShippingOption is a fulfilment option; pickup options carry blackout dates.
type ShippingOption struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	FulfillmentType string             `json:"fulfilmentType"`
	Enabled         bool               `json:"enabled"`
	BlackoutDates   []kb.BlackoutRange `json:"blackoutDates,omitempty"`
}

// Status tells how a cached read was served.
type Status string

// Read statuses.
const (
	StatusFresh       Status = "fresh"
	StatusCached      Status = "cached"
	StatusUnavailable Status = "unavailable"
)

// Unavailable is a Provider for deployments without store credentials.
type Unavailable struct{}

// Products returns ErrNotConfigured.
func (Unavailable) Products(context.Context, int, *int64) ([]Product, error) {
	return nil, ErrNotConfigured
}

// Categories returns ErrNotConfigured.
func (Unavailable) Categories(context.Context, int) ([]Category, error) {
	return nil, ErrNotConfigured
}

// ShippingOptions returns ErrNotConfigured.
func (Unavailable) ShippingOptions(context.Context) ([]ShippingOption, error) {
	return nil, ErrNotConfigured
}
