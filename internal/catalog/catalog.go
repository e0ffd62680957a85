// Package catalog holds the products offered at checkout.
//
// The catalog is loaded once at startup and replaced only by Reload. Orders
// copy the product fields they need, so a reload never changes an existing order.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
)

//go:embed products.json
var defaultProducts []byte

// Product is a purchasable credit allowance.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Credits     int64           `json:"credits"`
	ValidMonths int             `json:"valid_months"`
}

type snapshot struct {
	products []Product
	byID     map[string]Product
}

// Catalog serves an immutable snapshot of products.
type Catalog struct {
	path    string
	current atomic.Pointer[snapshot]
	logg    *logger.Logger
}

// New loads the catalog from path, or from the embedded defaults when path is empty.
func New(path string, logg *logger.Logger) (*Catalog, error) {
	c := &Catalog{path: strings.TrimSpace(path), logg: logg}
	if _, err := c.Reload(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the source and swaps in the new snapshot. A source that fails
// to parse or validate leaves the current snapshot in place.
func (c *Catalog) Reload(ctx context.Context) (int, error) {
	raw := defaultProducts
	if c.path != "" {
		data, err := os.ReadFile(c.path)
		if err != nil {
			return 0, fmt.Errorf("read catalog %s: %w", c.path, err)
		}
		raw = data
	}
	snap, err := parse(raw)
	if err != nil {
		return 0, err
	}
	c.current.Store(snap)
	if c.logg != nil {
		source := c.path
		if source == "" {
			source = "embedded"
		}
		c.logg.Info(c.logg.WithFields(ctx, map[string]any{"source": source, "products": len(snap.products)}), "product catalog loaded")
	}
	return len(snap.products), nil
}

// List returns the products ordered by id.
func (c *Catalog) List() []Product {
	snap := c.current.Load()
	out := make([]Product, len(snap.products))
	copy(out, snap.products)
	return out
}

// Get returns the product with id or a NotFound error.
func (c *Catalog) Get(id string) (Product, error) {
	product, ok := c.current.Load().byID[strings.TrimSpace(id)]
	if !ok {
		return Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": id})
	}
	return product, nil
}

func parse(raw []byte) (*snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var products []Product
	if err := dec.Decode(&products); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	byID := make(map[string]Product, len(products))
	for i := range products {
		p := &products[i]
		p.ID = strings.TrimSpace(p.ID)
		p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
		if err := validate(*p); err != nil {
			return nil, err
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		byID[p.ID] = *p
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return &snapshot{products: products, byID: byID}, nil
}

func validate(p Product) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("product id is required")
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("product %s: name is required", p.ID)
	case !p.Amount.IsPositive():
		return fmt.Errorf("product %s: amount must be positive", p.ID)
	case len(p.Currency) != 3:
		return fmt.Errorf("product %s: currency must be a 3-letter code", p.ID)
	case p.Credits <= 0:
		return fmt.Errorf("product %s: credits must be positive", p.ID)
	case p.ValidMonths <= 0:
		return fmt.Errorf("product %s: valid_months must be positive", p.ID)
	}
	return nil
}
