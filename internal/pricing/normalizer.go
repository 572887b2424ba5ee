package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyOrder   = errors.New("order has no items")
	ErrItemNotFound = errors.New("menu item not found")
	ErrInvalidPrice = errors.New("invalid item price")
)

const (
	GSTModeInclude = "include"
	GSTModeExclude = "exclude"
)

// RawItem is a line item as submitted by a client. Everything except
// ItemID is optional; missing values fall back to the catalog.
type RawItem struct {
	ItemID    int64      `json:"itemId"`
	Quantity  float64    `json:"quantity"`
	UnitPrice *float64   `json:"unitPrice"`
	GSTRate   *float64   `json:"gstRate"`
	GSTMode   *string    `json:"gstMode"`
	Addons    []RawAddon `json:"addons"`
}

type RawAddon struct {
	AddonID  int64 `json:"addonId"`
	Quantity int32 `json:"quantity"`
}

// LineItem is the normalized, priced form that gets persisted with the
// order. All money fields are fixed 2-decimal strings so that
// re-normalizing identical input yields byte-identical output.
type LineItem struct {
	ItemID    int64       `json:"itemId"`
	Name      string      `json:"name"`
	Quantity  int32       `json:"quantity"`
	UnitPrice string      `json:"unitPrice"`
	Addons    []LineAddon `json:"addons"`
	GSTRate   string      `json:"gstRate"`
	GSTMode   string      `json:"gstMode"`
	Subtotal  string      `json:"subtotal"`
	GSTAmount string      `json:"gstAmount"`
	LineTotal string      `json:"lineTotal"`
}

type LineAddon struct {
	AddonID   int64  `json:"addonId"`
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int32  `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

type Result struct {
	Items       []LineItem `json:"items"`
	TotalAmount string     `json:"totalAmount"`
}

// CatalogItem is a vendor menu item with its category tax defaults
// already resolved.
type CatalogItem struct {
	ID      int64
	Name    string
	Price   decimal.Decimal
	GSTRate decimal.Decimal
	GSTMode string
	Addons  map[int64]CatalogAddon
}

type CatalogAddon struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

// Catalog resolves raw item ids to a vendor's menu. The pgx-backed
// implementation lives in catalog.go; tests supply an in-memory one.
type Catalog interface {
	ResolveItems(ctx context.Context, vendorID int64, itemIDs []int64) (map[int64]CatalogItem, error)
}

type Normalizer struct {
	Catalog Catalog
}

func NewNormalizer(catalog Catalog) *Normalizer {
	return &Normalizer{Catalog: catalog}
}

// Normalize resolves, prices and taxes the raw items for a vendor.
// It is deterministic: identical input always produces an identical
// Result, which order editing relies on.
func (n *Normalizer) Normalize(ctx context.Context, vendorID int64, rawItems []RawItem) (Result, error) {
	if len(rawItems) == 0 {
		return Result{}, ErrEmptyOrder
	}

	itemIDs := make([]int64, 0, len(rawItems))
	for _, raw := range rawItems {
		itemIDs = append(itemIDs, raw.ItemID)
	}

	catalog, err := n.Catalog.ResolveItems(ctx, vendorID, itemIDs)
	if err != nil {
		return Result{}, err
	}

	items := make([]LineItem, 0, len(rawItems))
	total := decimal.Zero
	for _, raw := range rawItems {
		entry, ok := catalog[raw.ItemID]
		if !ok {
			return Result{}, fmt.Errorf("%w: item %d", ErrItemNotFound, raw.ItemID)
		}
		line, err := normalizeLine(raw, entry)
		if err != nil {
			return Result{}, err
		}
		items = append(items, line)
		lineTotal, _ := decimal.NewFromString(line.LineTotal)
		total = total.Add(lineTotal).Round(2)
	}

	if len(items) == 0 {
		return Result{}, ErrEmptyOrder
	}

	return Result{Items: items, TotalAmount: total.StringFixed(2)}, nil
}

func normalizeLine(raw RawItem, entry CatalogItem) (LineItem, error) {
	quantity := coerceQuantity(raw.Quantity)

	price := entry.Price
	if raw.UnitPrice != nil {
		if math.IsNaN(*raw.UnitPrice) || math.IsInf(*raw.UnitPrice, 0) || *raw.UnitPrice < 0 {
			return LineItem{}, fmt.Errorf("%w: item %d", ErrInvalidPrice, raw.ItemID)
		}
		price = decimal.NewFromFloat(*raw.UnitPrice)
	}
	if price.IsNegative() {
		return LineItem{}, fmt.Errorf("%w: item %d", ErrInvalidPrice, raw.ItemID)
	}
	price = price.Round(2)

	rate := entry.GSTRate
	if raw.GSTRate != nil && !math.IsNaN(*raw.GSTRate) && !math.IsInf(*raw.GSTRate, 0) && *raw.GSTRate >= 0 {
		rate = decimal.NewFromFloat(*raw.GSTRate)
	}
	mode := resolveGSTMode(raw.GSTMode, entry.GSTMode)

	addons, addonsTotal := normalizeAddons(raw.Addons, entry.Addons)

	// gross covers the item units plus all selected addons; tax is
	// applied to the whole line.
	qty := decimal.NewFromInt32(quantity)
	gross := price.Mul(qty).Round(2).Add(addonsTotal).Round(2)

	var base, tax, lineTotal decimal.Decimal
	switch {
	case rate.IsZero():
		base = gross
		tax = decimal.Zero
		lineTotal = gross
	case mode == GSTModeInclude:
		tax = gross.Mul(rate).Div(decimal.NewFromInt(100).Add(rate)).Round(2)
		base = gross.Sub(tax).Round(2)
		lineTotal = gross
	default: // exclude
		base = gross
		tax = base.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
		lineTotal = base.Add(tax).Round(2)
	}

	return LineItem{
		ItemID:    entry.ID,
		Name:      entry.Name,
		Quantity:  quantity,
		UnitPrice: price.StringFixed(2),
		Addons:    addons,
		GSTRate:   rate.Round(2).StringFixed(2),
		GSTMode:   mode,
		Subtotal:  base.StringFixed(2),
		GSTAmount: tax.StringFixed(2),
		LineTotal: lineTotal.StringFixed(2),
	}, nil
}

func normalizeAddons(raw []RawAddon, catalog map[int64]CatalogAddon) ([]LineAddon, decimal.Decimal) {
	addons := make([]LineAddon, 0, len(raw))
	total := decimal.Zero
	for _, selection := range raw {
		entry, ok := catalog[selection.AddonID]
		if !ok {
			continue
		}
		qty := selection.Quantity
		if qty <= 0 {
			qty = 1
		}
		price := entry.Price.Round(2)
		subtotal := price.Mul(decimal.NewFromInt32(qty)).Round(2)
		total = total.Add(subtotal).Round(2)
		addons = append(addons, LineAddon{
			AddonID:   entry.ID,
			Name:      entry.Name,
			UnitPrice: price.StringFixed(2),
			Quantity:  qty,
			Subtotal:  subtotal.StringFixed(2),
		})
	}
	return addons, total
}

// coerceQuantity collapses non-finite or non-positive quantities to 1
// instead of rejecting them; fractional quantities floor.
func coerceQuantity(value float64) int32 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 1
	}
	quantity := int32(math.Floor(value))
	if quantity <= 0 {
		return 1
	}
	return quantity
}

func resolveGSTMode(override *string, fallback string) string {
	if override != nil && *override == GSTModeInclude {
		return GSTModeInclude
	}
	if override != nil && *override == GSTModeExclude {
		return GSTModeExclude
	}
	if fallback == GSTModeInclude {
		return GSTModeInclude
	}
	return GSTModeExclude
}
