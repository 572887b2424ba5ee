package pricing

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PGCatalog resolves menu items against the vendor's catalog, joining
// each item to its category's GST defaults.
type PGCatalog struct {
	DB *pgxpool.Pool
}

func NewPGCatalog(db *pgxpool.Pool) *PGCatalog {
	return &PGCatalog{DB: db}
}

func (c *PGCatalog) ResolveItems(ctx context.Context, vendorID int64, itemIDs []int64) (map[int64]CatalogItem, error) {
	items := make(map[int64]CatalogItem)
	if len(itemIDs) == 0 {
		return items, nil
	}

	rows, err := c.DB.Query(ctx, `
		select mi.id, mi.name, mi.price, mi.gst_rate, mi.gst_mode,
		       mc.gst_rate, mc.gst_mode
		from menu_items mi
		left join menu_categories mc on mc.id = mi.category_id
		where mi.id = any($1) and mi.vendor_id = $2 and mi.deleted_at is null
	`, itemIDs, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item         CatalogItem
			price        pgtype.Numeric
			itemRate     pgtype.Numeric
			itemMode     pgtype.Text
			categoryRate pgtype.Numeric
			categoryMode pgtype.Text
		)
		if err := rows.Scan(&item.ID, &item.Name, &price, &itemRate, &itemMode, &categoryRate, &categoryMode); err != nil {
			return nil, err
		}

		item.Price = numericToDecimal(price)

		// Item-level tax settings win over the category defaults.
		switch {
		case itemRate.Valid:
			item.GSTRate = numericToDecimal(itemRate)
		case categoryRate.Valid:
			item.GSTRate = numericToDecimal(categoryRate)
		}
		switch {
		case itemMode.Valid && itemMode.String != "":
			item.GSTMode = itemMode.String
		case categoryMode.Valid:
			item.GSTMode = categoryMode.String
		}

		item.Addons = make(map[int64]CatalogAddon)
		items[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return items, nil
	}

	resolved := make([]int64, 0, len(items))
	for id := range items {
		resolved = append(resolved, id)
	}

	addonRows, err := c.DB.Query(ctx, `
		select mia.menu_item_id, ai.id, ai.name, ai.price
		from menu_item_addons mia
		join addon_items ai on ai.id = mia.addon_item_id
		where mia.menu_item_id = any($1) and ai.deleted_at is null
	`, resolved)
	if err != nil {
		return nil, err
	}
	defer addonRows.Close()

	for addonRows.Next() {
		var (
			menuItemID int64
			addon      CatalogAddon
			price      pgtype.Numeric
		)
		if err := addonRows.Scan(&menuItemID, &addon.ID, &addon.Name, &price); err != nil {
			return nil, err
		}
		addon.Price = numericToDecimal(price)
		if item, ok := items[menuItemID]; ok {
			item.Addons[addon.ID] = addon
		}
	}
	return items, addonRows.Err()
}

func numericToDecimal(value pgtype.Numeric) decimal.Decimal {
	if !value.Valid || value.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value.Int, value.Exp)
}
