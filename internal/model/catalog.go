package model

import "time"

// BaseItem represents a priced product in the catalogue.
type BaseItem struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	UnitPrice int64     `json:"price" db:"unit_price"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Option is an additively priced modifier scoped to exactly one BaseItem.
type Option struct {
	ID         int64  `json:"id" db:"id"`
	BaseItemID int64  `json:"baseItemId" db:"base_item_id"`
	Name       string `json:"optionName" db:"name"`
	UnitPrice  int64  `json:"price" db:"unit_price"`
}

// ResolvedPrices is the catalog snapshot a breakdown is computed against.
type ResolvedPrices struct {
	BaseItem BaseItem
	Options  map[int64]Option
}
