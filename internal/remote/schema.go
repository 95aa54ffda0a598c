package remote

import "github.com/ratkov/kasa/internal/models"

// entitySchema describes how one entity type maps onto its remote
// table: the bidirectional field/column rename table, the columns we
// are allowed to write, and the columns whose values must be read back
// as numbers even when the wire carries them as strings.
type entitySchema struct {
	entity models.EntityType
	table  string

	// fieldColumns maps domain field names (the struct's JSON names)
	// to remote column names. Fields absent from the map pass through
	// under their own name.
	fieldColumns map[string]string

	// writeColumns is the whitelist of remote columns an insert or
	// update may carry. Anything else is dropped before transmission.
	writeColumns map[string]bool

	// numericColumns declares which columns are numeric on read.
	numericColumns map[string]bool

	// optionalColumns are drift-prone columns guarded by capability
	// flags.
	optionalColumns []string

	// cursorColumn orders delta fetches, with created_at as fallback
	// for rows that predate the updated_at trigger.
	cursorColumn string

	// reverse is the lazily built column-to-field map.
	reverse map[string]string
}

var productSchema = &entitySchema{
	entity: models.EntityProduct,
	table:  "products",
	fieldColumns: map[string]string{
		"name":          "name",
		"price":         "price",
		"purchasePrice": "purchase_price",
		"category":      "category",
		"sortOrder":     "sort_order",
		"isActive":      "is_active",
		"createdAt":     "created_at",
		"updatedAt":     "updated_at",
	},
	writeColumns: map[string]bool{
		"name": true, "price": true, "purchase_price": true,
		"category": true, "sort_order": true, "is_active": true,
	},
	numericColumns:  map[string]bool{"price": true, "purchase_price": true},
	optionalColumns: []string{"purchase_price", "sort_order"},
	cursorColumn:    "updated_at",
}

var tableSchema = &entitySchema{
	entity: models.EntityTable,
	table:  "tables",
	fieldColumns: map[string]string{
		"name":       "name",
		"hourlyRate": "hourly_rate",
		"isActive":   "is_active",
		"createdAt":  "created_at",
		"updatedAt":  "updated_at",
	},
	writeColumns: map[string]bool{
		"name": true, "hourly_rate": true, "is_active": true,
	},
	numericColumns: map[string]bool{"hourly_rate": true},
	cursorColumn:   "updated_at",
}

var saleSchema = &entitySchema{
	entity: models.EntitySale,
	table:  "sales",
	fieldColumns: map[string]string{
		"tableId":      "table_id",
		"customerId":   "customer_id",
		"productId":    "product_id",
		"productName":  "product_name",
		"quantity":     "quantity",
		"unitPrice":    "unit_price",
		"total":        "total",
		"isPaid":       "is_paid",
		"isCredit":     "is_credit",
		"sellDateTime": "sell_date_time",
		"createdAt":    "created_at",
		"updatedAt":    "updated_at",
		// tableName is display-only and has no remote column; it is
		// unmapped on purpose and dies at the whitelist.
	},
	writeColumns: map[string]bool{
		"table_id": true, "customer_id": true, "product_id": true,
		"product_name": true, "quantity": true, "unit_price": true,
		"total": true, "is_paid": true, "is_credit": true,
		"sell_date_time": true,
	},
	numericColumns: map[string]bool{"unit_price": true, "total": true},
	cursorColumn:   "updated_at",
}

var customerSchema = &entitySchema{
	entity: models.EntityCustomer,
	table:  "customers",
	fieldColumns: map[string]string{
		"name":      "name",
		"phone":     "phone",
		"note":      "note",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	},
	writeColumns: map[string]bool{
		"name": true, "phone": true, "note": true,
	},
	numericColumns: map[string]bool{},
	cursorColumn:   "updated_at",
}

var manualSessionSchema = &entitySchema{
	entity: models.EntityManualSession,
	table:  "manual_sessions",
	fieldColumns: map[string]string{
		"tableId":   "table_id",
		"type":      "type",
		"amount":    "amount",
		"openTime":  "open_time",
		"closeTime": "close_time",
		"note":      "note",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	},
	writeColumns: map[string]bool{
		"table_id": true, "type": true, "amount": true,
		"open_time": true, "close_time": true, "note": true,
	},
	numericColumns: map[string]bool{"amount": true},
	cursorColumn:   "updated_at",
}

// schemas in sync order.
var schemas = []*entitySchema{
	productSchema,
	tableSchema,
	saleSchema,
	customerSchema,
	manualSessionSchema,
}

func schemaFor(entity models.EntityType) *entitySchema {
	for _, s := range schemas {
		if s.entity == entity {
			return s
		}
	}
	return nil
}

// Capabilities tracks which optional remote columns this process has
// observed to exist. Flags start true and only ever downgrade; a remote
// migration adding the column is picked up on the next process start.
type Capabilities struct {
	ProductPurchasePrice bool
	ProductSortOrder     bool
}

// NewCapabilities returns flags with every optional column assumed
// supported.
func NewCapabilities() *Capabilities {
	return &Capabilities{
		ProductPurchasePrice: true,
		ProductSortOrder:     true,
	}
}

func (c *Capabilities) flag(entity models.EntityType, column string) *bool {
	if entity != models.EntityProduct {
		return nil
	}
	switch column {
	case "purchase_price":
		return &c.ProductPurchasePrice
	case "sort_order":
		return &c.ProductSortOrder
	}
	return nil
}

// strip removes flagged columns already known to be unsupported, so
// downgraded columns are never attempted again within this process.
func (c *Capabilities) strip(s *entitySchema, row map[string]any) {
	for _, col := range s.optionalColumns {
		if f := c.flag(s.entity, col); f != nil && !*f {
			delete(row, col)
		}
	}
}

// downgrade marks a flagged column unsupported, reporting whether the
// column was actually guarded by a flag that was still up. Unflagged
// missing columns are real failures and must propagate.
func (c *Capabilities) downgrade(s *entitySchema, column string) bool {
	f := c.flag(s.entity, column)
	if f == nil || !*f {
		return false
	}
	*f = false
	return true
}
