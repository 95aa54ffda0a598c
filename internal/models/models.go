// Package models defines the business entities tracked by the kasa data layer.
package models

import "time"

// ManualSession types.
const (
	SessionTypeTable      = "table"
	SessionTypeTimed      = "timed"
	SessionTypeAdjustment = "adjustment"
)

// Product is a sellable item. PurchasePrice and SortOrder are optional
// columns that older remote schemas may not carry yet.
type Product struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	PurchasePrice float64   `json:"purchasePrice,omitempty"`
	Category      string    `json:"category,omitempty"`
	SortOrder     int64     `json:"sortOrder,omitempty"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Table is a billable venue table with an hourly rate.
type Table struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	HourlyRate float64   `json:"hourlyRate"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Sale is a single line item sold at a table, optionally on customer credit.
// TableName is display-only and never written to the remote store.
type Sale struct {
	ID           int64     `json:"id"`
	TableID      int64     `json:"tableId"`
	CustomerID   int64     `json:"customerId,omitempty"`
	ProductID    int64     `json:"productId"`
	ProductName  string    `json:"productName"`
	Quantity     int64     `json:"quantity"`
	UnitPrice    float64   `json:"unitPrice"`
	Total        float64   `json:"total"`
	IsPaid       bool      `json:"isPaid"`
	IsCredit     bool      `json:"isCredit"`
	SellDateTime time.Time `json:"sellDateTime"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	TableName    string    `json:"tableName,omitempty"`
}

// Customer is a credit customer. Balance is a computed aggregate for
// display and never written to the remote store.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Note      string    `json:"note,omitempty"`
	Balance   float64   `json:"balance,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ManualSession is a backfilled table session entered by hand
// (power cut, pre-system history, cash adjustments).
type ManualSession struct {
	ID        int64     `json:"id"`
	TableID   int64     `json:"tableId"`
	Type      string    `json:"type"`
	Amount    float64   `json:"amount"`
	OpenTime  time.Time `json:"openTime"`
	CloseTime time.Time `json:"closeTime"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EntityType identifies one of the synced collections.
type EntityType string

// Tracked entity types.
const (
	EntityProduct       EntityType = "product"
	EntityTable         EntityType = "table"
	EntitySale          EntityType = "sale"
	EntityCustomer      EntityType = "customer"
	EntityManualSession EntityType = "manual_session"
)

// EntityTypes lists every tracked entity type in sync order.
var EntityTypes = []EntityType{
	EntityProduct,
	EntityTable,
	EntitySale,
	EntityCustomer,
	EntityManualSession,
}

// CursorTime returns the timestamp a sync cursor should be derived from:
// UpdatedAt when set, otherwise CreatedAt.
func CursorTime(updatedAt, createdAt time.Time) time.Time {
	if !updatedAt.IsZero() {
		return updatedAt
	}
	return createdAt
}
