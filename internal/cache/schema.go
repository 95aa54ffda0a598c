package cache

// SchemaVersion is the current cache schema version.
const SchemaVersion = 3

// baseSchema is version 1: the original four collections and their
// secondary indexes. Ids come from the remote store, never generated
// here, so the primary keys carry no AUTOINCREMENT.
const baseSchema = `
CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    price REAL NOT NULL DEFAULT 0,
    purchase_price REAL DEFAULT 0,
    category TEXT DEFAULT '',
    sort_order INTEGER DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME,
    updated_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);

CREATE TABLE IF NOT EXISTS tables (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    hourly_rate REAL NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME,
    updated_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_tables_name ON tables(name);
CREATE INDEX IF NOT EXISTS idx_tables_is_active ON tables(is_active);

CREATE TABLE IF NOT EXISTS sales (
    id INTEGER PRIMARY KEY,
    table_id INTEGER NOT NULL DEFAULT 0,
    customer_id INTEGER DEFAULT 0,
    product_id INTEGER DEFAULT 0,
    product_name TEXT DEFAULT '',
    quantity INTEGER NOT NULL DEFAULT 1,
    unit_price REAL NOT NULL DEFAULT 0,
    total REAL NOT NULL DEFAULT 0,
    is_paid INTEGER NOT NULL DEFAULT 0,
    is_credit INTEGER NOT NULL DEFAULT 0,
    sell_date_time DATETIME,
    created_at DATETIME,
    updated_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_sales_table ON sales(table_id);
CREATE INDEX IF NOT EXISTS idx_sales_sell_date_time ON sales(sell_date_time);
CREATE INDEX IF NOT EXISTS idx_sales_is_paid ON sales(is_paid);

CREATE TABLE IF NOT EXISTS customers (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    phone TEXT DEFAULT '',
    note TEXT DEFAULT '',
    created_at DATETIME,
    updated_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_customers_name ON customers(name);
`

// IndexStep is one idempotent index-creation step: the probe name and
// the statement run only when the probe misses.
type IndexStep struct {
	Name string
	SQL  string
}

// Migration describes a schema upgrade step.
type Migration struct {
	Version     int
	Description string
	SQL         string
	Indexes     []IndexStep
}

// Migrations lists upgrades past version 1, in order.
var Migrations = []Migration{
	{
		Version:     2,
		Description: "Add manual_sessions collection for backfilled sessions",
		SQL: `
CREATE TABLE IF NOT EXISTS manual_sessions (
    id INTEGER PRIMARY KEY,
    table_id INTEGER NOT NULL DEFAULT 0,
    type TEXT NOT NULL DEFAULT 'table',
    amount REAL NOT NULL DEFAULT 0,
    open_time DATETIME,
    close_time DATETIME,
    note TEXT DEFAULT '',
    created_at DATETIME,
    updated_at DATETIME
);
`,
		Indexes: []IndexStep{
			{Name: "idx_manual_sessions_type", SQL: `CREATE INDEX IF NOT EXISTS idx_manual_sessions_type ON manual_sessions(type)`},
			{Name: "idx_manual_sessions_close_time", SQL: `CREATE INDEX IF NOT EXISTS idx_manual_sessions_close_time ON manual_sessions(close_time)`},
		},
	},
	{
		Version:     3,
		Description: "Add customer and credit indexes on sales",
		Indexes: []IndexStep{
			{Name: "idx_sales_customer", SQL: `CREATE INDEX IF NOT EXISTS idx_sales_customer ON sales(customer_id)`},
			{Name: "idx_sales_is_credit", SQL: `CREATE INDEX IF NOT EXISTS idx_sales_is_credit ON sales(is_credit)`},
		},
	},
}
