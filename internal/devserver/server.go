// Package devserver is a small emulator of the remote store's REST
// surface, backed by SQLite. It speaks exactly the subset the remote
// adapter uses (eq/gte/is filters, order/limit/offset, representation
// echo, undefined-column errors, decimal columns rendered as strings),
// so e2e tests and offline development run without the hosted store.
package devserver

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type colKind int

const (
	colInt colKind = iota
	colReal
	colBool
	colText
	colTime
)

type colDef struct {
	name string
	kind colKind
}

type tableDef struct {
	name string
	cols []colDef
}

func (t *tableDef) col(name string) (colDef, bool) {
	for _, c := range t.cols {
		if c.name == name {
			return c, true
		}
	}
	return colDef{}, false
}

func defaultTables() []tableDef {
	return []tableDef{
		{name: "products", cols: []colDef{
			{"name", colText}, {"price", colReal}, {"purchase_price", colReal},
			{"category", colText}, {"sort_order", colInt}, {"is_active", colBool},
		}},
		{name: "tables", cols: []colDef{
			{"name", colText}, {"hourly_rate", colReal}, {"is_active", colBool},
		}},
		{name: "sales", cols: []colDef{
			{"table_id", colInt}, {"customer_id", colInt}, {"product_id", colInt},
			{"product_name", colText}, {"quantity", colInt}, {"unit_price", colReal},
			{"total", colReal}, {"is_paid", colBool}, {"is_credit", colBool},
			{"sell_date_time", colTime},
		}},
		{name: "customers", cols: []colDef{
			{"name", colText}, {"phone", colText}, {"note", colText},
		}},
		{name: "manual_sessions", cols: []colDef{
			{"table_id", colInt}, {"type", colText}, {"amount", colReal},
			{"open_time", colTime}, {"close_time", colTime}, {"note", colText},
		}},
	}
}

// Option configures a Server.
type Option func(*Server)

// WithAPIKey makes the server require a matching bearer token.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithoutProductExtras creates the products table without the
// purchase_price and sort_order columns, emulating a remote schema
// that predates them. Writes naming those columns fail with the
// undefined-column error the adapter self-heals on.
func WithoutProductExtras() Option {
	return func(s *Server) {
		for i := range s.tables {
			if s.tables[i].name != "products" {
				continue
			}
			var kept []colDef
			for _, c := range s.tables[i].cols {
				if c.name == "purchase_price" || c.name == "sort_order" {
					continue
				}
				kept = append(kept, c)
			}
			s.tables[i].cols = kept
		}
	}
}

// Server serves the REST subset over one SQLite database.
type Server struct {
	db     *sql.DB
	tables []tableDef
	apiKey string
	mux    *http.ServeMux
}

// New creates the emulator and its schema on the given database.
func New(db *sql.DB, opts ...Option) (*Server, error) {
	s := &Server{db: db, tables: defaultTables()}
	for _, opt := range opts {
		opt(s)
	}

	for _, t := range s.tables {
		ddl := []string{"id INTEGER PRIMARY KEY AUTOINCREMENT"}
		for _, c := range t.cols {
			switch c.kind {
			case colInt, colBool:
				ddl = append(ddl, c.name+" INTEGER")
			case colReal:
				ddl = append(ddl, c.name+" REAL")
			default:
				ddl = append(ddl, c.name+" TEXT")
			}
		}
		ddl = append(ddl, "created_at TEXT", "updated_at TEXT")
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.name, strings.Join(ddl, ", "))
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("create %s: %w", t.name, err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/v1/{table}", s.handleSelect)
	mux.HandleFunc("POST /rest/v1/{table}", s.handleInsert)
	mux.HandleFunc("PATCH /rest/v1/{table}", s.handleUpdate)
	mux.HandleFunc("DELETE /rest/v1/{table}", s.handleDelete)
	s.mux = mux
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+s.apiKey {
		writeError(w, http.StatusUnauthorized, "", "Invalid API key")
		return
	}
	s.mux.ServeHTTP(w, r)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
		"details": nil,
		"hint":    nil,
	})
}

func (s *Server) table(r *http.Request) (*tableDef, bool) {
	name := r.PathValue("table")
	for i := range s.tables {
		if s.tables[i].name == name {
			return &s.tables[i], true
		}
	}
	return nil, false
}

// whereClause turns the adapter's filter params into SQL. Supported
// operators: eq, gte, lte, and is (true/false/null).
func whereClause(t *tableDef, r *http.Request) (string, []any, error) {
	var conds []string
	var args []any

	for key, values := range r.URL.Query() {
		switch key {
		case "select", "order", "limit", "offset":
			continue
		}
		if _, ok := t.col(key); !ok && key != "id" && key != "created_at" && key != "updated_at" {
			return "", nil, fmt.Errorf("column %q of relation %q does not exist", key, t.name)
		}
		for _, v := range values {
			op, operand, found := strings.Cut(v, ".")
			if !found {
				return "", nil, fmt.Errorf("unsupported filter %q", v)
			}
			switch op {
			case "eq":
				conds = append(conds, key+" = ?")
				args = append(args, operand)
			case "gte":
				conds = append(conds, key+" >= ?")
				args = append(args, operand)
			case "lte":
				conds = append(conds, key+" <= ?")
				args = append(args, operand)
			case "is":
				switch operand {
				case "null":
					conds = append(conds, key+" IS NULL")
				case "true":
					conds = append(conds, key+" = 1")
				case "false":
					conds = append(conds, "("+key+" = 0 OR "+key+" IS NULL)")
				default:
					return "", nil, fmt.Errorf("unsupported is operand %q", operand)
				}
			default:
				return "", nil, fmt.Errorf("unsupported operator %q", op)
			}
		}
	}

	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(r)
	if !ok {
		writeError(w, http.StatusNotFound, "42P01", fmt.Sprintf("relation %q does not exist", r.PathValue("table")))
		return
	}

	where, args, err := whereClause(t, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "42703", err.Error())
		return
	}

	query := "SELECT * FROM " + t.name + where

	if order := r.URL.Query().Get("order"); order != "" {
		col, dir, _ := strings.Cut(order, ".")
		if _, ok := t.col(col); ok || col == "id" || col == "created_at" || col == "updated_at" {
			if dir == "desc" {
				query += " ORDER BY " + col + " DESC"
			} else {
				query += " ORDER BY " + col + " ASC"
			}
		}
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			query += fmt.Sprintf(" LIMIT %d", n)
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n > 0 {
			query += fmt.Sprintf(" OFFSET %d", n)
		}
	}

	rows, err := s.queryRows(t, query, args...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "XX000", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(r)
	if !ok {
		writeError(w, http.StatusNotFound, "42P01", fmt.Sprintf("relation %q does not exist", r.PathValue("table")))
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "22P02", err.Error())
		return
	}

	cols, binds, args, err := t.writeArgs(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "42703", err.Error())
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	cols = append(cols, "created_at", "updated_at")
	binds = append(binds, "?", "?")
	args = append(args, now, now)

	res, err := s.db.Exec(
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(cols, ", "), strings.Join(binds, ", ")),
		args...)
	if err != nil {
		writeError(w, http.StatusBadRequest, "23502", err.Error())
		return
	}
	id, _ := res.LastInsertId()

	s.respondRepresentation(w, t, id, http.StatusCreated)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(r)
	if !ok {
		writeError(w, http.StatusNotFound, "42P01", fmt.Sprintf("relation %q does not exist", r.PathValue("table")))
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "22P02", err.Error())
		return
	}

	cols, _, args, err := t.writeArgs(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "42703", err.Error())
		return
	}

	where, whereArgs, err := whereClause(t, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "42703", err.Error())
		return
	}

	sets := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		sets = append(sets, c+" = ?")
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339))
	args = append(args, whereArgs...)

	if _, err := s.db.Exec(
		fmt.Sprintf("UPDATE %s SET %s%s", t.name, strings.Join(sets, ", "), where),
		args...); err != nil {
		writeError(w, http.StatusBadRequest, "23502", err.Error())
		return
	}

	rows, err := s.queryRows(t, "SELECT * FROM "+t.name+where, whereArgs...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "XX000", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(r)
	if !ok {
		writeError(w, http.StatusNotFound, "42P01", fmt.Sprintf("relation %q does not exist", r.PathValue("table")))
		return
	}

	where, args, err := whereClause(t, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "42703", err.Error())
		return
	}

	if _, err := s.db.Exec("DELETE FROM "+t.name+where, args...); err != nil {
		writeError(w, http.StatusInternalServerError, "XX000", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respondRepresentation(w http.ResponseWriter, t *tableDef, id int64, status int) {
	rows, err := s.queryRows(t, "SELECT * FROM "+t.name+" WHERE id = ?", id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "XX000", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(rows)
}

// writeArgs validates a payload against the table's columns and builds
// insert/update bindings. An unknown key yields the undefined-column
// message the real store emits.
func (t *tableDef) writeArgs(payload map[string]any) (cols, binds []string, args []any, err error) {
	for key, value := range payload {
		c, ok := t.col(key)
		if !ok {
			return nil, nil, nil, fmt.Errorf("column %q of relation %q does not exist", key, t.name)
		}
		cols = append(cols, key)
		binds = append(binds, "?")
		switch c.kind {
		case colBool:
			if b, ok := value.(bool); ok && b {
				args = append(args, 1)
			} else {
				args = append(args, 0)
			}
		default:
			args = append(args, fmt.Sprintf("%v", value))
		}
	}
	return cols, binds, args, nil
}

// queryRows renders matching rows the way the hosted store does:
// decimal columns as JSON strings, booleans as true/false, timestamps
// as their stored text.
func (s *Server) queryRows(t *tableDef, query string, args ...any) ([]map[string]any, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(names))
		for i, name := range names {
			row[name] = renderValue(t, name, values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func renderValue(t *tableDef, name string, value any) any {
	if value == nil {
		return nil
	}
	if name == "id" {
		return toInt64(value)
	}
	if name == "created_at" || name == "updated_at" {
		return toString(value)
	}
	c, ok := t.col(name)
	if !ok {
		return value
	}
	switch c.kind {
	case colReal:
		// Decimal columns travel as strings on the real wire.
		return strconv.FormatFloat(toFloat64(value), 'f', 2, 64)
	case colBool:
		return toInt64(value) != 0
	case colInt:
		return toInt64(value)
	default:
		return toString(value)
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case []byte:
		i, _ := strconv.ParseInt(string(n), 10, 64)
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case []byte:
		f, _ := strconv.ParseFloat(string(n), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprintf("%v", v)
}
