package remote

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// toRow turns a domain record into a remote row: JSON field names are
// rewritten to column names and everything outside the table's write
// whitelist is dropped. Server-assigned columns (id, timestamps) and
// display-only fields never survive this step, which is what keeps
// writes from tripping over columns the remote refuses.
func toRow(s *entitySchema, record any) (map[string]any, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", s.entity, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("remap %s: %w", s.entity, err)
	}

	row := make(map[string]any, len(fields))
	for name, value := range fields {
		col, ok := s.fieldColumns[name]
		if !ok {
			col = name
		}
		if !s.writeColumns[col] {
			continue
		}
		row[col] = value
	}
	return row, nil
}

// fromRow turns a remote row into the domain record out points to.
// Declared-numeric columns arriving as strings are parsed first; a
// value that fails to parse is passed through untouched.
func fromRow(s *entitySchema, row map[string]any, out any) error {
	fields := make(map[string]any, len(row))
	for col, value := range row {
		if s.numericColumns[col] {
			value = coerceNumeric(value)
		}
		name, ok := columnField(s, col)
		if !ok {
			name = col
		}
		fields[name] = value
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("remap %s row: %w", s.entity, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s row: %w", s.entity, err)
	}
	return nil
}

// coerceNumeric parses string-encoded numbers the wire format produces
// for decimal columns. Non-strings and unparseable strings come back
// unchanged.
func coerceNumeric(value any) any {
	str, ok := value.(string)
	if !ok {
		return value
	}
	n, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return value
	}
	return n
}

// columnField is the reverse of fieldColumns.
func columnField(s *entitySchema, col string) (string, bool) {
	if s.reverse == nil {
		s.reverse = make(map[string]string, len(s.fieldColumns))
		for name, c := range s.fieldColumns {
			s.reverse[c] = name
		}
	}
	name, ok := s.reverse[col]
	return name, ok
}
