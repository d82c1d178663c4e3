package model

import (
	"github.com/spf13/cast"
)

// NameField holds the record's unique name within its type.
const NameField = "name"

// FieldTypeTable marks a child table field in record-type metadata.
const FieldTypeTable = "Table"

// ProtectedFields are never copied from a draft onto an existing target.
var ProtectedFields = []string{"name", "owner", "creation", "modified", "modified_by"}

// Record is a single document as a key-value map. Child tables are lists of
// maps stored under the table field name.
type Record map[string]any

// Name returns the record name or "" when unset.
func (r Record) Name() string {
	return cast.ToString(r[NameField])
}

// Has reports whether the field is present, even with a nil value.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Clone copies the record, including child table rows.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		if rows, ok := asRows(v); ok {
			copied := make([]map[string]any, len(rows))
			for i, row := range rows {
				copied[i] = cloneMap(row)
			}
			out[k] = copied
			continue
		}
		out[k] = v
	}
	return out
}

// Rows returns the child table rows stored under field.
func (r Record) Rows(field string) []map[string]any {
	rows, _ := asRows(r[field])
	return rows
}

func asRows(v any) ([]map[string]any, bool) {
	switch rows := v.(type) {
	case []map[string]any:
		return rows, true
	case []Record:
		out := make([]map[string]any, len(rows))
		for i, row := range rows {
			out[i] = row
		}
		return out, true
	case []any:
		out := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			m, err := cast.ToStringMapE(row)
			if err != nil {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	}
	return nil, false
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// FieldMeta describes one field of a record type.
type FieldMeta struct {
	Name    string `json:"name"`
	Label   string `json:"label,omitempty"`
	Type    string `json:"type"`
	Options string `json:"options,omitempty"`
}

// RecordTypeMeta is the metadata the store exposes for a record type.
type RecordTypeMeta struct {
	Name   string      `json:"name"`
	Fields []FieldMeta `json:"fields"`
}

// Field looks up a field by name.
func (m *RecordTypeMeta) Field(name string) (FieldMeta, bool) {
	if name == NameField {
		return FieldMeta{Name: NameField, Type: "Data"}, true
	}
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldMeta{}, false
}
