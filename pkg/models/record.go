package models

import (
	"fmt"
	"sort"
)

// SysIDField is the backend's unique identifier column
const SysIDField = "sys_id"

// Record is a remote record: field name to scalar value
type Record map[string]Value

// RecordFrom converts a decoded JSON object into a Record
func RecordFrom(data map[string]any) (Record, error) {
	record := make(Record, len(data))
	for field, raw := range data {
		value, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		record[field] = value
	}
	return record, nil
}

// Get returns the value for a field and whether the field is present
func (r Record) Get(field string) (Value, bool) {
	value, ok := r[field]
	return value, ok
}

// GetString returns the string form of a field, or "" when absent
func (r Record) GetString(field string) string {
	value, ok := r[field]
	if !ok {
		return ""
	}
	return value.String()
}

// SysID returns the record's sys_id, or "" if it has none
func (r Record) SysID() string {
	return r.GetString(SysIDField)
}

// Keys returns the record's field names in sorted order
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy. Values are immutable so this is a full copy.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	clone := make(Record, len(r))
	for k, v := range r {
		clone[k] = v
	}
	return clone
}

// Without returns a copy of the record with the given fields removed
func (r Record) Without(fields ...string) Record {
	clone := r.Clone()
	for _, field := range fields {
		delete(clone, field)
	}
	return clone
}

// ToMap converts the record into plain Go values, e.g. for templating or JSON bodies
func (r Record) ToMap() map[string]any {
	result := make(map[string]any, len(r))
	for k, v := range r {
		result[k] = v.Interface()
	}
	return result
}
