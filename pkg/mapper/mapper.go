// Package mapper translates field values between the friendly vocabulary callers use
// and the internal codes the backend stores.
package mapper

import (
	"fmt"

	"github.com/Gobusters/ectologger"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/query"
)

// Pair associates a backend code with its friendly name
type Pair struct {
	Internal string `json:"internal" yaml:"internal"`
	Friendly string `json:"friendly" yaml:"friendly"`
}

// Table holds the ordered pairs for each mapped field. Lookups scan in order and
// the first match wins when a code or name appears twice.
type Table map[string][]Pair

// Warner receives a message whenever a value has no mapping
type Warner interface {
	Warn(message string)
}

// WarnFunc adapts a function to Warner
type WarnFunc func(message string)

func (f WarnFunc) Warn(message string) { f(message) }

// LoggerWarner forwards mapping warnings to logger at warn level
func LoggerWarner(logger ectologger.Logger) WarnFunc {
	return func(message string) { logger.Warn(message) }
}

// Mapper maps values for the fields of one table
type Mapper struct {
	table  Table
	warner Warner
}

// New creates a mapper. A nil warner disables unknown-value warnings.
func New(table Table, warner Warner) *Mapper {
	if table == nil {
		table = Table{}
	}
	return &Mapper{
		table:  table,
		warner: warner,
	}
}

// WithWarner returns a mapper sharing the table but reporting to another warner
func (m *Mapper) WithWarner(warner Warner) *Mapper {
	return &Mapper{
		table:  m.table,
		warner: warner,
	}
}

// HasField reports whether a field has a mapping configured
func (m *Mapper) HasField(field string) bool {
	if m == nil {
		return false
	}
	_, ok := m.table[field]
	return ok
}

// ToFriendly maps a backend code to its friendly name
func (m *Mapper) ToFriendly(field, value string) string {
	return m.lookup(field, value, internalToFriendly)
}

// ToInternal maps a friendly name to its backend code
func (m *Mapper) ToInternal(field, value string) string {
	return m.lookup(field, value, friendlyToInternal)
}

func internalToFriendly(p Pair) (string, string) { return p.Internal, p.Friendly }
func friendlyToInternal(p Pair) (string, string) { return p.Friendly, p.Internal }

func (m *Mapper) lookup(field, value string, direction func(Pair) (from, to string)) string {
	mapped, _ := m.find(field, value, direction)
	return mapped
}

// find reports whether value had a mapping. Unknown values of a mapped field are warned
// about and returned unchanged.
func (m *Mapper) find(field, value string, direction func(Pair) (from, to string)) (string, bool) {
	if m == nil {
		return value, false
	}

	pairs, ok := m.table[field]
	if !ok {
		return value, false
	}

	for _, pair := range pairs {
		from, to := direction(pair)
		if from == value {
			return to, true
		}
	}

	if m.warner != nil {
		m.warner.Warn(fmt.Sprintf("Encountered unknown value %s while mapping field %s.", value, field))
	}
	return value, false
}

// ToFriendlyRecord maps every value of a mapped field to its friendly name
func (m *Mapper) ToFriendlyRecord(record models.Record) models.Record {
	return m.mapRecord(record, internalToFriendly)
}

// ToInternalRecord maps every value of a mapped field to its backend code
func (m *Mapper) ToInternalRecord(record models.Record) models.Record {
	return m.mapRecord(record, friendlyToInternal)
}

// mapRecord looks scalars up by their printed form, so a numeric code 2 matches the pair
// "2". A mapped value becomes a string; unknown values keep their kind. Nulls are skipped.
func (m *Mapper) mapRecord(record models.Record, direction func(Pair) (from, to string)) models.Record {
	if record == nil {
		return nil
	}

	result := make(models.Record, len(record))
	for field, value := range record {
		if value.IsNull() || !m.HasField(field) {
			result[field] = value
			continue
		}
		if mapped, ok := m.find(field, value.String(), direction); ok {
			value = models.String(mapped)
		}
		result[field] = value
	}
	return result
}

// MapQueryValues maps the value of every parsed condition to its backend code.
// Operators, column names and unary conditions are left untouched.
func MapQueryValues(q query.ParsedQuery, m *Mapper) query.ParsedQuery {
	result := make(query.ParsedQuery, 0, len(q))
	for _, group := range q {
		mapped := make(query.ParsedGroup, 0, len(group))
		for _, cond := range group {
			if !query.IsUnary(cond.Operator) {
				cond.Value = m.ToInternal(cond.Field, cond.Value)
			}
			mapped = append(mapped, cond)
		}
		result = append(result, mapped)
	}
	return result
}

// CompileQuery parses groups, maps their values to backend codes and serializes the result
func CompileQuery(groups []query.Group, m *Mapper) (string, error) {
	parsed, messages := query.ParseQuery(groups)
	if len(messages) > 0 {
		return "", ferrors.NewQueryParseError(messages)
	}
	return query.Serialize(MapQueryValues(parsed, m)), nil
}
