package query

import (
	"strings"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
)

const (
	// AndSeparator joins conditions of one group
	AndSeparator = "^"
	// OrSeparator joins groups
	OrSeparator = "^NQ"

	orderByKeyword     = "ORDERBY"
	orderByDescKeyword = "ORDERBYDESC"
)

// Serialize renders a parsed query in the backend's encoded form.
// Values are written as-is: a value containing "^" changes the meaning of the query,
// which matches how the backend's own query builder behaves.
func Serialize(q ParsedQuery) string {
	groups := make([]string, 0, len(q))
	for _, group := range q {
		conditions := make([]string, 0, len(group))
		for _, cond := range group {
			conditions = append(conditions, cond.Field+string(cond.Operator)+cond.Value)
		}
		groups = append(groups, strings.Join(conditions, AndSeparator))
	}
	return strings.Join(groups, OrSeparator)
}

// Compile parses and serializes groups in one step, returning every parse failure at once
func Compile(groups []Group) (string, error) {
	parsed, messages := ParseQuery(groups)
	if len(messages) > 0 {
		return "", ferrors.NewQueryParseError(messages)
	}
	return Serialize(parsed), nil
}

// AndAll appends clauses to every group so they hold regardless of which OR branch matches
func AndAll(groups []Group, clauses ...Clause) []Group {
	if len(groups) == 0 {
		return []Group{append(Group{}, clauses...)}
	}

	result := make([]Group, 0, len(groups))
	for _, group := range groups {
		merged := make(Group, 0, len(group)+len(clauses))
		merged = append(merged, group...)
		merged = append(merged, clauses...)
		result = append(result, merged)
	}
	return result
}

// OrderBy appends a sort directive to an encoded query
func OrderBy(encoded, field string, descending bool) string {
	keyword := orderByKeyword
	if descending {
		keyword = orderByDescKeyword
	}

	if encoded == "" {
		return keyword + field
	}
	return encoded + AndSeparator + keyword + field
}
