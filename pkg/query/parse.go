// Package query compiles structured filter conditions into the backend's encoded query string.
//
// A query is an OR of groups and a group is an AND of clauses. Each clause pairs a column
// with a raw expression such as "= new", "LIKE SAP" or "ISEMPTY".
package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownOperator is returned when an expression does not start with a known operator
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrUnexpectedArgument is matched by ArgumentError
	ErrUnexpectedArgument = errors.New("operator does not take any arguments")
)

// ArgumentError is returned when a unary operator is given a value
type ArgumentError struct {
	Operator Operator
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("Operator %s does not take any arguments", e.Operator)
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrUnexpectedArgument
}

// Clause is one column/expression pair of a group
type Clause struct {
	Field string `json:"field" yaml:"field" validate:"required"`
	Expr  string `json:"expr" yaml:"expr"`
}

// Group is an ordered AND of clauses
type Group []Clause

// Condition is a parsed clause
type Condition struct {
	Field    string
	Operator Operator
	Value    string
}

// ParsedGroup is an ordered AND of parsed conditions
type ParsedGroup []Condition

// ParsedQuery is an ordered OR of parsed groups
type ParsedQuery []ParsedGroup

// Is builds a clause from an operator and value
func Is(field string, op Operator, value string) Clause {
	if IsUnary(op) {
		return Clause{Field: field, Expr: string(op)}
	}
	return Clause{Field: field, Expr: string(op) + " " + value}
}

// Equals builds an equality clause
func Equals(field, value string) Clause {
	return Is(field, OpEquals, value)
}

// ParseCondition splits an expression into its operator and value.
// Unary operators always yield an empty value.
func ParseCondition(expr string) (Operator, string, error) {
	for _, spec := range operatorTable {
		keyword := string(spec.Operator)
		if !strings.HasPrefix(expr, keyword) {
			continue
		}

		rest := expr[len(keyword):]
		switch {
		case rest == "":
			if spec.Arity == Unary {
				return spec.Operator, "", nil
			}
			continue
		case rest[0] != ' ':
			continue
		}

		value := rest[1:]
		if spec.Arity == Unary {
			if strings.TrimSpace(value) != "" {
				return "", "", &ArgumentError{Operator: spec.Operator}
			}
			return spec.Operator, "", nil
		}

		return spec.Operator, value, nil
	}

	return "", "", ErrUnknownOperator
}

// ParseQuery parses every clause of every group. Clauses that fail are dropped and
// reported; a non-empty message list means the query as a whole must not be run.
func ParseQuery(groups []Group) (ParsedQuery, []string) {
	var messages []string
	parsed := make(ParsedQuery, 0, len(groups))

	for _, group := range groups {
		parsedGroup := make(ParsedGroup, 0, len(group))
		for _, clause := range group {
			op, value, err := ParseCondition(clause.Expr)
			if err != nil {
				messages = append(messages, conditionMessage(clause, err))
				continue
			}
			parsedGroup = append(parsedGroup, Condition{
				Field:    clause.Field,
				Operator: op,
				Value:    value,
			})
		}
		parsed = append(parsed, parsedGroup)
	}

	return parsed, messages
}

func conditionMessage(clause Clause, err error) string {
	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		return argErr.Error()
	}
	return fmt.Sprintf("Invalid condition '%s' for column '%s'.", clause.Expr, clause.Field)
}
