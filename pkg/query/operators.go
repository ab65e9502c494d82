package query

import "sort"

// Operator is an encoded-query comparison keyword
type Operator string

const (
	OpEquals        Operator = "="
	OpNotEquals     Operator = "!="
	OpGreater       Operator = ">"
	OpGreaterEquals Operator = ">="
	OpLess          Operator = "<"
	OpLessEquals    Operator = "<="
	OpLike          Operator = "LIKE"
	OpNotLike       Operator = "NOT LIKE"
	OpIn            Operator = "IN"
	OpNotIn         Operator = "NOT IN"
	OpStartsWith    Operator = "STARTSWITH"
	OpEndsWith      Operator = "ENDSWITH"
	OpOn            Operator = "ON"
	OpBetween       Operator = "BETWEEN"
	OpSameAs        Operator = "SAMEAS"
	OpNotSameAs     Operator = "NSAMEAS"

	OpIsEmpty     Operator = "ISEMPTY"
	OpIsNotEmpty  Operator = "ISNOTEMPTY"
	OpAnything    Operator = "ANYTHING"
	OpEmptyString Operator = "EMPTYSTRING"
)

// Arity is the number of arguments an operator takes
type Arity int

const (
	Unary  Arity = 0
	Binary Arity = 1
)

type operatorSpec struct {
	Operator Operator
	Arity    Arity
}

// BinaryOperators take exactly one value
var BinaryOperators = []Operator{
	OpEquals, OpNotEquals, OpGreater, OpGreaterEquals, OpLess, OpLessEquals,
	OpLike, OpNotLike, OpIn, OpNotIn, OpStartsWith, OpEndsWith,
	OpOn, OpBetween, OpSameAs, OpNotSameAs,
}

// UnaryOperators take no value
var UnaryOperators = []Operator{
	OpIsEmpty, OpIsNotEmpty, OpAnything, OpEmptyString,
}

// operatorTable is tried in order: longest keyword first so that
// ">=" wins over ">" and "NOT LIKE" is never read as something shorter.
var operatorTable = buildOperatorTable()

func buildOperatorTable() []operatorSpec {
	table := make([]operatorSpec, 0, len(BinaryOperators)+len(UnaryOperators))
	for _, op := range BinaryOperators {
		table = append(table, operatorSpec{Operator: op, Arity: Binary})
	}
	for _, op := range UnaryOperators {
		table = append(table, operatorSpec{Operator: op, Arity: Unary})
	}

	sort.SliceStable(table, func(i, j int) bool {
		return len(table[i].Operator) > len(table[j].Operator)
	})

	return table
}

// ArityOf returns the arity of a known operator
func ArityOf(op Operator) (Arity, bool) {
	for _, spec := range operatorTable {
		if spec.Operator == op {
			return spec.Arity, true
		}
	}
	return 0, false
}

// IsUnary reports whether op is a known operator taking no value
func IsUnary(op Operator) bool {
	arity, ok := ArityOf(op)
	return ok && arity == Unary
}
