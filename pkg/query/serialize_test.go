package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
)

func TestSerialize(t *testing.T) {
	tests := []struct {
		name     string
		query    ParsedQuery
		expected string
	}{
		{
			name:     "single condition",
			query:    ParsedQuery{{{Field: "short_description", Operator: OpLike, Value: "SAP"}}},
			expected: "short_descriptionLIKESAP",
		},
		{
			name: "and within a group",
			query: ParsedQuery{{
				{Field: "state", Operator: OpEquals, Value: "1"},
				{Field: "priority", Operator: OpLessEquals, Value: "2"},
			}},
			expected: "state=1^priority<=2",
		},
		{
			name: "or between groups",
			query: ParsedQuery{
				{{Field: "state", Operator: OpEquals, Value: "1"}},
				{{Field: "state", Operator: OpEquals, Value: "2"}},
			},
			expected: "state=1^NQstate=2",
		},
		{
			name:     "unary has no value",
			query:    ParsedQuery{{{Field: "assigned_to", Operator: OpIsEmpty}}},
			expected: "assigned_toISEMPTY",
		},
		{
			name:     "multi word operator",
			query:    ParsedQuery{{{Field: "short_description", Operator: OpNotLike, Value: "SAP"}}},
			expected: "short_descriptionNOT LIKESAP",
		},
		{
			name:     "values are not escaped",
			query:    ParsedQuery{{{Field: "short_description", Operator: OpEquals, Value: "a^b"}}},
			expected: "short_description=a^b",
		},
		{
			name:     "empty",
			query:    ParsedQuery{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Serialize(tt.query))
		})
	}
}

func TestCompile(t *testing.T) {
	encoded, err := Compile([]Group{
		{{Field: "state", Expr: "= new"}, {Field: "caller", Expr: "ISNOTEMPTY"}},
		{{Field: "priority", Expr: "IN 1,2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "state=new^callerISNOTEMPTY^NQpriorityIN1,2", encoded)
}

func TestCompile_ReturnsQueryParseError(t *testing.T) {
	_, err := Compile([]Group{
		{{Field: "state", Expr: "== new"}},
		{{Field: "caller", Expr: "ANYTHING at all"}},
	})
	require.Error(t, err)
	assert.True(t, ferrors.IsQueryParseError(err))

	structured, ok := ferrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, []string{
		"Invalid condition '== new' for column 'state'.",
		"Operator ANYTHING does not take any arguments",
	}, structured.Details)
}

func TestAndAll(t *testing.T) {
	watermark := Is("sys_updated_on", OpGreater, "2024-01-01 00:00:00")

	groups := AndAll([]Group{
		{Equals("state", "1")},
		{Equals("state", "2")},
	}, watermark)

	encoded, err := Compile(groups)
	require.NoError(t, err)
	assert.Equal(t, "state=1^sys_updated_on>2024-01-01 00:00:00^NQstate=2^sys_updated_on>2024-01-01 00:00:00", encoded)

	encoded, err = Compile(AndAll(nil, watermark))
	require.NoError(t, err)
	assert.Equal(t, "sys_updated_on>2024-01-01 00:00:00", encoded)
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, "ORDERBYsys_updated_on", OrderBy("", "sys_updated_on", false))
	assert.Equal(t, "state=1^ORDERBYDESCnumber", OrderBy("state=1", "number", true))
}
