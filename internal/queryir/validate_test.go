package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidSelect(t *testing.T) {
	query := Select{
		From:    "pulses",
		Columns: []string{"uuid", "variant"},
		Filter: Where(
			Equals{Field: "variant", Value: "sample"},
			NotIn{Field: "uuid", Sub: Select{From: "pulse_composition", Columns: []string{"source_uuid"}}},
		),
		OrderBy: []Order{{Field: "rowid", Dir: Asc}},
		Page:    Page{Offset: 10, Limit: 5},
	}

	result := Validate(query)

	assert.True(t, result.OK)
	assert.Empty(t, result.Problems)
	assert.NoError(t, result.Err())
}

func TestValidate_Count(t *testing.T) {
	result := Validate(Count{From: "pulses", Filter: Equals{Field: "reference", Value: nil}})
	assert.True(t, result.OK)
}

func TestValidate_Update(t *testing.T) {
	result := Validate(Update{
		Table:  "pulses",
		Set:    []Assignment{{Field: "reference", Value: nil}},
		Filter: In{Field: "uuid", Values: []any{"a", "b"}},
	})
	assert.True(t, result.OK, result.Problems)
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"nil query", nil, "nil query"},
		{"select star", Select{From: "pulses"}, "lists no columns"},
		{"injected table", Select{From: "pulses; DROP TABLE pulses", Columns: []string{"uuid"}}, "invalid table name"},
		{"quoted column", Select{From: "pulses", Columns: []string{`"uuid"`}}, "invalid column name"},
		{"negative page", Select{From: "pulses", Columns: []string{"uuid"}, Page: Page{Offset: -1}}, "negative page"},
		{"bad direction", Select{From: "pulses", Columns: []string{"uuid"}, OrderBy: []Order{{Field: "rowid", Dir: "UP"}}}, "sort direction"},
		{"int value", Count{From: "pulses", Filter: Equals{Field: "pass_number", Value: 3}}, "unsupported value type int"},
		{"wide subquery", Select{From: "pulses", Columns: []string{"uuid"}, Filter: NotIn{
			Field: "uuid",
			Sub:   Select{From: "pulse_composition", Columns: []string{"source_uuid", "final_uuid"}},
		}}, "exactly one column"},
		{"paged subquery", Select{From: "pulses", Columns: []string{"uuid"}, Filter: NotIn{
			Field: "uuid",
			Sub:   Select{From: "pulse_composition", Columns: []string{"source_uuid"}, Page: Page{Limit: 1}},
		}}, "must not be paged"},
		{"unfiltered update", Update{Table: "pulses", Set: []Assignment{{Field: "reference", Value: "x"}}}, "has no filter"},
		{"empty update", Update{Table: "pulses", Filter: Equals{Field: "uuid", Value: "x"}}, "sets no columns"},
		{"injected set column", Update{
			Table:  "pulses",
			Set:    []Assignment{{Field: "reference = NULL --", Value: "x"}},
			Filter: Equals{Field: "uuid", Value: "x"},
		}, "invalid column name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			require.False(t, result.OK)
			require.NotEmpty(t, result.Problems)
			assert.Contains(t, result.Err().Error(), tt.want)
		})
	}
}

func TestWhere(t *testing.T) {
	assert.Nil(t, Where())
	assert.Nil(t, Where(nil, nil))

	eq := Equals{Field: "variant", Value: "noise"}
	assert.Equal(t, eq, Where(nil, eq))

	null := Equals{Field: "reference", Value: nil}
	assert.Equal(t, And{Predicates: []Predicate{eq, null}}, Where(eq, nil, null))
}
