package ir

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc []Member

func (d doc) Members() []Member { return d }

func TestMarshalOrderedBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"null", nil, "null"},
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"int32", int32(7), "7"},
		{"uint", uint(3), "3"},
		{"integral float", 20.0, "20"},
		{"fraction", 0.5, "0.5"},
		{"bool true", true, "true"},
		{"empty array", []any{}, "[]"},
		{"typed slice", []int{10, 20, 30}, "[10,20,30]"},
		{"empty ordered", doc{}, "{}"},
		{"regexp", regexp.MustCompile(`\:(\d{0,1}1$)`), `"\\:(\\d{0,1}1$)"`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalOrdered(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalOrderedKeepsMemberOrder(t *testing.T) {
	d := doc{
		{Key: "time2", Value: doc{{Key: "$gt", Value: 0}, {Key: "$lte", Value: 50}}},
		{Key: "time1", Value: doc{{Key: "$lt", Value: 50}, {Key: "$gte", Value: 0}}},
	}

	result, err := MarshalOrdered(d)
	require.NoError(t, err)
	assert.Equal(t, `{"time2":{"$gt":0,"$lte":50},"time1":{"$lt":50,"$gte":0}}`, string(result))
}

func TestMarshalOrderedSortsPlainMaps(t *testing.T) {
	result, err := MarshalOrdered(map[string]any{"zebra": 1, "alpha": 2, "beta": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalOrderedNoHTMLEscape(t *testing.T) {
	result, err := MarshalOrdered("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(result))
}

func TestMarshalOrderedNFC(t *testing.T) {
	// "e" followed by a combining acute accent normalizes to U+00E9.
	decomposed := "e\u0301"
	result, err := MarshalOrdered(decomposed)
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalOrderedNestedArrays(t *testing.T) {
	d := doc{{Key: "$between", Value: []any{1, 20}}, {Key: "$in", Value: []any{"a", nil}}}
	result, err := MarshalOrdered(d)
	require.NoError(t, err)
	assert.Equal(t, `{"$between":[1,20],"$in":["a",null]}`, string(result))
}
