package graphql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepare(t *testing.T) {
	tests := []struct {
		name      string
		document  string
		operation string
		variables map[string]any
		want      *Operation
	}{
		{
			name:     "dashboard query",
			document: `query { getLatestMetrics { cpuUsage memoryUsage diskUsage timestamp } }`,
			want: &Operation{Selections: []Field{{
				Name: "getLatestMetrics",
				Selections: []Field{
					{Name: "cpuUsage"}, {Name: "memoryUsage"}, {Name: "diskUsage"}, {Name: "timestamp"},
				},
			}}},
		},
		{
			name:     "shorthand with alias and comments",
			document: "{\n  # latest sample }}}}\n  latest: getLatestMetrics { id, cpu: cpuUsage }\n}",
			want: &Operation{Selections: []Field{{
				Alias: "latest",
				Name:  "getLatestMetrics",
				Selections: []Field{
					{Name: "id"}, {Alias: "cpu", Name: "cpuUsage"},
				},
			}}},
		},
		{
			name:      "selected operation",
			document:  `query Other { __typename } query Latest { getLatestMetrics { id } }`,
			operation: "Latest",
			want: &Operation{Name: "Latest", Selections: []Field{{
				Name:       "getLatestMetrics",
				Selections: []Field{{Name: "id"}},
			}}},
		},
		{
			name: "fragments",
			document: `{ getLatestMetrics { ...usage ... on ServerMetrics { timestamp } } }
				fragment usage on ServerMetrics { cpuUsage memoryUsage }`,
			want: &Operation{Selections: []Field{{
				Name: "getLatestMetrics",
				Selections: []Field{
					{Name: "cpuUsage"}, {Name: "memoryUsage"}, {Name: "timestamp"},
				},
			}}},
		},
		{
			name:      "skip and include",
			document:  `query Latest($withDisk: Boolean!) { getLatestMetrics { id @skip(if: true) cpuUsage diskUsage @include(if: $withDisk) } }`,
			variables: map[string]any{"withDisk": false},
			want: &Operation{Name: "Latest", Selections: []Field{{
				Name:       "getLatestMetrics",
				Selections: []Field{{Name: "cpuUsage"}},
			}}},
		},
		{
			name:     "repeated fields merge",
			document: `{ getLatestMetrics { id } getLatestMetrics { cpuUsage id } }`,
			want: &Operation{Selections: []Field{{
				Name:       "getLatestMetrics",
				Selections: []Field{{Name: "id"}, {Name: "cpuUsage"}},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Prepare(tt.document, tt.operation, tt.variables)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrepareSyntaxErrors(t *testing.T) {
	tests := []struct {
		name     string
		document string
	}{
		{name: "empty", document: ""},
		{name: "empty selection", document: "{ }"},
		{name: "unclosed", document: "{ getLatestMetrics { id }"},
		{name: "unknown keyword", document: `fetch { a }`},
		{name: "bad character", document: `{ a; }`},
		{name: "too deep", document: `{ getLatestMetrics { ... on ServerMetrics { ... on ServerMetrics { id } } } }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prepare(tt.document, "", nil)
			require.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestPrepareRejectsDeepNestingWithoutParsing(t *testing.T) {
	const depth = 3_000_000

	document := strings.Repeat("{a", depth) + strings.Repeat("}", depth)

	_, err := Prepare(document, "", nil)
	require.ErrorIs(t, err, ErrSyntax)
}

func TestPrepareValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		document  string
		operation string
		variables map[string]any
	}{
		{name: "mutation", document: `mutation { addMetrics { id } }`},
		{name: "unknown field", document: `{ getAllMetrics { id } }`},
		{name: "unknown subfield", document: `{ getLatestMetrics { load } }`},
		{name: "missing subselection", document: `{ getLatestMetrics }`},
		{name: "leaf subselection", document: `{ getLatestMetrics { id { value } } }`},
		{name: "arguments", document: `{ getLatestMetrics(limit: 1) { id } }`},
		{name: "undefined fragment", document: `{ getLatestMetrics { ...Fields } }`},
		{name: "unnamed with two operations", document: `query A { __typename } query B { __typename }`},
		{name: "unknown operation", document: `query A { __typename }`, operation: "B"},
		{
			name:      "wrong variable type",
			document:  `query Latest($on: Boolean!) { getLatestMetrics { id @include(if: $on) } }`,
			variables: map[string]any{"on": "yes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prepare(tt.document, tt.operation, tt.variables)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCheckDepthIgnoresStringsAndComments(t *testing.T) {
	require.NoError(t, checkDepth(`{ a(s: "{{{{", b: """ {{{{ \""" {{{{ """) } # {{{{`))
	require.ErrorIs(t, checkDepth("{{{{"), ErrSyntax)
}

func TestResponseKey(t *testing.T) {
	assert.Equal(t, "cpuUsage", Field{Name: "cpuUsage"}.ResponseKey())
	assert.Equal(t, "cpu", Field{Alias: "cpu", Name: "cpuUsage"}.ResponseKey())
}
