// Package graphql prepares GraphQL query documents for the metrics schema.
// Documents are parsed and validated with gqlparser, then flattened into
// plain field selections ready to resolve.
package graphql

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// MaxDepth bounds selection set nesting. The schema itself is two levels
// deep, the extra level leaves room for an inline fragment.
const MaxDepth = 3

var (
	ErrSyntax     = errors.New("graphql syntax error")
	ErrValidation = errors.New("graphql validation error")
)

const schemaSDL = `
type ServerMetrics {
  id: ID!
  cpuUsage: Float
  memoryUsage: Float
  diskUsage: Float
  timestamp: String
}

type Query {
  getLatestMetrics: ServerMetrics
}
`

var schema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSDL})

type Field struct {
	Alias      string
	Name       string
	Selections []Field
}

// ResponseKey is the key the field's value is returned under.
func (f Field) ResponseKey() string {
	if f.Alias != "" {
		return f.Alias
	}

	return f.Name
}

type Operation struct {
	Name       string
	Selections []Field
}

// Prepare parses and validates document, picks the operation to run and
// resolves fragments and skip/include directives against variables.
func Prepare(document, operationName string, variables map[string]any) (*Operation, error) {
	if err := checkDepth(document); err != nil {
		return nil, err
	}

	doc, err := parser.ParseQuery(&ast.Source{Name: "query", Input: document})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, err)
	}

	if len(doc.Operations) == 0 {
		return nil, fmt.Errorf("%w: document holds no operation", ErrSyntax)
	}

	if errs := validator.Validate(schema, doc); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, errs.Error())
	}

	op := doc.Operations.ForName(operationName)
	if op == nil {
		if operationName == "" {
			return nil, fmt.Errorf("%w: operation name is required when the document holds several operations", ErrValidation)
		}

		return nil, fmt.Errorf("%w: unknown operation %q", ErrValidation, operationName)
	}

	if op.Operation != ast.Query {
		return nil, fmt.Errorf("%w: %s operations are not supported", ErrValidation, op.Operation)
	}

	vars, err := validator.VariableValues(schema, op, variables)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	return &Operation{
		Name:       op.Name,
		Selections: collectFields(op.SelectionSet, vars),
	}, nil
}

// collectFields flattens fragments and merges fields sharing a response key.
func collectFields(set ast.SelectionSet, vars map[string]any) []Field {
	var fields []Field
	index := make(map[string]int)

	var walk func(ast.SelectionSet)
	walk = func(set ast.SelectionSet) {
		for _, selection := range set {
			switch sel := selection.(type) {
			case *ast.Field:
				if !included(sel.Directives, vars) {
					continue
				}

				field := Field{Alias: sel.Alias, Name: sel.Name}
				if field.Alias == field.Name {
					field.Alias = ""
				}

				sub := collectFields(sel.SelectionSet, vars)

				key := field.ResponseKey()
				if i, ok := index[key]; ok {
					fields[i].Selections = mergeFields(fields[i].Selections, sub)

					continue
				}

				field.Selections = sub
				index[key] = len(fields)
				fields = append(fields, field)
			case *ast.InlineFragment:
				if included(sel.Directives, vars) {
					walk(sel.SelectionSet)
				}
			case *ast.FragmentSpread:
				if included(sel.Directives, vars) && sel.Definition != nil {
					walk(sel.Definition.SelectionSet)
				}
			}
		}
	}
	walk(set)

	return fields
}

func mergeFields(existing, extra []Field) []Field {
	for _, field := range extra {
		merged := false
		for i := range existing {
			if existing[i].ResponseKey() == field.ResponseKey() {
				existing[i].Selections = mergeFields(existing[i].Selections, field.Selections)
				merged = true

				break
			}
		}

		if !merged {
			existing = append(existing, field)
		}
	}

	return existing
}

func included(directives ast.DirectiveList, vars map[string]any) bool {
	if d := directives.ForName("skip"); d != nil {
		if skip, _ := d.ArgumentMap(vars)["if"].(bool); skip {
			return false
		}
	}

	if d := directives.ForName("include"); d != nil {
		if include, _ := d.ArgumentMap(vars)["if"].(bool); !include {
			return false
		}
	}

	return true
}
