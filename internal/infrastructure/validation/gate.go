// Package validation checks ingested records against the canonical JSON
// schemas before they reach the store.
package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names
const (
	SchemaOrder    = "order"
	SchemaProduct  = "product"
	SchemaCustomer = "customer"
	SchemaWebhook  = "webhook"
)

const schemaBaseURL = "https://oliehub.local/schemas/"

// ErrUnknownSchema is returned for a schema name that was never compiled
var ErrUnknownSchema = errors.New("validation: unknown schema")

// Gate holds the compiled schemas. It is safe for concurrent use.
type Gate struct {
	schemas map[string]*jsonschema.Schema
}

// NewGate compiles every embedded schema once
func NewGate() (*Gate, error) {
	names := []string{SchemaOrder, SchemaProduct, SchemaCustomer, SchemaWebhook}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for _, name := range names {
		raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := c.AddResource(schemaBaseURL+name+".json", bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}

	g := &Gate{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		compiled, err := c.Compile(schemaBaseURL + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		g.schemas[name] = compiled
	}
	return g, nil
}

// Validate returns nil or a *integration.ValidationFailure listing every
// violated field. data is either a Go value, which is checked in its JSON
// form, or raw JSON bytes.
func (g *Gate) Validate(schemaName string, data any) error {
	schema, ok := g.schemas[schemaName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchema, schemaName)
	}

	instance, err := toInstance(data)
	if err != nil {
		return &integration.ValidationFailure{
			Schema: schemaName,
			Issues: []integration.Issue{{Path: "/", Message: err.Error()}},
		}
	}

	if err := schema.Validate(instance); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		return &integration.ValidationFailure{Schema: schemaName, Issues: flatten(verr)}
	}
	return nil
}

// toInstance converts data to the generic JSON shape the validator walks.
// Numbers are kept as json.Number so integers stay exact.
func toInstance(data any) (any, error) {
	var raw []byte
	switch v := data.(type) {
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode: %w", err)
		}
		raw = b
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return instance, nil
}

// flatten collects the leaf causes, which carry the field-level messages
func flatten(verr *jsonschema.ValidationError) []integration.Issue {
	var issues []integration.Issue
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			path := e.InstanceLocation
			if path == "" {
				path = "/"
			}
			issues = append(issues, integration.Issue{Path: path, Message: e.Message})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(verr)

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Path < issues[j].Path
	})
	return issues
}

// ---------------------------------------------------------------------------
// Batches
// ---------------------------------------------------------------------------

// BatchResult splits a batch into admitted rows and rejected rows
type BatchResult[T any] struct {
	Valid    []T
	Rejected []integration.RowIssue
}

// AllRejected is true for a non-empty batch with no admissible row
func (r BatchResult[T]) AllRejected() bool {
	return len(r.Valid) == 0 && len(r.Rejected) > 0
}

// ValidateBatch validates every row independently. Valid rows are admitted
// in their original order; each invalid row is reported with its index and
// the key returned by key, which may be nil.
func ValidateBatch[T any](g *Gate, schemaName string, rows []T, key func(T) string) (BatchResult[T], error) {
	if _, ok := g.schemas[schemaName]; !ok {
		return BatchResult[T]{}, fmt.Errorf("%w: %s", ErrUnknownSchema, schemaName)
	}

	result := BatchResult[T]{Valid: make([]T, 0, len(rows))}
	for i, row := range rows {
		err := g.Validate(schemaName, row)
		if err == nil {
			result.Valid = append(result.Valid, row)
			continue
		}

		var failure *integration.ValidationFailure
		if !errors.As(err, &failure) {
			return BatchResult[T]{}, err
		}
		rejected := integration.RowIssue{Row: i, Issues: failure.Issues}
		if key != nil {
			rejected.Key = key(row)
		}
		result.Rejected = append(result.Rejected, rejected)
	}
	return result, nil
}
