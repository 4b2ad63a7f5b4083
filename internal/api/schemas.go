package api

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://orange.local/schemas/orange.json"

// Request schema names, as defined under $defs.
const (
	SchemaPlanRequest           = "PlanRequest"
	SchemaPlanSimulationRequest = "PlanSimulationRequest"
	SchemaVerifyRequest         = "VerifyRequest"
	SchemaTelemetryEvent        = "TelemetryEvent"
)

//go:embed schemas/orange.json
var schemaDocument []byte

// SchemaSet holds the compiled request schemas.
type SchemaSet struct {
	schemas map[string]*jsonschema.Schema
}

// ValidationFailure lists every violated constraint of one document.
type ValidationFailure struct {
	Problems []string
}

func (v *ValidationFailure) Error() string {
	return fmt.Sprintf("request failed validation: %d problem(s)", len(v.Problems))
}

func NewSchemaSet() (*SchemaSet, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaDocument)); err != nil {
		return nil, fmt.Errorf("failed to load schema document: %w", err)
	}

	set := &SchemaSet{schemas: make(map[string]*jsonschema.Schema)}
	for _, name := range []string{
		SchemaPlanRequest,
		SchemaPlanSimulationRequest,
		SchemaVerifyRequest,
		SchemaTelemetryEvent,
	} {
		schema, err := c.Compile(schemaURL + "#/$defs/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		set.schemas[name] = schema
	}
	return set, nil
}

// Validate checks a raw JSON document against the named schema. Malformed JSON
// is returned as a plain error; constraint violations as *ValidationFailure.
func (s *SchemaSet) Validate(name string, raw []byte) error {
	schema, ok := s.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema: %s", name)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if dec.More() {
		return errors.New("malformed JSON: trailing data after document")
	}

	err := schema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return &ValidationFailure{Problems: flattenProblems(verr)}
}

// flattenProblems collects the leaf causes as "<instance location>: <message>".
func flattenProblems(root *jsonschema.ValidationError) []string {
	seen := make(map[string]bool)
	var problems []string

	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, cause := range e.Causes {
				walk(cause)
			}
			return
		}

		location := e.InstanceLocation
		if location == "" {
			location = "/"
		}
		problem := fmt.Sprintf("%s: %s", location, e.Message)
		if !seen[problem] {
			seen[problem] = true
			problems = append(problems, problem)
		}
	}
	walk(root)

	sort.Strings(problems)
	return problems
}
