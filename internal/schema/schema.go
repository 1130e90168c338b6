// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

// Package schema validates request bodies and seed files against JSON
// Schemas reflected from the Go types that decode them.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

var printer = message.NewPrinter(language.English)

// Validator checks documents against one compiled schema.
type Validator struct {
	name     string
	raw      []byte
	compiled *jschema.Schema
}

// Generate reflects the JSON Schema of v. Fields are required only when
// tagged `jsonschema:"required"` and unknown properties are rejected.
func Generate(v any, title string) ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	s := r.Reflect(v)
	s.Title = title

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").With("schema", title).Wrap(err)
	}
	return data, nil
}

// New compiles the schema reflected from v. Format keywords such as
// "email" are asserted, not just annotated.
func New(v any, name string) (*Validator, error) {
	raw, err := Generate(v, name)
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
	}

	url := name + ".schema.json"
	c := jschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
	}
	return &Validator{name: name, raw: raw, compiled: compiled}, nil
}

// MustNew is New for package-level validators of fixed types.
func MustNew(v any, name string) *Validator {
	val, err := New(v, name)
	if err != nil {
		panic(err)
	}
	return val
}

// Raw returns the schema document.
func (v *Validator) Raw() []byte { return v.raw }

// ValidateJSON validates a JSON document.
func (v *Validator) ValidateJSON(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return oops.Code("REQUEST_INVALID").With("schema", v.name).Errorf("document is empty")
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return oops.Code("REQUEST_INVALID").With("schema", v.name).Wrapf(err, "invalid JSON")
	}
	return v.validate(doc)
}

// ValidateYAML validates a YAML document.
func (v *Validator) ValidateYAML(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return oops.Code("REQUEST_INVALID").With("schema", v.name).Errorf("document is empty")
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("REQUEST_INVALID").With("schema", v.name).Wrapf(err, "invalid YAML")
	}
	return v.validate(toJSONTypes(doc))
}

func (v *Validator) validate(doc any) error {
	err := v.compiled.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jschema.ValidationError
	if errors.As(err, &verr) {
		return oops.Code("REQUEST_INVALID").
			With("schema", v.name).
			With("violations", Violations(verr)).
			Errorf("%s", Describe(verr))
	}
	return oops.Code("REQUEST_INVALID").With("schema", v.name).Wrap(err)
}

// Violation is one failing keyword. Field is a JSON pointer into the
// document, "/" for the document itself.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string { return v.Field + ": " + v.Message }

// Violations flattens a validation error into its failing leaf keywords.
func Violations(verr *jschema.ValidationError) []Violation {
	var out []Violation
	var walk func(e *jschema.ValidationError)
	walk = func(e *jschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, Violation{
				Field:   "/" + strings.Join(e.InstanceLocation, "/"),
				Message: e.ErrorKind.LocalizedString(printer),
			})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return out
}

// ViolationsOf returns the violations carried by an error from Validate*.
func ViolationsOf(err error) []Violation {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	vs, _ := oopsErr.Context()["violations"].([]Violation)
	return vs
}

// Describe is the first violation, used as the human-readable message.
func Describe(verr *jschema.ValidationError) string {
	if vs := Violations(verr); len(vs) > 0 {
		return vs[0].String()
	}
	return "document does not match schema"
}

// toJSONTypes turns yaml.v3 output into values the validator accepts.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONTypes(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONTypes(item)
		}
		return out
	case string, int, int64, float64, bool, nil:
		return val
	default:
		if b, err := json.Marshal(val); err == nil {
			var out any
			if err := json.Unmarshal(b, &out); err == nil {
				return out
			}
		}
		return val
	}
}
