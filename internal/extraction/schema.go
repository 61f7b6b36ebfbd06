// Package extraction turns free-text chat into contact records and scores
// how much of each record survived validation.
package extraction

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/crystaldolphin/chatkeeper/internal/schema"
)

//go:embed default_schema.yaml
var defaultSchemaYAML []byte

// ErrInvalidSchema is returned for a declaration that cannot back a pipeline.
var ErrInvalidSchema = errors.New("invalid extraction schema")

// RequiredFields lists the record fields in declaration order.
var RequiredFields = []string{"name", "email", "phone", "location", "age"}

var fieldTypes = map[string]string{
	"name":     "string",
	"email":    "string",
	"phone":    "string",
	"location": "string",
	"age":      "integer",
}

// FieldCheck decides whether a decoded JSON value satisfies a field.
type FieldCheck interface {
	Check(v any) bool
}

// Field is one declared record field.
type Field struct {
	Name        string
	Type        string
	Description string
	Check       FieldCheck
}

// Schema is the immutable set of fields a record is validated against.
type Schema struct {
	fields []Field
	byName map[string]*Field
}

type fieldDecl struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Pattern     string   `yaml:"pattern"`
	MinDigits   *int     `yaml:"minDigits"`
	MaxDigits   *int     `yaml:"maxDigits"`
	Minimum     *float64 `yaml:"minimum"`
	Maximum     *float64 `yaml:"maximum"`
}

type schemaDecl struct {
	Fields []fieldDecl `yaml:"fields"`
}

// DefaultSchema returns the built-in contact schema.
func DefaultSchema() *Schema {
	s, err := ParseSchema(defaultSchemaYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded schema: %v", err))
	}
	return s
}

// LoadSchema reads a YAML declaration from path, or returns the built-in
// schema when path is empty.
func LoadSchema(path string) (*Schema, error) {
	if path == "" {
		return ParseSchema(defaultSchemaYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	return ParseSchema(data)
}

// ParseSchema builds a Schema from a YAML declaration. Every error wraps
// ErrInvalidSchema.
func ParseSchema(data []byte) (*Schema, error) {
	var decl schemaDecl
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	s := &Schema{byName: make(map[string]*Field, len(decl.Fields))}
	for _, fd := range decl.Fields {
		want, known := fieldTypes[fd.Name]
		if !known {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidSchema, fd.Name)
		}
		if _, dup := s.byName[fd.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, fd.Name)
		}
		if fd.Type != want {
			return nil, fmt.Errorf("%w: field %q must be %s, got %q", ErrInvalidSchema, fd.Name, want, fd.Type)
		}
		check, err := buildCheck(fd)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidSchema, fd.Name, err)
		}
		s.fields = append(s.fields, Field{Name: fd.Name, Type: fd.Type, Description: fd.Description, Check: check})
		s.byName[fd.Name] = &s.fields[len(s.fields)-1]
	}

	for _, name := range RequiredFields {
		if _, ok := s.byName[name]; !ok {
			return nil, fmt.Errorf("%w: missing field %q", ErrInvalidSchema, name)
		}
	}
	// byName points into fields; rebuild after the last append.
	for i := range s.fields {
		s.byName[s.fields[i].Name] = &s.fields[i]
	}
	return s, nil
}

func buildCheck(fd fieldDecl) (FieldCheck, error) {
	var re *regexp.Regexp
	if fd.Pattern != "" {
		var err error
		if re, err = regexp.Compile(fd.Pattern); err != nil {
			return nil, fmt.Errorf("pattern: %w", err)
		}
	}

	switch fd.Type {
	case "integer":
		if fd.Pattern != "" || fd.MinDigits != nil || fd.MaxDigits != nil {
			return nil, errors.New("integer fields take minimum/maximum only")
		}
		r := NumericRange{Min: 0, Max: 150}
		if fd.Minimum != nil {
			r.Min = int64(*fd.Minimum)
		}
		if fd.Maximum != nil {
			r.Max = int64(*fd.Maximum)
		}
		if r.Min > r.Max {
			return nil, fmt.Errorf("minimum %d above maximum %d", r.Min, r.Max)
		}
		return r, nil

	case "string":
		if fd.Minimum != nil || fd.Maximum != nil {
			return nil, errors.New("string fields take no minimum/maximum")
		}
		if fd.MinDigits == nil && fd.MaxDigits == nil {
			return StringPattern{Pattern: re}, nil
		}
		d := DigitString{Pattern: re}
		if fd.MinDigits != nil {
			d.MinDigits = *fd.MinDigits
		}
		if fd.MaxDigits != nil {
			d.MaxDigits = *fd.MaxDigits
		}
		if d.MinDigits < 0 || (d.MaxDigits > 0 && d.MinDigits > d.MaxDigits) {
			return nil, fmt.Errorf("digit bounds %d..%d", d.MinDigits, d.MaxDigits)
		}
		return d, nil
	}
	return nil, fmt.Errorf("unsupported type %q", fd.Type)
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Field looks a field up by name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return *f, true
}

// Declaration describes every field with its constraints, e.g.
//
//	"age": {"type": "integer", "description": "...", "minimum": 0, "maximum": 150}
func (s *Schema) Declaration() map[string]map[string]any {
	out := make(map[string]map[string]any, len(s.fields))
	for _, f := range s.fields {
		d := map[string]any{"type": f.Type, "description": f.Description}
		switch c := f.Check.(type) {
		case StringPattern:
			if c.Pattern != nil {
				d["pattern"] = c.Pattern.String()
			}
		case DigitString:
			if c.Pattern != nil {
				d["pattern"] = c.Pattern.String()
			}
			d["minDigits"] = c.MinDigits
			d["maxDigits"] = c.MaxDigits
		case NumericRange:
			d["minimum"] = c.Min
			d["maximum"] = c.Max
		}
		out[f.Name] = d
	}
	return out
}

// JSONSchema renders the record shape as a JSON Schema object for the
// structured generator.
func (s *Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.fields))
	required := make([]any, 0, len(s.fields))
	for _, f := range s.fields {
		p := map[string]any{"type": f.Type}
		if f.Description != "" {
			p["description"] = f.Description
		}
		if r, ok := f.Check.(NumericRange); ok {
			p["minimum"] = r.Min
			p["maximum"] = r.Max
		}
		props[f.Name] = p
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Function wraps JSONSchema as the function the generator is asked to call.
func (s *Schema) Function() schema.FunctionSpec {
	return schema.FunctionSpec{
		Name:        "record_contact",
		Description: "Record the user details mentioned in the conversation.",
		Parameters:  s.JSONSchema(),
	}
}
