package extraction

import "strings"

// Status classifies an extraction outcome.
type Status string

const (
	StatusFull    Status = "full"    // every field valid
	StatusPartial Status = "partial" // completed with at least one invalid field
	StatusFailed  Status = "failed"  // no usable response
)

// Result is the validated outcome of one extraction.
type Result struct {
	Record          map[string]any  `json:"record" yaml:"record"`
	FieldValidity   map[string]bool `json:"field_validity" yaml:"field_validity"`
	OverallScore    float64         `json:"overall_score" yaml:"overall_score"`
	Status          Status          `json:"status" yaml:"status"`
	SourceText      string          `json:"source_text" yaml:"source_text"`
	ExtractedFields []string        `json:"extracted_fields,omitempty" yaml:"extracted_fields,omitempty"`
	Warnings        []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error           string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// Validator checks records against a Schema. It holds no mutable state.
type Validator struct {
	schema *Schema
}

func NewValidator(s *Schema) *Validator {
	return &Validator{schema: s}
}

// Validate checks every declared field of record. Missing and null fields are
// invalid; nothing here is an error.
func (v *Validator) Validate(record map[string]any) Result {
	fields := v.schema.fields
	res := Result{
		Record:        make(map[string]any, len(record)),
		FieldValidity: make(map[string]bool, len(fields)),
	}
	for k, val := range record {
		res.Record[k] = val
	}

	valid := 0
	for _, f := range fields {
		val, present := record[f.Name]
		ok := present && val != nil && f.Check.Check(val)
		res.FieldValidity[f.Name] = ok
		if ok {
			valid++
		}
		if _, isRange := f.Check.(NumericRange); isRange && present {
			res.Record[f.Name] = normalizeInteger(val, ok)
		}
		if present && !isBlank(val) {
			res.ExtractedFields = append(res.ExtractedFields, f.Name)
		}
	}

	if len(fields) > 0 {
		res.OverallScore = float64(valid) / float64(len(fields))
	}
	res.Status = StatusPartial
	if valid == len(fields) {
		res.Status = StatusFull
	}
	res.Warnings = v.qualityWarnings(record)
	if valid == 0 && len(fields) > 0 {
		res.Warnings = append(res.Warnings, "No valid fields extracted")
	}
	return res
}

// normalizeInteger stores valid integers as int and blank strings as nil.
func normalizeInteger(val any, ok bool) any {
	if ok {
		n, _ := asInteger(val)
		return int(n)
	}
	if s, isStr := val.(string); isStr && strings.TrimSpace(s) == "" {
		return nil
	}
	return val
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// qualityWarnings flags values that are present but look wrong.
func (v *Validator) qualityWarnings(record map[string]any) []string {
	var out []string

	if email, ok := record["email"].(string); ok && email != "" {
		if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
			out = append(out, "Email looks suspicious")
		}
	}

	if age, ok := record["age"]; ok && !isBlank(age) {
		r := NumericRange{Min: 0, Max: 150}
		if f, found := v.schema.Field("age"); found {
			if fr, isRange := f.Check.(NumericRange); isRange {
				r = fr
			}
		}
		if !r.Check(age) {
			out = append(out, "Age seems off")
		}
	}

	if phone, ok := record["phone"].(string); ok && phone != "" {
		lo, hi := 7, 15
		if f, found := v.schema.Field("phone"); found {
			if d, isDigits := f.Check.(DigitString); isDigits {
				lo, hi = d.MinDigits, d.MaxDigits
			}
		}
		if n := countDigits(phone); n < lo || (hi > 0 && n > hi) {
			out = append(out, "Phone number length unusual")
		}
	}
	return out
}
