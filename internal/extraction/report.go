package extraction

import (
	"encoding/json"
	"log/slog"

	"gopkg.in/yaml.v3"
)

// Report aggregates a batch of extraction results.
type Report struct {
	Entries          []Result           `json:"entries" yaml:"entries"`
	Total            int                `json:"total" yaml:"total"`
	Full             int                `json:"full" yaml:"full"`
	Partial          int                `json:"partial" yaml:"partial"`
	Empty            int                `json:"empty" yaml:"empty"` // partial entries with no valid field
	Failed           int                `json:"failed" yaml:"failed"`
	Succeeded        int                `json:"succeeded" yaml:"succeeded"`
	FieldSuccessRate map[string]float64 `json:"field_success_rate" yaml:"field_success_rate"`
	MeanScore        float64            `json:"mean_score" yaml:"mean_score"`
}

// JSON renders the report indented.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func (r *Report) YAML() ([]byte, error) {
	return yaml.Marshal(r)
}

// ReportBuilder accumulates results in order. Finalize computes the rates once.
type ReportBuilder struct {
	fields  []string
	entries []Result
	valid   map[string]int
	score   float64
	report  *Report
}

func NewReportBuilder(s *Schema) *ReportBuilder {
	b := &ReportBuilder{valid: make(map[string]int)}
	for _, f := range s.fields {
		b.fields = append(b.fields, f.Name)
	}
	return b
}

// Add appends a result. Results added after Finalize are ignored.
func (b *ReportBuilder) Add(r Result) {
	if b.report != nil {
		slog.Warn("result added to a finalized report")
		return
	}
	b.entries = append(b.entries, r)
	b.score += r.OverallScore
	for _, f := range b.fields {
		if r.FieldValidity[f] {
			b.valid[f]++
		}
	}
}

// Finalize builds the report. Later calls return the same report.
func (b *ReportBuilder) Finalize() *Report {
	if b.report != nil {
		return b.report
	}

	r := &Report{
		Entries:          b.entries,
		Total:            len(b.entries),
		FieldSuccessRate: make(map[string]float64, len(b.fields)),
	}
	if r.Entries == nil {
		r.Entries = []Result{}
	}
	for _, e := range b.entries {
		switch e.Status {
		case StatusFull:
			r.Full++
		case StatusFailed:
			r.Failed++
		default:
			r.Partial++
			if e.OverallScore == 0 {
				r.Empty++
			}
		}
	}
	r.Succeeded = r.Full + r.Partial
	for _, f := range b.fields {
		if r.Total > 0 {
			r.FieldSuccessRate[f] = float64(b.valid[f]) / float64(r.Total)
		} else {
			r.FieldSuccessRate[f] = 0
		}
	}
	if r.Total > 0 {
		r.MeanScore = b.score / float64(r.Total)
	}

	b.report = r
	return r
}
