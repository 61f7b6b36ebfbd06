package extraction

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestReportBuilder(t *testing.T) {
	v := NewValidator(DefaultSchema())
	b := NewReportBuilder(DefaultSchema())

	b.Add(v.Validate(map[string]any{"name": "Ana", "email": "a@b.com", "phone": "555-1234567", "location": "NYC", "age": 34}))
	b.Add(v.Validate(map[string]any{"name": "Bo", "location": "Oslo"}))
	b.Add(FailedResult("garbage", errors.New("malformed")))

	r := b.Finalize()
	require.Equal(t, 3, r.Total)
	require.Equal(t, 1, r.Full)
	require.Equal(t, 1, r.Partial)
	require.Equal(t, 1, r.Failed)
	require.Equal(t, 2, r.Succeeded)
	require.InDelta(t, 2.0/3.0, r.FieldSuccessRate["name"], 1e-9)
	require.InDelta(t, 1.0/3.0, r.FieldSuccessRate["email"], 1e-9)
	require.InDelta(t, (1.0+0.4)/3.0, r.MeanScore, 1e-9)

	b.Add(FailedResult("late", errors.New("x")))
	require.Same(t, r, b.Finalize())
	require.Equal(t, 3, r.Total)
}

func TestReportBuilder_CountsEmptyExtractions(t *testing.T) {
	v := NewValidator(DefaultSchema())
	b := NewReportBuilder(DefaultSchema())

	nothing := v.Validate(map[string]any{"name": "", "email": "", "phone": "", "location": "", "age": nil})
	require.Equal(t, StatusPartial, nothing.Status)
	require.Contains(t, nothing.Warnings, "No valid fields extracted")

	b.Add(nothing)
	b.Add(v.Validate(map[string]any{"name": "Bo", "location": "Oslo"}))

	r := b.Finalize()
	require.Equal(t, 2, r.Partial)
	require.Equal(t, 1, r.Empty)
	require.Equal(t, 2, r.Succeeded)
}

func TestReportBuilder_Empty(t *testing.T) {
	r := NewReportBuilder(DefaultSchema()).Finalize()
	require.Equal(t, 0, r.Total)
	require.Equal(t, 0.0, r.MeanScore)
	require.NotNil(t, r.Entries)
}

func TestReportSerialization(t *testing.T) {
	v := NewValidator(DefaultSchema())
	b := NewReportBuilder(DefaultSchema())
	b.Add(v.Validate(map[string]any{"name": "Ana", "age": "34"}))
	r := b.Finalize()

	data, err := r.JSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "field_success_rate")
	require.Contains(t, decoded, "mean_score")

	data, err = r.YAML()
	require.NoError(t, err)
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	require.Equal(t, 1, fromYAML["total"])
}
