package extraction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate_FullRecord(t *testing.T) {
	v := NewValidator(DefaultSchema())
	res := v.Validate(map[string]any{
		"name": "Ana", "email": "a@b.com", "phone": "555-1234567", "location": "NYC", "age": 34,
	})

	require.Equal(t, 1.0, res.OverallScore)
	require.Equal(t, StatusFull, res.Status)
	require.Empty(t, res.Warnings)
	require.Equal(t, RequiredFields, res.ExtractedFields)
}

func TestValidate_MostlyInvalidRecord(t *testing.T) {
	v := NewValidator(DefaultSchema())
	res := v.Validate(map[string]any{
		"name": "", "email": "not-an-email", "phone": "abc", "location": "NYC", "age": 200,
	})

	require.InDelta(t, 0.2, res.OverallScore, 1e-9)
	require.Equal(t, StatusPartial, res.Status)
	require.Equal(t, map[string]bool{
		"name": false, "email": false, "phone": false, "location": true, "age": false,
	}, res.FieldValidity)
	require.ElementsMatch(t, []string{
		"Email looks suspicious", "Age seems off", "Phone number length unusual",
	}, res.Warnings)
}

func TestValidate_MissingAndNull(t *testing.T) {
	v := NewValidator(DefaultSchema())
	res := v.Validate(map[string]any{"name": "Bo", "age": nil})

	require.True(t, res.FieldValidity["name"])
	require.False(t, res.FieldValidity["age"])
	require.False(t, res.FieldValidity["email"])
	require.InDelta(t, 0.2, res.OverallScore, 1e-9)
	require.Equal(t, []string{"name"}, res.ExtractedFields)
}

func TestValidate_AgeEncodings(t *testing.T) {
	v := NewValidator(DefaultSchema())
	cases := []struct {
		age   any
		valid bool
	}{
		{34, true},
		{float64(34), true},
		{34.5, false},
		{json.Number("34"), true},
		{"34", true},
		{" 41 ", true},
		{"thirty", false},
		{-1, false},
		{151, false},
		{true, false},
	}
	for _, tc := range cases {
		res := v.Validate(map[string]any{"age": tc.age})
		require.Equal(t, tc.valid, res.FieldValidity["age"], "age %#v", tc.age)
		if tc.valid {
			require.IsType(t, 0, res.Record["age"], "age %#v should normalize to int", tc.age)
		}
	}
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	v := NewValidator(DefaultSchema())
	in := map[string]any{"age": "34"}
	_ = v.Validate(in)
	require.Equal(t, "34", in["age"])
}

func TestFieldChecks(t *testing.T) {
	phone := DigitString{MinDigits: 7, MaxDigits: 15}
	require.True(t, phone.Check("+1 (555) 123-4567"))
	require.False(t, phone.Check("123"))
	require.False(t, phone.Check("1234567890123456"))
	require.False(t, phone.Check(5551234567))

	nonEmpty := StringPattern{}
	require.True(t, nonEmpty.Check("NYC"))
	require.False(t, nonEmpty.Check("   "))
	require.False(t, nonEmpty.Check(nil))
}
