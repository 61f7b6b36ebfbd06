package extraction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultSchema(t *testing.T) {
	s := DefaultSchema()

	names := make([]string, 0, 5)
	for _, f := range s.Fields() {
		names = append(names, f.Name)
	}
	require.Equal(t, RequiredFields, names)

	decl := s.Declaration()
	require.Equal(t, "integer", decl["age"]["type"])
	require.Equal(t, int64(0), decl["age"]["minimum"])
	require.Equal(t, int64(150), decl["age"]["maximum"])
	require.Equal(t, 7, decl["phone"]["minDigits"])
	require.Equal(t, 15, decl["phone"]["maxDigits"])
	require.Contains(t, decl["email"], "pattern")
	require.NotContains(t, decl["name"], "pattern")

	js := s.JSONSchema()
	require.Equal(t, "object", js["type"])
	require.Len(t, js["properties"], 5)
	require.Equal(t, "record_contact", s.Function().Name)
}

func TestLoadSchema_EmptyPathUsesDefault(t *testing.T) {
	s, err := LoadSchema("")
	require.NoError(t, err)
	require.Len(t, s.Fields(), 5)
}

func TestLoadSchema_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fields:
  - {name: name, type: string}
  - {name: email, type: string, pattern: '@'}
  - {name: phone, type: string, minDigits: 3, maxDigits: 4}
  - {name: location, type: string}
  - {name: age, type: integer, minimum: 18, maximum: 65}
`), 0o644))

	s, err := LoadSchema(path)
	require.NoError(t, err)

	age, ok := s.Field("age")
	require.True(t, ok)
	require.True(t, age.Check.Check(30))
	require.False(t, age.Check.Check(70))

	phone, _ := s.Field("phone")
	require.True(t, phone.Check.Check("1-2-3"))
	require.False(t, phone.Check.Check("12345"))
}

func TestParseSchema_Invalid(t *testing.T) {
	cases := map[string]string{
		"not yaml":       "fields: [",
		"missing field":  "fields:\n  - {name: name, type: string}\n",
		"unknown field":  validFields + "  - {name: shoe_size, type: integer}\n",
		"duplicate":      validFields + "  - {name: name, type: string}\n",
		"wrong type":     "fields:\n  - {name: age, type: string}\n",
		"bad pattern":    "fields:\n  - {name: email, type: string, pattern: '('}\n",
		"inverted range": "fields:\n  - {name: age, type: integer, minimum: 10, maximum: 5}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSchema([]byte(doc))
			require.ErrorIs(t, err, ErrInvalidSchema)
		})
	}
}

func TestLoadSchema_MissingFile(t *testing.T) {
	_, err := LoadSchema(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

const validFields = `fields:
  - {name: name, type: string}
  - {name: email, type: string}
  - {name: phone, type: string}
  - {name: location, type: string}
  - {name: age, type: integer}
`
