package cmd

import "testing"

func TestParseBatch_Items(t *testing.T) {
	data := []byte(`
- id: a
  text: "I'm Ana, ana@example.com"
- text: "call me on +44 20 7946 0958"
- id: blank
  text: "   "
`)
	items := parseBatch(data)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
	}
	if items[0].ID != "a" {
		t.Errorf("expected id a, got %q", items[0].ID)
	}
	if items[1].ID != "2" {
		t.Errorf("expected generated id 2, got %q", items[1].ID)
	}
}

func TestParseBatch_JSONStrings(t *testing.T) {
	items := parseBatch([]byte(`["first chat", "second chat"]`))
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[1].Text != "second chat" || items[1].ID != "2" {
		t.Errorf("unexpected item %+v", items[1])
	}
}

func TestParseBatch_SeparatedText(t *testing.T) {
	data := []byte("User: Hi, I'm Bo. I live in Oslo.\nAssistant: Nice!\n---\nUser: my email is bo@example.org\n---\n")
	items := parseBatch(data)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
	}
	if items[0].Text != "User: Hi, I'm Bo. I live in Oslo.\nAssistant: Nice!" {
		t.Errorf("unexpected first text %q", items[0].Text)
	}
	if items[1].ID != "2" {
		t.Errorf("expected id 2, got %q", items[1].ID)
	}
}

func TestReportFormat(t *testing.T) {
	tests := []struct {
		flag, output, want string
		wantErr            bool
	}{
		{"", "", "json", false},
		{"", "out.yml", "yaml", false},
		{"", "out.YAML", "yaml", false},
		{"json", "out.yaml", "json", false},
		{"YAML", "", "yaml", false},
		{"xml", "", "", true},
	}
	for _, tt := range tests {
		got, err := reportFormat(tt.flag, tt.output)
		if (err != nil) != tt.wantErr {
			t.Errorf("reportFormat(%q, %q): unexpected err %v", tt.flag, tt.output, err)
			continue
		}
		if got != tt.want {
			t.Errorf("reportFormat(%q, %q): expected %q, got %q", tt.flag, tt.output, tt.want, got)
		}
	}
}

func TestRender(t *testing.T) {
	data, err := render(map[string]int{"a": 1}, "json")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\n  \"a\": 1\n}\n" {
		t.Errorf("unexpected json %q", data)
	}
	if _, err := render(nil, "toml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
