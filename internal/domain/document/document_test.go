package document

import (
	"strings"
	"testing"
)

func TestNew_Valid(t *testing.T) {
	meta := map[string]string{MetaTitle: "AI Act", MetaState: "CA"}

	doc, err := New(42, "hello world", meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() != 42 {
		t.Errorf("ID() = %d", doc.ID())
	}
	if doc.Text() != "hello world" {
		t.Errorf("Text() = %q", doc.Text())
	}
	if doc.Title() != "AI Act" {
		t.Errorf("Title() = %q", doc.Title())
	}
	if doc.State() != "CA" {
		t.Errorf("State() = %q", doc.State())
	}
	if doc.Meta("missing") != "" {
		t.Errorf("Meta(missing) = %q", doc.Meta("missing"))
	}
}

func TestNew_RejectsBlankText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := New(1, text, nil); err == nil {
			t.Errorf("expected error for %q", text)
		}
	}
}

func TestNew_ClonesMetadata(t *testing.T) {
	meta := map[string]string{"k": "v"}
	doc, _ := New(1, "content", meta)

	meta["k"] = "changed"
	if doc.Meta("k") != "v" {
		t.Error("input map mutation leaked into document")
	}

	out := doc.Metadata()
	out["k"] = "changed"
	if doc.Meta("k") != "v" {
		t.Error("output map mutation leaked into document")
	}
}

func TestNew_NilMetadata(t *testing.T) {
	doc, err := New(1, "content", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Metadata() != nil {
		t.Errorf("Metadata() = %v, want nil", doc.Metadata())
	}
}

func TestCategories(t *testing.T) {
	doc, _ := New(1, "x", map[string]string{MetaCategory: " Privacy ; ;Employment"})
	got := doc.Categories()
	if len(got) != 2 || got[0] != "privacy" || got[1] != "employment" {
		t.Errorf("Categories() = %v", got)
	}

	empty, _ := New(2, "x", nil)
	if empty.Categories() != nil {
		t.Errorf("Categories() = %v, want nil", empty.Categories())
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "hello  world", 600, "hello world"},
		{"word boundary", "alpha beta gamma", 12, "alpha beta…"},
		{"no limit", "a b c", 0, "a b c"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Snippet(tc.in, tc.max); got != tc.want {
				t.Errorf("Snippet(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}

	long := Snippet(strings.Repeat("x", 700), 600)
	if len([]rune(long)) != 601 {
		t.Errorf("unbroken text: got %d runes, want 601", len([]rune(long)))
	}
}

func TestNormalizeState(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"ca", "CA"},
		{"California", "CA"},
		{" new york ", "NY"},
		{"Puerto Rico", "PUERTO RICO"},
		{"District of Columbia", "DC"},
	}
	for _, tc := range tests {
		if got := NormalizeState(tc.in); got != tc.want {
			t.Errorf("NormalizeState(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
