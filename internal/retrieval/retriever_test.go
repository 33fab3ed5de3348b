package retrieval

import (
	"context"
	"strings"
	"testing"
)

var testDocs = []Document{
	{Name: "searay.md", Domain: "Yachts", Content: "The Sea Ray 250 is a motor boat for day charters, 450 per hour."},
	{Name: "bavaria.md", Domain: "Yachts", Content: "The Bavaria 46 is a sailing yacht for overnight cruises."},
	{Name: "pos.md", Domain: "Terminals", Content: "The credit terminal supports contactless payment."},
}

func TestInferDomain(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"how much is a yacht for the weekend", "Yachts"},
		{"the credit terminal is broken", "Terminals"},
		{"כמה עולה יאכטה", "Yachts"},
		{"what time do you open", ""},
	}
	for _, c := range cases {
		if got := InferDomain(c.query); got != c.want {
			t.Errorf("InferDomain(%q) = %q, want %q", c.query, got, c.want)
		}
	}
}

func TestRetrieveRanksByOverlap(t *testing.T) {
	r := New(testDocs)

	docs := r.Retrieve("sailing yacht overnight", 2, "")
	if len(docs) == 0 {
		t.Fatal("expected at least one match")
	}
	if docs[0].Name != "bavaria.md" {
		t.Errorf("expected the sailing yacht first, got %s", docs[0].Name)
	}
}

func TestRetrieveDomainFilter(t *testing.T) {
	r := New(testDocs)

	docs := r.Retrieve("payment terminal boat", 3, "Terminals")
	for _, d := range docs {
		if d.Domain != "Terminals" {
			t.Errorf("domain filter leaked %s", d.Name)
		}
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r := New(testDocs)
	if docs := r.Retrieve("", 3, ""); docs != nil {
		t.Errorf("empty query must match nothing, got %d docs", len(docs))
	}
}

func TestContextForPromptJoins(t *testing.T) {
	r := New(testDocs)

	out, err := r.ContextForPrompt(context.Background(), "motor boat sea ray sailing yacht", 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "---") {
		t.Errorf("expected multiple documents joined with a separator: %q", out)
	}
}

func TestContextForPromptPinnedDomain(t *testing.T) {
	r := New(testDocs)

	out, err := r.ContextForPrompt(context.Background(), "contactless payment boat", 3, "Terminals")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "Sea Ray") {
		t.Errorf("pinned domain leaked another domain's document: %q", out)
	}
	if !strings.Contains(out, "contactless") {
		t.Errorf("expected the terminal document: %q", out)
	}
}

func TestContextForPromptNoMatch(t *testing.T) {
	r := New(testDocs)

	out, err := r.ContextForPrompt(context.Background(), "zzzz qqqq", 3, "")
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("expected empty context, got %q", out)
	}
}

func TestTokenizeStripsPunctuationAndShortTokens(t *testing.T) {
	tokens := tokenize("A boat, a yacht! I")
	if _, ok := tokens["boat"]; !ok {
		t.Error("expected boat token")
	}
	if _, ok := tokens["a"]; ok {
		t.Error("single-letter tokens must be dropped")
	}
}
