// Package retrieval serves knowledge-base context for prompts. Documents are
// small text/markdown snippets tagged with a business domain; lookup is a
// token-overlap score with optional domain filtering, which is plenty for a
// knowledge base of a few hundred snippets.
package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/bowerhall/mira/internal/logger"
)

type Document struct {
	Name    string
	Domain  string
	Content string
}

var domainKeywords = map[string][]string{
	"Yachts":    {"yacht", "sailing", "cruise", "boat", "יאכטה", "שייט", "הפלגה"},
	"Terminals": {"terminal", "credit", "pos", "מסוף", "מסופון", "קופה", "אשראי"},
}

// InferDomain routes a query to a business domain by keyword, or "" when the
// query matches none and the whole base should be searched.
func InferDomain(query string) string {
	lower := strings.ToLower(query)
	for domain, keywords := range domainKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return domain
			}
		}
	}
	return ""
}

type Retriever struct {
	docs []Document
}

func New(docs []Document) *Retriever {
	return &Retriever{docs: docs}
}

type scored struct {
	doc   Document
	score float64
}

// Retrieve returns up to k documents ranked by token overlap with the query,
// restricted to domain when one is given.
func (r *Retriever) Retrieve(query string, k int, domain string) []Document {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	var candidates []scored
	for _, doc := range r.docs {
		if domain != "" && doc.Domain != "" && doc.Domain != domain {
			continue
		}
		s := overlap(queryTokens, tokenize(doc.Content))
		if s > 0 {
			candidates = append(candidates, scored{doc: doc, score: s})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	result := make([]Document, len(candidates))
	for i, c := range candidates {
		result[i] = c.doc
	}
	return result
}

// InferDomain is the method form for callers holding a Retriever value.
func (r *Retriever) InferDomain(query string) string { return InferDomain(query) }

// ContextForPrompt joins the best-matching documents into one prompt block,
// restricted to domain when one is given.
func (r *Retriever) ContextForPrompt(ctx context.Context, query string, k int, domain string) (string, error) {
	docs := r.Retrieve(query, k, domain)
	if len(docs) == 0 {
		logger.Debug("no knowledge documents matched", "query", query, "domain", domain)
		return "", nil
	}

	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = doc.Content
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		token := strings.Trim(field, ".,!?;:\"'()[]{}")
		if len(token) < 2 {
			continue
		}
		tokens[token] = struct{}{}
	}
	return tokens
}

func overlap(query, doc map[string]struct{}) float64 {
	matched := 0
	for token := range query {
		if _, ok := doc[token]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}
