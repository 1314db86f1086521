package capabilities

import (
	"sort"
	"strings"
)

// ContextItem is one candidate piece of context HybridAgent can include in
// a prompt.
type ContextItem struct {
	Type    string
	Content string
}

// ContextMixin selects and prunes ContextItems for a prompt budget: a
// token-overlap relevance score against the query, a minimum relevance
// cutoff, and pinning by type regardless of score.
type ContextMixin struct {
	MinRelevanceScore float64
	PreserveTypes     map[string]bool
	MaxTokens         int
}

// NewContextMixin constructs a ContextMixin with the given cutoff, pinned
// types and token budget.
func NewContextMixin(minRelevanceScore float64, preserveTypes []string, maxTokens int) *ContextMixin {
	preserve := make(map[string]bool, len(preserveTypes))
	for _, t := range preserveTypes {
		preserve[t] = true
	}
	return &ContextMixin{MinRelevanceScore: minRelevanceScore, PreserveTypes: preserve, MaxTokens: maxTokens}
}

// EstimateTokens approximates token count as len(s)/4, the corpus-wide
// heuristic for text without a tokenizer on hand.
func EstimateTokens(s string) int {
	return len(s) / 4
}

// Select scores every item's relevance to query, keeps pinned types and
// anything clearing MinRelevanceScore, and greedily fills MaxTokens in
// descending-relevance order (pinned items first).
func (c *ContextMixin) Select(query string, items []ContextItem) []ContextItem {
	type scored struct {
		item   ContextItem
		score  float64
		pinned bool
	}
	queryTerms := terms(query)
	scoredItems := make([]scored, 0, len(items))
	for _, it := range items {
		pinned := c.PreserveTypes[it.Type]
		score := relevance(queryTerms, terms(it.Content))
		if pinned || score >= c.MinRelevanceScore {
			scoredItems = append(scoredItems, scored{item: it, score: score, pinned: pinned})
		}
	}
	sort.SliceStable(scoredItems, func(i, j int) bool {
		if scoredItems[i].pinned != scoredItems[j].pinned {
			return scoredItems[i].pinned
		}
		return scoredItems[i].score > scoredItems[j].score
	})

	var out []ContextItem
	budget := c.MaxTokens
	for _, s := range scoredItems {
		cost := EstimateTokens(s.item.Content)
		if c.MaxTokens > 0 && cost > budget && !s.pinned {
			continue
		}
		out = append(out, s.item)
		budget -= cost
	}
	return out
}

// relevance is the fraction of query terms present in content terms: a
// simple bag-of-words overlap score, no embeddings or external search
// dependency involved.
func relevance(query, content []string) float64 {
	if len(query) == 0 {
		return 0
	}
	set := make(map[string]bool, len(content))
	for _, t := range content {
		set[t] = true
	}
	matches := 0
	for _, t := range query {
		if set[t] {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func terms(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	return fields
}
