// Package classifier assigns categories and tags with a deterministic keyword heuristic.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// ErrNoCategory means neither keywords, the source nor the store offered a category.
var ErrNoCategory = errors.New("no category available")

// FallbackCategoryKey is preferred when nothing else matches.
const FallbackCategoryKey = "general"

const (
	maxTags       = 5
	minTagRunes   = 4
	textSeparator = " "
)

// Rule maps a category key to the keywords that select it.
type Rule struct {
	Key      string
	Keywords []string
}

// DefaultRules is evaluated in order; the first rule with a matching keyword wins.
var DefaultRules = []Rule{
	{Key: "politics", Keywords: []string{"politics", "government", "election", "president", "congress", "senate", "democrat", "republican"}},
	{Key: "sports", Keywords: []string{"sports", "football", "basketball", "baseball", "soccer", "tennis", "olympics", "game", "match"}},
	{Key: "tech", Keywords: []string{"technology", "tech", "software", "hardware", "ai", "artificial intelligence", "computer", "internet"}},
	{Key: "health", Keywords: []string{"health", "medical", "doctor", "hospital", "medicine", "disease", "treatment", "patient"}},
	{Key: "world", Keywords: []string{"world", "international", "global", "united nations", "foreign", "overseas"}},
	{Key: "business", Keywords: []string{"business", "economy", "market", "stock", "finance", "money", "company", "corporation"}},
	{Key: "entertainment", Keywords: []string{"entertainment", "movie", "film", "music", "celebrity", "hollywood", "tv", "television"}},
	{Key: "science", Keywords: []string{"science", "research", "study", "discovery", "scientist", "experiment", "innovation"}},
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "from": {}, "into": {}, "their": {},
	"there": {}, "they": {}, "them": {}, "what": {}, "when": {}, "which": {}, "while": {},
	"about": {}, "after": {}, "before": {}, "also": {}, "than": {}, "then": {}, "just": {},
	"more": {}, "most": {}, "over": {}, "said": {}, "says": {}, "some": {}, "such": {},
	"very": {}, "where": {}, "your": {}, "being": {}, "here": {}, "like": {},
}

// Classifier resolves categories against the category store.
type Classifier struct {
	categories ports.CategoryLookup
	rules      []Rule
}

var _ ports.Classifier = (*Classifier)(nil)

// New builds a classifier; nil rules select DefaultRules.
func New(categories ports.CategoryLookup, rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{categories: categories, rules: rules}
}

// ResolveCategory returns the first keyword-matched category present in the store,
// else the first allowed category, else "general" or any stored category.
func (c *Classifier) ResolveCategory(ctx context.Context, title, summary string, allowed []domain.Category) (domain.Category, error) {
	text := strings.ToLower(title + textSeparator + summary)

	for _, rule := range c.rules {
		if !matchesAny(text, rule.Keywords) {
			continue
		}
		category, err := c.categories.FindCategoryByKey(ctx, rule.Key)
		if err != nil {
			return domain.Category{}, fmt.Errorf("lookup category %s: %w", rule.Key, err)
		}
		if category != nil {
			return *category, nil
		}
	}

	if len(allowed) > 0 {
		return allowed[0], nil
	}

	general, err := c.categories.FindCategoryByKey(ctx, FallbackCategoryKey)
	if err != nil {
		return domain.Category{}, fmt.Errorf("lookup category %s: %w", FallbackCategoryKey, err)
	}
	if general != nil {
		return *general, nil
	}

	all, err := c.categories.ListCategories(ctx)
	if err != nil {
		return domain.Category{}, fmt.Errorf("list categories: %w", err)
	}
	if len(all) == 0 {
		return domain.Category{}, ErrNoCategory
	}
	return all[0], nil
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ExtractTags returns the five most frequent non-stop words of at least four characters,
// ties broken by first appearance.
func (c *Classifier) ExtractTags(title, summary, body string) []string {
	return ExtractTags(title, summary, body)
}

// ExtractTags is the stateless form of Classifier.ExtractTags.
func ExtractTags(title, summary, body string) []string {
	text := strings.ToLower(strings.Join([]string{title, summary, body}, textSeparator))

	type tally struct {
		word  string
		count int
		first int
	}
	counts := map[string]*tally{}
	order := 0

	for _, word := range words(text) {
		if len([]rune(word)) < minTagRunes {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if t, ok := counts[word]; ok {
			t.count++
			continue
		}
		counts[word] = &tally{word: word, count: 1, first: order}
		order++
	}

	ranked := make([]*tally, 0, len(counts))
	for _, t := range counts {
		ranked = append(ranked, t)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].first < ranked[j].first
	})

	if len(ranked) > maxTags {
		ranked = ranked[:maxTags]
	}
	tags := make([]string, 0, len(ranked))
	for _, t := range ranked {
		tags = append(tags, t.word)
	}
	return tags
}

// words splits text into runs of letters and digits.
func words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
