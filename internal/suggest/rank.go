package suggest

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"snip-go/internal/tree"
)

// Match tiers, best first.
const (
	TierExact = iota
	TierPrefix
	TierSubstring
	TierNone
)

// Candidate is a ranked snippet.
type Candidate struct {
	Snippet *tree.Snippet
	Tier    int
}

// Name returns the snippet name.
func (c Candidate) Name() string { return c.Snippet.Name() }

// Rank filters snippets whose name contains query case-insensitively and
// orders them exact, prefix, substring; ties keep the input order. With
// fuzzyTier, names that only match as a subsequence follow in fuzzy score
// order. An empty query ranks every snippet as a prefix match.
func Rank(snippets []*tree.Snippet, query string, fuzzyTier bool) []Candidate {
	q := tree.NameKey(query)
	var out []Candidate
	var rest []*tree.Snippet
	for _, s := range snippets {
		key := tree.NameKey(s.Name())
		switch {
		case key == q && q != "":
			out = append(out, Candidate{s, TierExact})
		case strings.HasPrefix(key, q):
			out = append(out, Candidate{s, TierPrefix})
		case strings.Contains(key, q):
			out = append(out, Candidate{s, TierSubstring})
		default:
			rest = append(rest, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })

	if fuzzyTier && q != "" && len(rest) > 0 {
		names := make([]string, len(rest))
		for i, s := range rest {
			names[i] = tree.NameKey(s.Name())
		}
		for _, m := range fuzzy.Find(q, names) {
			out = append(out, Candidate{rest[m.Index], TierNone})
		}
	}
	return out
}
