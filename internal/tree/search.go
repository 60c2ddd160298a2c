package tree

import (
	"regexp"
	"sort"
)

// Relevance tiers for search results, best first.
const (
	tierExactName = iota
	tierWordInName
	tierSubstring
)

type hit struct {
	node Node
	tier int
}

// Search collects every node whose name or tag-stripped body contains text,
// case-insensitively, and returns them in a synthetic folder flagged as a
// search result. Results are ordered exact name match, then whole-word name
// match, then any other match; document order breaks ties.
func (t *Tree) Search(text string) *Folder {
	result := &Folder{header: header{name: RootName}, searchResult: true}
	if text == "" {
		return result
	}

	quoted := regexp.QuoteMeta(text)
	anywhere := regexp.MustCompile("(?i)" + quoted)
	word := regexp.MustCompile(`(?i)(^|\W)` + quoted + `($|\W)`)
	key := NameKey(text)

	var hits []hit
	t.Walk(func(n Node, _ []int) bool {
		name := n.Name()
		switch {
		case NameKey(name) == key:
			hits = append(hits, hit{n, tierExactName})
		case word.MatchString(name):
			hits = append(hits, hit{n, tierWordInName})
		case anywhere.MatchString(name):
			hits = append(hits, hit{n, tierSubstring})
		default:
			if s, ok := n.(*Snippet); ok && anywhere.MatchString(s.Body.PlainText()) {
				hits = append(hits, hit{n, tierSubstring})
			}
		}
		return true
	})

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].tier < hits[j].tier })
	result.children = make([]Node, len(hits))
	for i, h := range hits {
		result.children[i] = h.node
	}
	return result
}
