package macro

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"snip-go/internal/tree"
)

var embedPattern = regexp.MustCompile(`\[\[%s\(([^)]*)\)\]\]`)

// embedded is a memoized embed result. names holds every snippet expanded
// to produce it.
type embedded struct {
	out   string
	names map[string]bool
}

// expandEmbeds replaces [[%s(name)]] with the named snippet's body,
// recursively. visited holds the chain of snippets currently being expanded,
// seeded with the owner; a reference back into the chain stays literal.
// Results are memoized for the duration of one call.
func (e *Expander) expandEmbeds(text, owner string, rich bool) string {
	if e.snippets == nil {
		return text
	}
	visited := map[string]bool{}
	if owner != "" {
		visited[tree.NameKey(owner)] = true
	}
	out, _, _ := e.embed(text, visited, map[string]embedded{}, rich)
	return out
}

// embed expands the references in text. It also returns the names it
// expanded and whether a reference was left literal because of the chain.
// Only results that did not depend on the chain are memoized, and a memo
// entry is reused only while none of its names are on the chain.
func (e *Expander) embed(text string, visited map[string]bool, memo map[string]embedded, rich bool) (string, map[string]bool, bool) {
	names := map[string]bool{}
	cut := false
	out := embedPattern.ReplaceAllStringFunc(text, func(token string) string {
		name := strings.TrimSpace(embedPattern.FindStringSubmatch(token)[1])
		if rich {
			name = html.UnescapeString(name)
		}
		key := tree.NameKey(name)
		if visited[key] {
			e.logger.Debug("embed skipped", "name", name, "reason", "cycle")
			cut = true
			return token
		}
		if m, ok := memo[key]; ok && disjoint(m.names, visited) {
			for n := range m.names {
				names[n] = true
			}
			return m.out
		}
		s := e.snippets.Snippet(name)
		if s == nil {
			e.logger.Debug("embed skipped", "name", name, "reason", "not found")
			return token
		}
		visited[key] = true
		sub, subNames, subCut := e.embed(s.Body.Source(rich), visited, memo, rich)
		delete(visited, key)
		subNames[key] = true
		for n := range subNames {
			names[n] = true
		}
		if subCut {
			cut = true
		} else {
			memo[key] = embedded{out: sub, names: subNames}
		}
		return sub
	})
	return out, names, cut
}

func disjoint(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return false
		}
	}
	return true
}
