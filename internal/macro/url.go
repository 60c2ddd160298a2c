package macro

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	urlCompositePattern = regexp.MustCompile(`\[\[%u\(([^)]*)\)\]\]`)
	urlPartPattern      = regexp.MustCompile(`\[\[%u\{([^}]*)\}\]\]`)
)

// page is a parsed page URL split into the parts the macros address.
type page struct {
	scheme   string
	www      bool
	host     string
	segments []string
	params   []string
	fragment string
}

func parsePage(raw string) (*page, error) {
	if raw == "" {
		return nil, errors.New("no page url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing page url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("page url %q is not absolute", raw)
	}
	p := &page{scheme: u.Scheme, host: u.Host, fragment: u.Fragment}
	if strings.HasPrefix(p.host, "www.") {
		p.www = true
		p.host = strings.TrimPrefix(p.host, "www.")
	}
	for _, s := range strings.Split(u.EscapedPath(), "/") {
		if s != "" {
			p.segments = append(p.segments, s)
		}
	}
	for _, q := range strings.Split(u.RawQuery, "&") {
		if q != "" {
			p.params = append(p.params, q)
		}
	}
	return p, nil
}

func (e *Expander) expandURLs(text, pageURL string, rich bool) string {
	if !strings.Contains(text, "[[%u") {
		return text
	}
	p, perr := parsePage(pageURL)
	expand := func(pattern *regexp.Regexp, eval func(*page, string) (string, error)) {
		text = pattern.ReplaceAllStringFunc(text, func(token string) string {
			if perr != nil {
				e.logger.Debug("url macro skipped", "error", perr)
				return token
			}
			arg := pattern.FindStringSubmatch(token)[1]
			out, err := eval(p, arg)
			if err != nil {
				e.logger.Debug("url macro skipped", "arg", arg, "error", err)
				return token
			}
			if rich {
				out = html.EscapeString(out)
			}
			return out
		})
	}
	expand(urlCompositePattern, composeURL)
	expand(urlPartPattern, urlPart)
	return text
}

// composeURL builds a URL string from the flags in query: p protocol,
// w "www.", h host, tN first N path segments, qN first N query parameters,
// f fragment. A missing N means all. Parts always appear in URL order.
func composeURL(p *page, query string) (string, error) {
	var proto, www, host, frag bool
	pathLimit, queryLimit := -1, -1
	for i := 0; i < len(query); i++ {
		switch c := query[i]; c {
		case 'p':
			proto = true
		case 'w':
			www = true
		case 'h':
			host = true
		case 'f':
			frag = true
		case 't', 'q':
			j := i + 1
			for j < len(query) && query[j] >= '0' && query[j] <= '9' {
				j++
			}
			n := 0
			if j > i+1 {
				n, _ = strconv.Atoi(query[i+1 : j])
			}
			if c == 't' {
				pathLimit = n
			} else {
				queryLimit = n
			}
			i = j - 1
		case ' ', ',':
		default:
			return "", fmt.Errorf("unknown url flag %q", c)
		}
	}

	var b strings.Builder
	if proto {
		b.WriteString(p.scheme + "://")
	}
	if www && p.www {
		b.WriteString("www.")
	}
	if host {
		b.WriteString(p.host)
	}
	if pathLimit >= 0 {
		if segs := limit(p.segments, pathLimit); len(segs) > 0 {
			b.WriteString("/" + strings.Join(segs, "/"))
		}
	}
	if queryLimit >= 0 {
		if params := limit(p.params, queryLimit); len(params) > 0 {
			b.WriteString("?" + strings.Join(params, "&"))
		}
	}
	if frag && p.fragment != "" {
		b.WriteString("#" + p.fragment)
	}
	return b.String(), nil
}

// limit returns the first n items, or all of them when n is 0.
func limit(items []string, n int) []string {
	if n > 0 && n < len(items) {
		return items[:n]
	}
	return items
}

// urlPart returns one part: p, w, h, f, N (1-based path segment) or qN
// (1-based query parameter as key=value). Parts the URL lacks are empty.
func urlPart(p *page, token string) (string, error) {
	token = strings.TrimSpace(token)
	switch token {
	case "p":
		return p.scheme, nil
	case "w":
		if p.www {
			return "www", nil
		}
		return "", nil
	case "h":
		return p.host, nil
	case "f":
		return p.fragment, nil
	}
	items, digits := p.segments, token
	if strings.HasPrefix(token, "q") {
		items, digits = p.params, token[1:]
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return "", fmt.Errorf("unknown url part %q", token)
	}
	if n > len(items) {
		return "", nil
	}
	return items[n-1], nil
}
