package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"snip-go/internal/engine"
	"snip-go/internal/macro"
	"snip-go/internal/snip"
	"snip-go/internal/suggest"
	"snip-go/internal/surface"
	"snip-go/internal/tree"
)

type paramsError struct{ err error }

func (e *paramsError) Error() string { return "invalid params: " + e.err.Error() }
func (e *paramsError) Unwrap() error { return e.err }

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return &paramsError{fmt.Errorf("missing params")}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &paramsError{err}
	}
	return nil
}

// SnippetInfo describes a snippet in results.
type SnippetInfo struct {
	Name    string `json:"name"`
	Preview string `json:"preview"`
	Rich    bool   `json:"rich,omitempty"`
}

func snippetInfo(sn *tree.Snippet) SnippetInfo {
	return SnippetInfo{Name: sn.Name(), Preview: sn.Body.PlainText(), Rich: sn.Body.IsRich()}
}

// Range is a placeholder occurrence in the returned text.
type Range struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// TriggerResult is the reply to "trigger".
type TriggerResult struct {
	Expanded     bool    `json:"expanded"`
	Snippet      string  `json:"snippet,omitempty"`
	Text         string  `json:"text"`
	Cursor       int     `json:"cursor"`
	Placeholders []Range `json:"placeholders,omitempty"`
}

func (s *Server) rpcExpand(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Name string `json:"name"`
		URL  string `json:"url"`
		Rich bool   `json:"rich"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if s.cfg.Blocklist.Blocked(p.URL) {
		return nil, fmt.Errorf("snippets are disabled on %s", p.URL)
	}
	sn := s.lib.Snippet(p.Name)
	if sn == nil {
		return nil, fmt.Errorf("snippet %q: %w", p.Name, tree.ErrNotFound)
	}
	text := s.expander.Expand(ctx, macro.Input{
		Text: sn.Body.Source(p.Rich),
		Name: sn.Name(),
		URL:  p.URL,
		Rich: p.Rich,
	})
	return map[string]string{"text": text}, nil
}

// editable is a surface the bridge can serialize back to the client.
type editable interface {
	snip.Surface
	Text() string
}

// rpcTrigger runs the hotkey expansion on a snapshot of the client's field.
// Cursor is the caret as a character offset; -1 means the end. Rich fields
// send and receive HTML.
func (s *Server) rpcTrigger(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Text   string `json:"text"`
		Cursor *int   `json:"cursor"`
		URL    string `json:"url"`
		Rich   bool   `json:"rich"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}

	var (
		surf   editable
		render func() string
	)
	if p.Rich {
		doc, err := surface.NewRichDocument(p.Text)
		if err != nil {
			return nil, &paramsError{err}
		}
		surf, render = doc, doc.HTML
	} else {
		f := surface.NewField(p.Text)
		surf, render = f, f.Text
	}
	if p.Cursor != nil && *p.Cursor >= 0 {
		if err := surf.SetSelection(*p.Cursor, *p.Cursor); err != nil {
			return nil, &paramsError{err}
		}
	}

	sess := engine.NewSession(s.ids.New(), surf, p.URL, s.lib, s.expander, s.cfg, s.clock, s.logger)
	action, err := sess.Expand(ctx)
	if err != nil {
		return nil, err
	}

	_, caret := surf.Selection()
	res := TriggerResult{Text: render(), Cursor: caret}
	if action != engine.Expanded {
		return res, nil
	}
	res.Expanded = true
	res.Snippet = sess.LastExpanded()
	for _, tok := range sess.Placeholders().Live() {
		if tok != nil {
			res.Placeholders = append(res.Placeholders, Range{Text: tok.Text, Start: tok.Start, End: tok.End})
		}
	}
	return res, nil
}

func (s *Server) rpcSuggest(raw json.RawMessage) (any, error) {
	var p struct {
		Query string `json:"query"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if !s.cfg.SuggestEnabled {
		return []SnippetInfo{}, nil
	}
	ranked := suggest.Rank(s.lib.Snippets(), p.Query, s.cfg.Suggest.Fuzzy)
	if limit := s.cfg.Suggest.MaxResults; limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]SnippetInfo, len(ranked))
	for i, c := range ranked {
		out[i] = snippetInfo(c.Snippet)
	}
	return out, nil
}

type searchHit struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Preview string `json:"preview,omitempty"`
}

func (s *Server) rpcSearch(raw json.RawMessage) (any, error) {
	var p struct {
		Query string `json:"query"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	nodes := s.lib.Search(p.Query)
	out := make([]searchHit, len(nodes))
	for i, n := range nodes {
		out[i] = searchHit{Kind: n.Kind().String(), Name: n.Name()}
		if sn, ok := n.(*tree.Snippet); ok {
			out[i].Preview = sn.Body.PlainText()
		}
	}
	return out, nil
}

func (s *Server) rpcList() (any, error) {
	snippets := s.lib.Snippets()
	out := make([]SnippetInfo, len(snippets))
	for i, sn := range snippets {
		out[i] = snippetInfo(sn)
	}
	return out, nil
}

// rpcAdd creates a snippet from a page selection and saves it in the
// background.
func (s *Server) rpcAdd(raw json.RawMessage) (any, error) {
	var p struct {
		Name   string `json:"name"`
		Body   string `json:"body"`
		Folder string `json:"folder"`
		Rich   bool   `json:"rich"`
	}
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	body := tree.PlainBody(p.Body)
	if p.Rich {
		body = tree.RichBody(p.Body, nil)
	}
	sn, err := s.lib.AddSnippet(p.Name, body, p.Folder)
	if err != nil {
		return nil, err
	}
	s.saver.Request()
	if s.onChange != nil {
		s.onChange()
	}
	info := snippetInfo(sn)
	s.Broadcast("snippetAdded", info)
	return info, nil
}
