package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Format identifies one of the two serialized forms of a tree.
type Format string

const (
	// FormatArray is the compact positional form:
	// [name, timestamp, child, child, ...] where folders are arrays and
	// snippets are {name, body, timestamp} objects.
	FormatArray Format = "array"

	// FormatObject is the canonical storage form:
	// {type, name, timestamp, list|body}.
	FormatObject Format = "json"
)

// ParseFormat accepts the config/CLI spellings of a format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "array", "legacy":
		return FormatArray, nil
	case "json", "object":
		return FormatObject, nil
	default:
		return "", fmt.Errorf("unknown format: %q", s)
	}
}

// Encode serializes f in the requested format.
func Encode(f *Folder, format Format) ([]byte, error) {
	switch format {
	case FormatArray:
		return EncodeArray(f)
	case FormatObject:
		return EncodeObject(f)
	default:
		return nil, fmt.Errorf("unknown format: %q", format)
	}
}

// Decode detects the format from the first significant byte and decodes.
func Decode(data []byte) (*Folder, Format, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, "", errors.New("decode: empty input")
	}
	switch trimmed[0] {
	case '[':
		f, err := DecodeArray(trimmed)
		return f, FormatArray, err
	case '{':
		f, err := DecodeObject(trimmed)
		return f, FormatObject, err
	default:
		return nil, "", fmt.Errorf("decode: unrecognized input starting with %q", trimmed[0])
	}
}

// arraySnippet is the object used for snippets inside the positional form.
type arraySnippet struct {
	Name      string `json:"name"`
	Body      Body   `json:"body"`
	Timestamp int64  `json:"timestamp"`
}

// EncodeArray serializes f in the positional array form.
func EncodeArray(f *Folder) ([]byte, error) {
	return marshal(toArray(f))
}

func toArray(f *Folder) []any {
	out := make([]any, 0, len(f.children)+2)
	out = append(out, f.name, f.timestamp)
	for _, c := range f.children {
		switch n := c.(type) {
		case *Folder:
			out = append(out, toArray(n))
		case *Snippet:
			out = append(out, arraySnippet{Name: n.name, Body: n.Body, Timestamp: n.timestamp})
		}
	}
	return out
}

// DecodeArray parses the positional array form.
func DecodeArray(data []byte) (*Folder, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding folder array: %w", err)
	}
	return fromArray(raw)
}

func fromArray(raw []json.RawMessage) (*Folder, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("folder array needs name and timestamp, got %d elements", len(raw))
	}
	var name string
	if err := json.Unmarshal(raw[0], &name); err != nil {
		return nil, fmt.Errorf("decoding folder name: %w", err)
	}
	ts, err := decodeTimestamp(raw[1])
	if err != nil {
		return nil, fmt.Errorf("folder %q: %w", name, err)
	}

	f := NewFolder(name, ts)
	for i, item := range raw[2:] {
		item = bytes.TrimSpace(item)
		if len(item) == 0 {
			continue
		}
		switch item[0] {
		case '[':
			var sub []json.RawMessage
			if err := json.Unmarshal(item, &sub); err != nil {
				return nil, fmt.Errorf("folder %q child %d: %w", name, i, err)
			}
			child, err := fromArray(sub)
			if err != nil {
				return nil, err
			}
			f.children = append(f.children, child)
		case '{':
			var s struct {
				Name      string          `json:"name"`
				Body      Body            `json:"body"`
				Timestamp json.RawMessage `json:"timestamp"`
			}
			if err := json.Unmarshal(item, &s); err != nil {
				return nil, fmt.Errorf("folder %q child %d: %w", name, i, err)
			}
			ts, err := decodeTimestamp(s.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("snippet %q: %w", s.Name, err)
			}
			f.children = append(f.children, NewSnippet(s.Name, s.Body, ts))
		default:
			return nil, fmt.Errorf("folder %q child %d: expected array or object", name, i)
		}
	}
	return f, nil
}

// marshal encodes v without HTML escaping so markup in rich bodies stays
// readable and matches data written by the browser.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// decodeTimestamp accepts integers, floats (truncated) and absent values.
func decodeTimestamp(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, fmt.Errorf("decoding timestamp: %w", err)
	}
	if i, err := num.Int64(); err == nil {
		return i, nil
	}
	fl, err := num.Float64()
	if err != nil || math.IsNaN(fl) || math.IsInf(fl, 0) {
		return 0, fmt.Errorf("invalid timestamp %s", raw)
	}
	return int64(fl), nil
}

type folderObject struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
	List      []any  `json:"list"`
}

type snippetObject struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
	Body      Body   `json:"body"`
}

// EncodeObject serializes f in the canonical object form.
func EncodeObject(f *Folder) ([]byte, error) {
	return marshal(toObject(f))
}

func toObject(n Node) any {
	switch v := n.(type) {
	case *Folder:
		list := make([]any, 0, len(v.children))
		for _, c := range v.children {
			list = append(list, toObject(c))
		}
		return folderObject{Type: KindFolder.String(), Name: v.name, Timestamp: v.timestamp, List: list}
	case *Snippet:
		return snippetObject{Type: KindSnippet.String(), Name: v.name, Timestamp: v.timestamp, Body: v.Body}
	default:
		return nil
	}
}

type rawObject struct {
	Type      string            `json:"type"`
	Name      string            `json:"name"`
	Timestamp json.RawMessage   `json:"timestamp"`
	List      []json.RawMessage `json:"list"`
	Body      Body              `json:"body"`
}

// DecodeObject parses the canonical object form. The top level must be a
// folder.
func DecodeObject(data []byte) (*Folder, error) {
	n, err := fromObject(data)
	if err != nil {
		return nil, err
	}
	f, ok := n.(*Folder)
	if !ok {
		return nil, errors.New("decoding object form: top level is not a folder")
	}
	return f, nil
}

func fromObject(data []byte) (Node, error) {
	var o rawObject
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decoding node object: %w", err)
	}
	ts, err := decodeTimestamp(o.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", o.Type, o.Name, err)
	}
	k, ok := ParseKind(o.Type)
	if !ok {
		return nil, fmt.Errorf("node %q has unknown type %q", o.Name, o.Type)
	}
	if k == KindSnippet {
		return NewSnippet(o.Name, o.Body, ts), nil
	}
	f := NewFolder(o.Name, ts)
	for _, item := range o.List {
		child, err := fromObject(item)
		if err != nil {
			return nil, err
		}
		f.children = append(f.children, child)
	}
	return f, nil
}

// Equal reports whether two folders have the same names, timestamps, bodies
// and nesting.
func Equal(a, b *Folder) bool {
	if a.name != b.name || a.timestamp != b.timestamp || len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		ca, cb := a.children[i], b.children[i]
		if ca.Kind() != cb.Kind() {
			return false
		}
		switch va := ca.(type) {
		case *Folder:
			if !Equal(va, cb.(*Folder)) {
				return false
			}
		case *Snippet:
			vb := cb.(*Snippet)
			if va.name != vb.name || va.timestamp != vb.timestamp || !va.Body.Equal(vb.Body) {
				return false
			}
		}
	}
	return true
}
