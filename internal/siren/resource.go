package siren

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Link is a named hypermedia reference.
type Link struct {
	Href string `json:"href"`
}

// AsAction promotes a link to a field-less GET action.
func (l Link) AsAction(name string) Action {
	return Action{Name: name, Method: http.MethodGet, Href: l.Href}
}

// Resource is one decoded hypermedia document. Raw keeps the full body so
// predicates can inspect properties the typed view does not model.
type Resource struct {
	Links    map[string]Link            `json:"_links,omitempty"`
	Actions  []Action                   `json:"actions,omitempty"`
	Embedded map[string]json.RawMessage `json:"_embedded,omitempty"`

	Raw json.RawMessage `json:"-"`
	doc map[string]any
}

// Decode parses body into a Resource.
func Decode(body []byte) (Resource, error) {
	var r Resource
	if err := json.Unmarshal(body, &r); err != nil {
		return Resource{}, fmt.Errorf("siren: decode resource: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return Resource{}, fmt.Errorf("siren: decode resource: %w", err)
	}
	r.Raw = append(json.RawMessage(nil), body...)
	r.doc = doc
	return r, nil
}

// Link returns the link registered under name.
func (r Resource) Link(name string) (Link, bool) {
	l, ok := r.Links[name]
	if !ok || l.Href == "" {
		return Link{}, false
	}
	return l, true
}

// Action returns the named action, falling back to a link of the same name.
func (r Resource) Action(name string) (Action, bool) {
	for _, a := range r.Actions {
		if a.Name == name {
			return a, true
		}
	}
	if l, ok := r.Link(name); ok {
		return l.AsAction(name), true
	}
	return Action{}, false
}

// Lookup walks nested objects by key. Array elements are addressed by
// their decimal index.
func (r Resource) Lookup(path ...string) (any, bool) {
	var cur any = r.doc
	for _, key := range path {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			var idx int
			if _, err := fmt.Sscanf(key, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// String returns the string at path, or "" when absent or not a string.
func (r Resource) String(path ...string) string {
	v, ok := r.Lookup(path...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// EmbeddedList decodes the _embedded collection under name.
func (r Resource) EmbeddedList(name string) ([]Resource, error) {
	raw, ok := r.Embedded[name]
	if !ok {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("siren: decode _embedded.%s: %w", name, err)
	}
	out := make([]Resource, 0, len(items))
	for i, item := range items {
		res, err := Decode(item)
		if err != nil {
			return nil, fmt.Errorf("siren: _embedded.%s[%d]: %w", name, i, err)
		}
		out = append(out, res)
	}
	return out, nil
}
