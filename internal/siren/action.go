package siren

import (
	"mime"
	"net/http"
	"strings"
)

const MediaTypeJSON = "application/json"

// Field is one named input of an Action.
type Field struct {
	Name  string   `json:"name"`
	Class ClassSet `json:"class,omitempty"`
	Type  string   `json:"type,omitempty"`
	Value any      `json:"value,omitempty"`
	Title string   `json:"title,omitempty"`
}

// Action is a daemon-described next step.
type Action struct {
	Name   string   `json:"name"`
	Class  []string `json:"class,omitempty"`
	Method string   `json:"method,omitempty"`
	Href   string   `json:"href"`
	Title  string   `json:"title,omitempty"`
	Type   string   `json:"type,omitempty"`
	Fields []Field  `json:"fields,omitempty"`
}

// HTTPMethod returns the upper-cased method, GET when unset.
func (a Action) HTTPMethod() string {
	m := strings.ToUpper(strings.TrimSpace(a.Method))
	if m == "" {
		return http.MethodGet
	}
	return m
}

// Field returns the field with the given name.
func (a Action) Field(name string) (Field, bool) {
	for _, f := range a.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// IsJSONMediaType accepts application/json (with parameters) and +json suffixes.
func IsJSONMediaType(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == MediaTypeJSON || strings.HasSuffix(mt, "+json")
}
