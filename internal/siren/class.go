package siren

import (
	"encoding/json"
	"sort"
)

// Class is a capability tag attached to an action field.
type Class string

const (
	ClassEthereum   Class = "ethereum"
	ClassBitcoin    Class = "bitcoin"
	ClassAddress    Class = "address"
	ClassFeePerWU   Class = "feePerWU"
	ClassFeePerByte Class = "feePerByte"
)

var knownClasses = map[Class]struct{}{
	ClassEthereum:   {},
	ClassBitcoin:    {},
	ClassAddress:    {},
	ClassFeePerWU:   {},
	ClassFeePerByte: {},
}

// Known reports whether c is one of the enumerated capability tags.
func (c Class) Known() bool {
	_, ok := knownClasses[c]
	return ok
}

// ClassSet is an unordered set of tags. Unknown tags are kept so they can be
// reported, but no autofill rule matches them.
type ClassSet map[Class]struct{}

func NewClassSet(classes ...Class) ClassSet {
	set := make(ClassSet, len(classes))
	for _, c := range classes {
		set[c] = struct{}{}
	}
	return set
}

func (s ClassSet) Has(c Class) bool {
	_, ok := s[c]
	return ok
}

// HasAll reports whether s is a superset of classes.
func (s ClassSet) HasAll(classes ...Class) bool {
	for _, c := range classes {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// Sorted returns the tags in lexical order.
func (s ClassSet) Sorted() []Class {
	out := make([]Class, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s ClassSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *ClassSet) UnmarshalJSON(data []byte) error {
	var raw []Class
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewClassSet(raw...)
	return nil
}
