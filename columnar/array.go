// Package columnar reads per-event arrays out of event files.
package columnar

import (
	"regexp"
	"strings"
)

type Kind int

const (
	Other Kind = iota
	Int
	Float
	String
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	}
	return "other"
}

// Array holds one key's values, one slice per event.
type Array struct {
	Kind   Kind
	Events [][]float64
}

func (a Array) Flatten() []float64 {
	n := 0
	for _, e := range a.Events {
		n += len(e)
	}

	flat := make([]float64, 0, n)
	for _, e := range a.Events {
		flat = append(flat, e...)
	}
	return flat
}

// Source is an opened event file.
type Source interface {
	Keys() []string
	Read(key string) (Array, error)
	Close() error
}

// Filter selects keys by regular expression. With any Match expressions a
// key has to match one of them; matching any Unmatch expression rejects it.
type Filter struct {
	Match   []*regexp.Regexp
	Unmatch []*regexp.Regexp
}

func NewFilter(match, unmatch []string) (Filter, error) {
	f := Filter{}

	for _, m := range match {
		re, err := regexp.Compile(m)
		if err != nil {
			return Filter{}, err
		}
		f.Match = append(f.Match, re)
	}

	for _, m := range unmatch {
		re, err := regexp.Compile(m)
		if err != nil {
			return Filter{}, err
		}
		f.Unmatch = append(f.Unmatch, re)
	}

	return f, nil
}

// Accept anchors expressions at the start of the key.
func (f Filter) Accept(key string) bool {
	if strings.HasPrefix(key, "PARAMETERS") {
		return false
	}

	accept := len(f.Match) == 0
	for _, re := range f.Match {
		if matchesAtStart(re, key) {
			accept = true
		}
	}

	for _, re := range f.Unmatch {
		if matchesAtStart(re, key) {
			accept = false
		}
	}

	return accept
}

func matchesAtStart(re *regexp.Regexp, key string) bool {
	loc := re.FindStringIndex(key)
	return loc != nil && loc[0] == 0
}
