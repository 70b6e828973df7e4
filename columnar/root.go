package columnar

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
)

// TreeName is the tree holding the per-event collections.
const TreeName = "events"

var ErrNoKey = errors.New("no such key")

type rootSource struct {
	f    *riofs.File
	tree rtree.Tree
	vars map[string]column
	keys []string
}

// column is one key of a tree: a whole branch, or one member of the structs a
// branch holds when index is set.
type column struct {
	rv    rtree.ReadVar
	index []int
	kind  Kind
}

// member is a numeric or string field reachable from a struct type through
// nested struct fields.
type member struct {
	name  string
	index []int
	kind  Kind
}

// OpenROOT opens the events tree of a ROOT file. Every leaf is a key, named
// branch/leaf when the leaf name differs from its branch. Branches holding
// structs, or vectors of them, are split into one key per member named
// branch/branch.member, with nested structs joined by dots.
func OpenROOT(path string) (Source, error) {
	f, err := groot.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}

	obj, err := f.Get(TreeName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error reading tree %s from %s: %w", TreeName, path, err)
	}

	tree, ok := obj.(rtree.Tree)
	if !ok {
		f.Close()
		return nil, fmt.Errorf("%s in %s is a %s, not a tree", TreeName, path, obj.Class())
	}

	s := &rootSource{
		f:    f,
		tree: tree,
		vars: map[string]column{},
	}

	for _, rv := range rtree.NewReadVars(tree) {
		key := rv.Name
		if rv.Leaf != "" && rv.Leaf != rv.Name {
			key = rv.Name + "/" + rv.Leaf
		}

		t := reflect.TypeOf(rv.Value).Elem()
		if elem := elemType(t); elem.Kind() == reflect.Struct {
			for _, m := range members(elem) {
				k := key + "/" + rv.Name + "." + m.name
				s.vars[k] = column{rv: rv, index: m.index, kind: m.kind}
				s.keys = append(s.keys, k)
			}
			continue
		}

		s.vars[key] = column{rv: rv, kind: kindOf(t)}
		s.keys = append(s.keys, key)
	}
	sort.Strings(s.keys)

	return s, nil
}

func (s *rootSource) Keys() []string {
	return s.keys
}

func (s *rootSource) Close() error {
	return s.f.Close()
}

// Read loads every event of key. String and composite keys only report their
// kind.
func (s *rootSource) Read(key string) (Array, error) {
	col, ok := s.vars[key]
	if !ok {
		return Array{}, fmt.Errorf("%w: %s", ErrNoKey, key)
	}

	arr := Array{Kind: col.kind}
	if arr.Kind == String || arr.Kind == Other {
		return arr, nil
	}

	ptr := reflect.ValueOf(col.rv.Value)
	r, err := rtree.NewReader(s.tree, []rtree.ReadVar{col.rv})
	if err != nil {
		return Array{}, fmt.Errorf("error reading %s: %w", key, err)
	}
	defer r.Close()

	arr.Events = make([][]float64, 0, s.tree.Entries())
	err = r.Read(func(ctx rtree.RCtx) error {
		arr.Events = append(arr.Events, memberValues(nil, ptr.Elem(), col.index))
		return nil
	})
	if err != nil {
		return Array{}, fmt.Errorf("error reading %s: %w", key, err)
	}

	return arr, nil
}

func elemType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	return t
}

// members lists the fields of a struct type, descending into struct fields.
// Fields are named by their groot tag when present, without any [size] suffix.
// Composite members are kept with the Other kind.
func members(t reflect.Type) []member {
	var out []member
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		name := f.Name
		if tag, ok := f.Tag.Lookup("groot"); ok && tag != "" {
			name, _, _ = strings.Cut(tag, "[")
		}

		if f.Type.Kind() == reflect.Struct {
			for _, m := range members(f.Type) {
				out = append(out, member{
					name:  name + "." + m.name,
					index: append([]int{i}, m.index...),
					kind:  m.kind,
				})
			}
			continue
		}

		out = append(out, member{name: name, index: []int{i}, kind: kindOf(f.Type)})
	}
	return out
}

// memberValues flattens the field at index of every struct in v into dst. A
// nil index flattens v itself.
func memberValues(dst []float64, v reflect.Value, index []int) []float64 {
	if index == nil {
		return appendValues(dst, v)
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if dst == nil {
			dst = make([]float64, 0, v.Len())
		}
		for i := range v.Len() {
			dst = memberValues(dst, v.Index(i), index)
		}
	case reflect.Struct:
		dst = appendValues(dst, v.FieldByIndex(index))
	}

	if dst == nil {
		dst = []float64{}
	}
	return dst
}

func kindOf(t reflect.Type) Kind {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return kindOf(t.Elem())
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int
	case reflect.Float32, reflect.Float64:
		return Float
	case reflect.String:
		return String
	}
	return Other
}

// appendValues flattens scalars and (nested) slices of numbers into dst.
func appendValues(dst []float64, v reflect.Value) []float64 {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if dst == nil {
			dst = make([]float64, 0, v.Len())
		}
		for i := range v.Len() {
			dst = appendValues(dst, v.Index(i))
		}
	case reflect.Bool:
		if v.Bool() {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst = append(dst, float64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		dst = append(dst, float64(v.Uint()))
	case reflect.Float32, reflect.Float64:
		dst = append(dst, v.Float())
	}

	if dst == nil {
		dst = []float64{}
	}
	return dst
}
