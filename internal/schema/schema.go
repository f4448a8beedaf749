package schema

import (
	"sort"
	"strings"

	"github.com/tordrt/sqlitemigrate/internal/errs"
)

// Schema is a mapping from (kind, lower_case_name) to Object. No two
// objects may share a key; Insert enforces that invariant.
type Schema struct {
	objects map[Key]*Object
}

// New returns an empty Schema.
func New() *Schema {
	return &Schema{objects: make(map[Key]*Object)}
}

// Insert adds obj to the schema, failing with errs.KindDuplicateObject if
// its (kind, name) key is already present.
func (s *Schema) Insert(obj *Object) error {
	key := obj.Key()
	if _, exists := s.objects[key]; exists {
		return errs.New(errs.KindDuplicateObject, "schema.Insert", map[string]any{
			"kind": string(obj.Kind),
			"name": obj.Name,
		})
	}
	s.objects[key] = obj
	return nil
}

// Get looks up an object by kind and name (case-insensitive).
func (s *Schema) Get(kind Kind, name string) (*Object, bool) {
	obj, ok := s.objects[Key{Kind: kind, Name: strings.ToLower(name)}]
	return obj, ok
}

// GetKey looks up an object by its Key directly.
func (s *Schema) GetKey(key Key) (*Object, bool) {
	obj, ok := s.objects[key]
	return obj, ok
}

// Delete removes the object at key, if present.
func (s *Schema) Delete(key Key) {
	delete(s.objects, key)
}

// Len returns the number of objects in the schema.
func (s *Schema) Len() int { return len(s.objects) }

// Keys returns every key in the schema, unordered.
func (s *Schema) Keys() []Key {
	out := make([]Key, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	return out
}

// All returns every object ordered by (kind_rank, lower_name) — the
// canonical enumeration order used throughout the Differ and Planner.
func (s *Schema) All() []*Object {
	out := make([]*Object, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := kindRank(out[i].Kind), kindRank(out[j].Kind)
		if ki != kj {
			return ki < kj
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Tables returns the schema's table objects, keyed by lower-case name.
func (s *Schema) Tables() map[string]*Object {
	out := make(map[string]*Object)
	for k, o := range s.objects {
		if k.Kind == KindTable {
			out[k.Name] = o
		}
	}
	return out
}
