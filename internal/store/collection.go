package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Entity is the constraint for values held in a Collection.
type Entity[T any] interface {
	Key() string
	Clone() T
}

// Collection is a named mapping from entity id to entity and the unit stored
// under one store key. Entities are cloned on the way in and out.
type Collection[T Entity[T]] struct {
	name  string
	items map[string]T
}

// NewCollection returns an empty collection.
func NewCollection[T Entity[T]](name string) Collection[T] {
	return Collection[T]{name: name, items: make(map[string]T)}
}

// Name returns the collection name (its store key).
func (c Collection[T]) Name() string { return c.name }

// Add stores entity under id, replacing any previous value.
func (c *Collection[T]) Add(id string, entity T) {
	if c.items == nil {
		c.items = make(map[string]T)
	}
	c.items[id] = entity.Clone()
}

// Put stores entity under its own key.
func (c *Collection[T]) Put(entity T) {
	c.Add(entity.Key(), entity)
}

// Get returns a copy of the entity stored under id.
func (c Collection[T]) Get(id string) (T, bool) {
	v, ok := c.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return v.Clone(), true
}

// Has reports whether id is present.
func (c Collection[T]) Has(id string) bool {
	_, ok := c.items[id]
	return ok
}

// GetAll returns copies of every entity ordered by id.
func (c Collection[T]) GetAll() []T {
	ids := c.IDs()
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.items[id].Clone())
	}
	return out
}

// IDs returns the ids in sorted order.
func (c Collection[T]) IDs() []string {
	ids := make([]string, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove deletes id and reports whether it was present.
func (c *Collection[T]) Remove(id string) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	return true
}

// Count returns the number of entities.
func (c Collection[T]) Count() int { return len(c.items) }

// Clone returns a deep copy.
func (c Collection[T]) Clone() Collection[T] {
	cp := Collection[T]{name: c.name, items: make(map[string]T, len(c.items))}
	for id, v := range c.items {
		cp.items[id] = v.Clone()
	}
	return cp
}

// CloneValue implements Cloner.
func (c Collection[T]) CloneValue() any { return c.Clone() }

// MarshalJSON encodes the collection as an object keyed by entity id.
func (c Collection[T]) MarshalJSON() ([]byte, error) {
	if c.items == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.items)
}

// UnmarshalJSON decodes an object keyed by entity id. The name is not part of
// the payload; GetCollection restores it from the store key.
func (c *Collection[T]) UnmarshalJSON(data []byte) error {
	items := make(map[string]T)
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	c.items = items
	return nil
}

// GetCollection loads the collection stored under name.
func GetCollection[T Entity[T]](s *Store, name string) (Collection[T], bool, error) {
	c, ok, err := GetModel[Collection[T]](s, name)
	if err != nil || !ok {
		return NewCollection[T](name), ok, err
	}
	c.name = name
	return c, true, nil
}

// CollectionFrom converts a value handed to an Update or UpdateMany callback
// into a collection named name. Absent values yield an empty collection.
func CollectionFrom[T Entity[T]](name string, current any, ok bool) (Collection[T], error) {
	if !ok || current == nil {
		return NewCollection[T](name), nil
	}
	c, _, err := DecodeModel[Collection[T]](current)
	if err != nil {
		return Collection[T]{}, fmt.Errorf("collection %q: %w", name, err)
	}
	c.name = name
	if c.items == nil {
		c.items = make(map[string]T)
	}
	return c, nil
}

// UpdateCollection performs a serialized read-modify-write of the collection
// stored under name. Returning an error from fn leaves the store untouched.
func UpdateCollection[T Entity[T]](ctx context.Context, s *Store, name string, fn func(*Collection[T]) error) error {
	return s.Update(ctx, name, func(current any, ok bool) (any, error) {
		c, err := CollectionFrom[T](name, current, ok)
		if err != nil {
			return nil, err
		}
		if err := fn(&c); err != nil {
			return nil, err
		}
		return c, nil
	})
}
