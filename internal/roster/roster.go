// Package roster stores the records each player owns, one document per owner.
package roster

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/MarcoPoloResearchLab/sortie/internal/store"
)

// ErrRecordNotFound reports that no owned record matched.
var ErrRecordNotFound = errors.New("record not found")

// Record is an owned entry with an id, a name and a creation time.
type Record interface {
	RecordID() string
	RecordName() string
	CreatedAtMillis() int64
}

type document[T Record] struct {
	Items []T `json:"items"`
}

// Roster keeps per-owner lists of T in one namespace.
type Roster[T Record] struct {
	owners *store.Collection[document[T]]
}

// New binds a Roster to namespace.
func New[T Record](s store.Store, namespace string) *Roster[T] {
	return &Roster[T]{owners: store.NewCollection[document[T]](s, namespace)}
}

// List returns the owner's records, oldest first.
func (r *Roster[T]) List(ctx context.Context, ownerID string) ([]T, error) {
	doc, err := r.owners.Get(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	items := slices.Clone(doc.Items)
	slices.SortStableFunc(items, func(a, b T) int {
		return compareInt64(a.CreatedAtMillis(), b.CreatedAtMillis())
	})
	return items, nil
}

// Find returns the owner's record whose id or name equals idOrName.
func (r *Roster[T]) Find(ctx context.Context, ownerID, idOrName string) (T, error) {
	items, err := r.List(ctx, ownerID)
	if err != nil {
		var zero T
		return zero, err
	}
	for _, item := range items {
		if matches(item, idOrName) {
			return item, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %s", ErrRecordNotFound, idOrName)
}

// Add appends a record to the owner's list.
func (r *Roster[T]) Add(ctx context.Context, ownerID string, item T) error {
	_, err := r.owners.Update(ctx, ownerID, func(doc *document[T], _ bool) error {
		doc.Items = append(doc.Items, item)
		return nil
	})
	return err
}

// Delete removes every owned record whose id or name equals idOrName.
func (r *Roster[T]) Delete(ctx context.Context, ownerID, idOrName string) (bool, error) {
	removed := false
	_, err := r.owners.Update(ctx, ownerID, func(doc *document[T], exists bool) error {
		if !exists {
			return store.ErrNoChange
		}
		before := len(doc.Items)
		doc.Items = slices.DeleteFunc(doc.Items, func(item T) bool {
			return matches(item, idOrName)
		})
		removed = len(doc.Items) != before
		if !removed {
			return store.ErrNoChange
		}
		return nil
	})
	return removed, err
}

// Mutate applies fn to the owned record with the given id and stores it.
func (r *Roster[T]) Mutate(ctx context.Context, ownerID, id string, fn func(*T) error) (T, error) {
	var updated T
	_, err := r.owners.Update(ctx, ownerID, func(doc *document[T], _ bool) error {
		for index := range doc.Items {
			if doc.Items[index].RecordID() != id {
				continue
			}
			if err := fn(&doc.Items[index]); err != nil {
				return err
			}
			updated = doc.Items[index]
			return nil
		}
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	})
	return updated, err
}

// Replace overwrites the owner's whole list.
func (r *Roster[T]) Replace(ctx context.Context, ownerID string, items []T) error {
	return r.owners.Put(ctx, ownerID, document[T]{Items: items})
}

// Page is one slice of an owner's records.
type Page[T any] struct {
	Items  []T
	Index  int
	Pages  int
	Total  int
	Offset int
}

// HasPrev and HasNext drive the paging controls.
func (p Page[T]) HasPrev() bool { return p.Index > 0 }
func (p Page[T]) HasNext() bool { return p.Index < p.Pages-1 }

// Paginate clamps index into range and returns that page of items.
func Paginate[T any](items []T, index, size int) Page[T] {
	if size <= 0 {
		size = len(items)
	}
	pages := 1
	if size > 0 {
		pages = max(1, (len(items)+size-1)/size)
	}
	index = max(0, min(index, pages-1))
	start := min(index*size, len(items))
	end := min(start+size, len(items))
	return Page[T]{
		Items:  items[start:end],
		Index:  index,
		Pages:  pages,
		Total:  len(items),
		Offset: start,
	}
}

func matches[T Record](item T, idOrName string) bool {
	return item.RecordID() == idOrName || item.RecordName() == idOrName
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
