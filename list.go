package asyncurl

import (
	"fmt"
	"iter"
	"slices"
)

// List is an ordered collection of strings for list-valued transfer options
// such as header sets and resolve overrides. The zero value is an empty
// list ready for use.
//
// Transfers store deep copies, so a list can be modified and reused across
// [Transfer.SetList] calls without affecting earlier ones.
type List struct {
	items []string
}

// NewList builds a list from the given elements.
func NewList(items ...string) *List {
	l := &List{}
	l.items = append(l.items, items...)
	return l
}

// Append adds s at the tail.
func (l *List) Append(s string) {
	l.items = append(l.items, s)
}

// Prepend adds s at the head.
func (l *List) Prepend(s string) {
	l.items = slices.Insert(l.items, 0, s)
}

// Insert places s before index i; i == Len appends.
func (l *List) Insert(i int, s string) error {
	if i < 0 || i > len(l.items) {
		return fmt.Errorf("insert at %d of %d: %w", i, len(l.items), ErrBadParam)
	}
	l.items = slices.Insert(l.items, i, s)
	return nil
}

// RemoveAt deletes the element at index i.
func (l *List) RemoveAt(i int) error {
	if i < 0 || i >= len(l.items) {
		return fmt.Errorf("remove at %d of %d: %w", i, len(l.items), ErrBadParam)
	}
	l.items = slices.Delete(l.items, i, i+1)
	return nil
}

// At returns the element at index i.
func (l *List) At(i int) (string, bool) {
	if i < 0 || i >= len(l.items) {
		return "", false
	}
	return l.items[i], true
}

// Len reports the number of elements.
func (l *List) Len() int {
	return len(l.items)
}

// Clear drops all elements.
func (l *List) Clear() {
	l.items = l.items[:0]
}

// Strings returns the elements as an independent slice.
func (l *List) Strings() []string {
	return slices.Clone(l.items)
}

// Clone returns an independent copy of the list.
func (l *List) Clone() *List {
	return &List{items: slices.Clone(l.items)}
}

// All iterates the elements in order.
func (l *List) All() iter.Seq2[int, string] {
	return slices.All(l.items)
}
