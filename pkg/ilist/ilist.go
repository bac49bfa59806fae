// Package ilist implements an intrusive doubly-linked list: the link
// pointers live inside the element being listed (via embedded Entry)
// rather than in a wrapper node, so an element can be removed in O(1)
// without a lookup and can belong to at most one list at a time.
package ilist

// Element is anything that can be linked into a List: it must expose
// its own embedded Entry.
type Element interface {
	LinkEntry() *Entry

	// Next returns the following element, or nil at the end of the list.
	Next() Element

	// Prev returns the preceding element, or nil at the start of the list.
	Prev() Element
}

// Entry holds the prev/next links for one list membership. Embed it
// (by value) in any type that implements Element by returning &its
// own Entry from LinkEntry.
type Entry struct {
	next, prev Element
	self       Element
}

// Next returns the following element, or nil at the end of the list.
func (e *Entry) Next() Element {
	return e.next
}

// Prev returns the preceding element, or nil at the start of the list.
func (e *Entry) Prev() Element {
	return e.prev
}

// List is an intrusive doubly-linked list of Elements.
type List struct {
	head, tail Element
	count      int
}

// Front returns the first element, or nil if the list is empty.
func (l *List) Front() Element {
	return l.head
}

// Back returns the last element, or nil if the list is empty.
func (l *List) Back() Element {
	return l.tail
}

// Len returns the number of elements currently linked.
func (l *List) Len() int {
	return l.count
}

// Empty reports whether the list has no elements.
func (l *List) Empty() bool {
	return l.count == 0
}

// PushBack links e at the tail of the list.
func (l *List) PushBack(e Element) {
	entry := e.LinkEntry()
	entry.self = e
	entry.next = nil
	entry.prev = l.tail

	if l.tail != nil {
		l.tail.LinkEntry().next = e
	} else {
		l.head = e
	}

	l.tail = e
	l.count++
}

// PushFront links e at the head of the list.
func (l *List) PushFront(e Element) {
	entry := e.LinkEntry()
	entry.self = e
	entry.prev = nil
	entry.next = l.head

	if l.head != nil {
		l.head.LinkEntry().prev = e
	} else {
		l.tail = e
	}

	l.head = e
	l.count++
}

// Remove unlinks e from the list. e must currently be linked into l;
// removing an element not in any list is a caller error and silently a
// no-op (matching evanphx-columbia/ilist.List.Remove call sites, which
// never check a return value). An element linked into a different list
// is not detected.
func (l *List) Remove(e Element) {
	entry := e.LinkEntry()
	if entry.self == nil {
		return
	}

	if entry.prev != nil {
		entry.prev.LinkEntry().next = entry.next
	} else if l.head == e {
		l.head = entry.next
	}

	if entry.next != nil {
		entry.next.LinkEntry().prev = entry.prev
	} else if l.tail == e {
		l.tail = entry.prev
	}

	entry.next = nil
	entry.prev = nil
	entry.self = nil
	l.count--
}
