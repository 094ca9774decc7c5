/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package neighbor

import (
	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
)

// EventType is the kind of change on_neighbor_table_event reports to
// observers (spec.md §4.1).
type EventType uint8

// Neighbor table event kinds.
const (
	EventChildAdded EventType = iota
	EventChildRemoved
	EventRouterAdded
	EventRouterRemoved
)

func (e EventType) String() string {
	switch e {
	case EventChildAdded:
		return "child_added"
	case EventChildRemoved:
		return "child_removed"
	case EventRouterAdded:
		return "router_added"
	case EventRouterRemoved:
		return "router_removed"
	default:
		return "unknown"
	}
}

// StateFilter selects which Peer states find_by_*/iterate consider a
// match; StateFilter(0) with no bits matches nothing, FilterAny matches
// every in-use state.
type StateFilter uint16

// Pre-built filters covering the common queries the MLE core makes.
const (
	FilterInvalid StateFilter = 1 << StateInvalid
	FilterValid   StateFilter = 1 << StateValid
	// FilterAny matches every state except Invalid (in-use slots).
	FilterAny StateFilter = ^StateFilter(0) &^ FilterInvalid
	// FilterAnyIncludingInvalid matches every state, used by new_child to
	// find a free slot.
	FilterAnyIncludingInvalid StateFilter = ^StateFilter(0)
)

// Matches reports whether s is included in the filter.
func (f StateFilter) Matches(s State) bool {
	return f&(1<<s) != 0
}

// StateOf is a convenience filter matching exactly one state.
func StateOf(s State) StateFilter {
	return 1 << s
}

// Table is the Neighbor & Child Table (C1): typed storage of every
// discovered peer and per-link state, plus the one Parent and one
// ParentCandidate slot the MLE core owns directly (spec.md §3's lifecycle
// note: "it borrows all other entities through typed indices").
type Table struct {
	children    []Child
	maxChildren int

	parent          Parent
	hasParent       bool
	parentCandidate ParentCandidate

	onEvent []func(EventType, *Peer)
}

// NewTable returns a Table sized for at most maxChildren simultaneous
// children.
func NewTable(maxChildren int) *Table {
	return &Table{
		children:    make([]Child, maxChildren),
		maxChildren: maxChildren,
	}
}

// OnNeighborTableEvent registers fn to be called synchronously whenever
// a child or router is added or removed.
func (t *Table) OnNeighborTableEvent(fn func(EventType, *Peer)) {
	t.onEvent = append(t.onEvent, fn)
}

func (t *Table) fire(evt EventType, p *Peer) {
	for _, fn := range t.onEvent {
		fn(evt, p)
	}
}

// NewChild returns a pointer to a free (State == Invalid) slot in the
// child table, or nil with meshnet.KindNoBufs-classed error info left to
// the caller (the method itself just signals via the bool) if the table
// is full.
func (t *Table) NewChild() (*Child, error) {
	for i := range t.children {
		if t.children[i].State == StateInvalid {
			t.children[i].Reset()
			return &t.children[i], nil
		}
	}
	return nil, meshnet.NewError("neighbor.NewChild", meshnet.KindNoBufs, nil)
}

// GetChildAtIndex returns the child at dense index idx (the index
// assigned by NewChild's slot position), or nil if out of range.
func (t *Table) GetChildAtIndex(idx int) *Child {
	if idx < 0 || idx >= len(t.children) {
		return nil
	}
	return &t.children[idx]
}

// IndexOf returns the dense table index of child c, used by the indirect
// sender to tag messages in the mesh-forwarder's ChildMask.
func (t *Table) IndexOf(c *Child) int {
	for i := range t.children {
		if &t.children[i] == c {
			return i
		}
	}
	return -1
}

// FindByExtAddress returns the Child or Parent/ParentCandidate peer whose
// extended address matches addr and whose state matches filter, checking
// children first, then the parent, then the parent candidate.
func (t *Table) FindByExtAddress(addr meshtlv.ExtAddr, filter StateFilter) *Peer {
	for i := range t.children {
		c := &t.children[i]
		if c.ExtAddr == addr && filter.Matches(c.State) {
			return &c.Peer
		}
	}
	if t.hasParent && t.parent.ExtAddr == addr && filter.Matches(t.parent.State) {
		return &t.parent.Peer
	}
	if t.parentCandidate.ExtAddr == addr && filter.Matches(t.parentCandidate.State) {
		return &t.parentCandidate.Peer
	}
	return nil
}

// FindByShortAddress is FindByExtAddress's RLOC16-keyed counterpart.
func (t *Table) FindByShortAddress(rloc meshtlv.Rloc16, filter StateFilter) *Peer {
	for i := range t.children {
		c := &t.children[i]
		if c.Rloc16 == rloc && filter.Matches(c.State) {
			return &c.Peer
		}
	}
	if t.hasParent && t.parent.Rloc16 == rloc && filter.Matches(t.parent.State) {
		return &t.parent.Peer
	}
	if t.parentCandidate.Rloc16 == rloc && filter.Matches(t.parentCandidate.State) {
		return &t.parentCandidate.Peer
	}
	return nil
}

// FindChildByExtAddress is FindByExtAddress narrowed to the child table,
// returning the concrete *Child (not just the Peer view) so callers can
// reach child-specific fields.
func (t *Table) FindChildByExtAddress(addr meshtlv.ExtAddr, filter StateFilter) *Child {
	for i := range t.children {
		c := &t.children[i]
		if c.ExtAddr == addr && filter.Matches(c.State) {
			return c
		}
	}
	return nil
}

// FindChildByShortAddress is the RLOC16-keyed counterpart.
func (t *Table) FindChildByShortAddress(rloc meshtlv.Rloc16, filter StateFilter) *Child {
	for i := range t.children {
		c := &t.children[i]
		if c.Rloc16 == rloc && filter.Matches(c.State) {
			return c
		}
	}
	return nil
}

// IsChild reports whether p is backed by a slot in this table's child
// array (as opposed to the parent or parent-candidate slot).
func (t *Table) IsChild(p *Peer) bool {
	for i := range t.children {
		if &t.children[i].Peer == p {
			return true
		}
	}
	return false
}

// Iterate calls fn for every child whose state matches filter, in table
// order. fn returning false stops iteration early.
func (t *Table) Iterate(filter StateFilter, fn func(*Child) bool) {
	for i := range t.children {
		c := &t.children[i]
		if !filter.Matches(c.State) {
			continue
		}
		if !fn(c) {
			return
		}
	}
}

// RemoveChild transitions c to Invalid, freeing its slot, and fires
// EventChildRemoved.
func (t *Table) RemoveChild(c *Child) {
	wasValid := c.State != StateInvalid
	peer := c.Peer
	c.Reset()
	if wasValid {
		t.fire(EventChildRemoved, &peer)
	}
}

// AddChild transitions a freshly-allocated child slot into use and fires
// EventChildAdded. Callers are expected to have already populated the
// slot's fields (ExtAddr at minimum) before calling this.
func (t *Table) AddChild(c *Child) {
	t.fire(EventChildAdded, &c.Peer)
}

// Parent returns the currently attached parent, or nil if this device
// has none (Detached/Disabled).
func (t *Table) Parent() *Parent {
	if !t.hasParent {
		return nil
	}
	return &t.parent
}

// SetParent installs p as the current parent and fires EventRouterAdded.
func (t *Table) SetParent(p Parent) {
	t.parent = p
	t.hasParent = true
	t.fire(EventRouterAdded, &t.parent.Peer)
}

// ClearParent removes the current parent (e.g. on becoming Detached) and
// fires EventRouterRemoved.
func (t *Table) ClearParent() {
	if !t.hasParent {
		return
	}
	peer := t.parent.Peer
	t.parent = Parent{}
	t.hasParent = false
	t.fire(EventRouterRemoved, &peer)
}

// ParentCandidate returns the in-progress attach candidate slot.
func (t *Table) ParentCandidate() *ParentCandidate {
	return &t.parentCandidate
}

// ClearParentCandidate resets the candidate slot between attach attempts
// (spec.md §3).
func (t *Table) ClearParentCandidate() {
	t.parentCandidate.Reset()
}

// NumChildren returns the count of in-use (non-Invalid) child slots.
func (t *Table) NumChildren() int {
	n := 0
	for i := range t.children {
		if t.children[i].State != StateInvalid {
			n++
		}
	}
	return n
}

// MaxChildren returns the table's configured capacity.
func (t *Table) MaxChildren() int { return t.maxChildren }
