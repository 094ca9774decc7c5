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

package meshnet

import (
	"fmt"

	"github.com/openthread-go/meshlink/meshtlv"
)

// MaxChildren bounds the bitmask width in ChildMask; it is also the
// largest child index the neighbor table will ever hand out.
const MaxChildren = 511

// ChildMask is a fixed-width set of child-table indices, used to track
// which of a forwarded message's sleepy-child subscribers still need it
// delivered (spec.md §7, "raw heterogeneous pointers into a shared send
// queue"). Indices are dense small integers assigned by the neighbor
// table, not RLOC16s.
type ChildMask struct {
	bits [(MaxChildren + 63) / 64]uint64
}

func (m *ChildMask) wordBit(index int) (int, uint64) {
	return index / 64, uint64(1) << uint(index%64)
}

// SetBit marks index as a pending subscriber.
func (m *ChildMask) SetBit(index int) {
	w, b := m.wordBit(index)
	m.bits[w] |= b
}

// ClearBit marks index as served.
func (m *ChildMask) ClearBit(index int) {
	w, b := m.wordBit(index)
	m.bits[w] &^= b
}

// IsBitSet reports whether index is still pending.
func (m *ChildMask) IsBitSet(index int) bool {
	w, b := m.wordBit(index)
	return m.bits[w]&b != 0
}

// Empty reports whether no subscriber indices remain set.
func (m *ChildMask) Empty() bool {
	for _, w := range m.bits {
		if w != 0 {
			return false
		}
	}
	return true
}

// Message is one entry in the forwarder's shared send-queue arena: a
// single payload that may be owned simultaneously by a direct-tx queue
// entry and any number of indirect (sleepy-child) subscribers, freed once
// every subscriber bit has cleared and DirectTx is false.
type Message struct {
	// Index is this message's stable position in the owning Arena,
	// assigned once at InsertMessage time and never reused while the
	// message is live.
	Index int
	// Payload is the immutable 6LoWPAN/IP datagram (or fragment) bytes.
	Payload []byte
	// Pending tracks which child-table indices still need this message
	// delivered indirectly.
	Pending ChildMask
	// DirectTx is set while a direct-transmission attempt (to an rx-on
	// neighbor or the radio's own queue) is still outstanding.
	DirectTx bool
}

// Live reports whether the message still has outstanding work: either a
// pending indirect subscriber or an outstanding direct-tx attempt.
func (m *Message) Live() bool {
	return m.DirectTx || !m.Pending.Empty()
}

// Arena owns the forwarder's shared send queue: a slice of *Message
// indexed by stable position, with freed slots recycled by index so
// subscriber bitmasks set against an index remain meaningful for the
// lifetime of that message.
type Arena struct {
	messages []*Message
	free     []int
}

// Insert adds payload to the arena and returns the new message, with
// Index populated.
func (a *Arena) Insert(payload []byte) *Message {
	m := &Message{Payload: payload}
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		m.Index = idx
		a.messages[idx] = m
		return m
	}
	m.Index = len(a.messages)
	a.messages = append(a.messages, m)
	return m
}

// At returns the message at index, or nil if it has been freed.
func (a *Arena) At(index int) *Message {
	if index < 0 || index >= len(a.messages) {
		return nil
	}
	return a.messages[index]
}

// ForEach calls fn for every live message in index order, stopping early
// if fn returns false. Used by the indirect sender to scan for a
// neighbor's queued messages without needing its own parallel index.
func (a *Arena) ForEach(fn func(*Message) bool) {
	for _, m := range a.messages {
		if m == nil {
			continue
		}
		if !fn(m) {
			return
		}
	}
}

// ReleaseIfDone frees the message at index if it is no longer Live,
// returning true if it was freed.
func (a *Arena) ReleaseIfDone(index int) bool {
	m := a.At(index)
	if m == nil || m.Live() {
		return false
	}
	a.messages[index] = nil
	a.free = append(a.free, index)
	return true
}

// MeshForwarder is the capability the indirect sender and MLE core need
// from the 6LoWPAN/mesh-forwarding layer: queue a datagram for direct or
// indirect transmission, and be told when a queued message should be
// dropped outright (child detached, queue full).
type MeshForwarder interface {
	// Enqueue hands payload to the forwarder for eventual transmission,
	// returning the arena index the forwarder assigned it so callers
	// (the indirect sender) can track per-child delivery against it.
	Enqueue(payload []byte) (index int, err error)

	// MarkDelivered clears index's pending state for childIndex, freeing
	// the underlying message once no subscriber or direct-tx attempt
	// remains.
	MarkDelivered(index, childIndex int) error

	// Drop removes index from the queue unconditionally, used when a
	// child detaches or the message's fragment set is abandoned.
	Drop(index int) error

	// PrepareFragment builds the next 6LoWPAN fragment of the datagram at
	// index, starting fragmentOffset bytes into it, with a MAC
	// source/destination pair computed per 6LoWPAN addressing rules for
	// dst (using the short address form when useShortAddress is set).
	// done reports whether nextOffset has reached the end of the
	// datagram. This is the "data frame without mesh header" builder
	// spec.md §4.4 names; fragmentation itself stays entirely inside the
	// forwarder, which is why it's exposed as one opaque call instead of
	// a header-parsing API.
	PrepareFragment(index int, fragmentOffset uint16, dst meshtlv.ExtAddr, useShortAddress bool) (payload []byte, nextOffset uint16, done bool, err error)
}

// ErrArenaFull is returned by an Enqueue implementation that bounds queue
// depth and has hit that bound.
var ErrArenaFull = fmt.Errorf("mesh forwarder queue full")
