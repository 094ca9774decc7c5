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

// Package indirect implements the Indirect Sender (C4): the per-sleepy-
// child message queue, frame preparation for data-poll and CSL
// opportunities, and the retransmission-continuity rule that keeps a
// retried frame's counters stable across attempts.
package indirect

import (
	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/neighbor"
)

// MaxIndirectAttempts bounds consecutive NoAck outcomes for a single
// indirect message before it is abandoned (spec.md §8 scenario 4: three
// consecutive failures removes the message and promotes the next one).
const MaxIndirectAttempts = 3

// FrameTxResult is the outcome the MAC/radio layer reports after
// attempting to deliver a prepared indirect or CSL frame.
type FrameTxResult uint8

// Frame transmission outcomes.
const (
	TxResultSuccess FrameTxResult = iota
	TxResultNoAck
	TxResultAbort
)

// PreparedFrame is the result of a frame-preparation call: either a
// fragment of the neighbor's current indirect message, or (if none is
// queued) a valid empty ack-requested frame so a data poll always gets a
// response.
type PreparedFrame struct {
	Payload          []byte
	FramePending     bool
	IsRetransmission bool
	FrameCounter     uint32
	KeyID            uint8
	Seq              uint8
	Empty            bool
}

type pendingFragment struct {
	msgIndex   int
	nextOffset uint16
	done       bool
}

// Sender is the Indirect Sender. It owns no neighbor state directly
// (that lives on each neighbor.Child's embedded IndirectNeighbor) but
// drives the shared meshnet.Arena's child bitmask and asks the
// MeshForwarder to build fragments.
type Sender struct {
	arena     *meshnet.Arena
	forwarder meshnet.MeshForwarder

	pending map[int]pendingFragment // keyed by child index
}

// New returns a Sender operating over arena and fwd.
func New(arena *meshnet.Arena, fwd meshnet.MeshForwarder) *Sender {
	return &Sender{
		arena:     arena,
		forwarder: fwd,
		pending:   make(map[int]pendingFragment),
	}
}

// AddMessage marks msg as pending delivery to the child at childIndex.
func (s *Sender) AddMessage(msg *meshnet.Message, child *neighbor.Child, childIndex int) {
	if msg.Pending.IsBitSet(childIndex) {
		return
	}
	msg.Pending.SetBit(childIndex)
	child.Indirect.QueuedCount++
}

// RemoveMessage clears msg's pending bit for childIndex. If msg was the
// neighbor's current indirect message, a message-update is requested per
// the replace/purge protocol (spec.md §4.4) instead of clearing
// MessageIndex synchronously, since a send may already be in progress.
func (s *Sender) RemoveMessage(msg *meshnet.Message, child *neighbor.Child, childIndex int) {
	if !msg.Pending.IsBitSet(childIndex) {
		s.arena.ReleaseIfDone(msg.Index)
		return
	}
	msg.Pending.ClearBit(childIndex)
	if child.Indirect.QueuedCount > 0 {
		child.Indirect.QueuedCount--
	}
	if child.Indirect.MessageIndex == msg.Index {
		s.RequestMessageUpdate(child, childIndex)
	}
	s.arena.ReleaseIfDone(msg.Index)
}

// ClearAll removes every message queued for childIndex, used when a
// child detaches.
func (s *Sender) ClearAll(child *neighbor.Child, childIndex int) {
	s.arena.ForEach(func(m *meshnet.Message) bool {
		if m.Pending.IsBitSet(childIndex) {
			m.Pending.ClearBit(childIndex)
			s.arena.ReleaseIfDone(m.Index)
		}
		return true
	})
	child.Indirect.QueuedCount = 0
	child.Indirect.MessageIndex = neighbor.NoMessage
	child.Indirect.FragmentOffset = 0
	child.Indirect.IndirectAttempts = 0
	child.Indirect.CslAttempts = 0
	child.Indirect.WaitingForMessageUpdate = false
	delete(s.pending, childIndex)
}

// FindQueued returns the first message queued for childIndex matching
// predicate, or nil.
func (s *Sender) FindQueued(child *neighbor.Child, childIndex int, predicate func(*meshnet.Message) bool) *meshnet.Message {
	var found *meshnet.Message
	s.arena.ForEach(func(m *meshnet.Message) bool {
		if m.Pending.IsBitSet(childIndex) && predicate(m) {
			found = m
			return false
		}
		return true
	})
	return found
}

// SetUseShortAddress toggles whether frames to child address it by its
// short (RLOC16) or extended MAC address.
func (s *Sender) SetUseShortAddress(child *neighbor.Child, use bool) {
	child.Indirect.UseShortAddress = use
}

// OnChildModeChange implements spec.md §4.4's sleepy/rx-on transition
// rule: becoming rx-on-when-idle converts every queued indirect message
// for this child to direct (its bit cleared, the message's DirectTx flag
// set) and clears the current-indirect pointer; the reverse transition
// leaves already-queued direct messages alone; only newly queued ones go
// indirect again.
func (s *Sender) OnChildModeChange(child *neighbor.Child, childIndex int, oldMode meshtlv.DeviceMode) {
	wasRxOn := oldMode.Has(meshtlv.ModeRxOnWhenIdle)
	isRxOn := child.Mode.Has(meshtlv.ModeRxOnWhenIdle)
	if wasRxOn || !isRxOn {
		return
	}
	s.arena.ForEach(func(m *meshnet.Message) bool {
		if m.Pending.IsBitSet(childIndex) {
			m.Pending.ClearBit(childIndex)
			m.DirectTx = true
		}
		return true
	})
	child.Indirect.QueuedCount = 0
	child.Indirect.MessageIndex = neighbor.NoMessage
	child.Indirect.FragmentOffset = 0
	delete(s.pending, childIndex)
}

// RequestMessageUpdate marks childIndex's neighbor as awaiting a MAC
// purge/replace of its in-flight frame. FrameChangeDone is the only
// caller that clears this and installs a new current message.
func (s *Sender) RequestMessageUpdate(child *neighbor.Child, childIndex int) {
	child.Indirect.WaitingForMessageUpdate = true
}

// FrameChangeDone is invoked by the MAC once it has purged or replaced
// the pending frame following a RequestMessageUpdate; it is the only
// path that installs a new current indirect message (spec.md §4.4).
func (s *Sender) FrameChangeDone(child *neighbor.Child, childIndex int) {
	child.Indirect.WaitingForMessageUpdate = false
	s.selectNextMessage(child, childIndex)
}

func (s *Sender) selectNextMessage(child *neighbor.Child, childIndex int) {
	var found *meshnet.Message
	s.arena.ForEach(func(m *meshnet.Message) bool {
		if m.Pending.IsBitSet(childIndex) {
			found = m
			return false
		}
		return true
	})
	if found != nil {
		child.Indirect.MessageIndex = found.Index
	} else {
		child.Indirect.MessageIndex = neighbor.NoMessage
	}
	child.Indirect.FragmentOffset = 0
}

// PrepareFrame builds the next frame to send to child on a data-poll or
// CSL opportunity. nextFrameCounter/nextKeyID/nextSeq are the values the
// caller would use for a fresh (non-retransmission) frame; they are
// ignored in favor of the neighbor's saved values whenever a
// retransmission is in flight.
func (s *Sender) PrepareFrame(child *neighbor.Child, childIndex int, dst meshtlv.ExtAddr, nextFrameCounter uint32, nextKeyID, nextSeq uint8) (PreparedFrame, error) {
	in := &child.Indirect
	if in.MessageIndex == neighbor.NoMessage {
		s.selectNextMessage(child, childIndex)
	}
	if in.MessageIndex == neighbor.NoMessage {
		return PreparedFrame{Empty: true}, nil
	}
	msg := s.arena.At(in.MessageIndex)
	if msg == nil || !msg.Pending.IsBitSet(childIndex) {
		// The current message was replaced or removed out from under us
		// (e.g. by RemoveMessage while a send was already scheduled);
		// purge and fall back to an empty frame for this poll.
		s.RequestMessageUpdate(child, childIndex)
		in.MessageIndex = neighbor.NoMessage
		return PreparedFrame{Empty: true}, nil
	}

	retransmission := in.IndirectAttempts > 0 || in.CslAttempts > 0
	counter, keyID, seq := nextFrameCounter, nextKeyID, nextSeq
	if retransmission {
		counter, keyID, seq = in.SavedFrameCounter, in.SavedKeyID, in.SavedSeq
	} else {
		in.SavedFrameCounter, in.SavedKeyID, in.SavedSeq = counter, keyID, seq
	}

	payload, nextOffset, done, err := s.forwarder.PrepareFragment(msg.Index, in.FragmentOffset, dst, in.UseShortAddress)
	if err != nil {
		return PreparedFrame{}, err
	}
	s.pending[childIndex] = pendingFragment{msgIndex: msg.Index, nextOffset: nextOffset, done: done}

	return PreparedFrame{
		Payload:          payload,
		FramePending:     in.QueuedCount > 1,
		IsRetransmission: retransmission,
		FrameCounter:     counter,
		KeyID:            keyID,
		Seq:              seq,
	}, nil
}

// OnFrameSent reports the outcome of the frame PrepareFrame most recently
// built for child. Success clears both attempt counters and advances the
// fragment offset (or completes and pops the message once the last
// fragment is acked); NoAck/Abort increment the matching attempt counter
// and, at MaxIndirectAttempts, abandon the message outright.
func (s *Sender) OnFrameSent(child *neighbor.Child, childIndex int, useCsl bool, result FrameTxResult) error {
	in := &child.Indirect
	pf, ok := s.pending[childIndex]
	if !ok {
		return nil
	}
	delete(s.pending, childIndex)

	if result == TxResultSuccess {
		in.IndirectAttempts = 0
		in.CslAttempts = 0
		in.TxSuccess = true
		if pf.done {
			return s.completeMessage(child, childIndex, pf.msgIndex)
		}
		in.FragmentOffset = pf.nextOffset
		return nil
	}

	if useCsl {
		in.CslAttempts++
	} else {
		in.IndirectAttempts++
	}
	if in.IndirectAttempts >= MaxIndirectAttempts || in.CslAttempts >= MaxIndirectAttempts {
		return s.abandonMessage(child, childIndex, pf.msgIndex)
	}
	return nil
}

func (s *Sender) completeMessage(child *neighbor.Child, childIndex int, msgIndex int) error {
	if err := s.forwarder.MarkDelivered(msgIndex, childIndex); err != nil {
		return err
	}
	if msg := s.arena.At(msgIndex); msg != nil {
		msg.Pending.ClearBit(childIndex)
		s.arena.ReleaseIfDone(msgIndex)
	}
	if child.Indirect.QueuedCount > 0 {
		child.Indirect.QueuedCount--
	}
	s.selectNextMessage(child, childIndex)
	return nil
}

func (s *Sender) abandonMessage(child *neighbor.Child, childIndex int, msgIndex int) error {
	if msg := s.arena.At(msgIndex); msg != nil {
		msg.Pending.ClearBit(childIndex)
		s.arena.ReleaseIfDone(msgIndex)
	}
	if child.Indirect.QueuedCount > 0 {
		child.Indirect.QueuedCount--
	}
	child.Indirect.IndirectAttempts = 0
	child.Indirect.CslAttempts = 0
	s.selectNextMessage(child, childIndex)
	return nil
}

// QueuedCountMatchesArena reports whether child.Indirect.QueuedCount
// equals the number of arena messages whose bit is set for childIndex —
// spec.md §8's indirect-queue-accounting invariant, exposed for tests.
func (s *Sender) QueuedCountMatchesArena(child *neighbor.Child, childIndex int) bool {
	n := 0
	s.arena.ForEach(func(m *meshnet.Message) bool {
		if m.Pending.IsBitSet(childIndex) {
			n++
		}
		return true
	})
	return int(child.Indirect.QueuedCount) == n
}
