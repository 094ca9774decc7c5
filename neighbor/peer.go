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

// Package neighbor implements the neighbor and child table: typed storage
// of discovered peers and their per-link state (frame counters, CSL
// parameters, indirect-tx bookkeeping, registered addresses).
package neighbor

import (
	"time"

	"github.com/openthread-go/meshlink/meshtlv"
)

// State is a Peer's position in the MLE link-establishment lifecycle.
type State uint8

// Peer states, in the order a successful attach passes through them.
const (
	StateInvalid State = iota
	StateRestored
	StateParentRequest
	StateParentResponse
	StateLinkRequest
	StateLinkAccept
	StateChildIDRequest
	StateValid
	StateDetachPending
)

var stateNames = map[State]string{
	StateInvalid:        "invalid",
	StateRestored:       "restored",
	StateParentRequest:  "parent_request",
	StateParentResponse: "parent_response",
	StateLinkRequest:    "link_request",
	StateLinkAccept:     "link_accept",
	StateChildIDRequest: "child_id_request",
	StateValid:          "valid",
	StateDetachPending:  "detach_pending",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// IsInUse reports whether a peer in this state occupies a table slot.
func (s State) IsInUse() bool { return s != StateInvalid }

// CslInfo is the CSL synchronization state shared by Child, Parent, and
// ParentCandidate: period in units of 10 symbols, sampled channel (0 means
// "use the PAN channel"), phase offset, and the accuracy/uncertainty the
// peer reported in its CSL Clock Accuracy TLV.
type CslInfo struct {
	Period        uint16
	Channel       uint8
	PhaseUs       uint32
	LastRxUs      uint64
	AccuracyPPM   uint8
	UncertaintyUs uint32
	LastSyncUs    uint64
}

// Synchronized reports whether this CslInfo describes an active CSL
// relationship: non-zero period and a last-sync timestamp not in the
// future relative to nowUs.
func (c *CslInfo) Synchronized(nowUs uint64) bool {
	return c.Period > 0 && c.LastSyncUs <= nowUs
}

// Peer is the common state every discovered device carries, regardless of
// whether it ends up a Child or a Parent.
type Peer struct {
	ExtAddr   meshtlv.ExtAddr
	Rloc16    meshtlv.Rloc16
	State     State
	LastHeard time.Time

	LinkFrameCounter uint32
	MleFrameCounter  uint32
	KeySequence      meshtlv.KeySequence

	AvgRSS         float64
	LinkQualityIn  meshtlv.LinkQuality
	LinkQualityOut meshtlv.LinkQuality
}

// Reset clears a Peer back to its zero, unused state, ready for reuse by
// the table's free list.
func (p *Peer) Reset() {
	*p = Peer{}
}

// IndirectNeighbor is the indirect-transmission view over a Peer: the
// bookkeeping the indirect sender (C4) maintains per sleepy neighbor.
// MessageIndex is an owning reference into the mesh forwarder's send-queue
// arena (meshnet.Arena), or -1 when no message is currently being
// prepared for this neighbor.
type IndirectNeighbor struct {
	MessageIndex            int
	FragmentOffset          uint16 // ≤ 1<<14, enforced by indirect.Sender
	QueuedCount             uint16 // ≤ 1<<14; must equal forwarder queue depth tagged for this neighbor
	TxSuccess               bool
	UseShortAddress         bool
	SourceMatchPending      bool
	WaitingForMessageUpdate bool

	// IndirectAttempts and CslAttempts count consecutive NoAck outcomes
	// for the current message on the data-poll and CSL paths
	// respectively. While either is non-zero the next outgoing frame MUST
	// reuse SavedFrameCounter/SavedKeyID/SavedSeq and set the 15.4
	// is-a-retransmission flag (spec.md §4.4, "retransmission
	// continuity").
	IndirectAttempts uint8
	CslAttempts      uint8

	SavedFrameCounter uint32
	SavedKeyID        uint8
	SavedSeq          uint8
}

// NoMessage is the sentinel MessageIndex value meaning "nothing queued".
const NoMessage = -1

// NewIndirectNeighbor returns an IndirectNeighbor with no message queued.
func NewIndirectNeighbor() IndirectNeighbor {
	return IndirectNeighbor{MessageIndex: NoMessage}
}
