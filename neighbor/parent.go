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

import "github.com/openthread-go/meshlink/meshtlv"

// Parent is a Peer plus the attributes the attach cascade and CSL
// scheduler need about this device's own upstream router: its
// advertised leader cost, the round-trip time estimate for CSL-delivered
// frames to it (used by the sub-child extension's detach-pending timer),
// whether it is itself a sub-child parent, and how many hops separate it
// from the nearest FTD.
type Parent struct {
	Peer

	LeaderCost      uint8
	CslRTTUs        uint64
	IsSubChild      bool
	HopsToFTDParent uint8

	Csl CslInfo
}

// ParentCandidate is a Parent plus the bookkeeping the attach cycle needs
// while ranking ParentResponses: the challenge this device sent it, and
// the raw connectivity/link data the ranking cascade compares against
// other candidates.
type ParentCandidate struct {
	Parent

	// Challenge is the challenge this device most recently sent this
	// candidate (in a ParentRequest, then overwritten with PeerChallenge
	// once a ChildIdRequest goes out) — whatever this device currently
	// expects echoed back in a Response TLV.
	Challenge meshtlv.Challenge
	// PeerChallenge is the challenge the candidate issued in its
	// ParentResponse, which this device must echo in ChildIdRequest to
	// prove it is the same device that received that response.
	PeerChallenge meshtlv.Challenge
	LinkMargin    uint8

	ParentPriority   int8
	LinkQuality3     uint8
	LinkQuality2     uint8
	LinkQuality1     uint8
	SEDBufferSize    uint16
	SEDDatagramCount uint8
	ProtocolVersion  uint16

	IsRouter bool
}

// Reset clears the candidate back to its zero state, ready for reuse on
// the next attach cycle (spec.md §3: "it borrows... exactly one
// ParentCandidate, cleared between attach attempts").
func (c *ParentCandidate) Reset() {
	*c = ParentCandidate{}
}
