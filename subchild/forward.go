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

package subchild

import (
	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/neighbor"
)

// ForwardDecision is what Decide resolves a frame's ultimate RLOC16
// destination to: either this device itself (Rewrite false) or another
// link-layer hop the frame's addressing must be rewritten to before
// retransmission.
type ForwardDecision struct {
	NextHop meshtlv.Rloc16
	Rewrite bool
}

// IsSubChildOf implements spec.md §4.9's forwarding primitive: true iff
// the high viaPrefixLength bits of dst equal those of via, i.e. dst falls
// within the address block owned by the subtree rooted at via.
func IsSubChildOf(dst, via meshtlv.Rloc16, viaPrefixLength uint8) bool {
	if viaPrefixLength == 0 {
		return true
	}
	if viaPrefixLength >= 16 {
		return dst == via
	}
	shift := 16 - viaPrefixLength
	mask := uint16(0xffff) << shift
	return uint16(dst)&mask == uint16(via)&mask
}

// NextHop returns the first Valid sub-child whose subtree contains dst
// ("the first child in state Valid under which this predicate holds",
// spec.md §4.9), and false if none of this device's admitted sub-children
// own that address block.
func (ps *ParentSide) NextHop(dst meshtlv.Rloc16) (*neighbor.Child, bool) {
	var found *neighbor.Child
	ps.table.Iterate(neighbor.FilterValid, func(c *neighbor.Child) bool {
		if IsSubChildOf(dst, c.Rloc16, ps.cfg.subtreePrefixLength()) {
			found = c
			return false
		}
		return true
	})
	return found, found != nil
}

// Decide resolves dst against this device's own RLOC16 and its sub-child
// table: nothing to do if dst is this device itself, the matching
// sub-child if dst falls under this device's own subtree, otherwise the
// next hop up the tree (this device's real parent).
func (ps *ParentSide) Decide(dst, ownRloc16, parentRloc16 meshtlv.Rloc16) ForwardDecision {
	if dst == ownRloc16 {
		return ForwardDecision{}
	}
	if child, ok := ps.NextHop(dst); ok {
		return ForwardDecision{NextHop: child.Rloc16, Rewrite: true}
	}
	return ForwardDecision{NextHop: parentRloc16, Rewrite: true}
}

// ForwardFrame rewrites frame's link-layer addressing per Decide and
// returns the frame ready for retransmission. It never touches
// frame.Payload: spec.md §8 scenario 6 requires a forwarded Child Update
// Request to reach the sub-child "with the original payload intact", and
// since this relay runs below MLE's own secured-frame layer — the payload
// here is whatever already-sealed MLE datagram bytes the frame carries —
// there is nothing for this hop to decrypt or re-encrypt, only to
// re-address.
func (ps *ParentSide) ForwardFrame(dst, ownRloc16, parentRloc16 meshtlv.Rloc16, parentExt meshtlv.ExtAddr, frame meshnet.Frame) (meshnet.Frame, bool) {
	d := ps.Decide(dst, ownRloc16, parentRloc16)
	if !d.Rewrite {
		return frame, false
	}
	if child, ok := ps.NextHop(dst); ok {
		frame.DstExt = child.ExtAddr
		frame.DstShort = child.Rloc16
		return frame, true
	}
	frame.DstExt = parentExt
	frame.DstShort = parentRloc16
	return frame, true
}
