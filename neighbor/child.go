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
	"fmt"
	"net/netip"

	"github.com/openthread-go/meshlink/meshtlv"
)

// MaxRegisteredAddresses bounds Child.Addresses.
const MaxRegisteredAddresses = 10

// MaxRequestedTLVs bounds ChildAuxState's Attached variant, per the TLV
// Request TLV's own limit.
const MaxRequestedTLVs = 6

// auxKind discriminates ChildAuxState's two variants. A Child's attach
// challenge and its post-attach requested-TLV list are mutually exclusive
// uses of the same slot in the lifecycle (spec.md's redesign note: "union
// of attach-challenge and requested-TLV list sharing storage in a Child");
// reifying the union as an explicit sum type instead of two independently
// optional fields makes that exclusivity a compile-time invariant instead
// of a convention.
type auxKind uint8

const (
	auxNone auxKind = iota
	auxAttaching
	auxAttached
)

// ChildAuxState is the reified union described above: Attaching carries
// the 8-byte challenge issued in a ParentResponse/ChildIdResponse pending
// the child's proof in ChildIdRequest; Attached carries the up-to-6 TLV
// types the child asked to receive, once the attach has completed.
type ChildAuxState struct {
	kind          auxKind
	challenge     meshtlv.Challenge
	requestedTLVs []meshtlv.Type
}

// SetAttaching transitions to the Attaching variant, discarding any
// previously stored requested-TLV list.
func (a *ChildAuxState) SetAttaching(challenge meshtlv.Challenge) {
	a.kind = auxAttaching
	a.challenge = challenge
	a.requestedTLVs = nil
}

// SetAttached transitions to the Attached variant, discarding the
// challenge. tlvs is truncated to MaxRequestedTLVs.
func (a *ChildAuxState) SetAttached(tlvs []meshtlv.Type) {
	a.kind = auxAttached
	a.challenge = meshtlv.Challenge{}
	if len(tlvs) > MaxRequestedTLVs {
		tlvs = tlvs[:MaxRequestedTLVs]
	}
	a.requestedTLVs = append([]meshtlv.Type(nil), tlvs...)
}

// Clear resets to the zero (neither) variant.
func (a *ChildAuxState) Clear() {
	*a = ChildAuxState{}
}

// Challenge returns the stored challenge and true iff in the Attaching
// variant.
func (a *ChildAuxState) Challenge() (meshtlv.Challenge, bool) {
	return a.challenge, a.kind == auxAttaching
}

// RequestedTLVs returns the stored TLV-request list and true iff in the
// Attached variant.
func (a *ChildAuxState) RequestedTLVs() ([]meshtlv.Type, bool) {
	return a.requestedTLVs, a.kind == auxAttached
}

// Child is a Peer plus the per-child state the spec requires.
type Child struct {
	Peer

	Mode                meshtlv.DeviceMode
	TimeoutSeconds      uint32
	SupervisionInterval uint16
	Addresses           []netip.Addr
	Aux                 ChildAuxState

	Csl      CslInfo
	Indirect IndirectNeighbor
}

// AddAddress appends addr to the child's registered address list,
// enforcing invariant (c) of spec.md §3: registered address count must
// not exceed MaxRegisteredAddresses.
func (c *Child) AddAddress(addr netip.Addr) error {
	if len(c.Addresses) >= MaxRegisteredAddresses {
		return fmt.Errorf("neighbor: child %s: address registration full", c.ExtAddr)
	}
	c.Addresses = append(c.Addresses, addr)
	return nil
}

// Valid checks invariant (b) of spec.md §3: a Child in state Valid must
// have an assigned RLOC16 and a non-zero timeout.
func (c *Child) Valid() bool {
	if c.State != StateValid {
		return true // invariant only applies to Valid children
	}
	return c.Rloc16.IsValid() && c.TimeoutSeconds != 0
}

// Reset clears the child back to its zero, unused state.
func (c *Child) Reset() {
	*c = Child{}
	c.Indirect = NewIndirectNeighbor()
}
