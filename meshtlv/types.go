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

// Package meshtlv implements the MLE wire codec: message framing, the
// TLV type catalog, and the AES-CCM secured-frame construction described
// in the Mesh Link Establishment protocol.
package meshtlv

import (
	"encoding/binary"
	"fmt"

	version "github.com/hashicorp/go-version"
)

// InvalidRloc16 is the sentinel RLOC16 meaning "not yet assigned".
const InvalidRloc16 Rloc16 = 0xfffe

// Rloc16 is a 16-bit mesh-routing locator. The top bits identify the
// owning router, the bottom bits a child within that router.
type Rloc16 uint16

// RouterIDMask and ChildIDMask split RLOC16 into its router/child parts,
// as per the Thread addressing scheme (9-bit router id, 7-bit child id).
const (
	RouterIDMask   = 0xfc00
	ChildIDMask    = 0x03ff
	RouterIDOffset = 10
)

// RouterID returns the router-id portion of the RLOC16.
func (r Rloc16) RouterID() uint8 {
	return uint8((uint16(r) & RouterIDMask) >> RouterIDOffset)
}

// ChildID returns the child-id portion of the RLOC16.
func (r Rloc16) ChildID() uint16 {
	return uint16(r) & ChildIDMask
}

// IsValid reports whether the RLOC16 is not the InvalidRloc16 sentinel.
func (r Rloc16) IsValid() bool {
	return r != InvalidRloc16
}

// IsChild reports whether this RLOC16 designates a child (non-zero child id).
func (r Rloc16) IsChild() bool {
	return r.ChildID() != 0
}

func (r Rloc16) String() string {
	return fmt.Sprintf("0x%04x", uint16(r))
}

// ExtAddr is the 8-byte IEEE EUI-64 extended address uniquely identifying a device.
type ExtAddr [8]byte

func (a ExtAddr) String() string {
	return fmt.Sprintf("%02x%02x%02x%02x%02x%02x%02x%02x", a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7])
}

// IsZero reports whether the address is the all-zero sentinel.
func (a ExtAddr) IsZero() bool {
	return a == ExtAddr{}
}

// KeySequence is the monotonically increasing counter selecting the
// current MLE/MAC key from the network key schedule.
type KeySequence uint32

// KeyIDFromSequence derives the 1-byte key id used on the wire from a key sequence.
func KeyIDFromSequence(seq KeySequence) uint8 {
	return uint8(seq&0x7f) + 1
}

// ResolveKeySequence recovers the full key sequence a wire key id refers
// to, by disambiguating its 7-bit value against base, a sequence already
// known to be close to the sender's actual one (the neighbor's last
// adopted sequence, or this device's own current sequence for a neighbor
// never seen under security before). KeyIDFromSequence only carries
// seq&0x7f, so the true sequence is base shifted by the signed difference
// between the two low-7-bit values, picking the representative within 64
// of base — a jump larger than that aliases to a smaller one and cannot
// be told apart from it by the wire id alone.
func ResolveKeySequence(base KeySequence, keyID uint8) KeySequence {
	target := int64(keyID-1) & 0x7f
	low := int64(base) & 0x7f
	diff := (target - low) % 128
	if diff > 64 {
		diff -= 128
	} else if diff < -64 {
		diff += 128
	}
	return KeySequence(int64(base) + diff)
}

// Challenge is an 8-byte random value used to match ParentRequest/ParentResponse
// and ChildIdRequest/ChildIdResponse exchanges, and Child Update challenges.
type Challenge [8]byte

// DeviceMode is the 4-flag mode byte carried in the Mode TLV.
type DeviceMode uint8

// Device mode flags, Thread "Mode TLV" bit layout.
const (
	ModeRxOnWhenIdle       DeviceMode = 1 << 3
	ModeFullThreadDevice   DeviceMode = 1 << 1
	ModeFullNetworkData    DeviceMode = 1 << 0
	ModeSecureDataRequests DeviceMode = 1 << 2
)

// Has reports whether the given flag is set.
func (m DeviceMode) Has(flag DeviceMode) bool {
	return m&flag != 0
}

func (m DeviceMode) String() string {
	s := ""
	if m.Has(ModeRxOnWhenIdle) {
		s += "r"
	}
	if m.Has(ModeFullThreadDevice) {
		s += "d"
	}
	if m.Has(ModeFullNetworkData) {
		s += "n"
	}
	if m.Has(ModeSecureDataRequests) {
		s += "-"
	}
	return s
}

// LeaderData carries partition-id, weighting, and data-version information
// distributed by the partition leader.
type LeaderData struct {
	PartitionID       uint32
	Weighting         uint8
	DataVersion       uint8
	StableDataVersion uint8
	LeaderRouterID    uint8
}

// MarshalBinaryTo writes the 8-byte LeaderData value into b.
func (l *LeaderData) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < 8 {
		return 0, fmt.Errorf("meshtlv: buffer too small for LeaderData")
	}
	binary.BigEndian.PutUint32(b, l.PartitionID)
	b[4] = l.Weighting
	b[5] = l.DataVersion
	b[6] = l.StableDataVersion
	b[7] = l.LeaderRouterID
	return 8, nil
}

// UnmarshalBinary parses an 8-byte LeaderData value from b.
func (l *LeaderData) UnmarshalBinary(b []byte) error {
	if len(b) < 8 {
		return fmt.Errorf("meshtlv: short LeaderData")
	}
	l.PartitionID = binary.BigEndian.Uint32(b)
	l.Weighting = b[4]
	l.DataVersion = b[5]
	l.StableDataVersion = b[6]
	l.LeaderRouterID = b[7]
	return nil
}

// ScanMask controls which device classes a ParentRequest targets.
type ScanMask uint8

// ScanMask bit values.
const (
	ScanMaskRouter   ScanMask = 1 << 7
	ScanMaskREED     ScanMask = 1 << 6
	ScanMaskSubChild ScanMask = 1 << 5
)

// Has reports whether the given scan-mask bit is set.
func (s ScanMask) Has(flag ScanMask) bool {
	return s&flag != 0
}

// LinkMargin is the two-way signal margin estimate, in dB, reported in the
// Connectivity and LinkMargin TLVs.
type LinkMargin uint8

// LinkQuality buckets a LinkMargin into one of four classes, as Thread does
// to rank candidate parents: 3 is best, 0 is "no link".
type LinkQuality uint8

// LinkQuality thresholds in dB, from the Thread link-quality table.
const (
	linkQuality3Threshold LinkMargin = 20
	linkQuality2Threshold LinkMargin = 10
	linkQuality1Threshold LinkMargin = 2
)

// LinkQualityFromMargin converts a raw link margin into its LQ class.
func LinkQualityFromMargin(m LinkMargin) LinkQuality {
	switch {
	case m >= linkQuality3Threshold:
		return 3
	case m >= linkQuality2Threshold:
		return 2
	case m >= linkQuality1Threshold:
		return 1
	default:
		return 0
	}
}

// asDottedVersion renders a raw Version TLV value as a dotted version
// string so it can be ordered with the same library the teacher uses for
// its own release-version comparisons (calnex/firmware.go's
// version.NewVersion/LessThan). The Version TLV has no minor/patch
// component, so it becomes the major component of an otherwise-zero
// version.
func asDottedVersion(v uint16) *version.Version {
	// version.NewVersion only fails on a malformed string; fmt.Sprintf's
	// output is always well-formed, so the error is unreachable.
	parsed, _ := version.NewVersion(fmt.Sprintf("%d.0.0", v))
	return parsed
}

// CompareProtocolVersion orders two MLE Version TLV values, returning a
// negative number if a < b, zero if equal, and positive if a > b - the
// same three-way contract as (*version.Version).Compare.
func CompareProtocolVersion(a, b uint16) int {
	return asDottedVersion(a).Compare(asDottedVersion(b))
}
