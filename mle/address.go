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

package mle

import (
	"net/netip"

	"github.com/openthread-go/meshlink/meshtlv"
)

// NetipFromExt derives a device's link-local IPv6 address from its
// extended address, the modified-EUI-64 IID construction 6LoWPAN uses
// throughout Thread: fe80::/64 followed by the extended address with its
// universal/local bit flipped. delayed.Sender stores destinations as
// netip.Addr (spec.md §3's DelayedSchedule record), so every path that
// schedules a send by extended address goes through this.
func NetipFromExt(ext meshtlv.ExtAddr) netip.Addr {
	var b [16]byte
	b[0], b[1] = 0xfe, 0x80
	copy(b[8:], ext[:])
	b[8] ^= 0x02
	return netip.AddrFrom16(b)
}

// ExtFromNetip reverses NetipFromExt, recovering the extended address a
// link-local destination was derived from. ok is false for any address
// that isn't a modified-EUI-64 link-local form this module produced
// itself (multicast destinations, routable addresses).
func ExtFromNetip(addr netip.Addr) (meshtlv.ExtAddr, bool) {
	if !addr.Is6() {
		return meshtlv.ExtAddr{}, false
	}
	b := addr.As16()
	if b[0] != 0xfe || b[1] != 0x80 {
		return meshtlv.ExtAddr{}, false
	}
	var ext meshtlv.ExtAddr
	copy(ext[:], b[8:])
	ext[0] ^= 0x02
	return ext, true
}
