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

// Package subchild implements the Sub-Child Extension (C9): letting an
// MTD with spare RLOC16 address space act as a second-tier parent for
// further MTDs, forwarding attach and update traffic up and down the
// resulting two-tier mesh (spec.md §4.9).
package subchild

import "time"

// DetachPendingRTTMultiplier is how many CSL round-trip times a sub-child
// in DetachPending gets before this device gives up on a matching Child
// Update Response and frees its slot outright (spec.md §4.9). Given as a
// named constant rather than folded into Config since spec.md states the
// formula but not a configurable value for it.
const DetachPendingRTTMultiplier = 4

// Config holds the sub-child parent's own tunables: how much of its RLOC16
// address space it has left to hand out, how many sub-children it will
// admit, and the transient timers the attach handshake runs under.
type Config struct {
	// MaxSubChildren bounds the sub-child table's capacity.
	MaxSubChildren int `yaml:"max_sub_children"`

	// PrefixLength is the number of high bits of this device's own RLOC16
	// already fixed by its position in the regular mesh (spec.md §4.9:
	// sub-childing is only offered while prefix_length < 9).
	PrefixLength uint8 `yaml:"prefix_length"`

	// AddressSpace is the number of further bits this device allocates
	// among its own sub-children; together with PrefixLength it gives the
	// prefix length IsSubChildOf checks a sub-child's RLOC16 against.
	AddressSpace uint8 `yaml:"address_space"`

	// TransientAttachTimeout bounds a freshly admitted sub-child slot
	// before its Child Id Request must land, replaced by the child's own
	// reported Timeout TLV value once it does (spec.md §9's open question
	// on the original's hard-coded 100ms SetTimeout call).
	TransientAttachTimeout time.Duration `yaml:"transient_attach_timeout"`
}

// DefaultConfig returns the tunables this implementation ships with.
func DefaultConfig() *Config {
	return &Config{
		MaxSubChildren:         8,
		PrefixLength:           4,
		AddressSpace:           4,
		TransientAttachTimeout: 100 * time.Millisecond,
	}
}

// Eligible reports whether this device has any remaining RLOC16 address
// space left to offer sub-children (spec.md §4.9's prefix_length < 9
// gate).
func (c *Config) Eligible() bool {
	return c.PrefixLength < 9
}

// subtreePrefixLength is the number of high RLOC16 bits that identify the
// address block owned by this device's own sub-child subtree.
func (c *Config) subtreePrefixLength() uint8 {
	return c.PrefixLength + c.AddressSpace
}
