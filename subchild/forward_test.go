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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/neighbor"
)

// This mirrors the three-node chain of spec.md §8 scenario 6: an FTD at
// 0x2800, a directly-attached MTD sub-child parent at 0x2810 with
// prefix_length=4/address_space=4, and a further sub-child MTD at 0x2811
// attached under it.
func TestIsSubChildOfScenario6(t *testing.T) {
	dst := meshtlv.Rloc16(0x2811)
	via := meshtlv.Rloc16(0x2811)
	require.True(t, IsSubChildOf(dst, via, 8))
}

func TestIsSubChildOfRejectsOutsideSubtree(t *testing.T) {
	dst := meshtlv.Rloc16(0x2821)
	via := meshtlv.Rloc16(0x2811)
	require.False(t, IsSubChildOf(dst, via, 8))
}

func TestIsSubChildOfZeroPrefixMatchesEverything(t *testing.T) {
	require.True(t, IsSubChildOf(meshtlv.Rloc16(0x1234), meshtlv.Rloc16(0x5678), 0))
}

func TestIsSubChildOfFullPrefixRequiresExactMatch(t *testing.T) {
	require.True(t, IsSubChildOf(meshtlv.Rloc16(0x2811), meshtlv.Rloc16(0x2811), 16))
	require.False(t, IsSubChildOf(meshtlv.Rloc16(0x2811), meshtlv.Rloc16(0x2812), 16))
}

func newTestParentSide(t *testing.T) *ParentSide {
	cfg := DefaultConfig()
	cfg.PrefixLength = 4
	cfg.AddressSpace = 4
	ownRloc16 := meshtlv.Rloc16(0x2810)
	return New(cfg, nil, nil, nil,
		func() meshtlv.Rloc16 { return ownRloc16 },
		func() meshtlv.KeySequence { return 0 },
	)
}

// ForwardFrame relays a Child Update Request from the FTD down to the
// registered sub-child without touching its payload ("payload intact",
// spec.md §8 scenario 6).
func TestForwardFrameKeepsPayloadIntact(t *testing.T) {
	ps := newTestParentSide(t)
	subChildExt := meshtlv.ExtAddr{9, 9, 9, 9, 9, 9, 9, 9}
	subChildRloc16 := meshtlv.Rloc16(0x2811)

	child, err := ps.table.NewChild()
	require.NoError(t, err)
	child.ExtAddr = subChildExt
	child.Rloc16 = subChildRloc16
	child.State = neighbor.StateValid
	ps.table.AddChild(child)

	sealedPayload := []byte{0xde, 0xad, 0xbe, 0xef}
	frame := meshnet.Frame{
		SrcExt:  meshtlv.ExtAddr{0, 0, 0, 0, 0, 0, 0, 1},
		DstExt:  meshtlv.ExtAddr{1, 2, 3, 4, 5, 6, 7, 8},
		Payload: sealedPayload,
	}

	ownRloc16 := meshtlv.Rloc16(0x2810)
	parentRloc16 := meshtlv.Rloc16(0x2800)
	parentExt := meshtlv.ExtAddr{0, 0, 0, 0, 0, 0, 0, 1}

	out, rewritten := ps.ForwardFrame(subChildRloc16, ownRloc16, parentRloc16, parentExt, frame)
	require.True(t, rewritten)
	require.Equal(t, subChildExt, out.DstExt)
	require.Equal(t, subChildRloc16, out.DstShort)
	require.Equal(t, sealedPayload, out.Payload, "forwarding must not touch the sealed payload")
}

func TestForwardFrameToOwnAddressIsNotRewritten(t *testing.T) {
	ps := newTestParentSide(t)
	ownRloc16 := meshtlv.Rloc16(0x2810)
	parentRloc16 := meshtlv.Rloc16(0x2800)
	parentExt := meshtlv.ExtAddr{0, 0, 0, 0, 0, 0, 0, 1}

	frame := meshnet.Frame{Payload: []byte{1, 2, 3}}
	out, rewritten := ps.ForwardFrame(ownRloc16, ownRloc16, parentRloc16, parentExt, frame)
	require.False(t, rewritten)
	require.Equal(t, frame, out)
}

func TestForwardFrameUpstreamGoesToParentWhenNotASubChild(t *testing.T) {
	ps := newTestParentSide(t)
	ownRloc16 := meshtlv.Rloc16(0x2810)
	parentRloc16 := meshtlv.Rloc16(0x2800)
	parentExt := meshtlv.ExtAddr{0, 0, 0, 0, 0, 0, 0, 1}

	frame := meshnet.Frame{Payload: []byte{1, 2, 3}}
	out, rewritten := ps.ForwardFrame(meshtlv.Rloc16(0x3000), ownRloc16, parentRloc16, parentExt, frame)
	require.True(t, rewritten)
	require.Equal(t, parentExt, out.DstExt)
	require.Equal(t, parentRloc16, out.DstShort)
}
