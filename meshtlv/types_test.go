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

package meshtlv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRloc16Parts(t *testing.T) {
	tests := []struct {
		in       Rloc16
		wantR    uint8
		wantC    uint16
		wantChld bool
	}{
		{in: 0x0000, wantR: 0, wantC: 0, wantChld: false},
		{in: 0x0c01, wantR: 3, wantC: 1, wantChld: true},
		{in: 0xfc00, wantR: 63, wantC: 0, wantChld: false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.wantR, tt.in.RouterID())
		require.Equal(t, tt.wantC, tt.in.ChildID())
		require.Equal(t, tt.wantChld, tt.in.IsChild())
	}
	require.False(t, InvalidRloc16.IsValid())
	require.True(t, Rloc16(0x1234).IsValid())
}

func TestKeyIDFromSequence(t *testing.T) {
	require.Equal(t, uint8(1), KeyIDFromSequence(0))
	require.Equal(t, uint8(2), KeyIDFromSequence(1))
	require.Equal(t, uint8(1), KeyIDFromSequence(128))
}

func TestResolveKeySequence(t *testing.T) {
	tests := []struct {
		name string
		base KeySequence
		seq  KeySequence // the actual sequence the sender used
	}{
		{name: "same sequence", base: 10, seq: 10},
		{name: "one ahead", base: 10, seq: 11},
		{name: "five ahead (spec.md scenario 2)", base: 10, seq: 15},
		{name: "one behind", base: 10, seq: 9},
		{name: "near 7-bit rollover forward", base: 125, seq: 130},
		{name: "near 7-bit rollover backward", base: 130, seq: 125},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyID := KeyIDFromSequence(tt.seq)
			require.Equal(t, tt.seq, ResolveKeySequence(tt.base, keyID))
		})
	}
}

func TestDeviceModeString(t *testing.T) {
	m := ModeRxOnWhenIdle | ModeFullThreadDevice | ModeFullNetworkData
	require.True(t, m.Has(ModeRxOnWhenIdle))
	require.False(t, m.Has(ModeSecureDataRequests))
	require.Equal(t, "rdn", m.String())
}

func TestLeaderDataRoundTrip(t *testing.T) {
	in := LeaderData{PartitionID: 0xaabbccdd, Weighting: 64, DataVersion: 5, StableDataVersion: 4, LeaderRouterID: 12}
	buf := make([]byte, 8)
	n, err := in.MarshalBinaryTo(buf)
	require.NoError(t, err)
	require.Equal(t, 8, n)

	var out LeaderData
	require.NoError(t, out.UnmarshalBinary(buf))
	require.Equal(t, in, out)
}

func TestLinkQualityFromMargin(t *testing.T) {
	tests := []struct {
		margin LinkMargin
		want   LinkQuality
	}{
		{margin: 0, want: 0},
		{margin: 1, want: 0},
		{margin: 2, want: 1},
		{margin: 9, want: 1},
		{margin: 10, want: 2},
		{margin: 19, want: 2},
		{margin: 20, want: 3},
		{margin: 100, want: 3},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, LinkQualityFromMargin(tt.margin))
	}
}

func TestExtAddrIsZero(t *testing.T) {
	var zero ExtAddr
	require.True(t, zero.IsZero())
	nonZero := ExtAddr{1}
	require.False(t, nonZero.IsZero())
	require.Equal(t, "0100000000000000", nonZero.String())
}
