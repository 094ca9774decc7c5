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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/neighbor"
)

func TestClassifyMessage(t *testing.T) {
	cases := []struct {
		name             string
		cmd              meshtlv.Command
		challengeMatched bool
		want             MessageClass
	}{
		{"parent response with matched challenge", meshtlv.CommandParentResponse, true, ClassAuthoritative},
		{"parent response with stale challenge", meshtlv.CommandParentResponse, false, ClassUnknown},
		{"child id response with matched challenge", meshtlv.CommandChildIDResponse, true, ClassAuthoritative},
		{"child id response with stale challenge", meshtlv.CommandChildIDResponse, false, ClassUnknown},
		{"advertisement ignores challenge", meshtlv.CommandAdvertisement, false, ClassPeer},
		{"child update request ignores challenge", meshtlv.CommandChildUpdateRequest, false, ClassPeer},
		{"child update response ignores challenge", meshtlv.CommandChildUpdateResponse, false, ClassPeer},
		{"data response ignores challenge", meshtlv.CommandDataResponse, false, ClassPeer},
		{"unrecognized command", meshtlv.CommandAnnounce, true, ClassUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyMessage(tc.cmd, tc.challengeMatched))
		})
	}
}

func TestShouldAdoptKeySequence(t *testing.T) {
	cases := []struct {
		name          string
		class         MessageClass
		neighborState neighbor.State
		currentSeq    meshtlv.KeySequence
		msgSeq        meshtlv.KeySequence
		want          bool
	}{
		{"not newer than current is never adopted", ClassAuthoritative, neighbor.StateValid, 5, 5, false},
		{"older sequence is never adopted", ClassPeer, neighbor.StateValid, 5, 4, false},
		{"authoritative adopts any jump forward", ClassAuthoritative, neighbor.StateValid, 5, 9, true},
		{"authoritative adopts from a restored neighbor too", ClassAuthoritative, neighbor.StateRestored, 5, 6, true},
		{"peer from valid neighbor adopts a single step", ClassPeer, neighbor.StateValid, 5, 6, true},
		{"peer from valid neighbor rejects a multi-step jump", ClassPeer, neighbor.StateValid, 5, 7, false},
		{"peer from a non-valid neighbor never adopts", ClassPeer, neighbor.StateRestored, 5, 6, false},
		{"unknown class never adopts", ClassUnknown, neighbor.StateValid, 5, 6, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldAdoptKeySequence(tc.class, tc.neighborState, tc.currentSeq, tc.msgSeq)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCheckFrameCounter(t *testing.T) {
	cases := []struct {
		name            string
		neighborSeq     meshtlv.KeySequence
		msgSeq          meshtlv.KeySequence
		neighborCounter uint32
		msgCounter      uint32
		want            FrameCounterOutcome
	}{
		{"different key sequence always accepted", 5, 6, 100, 0, FrameAccept},
		{"equal sequence, counter ahead of last accepted", 5, 5, 100, 100, FrameAccept},
		{"equal sequence, counter beyond last accepted", 5, 5, 100, 101, FrameAccept},
		{"equal sequence, immediately-prior retransmission", 5, 5, 100, 99, FrameDuplicateUpdateRadio},
		{"equal sequence, stale counter further back", 5, 5, 100, 50, FrameDuplicateDrop},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CheckFrameCounter(tc.neighborSeq, tc.msgSeq, tc.neighborCounter, tc.msgCounter)
			require.Equal(t, tc.want, got)
		})
	}
}
