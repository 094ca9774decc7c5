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
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/openthread-go/meshlink/meshnet/mocks"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/mle"
	"github.com/openthread-go/meshlink/neighbor"
)

func newHandshakeParentSide(t *testing.T) (*ParentSide, *mocks.MockRadioPort) {
	ctrl := gomock.NewController(t)
	radio := mocks.NewMockRadioPort(ctrl)
	radio.EXPECT().ExtAddress().Return(meshtlv.ExtAddr{1, 2, 3, 4, 5, 6, 7, 8}).AnyTimes()
	radio.EXPECT().SendUnicast(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	var masterKey [16]byte
	copy(masterKey[:], []byte("testmasterkey123"))

	cfg := DefaultConfig()
	ownRloc16 := meshtlv.Rloc16(0x2810)
	ps := New(cfg, radio, mle.NewMasterKeyStore(masterKey), nil,
		func() meshtlv.Rloc16 { return ownRloc16 },
		func() meshtlv.KeySequence { return 0 },
	)
	return ps, radio
}

func candidateScanMaskTLVs(challenge meshtlv.Challenge) []meshtlv.TLV {
	return []meshtlv.TLV{
		meshtlv.NewChallengeTLV(challenge[:]),
		&meshtlv.ScanMaskTLV{Mask: meshtlv.ScanMaskSubChild},
	}
}

func TestHandleParentRequestRejectsWithoutSubChildScanBit(t *testing.T) {
	ps, _ := newHandshakeParentSide(t)
	candExt := meshtlv.ExtAddr{9, 9, 9, 9, 9, 9, 9, 9}
	var challenge meshtlv.Challenge
	tlvs := []meshtlv.TLV{meshtlv.NewChallengeTLV(challenge[:]), &meshtlv.ScanMaskTLV{Mask: 0}}

	err := ps.HandleParentRequest(context.Background(), time.Now(), candExt, tlvs)
	require.Error(t, err)
	require.Equal(t, 0, ps.table.NumChildren())
}

func TestHandleParentRequestRejectsWhenNotEligible(t *testing.T) {
	ps, _ := newHandshakeParentSide(t)
	ps.cfg.PrefixLength = 12 // >= 9, no remaining address space
	candExt := meshtlv.ExtAddr{9, 9, 9, 9, 9, 9, 9, 9}
	var challenge meshtlv.Challenge

	err := ps.HandleParentRequest(context.Background(), time.Now(), candExt, candidateScanMaskTLVs(challenge))
	require.Error(t, err)
}

func TestFullSubChildAttachHandshake(t *testing.T) {
	ps, _ := newHandshakeParentSide(t)
	candExt := meshtlv.ExtAddr{9, 9, 9, 9, 9, 9, 9, 9}
	now := time.Now()

	var theirChallenge meshtlv.Challenge
	copy(theirChallenge[:], []byte("candchal"))

	require.NoError(t, ps.HandleParentRequest(context.Background(), now, candExt, candidateScanMaskTLVs(theirChallenge)))
	child := ps.table.FindChildByExtAddress(candExt, neighbor.FilterAny)
	require.NotNil(t, child)
	require.Equal(t, neighbor.StateParentRequest, child.State)

	ownChallenge := ps.ownChallenges[candExt]
	linkReqTLVs := []meshtlv.TLV{meshtlv.NewResponseTLV(ownChallenge[:])}
	require.NoError(t, ps.HandleLinkRequest(context.Background(), now, candExt, linkReqTLVs))
	require.Equal(t, neighbor.StateLinkAccept, child.State)

	secondChallenge := ps.ownChallenges[candExt]
	childIDTLVs := []meshtlv.TLV{
		meshtlv.NewResponseTLV(secondChallenge[:]),
		&meshtlv.TimeoutTLV{Seconds: 60},
		&meshtlv.ModeTLV{Mode: meshtlv.ModeRxOnWhenIdle},
	}
	require.NoError(t, ps.HandleChildIDRequest(context.Background(), now, candExt, childIDTLVs))
	require.Equal(t, neighbor.StateValid, child.State)
	require.True(t, child.Rloc16.IsValid())
	require.Equal(t, uint32(60), child.TimeoutSeconds)
	require.True(t, IsSubChildOf(child.Rloc16, meshtlv.Rloc16(0x2810), ps.cfg.subtreePrefixLength()))
}

func TestHandleLinkRequestRejectsChallengeMismatch(t *testing.T) {
	ps, _ := newHandshakeParentSide(t)
	candExt := meshtlv.ExtAddr{9, 9, 9, 9, 9, 9, 9, 9}
	now := time.Now()
	var theirChallenge meshtlv.Challenge
	require.NoError(t, ps.HandleParentRequest(context.Background(), now, candExt, candidateScanMaskTLVs(theirChallenge)))

	var wrong meshtlv.Challenge
	copy(wrong[:], []byte("wrongwrg"))
	err := ps.HandleLinkRequest(context.Background(), now, candExt, []meshtlv.TLV{meshtlv.NewResponseTLV(wrong[:])})
	require.Error(t, err)
}

func TestTransientSlotReclaimedAfterTimeout(t *testing.T) {
	ps, _ := newHandshakeParentSide(t)
	ps.cfg.TransientAttachTimeout = time.Millisecond
	candExt := meshtlv.ExtAddr{9, 9, 9, 9, 9, 9, 9, 9}
	now := time.Now()
	var challenge meshtlv.Challenge
	require.NoError(t, ps.HandleParentRequest(context.Background(), now, candExt, candidateScanMaskTLVs(challenge)))
	require.Equal(t, 1, ps.table.NumChildren())

	ps.Tick(now.Add(10 * time.Millisecond))
	require.Equal(t, 0, ps.table.NumChildren())
}

func TestRemoveSubChildMovesToDetachPendingThenReclaims(t *testing.T) {
	ps, _ := newHandshakeParentSide(t)
	candExt := meshtlv.ExtAddr{9, 9, 9, 9, 9, 9, 9, 9}
	now := time.Now()

	child, err := ps.table.NewChild()
	require.NoError(t, err)
	child.ExtAddr = candExt
	child.Rloc16 = meshtlv.Rloc16(0x2811)
	child.State = neighbor.StateValid
	ps.table.AddChild(child)

	require.NoError(t, ps.RemoveSubChild(context.Background(), now, candExt))
	require.Equal(t, neighbor.StateDetachPending, child.State)
	require.Equal(t, 1, ps.table.NumChildren())

	ps.Tick(now.Add(5 * time.Second))
	require.Equal(t, 0, ps.table.NumChildren())
}

func TestOnChildUpdateResponseEndsDetachPendingEarly(t *testing.T) {
	ps, _ := newHandshakeParentSide(t)
	candExt := meshtlv.ExtAddr{9, 9, 9, 9, 9, 9, 9, 9}
	now := time.Now()

	child, err := ps.table.NewChild()
	require.NoError(t, err)
	child.ExtAddr = candExt
	child.Rloc16 = meshtlv.Rloc16(0x2811)
	child.State = neighbor.StateValid
	ps.table.AddChild(child)

	require.NoError(t, ps.RemoveSubChild(context.Background(), now, candExt))
	ps.OnChildUpdateResponse(candExt)
	require.Equal(t, 0, ps.table.NumChildren())
}

func TestHandleChildIDRequestRegistersAddresses(t *testing.T) {
	ps, _ := newHandshakeParentSide(t)
	candExt := meshtlv.ExtAddr{9, 9, 9, 9, 9, 9, 9, 9}
	now := time.Now()

	var theirChallenge meshtlv.Challenge
	require.NoError(t, ps.HandleParentRequest(context.Background(), now, candExt, candidateScanMaskTLVs(theirChallenge)))
	ownChallenge := ps.ownChallenges[candExt]
	require.NoError(t, ps.HandleLinkRequest(context.Background(), now, candExt, []meshtlv.TLV{meshtlv.NewResponseTLV(ownChallenge[:])}))

	var full [16]byte
	full[0], full[1] = 0x20, 0x01
	full[15] = 0x42
	secondChallenge := ps.ownChallenges[candExt]
	childIDTLVs := []meshtlv.TLV{
		meshtlv.NewResponseTLV(secondChallenge[:]),
		&meshtlv.TimeoutTLV{Seconds: 60},
		&meshtlv.AddressRegistrationTLV{Entries: []meshtlv.AddressRegistrationEntry{
			{Compressed: true, ContextID: 0, IID: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}, // mesh-local EID, must not be stored
			{FullAddr: full},
		}},
		&meshtlv.TlvRequestTLV{Types: []meshtlv.Type{meshtlv.TypeNetworkData}},
	}
	require.NoError(t, ps.HandleChildIDRequest(context.Background(), now, candExt, childIDTLVs))

	child := ps.table.FindChildByExtAddress(candExt, neighbor.FilterValid)
	require.NotNil(t, child)
	require.Len(t, child.Addresses, 1)
	require.Equal(t, netip.AddrFrom16(full), child.Addresses[0])
	reqs, attached := child.Aux.RequestedTLVs()
	require.True(t, attached)
	require.Equal(t, []meshtlv.Type{meshtlv.TypeNetworkData}, reqs)
}
