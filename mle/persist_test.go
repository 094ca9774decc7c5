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
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/openthread-go/meshlink/delayed"
	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshnet/mocks"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/neighbor"
)

// fakeSettings is a minimal in-memory SettingsStore for the persistence
// round-trip tests; the list-valued operations are unused by mle.
type fakeSettings struct {
	m map[meshnet.SettingsKey][]byte
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{m: make(map[meshnet.SettingsKey][]byte)}
}

func (s *fakeSettings) Get(key meshnet.SettingsKey) ([]byte, error) {
	v, ok := s.m[key]
	if !ok {
		return nil, meshnet.NewError("fakeSettings.Get", meshnet.KindNotFound, nil)
	}
	return v, nil
}

func (s *fakeSettings) GetIndexed(key meshnet.SettingsKey, index int) ([]byte, error) {
	return nil, meshnet.NewError("fakeSettings.GetIndexed", meshnet.KindNotFound, nil)
}

func (s *fakeSettings) Set(key meshnet.SettingsKey, value []byte) error {
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *fakeSettings) Add(key meshnet.SettingsKey, value []byte) error { return nil }

func (s *fakeSettings) Delete(key meshnet.SettingsKey) error {
	delete(s.m, key)
	return nil
}

func (s *fakeSettings) DeleteIndexed(key meshnet.SettingsKey, index int) error { return nil }

func (s *fakeSettings) Wipe() error {
	s.m = make(map[meshnet.SettingsKey][]byte)
	return nil
}

func newPersistCore(t *testing.T, store meshnet.SettingsStore) (*Core, *mocks.MockRadioPort) {
	ctrl := gomock.NewController(t)
	radio := mocks.NewMockRadioPort(ctrl)
	netData := mocks.NewMockNetworkDataStore(ctrl)
	forwarder := mocks.NewMockMeshForwarder(ctrl)

	radio.EXPECT().ExtAddress().Return(meshtlv.ExtAddr{1, 2, 3, 4, 5, 6, 7, 8}).AnyTimes()
	radio.EXPECT().SendUnicast(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	radio.EXPECT().SetShortAddress(gomock.Any()).Return(nil).AnyTimes()
	radio.EXPECT().BusSpeedHz().Return(uint32(0)).AnyTimes()
	radio.EXPECT().BusLatencyUs().Return(uint32(0)).AnyTimes()
	radio.EXPECT().CslAccuracyPPM().Return(uint8(20)).AnyTimes()
	radio.EXPECT().CslUncertaintyUs().Return(uint32(100)).AnyTimes()

	var masterKey [16]byte
	copy(masterKey[:], []byte("testmasterkey123"))
	return NewSystem(DefaultConfig(), radio, netData, store, forwarder, NewMasterKeyStore(masterKey)), radio
}

func TestRestoreStateRecoversChildRole(t *testing.T) {
	store := newFakeSettings()
	parentExt := meshtlv.ExtAddr{9, 9, 9, 9, 9, 9, 9, 9}

	first, _ := newPersistCore(t, store)
	require.NoError(t, first.Enable())
	require.NoError(t, first.Start(meshtlv.ModeRxOnWhenIdle))
	first.currentKeySeq = 7
	first.ownRloc16 = 0x6c01
	cand := first.table.ParentCandidate()
	cand.Parent.Peer.ExtAddr = parentExt
	cand.Parent.Peer.Rloc16 = 0x6c00
	first.BecomeChild(cand)
	require.Contains(t, store.m, meshnet.KeyNetworkInfo)
	require.Contains(t, store.m, meshnet.KeyParentInfo)

	second, _ := newPersistCore(t, store)
	require.NoError(t, second.Enable())
	require.NoError(t, second.Start(meshtlv.ModeRxOnWhenIdle))

	require.Equal(t, RoleChild, second.GetRole())
	require.Equal(t, meshtlv.Rloc16(0x6c01), second.GetRloc16())
	require.Equal(t, meshtlv.KeySequence(7), second.currentKeySeq)
	require.Greater(t, second.ownFrameCounter, first.ownFrameCounter)
	p := second.table.Parent()
	require.NotNil(t, p)
	require.Equal(t, parentExt, p.ExtAddr)
	require.Equal(t, neighbor.StateRestored, p.State)
	dest := NetipFromExt(parentExt)
	require.True(t, second.delayed.HasMatchingSchedule(delayed.MessageChildUpdateRequestAsChild, dest),
		"a restored child must probe its remembered parent")
}

func TestRestoreStateRejectsVersionMismatch(t *testing.T) {
	store := newFakeSettings()
	blob := make([]byte, 13)
	binary.LittleEndian.PutUint16(blob, networkInfoVersion+1)
	require.NoError(t, store.Set(meshnet.KeyNetworkInfo, blob))
	require.NoError(t, store.Set(meshnet.KeyParentInfo, make([]byte, 12)))

	core, _ := newPersistCore(t, store)
	require.NoError(t, core.Enable())
	require.NoError(t, core.Start(meshtlv.ModeRxOnWhenIdle))
	require.Equal(t, RoleDetached, core.GetRole(), "a version-mismatched blob forces a fresh attach")
}

func TestGracefulDetachClearsPersistedState(t *testing.T) {
	store := newFakeSettings()
	parentExt := meshtlv.ExtAddr{9, 9, 9, 9, 9, 9, 9, 9}

	core, _ := newPersistCore(t, store)
	require.NoError(t, core.Enable())
	require.NoError(t, core.Start(meshtlv.ModeRxOnWhenIdle))
	cand := core.table.ParentCandidate()
	cand.Parent.Peer.ExtAddr = parentExt
	core.ownRloc16 = 0x6c01
	core.BecomeChild(cand)
	require.Contains(t, store.m, meshnet.KeyNetworkInfo)

	require.NoError(t, core.DetachGracefully(time.Now(), func() {}))
	core.finishGracefulDetach()
	require.NotContains(t, store.m, meshnet.KeyNetworkInfo)
	require.NotContains(t, store.m, meshnet.KeyParentInfo)
}
