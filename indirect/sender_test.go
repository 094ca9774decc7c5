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

package indirect

import (
	"testing"

	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshnet/mocks"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/neighbor"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestChild() *neighbor.Child {
	c := &neighbor.Child{}
	c.Reset()
	return c
}

func TestAddMessageIncrementsQueuedCount(t *testing.T) {
	arena := &meshnet.Arena{}
	ctrl := gomock.NewController(t)
	fwd := mocks.NewMockMeshForwarder(ctrl)
	s := New(arena, fwd)

	child := newTestChild()
	msg := arena.Insert([]byte("hello"))

	s.AddMessage(msg, child, 3)
	require.Equal(t, uint16(1), child.Indirect.QueuedCount)
	require.True(t, s.QueuedCountMatchesArena(child, 3))

	// Adding the same message twice for the same child is a no-op.
	s.AddMessage(msg, child, 3)
	require.Equal(t, uint16(1), child.Indirect.QueuedCount)
}

func TestPrepareFrameFreshThenSuccessAdvancesOffset(t *testing.T) {
	arena := &meshnet.Arena{}
	ctrl := gomock.NewController(t)
	fwd := mocks.NewMockMeshForwarder(ctrl)
	s := New(arena, fwd)

	child := newTestChild()
	msg := arena.Insert([]byte("payload"))
	s.AddMessage(msg, child, 0)

	dst := meshtlv.ExtAddr{0x01}
	fwd.EXPECT().PrepareFragment(msg.Index, uint16(0), dst, false).Return([]byte("frag1"), uint16(64), false, nil)

	pf, err := s.PrepareFrame(child, 0, dst, 100, 2, 7)
	require.NoError(t, err)
	require.False(t, pf.IsRetransmission)
	require.Equal(t, uint32(100), pf.FrameCounter)
	require.Equal(t, uint8(2), pf.KeyID)
	require.Equal(t, uint8(7), pf.Seq)
	require.Equal(t, []byte("frag1"), pf.Payload)

	require.NoError(t, s.OnFrameSent(child, 0, false, TxResultSuccess))
	require.Equal(t, uint16(64), child.Indirect.FragmentOffset)
	require.Zero(t, child.Indirect.IndirectAttempts)
}

// TestThreeConsecutiveNoAcksAbandonMessage reproduces the scenario where a
// sleepy child's indirect message fails three times in a row: the frame
// counter, key id, and MAC sequence must stay pinned to the first attempt's
// values across every retry, and the message is dropped and the next one
// promoted after the third failure.
func TestThreeConsecutiveNoAcksAbandonMessage(t *testing.T) {
	arena := &meshnet.Arena{}
	ctrl := gomock.NewController(t)
	fwd := mocks.NewMockMeshForwarder(ctrl)
	s := New(arena, fwd)

	child := newTestChild()
	first := arena.Insert([]byte("first"))
	second := arena.Insert([]byte("second"))
	s.AddMessage(first, child, 5)
	s.AddMessage(second, child, 5)

	dst := meshtlv.ExtAddr{0x02}

	// First attempt: fresh frame, counters saved.
	fwd.EXPECT().PrepareFragment(first.Index, uint16(0), dst, false).Return([]byte("f"), uint16(10), true, nil).Times(3)

	for attempt := 1; attempt <= 3; attempt++ {
		pf, err := s.PrepareFrame(child, 5, dst, 500, 9, 42)
		require.NoError(t, err)
		require.Equal(t, uint32(500), pf.FrameCounter)
		require.Equal(t, uint8(9), pf.KeyID)
		require.Equal(t, uint8(42), pf.Seq)
		if attempt == 1 {
			require.False(t, pf.IsRetransmission)
		} else {
			require.True(t, pf.IsRetransmission)
		}

		require.NoError(t, s.OnFrameSent(child, 5, false, TxResultNoAck))
		if attempt < 3 {
			require.Equal(t, uint8(attempt), child.Indirect.IndirectAttempts)
		}
	}

	// After the third failure, first is abandoned and second promoted.
	require.Zero(t, child.Indirect.IndirectAttempts)
	require.Equal(t, second.Index, child.Indirect.MessageIndex)
	require.Equal(t, uint16(1), child.Indirect.QueuedCount)
	require.True(t, s.QueuedCountMatchesArena(child, 5))
	require.False(t, first.Pending.IsBitSet(5))
}

func TestRemoveMessageRequestsUpdateWhenCurrent(t *testing.T) {
	arena := &meshnet.Arena{}
	ctrl := gomock.NewController(t)
	fwd := mocks.NewMockMeshForwarder(ctrl)
	s := New(arena, fwd)

	child := newTestChild()
	msg := arena.Insert([]byte("x"))
	s.AddMessage(msg, child, 1)
	child.Indirect.MessageIndex = msg.Index

	s.RemoveMessage(msg, child, 1)
	require.True(t, child.Indirect.WaitingForMessageUpdate)
	require.Zero(t, child.Indirect.QueuedCount)

	s.FrameChangeDone(child, 1)
	require.False(t, child.Indirect.WaitingForMessageUpdate)
	require.Equal(t, neighbor.NoMessage, child.Indirect.MessageIndex)
}

func TestClearAllDropsEverythingForChild(t *testing.T) {
	arena := &meshnet.Arena{}
	ctrl := gomock.NewController(t)
	fwd := mocks.NewMockMeshForwarder(ctrl)
	s := New(arena, fwd)

	child := newTestChild()
	m1 := arena.Insert([]byte("a"))
	m2 := arena.Insert([]byte("b"))
	s.AddMessage(m1, child, 2)
	s.AddMessage(m2, child, 2)

	s.ClearAll(child, 2)
	require.Zero(t, child.Indirect.QueuedCount)
	require.Equal(t, neighbor.NoMessage, child.Indirect.MessageIndex)
	require.Nil(t, arena.At(m1.Index))
	require.Nil(t, arena.At(m2.Index))
}

func TestOnChildModeChangeSleepyToRxOnConvertsToDirect(t *testing.T) {
	arena := &meshnet.Arena{}
	ctrl := gomock.NewController(t)
	fwd := mocks.NewMockMeshForwarder(ctrl)
	s := New(arena, fwd)

	child := newTestChild()
	msg := arena.Insert([]byte("a"))
	s.AddMessage(msg, child, 4)
	child.Mode = meshtlv.ModeRxOnWhenIdle

	s.OnChildModeChange(child, 4, meshtlv.DeviceMode(0))

	require.False(t, msg.Pending.IsBitSet(4))
	require.True(t, msg.DirectTx)
	require.Zero(t, child.Indirect.QueuedCount)
	require.Equal(t, neighbor.NoMessage, child.Indirect.MessageIndex)
}

func TestOnChildModeChangeRxOnToSleepyIsNoop(t *testing.T) {
	arena := &meshnet.Arena{}
	ctrl := gomock.NewController(t)
	fwd := mocks.NewMockMeshForwarder(ctrl)
	s := New(arena, fwd)

	child := newTestChild()
	msg := arena.Insert([]byte("a"))
	s.AddMessage(msg, child, 4)
	child.Mode = meshtlv.DeviceMode(0)

	s.OnChildModeChange(child, 4, meshtlv.ModeRxOnWhenIdle)

	require.True(t, msg.Pending.IsBitSet(4))
	require.Equal(t, uint16(1), child.Indirect.QueuedCount)
}

func TestPrepareFrameEmptyWhenNothingQueued(t *testing.T) {
	arena := &meshnet.Arena{}
	ctrl := gomock.NewController(t)
	fwd := mocks.NewMockMeshForwarder(ctrl)
	s := New(arena, fwd)

	child := newTestChild()
	pf, err := s.PrepareFrame(child, 0, meshtlv.ExtAddr{}, 1, 1, 1)
	require.NoError(t, err)
	require.True(t, pf.Empty)
}
