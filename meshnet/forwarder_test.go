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

package meshnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChildMaskSetClear(t *testing.T) {
	var m ChildMask
	require.True(t, m.Empty())

	m.SetBit(3)
	m.SetBit(130)
	require.True(t, m.IsBitSet(3))
	require.True(t, m.IsBitSet(130))
	require.False(t, m.IsBitSet(4))
	require.False(t, m.Empty())

	m.ClearBit(3)
	require.False(t, m.IsBitSet(3))
	require.False(t, m.Empty())

	m.ClearBit(130)
	require.True(t, m.Empty())
}

func TestArenaInsertReleaseRecycle(t *testing.T) {
	var a Arena
	msg := a.Insert([]byte("hello"))
	require.Equal(t, 0, msg.Index)

	msg.Pending.SetBit(1)
	require.True(t, msg.Live())
	require.False(t, a.ReleaseIfDone(msg.Index))

	msg.Pending.ClearBit(1)
	require.False(t, msg.Live())
	require.True(t, a.ReleaseIfDone(msg.Index))
	require.Nil(t, a.At(msg.Index))

	reused := a.Insert([]byte("world"))
	require.Equal(t, 0, reused.Index)
}

func TestArenaDirectTxKeepsMessageLive(t *testing.T) {
	var a Arena
	msg := a.Insert([]byte("x"))
	msg.DirectTx = true
	require.True(t, msg.Live())
	require.False(t, a.ReleaseIfDone(msg.Index))

	msg.DirectTx = false
	require.True(t, a.ReleaseIfDone(msg.Index))
}
