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

package neighbor

import (
	"testing"

	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/stretchr/testify/require"
)

func TestTableNewChildExhaustion(t *testing.T) {
	tbl := NewTable(2)

	c1, err := tbl.NewChild()
	require.NoError(t, err)
	c1.ExtAddr = meshtlv.ExtAddr{1}
	c1.State = StateValid

	c2, err := tbl.NewChild()
	require.NoError(t, err)
	c2.ExtAddr = meshtlv.ExtAddr{2}
	c2.State = StateValid

	_, err = tbl.NewChild()
	require.Error(t, err)
	require.Equal(t, meshnet.KindNoBufs, meshnet.KindOf(err))
}

func TestTableFindByExtAddress(t *testing.T) {
	tbl := NewTable(4)
	c, err := tbl.NewChild()
	require.NoError(t, err)
	c.ExtAddr = meshtlv.ExtAddr{0xaa}
	c.State = StateValid

	got := tbl.FindByExtAddress(meshtlv.ExtAddr{0xaa}, FilterValid)
	require.NotNil(t, got)
	require.Equal(t, c.ExtAddr, got.ExtAddr)

	require.Nil(t, tbl.FindByExtAddress(meshtlv.ExtAddr{0xbb}, FilterValid))
	require.Nil(t, tbl.FindByExtAddress(meshtlv.ExtAddr{0xaa}, FilterInvalid))
}

func TestTableRemoveChildFreesSlot(t *testing.T) {
	tbl := NewTable(1)
	c, err := tbl.NewChild()
	require.NoError(t, err)
	c.ExtAddr = meshtlv.ExtAddr{1}
	c.State = StateValid

	_, err = tbl.NewChild()
	require.Error(t, err)

	tbl.RemoveChild(c)
	require.Equal(t, StateInvalid, c.State)

	c2, err := tbl.NewChild()
	require.NoError(t, err)
	require.Same(t, c, c2)
}

func TestTableEvents(t *testing.T) {
	tbl := NewTable(2)
	var events []EventType
	tbl.OnNeighborTableEvent(func(e EventType, p *Peer) {
		events = append(events, e)
	})

	c, err := tbl.NewChild()
	require.NoError(t, err)
	c.ExtAddr = meshtlv.ExtAddr{1}
	c.State = StateValid
	tbl.AddChild(c)
	tbl.RemoveChild(c)

	require.Equal(t, []EventType{EventChildAdded, EventChildRemoved}, events)
}

func TestTableParentLifecycle(t *testing.T) {
	tbl := NewTable(1)
	require.Nil(t, tbl.Parent())

	var events []EventType
	tbl.OnNeighborTableEvent(func(e EventType, p *Peer) { events = append(events, e) })

	p := Parent{Peer: Peer{ExtAddr: meshtlv.ExtAddr{9}, State: StateValid}}
	tbl.SetParent(p)
	require.NotNil(t, tbl.Parent())
	require.Equal(t, meshtlv.ExtAddr{9}, tbl.Parent().ExtAddr)

	tbl.ClearParent()
	require.Nil(t, tbl.Parent())
	require.Equal(t, []EventType{EventRouterAdded, EventRouterRemoved}, events)
}

func TestTableIterateFilter(t *testing.T) {
	tbl := NewTable(3)
	a, _ := tbl.NewChild()
	a.ExtAddr = meshtlv.ExtAddr{1}
	a.State = StateValid
	b, _ := tbl.NewChild()
	b.ExtAddr = meshtlv.ExtAddr{2}
	b.State = StateChildIDRequest

	var valid []meshtlv.ExtAddr
	tbl.Iterate(FilterValid, func(c *Child) bool {
		valid = append(valid, c.ExtAddr)
		return true
	})
	require.Equal(t, []meshtlv.ExtAddr{{1}}, valid)

	var any []meshtlv.ExtAddr
	tbl.Iterate(FilterAny, func(c *Child) bool {
		any = append(any, c.ExtAddr)
		return true
	})
	require.Len(t, any, 2)
}

func TestTableParentCandidateResetBetweenAttempts(t *testing.T) {
	tbl := NewTable(1)
	cand := tbl.ParentCandidate()
	cand.ExtAddr = meshtlv.ExtAddr{7}
	cand.LinkMargin = 30

	tbl.ClearParentCandidate()
	require.Equal(t, meshtlv.ExtAddr{}, tbl.ParentCandidate().ExtAddr)
	require.Equal(t, uint8(0), tbl.ParentCandidate().LinkMargin)
}
