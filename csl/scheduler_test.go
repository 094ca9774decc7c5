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

package csl

import (
	"testing"

	"github.com/openthread-go/meshlink/indirect"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/neighbor"
	"github.com/stretchr/testify/require"
)

// TestNextWindowScenario reproduces spec.md §8 scenario 3: period=500
// (5 000 µs), phase=0, last_rx=10 000 000, now=10 012 345, ahead=2000 ⇒
// window=10 015 000, delay=655 µs.
func TestNextWindowScenario(t *testing.T) {
	win, delay := NextWindow(500, 0, 10_000_000, 10_012_345, 2000)
	require.Equal(t, uint64(10_015_000), win)
	require.Equal(t, int64(655), delay)
}

func TestNextWindowZeroPeriodMeansUnsynchronized(t *testing.T) {
	win, delay := NextWindow(0, 0, 10_000_000, 10_012_345, 2000)
	require.Zero(t, win)
	require.Zero(t, delay)
}

func refFor(extByte byte, period uint16, phaseUs uint32, lastRxUs uint64, queued uint16) NeighborRef {
	csl := &neighbor.CslInfo{Period: period, PhaseUs: phaseUs, LastRxUs: lastRxUs}
	ind := &neighbor.IndirectNeighbor{QueuedCount: queued}
	return NeighborRef{
		ChildIndex: int(extByte),
		ExtAddr:    meshtlv.ExtAddr{extByte},
		Csl:        csl,
		Indirect:   ind,
	}
}

func TestUpdatePicksEarliestCandidate(t *testing.T) {
	s := New(2000)
	a := refFor(1, 500, 0, 10_000_000, 1)
	b := refFor(2, 1000, 0, 9_000_000, 1)

	target, _, ok := s.Update(10_012_345, []NeighborRef{a, b})
	require.True(t, ok)
	require.Equal(t, a.ExtAddr, target.ExtAddr)
}

func TestUpdateSkipsUnsynchronizedAndEmptyQueues(t *testing.T) {
	s := New(2000)
	notSynced := refFor(1, 0, 0, 10_000_000, 1)
	empty := refFor(2, 500, 0, 10_000_000, 0)

	_, _, ok := s.Update(10_012_345, []NeighborRef{notSynced, empty})
	require.False(t, ok)
}

func TestOnFrameSentSuccessResetsAttempts(t *testing.T) {
	s := New(2000)
	a := refFor(1, 500, 0, 10_000_000, 1)
	a.Indirect.CslAttempts = 2

	_, _, ok := s.Update(10_012_345, []NeighborRef{a})
	require.True(t, ok)

	s.OnFrameSent(10, 1, 5, indirect.TxResultSuccess)
	require.Zero(t, a.Indirect.CslAttempts)
	_, hasCurrent := s.Current()
	require.False(t, hasCurrent)
}

func TestOnFrameSentNoAckDesynchronizesAfterMaxAttempts(t *testing.T) {
	s := New(2000)
	a := refFor(1, 500, 0, 10_000_000, 1)

	for i := 0; i < MaxCslTriggeredAttempts; i++ {
		_, _, ok := s.Update(10_012_345, []NeighborRef{a})
		require.True(t, ok)
		s.OnFrameSent(10, 1, 5, indirect.TxResultNoAck)
	}

	require.Zero(t, a.Csl.Period)
	require.Zero(t, a.Indirect.CslAttempts)
}

func TestUpdateWhileInFlightClearsSwitchedTarget(t *testing.T) {
	s := New(2000)
	a := refFor(1, 500, 0, 10_000_000, 1)

	_, _, ok := s.Update(10_012_345, []NeighborRef{a})
	require.True(t, ok)
	require.True(t, s.InFlight())

	// The queue for a emptied while the frame was in flight.
	a.Indirect.QueuedCount = 0
	_, _, ok = s.Update(10_012_400, []NeighborRef{a})
	require.False(t, ok)
	_, hasCurrent := s.Current()
	require.False(t, hasCurrent)
}

func TestFrameRequestAheadUsAddsBusEstimates(t *testing.T) {
	// 150 bytes at 1 MHz: ceil(150*8*1e6/1e6) = 1200us, plus 100us latency.
	require.Equal(t, uint32(2000+1200+100), FrameRequestAheadUs(2000, 1_000_000, 100))
	// ceil rounding: 150*8*1e6/7e6 = 171.43 -> 172.
	require.Equal(t, uint32(172), FrameRequestAheadUs(0, 7_000_000, 0))
}

func TestFrameRequestAheadUsZeroBusSpeed(t *testing.T) {
	require.Equal(t, uint32(2050), FrameRequestAheadUs(2000, 0, 50))
}
