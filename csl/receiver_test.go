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

	"github.com/openthread-go/meshlink/neighbor"
	"github.com/stretchr/testify/require"
)

func TestReceiverWithTimingHardwareArmsAhead(t *testing.T) {
	own := &neighbor.CslInfo{Period: 500, LastRxUs: 10_000_000}
	r := NewReceiver(true, 1000, own)

	fireAt, state := r.Reschedule(10_012_345)
	require.Equal(t, CslQueued, state)
	require.Less(t, fireAt, r.NextCslWindow(10_012_345))
}

func TestReceiverWithoutTimingHardwareArmsAtWindowStart(t *testing.T) {
	own := &neighbor.CslInfo{Period: 500, LastRxUs: 10_000_000}
	r := NewReceiver(false, 1000, own)

	fireAt, state := r.Reschedule(10_012_345)
	require.Equal(t, CslQueued, state)
	require.Equal(t, r.NextCslWindow(10_012_345), fireAt)
}

func TestTimerFireTransitionsQueuedToReceive(t *testing.T) {
	own := &neighbor.CslInfo{Period: 500, LastRxUs: 10_000_000}
	r := NewReceiver(false, 1000, own)
	r.Reschedule(10_012_345)

	state := r.OnTimerFire(10_015_000)
	require.Equal(t, CslReceive, state)
}

func TestWakeupWindowPreemptsCslWhenEarlier(t *testing.T) {
	own := &neighbor.CslInfo{Period: 5000, LastRxUs: 10_000_000} // far-off CSL window
	r := NewReceiver(false, 0, own)
	r.EnableWakeup(1, 11) // periodUs = 1*256*10 = 2560us
	r.lastWakeupUs = 10_000_000

	_, state := r.Reschedule(10_001_000)
	require.Equal(t, WakeupQueued, state)
}

func TestOnCslSyncUpdatesTimestamps(t *testing.T) {
	csl := &neighbor.CslInfo{}
	OnCslSync(csl, 42_000)
	require.Equal(t, uint64(42_000), csl.LastSyncUs)
	require.Equal(t, uint64(42_000), csl.LastRxUs)
}

func TestSemiWindowGrowsWithElapsedDrift(t *testing.T) {
	// 1s since sync at 20+20 ppm drifts 40us; plus 10us peer and 5us local
	// uncertainty.
	require.Equal(t, uint64(40+10+5), SemiWindowUs(1_000_000, 20, 20, 5, 10))
	// ceil rounding: 100001us * 40ppm = 4.00004us -> 5.
	require.Equal(t, uint64(5+10+5), SemiWindowUs(100_001, 20, 20, 5, 10))
}

func TestWindowBoundsClampedToHalfPeriod(t *testing.T) {
	own := &neighbor.CslInfo{Period: 100, AccuracyPPM: 50, UncertaintyUs: 100, LastSyncUs: 1_000_000}
	r := NewReceiver(false, 0, own)
	r.SetLocalClock(50, 100)

	// Long since last sync: the drift term alone dwarfs the 500us
	// half-period, so both sides clamp to it.
	start, end := r.WindowBounds(60_000_000, 60_000_000)
	require.Equal(t, uint64(60_000_000-500), start)
	require.Equal(t, uint64(60_000_000+500), end)
}

func TestWindowBoundsFreshSync(t *testing.T) {
	own := &neighbor.CslInfo{Period: 1000, AccuracyPPM: 20, UncertaintyUs: 10, LastSyncUs: 10_000_000}
	r := NewReceiver(false, 0, own)
	r.SetLocalClock(20, 5)

	// 100ms since sync at 40ppm combined: 4000us drift + 10 + 5 = 4015
	// semi-window, under the 5000us half-period so only the fixed margins
	// are added on top.
	start, end := r.WindowBounds(10_100_000, 10_100_000)
	require.Equal(t, uint64(10_100_000-(4015+192)), start)
	require.Equal(t, uint64(10_100_000+(4015+320)), end)
}
