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

// Package csl implements the CSL Tx Scheduler (C5) and CSL Receiver (C6):
// choosing the next transmission window across every synchronized sleepy
// peer with a queued indirect message, and driving this device's own
// periodic sampled-listening receive cycle (plus, for a sub-child
// parent, its interleaved wakeup cycle).
package csl

import (
	"github.com/openthread-go/meshlink/indirect"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/neighbor"
)

// MaxCslTriggeredAttempts bounds consecutive NoAck outcomes on the CSL
// transmission path before a neighbor is marked desynchronized, mirroring
// indirect.MaxIndirectAttempts for the same three-strikes rule on the
// CSL-scheduled path (spec.md §4.5 names the constant but not its value).
const MaxCslTriggeredAttempts = 3

// frameSizeEstimateBytes is the byte count the bus transfer-time estimate
// assumes per frame request: a maximum 127-byte 802.15.4 frame plus the
// host-to-radio transfer metadata that rides with it.
const frameSizeEstimateBytes = 150

// FrameRequestAheadUs computes the full scheduling guard margin: the
// configured request-ahead constant plus the time to clock one frame
// request across the host-to-radio bus plus the bus's fixed latency
// (spec.md §4.5). A zero busSpeedHz (no serialized bus, e.g. an on-die
// radio) contributes no transfer time.
func FrameRequestAheadUs(configuredUs, busSpeedHz, busLatencyUs uint32) uint32 {
	ahead := configuredUs + busLatencyUs
	if busSpeedHz > 0 {
		bits := uint64(frameSizeEstimateBytes) * 8 * 1e6
		ahead += uint32((bits + uint64(busSpeedHz) - 1) / uint64(busSpeedHz))
	}
	return ahead
}

// NeighborRef is the capability the scheduler needs from one synchronized
// candidate: its addressing, CSL parameters, and indirect-queue state,
// all borrowed by pointer so the scheduler can update attempt counters
// and desynchronize the peer in place. ChildIndex is neighbor.NoMessage
// for a non-child candidate (the parent or a parent candidate, in the
// sub-child variant).
type NeighborRef struct {
	ChildIndex int
	ExtAddr    meshtlv.ExtAddr
	ShortAddr  meshtlv.Rloc16
	Csl        *neighbor.CslInfo
	Indirect   *neighbor.IndirectNeighbor
}

// Desynchronize clears the candidate's CSL state so neighbor.CslInfo.
// Synchronized reports false until the peer resynchronizes.
func (n NeighborRef) Desynchronize() {
	n.Csl.Period = 0
	n.Csl.LastSyncUs = 0
}

// NextWindow computes the next CSL transmission window for one
// candidate, implementing spec.md §4.5's reschedule formula:
// next_tx_window = last_rx_timestamp + phase, advanced by period until it
// is at least now + ahead. periodSymbols is in units of 10 symbols
// (already 10x'd per neighbor.CslInfo.Period's convention: 1 unit = 10us
// of window arithmetic), phaseUs and lastRxUs are already in
// microseconds. delayUs is the scheduling delay from now, which may be
// negative if the window has already passed (the caller should treat
// that as "fire immediately").
func NextWindow(periodSymbols uint16, phaseUs uint32, lastRxUs uint64, nowUs uint64, aheadUs uint32) (windowUs uint64, delayUs int64) {
	if periodSymbols == 0 {
		return 0, 0
	}
	periodUs := uint64(periodSymbols) * 10
	win := lastRxUs + uint64(phaseUs)
	threshold := nowUs + uint64(aheadUs)
	if win < threshold {
		diff := threshold - win
		k := (diff + periodUs - 1) / periodUs
		win += k * periodUs
	}
	delay := int64(win) - int64(nowUs) - int64(aheadUs)
	return win, delay
}

// Scheduler is the CSL Tx Scheduler (C5). It owns no radio state itself;
// Reschedule is a pure selection function so it can be driven from a
// single-threaded tick loop and tested without a live radio.
type Scheduler struct {
	frameRequestAheadUs uint32

	current    NeighborRef
	hasCurrent bool
	inFlight   bool
}

// New returns a Scheduler that guards windows by frameRequestAheadUs
// (the "frame_request_ahead_us" margin spec.md §4.5 reschedules around).
func New(frameRequestAheadUs uint32) *Scheduler {
	return &Scheduler{frameRequestAheadUs: frameRequestAheadUs}
}

// Update is called whenever the set of synchronized neighbors or their
// queued message counts change. If no transmission is in progress it
// reschedules immediately; if one is in progress but the in-flight
// target's indirect message has since been switched away (candidates no
// longer includes it, or its queue emptied), it clears the current
// target and resets its CSL attempt counter — the MAC's eventual
// done-callback (OnFrameSent) then drives the next reschedule.
func (s *Scheduler) Update(nowUs uint64, candidates []NeighborRef) (target NeighborRef, delayUs int64, ok bool) {
	if s.inFlight {
		if s.hasCurrent && !stillCandidate(s.current, candidates) {
			s.current.Indirect.CslAttempts = 0
			s.hasCurrent = false
		}
		return NeighborRef{}, 0, false
	}
	return s.reschedule(nowUs, candidates)
}

func stillCandidate(target NeighborRef, candidates []NeighborRef) bool {
	for _, c := range candidates {
		if c.ExtAddr == target.ExtAddr {
			return c.Indirect.QueuedCount > 0
		}
	}
	return false
}

func (s *Scheduler) reschedule(nowUs uint64, candidates []NeighborRef) (NeighborRef, int64, bool) {
	var best NeighborRef
	var bestDelay int64
	found := false
	for _, c := range candidates {
		if c.Csl.Period == 0 || c.Indirect.QueuedCount == 0 {
			continue
		}
		_, delay := NextWindow(c.Csl.Period, c.Csl.PhaseUs, c.Csl.LastRxUs, nowUs, s.frameRequestAheadUs)
		if !found || delay < bestDelay {
			best, bestDelay, found = c, delay, true
		}
	}
	if !found {
		s.hasCurrent = false
		return NeighborRef{}, 0, false
	}
	s.current = best
	s.hasCurrent = true
	s.inFlight = true
	return best, bestDelay, true
}

// OnFrameSent reports the outcome of the frame scheduled by the most
// recent Reschedule call. NoAck increments the candidate's CslAttempts
// and, at MaxCslTriggeredAttempts, desynchronizes it; any non-success
// outcome still saves the frame's counter/key-id/sequence for
// retransmission continuity (the indirect sender's SavedFrameCounter
// fields, mirrored here since CSL and data-poll delivery share one
// neighbor.IndirectNeighbor); a success resets both attempt counters.
func (s *Scheduler) OnFrameSent(frameCounter uint32, keyID, seq uint8, result indirect.FrameTxResult) {
	s.inFlight = false
	if !s.hasCurrent {
		return
	}
	in := s.current.Indirect
	if result == indirect.TxResultSuccess {
		in.IndirectAttempts = 0
		in.CslAttempts = 0
		s.hasCurrent = false
		return
	}
	in.SavedFrameCounter, in.SavedKeyID, in.SavedSeq = frameCounter, keyID, seq
	if result == indirect.TxResultNoAck {
		in.CslAttempts++
		if in.CslAttempts >= MaxCslTriggeredAttempts {
			s.current.Desynchronize()
			in.CslAttempts = 0
			s.hasCurrent = false
		}
	}
}

// Current returns the candidate a transmission is currently scheduled or
// in flight for, and whether one is set.
func (s *Scheduler) Current() (NeighborRef, bool) {
	return s.current, s.hasCurrent
}

// InFlight reports whether a transmission is currently outstanding.
func (s *Scheduler) InFlight() bool {
	return s.inFlight
}
