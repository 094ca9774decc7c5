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

import "github.com/openthread-go/meshlink/neighbor"

// ReceiverState is the CSL Receiver's state machine (spec.md §4.6).
type ReceiverState uint8

// Receiver states.
const (
	CslReceive ReceiverState = iota
	CslQueued
	WakeupReceive
	WakeupQueued
)

var receiverStateNames = map[ReceiverState]string{
	CslReceive:    "csl_receive",
	CslQueued:     "csl_queued",
	WakeupReceive: "wakeup_receive",
	WakeupQueued:  "wakeup_queued",
}

func (s ReceiverState) String() string {
	if n, ok := receiverStateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Minimum margins added on each side of a receive window beyond the
// drift-derived semi-window, covering radio ramp-up and frame preamble.
const (
	minReceiveAheadUs = 192
	minReceiveAfterUs = 320
)

// SemiWindowUs computes one peer's drift-derived half-window: the clock
// divergence accumulated since the last synchronization at the combined
// local+peer drift rate, plus both sides' fixed scheduling uncertainty.
func SemiWindowUs(elapsedSinceSyncUs uint64, localPPM, peerPPM uint8, localUncertaintyUs, peerUncertaintyUs uint32) uint64 {
	ppm := uint64(localPPM) + uint64(peerPPM)
	drift := (elapsedSinceSyncUs*ppm + 1e6 - 1) / 1e6
	return drift + uint64(peerUncertaintyUs) + uint64(localUncertaintyUs)
}

// Receiver is the CSL Receiver (C6): this device's own periodic
// sampled-listening cycle, synchronized to the CSL parameters its parent
// assigned it, plus (for a sub-child parent) a second, independent
// wakeup listening cycle interleaved with the CSL one.
type Receiver struct {
	hasReceiveTimingHW bool
	receiveTimeAheadUs uint32

	// localPPM and localUncertaintyUs are this device's own clock accuracy
	// and scheduling uncertainty (RadioPort.CslAccuracyPPM/CslUncertaintyUs),
	// folded into every window-sizing computation.
	localPPM           uint8
	localUncertaintyUs uint32

	// own is this device's own CSL synchronization state relative to its
	// parent: the window-math inputs for NextWindow are exactly the same
	// as the Tx Scheduler's, just evaluated from the listening side.
	own *neighbor.CslInfo

	wakeupEnabled     bool
	wakeupPeriodUnits uint16 // units of 256*10 symbols, per spec.md §4.6
	wakeupChannel     uint8
	lastWakeupUs      uint64

	state ReceiverState
}

// NewReceiver returns a Receiver synchronized to own (this device's CSL
// relationship to its parent). hasReceiveTimingHW selects between the
// single-timer (radios with receive-timing hardware) and double-timer
// (radios without it) scheduling modes.
func NewReceiver(hasReceiveTimingHW bool, receiveTimeAheadUs uint32, own *neighbor.CslInfo) *Receiver {
	return &Receiver{
		hasReceiveTimingHW: hasReceiveTimingHW,
		receiveTimeAheadUs: receiveTimeAheadUs,
		own:                own,
		state:              CslQueued,
	}
}

// EnableWakeup turns on the sub-child parent's second listening cycle on
// wakeupChannel, firing every periodUnits · 256 · 10 symbols microseconds.
func (r *Receiver) EnableWakeup(periodUnits uint16, channel uint8) {
	r.wakeupEnabled = periodUnits > 0
	r.wakeupPeriodUnits = periodUnits
	r.wakeupChannel = channel
}

// DisableWakeup turns the wakeup cycle back off.
func (r *Receiver) DisableWakeup() {
	r.wakeupEnabled = false
}

// Own exposes this device's own CSL synchronization state relative to its
// parent.
func (r *Receiver) Own() *neighbor.CslInfo { return r.own }

// ConfigureOwn sets the local CSL period and sampled channel this device
// listens with, called when a sleepy child attaches (period in units of
// 10 symbols, channel 0 meaning the PAN channel). A zero period stops the
// sampling cycle.
func (r *Receiver) ConfigureOwn(period uint16, channel uint8) {
	r.own.Period = period
	r.own.Channel = channel
}

// SetLocalClock records this device's own clock accuracy and scheduling
// uncertainty, normally read once from the RadioPort at startup.
func (r *Receiver) SetLocalClock(accuracyPPM uint8, uncertaintyUs uint32) {
	r.localPPM = accuracyPPM
	r.localUncertaintyUs = uncertaintyUs
}

// WindowBounds sizes the receive window around sampleTimeUs: the
// semi-window is the larger of the local uncertainty floor and the
// drift-derived per-peer value, each side padded by its minimum margin
// and clamped to half the CSL period so adjacent windows never overlap.
func (r *Receiver) WindowBounds(sampleTimeUs, nowUs uint64) (startUs, endUs uint64) {
	elapsed := uint64(0)
	if r.own.LastSyncUs > 0 && nowUs > r.own.LastSyncUs {
		elapsed = nowUs - r.own.LastSyncUs
	}
	semi := SemiWindowUs(elapsed, r.localPPM, r.own.AccuracyPPM, r.localUncertaintyUs, r.own.UncertaintyUs)
	if floor := uint64(r.localUncertaintyUs); semi < floor {
		semi = floor
	}
	halfPeriod := uint64(r.own.Period) * 10 / 2
	before := semi + minReceiveAheadUs
	if before > halfPeriod {
		before = halfPeriod
	}
	after := semi + minReceiveAfterUs
	if after > halfPeriod {
		after = halfPeriod
	}
	if sampleTimeUs < before {
		return 0, sampleTimeUs + after
	}
	return sampleTimeUs - before, sampleTimeUs + after
}

// NextCslWindow returns this device's next CSL receive window start time,
// using the same window-math NextWindow applies on the transmit side.
func (r *Receiver) NextCslWindow(nowUs uint64) uint64 {
	win, _ := NextWindow(r.own.Period, r.own.PhaseUs, r.own.LastRxUs, nowUs, 0)
	return win
}

// NextWakeupWindow returns the next wakeup-cycle window start time.
func (r *Receiver) NextWakeupWindow(nowUs uint64) uint64 {
	periodUs := uint64(r.wakeupPeriodUnits) * 256 * 10
	if periodUs == 0 {
		return nowUs
	}
	if r.lastWakeupUs == 0 {
		return nowUs
	}
	elapsed := nowUs - r.lastWakeupUs
	n := elapsed/periodUs + 1
	return r.lastWakeupUs + n*periodUs
}

// timerFireFor converts a window start time into the csl_timer fire
// time: window_start - receive_time_ahead on timing-capable radios (so
// the timed-receive call can be armed in advance), or window_start
// itself on radios that must poll the window boundary directly.
func (r *Receiver) timerFireFor(windowStartUs uint64) uint64 {
	if r.hasReceiveTimingHW {
		if windowStartUs < uint64(r.receiveTimeAheadUs) {
			return 0
		}
		return windowStartUs - uint64(r.receiveTimeAheadUs)
	}
	return windowStartUs
}

// Reschedule picks whichever of the CSL or wakeup cycle's next window
// comes first and arms the csl_timer for it, entering the matching
// *Queued state. If the next wakeup window lands before the next CSL
// window, the receiver enters WakeupQueued instead of CslQueued (spec.md
// §4.6).
func (r *Receiver) Reschedule(nowUs uint64) (fireAtUs uint64, state ReceiverState) {
	cslWindow := r.NextCslWindow(nowUs)
	if r.wakeupEnabled {
		wakeupWindow := r.NextWakeupWindow(nowUs)
		if wakeupWindow < cslWindow {
			r.state = WakeupQueued
			return r.timerFireFor(wakeupWindow), r.state
		}
	}
	r.state = CslQueued
	return r.timerFireFor(cslWindow), r.state
}

// OnTimerFire advances the state machine when the armed csl_timer
// expires: a *Queued state flips to its receiving counterpart (arming a
// timed-receive call is the caller's job, driven off the returned
// state); a *Receive state means the window has elapsed, so the next
// window is scheduled immediately.
func (r *Receiver) OnTimerFire(nowUs uint64) ReceiverState {
	switch r.state {
	case CslQueued:
		r.state = CslReceive
	case WakeupQueued:
		r.state = WakeupReceive
		r.lastWakeupUs = nowUs
	case CslReceive, WakeupReceive:
		r.Reschedule(nowUs)
	}
	return r.state
}

// State returns the receiver's current state.
func (r *Receiver) State() ReceiverState {
	return r.state
}

// OnCslSync updates csl's last-sync and last-rx timestamps to
// timestampUs, the rule spec.md §4.6 gives for both directions: a
// transmitted frame carrying a CSL IE whose ACK was received, or a
// received frame that was itself acked with an enhanced-ack security
// field.
func OnCslSync(csl *neighbor.CslInfo, timestampUs uint64) {
	csl.LastSyncUs = timestampUs
	csl.LastRxUs = timestampUs
}
