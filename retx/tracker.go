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

// Package retx implements the Retransmission Tracker (C2): two
// independent timed retry tracks, one for Child Update Request, one for
// Data Request, each with its own attempt count, jitter, and
// detach-on-exhaustion rule.
package retx

import (
	"math/rand"
	"time"
)

// State is a RetryInfo's position in its retry lifecycle.
type State uint8

// RetryInfo states.
const (
	// StateIdle: nothing scheduled on this track.
	StateIdle State = iota
	// StateSendingKeepAlive: a periodic keep-alive Child Update Request is
	// armed for NextTxTime; once it fires the track moves to
	// StateWaitingForResponse.
	StateSendingKeepAlive
	// StateWaitingForResponse: a request is outstanding; NextTxTime is the
	// next retry deadline.
	StateWaitingForResponse
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSendingKeepAlive:
		return "sending_keep_alive"
	case StateWaitingForResponse:
		return "waiting_for_response"
	default:
		return "unknown"
	}
}

// RetryInfo is one timed retry track's state: its lifecycle position, the
// next scheduled transmit time, and a saturating attempt counter.
type RetryInfo struct {
	State        State
	NextTxTime   time.Time
	AttemptCount uint8
}

func (r *RetryInfo) incAttempt(max uint8) {
	if r.AttemptCount < max {
		r.AttemptCount++
	}
}

// Config parameterizes the tracker's timing: the base retry delay, the
// maximum jitter added to each scheduled retry, the attempt ceiling that
// triggers detach, and how many keep-alive attempts worth of margin to
// reserve when priming the periodic keep-alive timer.
type Config struct {
	RetxDelay            time.Duration
	JitterMax            time.Duration
	MaxAttempts          uint8
	MaxKeepAliveAttempts uint8
	// CSLPeriod, when non-zero, is added to the retry delay whenever the
	// owning device is CSL-synchronized with its parent (spec.md §4.2:
	// "+ CSL_PERIOD if CSL enabled").
	CSLPeriod time.Duration
	Rand      *rand.Rand
}

// Callbacks are the side effects the tracker drives: actually sending the
// two message kinds it retries, and promoting the owning MLE core to
// Detached once a track exhausts its attempts.
type Callbacks struct {
	SendChildUpdateRequest func()
	SendDataRequest        func()
	OnDetach               func()
}

// Tracker owns the two retry tracks. It never sends anything itself; it
// calls back into Callbacks and expects the caller to have performed the
// actual transmission before the callback returns (spec.md §5: "a
// transmit to that neighbor happens-before its sent-frame callback").
type Tracker struct {
	cfg Config
	cb  Callbacks

	childUpdate RetryInfo
	dataRequest RetryInfo

	rxOnWhenIdle bool
}

// New returns a Tracker with both tracks Idle.
func New(cfg Config, cb Callbacks) *Tracker {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}
	return &Tracker{cfg: cfg, cb: cb}
}

func (t *Tracker) jitter() time.Duration {
	if t.cfg.JitterMax <= 0 {
		return 0
	}
	return time.Duration(t.cfg.Rand.Int63n(int64(t.cfg.JitterMax)))
}

func (t *Tracker) retxDelay(cslEnabled bool) time.Duration {
	d := t.cfg.RetxDelay + t.jitter()
	if cslEnabled {
		d += t.cfg.CSLPeriod
	}
	return d
}

// ChildUpdate exposes the Child Update track's current state, for
// callers (the Data Request track's suppression rule, diagnostics) that
// need to read it without mutating it.
func (t *Tracker) ChildUpdate() RetryInfo { return t.childUpdate }

// DataRequest exposes the Data Request track's current state.
func (t *Tracker) DataRequest() RetryInfo { return t.dataRequest }

// OnRoleChangeToChild resets both tracks and, for an rx-on-when-idle
// device, primes the Child Update keep-alive timer per spec.md §4.2's
// formula. Sleepy devices never run a Child-Update keep-alive: their own
// Data Request polling is the presence signal, driven externally by the
// poll scheduler rather than this tracker.
func (t *Tracker) OnRoleChangeToChild(now time.Time, timeoutSec uint32, rxOnWhenIdle bool) {
	t.childUpdate = RetryInfo{}
	t.dataRequest = RetryInfo{}
	t.rxOnWhenIdle = rxOnWhenIdle
	if rxOnWhenIdle {
		t.primeKeepAlive(now, timeoutSec)
	}
}

// primeKeepAlive arms the periodic Child Update keep-alive so that even
// in the worst case (every retry consuming its full jitter) the final
// attempt still lands before the parent's timeout expires.
func (t *Tracker) primeKeepAlive(now time.Time, timeoutSec uint32) {
	margin := time.Duration(t.cfg.MaxKeepAliveAttempts) * (t.cfg.RetxDelay + t.cfg.JitterMax)
	delay := time.Duration(timeoutSec)*time.Second - margin
	if delay < 0 {
		delay = 0
	}
	t.childUpdate.State = StateSendingKeepAlive
	t.childUpdate.NextTxTime = now.Add(delay)
}

// OnChildUpdateRequestTx records that a Child Update Request has just
// been transmitted (whether the first attempt of a cycle or a manual
// resync send): bumps the attempt count, moves the track to
// WaitingForResponse, and schedules the next retry.
func (t *Tracker) OnChildUpdateRequestTx(now time.Time, cslEnabled bool) {
	t.childUpdate.incAttempt(t.cfg.MaxAttempts)
	t.childUpdate.State = StateWaitingForResponse
	t.childUpdate.NextTxTime = now.Add(t.retxDelay(cslEnabled))
}

// OnChildUpdateResponseRx resets the Child Update track's attempt count
// and re-primes the keep-alive timer for rx-on-when-idle devices.
func (t *Tracker) OnChildUpdateResponseRx(now time.Time, timeoutSec uint32) {
	t.childUpdate.AttemptCount = 0
	if t.rxOnWhenIdle {
		t.primeKeepAlive(now, timeoutSec)
	} else {
		t.childUpdate.State = StateIdle
	}
}

// OnDataRequestTx records a Data Request transmission. Only meaningful
// for sleepy (non rx-on-when-idle) devices; a no-op otherwise.
func (t *Tracker) OnDataRequestTx(now time.Time, cslEnabled bool) {
	if t.rxOnWhenIdle {
		return
	}
	t.dataRequest.incAttempt(t.cfg.MaxAttempts)
	t.dataRequest.State = StateWaitingForResponse
	t.dataRequest.NextTxTime = now.Add(t.retxDelay(cslEnabled))
}

// OnDataResponseRx resets the Data Request track once its response (a
// Data Response, or a Child Update Response that already carried the
// pending data) arrives.
func (t *Tracker) OnDataResponseRx() {
	t.dataRequest = RetryInfo{}
}

// Tick advances both tracks by one timer tick. Design intent (spec.md
// §4.2): Data Request retries are suppressed while a Child Update
// Response is still outstanding, since that response will carry any
// pending data anyway.
func (t *Tracker) Tick(now time.Time) {
	t.tickChildUpdate(now)
	t.tickDataRequest(now)
}

func (t *Tracker) tickChildUpdate(now time.Time) {
	ri := &t.childUpdate
	switch ri.State {
	case StateIdle:
		return
	case StateSendingKeepAlive:
		if now.Before(ri.NextTxTime) {
			return
		}
		t.cb.SendChildUpdateRequest()
		ri.AttemptCount = 1
		ri.State = StateWaitingForResponse
		ri.NextTxTime = now.Add(t.retxDelay(false))
	case StateWaitingForResponse:
		if now.Before(ri.NextTxTime) {
			return
		}
		if ri.AttemptCount >= t.cfg.MaxAttempts {
			ri.State = StateIdle
			t.cb.OnDetach()
			return
		}
		t.cb.SendChildUpdateRequest()
		ri.incAttempt(t.cfg.MaxAttempts)
		ri.NextTxTime = now.Add(t.retxDelay(false))
	}
}

func (t *Tracker) tickDataRequest(now time.Time) {
	if t.childUpdate.State == StateWaitingForResponse {
		return
	}
	ri := &t.dataRequest
	if ri.State != StateWaitingForResponse {
		return
	}
	if now.Before(ri.NextTxTime) {
		return
	}
	if ri.AttemptCount >= t.cfg.MaxAttempts {
		ri.State = StateIdle
		t.cb.OnDetach()
		return
	}
	t.cb.SendDataRequest()
	ri.incAttempt(t.cfg.MaxAttempts)
	ri.NextTxTime = now.Add(t.retxDelay(false))
}
