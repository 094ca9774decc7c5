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

// Package delayed implements the Delayed Sender (C3): a timed outbound
// queue of MLE messages keyed by (message type, destination), so a
// response to a just-received frame can be scheduled rather than sent
// synchronously (spec.md §5: "to give the response TLVs a chance to be
// batched and to interleave with other due work").
package delayed

import (
	"fmt"
	"net/netip"
	"time"
)

// MessageType identifies which outbound MLE message a schedule record
// represents, for both the coalescing rule and the firing dispatch.
type MessageType uint8

// Delayed message kinds, per spec.md §4.3.
const (
	MessageDataRequest MessageType = iota
	MessageChildUpdateRequestAsChild
	MessageParentResponse
	MessageAdvertisement
	MessageDataResponse
	MessageLinkAccept
	MessageLinkRequest
	MessageDiscoveryResponse
)

var messageTypeNames = map[MessageType]string{
	MessageDataRequest:               "DataRequest",
	MessageChildUpdateRequestAsChild: "ChildUpdateRequestAsChild",
	MessageParentResponse:            "ParentResponse",
	MessageAdvertisement:             "Advertisement",
	MessageDataResponse:              "DataResponse",
	MessageLinkAccept:                "LinkAccept",
	MessageLinkRequest:               "LinkRequest",
	MessageDiscoveryResponse:         "DiscoveryResponse",
}

func (t MessageType) String() string {
	if s, ok := messageTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("MessageType(%d)", uint8(t))
}

// coalesceOnExisting lists the message types for which Schedule is a
// no-op when a matching (type, dest) record is already outstanding.
var coalesceOnExisting = map[MessageType]bool{
	MessageDataRequest:               true,
	MessageChildUpdateRequestAsChild: true,
	MessageAdvertisement:             true,
	MessageLinkRequest:               true,
}

// replaceExisting lists the message types for which Schedule first
// removes any matching record before adding the new one.
var replaceExisting = map[MessageType]bool{
	MessageParentResponse: true,
	MessageDataResponse:   true,
	MessageLinkAccept:     true,
}

// Schedule is one outstanding delayed-send record: when to fire, who to
// send to, which kind of message, and an opaque variant payload carrying
// whatever per-message-type data the executor needs (a saved challenge
// for ParentResponse, route info for LinkAccept, and so on) — spec.md
// §9's redesign note for the original's stored-pointer queue entries.
type Schedule struct {
	Type     MessageType
	Dest     netip.Addr
	SendTime time.Time
	Payload  any
}

type scheduleKey struct {
	typ  MessageType
	dest netip.Addr
}

// Sender is the Delayed Sender: an unordered set of Schedule records, the
// minimum of whose SendTime is the next time Tick has real work to do.
// dispatch is invoked once per due record, in unspecified order within a
// single Tick (spec.md §5).
type Sender struct {
	records  map[scheduleKey]*Schedule
	dispatch func(Schedule)
}

// New returns an empty Sender that calls dispatch for every record Tick
// finds due.
func New(dispatch func(Schedule)) *Sender {
	return &Sender{
		records:  make(map[scheduleKey]*Schedule),
		dispatch: dispatch,
	}
}

// Schedule arms a delayed send of the given type to dest, delay after
// now, carrying payload. Coalescing/replace rules per spec.md §4.3 are
// applied before the record is stored.
func (s *Sender) Schedule(typ MessageType, dest netip.Addr, now time.Time, delay time.Duration, payload any) {
	key := scheduleKey{typ, dest}
	switch {
	case coalesceOnExisting[typ]:
		if _, exists := s.records[key]; exists {
			return
		}
	case replaceExisting[typ]:
		delete(s.records, key)
	}
	s.records[key] = &Schedule{
		Type:     typ,
		Dest:     dest,
		SendTime: now.Add(delay),
		Payload:  payload,
	}
}

// HasMatchingSchedule reports whether a (type, dest) record is currently
// outstanding.
func (s *Sender) HasMatchingSchedule(typ MessageType, dest netip.Addr) bool {
	_, ok := s.records[scheduleKey{typ, dest}]
	return ok
}

// RemoveMatching removes the (type, dest) record if present; a no-op
// otherwise.
func (s *Sender) RemoveMatching(typ MessageType, dest netip.Addr) {
	delete(s.records, scheduleKey{typ, dest})
}

// Pending returns the count of currently outstanding records.
func (s *Sender) Pending() int { return len(s.records) }

// NextFireTime returns the minimum SendTime across all outstanding
// records, and false if none are scheduled.
func (s *Sender) NextFireTime() (time.Time, bool) {
	var best time.Time
	found := false
	for _, r := range s.records {
		if !found || r.SendTime.Before(best) {
			best = r.SendTime
			found = true
		}
	}
	return best, found
}

// Tick dequeues and dispatches every record whose SendTime has passed,
// per spec.md §4.3's firing rule.
func (s *Sender) Tick(now time.Time) {
	var due []*Schedule
	for k, r := range s.records {
		if !r.SendTime.After(now) {
			due = append(due, r)
			delete(s.records, k)
		}
	}
	for _, r := range due {
		s.dispatch(*r)
	}
}

// Clear drops every outstanding record without dispatching them, used by
// disable() (spec.md §5: "dequeues and frees all delayed-sender
// records").
func (s *Sender) Clear() {
	s.records = make(map[scheduleKey]*Schedule)
}
