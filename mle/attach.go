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
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/mle/bmc"

	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/neighbor"
)

// tickAttach drives the attach cycle's own deadlines: the jittered Start
// delay, a ParentRequest collection window, and the ChildIdResponse wait
// (spec.md §4.8 steps 1-5).
func (c *Core) tickAttach(now time.Time) {
	if c.attachState == AttachIdle {
		return
	}
	if now.Before(c.attachDeadline) {
		return
	}
	switch c.attachState {
	case AttachStart:
		c.beginParentRequestRound(now)
	case AttachParentRequest:
		c.onParentRequestWindowElapsed(now)
	case AttachChildIDRequest:
		c.onChildIDResponseTimeout(now)
	}
}

// requestCounts returns (toRoutersCount, totalCount) for the current
// attach cycle, switching between the first-cycle and next-cycle tables
// per spec.md §4.8 step 2.
func (c *Core) requestCounts() (int, int) {
	if c.attachCycle == 0 {
		return c.cfg.FirstCycleParentRequestsToRoutersCount, c.cfg.FirstCycleParentRequestsTotalCount
	}
	return c.cfg.NextCycleParentRequestsToRoutersCount, c.cfg.NextCycleParentRequestsTotalCount
}

func (c *Core) beginParentRequestRound(now time.Time) {
	c.attachState = AttachParentRequest
	c.attachRequestsSent = 0
	c.table.ClearParentCandidate()
	c.sendNextParentRequest(now)
}

func (c *Core) sendNextParentRequest(now time.Time) {
	toRouters, _ := c.requestCounts()
	routersOnly := c.attachRequestsSent < toRouters

	mask := meshtlv.ScanMaskRouter
	if !routersOnly {
		mask |= meshtlv.ScanMaskREED
	}

	cand := c.table.ParentCandidate()
	cand.Challenge = c.newChallenge()

	tlvs := []meshtlv.TLV{
		meshtlv.NewChallengeTLV(cand.Challenge[:]),
		&meshtlv.ScanMaskTLV{Mask: mask},
		&meshtlv.VersionTLV{Version: protocolVersion},
	}
	if err := c.sealAndSendMulticast(meshnet.ScopeLinkLocalAllRouters, meshtlv.CommandParentRequest, tlvs...); err != nil {
		log.Warnf("mle: send ParentRequest: %v", err)
	}
	if c.stats != nil {
		c.stats.IncAttachAttempt()
	}

	c.attachRequestsSent++
	timeout := c.cfg.ParentRequestRouterTimeout
	if !routersOnly {
		timeout = c.cfg.ParentRequestReedTimeout
	}
	c.attachDeadline = now.Add(timeout)
}

func (c *Core) onParentRequestWindowElapsed(now time.Time) {
	cand := c.table.ParentCandidate()
	if cand.State == neighbor.StateParentResponse {
		c.sendChildIDRequest(now, cand)
		return
	}
	_, total := c.requestCounts()
	if c.attachRequestsSent < total {
		c.sendNextParentRequest(now)
		return
	}
	c.reattach(now)
}

// reattach advances to the next attach cycle and re-arms the Start delay;
// spec.md's dataset fallback chain is a non-goal for this MTD-only build,
// so every cycle simply retries against the active dataset.
func (c *Core) reattach(now time.Time) {
	c.attachCycle++
	c.armStartDelay(now)
}

// bmcCandidateOf adapts the subset of ParentCandidate the ranking cascade
// reads into a bmc.Candidate, keeping mle/bmc free of a neighbor import.
func bmcCandidateOf(cand *neighbor.ParentCandidate) bmc.Candidate {
	return bmc.Candidate{
		LinkMargin:       meshtlv.LinkMargin(cand.LinkMargin),
		IsRouter:         cand.IsRouter,
		ParentPriority:   cand.ParentPriority,
		LinkQuality3:     cand.LinkQuality3,
		LinkQuality2:     cand.LinkQuality2,
		LinkQuality1:     cand.LinkQuality1,
		ProtocolVersion:  cand.ProtocolVersion,
		SEDBufferSize:    cand.SEDBufferSize,
		SEDDatagramCount: cand.SEDDatagramCount,
	}
}

// onParentResponse implements spec.md §4.8 step 4: verify the challenge
// echo, then keep this response only if it outranks whatever candidate is
// already held, per mle/bmc's cascade.
func (c *Core) onParentResponse(now time.Time, srcExt meshtlv.ExtAddr, tlvs []meshtlv.TLV) error {
	const op = "mle.onParentResponse"
	if c.attachState != AttachParentRequest {
		return meshnet.NewError(op, meshnet.KindDrop, fmt.Errorf("not awaiting a parent response"))
	}
	if !c.challengeMatchesOutstanding(meshtlv.CommandParentResponse, tlvs) {
		return meshnet.NewError(op, meshnet.KindSecurity, fmt.Errorf("challenge mismatch"))
	}
	srcAddr, ok := findSourceAddress(tlvs)
	if !ok {
		return meshnet.NewError(op, meshnet.KindParse, errMissingTLV)
	}
	conn, ok := findConnectivity(tlvs)
	if !ok {
		return meshnet.NewError(op, meshnet.KindParse, errMissingTLV)
	}
	peerChallenge, ok := findChallenge(tlvs)
	if !ok {
		return meshnet.NewError(op, meshnet.KindParse, errMissingTLV)
	}
	version, _ := findVersion(tlvs)
	margin := findLinkMargin(tlvs)

	candidate := bmc.Candidate{
		LinkMargin:       margin,
		IsRouter:         !srcAddr.IsChild(),
		ParentPriority:   conn.ParentPriority,
		LinkQuality3:     conn.LinkQuality3,
		LinkQuality2:     conn.LinkQuality2,
		LinkQuality1:     conn.LinkQuality1,
		ProtocolVersion:  version,
		SEDBufferSize:    conn.SEDBufferSize,
		SEDDatagramCount: conn.SEDDatagramCount,
	}

	cand := c.table.ParentCandidate()
	if cand.State == neighbor.StateParentResponse && !bmc.Better(candidate, bmcCandidateOf(cand), c.sleepy) {
		return nil
	}

	sentChallenge := cand.Challenge
	cand.Parent = neighbor.Parent{
		Peer: neighbor.Peer{
			ExtAddr:   srcExt,
			Rloc16:    srcAddr,
			State:     neighbor.StateParentResponse,
			LastHeard: now,
		},
		LeaderCost: conn.LeaderCost,
	}
	cand.Challenge = sentChallenge
	cand.PeerChallenge = peerChallenge
	cand.LinkMargin = uint8(margin)
	cand.ParentPriority = candidate.ParentPriority
	cand.LinkQuality3 = candidate.LinkQuality3
	cand.LinkQuality2 = candidate.LinkQuality2
	cand.LinkQuality1 = candidate.LinkQuality1
	cand.SEDBufferSize = candidate.SEDBufferSize
	cand.SEDDatagramCount = candidate.SEDDatagramCount
	cand.ProtocolVersion = candidate.ProtocolVersion
	cand.IsRouter = candidate.IsRouter
	return nil
}

// sendChildIDRequest advances to step 5 of the attach cycle: commit to the
// best-ranked candidate by echoing its issued challenge.
func (c *Core) sendChildIDRequest(now time.Time, cand *neighbor.ParentCandidate) {
	c.attachState = AttachChildIDRequest
	c.attachDeadline = now.Add(c.cfg.ChildIDResponseTimeout)
	cand.State = neighbor.StateChildIDRequest
	cand.Challenge = cand.PeerChallenge

	tlvs := []meshtlv.TLV{
		meshtlv.NewResponseTLV(cand.Challenge[:]),
		&meshtlv.ModeTLV{Mode: c.mode},
		&meshtlv.TimeoutTLV{Seconds: c.secondsTimeout()},
		&meshtlv.VersionTLV{Version: protocolVersion},
		&meshtlv.TlvRequestTLV{Types: []meshtlv.Type{meshtlv.TypeAddress16, meshtlv.TypeNetworkData, meshtlv.TypeRoute}},
	}
	if c.sleepy && c.cfg.CslPeriod > 0 {
		tlvs = append(tlvs,
			&meshtlv.CslTimeoutTLV{Seconds: c.secondsTimeout()},
			&meshtlv.CslClockAccuracyTLV{
				AccuracyPPM:   c.radio.CslAccuracyPPM(),
				UncertaintyUs: uint8(c.radio.CslUncertaintyUs() / 10),
			})
	}
	if err := c.sealAndSend(cand.ExtAddr, meshtlv.CommandChildIDRequest, tlvs...); err != nil {
		log.Warnf("mle: send ChildIdRequest: %v", err)
	}
}

func (c *Core) onChildIDResponseTimeout(now time.Time) {
	c.table.ClearParentCandidate()
	c.onParentRequestWindowElapsedAfterTimeout(now)
}

// onParentRequestWindowElapsedAfterTimeout re-enters the collection window
// bookkeeping after a ChildIdResponse timeout, so a failed ChildId exchange
// still respects the cycle's remaining request budget before reattaching.
func (c *Core) onParentRequestWindowElapsedAfterTimeout(now time.Time) {
	c.attachState = AttachParentRequest
	_, total := c.requestCounts()
	if c.attachRequestsSent < total {
		c.sendNextParentRequest(now)
		return
	}
	c.reattach(now)
}

// onChildIDResponse completes the attach cycle (spec.md §4.8 step 5/6):
// record the assigned RLOC16, apply Network Data, and promote to Child.
func (c *Core) onChildIDResponse(now time.Time, srcExt meshtlv.ExtAddr, tlvs []meshtlv.TLV) error {
	const op = "mle.onChildIDResponse"
	if c.attachState != AttachChildIDRequest {
		return meshnet.NewError(op, meshnet.KindDrop, fmt.Errorf("not awaiting a child id response"))
	}
	cand := c.table.ParentCandidate()
	if cand.ExtAddr != srcExt {
		return meshnet.NewError(op, meshnet.KindDrop, fmt.Errorf("child id response from unexpected peer"))
	}
	addr16, ok := findAddress16(tlvs)
	if !ok {
		return meshnet.NewError(op, meshnet.KindParse, errMissingTLV)
	}
	if srcAddr, ok := findSourceAddress(tlvs); ok && srcAddr.RouterID() != addr16.RouterID() {
		return meshnet.NewError(op, meshnet.KindDrop, fmt.Errorf("assigned rloc16 %s not under responding router %s", addr16, srcAddr))
	}
	leaderData, ok := findLeaderData(tlvs)
	if !ok {
		return meshnet.NewError(op, meshnet.KindParse, errMissingTLV)
	}
	if nd := meshtlv.FindTLV(tlvs, meshtlv.TypeNetworkData); nd != nil {
		if raw, ok := meshtlv.RawValueOf(nd); ok {
			if err := c.netData.Apply(raw, leaderData.DataVersion, leaderData.StableDataVersion); err != nil {
				log.Warnf("mle: apply network data: %v", err)
			}
		}
	}

	c.ownRloc16 = addr16
	cand.State = neighbor.StateValid
	if err := c.radio.SetShortAddress(addr16); err != nil {
		log.Warnf("mle: set short address: %v", err)
	}

	c.BecomeChild(cand)
	return nil
}
