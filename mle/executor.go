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
	"context"
	"fmt"
	"time"

	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/neighbor"
)

// protocolVersion is the MLE protocol version this implementation speaks,
// carried in every Version TLV.
const protocolVersion uint16 = 4

// sealAndSend builds, secures, and unicasts a single MLE command to dst.
// Every sender of a command frame (attach, announce, detach, the delayed
// executor) funnels through this so the security-header/frame-counter
// bookkeeping lives in one place.
func (c *Core) sealAndSend(dst meshtlv.ExtAddr, cmd meshtlv.Command, tlvs ...meshtlv.TLV) error {
	const op = "mle.sealAndSend"
	raw, err := c.seal(cmd, tlvs)
	if err != nil {
		return meshnet.NewError(op, meshnet.KindFailed, err)
	}
	if err := c.radio.SendUnicast(context.Background(), dst, raw); err != nil {
		return meshnet.NewError(op, meshnet.KindFailed, err)
	}
	if c.stats != nil {
		c.stats.IncTX(cmd)
	}
	return nil
}

// sealAndSendMulticast is sealAndSend's multicast counterpart, used for
// ParentRequest, Advertisement, multicast Data Response, and Announce.
func (c *Core) sealAndSendMulticast(scope meshnet.MulticastScope, cmd meshtlv.Command, tlvs ...meshtlv.TLV) error {
	const op = "mle.sealAndSendMulticast"
	raw, err := c.seal(cmd, tlvs)
	if err != nil {
		return meshnet.NewError(op, meshnet.KindFailed, err)
	}
	if err := c.radio.SendMulticast(context.Background(), scope, raw); err != nil {
		return meshnet.NewError(op, meshnet.KindFailed, err)
	}
	if c.stats != nil {
		c.stats.IncTX(cmd)
	}
	return nil
}

func (c *Core) seal(cmd meshtlv.Command, tlvs []meshtlv.TLV) ([]byte, error) {
	payload, err := meshtlv.AppendTLVs(tlvs...)
	if err != nil {
		return nil, err
	}
	key, err := c.keys.KeyForSequence(c.currentKeySeq)
	if err != nil {
		return nil, err
	}
	sh := meshtlv.SecurityHeader{FrameCounter: c.ownFrameCounter, KeyIndex: meshtlv.KeyIDFromSequence(c.currentKeySeq)}
	msg := &meshtlv.Message{Security: sh, Command: cmd, Payload: payload}
	sealed, err := meshtlv.SealMessage(msg, key, c.radio.ExtAddress())
	if err != nil {
		return nil, err
	}
	c.ownFrameCounter++
	return append([]byte{suiteSecured}, sealed...), nil
}

// newChallenge draws a fresh 8-byte challenge from the core's own RNG.
func (c *Core) newChallenge() meshtlv.Challenge {
	var ch meshtlv.Challenge
	c.rng.Read(ch[:])
	return ch
}

// reestablishLinkWithNeighbor is spec.md §7's remediation for a peer-class
// message arriving under a key sequence this device hasn't adopted: if the
// sender is the current parent, re-synchronize by sending a fresh Child
// Update Request (whose response will carry the parent's key sequence
// authoritatively); any other neighbor is left for the neighbor table's own
// staleness eviction to clean up.
func (c *Core) reestablishLinkWithNeighbor(now time.Time, p *neighbor.Peer) {
	parent := c.table.Parent()
	if parent == nil || parent.ExtAddr != p.ExtAddr {
		return
	}
	c.scheduleChildUpdateRequest(now)
}

func findSourceAddress(tlvs []meshtlv.TLV) (meshtlv.Rloc16, bool) {
	t := meshtlv.FindTLV(tlvs, meshtlv.TypeSourceAddress)
	if t == nil {
		return 0, false
	}
	sa, ok := t.(*meshtlv.SourceAddressTLV)
	if !ok {
		return 0, false
	}
	return sa.Rloc16, true
}

func findAddress16(tlvs []meshtlv.TLV) (meshtlv.Rloc16, bool) {
	t := meshtlv.FindTLV(tlvs, meshtlv.TypeAddress16)
	if t == nil {
		return 0, false
	}
	a, ok := t.(*meshtlv.Address16TLV)
	if !ok {
		return 0, false
	}
	return a.Rloc16, true
}

func findConnectivity(tlvs []meshtlv.TLV) (meshtlv.Connectivity, bool) {
	t := meshtlv.FindTLV(tlvs, meshtlv.TypeConnectivity)
	if t == nil {
		return meshtlv.Connectivity{}, false
	}
	conn, ok := t.(*meshtlv.ConnectivityTLV)
	if !ok {
		return meshtlv.Connectivity{}, false
	}
	return conn.Data, true
}

func findVersion(tlvs []meshtlv.TLV) (uint16, bool) {
	t := meshtlv.FindTLV(tlvs, meshtlv.TypeVersion)
	if t == nil {
		return 0, false
	}
	v, ok := t.(*meshtlv.VersionTLV)
	if !ok {
		return 0, false
	}
	return v.Version, true
}

func findChallenge(tlvs []meshtlv.TLV) (meshtlv.Challenge, bool) {
	t := meshtlv.FindTLV(tlvs, meshtlv.TypeChallenge)
	if t == nil {
		return meshtlv.Challenge{}, false
	}
	ch, ok := t.(*meshtlv.ChallengeTLV)
	if !ok || len(ch.Value) < 8 {
		return meshtlv.Challenge{}, false
	}
	var out meshtlv.Challenge
	copy(out[:], ch.Value)
	return out, true
}

func findLinkMargin(tlvs []meshtlv.TLV) meshtlv.LinkMargin {
	t := meshtlv.FindTLV(tlvs, meshtlv.TypeLinkMargin)
	if t == nil {
		return 0
	}
	lm, ok := t.(*meshtlv.LinkMarginTLV)
	if !ok {
		return 0
	}
	return lm.Margin
}

func findLeaderData(tlvs []meshtlv.TLV) (meshtlv.LeaderData, bool) {
	t := meshtlv.FindTLV(tlvs, meshtlv.TypeLeaderData)
	if t == nil {
		return meshtlv.LeaderData{}, false
	}
	ld, ok := t.(*meshtlv.LeaderDataTLV)
	if !ok {
		return meshtlv.LeaderData{}, false
	}
	return ld.Data, true
}

func findTimeout(tlvs []meshtlv.TLV) (uint32, bool) {
	t := meshtlv.FindTLV(tlvs, meshtlv.TypeTimeout)
	if t == nil {
		return 0, false
	}
	to, ok := t.(*meshtlv.TimeoutTLV)
	if !ok {
		return 0, false
	}
	return to.Seconds, true
}

var errMissingTLV = fmt.Errorf("mle: required TLV missing")
