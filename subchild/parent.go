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

package subchild

import (
	"context"
	"fmt"
	"math/rand"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openthread-go/meshlink/csl"
	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/mle"
	"github.com/openthread-go/meshlink/neighbor"
)

// protocolVersion is the MLE protocol version this sub-child parent
// speaks in its own ParentResponse/LinkAccept TLVs, matching mle.Core's.
const protocolVersion uint16 = 4

// statusChildIDRemoved mirrors mle.Core's Status TLV code for the
// zero-timeout Child Update Request a detach-pending removal sends.
const statusChildIDRemoved uint8 = 1

// ParentSide is the sub-child parent's own mini MLE state machine
// (spec.md §4.9): it admits further MTDs as sub-children, walking them
// through the same ParentRequest -> ParentResponse -> LinkRequest ->
// LinkAccept -> ChildIdRequest -> ChildIdResponse exchange mle/attach.go
// drives from the other side, and forwards their update traffic into the
// rest of the tree via forward.go.
type ParentSide struct {
	cfg   *Config
	table *neighbor.Table

	keys  mle.KeyStore
	radio meshnet.RadioPort

	// ownRloc16/currentKeySeq read the owning mle.Core's live state: a
	// sub-child parent's own frames ride the same RLOC16 and key schedule
	// as the rest of this device's MLE traffic.
	ownRloc16     func() meshtlv.Rloc16
	currentKeySeq func() meshtlv.KeySequence

	notifier *meshnet.Notifier

	rng             *rand.Rand
	ownFrameCounter uint32

	// ownChallenges holds the challenge this device issued to each
	// attaching candidate (echoed back in its LinkRequest's Response
	// TLV), keyed by the candidate's extended address. neighbor.Child's
	// ChildAuxState already carries the candidate's own inbound
	// challenge (Attaching variant); this side table is this device's
	// own half of that exchange, which Child has no field for.
	ownChallenges map[meshtlv.ExtAddr]meshtlv.Challenge

	// transientDeadlines bounds how long a newly admitted sub-child slot
	// may sit short of a completed Child Id Request before it is
	// reclaimed (Config.TransientAttachTimeout).
	transientDeadlines map[meshtlv.ExtAddr]time.Time

	// detachDeadlines bounds how long a DetachPending sub-child is kept
	// around awaiting a Child Update Response before being freed
	// outright (spec.md §4.9's four-CSL-RTT rule).
	detachDeadlines map[meshtlv.ExtAddr]time.Time
}

// New returns a ParentSide with an empty sub-child table sized by
// cfg.MaxSubChildren. ownRloc16/currentKeySeq are normally the owning
// mle.Core's own GetRloc16/CurrentKeySequence methods.
func New(cfg *Config, radio meshnet.RadioPort, keys mle.KeyStore, notifier *meshnet.Notifier, ownRloc16 func() meshtlv.Rloc16, currentKeySeq func() meshtlv.KeySequence) *ParentSide {
	return &ParentSide{
		cfg:                cfg,
		table:              neighbor.NewTable(cfg.MaxSubChildren),
		keys:               keys,
		radio:              radio,
		ownRloc16:          ownRloc16,
		currentKeySeq:      currentKeySeq,
		notifier:           notifier,
		rng:                rand.New(rand.NewSource(time.Now().UnixNano())),
		ownChallenges:      make(map[meshtlv.ExtAddr]meshtlv.Challenge),
		transientDeadlines: make(map[meshtlv.ExtAddr]time.Time),
		detachDeadlines:    make(map[meshtlv.ExtAddr]time.Time),
	}
}

// Table exposes the sub-child table for inspection (cmd/meshstat, CSL
// candidate assembly).
func (ps *ParentSide) Table() *neighbor.Table { return ps.table }

func (ps *ParentSide) newChallenge() meshtlv.Challenge {
	var ch meshtlv.Challenge
	ps.rng.Read(ch[:])
	return ch
}

// sealAndSend mirrors mle/executor.go's sealAndSend: every sub-child
// parent response funnels through here for the security-header/frame-
// counter bookkeeping. It shares the owning Core's key schedule but
// tracks its own outgoing frame counter, since the sub-child parent role
// and the device's own child role are wire-distinct senders.
func (ps *ParentSide) sealAndSend(ctx context.Context, dst meshtlv.ExtAddr, cmd meshtlv.Command, tlvs ...meshtlv.TLV) error {
	const op = "subchild.sealAndSend"
	payload, err := meshtlv.AppendTLVs(tlvs...)
	if err != nil {
		return meshnet.NewError(op, meshnet.KindFailed, err)
	}
	seq := ps.currentKeySeq()
	key, err := ps.keys.KeyForSequence(seq)
	if err != nil {
		return meshnet.NewError(op, meshnet.KindFailed, err)
	}
	sh := meshtlv.SecurityHeader{FrameCounter: ps.ownFrameCounter, KeyIndex: meshtlv.KeyIDFromSequence(seq)}
	msg := &meshtlv.Message{Security: sh, Command: cmd, Payload: payload}
	sealed, err := meshtlv.SealMessage(msg, key, ps.radio.ExtAddress())
	if err != nil {
		return meshnet.NewError(op, meshnet.KindFailed, err)
	}
	ps.ownFrameCounter++
	raw := append([]byte{0}, sealed...) // suiteSecured == 0, mirroring mle.suiteSecured
	if err := ps.radio.SendUnicast(ctx, dst, raw); err != nil {
		return meshnet.NewError(op, meshnet.KindFailed, err)
	}
	return nil
}

// HandleParentRequest admits (or rejects) a candidate sub-child's
// ParentRequest: spec.md §4.9 gates admission on this device having
// remaining RLOC16 address space (prefix_length < 9), the request's Scan
// Mask TLV carrying the sub-child bit, and a free sub-child table slot.
func (ps *ParentSide) HandleParentRequest(ctx context.Context, now time.Time, srcExt meshtlv.ExtAddr, tlvs []meshtlv.TLV) error {
	const op = "subchild.HandleParentRequest"
	if !ps.cfg.Eligible() {
		return meshnet.NewError(op, meshnet.KindDrop, fmt.Errorf("no remaining address space to sub-parent"))
	}
	mask, ok := findScanMask(tlvs)
	if !ok || !mask.Has(meshtlv.ScanMaskSubChild) {
		return meshnet.NewError(op, meshnet.KindDrop, fmt.Errorf("parent request not scoped to sub-child parents"))
	}
	theirChallenge, ok := findChallenge(tlvs)
	if !ok {
		return meshnet.NewError(op, meshnet.KindParse, errMissingTLV)
	}
	if existing := ps.table.FindChildByExtAddress(srcExt, neighbor.FilterAny); existing != nil {
		ps.table.RemoveChild(existing)
	}
	if ps.table.NumChildren() >= ps.table.MaxChildren() {
		return meshnet.NewError(op, meshnet.KindNoBufs, fmt.Errorf("sub-child table full"))
	}
	child, err := ps.table.NewChild()
	if err != nil {
		return meshnet.NewError(op, meshnet.KindNoBufs, err)
	}
	child.ExtAddr = srcExt
	child.State = neighbor.StateParentRequest
	child.LastHeard = now
	child.Aux.SetAttaching(theirChallenge)
	ps.table.AddChild(child)

	ownChallenge := ps.newChallenge()
	ps.ownChallenges[srcExt] = ownChallenge
	ps.transientDeadlines[srcExt] = now.Add(ps.cfg.TransientAttachTimeout)

	respTLVs := []meshtlv.TLV{
		&meshtlv.SourceAddressTLV{Rloc16: ps.ownRloc16()},
		meshtlv.NewResponseTLV(theirChallenge[:]),
		meshtlv.NewChallengeTLV(ownChallenge[:]),
		&meshtlv.ConnectivityTLV{Data: meshtlv.Connectivity{ParentPriority: 0}},
		&meshtlv.LinkMarginTLV{Margin: 0},
		&meshtlv.VersionTLV{Version: protocolVersion},
	}
	if err := ps.sealAndSend(ctx, srcExt, meshtlv.CommandParentResponse, respTLVs...); err != nil {
		log.Warnf("subchild: send ParentResponse: %v", err)
		return err
	}
	return nil
}

// HandleLinkRequest advances an admitted candidate from ParentRequest to
// LinkAccept once it echoes back the challenge this device issued in
// ParentResponse.
func (ps *ParentSide) HandleLinkRequest(ctx context.Context, now time.Time, srcExt meshtlv.ExtAddr, tlvs []meshtlv.TLV) error {
	const op = "subchild.HandleLinkRequest"
	child := ps.table.FindChildByExtAddress(srcExt, neighbor.StateOf(neighbor.StateParentRequest))
	if child == nil {
		return meshnet.NewError(op, meshnet.KindDrop, fmt.Errorf("link request from unknown or out-of-sequence candidate"))
	}
	echoed, ok := findResponseChallenge(tlvs)
	if !ok || echoed != ps.ownChallenges[srcExt] {
		return meshnet.NewError(op, meshnet.KindSecurity, fmt.Errorf("link request challenge mismatch"))
	}
	child.State = neighbor.StateLinkAccept
	child.LastHeard = now
	ps.transientDeadlines[srcExt] = now.Add(ps.cfg.TransientAttachTimeout)

	tlv := ps.newChallenge()
	ps.ownChallenges[srcExt] = tlv
	respTLVs := []meshtlv.TLV{
		&meshtlv.SourceAddressTLV{Rloc16: ps.ownRloc16()},
		meshtlv.NewResponseTLV(echoed[:]),
		meshtlv.NewChallengeTLV(tlv[:]),
		&meshtlv.VersionTLV{Version: protocolVersion},
	}
	if err := ps.sealAndSend(ctx, srcExt, meshtlv.CommandLinkAccept, respTLVs...); err != nil {
		log.Warnf("subchild: send LinkAccept: %v", err)
		return err
	}
	return nil
}

// HandleChildIDRequest completes the handshake: assign the sub-child an
// RLOC16 within this device's own address space and move it to Valid.
func (ps *ParentSide) HandleChildIDRequest(ctx context.Context, now time.Time, srcExt meshtlv.ExtAddr, tlvs []meshtlv.TLV) error {
	const op = "subchild.HandleChildIDRequest"
	child := ps.table.FindChildByExtAddress(srcExt, neighbor.StateOf(neighbor.StateLinkAccept))
	if child == nil {
		return meshnet.NewError(op, meshnet.KindDrop, fmt.Errorf("child id request from unknown or out-of-sequence candidate"))
	}
	echoed, ok := findResponseChallenge(tlvs)
	if !ok || echoed != ps.ownChallenges[srcExt] {
		return meshnet.NewError(op, meshnet.KindSecurity, fmt.Errorf("child id request challenge mismatch"))
	}
	idx := ps.table.IndexOf(child)
	if idx < 0 {
		return meshnet.NewError(op, meshnet.KindFailed, fmt.Errorf("sub-child slot not found"))
	}
	rloc16, err := ps.allocateRloc16(idx)
	if err != nil {
		return meshnet.NewError(op, meshnet.KindNoBufs, err)
	}

	seconds, _ := findTimeout(tlvs)
	if seconds == 0 {
		seconds = uint32(ps.cfg.TransientAttachTimeout / time.Second)
		if seconds == 0 {
			seconds = 1
		}
	}
	if mode, ok := findMode(tlvs); ok {
		child.Mode = mode
	}

	child.Rloc16 = rloc16
	child.State = neighbor.StateValid
	child.LastHeard = now
	child.TimeoutSeconds = seconds
	if reg, ok := meshtlv.FindTLV(tlvs, meshtlv.TypeAddressRegistration).(*meshtlv.AddressRegistrationTLV); ok {
		child.Addresses = child.Addresses[:0]
		for _, e := range reg.Entries {
			if e.Compressed {
				// Context-compressed entries (the mesh-local EID rides as
				// context 0) are expanded by the forwarder's context table
				// and never stored on the child entry.
				continue
			}
			if err := child.AddAddress(netip.AddrFrom16(e.FullAddr)); err != nil {
				log.Warnf("subchild: register address for %s: %v", srcExt, err)
				break
			}
		}
	}
	if req, ok := meshtlv.FindTLV(tlvs, meshtlv.TypeTlvRequest).(*meshtlv.TlvRequestTLV); ok {
		child.Aux.SetAttached(req.Types)
	} else {
		child.Aux.Clear()
	}
	delete(ps.ownChallenges, srcExt)
	delete(ps.transientDeadlines, srcExt)

	respTLVs := []meshtlv.TLV{
		&meshtlv.SourceAddressTLV{Rloc16: ps.ownRloc16()},
		&meshtlv.Address16TLV{Rloc16: rloc16},
		&meshtlv.LeaderDataTLV{},
		&meshtlv.VersionTLV{Version: protocolVersion},
	}
	if err := ps.sealAndSend(ctx, srcExt, meshtlv.CommandChildIDResponse, respTLVs...); err != nil {
		log.Warnf("subchild: send ChildIdResponse: %v", err)
		return err
	}
	if ps.notifier != nil {
		ps.notifier.Signal(meshnet.ChangedChildAdded)
	}
	return nil
}

// allocateRloc16 derives a sub-child's RLOC16 from this device's own
// address prefix, the slot's dense table index, and Config.AddressSpace:
// the low AddressSpace bits of the sub-child's RLOC16 are the slot index
// plus one (reserving 0 the way a router's own child id 0 means "the
// router itself"), the remaining high bits come from this device's own
// RLOC16.
func (ps *ParentSide) allocateRloc16(slotIdx int) (meshtlv.Rloc16, error) {
	space := ps.cfg.AddressSpace
	if space == 0 || space > 15 {
		return 0, fmt.Errorf("subchild: invalid address space %d", space)
	}
	maxSlots := (1 << space) - 1
	if slotIdx >= maxSlots {
		return 0, fmt.Errorf("subchild: slot index %d exceeds address space of %d bits", slotIdx, space)
	}
	own := uint16(ps.ownRloc16())
	mask := uint16(0xffff) << space
	return meshtlv.Rloc16((own & mask) | uint16(slotIdx+1)), nil
}

// RemoveSubChild implements spec.md §4.9's detach-pending removal: send a
// zero-timeout Child Update Request toward the sub-child and mark it
// DetachPending rather than freeing its slot immediately, so a child that
// is merely slow to respond (rather than gone) is not double-counted
// against the address space while its removal is still in flight.
func (ps *ParentSide) RemoveSubChild(ctx context.Context, now time.Time, ext meshtlv.ExtAddr) error {
	const op = "subchild.RemoveSubChild"
	child := ps.table.FindChildByExtAddress(ext, neighbor.FilterAny)
	if child == nil {
		return meshnet.NewError(op, meshnet.KindNotFound, nil)
	}
	child.State = neighbor.StateDetachPending
	child.LastHeard = now
	ps.detachDeadlines[ext] = now.Add(detachPendingTimeout(child.Csl))

	tlvs := []meshtlv.TLV{
		&meshtlv.SourceAddressTLV{Rloc16: ps.ownRloc16()},
		&meshtlv.TimeoutTLV{Seconds: 0},
		&meshtlv.StatusTLV{Code: statusChildIDRemoved},
	}
	if err := ps.sealAndSend(ctx, ext, meshtlv.CommandChildUpdateRequest, tlvs...); err != nil {
		log.Warnf("subchild: send detach-pending ChildUpdateRequest: %v", err)
	}
	return nil
}

// detachPendingTimeout is four CSL round-trip times plus a one-second
// floor, the cutoff for a DetachPending sub-child to answer before this
// device frees its slot outright regardless. The CSL period stands in as
// the round-trip estimate: a frame cannot complete a round trip faster
// than the child's own sampling cadence.
func detachPendingTimeout(cslInfo neighbor.CslInfo) time.Duration {
	rtt := time.Duration(cslInfo.Period) * 10 * time.Microsecond
	return rtt*DetachPendingRTTMultiplier + time.Second
}

// Tick advances the transient-attach and detach-pending deadlines,
// reclaiming any sub-child slot that overran either one.
func (ps *ParentSide) Tick(now time.Time) {
	for ext, deadline := range ps.transientDeadlines {
		if now.Before(deadline) {
			continue
		}
		if child := ps.table.FindChildByExtAddress(ext, neighbor.FilterAny); child != nil && child.State != neighbor.StateValid {
			ps.table.RemoveChild(child)
		}
		delete(ps.transientDeadlines, ext)
		delete(ps.ownChallenges, ext)
	}
	for ext, deadline := range ps.detachDeadlines {
		if now.Before(deadline) {
			continue
		}
		if child := ps.table.FindChildByExtAddress(ext, neighbor.StateOf(neighbor.StateDetachPending)); child != nil {
			ps.table.RemoveChild(child)
		}
		delete(ps.detachDeadlines, ext)
	}
}

// OnChildUpdateResponse finishes a DetachPending removal early once the
// sub-child's response lands, rather than waiting out the four-RTT
// ceiling.
func (ps *ParentSide) OnChildUpdateResponse(ext meshtlv.ExtAddr) {
	child := ps.table.FindChildByExtAddress(ext, neighbor.StateOf(neighbor.StateDetachPending))
	if child == nil {
		return
	}
	ps.table.RemoveChild(child)
	delete(ps.detachDeadlines, ext)
}

// CslCandidates builds the CSL Tx Scheduler's candidate slice for a
// sub-child parent: every Valid sub-child, plus — unlike the plain FTD
// variant — this device's own parent and parent-candidate, since a
// sub-child parent is itself a sleepy child of the regular mesh
// (spec.md §4.5: "for the MTD sub-child variant, additionally the parent
// and parent-candidate").
func (ps *ParentSide) CslCandidates(parent *neighbor.Parent, parentCandidate *neighbor.ParentCandidate) []csl.NeighborRef {
	var out []csl.NeighborRef
	ps.table.Iterate(neighbor.FilterValid, func(c *neighbor.Child) bool {
		out = append(out, csl.NeighborRef{
			ChildIndex: ps.table.IndexOf(c),
			ExtAddr:    c.ExtAddr,
			ShortAddr:  c.Rloc16,
			Csl:        &c.Csl,
			Indirect:   &c.Indirect,
		})
		return true
	})
	if parent != nil {
		out = append(out, csl.NeighborRef{
			ChildIndex: neighbor.NoMessage,
			ExtAddr:    parent.ExtAddr,
			ShortAddr:  parent.Rloc16,
			Csl:        &parent.Csl,
		})
	}
	if parentCandidate != nil && parentCandidate.State != neighbor.StateInvalid {
		out = append(out, csl.NeighborRef{
			ChildIndex: neighbor.NoMessage,
			ExtAddr:    parentCandidate.ExtAddr,
			ShortAddr:  parentCandidate.Rloc16,
			Csl:        &parentCandidate.Csl,
		})
	}
	return out
}

func findScanMask(tlvs []meshtlv.TLV) (meshtlv.ScanMask, bool) {
	t := meshtlv.FindTLV(tlvs, meshtlv.TypeScanMask)
	if t == nil {
		return 0, false
	}
	sm, ok := t.(*meshtlv.ScanMaskTLV)
	if !ok {
		return 0, false
	}
	return sm.Mask, true
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

func findResponseChallenge(tlvs []meshtlv.TLV) (meshtlv.Challenge, bool) {
	t := meshtlv.FindTLV(tlvs, meshtlv.TypeResponse)
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

func findMode(tlvs []meshtlv.TLV) (meshtlv.DeviceMode, bool) {
	t := meshtlv.FindTLV(tlvs, meshtlv.TypeMode)
	if t == nil {
		return 0, false
	}
	m, ok := t.(*meshtlv.ModeTLV)
	if !ok {
		return 0, false
	}
	return m.Mode, true
}

var errMissingTLV = fmt.Errorf("subchild: required TLV missing")
