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
	"encoding/binary"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/neighbor"
)

// Persisted blob versions. A mismatch on restore discards the blob and
// forces a fresh attach rather than guessing at an old layout.
const (
	networkInfoVersion uint16 = 1
	parentInfoVersion  uint16 = 1
)

// frameCounterPersistMargin is added to the restored outgoing frame
// counter so the device resumes strictly above anything it may have sent
// between the last persist and the reset.
const frameCounterPersistMargin = 1000

// networkInfo is the NetworkInfo settings blob: this device's own secured
// -sender state, everything a reset would otherwise roll back in a way a
// peer's replay protection would notice. All fields little-endian.
type networkInfo struct {
	KeySequence  meshtlv.KeySequence
	FrameCounter uint32
	Rloc16       meshtlv.Rloc16
	Mode         meshtlv.DeviceMode
}

func (n *networkInfo) encode() []byte {
	b := make([]byte, 13)
	binary.LittleEndian.PutUint16(b[0:], networkInfoVersion)
	binary.LittleEndian.PutUint32(b[2:], uint32(n.KeySequence))
	binary.LittleEndian.PutUint32(b[6:], n.FrameCounter)
	binary.LittleEndian.PutUint16(b[10:], uint16(n.Rloc16))
	b[12] = byte(n.Mode)
	return b
}

func decodeNetworkInfo(b []byte) (networkInfo, error) {
	if len(b) < 13 {
		return networkInfo{}, fmt.Errorf("mle: short NetworkInfo blob: %d bytes", len(b))
	}
	if v := binary.LittleEndian.Uint16(b[0:]); v != networkInfoVersion {
		return networkInfo{}, fmt.Errorf("mle: NetworkInfo version %d, want %d", v, networkInfoVersion)
	}
	return networkInfo{
		KeySequence:  meshtlv.KeySequence(binary.LittleEndian.Uint32(b[2:])),
		FrameCounter: binary.LittleEndian.Uint32(b[6:]),
		Rloc16:       meshtlv.Rloc16(binary.LittleEndian.Uint16(b[10:])),
		Mode:         meshtlv.DeviceMode(b[12]),
	}, nil
}

// parentInfo is the ParentInfo settings blob: just enough to re-address
// the parent after a reset so the restored child can probe it instead of
// running a full attach cycle.
type parentInfo struct {
	ExtAddr meshtlv.ExtAddr
	Rloc16  meshtlv.Rloc16
}

func (p *parentInfo) encode() []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint16(b[0:], parentInfoVersion)
	copy(b[2:], p.ExtAddr[:])
	binary.LittleEndian.PutUint16(b[10:], uint16(p.Rloc16))
	return b
}

func decodeParentInfo(b []byte) (parentInfo, error) {
	if len(b) < 12 {
		return parentInfo{}, fmt.Errorf("mle: short ParentInfo blob: %d bytes", len(b))
	}
	if v := binary.LittleEndian.Uint16(b[0:]); v != parentInfoVersion {
		return parentInfo{}, fmt.Errorf("mle: ParentInfo version %d, want %d", v, parentInfoVersion)
	}
	var p parentInfo
	copy(p.ExtAddr[:], b[2:10])
	p.Rloc16 = meshtlv.Rloc16(binary.LittleEndian.Uint16(b[10:]))
	return p, nil
}

// persistState writes the NetworkInfo and ParentInfo blobs, called when
// this device attaches and whenever the key sequence moves.
func (c *Core) persistState() {
	if c.settings == nil {
		return
	}
	p := c.table.Parent()
	if p == nil {
		return
	}
	ni := networkInfo{
		KeySequence:  c.currentKeySeq,
		FrameCounter: c.ownFrameCounter,
		Rloc16:       c.ownRloc16,
		Mode:         c.mode,
	}
	pi := parentInfo{ExtAddr: p.ExtAddr, Rloc16: p.Rloc16}
	if err := c.settings.Set(meshnet.KeyNetworkInfo, ni.encode()); err != nil {
		log.Warnf("mle: persist NetworkInfo: %v", err)
	}
	if err := c.settings.Set(meshnet.KeyParentInfo, pi.encode()); err != nil {
		log.Warnf("mle: persist ParentInfo: %v", err)
	}
}

// clearPersistedState deletes both blobs after a deliberate detach, so
// the next boot attaches fresh instead of probing a parent this device
// told to forget it.
func (c *Core) clearPersistedState() {
	if c.settings == nil {
		return
	}
	if err := c.settings.Delete(meshnet.KeyNetworkInfo); err != nil && meshnet.KindOf(err) != meshnet.KindNotFound {
		log.Warnf("mle: delete NetworkInfo: %v", err)
	}
	if err := c.settings.Delete(meshnet.KeyParentInfo); err != nil && meshnet.KindOf(err) != meshnet.KindNotFound {
		log.Warnf("mle: delete ParentInfo: %v", err)
	}
}

// restoreState attempts role recovery from the persisted NetworkInfo and
// ParentInfo blobs (spec.md §6). On success the device comes back as a
// Child of the remembered parent in state Restored and immediately
// schedules a Child Update Request to confirm the parent still knows it;
// if the parent doesn't answer, the retransmission tracker's exhaustion
// path detaches and a normal attach cycle follows. Any missing,
// malformed, or version-mismatched blob aborts the restore, which makes
// the caller fall through to a fresh attach.
func (c *Core) restoreState(now time.Time) bool {
	if c.settings == nil {
		return false
	}
	niRaw, err := c.settings.Get(meshnet.KeyNetworkInfo)
	if err != nil {
		return false
	}
	piRaw, err := c.settings.Get(meshnet.KeyParentInfo)
	if err != nil {
		return false
	}
	ni, err := decodeNetworkInfo(niRaw)
	if err != nil {
		log.Warnf("mle: discarding persisted state: %v", err)
		return false
	}
	pi, err := decodeParentInfo(piRaw)
	if err != nil {
		log.Warnf("mle: discarding persisted state: %v", err)
		return false
	}
	if !ni.Rloc16.IsValid() || pi.ExtAddr.IsZero() {
		return false
	}

	c.currentKeySeq = ni.KeySequence
	c.ownFrameCounter = ni.FrameCounter + frameCounterPersistMargin
	c.ownRloc16 = ni.Rloc16

	c.table.SetParent(neighbor.Parent{
		Peer: neighbor.Peer{
			ExtAddr:     pi.ExtAddr,
			Rloc16:      pi.Rloc16,
			State:       neighbor.StateRestored,
			LastHeard:   now,
			KeySequence: ni.KeySequence,
		},
	})
	if err := c.radio.SetShortAddress(ni.Rloc16); err != nil {
		log.Warnf("mle: restore short address: %v", err)
	}

	c.role = RoleChild
	c.attachState = AttachIdle
	c.reattachState = ReattachStop
	c.tracker.OnRoleChangeToChild(now, c.secondsTimeout(), c.mode.Has(meshtlv.ModeRxOnWhenIdle))
	c.enableCsl(pi.ExtAddr)
	c.scheduleChildUpdateRequest(now)
	c.notifier.Signal(meshnet.ChangedRole | meshnet.ChangedParent)
	log.Infof("mle: restored as child of %s (rloc16 %s)", pi.ExtAddr, ni.Rloc16)
	return true
}
