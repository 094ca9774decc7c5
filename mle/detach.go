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
	"github.com/openthread-go/meshlink/meshtlv"
)

// statusChildIDRemoved is the Status TLV code this device sends in the
// Child Update Request that announces its own graceful detach.
const statusChildIDRemoved uint8 = 1

// DetachGracefully implements spec.md §8 scenario 5: notify the current
// parent this device is leaving, give it GracefulDetachTimeout to see the
// request go out, then tear down locally regardless of whether a Child
// Update Response ever arrives. callback runs exactly once, either when the
// parent's response is seen (onChildUpdateResponse) or when the timeout
// fires first.
func (c *Core) DetachGracefully(now time.Time, callback func()) error {
	const op = "mle.DetachGracefully"
	if c.detachCallback != nil {
		return meshnet.NewError(op, meshnet.KindBusy, fmt.Errorf("detach already in progress"))
	}
	if c.role != RoleChild {
		c.role = RoleDisabled
		c.notifier.Signal(meshnet.ChangedRole)
		if callback != nil {
			callback()
		}
		return nil
	}
	c.detachCallback = callback
	c.detachDeadline = now.Add(c.cfg.GracefulDetachTimeout)
	c.sendChildUpdateRequestNow(now)
	return nil
}

func (c *Core) tickGracefulDetach(now time.Time) {
	if c.detachCallback == nil {
		return
	}
	if now.Before(c.detachDeadline) {
		return
	}
	c.finishGracefulDetach()
}

func (c *Core) finishGracefulDetach() {
	cb := c.detachCallback
	c.detachCallback = nil
	c.delayed.Clear()
	c.clearPersistedState()
	c.disableCsl()
	c.table.ClearParentCandidate()
	c.table.ClearParent()
	c.ownRloc16 = meshtlv.InvalidRloc16
	c.attachState = AttachIdle
	c.reattachState = ReattachStop
	c.role = RoleDisabled
	c.notifier.Signal(meshnet.ChangedRole | meshnet.ChangedParent)
	if cb != nil {
		cb()
	}
}

// sendChildUpdateRequestNow is the delayed-sender dispatch target for
// MessageChildUpdateRequestAsChild: it builds and seals the Child Update
// Request this device owes its parent, whether a routine keep-alive/mode
// resync or the terminal request a graceful detach sends.
func (c *Core) sendChildUpdateRequestNow(now time.Time) {
	p := c.table.Parent()
	if p == nil {
		return
	}
	tlvs := []meshtlv.TLV{
		&meshtlv.ModeTLV{Mode: c.mode},
	}
	if c.detachCallback != nil {
		// A zero Timeout TLV is the on-wire "remove me" signal; the Status
		// TLV rides along so an FTD parent can also free the child entry.
		tlvs = append(tlvs,
			&meshtlv.TimeoutTLV{Seconds: 0},
			&meshtlv.StatusTLV{Code: statusChildIDRemoved})
	} else {
		tlvs = append(tlvs, &meshtlv.TimeoutTLV{Seconds: c.secondsTimeout()})
	}
	if err := c.sealAndSend(p.ExtAddr, meshtlv.CommandChildUpdateRequest, tlvs...); err != nil {
		log.Warnf("mle: send ChildUpdateRequest: %v", err)
		return
	}
	c.tracker.OnChildUpdateRequestTx(now, c.sleepy)
}

// onChildUpdateRequest handles a Child Update Request sent down from this
// device's parent (a Network Data push, a timeout change, or a probe after
// a missed keep-alive), answering with a Child Update Response that echoes
// this device's own Mode and Timeout.
func (c *Core) onChildUpdateRequest(now time.Time, srcExt meshtlv.ExtAddr, tlvs []meshtlv.TLV) error {
	const op = "mle.onChildUpdateRequest"
	p := c.table.Parent()
	if p == nil || p.ExtAddr != srcExt {
		return meshnet.NewError(op, meshnet.KindDrop, fmt.Errorf("child update request from non-parent"))
	}
	p.LastHeard = now

	if ld, ok := findLeaderData(tlvs); ok {
		if nd := meshtlv.FindTLV(tlvs, meshtlv.TypeNetworkData); nd != nil {
			if raw, ok := meshtlv.RawValueOf(nd); ok {
				if err := c.netData.Apply(raw, ld.DataVersion, ld.StableDataVersion); err != nil {
					log.Warnf("mle: apply network data: %v", err)
				} else {
					c.notifier.Signal(meshnet.ChangedNetworkData)
				}
			}
		}
	}

	respTLVs := []meshtlv.TLV{
		&meshtlv.SourceAddressTLV{Rloc16: c.ownRloc16},
		&meshtlv.ModeTLV{Mode: c.mode},
		&meshtlv.TimeoutTLV{Seconds: c.secondsTimeout()},
	}
	if err := c.sealAndSend(srcExt, meshtlv.CommandChildUpdateResponse, respTLVs...); err != nil {
		log.Warnf("mle: send ChildUpdateResponse: %v", err)
	}
	return nil
}

// onChildUpdateResponse handles the parent's answer to a Child Update
// Request this device sent, whether a routine keep-alive or the Status
// TLV a graceful detach sends — in the latter case it completes the
// detach immediately rather than waiting out GracefulDetachTimeout.
func (c *Core) onChildUpdateResponse(now time.Time, srcExt meshtlv.ExtAddr, tlvs []meshtlv.TLV) error {
	const op = "mle.onChildUpdateResponse"
	p := c.table.Parent()
	if p == nil || p.ExtAddr != srcExt {
		return meshnet.NewError(op, meshnet.KindDrop, fmt.Errorf("child update response from non-parent"))
	}
	p.LastHeard = now
	if to, ok := findTimeout(tlvs); ok {
		c.cfg.ChildTimeout = time.Duration(to) * time.Second
	}
	c.tracker.OnChildUpdateResponseRx(now, c.secondsTimeout())
	if c.detachCallback != nil {
		c.finishGracefulDetach()
	}
	return nil
}
