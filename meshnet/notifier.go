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

package meshnet

import "sync"

// ChangeFlag is one bit of device state the Notifier reports as changed;
// observers (diagnostics, the stats server, a future BLE-TCAT side
// channel) poll the latest Changed set rather than being handed an
// exception or error return (spec.md §7, "pull model").
type ChangeFlag uint32

// Notifier change flags, one bit per observable state category.
const (
	ChangedRole ChangeFlag = 1 << iota
	ChangedPartitionID
	ChangedParent
	ChangedKeySequence
	ChangedChildAdded
	ChangedChildRemoved
	ChangedRouterAdded
	ChangedRouterRemoved
	ChangedNetworkData
)

// Notifier accumulates ChangeFlag bits raised since the last Take call and
// fans them out to any number of registered callbacks. It is the single
// mechanism MLE Core and the neighbor table use to tell the rest of the
// device that something changed, instead of returning errors or events
// through call chains that do not want to know about them.
type Notifier struct {
	mu        sync.Mutex
	pending   ChangeFlag
	observers []func(ChangeFlag)
}

// NewNotifier returns an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Signal raises flags, synchronously invoking every registered observer.
// Callers run on the single-threaded cooperative core loop (spec.md §7),
// so observers must not block.
func (n *Notifier) Signal(flags ChangeFlag) {
	n.mu.Lock()
	n.pending |= flags
	observers := append([]func(ChangeFlag){}, n.observers...)
	n.mu.Unlock()

	for _, obs := range observers {
		obs(flags)
	}
}

// Observe registers fn to be called synchronously on every future Signal.
func (n *Notifier) Observe(fn func(ChangeFlag)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, fn)
}

// Take returns the flags raised since the last Take and clears them, for
// callers that prefer polling (spec.md's "pull model") over registering an
// observer callback.
func (n *Notifier) Take() ChangeFlag {
	n.mu.Lock()
	defer n.mu.Unlock()
	f := n.pending
	n.pending = 0
	return f
}

// Has reports whether flag is among the flags raised since the last Take.
func (f ChangeFlag) Has(flag ChangeFlag) bool {
	return f&flag != 0
}
