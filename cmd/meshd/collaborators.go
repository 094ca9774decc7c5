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

package main

import (
	"sync"

	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
)

// memNetworkData, memSettingsStore, and memForwarder are the minimal
// in-memory stand-ins meshd needs to bring up a mle.Core: real deployments
// replace them with the Thread stack's actual Network Data cache, flash
// settings store, and 6LoWPAN forwarder. None of the three are part of
// this module's scope (spec.md §1 names NetworkDataStore, SettingsStore,
// and MeshForwarder as external collaborators) - they exist here only so
// meshd has something concrete to wire mle.NewSystem against.

type memNetworkData struct {
	mu            sync.Mutex
	data          []byte
	version       uint8
	stableVersion uint8
}

func (d *memNetworkData) Encode(stableOnly bool) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if stableOnly {
		// No per-entry stable/unstable split is tracked by this stand-in;
		// a real store would filter its TLV set here.
		return d.data, nil
	}
	return d.data, nil
}

func (d *memNetworkData) Apply(data []byte, version, stableVersion uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = append([]byte(nil), data...)
	d.version = version
	d.stableVersion = stableVersion
	return nil
}

func (d *memNetworkData) Version() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

func (d *memNetworkData) StableVersion() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stableVersion
}

type memSettingsStore struct {
	mu     sync.Mutex
	single map[meshnet.SettingsKey][]byte
	lists  map[meshnet.SettingsKey][][]byte
}

func newMemSettingsStore() *memSettingsStore {
	return &memSettingsStore{
		single: make(map[meshnet.SettingsKey][]byte),
		lists:  make(map[meshnet.SettingsKey][][]byte),
	}
}

func (s *memSettingsStore) Get(key meshnet.SettingsKey) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.single[key]
	if !ok {
		return nil, meshnet.NewError("memSettingsStore.Get", meshnet.KindNotFound, nil)
	}
	return v, nil
}

func (s *memSettingsStore) GetIndexed(key meshnet.SettingsKey, index int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lists[key]
	if index < 0 || index >= len(list) {
		return nil, meshnet.NewError("memSettingsStore.GetIndexed", meshnet.KindNotFound, nil)
	}
	return list[index], nil
}

func (s *memSettingsStore) Set(key meshnet.SettingsKey, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.single[key] = value
	return nil
}

func (s *memSettingsStore) Add(key meshnet.SettingsKey, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append(s.lists[key], value)
	return nil
}

func (s *memSettingsStore) Delete(key meshnet.SettingsKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.single, key)
	delete(s.lists, key)
	return nil
}

func (s *memSettingsStore) DeleteIndexed(key meshnet.SettingsKey, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lists[key]
	if index < 0 || index >= len(list) {
		return meshnet.NewError("memSettingsStore.DeleteIndexed", meshnet.KindNotFound, nil)
	}
	s.lists[key] = append(list[:index], list[index+1:]...)
	return nil
}

func (s *memSettingsStore) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.single = make(map[meshnet.SettingsKey][]byte)
	s.lists = make(map[meshnet.SettingsKey][][]byte)
	return nil
}

// memForwarder answers MeshForwarder without ever fragmenting: every
// payload is handed back whole on the first PrepareFragment call. Real
// 6LoWPAN fragmentation is MeshForwarder's job per spec.md §1 and has no
// analog in this stand-in.
type memForwarder struct {
	mu    sync.Mutex
	arena meshnet.Arena
}

func (f *memForwarder) Enqueue(payload []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.arena.Insert(payload)
	m.DirectTx = true
	return m.Index, nil
}

func (f *memForwarder) MarkDelivered(index, childIndex int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.arena.At(index)
	if m == nil {
		return meshnet.NewError("memForwarder.MarkDelivered", meshnet.KindNotFound, nil)
	}
	m.Pending.ClearBit(childIndex)
	m.DirectTx = false
	f.arena.ReleaseIfDone(index)
	return nil
}

func (f *memForwarder) Drop(index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.arena.At(index)
	if m == nil {
		return nil
	}
	m.DirectTx = false
	m.Pending = meshnet.ChildMask{}
	f.arena.ReleaseIfDone(index)
	return nil
}

func (f *memForwarder) PrepareFragment(index int, fragmentOffset uint16, dst meshtlv.ExtAddr, useShortAddress bool) ([]byte, uint16, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.arena.At(index)
	if m == nil {
		return nil, 0, true, meshnet.NewError("memForwarder.PrepareFragment", meshnet.KindNotFound, nil)
	}
	if int(fragmentOffset) >= len(m.Payload) {
		return nil, fragmentOffset, true, nil
	}
	return m.Payload[fragmentOffset:], uint16(len(m.Payload)), true, nil
}
