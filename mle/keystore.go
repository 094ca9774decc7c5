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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/openthread-go/meshlink/meshtlv"
)

// threadKDFLabel is the fixed info string Thread's key derivation function
// mixes into the HMAC input, so MLE/MAC keys for a given sequence can never
// collide with key material derived from the same master key for another
// purpose.
const threadKDFLabel = "Thread"

// MasterKeyStore derives the per-sequence MLE key deterministically from a
// single 16-byte network master key, the way Thread's own key rotation
// works: sequence N's key is HMAC-SHA256(masterKey, masterKey || seq_be ||
// "Thread")[:16], so any sequence can be answered without ever storing a
// table of historical keys. Results are memoized since the attach/update
// hot path calls KeyForSequence once per outgoing and incoming frame.
type MasterKeyStore struct {
	masterKey [16]byte

	mu    sync.Mutex
	cache map[meshtlv.KeySequence][16]byte
}

// NewMasterKeyStore returns a KeyStore deriving keys from masterKey.
func NewMasterKeyStore(masterKey [16]byte) *MasterKeyStore {
	return &MasterKeyStore{
		masterKey: masterKey,
		cache:     make(map[meshtlv.KeySequence][16]byte),
	}
}

// KeyForSequence implements KeyStore.
func (s *MasterKeyStore) KeyForSequence(seq meshtlv.KeySequence) (meshtlv.KeyMaterial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.cache[seq]; ok {
		return meshtlv.KeyMaterial{Sequence: seq, Key: k}, nil
	}

	var seqBuf [4]byte
	binary.BigEndian.PutUint32(seqBuf[:], uint32(seq))

	mac := hmac.New(sha256.New, s.masterKey[:])
	mac.Write(s.masterKey[:])
	mac.Write(seqBuf[:])
	mac.Write([]byte(threadKDFLabel))
	sum := mac.Sum(nil)

	var key [16]byte
	copy(key[:], sum[:16])
	s.cache[seq] = key

	return meshtlv.KeyMaterial{Sequence: seq, Key: key}, nil
}

// SetMasterKey rotates the network master key (spec.md §6: commissioning
// can replace the whole key chain, not just advance the sequence),
// invalidating every memoized key.
func (s *MasterKeyStore) SetMasterKey(masterKey [16]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masterKey = masterKey
	s.cache = make(map[meshtlv.KeySequence][16]byte)
}
