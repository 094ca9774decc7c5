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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMasterKeyStoreIsDeterministicAndMemoized(t *testing.T) {
	var masterKey [16]byte
	copy(masterKey[:], []byte("0123456789abcdef"))
	store := NewMasterKeyStore(masterKey)

	k1, err := store.KeyForSequence(3)
	require.NoError(t, err)
	require.Len(t, k1.Key, 16)

	k2, err := store.KeyForSequence(3)
	require.NoError(t, err)
	require.Equal(t, k1, k2)
}

func TestMasterKeyStoreDiffersPerSequence(t *testing.T) {
	var masterKey [16]byte
	copy(masterKey[:], []byte("0123456789abcdef"))
	store := NewMasterKeyStore(masterKey)

	k1, err := store.KeyForSequence(1)
	require.NoError(t, err)
	k2, err := store.KeyForSequence(2)
	require.NoError(t, err)

	require.NotEqual(t, k1.Key, k2.Key)
}

func TestMasterKeyStoreRotationInvalidatesCache(t *testing.T) {
	var masterKey [16]byte
	copy(masterKey[:], []byte("0123456789abcdef"))
	store := NewMasterKeyStore(masterKey)

	before, err := store.KeyForSequence(1)
	require.NoError(t, err)

	var newKey [16]byte
	copy(newKey[:], []byte("fedcba9876543210"))
	store.SetMasterKey(newKey)

	after, err := store.KeyForSequence(1)
	require.NoError(t, err)
	require.NotEqual(t, before.Key, after.Key)
}
