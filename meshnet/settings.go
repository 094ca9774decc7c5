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

// SettingsKey enumerates the recognized non-volatile settings keys this
// module persists across resets. The set is closed: an unrecognized key
// is a programming error, not user input.
type SettingsKey uint8

// Recognized settings keys.
const (
	KeyActiveDataset SettingsKey = iota
	KeyPendingDataset
	KeyNetworkInfo
	KeyParentInfo
	KeyChildInfo
	KeySlaacIidSecretKey
	KeyDadInfo
	KeySrpEcdsaKey
	KeySrpClientInfo
	KeySrpServerInfo
	KeyBrUlaPrefix
	KeyBrOnLinkPrefixes
	KeyBorderAgentID
	KeyTcatCommrCert
)

var settingsKeyNames = map[SettingsKey]string{
	KeyActiveDataset:     "ActiveDataset",
	KeyPendingDataset:    "PendingDataset",
	KeyNetworkInfo:       "NetworkInfo",
	KeyParentInfo:        "ParentInfo",
	KeyChildInfo:         "ChildInfo",
	KeySlaacIidSecretKey: "SlaacIidSecretKey",
	KeyDadInfo:           "DadInfo",
	KeySrpEcdsaKey:       "SrpEcdsaKey",
	KeySrpClientInfo:     "SrpClientInfo",
	KeySrpServerInfo:     "SrpServerInfo",
	KeyBrUlaPrefix:       "BrUlaPrefix",
	KeyBrOnLinkPrefixes:  "BrOnLinkPrefixes",
	KeyBorderAgentID:     "BorderAgentId",
	KeyTcatCommrCert:     "TcatCommrCert",
}

func (k SettingsKey) String() string {
	if s, ok := settingsKeyNames[k]; ok {
		return s
	}
	return "SettingsKey(unknown)"
}

// SensitiveSettingsKeys lists the keys that MUST be persisted in a secure
// region (hardware keystore or equivalent), never logged or dumped by
// diagnostic tooling.
var SensitiveSettingsKeys = map[SettingsKey]bool{
	KeyActiveDataset:  true,
	KeyPendingDataset: true,
	KeySrpEcdsaKey:    true,
}

// IsSensitive reports whether k requires secure storage.
func (k SettingsKey) IsSensitive() bool { return SensitiveSettingsKeys[k] }

// SettingsStore is the capability the MLE core needs for non-volatile
// persistence: single-valued get/set/delete, list-valued add/delete-at,
// and a full wipe used on factory reset. Implementations are responsible
// for the on-disk layout (length-prefixed, version-tagged, little-endian
// per spec.md §6) and for routing SensitiveSettingsKeys to secure storage.
type SettingsStore interface {
	// Get reads the single value stored at key, or returns a meshnet.Error
	// with Kind KindNotFound if it has never been set.
	Get(key SettingsKey) ([]byte, error)

	// GetIndexed reads the value at position index of a list-valued key.
	GetIndexed(key SettingsKey, index int) ([]byte, error)

	// Set overwrites (or creates) the single value at key.
	Set(key SettingsKey, value []byte) error

	// Add appends value to the list stored at key.
	Add(key SettingsKey, value []byte) error

	// Delete removes all values stored at key.
	Delete(key SettingsKey) error

	// DeleteIndexed removes only position index of a list-valued key.
	DeleteIndexed(key SettingsKey, index int) error

	// Wipe erases every key, used on factory reset.
	Wipe() error
}
