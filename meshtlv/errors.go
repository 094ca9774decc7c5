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

package meshtlv

import "errors"

// Sentinel errors returned by the codec, matched with errors.Is by callers
// that need to distinguish a malformed frame from a security failure.
var (
	// ErrParse marks a structurally malformed TLV or frame (short buffer,
	// bad length field, unknown mandatory TLV).
	ErrParse = errors.New("malformed MLE frame")

	// ErrSecurity marks a frame that parsed but failed authentication
	// (MIC mismatch, replayed frame counter, unknown key id).
	ErrSecurity = errors.New("MLE frame security check failed")
)
