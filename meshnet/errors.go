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

// Package meshnet defines the small collaborator interfaces the MLE state
// machine is built against (radio transport, network data storage, mesh
// forwarding, persistent settings) plus the shared error vocabulary every
// other package in this module reports through.
package meshnet

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure the way the rest of this module's
// public API reports it, so callers can branch on outcome without string
// matching.
type Kind uint8

// Error kinds, closed set.
const (
	KindNone Kind = iota
	KindParse
	KindSecurity
	KindDrop
	KindDuplicated
	KindNotFound
	KindNoBufs
	KindInvalidArgs
	KindInvalidState
	KindBusy
	KindAlready
	KindRejected
	KindNoRoute
	KindDetached
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindParse:
		return "parse"
	case KindSecurity:
		return "security"
	case KindDrop:
		return "drop"
	case KindDuplicated:
		return "duplicated"
	case KindNotFound:
		return "not_found"
	case KindNoBufs:
		return "no_bufs"
	case KindInvalidArgs:
		return "invalid_args"
	case KindInvalidState:
		return "invalid_state"
	case KindBusy:
		return "busy"
	case KindAlready:
		return "already"
	case KindRejected:
		return "rejected"
	case KindNoRoute:
		return "no_route"
	case KindDetached:
		return "detached"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Error is the concrete error type returned across package boundaries in
// this module; Kind lets callers use errors.As to branch on outcome while
// Op/Err keep a normal Go error chain for logging.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error, the one constructor every package in this
// module should funnel its failures through.
func NewError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, and KindFailed otherwise.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFailed
}
