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

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, KindNone, KindOf(nil))

	wrapped := NewError("neighbor.find", KindNotFound, nil)
	require.Equal(t, KindNotFound, KindOf(wrapped))

	// a plain error with no *Error in its chain reports KindFailed
	plain := errors.New("boom")
	require.Equal(t, KindFailed, KindOf(plain))
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("short buffer")
	err := NewError("radio.send", KindInvalidArgs, inner)
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "radio.send")
	require.Contains(t, err.Error(), "invalid_args")
}

func TestNotifierTakeClears(t *testing.T) {
	n := NewNotifier()
	var observed ChangeFlag
	n.Observe(func(f ChangeFlag) { observed |= f })

	n.Signal(ChangedRole | ChangedParent)
	require.True(t, observed.Has(ChangedRole))
	require.True(t, observed.Has(ChangedParent))

	taken := n.Take()
	require.True(t, taken.Has(ChangedRole))
	require.Equal(t, ChangeFlag(0), n.Take())
}
