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

package retx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		RetxDelay:            5 * time.Second,
		JitterMax:            0,
		MaxAttempts:          4,
		MaxKeepAliveAttempts: 4,
	}
}

func TestOnRoleChangeToChildPrimesKeepAliveForRxOnWhenIdle(t *testing.T) {
	cfg := testConfig()
	tr := New(cfg, Callbacks{})
	now := time.Unix(1000, 0)

	tr.OnRoleChangeToChild(now, 240, true)
	cu := tr.ChildUpdate()
	require.Equal(t, StateSendingKeepAlive, cu.State)

	wantDelay := 240*time.Second - time.Duration(cfg.MaxKeepAliveAttempts)*cfg.RetxDelay
	require.Equal(t, now.Add(wantDelay), cu.NextTxTime)
}

func TestOnRoleChangeToChildLeavesSleepyIdle(t *testing.T) {
	tr := New(testConfig(), Callbacks{})
	tr.OnRoleChangeToChild(time.Unix(0, 0), 240, false)
	require.Equal(t, StateIdle, tr.ChildUpdate().State)
	require.Equal(t, StateIdle, tr.DataRequest().State)
}

func TestChildUpdateRetryThenDetachOnExhaustion(t *testing.T) {
	var detached bool
	var sends int
	tr := New(testConfig(), Callbacks{
		SendChildUpdateRequest: func() { sends++ },
		OnDetach:               func() { detached = true },
	})
	now := time.Unix(0, 0)
	tr.OnChildUpdateRequestTx(now, false)
	require.Equal(t, uint8(1), tr.ChildUpdate().AttemptCount)

	for i := 0; i < 3; i++ {
		now = tr.ChildUpdate().NextTxTime
		tr.Tick(now)
	}
	require.Equal(t, uint8(4), tr.ChildUpdate().AttemptCount)
	require.False(t, detached)
	require.Equal(t, 3, sends)

	now = tr.ChildUpdate().NextTxTime
	tr.Tick(now)
	require.True(t, detached)
	require.Equal(t, StateIdle, tr.ChildUpdate().State)
}

func TestChildUpdateResponseResetsAttempts(t *testing.T) {
	tr := New(testConfig(), Callbacks{})
	now := time.Unix(0, 0)
	tr.OnRoleChangeToChild(now, 240, true)
	tr.OnChildUpdateRequestTx(now, false)
	require.Equal(t, uint8(1), tr.ChildUpdate().AttemptCount)

	tr.OnChildUpdateResponseRx(now.Add(time.Second), 240)
	require.Equal(t, uint8(0), tr.ChildUpdate().AttemptCount)
	require.Equal(t, StateSendingKeepAlive, tr.ChildUpdate().State)
}

func TestDataRequestSuppressedWhileChildUpdateWaiting(t *testing.T) {
	var dataSends int
	tr := New(testConfig(), Callbacks{
		SendDataRequest: func() { dataSends++ },
	})
	now := time.Unix(0, 0)
	tr.OnRoleChangeToChild(now, 240, false)
	tr.OnChildUpdateRequestTx(now, false) // parent-side resync in progress
	tr.OnDataRequestTx(now, false)

	tr.Tick(tr.DataRequest().NextTxTime)
	require.Zero(t, dataSends, "data request retry must be suppressed while Child Update is outstanding")
}

func TestDataRequestRetriesWhenChildUpdateIdle(t *testing.T) {
	var dataSends int
	tr := New(testConfig(), Callbacks{
		SendDataRequest: func() { dataSends++ },
	})
	now := time.Unix(0, 0)
	tr.OnRoleChangeToChild(now, 240, false)
	tr.OnDataRequestTx(now, false)

	tr.Tick(tr.DataRequest().NextTxTime)
	require.Equal(t, 1, dataSends)
}

func TestDataRequestNoOpForRxOnWhenIdleDevice(t *testing.T) {
	tr := New(testConfig(), Callbacks{})
	tr.OnRoleChangeToChild(time.Unix(0, 0), 240, true)
	tr.OnDataRequestTx(time.Unix(0, 0), false)
	require.Equal(t, StateIdle, tr.DataRequest().State, "keep-alive devices never run the data-request track")
}
