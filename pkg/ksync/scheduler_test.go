package ksync_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdnl/dnxcore/pkg/kernerr"
	"github.com/devdnl/dnxcore/pkg/ksync"
)

func TestCreateTaskRunsEntryAndJoinReturnsStatus(t *testing.T) {
	sched := ksync.NewGoScheduler()

	task, err := sched.CreateTask(ksync.TaskOptions{
		Name:     "worker",
		Joinable: true,
		Entry: func(task *ksync.Task) {
			task.Terminate(42)
		},
	})
	require.NoError(t, err)

	status, jerr := task.Join(time.Second)
	require.NoError(t, jerr)
	assert.Equal(t, 42, status)
	assert.Equal(t, ksync.TaskTerminated, task.Status())
}

func TestCreateTaskRejectsNilEntry(t *testing.T) {
	sched := ksync.NewGoScheduler()
	_, err := sched.CreateTask(ksync.TaskOptions{Name: "empty"})
	assert.ErrorIs(t, err, kernerr.InvalidArgument)
}

func TestJoinTimesOutOnRunningTask(t *testing.T) {
	sched := ksync.NewGoScheduler()

	release := make(chan struct{})
	task, err := sched.CreateTask(ksync.TaskOptions{
		Name:  "stuck",
		Entry: func(*ksync.Task) { <-release },
	})
	require.NoError(t, err)
	defer close(release)

	_, jerr := task.Join(30 * time.Millisecond)
	assert.ErrorIs(t, jerr, kernerr.Timeout)
}

func TestTickCounterAdvances(t *testing.T) {
	sched := ksync.NewGoScheduler()
	before := sched.Now()
	sched.Sleep(5 * ksync.TickDuration)
	assert.Greater(t, sched.Now(), before)
}

func TestStopIsObservable(t *testing.T) {
	sched := ksync.NewGoScheduler()
	assert.False(t, sched.Stopped())
	sched.Stop()
	assert.True(t, sched.Stopped())
}
