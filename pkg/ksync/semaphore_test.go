package ksync_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdnl/dnxcore/pkg/kernerr"
	"github.com/devdnl/dnxcore/pkg/ksync"
)

func TestSemaphoreTimedTakeOnEmpty(t *testing.T) {
	s := ksync.NewBinarySemaphore(false)

	err := s.Take(0)
	assert.ErrorIs(t, err, kernerr.Timeout)

	start := time.Now()
	err = s.Take(50 * time.Millisecond)
	elapsed := time.Since(start)
	assert.ErrorIs(t, err, kernerr.Timeout)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestSemaphoreGiveWakesTimedTake(t *testing.T) {
	s := ksync.NewBinarySemaphore(false)

	giveAt := time.Now().Add(30 * time.Millisecond)
	go func() {
		time.Sleep(time.Until(giveAt))
		require.NoError(t, s.Give())
	}()

	start := time.Now()
	err := s.Take(200 * time.Millisecond)
	elapsed := time.Since(start)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestSemaphoreGiveAtCapacityReturnsNoSpace(t *testing.T) {
	s := ksync.NewBinarySemaphore(true)
	assert.ErrorIs(t, s.Give(), kernerr.NoSpace)
}

func TestSemaphoreGiveFromISRIsNonBlocking(t *testing.T) {
	s := ksync.NewBinarySemaphore(false)
	var isr ksync.InterruptContext
	require.NoError(t, s.GiveFromISR(isr))
	require.NoError(t, s.Take(0))
}
