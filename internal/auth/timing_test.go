package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFailureDelay_PadsToTarget(t *testing.T) {
	d := NewFailureDelay(100*time.Millisecond, 0)
	var slept time.Duration
	d.sleep = func(dur time.Duration) { slept = dur }

	d.WaitFrom(time.Now())

	assert.Greater(t, slept, 90*time.Millisecond)
	assert.LessOrEqual(t, slept, 100*time.Millisecond)
}

func TestFailureDelay_JitterBounded(t *testing.T) {
	d := NewFailureDelay(50*time.Millisecond, 20*time.Millisecond)

	for i := 0; i < 50; i++ {
		target := d.target()
		assert.GreaterOrEqual(t, target, 50*time.Millisecond)
		assert.Less(t, target, 70*time.Millisecond)
	}
}

func TestFailureDelay_NoSleepWhenAlreadySlow(t *testing.T) {
	d := NewFailureDelay(10*time.Millisecond, 0)
	called := false
	d.sleep = func(time.Duration) { called = true }

	d.WaitFrom(time.Now().Add(-time.Second))

	assert.False(t, called)
}

func TestFailureDelay_Disabled(t *testing.T) {
	called := false
	d := NewFailureDelay(0, 0)
	d.sleep = func(time.Duration) { called = true }
	d.WaitFrom(time.Now())

	var nilDelay *FailureDelay
	nilDelay.WaitFrom(time.Now())

	assert.False(t, called)
}
