package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// FailureDelay pads failed credential checks to a minimum duration so that
// "unknown email" and "wrong password" are not distinguishable by latency.
type FailureDelay struct {
	base   time.Duration
	jitter time.Duration
	sleep  func(time.Duration)
}

// NewFailureDelay returns a delay of base plus up to jitter. A zero base
// disables padding.
func NewFailureDelay(base, jitter time.Duration) *FailureDelay {
	return &FailureDelay{base: base, jitter: jitter, sleep: time.Sleep}
}

// cryptoRandIntn returns a secure random number between 0 and max (exclusive)
func cryptoRandIntn(max int64) int64 {
	if max <= 0 {
		return 0
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0
	}

	return int64(binary.BigEndian.Uint64(randomBytes) % uint64(max))
}

func (d *FailureDelay) target() time.Duration {
	return d.base + time.Duration(cryptoRandIntn(int64(d.jitter)))
}

// WaitFrom sleeps until at least the target delay has elapsed since start.
// Nil receivers do nothing.
func (d *FailureDelay) WaitFrom(start time.Time) {
	if d == nil || d.base <= 0 {
		return
	}

	if remaining := d.target() - time.Since(start); remaining > 0 {
		d.sleep(remaining)
	}
}
