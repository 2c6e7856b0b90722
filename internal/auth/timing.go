package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for timing attack prevention
type TimingConfig struct {
	BaseDelay      time.Duration // Minimum time a failed attempt takes
	RandomDelay    time.Duration // Upper bound of the random jitter added to BaseDelay
	DelayOnSuccess bool          // If true, delay even on successful login
}

// TimingDelay pads authentication failures so that an unknown username and a
// wrong password take approximately the same time.
type TimingDelay struct {
	config TimingConfig
	sleep  func(time.Duration)
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
		sleep:  time.Sleep,
	}
}

// cryptoRandDuration returns a secure random duration in [0, max)
func cryptoRandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0
	}

	return time.Duration(binary.BigEndian.Uint64(randomBytes) % uint64(max))
}

func (td *TimingDelay) target() time.Duration {
	return td.config.BaseDelay + cryptoRandDuration(td.config.RandomDelay)
}

// WaitFrom pads the time since startTime up to BaseDelay plus jitter.
// Work already done (such as a bcrypt comparison) counts toward the target.
func (td *TimingDelay) WaitFrom(startTime time.Time, success bool) {
	if success && !td.config.DelayOnSuccess {
		return
	}

	if remaining := td.target() - time.Since(startTime); remaining > 0 {
		td.sleep(remaining)
	}
}
