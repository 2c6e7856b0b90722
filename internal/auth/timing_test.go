package auth_test

import (
	"testing"
	"time"

	"github.com/BradenHooton/snipvault/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_WaitFrom_OnFailure(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   100 * time.Millisecond,
		RandomDelay: 50 * time.Millisecond,
	})
	startTime := time.Now()

	timing.WaitFrom(startTime, false)

	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond) // Reasonable upper bound
}

func TestTimingDelay_WaitFrom_OnSuccess_NoDelay(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   100 * time.Millisecond,
		RandomDelay: 50 * time.Millisecond,
	})
	startTime := time.Now()

	timing.WaitFrom(startTime, true)

	assert.Less(t, time.Since(startTime), 10*time.Millisecond)
}

func TestTimingDelay_WaitFrom_OnSuccess_WithDelay(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:      100 * time.Millisecond,
		DelayOnSuccess: true,
	})
	startTime := time.Now()

	timing.WaitFrom(startTime, true)

	assert.GreaterOrEqual(t, time.Since(startTime), 100*time.Millisecond)
}

func TestTimingDelay_WaitFrom_CountsElapsedWork(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 100 * time.Millisecond})

	startTime := time.Now()
	time.Sleep(60 * time.Millisecond) // simulated password check

	timing.WaitFrom(startTime, false)

	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestTimingDelay_WaitFrom_AlreadyPastTarget(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 10 * time.Millisecond})

	startTime := time.Now().Add(-time.Second)
	before := time.Now()

	timing.WaitFrom(startTime, false)

	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestTimingDelay_ZeroConfig(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{})
	startTime := time.Now()

	timing.WaitFrom(startTime, false)
	timing.WaitFrom(startTime, true)

	assert.Less(t, time.Since(startTime), 10*time.Millisecond)
}
