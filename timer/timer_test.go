package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCountDown struct {
	started []time.Duration
	polls   int
	left    int
}

func (f *fakeCountDown) Start(d time.Duration) {
	f.started = append(f.started, d)
	f.left = 3
}

func (f *fakeCountDown) Expired() bool {
	f.polls++
	f.left--
	return f.left <= 0
}

func TestSleepZeroReturnsImmediately(t *testing.T) {
	cd := &fakeCountDown{}
	Sleep(cd, 0)
	Sleep(cd, -time.Second)
	assert.Empty(t, cd.started)
	assert.Zero(t, cd.polls)
}

func TestSleepPollsUntilExpired(t *testing.T) {
	cd := &fakeCountDown{}
	Sleep(cd, time.Microsecond)
	require.Equal(t, []time.Duration{time.Microsecond}, cd.started)
	assert.Equal(t, 3, cd.polls)
}

func TestSleepMonotonicElapsed(t *testing.T) {
	cd := NewMonotonic()
	for _, d := range []time.Duration{time.Microsecond, 500 * time.Microsecond, 10 * time.Millisecond} {
		start := time.Now()
		Sleep(cd, d)
		assert.GreaterOrEqual(t, time.Since(start), d, "slept %s", d)
	}
}

func TestMonotonic(t *testing.T) {
	cd := NewMonotonic()
	assert.True(t, cd.Expired(), "a new countdown is expired")
	cd.Start(time.Hour)
	assert.False(t, cd.Expired())
	cd.Start(0)
	assert.True(t, cd.Expired())
}
